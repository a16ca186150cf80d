package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "redis", cfg.Quota.Backend)
	assert.False(t, cfg.Quota.FailOpen)
	assert.Equal(t, "popgraph:rate_limit:", cfg.Quota.KeyPrefix)
	assert.Equal(t, 5, cfg.Quota.Limits["free"])
	assert.Equal(t, 100, cfg.Quota.Limits["basic"])
	assert.Equal(t, -1, cfg.Quota.Limits["professional"])
	assert.Equal(t, time.Second, cfg.Inference.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Batch.Delay)
	assert.Equal(t, 1, cfg.Batch.Concurrency)
	assert.Equal(t, 10, cfg.Batch.MaxVariants)
	assert.Equal(t, "PopGraph", cfg.Watermark.Text)
	assert.Equal(t, 0.5, cfg.Watermark.Opacity)
	assert.Equal(t, 20, cfg.Watermark.Margin)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, time.Second, cfg.Redis.ReadTimeout)
	assert.False(t, cfg.Storage.Configured())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
server:
  address: ":9090"
quota:
  backend: postgres
  fallback: memory
batch:
  delay: 500ms
  concurrency: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("POPGRAPH_JWT_SECRET", "s3cret")
	t.Setenv("POPGRAPH_INFERENCE_API_KEY", "ms-key")
	t.Setenv("POPGRAPH_ADMIN_USER_IDS", "admin-1, admin-2,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "postgres", cfg.Quota.Backend)
	assert.Equal(t, "memory", cfg.Quota.Fallback)
	assert.Equal(t, 500*time.Millisecond, cfg.Batch.Delay)
	assert.Equal(t, 2, cfg.Batch.Concurrency)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "ms-key", cfg.Inference.APIKey)
	assert.Equal(t, []string{"admin-1", "admin-2"}, cfg.Auth.AdminUserIDs)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "pg", Database: "popgraph", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=pg dbname=popgraph sslmode=disable", c.DSN())

	c.Password = "pw"
	assert.Contains(t, c.DSN(), "password=pw")
}

func TestStorageConfig_Configured(t *testing.T) {
	c := StorageConfig{Endpoint: "https://r2", AccessKeyID: "id", SecretAccessKey: "secret", Bucket: "b"}
	assert.True(t, c.Configured())

	c.Bucket = ""
	assert.False(t, c.Configured())
}
