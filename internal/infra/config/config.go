package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	Quota      QuotaConfig      `mapstructure:"quota"`
	Inference  InferenceConfig  `mapstructure:"inference"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Watermark  WatermarkConfig  `mapstructure:"watermark"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode,
	)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// HTTPClientConfig holds outbound HTTP client pooling and timeouts.
type HTTPClientConfig struct {
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`
	KeepAlive           time.Duration `mapstructure:"keep_alive"`
}

// QuotaConfig holds daily quota configuration.
type QuotaConfig struct {
	// Backend selects the primary counter store: redis, postgres, memory.
	Backend string `mapstructure:"backend"`
	// Fallback selects a secondary store used when the primary errors. Empty disables it.
	Fallback  string `mapstructure:"fallback"`
	FailOpen  bool   `mapstructure:"fail_open"`
	KeyPrefix string `mapstructure:"key_prefix"`
	// Limits maps tier name to daily limit; -1 is unbounded.
	Limits map[string]int `mapstructure:"limits"`
}

// InferenceConfig holds the inference engine client configuration.
type InferenceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxResultBytes int64         `mapstructure:"max_result_bytes"`
}

// BatchConfig holds batch pacing configuration.
type BatchConfig struct {
	Delay       time.Duration `mapstructure:"delay"`
	Concurrency int           `mapstructure:"concurrency"`
	MaxVariants int           `mapstructure:"max_variants"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	ThumbnailSuffix string `mapstructure:"thumbnail_suffix"`

	UploadTimeout    time.Duration `mapstructure:"upload_timeout"`
	BreakerFailures  uint32        `mapstructure:"breaker_failures"`
	BreakerOpenDelay time.Duration `mapstructure:"breaker_open_delay"`
}

// Configured reports whether enough settings exist to build a client.
func (c *StorageConfig) Configured() bool {
	return c.Endpoint != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.Bucket != ""
}

// WatermarkConfig holds watermark rendering configuration.
type WatermarkConfig struct {
	Text    string  `mapstructure:"text"`
	Opacity float64 `mapstructure:"opacity"`
	Margin  int     `mapstructure:"margin"`
	Scale   int     `mapstructure:"scale"`
}

// AuthConfig holds bearer token configuration.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	// AdminUserIDs may call admin routes.
	AdminUserIDs []string `mapstructure:"admin_user_ids"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds prometheus configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/popgraph")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("POPGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Secrets from environment
	if secret := os.Getenv("POPGRAPH_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if password := os.Getenv("POPGRAPH_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if password := os.Getenv("POPGRAPH_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if key := os.Getenv("POPGRAPH_STORAGE_SECRET_KEY"); key != "" {
		cfg.Storage.SecretAccessKey = key
	}
	if key := os.Getenv("POPGRAPH_INFERENCE_API_KEY"); key != "" {
		cfg.Inference.APIKey = key
	}
	if s := os.Getenv("POPGRAPH_ADMIN_USER_IDS"); s != "" {
		cfg.Auth.AdminUserIDs = parseCommaSeparatedList(s)
	}

	return &cfg, nil
}

func parseCommaSeparatedList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.allow_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "popgraph")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)

	// Redis defaults
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "1s")
	v.SetDefault("redis.write_timeout", "1s")

	// HTTP client defaults
	v.SetDefault("http_client.max_idle_conns", 100)
	v.SetDefault("http_client.max_idle_conns_per_host", 20)
	v.SetDefault("http_client.max_conns_per_host", 50)
	v.SetDefault("http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("http_client.dial_timeout", 10*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 10*time.Second)
	v.SetDefault("http_client.response_timeout", 60*time.Second)
	v.SetDefault("http_client.keep_alive", 30*time.Second)

	// Quota defaults
	v.SetDefault("quota.backend", "redis")
	v.SetDefault("quota.fallback", "")
	v.SetDefault("quota.fail_open", false)
	v.SetDefault("quota.key_prefix", "popgraph:rate_limit:")
	v.SetDefault("quota.limits", map[string]int{
		"free":         5,
		"basic":        100,
		"professional": -1,
	})

	// Inference defaults
	v.SetDefault("inference.base_url", "https://api-inference.modelscope.cn")
	v.SetDefault("inference.model", "Tongyi-MAI/Z-Image-Turbo")
	v.SetDefault("inference.poll_interval", time.Second)
	v.SetDefault("inference.timeout", 30*time.Second)
	v.SetDefault("inference.max_result_bytes", 32<<20)

	// Batch defaults
	v.SetDefault("batch.delay", 2*time.Second)
	v.SetDefault("batch.concurrency", 1)
	v.SetDefault("batch.max_variants", 10)

	// Storage defaults
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.key_prefix", "generated")
	v.SetDefault("storage.thumbnail_suffix", "?width=256")
	v.SetDefault("storage.upload_timeout", 10*time.Second)
	v.SetDefault("storage.breaker_failures", 3)
	v.SetDefault("storage.breaker_open_delay", 30*time.Second)

	// Watermark defaults
	v.SetDefault("watermark.text", "PopGraph")
	v.SetDefault("watermark.opacity", 0.5)
	v.SetDefault("watermark.margin", 20)
	v.SetDefault("watermark.scale", 0)

	// Auth defaults
	v.SetDefault("auth.issuer", "popgraph")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "popgraph")
	v.SetDefault("metrics.path", "/metrics")
}
