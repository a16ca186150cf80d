package generation

import "time"

const (
	// MaxVariants bounds the number of variants per request.
	MaxVariants = 10

	// MinDimension and MaxDimension bound each side of a rendered image.
	MinDimension = 64
	MaxDimension = 4096

	// BaseDimension is the long side used when deriving sizes from an aspect ratio.
	BaseDimension = 1024
)

// DriverConfig holds job driver configuration.
type DriverConfig struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// DefaultDriverConfig returns default job driver configuration.
func DefaultDriverConfig() *DriverConfig {
	return &DriverConfig{
		PollInterval: time.Second,
		Timeout:      30 * time.Second,
	}
}

// MaterializerConfig holds output materialization configuration.
type MaterializerConfig struct {
	KeyPrefix       string
	ThumbnailSuffix string
	UploadTimeout   time.Duration
	Watermark       WatermarkStyle
}

// DefaultMaterializerConfig returns default materializer configuration.
func DefaultMaterializerConfig() *MaterializerConfig {
	return &MaterializerConfig{
		KeyPrefix:       "generated",
		ThumbnailSuffix: "?width=256",
		UploadTimeout:   10 * time.Second,
		Watermark:       DefaultWatermarkStyle(),
	}
}

// PipelineConfig holds request pipeline configuration.
type PipelineConfig struct {
	MaxVariants int
}

// DefaultPipelineConfig returns default pipeline configuration.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{MaxVariants: MaxVariants}
}
