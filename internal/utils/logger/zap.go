package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapLogger builds the structured logger used by domain services.
// It honours the same level and format settings as New.
func NewZapLogger(cfg *Config) (*zap.Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var zcfg zap.Config
	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		zcfg = zap.NewDevelopmentConfig()
	default:
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "time"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(zapLevel(cfg.Level))

	if cfg.Output != nil {
		encoder := zapcore.NewJSONEncoder(zcfg.EncoderConfig)
		if zcfg.Encoding == "console" {
			encoder = zapcore.NewConsoleEncoder(zcfg.EncoderConfig)
		}
		core := zapcore.NewCore(encoder, zapcore.AddSync(cfg.Output), zcfg.Level)
		return zap.New(core, zap.AddCaller()), nil
	}

	return zcfg.Build()
}

func zapLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
