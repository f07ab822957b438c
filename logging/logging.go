package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName tags every log line.
const ServiceName = "battery-log-api"

// NewLogger returns the process logger: JSON lines on stdout at the given
// level, tagged with the service name.
func NewLogger(level string) (*zap.Logger, error) {
	return productionConfig(ParseLevel(level)).Build()
}

// ParseLevel accepts zap level names in any case. Anything else is info.
func ParseLevel(s string) zapcore.Level {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func productionConfig(level zapcore.Level) zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	// Every request line is kept.
	cfg.Sampling = nil
	cfg.InitialFields = map[string]interface{}{"service": ServiceName}
	cfg.OutputPaths = []string{"stdout"}

	enc := &cfg.EncoderConfig
	enc.TimeKey = "ts"
	enc.StacktraceKey = "stack"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder

	return cfg
}
