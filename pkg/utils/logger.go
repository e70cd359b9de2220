package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every log entry as "service".
const ServiceName = "joubun"

// NewLogger returns a zap logger. When debug is true, uses development config
// (human-readable, debug level); otherwise production config (JSON, info level)
// with ISO 8601 timestamps. Both carry the service field.
func NewLogger(debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.InitialFields = map[string]interface{}{"service": ServiceName}
	return cfg.Build()
}
