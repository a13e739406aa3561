package infrastructure

import (
	"errors"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a JSON logger for production and a console logger
// otherwise. LOG_LEVEL overrides the default level of either.
func NewLogger(environment string) (*zap.Logger, error) {
	config := loggerConfig(environment)

	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if level, err := zapcore.ParseLevel(raw); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}

	return config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("environment", environment)),
	)
}

func loggerConfig(environment string) zap.Config {
	if environment == "production" {
		config := zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.MessageKey = "message"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return config
	}

	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return config
}

// ComponentLogger names a logger after the subsystem using it
func ComponentLogger(logger *zap.Logger, component string) *zap.Logger {
	return logger.Named(component).With(zap.String("component", component))
}

// RequestLogger scopes a logger to one HTTP request
func RequestLogger(logger *zap.Logger, requestID, method, route string) *zap.Logger {
	return logger.With(
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("route", route),
	)
}

// SyncLogger flushes any buffered log entries. Sync on a terminal returns a
// *os.PathError which is ignored.
func SyncLogger(logger *zap.Logger) {
	var pathErr *os.PathError
	if err := logger.Sync(); err != nil && !errors.As(err, &pathErr) {
		logger.Error("Failed to sync logger", zap.Error(err))
	}
}
