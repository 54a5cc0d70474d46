// Package logger wraps zap behind a process-global structured logger so
// every engine component logs the same way without threading a logger
// through each constructor. Init once at startup; everything before Init
// falls back to a development logger so early failures are still visible.
package logger

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalLogger *zap.Logger

// Init configures the global logger. level is one of debug/info/warn/error
// (anything else means info); environment "development" switches to the
// human-readable console encoder with colored levels.
func Init(level string, environment string) error {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if environment == "development" {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	globalLogger = logger
	return nil
}

// Get returns the global logger, or an uninitialized-fallback development
// logger if Init has not run.
func Get() *zap.Logger {
	if globalLogger == nil {
		config := zap.NewDevelopmentConfig()
		logger, _ := config.Build()
		return logger
	}
	return globalLogger
}

// Sync flushes any buffered log entries; call it on shutdown.
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

// Debug logs at debug level.
func Debug(msg string, fields ...zap.Field) {
	Get().Debug(msg, fields...)
}

// Info logs at info level.
func Info(msg string, fields ...zap.Field) {
	Get().Info(msg, fields...)
}

// Warn logs at warn level.
func Warn(msg string, fields ...zap.Field) {
	Get().Warn(msg, fields...)
}

// Error logs at error level.
func Error(msg string, fields ...zap.Field) {
	Get().Error(msg, fields...)
}

// Fatal logs at fatal level and exits the process.
func Fatal(msg string, fields ...zap.Field) {
	Get().Fatal(msg, fields...)
}

// Typed field helpers, so call sites don't import zap directly.

// String returns a string field.
func String(key, value string) zap.Field {
	return zap.String(key, value)
}

// Int returns an int field.
func Int(key string, value int) zap.Field {
	return zap.Int(key, value)
}

// Int64 returns an int64 field, the shape of tick/bar timestamps and
// counters throughout the engine.
func Int64(key string, value int64) zap.Field {
	return zap.Int64(key, value)
}

// Float64 returns a float64 field, the shape of every price and P&L value.
func Float64(key string, value float64) zap.Field {
	return zap.Float64(key, value)
}

// Bool returns a bool field.
func Bool(key string, value bool) zap.Field {
	return zap.Bool(key, value)
}

// Duration returns a duration field.
func Duration(key string, value time.Duration) zap.Field {
	return zap.Duration(key, value)
}

// Time returns a time field.
func Time(key string, value time.Time) zap.Field {
	return zap.Time(key, value)
}

// ErrorField returns an error field under the conventional "error" key.
func ErrorField(err error) zap.Field {
	return zap.Error(err)
}

// Any returns a reflection-based field for values without a typed helper.
func Any(key string, value interface{}) zap.Field {
	return zap.Any(key, value)
}
