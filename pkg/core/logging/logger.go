package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a named structured logger. Methods take a message followed by
// alternating key/value pairs.
type Logger struct {
	sugar *zap.SugaredLogger
	name  string
}

// Config holds logger configuration
type Config struct {
	// Name identifies the component emitting the logs
	Name string

	// Format is "json" or "console" (default: console)
	Format string
}

// DefaultConfig returns a default logger configuration
func DefaultConfig(name string) Config {
	return Config{
		Name:   name,
		Format: "console",
	}
}

// globalLevel gates every logger created by this package so --verbose can
// flip the whole process to debug at once.
var globalLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// SetGlobalLevel changes the level of all loggers created by this package.
func SetGlobalLevel(level string) {
	globalLevel.SetLevel(parseLevel(level))
}

// New creates a named logger with the global level and console output.
func New(name string) *Logger {
	return NewWithConfig(DefaultConfig(name))
}

// NewWithConfig creates a logger from an explicit configuration
func NewWithConfig(cfg Config) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), globalLevel)

	return &Logger{
		sugar: zap.New(core).Named(cfg.Name).Sugar(),
		name:  cfg.Name,
	}
}

// Name returns the logger name
func (l *Logger) Name() string {
	return l.name
}

// With returns a logger with persistent key/value context
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		sugar: l.sugar.With(keysAndValues...),
		name:  l.name,
	}
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs an info message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
