package logging

import (
	"strings"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a zap logger that also records entries on the active span.
type Logger struct {
	*otelzap.Logger
}

type LoggerOption struct {
	LogLevel    string
	Development bool
}

type Option func(o *LoggerOption)

func WithLogLevel(logLevel string) Option {
	return func(o *LoggerOption) {
		o.LogLevel = logLevel
	}
}

// WithDevelopment switches to human readable console output.
func WithDevelopment() Option {
	return func(o *LoggerOption) {
		o.Development = true
	}
}

func NewLogger(opts ...Option) (*Logger, error) {
	option := &LoggerOption{}
	for _, opt := range opts {
		opt(option)
	}

	level := ParseLevel(option.LogLevel)
	zapConfig := zap.NewProductionConfig()
	if option.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return Wrap(zapLogger, level), nil
}

// Wrap adapts an existing zap logger, such as zaptest's.
func Wrap(zapLogger *zap.Logger, level zapcore.Level) *Logger {
	return &Logger{Logger: otelzap.New(zapLogger, otelzap.WithMinLevel(level))}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return Wrap(zap.NewNop(), zap.FatalLevel)
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(logLevel string) zapcore.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}
