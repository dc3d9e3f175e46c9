package utils

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger. Printf/Errorf keep the terse call style used across
// the services; the structured zap methods are available through the embedded SugaredLogger.
type Logger struct {
	*zap.SugaredLogger
}

func NewLogger() *Logger {
	l, err := NewLoggerWithConfig("info", "console", "")
	if err != nil {
		return NewNopLogger()
	}
	return l
}

func NewNopLogger() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// NewLoggerWithConfig builds a logger; format is "json" or "console".
func NewLoggerWithConfig(level, format, service string) (*Logger, error) {
	var zapLevel zapcore.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}
	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if service != "" {
		base = base.With(zap.String("service", service))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		base = base.With(zap.String("hostname", hostname))
	}
	return &Logger{SugaredLogger: base.Sugar()}, nil
}

func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.SugaredLogger == nil {
		return
	}
	l.Infof(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	if l == nil || l.SugaredLogger == nil {
		return
	}
	l.SugaredLogger.Errorf(format, args...)
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(args ...any) *Logger {
	if l == nil || l.SugaredLogger == nil {
		return NewNopLogger()
	}
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...)}
}

func (l *Logger) Sync() {
	if l == nil || l.SugaredLogger == nil {
		return
	}
	_ = l.SugaredLogger.Sync()
}
