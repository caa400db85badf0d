package contextkeys

import (
	"context"
	"log/slog"
	"os"

	"github.com/JoeBashe/stl-scraper/internal/core/port"
	"github.com/lmittmann/tint"
)

type contextKey string

const loggerKey contextKey = "logger"

// ContextWithLogger returns a child context carrying the given logger.
func ContextWithLogger(ctx context.Context, logger port.LoggerPort) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext extracts the logger from the context. Code paths that run
// before wiring is complete get a plain console logger instead of a nil panic.
func LoggerFromContext(ctx context.Context) port.LoggerPort {
	if logger, ok := ctx.Value(loggerKey).(port.LoggerPort); ok {
		return logger
	}
	return &fallbackLogger{logger: slog.New(tint.NewHandler(os.Stdout, nil))}
}

type fallbackLogger struct {
	logger *slog.Logger
}

func (l *fallbackLogger) attrs(fields port.Fields) []any {
	var attrs []any
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (l *fallbackLogger) Debug(msg string, fields port.Fields) {
	l.logger.Debug(msg, l.attrs(fields)...)
}

func (l *fallbackLogger) Info(msg string, fields port.Fields) {
	l.logger.Info(msg, l.attrs(fields)...)
}

func (l *fallbackLogger) Warn(msg string, fields port.Fields) {
	l.logger.Warn(msg, l.attrs(fields)...)
}

func (l *fallbackLogger) Error(msg string, err error, fields port.Fields) {
	attrs := l.attrs(fields)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.logger.Error(msg, attrs...)
}

func (l *fallbackLogger) WithFields(fields port.Fields) port.LoggerPort {
	return &fallbackLogger{logger: l.logger.With(l.attrs(fields)...)}
}
