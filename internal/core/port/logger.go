package port

// Fields carries structured logging context.
type Fields map[string]interface{}

// LoggerPort is the logging contract used by every layer. Adapters exist for
// slog (console) and Fluent Bit; a multilogger fans out to all active ones.
type LoggerPort interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, err error, fields Fields)
	WithFields(fields Fields) LoggerPort
}
