package logger

// WithKV returns a logger with a single metadata key attached.
func WithKV(log Logger, key string, value interface{}) Logger {
	return log.With(map[string]interface{}{key: value})
}
