package termdock

// Logger is the minimal structured logging interface used by this package.
// Keys and values alternate in kv. The interface is intentionally tiny so
// integrators can plug in their own logger; internal/logging provides a
// zap-backed implementation.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// NopLogger drops all log messages.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
