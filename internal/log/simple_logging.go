// Package log holds the logging contract shared by the bridge components.
// *slog.Logger satisfies Logger, so binaries pass their slog logger straight in.
package log

type (
	Logger interface {
		Debug(msg string, args ...any)
		Info(msg string, args ...any)
		Warn(msg string, args ...any)
		Error(msg string, args ...any)
	}
	NOOPLogger struct{}
)

func (NOOPLogger) Debug(msg string, args ...any) {}

func (NOOPLogger) Info(msg string, args ...any) {}

func (NOOPLogger) Warn(msg string, args ...any) {}

func (NOOPLogger) Error(msg string, args ...any) {}

// OrNOOP returns l, or a NOOPLogger when l is nil.
func OrNOOP(l Logger) Logger {
	if l == nil {
		return NOOPLogger{}
	}
	return l
}
