package types

// Logger defines the structured logging interface used throughout the
// worker. Satisfied by a thin adapter over *slog.Logger in cmd; kept as an
// interface so packages under internal do not depend on a concrete
// logging backend.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}
