package core

// Logger is any service that can report application events.
// Implementations may inspect args for known types (eg. a user.User to
// attribute the event to a person).
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
