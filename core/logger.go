package core

// Logger logs a message along with optional args.
// args may hold errors, extra data maps and the current user.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// LogFields is structured context attached to a log entry (batch, line, course...).
type LogFields map[string]interface{}
