package core

// Logger logs application messages both locally and to an external error
// tracking service.
type Logger interface {
	// Enable toggles reporting to the external service; local output is
	// always on.
	Enable(enabled bool)

	// args may include an error to report and a user.User to attach to the report.
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
