package core

// Logger is any service that can record application events.
// args may hold errors, map[string]interface{} extras and at most one Person (the acting user).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies who an event is about.
type Person struct {
	ID       string
	Username string
	Email    string
}
