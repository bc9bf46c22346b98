package log

// Logger is the interface applications implement to receive protocol log events.
// Implementations must be safe for concurrent use.
type Logger interface {
	// Log records a protocol event. Implementations should not block;
	// slow sinks should buffer internally.
	Log(Event)
}

// NoopLogger discards all events. It is the default when no logger is
// configured.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}
