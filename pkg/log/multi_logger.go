package log

// MultiLogger fans every event out to a set of loggers. The bridge uses
// it to drive the console and a capture file from the same stream.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger builds a fan-out over the given loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log forwards the event to every logger in order.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

var _ Logger = (*MultiLogger)(nil)
