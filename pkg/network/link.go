package network

import "time"

// Event is one inbound occurrence on a link. Reader goroutines post
// events into the manager's channel; the pump loop dispatches them.
type Event struct {
	// Link that produced the event.
	Link Link

	// Data holds the inbound bytes or payload.
	Data []byte

	// Topic is set for message-oriented links (MQTT).
	Topic string

	// Err, when non-nil, reports a connection failure. Data and Topic
	// are empty.
	Err error
}

// Link is a transport driven by the Manager. Connect establishes the
// transport and starts whatever delivery mechanism it needs (a reader
// goroutine for serial, subscription callbacks for MQTT), posting
// inbound traffic and failures to the events channel. Deliver and
// Flush are called only from the pump loop.
type Link interface {
	// ID is a unique identifier for this link instance.
	ID() string

	// Name is the human-readable transport name used in log events.
	Name() string

	// Connect opens the transport and starts inbound delivery.
	Connect(events chan<- Event) error

	// Close tears down the transport. Pending writes are kept for the
	// next connect.
	Close() error

	// Deliver invokes the link's inbound callback for one event.
	Deliver(ev Event)

	// Flush writes queued outbound data whose scheduled time has
	// passed. A write error means the connection is gone.
	Flush(now time.Time) error

	// NextWrite returns the scheduled time of the earliest queued
	// write, or ok=false when the queue is empty.
	NextWrite() (at time.Time, ok bool)
}
