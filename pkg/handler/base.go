package handler

import (
	"time"

	"github.com/insteon-mqtt/insteon-go/pkg/message"
)

// Default reply wait and retransmit budget for direct commands. Both are
// conservative: power-line round trips routinely take seconds on a noisy
// line. The bridge overrides them from its configuration at startup,
// before any handler is built.
var (
	DefaultTimeout = 5 * time.Second
	DefaultRetries = 3
)

// DoneFunc resolves a handler. err is nil on success. A handler calls it
// exactly once.
type DoneFunc func(err error)

// Base carries the deadline and retry bookkeeping shared by every
// handler. Embed it and implement Receive.
type Base struct {
	// Timeout is the reply wait per send attempt. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	// Retries is how many times the engine may retransmit after a
	// timeout before the handler fails.
	Retries int

	// OnDone, if set, is called once when the handler resolves.
	OnDone DoneFunc

	deadline time.Time
	numSent  int
	stopped  bool
	resolved bool
}

// SetOnDone replaces the resolution callback. Command sequences use
// this to chain steps through handlers built with a nil callback.
func (b *Base) SetOnDone(fn DoneFunc) { b.OnDone = fn }

// Sending records a counted send attempt and arms the reply deadline.
func (b *Base) Sending(now time.Time, msg message.Message) {
	b.numSent++
	b.Touch(now)
}

// Touch re-arms the reply deadline.
func (b *Base) Touch(now time.Time) {
	t := b.Timeout
	if t == 0 {
		t = DefaultTimeout
	}
	b.deadline = now.Add(t)
}

// Deadline returns the armed reply deadline, or the zero time before the
// first send.
func (b *Base) Deadline() time.Time { return b.deadline }

// CanRetry reports whether the retransmit budget allows another attempt.
func (b *Base) CanRetry() bool {
	return !b.stopped && b.numSent <= b.Retries
}

// StopRetry gives up the remaining retransmit budget. The next timeout
// fails the handler.
func (b *Base) StopRetry() { b.stopped = true }

// Failed resolves the handler unsuccessfully.
func (b *Base) Failed(err error) { b.done(err) }

// Done resolves the handler; a nil err means success. Exposed for
// handlers in other packages built on Base.
func (b *Base) Done(err error) { b.done(err) }

// done runs the callback once; later calls are ignored.
func (b *Base) done(err error) {
	if b.resolved {
		return
	}
	b.resolved = true
	if b.OnDone != nil {
		b.OnDone(err)
	}
}
