package protocol

import (
	"time"

	"github.com/insteon-mqtt/insteon-go/pkg/message"
)

// Outcome is a handler's verdict on an inbound message.
type Outcome int

const (
	// Unknown means the handler does not recognize the message; the
	// engine keeps looking for another handler.
	Unknown Outcome = iota

	// Continue means the handler consumed the message and expects more
	// replies before it is done.
	Continue

	// Finished means the handler consumed the message and the command is
	// fully resolved. The engine removes it and writes the next command.
	Finished
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Unknown:
		return "unknown"
	case Continue:
		return "continue"
	case Finished:
		return "finished"
	default:
		return "outcome-invalid"
	}
}

// Sender is the part of the engine handlers may use to queue follow-up
// commands. Multi-step handlers (database scans, linking flows) send
// their next step through it from inside Receive.
type Sender interface {
	// Send appends a command to the write queue.
	Send(msg message.Message, h Handler)

	// SendHighPriority inserts a command at the head of the write queue,
	// ahead of anything already waiting.
	SendHighPriority(msg message.Message, h Handler)

	// SendAfter queues a command to be sent no earlier than at.
	SendAfter(msg message.Message, h Handler, at time.Time)
}

// Handler tracks one outstanding command: how to recognize its replies,
// when to give up waiting, and how many retransmits are left. The
// handler package provides implementations for the common exchanges.
type Handler interface {
	// Receive examines an inbound message and reports whether it belongs
	// to this handler's command.
	Receive(s Sender, msg message.Message) Outcome

	// Sending notifies the handler that its command was written to the
	// modem. Each call counts one send attempt and arms the reply
	// deadline.
	Sending(now time.Time, msg message.Message)

	// Touch re-arms the reply deadline after matching traffic so a long
	// multi-reply exchange does not time out mid-stream.
	Touch(now time.Time)

	// Deadline returns the time after which the reply wait has timed
	// out. The zero time means no deadline is armed.
	Deadline() time.Time

	// CanRetry reports whether the command may be retransmitted after a
	// timeout.
	CanRetry() bool

	// Failed resolves the handler unsuccessfully. The engine calls it
	// when retries are exhausted or the command is cancelled.
	Failed(err error)
}
