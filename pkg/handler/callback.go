package handler

import (
	"github.com/insteon-mqtt/insteon-go/pkg/message"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

// Callback finishes on the first message a filter accepts and hands it
// to a callback. Useful for simple one-reply commands where the full
// StandardCmd matching is overkill.
type Callback struct {
	Base

	// Filter accepts the message that resolves the command.
	Filter func(msg message.Message) bool

	// Call, if set, receives the accepted message.
	Call func(msg message.Message)
}

// NewCallbackForCode builds a Callback accepting the first message with
// the given command code.
func NewCallbackForCode(code byte, call func(message.Message), onDone DoneFunc) *Callback {
	return &Callback{
		Base:   Base{OnDone: onDone},
		Filter: func(msg message.Message) bool { return msg.Code() == code },
		Call:   call,
	}
}

// Receive finishes on the first accepted message.
func (h *Callback) Receive(s protocol.Sender, msg message.Message) protocol.Outcome {
	if h.Filter == nil || !h.Filter(msg) {
		return protocol.Unknown
	}
	if h.Call != nil {
		h.Call(msg)
	}
	h.done(nil)
	return protocol.Finished
}

var _ protocol.Handler = (*Callback)(nil)
