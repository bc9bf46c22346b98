package handler

import (
	"errors"
	"fmt"

	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
	"github.com/insteon-mqtt/insteon-go/pkg/message"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

// ErrDeviceNak indicates a device rejected a direct command with a
// DIRECT_NAK reply.
var ErrDeviceNak = errors.New("device NAK")

// StandardCmd handles a direct standard command: the modem echoes the
// send, then the device replies with a DIRECT_ACK (or DIRECT_NAK)
// carrying the result. Replies are matched on the device address and
// cmd1; everything else passes through untouched.
type StandardCmd struct {
	Base

	addr insteon.Address
	cmd1 byte

	// callback consumes the device's ACK reply.
	callback func(msg *message.StdReceived, done DoneFunc)
}

// NewStandardCmd builds the handler for msg. callback receives the
// device's DIRECT_ACK reply; onDone resolves the overall command.
func NewStandardCmd(msg *message.StdSend, callback func(*message.StdReceived, DoneFunc),
	onDone DoneFunc) *StandardCmd {
	return &StandardCmd{
		Base:     Base{Retries: DefaultRetries, OnDone: onDone},
		addr:     msg.To,
		cmd1:     msg.Cmd1,
		callback: callback,
	}
}

// Receive matches the echo and the device reply.
func (h *StandardCmd) Receive(s protocol.Sender, msg message.Message) protocol.Outcome {
	switch m := msg.(type) {
	case *message.StdSend:
		// Echo of our own send; keep waiting for the device.
		if m.To == h.addr && m.Cmd1 == h.cmd1 {
			return protocol.Continue
		}

	case *message.StdReceived:
		if m.From != h.addr || m.Cmd1 != h.cmd1 {
			return protocol.Unknown
		}

		switch m.Flags.Type {
		case insteon.MsgTypeDirectAck:
			if h.callback != nil {
				h.callback(m, h.done)
			} else {
				h.done(nil)
			}
			return protocol.Finished

		case insteon.MsgTypeDirectNak:
			if m.Cmd2 == message.NakPre {
				// The device is still searching its database; it will
				// answer for real later.
				return protocol.Continue
			}
			h.done(fmt.Errorf("%w: %s", ErrDeviceNak, message.NakReason(m.Cmd2)))
			return protocol.Finished
		}
	}
	return protocol.Unknown
}

var _ protocol.Handler = (*StandardCmd)(nil)
