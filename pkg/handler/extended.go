package handler

import (
	"fmt"

	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
	"github.com/insteon-mqtt/insteon-go/pkg/message"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

// ExtendedCmdResponse handles a command whose real answer is an extended
// payload: the device first sends a DIRECT_ACK, then streams the
// extended reply. Used for device database reads and operating-flag
// queries.
type ExtendedCmdResponse struct {
	Base

	addr insteon.Address
	cmd1 byte

	// callback consumes the extended payload reply.
	callback func(msg *message.ExtReceived, done DoneFunc)
}

// NewExtendedCmdResponse builds the handler for a send to addr with
// command cmd1. Both standard and extended sends can ask for an extended
// response.
func NewExtendedCmdResponse(addr insteon.Address, cmd1 byte,
	callback func(*message.ExtReceived, DoneFunc), onDone DoneFunc) *ExtendedCmdResponse {
	return &ExtendedCmdResponse{
		Base:     Base{Retries: DefaultRetries, OnDone: onDone},
		addr:     addr,
		cmd1:     cmd1,
		callback: callback,
	}
}

// Receive matches the echo, the device's DIRECT_ACK, and finally the
// extended payload.
func (h *ExtendedCmdResponse) Receive(s protocol.Sender, msg message.Message) protocol.Outcome {
	switch m := msg.(type) {
	case *message.StdSend:
		if m.To == h.addr && m.Cmd1 == h.cmd1 {
			return protocol.Continue
		}

	case *message.ExtSend:
		if m.To == h.addr && m.Cmd1 == h.cmd1 {
			return protocol.Continue
		}

	case *message.StdReceived:
		if m.From != h.addr || m.Cmd1 != h.cmd1 {
			return protocol.Unknown
		}

		switch m.Flags.Type {
		case insteon.MsgTypeDirectAck:
			// The payload follows in an extended message.
			return protocol.Continue

		case insteon.MsgTypeDirectNak:
			if m.Cmd2 == message.NakPre {
				return protocol.Continue
			}
			h.done(fmt.Errorf("%w: %s", ErrDeviceNak, message.NakReason(m.Cmd2)))
			return protocol.Finished
		}

	case *message.ExtReceived:
		if m.From == h.addr && m.Cmd1 == h.cmd1 {
			if h.callback != nil {
				h.callback(m, h.done)
			} else {
				h.done(nil)
			}
			return protocol.Finished
		}
	}
	return protocol.Unknown
}

var _ protocol.Handler = (*ExtendedCmdResponse)(nil)
