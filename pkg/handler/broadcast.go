package handler

import (
	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
	"github.com/insteon-mqtt/insteon-go/pkg/message"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

// Broadcastee consumes unsolicited broadcasts for one device.
type Broadcastee interface {
	HandleBroadcast(msg *message.StdReceived)
}

// Broadcast routes unsolicited all-link broadcasts to the device that
// sent them. It is registered as a read handler, not attached to any
// send.
//
// A scene trigger arrives twice: first as the all-link broadcast, then
// as a cleanup addressed to the modem. The broadcast is the trigger; the
// matching cleanup is swallowed so the scene does not fire twice, but a
// cleanup whose broadcast was lost still fires it.
type Broadcast struct {
	Base

	// Find looks up the device for a source address, or nil when the
	// address is unknown.
	Find func(addr insteon.Address) Broadcastee

	last *message.StdReceived
}

// NewBroadcast builds the router around a device lookup.
func NewBroadcast(find func(insteon.Address) Broadcastee) *Broadcast {
	return &Broadcast{Find: find}
}

// Receive routes broadcasts and their cleanups.
func (h *Broadcast) Receive(s protocol.Sender, msg message.Message) protocol.Outcome {
	m, ok := msg.(*message.StdReceived)
	if !ok {
		return protocol.Unknown
	}

	switch m.Flags.Type {
	case insteon.MsgTypeAllLinkBroadcast:
		h.last = m
		return h.process(m)

	case insteon.MsgTypeAllLinkCleanup:
		if h.shouldProcess(m) {
			return h.process(m)
		}
		h.last = nil
		return protocol.Continue
	}
	return protocol.Unknown
}

func (h *Broadcast) process(m *message.StdReceived) protocol.Outcome {
	if h.Find == nil {
		return protocol.Unknown
	}
	dev := h.Find(m.From)
	if dev == nil {
		return protocol.Unknown
	}
	dev.HandleBroadcast(m)
	return protocol.Continue
}

// shouldProcess reports whether a cleanup should fire the scene: only
// when its broadcast was not already seen.
func (h *Broadcast) shouldProcess(m *message.StdReceived) bool {
	if h.last == nil {
		return true
	}
	return h.last.From != m.From ||
		h.last.Group() != m.Group() ||
		h.last.Cmd1 != m.Cmd1
}

var _ protocol.Handler = (*Broadcast)(nil)
