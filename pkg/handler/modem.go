package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
	"github.com/insteon-mqtt/insteon-go/pkg/message"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

// Modem-level errors.
var (
	// ErrModemNak indicates the modem NAK'd a command it should have
	// accepted, usually because it is disconnected from the power line.
	ErrModemNak = errors.New("modem NAK")

	// ErrLinkingCancelled indicates linking mode was cancelled before a
	// device paired.
	ErrLinkingCancelled = errors.New("linking cancelled")
)

// LinkingTimeout is how long the modem stays in linking mode waiting
// for a device set button press before the session is cancelled.
const LinkingTimeout = 60 * time.Second

// ModemInfo waits for the modem's identity reply to a get-info request.
type ModemInfo struct {
	Base

	callback func(*message.ModemInfo)
}

// NewModemInfo builds the handler. callback receives the modem's
// address and firmware report.
func NewModemInfo(callback func(*message.ModemInfo), onDone DoneFunc) *ModemInfo {
	return &ModemInfo{
		Base:     Base{Retries: DefaultRetries, OnDone: onDone},
		callback: callback,
	}
}

// Receive matches the get-info reply.
func (h *ModemInfo) Receive(s protocol.Sender, msg message.Message) protocol.Outcome {
	m, ok := msg.(*message.ModemInfo)
	if !ok {
		return protocol.Unknown
	}
	if m.Ack != message.AckOK {
		h.done(fmt.Errorf("%w: get info", ErrModemNak))
		return protocol.Finished
	}
	if h.callback != nil {
		h.callback(m)
	}
	h.done(nil)
	return protocol.Finished
}

// ModemReset waits for the factory reset command ack. It also accepts
// the unsolicited user-reset report the modem sends when its own set
// button sequence wipes the database, so it can double as a read
// handler. clear runs once the reset is confirmed and must erase the
// local copy of the modem database.
type ModemReset struct {
	Base

	clear func()
}

// NewModemReset builds the handler.
func NewModemReset(clear func(), onDone DoneFunc) *ModemReset {
	return &ModemReset{
		Base:  Base{Retries: DefaultRetries, OnDone: onDone},
		clear: clear,
	}
}

// Receive matches the reset ack or a set button reset report.
func (h *ModemReset) Receive(s protocol.Sender, msg message.Message) protocol.Outcome {
	switch m := msg.(type) {
	case *message.ResetModem:
		if m.Ack != message.AckOK {
			h.done(fmt.Errorf("%w: factory reset", ErrModemNak))
			return protocol.Finished
		}
		h.wiped()
		return protocol.Finished

	case *message.UserReset:
		h.wiped()
		return protocol.Finished
	}
	return protocol.Unknown
}

func (h *ModemReset) wiped() {
	if h.clear != nil {
		h.clear()
	}
	h.done(nil)
}

// LinkStart waits for the ack of a start-linking or cancel-linking
// command. Completion of the pairing itself is reported separately; see
// LinkComplete and Linking.
type LinkStart struct {
	Base
}

// NewLinkStart builds the handler.
func NewLinkStart(onDone DoneFunc) *LinkStart {
	return &LinkStart{Base: Base{Retries: DefaultRetries, OnDone: onDone}}
}

// Receive matches the linking mode ack.
func (h *LinkStart) Receive(s protocol.Sender, msg message.Message) protocol.Outcome {
	switch m := msg.(type) {
	case *message.StartLinking:
		if m.Ack != message.AckOK {
			h.done(fmt.Errorf("%w: start linking", ErrModemNak))
		} else {
			h.done(nil)
		}
		return protocol.Finished

	case *message.CancelLinking:
		if m.Ack != message.AckOK {
			h.done(fmt.Errorf("%w: cancel linking", ErrModemNak))
		} else {
			h.done(nil)
		}
		return protocol.Finished
	}
	return protocol.Unknown
}

// LinkComplete is a persistent read handler for pairing reports. The
// modem emits one whenever linking mode completes, including sessions
// started by the physical set button, so this stays installed for the
// life of the connection and forwards every report.
type LinkComplete struct {
	Base

	callback func(*message.AllLinkComplete)
}

// NewLinkComplete builds the read handler.
func NewLinkComplete(callback func(*message.AllLinkComplete)) *LinkComplete {
	return &LinkComplete{callback: callback}
}

// Receive forwards pairing reports and stays installed.
func (h *LinkComplete) Receive(s protocol.Sender, msg message.Message) protocol.Outcome {
	m, ok := msg.(*message.AllLinkComplete)
	if !ok {
		return protocol.Unknown
	}
	if h.callback != nil {
		h.callback(m)
	}
	return protocol.Continue
}

// Linking runs a full modem linking session: it consumes the
// start-linking ack, then waits up to LinkingTimeout for a device to
// pair. If nothing pairs in time it cancels linking mode so the modem
// does not sit open indefinitely.
type Linking struct {
	Base

	sender   protocol.Sender
	callback func(*message.AllLinkComplete)
}

// NewLinking builds the session handler. s is used to send the cancel
// command if the session times out; callback receives the pairing
// report on success.
func NewLinking(s protocol.Sender, callback func(*message.AllLinkComplete),
	onDone DoneFunc) *Linking {
	return &Linking{
		Base:     Base{Timeout: LinkingTimeout, OnDone: onDone},
		sender:   s,
		callback: callback,
	}
}

// Receive runs the session.
func (h *Linking) Receive(s protocol.Sender, msg message.Message) protocol.Outcome {
	switch m := msg.(type) {
	case *message.StartLinking:
		if m.Ack != message.AckOK {
			h.done(fmt.Errorf("%w: start linking", ErrModemNak))
			return protocol.Finished
		}
		return protocol.Continue

	case *message.CancelLinking:
		h.done(ErrLinkingCancelled)
		return protocol.Finished

	case *message.AllLinkComplete:
		if h.callback != nil {
			h.callback(m)
		}
		h.done(nil)
		return protocol.Finished
	}
	return protocol.Unknown
}

// Failed cancels linking mode before resolving, so a timed out session
// does not leave the modem open to pair with the next random press.
func (h *Linking) Failed(err error) {
	if errors.Is(err, protocol.ErrTimeout) && h.sender != nil {
		h.sender.SendHighPriority(&message.CancelLinking{}, NewLinkStart(nil))
	}
	h.Base.Failed(err)
}

// Scene runs a modem scene broadcast: the modem acks the command,
// responders ack their cleanups one by one, and a final status report
// closes the scene. Responder cleanups on other groups are left for
// other handlers. A NAK'd status report is not final; the modem retries
// the broadcast on its own, so the handler keeps waiting for the real
// one.
type Scene struct {
	Base

	group uint8

	// onCleanup is called for each responder that acks the scene.
	onCleanup func(*message.StdReceived)
}

// NewScene builds the handler for msg.
func NewScene(msg *message.ModemScene, onCleanup func(*message.StdReceived),
	onDone DoneFunc) *Scene {
	return &Scene{
		Base:      Base{Retries: DefaultRetries, OnDone: onDone},
		group:     msg.Group,
		onCleanup: onCleanup,
	}
}

// Receive matches the scene ack, responder cleanups, and the closing
// status report.
func (h *Scene) Receive(s protocol.Sender, msg message.Message) protocol.Outcome {
	switch m := msg.(type) {
	case *message.ModemScene:
		if m.Ack != message.AckOK {
			h.done(fmt.Errorf("%w: scene group %d", ErrModemNak, h.group))
			return protocol.Finished
		}
		return protocol.Continue

	case *message.StdReceived:
		switch m.Flags.Type {
		case insteon.MsgTypeCleanupAck:
			if m.Group() != int(h.group) {
				return protocol.Unknown
			}
			if h.onCleanup != nil {
				h.onCleanup(m)
			}
			return protocol.Continue

		case insteon.MsgTypeCleanupNak:
			// Cleanup NAKs carry no usable group; keep waiting for the
			// status report to learn the outcome.
			return protocol.Continue
		}

	case *message.AllLinkFailure:
		if m.Group != h.group {
			return protocol.Unknown
		}
		return protocol.Continue

	case *message.AllLinkStatus:
		if m.Ack != message.AckOK {
			return protocol.Continue
		}
		h.done(nil)
		return protocol.Finished
	}
	return protocol.Unknown
}

var (
	_ protocol.Handler = (*ModemInfo)(nil)
	_ protocol.Handler = (*ModemReset)(nil)
	_ protocol.Handler = (*LinkStart)(nil)
	_ protocol.Handler = (*LinkComplete)(nil)
	_ protocol.Handler = (*Linking)(nil)
	_ protocol.Handler = (*Scene)(nil)
)
