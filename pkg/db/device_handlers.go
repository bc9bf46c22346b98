package db

import (
	"fmt"

	"github.com/insteon-mqtt/insteon-go/pkg/handler"
	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
	"github.com/insteon-mqtt/insteon-go/pkg/message"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

// Database access command for I2 and newer devices.
const cmdReadWriteALDB = 0x2f

// I1 peek and poke commands used for byte-level database access.
const (
	cmdSetMSB = 0x28
	cmdPoke   = 0x29
	cmdPeek   = 0x2b
)

// DeviceDBGet downloads a device's all-link database. Send it with an
// all-zero extended 0x2F request; the device acks and then streams one
// extended record per database slot, ending with the high-water record.
//
// Once the stream starts the device is the only side talking. Nothing
// can be retried at that point, so the ack drops the retransmit budget
// and doubles the wait instead.
type DeviceDBGet struct {
	handler.Base

	db *DeviceDB
}

// NewDeviceDBGet builds the handler filling db.
func NewDeviceDBGet(db *DeviceDB, onDone handler.DoneFunc) *DeviceDBGet {
	return &DeviceDBGet{
		Base: handler.Base{Retries: handler.DefaultRetries, OnDone: onDone},
		db:   db,
	}
}

// DeviceDBGetMsg builds the extended request asking addr to stream its
// whole database.
func DeviceDBGetMsg(addr insteon.Address) *message.ExtSend {
	return message.NewExtSend(addr, cmdReadWriteALDB, 0x00, nil)
}

// Receive consumes the request echo, the device ack, and the record
// stream.
func (h *DeviceDBGet) Receive(s protocol.Sender, msg message.Message) protocol.Outcome {
	switch m := msg.(type) {
	case *message.StdSend:
		if m.To == h.db.Addr && m.Cmd1 == cmdReadWriteALDB {
			return protocol.Continue
		}

	case *message.ExtSend:
		if m.To == h.db.Addr && m.Cmd1 == cmdReadWriteALDB {
			return protocol.Continue
		}

	case *message.StdReceived:
		if m.From != h.db.Addr || m.Cmd1 != cmdReadWriteALDB {
			return protocol.Unknown
		}

		switch m.Flags.Type {
		case insteon.MsgTypeDirectAck:
			h.StopRetry()
			h.Timeout = 2 * handler.DefaultTimeout
			return protocol.Continue

		case insteon.MsgTypeDirectNak:
			if m.Cmd2 == message.NakPre {
				return protocol.Continue
			}
			h.Done(fmt.Errorf("%w: %s get: %s", ErrDbUpdate, h.db.Addr,
				message.NakReason(m.Cmd2)))
			return protocol.Finished
		}

	case *message.ExtReceived:
		if m.From != h.db.Addr || m.Cmd1 != cmdReadWriteALDB {
			return protocol.Unknown
		}

		entry := DeviceEntryFromBytes(m.Data)
		if entry.MemLoc != 0 {
			h.db.Add(entry)
		}
		if entry.Flags.LastRecord {
			h.Done(nil)
			return protocol.Finished
		}
		return protocol.Continue
	}
	return protocol.Unknown
}

// deviceDBUpdate is a queued follow-up write in a modify chain.
type deviceDBUpdate struct {
	msg   *message.ExtSend
	entry *DeviceEntry
}

// DeviceDBModify writes one record to an I2 or newer device with an
// extended 0x2F command and mirrors the confirmed write into the local
// database. Follow-up writes queued with AddUpdate run after the
// current one acks, sharing this handler.
type DeviceDBModify struct {
	handler.Base

	db    *DeviceDB
	entry *DeviceEntry

	next []deviceDBUpdate
}

// NewDeviceDBModify builds the handler for a write whose confirmed
// result is entry.
func NewDeviceDBModify(db *DeviceDB, entry *DeviceEntry,
	onDone handler.DoneFunc) *DeviceDBModify {
	return &DeviceDBModify{
		Base:  handler.Base{Retries: handler.DefaultRetries, OnDone: onDone},
		db:    db,
		entry: entry,
	}
}

// DeviceDBWriteMsg builds the extended command writing entry into the
// device.
func DeviceDBWriteMsg(addr insteon.Address, entry *DeviceEntry) *message.ExtSend {
	data := entry.Bytes()
	return message.NewExtSend(addr, cmdReadWriteALDB, 0x00, data[:])
}

// AddUpdate queues a follow-up write to run once the current one acks.
func (h *DeviceDBModify) AddUpdate(msg *message.ExtSend, entry *DeviceEntry) {
	h.next = append(h.next, deviceDBUpdate{msg: msg, entry: entry})
}

// Receive consumes the write echo and the device's ack.
func (h *DeviceDBModify) Receive(s protocol.Sender, msg message.Message) protocol.Outcome {
	switch m := msg.(type) {
	case *message.ExtSend:
		if m.To != h.db.Addr || m.Cmd1 != cmdReadWriteALDB {
			return protocol.Unknown
		}
		return protocol.Continue

	case *message.StdReceived:
		if m.From != h.db.Addr || m.Cmd1 != cmdReadWriteALDB {
			return protocol.Unknown
		}

		switch m.Flags.Type {
		case insteon.MsgTypeDirectAck:
			h.db.Add(h.entry)
			if h.db.Delta != nil {
				h.db.SetDelta(*h.db.Delta + 1)
			}
			if len(h.next) > 0 {
				up := h.next[0]
				h.next = h.next[1:]
				h.entry = up.entry
				s.Send(up.msg, h)
			} else {
				h.Done(nil)
			}
			return protocol.Finished

		case insteon.MsgTypeDirectNak:
			if m.Cmd2 == message.NakPre {
				return protocol.Continue
			}
			h.Done(fmt.Errorf("%w: %s write: %s", ErrDbUpdate, h.db.Addr,
				message.NakReason(m.Cmd2)))
			return protocol.Finished
		}
	}
	return protocol.Unknown
}

var (
	_ protocol.Handler = (*DeviceDBGet)(nil)
	_ protocol.Handler = (*DeviceDBModify)(nil)
)
