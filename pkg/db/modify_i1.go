package db

import (
	"github.com/insteon-mqtt/insteon-go/pkg/handler"
	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
	"github.com/insteon-mqtt/insteon-go/pkg/message"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

// ModifyManagerI1 writes one record into an I1 device byte by byte.
//
// The only write primitive is poke (0x29), which stores one byte at the
// last peeked address. So each record byte is first peeked (0x2B);
// bytes that already hold the right value are skipped, the rest are
// poked into place. Unused records only need their flag byte cleared,
// which keeps deletes to a single write.
type ModifyManagerI1 struct {
	db     *DeviceDB
	sender protocol.Sender
	onDone handler.DoneFunc

	entry  *DeviceEntry
	record [8]byte
	index  int
	msb    byte
	lsb    byte
}

// NewModifyManagerI1 builds a manager writing entry into the device.
func NewModifyManagerI1(s protocol.Sender, db *DeviceDB, entry *DeviceEntry,
	onDone handler.DoneFunc) *ModifyManagerI1 {
	m := &ModifyManagerI1{
		db:     db,
		sender: s,
		onDone: onDone,
		entry:  entry,
	}
	raw := entry.I1Bytes()
	m.msb = raw[0]
	m.lsb = raw[1]
	copy(m.record[:], raw[2:])
	return m
}

// Start latches the record's MSB and begins the peek/poke walk.
func (m *ModifyManagerI1) Start() {
	m.setMSB(m.msb)
}

func (m *ModifyManagerI1) setMSB(msb byte) {
	m.msb = msb
	msg := message.NewStdSend(m.db.Addr, cmdSetMSB, msb)
	m.sender.Send(msg, handler.NewStandardCmd(msg, m.handleSetMSB, m.finish))
}

func (m *ModifyManagerI1) handleSetMSB(msg *message.StdReceived, done handler.DoneFunc) {
	if msg.Cmd2 != m.msb {
		m.setMSB(m.msb)
		return
	}
	m.peekNext()
}

// peekNext reads the device's current byte at the working index. The
// record's LSB addresses the end of the record, so the byte for index i
// lives at lsb-7+i.
func (m *ModifyManagerI1) peekNext() {
	msg := message.NewStdSend(m.db.Addr, cmdPeek, m.lsb-7+byte(m.index))
	m.sender.Send(msg, handler.NewStandardCmd(msg, m.handlePeek, m.finish))
}

// handlePeek compares the device byte with the target and pokes it if
// it differs.
func (m *ModifyManagerI1) handlePeek(msg *message.StdReceived, done handler.DoneFunc) {
	if msg.Cmd2 != m.record[m.index] {
		m.pokeByte()
		return
	}
	m.advance()
}

// pokeByte writes the target byte at the last peeked address.
func (m *ModifyManagerI1) pokeByte() {
	msg := message.NewStdSend(m.db.Addr, cmdPoke, m.record[m.index])
	m.sender.Send(msg, handler.NewStandardCmd(msg, m.handlePoke, m.finish))
}

func (m *ModifyManagerI1) handlePoke(msg *message.StdReceived, done handler.DoneFunc) {
	if m.db.Delta != nil {
		m.db.SetDelta(*m.db.Delta + 1)
	}
	m.handlePeek(msg, done)
}

// advance moves to the next record byte, or finishes when the record is
// fully written. A record being marked unused only needs the flag byte.
func (m *ModifyManagerI1) advance() {
	if m.index == 0 {
		flags := insteon.RecordFlagsFromByte(m.record[0])
		if !flags.InUse {
			m.db.Add(m.entry)
			m.finish(nil)
			return
		}
	}

	if m.index == 7 {
		m.db.Add(m.entry)
		m.finish(nil)
		return
	}
	m.index++
	m.peekNext()
}

func (m *ModifyManagerI1) finish(err error) {
	if m.onDone == nil {
		return
	}
	done := m.onDone
	m.onDone = nil
	done(err)
}
