package db

import (
	"github.com/insteon-mqtt/insteon-go/pkg/handler"
	"github.com/insteon-mqtt/insteon-go/pkg/message"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

// ScanManagerI1 downloads the link database of an original I1 device.
//
// I1 devices have no extended database commands, only standard-length
// peeks returning one byte each. The manager sets the address MSB
// (0x28), then peeks LSBs (0x2B) until 8 bytes of a record are
// assembled. Peek replies carry no address, so the manager trusts that
// each reply answers the most recent request; the single-outstanding
// write discipline is what makes that assumption hold. The scan stops
// at the record carrying the high-water flag.
type ScanManagerI1 struct {
	db     *DeviceDB
	sender protocol.Sender
	onDone handler.DoneFunc

	record []byte
	msb    uint8
	lsb    int
}

// NewScanManagerI1 builds a manager scanning from the top of the link
// region.
func NewScanManagerI1(s protocol.Sender, db *DeviceDB,
	onDone handler.DoneFunc) *ScanManagerI1 {
	return &ScanManagerI1{
		db:     db,
		sender: s,
		onDone: onDone,
		lsb:    0xf8,
	}
}

// Start begins the scan at the top of the link region.
func (m *ScanManagerI1) Start() {
	m.setMSB(byte(StartMemLoc >> 8))
}

// setMSB latches the address high byte in the device.
func (m *ScanManagerI1) setMSB(msb byte) {
	m.msb = msb
	msg := message.NewStdSend(m.db.Addr, cmdSetMSB, msb)
	m.sender.Send(msg, handler.NewStandardCmd(msg, m.handleSetMSB, m.finish))
}

// handleSetMSB verifies the latched MSB and starts peeking bytes. A
// mismatched ack means the device latched something else; latch again.
func (m *ScanManagerI1) handleSetMSB(msg *message.StdReceived, done handler.DoneFunc) {
	if msg.Cmd2 != m.msb {
		m.setMSB(m.msb)
		return
	}
	m.peekNext()
}

// peekNext requests the byte at the current LSB.
func (m *ScanManagerI1) peekNext() {
	msg := message.NewStdSend(m.db.Addr, cmdPeek, byte(m.lsb))
	m.sender.Send(msg, handler.NewStandardCmd(msg, m.handlePeek, m.finish))
}

// handlePeek collects one record byte. Once 8 bytes are in, the record
// is decoded and the walk jumps down to the next record.
func (m *ScanManagerI1) handlePeek(msg *message.StdReceived, done handler.DoneFunc) {
	m.record = append(m.record, msg.Cmd2)

	if len(m.record) == 8 {
		var raw [10]byte
		raw[0] = m.msb
		raw[1] = byte(m.lsb)
		copy(raw[2:], m.record)
		entry := DeviceEntryFromI1Bytes(raw)
		m.db.Add(entry)
		m.record = m.record[:0]

		if entry.Flags.LastRecord {
			m.finish(nil)
			return
		}

		// Jump to the start of the next record down.
		m.lsb -= 0x0f
	} else {
		m.lsb++
	}

	if m.lsb < 0 {
		m.lsb = 0xf8
		m.msb--
		m.setMSB(m.msb)
		return
	}
	m.peekNext()
}

func (m *ScanManagerI1) finish(err error) {
	if m.onDone == nil {
		return
	}
	done := m.onDone
	m.onDone = nil
	done(err)
}
