package db

import (
	"errors"

	"github.com/insteon-mqtt/insteon-go/pkg/handler"
	"github.com/insteon-mqtt/insteon-go/pkg/message"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

// ErrDbIncomplete indicates a scan finished without reaching the
// high-water record.
var ErrDbIncomplete = errors.New("database incomplete")

// ScanManagerI2 fills the holes in an I2 device database by requesting
// individual records. A full download streams records without
// confirmation, so a noisy line can drop some; this walks the memory
// locations downward and requests only the ones the database is
// missing, one extended read at a time.
type ScanManagerI2 struct {
	db     *DeviceDB
	sender protocol.Sender
	onDone handler.DoneFunc

	memAddr uint16
	sawLast bool
}

// NewScanManagerI2 builds a manager scanning from the top of the link
// region.
func NewScanManagerI2(s protocol.Sender, db *DeviceDB,
	onDone handler.DoneFunc) *ScanManagerI2 {
	return &ScanManagerI2{
		db:      db,
		sender:  s,
		onDone:  onDone,
		memAddr: StartMemLoc,
	}
}

// Start requests the first missing record.
func (m *ScanManagerI2) Start() {
	m.requestNext()
}

// requestNext walks to the next missing location and asks the device
// for it. If the walk reaches a record matching the high-water marker
// the database is complete.
func (m *ScanManagerI2) requestNext() {
	if m.sawLast || m.skipKnown() {
		m.finish(nil)
		return
	}

	if m.memAddr < EntrySize {
		m.finish(ErrDbIncomplete)
		return
	}

	data := []byte{
		0x00,
		0x00, // record request
		byte(m.memAddr >> 8),
		byte(m.memAddr),
		0x01, // read one record
	}
	msg := message.NewExtSend(m.db.Addr, cmdReadWriteALDB, 0x00, data)
	h := handler.NewExtendedCmdResponse(m.db.Addr, cmdReadWriteALDB,
		m.handleRecord, m.stepDone)
	m.sender.Send(msg, h)
}

// skipKnown advances past locations the database already holds. It
// reports true when the high-water record has been reached.
func (m *ScanManagerI2) skipKnown() bool {
	for {
		entry := m.db.FindMemLoc(m.memAddr)
		if entry == nil {
			return false
		}
		if m.db.Last().Identical(entry) {
			return true
		}
		m.memAddr -= EntrySize
	}
}

// handleRecord stores one requested record and continues the walk.
func (m *ScanManagerI2) handleRecord(msg *message.ExtReceived, done handler.DoneFunc) {
	entry := DeviceEntryFromBytes(msg.Data)
	if entry.MemLoc != 0 {
		m.db.Add(entry)
	}
	// The high-water record only lands in the last marker, so remember
	// seeing it; the location walk cannot find it.
	if entry.Flags.LastRecord {
		m.sawLast = true
	}
	done(nil)
}

// stepDone runs after each record request resolves.
func (m *ScanManagerI2) stepDone(err error) {
	if err != nil {
		m.finish(err)
		return
	}
	m.requestNext()
}

func (m *ScanManagerI2) finish(err error) {
	if m.onDone == nil {
		return
	}
	done := m.onDone
	m.onDone = nil
	done(err)
}
