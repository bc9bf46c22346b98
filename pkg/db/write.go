package db

import (
	"github.com/insteon-mqtt/insteon-go/pkg/cmdseq"
	"github.com/insteon-mqtt/insteon-go/pkg/handler"
	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
	"github.com/insteon-mqtt/insteon-go/pkg/log"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

// AddOnDevice pushes a new link record to the device and, once the
// device confirms it, mirrors it locally. Existing unused slots are
// recycled before the database is grown. Calls must not overlap; chain
// them with a cmdseq.Seq.
func (db *DeviceDB) AddOnDevice(s protocol.Sender, addr insteon.Address,
	group uint8, controller bool, data [3]byte, onDone handler.DoneFunc) {
	entry := db.Find(addr, group, controller, int(data[2]))

	switch {
	case entry != nil && entry.Data == data:
		// Nothing to write.
		if onDone != nil {
			onDone(nil)
		}
		return

	case entry != nil:
		// Same link, different data bytes; rewrite it in place.
		entry = entry.Copy()
		entry.UpdateFrom(addr, group, controller, data)
		db.writeEntry(s, entry, onDone)
		return
	}

	if unused := db.Unused(); len(unused) > 0 {
		// Recycle the highest unused slot.
		entry = unused[0].Copy()
		entry.UpdateFrom(addr, group, controller, data)
		db.writeEntry(s, entry, onDone)
		return
	}

	db.appendEntry(s, addr, group, controller, data, onDone)
}

// appendEntry grows the database: the high-water record moves down one
// slot first, then the new record is written at the old high-water
// location. In that order a failure between the two writes leaves the
// database terminated either way.
func (db *DeviceDB) appendEntry(s protocol.Sender, addr insteon.Address,
	group uint8, controller bool, data [3]byte, onDone handler.DoneFunc) {
	last := db.Last().Copy()
	last.MemLoc -= EntrySize

	entry := &DeviceEntry{
		Addr:   addr,
		Group:  group,
		MemLoc: db.Last().MemLoc,
		Flags:  insteon.RecordFlags{InUse: true, Controller: controller},
		Data:   data,
	}

	seq := cmdseq.New(s, log.NoopLogger{}, "db-append", onDone)
	seq.Add(func(done handler.DoneFunc) { db.writeEntry(s, last, done) })
	seq.Add(func(done handler.DoneFunc) { db.writeEntry(s, entry, done) })
	seq.Run()
}

// DeleteOnDevice removes a link record from the device by rewriting it
// with the in-use flag cleared, leaving an unused slot for later adds.
func (db *DeviceDB) DeleteOnDevice(s protocol.Sender, entry *DeviceEntry,
	onDone handler.DoneFunc) {
	erased := entry.Copy()
	erased.Flags.InUse = false
	db.writeEntry(s, erased, onDone)
}

// writeEntry sends one record write using the strategy for the device's
// generation.
func (db *DeviceDB) writeEntry(s protocol.Sender, entry *DeviceEntry,
	onDone handler.DoneFunc) {
	if db.EngineVersion == 0 {
		NewModifyManagerI1(s, db, entry, onDone).Start()
		return
	}
	h := NewDeviceDBModify(db, entry, onDone)
	s.Send(DeviceDBWriteMsg(db.Addr, entry), h)
}
