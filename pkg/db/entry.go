package db

import (
	"fmt"

	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
	"github.com/insteon-mqtt/insteon-go/pkg/message"
)

// ModemEntry is one record in the modem's all-link database: a linked
// peer, the group the link is for, and the link direction. The modem
// has no record memory locations; records are identified by the
// (addr, group, controller) triple.
type ModemEntry struct {
	Addr       insteon.Address `json:"addr"`
	Group      uint8           `json:"group"`
	Controller bool            `json:"is_controller"`

	// Data carries the 3 link data bytes. The modem ignores them but
	// they are kept so a record round-trips unchanged.
	Data [3]byte `json:"data"`
}

// ModemEntryFromRecord builds an entry from a database dump record.
func ModemEntryFromRecord(m *message.AllLinkRecord) *ModemEntry {
	return &ModemEntry{
		Addr:       m.Addr,
		Group:      m.Group,
		Controller: m.Flags.Controller,
		Data:       m.Data,
	}
}

// Same reports whether two entries denote the same link. Data bytes are
// ignored, matching how the modem itself keys records.
func (e *ModemEntry) Same(addr insteon.Address, group uint8, controller bool) bool {
	return e.Addr == addr && e.Group == group && e.Controller == controller
}

// Less orders entries by address then group, for stable listings.
func (e *ModemEntry) Less(o *ModemEntry) bool {
	if e.Addr != o.Addr {
		return string(e.Addr[:]) < string(o.Addr[:])
	}
	return e.Group < o.Group
}

func (e *ModemEntry) String() string {
	kind := "RESP"
	if e.Controller {
		kind = "CTRL"
	}
	return fmt.Sprintf("%s grp: %3d type: %s data: %#02x %#02x %#02x",
		e.Addr, e.Group, kind, e.Data[0], e.Data[1], e.Data[2])
}

// DeviceEntry is one record in a device's all-link database. Unlike the
// modem, device records live at fixed 8-byte memory locations walked
// downward from the top of the link region.
//
// Link data meaning depends on direction: responder records carry the
// on level and ramp rate in Data[0:2] and the responding button group
// in Data[2]; controller records carry the retry count in Data[0].
type DeviceEntry struct {
	Addr   insteon.Address     `json:"addr"`
	Group  uint8               `json:"group"`
	MemLoc uint16              `json:"mem_loc"`
	Flags  insteon.RecordFlags `json:"db_flags"`
	Data   [3]byte             `json:"data"`
}

// DeviceEntryFromBytes decodes a record from the 14-byte payload of an
// extended database response.
func DeviceEntryFromBytes(data [14]byte) *DeviceEntry {
	e := &DeviceEntry{
		MemLoc: uint16(data[2])<<8 | uint16(data[3]),
		Flags:  insteon.RecordFlagsFromByte(data[5]),
		Group:  data[6],
		Addr:   insteon.AddressFromBytes(data[:], 7),
	}
	copy(e.Data[:], data[10:13])
	return e
}

// DeviceEntryFromI1Bytes decodes a record assembled byte-by-byte from
// an I1 device: the 2-byte memory location followed by the 8-byte
// record.
func DeviceEntryFromI1Bytes(data [10]byte) *DeviceEntry {
	e := &DeviceEntry{
		MemLoc: uint16(data[0])<<8 | uint16(data[1]),
		Flags:  insteon.RecordFlagsFromByte(data[2]),
		Group:  data[3],
		Addr:   insteon.AddressFromBytes(data[:], 4),
	}
	copy(e.Data[:], data[7:10])
	return e
}

// Bytes encodes the entry as the 14-byte payload of an extended
// write-record command.
func (e *DeviceEntry) Bytes() [14]byte {
	var out [14]byte
	out[1] = 0x02 // write record
	out[2] = byte(e.MemLoc >> 8)
	out[3] = byte(e.MemLoc)
	out[4] = 0x08 // record length
	out[5] = e.Flags.Byte()
	out[6] = e.Group
	copy(out[7:10], e.Addr.Bytes())
	copy(out[10:13], e.Data[:])
	return out
}

// I1Bytes encodes the entry as the 2-byte memory location plus the
// 8-byte record, the layout the I1 poke sequence writes.
func (e *DeviceEntry) I1Bytes() [10]byte {
	var out [10]byte
	out[0] = byte(e.MemLoc >> 8)
	out[1] = byte(e.MemLoc)
	out[2] = e.Flags.Byte()
	out[3] = e.Group
	copy(out[4:7], e.Addr.Bytes())
	copy(out[7:10], e.Data[:])
	return out
}

// Copy returns an independent copy of the entry.
func (e *DeviceEntry) Copy() *DeviceEntry {
	c := *e
	return &c
}

// Same reports whether the entry denotes the same link, ignoring data
// bytes and memory location.
func (e *DeviceEntry) Same(addr insteon.Address, group uint8, controller bool) bool {
	return e.Addr == addr && e.Group == group && e.Flags.Controller == controller
}

// Identical reports whether two entries match including their data.
func (e *DeviceEntry) Identical(o *DeviceEntry) bool {
	return e.Same(o.Addr, o.Group, o.Flags.Controller) && e.Data == o.Data
}

// UpdateFrom rewrites the entry in place for a new link, keeping the
// memory location and marking the record in use. Used when an unused
// record is recycled.
func (e *DeviceEntry) UpdateFrom(addr insteon.Address, group uint8,
	controller bool, data [3]byte) {
	e.Addr = addr
	e.Group = group
	e.Flags.InUse = true
	e.Flags.Controller = controller
	e.Data = data
}

func (e *DeviceEntry) String() string {
	kind := "RESP"
	if e.Flags.Controller {
		kind = "CTRL"
	}
	tag := ""
	if !e.Flags.InUse {
		tag = " (UNUSED)"
	}
	if e.Flags.LastRecord {
		tag += " (LAST)"
	}
	return fmt.Sprintf("%04x: %s grp: %3d type: %s data: %#02x %#02x %#02x%s",
		e.MemLoc, e.Addr, e.Group, kind, e.Data[0], e.Data[1], e.Data[2], tag)
}
