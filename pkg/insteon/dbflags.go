package insteon

import "fmt"

// RecordFlags is the decoded control byte of an all-link database record.
type RecordFlags struct {
	// InUse is false for records that have been deleted and may be reused.
	InUse bool

	// Controller is true when the device holding the record controls the
	// linked peer, false when it responds to it.
	Controller bool

	// LastRecord is true for the high-water record that terminates a
	// device database dump. The wire bit is inverted: high-water clear
	// means last record.
	LastRecord bool
}

// RecordFlagsFromByte decodes a record control byte.
func RecordFlagsFromByte(b byte) RecordFlags {
	return RecordFlags{
		InUse:      b&0b1000_0000 != 0,
		Controller: b&0b0100_0000 != 0,
		LastRecord: b&0b0000_0010 == 0,
	}
}

// Byte encodes the flags into their wire form.
//
// Bit 5 is documented as unused but real devices reject database writes
// without it, so it is always set.
func (f RecordFlags) Byte() byte {
	var b byte
	if f.InUse {
		b |= 0b1000_0000
	}
	if f.Controller {
		b |= 0b0100_0000
	}
	if !f.LastRecord {
		b |= 0b0000_0010
	}
	b |= 0b0010_0000
	return b
}

// ModemDeleteByte encodes the flags for a modem database delete command,
// which requires the unused bit clear.
func (f RecordFlags) ModemDeleteByte() byte {
	return f.Byte() &^ 0b0010_0000
}

// String returns a short human form.
func (f RecordFlags) String() string {
	kind := "RESP"
	if f.Controller {
		kind = "CTRL"
	}
	return fmt.Sprintf("in_use: %t type: %s last: %t", f.InUse, kind, f.LastRecord)
}
