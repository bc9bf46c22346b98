package insteon

import "fmt"

// MsgType is the 3-bit message type field in the standard message flags
// byte.
type MsgType uint8

// Message type codes from the Insteon developer guide.
const (
	MsgTypeDirect           MsgType = 0b000
	MsgTypeDirectAck        MsgType = 0b001
	MsgTypeAllLinkCleanup   MsgType = 0b010
	MsgTypeCleanupAck       MsgType = 0b011
	MsgTypeBroadcast        MsgType = 0b100
	MsgTypeDirectNak        MsgType = 0b101
	MsgTypeAllLinkBroadcast MsgType = 0b110
	MsgTypeCleanupNak       MsgType = 0b111
)

// String returns the message type name.
func (t MsgType) String() string {
	switch t {
	case MsgTypeDirect:
		return "direct"
	case MsgTypeDirectAck:
		return "direct-ack"
	case MsgTypeDirectNak:
		return "direct-nak"
	case MsgTypeBroadcast:
		return "broadcast"
	case MsgTypeAllLinkBroadcast:
		return "all-link-broadcast"
	case MsgTypeAllLinkCleanup:
		return "all-link-cleanup"
	case MsgTypeCleanupAck:
		return "cleanup-ack"
	case MsgTypeCleanupNak:
		return "cleanup-nak"
	default:
		return "unknown"
	}
}

// MaxHops is the largest hop count a message flags byte can carry.
const MaxHops = 3

// Flags is the decoded flags byte of a standard or extended message: the
// message type, the extended-message bit and the two hop count fields.
type Flags struct {
	Type     MsgType
	Extended bool
	HopsLeft uint8
	MaxHops  uint8
}

// NewFlags builds a Flags value with the default hop counts (3/3).
func NewFlags(t MsgType, extended bool) Flags {
	return Flags{Type: t, Extended: extended, HopsLeft: MaxHops, MaxHops: MaxHops}
}

// FlagsFromByte decodes a raw flags byte.
func FlagsFromByte(b byte) Flags {
	return Flags{
		Type:     MsgType(b >> 5),
		Extended: b&0b0001_0000 != 0,
		HopsLeft: (b & 0b0000_1100) >> 2,
		MaxHops:  b & 0b0000_0011,
	}
}

// Byte encodes the flags back into their wire form.
func (f Flags) Byte() byte {
	b := byte(f.Type) << 5
	if f.Extended {
		b |= 0b0001_0000
	}
	b |= (f.HopsLeft & 0b11) << 2
	b |= f.MaxHops & 0b11
	return b
}

// WithHops returns a copy with both hop fields set to n, clamped to MaxHops.
// Retried sends bump the hop count to give the message a better chance of
// crossing a noisy power line.
func (f Flags) WithHops(n uint8) Flags {
	if n > MaxHops {
		n = MaxHops
	}
	f.HopsLeft = n
	f.MaxHops = n
	return f
}

// IsNak reports whether the type is one of the NAK variants.
func (f Flags) IsNak() bool {
	return f.Type == MsgTypeDirectNak || f.Type == MsgTypeCleanupNak
}

// IsBroadcast reports whether the type is an all-link broadcast.
func (f Flags) IsBroadcast() bool {
	return f.Type == MsgTypeAllLinkBroadcast
}

// Equal compares two flags ignoring the hop count fields. Two copies of the
// same message relayed with different hop counts are the same message.
func (f Flags) Equal(o Flags) bool {
	return f.Type == o.Type && f.Extended == o.Extended
}

// String returns a short human form like "direct mh:3 hl:1".
func (f Flags) String() string {
	ext := ""
	if f.Extended {
		ext = " ext"
	}
	return fmt.Sprintf("%s%s mh:%d hl:%d", f.Type, ext, f.MaxHops, f.HopsLeft)
}
