package message

import (
	"fmt"
	"time"

	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
)

// Hop transit times used to compute duplicate-detection windows. The
// values are empirical and match what other Insteon software uses.
const (
	stdHopTime = 87 * time.Millisecond
	extHopTime = 183 * time.Millisecond
)

// NAK reason codes reported in cmd2 of a DIRECT_NAK reply.
const (
	NakNotInDB     = 0xff
	NakNoLoad      = 0xfe
	NakBadChecksum = 0xfd
	NakPre         = 0xfc
	NakIllegal     = 0xfb
)

// NakReason explains a DIRECT_NAK cmd2 value in human terms.
func NakReason(cmd2 byte) string {
	switch cmd2 {
	case NakNotInDB:
		return "Sender device not in responder database. Must link the device as a responder"
	case NakNoLoad:
		return "No load detected"
	case NakBadChecksum:
		return "Invalid checksum. Check the message contents"
	case NakPre:
		return "Pre NAK in case database search takes too long"
	case NakIllegal:
		return "Illegal value in command"
	default:
		return fmt.Sprintf("Unknown NAK reason %#02x", cmd2)
	}
}

// groupOf extracts the all-link group carried by a received direct
// message, or -1 when the message type carries none. Broadcasts encode
// the group in the low byte of the to address; cleanup messages carry it
// in cmd2.
func groupOf(flags insteon.Flags, to insteon.Address, cmd2 byte) int {
	switch {
	case flags.IsBroadcast():
		return int(to.Group())
	case flags.Type == insteon.MsgTypeAllLinkCleanup ||
		flags.Type == insteon.MsgTypeCleanupAck:
		return int(cmd2)
	}
	return -1
}

// StdReceived is a modem-to-host 0x50 frame: a standard-length message
// arriving from the network.
type StdReceived struct {
	From  insteon.Address
	To    insteon.Address
	Flags insteon.Flags
	Cmd1  byte
	Cmd2  byte

	// Expire is the latest time a retransmitted hop of this message can
	// still arrive. Copies seen before it are duplicates.
	Expire time.Time
}

func decodeStdReceived(buf []byte) (Message, error) {
	m := &StdReceived{
		From:  insteon.AddressFromBytes(buf, 2),
		To:    insteon.AddressFromBytes(buf, 5),
		Flags: insteon.FlagsFromByte(buf[8]),
		Cmd1:  buf[9],
		Cmd2:  buf[10],
	}
	m.Expire = time.Now().Add(time.Duration(m.Flags.HopsLeft) * stdHopTime)
	return m, nil
}

// Code returns 0x50.
func (m *StdReceived) Code() byte { return CodeStdReceived }

// Marshal reassembles the received frame without the expiry metadata.
func (m *StdReceived) Marshal() []byte {
	out := make([]byte, 0, 11)
	out = append(out, StartByte, CodeStdReceived)
	out = append(out, m.From.Bytes()...)
	out = append(out, m.To.Bytes()...)
	out = append(out, m.Flags.Byte(), m.Cmd1, m.Cmd2)
	return out
}

// Group returns the all-link group of the message, or -1 if the message
// type does not carry one.
func (m *StdReceived) Group() int { return groupOf(m.Flags, m.To, m.Cmd2) }

// Duplicate reports whether other is a retransmitted hop of this
// message. Hop counts are ignored.
func (m *StdReceived) Duplicate(other *StdReceived) bool {
	return m.From == other.From &&
		m.Flags.Equal(other.Flags) &&
		m.Group() == other.Group() &&
		m.Cmd1 == other.Cmd1 &&
		m.Cmd2 == other.Cmd2
}

func (m *StdReceived) String() string {
	if g := m.Group(); g >= 0 {
		return fmt.Sprintf("Std: %s %s grp: %02x cmd: %02x %02x",
			m.From, m.Flags, g, m.Cmd1, m.Cmd2)
	}
	return fmt.Sprintf("Std: %s->%s %s cmd: %02x %02x",
		m.From, m.To, m.Flags, m.Cmd1, m.Cmd2)
}

// ExtReceived is a modem-to-host 0x51 frame: an extended-length message
// with a 14-byte data payload arriving from the network.
type ExtReceived struct {
	From  insteon.Address
	To    insteon.Address
	Flags insteon.Flags
	Cmd1  byte
	Cmd2  byte
	Data  [14]byte

	// Expire is the latest time a retransmitted hop of this message can
	// still arrive.
	Expire time.Time
}

func decodeExtReceived(buf []byte) (Message, error) {
	m := &ExtReceived{
		From:  insteon.AddressFromBytes(buf, 2),
		To:    insteon.AddressFromBytes(buf, 5),
		Flags: insteon.FlagsFromByte(buf[8]),
		Cmd1:  buf[9],
		Cmd2:  buf[10],
	}
	copy(m.Data[:], buf[11:25])
	m.Expire = time.Now().Add(time.Duration(m.Flags.HopsLeft) * extHopTime)
	return m, nil
}

// Code returns 0x51.
func (m *ExtReceived) Code() byte { return CodeExtReceived }

// Marshal reassembles the received frame without the expiry metadata.
func (m *ExtReceived) Marshal() []byte {
	out := make([]byte, 0, 25)
	out = append(out, StartByte, CodeExtReceived)
	out = append(out, m.From.Bytes()...)
	out = append(out, m.To.Bytes()...)
	out = append(out, m.Flags.Byte(), m.Cmd1, m.Cmd2)
	out = append(out, m.Data[:]...)
	return out
}

// Group returns the all-link group of the message, or -1 if the message
// type does not carry one.
func (m *ExtReceived) Group() int { return groupOf(m.Flags, m.To, m.Cmd2) }

// Duplicate reports whether other is a retransmitted hop of this
// message. Hop counts are ignored.
func (m *ExtReceived) Duplicate(other *ExtReceived) bool {
	return m.From == other.From &&
		m.Flags.Equal(other.Flags) &&
		m.Group() == other.Group() &&
		m.Cmd1 == other.Cmd1 &&
		m.Cmd2 == other.Cmd2 &&
		m.Data == other.Data
}

func (m *ExtReceived) String() string {
	if g := m.Group(); g >= 0 {
		return fmt.Sprintf("Ext: %s %s grp: %02x cmd: %02x %02x % 02x",
			m.From, m.Flags, g, m.Cmd1, m.Cmd2, m.Data[:])
	}
	return fmt.Sprintf("Ext: %s->%s %s cmd: %02x %02x % 02x",
		m.From, m.To, m.Flags, m.Cmd1, m.Cmd2, m.Data[:])
}
