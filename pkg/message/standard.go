package message

import (
	"fmt"

	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
)

// StdSend is a host-to-modem 0x62 standard-length direct message. The
// modem echoes the frame back with a trailing ACK or NAK byte; Ack is set
// only on the decoded echo.
type StdSend struct {
	To    insteon.Address
	Flags insteon.Flags
	Cmd1  byte
	Cmd2  byte
	Ack   Ack
}

// NewStdSend builds a direct standard message with default hop counts.
func NewStdSend(to insteon.Address, cmd1, cmd2 byte) *StdSend {
	return &StdSend{
		To:    to,
		Flags: insteon.NewFlags(insteon.MsgTypeDirect, false),
		Cmd1:  cmd1,
		Cmd2:  cmd2,
	}
}

// Code returns 0x62.
func (m *StdSend) Code() byte { return CodeStdSend }

// Marshal returns the 8-byte outbound frame.
func (m *StdSend) Marshal() []byte {
	out := make([]byte, 0, 8)
	out = append(out, StartByte, CodeStdSend)
	out = append(out, m.To.Bytes()...)
	out = append(out, m.Flags.Byte(), m.Cmd1, m.Cmd2)
	return out
}

func (m *StdSend) String() string {
	return fmt.Sprintf("Std: %s, %s, %02x %02x%s",
		m.To, m.Flags, m.Cmd1, m.Cmd2, m.Ack)
}

// ChecksumKind selects the integrity byte appended to extended payloads.
// Most extended commands on i2cs devices require the two's-complement D14
// checksum; thermostats use a CRC16 spread over D13-D14.
type ChecksumKind uint8

const (
	ChecksumNone ChecksumKind = iota
	ChecksumD14
	ChecksumCRC16
)

// ExtSend is a host-to-modem 0x62 extended-length direct message carrying
// a 14-byte data payload.
type ExtSend struct {
	To    insteon.Address
	Flags insteon.Flags
	Cmd1  byte
	Cmd2  byte
	Data  [14]byte
	Ack   Ack

	// Checksum selects the integrity byte computed over cmd1, cmd2 and
	// the payload at marshal time. Decoded echoes leave the payload as
	// received.
	Checksum ChecksumKind
}

// NewExtSend builds a direct extended message with default hop counts and
// the D14 checksum. data may be shorter than 14 bytes; the rest is zero.
func NewExtSend(to insteon.Address, cmd1, cmd2 byte, data []byte) *ExtSend {
	m := &ExtSend{
		To:       to,
		Flags:    insteon.NewFlags(insteon.MsgTypeDirect, true),
		Cmd1:     cmd1,
		Cmd2:     cmd2,
		Checksum: ChecksumD14,
	}
	copy(m.Data[:], data)
	return m
}

// Code returns 0x62.
func (m *ExtSend) Code() byte { return CodeStdSend }

// Marshal returns the 22-byte outbound frame with the configured
// integrity bytes filled in.
func (m *ExtSend) Marshal() []byte {
	data := m.Data
	switch m.Checksum {
	case ChecksumD14:
		data[13] = checksumD14(m.Cmd1, m.Cmd2, data[:13])
	case ChecksumCRC16:
		crc := crc16(m.Cmd1, m.Cmd2, data[:12])
		data[12] = byte(crc >> 8)
		data[13] = byte(crc)
	}

	flags := m.Flags
	flags.Extended = true

	out := make([]byte, 0, 22)
	out = append(out, StartByte, CodeStdSend)
	out = append(out, m.To.Bytes()...)
	out = append(out, flags.Byte(), m.Cmd1, m.Cmd2)
	out = append(out, data[:]...)
	return out
}

func (m *ExtSend) String() string {
	return fmt.Sprintf("Ext: %s, %s, %02x %02x % 02x%s",
		m.To, m.Flags, m.Cmd1, m.Cmd2, m.Data[:], m.Ack)
}

// sizeStdSend reports the echoed 0x62 frame length. The length depends on
// the extended bit of the flags byte at offset 5, so 6 bytes are needed
// before the final size is known.
func sizeStdSend(buf []byte) int {
	if len(buf) < 6 {
		return 6
	}
	if insteon.FlagsFromByte(buf[5]).Extended {
		return 23
	}
	return 9
}

func decodeStdSend(buf []byte) (Message, error) {
	flags := insteon.FlagsFromByte(buf[5])
	if flags.Extended {
		m := &ExtSend{
			To:    insteon.AddressFromBytes(buf, 2),
			Flags: flags,
			Cmd1:  buf[6],
			Cmd2:  buf[7],
			Ack:   ackFromByte(buf[22]),
		}
		copy(m.Data[:], buf[8:22])
		return m, nil
	}
	return &StdSend{
		To:    insteon.AddressFromBytes(buf, 2),
		Flags: flags,
		Cmd1:  buf[6],
		Cmd2:  buf[7],
		Ack:   ackFromByte(buf[8]),
	}, nil
}
