package message

import (
	"fmt"

	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
)

// ModemInfo is the 0x60 get-modem-info exchange. Outbound it carries no
// payload; the echo holds the modem's address, category and firmware.
type ModemInfo struct {
	Addr     insteon.Address
	DevCat   byte
	DevSub   byte
	Firmware byte
	Ack      Ack
}

func decodeModemInfo(buf []byte) (Message, error) {
	return &ModemInfo{
		Addr:     insteon.AddressFromBytes(buf, 2),
		DevCat:   buf[5],
		DevSub:   buf[6],
		Firmware: buf[7],
		Ack:      ackFromByte(buf[8]),
	}, nil
}

// Code returns 0x60.
func (m *ModemInfo) Code() byte { return CodeModemInfo }

// Marshal returns the 2-byte outbound frame.
func (m *ModemInfo) Marshal() []byte {
	return []byte{StartByte, CodeModemInfo}
}

func (m *ModemInfo) String() string {
	if m.Ack == AckNone {
		return "ModemInfo"
	}
	return fmt.Sprintf("ModemInfo: %s cat: %02x %02x firmware: %02x%s",
		m.Addr, m.DevCat, m.DevSub, m.Firmware, m.Ack)
}

// ModemScene is a host-to-modem 0x61 frame triggering an all-link
// broadcast from the modem for one of its controller groups. Cleanup
// results arrive later as an AllLinkStatus frame.
type ModemScene struct {
	Group uint8
	Cmd1  byte
	Cmd2  byte
	Ack   Ack
}

func decodeModemScene(buf []byte) (Message, error) {
	return &ModemScene{
		Group: buf[2],
		Cmd1:  buf[3],
		Cmd2:  buf[4],
		Ack:   ackFromByte(buf[5]),
	}, nil
}

// Code returns 0x61.
func (m *ModemScene) Code() byte { return CodeModemScene }

// Marshal returns the 5-byte outbound frame.
func (m *ModemScene) Marshal() []byte {
	return []byte{StartByte, CodeModemScene, m.Group, m.Cmd1, m.Cmd2}
}

func (m *ModemScene) String() string {
	return fmt.Sprintf("ModemScene: grp: %d cmd: %02x %02x%s",
		m.Group, m.Cmd1, m.Cmd2, m.Ack)
}

// StartLinking is a host-to-modem 0x64 frame putting the modem into
// all-linking mode, as if the set button had been held. The pairing
// result arrives later as an AllLinkComplete frame.
type StartLinking struct {
	Cmd   LinkCmd
	Group uint8
	Ack   Ack
}

func decodeStartLinking(buf []byte) (Message, error) {
	return &StartLinking{
		Cmd:   LinkCmd(buf[2]),
		Group: buf[3],
		Ack:   ackFromByte(buf[4]),
	}, nil
}

// Code returns 0x64.
func (m *StartLinking) Code() byte { return CodeStartLinking }

// Marshal returns the 4-byte outbound frame.
func (m *StartLinking) Marshal() []byte {
	return []byte{StartByte, CodeStartLinking, byte(m.Cmd), m.Group}
}

func (m *StartLinking) String() string {
	return fmt.Sprintf("StartLinking: %s grp: %d%s", m.Cmd, m.Group, m.Ack)
}

// CancelLinking is a host-to-modem 0x65 frame leaving all-linking mode.
type CancelLinking struct {
	Ack Ack
}

func decodeCancelLinking(buf []byte) (Message, error) {
	return &CancelLinking{Ack: ackFromByte(buf[2])}, nil
}

// Code returns 0x65.
func (m *CancelLinking) Code() byte { return CodeCancelLinking }

// Marshal returns the 2-byte outbound frame.
func (m *CancelLinking) Marshal() []byte {
	return []byte{StartByte, CodeCancelLinking}
}

func (m *CancelLinking) String() string {
	return fmt.Sprintf("CancelLinking%s", m.Ack)
}

// ResetModem is a host-to-modem 0x67 frame factory resetting the modem
// and erasing its all-link database. The modem takes several seconds to
// reply.
type ResetModem struct {
	Ack Ack
}

func decodeResetModem(buf []byte) (Message, error) {
	return &ResetModem{Ack: ackFromByte(buf[2])}, nil
}

// Code returns 0x67.
func (m *ResetModem) Code() byte { return CodeResetModem }

// Marshal returns the 2-byte outbound frame.
func (m *ResetModem) Marshal() []byte {
	return []byte{StartByte, CodeResetModem}
}

func (m *ResetModem) String() string {
	return fmt.Sprintf("ResetModem%s", m.Ack)
}

// GetFirstAllLink is a host-to-modem 0x69 frame starting a walk of the
// modem's all-link database. The record follows as an AllLinkRecord
// frame; a NAK echo means the database is empty.
type GetFirstAllLink struct {
	Ack Ack
}

func decodeGetFirstLink(buf []byte) (Message, error) {
	return &GetFirstAllLink{Ack: ackFromByte(buf[2])}, nil
}

// Code returns 0x69.
func (m *GetFirstAllLink) Code() byte { return CodeGetFirstLink }

// Marshal returns the 2-byte outbound frame.
func (m *GetFirstAllLink) Marshal() []byte {
	return []byte{StartByte, CodeGetFirstLink}
}

func (m *GetFirstAllLink) String() string {
	return fmt.Sprintf("GetFirstAllLink%s", m.Ack)
}

// GetNextAllLink is a host-to-modem 0x6a frame advancing a database walk
// started with GetFirstAllLink. A NAK echo means the walk is complete.
type GetNextAllLink struct {
	Ack Ack
}

func decodeGetNextLink(buf []byte) (Message, error) {
	return &GetNextAllLink{Ack: ackFromByte(buf[2])}, nil
}

// Code returns 0x6a.
func (m *GetNextAllLink) Code() byte { return CodeGetNextLink }

// Marshal returns the 2-byte outbound frame.
func (m *GetNextAllLink) Marshal() []byte {
	return []byte{StartByte, CodeGetNextLink}
}

func (m *GetNextAllLink) String() string {
	return fmt.Sprintf("GetNextAllLink%s", m.Ack)
}

// ManageCmd selects the operation a ManageAllLinkRecord frame performs
// on the modem's all-link database.
type ManageCmd uint8

const (
	ManageExists        ManageCmd = 0x00
	ManageSearch        ManageCmd = 0x01
	ManageUpdate        ManageCmd = 0x20
	ManageAddController ManageCmd = 0x40
	ManageAddResponder  ManageCmd = 0x41
	ManageDelete        ManageCmd = 0x80
)

func (c ManageCmd) String() string {
	switch c {
	case ManageExists:
		return "exists"
	case ManageSearch:
		return "search"
	case ManageUpdate:
		return "update"
	case ManageAddController:
		return "add-controller"
	case ManageAddResponder:
		return "add-responder"
	case ManageDelete:
		return "delete"
	default:
		return fmt.Sprintf("manage-cmd-%#02x", uint8(c))
	}
}

// ManageAllLinkRecord is a host-to-modem 0x6f frame adding, updating or
// deleting a record in the modem's all-link database.
type ManageAllLinkRecord struct {
	Cmd   ManageCmd
	Flags insteon.RecordFlags
	Group uint8
	Addr  insteon.Address
	Data  [3]byte
	Ack   Ack
}

func decodeManageLink(buf []byte) (Message, error) {
	m := &ManageAllLinkRecord{
		Cmd:   ManageCmd(buf[2]),
		Flags: insteon.RecordFlagsFromByte(buf[3]),
		Group: buf[4],
		Addr:  insteon.AddressFromBytes(buf, 5),
		Ack:   ackFromByte(buf[11]),
	}
	copy(m.Data[:], buf[8:11])
	return m, nil
}

// Code returns 0x6f.
func (m *ManageAllLinkRecord) Code() byte { return CodeManageLink }

// Marshal returns the 11-byte outbound frame. Deletes encode the record
// flags without the unused bit the devices otherwise require.
func (m *ManageAllLinkRecord) Marshal() []byte {
	fb := m.Flags.Byte()
	if m.Cmd == ManageDelete {
		fb = m.Flags.ModemDeleteByte()
	}
	out := make([]byte, 0, 11)
	out = append(out, StartByte, CodeManageLink, byte(m.Cmd), fb, m.Group)
	out = append(out, m.Addr.Bytes()...)
	out = append(out, m.Data[:]...)
	return out
}

func (m *ManageAllLinkRecord) String() string {
	return fmt.Sprintf("ManageAllLinkRecord: %s %s grp: %d %s data: % 02x%s",
		m.Cmd, m.Addr, m.Group, m.Flags, m.Data[:], m.Ack)
}
