package message

import (
	"fmt"

	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
)

// LinkCmd selects the role the modem takes when all-linking mode starts,
// or deletes an existing pairing.
type LinkCmd uint8

const (
	LinkResponder  LinkCmd = 0x00
	LinkController LinkCmd = 0x01
	LinkEither     LinkCmd = 0x03
	LinkDelete     LinkCmd = 0xff
)

func (c LinkCmd) String() string {
	switch c {
	case LinkResponder:
		return "responder"
	case LinkController:
		return "controller"
	case LinkEither:
		return "either"
	case LinkDelete:
		return "delete"
	default:
		return fmt.Sprintf("link-cmd-%#02x", uint8(c))
	}
}

// AllLinkComplete is a modem-to-host 0x53 frame sent when an all-link
// pairing started with StartLinking (or by the set button) finishes.
type AllLinkComplete struct {
	Cmd      LinkCmd
	Group    uint8
	Addr     insteon.Address
	DevCat   byte
	DevSub   byte
	Firmware byte
}

func decodeAllLinkComplete(buf []byte) (Message, error) {
	return &AllLinkComplete{
		Cmd:      LinkCmd(buf[2]),
		Group:    buf[3],
		Addr:     insteon.AddressFromBytes(buf, 4),
		DevCat:   buf[7],
		DevSub:   buf[8],
		Firmware: buf[9],
	}, nil
}

// Code returns 0x53.
func (m *AllLinkComplete) Code() byte { return CodeAllLinkDone }

// Marshal reassembles the received frame.
func (m *AllLinkComplete) Marshal() []byte {
	out := make([]byte, 0, 10)
	out = append(out, StartByte, CodeAllLinkDone, byte(m.Cmd), m.Group)
	out = append(out, m.Addr.Bytes()...)
	out = append(out, m.DevCat, m.DevSub, m.Firmware)
	return out
}

func (m *AllLinkComplete) String() string {
	return fmt.Sprintf("AllLinkComplete: %s grp: %d %s cat: %02x %02x firmware: %02x",
		m.Addr, m.Group, m.Cmd, m.DevCat, m.DevSub, m.Firmware)
}

// ButtonEvent is the state change reported by a 0x54 set-button frame.
type ButtonEvent uint8

const (
	ButtonTapped   ButtonEvent = 0x02
	ButtonHeld     ButtonEvent = 0x03
	ButtonReleased ButtonEvent = 0x04
)

func (e ButtonEvent) String() string {
	switch e {
	case ButtonTapped:
		return "tapped"
	case ButtonHeld:
		return "held"
	case ButtonReleased:
		return "released"
	default:
		return fmt.Sprintf("button-event-%#02x", uint8(e))
	}
}

// SetButtonPressed is a modem-to-host 0x54 frame reporting a physical
// set-button press on the modem.
type SetButtonPressed struct {
	Event ButtonEvent
}

func decodeSetButton(buf []byte) (Message, error) {
	return &SetButtonPressed{Event: ButtonEvent(buf[2])}, nil
}

// Code returns 0x54.
func (m *SetButtonPressed) Code() byte { return CodeSetButton }

// Marshal reassembles the received frame.
func (m *SetButtonPressed) Marshal() []byte {
	return []byte{StartByte, CodeSetButton, byte(m.Event)}
}

func (m *SetButtonPressed) String() string {
	return fmt.Sprintf("SetButton: %s", m.Event)
}

// UserReset is a modem-to-host 0x55 frame sent when the user factory
// resets the modem with the set button.
type UserReset struct{}

func decodeUserReset([]byte) (Message, error) {
	return &UserReset{}, nil
}

// Code returns 0x55.
func (m *UserReset) Code() byte { return CodeUserReset }

// Marshal reassembles the received frame.
func (m *UserReset) Marshal() []byte {
	return []byte{StartByte, CodeUserReset}
}

func (m *UserReset) String() string { return "UserReset" }

// AllLinkFailure is a modem-to-host 0x56 frame sent when an all-link
// cleanup to one responder of a scene fails.
type AllLinkFailure struct {
	Group uint8
	Addr  insteon.Address
}

func decodeAllLinkFailure(buf []byte) (Message, error) {
	return &AllLinkFailure{
		Group: buf[3],
		Addr:  insteon.AddressFromBytes(buf, 4),
	}, nil
}

// Code returns 0x56.
func (m *AllLinkFailure) Code() byte { return CodeAllLinkFail }

// Marshal reassembles the received frame. Byte 2 is always 0x01.
func (m *AllLinkFailure) Marshal() []byte {
	out := make([]byte, 0, 7)
	out = append(out, StartByte, CodeAllLinkFail, 0x01, m.Group)
	out = append(out, m.Addr.Bytes()...)
	return out
}

func (m *AllLinkFailure) String() string {
	return fmt.Sprintf("AllLinkFailure: %s grp: %d", m.Addr, m.Group)
}

// AllLinkRecord is a modem-to-host 0x57 frame carrying one record of the
// modem's all-link database, sent in reply to GetFirstAllLink and
// GetNextAllLink.
type AllLinkRecord struct {
	Flags insteon.RecordFlags
	Group uint8
	Addr  insteon.Address
	Data  [3]byte
}

func decodeAllLinkRecord(buf []byte) (Message, error) {
	m := &AllLinkRecord{
		Flags: insteon.RecordFlagsFromByte(buf[2]),
		Group: buf[3],
		Addr:  insteon.AddressFromBytes(buf, 4),
	}
	copy(m.Data[:], buf[7:10])
	return m, nil
}

// Code returns 0x57.
func (m *AllLinkRecord) Code() byte { return CodeAllLinkRecord }

// Marshal reassembles the received frame.
func (m *AllLinkRecord) Marshal() []byte {
	out := make([]byte, 0, 10)
	out = append(out, StartByte, CodeAllLinkRecord, m.Flags.Byte(), m.Group)
	out = append(out, m.Addr.Bytes()...)
	out = append(out, m.Data[:]...)
	return out
}

func (m *AllLinkRecord) String() string {
	return fmt.Sprintf("AllLinkRecord: %s grp: %d %s data: % 02x",
		m.Addr, m.Group, m.Flags, m.Data[:])
}

// AllLinkStatus is a modem-to-host 0x58 frame reporting the result of a
// modem scene broadcast after all cleanup messages finish.
type AllLinkStatus struct {
	Ack Ack
}

func decodeAllLinkStatus(buf []byte) (Message, error) {
	return &AllLinkStatus{Ack: ackFromByte(buf[2])}, nil
}

// Code returns 0x58.
func (m *AllLinkStatus) Code() byte { return CodeAllLinkStatus }

// Marshal reassembles the received frame.
func (m *AllLinkStatus) Marshal() []byte {
	b := byte(NakByte)
	if m.Ack == AckOK {
		b = AckByte
	}
	return []byte{StartByte, CodeAllLinkStatus, b}
}

func (m *AllLinkStatus) String() string {
	return fmt.Sprintf("AllLinkStatus:%s", m.Ack)
}
