package message

import (
	"errors"
	"fmt"
)

// Frame start and echo terminator bytes.
const (
	StartByte = 0x02
	AckByte   = 0x06
	NakByte   = 0x15
)

// Command codes for every supported frame type.
const (
	CodeStdReceived   = 0x50
	CodeExtReceived   = 0x51
	CodeAllLinkDone   = 0x53
	CodeSetButton     = 0x54
	CodeUserReset     = 0x55
	CodeAllLinkFail   = 0x56
	CodeAllLinkRecord = 0x57
	CodeAllLinkStatus = 0x58
	CodeModemInfo     = 0x60
	CodeModemScene    = 0x61
	CodeStdSend       = 0x62
	CodeStartLinking  = 0x64
	CodeCancelLinking = 0x65
	CodeResetModem    = 0x67
	CodeGetFirstLink  = 0x69
	CodeGetNextLink   = 0x6a
	CodeManageLink    = 0x6f
)

// Codec errors.
var (
	// ErrShortBuffer indicates the buffer does not yet hold a complete
	// frame. The caller should wait for more bytes and retry.
	ErrShortBuffer = errors.New("incomplete frame")

	// ErrUnknownCode indicates the command byte is not a recognized frame
	// type. The framer recovers by discarding a byte and resyncing.
	ErrUnknownCode = errors.New("unknown command code")

	// ErrBadFrame indicates a frame that sized correctly but failed to
	// decode.
	ErrBadFrame = errors.New("malformed frame")
)

// Message is a decoded Insteon frame. Concrete types are pointers to the
// structs in this package.
type Message interface {
	// Code returns the frame's command code byte.
	Code() byte

	// Marshal returns the outbound wire form of the message: the 0x02
	// start byte, the command code and the payload. Echo-only fields
	// (the trailing ACK byte) are not included.
	Marshal() []byte

	fmt.Stringer
}

// Ack is the echo status of a host-to-modem command: unset on the
// outbound copy, ACK or NAK on the echoed copy read back from the modem.
type Ack uint8

const (
	// AckNone marks an outbound message that has not been echoed.
	AckNone Ack = iota

	// AckOK marks an echo terminated by 0x06.
	AckOK

	// AckNak marks an echo terminated by 0x15: the modem rejected the
	// command and it should be retransmitted.
	AckNak
)

func ackFromByte(b byte) Ack {
	if b == AckByte {
		return AckOK
	}
	return AckNak
}

// String returns "", " ack: true" or " ack: false" for log suffixes.
func (a Ack) String() string {
	switch a {
	case AckOK:
		return " ack: true"
	case AckNak:
		return " ack: false"
	default:
		return ""
	}
}

// frameType describes how to size and decode one command code.
type frameType struct {
	// size returns the total frame length in bytes needed to decode,
	// given the bytes buffered so far. When the length depends on bytes
	// not yet buffered (the extended flag of a 0x62 frame), size returns
	// the number of bytes needed to decide; the framer retries once they
	// arrive.
	size func(buf []byte) int

	// decode builds the message. buf holds at least size(buf) bytes,
	// buf[0] == StartByte and buf[1] is this frame's code.
	decode func(buf []byte) (Message, error)
}

func fixed(n int, decode func(buf []byte) (Message, error)) frameType {
	return frameType{
		size:   func([]byte) int { return n },
		decode: decode,
	}
}

// frameTypes maps command codes to their codec entries. Inbound sizes are
// the echoed sizes (send length plus the trailing ACK byte).
var frameTypes = map[byte]frameType{
	CodeStdReceived:   fixed(11, decodeStdReceived),
	CodeExtReceived:   fixed(25, decodeExtReceived),
	CodeAllLinkDone:   fixed(10, decodeAllLinkComplete),
	CodeSetButton:     fixed(3, decodeSetButton),
	CodeUserReset:     fixed(2, decodeUserReset),
	CodeAllLinkFail:   fixed(7, decodeAllLinkFailure),
	CodeAllLinkRecord: fixed(10, decodeAllLinkRecord),
	CodeAllLinkStatus: fixed(3, decodeAllLinkStatus),
	CodeModemInfo:     fixed(9, decodeModemInfo),
	CodeModemScene:    fixed(6, decodeModemScene),
	CodeStdSend:       {size: sizeStdSend, decode: decodeStdSend},
	CodeStartLinking:  fixed(5, decodeStartLinking),
	CodeCancelLinking: fixed(3, decodeCancelLinking),
	CodeResetModem:    fixed(3, decodeResetModem),
	CodeGetFirstLink:  fixed(3, decodeGetFirstLink),
	CodeGetNextLink:   fixed(3, decodeGetNextLink),
	CodeManageLink:    fixed(12, decodeManageLink),
}

// Size reports the total frame length for the frame starting at buf[0].
// buf must hold at least 2 bytes with buf[0] == StartByte. The returned
// length may grow once more bytes arrive (flags-dependent frames), so the
// caller must call Size again after buffering the reported amount.
// Returns ErrUnknownCode for unrecognized command bytes.
func Size(buf []byte) (int, error) {
	ft, ok := frameTypes[buf[1]]
	if !ok {
		return 0, fmt.Errorf("%w: %#02x", ErrUnknownCode, buf[1])
	}
	return ft.size(buf), nil
}

// Decode decodes the frame starting at buf[0] and returns it along with
// the number of bytes consumed. It never consumes a partial frame:
// ErrShortBuffer means nothing was consumed and more bytes are needed.
func Decode(buf []byte) (Message, int, error) {
	if len(buf) < 2 {
		return nil, 0, ErrShortBuffer
	}
	if buf[0] != StartByte {
		return nil, 0, fmt.Errorf("%w: no start byte", ErrBadFrame)
	}

	ft, ok := frameTypes[buf[1]]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %#02x", ErrUnknownCode, buf[1])
	}

	n := ft.size(buf)
	if len(buf) < n {
		return nil, 0, ErrShortBuffer
	}
	// The size may have been provisional; re-check with the full prefix.
	if full := ft.size(buf[:n]); full > n {
		n = full
		if len(buf) < n {
			return nil, 0, ErrShortBuffer
		}
	}

	msg, err := ft.decode(buf[:n])
	if err != nil {
		return nil, 0, err
	}
	return msg, n, nil
}
