package insteon

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// AddressSize is the wire size of a device address in bytes.
const AddressSize = 3

// ErrInvalidAddress indicates an address string or byte slice could not be
// parsed.
var ErrInvalidAddress = errors.New("invalid insteon address")

// Address is a 3-byte Insteon device identifier. The zero value is the
// address 00.00.00.
//
// Address is comparable: it can be compared with == and used as a map key.
type Address [AddressSize]byte

// ParseAddress parses an address from its string form. Accepted separators
// between the hex byte pairs are '.', ':' and nothing at all, so
// "3a.29.84", "3A:29:84" and "3a2984" all name the same device.
func ParseAddress(s string) (Address, error) {
	clean := strings.NewReplacer(".", "", ":", "").Replace(strings.TrimSpace(s))
	if len(clean) != 2*AddressSize {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	var a Address
	for i := 0; i < AddressSize; i++ {
		v, err := strconv.ParseUint(clean[2*i:2*i+2], 16, 8)
		if err != nil {
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		a[i] = byte(v)
	}
	return a, nil
}

// MustAddress is like ParseAddress but panics on a bad input. Intended for
// literals in tests and configuration defaults.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes reads an address from raw at the given offset.
// raw must have at least offset+3 bytes.
func AddressFromBytes(raw []byte, offset int) Address {
	var a Address
	copy(a[:], raw[offset:offset+AddressSize])
	return a
}

// Bytes returns the 3-byte wire form of the address.
func (a Address) Bytes() []byte {
	return []byte{a[0], a[1], a[2]}
}

// Group returns the low byte of the address. Broadcast messages encode the
// all-link group number in the last byte of the "to" address field.
func (a Address) Group() uint8 {
	return a[2]
}

// String returns the canonical hex pair form "xx.xx.xx".
func (a Address) String() string {
	return fmt.Sprintf("%02x.%02x.%02x", a[0], a[1], a[2])
}

// MarshalText implements encoding.TextMarshaler so addresses serialize as
// their canonical string form in JSON and YAML documents.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
