package device

// Direct command codes shared by the light-switch family.
const (
	CmdOn        = 0x11
	CmdOnFast    = 0x12
	CmdOff       = 0x13
	CmdOffFast   = 0x14
	CmdStatus    = 0x19
	CmdOnInstant = 0x21
	CmdGetEngine = 0x0d
)

// Mode selects how an on/off command transitions.
type Mode uint8

const (
	// ModeNormal ramps at the device's configured rate.
	ModeNormal Mode = iota

	// ModeFast skips the ramp.
	ModeFast

	// ModeInstant jumps straight to the target level.
	ModeInstant
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeFast:
		return "fast"
	case ModeInstant:
		return "instant"
	default:
		return "unknown"
	}
}

// EncodeOnOff returns the cmd1 code for an on/off command. Instant off
// shares the instant-on code with a zero level.
func EncodeOnOff(on bool, mode Mode) byte {
	if mode == ModeInstant {
		return CmdOnInstant
	}
	if on {
		if mode == ModeFast {
			return CmdOnFast
		}
		return CmdOn
	}
	if mode == ModeFast {
		return CmdOffFast
	}
	return CmdOff
}

// DecodeOnOff maps a cmd1 code back to on/off and mode. ok is false
// for codes outside the on/off family.
func DecodeOnOff(cmd1 byte) (on bool, mode Mode, ok bool) {
	switch cmd1 {
	case CmdOn:
		return true, ModeNormal, true
	case CmdOnFast:
		return true, ModeFast, true
	case CmdOnInstant:
		return true, ModeInstant, true
	case CmdOff:
		return false, ModeNormal, true
	case CmdOffFast:
		return false, ModeFast, true
	}
	return false, ModeNormal, false
}

// DecodeLevel extracts the brightness carried by an on/off command
// pair. Off commands are level zero regardless of cmd2.
func DecodeLevel(cmd1, cmd2 byte) uint8 {
	on, _, ok := DecodeOnOff(cmd1)
	if !ok || !on {
		return 0
	}
	if cmd1 == CmdOn || cmd1 == CmdOnFast {
		// Broadcast on commands carry no level; treat as full.
		if cmd2 == 0 {
			return 0xff
		}
	}
	return cmd2
}
