package device

import "github.com/insteon-mqtt/insteon-go/pkg/insteon"

// Switch is an on/off load controller such as a SwitchLinc relay.
type Switch struct {
	*Base
	OnOff
}

// NewSwitch builds a switch and registers it with the modem.
func NewSwitch(m *Modem, addr insteon.Address, name string) *Switch {
	base := newBase(m, addr, name)
	sw := &Switch{Base: base, OnOff: OnOff{dev: base}}
	m.Add(sw)
	return sw
}

// Dimmer is a dimming load controller such as a SwitchLinc dimmer.
type Dimmer struct {
	*Base
	OnOff
	Level
}

// NewDimmer builds a dimmer and registers it with the modem.
func NewDimmer(m *Modem, addr insteon.Address, name string) *Dimmer {
	base := newBase(m, addr, name)
	d := &Dimmer{Base: base, OnOff: OnOff{dev: base}, Level: Level{dev: base}}
	m.Add(d)
	return d
}
