package device

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/insteon-mqtt/insteon-go/pkg/cmdseq"
	"github.com/insteon-mqtt/insteon-go/pkg/db"
	"github.com/insteon-mqtt/insteon-go/pkg/handler"
	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
	"github.com/insteon-mqtt/insteon-go/pkg/log"
	"github.com/insteon-mqtt/insteon-go/pkg/message"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

// I2CS devices NAK the get-engine probe when they have no responder
// link for the modem yet.
const engineI2CS = 2

// State is a device's light state.
type State struct {
	On    bool
	Level uint8
}

// StateFunc receives state changes: ACKed commands, group broadcasts,
// and status replies.
type StateFunc func(dev *Base, group uint8, st State)

// Device is what the modem's broadcast router needs from a managed
// device.
type Device interface {
	Address() insteon.Address
	Name() string
	HandleBroadcast(msg *message.StdReceived)
}

// Base carries the state and operations common to every Insteon
// device: the link database with its refresh/download logic, engine
// version probing, pairing, and broadcast state tracking.
type Base struct {
	addr   insteon.Address
	name   string
	modem  *Modem
	sender protocol.Sender
	logger log.Logger

	// DB is the device's all-link database.
	DB *db.DeviceDB

	engineKnown bool
	state       State
	onState     StateFunc
}

func newBase(m *Modem, addr insteon.Address, name string) *Base {
	path := filepath.Join(m.storage, addr.String()+".json")
	d, err := db.LoadDeviceDB(addr, path)
	if err != nil {
		m.logger.Log(log.Event{
			Timestamp: time.Now(),
			Link:      "storage",
			Category:  log.CategoryError,
			Error: &log.ErrorEventData{
				Layer:   log.LayerDevice,
				Message: err.Error(),
				Context: "load device db",
			},
		})
		d = db.NewDeviceDB(addr, path)
	}
	return &Base{
		addr:   addr,
		name:   name,
		modem:  m,
		sender: m.sender,
		logger: m.logger,
		DB:     d,
	}
}

// Address returns the device's Insteon address.
func (d *Base) Address() insteon.Address { return d.addr }

// Name returns the configured device name.
func (d *Base) Name() string { return d.name }

// State returns the last known light state.
func (d *Base) State() State { return d.state }

// SetOnState registers the state-change callback.
func (d *Base) SetOnState(fn StateFunc) { d.onState = fn }

// label is the address plus name used in sequence names and logs.
func (d *Base) label() string {
	if d.name == "" {
		return d.addr.String()
	}
	return fmt.Sprintf("%s (%s)", d.addr, d.name)
}

func (d *Base) setState(group uint8, st State) {
	d.state = st
	if d.onState != nil {
		d.onState(d, group, st)
	}
}

// HandleBroadcast tracks scene broadcasts the device sends when its
// load is switched locally or by a linked controller.
func (d *Base) HandleBroadcast(msg *message.StdReceived) {
	on, _, ok := DecodeOnOff(msg.Cmd1)
	if !ok {
		return
	}
	d.setState(msg.To.Group(), State{On: on, Level: DecodeLevel(msg.Cmd1, msg.Cmd2)})
}

// Refresh pings the device for its current state and database delta,
// downloading the database when the delta is stale or force is set.
// The engine version is probed first when unknown; the download
// strategy depends on it.
func (d *Base) Refresh(force bool, onDone handler.DoneFunc) {
	seq := cmdseq.New(d.sender, d.logger, "refresh "+d.label(), onDone)
	if force || !d.engineKnown {
		seq.Add(d.requestEngine)
	}
	seq.Add(func(done handler.DoneFunc) { d.requestStatus(force, done) })
	seq.Run()
}

// requestEngine probes the device's database generation (0x0D). A
// device NAK marks the device I2CS rather than failing the command.
func (d *Base) requestEngine(done handler.DoneFunc) {
	msg := message.NewStdSend(d.addr, CmdGetEngine, 0x00)
	h := handler.NewStandardCmd(msg,
		func(m *message.StdReceived, hdone handler.DoneFunc) {
			d.DB.EngineVersion = int(m.Cmd2)
			d.engineKnown = true
			hdone(nil)
		},
		func(err error) {
			if errors.Is(err, handler.ErrDeviceNak) {
				d.DB.EngineVersion = engineI2CS
				d.engineKnown = true
				err = nil
			}
			done(err)
		})
	d.sender.Send(msg, h)
}

// requestStatus sends the status ping (0x19). The reply carries the
// database delta in cmd1 and the light level in cmd2.
func (d *Base) requestStatus(force bool, done handler.DoneFunc) {
	msg := message.NewStdSend(d.addr, CmdStatus, 0x00)
	h := handler.NewStandardCmd(msg,
		func(m *message.StdReceived, hdone handler.DoneFunc) {
			d.setState(0x01, State{On: m.Cmd2 != 0, Level: m.Cmd2})
			delta := int(m.Cmd1)
			if !force && d.DB.IsCurrent(delta) {
				hdone(nil)
				return
			}
			d.downloadDB(delta, hdone)
		}, done)
	d.sender.Send(msg, h)
}

// downloadDB rebuilds the local database copy from the device, picking
// the paging protocol from the engine version.
func (d *Base) downloadDB(delta int, done handler.DoneFunc) {
	d.DB.Clear()
	finish := func(err error) {
		if err == nil {
			d.DB.SetDelta(delta)
			if serr := d.DB.Save(); serr != nil {
				err = serr
			}
		}
		done(err)
	}
	if d.DB.EngineVersion == 0 {
		db.NewScanManagerI1(d.sender, d.DB, finish).Start()
	} else {
		db.NewScanManagerI2(d.sender, d.DB, finish).Start()
	}
}

// Pair links the device and modem both ways: the device as controller
// of its groups, the modem as responder. The database is refreshed
// first so the memory layout is known before writing.
func (d *Base) Pair(onDone handler.DoneFunc) {
	seq := cmdseq.New(d.sender, d.logger, "pair "+d.label(), onDone)
	seq.Add(func(done handler.DoneFunc) { d.Refresh(false, done) })

	for _, group := range d.groups() {
		g := group
		seq.Add(func(done handler.DoneFunc) {
			d.DB.AddOnDevice(d.sender, d.modem.Addr, g, true,
				[3]byte{0x03, 0x00, g}, done)
		})
		seq.Add(func(done handler.DoneFunc) {
			db.ModemDBAdd(d.sender, d.modem.DB, &db.ModemEntry{
				Addr:  d.addr,
				Group: g,
			}, done)
		})
	}
	seq.Run()
}

// groups returns the scene groups the device broadcasts on.
func (d *Base) groups() []uint8 { return []uint8{0x01} }

// sendOnOff issues a direct on/off command and mirrors the ACK into
// the local state.
func (d *Base) sendOnOff(on bool, level uint8, mode Mode, onDone handler.DoneFunc) {
	cmd2 := level
	if !on {
		cmd2 = 0x00
	}
	msg := message.NewStdSend(d.addr, EncodeOnOff(on, mode), cmd2)
	h := handler.NewStandardCmd(msg,
		func(m *message.StdReceived, hdone handler.DoneFunc) {
			ackOn, _, ok := DecodeOnOff(m.Cmd1)
			if ok {
				lvl := m.Cmd2
				if !ackOn {
					lvl = 0
				}
				d.setState(0x01, State{On: ackOn, Level: lvl})
			}
			hdone(nil)
		}, onDone)
	d.sender.Send(msg, h)
}

// OnOff adds on/off control to a device.
type OnOff struct {
	dev *Base
}

// On turns the load on at full brightness.
func (o OnOff) On(mode Mode, onDone handler.DoneFunc) {
	o.dev.sendOnOff(true, 0xff, mode, onDone)
}

// Off turns the load off.
func (o OnOff) Off(mode Mode, onDone handler.DoneFunc) {
	o.dev.sendOnOff(false, 0x00, mode, onDone)
}

// Level adds dimming control to a device.
type Level struct {
	dev *Base
}

// SetLevel sets the brightness; zero turns the load off.
func (l Level) SetLevel(level uint8, mode Mode, onDone handler.DoneFunc) {
	l.dev.sendOnOff(level > 0, level, mode, onDone)
}
