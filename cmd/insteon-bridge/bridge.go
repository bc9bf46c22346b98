package main

import (
	"context"
	"encoding/json"
	"fmt"
	stdlog "log"
	"os"
	"strconv"
	"strings"

	"github.com/insteon-mqtt/insteon-go/pkg/config"
	"github.com/insteon-mqtt/insteon-go/pkg/device"
	"github.com/insteon-mqtt/insteon-go/pkg/handler"
	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
	"github.com/insteon-mqtt/insteon-go/pkg/log"
	"github.com/insteon-mqtt/insteon-go/pkg/network"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

// MQTT topic layout. Addresses appear in their dotted hex form, e.g.
// insteon/3a.29.84/state.
const (
	topicPrefix   = "insteon"
	topicState    = "state"
	topicSet      = "set"
	topicLevelSet = "level/set"
)

// statePayload is the retained JSON document published on every state
// change.
type statePayload struct {
	State      string `json:"state"`
	Brightness uint8  `json:"brightness"`
}

// bridge owns the reactor and both links. All of its methods after
// construction run on the pump loop.
type bridge struct {
	cfg     *config.Config
	logger  log.Logger
	manager *network.Manager
	engine  *protocol.Engine
	serial  *network.SerialLink
	mqtt    *network.MQTTLink
	modem   *device.Modem
}

// newBridge wires the serial and MQTT links, the protocol engine, the
// modem, and the configured devices into one reactor.
func newBridge(cfg *config.Config, logger log.Logger) (*bridge, error) {
	handler.DefaultRetries = cfg.Insteon.Retries
	handler.DefaultTimeout = cfg.Insteon.Timeout

	if err := os.MkdirAll(cfg.Insteon.Storage, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	b := &bridge{
		cfg:     cfg,
		logger:  logger,
		manager: network.NewManager(logger),
	}

	b.serial = network.NewSerialLink(cfg.Insteon.Port, cfg.Insteon.Baudrate, logger)
	b.engine = protocol.NewEngine(b.serial, logger)
	b.serial.SetOnRead(b.engine.ReadData)
	b.serial.SetOnWrote(func([]byte) { b.engine.Wrote() })
	b.manager.AddPoller(b.engine)

	b.modem = device.NewModem(b.engine, cfg.Insteon.Storage, logger)
	b.modem.Addr = cfg.Insteon.Address
	for _, h := range b.modem.ReadHandlers() {
		b.engine.AddReadHandler(h)
	}

	for _, dc := range cfg.Insteon.Devices {
		if err := b.addDevice(dc); err != nil {
			return nil, err
		}
	}

	b.mqtt = network.NewMQTTLink(network.MQTTOptions{
		Broker:    cfg.MQTT.Broker,
		ClientID:  cfg.MQTT.ClientID,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		KeepAlive: cfg.MQTT.KeepAlive,
	}, logger)
	b.mqtt.SetOnMessage(b.handleCommand)
	if err := b.mqtt.Subscribe(topicPrefix+"/+/"+topicSet, 0); err != nil {
		return nil, err
	}
	if err := b.mqtt.Subscribe(topicPrefix+"/+/"+topicLevelSet, 0); err != nil {
		return nil, err
	}

	b.manager.AddLink(b.serial, false, b.onSerialUp, func(error) {
		b.engine.LinkDown()
	})
	b.manager.AddLink(b.mqtt, false, nil, nil)

	return b, nil
}

// addDevice builds the configured device personality and hooks its
// state changes up to the broker.
func (b *bridge) addDevice(dc config.DeviceConfig) error {
	var base *device.Base
	switch dc.Type {
	case "switch":
		base = device.NewSwitch(b.modem, dc.Address, dc.Name).Base
	case "dimmer":
		base = device.NewDimmer(b.modem, dc.Address, dc.Name).Base
	default:
		return fmt.Errorf("%w: %q", config.ErrUnknownTyp, dc.Type)
	}
	base.SetOnState(b.publishState)
	return nil
}

// onSerialUp runs after every serial (re)connect: refresh the modem
// info, then optionally walk the device databases.
func (b *bridge) onSerialUp() {
	b.modem.RefreshInfo(func(err error) {
		if err != nil {
			stdlog.Printf("Modem info refresh failed: %v", err)
			return
		}
		stdlog.Printf("Modem %s ready (cat %02x.%02x firmware %02x)",
			b.modem.Addr, b.modem.DevCat, b.modem.DevSub, b.modem.Firmware)
	})

	if !b.cfg.Insteon.StartupRefresh {
		return
	}
	for _, dev := range b.modem.Devices() {
		addr := dev.Address()
		if r, ok := dev.(interface {
			Refresh(force bool, onDone handler.DoneFunc)
		}); ok {
			r.Refresh(false, func(err error) {
				if err != nil {
					stdlog.Printf("Refresh of %s failed: %v", addr, err)
				}
			})
		}
	}
}

// publishState pushes a device state change to the retained state
// topic.
func (b *bridge) publishState(dev *device.Base, group uint8, st device.State) {
	payload := statePayload{State: "OFF"}
	if st.On {
		payload.State = "ON"
		payload.Brightness = st.Level
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	b.mqtt.Publish(topicPrefix+"/"+dev.Address().String()+"/"+topicState,
		data, 0, true)
}

// handleCommand maps an inbound MQTT command to a device operation. It
// runs on the pump loop, so device and engine calls are safe here.
func (b *bridge) handleCommand(topic string, payload []byte) {
	parts := strings.SplitN(topic, "/", 3)
	if len(parts) != 3 || parts[0] != topicPrefix {
		return
	}
	addr, err := insteon.ParseAddress(parts[1])
	if err != nil {
		stdlog.Printf("Bad address in topic %s: %v", topic, err)
		return
	}
	dev := b.modem.Device(addr)
	if dev == nil {
		stdlog.Printf("Command for unknown device %s", addr)
		return
	}

	onDone := func(err error) {
		if err != nil {
			stdlog.Printf("Command for %s failed: %v", addr, err)
		}
	}

	switch parts[2] {
	case topicSet:
		sw, ok := dev.(interface {
			On(mode device.Mode, onDone handler.DoneFunc)
			Off(mode device.Mode, onDone handler.DoneFunc)
		})
		if !ok {
			return
		}
		switch strings.ToUpper(strings.TrimSpace(string(payload))) {
		case "ON":
			sw.On(device.ModeNormal, onDone)
		case "OFF":
			sw.Off(device.ModeNormal, onDone)
		default:
			stdlog.Printf("Bad payload %q on %s", payload, topic)
		}

	case topicLevelSet:
		dim, ok := dev.(interface {
			SetLevel(level uint8, mode device.Mode, onDone handler.DoneFunc)
		})
		if !ok {
			stdlog.Printf("Device %s does not dim", addr)
			return
		}
		level, err := strconv.ParseUint(strings.TrimSpace(string(payload)), 10, 8)
		if err != nil {
			stdlog.Printf("Bad level %q on %s: %v", payload, topic, err)
			return
		}
		dim.SetLevel(uint8(level), device.ModeNormal, onDone)
	}
}

// Run pumps the reactor until ctx is cancelled.
func (b *bridge) Run(ctx context.Context) error {
	return b.manager.Run(ctx)
}

// Close tears both links down.
func (b *bridge) Close() {
	b.manager.RemoveLink(b.mqtt)
	b.manager.RemoveLink(b.serial)
}
