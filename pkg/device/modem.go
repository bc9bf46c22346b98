package device

import (
	"path/filepath"
	"time"

	"github.com/insteon-mqtt/insteon-go/pkg/db"
	"github.com/insteon-mqtt/insteon-go/pkg/handler"
	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
	"github.com/insteon-mqtt/insteon-go/pkg/log"
	"github.com/insteon-mqtt/insteon-go/pkg/message"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

// Modem is the PLM itself: it owns the modem link database, the
// registry of managed devices, and the persistent read handlers that
// route unsolicited traffic to them.
type Modem struct {
	// Addr is the modem's own Insteon address, filled in by
	// RefreshInfo.
	Addr insteon.Address

	// Device category, sub-category, and firmware from the last info
	// exchange.
	DevCat   byte
	DevSub   byte
	Firmware byte

	// DB is the modem's all-link database.
	DB *db.ModemDB

	sender  protocol.Sender
	logger  log.Logger
	storage string

	devices map[insteon.Address]Device
}

// NewModem loads the modem database from the storage directory and
// builds an empty device registry. A nil logger disables logging.
func NewModem(s protocol.Sender, storage string, logger log.Logger) *Modem {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	path := filepath.Join(storage, "modem.json")
	mdb, err := db.LoadModemDB(path)
	if err != nil {
		logger.Log(log.Event{
			Timestamp: time.Now(),
			Link:      "storage",
			Category:  log.CategoryError,
			Error: &log.ErrorEventData{
				Layer:   log.LayerDevice,
				Message: err.Error(),
				Context: "load modem db",
			},
		})
		mdb = db.NewModemDB(path)
	}
	return &Modem{
		DB:      mdb,
		sender:  s,
		logger:  logger,
		storage: storage,
		devices: make(map[insteon.Address]Device),
	}
}

// Add registers a managed device with the broadcast router.
func (m *Modem) Add(dev Device) {
	m.devices[dev.Address()] = dev
}

// Device returns the managed device at addr, or nil.
func (m *Modem) Device(addr insteon.Address) Device {
	return m.devices[addr]
}

// Devices returns the registered devices.
func (m *Modem) Devices() []Device {
	out := make([]Device, 0, len(m.devices))
	for _, dev := range m.devices {
		out = append(out, dev)
	}
	return out
}

// ReadHandlers returns the persistent handlers the engine needs for
// unsolicited modem traffic: the scene broadcast router, all-link
// completions from device-initiated pairing, and user factory resets.
func (m *Modem) ReadHandlers() []protocol.Handler {
	return []protocol.Handler{
		handler.NewBroadcast(m.find),
		handler.NewLinkComplete(m.handleLinkComplete),
		handler.NewModemReset(m.clearDB, nil),
	}
}

func (m *Modem) find(addr insteon.Address) handler.Broadcastee {
	dev, ok := m.devices[addr]
	if !ok {
		return nil
	}
	return dev
}

// handleLinkComplete mirrors a finished all-link session into the
// local database copy.
func (m *Modem) handleLinkComplete(msg *message.AllLinkComplete) {
	if msg.Cmd == message.LinkDelete {
		if entry := m.DB.Find(msg.Addr, msg.Group, false); entry != nil {
			m.DB.Delete(entry)
		}
		if entry := m.DB.Find(msg.Addr, msg.Group, true); entry != nil {
			m.DB.Delete(entry)
		}
	} else {
		m.DB.Add(&db.ModemEntry{
			Addr:       msg.Addr,
			Group:      msg.Group,
			Controller: msg.Cmd == message.LinkController,
			Data:       [3]byte{msg.DevCat, msg.DevSub, msg.Firmware},
		})
	}
	m.saveDB()
}

func (m *Modem) clearDB() {
	m.DB.Clear()
	m.saveDB()
}

func (m *Modem) saveDB() {
	if err := m.DB.Save(); err != nil {
		m.logger.Log(log.Event{
			Timestamp: time.Now(),
			Link:      "storage",
			Category:  log.CategoryError,
			Error: &log.ErrorEventData{
				Layer:   log.LayerDevice,
				Message: err.Error(),
				Context: "save modem db",
			},
		})
	}
}

// RefreshInfo queries the modem's address and firmware (0x60).
func (m *Modem) RefreshInfo(onDone handler.DoneFunc) {
	h := handler.NewModemInfo(func(info *message.ModemInfo) {
		m.Addr = info.Addr
		m.DevCat = info.DevCat
		m.DevSub = info.DevSub
		m.Firmware = info.Firmware
		m.DB.Firmware = info.Firmware
	}, onDone)
	m.sender.Send(&message.ModemInfo{}, h)
}

// RefreshDB downloads the modem's all-link database with the
// get-first/get-next walk, replacing the local copy.
func (m *Modem) RefreshDB(onDone handler.DoneFunc) {
	m.DB.Clear()
	h := db.NewModemDBGet(m.DB, func(err error) {
		if err == nil {
			m.saveDB()
		}
		onDone(err)
	})
	m.sender.Send(&message.GetFirstAllLink{}, h)
}

// Linking puts the modem into all-linking mode for one group. The
// command resolves when a device completes the link, the session is
// cancelled, or the linking window times out.
func (m *Modem) Linking(cmd message.LinkCmd, group uint8, onDone handler.DoneFunc) {
	h := handler.NewLinking(m.sender, func(msg *message.AllLinkComplete) {
		m.handleLinkComplete(msg)
	}, onDone)
	m.sender.Send(&message.StartLinking{Cmd: cmd, Group: group}, h)
}

// CancelLinking leaves all-linking mode.
func (m *Modem) CancelLinking(onDone handler.DoneFunc) {
	m.sender.Send(&message.CancelLinking{}, handler.NewLinkStart(onDone))
}

// Reset factory resets the modem and wipes the local database copy.
func (m *Modem) Reset(onDone handler.DoneFunc) {
	m.sender.Send(&message.ResetModem{}, handler.NewModemReset(m.clearDB, onDone))
}

// Scene triggers one of the modem's controller groups. Linked
// responders change state and the modem runs the cleanup sequence.
func (m *Modem) Scene(group uint8, on bool, onDone handler.DoneFunc) {
	msg := &message.ModemScene{
		Group: group,
		Cmd1:  EncodeOnOff(on, ModeNormal),
	}
	m.sender.Send(msg, handler.NewScene(msg, nil, onDone))
}

// DBAdd writes an entry to the modem database, update or add as
// needed.
func (m *Modem) DBAdd(entry *db.ModemEntry, onDone handler.DoneFunc) {
	db.ModemDBAdd(m.sender, m.DB, entry, onDone)
}

// DBDelete removes an entry from the modem database.
func (m *Modem) DBDelete(entry *db.ModemEntry, onDone handler.DoneFunc) {
	db.ModemDBDelete(m.sender, m.DB, entry, onDone)
}
