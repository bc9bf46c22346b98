package db

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
)

// StartMemLoc is the memory location of the first link record in a
// device. Records are 8 bytes and walk downward from here.
const StartMemLoc = 0x0fff

// EntrySize is the spacing between record memory locations.
const EntrySize = 0x08

// DeviceDB is the local copy of one device's all-link database.
// Records are keyed by memory location; deleted records stay in the
// device as unused slots that later writes recycle. Not safe for
// concurrent use; it belongs to the reactor goroutine.
type DeviceDB struct {
	// Addr is the device this database belongs to.
	Addr insteon.Address

	// Delta is the device's database revision counter. A refresh reply
	// carrying a different delta means the local copy is stale.
	Delta *int

	// EngineVersion is the device generation: 0 for I1, 1 for I2, 2 for
	// I2CS. It selects the scan and modify strategy.
	EngineVersion int

	entries map[uint16]*DeviceEntry
	unused  map[uint16]*DeviceEntry

	// groups maps a group to the controller entries for it.
	groups map[uint8][]*DeviceEntry

	// last is the high-water record terminating the database.
	last *DeviceEntry

	path string
}

// NewDeviceDB returns an empty database for a device. path may be empty
// to disable persistence.
func NewDeviceDB(addr insteon.Address, path string) *DeviceDB {
	return &DeviceDB{
		Addr:    addr,
		entries: make(map[uint16]*DeviceEntry),
		unused:  make(map[uint16]*DeviceEntry),
		groups:  make(map[uint8][]*DeviceEntry),
		last: &DeviceEntry{
			MemLoc: StartMemLoc,
			Flags:  insteon.RecordFlags{LastRecord: true},
		},
		path: path,
	}
}

// SetPath changes where the database saves itself.
func (db *DeviceDB) SetPath(path string) { db.path = path }

// Len returns the number of in-use records.
func (db *DeviceDB) Len() int { return len(db.entries) }

// Last returns the high-water record.
func (db *DeviceDB) Last() *DeviceEntry { return db.last }

// IsCurrent reports whether the local copy matches the device's
// revision counter.
func (db *DeviceDB) IsCurrent(delta int) bool {
	return db.Delta != nil && *db.Delta == delta
}

// SetDelta records the device's revision counter and saves.
func (db *DeviceDB) SetDelta(delta int) {
	db.Delta = &delta
	db.save()
}

// Entries returns the in-use records in memory order, newest last.
func (db *DeviceDB) Entries() []*DeviceEntry {
	out := make([]*DeviceEntry, 0, len(db.entries))
	for _, e := range db.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemLoc > out[j].MemLoc })
	return out
}

// Unused returns the recyclable record slots, highest location first.
func (db *DeviceDB) Unused() []*DeviceEntry {
	out := make([]*DeviceEntry, 0, len(db.unused))
	for _, e := range db.unused {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemLoc > out[j].MemLoc })
	return out
}

// Find returns the in-use record matching the link triple. localGroup,
// if >= 0, additionally requires Data[2] to match, distinguishing
// multi-button responder records.
func (db *DeviceDB) Find(addr insteon.Address, group uint8, controller bool,
	localGroup int) *DeviceEntry {
	for _, e := range db.entries {
		if !e.Same(addr, group, controller) {
			continue
		}
		if localGroup >= 0 && e.Data[2] != byte(localGroup) {
			continue
		}
		return e
	}
	return nil
}

// FindMemLoc returns the record at a memory location, used or unused.
func (db *DeviceDB) FindMemLoc(memLoc uint16) *DeviceEntry {
	if e, ok := db.entries[memLoc]; ok {
		return e
	}
	return db.unused[memLoc]
}

// FindGroup returns the controller records for a group.
func (db *DeviceDB) FindGroup(group uint8) []*DeviceEntry {
	return db.groups[group]
}

// FindAll returns all in-use records for a peer address.
func (db *DeviceDB) FindAll(addr insteon.Address) []*DeviceEntry {
	var out []*DeviceEntry
	for _, e := range db.Entries() {
		if e.Addr == addr {
			out = append(out, e)
		}
	}
	return out
}

// Add inserts a record from a scan or a confirmed write. In-use records
// go to the entry table, the high-water record becomes the new last
// marker, and anything else is an unused slot available for recycling.
// The entry and unused tables stay disjoint so a record flipping state
// moves between them.
func (db *DeviceDB) Add(entry *DeviceEntry) {
	switch {
	case entry.Flags.InUse:
		db.entries[entry.MemLoc] = entry
		delete(db.unused, entry.MemLoc)
		if entry.Flags.Controller {
			db.addGroup(entry)
		}

	case entry.Flags.LastRecord:
		db.last = entry

	default:
		db.unused[entry.MemLoc] = entry
		delete(db.entries, entry.MemLoc)
		if entry.Flags.Controller {
			db.removeGroup(entry)
		}
	}
	db.save()
}

func (db *DeviceDB) addGroup(entry *DeviceEntry) {
	controllers := db.groups[entry.Group]
	for i, e := range controllers {
		if e.MemLoc == entry.MemLoc {
			controllers[i] = entry
			return
		}
	}
	db.groups[entry.Group] = append(controllers, entry)
}

func (db *DeviceDB) removeGroup(entry *DeviceEntry) {
	controllers := db.groups[entry.Group]
	for i, e := range controllers {
		if e.MemLoc == entry.MemLoc {
			db.groups[entry.Group] = append(controllers[:i], controllers[i+1:]...)
			return
		}
	}
}

// NextMemLoc claims the current high-water location for a new record
// and pushes the marker down one slot.
func (db *DeviceDB) NextMemLoc() uint16 {
	loc := db.last.MemLoc
	db.last.MemLoc -= EntrySize
	return loc
}

// Clear wipes the local copy, resets the high-water marker, and saves.
func (db *DeviceDB) Clear() {
	db.Delta = nil
	db.entries = make(map[uint16]*DeviceEntry)
	db.unused = make(map[uint16]*DeviceEntry)
	db.groups = make(map[uint8][]*DeviceEntry)
	db.last = &DeviceEntry{
		MemLoc: StartMemLoc,
		Flags:  insteon.RecordFlags{LastRecord: true},
	}
	db.save()
}

func (db *DeviceDB) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DeviceDB %s:\n", db.Addr)
	for _, e := range db.Entries() {
		fmt.Fprintf(&b, "  %s\n", e)
	}
	for _, e := range db.Unused() {
		fmt.Fprintf(&b, "  %s\n", e)
	}
	fmt.Fprintf(&b, "  %s\n", db.last)
	return b.String()
}

// deviceDBFile is the on-disk JSON layout.
type deviceDBFile struct {
	Addr          insteon.Address `json:"addr"`
	Delta         *int            `json:"delta"`
	EngineVersion int             `json:"engine"`
	Used          []*DeviceEntry  `json:"used"`
	Unused        []*DeviceEntry  `json:"unused"`
	Last          *DeviceEntry    `json:"last"`
}

// Save writes the database to its path. An empty path is a no-op.
func (db *DeviceDB) Save() error {
	if db.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(db.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(deviceDBFile{
		Addr:          db.Addr,
		Delta:         db.Delta,
		EngineVersion: db.EngineVersion,
		Used:          db.Entries(),
		Unused:        db.Unused(),
		Last:          db.last,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(db.path, data, 0o644)
}

func (db *DeviceDB) save() { _ = db.Save() }

// LoadDeviceDB reads a saved database. A missing file returns an empty
// database for addr, not an error.
func LoadDeviceDB(addr insteon.Address, path string) (*DeviceDB, error) {
	db := NewDeviceDB(addr, path)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return db, nil
	}
	if err != nil {
		return nil, err
	}
	var file deviceDBFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("device db %s: %w", path, err)
	}
	db.Delta = file.Delta
	db.EngineVersion = file.EngineVersion
	for _, e := range file.Used {
		db.entries[e.MemLoc] = e
		if e.Flags.Controller {
			db.addGroup(e)
		}
	}
	for _, e := range file.Unused {
		db.unused[e.MemLoc] = e
	}
	if file.Last != nil {
		db.last = file.Last
	}
	return db, nil
}
