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

// GroupStart is the first group number handed out for virtual modem
// scenes. Groups 1-8 belong to simulated device button scenes; the gap
// up to 20 is left for future fixed uses.
const GroupStart = 20

// ModemDB is the local copy of the modem's all-link database. It is
// built from record dump replies and kept in sync as records are added
// or deleted on the modem. Not safe for concurrent use; like the
// engine, it belongs to the reactor goroutine.
type ModemDB struct {
	// Firmware is the modem firmware byte from the last info request.
	Firmware byte

	entries []*ModemEntry

	// groups maps a group number to the controller entries for it, used
	// to find responders of a modem scene and free scene groups.
	groups map[uint8][]*ModemEntry

	path string
}

// NewModemDB returns an empty database. path may be empty to disable
// persistence.
func NewModemDB(path string) *ModemDB {
	return &ModemDB{
		groups: make(map[uint8][]*ModemEntry),
		path:   path,
	}
}

// SetPath changes where the database saves itself.
func (db *ModemDB) SetPath(path string) { db.path = path }

// Len returns the number of records.
func (db *ModemDB) Len() int { return len(db.entries) }

// Entries returns the records in address-then-group order.
func (db *ModemDB) Entries() []*ModemEntry {
	out := make([]*ModemEntry, len(db.entries))
	copy(out, db.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Find returns the record matching the link triple, or nil.
func (db *ModemDB) Find(addr insteon.Address, group uint8, controller bool) *ModemEntry {
	for _, e := range db.entries {
		if e.Same(addr, group, controller) {
			return e
		}
	}
	return nil
}

// FindAll returns all records for a peer address.
func (db *ModemDB) FindAll(addr insteon.Address) []*ModemEntry {
	var out []*ModemEntry
	for _, e := range db.entries {
		if e.Addr == addr {
			out = append(out, e)
		}
	}
	return out
}

// FindGroup returns the controller records for a group.
func (db *ModemDB) FindGroup(group uint8) []*ModemEntry {
	return db.groups[group]
}

// EmptyGroups returns the scene group numbers not yet linked.
func (db *ModemDB) EmptyGroups() []uint8 {
	var out []uint8
	for g := GroupStart; g < 255; g++ {
		if _, ok := db.groups[uint8(g)]; !ok {
			out = append(out, uint8(g))
		}
	}
	return out
}

// Add inserts a record, replacing any existing record for the same link
// triple, and saves the database.
func (db *ModemDB) Add(entry *ModemEntry) {
	replaced := false
	for i, e := range db.entries {
		if e.Same(entry.Addr, entry.Group, entry.Controller) {
			db.entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		db.entries = append(db.entries, entry)
	}

	if entry.Controller {
		responders := db.groups[entry.Group]
		for i, e := range responders {
			if e.Same(entry.Addr, entry.Group, entry.Controller) {
				responders[i] = entry
				db.save()
				return
			}
		}
		db.groups[entry.Group] = append(responders, entry)
	}
	db.save()
}

// Delete removes a record from the local copy and saves. It does not
// touch the modem; see ModemDBDelete for the wire side.
func (db *ModemDB) Delete(entry *ModemEntry) {
	for i, e := range db.entries {
		if e == entry || e.Same(entry.Addr, entry.Group, entry.Controller) {
			db.entries = append(db.entries[:i], db.entries[i+1:]...)
			break
		}
	}
	if entry.Controller {
		responders := db.groups[entry.Group]
		for i, e := range responders {
			if e.Same(entry.Addr, entry.Group, entry.Controller) {
				responders = append(responders[:i], responders[i+1:]...)
				break
			}
		}
		if len(responders) == 0 {
			delete(db.groups, entry.Group)
		} else {
			db.groups[entry.Group] = responders
		}
	}
	db.save()
}

// Clear wipes the local copy and saves the empty database. Used after a
// confirmed factory reset.
func (db *ModemDB) Clear() {
	db.entries = nil
	db.groups = make(map[uint8][]*ModemEntry)
	db.save()
}

func (db *ModemDB) String() string {
	var b strings.Builder
	b.WriteString("ModemDB:\n")
	for _, e := range db.Entries() {
		fmt.Fprintf(&b, "  %s\n", e)
	}
	return b.String()
}

// modemDBFile is the on-disk JSON layout.
type modemDBFile struct {
	Firmware byte          `json:"firmware,omitempty"`
	Entries  []*ModemEntry `json:"entries"`
}

// Save writes the database to its path. A nil path is a no-op.
func (db *ModemDB) Save() error {
	if db.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(db.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(modemDBFile{
		Firmware: db.Firmware,
		Entries:  db.entries,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(db.path, data, 0o644)
}

// save is the best-effort save used on every mutation. Persistence
// failures must not break protocol handling.
func (db *ModemDB) save() { _ = db.Save() }

// LoadModemDB reads a saved database. A missing file returns an empty
// database, not an error.
func LoadModemDB(path string) (*ModemDB, error) {
	db := NewModemDB(path)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return db, nil
	}
	if err != nil {
		return nil, err
	}
	var file modemDBFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("modem db %s: %w", path, err)
	}
	db.Firmware = file.Firmware
	for _, e := range file.Entries {
		if replaced := db.Find(e.Addr, e.Group, e.Controller); replaced == nil {
			db.entries = append(db.entries, e)
			if e.Controller {
				db.groups[e.Group] = append(db.groups[e.Group], e)
			}
		}
	}
	return db, nil
}
