package db

import (
	"errors"
	"fmt"

	"github.com/insteon-mqtt/insteon-go/pkg/handler"
	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
	"github.com/insteon-mqtt/insteon-go/pkg/message"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

// ErrDbUpdate indicates a database write was rejected by the modem or
// device.
var ErrDbUpdate = errors.New("database update failed")

// ModemDBGet downloads the modem's all-link database. Send it with a
// GetFirstAllLink command; each record reply re-queues a GetNextAllLink
// with this same handler until the modem NAKs the request, which marks
// the end of the database.
type ModemDBGet struct {
	handler.Base

	db *ModemDB
}

// NewModemDBGet builds the handler filling db.
func NewModemDBGet(db *ModemDB, onDone handler.DoneFunc) *ModemDBGet {
	return &ModemDBGet{
		Base: handler.Base{Retries: handler.DefaultRetries, OnDone: onDone},
		db:   db,
	}
}

// Receive walks the record dump.
func (h *ModemDBGet) Receive(s protocol.Sender, msg message.Message) protocol.Outcome {
	switch m := msg.(type) {
	case *message.GetFirstAllLink:
		return h.requestAck(m.Ack)

	case *message.GetNextAllLink:
		return h.requestAck(m.Ack)

	case *message.AllLinkRecord:
		if m.Flags.InUse {
			h.db.Add(ModemEntryFromRecord(m))
		}
		// Ask for the next record; this handler consumes its replies
		// too, so the walk continues until the end-of-db NAK above.
		s.Send(&message.GetNextAllLink{}, h)
		return protocol.Finished
	}
	return protocol.Unknown
}

// requestAck handles the echo of a get-first or get-next request. A NAK
// is not an error here; it means the walk is past the last record.
func (h *ModemDBGet) requestAck(ack message.Ack) protocol.Outcome {
	if ack == message.AckNak {
		h.Done(nil)
		return protocol.Finished
	}
	return protocol.Continue
}

// modemDBUpdate is a queued follow-up write in a modify chain.
type modemDBUpdate struct {
	msg   *message.ManageAllLinkRecord
	entry *ModemEntry
}

// ModemDBModify writes one record change (add, update or delete) to the
// modem and mirrors the confirmed change into the local database.
// Follow-up writes queued with AddUpdate run after the current one
// acks, sharing this handler.
//
// The modem reports a missing record for UPDATE and an existing record
// for ADD with a NAK, so each is retried once as the other operation.
// DELETE NAKs and second failures are hard errors.
type ModemDBModify struct {
	handler.Base

	db       *ModemDB
	entry    *ModemEntry
	existing *ModemEntry

	isRetry bool
	next    []modemDBUpdate
}

// NewModemDBModify builds the handler for a write whose confirmed
// result is entry. existing is the record being updated, or nil for an
// add or delete.
func NewModemDBModify(db *ModemDB, entry, existing *ModemEntry,
	onDone handler.DoneFunc) *ModemDBModify {
	return &ModemDBModify{
		Base:     handler.Base{Retries: handler.DefaultRetries, OnDone: onDone},
		db:       db,
		entry:    entry,
		existing: existing,
	}
}

// AddUpdate queues a follow-up write to run once the current one acks.
func (h *ModemDBModify) AddUpdate(msg *message.ManageAllLinkRecord, entry *ModemEntry) {
	h.next = append(h.next, modemDBUpdate{msg: msg, entry: entry})
}

// Receive consumes the manage-record echo.
func (h *ModemDBModify) Receive(s protocol.Sender, msg message.Message) protocol.Outcome {
	m, ok := msg.(*message.ManageAllLinkRecord)
	if !ok {
		return protocol.Unknown
	}

	if m.Ack == message.AckNak {
		h.handleNak(s, m)
		return protocol.Finished
	}

	switch m.Cmd {
	case message.ManageDelete:
		h.db.Delete(h.entry)

	case message.ManageUpdate:
		// Only the data bytes can change in an update; fold them into
		// the record already in the database.
		if h.existing != nil {
			h.existing.Data = h.entry.Data
		}
		h.db.save()

	case message.ManageAddController, message.ManageAddResponder:
		h.db.Add(h.entry)
	}

	if len(h.next) > 0 {
		up := h.next[0]
		h.next = h.next[1:]
		h.entry = up.entry
		s.Send(up.msg, h)
	} else {
		h.Done(nil)
	}
	return protocol.Finished
}

// handleNak swaps a failed UPDATE for an ADD and vice versa. The modem
// keys records the same way the local database does, so a NAK means the
// local copy disagreed with the modem about the record's existence.
func (h *ModemDBModify) handleNak(s protocol.Sender, m *message.ManageAllLinkRecord) {
	if m.Cmd == message.ManageDelete || h.isRetry {
		h.Done(fmt.Errorf("%w: modem %s %s grp %d", ErrDbUpdate,
			m.Cmd, h.entry.Addr, h.entry.Group))
		return
	}

	switch m.Cmd {
	case message.ManageUpdate:
		// No such record on the modem; add it instead.
		h.isRetry = true
		s.Send(h.modifyMsg(addCmd(h.entry)), h)

	case message.ManageAddController, message.ManageAddResponder:
		// The record already exists on the modem; mirror it locally and
		// update it in place.
		h.db.Add(h.entry)
		h.existing = h.entry
		h.isRetry = true
		s.Send(h.modifyMsg(message.ManageUpdate), h)

	default:
		h.Done(fmt.Errorf("%w: modem %s %s grp %d", ErrDbUpdate,
			m.Cmd, h.entry.Addr, h.entry.Group))
	}
}

func (h *ModemDBModify) modifyMsg(cmd message.ManageCmd) *message.ManageAllLinkRecord {
	return &message.ManageAllLinkRecord{
		Cmd:   cmd,
		Flags: insteon.RecordFlags{InUse: true, Controller: h.entry.Controller},
		Group: h.entry.Group,
		Addr:  h.entry.Addr,
		Data:  h.entry.Data,
	}
}

func addCmd(entry *ModemEntry) message.ManageCmd {
	if entry.Controller {
		return message.ManageAddController
	}
	return message.ManageAddResponder
}

// ModemDBAdd builds and sends the write for adding or updating a modem
// record. If the record already exists locally the write is an UPDATE,
// otherwise an ADD of the right direction.
func ModemDBAdd(s protocol.Sender, db *ModemDB, entry *ModemEntry,
	onDone handler.DoneFunc) {
	existing := db.Find(entry.Addr, entry.Group, entry.Controller)
	cmd := addCmd(entry)
	if existing != nil {
		cmd = message.ManageUpdate
	}

	h := NewModemDBModify(db, entry, existing, onDone)
	s.Send(h.modifyMsg(cmd), h)
}

// ModemDBDelete builds and sends the write removing a modem record. The
// data bytes are always zero; the modem ignores them for deletes.
func ModemDBDelete(s protocol.Sender, db *ModemDB, entry *ModemEntry,
	onDone handler.DoneFunc) {
	h := NewModemDBModify(db, entry, nil, onDone)
	s.Send(&message.ManageAllLinkRecord{
		Cmd:   message.ManageDelete,
		Flags: insteon.RecordFlags{InUse: true, Controller: entry.Controller},
		Group: entry.Group,
		Addr:  entry.Addr,
	}, h)
}

var (
	_ protocol.Handler = (*ModemDBGet)(nil)
	_ protocol.Handler = (*ModemDBModify)(nil)
)
