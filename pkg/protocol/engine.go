package protocol

import (
	"bytes"
	"errors"
	"time"

	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
	"github.com/insteon-mqtt/insteon-go/pkg/log"
	"github.com/insteon-mqtt/insteon-go/pkg/message"
)

// Engine errors.
var (
	// ErrTimeout indicates a command's replies never arrived and all
	// retransmits were used up.
	ErrTimeout = errors.New("command timed out")

	// ErrCancelled indicates a command was cancelled before resolving.
	ErrCancelled = errors.New("command cancelled")

	// ErrLinkDown indicates the transport disconnected; queued commands
	// fail fast until the link reconnects.
	ErrLinkDown = errors.New("link down")
)

// Link is the write side of the modem transport. Write queues data for
// transmission no earlier than after; the link reports the completed
// transmit back to the engine with Engine.Wrote.
type Link interface {
	Write(data []byte, after time.Time)
	Name() string
}

// writeState tracks what the head of the write queue is doing.
type writeState int

const (
	// stateReady means the next queued command can be written.
	stateReady writeState = iota

	// statePending means the head command is queued in the link but not
	// yet on the wire.
	statePending

	// stateWaitReply means the head command was written and its handler
	// is consuming replies. No other command may be written until the
	// handler resolves.
	stateWaitReply
)

func (s writeState) String() string {
	switch s {
	case stateReady:
		return "ready"
	case statePending:
		return "pending-write"
	case stateWaitReply:
		return "wait-for-reply"
	default:
		return "state-invalid"
	}
}

// pendingSend is a queued command with the handler that will consume its
// replies.
type pendingSend struct {
	msg     message.Message
	handler Handler
}

// timedSend is a command to be queued once its send time passes.
type timedSend struct {
	msg          message.Message
	handler      Handler
	at           time.Time
	highPriority bool
}

// dupRecord remembers a received message until its last possible hop has
// arrived, so retransmitted copies can be dropped.
type dupRecord struct {
	msg    message.Message
	expire time.Time
}

// Engine is the Insteon protocol state machine. It is exclusively owned
// by the reactor goroutine; see the package documentation.
type Engine struct {
	link   Link
	logger log.Logger

	// Inbound byte buffer. Frames are carved off the front; garbage is
	// discarded by resyncing on the next 0x02 byte.
	buf []byte

	queue []pendingSend
	state writeState

	// nakRetransmit marks the in-flight write as a NAK-triggered repeat
	// so it is not counted against the handler's retry budget.
	nakRetransmit bool

	readHandlers []Handler
	history      []dupRecord
	timed        []timedSend

	// nextWrite throttles transmits until earlier traffic has used up
	// its hops. Writing sooner can cancel a command in progress.
	nextWrite time.Time

	// OnReceived, if set, observes every decoded non-duplicate message.
	OnReceived func(message.Message)

	// OnFinished, if set, observes the message that resolved each
	// completed write.
	OnFinished func(message.Message)

	now func() time.Time
}

// NewEngine builds an engine writing to link. logger may be nil.
func NewEngine(link Link, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Engine{
		link:   link,
		logger: logger,
		now:    time.Now,
	}
}

// Send appends a command to the write queue. If nothing is outstanding
// it is written immediately. The handler consumes all replies to the
// command and decides when it is resolved.
func (e *Engine) Send(msg message.Message, h Handler) {
	e.enqueue(msg, h, false)
}

// SendHighPriority inserts a command at the head of the write queue.
func (e *Engine) SendHighPriority(msg message.Message, h Handler) {
	e.enqueue(msg, h, true)
}

// SendAfter queues a command to be sent no earlier than at. The time is
// a floor, not an exact schedule: the command moves to the write queue
// on the first Poll after at.
func (e *Engine) SendAfter(msg message.Message, h Handler, at time.Time) {
	e.timed = append(e.timed, timedSend{msg: msg, handler: h, at: at})
	// Keep the soonest send first.
	for i := len(e.timed) - 1; i > 0; i-- {
		if !e.timed[i].at.Before(e.timed[i-1].at) {
			break
		}
		e.timed[i], e.timed[i-1] = e.timed[i-1], e.timed[i]
	}
}

func (e *Engine) enqueue(msg message.Message, h Handler, highPriority bool) {
	out := pendingSend{msg: msg, handler: h}
	if highPriority {
		e.queue = append([]pendingSend{out}, e.queue...)
	} else {
		e.queue = append(e.queue, out)
	}
	if e.state == stateReady {
		e.sendNext()
	}
}

// AddReadHandler registers a handler consulted for messages no write
// handler claims, such as unsolicited broadcasts. Handlers are tried in
// registration order; the first one not reporting Unknown takes the
// message.
func (e *Engine) AddReadHandler(h Handler) {
	e.readHandlers = append(e.readHandlers, h)
}

// RemoveReadHandler unregisters a read handler. Unknown handlers are
// ignored.
func (e *Engine) RemoveReadHandler(h Handler) {
	for i, rh := range e.readHandlers {
		if rh == h {
			e.readHandlers = append(e.readHandlers[:i], e.readHandlers[i+1:]...)
			return
		}
	}
}

// Cancel resolves a pending or in-flight command with ErrCancelled and
// removes it from the queue. Bytes already written stay on the wire; any
// reply they provoke will be treated as unsolicited.
func (e *Engine) Cancel(h Handler) {
	for i, out := range e.queue {
		if out.handler != h {
			continue
		}
		inflight := i == 0 && e.state != stateReady
		e.queue = append(e.queue[:i], e.queue[i+1:]...)
		h.Failed(ErrCancelled)

		if inflight {
			e.changeState(stateReady, "cancelled")
			if len(e.queue) > 0 {
				e.sendNext()
			}
		}
		return
	}
}

// QueueContains reports whether a direct command to addr is already
// queued. Callers use it to avoid piling duplicate commands onto a slow
// device.
func (e *Engine) QueueContains(addr insteon.Address) bool {
	for _, out := range e.queue {
		switch m := out.msg.(type) {
		case *message.StdSend:
			if m.To == addr {
				return true
			}
		case *message.ExtSend:
			if m.To == addr {
				return true
			}
		}
	}
	return false
}

// SetWaitTime moves the earliest time the next command may be written.
// Inbound traffic sets this automatically from hop counts; linking
// flows push it further out.
func (e *Engine) SetWaitTime(t time.Time) {
	e.nextWrite = t
}

// LinkDown fails every queued and timed command with ErrLinkDown and
// clears the read buffer. The engine is ready to resume once the
// transport reconnects.
func (e *Engine) LinkDown() {
	for _, out := range e.queue {
		out.handler.Failed(ErrLinkDown)
	}
	for _, ts := range e.timed {
		ts.handler.Failed(ErrLinkDown)
	}
	e.queue = nil
	e.timed = nil
	e.buf = nil
	e.nakRetransmit = false
	e.changeState(stateReady, "link down")
}

// Wrote is called by the link when the head-of-queue command has been
// written to the modem. The engine starts (or, for a NAK retransmit,
// resumes) the reply wait.
func (e *Engine) Wrote() {
	if len(e.queue) == 0 || e.state != statePending {
		return
	}
	e.changeState(stateWaitReply, "message written")

	if e.nakRetransmit {
		// The deadline stays armed from the counted send, so a modem
		// that NAKs forever still times out.
		e.nakRetransmit = false
		return
	}
	out := e.queue[0]
	out.handler.Sending(e.now(), out.msg)
}

// Poll drives time-based work: moving due timed sends onto the queue and
// expiring the in-flight handler. The reactor calls it periodically.
func (e *Engine) Poll(now time.Time) {
	for len(e.timed) > 0 && !e.timed[0].at.After(now) {
		ts := e.timed[0]
		e.timed = e.timed[1:]
		e.enqueue(ts.msg, ts.handler, ts.highPriority)
	}

	if e.state != stateWaitReply || len(e.queue) == 0 {
		return
	}
	out := e.queue[0]
	dl := out.handler.Deadline()
	if dl.IsZero() || now.Before(dl) {
		return
	}

	if out.handler.CanRetry() {
		e.capture(log.StateChangeEvent{
			Entity:   log.StateEntityHandler,
			OldState: "wait-for-reply",
			NewState: "retry",
			Reason:   "reply timed out",
		})
		bumpHops(out.msg)
		e.changeState(stateReady, "retrying")
		e.sendNext()
		return
	}

	// Retries exhausted.
	e.queue = e.queue[1:]
	out.handler.Failed(ErrTimeout)
	e.changeState(stateReady, "handler timed out")
	if len(e.queue) > 0 {
		e.sendNext()
	}
}

// NextDeadline returns the earliest time Poll has work to do: the
// in-flight handler's deadline or the first timed send. ok is false when
// neither is armed.
func (e *Engine) NextDeadline() (t time.Time, ok bool) {
	if e.state == stateWaitReply && len(e.queue) > 0 {
		if dl := e.queue[0].handler.Deadline(); !dl.IsZero() {
			t, ok = dl, true
		}
	}
	if len(e.timed) > 0 && (!ok || e.timed[0].at.Before(t)) {
		t, ok = e.timed[0].at, true
	}
	return t, ok
}

// ReadData appends raw modem bytes to the inbound buffer and carves off
// every complete frame, dispatching each decoded message.
func (e *Engine) ReadData(data []byte) {
	e.buf = append(e.buf, data...)

	for len(e.buf) > 1 {
		// Find a frame start. The byte can also appear inside a frame so
		// this is a guess until the frame decodes.
		start := bytes.IndexByte(e.buf, message.StartByte)
		if start == -1 {
			e.buf = nil
			return
		}
		if start != 0 {
			e.buf = e.buf[start:]
			if len(e.buf) < 2 {
				return
			}
		}

		msg, n, err := message.Decode(e.buf)
		switch {
		case errors.Is(err, message.ErrShortBuffer):
			return
		case errors.Is(err, message.ErrUnknownCode):
			e.capture(log.ErrorEventData{
				Layer:   log.LayerWire,
				Message: err.Error(),
				Context: "frame resync",
			})
			// Skip just the start byte. The unknown code may itself be
			// a stray 0x02 opening a real frame.
			e.buf = e.buf[1:]
			continue
		case err != nil:
			// Skip just the start byte: if a stray 0x02 landed inside a
			// frame, the real start may be further along.
			e.buf = e.buf[1:]
			continue
		}
		e.buf = e.buf[n:]

		now := e.now()
		if e.isDuplicate(msg, now) {
			e.captureMessage(msg, true)
			continue
		}
		e.captureMessage(msg, false)
		e.processMsg(msg, now)
	}
}

// isDuplicate drops retransmitted hops of recently seen messages and
// pushes the write throttle out to the message's hop expiry.
func (e *Engine) isDuplicate(msg message.Message, now time.Time) bool {
	var expire time.Time
	switch m := msg.(type) {
	case *message.StdReceived:
		expire = m.Expire
	case *message.ExtReceived:
		expire = m.Expire
	default:
		return false
	}

	// Drop history entries whose last hop can no longer arrive.
	kept := e.history[:0]
	for _, rec := range e.history {
		if now.Before(rec.expire) {
			kept = append(kept, rec)
		}
	}
	e.history = kept

	if expire.After(e.nextWrite) {
		e.nextWrite = expire
	}

	for _, rec := range e.history {
		if sameMessage(rec.msg, msg) {
			return true
		}
	}
	e.history = append(e.history, dupRecord{msg: msg, expire: expire})
	return false
}

func sameMessage(a, b message.Message) bool {
	switch m := a.(type) {
	case *message.StdReceived:
		if o, ok := b.(*message.StdReceived); ok {
			return m.Duplicate(o)
		}
	case *message.ExtReceived:
		if o, ok := b.(*message.ExtReceived); ok {
			return m.Duplicate(o)
		}
	}
	return false
}

// processMsg routes one decoded message: in-flight write handler first,
// then the registered read handlers.
func (e *Engine) processMsg(msg message.Message, now time.Time) {
	if e.OnReceived != nil {
		e.OnReceived(msg)
	}

	if len(e.queue) > 0 && e.state != stateReady {
		out := e.queue[0]

		// A NAK echo of the in-flight command means the modem rejected
		// it for retransmission. Send the identical bytes again; this is
		// a busy signal, not a failed attempt.
		if echo, ok := msg.(message.Echoed); ok &&
			echo.EchoAck() == message.AckNak &&
			bytes.Equal(echo.Marshal(), out.msg.Marshal()) {
			e.capture(log.StateChangeEvent{
				Entity:   log.StateEntityHandler,
				OldState: "wait-for-reply",
				NewState: "retransmit",
				Reason:   "modem NAK",
			})
			e.nakRetransmit = true
			e.changeState(stateReady, "modem NAK")
			e.sendNext()
			return
		}

		switch out.handler.Receive(e, msg) {
		case Finished:
			e.writeFinished()
			if e.OnFinished != nil {
				e.OnFinished(msg)
			}
			return
		case Continue:
			out.handler.Touch(now)
			return
		}
	}

	for _, h := range e.readHandlers {
		if h.Receive(e, msg) != Unknown {
			return
		}
	}

	e.capture(log.ErrorEventData{
		Layer:   log.LayerEngine,
		Message: "no handler for message",
		Context: msg.String(),
	})
}

// writeFinished removes the resolved head-of-queue command and writes
// the next one.
func (e *Engine) writeFinished() {
	e.queue = e.queue[1:]
	e.changeState(stateReady, "handler finished")
	if len(e.queue) > 0 {
		e.sendNext()
	}
}

// sendNext hands the head-of-queue command to the link. The link holds
// it until the write throttle allows transmission.
func (e *Engine) sendNext() {
	out := e.queue[0]
	data := out.msg.Marshal()

	e.capture(log.FrameEvent{Size: len(data), Data: data})
	e.link.Write(data, e.nextWrite)
	e.changeState(statePending, "writing")
}

func bumpHops(msg message.Message) {
	switch m := msg.(type) {
	case *message.StdSend:
		m.Flags = m.Flags.WithHops(m.Flags.MaxHops + 1)
	case *message.ExtSend:
		m.Flags = m.Flags.WithHops(m.Flags.MaxHops + 1)
	}
}

func (e *Engine) changeState(s writeState, reason string) {
	if e.state == s {
		return
	}
	e.capture(log.StateChangeEvent{
		Entity:   log.StateEntityWriteQueue,
		OldState: e.state.String(),
		NewState: s.String(),
		Reason:   reason,
	})
	e.state = s
}

// capture emits a protocol log event with the engine's link context.
func (e *Engine) capture(payload any) {
	ev := log.Event{
		Timestamp: e.now(),
		Link:      e.link.Name(),
	}
	switch p := payload.(type) {
	case log.FrameEvent:
		ev.Direction = log.DirectionOut
		ev.Layer = log.LayerTransport
		ev.Category = log.CategoryMessage
		ev.Frame = &p
	case log.StateChangeEvent:
		ev.Layer = log.LayerEngine
		ev.Category = log.CategoryState
		ev.StateChange = &p
	case log.ErrorEventData:
		ev.Direction = log.DirectionIn
		ev.Layer = p.Layer
		ev.Category = log.CategoryError
		ev.Error = &p
	}
	e.logger.Log(ev)
}

func (e *Engine) captureMessage(msg message.Message, duplicate bool) {
	me := log.MessageEvent{
		Code:      msg.Code(),
		Summary:   msg.String(),
		Duplicate: duplicate,
	}
	if echo, ok := msg.(message.Echoed); ok && echo.EchoAck() != message.AckNone {
		acked := echo.EchoAck() == message.AckOK
		me.Ack = &acked
	}
	e.logger.Log(log.Event{
		Timestamp: e.now(),
		Link:      e.link.Name(),
		Direction: log.DirectionIn,
		Layer:     log.LayerWire,
		Category:  log.CategoryMessage,
		Message:   &me,
	})
}
