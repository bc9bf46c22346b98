// Package cmdseq chains commands that each finish through a done
// callback. Multi-step operations like database rebuilds or pairing
// need several round trips, and each send must return to the reactor so
// replies can be read; a Seq strings the steps together, advancing on
// every successful callback and aborting on the first error.
package cmdseq

import (
	"fmt"

	"github.com/insteon-mqtt/insteon-go/pkg/handler"
	"github.com/insteon-mqtt/insteon-go/pkg/log"
	"github.com/insteon-mqtt/insteon-go/pkg/message"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

// Handler is a reply handler whose resolution callback the sequence can
// take over. Every handler built on handler.Base satisfies it.
type Handler interface {
	protocol.Handler
	SetOnDone(fn handler.DoneFunc)
}

// step is one queued command.
type step struct {
	// fn runs an arbitrary command; it must resolve done exactly once.
	fn func(done handler.DoneFunc)

	// msg+h send one command through the engine.
	msg message.Message
	h   Handler
}

// Seq runs commands one after another. Steps are added with Add and
// AddMsg, then Run starts the chain. The zero value is not usable; use
// New.
type Seq struct {
	// ContinueOnError keeps the sequence going after a failed step.
	// The first error is still reported when the sequence ends.
	ContinueOnError bool

	sender protocol.Sender
	logger log.Logger
	name   string
	onDone handler.DoneFunc

	steps    []step
	total    int
	firstErr error
	running  bool
}

// New builds an empty sequence. name identifies it in the protocol log;
// onDone runs once when the chain completes or aborts.
func New(s protocol.Sender, logger log.Logger, name string, onDone handler.DoneFunc) *Seq {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Seq{
		sender: s,
		logger: logger,
		name:   name,
		onDone: onDone,
	}
}

// Add queues a function step. fn must call done exactly once, from the
// reactor goroutine.
func (q *Seq) Add(fn func(done handler.DoneFunc)) {
	q.steps = append(q.steps, step{fn: fn})
	q.total++
}

// AddMsg queues a send step. The handler's own done callback is
// replaced; completion flows through the sequence.
func (q *Seq) AddMsg(msg message.Message, h Handler) {
	q.steps = append(q.steps, step{msg: msg, h: h})
	q.total++
}

// Len returns the number of steps not yet started.
func (q *Seq) Len() int { return len(q.steps) }

// Run starts the chain. It returns once the first step is queued; the
// remaining steps run from the reply callbacks.
func (q *Seq) Run() {
	q.running = true
	q.stepDone(nil)
}

// stepDone advances the chain. It is the done callback handed to every
// step.
func (q *Seq) stepDone(err error) {
	if err != nil {
		if q.firstErr == nil {
			q.firstErr = fmt.Errorf("%s step %d: %w", q.name, q.total-len(q.steps), err)
		}
		if !q.ContinueOnError {
			q.finish()
			return
		}
	}

	if len(q.steps) == 0 {
		q.finish()
		return
	}

	next := q.steps[0]
	q.steps = q.steps[1:]

	q.logger.Log(log.Event{
		Layer:    log.LayerEngine,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySequence,
			NewState: fmt.Sprintf("step %d/%d", q.total-len(q.steps), q.total),
			Reason:   q.name,
		},
	})

	if next.fn != nil {
		next.fn(q.stepDone)
		return
	}
	next.h.SetOnDone(q.stepDone)
	q.sender.Send(next.msg, next.h)
}

func (q *Seq) finish() {
	if !q.running {
		return
	}
	q.running = false
	if q.onDone != nil {
		q.onDone(q.firstErr)
	}
}
