package network

import (
	"context"
	"time"

	"github.com/insteon-mqtt/insteon-go/pkg/log"
)

// maxPumpWait bounds one pump iteration's blocking wait so the loop
// stays responsive to cancellation and newly scheduled work.
const maxPumpWait = 1 * time.Second

// eventBuffer sizes the inbound event channel. Reader goroutines block
// once it fills, which throttles a link that outruns the pump loop.
const eventBuffer = 64

// Poller gets a chance to run time-based work each pump iteration and
// contributes its next deadline to the iteration's wait interval. The
// protocol engine is the primary poller.
type Poller interface {
	Poll(now time.Time)
	NextDeadline() (time.Time, bool)
}

// linkState tracks one registered link's connection lifecycle.
type linkState struct {
	link      Link
	connected bool
	backoff   *Backoff
	retryID   uint64
	onUp      func()
	onDown    func(error)
}

// Manager is the single-threaded reactor. All link delivery, timer
// callbacks, and poller work run from the Pump loop; only the inbound
// event channel crosses goroutines.
type Manager struct {
	events  chan Event
	links   []*linkState
	timers  *timers
	pollers []Poller
	logger  log.Logger
	now     func() time.Time
}

// NewManager creates an empty reactor. A nil logger disables logging.
func NewManager(logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Manager{
		events: make(chan Event, eventBuffer),
		timers: newTimers(),
		logger: logger,
		now:    time.Now,
	}
}

// AddLink registers a link. When connected is true the manager connects
// it immediately; otherwise the first connect attempt is scheduled for
// the next pump iteration. onUp runs after every successful connect and
// onDown after every connection loss; either may be nil.
func (m *Manager) AddLink(l Link, connected bool, onUp func(), onDown func(error)) {
	ls := &linkState{
		link:    l,
		backoff: NewBackoff(),
		onUp:    onUp,
		onDown:  onDown,
	}
	m.links = append(m.links, ls)

	if connected {
		m.connect(ls)
	} else {
		m.scheduleReconnect(ls, m.now())
	}
}

// RemoveLink closes and unregisters a link. Pending reconnect attempts
// are cancelled.
func (m *Manager) RemoveLink(l Link) {
	for i, ls := range m.links {
		if ls.link != l {
			continue
		}
		if ls.retryID != 0 {
			m.timers.cancel(ls.retryID)
		}
		if ls.connected {
			ls.link.Close()
		}
		m.links = append(m.links[:i], m.links[i+1:]...)
		return
	}
}

// AddPoller registers a time-driven participant in the pump loop.
func (m *Manager) AddPoller(p Poller) {
	m.pollers = append(m.pollers, p)
}

// CallAt schedules fn to run from the pump loop at the given time.
// The returned id cancels the call via Cancel.
func (m *Manager) CallAt(at time.Time, fn func(now time.Time)) uint64 {
	return m.timers.add(at, fn)
}

// CallAfter schedules fn to run after the given delay.
func (m *Manager) CallAfter(d time.Duration, fn func(now time.Time)) uint64 {
	return m.timers.add(m.now().Add(d), fn)
}

// Cancel removes a scheduled call. It reports whether the call was
// still pending.
func (m *Manager) Cancel(id uint64) bool {
	return m.timers.cancel(id)
}

// Active reports whether any link is registered. A registered link is
// always either connected or scheduled for a reconnect attempt.
func (m *Manager) Active() bool {
	return len(m.links) > 0
}

// Connected reports whether the given link is currently up.
func (m *Manager) Connected(l Link) bool {
	for _, ls := range m.links {
		if ls.link == l {
			return ls.connected
		}
	}
	return false
}

// Run pumps until the context is cancelled or no links remain.
func (m *Manager) Run(ctx context.Context) error {
	for m.Active() {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.Pump()
	}
	return nil
}

// Pump runs one reactor iteration: wait for the earliest of an inbound
// event and the next deadline, dispatch pending events, fire due
// timers, run the pollers, then flush link writes.
func (m *Manager) Pump() {
	now := m.now()
	if wait := m.waitInterval(now); wait > 0 {
		select {
		case ev := <-m.events:
			m.dispatch(ev)
		case <-time.After(wait):
		}
	}

	// Drain whatever else arrived without blocking.
	for drained := false; !drained; {
		select {
		case ev := <-m.events:
			m.dispatch(ev)
		default:
			drained = true
		}
	}

	now = m.now()
	for {
		tc := m.timers.pop(now)
		if tc == nil {
			break
		}
		tc.fn(now)
	}

	for _, p := range m.pollers {
		p.Poll(now)
	}

	// Pollers and timers may have queued writes; flush them in the
	// same iteration.
	m.flush(m.now())
}

// waitInterval computes how long this iteration may block: the time to
// the earliest timer, poller deadline, or scheduled link write, capped
// at maxPumpWait.
func (m *Manager) waitInterval(now time.Time) time.Duration {
	wait := maxPumpWait

	clamp := func(at time.Time) {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		if d < wait {
			wait = d
		}
	}

	if at, ok := m.timers.next(); ok {
		clamp(at)
	}
	for _, p := range m.pollers {
		if at, ok := p.NextDeadline(); ok {
			clamp(at)
		}
	}
	for _, ls := range m.links {
		if !ls.connected {
			continue
		}
		if at, ok := ls.link.NextWrite(); ok {
			clamp(at)
		}
	}
	return wait
}

func (m *Manager) dispatch(ev Event) {
	ls := m.state(ev.Link)
	if ls == nil || !ls.connected {
		// A stale reader goroutine from a previous connection can
		// still post its final events; drop them.
		return
	}
	if ev.Err != nil {
		m.linkDown(ls, ev.Err)
		return
	}
	ev.Link.Deliver(ev)
}

func (m *Manager) flush(now time.Time) {
	for _, ls := range m.links {
		if !ls.connected {
			continue
		}
		if err := ls.link.Flush(now); err != nil {
			m.linkDown(ls, err)
		}
	}
}

func (m *Manager) state(l Link) *linkState {
	for _, ls := range m.links {
		if ls.link == l {
			return ls
		}
	}
	return nil
}

func (m *Manager) connect(ls *linkState) {
	if err := ls.link.Connect(m.events); err != nil {
		m.captureError(ls.link, err, "connect")
		m.scheduleReconnect(ls, m.now().Add(ls.backoff.Next()))
		return
	}
	ls.connected = true
	ls.backoff.Reset()
	m.captureState(ls.link, "down", "connected", "")
	if ls.onUp != nil {
		ls.onUp()
	}
}

func (m *Manager) linkDown(ls *linkState, err error) {
	ls.connected = false
	ls.link.Close()
	m.captureState(ls.link, "connected", "down", err.Error())
	if ls.onDown != nil {
		ls.onDown(err)
	}
	m.scheduleReconnect(ls, m.now().Add(ls.backoff.Next()))
}

func (m *Manager) scheduleReconnect(ls *linkState, at time.Time) {
	ls.retryID = m.timers.add(at, func(time.Time) {
		ls.retryID = 0
		m.connect(ls)
	})
}

func (m *Manager) captureState(l Link, oldState, newState, reason string) {
	m.logger.Log(log.Event{
		Timestamp: m.now(),
		Link:      l.Name(),
		Layer:     log.LayerTransport,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityLink,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (m *Manager) captureError(l Link, err error, context string) {
	m.logger.Log(log.Event{
		Timestamp: m.now(),
		Link:      l.Name(),
		Layer:     log.LayerTransport,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
			Context: context,
		},
	})
}
