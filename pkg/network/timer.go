package network

import (
	"container/heap"
	"time"
)

// TimedCall is a callback scheduled for a point in time. The manager
// removes a call from the heap before invoking it, so a callback may
// freely reschedule itself.
type TimedCall struct {
	id    uint64
	at    time.Time
	fn    func(now time.Time)
	index int
}

// ID identifies the call for Cancel.
func (tc *TimedCall) ID() uint64 { return tc.id }

// At returns the scheduled time.
func (tc *TimedCall) At() time.Time { return tc.at }

// timerHeap is a min-heap of TimedCalls ordered by due time.
type timerHeap []*TimedCall

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	tc := x.(*TimedCall)
	tc.index = len(*h)
	*h = append(*h, tc)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	tc := old[n-1]
	old[n-1] = nil
	tc.index = -1
	*h = old[:n-1]
	return tc
}

// timers wraps the heap with id assignment and cancellation.
type timers struct {
	heap   timerHeap
	byID   map[uint64]*TimedCall
	nextID uint64
}

func newTimers() *timers {
	return &timers{byID: make(map[uint64]*TimedCall)}
}

func (t *timers) add(at time.Time, fn func(now time.Time)) uint64 {
	t.nextID++
	tc := &TimedCall{id: t.nextID, at: at, fn: fn}
	heap.Push(&t.heap, tc)
	t.byID[tc.id] = tc
	return tc.id
}

func (t *timers) cancel(id uint64) bool {
	tc, ok := t.byID[id]
	if !ok {
		return false
	}
	delete(t.byID, id)
	heap.Remove(&t.heap, tc.index)
	return true
}

// next returns the earliest due time, or ok=false when empty.
func (t *timers) next() (time.Time, bool) {
	if len(t.heap) == 0 {
		return time.Time{}, false
	}
	return t.heap[0].at, true
}

// pop removes and returns the head call if it is due at now.
func (t *timers) pop(now time.Time) *TimedCall {
	if len(t.heap) == 0 || t.heap[0].at.After(now) {
		return nil
	}
	tc := heap.Pop(&t.heap).(*TimedCall)
	delete(t.byID, tc.id)
	return tc
}
