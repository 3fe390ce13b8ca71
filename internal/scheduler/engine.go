// Package scheduler holds the pending fire instant of every enabled alarm in
// a min-heap and emits an AlarmEvent on C() when one comes due.
package scheduler

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"
)

var (
	ErrInvalidFireTime = errors.New("scheduler: invalid fire time")
	ErrStopped         = errors.New("scheduler: engine stopped")
)

type AlarmEvent struct {
	AlarmID string
	Title   string
	FireAt  time.Time
}

// entry is a queued fire; index tracks its heap position so a reschedule
// or cancel is a heap.Fix or heap.Remove rather than a scan.
type entry struct {
	ev    AlarmEvent
	index int
}

type fireQueue []*entry

func (q fireQueue) Len() int { return len(q) }

func (q fireQueue) Less(i, j int) bool {
	a, b := q[i].ev, q[j].ev
	if a.FireAt.Equal(b.FireAt) {
		return a.AlarmID < b.AlarmID
	}
	return a.FireAt.Before(b.FireAt)
}

func (q fireQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *fireQueue) Push(x any) {
	it := x.(*entry)
	it.index = len(*q)
	*q = append(*q, it)
}

func (q *fireQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*q = old[:n-1]
	return it
}

// Engine keeps at most one pending fire per alarm. Emission never blocks:
// when the consumer falls behind and the buffer is full the event is counted
// in Dropped and discarded.
type Engine struct {
	clock   clock.Clock
	mu      sync.Mutex
	queue   fireQueue
	byID    map[string]*entry
	out     chan AlarmEvent
	wakeup  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	dropped uint64
}

func NewEngine(bufferSize int, clk clock.Clock) *Engine {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Engine{
		clock:  clk,
		queue:  make(fireQueue, 0),
		byID:   make(map[string]*entry),
		out:    make(chan AlarmEvent, bufferSize),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (e *Engine) C() <-chan AlarmEvent {
	return e.out
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.stopped {
		return
	}
	e.started = true
	heap.Init(&e.queue)
	go e.loop()
}

func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.stopped = true
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	e.mu.Unlock()
	<-e.doneCh
}

// Schedule queues ev, replacing any pending fire for the same alarm.
func (e *Engine) Schedule(ev AlarmEvent) error {
	if ev.FireAt.IsZero() || ev.AlarmID == "" {
		return ErrInvalidFireTime
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrStopped
	}

	if it, ok := e.byID[ev.AlarmID]; ok {
		it.ev = ev
		heap.Fix(&e.queue, it.index)
	} else {
		it := &entry{ev: ev}
		heap.Push(&e.queue, it)
		e.byID[ev.AlarmID] = it
	}
	e.signalWakeup()
	return nil
}

// Cancel drops the pending fire for alarmID and reports whether there was one.
func (e *Engine) Cancel(alarmID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.removeLocked(alarmID) {
		return false
	}
	e.signalWakeup()
	return true
}

func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

func (e *Engine) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

// PendingIDs lists the alarms with a queued fire, in no particular order.
func (e *Engine) PendingIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.byID))
	for id := range e.byID {
		ids = append(ids, id)
	}
	return ids
}

// NextFire reports the pending fire for alarmID.
func (e *Engine) NextFire(alarmID string) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	it, ok := e.byID[alarmID]
	if !ok {
		return time.Time{}, false
	}
	return it.ev.FireAt, true
}

func (e *Engine) removeLocked(alarmID string) bool {
	it, ok := e.byID[alarmID]
	if !ok {
		return false
	}
	heap.Remove(&e.queue, it.index)
	delete(e.byID, alarmID)
	return true
}

func (e *Engine) loop() {
	defer close(e.doneCh)
	defer close(e.out)

	var timer clock.Timer
	for {
		next, hasNext := e.peek()
		if !hasNext {
			select {
			case <-e.wakeup:
				continue
			case <-e.stopCh:
				stopTimer(timer)
				return
			}
		}

		wait := next.FireAt.Sub(e.clock.Now())
		if wait < 0 {
			wait = 0
		}
		timer = e.resetTimer(timer, wait)

		select {
		case <-timer.C():
			for _, ev := range e.popDue(e.clock.Now()) {
				select {
				case e.out <- ev:
				default:
					atomic.AddUint64(&e.dropped, 1)
				}
			}
		case <-e.wakeup:
			continue
		case <-e.stopCh:
			stopTimer(timer)
			return
		}
	}
}

func (e *Engine) signalWakeup() {
	select {
	case e.wakeup <- struct{}{}:
	default:
	}
}

func (e *Engine) peek() (AlarmEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return AlarmEvent{}, false
	}
	return e.queue[0].ev, true
}

func (e *Engine) popDue(now time.Time) []AlarmEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []AlarmEvent
	for len(e.queue) > 0 && !e.queue[0].ev.FireAt.After(now) {
		it := heap.Pop(&e.queue).(*entry)
		delete(e.byID, it.ev.AlarmID)
		out = append(out, it.ev)
	}
	return out
}

func (e *Engine) resetTimer(timer clock.Timer, d time.Duration) clock.Timer {
	if timer == nil {
		return e.clock.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer clock.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C():
		default:
		}
	}
}
