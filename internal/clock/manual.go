package clock

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Clock whose time only moves when Advance is called.
// Timer callbacks run synchronously on the goroutine calling Advance.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	pending map[int]*manualTimer
}

var _ Clock = (*Manual)(nil)

type manualTimer struct {
	id       int
	clock    *Manual
	deadline time.Time
	fn       func()
	period   time.Duration // zero for single-shot timers
	ch       chan time.Time
}

// NewManual creates a manual clock starting at the given time.
func NewManual(start time.Time) *Manual {
	return &Manual{
		now:     start,
		pending: make(map[int]*manualTimer),
	}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.add(d, 0, f, nil)
}

func (m *Manual) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return &manualTicker{t: m.add(d, d, nil, make(chan time.Time, 1))}
}

// Pending returns the number of timers and tickers that have not fired or been stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Advance moves the clock forward by d, firing every timer and ticker that falls due, in deadline order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	for {
		next := m.nextDue(target)
		if next == nil {
			break
		}
		m.now = next.deadline
		if next.period > 0 {
			next.deadline = next.deadline.Add(next.period)
			select {
			case next.ch <- m.now:
			default:
			}
			continue
		}
		delete(m.pending, next.id)
		fn := next.fn
		m.mu.Unlock()
		fn()
		m.mu.Lock()
	}
	m.now = target
	m.mu.Unlock()
}

func (m *Manual) add(d, period time.Duration, fn func(), ch chan time.Time) *manualTimer {
	m.nextID++
	t := &manualTimer{
		id:       m.nextID,
		clock:    m,
		deadline: m.now.Add(d),
		fn:       fn,
		period:   period,
		ch:       ch,
	}
	m.pending[t.id] = t
	return t
}

func (m *Manual) nextDue(target time.Time) *manualTimer {
	due := make([]*manualTimer, 0, len(m.pending))
	for _, t := range m.pending {
		if !t.deadline.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].id < due[j].id
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	return due[0]
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if _, ok := t.clock.pending[t.id]; !ok {
		return false
	}
	delete(t.clock.pending, t.id)
	return true
}

type manualTicker struct {
	t *manualTimer
}

func (k *manualTicker) C() <-chan time.Time {
	return k.t.ch
}

func (k *manualTicker) Stop() {
	k.t.Stop()
}
