// Package idle logs a user out after a period without activity.
//
// A Monitor is armed on construction and restarts its countdown on every recognised
// activity signal. When the countdown elapses it calls the timeout callback once and
// stays quiet until Rearm. Stop detaches it for good.
package idle

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/lms-session/internal/clock"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout is the inactivity window used when none is configured.
const DefaultTimeout = 30 * time.Minute

// Activity is a user interaction that proves the user is still present.
type Activity string

const (
	PointerDown Activity = "mousedown"
	PointerMove Activity = "mousemove"
	KeyPress    Activity = "keypress"
	Scroll      Activity = "scroll"
	TouchStart  Activity = "touchstart"
	Click       Activity = "click"
)

// Activities lists every signal that restarts the countdown.
var Activities = []Activity{PointerDown, PointerMove, KeyPress, Scroll, TouchStart, Click}

// Valid reports whether a is one of the recognised activity signals.
func (a Activity) Valid() bool {
	for _, known := range Activities {
		if a == known {
			return true
		}
	}
	return false
}

// State of a Monitor.
type State int

const (
	// Armed means the countdown is running.
	Armed State = iota
	// Fired means the timeout callback has run; activity is ignored until Rearm.
	Fired
	// Stopped means the monitor was detached and will never fire again.
	Stopped
)

func (s State) String() string {
	switch s {
	case Armed:
		return "ARMED"
	case Fired:
		return "FIRED"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Monitor watches for inactivity.
type Monitor struct {
	mu        sync.Mutex
	clock     clock.Clock
	timeout   time.Duration
	onTimeout func()
	state     State
	timer     clock.Timer
	// generation invalidates timer callbacks that were already running when the timer was replaced.
	generation uint64
	stopped    chan struct{}
}

type Option func(*Monitor)

func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

// New creates a monitor and arms it immediately. A non-positive timeout uses DefaultTimeout.
func New(timeout time.Duration, onTimeout func(), options ...Option) *Monitor {
	m := &Monitor{
		clock:     clock.Real{},
		timeout:   timeout,
		onTimeout: onTimeout,
		stopped:   make(chan struct{}),
	}
	for _, opt := range options {
		opt(m)
	}
	if m.timeout <= 0 {
		m.timeout = DefaultTimeout
	}

	m.mu.Lock()
	m.arm()
	m.mu.Unlock()

	log.Debug().Dur("timeout", m.timeout).Msg("Idle monitor armed")
	return m
}

// Minutes converts a configured whole number of minutes to a timeout.
func Minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// Signal records user activity. While armed the countdown restarts from zero; otherwise the
// signal is ignored. It reports whether the countdown was restarted.
func (m *Monitor) Signal(activity Activity) bool {
	if !activity.Valid() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Armed {
		return false
	}
	m.disarm()
	m.arm()
	return true
}

// Rearm restarts a fired monitor, typically after the user logs in again.
// It has no effect on an armed or stopped monitor.
func (m *Monitor) Rearm() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Fired {
		return false
	}
	m.state = Armed
	m.arm()
	log.Debug().Msg("Idle monitor re-armed")
	return true
}

// Stop cancels any pending countdown and detaches the monitor permanently.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Stopped {
		return
	}
	m.disarm()
	m.state = Stopped
	close(m.stopped)
	log.Debug().Msg("Idle monitor stopped")
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Timeout returns the inactivity window.
func (m *Monitor) Timeout() time.Duration {
	return m.timeout
}

// Attach feeds activity from ch into the monitor until ch is closed, ctx is done, or the monitor is stopped.
func (m *Monitor) Attach(ctx context.Context, ch <-chan Activity) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopped:
				return
			case a, ok := <-ch:
				if !ok {
					return
				}
				m.Signal(a)
			}
		}
	}()
}

// arm must be called with mu held.
func (m *Monitor) arm() {
	m.generation++
	gen := m.generation
	m.timer = m.clock.AfterFunc(m.timeout, func() {
		m.fire(gen)
	})
}

// disarm must be called with mu held.
func (m *Monitor) disarm() {
	m.generation++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Monitor) fire(gen uint64) {
	m.mu.Lock()
	if m.state != Armed || gen != m.generation {
		m.mu.Unlock()
		return
	}
	m.state = Fired
	m.timer = nil
	m.mu.Unlock()

	log.Info().Dur("timeout", m.timeout).Msg("Idle timeout reached")
	if m.onTimeout != nil {
		m.onTimeout()
	}
}
