package clock

import "time"

// Clock is the wall-clock and timer source used by the session components.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	NewTicker(d time.Duration) Ticker
}

// Timer is a single-shot timer created by AfterFunc.
type Timer interface {
	// Stop prevents the timer from firing. It returns false if the timer already fired or was stopped.
	Stop() bool
}

// Ticker delivers ticks on C at a fixed period until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real is the Clock backed by the time package.
type Real struct{}

var _ Clock = Real{}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (Real) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time {
	return r.t.C
}

func (r *realTicker) Stop() {
	r.t.Stop()
}
