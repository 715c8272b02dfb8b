package idle_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/lms-session/idle"
	"github.com/jrsteele09/lms-session/internal/clock"
	"github.com/stretchr/testify/require"
)

func setupMonitor(t *testing.T, timeout time.Duration) (*idle.Monitor, *clock.Manual, *atomic.Int32) {
	t.Helper()
	clk := clock.NewManual(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
	var fired atomic.Int32
	m := idle.New(timeout, func() { fired.Add(1) }, idle.WithClock(clk))
	t.Cleanup(m.Stop)
	return m, clk, &fired
}

func TestMonitor_FiresAfterTimeout(t *testing.T) {
	m, clk, fired := setupMonitor(t, idle.Minutes(1))
	require.Equal(t, idle.Armed, m.State())

	clk.Advance(55 * time.Second)
	require.Zero(t, fired.Load(), "must not fire before the timeout")

	clk.Advance(5 * time.Second)
	require.EqualValues(t, 1, fired.Load())
	require.Equal(t, idle.Fired, m.State())

	clk.Advance(10 * time.Minute)
	require.EqualValues(t, 1, fired.Load(), "fires exactly once")
}

func TestMonitor_ActivityRestartsCountdown(t *testing.T) {
	m, clk, fired := setupMonitor(t, idle.Minutes(1))

	clk.Advance(30 * time.Second)
	require.True(t, m.Signal(idle.PointerMove))
	require.Equal(t, 1, clk.Pending(), "the old timer is replaced, not stacked")

	clk.Advance(59 * time.Second)
	require.Zero(t, fired.Load(), "no fire at 89s")

	clk.Advance(time.Second)
	require.EqualValues(t, 1, fired.Load(), "fires at 90s")
}

func TestMonitor_EveryActivityKindResets(t *testing.T) {
	for _, activity := range idle.Activities {
		t.Run(string(activity), func(t *testing.T) {
			m, clk, fired := setupMonitor(t, time.Minute)
			clk.Advance(50 * time.Second)
			require.True(t, m.Signal(activity))
			clk.Advance(50 * time.Second)
			require.Zero(t, fired.Load())
		})
	}
}

func TestMonitor_UnknownActivityIgnored(t *testing.T) {
	m, clk, fired := setupMonitor(t, time.Minute)
	clk.Advance(50 * time.Second)
	require.False(t, m.Signal(idle.Activity("focus")))
	clk.Advance(10 * time.Second)
	require.EqualValues(t, 1, fired.Load())
}

func TestMonitor_SignalAfterFireIsIgnored(t *testing.T) {
	m, clk, fired := setupMonitor(t, time.Minute)
	clk.Advance(time.Minute)
	require.EqualValues(t, 1, fired.Load())

	require.False(t, m.Signal(idle.Click))
	require.Zero(t, clk.Pending())
}

func TestMonitor_Rearm(t *testing.T) {
	m, clk, fired := setupMonitor(t, time.Minute)
	require.False(t, m.Rearm(), "armed monitor is left alone")

	clk.Advance(time.Minute)
	require.True(t, m.Rearm())
	require.Equal(t, idle.Armed, m.State())

	clk.Advance(time.Minute)
	require.EqualValues(t, 2, fired.Load())
}

func TestMonitor_Stop(t *testing.T) {
	m, clk, fired := setupMonitor(t, time.Minute)
	clk.Advance(30 * time.Second)

	m.Stop()
	m.Stop()
	require.Equal(t, idle.Stopped, m.State())
	require.Zero(t, clk.Pending())

	require.False(t, m.Signal(idle.KeyPress))
	require.False(t, m.Rearm())
	clk.Advance(time.Hour)
	require.Zero(t, fired.Load())
}

func TestMonitor_Attach(t *testing.T) {
	m, clk, fired := setupMonitor(t, time.Minute)
	activity := make(chan idle.Activity)
	m.Attach(context.Background(), activity)

	clk.Advance(50 * time.Second)
	activity <- idle.KeyPress
	// The send is received before Signal runs; a second send waits for the first to be handled.
	activity <- idle.KeyPress

	clk.Advance(50 * time.Second)
	require.Zero(t, fired.Load())
	close(activity)
}

func TestMonitor_RealClock(t *testing.T) {
	fired := make(chan struct{}, 1)
	m := idle.New(20*time.Millisecond, func() { fired <- struct{}{} })
	defer m.Stop()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("idle timeout did not fire")
	}
	require.Equal(t, idle.Fired, m.State())
}

func TestMinutes(t *testing.T) {
	require.Equal(t, 30*time.Minute, idle.Minutes(30))
}
