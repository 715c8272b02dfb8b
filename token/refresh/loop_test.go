package refresh_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/lms-session/credentials"
	"github.com/jrsteele09/lms-session/credentials/areafake"
	"github.com/jrsteele09/lms-session/internal/clock"
	"github.com/jrsteele09/lms-session/token"
	"github.com/jrsteele09/lms-session/token/refresh"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type fakeRefresher struct {
	mu       sync.Mutex
	expired  bool
	err      error
	checks   int
	refreshc chan struct{}
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{refreshc: make(chan struct{}, 16)}
}

func (f *fakeRefresher) IsExpired(context.Context, time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.expired
}

func (f *fakeRefresher) Refresh(context.Context) (string, error) {
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	f.refreshc <- struct{}{}
	if err != nil {
		return "", err
	}
	return "access-2", nil
}

func (f *fakeRefresher) set(expired bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = expired
	f.err = err
}

func (f *fakeRefresher) checkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

type countingRefresher struct {
	refresh.Refresher
	mu     sync.Mutex
	checks int
}

func (c *countingRefresher) IsExpired(ctx context.Context, now time.Time) bool {
	c.mu.Lock()
	c.checks++
	c.mu.Unlock()
	return c.Refresher.IsExpired(ctx, now)
}

func (c *countingRefresher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checks
}

func TestLoop_RefreshesOnlyWhenExpired(t *testing.T) {
	clk := clock.NewManual(start)
	r := newFakeRefresher()
	loop := refresh.Start(context.Background(), r, refresh.WithClock(clk))
	defer loop.Stop()

	clk.Advance(5 * time.Minute)
	require.Eventually(t, func() bool { return r.checkCount() == 1 }, time.Second, time.Millisecond)
	require.Empty(t, r.refreshc, "fresh token is left alone")

	r.set(true, nil)
	clk.Advance(5 * time.Minute)
	select {
	case <-r.refreshc:
	case <-time.After(time.Second):
		t.Fatal("expected a refresh on the second tick")
	}
}

func TestLoop_FailuresAreSwallowed(t *testing.T) {
	clk := clock.NewManual(start)
	r := newFakeRefresher()
	r.set(true, errors.New("backend down"))
	loop := refresh.Start(context.Background(), r, refresh.WithClock(clk))
	defer loop.Stop()

	for range 3 {
		clk.Advance(5 * time.Minute)
		select {
		case <-r.refreshc:
		case <-time.After(time.Second):
			t.Fatal("loop stopped ticking after a failure")
		}
	}
}

func TestLoop_FailureHandler(t *testing.T) {
	clk := clock.NewManual(start)
	r := newFakeRefresher()
	down := errors.New("backend down")
	r.set(true, down)
	failures := make(chan error, 4)
	loop := refresh.Start(context.Background(), r, refresh.WithClock(clk),
		refresh.WithFailureHandler(func(err error) { failures <- err }))
	defer loop.Stop()

	clk.Advance(5 * time.Minute)
	select {
	case err := <-failures:
		require.ErrorIs(t, err, down)
	case <-time.After(time.Second):
		t.Fatal("failure handler not called")
	}

	r.set(true, nil)
	clk.Advance(5 * time.Minute)
	<-r.refreshc
	<-r.refreshc
	require.Never(t, func() bool { return len(failures) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestLoop_Stop(t *testing.T) {
	clk := clock.NewManual(start)
	r := newFakeRefresher()
	loop := refresh.Start(context.Background(), r, refresh.WithClock(clk), refresh.WithInterval(time.Minute))
	require.Equal(t, 1, clk.Pending())

	loop.Stop()
	loop.Stop()
	require.Zero(t, clk.Pending(), "ticker released")

	clk.Advance(10 * time.Minute)
	require.Zero(t, r.checkCount())
}

func TestLoop_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loop := refresh.Start(ctx, newFakeRefresher(), refresh.WithClock(clock.NewManual(start)))
	cancel()

	select {
	case <-loop.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit on context cancellation")
	}
}

func TestLoop_WithTokenManager(t *testing.T) {
	clk := clock.NewManual(start)
	ctx := context.Background()
	store := credentials.NewStore(areafake.NewInMemoryArea(), areafake.NewInMemoryArea(), credentials.WithNowFunc(clk.Now))
	require.NoError(t, store.Replace(ctx, credentials.Record{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		User:         credentials.Identity{Username: "admin"},
	}, credentials.Ephemeral))

	exchanged := make(chan struct{}, 4)
	manager := token.New(store, token.ExchangerFunc(func(context.Context, string) (*token.ExchangeResult, error) {
		exchanged <- struct{}{}
		return &token.ExchangeResult{AccessToken: "access-2"}, nil
	}), token.WithNowFunc(clk.Now))

	counted := &countingRefresher{Refresher: manager}
	loop := refresh.Start(ctx, counted, refresh.WithClock(clk))
	defer loop.Stop()

	// Ticks at 5, 10, 15 and 20 minutes find the token valid; 25 minutes is inside the lookahead.
	for i := 1; i <= 4; i++ {
		clk.Advance(5 * time.Minute)
		require.Eventually(t, func() bool { return counted.count() == i }, time.Second, time.Millisecond)
	}
	require.Never(t, func() bool { return len(exchanged) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	clk.Advance(5 * time.Minute)
	select {
	case <-exchanged:
	case <-time.After(time.Second):
		t.Fatal("expected the 25 minute tick to refresh")
	}
	require.Eventually(t, func() bool {
		rec, err := store.Get(ctx)
		return err == nil && rec.AccessToken == "access-2" && rec.Durability == credentials.Ephemeral
	}, time.Second, time.Millisecond)
}
