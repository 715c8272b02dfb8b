// Package refresh runs the background task that refreshes the access token before it expires.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/lms-session/internal/clock"
	"github.com/jrsteele09/lms-session/token"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is how often the loop checks the stored token.
const DefaultInterval = 5 * time.Minute

// Refresher is the part of token.Manager the loop drives.
type Refresher interface {
	IsExpired(ctx context.Context, now time.Time) bool
	Refresh(ctx context.Context) (string, error)
}

var _ Refresher = (*token.Manager)(nil)

// Loop periodically refreshes an expired or expiring token. Failures are logged and never
// surface to callers; the next tick simply tries again.
type Loop struct {
	refresher Refresher
	clock     clock.Clock
	interval  time.Duration
	onFailure func(error)

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

type LoopOption func(*Loop)

func WithInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		l.interval = d
	}
}

func WithClock(c clock.Clock) LoopOption {
	return func(l *Loop) {
		l.clock = c
	}
}

// WithFailureHandler registers fn to run on the loop goroutine after every failed refresh.
// fn must not block.
func WithFailureHandler(fn func(error)) LoopOption {
	return func(l *Loop) {
		l.onFailure = fn
	}
}

// Start launches the loop. It runs until ctx is cancelled or Stop is called.
func Start(ctx context.Context, refresher Refresher, options ...LoopOption) *Loop {
	l := &Loop{
		refresher: refresher,
		clock:     clock.Real{},
		interval:  DefaultInterval,
		done:      make(chan struct{}),
	}
	for _, opt := range options {
		opt(l)
	}
	if l.interval <= 0 {
		l.interval = DefaultInterval
	}

	ctx, l.cancel = context.WithCancel(ctx)
	ticker := l.clock.NewTicker(l.interval)
	go l.run(ctx, ticker)

	log.Info().Dur("interval", l.interval).Msg("Background token refresh started")
	return l
}

// Stop ends the loop and waits for an in-progress tick to finish. It is safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.cancel()
	})
	<-l.done
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run(ctx context.Context, ticker clock.Ticker) {
	defer close(l.done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Background token refresh stopped")
			return
		case now := <-ticker.C():
			l.tick(ctx, now)
		}
	}
}

func (l *Loop) tick(ctx context.Context, now time.Time) {
	if !l.refresher.IsExpired(ctx, now) {
		return
	}
	if _, err := l.refresher.Refresh(ctx); err != nil {
		if errors.Is(err, token.ErrNoRefreshToken) {
			log.Debug().Msg("Background refresh skipped, no refresh token")
		} else {
			log.Err(err).Msg("Background token refresh failed")
		}
		if l.onFailure != nil {
			l.onFailure(err)
		}
		return
	}
	log.Debug().Msg("Background token refresh succeeded")
}
