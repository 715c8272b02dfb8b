// Package session is the entry point the application uses to create, use and end an
// authenticated session. It ties the credential store, the token manager and the idle
// monitor together.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/lms-session/credentials"
	"github.com/jrsteele09/lms-session/idle"
	"github.com/jrsteele09/lms-session/internal/clock"
	"github.com/jrsteele09/lms-session/token"
	"github.com/rs/zerolog/log"
)

// Session owns the lifecycle of the current login.
type Session struct {
	store       *credentials.Store
	tokens      *token.Manager
	clock       clock.Clock
	idleTimeout time.Duration

	mu        sync.Mutex
	monitor   *idle.Monitor
	onIdle    []func()
	idleCount int
}

type Option func(*Session)

// WithIdleTimeout sets the inactivity window after which the session is ended.
// Zero disables the idle monitor.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.idleTimeout = d
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

func New(store *credentials.Store, tokens *token.Manager, options ...Option) *Session {
	s := &Session{
		store:       store,
		tokens:      tokens,
		clock:       clock.Real{},
		idleTimeout: idle.DefaultTimeout,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// OnLoginSuccess stores the freshly issued credentials in the area matching durability,
// emptying the other area, and starts the idle countdown.
func (s *Session) OnLoginSuccess(ctx context.Context, record credentials.Record, durability credentials.Durability) error {
	if err := s.store.Replace(ctx, record, durability); err != nil {
		return fmt.Errorf("Session.OnLoginSuccess: %w", err)
	}
	s.startIdleMonitor()
	log.Info().
		Str("username", record.User.Username).
		Str("durability", durability.String()).
		Msg("Session started")
	return nil
}

// OnLogout ends the session and clears every stored credential.
func (s *Session) OnLogout(ctx context.Context) error {
	s.stopIdleMonitor()
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("Session.OnLogout: %w", err)
	}
	log.Info().Msg("Session ended by logout")
	return nil
}

// OnIdleTimeout registers a callback run after an idle timeout has cleared the store.
// Callbacks run on the timer goroutine in registration order.
func (s *Session) OnIdleTimeout(callback func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onIdle = append(s.onIdle, callback)
}

// Activity forwards a user activity signal to the idle monitor.
func (s *Session) Activity(activity idle.Activity) {
	s.mu.Lock()
	m := s.monitor
	s.mu.Unlock()
	if m != nil {
		m.Signal(activity)
	}
}

// Attach feeds activity from ch into the idle monitor of the current session until ch is
// closed, ctx is done, or the session ends. It returns immediately and does nothing when
// no session is being watched.
func (s *Session) Attach(ctx context.Context, ch <-chan idle.Activity) {
	s.mu.Lock()
	m := s.monitor
	s.mu.Unlock()
	if m != nil {
		m.Attach(ctx, ch)
	}
}

// IdleState reports the idle monitor state, or Stopped when no session is being watched.
func (s *Session) IdleState() idle.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.monitor == nil {
		return idle.Stopped
	}
	return s.monitor.State()
}

// Resume watches an existing stored session for inactivity, for example one restored from
// the persistent area at startup. It fails with credentials.ErrNoSession when nothing is stored.
func (s *Session) Resume(ctx context.Context) (*credentials.Record, error) {
	rec, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	s.startIdleMonitor()
	return rec, nil
}

// Close stops the idle monitor without touching stored credentials.
func (s *Session) Close() {
	s.stopIdleMonitor()
}

// EnsureValidToken returns an access token that is valid for at least the refresh lookahead.
func (s *Session) EnsureValidToken(ctx context.Context) (string, error) {
	return s.tokens.EnsureValidToken(ctx)
}

// CurrentToken returns the stored access token as is.
func (s *Session) CurrentToken(ctx context.Context) (string, error) {
	return s.tokens.CurrentToken(ctx)
}

// Record returns the stored session.
func (s *Session) Record(ctx context.Context) (*credentials.Record, error) {
	return s.store.Get(ctx)
}

// Store exposes the credential store, for the remembered email and similar non-session items.
func (s *Session) Store() *credentials.Store {
	return s.store
}

// Tokens exposes the token manager, for the background refresh loop.
func (s *Session) Tokens() *token.Manager {
	return s.tokens
}

func (s *Session) startIdleMonitor() {
	if s.idleTimeout <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.monitor != nil {
		s.monitor.Stop()
	}
	s.idleCount++
	generation := s.idleCount
	s.monitor = idle.New(s.idleTimeout, func() { s.idleTimedOut(generation) }, idle.WithClock(s.clock))
}

func (s *Session) stopIdleMonitor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.monitor != nil {
		s.monitor.Stop()
		s.monitor = nil
	}
}

func (s *Session) idleTimedOut(generation int) {
	s.mu.Lock()
	if generation != s.idleCount {
		s.mu.Unlock()
		return
	}
	callbacks := append([]func(){}, s.onIdle...)
	s.mu.Unlock()

	if err := s.store.Clear(context.Background()); err != nil {
		log.Err(err).Msg("Clearing credentials after idle timeout failed")
	} else {
		log.Info().Msg("Session ended by idle timeout")
	}
	for _, cb := range callbacks {
		cb()
	}
}
