package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/lms-session/credentials"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultLookahead is how long before the recorded expiry a token is already treated as expired,
// so that no request starts with a token that runs out mid-flight.
const DefaultLookahead = 5 * time.Minute

const refreshFlightKey = "refresh"

// Manager supplies valid access tokens, refreshing them through the Exchanger when they
// are expired or about to expire. Concurrent refreshes collapse into one exchange.
type Manager struct {
	store     *credentials.Store
	exchanger Exchanger
	lookahead time.Duration
	rotate    bool
	nowFunc   func() time.Time
	flight    singleflight.Group
}

type ManagerOption func(*Manager)

// WithLookahead overrides the early-refresh margin.
func WithLookahead(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.lookahead = d
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithRefreshTokenRotation stores the refresh token returned by an exchange, for backends
// that rotate refresh tokens. By default the stored refresh token is never changed by a refresh.
func WithRefreshTokenRotation() ManagerOption {
	return func(m *Manager) {
		m.rotate = true
	}
}

func New(store *credentials.Store, exchanger Exchanger, options ...ManagerOption) *Manager {
	m := &Manager{
		store:     store,
		exchanger: exchanger,
		lookahead: DefaultLookahead,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.lookahead < 0 {
		m.lookahead = 0
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Expired reports whether a token with the given expiry must be refreshed at now.
// A zero expiry (nothing recorded) is always expired.
func Expired(expiry, now time.Time, lookahead time.Duration) bool {
	if expiry.IsZero() {
		return true
	}
	return !now.Before(expiry.Add(-lookahead))
}

// IsExpired reports whether the stored token is absent, expired, or within the lookahead of expiring at now.
func (m *Manager) IsExpired(ctx context.Context, now time.Time) bool {
	rec, err := m.store.Get(ctx)
	if err != nil {
		if !errors.Is(err, credentials.ErrNoSession) {
			log.Warn().Err(err).Msg("Reading credentials for expiry check")
		}
		return true
	}
	return Expired(rec.Expiry, now, m.lookahead)
}

// CurrentToken returns the stored access token without checking expiry or refreshing.
func (m *Manager) CurrentToken(ctx context.Context) (string, error) {
	rec, err := m.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthRequired, err)
	}
	return rec.AccessToken, nil
}

// EnsureValidToken returns a usable access token. A token that is not expired is returned
// without any network call; otherwise a refresh is performed. Every failure matches
// ErrAuthRequired, together with ErrNoRefreshToken or ErrRefreshFailed.
func (m *Manager) EnsureValidToken(ctx context.Context) (string, error) {
	rec, err := m.store.Get(ctx)
	if err == nil && !Expired(rec.Expiry, m.nowFunc(), m.lookahead) {
		return rec.AccessToken, nil
	}
	if err != nil && !errors.Is(err, credentials.ErrNoSession) {
		log.Warn().Err(err).Msg("Reading credentials, attempting refresh")
	}

	accessToken, err := m.share(ctx, true)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthRequired, err)
	}
	return accessToken, nil
}

// Refresh exchanges the stored refresh token for a new access token and stores it, with a
// fresh expiry, in the area the session already occupies. At most one exchange runs at a
// time; callers arriving while one is in flight receive its result.
//
// On failure the whole store is cleared and the error matches ErrNoRefreshToken or
// ErrRefreshFailed. The one exception is a session replaced by a new login while the
// exchange was running: the new session is kept and the error also matches
// credentials.ErrSessionChanged.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	return m.share(ctx, false)
}

// share runs refresh once for all concurrent callers. With reuseValid the stored token is
// returned without an exchange when another refresh has already renewed it.
func (m *Manager) share(ctx context.Context, reuseValid bool) (string, error) {
	// The shared exchange must not be cancelled by whichever caller happened to start it.
	ch := m.flight.DoChan(refreshFlightKey, func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx), reuseValid)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, ctx.Err())
	}
}

func (m *Manager) refresh(ctx context.Context, reuseValid bool) (string, error) {
	rec, err := m.store.Get(ctx)
	if err != nil && !errors.Is(err, credentials.ErrNoSession) {
		m.clear(ctx, "credential store unreadable")
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if reuseValid && err == nil && !Expired(rec.Expiry, m.nowFunc(), m.lookahead) {
		return rec.AccessToken, nil
	}
	if !rec.HasRefreshToken() {
		m.clear(ctx, "no refresh token")
		return "", ErrNoRefreshToken
	}

	result, err := m.exchanger.Exchange(ctx, rec.RefreshToken)
	if err == nil && (result == nil || result.AccessToken == "") {
		err = fmt.Errorf("%w: empty access token", ErrMalformedResponse)
	}
	if err != nil {
		log.Err(err).Str("durability", rec.Durability.String()).Msg("Token exchange failed")
		return "", m.fail(ctx, rec.RefreshToken, "token exchange failed", err)
	}

	rotated := ""
	if m.rotate {
		rotated = result.RefreshToken
	}
	updated, err := m.store.UpdateAccessToken(ctx, rec.RefreshToken, result.AccessToken, rotated)
	if errors.Is(err, credentials.ErrSessionChanged) {
		log.Info().Msg("Session replaced during token refresh, discarding refreshed token")
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if err != nil {
		return "", m.fail(ctx, rec.RefreshToken, "storing refreshed token failed", err)
	}

	log.Info().
		Str("durability", updated.Durability.String()).
		Time("expiry", updated.Expiry).
		Msg("Access token refreshed")
	return updated.AccessToken, nil
}

// fail clears the session the refresh started from, unless a new login has replaced it.
func (m *Manager) fail(ctx context.Context, refreshToken, reason string, cause error) error {
	err := m.store.ClearIf(ctx, refreshToken)
	switch {
	case errors.Is(err, credentials.ErrSessionChanged):
		log.Info().Str("reason", reason).Msg("Session replaced during token refresh, keeping it")
		return fmt.Errorf("%w: %w: %w", ErrRefreshFailed, credentials.ErrSessionChanged, cause)
	case err != nil:
		log.Err(err).Str("reason", reason).Msg("Clearing credentials failed")
	default:
		log.Info().Str("reason", reason).Msg("Credentials cleared")
	}
	return fmt.Errorf("%w: %w", ErrRefreshFailed, cause)
}

func (m *Manager) clear(ctx context.Context, reason string) {
	if err := m.store.Clear(ctx); err != nil {
		log.Err(err).Str("reason", reason).Msg("Clearing credentials failed")
		return
	}
	log.Info().Str("reason", reason).Msg("Credentials cleared")
}
