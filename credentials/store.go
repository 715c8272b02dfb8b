package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTokenTTL is how long a freshly stored access token is considered valid.
const DefaultTokenTTL = 30 * time.Minute

// Store holds the Session Record in one of two storage areas.
// Exactly one area carries a session at a time; the other is kept empty by Replace and Clear.
type Store struct {
	mu         sync.Mutex
	persistent Area
	ephemeral  Area
	tokenTTL   time.Duration
	nowFunc    func() time.Time
}

type StoreOption func(*Store)

// WithTokenTTL overrides the validity window applied whenever an access token is stored.
func WithTokenTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.tokenTTL = ttl
	}
}

func WithNowFunc(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// NewStore creates a store over the persistent and ephemeral areas.
func NewStore(persistent, ephemeral Area, options ...StoreOption) *Store {
	s := &Store{
		persistent: persistent,
		ephemeral:  ephemeral,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = DefaultTokenTTL
	}
	if s.nowFunc == nil {
		s.nowFunc = time.Now
	}
	return s
}

// TokenTTL returns the validity window applied to stored access tokens.
func (s *Store) TokenTTL() time.Duration {
	return s.tokenTTL
}

// Put writes the record into the chosen area with a freshly computed expiry.
// The other area is not touched.
func (s *Store) Put(ctx context.Context, record Record, durability Durability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(ctx, record, durability)
}

// Replace clears both areas and then writes the record into the chosen one.
// This is the login entry point: it keeps exactly one area populated.
func (s *Store) Replace(ctx context.Context, record Record, durability Durability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.clear(ctx); err != nil {
		return err
	}
	return s.put(ctx, record, durability)
}

func (s *Store) put(ctx context.Context, record Record, durability Durability) error {
	if record.AccessToken == "" {
		return ErrEmptyAccessToken
	}
	area, err := s.area(durability)
	if err != nil {
		return err
	}

	user, err := json.Marshal(Identity{Username: record.User.Username})
	if err != nil {
		return fmt.Errorf("Store.Put marshal user: %w", err)
	}

	items := map[string]string{
		KeyAccessToken: record.AccessToken,
		KeyTokenExpiry: formatExpiry(s.nowFunc().Add(s.tokenTTL)),
		KeyUser:        string(user),
	}
	if record.RefreshToken != "" {
		items[KeyRefreshToken] = record.RefreshToken
	} else if err := area.Delete(ctx, KeyRefreshToken); err != nil {
		return fmt.Errorf("Store.Put delete stale refresh token: %w", err)
	}

	if err := area.Set(ctx, items); err != nil {
		return fmt.Errorf("Store.Put %s: %w", durability, err)
	}
	return nil
}

// Get returns the current session, preferring the persistent area when both carry one.
// It fails with ErrNoSession when neither area holds an access token.
func (s *Store) Get(ctx context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx)
}

func (s *Store) get(ctx context.Context) (*Record, error) {
	for _, durability := range []Durability{Persistent, Ephemeral} {
		area, err := s.area(durability)
		if err != nil {
			continue
		}
		record, err := readRecord(ctx, area, durability)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return record, nil
		}
	}
	return nil, ErrNoSession
}

// UpdateAccessToken stores a refreshed access token, with a new expiry, in whichever
// area currently holds the session. expectRefreshToken must match the stored refresh
// token, otherwise the session was replaced while the exchange was in flight and
// ErrSessionChanged is returned without writing. The refresh token and identity are
// left as they are unless rotatedRefreshToken is non-empty.
func (s *Store) UpdateAccessToken(ctx context.Context, expectRefreshToken, accessToken, rotatedRefreshToken string) (*Record, error) {
	if accessToken == "" {
		return nil, ErrEmptyAccessToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.get(ctx)
	if err != nil {
		return nil, err
	}
	if current.RefreshToken != expectRefreshToken {
		return nil, ErrSessionChanged
	}
	area, err := s.area(current.Durability)
	if err != nil {
		return nil, err
	}

	expiry := s.nowFunc().Add(s.tokenTTL)
	items := map[string]string{
		KeyAccessToken: accessToken,
		KeyTokenExpiry: formatExpiry(expiry),
	}
	if rotatedRefreshToken != "" {
		items[KeyRefreshToken] = rotatedRefreshToken
		current.RefreshToken = rotatedRefreshToken
	}
	if err := area.Set(ctx, items); err != nil {
		return nil, fmt.Errorf("Store.UpdateAccessToken %s: %w", current.Durability, err)
	}

	current.AccessToken = accessToken
	current.Expiry = time.UnixMilli(expiry.UnixMilli())
	return current, nil
}

// Clear empties the session items of both areas. It is idempotent.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clear(ctx)
}

// ClearIf clears both areas only while the stored refresh token still equals
// expectRefreshToken. A session replaced by a new login is left alone and ErrSessionChanged
// is returned. An empty or unreadable store is cleared as Clear would.
func (s *Store) ClearIf(ctx context.Context, expectRefreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.get(ctx)
	if err == nil && current.RefreshToken != expectRefreshToken {
		return ErrSessionChanged
	}
	return s.clear(ctx)
}

func (s *Store) clear(ctx context.Context) error {
	var firstErr error
	for _, durability := range []Durability{Persistent, Ephemeral} {
		area, err := s.area(durability)
		if err != nil {
			continue
		}
		if err := area.Delete(ctx, SessionKeys...); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("Store.Clear %s: %w", durability, err)
		}
	}
	return firstErr
}

// RememberEmail keeps the login email in the persistent area, or forgets it when email is empty.
func (s *Store) RememberEmail(ctx context.Context, email string) error {
	area, err := s.area(Persistent)
	if err != nil {
		return err
	}
	if email == "" {
		return area.Delete(ctx, KeyRememberedEmail)
	}
	return area.Set(ctx, map[string]string{KeyRememberedEmail: email})
}

// RememberedEmail returns the email saved by RememberEmail, if any.
func (s *Store) RememberedEmail(ctx context.Context) (string, error) {
	area, err := s.area(Persistent)
	if err != nil {
		return "", err
	}
	email, _, err := area.Get(ctx, KeyRememberedEmail)
	return email, err
}

func (s *Store) area(durability Durability) (Area, error) {
	var area Area
	switch durability {
	case Persistent:
		area = s.persistent
	case Ephemeral:
		area = s.ephemeral
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidDurability, durability)
	}
	if area == nil {
		return nil, fmt.Errorf("%w: %s", ErrAreaNotConfigured, durability)
	}
	return area, nil
}

// readRecord returns nil when the area holds no access token.
// Unparseable expiry or identity items are treated as absent rather than failing the read.
func readRecord(ctx context.Context, area Area, durability Durability) (*Record, error) {
	accessToken, ok, err := area.Get(ctx, KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", durability, KeyAccessToken, err)
	}
	if !ok || accessToken == "" {
		return nil, nil
	}

	record := &Record{AccessToken: accessToken, Durability: durability}

	if record.RefreshToken, _, err = area.Get(ctx, KeyRefreshToken); err != nil {
		return nil, fmt.Errorf("read %s %s: %w", durability, KeyRefreshToken, err)
	}

	rawExpiry, ok, err := area.Get(ctx, KeyTokenExpiry)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", durability, KeyTokenExpiry, err)
	}
	if ok {
		if expiry, err := parseExpiry(rawExpiry); err == nil {
			record.Expiry = expiry
		} else {
			log.Warn().Err(err).Str("durability", durability.String()).Msg("Ignoring unparseable token expiry")
		}
	}

	rawUser, ok, err := area.Get(ctx, KeyUser)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", durability, KeyUser, err)
	}
	if ok {
		if err := json.Unmarshal([]byte(rawUser), &record.User); err != nil {
			log.Warn().Err(err).Str("durability", durability.String()).Msg("Ignoring unparseable cached user")
			record.User = Identity{}
		}
	}

	return record, nil
}

func formatExpiry(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseExpiry(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("token expiry %q: %w", s, err)
	}
	return time.UnixMilli(ms), nil
}
