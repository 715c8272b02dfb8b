package credentials

import (
	"context"
	"errors"
)

// Fixed item names used inside every storage area.
const (
	KeyAccessToken     = "access_token"
	KeyRefreshToken    = "refresh_token"
	KeyTokenExpiry     = "token_expiry_time" // epoch milliseconds, base 10
	KeyUser            = "user"              // JSON encoded Identity
	KeyRememberedEmail = "remembered_email"  // login form convenience, not part of a session
)

// SessionKeys are the items that make up a session. They are always cleared together.
var SessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyTokenExpiry, KeyUser}

var (
	ErrNoSession         = errors.New("no session")
	ErrInvalidDurability = errors.New("invalid durability")
	ErrAreaNotConfigured = errors.New("storage area not configured")
	ErrEmptyAccessToken  = errors.New("access token is required")
	ErrEmptyItemName     = errors.New("item name is required")
	ErrSessionChanged    = errors.New("session changed during update")
)

// Area is one storage scope (persistent or ephemeral) holding string items under fixed names.
type Area interface {
	// Get returns the value stored under key. ok is false when the item is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set writes all items in one step: readers observe either none or all of them.
	Set(ctx context.Context, items map[string]string) error

	// Delete removes the named items. Missing items are not an error.
	Delete(ctx context.Context, keys ...string) error
}
