package credentials

import (
	"fmt"
	"strings"
	"time"
)

// Durability selects which storage area holds a session.
type Durability int

const (
	// Ephemeral sessions live only as long as the host process (browser tab, CLI invocation).
	Ephemeral Durability = iota
	// Persistent sessions survive a restart of the host ("remember me").
	Persistent
)

func (d Durability) String() string {
	switch d {
	case Ephemeral:
		return "ephemeral"
	case Persistent:
		return "persistent"
	default:
		return "unknown"
	}
}

// ParseDurability converts a configuration or flag value into a Durability.
func ParseDurability(s string) (Durability, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ephemeral", "session":
		return Ephemeral, nil
	case "persistent", "local":
		return Persistent, nil
	}
	return Ephemeral, fmt.Errorf("%w: %q", ErrInvalidDurability, s)
}

// DurabilityFor maps the login form's "remember me" flag to a Durability.
func DurabilityFor(rememberMe bool) Durability {
	if rememberMe {
		return Persistent
	}
	return Ephemeral
}

// Identity is the cached user identity. Only the username is kept; every other
// field the backend returns is dropped before persistence.
type Identity struct {
	Username string `json:"username"`
}

// Record is one authenticated session as held by a storage area.
type Record struct {
	AccessToken  string
	RefreshToken string    // Empty when the backend issued none
	Expiry       time.Time // Zero when no (parseable) expiry is stored
	User         Identity
	Durability   Durability
}

// HasRefreshToken reports whether the record can be used for a refresh exchange.
func (r *Record) HasRefreshToken() bool {
	return r != nil && r.RefreshToken != ""
}
