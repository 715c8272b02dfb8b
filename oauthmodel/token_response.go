package oauthmodel

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/lms-session/internal/utils"
)

// RoleAdmin is the only role allowed to use the admin application.
const RoleAdmin = "ADMIN"

// UserInfo is the user object returned by the login and current-user endpoints.
type UserInfo struct {
	ID       *int   `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// IsAdmin reports whether the user carries the ADMIN role.
func (u *UserInfo) IsAdmin() bool {
	return u != nil && strings.EqualFold(u.Role, RoleAdmin)
}

// Active reports whether the account is enabled. A missing is_active field counts as active.
func (u *UserInfo) Active() bool {
	return u != nil && utils.ValueOr(u.IsActive, true)
}

// TokenResponse is returned by both /auth/login and the token refresh endpoint.
//
//	access_token   required
//	token_type     optional, "bearer" when present
//	refresh_token  optional
//	expires_in     optional, seconds
//	user           optional, login only
type TokenResponse struct {
	AccessToken  *string   `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken *string   `json:"refresh_token,omitempty"`
	ExpiresIn    int       `json:"expires_in,omitempty"`
	User         *UserInfo `json:"user,omitempty"`
}

// Validate checks the required fields and the shape of the optional ones.
func (r *TokenResponse) Validate() error {
	if r == nil {
		return ErrEmptyResponse
	}
	if strings.TrimSpace(utils.Value(r.AccessToken)) == "" {
		return ErrMissingAccessToken
	}
	if r.TokenType != "" && !strings.EqualFold(r.TokenType, "bearer") {
		return fmt.Errorf("%w: %q", ErrUnsupportedTokenType, r.TokenType)
	}
	if r.RefreshToken != nil && strings.TrimSpace(*r.RefreshToken) == "" {
		return ErrEmptyRefreshToken
	}
	if r.ExpiresIn < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeExpiry, r.ExpiresIn)
	}
	if r.User != nil && strings.TrimSpace(r.User.Username) == "" {
		return ErrMissingUsername
	}
	return nil
}

// Access returns the access token; call Validate first.
func (r *TokenResponse) Access() string {
	return utils.Value(r.AccessToken)
}

// Refresh returns the refresh token, or "" when none was issued.
func (r *TokenResponse) Refresh() string {
	return utils.Value(r.RefreshToken)
}
