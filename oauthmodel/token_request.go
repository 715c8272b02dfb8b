package oauthmodel

import (
	"net/url"
	"strings"
)

// RefreshRequest is the form body posted to the token refresh endpoint.
type RefreshRequest struct {
	// RefreshToken is the long-lived credential being exchanged.
	// Required: Yes
	RefreshToken string
}

// Form encodes the request as application/x-www-form-urlencoded values.
func (r RefreshRequest) Form() url.Values {
	form := url.Values{}
	form.Set("refresh_token", r.RefreshToken)
	return form
}

// LoginRequest is the JSON body posted to /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the JSON body posted to /auth/register.
type RegisterRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	Role            string `json:"role"`
}

// NewRegisterRequest builds a registration body; the backend expects the role upper-cased.
func NewRegisterRequest(email, username, password, passwordConfirm, role string) RegisterRequest {
	return RegisterRequest{
		Email:           email,
		Username:        username,
		Password:        password,
		PasswordConfirm: passwordConfirm,
		Role:            strings.ToUpper(role),
	}
}
