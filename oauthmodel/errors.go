package oauthmodel

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrEmptyResponse        = errors.New("empty response body")
	ErrMissingAccessToken   = errors.New("access_token is missing")
	ErrEmptyRefreshToken    = errors.New("refresh_token is present but empty")
	ErrUnsupportedTokenType = errors.New("unsupported token_type")
	ErrNegativeExpiry       = errors.New("expires_in is negative")
	ErrMissingUsername      = errors.New("user.username is missing")
)

// ErrorResponse is the error body produced by the backend: {"detail": ...}.
// detail is a string for handled errors and a list of objects for validation failures.
type ErrorResponse struct {
	Detail           json.RawMessage `json:"detail,omitempty"`
	Error            string          `json:"error,omitempty"`
	ErrorDescription string          `json:"error_description,omitempty"`
}

// Message returns a human readable message, or fallback when the body carries none.
func (e ErrorResponse) Message(fallback string) string {
	if len(e.Detail) > 0 {
		var s string
		if err := json.Unmarshal(e.Detail, &s); err == nil && s != "" {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(e.Detail, &items); err == nil && len(items) > 0 {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	if e.ErrorDescription != "" {
		return e.ErrorDescription
	}
	if e.Error != "" {
		return e.Error
	}
	return fallback
}
