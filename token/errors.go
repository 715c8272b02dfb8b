package token

import "errors"

var (
	// ErrNoRefreshToken is returned by Refresh when the store holds no refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrRefreshFailed is returned when the backend rejected the exchange or could not be reached.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrAuthRequired is returned when a caller needs a token and none can be obtained.
	ErrAuthRequired = errors.New("authentication required")
	// ErrMalformedResponse is returned when the token exchange response does not match the expected schema.
	ErrMalformedResponse = errors.New("malformed token response")
)
