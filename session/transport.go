package session

import (
	"net/http"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/lms-session/internal/errors"
)

// Transport is an http.RoundTripper that authenticates every request with a valid bearer
// token from the session, refreshing it first when needed. A refused connection is
// reported as errors.ErrServerUnreachable.
type Transport struct {
	Session *Session
	// Base performs the request. http.DefaultTransport is used when nil.
	Base http.RoundTripper
}

var _ http.RoundTripper = (*Transport)(nil)

// Transport returns a RoundTripper bound to this session.
func (s *Session) Transport(base http.RoundTripper) *Transport {
	return &Transport{Session: s, Base: base}
}

// Client returns an http.Client that authenticates through this session.
func (s *Session) Client(base http.RoundTripper) *http.Client {
	return &http.Client{Transport: s.Transport(base)}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	accessToken, err := t.Session.EnsureValidToken(req.Context())
	if err != nil {
		closeBody(req)
		return nil, err
	}

	// A RoundTripper must not modify the caller's request.
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+accessToken)
	SetDefaultHeaders(out)

	resp, err := t.base().RoundTrip(out)
	if err != nil {
		return nil, apperrors.Network(err)
	}
	return resp, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// SetDefaultHeaders fills in the JSON content headers and a request id when the caller did not set them.
func SetDefaultHeaders(req *http.Request) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Body != nil && req.Body != http.NoBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
