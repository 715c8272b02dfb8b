// Package exchange contains the token.Exchanger implementations used against the admin backend.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/lms-session/oauthmodel"
	"github.com/jrsteele09/lms-session/token"
)

// RefreshPath is the backend endpoint that trades a refresh token for a new access token.
const RefreshPath = "/token/refresh"

const maxResponseBytes = 1 << 20

var _ token.Exchanger = (*HTTPExchanger)(nil)

// HTTPExchanger posts the refresh token as a form to the backend's refresh endpoint.
type HTTPExchanger struct {
	endpoint string
	client   *http.Client
}

type HTTPOption func(*HTTPExchanger)

// WithHTTPClient replaces the default client (http.DefaultClient with a 10s timeout).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(e *HTTPExchanger) {
		e.client = c
	}
}

func NewHTTPExchanger(baseURL string, options ...HTTPOption) *HTTPExchanger {
	e := &HTTPExchanger{
		endpoint: strings.TrimRight(baseURL, "/") + RefreshPath,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *HTTPExchanger) Exchange(ctx context.Context, refreshToken string) (*token.ExchangeResult, error) {
	form := oauthmodel.RefreshRequest{RefreshToken: refreshToken}.Form()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read refresh response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp oauthmodel.ErrorResponse
		_ = json.Unmarshal(body, &errResp)
		return nil, &StatusError{Status: resp.StatusCode, Message: errResp.Message(http.StatusText(resp.StatusCode))}
	}

	return decodeTokenResponse(body)
}

func decodeTokenResponse(body []byte) (*token.ExchangeResult, error) {
	var tr oauthmodel.TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: %w", token.ErrMalformedResponse, err)
	}
	if err := tr.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", token.ErrMalformedResponse, err)
	}
	return &token.ExchangeResult{
		AccessToken:  tr.Access(),
		RefreshToken: tr.Refresh(),
	}, nil
}

// StatusError is a non-2xx answer from the refresh endpoint.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("refresh endpoint returned %d: %s", e.Status, e.Message)
}

// Unauthorized reports whether the backend rejected the refresh token itself.
func (e *StatusError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// endpointURL validates a token endpoint taken from configuration.
func endpointURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("token endpoint %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("token endpoint %q: scheme must be http or https", raw)
	}
	return u.String(), nil
}
