// Package api is the client for the admin backend's authentication endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/lms-session/credentials"
	apperrors "github.com/jrsteele09/lms-session/internal/errors"
	"github.com/jrsteele09/lms-session/oauthmodel"
	"github.com/jrsteele09/lms-session/session"
	"github.com/jrsteele09/lms-session/token"
	"github.com/rs/zerolog/log"
)

const (
	loginPath       = "/auth/login"
	registerPath    = "/auth/register"
	currentUserPath = "/users/me/"

	maxResponseBytes = 1 << 20
)

// Client talks to the admin backend. Unauthenticated calls (login, register) use the plain
// transport; everything else goes through the session's bearer transport.
type Client struct {
	baseURL string
	session *session.Session
	plain   *http.Client
	authed  *http.Client
}

type Option func(*Client)

// WithHTTPClient sets the client used for requests. Its Transport becomes the base of the
// authenticated transport.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.plain = c
	}
}

func New(baseURL string, sess *session.Session, options ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: sess,
		plain:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	c.authed = &http.Client{
		Transport: sess.Transport(c.plain.Transport),
		Timeout:   c.plain.Timeout,
	}
	return c
}

// Login authenticates with email and password. Only administrators may sign in: any other
// role clears stored credentials and fails with ErrAccessDenied. With rememberMe the
// session is kept in the persistent area and the email is remembered for the next login;
// otherwise the session lives in the ephemeral area and any remembered email is forgotten.
func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) (*oauthmodel.UserInfo, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", apperrors.ErrInvalidRequest)
	}

	var tr oauthmodel.TokenResponse
	err := c.do(ctx, c.plain, http.MethodPost, loginPath, oauthmodel.LoginRequest{Email: email, Password: password}, &tr, "Login failed")
	if err != nil {
		return nil, err
	}
	if err := tr.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", token.ErrMalformedResponse, err)
	}

	user := tr.User
	if user == nil {
		// Older backends return only the tokens; ask for the profile with the new token.
		if user, err = c.fetchUser(ctx, tr.Access()); err != nil {
			log.Err(err).Msg("Login response had no user and the profile lookup failed")
		}
	}

	if !user.IsAdmin() || !user.Active() {
		if err := c.session.OnLogout(ctx); err != nil {
			log.Err(err).Msg("Clearing credentials after denied login failed")
		}
		log.Info().Str("email", email).Msg("Login denied for non-admin account")
		return nil, ErrAccessDenied
	}

	record := credentials.Record{
		AccessToken:  tr.Access(),
		RefreshToken: tr.Refresh(),
		User:         credentials.Identity{Username: user.Username},
	}
	if err := c.session.OnLoginSuccess(ctx, record, credentials.DurabilityFor(rememberMe)); err != nil {
		return nil, err
	}

	remembered := ""
	if rememberMe {
		remembered = email
	}
	if err := c.session.Store().RememberEmail(ctx, remembered); err != nil {
		log.Warn().Err(err).Msg("Updating remembered email failed")
	}
	return user, nil
}

// RememberedEmail returns the email saved by the last remember-me login.
func (c *Client) RememberedEmail(ctx context.Context) (string, error) {
	return c.session.Store().RememberedEmail(ctx)
}

// Register creates a new account. It does not sign in.
func (c *Client) Register(ctx context.Context, req oauthmodel.RegisterRequest) (*oauthmodel.UserInfo, error) {
	req = oauthmodel.NewRegisterRequest(req.Email, req.Username, req.Password, req.PasswordConfirm, req.Role)
	var user oauthmodel.UserInfo
	if err := c.do(ctx, c.plain, http.MethodPost, registerPath, req, &user, "Registration failed"); err != nil {
		return nil, err
	}
	return &user, nil
}

// CurrentUser fetches the signed-in user's profile, refreshing the token first when needed.
func (c *Client) CurrentUser(ctx context.Context) (*oauthmodel.UserInfo, error) {
	var user oauthmodel.UserInfo
	if err := c.do(ctx, c.authed, http.MethodGet, currentUserPath, nil, &user, "Failed to fetch user data"); err != nil {
		return nil, err
	}
	return &user, nil
}

// Identity returns the signed-in user's name. The cached identity is used when present; otherwise
// the profile is fetched, and as a last resort the name is read from the access token.
func (c *Client) Identity(ctx context.Context) (credentials.Identity, error) {
	rec, err := c.session.Record(ctx)
	if err != nil {
		return credentials.Identity{}, err
	}
	if rec.User.Username != "" {
		return rec.User, nil
	}

	user, err := c.CurrentUser(ctx)
	if err == nil && user.Username != "" {
		return credentials.Identity{Username: user.Username}, nil
	}
	if errors.Is(err, token.ErrAuthRequired) {
		return credentials.Identity{}, err
	}

	sub, subErr := token.SubjectFromAccessToken(rec.AccessToken)
	if subErr != nil {
		if err == nil {
			err = subErr
		}
		return credentials.Identity{}, apperrors.Wrapf(err, "resolve identity")
	}
	return credentials.Identity{Username: sub}, nil
}

func (c *Client) fetchUser(ctx context.Context, accessToken string) (*oauthmodel.UserInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, currentUserPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	var user oauthmodel.UserInfo
	if err := c.send(c.plain, req, &user, "Failed to fetch user data"); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) do(ctx context.Context, client *http.Client, method, path string, body, out any, fallback string) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return c.send(client, req, out, fallback)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Wrapf(err, "encode %s body", path)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, apperrors.Wrapf(err, "build %s %s", method, path)
	}
	session.SetDefaultHeaders(req)
	return req, nil
}

func (c *Client) send(client *http.Client, req *http.Request, out any, fallback string) error {
	resp, err := client.Do(req)
	if err != nil {
		return apperrors.Network(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperrors.Wrapf(err, "read %s response", req.URL.Path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp oauthmodel.ErrorResponse
		_ = json.Unmarshal(raw, &errResp)
		httpErr := &HTTPError{Status: resp.StatusCode, Detail: errResp.Message(fallback)}
		log.Debug().Str("path", req.URL.Path).Str("error", httpErr.String()).Msg("Backend returned an error")
		return httpErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %w", apperrors.ErrUnexpectedBody, req.URL.Path, err)
	}
	return nil
}
