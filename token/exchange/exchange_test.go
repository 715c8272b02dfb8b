package exchange_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/jrsteele09/lms-session/token"
	"github.com/jrsteele09/lms-session/token/exchange"
	"github.com/stretchr/testify/require"
)

func refreshServer(t *testing.T, handler func(w http.ResponseWriter, form url.Values)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, exchange.RefreshPath, r.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		form, err := url.ParseQuery(string(body))
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		handler(w, form)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPExchanger_Success(t *testing.T) {
	srv := refreshServer(t, func(w http.ResponseWriter, form url.Values) {
		require.Equal(t, "refresh-1", form.Get("refresh_token"))
		_, _ = io.WriteString(w, `{"access_token":"access-2","token_type":"bearer","expires_in":1800}`)
	})

	result, err := exchange.NewHTTPExchanger(srv.URL+"/").Exchange(context.Background(), "refresh-1")
	require.NoError(t, err)
	require.Equal(t, "access-2", result.AccessToken)
	require.Empty(t, result.RefreshToken)
}

func TestHTTPExchanger_Rejected(t *testing.T) {
	srv := refreshServer(t, func(w http.ResponseWriter, _ url.Values) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Invalid refresh token"}`)
	})

	_, err := exchange.NewHTTPExchanger(srv.URL).Exchange(context.Background(), "refresh-1")
	var statusErr *exchange.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusUnauthorized, statusErr.Status)
	require.Equal(t, "Invalid refresh token", statusErr.Message)
	require.True(t, statusErr.Unauthorized())
}

func TestHTTPExchanger_MalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"missing access token", `{"token_type":"bearer"}`},
		{"wrong token type", `{"access_token":"a","token_type":"mac"}`},
		{"access token wrong type", `{"access_token":42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := refreshServer(t, func(w http.ResponseWriter, _ url.Values) {
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := exchange.NewHTTPExchanger(srv.URL).Exchange(context.Background(), "refresh-1")
			require.ErrorIs(t, err, token.ErrMalformedResponse)
		})
	}
}

func TestHTTPExchanger_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := exchange.NewHTTPExchanger(srv.URL).Exchange(context.Background(), "refresh-1")
	require.Error(t, err)
	require.NotErrorIs(t, err, token.ErrMalformedResponse)
}

func TestOAuth2Exchanger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
		require.Equal(t, "lms-admin", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"access-2","token_type":"Bearer","refresh_token":"refresh-2","expires_in":600}`)
	}))
	defer srv.Close()

	e, err := exchange.NewOAuth2Exchanger("lms-admin", srv.URL+"/oauth/token", srv.Client())
	require.NoError(t, err)

	result, err := e.Exchange(context.Background(), "refresh-1")
	require.NoError(t, err)
	require.Equal(t, "access-2", result.AccessToken)
	require.Equal(t, "refresh-2", result.RefreshToken)
}

func TestOAuth2Exchanger_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"refresh token expired"}`)
	}))
	defer srv.Close()

	e, err := exchange.NewOAuth2Exchanger("lms-admin", srv.URL, nil)
	require.NoError(t, err)

	_, err = e.Exchange(context.Background(), "refresh-1")
	var statusErr *exchange.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadRequest, statusErr.Status)
	require.Equal(t, "refresh token expired", statusErr.Message)
}

func TestNewOAuth2Exchanger_InvalidURL(t *testing.T) {
	_, err := exchange.NewOAuth2Exchanger("lms-admin", "ftp://example.com/token", nil)
	require.Error(t, err)
}
