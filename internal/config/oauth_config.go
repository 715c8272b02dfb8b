package config

import "time"

const (
	oauthClientIDVar = "OAUTH_CLIENT_ID"
	oauthTokenURLVar = "OAUTH_TOKEN_URL"
	httpTimeoutVar   = "HTTP_TIMEOUT"
)

type OAuthConfig interface {
	GetOAuthClientID() string
	GetOAuthTokenURL() string
	GetHTTPTimeout() time.Duration
}

type OAuth struct {
	src *source
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetOAuthClientID() string {
	return o.src.get(oauthClientIDVar, "lms-admin")
}

// GetOAuthTokenURL returns a standard OAuth2 token endpoint. When empty the backend's own
// /token/refresh endpoint is used instead.
func (o OAuth) GetOAuthTokenURL() string {
	return o.src.get(oauthTokenURLVar, "")
}

func (o OAuth) GetHTTPTimeout() time.Duration {
	return o.src.getDuration(httpTimeoutVar, 10*time.Second)
}
