package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jrsteele09/lms-session/oauthmodel"
	"github.com/jrsteele09/lms-session/token"
	"golang.org/x/oauth2"
)

var _ token.Exchanger = (*OAuth2Exchanger)(nil)

// OAuth2Exchanger performs a standard refresh_token grant against an OAuth2 token endpoint.
type OAuth2Exchanger struct {
	config *oauth2.Config
	client *http.Client
}

// NewOAuth2Exchanger builds an exchanger for tokenURL. The client id is sent in the form body;
// public clients have no secret.
func NewOAuth2Exchanger(clientID, tokenURL string, client *http.Client) (*OAuth2Exchanger, error) {
	endpoint, err := endpointURL(tokenURL)
	if err != nil {
		return nil, err
	}
	return &OAuth2Exchanger{
		config: &oauth2.Config{
			ClientID: clientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  endpoint,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: client,
	}, nil
}

func (e *OAuth2Exchanger) Exchange(ctx context.Context, refreshToken string) (*token.ExchangeResult, error) {
	if e.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)
	}

	// An expired token with only a refresh token set makes the source refresh immediately.
	tok, err := e.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			msg := retrieveErr.ErrorDescription
			if msg == "" {
				msg = retrieveErr.ErrorCode
			}
			if msg == "" {
				msg = http.StatusText(retrieveErr.Response.StatusCode)
			}
			return nil, &StatusError{Status: retrieveErr.Response.StatusCode, Message: msg}
		}
		return nil, fmt.Errorf("oauth2 refresh grant: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: %w", token.ErrMalformedResponse, oauthmodel.ErrMissingAccessToken)
	}
	if tok.TokenType != "" && tok.Type() != "Bearer" {
		return nil, fmt.Errorf("%w: unsupported token_type %q", token.ErrMalformedResponse, tok.TokenType)
	}

	result := &token.ExchangeResult{AccessToken: tok.AccessToken}
	// The oauth2 package carries the old refresh token forward when none is returned.
	if tok.RefreshToken != refreshToken {
		result.RefreshToken = tok.RefreshToken
	}
	return result, nil
}
