package token

import (
	"context"
)

// ExchangeResult is the validated outcome of a refresh exchange.
type ExchangeResult struct {
	AccessToken  string
	RefreshToken string // Empty unless the backend rotated the refresh token
}

// Exchanger trades a refresh token for a new access token.
// Implementations return ErrMalformedResponse (wrapped) for responses that fail validation.
type Exchanger interface {
	Exchange(ctx context.Context, refreshToken string) (*ExchangeResult, error)
}

// ExchangerFunc adapts a function to the Exchanger interface.
type ExchangerFunc func(ctx context.Context, refreshToken string) (*ExchangeResult, error)

func (f ExchangerFunc) Exchange(ctx context.Context, refreshToken string) (*ExchangeResult, error) {
	return f(ctx, refreshToken)
}
