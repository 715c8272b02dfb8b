package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSubject = errors.New("access token has no sub claim")

// SubjectFromAccessToken reads the sub claim of a JWT access token without verifying its
// signature. The admin backend sets it to the username. Signature checks are the backend's
// job; the value is only used to label the session.
func SubjectFromAccessToken(rawToken string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return "", fmt.Errorf("parse access token: %w", err)
	}
	if claims.Subject == "" {
		return "", ErrNoSubject
	}
	return claims.Subject, nil
}
