package errors

import (
	"errors"
	"fmt"
	"syscall"
)

// Errors shared by the HTTP-facing packages
var (
	// Transport errors
	ErrServerUnreachable = errors.New("network error: unable to connect to the server, please check if the server is running")

	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnexpectedBody = errors.New("unexpected response body")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Network marks a refused connection with ErrServerUnreachable, keeping the original error in the chain.
// Other errors are returned unchanged.
func Network(err error) error {
	if err != nil && errors.Is(err, syscall.ECONNREFUSED) && !errors.Is(err, ErrServerUnreachable) {
		return errors.Join(ErrServerUnreachable, err)
	}
	return err
}
