package api

import (
	"errors"
	"fmt"
)

// ErrAccessDenied is returned by Login when the account is valid but not an administrator.
var ErrAccessDenied = errors.New("access denied: only administrators can access this system")

// HTTPError is a non-2xx answer from the backend.
type HTTPError struct {
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	return e.Detail
}

// String includes the status code, for logs.
func (e *HTTPError) String() string {
	return fmt.Sprintf("%d %s", e.Status, e.Detail)
}
