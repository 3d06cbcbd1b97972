package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotLoggedIn is returned before any network I/O when an action that
// requires authentication is attempted without a token.
var ErrNotLoggedIn = errors.New("api: not logged in")

// APIError is a non-2xx response from the Play Grade service. Keeping the
// status distinct from "zero results" happens here at the data layer; the
// feed view may still collapse the two.
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, e.Message)
}

// ValidationError is a client-side rejection. No request was sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("api: invalid %s: %s", e.Field, e.Reason)
}

// IsValidation checks if an error is a client-side validation rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound checks if an error is an HTTP 404 from the API.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

// IsUnauthorized checks if an error is an HTTP 401 from the API, meaning
// the session token is missing, expired, or rejected.
func IsUnauthorized(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusUnauthorized
}
