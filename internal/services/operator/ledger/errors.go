package ledger

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-success answer from the JSON API.
type APIError struct {
	Status int
	Errors []string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e == nil {
		return "ledger api error"
	}
	if len(e.Errors) == 0 {
		return fmt.Sprintf("ledger api status %d", e.Status)
	}
	return fmt.Sprintf("ledger api status %d: %s", e.Status, strings.Join(e.Errors, "; "))
}

// Rejected reports whether the ledger refused the request outright. Such
// requests fail the same way when repeated; timeouts and throttling do not
// count.
func (e *APIError) Rejected() bool {
	if e == nil {
		return false
	}
	switch e.Status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.Status >= 400 && e.Status < 500
}

// IsRejection reports whether err carries a ledger rejection.
func IsRejection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Rejected()
}
