package domain

import (
	"errors"

	"github.com/dablchess/operator/internal/services/operator/ledger"
)

type permanentError struct {
	cause error
}

func (e permanentError) Error() string {
	if e.cause == nil {
		return "permanent error"
	}
	return e.cause.Error()
}

func (e permanentError) Unwrap() error {
	return e.cause
}

// Permanent marks an error as one that repeating the reaction cannot fix.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{cause: err}
}

// IsPermanent reports whether err was marked permanent, or is a ledger
// rejection or a lookup cardinality failure.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var target permanentError
	if errors.As(err, &target) {
		return true
	}
	var lookupErr *LookupError
	if errors.As(err, &lookupErr) {
		return true
	}
	return ledger.IsRejection(err)
}
