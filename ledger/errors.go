package ledger

import (
	"errors"
	"fmt"
)

// ErrUnavailable marks transport or connectivity failures.
var ErrUnavailable = errors.New("ledger unavailable")

// RejectedError is a business rule rejection reported by the ledger.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("ledger rejected: %s", e.Reason)
}

func Rejected(reason string) error {
	return &RejectedError{Reason: reason}
}

// Unavailable wraps err so that errors.Is(err, ErrUnavailable) holds.
func Unavailable(err error) error {
	if err == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// RejectionReason returns the rejection reason if err is a *RejectedError.
func RejectionReason(err error) (string, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Reason, true
	}
	return "", false
}
