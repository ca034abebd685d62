package gateway

import (
	"errors"
	"fmt"
)

// AuthError means the API key exchange failed.
type AuthError struct {
	Status int
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway auth failed: %v", e.Err)
	}
	return fmt.Sprintf("gateway auth failed: status=%d body=%s", e.Status, e.Body)
}

func (e *AuthError) Unwrap() error { return e.Err }

// OrderError covers remote order creation and payment key issuance.
type OrderError struct {
	Stage  string
	Status int
	Body   string
	Err    error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("gateway %s failed: status=%d body=%s", e.Stage, e.Status, e.Body)
}

func (e *OrderError) Unwrap() error { return e.Err }

type VerificationError struct {
	TransactionID string
	Status        int
	Body          string
	Err           error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway verification of transaction %s failed: %v", e.TransactionID, e.Err)
	}
	return fmt.Sprintf("gateway verification of transaction %s failed: status=%d body=%s", e.TransactionID, e.Status, e.Body)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// Detail returns the upstream body when the provider answered, so callers can
// show the provider's own message.
func Detail(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Body
	}
	var oe *OrderError
	if errors.As(err, &oe) {
		return oe.Body
	}
	var ve *VerificationError
	if errors.As(err, &ve) {
		return ve.Body
	}
	return ""
}
