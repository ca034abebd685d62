package payment

import (
	"errors"
	"fmt"
)

var ErrMissingOrderID = errors.New("callback is missing the order id")

// ValidationError rejects a request before anything is sent to the gateway or
// written to the ledger. Index is the offending cart line, or -1.
type ValidationError struct {
	Field   string
	Index   int
	Message string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("cart item %d: %s %s", e.Index, e.Field, e.Message)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Index: -1, Message: msg}
}

func invalidItem(i int, field, msg string) *ValidationError {
	return &ValidationError{Field: field, Index: i, Message: msg}
}
