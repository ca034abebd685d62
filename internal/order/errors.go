package order

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("order not found")
)

// DuplicateOrderError is returned when an order id is inserted twice, e.g. a
// retried checkout for the same remote order.
type DuplicateOrderError struct {
	OrderID int64
}

func (e *DuplicateOrderError) Error() string {
	return fmt.Sprintf("order %d already exists", e.OrderID)
}

// ItemError identifies the cart line that aborted an item batch.
type ItemError struct {
	Index     int
	ProductID int64
	Err       error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("order item %d (product %d): %v", e.Index, e.ProductID, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
