// Package order is the payment ledger: orders, their line items, payment
// transactions and the raw callback log.
package order

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/autoparts-payments/internal/product"
)

type Repository interface {
	CreatePendingOrder(ctx context.Context, orderID int64, userID *string, totalPrice decimal.Decimal) error
	InsertOrderItems(ctx context.Context, orderID int64, items []Item) error
	RecordPaymentTransaction(ctx context.Context, orderID int64, amount decimal.Decimal, token string) (*PaymentTransaction, error)
	CreateOrderAtomic(ctx context.Context, o *Order, items []Item, txn *PaymentTransaction) error
	ApplyReconciliation(ctx context.Context, orderID int64, rec Reconciliation) (*Previous, error)
	MarkProductsSold(ctx context.Context, orderID int64) error

	GetByID(ctx context.Context, id int64) (*Order, []Item, error)
	GetItems(ctx context.Context, orderID int64) ([]Item, error)
	LatestTransaction(ctx context.Context, orderID int64) (*PaymentTransaction, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)

	RecordCallbackEvent(ctx context.Context, ev *CallbackEvent) (bool, *CallbackEvent, error)
	MarkCallbackProcessed(ctx context.Context, id string, processingErr error) error
}

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGRepo struct {
	db       *pgxpool.Pool
	products product.Repository
}

func NewPGRepo(db *pgxpool.Pool, products product.Repository) *PGRepo {
	return &PGRepo{db: db, products: products}
}

func (r *PGRepo) CreatePendingOrder(ctx context.Context, orderID int64, userID *string, totalPrice decimal.Decimal) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return insertOrder(ctx, r.db, &Order{ID: orderID, UserID: userID, TotalPrice: totalPrice})
}

// InsertOrderItems writes the whole batch or nothing.
func (r *PGRepo) InsertOrderItems(ctx context.Context, orderID int64, items []Item) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &PersistenceError{Op: "begin items", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertItems(ctx, tx, orderID, items); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &PersistenceError{Op: "commit items", Err: err}
	}
	return nil
}

func (r *PGRepo) RecordPaymentTransaction(ctx context.Context, orderID int64, amount decimal.Decimal, token string) (*PaymentTransaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	txn := &PaymentTransaction{OrderID: orderID, Amount: amount, PaymentToken: token}
	if err := insertTransaction(ctx, r.db, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// CreateOrderAtomic records a checkout attempt in one transaction so an order
// never exists without its items and payment transaction.
func (r *PGRepo) CreateOrderAtomic(ctx context.Context, o *Order, items []Item, txn *PaymentTransaction) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &PersistenceError{Op: "begin checkout", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertOrder(ctx, tx, o); err != nil {
		return err
	}
	if err := insertItems(ctx, tx, o.ID, items); err != nil {
		return err
	}
	txn.OrderID = o.ID
	if err := insertTransaction(ctx, tx, txn); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &PersistenceError{Op: "commit checkout", Err: err}
	}
	return nil
}

func insertOrder(ctx context.Context, q querier, o *Order) error {
	o.PaymentStatus = StatusPending
	o.PaymentVerified = false
	err := q.QueryRow(ctx, `
    INSERT INTO orders (id, user_id, total_price, payment_status, payment_verified, created_at, updated_at)
    VALUES ($1,$2,$3,$4,false,NOW(),NOW())
    RETURNING created_at, updated_at
  `, o.ID, o.UserID, o.TotalPrice.String(), o.PaymentStatus).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return &DuplicateOrderError{OrderID: o.ID}
		}
		return &PersistenceError{Op: "insert order", Err: err}
	}
	return nil
}

func insertItems(ctx context.Context, q querier, orderID int64, items []Item) error {
	for i := range items {
		it := &items[i]
		if it.Quantity < 1 {
			return &ItemError{Index: i, ProductID: it.ProductID, Err: errors.New("quantity must be at least 1")}
		}
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.OrderID = orderID
		err := q.QueryRow(ctx, `
      INSERT INTO order_items (id, order_id, product_id, quantity, price, created_at, updated_at)
      VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
      RETURNING created_at, updated_at
    `, it.ID, orderID, it.ProductID, it.Quantity, it.Price.String()).Scan(&it.CreatedAt, &it.UpdatedAt)
		if err != nil {
			if pgCode(err) == pgForeignKeyViolation {
				return &ItemError{Index: i, ProductID: it.ProductID, Err: product.ErrNotFound}
			}
			return &ItemError{Index: i, ProductID: it.ProductID, Err: err}
		}
	}
	return nil
}

// insertTransaction uses clock_timestamp so several attempts inside one
// database transaction still order by created_at.
func insertTransaction(ctx context.Context, q querier, txn *PaymentTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	txn.Status = StatusPending
	txn.PaymentToken = TruncateToken(txn.PaymentToken)
	txn.TransactionID = nil
	err := q.QueryRow(ctx, `
    INSERT INTO payment_transactions (id, order_id, amount, status, payment_token, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,clock_timestamp(),clock_timestamp())
    RETURNING created_at, updated_at
  `, txn.ID, txn.OrderID, txn.Amount.String(), txn.Status, txn.PaymentToken).Scan(&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return &PersistenceError{Op: "insert payment transaction", Err: err}
	}
	return nil
}

// ApplyReconciliation overwrites the order's payment state and then the most
// recent payment transaction. Concurrent callbacks serialize on the order row
// and the last one to commit wins.
func (r *PGRepo) ApplyReconciliation(ctx context.Context, orderID int64, rec Reconciliation) (*Previous, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, &PersistenceError{Op: "begin reconciliation", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var prev Previous
	err = tx.QueryRow(ctx, `
    SELECT payment_status, payment_verified, transaction_id
    FROM orders WHERE id=$1
    FOR UPDATE
  `, orderID).Scan(&prev.Status, &prev.Verified, &prev.TransactionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "lock order", Err: err}
	}

	var amount *string
	if rec.Amount.Valid {
		s := rec.Amount.Decimal.String()
		amount = &s
	}
	txID := strings.TrimSpace(rec.TransactionID)

	if _, err := tx.Exec(ctx, `
    UPDATE orders
    SET payment_status = $2,
        transaction_id = COALESCE(NULLIF($3,''), transaction_id),
        payment_amount = COALESCE($4::numeric, payment_amount),
        payment_verified = $5,
        updated_at = NOW()
    WHERE id = $1
  `, orderID, rec.Status, txID, amount, rec.Verified); err != nil {
		return nil, &PersistenceError{Op: "update order", Err: err}
	}

	tag, err := tx.Exec(ctx, `
    UPDATE payment_transactions
    SET status = $2,
        transaction_id = COALESCE(NULLIF($3,''), transaction_id),
        amount = COALESCE($4::numeric, amount),
        updated_at = clock_timestamp()
    WHERE id = (
      SELECT id FROM payment_transactions
      WHERE order_id = $1
      ORDER BY created_at DESC, id DESC
      LIMIT 1
    )
  `, orderID, rec.Status, txID, amount)
	if err != nil {
		return nil, &PersistenceError{Op: "update payment transaction", Err: err}
	}
	if tag.RowsAffected() == 0 {
		log.Printf("[ledger] warn: order %d has no payment transaction to reconcile", orderID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &PersistenceError{Op: "commit reconciliation", Err: err}
	}
	return &prev, nil
}

// MarkProductsSold keeps going after a failed product and returns every
// failure joined.
func (r *PGRepo) MarkProductsSold(ctx context.Context, orderID int64) error {
	items, err := r.GetItems(ctx, orderID)
	if err != nil {
		return err
	}
	var errs []error
	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		if err := r.products.MarkSold(ctx, it.ProductID); err != nil {
			errs = append(errs, fmt.Errorf("product %d: %w", it.ProductID, err))
		}
	}
	return errors.Join(errs...)
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (*Order, []Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := r.db.QueryRow(ctx, `
    SELECT id,user_id,total_price::text,payment_status,payment_verified,transaction_id,payment_amount::text,created_at,updated_at
    FROM orders WHERE id=$1
  `, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	items, err := r.GetItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return o, items, nil
}

func (r *PGRepo) GetItems(ctx context.Context, orderID int64) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
    SELECT id, order_id, product_id, quantity, price::text, created_at, updated_at
    FROM order_items
    WHERE order_id = $1
    ORDER BY created_at, id
  `, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var price string
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &price, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PGRepo) LatestTransaction(ctx context.Context, orderID int64) (*PaymentTransaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var t PaymentTransaction
	var amount string
	err := r.db.QueryRow(ctx, `
    SELECT id, order_id, amount::text, status, payment_token, transaction_id, created_at, updated_at
    FROM payment_transactions
    WHERE order_id = $1
    ORDER BY created_at DESC, id DESC
    LIMIT 1
  `, orderID).Scan(&t.ID, &t.OrderID, &amount, &t.Status, &t.PaymentToken, &t.TransactionID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.Query(ctx, `
    SELECT id,user_id,total_price::text,payment_status,payment_verified,transaction_id,payment_amount::text,created_at,updated_at
    FROM orders WHERE user_id=$1
    ORDER BY created_at DESC LIMIT $2 OFFSET $3
  `, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var total string
	var amount *string
	if err := row.Scan(&o.ID, &o.UserID, &total, &o.PaymentStatus, &o.PaymentVerified,
		&o.TransactionID, &amount, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if o.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	if amount != nil {
		d, err := decimal.NewFromString(*amount)
		if err != nil {
			return nil, err
		}
		o.PaymentAmount = decimal.NewNullDecimal(d)
	}
	return &o, nil
}

// RecordCallbackEvent stores a delivery unless the same (channel, event_key)
// was seen before. Without a provider event id the key is a payload hash.
func (r *PGRepo) RecordCallbackEvent(ctx context.Context, ev *CallbackEvent) (bool, *CallbackEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if strings.TrimSpace(ev.EventKey) == "" {
		ev.EventKey = PayloadKey(ev.PayloadJSON)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	tag, err := r.db.Exec(ctx, `
    INSERT INTO payment_callback_events (id, channel, event_key, order_id, payload_json, signature_valid, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,NOW())
    ON CONFLICT (channel, event_key) DO NOTHING
  `, ev.ID, ev.Channel, ev.EventKey, ev.OrderID, ev.PayloadJSON, ev.SignatureValid)
	if err != nil {
		return false, nil, &PersistenceError{Op: "insert callback event", Err: err}
	}
	created := tag.RowsAffected() > 0

	var stored CallbackEvent
	err = r.db.QueryRow(ctx, `
    SELECT id, channel, event_key, order_id, payload_json, signature_valid, processed_at, processing_error, created_at
    FROM payment_callback_events
    WHERE channel=$1 AND event_key=$2
  `, ev.Channel, ev.EventKey).Scan(&stored.ID, &stored.Channel, &stored.EventKey, &stored.OrderID,
		&stored.PayloadJSON, &stored.SignatureValid, &stored.ProcessedAt, &stored.ProcessingError, &stored.CreatedAt)
	if err != nil {
		return false, nil, &PersistenceError{Op: "load callback event", Err: err}
	}
	return created, &stored, nil
}

func (r *PGRepo) MarkCallbackProcessed(ctx context.Context, id string, processingErr error) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msg := ""
	if processingErr != nil {
		msg = processingErr.Error()
	}
	_, err := r.db.Exec(ctx, `
    UPDATE payment_callback_events
    SET processed_at = NOW(), processing_error = $2
    WHERE id = $1
  `, id, msg)
	return err
}

func PayloadKey(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return "hash:" + hex.EncodeToString(sum[:])
}
