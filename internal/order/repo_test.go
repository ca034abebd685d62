package order

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/autoparts-payments/internal/migrations"
	"github.com/MikeMC777/autoparts-payments/internal/product"
)

// These tests need a disposable Postgres; set TEST_POSTGRES_DSN to run them.
func newTestRepo(t *testing.T) (*PGRepo, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	require.NoError(t, migrations.Up(dsn))

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewPGRepo(pool, product.NewPGRepo(pool)), pool
}

func newOrderID() int64 {
	return time.Now().UnixNano()/1000 + rand.Int63n(1000)
}

func newProduct(t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	var id int64
	require.NoError(t, pool.QueryRow(context.Background(),
		`INSERT INTO products DEFAULT VALUES RETURNING id`).Scan(&id))
	return id
}

func productStatus(t *testing.T, pool *pgxpool.Pool, id int64) string {
	t.Helper()
	var s string
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT status FROM products WHERE id=$1`, id).Scan(&s))
	return s
}

func paid(txID string, amount string) Reconciliation {
	return Reconciliation{
		Status:        StatusPaid,
		TransactionID: txID,
		Amount:        decimal.NewNullDecimal(decimal.RequireFromString(amount)),
		Verified:      true,
	}
}

func TestCreateOrderAtomic_PersistsAllRows(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()
	pid := newProduct(t, pool)
	oid := newOrderID()

	o := &Order{ID: oid, TotalPrice: decimal.RequireFromString("240")}
	items := []Item{{ProductID: pid, Quantity: 2, Price: decimal.RequireFromString("120.00")}}
	txn := &PaymentTransaction{Amount: decimal.RequireFromString("240"), PaymentToken: strings.Repeat("t", 2000)}
	require.NoError(t, repo.CreateOrderAtomic(ctx, o, items, txn))

	got, gotItems, err := repo.GetByID(ctx, oid)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.PaymentStatus)
	assert.False(t, got.PaymentVerified)
	assert.True(t, got.TotalPrice.Equal(decimal.NewFromInt(240)))
	assert.Nil(t, got.UserID)
	require.Len(t, gotItems, 1)
	assert.Equal(t, oid, gotItems[0].OrderID)
	assert.Equal(t, 2, gotItems[0].Quantity)
	assert.True(t, gotItems[0].Price.Equal(decimal.RequireFromString("120")))

	latest, err := repo.LatestTransaction(ctx, oid)
	require.NoError(t, err)
	assert.Len(t, latest.PaymentToken, MaxTokenLength)
	assert.Nil(t, latest.TransactionID)
}

func TestCreateOrderAtomic_RollsBackOnBadItem(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()
	pid := newProduct(t, pool)
	oid := newOrderID()

	items := []Item{
		{ProductID: pid, Quantity: 1, Price: decimal.NewFromInt(10)},
		{ProductID: -1, Quantity: 1, Price: decimal.NewFromInt(10)},
	}
	err := repo.CreateOrderAtomic(ctx, &Order{ID: oid, TotalPrice: decimal.NewFromInt(20)}, items,
		&PaymentTransaction{Amount: decimal.NewFromInt(20), PaymentToken: "tok"})
	var ie *ItemError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 1, ie.Index)
	assert.EqualValues(t, -1, ie.ProductID)

	_, _, err = repo.GetByID(ctx, oid)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreatePendingOrder_Duplicate(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	oid := newOrderID()
	uid := "user-1"

	require.NoError(t, repo.CreatePendingOrder(ctx, oid, &uid, decimal.NewFromInt(5)))
	err := repo.CreatePendingOrder(ctx, oid, &uid, decimal.NewFromInt(5))
	var de *DuplicateOrderError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, oid, de.OrderID)
}

func TestInsertOrderItems_AbortsWholeBatch(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()
	oid := newOrderID()
	pid := newProduct(t, pool)
	require.NoError(t, repo.CreatePendingOrder(ctx, oid, nil, decimal.NewFromInt(30)))

	err := repo.InsertOrderItems(ctx, oid, []Item{
		{ProductID: pid, Quantity: 1, Price: decimal.NewFromInt(10)},
		{ProductID: pid, Quantity: 1, Price: decimal.NewFromInt(10)},
		{ProductID: -42, Quantity: 1, Price: decimal.NewFromInt(10)},
	})
	var ie *ItemError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 2, ie.Index)
	assert.ErrorIs(t, err, product.ErrNotFound)

	items, err := repo.GetItems(ctx, oid)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestApplyReconciliation_TargetsLatestTransaction(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	oid := newOrderID()
	require.NoError(t, repo.CreatePendingOrder(ctx, oid, nil, decimal.NewFromInt(240)))

	first, err := repo.RecordPaymentTransaction(ctx, oid, decimal.NewFromInt(240), "tok-1")
	require.NoError(t, err)
	second, err := repo.RecordPaymentTransaction(ctx, oid, decimal.NewFromInt(240), "tok-2")
	require.NoError(t, err)

	_, err = repo.ApplyReconciliation(ctx, oid, paid("tx1", "240"))
	require.NoError(t, err)

	latest, err := repo.LatestTransaction(ctx, oid)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, StatusPaid, latest.Status)
	require.NotNil(t, latest.TransactionID)
	assert.Equal(t, "tx1", *latest.TransactionID)

	var firstStatus string
	require.NoError(t, repo.db.QueryRow(ctx, `SELECT status FROM payment_transactions WHERE id=$1`, first.ID).Scan(&firstStatus))
	assert.Equal(t, StatusPending, firstStatus)
}

func TestApplyReconciliation_Idempotent(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	oid := newOrderID()
	require.NoError(t, repo.CreatePendingOrder(ctx, oid, nil, decimal.NewFromInt(240)))
	_, err := repo.RecordPaymentTransaction(ctx, oid, decimal.NewFromInt(240), "tok")
	require.NoError(t, err)

	prev, err := repo.ApplyReconciliation(ctx, oid, paid("tx1", "240"))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, prev.Status)
	once, _, err := repo.GetByID(ctx, oid)
	require.NoError(t, err)

	prev, err = repo.ApplyReconciliation(ctx, oid, paid("tx1", "240"))
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, prev.Status)
	assert.True(t, prev.Verified)
	twice, _, err := repo.GetByID(ctx, oid)
	require.NoError(t, err)

	assert.Equal(t, once.PaymentStatus, twice.PaymentStatus)
	assert.Equal(t, once.PaymentVerified, twice.PaymentVerified)
	assert.Equal(t, *once.TransactionID, *twice.TransactionID)
	assert.True(t, once.PaymentAmount.Decimal.Equal(twice.PaymentAmount.Decimal))
}

func TestApplyReconciliation_LastWriteWins(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	oid := newOrderID()
	require.NoError(t, repo.CreatePendingOrder(ctx, oid, nil, decimal.NewFromInt(240)))
	_, err := repo.RecordPaymentTransaction(ctx, oid, decimal.NewFromInt(240), "tok")
	require.NoError(t, err)

	_, err = repo.ApplyReconciliation(ctx, oid, paid("tx1", "240"))
	require.NoError(t, err)
	_, err = repo.ApplyReconciliation(ctx, oid, Reconciliation{Status: StatusFailed, TransactionID: "tx1"})
	require.NoError(t, err)

	o, _, err := repo.GetByID(ctx, oid)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, o.PaymentStatus)
	assert.False(t, o.PaymentVerified)
}

func TestApplyReconciliation_WithoutTransactionRow(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	oid := newOrderID()
	require.NoError(t, repo.CreatePendingOrder(ctx, oid, nil, decimal.NewFromInt(1)))

	_, err := repo.ApplyReconciliation(ctx, oid, Reconciliation{Status: StatusFailed})
	require.NoError(t, err)
	o, _, err := repo.GetByID(ctx, oid)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, o.PaymentStatus)
}

func TestApplyReconciliation_UnknownOrder(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.ApplyReconciliation(context.Background(), -newOrderID(), Reconciliation{Status: StatusFailed})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkProductsSold(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()
	p1, p2 := newProduct(t, pool), newProduct(t, pool)
	oid := newOrderID()
	require.NoError(t, repo.CreateOrderAtomic(ctx, &Order{ID: oid, TotalPrice: decimal.NewFromInt(30)},
		[]Item{
			{ProductID: p1, Quantity: 1, Price: decimal.NewFromInt(10)},
			{ProductID: p2, Quantity: 2, Price: decimal.NewFromInt(10)},
		},
		&PaymentTransaction{Amount: decimal.NewFromInt(30), PaymentToken: "tok"}))

	require.NoError(t, repo.MarkProductsSold(ctx, oid))
	require.NoError(t, repo.MarkProductsSold(ctx, oid))
	assert.Equal(t, product.StatusSold, productStatus(t, pool, p1))
	assert.Equal(t, product.StatusSold, productStatus(t, pool, p2))
}

func TestRecordCallbackEvent_Dedup(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	payload := `{"success":true,"orderId":` + time.Now().Format("150405.000000") + `}`

	created, first, err := repo.RecordCallbackEvent(ctx, &CallbackEvent{Channel: "webhook", PayloadJSON: payload, SignatureValid: true})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, PayloadKey(payload), first.EventKey)

	created, again, err := repo.RecordCallbackEvent(ctx, &CallbackEvent{Channel: "webhook", PayloadJSON: payload})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	require.NoError(t, repo.MarkCallbackProcessed(ctx, first.ID, errors.New("boom")))
	_, stored, err := repo.RecordCallbackEvent(ctx, &CallbackEvent{Channel: "webhook", PayloadJSON: payload})
	require.NoError(t, err)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Equal(t, "boom", stored.ProcessingError)
}

func TestListByUser(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	user := "list-" + time.Now().Format("150405.000000")

	first, second := newOrderID(), newOrderID()+1000
	require.NoError(t, repo.CreatePendingOrder(ctx, first, &user, decimal.NewFromInt(10)))
	require.NoError(t, repo.CreatePendingOrder(ctx, second, &user, decimal.NewFromInt(20)))

	got, err := repo.ListByUser(ctx, user, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second, got[0].ID)
	assert.Equal(t, first, got[1].ID)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = repo.ListByUser(cancelled, user, 10, 0)
	assert.Error(t, err)
}
