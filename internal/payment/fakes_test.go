package payment

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/MikeMC777/autoparts-payments/internal/gateway"
	"github.com/MikeMC777/autoparts-payments/internal/order"
)

func init() {
	log.SetOutput(io.Discard)
}

type fakeGateway struct {
	mu sync.Mutex

	authErr  error
	orderErr error
	keyErr   error
	nextID   int64

	orders []gateway.OrderRequest
	keys   []gateway.PaymentKeyRequest

	txns        map[string]*gateway.Transaction
	verifyErr   error
	verifyCalls int
	calls       int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{nextID: 55, txns: map[string]*gateway.Transaction{}}
}

func (g *fakeGateway) AuthToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.authErr != nil {
		return "", g.authErr
	}
	return "auth-token", nil
}

func (g *fakeGateway) CreateOrder(ctx context.Context, token string, in gateway.OrderRequest) (*gateway.RemoteOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	g.orders = append(g.orders, in)
	id := g.nextID
	g.nextID++
	return &gateway.RemoteOrder{ID: id}, nil
}

func (g *fakeGateway) PaymentKey(ctx context.Context, token string, in gateway.PaymentKeyRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.keyErr != nil {
		return "", g.keyErr
	}
	g.keys = append(g.keys, in)
	return "pay-token", nil
}

func (g *fakeGateway) PaymentURL(token string) string {
	return "https://pay.example/iframes/1?payment_token=" + token
}

func (g *fakeGateway) VerifyTransaction(ctx context.Context, id string) (*gateway.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.verifyCalls++
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	tx, ok := g.txns[id]
	if !ok {
		return nil, &gateway.VerificationError{TransactionID: id, Status: 404, Body: `{"detail":"Not found."}`}
	}
	cp := *tx
	return &cp, nil
}

type fakeLedger struct {
	mu sync.Mutex

	orders map[int64]*order.Order
	items  map[int64][]order.Item
	txns   map[int64][]*order.PaymentTransaction
	sold   map[int64]int

	createErr error
	soldErr   error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		orders: map[int64]*order.Order{},
		items:  map[int64][]order.Item{},
		txns:   map[int64][]*order.PaymentTransaction{},
		sold:   map[int64]int{},
	}
}

func (l *fakeLedger) CreateOrderAtomic(ctx context.Context, o *order.Order, items []order.Item, txn *order.PaymentTransaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.createErr != nil {
		return l.createErr
	}
	if _, ok := l.orders[o.ID]; ok {
		return &order.DuplicateOrderError{OrderID: o.ID}
	}
	for i, it := range items {
		if it.Quantity < 1 {
			return &order.ItemError{Index: i, ProductID: it.ProductID, Err: errors.New("quantity must be at least 1")}
		}
	}
	o.PaymentStatus = order.StatusPending
	cp := *o
	l.orders[o.ID] = &cp
	for i := range items {
		items[i].OrderID = o.ID
	}
	l.items[o.ID] = append([]order.Item(nil), items...)
	txn.OrderID = o.ID
	txn.Status = order.StatusPending
	txn.PaymentToken = order.TruncateToken(txn.PaymentToken)
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	t := *txn
	l.txns[o.ID] = append(l.txns[o.ID], &t)
	return nil
}

// seed adds a pending order with one transaction and the given products.
func (l *fakeLedger) seed(id int64, productIDs ...int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders[id] = &order.Order{ID: id, PaymentStatus: order.StatusPending}
	for _, pid := range productIDs {
		l.items[id] = append(l.items[id], order.Item{OrderID: id, ProductID: pid, Quantity: 1})
	}
	l.txns[id] = append(l.txns[id], &order.PaymentTransaction{OrderID: id, Status: order.StatusPending, CreatedAt: time.Now()})
}

// addTransaction appends a pending transaction created at the given time.
func (l *fakeLedger) addTransaction(id int64, createdAt time.Time) *order.PaymentTransaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := &order.PaymentTransaction{OrderID: id, Status: order.StatusPending, CreatedAt: createdAt}
	l.txns[id] = append(l.txns[id], t)
	return t
}

func (l *fakeLedger) ApplyReconciliation(ctx context.Context, id int64, rec order.Reconciliation) (*order.Previous, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	prev := &order.Previous{Status: o.PaymentStatus, Verified: o.PaymentVerified, TransactionID: o.TransactionID}

	txID := strings.TrimSpace(rec.TransactionID)
	o.PaymentStatus = rec.Status
	o.PaymentVerified = rec.Verified
	if txID != "" {
		o.TransactionID = &txID
	}
	if rec.Amount.Valid {
		o.PaymentAmount = rec.Amount
	}
	if ts := l.txns[id]; len(ts) > 0 {
		latest := ts[0]
		for _, t := range ts[1:] {
			if t.CreatedAt.After(latest.CreatedAt) {
				latest = t
			}
		}
		latest.Status = rec.Status
		if txID != "" {
			latest.TransactionID = &txID
		}
		if rec.Amount.Valid {
			latest.Amount = rec.Amount.Decimal
		}
	}
	return prev, nil
}

func (l *fakeLedger) MarkProductsSold(ctx context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, it := range l.items[id] {
		l.sold[it.ProductID]++
	}
	return l.soldErr
}

func (l *fakeLedger) get(id int64) order.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.orders[id]
}
