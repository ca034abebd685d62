package payment

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/autoparts-payments/internal/cache"
	"github.com/MikeMC777/autoparts-payments/internal/gateway"
	"github.com/MikeMC777/autoparts-payments/internal/order"
)

type Verifier interface {
	VerifyTransaction(ctx context.Context, transactionID string) (*gateway.Transaction, error)
}

type Ledger interface {
	ApplyReconciliation(ctx context.Context, orderID int64, rec order.Reconciliation) (*order.Previous, error)
	MarkProductsSold(ctx context.Context, orderID int64) error
}

// Outcome is what a reconciliation recorded.
type Outcome struct {
	OrderID       int64               `json:"orderId"`
	TransactionID string              `json:"transactionId"`
	Status        string              `json:"paymentStatus"`
	Success       bool                `json:"success"`
	Verified      bool                `json:"verified"`
	IsRefunded    bool                `json:"isRefunded"`
	Amount        decimal.NullDecimal `json:"amount"`
}

type Reconciler struct {
	gw            Verifier
	ledger        Ledger
	verifications *cache.Verifications
}

// NewReconciler accepts a nil verifications cache.
func NewReconciler(gw Verifier, ledger Ledger, verifications *cache.Verifications) *Reconciler {
	return &Reconciler{gw: gw, ledger: ledger, verifications: verifications}
}

// Apply moves the order to paid or failed. Unverified callbacks are checked
// with the gateway first; when that is impossible the order fails. The write
// is unconditional, so the last callback to commit wins.
func (r *Reconciler) Apply(ctx context.Context, cb Callback) (*Outcome, error) {
	if cb.OrderID <= 0 {
		return nil, ErrMissingOrderID
	}
	if cb.Trust != Trusted {
		cb = r.verify(ctx, cb)
	}

	paid := cb.Success && !cb.IsRefunded
	status := order.StatusFailed
	if paid {
		status = order.StatusPaid
	}

	prev, err := r.ledger.ApplyReconciliation(ctx, cb.OrderID, order.Reconciliation{
		Status:        status,
		TransactionID: cb.TransactionID,
		Amount:        cb.Amount,
		Verified:      paid,
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile order %d: %w", cb.OrderID, err)
	}

	if prev.Verified && !paid {
		log.Printf("[reconcile] suspicious: order %d was verified paid (tx=%s), overwritten as %s by %s callback tx=%s",
			cb.OrderID, deref(prev.TransactionID), status, cb.Channel, cb.TransactionID)
	} else if prev.Status != order.StatusPending && prev.Status != status {
		log.Printf("[reconcile] order %d moved %s -> %s via %s", cb.OrderID, prev.Status, status, cb.Channel)
	}

	if paid {
		if err := r.ledger.MarkProductsSold(ctx, cb.OrderID); err != nil {
			log.Printf("[reconcile] order %d paid but products not all marked sold: %v", cb.OrderID, err)
		}
	}

	log.Printf("[reconcile] order=%d channel=%s trust=%s tx=%s status=%s",
		cb.OrderID, cb.Channel, cb.Trust, cb.TransactionID, status)
	return &Outcome{
		OrderID:       cb.OrderID,
		TransactionID: cb.TransactionID,
		Status:        status,
		Success:       paid,
		Verified:      paid,
		IsRefunded:    cb.IsRefunded,
		Amount:        cb.Amount,
	}, nil
}

// Poll asks the gateway for the state of a transaction and applies it.
func (r *Reconciler) Poll(ctx context.Context, orderID int64, transactionID string) (*Outcome, error) {
	return r.Apply(ctx, Callback{
		OrderID:       orderID,
		TransactionID: strings.TrimSpace(transactionID),
		Trust:         Unverified,
		Channel:       ChannelPoll,
	})
}

// verify replaces the callback's claims with the gateway's answer. Any
// failure resolves to an unsuccessful payment and leaves the stored amount
// untouched.
func (r *Reconciler) verify(ctx context.Context, cb Callback) Callback {
	cb.Success = false
	cb.IsRefunded = false
	cb.Amount = decimal.NullDecimal{}
	if cb.TransactionID == "" {
		log.Printf("[reconcile] order %d: %s callback without transaction id, treating as failed", cb.OrderID, cb.Channel)
		return cb
	}

	tx, hit := r.verifications.Get(ctx, cb.TransactionID)
	if !hit {
		var err error
		tx, err = r.gw.VerifyTransaction(ctx, cb.TransactionID)
		if err != nil {
			log.Printf("[reconcile] order %d: verification of tx %s failed, treating as failed: %v", cb.OrderID, cb.TransactionID, err)
			return cb
		}
		r.verifications.Put(ctx, tx)
	}

	if tx.OrderID != 0 && tx.OrderID != cb.OrderID {
		log.Printf("[reconcile] suspicious: tx %s belongs to order %d, not %d", cb.TransactionID, tx.OrderID, cb.OrderID)
		cb.TransactionID = ""
		return cb
	}
	cb.Success = tx.Success
	cb.IsRefunded = tx.IsRefunded
	cb.Amount = decimal.NewNullDecimal(FromCents(tx.AmountCents))
	return cb
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
