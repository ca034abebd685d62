package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/MikeMC777/autoparts-payments/internal/gateway"
)

const verificationPrefix = "paymob:tx:"

// Verifications remembers gateway transaction lookups so repeated redirects
// for one transaction hit the gateway once per TTL. A nil *Verifications
// never hits.
type Verifications struct {
	store Store
	ttl   time.Duration
}

func NewVerifications(store Store, ttl time.Duration) *Verifications {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Verifications{store: store, ttl: ttl}
}

func verificationKey(transactionID string) string {
	return verificationPrefix + strings.TrimSpace(transactionID)
}

// Get returns the cached transaction. Store failures count as a miss.
func (v *Verifications) Get(ctx context.Context, transactionID string) (*gateway.Transaction, bool) {
	if v == nil || v.store == nil {
		return nil, false
	}
	raw, err := v.store.Get(ctx, verificationKey(transactionID))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			log.Printf("[cache] get %s: %v", transactionID, err)
		}
		return nil, false
	}
	var tx gateway.Transaction
	if err := json.Unmarshal([]byte(raw), &tx); err != nil {
		log.Printf("[cache] drop corrupt entry %s: %v", transactionID, err)
		_ = v.store.Delete(ctx, verificationKey(transactionID))
		return nil, false
	}
	return &tx, true
}

// Put skips pending transactions; their outcome is not final yet.
func (v *Verifications) Put(ctx context.Context, tx *gateway.Transaction) {
	if v == nil || v.store == nil || tx == nil || tx.Pending || strings.TrimSpace(tx.ID) == "" {
		return
	}
	b, err := json.Marshal(tx)
	if err != nil {
		return
	}
	if err := v.store.Set(ctx, verificationKey(tx.ID), string(b), v.ttl); err != nil {
		log.Printf("[cache] set %s: %v", tx.ID, err)
	}
}
