package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusFailed  = "failed"
)

// MaxTokenLength is the stored width of payment_transactions.payment_token.
const MaxTokenLength = 1024

// Order shares its id with the gateway's remote order.
type Order struct {
	ID              int64               `json:"id"`
	UserID          *string             `json:"user_id"`
	TotalPrice      decimal.Decimal     `json:"total_price"`
	PaymentStatus   string              `json:"payment_status"`
	PaymentVerified bool                `json:"payment_verified"`
	TransactionID   *string             `json:"transaction_id"`
	PaymentAmount   decimal.NullDecimal `json:"payment_amount"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// Item captures the unit price at purchase time; it is never re-read from
// the catalog.
type Item struct {
	ID        string          `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type PaymentTransaction struct {
	ID            string          `json:"id"`
	OrderID       int64           `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	PaymentToken  string          `json:"-"`
	TransactionID *string         `json:"transaction_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Reconciliation is the single state write applied by a callback.
type Reconciliation struct {
	Status        string
	TransactionID string
	Amount        decimal.NullDecimal
	Verified      bool
}

// Previous is the order state a reconciliation replaced.
type Previous struct {
	Status        string
	Verified      bool
	TransactionID *string
}

// CallbackEvent is a raw webhook delivery kept for audit and duplicate detection.
type CallbackEvent struct {
	ID              string     `json:"id"`
	Channel         string     `json:"channel"`
	EventKey        string     `json:"event_key"`
	OrderID         *int64     `json:"order_id,omitempty"`
	PayloadJSON     string     `json:"payload_json"`
	SignatureValid  bool       `json:"signature_valid"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	ProcessingError string     `json:"processing_error"`
	CreatedAt       time.Time  `json:"created_at"`
}

// TruncateToken cuts a gateway token to the stored width, counted in
// characters like the VARCHAR column, never splitting a rune.
func TruncateToken(token string) string {
	if len(token) <= MaxTokenLength {
		return token
	}
	n := 0
	for i := range token {
		if n == MaxTokenLength {
			return token[:i]
		}
		n++
	}
	return token
}
