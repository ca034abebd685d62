package payment

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// Trust says whether a callback's claims may be applied as sent.
type Trust int

const (
	// Trusted callbacks come from the gateway itself (webhook push).
	Trusted Trust = iota
	// Unverified callbacks pass through the customer's browser and must be
	// confirmed with the gateway.
	Unverified
)

func (t Trust) String() string {
	if t == Trusted {
		return "trusted"
	}
	return "unverified"
}

const (
	ChannelWebhook  = "webhook"
	ChannelRedirect = "redirect"
	ChannelPoll     = "poll"
)

// Callback is a payment notification after normalization, whatever channel
// and payload shape it arrived in.
type Callback struct {
	OrderID       int64
	TransactionID string
	Amount        decimal.NullDecimal
	Success       bool
	IsRefunded    bool
	Trust         Trust
	Channel       string
}

type webhookBody struct {
	Success       FlexString  `json:"success"`
	OrderID       FlexString  `json:"orderId"`
	TransactionID FlexString  `json:"transactionId"`
	IsRefunded    FlexString  `json:"isRefunded"`
	Amount        FlexString  `json:"amount"`
	Obj           *legacyBody `json:"obj"`
}

type legacyBody struct {
	ID          FlexString `json:"id"`
	Success     FlexString `json:"success"`
	IsRefunded  FlexString `json:"is_refunded"`
	AmountCents FlexString `json:"amount_cents"`
	Order       orderRef   `json:"order"`
}

// ParseWebhook accepts both push formats: the flat one
// ({success, orderId, transactionId, isRefunded, amount}) and the legacy one
// nested under "obj" with the amount in cents.
func ParseWebhook(body []byte) (Callback, error) {
	var w webhookBody
	if err := json.Unmarshal(body, &w); err != nil {
		return Callback{}, invalid("body", "is not a valid webhook payload")
	}
	cb := Callback{Trust: Trusted, Channel: ChannelWebhook}

	if w.Obj != nil {
		id, err := parseOrderID(w.Obj.Order.ID, "obj.order.id")
		if err != nil {
			return Callback{}, err
		}
		amount, err := centsAmount(w.Obj.AmountCents, "obj.amount_cents")
		if err != nil {
			return Callback{}, err
		}
		cb.OrderID = id
		cb.TransactionID = w.Obj.ID.String()
		cb.Success = w.Obj.Success.Bool()
		cb.IsRefunded = w.Obj.IsRefunded.Bool()
		cb.Amount = amount
		return cb, nil
	}

	id, err := parseOrderID(w.OrderID, "orderId")
	if err != nil {
		return Callback{}, err
	}
	cb.OrderID = id
	cb.TransactionID = w.TransactionID.String()
	cb.Success = w.Success.Bool()
	cb.IsRefunded = w.IsRefunded.Bool()
	if a := strings.TrimSpace(w.Amount.String()); a != "" {
		d, err := decimal.NewFromString(a)
		if err != nil {
			return Callback{}, invalid("amount", "must be a number")
		}
		cb.Amount = decimal.NewNullDecimal(d)
	}
	return cb, nil
}

// ParseRedirect reads the browser redirect query. The result is always
// Unverified.
func ParseRedirect(q url.Values) (Callback, error) {
	id, err := parseOrderID(FlexString(strings.TrimSpace(q.Get("order"))), "order")
	if err != nil {
		return Callback{}, err
	}
	txID := strings.TrimSpace(q.Get("transaction_id"))
	if txID == "" {
		txID = strings.TrimSpace(q.Get("id"))
	}
	amount, err := centsAmount(FlexString(strings.TrimSpace(q.Get("amount_cents"))), "amount_cents")
	if err != nil {
		return Callback{}, err
	}
	return Callback{
		OrderID:       id,
		TransactionID: txID,
		Amount:        amount,
		Success:       FlexString(q.Get("success")).Bool(),
		IsRefunded:    FlexString(q.Get("is_refunded")).Bool(),
		Trust:         Unverified,
		Channel:       ChannelRedirect,
	}, nil
}

// parseOrderID leaves a missing id as 0 so the reconciler reports
// ErrMissingOrderID; a present but malformed id is a validation error.
func parseOrderID(raw FlexString, field string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	id, err := raw.Int64()
	if err != nil || id <= 0 {
		return 0, invalid(field, "must be a positive integer")
	}
	return id, nil
}

func centsAmount(raw FlexString, field string) (decimal.NullDecimal, error) {
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	cents, err := raw.Int64()
	if err != nil {
		return decimal.NullDecimal{}, invalid(field, "must be an integer")
	}
	return decimal.NewNullDecimal(FromCents(cents)), nil
}
