// Package payment runs checkout against the gateway and reconciles the
// gateway's callbacks with the order ledger.
package payment

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/autoparts-payments/internal/billing"
	"github.com/MikeMC777/autoparts-payments/internal/gateway"
	"github.com/MikeMC777/autoparts-payments/internal/order"
)

type Gateway interface {
	AuthToken(ctx context.Context) (string, error)
	CreateOrder(ctx context.Context, token string, in gateway.OrderRequest) (*gateway.RemoteOrder, error)
	PaymentKey(ctx context.Context, token string, in gateway.PaymentKeyRequest) (string, error)
	PaymentURL(token string) string
}

type OrderWriter interface {
	CreateOrderAtomic(ctx context.Context, o *order.Order, items []order.Item, txn *order.PaymentTransaction) error
}

type CheckoutInput struct {
	CartItems      []CartItem
	Billing        map[string]any
	Amount         decimal.Decimal
	InspectionFees decimal.Decimal
	UserID         *string
}

type CheckoutResult struct {
	PaymentURL string `json:"paymentUrl"`
	OrderID    int64  `json:"orderId"`
}

type Checkout struct {
	gw     Gateway
	orders OrderWriter
}

func NewCheckout(gw Gateway, orders OrderWriter) *Checkout {
	return &Checkout{gw: gw, orders: orders}
}

// Initiate validates the cart, mints a remote order and payment key, and
// records the attempt locally. Nothing is written unless every gateway call
// succeeded, and the local writes are all-or-nothing.
func (c *Checkout) Initiate(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if len(in.CartItems) == 0 {
		return nil, invalid("cartItems", "must contain at least one item")
	}
	amountCents := ToCents(in.Amount)
	if amountCents <= 0 {
		return nil, invalid("amount", "must be a positive amount")
	}
	if in.InspectionFees.IsNegative() {
		return nil, invalid("inspectionFees", "must not be negative")
	}
	billingData := billing.Normalize(in.Billing)

	lines, err := ResolveLines(in.CartItems)
	if err != nil {
		return nil, err
	}
	items := gatewayItems(lines, in.InspectionFees)

	token, err := c.gw.AuthToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("gateway auth: %w", err)
	}
	remote, err := c.gw.CreateOrder(ctx, token, gateway.OrderRequest{AmountCents: amountCents, Items: items})
	if err != nil {
		return nil, fmt.Errorf("create remote order: %w", err)
	}
	paymentToken, err := c.gw.PaymentKey(ctx, token, gateway.PaymentKeyRequest{
		AmountCents: amountCents,
		OrderID:     remote.ID,
		Billing:     billingData,
	})
	if err != nil {
		return nil, fmt.Errorf("payment key for order %d: %w", remote.ID, err)
	}

	total := FromCents(amountCents)
	o := &order.Order{ID: remote.ID, UserID: in.UserID, TotalPrice: total}
	rows := make([]order.Item, len(lines))
	for i, l := range lines {
		rows[i] = order.Item{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.UnitPrice}
	}
	txn := &order.PaymentTransaction{Amount: total, PaymentToken: paymentToken}
	if err := c.orders.CreateOrderAtomic(ctx, o, rows, txn); err != nil {
		log.Printf("[checkout] remote order %d minted but not recorded: %v", remote.ID, err)
		return nil, fmt.Errorf("record order %d: %w", remote.ID, err)
	}

	log.Printf("[checkout] order %d created: items=%d amount_cents=%d", remote.ID, len(rows), amountCents)
	return &CheckoutResult{PaymentURL: c.gw.PaymentURL(paymentToken), OrderID: remote.ID}, nil
}

func gatewayItems(lines []Line, inspectionFees decimal.Decimal) []gateway.Item {
	items := make([]gateway.Item, 0, len(lines)+1)
	for _, l := range lines {
		items = append(items, gateway.Item{
			Name:        l.Name,
			AmountCents: ToCents(l.UnitPrice),
			Description: l.Description,
			Quantity:    strconv.Itoa(l.Quantity),
		})
	}
	if fees := ToCents(inspectionFees); fees > 0 {
		items = append(items, gateway.Item{
			Name:        "Inspection fees",
			AmountCents: fees,
			Description: "Pre-purchase part inspection",
			Quantity:    "1",
		})
	}
	return items
}
