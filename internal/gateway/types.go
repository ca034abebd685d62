package gateway

// Item is one line of a remote order. The provider wants integer cents and
// the quantity as a string.
type Item struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
}

type OrderRequest struct {
	AmountCents int64
	Items       []Item
}

type RemoteOrder struct {
	ID int64 `json:"id"`
}

// Billing mirrors the provider's billing_data object. Every field must be a
// non-empty string.
type Billing struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone_number"`
	Apartment      string `json:"apartment"`
	Floor          string `json:"floor"`
	Street         string `json:"street"`
	Building       string `json:"building"`
	ShippingMethod string `json:"shipping_method"`
	PostalCode     string `json:"postal_code"`
	City           string `json:"city"`
	Country        string `json:"country"`
	State          string `json:"state"`
}

type PaymentKeyRequest struct {
	AmountCents int64
	OrderID     int64
	Billing     Billing
}

// Transaction is the provider's view of a transaction, used to verify
// untrusted redirect callbacks.
type Transaction struct {
	ID          string
	OrderID     int64
	Success     bool
	IsRefunded  bool
	Pending     bool
	AmountCents int64
}
