package product

import "time"

const (
	StatusAvailable = "available"
	StatusSold      = "sold"
)

// Product is the slice of the marketplace catalog row this service touches.
// The catalog itself is owned elsewhere.
type Product struct {
	ID        int64     `json:"id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}
