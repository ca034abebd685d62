package payment

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ToCents rounds half away from zero to the nearest minor unit.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
