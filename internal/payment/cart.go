package payment

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// CartItem is one cart line as the storefront posts it.
type CartItem struct {
	ProductID   FlexString `json:"product_id"`
	ID          FlexString `json:"id"`
	Name        FlexString `json:"name"`
	Title       FlexString `json:"title"`
	PartName    FlexString `json:"part_name"`
	Description FlexString `json:"description"`
	Quantity    FlexString `json:"quantity"`
	Price       FlexString `json:"price"`
}

// Line is a resolved cart line, ready for the gateway and the ledger.
type Line struct {
	ProductID   int64           `json:"product_id" validate:"gt=0"`
	Quantity    int             `json:"quantity" validate:"gte=1,lte=10000"`
	UnitPrice   decimal.Decimal `json:"price"`
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description" validate:"required,max=1000"`
}

const (
	defaultItemName        = "Product"
	defaultItemDescription = "Auto part"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ResolveLines turns cart items into lines and stops at the first bad one.
func ResolveLines(items []CartItem) ([]Line, error) {
	if len(items) == 0 {
		return nil, invalid("cartItems", "must contain at least one item")
	}
	lines := make([]Line, 0, len(items))
	for i, it := range items {
		l, err := resolveLine(i, it)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, nil
}

func resolveLine(i int, it CartItem) (Line, error) {
	raw := firstNonEmpty(it.ProductID, it.ID)
	if raw == "" {
		return Line{}, invalidItem(i, "product_id", "is required (product_id or id)")
	}
	pid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Line{}, invalidItem(i, "product_id", "must be an integer")
	}

	qty := 1
	if q := strings.TrimSpace(string(it.Quantity)); q != "" {
		if qty, err = strconv.Atoi(q); err != nil {
			return Line{}, invalidItem(i, "quantity", "must be an integer")
		}
	}

	p := strings.TrimSpace(string(it.Price))
	if p == "" {
		return Line{}, invalidItem(i, "price", "is required")
	}
	price, err := decimal.NewFromString(p)
	if err != nil {
		return Line{}, invalidItem(i, "price", "must be a number")
	}
	if price.IsNegative() {
		return Line{}, invalidItem(i, "price", "must not be negative")
	}

	l := Line{
		ProductID:   pid,
		Quantity:    qty,
		UnitPrice:   price,
		Name:        orDefault(firstNonEmpty(it.Name, it.Title, it.PartName), defaultItemName),
		Description: orDefault(firstNonEmpty(it.Description, it.Title, it.PartName), defaultItemDescription),
	}
	if err := validate.Struct(l); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return Line{}, invalidItem(i, fe.Field(), describe(fe))
		}
		return Line{}, invalidItem(i, "item", err.Error())
	}
	return l, nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte", "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
