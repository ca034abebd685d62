// Package billing fills placeholder billing fields so the gateway never
// rejects a checkout for incomplete data.
package billing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MikeMC777/autoparts-payments/internal/gateway"
)

// Placeholder is the value clients send for "not provided".
const Placeholder = "NA"

// Defaults used for missing or placeholder fields.
var Defaults = map[string]string{
	"first_name":      "Guest",
	"last_name":       "Customer",
	"email":           "customer@autoparts.example",
	"phone_number":    "+201000000000",
	"apartment":       "1",
	"floor":           "1",
	"street":          "Unknown Street",
	"building":        "1",
	"shipping_method": "PKG",
	"postal_code":     "00000",
	"city":            "Cairo",
	"country":         "EG",
	"state":           "Cairo",
}

// Normalize returns billing data where every required field is a non-empty
// string. Caller-supplied values are kept as they are unless they are
// missing, falsy, blank or the placeholder.
func Normalize(raw map[string]any) gateway.Billing {
	get := func(key string) string {
		if s, ok := toString(raw[key]); ok {
			return s
		}
		return Defaults[key]
	}
	return gateway.Billing{
		FirstName:      get("first_name"),
		LastName:       get("last_name"),
		Email:          get("email"),
		PhoneNumber:    get("phone_number"),
		Apartment:      get("apartment"),
		Floor:          get("floor"),
		Street:         get("street"),
		Building:       get("building"),
		ShippingMethod: get("shipping_method"),
		PostalCode:     get("postal_code"),
		City:           get("city"),
		Country:        get("country"),
		State:          get("state"),
	}
}

// toString reports false for values that must be replaced by a default.
func toString(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s = t
	case bool:
		if !t {
			return "", false
		}
		s = "true"
	case float64:
		if t == 0 {
			return "", false
		}
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		if t == 0 {
			return "", false
		}
		s = strconv.Itoa(t)
	case int64:
		if t == 0 {
			return "", false
		}
		s = strconv.FormatInt(t, 10)
	default:
		s = fmt.Sprint(t)
	}
	if strings.TrimSpace(s) == "" || s == Placeholder {
		return "", false
	}
	return s, true
}
