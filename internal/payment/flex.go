package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexString accepts any JSON scalar. Storefront clients send ids, amounts
// and flags as numbers, strings or booleans interchangeably.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*s = ""
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(strings.TrimSpace(v))
	case b[0] == '{' || b[0] == '[':
		return fmt.Errorf("expected a scalar, got %s", b)
	default:
		*s = FlexString(b)
	}
	return nil
}

func (s FlexString) String() string { return string(s) }

// Bool is false for anything strconv.ParseBool does not accept.
func (s FlexString) Bool() bool {
	v, err := strconv.ParseBool(string(s))
	return err == nil && v
}

func (s FlexString) Int64() (int64, error) {
	return strconv.ParseInt(string(s), 10, 64)
}

// orderRef is either {"id": ...} or the bare id.
type orderRef struct {
	ID FlexString
}

func (o *orderRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var v struct {
			ID FlexString `json:"id"`
		}
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		o.ID = v.ID
		return nil
	}
	return o.ID.UnmarshalJSON(b)
}

func firstNonEmpty(vals ...FlexString) string {
	for _, v := range vals {
		if s := strings.TrimSpace(string(v)); s != "" {
			return s
		}
	}
	return ""
}
