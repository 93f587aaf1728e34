package xrpl

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a ledger amount in one of its two wire forms: a bare string of
// native drops, or an issued-currency object {currency, issuer, value}.
type Amount struct {
	Native   bool
	Currency string // issued only
	Issuer   string // issued only
	Value    decimal.Decimal
}

// NativeAmount creates an XRP amount from a drops value.
func NativeAmount(drops decimal.Decimal) Amount {
	return Amount{Native: true, Value: drops}
}

// IssuedAmount creates an issued-currency amount.
func IssuedAmount(currency, issuer string, value decimal.Decimal) Amount {
	return Amount{Currency: currency, Issuer: issuer, Value: value}
}

// ParseAmount normalizes a raw JSON amount into an Amount.
func ParseAmount(raw json.RawMessage) (Amount, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return Amount{}, fmt.Errorf("unmarshal amount: %w", err)
	}
	return AmountFromField(v)
}

// AmountFromField normalizes a decoded JSON value (string or object form)
// into an Amount. This is the single normalization point for both the delta
// parser and the transaction builder.
func AmountFromField(v interface{}) (Amount, error) {
	switch a := v.(type) {
	case string:
		d, err := decimal.NewFromString(a)
		if err != nil {
			return Amount{}, fmt.Errorf("parse drops %q: %w", a, err)
		}
		return NativeAmount(d), nil
	case map[string]interface{}:
		currency, _ := a["currency"].(string)
		issuer, _ := a["issuer"].(string)
		value, _ := a["value"].(string)
		if currency == "" || value == "" {
			return Amount{}, fmt.Errorf("issued amount missing currency or value")
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return Amount{}, fmt.Errorf("parse issued value %q: %w", value, err)
		}
		return IssuedAmount(currency, issuer, d), nil
	default:
		return Amount{}, fmt.Errorf("unsupported amount type %T", v)
	}
}

// SameAsset reports whether two amounts denominate the same asset.
func (a Amount) SameAsset(b Amount) bool {
	if a.Native != b.Native {
		return false
	}
	if a.Native {
		return true
	}
	return a.Currency == b.Currency && a.Issuer == b.Issuer
}

// WithValue returns a copy of the amount carrying a different value.
func (a Amount) WithValue(v decimal.Decimal) Amount {
	a.Value = v
	return a
}

// IsZero reports whether the amount's value is zero.
func (a Amount) IsZero() bool {
	return a.Value.IsZero()
}

// String renders the amount for logs.
func (a Amount) String() string {
	if a.Native {
		return a.Value.String() + " drops"
	}
	return fmt.Sprintf("%s %s/%s", a.Value.String(), a.Currency, a.Issuer)
}

// MarshalJSON renders the wire form: a bare string for native drops, an
// object for issued currencies.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Native {
		return json.Marshal(a.Value.String())
	}
	return json.Marshal(map[string]string{
		"currency": a.Currency,
		"issuer":   a.Issuer,
		"value":    a.Value.String(),
	})
}

// UnmarshalJSON parses either wire form.
func (a *Amount) UnmarshalJSON(data []byte) error {
	parsed, err := ParseAmount(data)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
