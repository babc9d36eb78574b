package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a non-float monetary or hour quantity. Decoding is lenient: null, empty strings
// and values that are not numbers become zero instead of failing the whole payload.
type Amount struct {
	decimal.Decimal
}

// ZeroAmount is the additive identity.
var ZeroAmount = Amount{}

const (
	// MoneyDigits is the integer precision of NUMERIC(14,2) money columns.
	MoneyDigits = 12
	// HoursDigits is the integer precision of the NUMERIC(10,2) hours column.
	HoursDigits = 8

	amountScale    = 2
	maxAmountInput = 64
)

// ErrAmountOutOfRange is returned for numbers a money column cannot hold.
var ErrAmountOutOfRange = errors.New("amount out of range")

// NewAmount wraps a decimal value.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// AmountFromInt builds an Amount from a whole number.
func AmountFromInt(v int64) Amount {
	return Amount{Decimal: decimal.NewFromInt(v)}
}

// AmountFromFloat builds an Amount from a float, rounded to cents.
func AmountFromFloat(v float64) Amount {
	return Amount{Decimal: decimal.NewFromFloat(v).Round(2)}
}

// ParseAmount parses a decimal string rounded to cents. Text that is not a number yields zero;
// numbers with more than MoneyDigits integer digits yield ErrAmountOutOfRange.
func ParseAmount(raw string) (Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ZeroAmount, nil
	}
	if len(raw) > maxAmountInput {
		return ZeroAmount, fmt.Errorf("%w: %d characters", ErrAmountOutOfRange, len(raw))
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsZero() {
		return ZeroAmount, nil
	}
	// Checked on coefficient and exponent so huge exponents are never expanded.
	digits := integerDigits(d)
	if digits > MoneyDigits {
		return ZeroAmount, fmt.Errorf("%w: %s", ErrAmountOutOfRange, raw)
	}
	if digits < -amountScale {
		return ZeroAmount, nil
	}
	a := Amount{Decimal: d.Round(amountScale)}
	if !a.Fits(MoneyDigits) {
		return ZeroAmount, fmt.Errorf("%w: %s", ErrAmountOutOfRange, raw)
	}
	return a, nil
}

// Fits reports whether the amount has at most digits integer digits.
func (a Amount) Fits(digits int) bool {
	if a.IsZero() {
		return true
	}
	return integerDigits(a.Decimal) <= digits
}

func integerDigits(d decimal.Decimal) int {
	return d.NumDigits() + int(d.Exponent())
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{Decimal: a.Decimal.Add(b.Decimal)}
}

// Cents renders the amount with two decimal places.
func (a Amount) Cents() string {
	return a.Decimal.StringFixed(2)
}

// MarshalJSON renders the amount as a bare JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON accepts numbers and numeric strings. Out of range numbers fail the payload.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = ZeroAmount
		return nil
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			*a = ZeroAmount
			return nil
		}
		return a.set(raw)
	}
	return a.set(string(data))
}

func (a *Amount) set(raw string) error {
	parsed, err := ParseAmount(raw)
	if err != nil {
		*a = ZeroAmount
		return err
	}
	*a = parsed
	return nil
}
