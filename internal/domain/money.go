package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Cost returns price × qty.
func Cost(price decimal.Decimal, qty int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(qty))
}

// CheckCents validates that a monetary value has at most 2 decimal places.
func CheckCents(d decimal.Decimal) error {
	if !d.Equal(d.Truncate(2)) {
		return fmt.Errorf("monetary values must have at most 2 decimal places")
	}
	return nil
}

// ParsePrice validates a positive price with at most 2 decimal places.
// The field name is used in the validation message.
func ParsePrice(field string, d decimal.Decimal) (decimal.Decimal, error) {
	if !d.IsPositive() {
		return decimal.Zero, &ValidationError{Message: field + " must be greater than 0"}
	}
	if err := CheckCents(d); err != nil {
		return decimal.Zero, &ValidationError{Message: field + " must have at most 2 decimal places"}
	}
	return d, nil
}

// Percent returns part / whole × 100, or zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100))
}
