package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// Scale is the number of fractional digits kept for currency amounts
	Scale int32 = 2
	// RateScale is the precision used for derived per-period rates
	RateScale int32 = 10
)

var (
	// Zero is the zero amount
	Zero = decimal.Zero
	one  = decimal.NewFromInt(1)
)

// Round2 rounds an amount to currency precision, half-up
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Parse converts a decimal string into an amount
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}

// MustParse is Parse for constants and tests
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Min returns the smaller of two amounts
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of two amounts
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// PowInt raises base to a non-negative integer power exactly,
// using square-and-multiply.
func PowInt(base decimal.Decimal, n int) decimal.Decimal {
	result := one
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base)
		}
		base = base.Mul(base)
		n >>= 1
	}
	return result
}

// Format renders an amount with exactly two fractional digits
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
