package settlement

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// RoundCents rounds an amount to two decimal places, half away from zero.
// Used when an amount leaves the engine for storage or display.
func RoundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// FormatAmount renders an amount with exactly two decimals.
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// ParseAmount parses a user-supplied amount such as "12.5" or "12.50".
// Amounts must be positive, at most MaxAmount and have at most two decimal
// places.
func ParseAmount(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if err := checkAmount(d); err != nil {
		return 0, fmt.Errorf("%w: %q", err, s)
	}
	return d.InexactFloat64(), nil
}

// CheckAmount applies the ParseAmount rules to an amount that arrived as a
// number rather than text.
func CheckAmount(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidAmount, v)
	}
	if err := checkAmount(decimal.NewFromFloat(v)); err != nil {
		return fmt.Errorf("%w: got %v", err, v)
	}
	return nil
}

var maxAmount = decimal.NewFromFloat(MaxAmount)

func checkAmount(d decimal.Decimal) error {
	switch {
	case !d.IsPositive():
		return ErrInvalidAmount
	case d.GreaterThan(maxAmount):
		return fmt.Errorf("%w: exceeds %s", ErrInvalidAmount, maxAmount)
	case !d.Equal(d.Round(2)):
		return fmt.Errorf("%w: more than two decimal places", ErrInvalidAmount)
	}
	return nil
}

// SameCents reports whether two amounts are equal once rounded to cents.
func SameCents(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(2).Equal(decimal.NewFromFloat(b).Round(2))
}
