package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places stored in minor units
const AmountScale = 2

// ParseAmount converts a decimal string like "97.50" into minor units
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !d.Equal(d.Truncate(AmountScale)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, AmountScale)
	}
	minor := d.Shift(AmountScale)
	if !minor.IsInteger() || minor.GreaterThan(decimal.NewFromInt(1<<62)) || minor.LessThan(decimal.NewFromInt(-(1 << 62))) {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	return minor.IntPart(), nil
}

// FormatAmount renders minor units with exactly two decimal places
func FormatAmount(minor int64) string {
	return decimal.New(minor, -AmountScale).StringFixed(AmountScale)
}

// AmountDecimal returns minor units as a decimal value in major units
func AmountDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -AmountScale)
}

// ApplyMultiplier multiplies an amount in minor units, rounding down to the minor unit
// so a payout never exceeds the exact product
func ApplyMultiplier(minor int64, multiplier decimal.Decimal) int64 {
	return decimal.NewFromInt(minor).Mul(multiplier).RoundFloor(0).IntPart()
}
