// Package amount converts between human-entered decimal strings and integer
// smallest-unit amounts.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrEmpty          = errors.New("amount is required")
	ErrNotNumeric     = errors.New("amount is not a number")
	ErrNotPositive    = errors.New("amount must be greater than 0")
	ErrExceedsBalance = errors.New("amount exceeds balance")
)

// Parse reads a decimal amount string
func Parse(input string) (decimal.Decimal, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return decimal.Zero, ErrEmpty
	}
	d, err := decimal.NewFromString(input)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotNumeric, input)
	}
	return d, nil
}

// Clamp caps a numeric input at balance. Inputs that do not parse are
// returned unchanged so the user can keep typing.
func Clamp(input, balance string) string {
	value, err := Parse(input)
	if err != nil {
		return input
	}
	max, err := Parse(balance)
	if err != nil {
		return input
	}
	if value.GreaterThan(max) {
		return max.String()
	}
	return strings.TrimSpace(input)
}

// Validate checks 0 < input <= balance
func Validate(input, balance string) error {
	value, err := Parse(input)
	if err != nil {
		return err
	}
	if !value.IsPositive() {
		return ErrNotPositive
	}
	max, err := Parse(balance)
	if err != nil {
		return fmt.Errorf("invalid balance: %w", err)
	}
	if value.GreaterThan(max) {
		return ErrExceedsBalance
	}
	return nil
}

// ToBaseUnits converts a human amount to the token's smallest integer unit.
// Precision beyond decimals is truncated; a result of zero is rejected.
func ToBaseUnits(input string, decimals int32) (*big.Int, error) {
	value, err := Parse(input)
	if err != nil {
		return nil, err
	}
	units := value.Shift(decimals).Truncate(0)
	if !units.IsPositive() {
		return nil, ErrNotPositive
	}
	return units.BigInt(), nil
}

// FromBaseUnits formats a smallest-unit amount in human units
func FromBaseUnits(units *big.Int, decimals int32) string {
	if units == nil {
		return "0"
	}
	return decimal.NewFromBigInt(units, -decimals).String()
}

// FromBaseUnitsString is FromBaseUnits for integer strings
func FromBaseUnitsString(units string, decimals int32) (string, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(units), 10)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotNumeric, units)
	}
	return FromBaseUnits(n, decimals), nil
}
