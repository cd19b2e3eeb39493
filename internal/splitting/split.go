// Package splitting divides monetary amounts among weighted shares with
// exact remainder distribution.
package splitting

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoRatios is returned when an amount is split across zero shares.
	ErrNoRatios = errors.New("no ratios to split amount between")
	// ErrInvalidRatios is returned when the ratios do not sum to a positive value.
	ErrInvalidRatios = errors.New("ratios must sum to a positive value")
)

// precision is the minor-unit precision of the currencies in scope.
const precision = 2

// Split divides amount between the given ratios. Every share except the last
// is rounded to two decimal places; the last share absorbs the accumulated
// rounding remainder, so the results always sum to amount exactly.
func Split(amount decimal.Decimal, ratios []decimal.Decimal) ([]decimal.Decimal, error) {
	if len(ratios) == 0 {
		return nil, ErrNoRatios
	}

	ratioTotal := decimal.Zero
	for _, ratio := range ratios {
		ratioTotal = ratioTotal.Add(ratio)
	}
	if !ratioTotal.IsPositive() {
		return nil, ErrInvalidRatios
	}

	values := make([]decimal.Decimal, len(ratios))
	for i, ratio := range ratios {
		values[i] = amount.Mul(ratio).Div(ratioTotal)
	}

	rounded := make([]decimal.Decimal, len(values))
	remainder := decimal.Zero
	for i, value := range values {
		rounded[i] = value.Round(precision)
		remainder = remainder.Add(value.Sub(rounded[i]))
	}
	last := len(rounded) - 1
	rounded[last] = rounded[last].Add(remainder).Round(precision)

	return rounded, nil
}

// Even splits amount into n equal shares.
func Even(amount decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n <= 0 {
		return nil, ErrNoRatios
	}
	ratios := make([]decimal.Decimal, n)
	for i := range ratios {
		ratios[i] = decimal.NewFromInt(1)
	}
	return Split(amount, ratios)
}
