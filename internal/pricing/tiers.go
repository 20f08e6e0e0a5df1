// Package pricing implements the loan pricing engine: the term-keyed monthly
// rate tiers and the quote calculator. Everything here is pure and safe to
// call on every slider tick.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/mvbarbosa/lendpool/internal/domain"
)

// rateTier maps a term upper bound (inclusive, in months) to a monthly rate.
type rateTier struct {
	maxMonths int // 0 means unbounded
	rate      decimal.Decimal
}

// tiers is evaluated by ascending bound, first match wins.
var tiers = []rateTier{
	{maxMonths: 12, rate: decimal.RequireFromString("0.02")},
	{maxMonths: 24, rate: decimal.RequireFromString("0.025")},
	{maxMonths: 36, rate: decimal.RequireFromString("0.03")},
	{maxMonths: 0, rate: decimal.RequireFromString("0.035")},
}

// ResolveMonthlyRate maps a term length to its monthly interest rate bracket.
// Non-positive terms are rejected with ErrInvalidTerm rather than clamped.
func ResolveMonthlyRate(termMonths int) (decimal.Decimal, error) {
	if termMonths <= 0 {
		return decimal.Decimal{}, domain.ErrInvalidTerm
	}
	for _, t := range tiers {
		if t.maxMonths == 0 || termMonths <= t.maxMonths {
			return t.rate, nil
		}
	}
	return decimal.Decimal{}, domain.ErrInvalidTerm
}
