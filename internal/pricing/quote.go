package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/mvbarbosa/lendpool/internal/domain"
)

// Term bounds enforced at the product boundary (the request sliders).
const (
	MinTermMonths = 6
	MaxTermMonths = 48
)

var one = decimal.NewFromInt(1)

// Quote prices a loan request from its principal and term.
//
// The growth factor (1+rate)^term is applied once over the whole horizon and
// divided evenly across installments, so every installment is identical and
// there is no per-remaining-balance compounding. That is the product's
// contract, not a numerical error: replacing it with a true amortizing
// annuity formula would change observable payment amounts.
//
// The installment is rounded to cents; TotalPayable is always exactly
// InstallmentAmount * TermMonths.
func Quote(principal decimal.Decimal, termMonths int) (domain.LoanQuote, error) {
	if !principal.IsPositive() {
		return domain.LoanQuote{}, domain.ErrInvalidAmount
	}
	if termMonths < MinTermMonths || termMonths > MaxTermMonths {
		return domain.LoanQuote{}, domain.ErrInvalidTerm
	}

	rate, err := ResolveMonthlyRate(termMonths)
	if err != nil {
		return domain.LoanQuote{}, err
	}

	term := decimal.NewFromInt(int64(termMonths))
	growth := one.Add(rate).Pow(term)
	installment := principal.Mul(growth).Div(term).Round(2)

	return domain.LoanQuote{
		Principal:         principal,
		TermMonths:        termMonths,
		MonthlyRate:       rate,
		InstallmentAmount: installment,
		TotalPayable:      installment.Mul(term),
	}, nil
}
