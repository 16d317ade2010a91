package domain

import "github.com/shopspring/decimal"

// All balances and amounts are decimal values. Currency display uses a
// 2-digit scale; intermediate amortization math carries full precision
// and rounds only per-period results.

// RoundMoney rounds to 2 decimal places, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ValidateAmount enforces the strictly-positive amount rule shared by
// transactions, repayments and manual balance adjustments.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ErrValidation{Field: "amount", Message: "must be greater than zero"}
	}
	return nil
}
