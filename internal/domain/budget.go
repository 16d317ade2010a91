package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Budgets
// ============================================================

type BudgetPeriod string

const (
	BudgetWeekly  BudgetPeriod = "WEEKLY"
	BudgetMonthly BudgetPeriod = "MONTHLY"
	BudgetYearly  BudgetPeriod = "YEARLY"
)

// Budget caps spending for one period window. An empty CategoryID
// means the budget covers the whole user; otherwise it covers one
// category and its children.
type Budget struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"owner_id"`
	CategoryID string          `json:"category_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Period     BudgetPeriod    `json:"period"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ValidateBudgetPeriod rejects unknown period values.
func ValidateBudgetPeriod(p BudgetPeriod) error {
	switch p {
	case BudgetWeekly, BudgetMonthly, BudgetYearly:
		return nil
	}
	return &ErrValidation{Field: "period", Message: "must be WEEKLY, MONTHLY or YEARLY"}
}

// Window returns the [start, end) interval the budget covers,
// anchored at its creation time.
func (b *Budget) Window() (start, end time.Time) {
	start = b.CreatedAt
	switch b.Period {
	case BudgetWeekly:
		end = start.AddDate(0, 0, 7)
	case BudgetMonthly:
		end = start.AddDate(0, 1, 0)
	case BudgetYearly:
		end = start.AddDate(1, 0, 0)
	default:
		end = start
	}
	return start, end
}

// IsActive reports whether now falls inside the budget's window.
func (b *Budget) IsActive(now time.Time) bool {
	start, end := b.Window()
	return !now.Before(start) && now.Before(end)
}

// Remaining subtracts the spent amount, never below zero.
func (b *Budget) Remaining(spent decimal.Decimal) decimal.Decimal {
	r := b.Amount.Sub(spent)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}
