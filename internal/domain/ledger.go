package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Ledger aggregate
// ============================================================

// Ledger is a named container of transactions and a ledger-scoped
// category tree. TotalIncome and TotalExpenses are rolling aggregates
// maintained on execute and delete.
type Ledger struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Name          string          `json:"name"`
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ApplyTransaction folds an executed transaction into the rolling
// totals. Transfers move money between accounts and count as neither.
func (l *Ledger) ApplyTransaction(t *Transaction) {
	switch t.Type {
	case TxIncome:
		l.TotalIncome = l.TotalIncome.Add(t.Amount)
	case TxExpense:
		l.TotalExpenses = l.TotalExpenses.Add(t.Amount)
	}
}

// RemoveTransaction reverses ApplyTransaction when a transaction is
// deleted or rolled back.
func (l *Ledger) RemoveTransaction(t *Transaction) {
	switch t.Type {
	case TxIncome:
		l.TotalIncome = l.TotalIncome.Sub(t.Amount)
	case TxExpense:
		l.TotalExpenses = l.TotalExpenses.Sub(t.Amount)
	}
}
