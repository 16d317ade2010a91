package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Transaction engine
// ============================================================

type TransactionType string

const (
	TxIncome   TransactionType = "INCOME"
	TxExpense  TransactionType = "EXPENSE"
	TxTransfer TransactionType = "TRANSFER"
)

// TransactionState tracks the execute/rollback protocol. Transitions
// are pending → executed → rolled back; rollback is allowed exactly
// once.
type TransactionState string

const (
	TxPending    TransactionState = "pending"
	TxExecuted   TransactionState = "executed"
	TxRolledBack TransactionState = "rolled_back"
)

// Transaction references accounts, ledger and category by id only.
// The inverse lookups ("transactions for account X") are store
// queries, never maintained lists.
type Transaction struct {
	ID            string           `json:"id"`
	Type          TransactionType  `json:"type"`
	Amount        decimal.Decimal  `json:"amount"`
	Date          time.Time        `json:"date"`
	Note          string           `json:"note,omitempty"`
	FromAccountID string           `json:"from_account_id,omitempty"`
	ToAccountID   string           `json:"to_account_id,omitempty"`
	LedgerID      string           `json:"ledger_id,omitempty"`
	CategoryID    string           `json:"category_id,omitempty"`
	State         TransactionState `json:"state"`
	CreatedAt     time.Time        `json:"created_at"`

	// Applied-effect bookkeeping so Rollback is the exact inverse of
	// Execute, including expenses that partially became credit debt.
	fromApplied bool
	toApplied   bool
	fromDebt    decimal.Decimal
}

// NewTransaction validates the amount and defaults the date to now.
func NewTransaction(id string, txType TransactionType, amount decimal.Decimal, date time.Time) (*Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	switch txType {
	case TxIncome, TxExpense, TxTransfer:
	default:
		return nil, &ErrValidation{Field: "type", Message: "unknown transaction type"}
	}
	if date.IsZero() {
		date = time.Now()
	}
	return &Transaction{
		ID:        id,
		Type:      txType,
		Amount:    amount,
		Date:      date,
		State:     TxPending,
		CreatedAt: time.Now(),
	}, nil
}

// Execute mutates the given accounts per the variant semantics. The
// caller resolves FromAccountID/ToAccountID to the matching accounts;
// nil means the side is absent. All checks run before any mutation.
//
//   - Expense: debits from, unless it is hidden or non-selectable (no
//     money moves then). A non-credit account with insufficient balance
//     fails before any mutation.
//   - Income: credits to, unless it is hidden or non-selectable.
//   - Transfer: debits from unconditionally; credits to unless it is a
//     loan or credit account, which are only credited through their
//     specialized repayment paths.
func (t *Transaction) Execute(from, to *Account) error {
	if t.State != TxPending {
		return &ErrConflict{Message: "transaction already executed"}
	}

	switch t.Type {
	case TxExpense:
		if from == nil {
			return &ErrValidation{Field: "from_account_id", Message: "required for expense"}
		}
		if from.Visible() {
			if from.Kind != KindCredit && from.Balance.LessThan(t.Amount) {
				return &ErrInsufficientFunds{Available: from.Balance, Required: t.Amount}
			}
			debtBefore := creditDebt(from)
			if err := from.Debit(t.Amount); err != nil {
				return err
			}
			t.fromApplied = true
			t.fromDebt = creditDebt(from).Sub(debtBefore)
		}

	case TxIncome:
		if to == nil {
			return &ErrValidation{Field: "to_account_id", Message: "required for income"}
		}
		if to.Visible() {
			if err := to.Credit(t.Amount); err != nil {
				return err
			}
			t.toApplied = true
		}

	case TxTransfer:
		if from != nil {
			debtBefore := creditDebt(from)
			if err := from.Debit(t.Amount); err != nil {
				return err
			}
			t.fromApplied = true
			t.fromDebt = creditDebt(from).Sub(debtBefore)
		}
		if to != nil && to.Kind != KindLoan && to.Kind != KindCredit {
			if err := to.Credit(t.Amount); err != nil {
				if t.fromApplied {
					from.undoDebit(t.Amount, t.fromDebt)
					t.fromApplied = false
					t.fromDebt = decimal.Zero
				}
				return err
			}
			t.toApplied = true
		}
	}

	t.State = TxExecuted
	return nil
}

// Rollback restores every affected balance to its pre-Execute value.
// Calling it twice is rejected.
func (t *Transaction) Rollback(from, to *Account) error {
	if t.State != TxExecuted {
		return &ErrConflict{Message: "transaction is not in executed state"}
	}
	if t.fromApplied && from != nil {
		from.undoDebit(t.Amount, t.fromDebt)
	}
	if t.toApplied && to != nil {
		to.undoCredit(t.Amount)
	}
	t.State = TxRolledBack
	return nil
}

func creditDebt(a *Account) decimal.Decimal {
	if a.Kind == KindCredit && a.CreditTerms != nil {
		return a.CreditTerms.CurrentDebt
	}
	return decimal.Zero
}
