package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Accounts
// ============================================================

// AccountKind discriminates the closed set of account variants. Every
// per-variant behavior dispatches on Kind with an exhaustive switch.
type AccountKind string

const (
	KindBasic     AccountKind = "basic"
	KindCredit    AccountKind = "credit"
	KindLoan      AccountKind = "loan"
	KindBorrowing AccountKind = "borrowing"
	KindLending   AccountKind = "lending"
)

// AccountType is the user-facing account flavor within a kind.
type AccountType string

const (
	TypeCash         AccountType = "CASH"
	TypeDebitCard    AccountType = "DEBIT_CARD"
	TypePassbook     AccountType = "PASSBOOK"
	TypeOnlineWallet AccountType = "ONLINE_WALLET"
	TypeOtherFunds   AccountType = "OTHER_FUNDS"
	TypeCreditCard   AccountType = "CREDIT_CARD"
	TypeOtherCredit  AccountType = "OTHER_CREDIT"
	TypeLoan         AccountType = "LOAN"
	TypeBorrowing    AccountType = "BORROWING"
	TypeLending      AccountType = "LENDING"
)

// AccountCategory groups types for reporting.
type AccountCategory string

const (
	CategoryFunds          AccountCategory = "FUNDS"
	CategoryCredit         AccountCategory = "CREDIT"
	CategoryVirtualAccount AccountCategory = "VIRTUAL_ACCOUNT"
)

// CreditTerms is the variant payload for credit accounts. CurrentDebt
// never goes negative.
type CreditTerms struct {
	CreditLimit decimal.Decimal `json:"credit_limit"`
	CurrentDebt decimal.Decimal `json:"current_debt"`
	BillDay     int             `json:"bill_day,omitempty"`
	DueDay      int             `json:"due_day,omitempty"`
}

// Account is the single account aggregate. The Kind field selects the
// variant; CreditTerms and LoanTerms are set only for their kinds.
//
// Balance meaning per kind:
//   - basic: money held
//   - credit: positive balance held on the card
//   - loan: unused; the outstanding figure lives in LoanTerms
//   - borrowing: amount still owed to the counterparty
//   - lending: amount still owed by the counterparty
type Account struct {
	ID                 string          `json:"id"`
	OwnerID            string          `json:"owner_id"`
	Name               string          `json:"name"`
	Kind               AccountKind     `json:"kind"`
	Type               AccountType     `json:"type"`
	Category           AccountCategory `json:"category"`
	Balance            decimal.Decimal `json:"balance"`
	Currency           string          `json:"currency,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	IncludedInNetWorth bool            `json:"included_in_net_worth"`
	Selectable         bool            `json:"selectable"`
	Hidden             bool            `json:"hidden"`
	CreatedAt          time.Time       `json:"created_at"`

	CreditTerms *CreditTerms `json:"credit_terms,omitempty"`
	LoanTerms   *LoanTerms   `json:"loan_terms,omitempty"`
}

// Visible reports whether the account participates in transaction
// execution. Hidden or non-selectable accounts do not move money.
func (a *Account) Visible() bool {
	return !a.Hidden && a.Selectable
}

// CountsTowardNetWorth reports whether the account participates in the
// user-level aggregate figures.
func (a *Account) CountsTowardNetWorth() bool {
	return !a.Hidden && a.IncludedInNetWorth
}

// Hide removes the account from aggregate totals and from transaction
// execution eligibility. The balance is untouched.
func (a *Account) Hide() {
	a.Hidden = true
}

// Credit applies a credit per the variant semantics: basic and credit
// accounts gain balance, a borrowing account's owed balance shrinks,
// loan and lending accounts reject the operation.
func (a *Account) Credit(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	switch a.Kind {
	case KindBasic, KindCredit:
		a.Balance = a.Balance.Add(amount)
	case KindBorrowing:
		a.Balance = a.Balance.Sub(amount)
	case KindLoan, KindLending:
		return &ErrUnsupportedOperation{Kind: a.Kind, Operation: "credit"}
	default:
		return &ErrValidation{Field: "kind", Message: "unknown account kind"}
	}
	return nil
}

// Debit applies a debit per the variant semantics. On a credit account
// the balance is consumed first and any shortfall becomes CurrentDebt.
// A lending account's outstanding balance shrinks (repayment received).
func (a *Account) Debit(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	switch a.Kind {
	case KindBasic:
		a.Balance = a.Balance.Sub(amount)
	case KindCredit:
		if a.Balance.GreaterThanOrEqual(amount) {
			a.Balance = a.Balance.Sub(amount)
			return nil
		}
		shortfall := amount.Sub(a.Balance)
		a.Balance = decimal.Zero
		a.CreditTerms.CurrentDebt = a.CreditTerms.CurrentDebt.Add(shortfall)
	case KindLending:
		a.Balance = a.Balance.Sub(amount)
	case KindLoan, KindBorrowing:
		return &ErrUnsupportedOperation{Kind: a.Kind, Operation: "debit"}
	default:
		return &ErrValidation{Field: "kind", Message: "unknown account kind"}
	}
	return nil
}

// ReduceDebt pays down a credit account's CurrentDebt. Overpaying is
// rejected so the debt can never go negative; callers that want clamp
// semantics (installment repayment) cap the amount first.
func (a *Account) ReduceDebt(amount decimal.Decimal) error {
	if a.Kind != KindCredit {
		return &ErrUnsupportedOperation{Kind: a.Kind, Operation: "repay debt on"}
	}
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if amount.GreaterThan(a.CreditTerms.CurrentDebt) {
		return &ErrValidation{Field: "amount", Message: "exceeds current debt"}
	}
	a.CreditTerms.CurrentDebt = a.CreditTerms.CurrentDebt.Sub(amount)
	return nil
}

// undoDebit reverses a Debit applied earlier with the given debt
// portion. The debt part comes off CurrentDebt, the rest returns to
// the balance.
func (a *Account) undoDebit(amount, debtPortion decimal.Decimal) {
	if a.Kind == KindCredit && debtPortion.IsPositive() {
		a.CreditTerms.CurrentDebt = a.CreditTerms.CurrentDebt.Sub(debtPortion)
		a.Balance = a.Balance.Add(amount.Sub(debtPortion))
		return
	}
	a.Balance = a.Balance.Add(amount)
}

// undoCredit reverses a Credit applied earlier.
func (a *Account) undoCredit(amount decimal.Decimal) {
	if a.Kind == KindBorrowing {
		a.Balance = a.Balance.Add(amount)
		return
	}
	a.Balance = a.Balance.Sub(amount)
}
