package service

import (
	"context"
	"time"

	"github.com/Jjjbit/ledger/internal/domain"
	"github.com/Jjjbit/ledger/internal/infra/observability"
	"github.com/Jjjbit/ledger/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var accountsTracer = otel.Tracer("service.accounts")

// AccountsService owns the account lifecycle: creation of each
// variant, manual adjustments, hiding, deletion with the two-phase
// cascade, and every repayment path (credit debt, installment plan,
// loan, borrowing, lending).
type AccountsService struct {
	store   port.Store
	nw      *NetWorthRefresher
	locks   *UserLocks
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewAccountsService(store port.Store, nw *NetWorthRefresher, locks *UserLocks, metrics *observability.Metrics, logger *zap.Logger) *AccountsService {
	return &AccountsService{store: store, nw: nw, locks: locks, metrics: metrics, logger: logger}
}

// ============================================================
// Creation
// ============================================================

type CreateBasicParams struct {
	Name               string
	Type               domain.AccountType
	Balance            decimal.Decimal
	Currency           string
	Notes              string
	IncludedInNetWorth bool
	Selectable         bool
}

func (s *AccountsService) CreateBasic(ctx context.Context, ownerID string, p CreateBasicParams) (*domain.Account, error) {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.CreateBasic")
	defer span.End()

	if p.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}
	if p.Balance.IsNegative() {
		return nil, &domain.ErrValidation{Field: "balance", Message: "must not be negative"}
	}

	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer release()

	a := &domain.Account{
		ID:                 uuid.New().String(),
		OwnerID:            ownerID,
		Name:               p.Name,
		Kind:               domain.KindBasic,
		Type:               p.Type,
		Category:           domain.CategoryFunds,
		Balance:            p.Balance,
		Currency:           p.Currency,
		Notes:              p.Notes,
		IncludedInNetWorth: p.IncludedInNetWorth,
		Selectable:         p.Selectable,
		CreatedAt:          time.Now(),
	}
	if err := s.store.PutAccount(ctx, a); err != nil {
		return nil, err
	}
	if _, err := s.nw.Refresh(ctx, ownerID); err != nil {
		return nil, err
	}

	s.logger.Info("account created",
		zap.String("account_id", a.ID),
		zap.String("kind", string(a.Kind)),
		zap.String("owner_id", ownerID),
	)
	return a, nil
}

type CreateCreditParams struct {
	Name               string
	Balance            decimal.Decimal
	CreditLimit        decimal.Decimal
	CurrentDebt        decimal.Decimal
	BillDay            int
	DueDay             int
	Notes              string
	IncludedInNetWorth bool
	Selectable         bool
}

func (s *AccountsService) CreateCredit(ctx context.Context, ownerID string, p CreateCreditParams) (*domain.Account, error) {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.CreateCredit")
	defer span.End()

	if p.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}
	if p.CurrentDebt.IsNegative() {
		return nil, &domain.ErrValidation{Field: "current_debt", Message: "must not be negative"}
	}

	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer release()

	a := &domain.Account{
		ID:                 uuid.New().String(),
		OwnerID:            ownerID,
		Name:               p.Name,
		Kind:               domain.KindCredit,
		Type:               domain.TypeCreditCard,
		Category:           domain.CategoryCredit,
		Balance:            p.Balance,
		Notes:              p.Notes,
		IncludedInNetWorth: p.IncludedInNetWorth,
		Selectable:         p.Selectable,
		CreatedAt:          time.Now(),
		CreditTerms: &domain.CreditTerms{
			CreditLimit: p.CreditLimit,
			CurrentDebt: p.CurrentDebt,
			BillDay:     p.BillDay,
			DueDay:      p.DueDay,
		},
	}
	if err := s.store.PutAccount(ctx, a); err != nil {
		return nil, err
	}
	if _, err := s.nw.Refresh(ctx, ownerID); err != nil {
		return nil, err
	}

	s.logger.Info("account created",
		zap.String("account_id", a.ID),
		zap.String("kind", string(a.Kind)),
		zap.String("owner_id", ownerID),
	)
	return a, nil
}

type CreateLoanParams struct {
	Name               string
	LoanAmount         decimal.Decimal
	AnnualRate         decimal.Decimal
	TotalPeriods       int
	RepaidPeriods      int
	RepaymentType      domain.RepaymentType
	ReceivingAccountID string
	RepaymentDay       int
	Notes              string
	IncludedInNetWorth bool
}

// CreateLoan registers a loan and credits the received principal to
// the receiving account.
func (s *AccountsService) CreateLoan(ctx context.Context, ownerID string, p CreateLoanParams) (*domain.Account, error) {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.CreateLoan")
	defer span.End()

	if p.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}
	if err := domain.ValidateAmount(p.LoanAmount); err != nil {
		return nil, err
	}
	if p.TotalPeriods < 1 {
		return nil, &domain.ErrValidation{Field: "total_periods", Message: "must be at least 1"}
	}
	if p.RepaidPeriods < 0 || p.RepaidPeriods > p.TotalPeriods {
		return nil, &domain.ErrValidation{Field: "repaid_periods", Message: "out of range"}
	}

	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer release()

	var receiving *domain.Account
	if p.ReceivingAccountID != "" {
		receiving, err = s.ownedAccount(ctx, ownerID, p.ReceivingAccountID)
		if err != nil {
			return nil, err
		}
	}

	terms := &domain.LoanTerms{
		LoanAmount:         p.LoanAmount,
		AnnualRate:         p.AnnualRate,
		TotalPeriods:       p.TotalPeriods,
		RepaidPeriods:      p.RepaidPeriods,
		RepaymentType:      p.RepaymentType,
		ReceivingAccountID: p.ReceivingAccountID,
		RepaymentDay:       p.RepaymentDay,
	}
	terms.RemainingAmount = terms.Remaining()
	terms.Ended = p.RepaidPeriods >= p.TotalPeriods

	a := &domain.Account{
		ID:                 uuid.New().String(),
		OwnerID:            ownerID,
		Name:               p.Name,
		Kind:               domain.KindLoan,
		Type:               domain.TypeLoan,
		Category:           domain.CategoryCredit,
		Notes:              p.Notes,
		IncludedInNetWorth: p.IncludedInNetWorth,
		CreatedAt:          time.Now(),
		LoanTerms:          terms,
	}

	if receiving != nil {
		if err := receiving.Credit(p.LoanAmount); err != nil {
			return nil, err
		}
		if err := s.store.PutAccount(ctx, receiving); err != nil {
			return nil, err
		}
	}
	if err := s.store.PutAccount(ctx, a); err != nil {
		return nil, err
	}
	if _, err := s.nw.Refresh(ctx, ownerID); err != nil {
		return nil, err
	}

	s.logger.Info("loan account created",
		zap.String("account_id", a.ID),
		zap.String("remaining", terms.RemainingAmount.StringFixed(2)),
		zap.String("owner_id", ownerID),
	)
	return a, nil
}

type CreateBorrowingParams struct {
	Name        string
	Amount      decimal.Decimal
	ToAccountID string
	LedgerID    string
	Notes       string
}

// CreateBorrowing records money borrowed from a counterparty: a
// virtual account tracks the owed amount and a transfer credits the
// receiving account.
func (s *AccountsService) CreateBorrowing(ctx context.Context, ownerID string, p CreateBorrowingParams) (*domain.Account, error) {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.CreateBorrowing")
	defer span.End()

	if p.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}
	if err := domain.ValidateAmount(p.Amount); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer release()

	to, err := s.ownedAccount(ctx, ownerID, p.ToAccountID)
	if err != nil {
		return nil, err
	}

	a := &domain.Account{
		ID:                 uuid.New().String(),
		OwnerID:            ownerID,
		Name:               p.Name,
		Kind:               domain.KindBorrowing,
		Type:               domain.TypeBorrowing,
		Category:           domain.CategoryVirtualAccount,
		Balance:            p.Amount,
		Notes:              p.Notes,
		IncludedInNetWorth: true,
		CreatedAt:          time.Now(),
	}

	tx, err := domain.NewTransaction(uuid.New().String(), domain.TxTransfer, p.Amount, time.Time{})
	if err != nil {
		return nil, err
	}
	tx.ToAccountID = to.ID
	tx.LedgerID = p.LedgerID
	tx.Note = "borrowed from " + p.Name
	if err := tx.Execute(nil, to); err != nil {
		return nil, err
	}

	if err := s.store.PutAccount(ctx, a); err != nil {
		return nil, err
	}
	if err := s.store.PutAccount(ctx, to); err != nil {
		return nil, err
	}
	if err := s.store.PutTransaction(ctx, tx); err != nil {
		return nil, err
	}
	s.metrics.IncrTransactionExecuted(string(tx.Type))
	if _, err := s.nw.Refresh(ctx, ownerID); err != nil {
		return nil, err
	}
	return a, nil
}

type CreateLendingParams struct {
	Name          string
	Amount        decimal.Decimal
	FromAccountID string
	LedgerID      string
	Notes         string
}

// CreateLending records money lent out: the funding account is
// debited and a virtual account tracks the outstanding amount.
func (s *AccountsService) CreateLending(ctx context.Context, ownerID string, p CreateLendingParams) (*domain.Account, error) {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.CreateLending")
	defer span.End()

	if p.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}
	if err := domain.ValidateAmount(p.Amount); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer release()

	from, err := s.ownedAccount(ctx, ownerID, p.FromAccountID)
	if err != nil {
		return nil, err
	}
	if from.Kind != domain.KindCredit && from.Balance.LessThan(p.Amount) {
		return nil, &domain.ErrInsufficientFunds{Available: from.Balance, Required: p.Amount}
	}

	a := &domain.Account{
		ID:                 uuid.New().String(),
		OwnerID:            ownerID,
		Name:               p.Name,
		Kind:               domain.KindLending,
		Type:               domain.TypeLending,
		Category:           domain.CategoryVirtualAccount,
		Balance:            p.Amount,
		Notes:              p.Notes,
		IncludedInNetWorth: true,
		CreatedAt:          time.Now(),
	}

	tx, err := domain.NewTransaction(uuid.New().String(), domain.TxTransfer, p.Amount, time.Time{})
	if err != nil {
		return nil, err
	}
	tx.FromAccountID = from.ID
	tx.LedgerID = p.LedgerID
	tx.Note = "lent to " + p.Name
	if err := tx.Execute(from, nil); err != nil {
		return nil, err
	}

	if err := s.store.PutAccount(ctx, a); err != nil {
		return nil, err
	}
	if err := s.store.PutAccount(ctx, from); err != nil {
		return nil, err
	}
	if err := s.store.PutTransaction(ctx, tx); err != nil {
		return nil, err
	}
	s.metrics.IncrTransactionExecuted(string(tx.Type))
	if _, err := s.nw.Refresh(ctx, ownerID); err != nil {
		return nil, err
	}
	return a, nil
}

// ============================================================
// Lookup and editing
// ============================================================

func (s *AccountsService) Get(ctx context.Context, ownerID, accountID string) (*domain.Account, error) {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.Get")
	defer span.End()
	return s.ownedAccount(ctx, ownerID, accountID)
}

func (s *AccountsService) List(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.List")
	defer span.End()
	return s.store.AccountsByOwner(ctx, ownerID)
}

type EditAccountParams struct {
	Name               *string
	Notes              *string
	Balance            *decimal.Decimal
	IncludedInNetWorth *bool
	Selectable         *bool
	CreditLimit        *decimal.Decimal
	CurrentDebt        *decimal.Decimal
	BillDay            *int
	DueDay             *int
	AnnualRate         *decimal.Decimal
	TotalPeriods       *int
	RepaidPeriods      *int
}

// Edit applies a partial update and recomputes derived state. Loan
// schedule edits refresh RemainingAmount.
func (s *AccountsService) Edit(ctx context.Context, ownerID, accountID string, p EditAccountParams) (*domain.Account, error) {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.Edit")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer release()

	a, err := s.ownedAccount(ctx, ownerID, accountID)
	if err != nil {
		return nil, err
	}

	// The whole patch is validated before the first field is assigned,
	// so a rejected edit leaves the stored record untouched.
	if p.Name != nil && *p.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}
	if p.Balance != nil && a.Kind == domain.KindLoan {
		return nil, &domain.ErrUnsupportedOperation{Kind: a.Kind, Operation: "set balance on"}
	}
	if p.CurrentDebt != nil && p.CurrentDebt.IsNegative() {
		return nil, &domain.ErrValidation{Field: "current_debt", Message: "must not be negative"}
	}
	if a.Kind == domain.KindLoan && a.LoanTerms != nil {
		total := a.LoanTerms.TotalPeriods
		if p.TotalPeriods != nil {
			total = *p.TotalPeriods
		}
		repaid := a.LoanTerms.RepaidPeriods
		if p.RepaidPeriods != nil {
			repaid = *p.RepaidPeriods
		}
		if total < 1 {
			return nil, &domain.ErrValidation{Field: "total_periods", Message: "must be at least 1"}
		}
		if repaid < 0 || repaid > total {
			return nil, &domain.ErrValidation{Field: "repaid_periods", Message: "out of range"}
		}
	}

	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
	if p.Balance != nil {
		a.Balance = *p.Balance
	}
	if p.IncludedInNetWorth != nil {
		a.IncludedInNetWorth = *p.IncludedInNetWorth
	}
	if p.Selectable != nil {
		a.Selectable = *p.Selectable
	}

	if a.Kind == domain.KindCredit && a.CreditTerms != nil {
		if p.CreditLimit != nil {
			a.CreditTerms.CreditLimit = *p.CreditLimit
		}
		if p.CurrentDebt != nil {
			a.CreditTerms.CurrentDebt = *p.CurrentDebt
		}
		if p.BillDay != nil {
			a.CreditTerms.BillDay = *p.BillDay
		}
		if p.DueDay != nil {
			a.CreditTerms.DueDay = *p.DueDay
		}
	}

	if a.Kind == domain.KindLoan && a.LoanTerms != nil {
		if p.AnnualRate != nil {
			a.LoanTerms.AnnualRate = *p.AnnualRate
		}
		if p.TotalPeriods != nil {
			a.LoanTerms.TotalPeriods = *p.TotalPeriods
		}
		if p.RepaidPeriods != nil {
			a.LoanTerms.RepaidPeriods = *p.RepaidPeriods
		}
		a.LoanTerms.Ended = a.LoanTerms.RepaidPeriods >= a.LoanTerms.TotalPeriods
		a.LoanTerms.RemainingAmount = a.LoanTerms.Remaining()
	}

	if err := s.store.PutAccount(ctx, a); err != nil {
		return nil, err
	}
	if _, err := s.nw.Refresh(ctx, ownerID); err != nil {
		return nil, err
	}
	return a, nil
}

// Hide excludes the account from totals and execution eligibility.
func (s *AccountsService) Hide(ctx context.Context, ownerID, accountID string) error {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.Hide")
	defer span.End()

	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return err
	}
	defer release()

	a, err := s.ownedAccount(ctx, ownerID, accountID)
	if err != nil {
		return err
	}
	a.Hide()
	if err := s.store.PutAccount(ctx, a); err != nil {
		return err
	}
	_, err = s.nw.Refresh(ctx, ownerID)
	return err
}

// ManualCredit adjusts a balance outside of any transaction.
func (s *AccountsService) ManualCredit(ctx context.Context, ownerID, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.ManualCredit")
	defer span.End()
	return s.manualAdjust(ctx, ownerID, accountID, amount, (*domain.Account).Credit)
}

// ManualDebit adjusts a balance outside of any transaction.
func (s *AccountsService) ManualDebit(ctx context.Context, ownerID, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.ManualDebit")
	defer span.End()
	return s.manualAdjust(ctx, ownerID, accountID, amount, (*domain.Account).Debit)
}

func (s *AccountsService) manualAdjust(ctx context.Context, ownerID, accountID string, amount decimal.Decimal, apply func(*domain.Account, decimal.Decimal) error) (*domain.Account, error) {
	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer release()

	a, err := s.ownedAccount(ctx, ownerID, accountID)
	if err != nil {
		return nil, err
	}
	if err := apply(a, amount); err != nil {
		return nil, err
	}
	if err := s.store.PutAccount(ctx, a); err != nil {
		return nil, err
	}
	if _, err := s.nw.Refresh(ctx, ownerID); err != nil {
		return nil, err
	}
	return a, nil
}

// ============================================================
// Deletion
// ============================================================

// deletionPlan is the collected first phase of an account removal:
// everything to reverse and everything to discard, resolved up front
// so the second phase applies without further lookups.
type deletionPlan struct {
	reversals []reversal
	detach    []*domain.Transaction
	plans     []*domain.InstallmentPlan
}

type reversal struct {
	tx   *domain.Transaction
	from *domain.Account
	to   *domain.Account
}

// accountLoader resolves each account once per plan. The store hands
// out private copies, so reversals that touch the same account must
// share one record for their adjustments to accumulate.
type accountLoader struct {
	store  port.Store
	loaded map[string]*domain.Account
}

func newAccountLoader(store port.Store) *accountLoader {
	return &accountLoader{store: store, loaded: make(map[string]*domain.Account)}
}

func (al *accountLoader) seed(a *domain.Account) {
	al.loaded[a.ID] = a
}

func (al *accountLoader) get(ctx context.Context, id string) (*domain.Account, error) {
	if a, ok := al.loaded[id]; ok {
		return a, nil
	}
	a, err := al.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	al.loaded[id] = a
	return a, nil
}

// Delete removes an account. With deleteTransactions, every
// transaction touching the account is rolled back and discarded along
// with the account's installment plans; otherwise transactions are
// only disassociated and persist in their ledger and category.
func (s *AccountsService) Delete(ctx context.Context, ownerID, accountID string, deleteTransactions bool) error {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("account_delete", time.Since(start)) }()

	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return err
	}
	defer release()

	a, err := s.ownedAccount(ctx, ownerID, accountID)
	if err != nil {
		return err
	}

	txs, err := s.store.TransactionsByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	plans, err := s.store.PlansByAccount(ctx, accountID)
	if err != nil {
		return err
	}

	// Phase 1: collect.
	plan := deletionPlan{plans: plans}
	if deleteTransactions {
		loader := newAccountLoader(s.store)
		loader.seed(a)
		for _, tx := range txs {
			rev := reversal{tx: tx}
			if tx.FromAccountID != "" {
				if rev.from, err = loader.get(ctx, tx.FromAccountID); err != nil {
					return err
				}
			}
			if tx.ToAccountID != "" {
				if rev.to, err = loader.get(ctx, tx.ToAccountID); err != nil {
					return err
				}
			}
			plan.reversals = append(plan.reversals, rev)
		}
	} else {
		plan.detach = txs
	}

	// Phase 2: apply.
	for _, rev := range plan.reversals {
		if rev.tx.State == domain.TxExecuted {
			if err := rev.tx.Rollback(rev.from, rev.to); err != nil {
				return err
			}
			s.metrics.IncrTransactionRolledBack()
		}
		if rev.tx.LedgerID != "" {
			if l, lerr := s.store.GetLedger(ctx, rev.tx.LedgerID); lerr == nil {
				l.RemoveTransaction(rev.tx)
				if err := s.store.PutLedger(ctx, l); err != nil {
					return err
				}
			}
		}
		for _, acct := range []*domain.Account{rev.from, rev.to} {
			if acct != nil && acct.ID != accountID {
				if err := s.store.PutAccount(ctx, acct); err != nil {
					return err
				}
			}
		}
		if err := s.store.DeleteTransaction(ctx, rev.tx.ID); err != nil {
			return err
		}
	}
	for _, tx := range plan.detach {
		if tx.FromAccountID == accountID {
			tx.FromAccountID = ""
		}
		if tx.ToAccountID == accountID {
			tx.ToAccountID = ""
		}
		if err := s.store.PutTransaction(ctx, tx); err != nil {
			return err
		}
	}
	for _, p := range plan.plans {
		if err := s.store.DeletePlan(ctx, p.ID); err != nil {
			return err
		}
	}
	if err := s.store.DeleteAccount(ctx, accountID); err != nil {
		return err
	}
	if _, err := s.nw.Refresh(ctx, ownerID); err != nil {
		return err
	}

	s.logger.Info("account deleted",
		zap.String("account_id", accountID),
		zap.Bool("delete_transactions", deleteTransactions),
		zap.Int("transactions", len(txs)),
	)
	return nil
}

// ============================================================
// Repayments
// ============================================================

// RepayDebt pays down a credit account's debt from a funding account.
// Overpaying the current debt is rejected before any money moves.
func (s *AccountsService) RepayDebt(ctx context.Context, ownerID, creditAccountID, fromAccountID string, amount decimal.Decimal, ledgerID string) (*domain.Transaction, error) {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.RepayDebt")
	defer span.End()

	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer release()

	credit, err := s.ownedAccount(ctx, ownerID, creditAccountID)
	if err != nil {
		return nil, err
	}
	if credit.Kind != domain.KindCredit {
		return nil, &domain.ErrUnsupportedOperation{Kind: credit.Kind, Operation: "repay debt on"}
	}
	if fromAccountID == creditAccountID {
		return nil, &domain.ErrValidation{Field: "from_account_id", Message: "must differ from the repaid account"}
	}
	from, err := s.ownedAccount(ctx, ownerID, fromAccountID)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if amount.GreaterThan(credit.CreditTerms.CurrentDebt) {
		return nil, &domain.ErrValidation{Field: "amount", Message: "exceeds current debt"}
	}
	if from.Kind != domain.KindCredit && from.Balance.LessThan(amount) {
		return nil, &domain.ErrInsufficientFunds{Available: from.Balance, Required: amount}
	}

	tx, err := domain.NewTransaction(uuid.New().String(), domain.TxTransfer, amount, time.Time{})
	if err != nil {
		return nil, err
	}
	tx.FromAccountID = from.ID
	tx.ToAccountID = credit.ID
	tx.LedgerID = ledgerID
	tx.Note = "repay debt"
	if err := tx.Execute(from, credit); err != nil {
		return nil, err
	}
	if err := credit.ReduceDebt(amount); err != nil {
		return nil, err
	}

	if err := s.store.PutAccount(ctx, from); err != nil {
		return nil, err
	}
	if err := s.store.PutAccount(ctx, credit); err != nil {
		return nil, err
	}
	if err := s.store.PutTransaction(ctx, tx); err != nil {
		return nil, err
	}
	s.metrics.IncrTransactionExecuted(string(tx.Type))
	if _, err := s.nw.Refresh(ctx, ownerID); err != nil {
		return nil, err
	}

	s.logger.Info("debt repaid",
		zap.String("credit_account_id", credit.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("remaining_debt", credit.CreditTerms.CurrentDebt.StringFixed(2)),
	)
	return tx, nil
}

type CreatePlanParams struct {
	AccountID    string
	Description  string
	TotalAmount  decimal.Decimal
	TotalPeriods int
	FeeRate      decimal.Decimal
}

// CreateInstallmentPlan attaches a repayment schedule to a credit
// account. The purchase itself is a separate expense; the plan only
// amortizes it.
func (s *AccountsService) CreateInstallmentPlan(ctx context.Context, ownerID string, p CreatePlanParams) (*domain.InstallmentPlan, error) {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.CreateInstallmentPlan")
	defer span.End()

	if err := domain.ValidateAmount(p.TotalAmount); err != nil {
		return nil, err
	}
	if p.TotalPeriods < 1 {
		return nil, &domain.ErrValidation{Field: "total_periods", Message: "must be at least 1"}
	}
	if p.FeeRate.IsNegative() {
		return nil, &domain.ErrValidation{Field: "fee_rate", Message: "must not be negative"}
	}

	a, err := s.ownedAccount(ctx, ownerID, p.AccountID)
	if err != nil {
		return nil, err
	}
	if a.Kind != domain.KindCredit {
		return nil, &domain.ErrUnsupportedOperation{Kind: a.Kind, Operation: "attach an installment plan to"}
	}

	plan := &domain.InstallmentPlan{
		ID:           uuid.New().String(),
		AccountID:    a.ID,
		Description:  p.Description,
		TotalAmount:  p.TotalAmount,
		TotalPeriods: p.TotalPeriods,
		FeeRate:      p.FeeRate,
		Strategy:     domain.FeeEvenlySplit,
		CreatedAt:    time.Now(),
	}
	if err := s.store.PutPlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

type RepayOptions struct {
	Amount        *decimal.Decimal
	FromAccountID string
	LedgerID      string
}

// RepayInstallmentPlan applies one period by default, or maps an
// explicit amount to whole periods (minimum 1). The credit account's
// debt reduction is clamped so it never goes negative.
func (s *AccountsService) RepayInstallmentPlan(ctx context.Context, ownerID, planID string, opts RepayOptions) (*domain.InstallmentPlan, error) {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.RepayInstallmentPlan")
	defer span.End()

	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer release()

	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	credit, err := s.ownedAccount(ctx, ownerID, plan.AccountID)
	if err != nil {
		return nil, err
	}
	if plan.Finished() {
		return nil, &domain.ErrConflict{Message: "installment plan is already fully paid"}
	}

	periods := 1
	if opts.Amount != nil {
		if err := domain.ValidateAmount(*opts.Amount); err != nil {
			return nil, err
		}
		periods = plan.PeriodsCovered(*opts.Amount)
	}
	applied := plan.PeriodAmount().Mul(decimal.NewFromInt(int64(periods)))

	var from *domain.Account
	if opts.FromAccountID != "" {
		if opts.FromAccountID == plan.AccountID {
			return nil, &domain.ErrValidation{Field: "from_account_id", Message: "must differ from the repaid account"}
		}
		from, err = s.ownedAccount(ctx, ownerID, opts.FromAccountID)
		if err != nil {
			return nil, err
		}
		tx, err := domain.NewTransaction(uuid.New().String(), domain.TxTransfer, applied, time.Time{})
		if err != nil {
			return nil, err
		}
		tx.FromAccountID = from.ID
		tx.ToAccountID = credit.ID
		tx.LedgerID = opts.LedgerID
		tx.Note = "installment repayment"
		if err := tx.Execute(from, credit); err != nil {
			return nil, err
		}
		if err := s.store.PutAccount(ctx, from); err != nil {
			return nil, err
		}
		if err := s.store.PutTransaction(ctx, tx); err != nil {
			return nil, err
		}
		s.metrics.IncrTransactionExecuted(string(tx.Type))
	}

	// Clamp: never drive the debt negative.
	reduction := applied
	if reduction.GreaterThan(credit.CreditTerms.CurrentDebt) {
		reduction = credit.CreditTerms.CurrentDebt
	}
	if reduction.IsPositive() {
		if err := credit.ReduceDebt(reduction); err != nil {
			return nil, err
		}
	}
	plan.Advance(periods)

	if err := s.store.PutAccount(ctx, credit); err != nil {
		return nil, err
	}
	if err := s.store.PutPlan(ctx, plan); err != nil {
		return nil, err
	}
	if _, err := s.nw.Refresh(ctx, ownerID); err != nil {
		return nil, err
	}
	return plan, nil
}

// RepayLoan advances the amortization schedule by at least one period,
// debiting the paying account for the covered period payments.
func (s *AccountsService) RepayLoan(ctx context.Context, ownerID, loanAccountID string, opts RepayOptions) (*domain.Account, error) {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.RepayLoan")
	defer span.End()

	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer release()

	loan, err := s.ownedAccount(ctx, ownerID, loanAccountID)
	if err != nil {
		return nil, err
	}
	if loan.Kind != domain.KindLoan {
		return nil, &domain.ErrUnsupportedOperation{Kind: loan.Kind, Operation: "repay a loan on"}
	}
	if loan.LoanTerms.Ended {
		return nil, &domain.ErrConflict{Message: "loan is already fully repaid"}
	}

	periods := 1
	if opts.Amount != nil {
		if err := domain.ValidateAmount(*opts.Amount); err != nil {
			return nil, err
		}
		periods = loan.LoanTerms.PeriodsCovered(*opts.Amount)
	}

	payment := decimal.Zero
	for k := loan.LoanTerms.RepaidPeriods + 1; k <= loan.LoanTerms.RepaidPeriods+periods; k++ {
		payment = payment.Add(loan.LoanTerms.PeriodPayment(k))
	}

	if opts.FromAccountID != "" {
		if opts.FromAccountID == loanAccountID {
			return nil, &domain.ErrValidation{Field: "from_account_id", Message: "must differ from the repaid account"}
		}
		from, err := s.ownedAccount(ctx, ownerID, opts.FromAccountID)
		if err != nil {
			return nil, err
		}
		tx, err := domain.NewTransaction(uuid.New().String(), domain.TxTransfer, payment, time.Time{})
		if err != nil {
			return nil, err
		}
		tx.FromAccountID = from.ID
		tx.ToAccountID = loan.ID
		tx.LedgerID = opts.LedgerID
		tx.Note = "loan repayment"
		if err := tx.Execute(from, loan); err != nil {
			return nil, err
		}
		if err := s.store.PutAccount(ctx, from); err != nil {
			return nil, err
		}
		if err := s.store.PutTransaction(ctx, tx); err != nil {
			return nil, err
		}
		s.metrics.IncrTransactionExecuted(string(tx.Type))
	}

	loan.LoanTerms.Advance(periods)

	if err := s.store.PutAccount(ctx, loan); err != nil {
		return nil, err
	}
	if _, err := s.nw.Refresh(ctx, ownerID); err != nil {
		return nil, err
	}

	s.logger.Info("loan repaid",
		zap.String("account_id", loan.ID),
		zap.Int("periods", periods),
		zap.String("remaining", loan.LoanTerms.RemainingAmount.StringFixed(2)),
		zap.Bool("ended", loan.LoanTerms.Ended),
	)
	return loan, nil
}

// RepayBorrowing pays back part of a borrowed amount from a funding
// account.
func (s *AccountsService) RepayBorrowing(ctx context.Context, ownerID, borrowingID, fromAccountID string, amount decimal.Decimal, ledgerID string) (*domain.Transaction, error) {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.RepayBorrowing")
	defer span.End()

	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer release()

	borrowing, err := s.ownedAccount(ctx, ownerID, borrowingID)
	if err != nil {
		return nil, err
	}
	if borrowing.Kind != domain.KindBorrowing {
		return nil, &domain.ErrUnsupportedOperation{Kind: borrowing.Kind, Operation: "repay a borrowing on"}
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if amount.GreaterThan(borrowing.Balance) {
		return nil, &domain.ErrValidation{Field: "amount", Message: "exceeds amount owed"}
	}
	if fromAccountID == borrowingID {
		return nil, &domain.ErrValidation{Field: "from_account_id", Message: "must differ from the repaid account"}
	}
	from, err := s.ownedAccount(ctx, ownerID, fromAccountID)
	if err != nil {
		return nil, err
	}
	if from.Kind != domain.KindCredit && from.Balance.LessThan(amount) {
		return nil, &domain.ErrInsufficientFunds{Available: from.Balance, Required: amount}
	}

	tx, err := domain.NewTransaction(uuid.New().String(), domain.TxTransfer, amount, time.Time{})
	if err != nil {
		return nil, err
	}
	tx.FromAccountID = from.ID
	tx.ToAccountID = borrowing.ID
	tx.LedgerID = ledgerID
	tx.Note = "borrowing repayment"
	if err := tx.Execute(from, borrowing); err != nil {
		return nil, err
	}

	if err := s.store.PutAccount(ctx, from); err != nil {
		return nil, err
	}
	if err := s.store.PutAccount(ctx, borrowing); err != nil {
		return nil, err
	}
	if err := s.store.PutTransaction(ctx, tx); err != nil {
		return nil, err
	}
	s.metrics.IncrTransactionExecuted(string(tx.Type))
	if _, err := s.nw.Refresh(ctx, ownerID); err != nil {
		return nil, err
	}
	return tx, nil
}

// ReceiveLendingRepayment records a counterparty paying back part of
// a lent amount into a target account.
func (s *AccountsService) ReceiveLendingRepayment(ctx context.Context, ownerID, lendingID, toAccountID string, amount decimal.Decimal, ledgerID string) (*domain.Transaction, error) {
	ctx, span := accountsTracer.Start(ctx, "AccountsService.ReceiveLendingRepayment")
	defer span.End()

	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer release()

	lending, err := s.ownedAccount(ctx, ownerID, lendingID)
	if err != nil {
		return nil, err
	}
	if lending.Kind != domain.KindLending {
		return nil, &domain.ErrUnsupportedOperation{Kind: lending.Kind, Operation: "receive a repayment on"}
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if amount.GreaterThan(lending.Balance) {
		return nil, &domain.ErrValidation{Field: "amount", Message: "exceeds outstanding amount"}
	}
	if toAccountID == lendingID {
		return nil, &domain.ErrValidation{Field: "to_account_id", Message: "must differ from the lending account"}
	}
	to, err := s.ownedAccount(ctx, ownerID, toAccountID)
	if err != nil {
		return nil, err
	}

	tx, err := domain.NewTransaction(uuid.New().String(), domain.TxTransfer, amount, time.Time{})
	if err != nil {
		return nil, err
	}
	tx.FromAccountID = lending.ID
	tx.ToAccountID = to.ID
	tx.LedgerID = ledgerID
	tx.Note = "lending repayment received"
	if err := tx.Execute(lending, to); err != nil {
		return nil, err
	}

	if err := s.store.PutAccount(ctx, lending); err != nil {
		return nil, err
	}
	if err := s.store.PutAccount(ctx, to); err != nil {
		return nil, err
	}
	if err := s.store.PutTransaction(ctx, tx); err != nil {
		return nil, err
	}
	s.metrics.IncrTransactionExecuted(string(tx.Type))
	if _, err := s.nw.Refresh(ctx, ownerID); err != nil {
		return nil, err
	}
	return tx, nil
}

// ownedAccount loads an account and checks ownership, keeping the
// not-found/forbidden distinction.
func (s *AccountsService) ownedAccount(ctx context.Context, ownerID, accountID string) (*domain.Account, error) {
	a, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.OwnerID != ownerID {
		return nil, &domain.ErrForbidden{Action: "access account " + accountID}
	}
	return a, nil
}
