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

var transactionsTracer = otel.Tracer("service.transactions")

// TransactionsService records income, expense and transfer
// transactions against the ledger, and deletes them with the inverse
// balance adjustment.
type TransactionsService struct {
	store   port.Store
	nw      *NetWorthRefresher
	locks   *UserLocks
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewTransactionsService(store port.Store, nw *NetWorthRefresher, locks *UserLocks, metrics *observability.Metrics, logger *zap.Logger) *TransactionsService {
	return &TransactionsService{store: store, nw: nw, locks: locks, metrics: metrics, logger: logger}
}

type RecordParams struct {
	Type          domain.TransactionType
	Amount        decimal.Decimal
	Date          time.Time
	Note          string
	FromAccountID string
	ToAccountID   string
	LedgerID      string
	CategoryID    string
}

// Record validates, executes and persists one transaction. All checks
// run before any balance moves; a failed execute leaves no partial
// state.
func (s *TransactionsService) Record(ctx context.Context, ownerID string, p RecordParams) (*domain.Transaction, error) {
	ctx, span := transactionsTracer.Start(ctx, "TransactionsService.Record")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.type", string(p.Type)))
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("transaction_record", time.Since(start)) }()

	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer release()

	ledger, err := s.ownedLedger(ctx, ownerID, p.LedgerID)
	if err != nil {
		return nil, err
	}

	var category *domain.Category
	if p.CategoryID != "" {
		if p.Type == domain.TxTransfer {
			return nil, &domain.ErrValidation{Field: "category_id", Message: "transfers carry no category"}
		}
		category, err = s.store.GetCategory(ctx, p.CategoryID)
		if err != nil {
			return nil, err
		}
		if category.LedgerID != ledger.ID {
			return nil, &domain.ErrValidation{Field: "category_id", Message: "category belongs to another ledger"}
		}
		want := domain.CategoryExpense
		if p.Type == domain.TxIncome {
			want = domain.CategoryIncome
		}
		if category.Type != want {
			return nil, &domain.ErrConflict{Message: "invalid category hierarchy"}
		}
	}

	if p.FromAccountID != "" && p.FromAccountID == p.ToAccountID {
		return nil, &domain.ErrValidation{Field: "to_account_id", Message: "must differ from the source account"}
	}

	var from, to *domain.Account
	if p.FromAccountID != "" {
		if from, err = s.ownedAccount(ctx, ownerID, p.FromAccountID); err != nil {
			return nil, err
		}
	}
	if p.ToAccountID != "" {
		if to, err = s.ownedAccount(ctx, ownerID, p.ToAccountID); err != nil {
			return nil, err
		}
	}

	tx, err := domain.NewTransaction(uuid.New().String(), p.Type, p.Amount, p.Date)
	if err != nil {
		return nil, err
	}
	tx.Note = p.Note
	tx.FromAccountID = p.FromAccountID
	tx.ToAccountID = p.ToAccountID
	tx.LedgerID = ledger.ID
	tx.CategoryID = p.CategoryID

	if err := tx.Execute(from, to); err != nil {
		s.metrics.IncrOperationError("transaction_record")
		return nil, err
	}

	if from != nil {
		if err := s.store.PutAccount(ctx, from); err != nil {
			return nil, err
		}
	}
	if to != nil {
		if err := s.store.PutAccount(ctx, to); err != nil {
			return nil, err
		}
	}
	ledger.ApplyTransaction(tx)
	if err := s.store.PutLedger(ctx, ledger); err != nil {
		return nil, err
	}
	if err := s.store.PutTransaction(ctx, tx); err != nil {
		return nil, err
	}
	s.metrics.IncrTransactionExecuted(string(tx.Type))
	if _, err := s.nw.Refresh(ctx, ownerID); err != nil {
		return nil, err
	}

	s.logger.Info("transaction recorded",
		zap.String("transaction_id", tx.ID),
		zap.String("type", string(tx.Type)),
		zap.String("amount", tx.Amount.StringFixed(2)),
		zap.String("ledger_id", ledger.ID),
	)
	return tx, nil
}

// Delete undoes the money movement and discards the record: the
// balances are restored to their pre-execute values, the ledger
// totals roll back and every reference is dropped.
func (s *TransactionsService) Delete(ctx context.Context, ownerID, txID string) error {
	ctx, span := transactionsTracer.Start(ctx, "TransactionsService.Delete")
	defer span.End()

	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return err
	}
	defer release()

	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return err
	}
	ledger, err := s.ownedLedger(ctx, ownerID, tx.LedgerID)
	if err != nil {
		return err
	}

	var from, to *domain.Account
	if tx.FromAccountID != "" {
		if from, err = s.store.GetAccount(ctx, tx.FromAccountID); err != nil {
			return err
		}
	}
	if tx.ToAccountID != "" {
		if to, err = s.store.GetAccount(ctx, tx.ToAccountID); err != nil {
			return err
		}
	}

	if tx.State == domain.TxExecuted {
		if err := tx.Rollback(from, to); err != nil {
			return err
		}
		s.metrics.IncrTransactionRolledBack()
	}

	if from != nil {
		if err := s.store.PutAccount(ctx, from); err != nil {
			return err
		}
	}
	if to != nil {
		if err := s.store.PutAccount(ctx, to); err != nil {
			return err
		}
	}
	ledger.RemoveTransaction(tx)
	if err := s.store.PutLedger(ctx, ledger); err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, txID); err != nil {
		return err
	}
	if _, err := s.nw.Refresh(ctx, ownerID); err != nil {
		return err
	}

	s.logger.Info("transaction deleted",
		zap.String("transaction_id", txID),
		zap.String("ledger_id", ledger.ID),
	)
	return nil
}

func (s *TransactionsService) Get(ctx context.Context, ownerID, txID string) (*domain.Transaction, error) {
	ctx, span := transactionsTracer.Start(ctx, "TransactionsService.Get")
	defer span.End()

	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedLedger(ctx, ownerID, tx.LedgerID); err != nil {
		return nil, err
	}
	return tx, nil
}

// ListByLedger returns the ledger's transactions, date descending.
func (s *TransactionsService) ListByLedger(ctx context.Context, ownerID, ledgerID string) ([]*domain.Transaction, error) {
	ctx, span := transactionsTracer.Start(ctx, "TransactionsService.ListByLedger")
	defer span.End()

	if _, err := s.ownedLedger(ctx, ownerID, ledgerID); err != nil {
		return nil, err
	}
	return s.store.TransactionsByLedger(ctx, ledgerID)
}

// ListByAccount returns all transactions touching an account, date
// descending.
func (s *TransactionsService) ListByAccount(ctx context.Context, ownerID, accountID string) ([]*domain.Transaction, error) {
	ctx, span := transactionsTracer.Start(ctx, "TransactionsService.ListByAccount")
	defer span.End()

	if _, err := s.ownedAccount(ctx, ownerID, accountID); err != nil {
		return nil, err
	}
	return s.store.TransactionsByAccount(ctx, accountID)
}

// ListByAccountMonth narrows an account's transactions to one month.
func (s *TransactionsService) ListByAccountMonth(ctx context.Context, ownerID, accountID string, year int, month time.Month) ([]*domain.Transaction, error) {
	ctx, span := transactionsTracer.Start(ctx, "TransactionsService.ListByAccountMonth")
	defer span.End()

	all, err := s.ListByAccount(ctx, ownerID, accountID)
	if err != nil {
		return nil, err
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	var out []*domain.Transaction
	for _, t := range all {
		if !t.Date.Before(start) && t.Date.Before(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *TransactionsService) ownedAccount(ctx context.Context, ownerID, accountID string) (*domain.Account, error) {
	a, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.OwnerID != ownerID {
		return nil, &domain.ErrForbidden{Action: "access account " + accountID}
	}
	return a, nil
}

func (s *TransactionsService) ownedLedger(ctx context.Context, ownerID, ledgerID string) (*domain.Ledger, error) {
	if ledgerID == "" {
		return nil, &domain.ErrValidation{Field: "ledger_id", Message: "must not be empty"}
	}
	l, err := s.store.GetLedger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	if l.OwnerID != ownerID {
		return nil, &domain.ErrForbidden{Action: "access ledger " + ledgerID}
	}
	return l, nil
}
