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
	"go.uber.org/zap"
)

var budgetsTracer = otel.Tracer("service.budgets")

// BudgetsService manages period spending caps, either user-wide or
// pinned to a category subtree, and reports spend against them.
type BudgetsService struct {
	store   port.Store
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewBudgetsService(store port.Store, metrics *observability.Metrics, logger *zap.Logger) *BudgetsService {
	return &BudgetsService{store: store, metrics: metrics, logger: logger}
}

// BudgetReport is a budget with its spend over the current window.
type BudgetReport struct {
	Budget    *domain.Budget  `json:"budget"`
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
	Active    bool            `json:"active"`
}

// Create adds a budget. At most one active budget may exist per
// (category, period) pair; uncategorized budgets collide per period.
func (s *BudgetsService) Create(ctx context.Context, ownerID, categoryID string, amount decimal.Decimal, period domain.BudgetPeriod) (*domain.Budget, error) {
	ctx, span := budgetsTracer.Start(ctx, "BudgetsService.Create")
	defer span.End()

	if err := domain.ValidateBudgetPeriod(period); err != nil {
		return nil, err
	}
	if amount.IsNegative() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must not be negative"}
	}
	if categoryID != "" {
		c, err := s.store.GetCategory(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		if err := s.requireOwnedCategory(ctx, ownerID, c); err != nil {
			return nil, err
		}
		if c.Type != domain.CategoryExpense {
			return nil, &domain.ErrValidation{Field: "category_id", Message: "budgets apply to expense categories"}
		}
	}

	existing, err := s.store.BudgetsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for _, b := range existing {
		if b.CategoryID == categoryID && b.Period == period && b.IsActive(now) {
			return nil, &domain.ErrConflict{Message: "an active budget already covers this category and period"}
		}
	}

	b := &domain.Budget{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		CategoryID: categoryID,
		Amount:     domain.RoundMoney(amount),
		Period:     period,
		CreatedAt:  now,
	}
	if err := s.store.PutBudget(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Info("budget created",
		zap.String("budget_id", b.ID),
		zap.String("category_id", categoryID),
		zap.String("period", string(period)),
	)
	return b, nil
}

// UpdateAmount changes a budget's cap.
func (s *BudgetsService) UpdateAmount(ctx context.Context, ownerID, budgetID string, amount decimal.Decimal) (*domain.Budget, error) {
	ctx, span := budgetsTracer.Start(ctx, "BudgetsService.UpdateAmount")
	defer span.End()

	if amount.IsNegative() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must not be negative"}
	}
	b, err := s.ownedBudget(ctx, ownerID, budgetID)
	if err != nil {
		return nil, err
	}
	b.Amount = domain.RoundMoney(amount)
	if err := s.store.PutBudget(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BudgetsService) Delete(ctx context.Context, ownerID, budgetID string) error {
	ctx, span := budgetsTracer.Start(ctx, "BudgetsService.Delete")
	defer span.End()

	b, err := s.ownedBudget(ctx, ownerID, budgetID)
	if err != nil {
		return err
	}
	return s.store.DeleteBudget(ctx, b.ID)
}

// Merge folds several budgets of the same period into the target:
// their amounts are summed into it and the sources removed.
func (s *BudgetsService) Merge(ctx context.Context, ownerID, targetID string, sourceIDs []string) (*domain.Budget, error) {
	ctx, span := budgetsTracer.Start(ctx, "BudgetsService.Merge")
	defer span.End()

	if len(sourceIDs) == 0 {
		return nil, &domain.ErrValidation{Field: "source_ids", Message: "must name at least one budget"}
	}
	target, err := s.ownedBudget(ctx, ownerID, targetID)
	if err != nil {
		return nil, err
	}
	sources := make([]*domain.Budget, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		if id == target.ID {
			return nil, &domain.ErrValidation{Field: "source_ids", Message: "target cannot be one of the sources"}
		}
		src, err := s.ownedBudget(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		if src.Period != target.Period {
			return nil, &domain.ErrConflict{Message: "cannot merge budgets with different periods"}
		}
		sources = append(sources, src)
	}
	for _, src := range sources {
		target.Amount = target.Amount.Add(src.Amount)
		if err := s.store.DeleteBudget(ctx, src.ID); err != nil {
			return nil, err
		}
	}
	if err := s.store.PutBudget(ctx, target); err != nil {
		return nil, err
	}
	s.logger.Info("budgets merged",
		zap.String("target_id", target.ID),
		zap.Int("sources", len(sources)),
	)
	return target, nil
}

func (s *BudgetsService) Get(ctx context.Context, ownerID, budgetID string) (*domain.Budget, error) {
	ctx, span := budgetsTracer.Start(ctx, "BudgetsService.Get")
	defer span.End()
	return s.ownedBudget(ctx, ownerID, budgetID)
}

// Report computes the spend against one budget over its window.
func (s *BudgetsService) Report(ctx context.Context, ownerID, budgetID string) (*BudgetReport, error) {
	ctx, span := budgetsTracer.Start(ctx, "BudgetsService.Report")
	defer span.End()

	b, err := s.ownedBudget(ctx, ownerID, budgetID)
	if err != nil {
		return nil, err
	}
	return s.report(ctx, b)
}

// ListReports returns the report of every budget the owner has.
func (s *BudgetsService) ListReports(ctx context.Context, ownerID string) ([]*BudgetReport, error) {
	ctx, span := budgetsTracer.Start(ctx, "BudgetsService.ListReports")
	defer span.End()

	budgets, err := s.store.BudgetsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]*BudgetReport, 0, len(budgets))
	for _, b := range budgets {
		r, err := s.report(ctx, b)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *BudgetsService) report(ctx context.Context, b *domain.Budget) (*BudgetReport, error) {
	start, end := b.Window()
	spent := decimal.Zero
	if b.CategoryID == "" {
		// Owner-wide: every expense on any of the owner's ledgers.
		ledgers, err := s.store.LedgersByOwner(ctx, b.OwnerID)
		if err != nil {
			return nil, err
		}
		for _, l := range ledgers {
			txs, err := s.store.TransactionsByLedger(ctx, l.ID)
			if err != nil {
				return nil, err
			}
			spent = spent.Add(sumExpenses(txs, start, end))
		}
	} else {
		ids := []string{b.CategoryID}
		children, err := s.store.CategoriesByParent(ctx, b.CategoryID)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			ids = append(ids, c.ID)
		}
		for _, id := range ids {
			txs, err := s.store.TransactionsByCategory(ctx, id)
			if err != nil {
				return nil, err
			}
			spent = spent.Add(sumExpenses(txs, start, end))
		}
	}
	return &BudgetReport{
		Budget:    b,
		Spent:     spent,
		Remaining: b.Remaining(spent),
		Active:    b.IsActive(time.Now()),
	}, nil
}

func sumExpenses(txs []*domain.Transaction, start, end time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.Type != domain.TxExpense || t.State != domain.TxExecuted {
			continue
		}
		if t.Date.Before(start) || !t.Date.Before(end) {
			continue
		}
		total = total.Add(t.Amount)
	}
	return total
}

func (s *BudgetsService) ownedBudget(ctx context.Context, ownerID, budgetID string) (*domain.Budget, error) {
	b, err := s.store.GetBudget(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if b.OwnerID != ownerID {
		return nil, &domain.ErrForbidden{Action: "access budget " + budgetID}
	}
	return b, nil
}

func (s *BudgetsService) requireOwnedCategory(ctx context.Context, ownerID string, c *domain.Category) error {
	if c.LedgerID == "" {
		return &domain.ErrForbidden{Action: "budget a template category"}
	}
	l, err := s.store.GetLedger(ctx, c.LedgerID)
	if err != nil {
		return err
	}
	if l.OwnerID != ownerID {
		return &domain.ErrForbidden{Action: "access category " + c.ID}
	}
	return nil
}
