package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Jjjbit/ledger/internal/domain"
	"github.com/Jjjbit/ledger/internal/infra/observability"
	"github.com/Jjjbit/ledger/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var categoriesTracer = otel.Tracer("service.categories")

// CategoriesService manages the two-level category tree of each
// ledger: creation, renaming, reparenting, promote/demote and deletion
// with either a transaction cascade or a migration target.
type CategoriesService struct {
	store   port.Store
	nw      *NetWorthRefresher
	locks   *UserLocks
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewCategoriesService(store port.Store, nw *NetWorthRefresher, locks *UserLocks, metrics *observability.Metrics, logger *zap.Logger) *CategoriesService {
	return &CategoriesService{store: store, nw: nw, locks: locks, metrics: metrics, logger: logger}
}

// CreateRoot adds a root category to a ledger. Names are unique
// within the ledger.
func (s *CategoriesService) CreateRoot(ctx context.Context, ownerID, ledgerID, name string, catType domain.CategoryType) (*domain.Category, error) {
	ctx, span := categoriesTracer.Start(ctx, "CategoriesService.CreateRoot")
	defer span.End()

	if err := domain.ValidateCategoryName(name); err != nil {
		return nil, err
	}
	switch catType {
	case domain.CategoryIncome, domain.CategoryExpense:
	default:
		return nil, &domain.ErrValidation{Field: "type", Message: "must be INCOME or EXPENSE"}
	}
	if _, err := s.ownedLedger(ctx, ownerID, ledgerID); err != nil {
		return nil, err
	}
	if err := s.requireUniqueName(ctx, ledgerID, name); err != nil {
		return nil, err
	}

	c := &domain.Category{
		ID:        uuid.New().String(),
		LedgerID:  ledgerID,
		Name:      name,
		Type:      catType,
		CreatedAt: time.Now(),
	}
	if err := s.store.PutCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateSub adds a subcategory under a root category of the same
// ledger; the type is inherited from the parent.
func (s *CategoriesService) CreateSub(ctx context.Context, ownerID, parentID, name string) (*domain.Category, error) {
	ctx, span := categoriesTracer.Start(ctx, "CategoriesService.CreateSub")
	defer span.End()

	if err := domain.ValidateCategoryName(name); err != nil {
		return nil, err
	}
	parent, err := s.ownedCategory(ctx, ownerID, parentID)
	if err != nil {
		return nil, err
	}
	if !parent.IsRoot() {
		return nil, &domain.ErrValidation{Field: "parent_id", Message: "parent must be a root category"}
	}
	if err := s.requireUniqueName(ctx, parent.LedgerID, name); err != nil {
		return nil, err
	}

	c := &domain.Category{
		ID:        uuid.New().String(),
		LedgerID:  parent.LedgerID,
		Name:      name,
		Type:      parent.Type,
		ParentID:  parent.ID,
		CreatedAt: time.Now(),
	}
	if err := s.store.PutCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Rename changes a category's name, keeping it unique in the ledger.
func (s *CategoriesService) Rename(ctx context.Context, ownerID, categoryID, newName string) (*domain.Category, error) {
	ctx, span := categoriesTracer.Start(ctx, "CategoriesService.Rename")
	defer span.End()

	if err := domain.ValidateCategoryName(newName); err != nil {
		return nil, err
	}
	c, err := s.ownedCategory(ctx, ownerID, categoryID)
	if err != nil {
		return nil, err
	}
	if c.Name == newName {
		return c, nil
	}
	if err := s.requireUniqueName(ctx, c.LedgerID, newName); err != nil {
		return nil, err
	}
	c.Name = newName
	if err := s.store.PutCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ChangeParent reattaches a subcategory under another root of the
// same type. The swap is one store write, so no half-detached state
// is ever observable.
func (s *CategoriesService) ChangeParent(ctx context.Context, ownerID, categoryID, newParentID string) (*domain.Category, error) {
	ctx, span := categoriesTracer.Start(ctx, "CategoriesService.ChangeParent")
	defer span.End()

	c, err := s.ownedCategory(ctx, ownerID, categoryID)
	if err != nil {
		return nil, err
	}
	if c.IsRoot() {
		return nil, &domain.ErrValidation{Field: "category_id", Message: "only subcategories can change parent"}
	}
	parent, err := s.ownedCategory(ctx, ownerID, newParentID)
	if err != nil {
		return nil, err
	}
	if parent.LedgerID != c.LedgerID {
		return nil, &domain.ErrValidation{Field: "parent_id", Message: "parent belongs to another ledger"}
	}
	if err := c.CanAttachTo(parent); err != nil {
		return nil, err
	}
	c.ParentID = parent.ID
	if err := s.store.PutCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Promote turns a subcategory into a root category. Its transactions
// keep referencing the same node.
func (s *CategoriesService) Promote(ctx context.Context, ownerID, categoryID string) (*domain.Category, error) {
	ctx, span := categoriesTracer.Start(ctx, "CategoriesService.Promote")
	defer span.End()

	c, err := s.ownedCategory(ctx, ownerID, categoryID)
	if err != nil {
		return nil, err
	}
	if c.IsRoot() {
		return nil, &domain.ErrConflict{Message: "category is already a root category"}
	}
	c.ParentID = ""
	if err := s.store.PutCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Demote turns a childless root category into a subcategory of
// another root. Transactions are carried over unchanged.
func (s *CategoriesService) Demote(ctx context.Context, ownerID, categoryID, newParentID string) (*domain.Category, error) {
	ctx, span := categoriesTracer.Start(ctx, "CategoriesService.Demote")
	defer span.End()

	c, err := s.ownedCategory(ctx, ownerID, categoryID)
	if err != nil {
		return nil, err
	}
	if !c.IsRoot() {
		return nil, &domain.ErrValidation{Field: "category_id", Message: "already a subcategory"}
	}
	children, err := s.store.CategoriesByParent(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if len(children) > 0 {
		return nil, &domain.ErrConflict{Message: "cannot demote a category that has subcategories"}
	}
	parent, err := s.ownedCategory(ctx, ownerID, newParentID)
	if err != nil {
		return nil, err
	}
	if parent.ID == c.ID {
		return nil, &domain.ErrValidation{Field: "parent_id", Message: "cannot parent a category to itself"}
	}
	if parent.LedgerID != c.LedgerID {
		return nil, &domain.ErrValidation{Field: "parent_id", Message: "parent belongs to another ledger"}
	}
	if err := c.CanAttachTo(parent); err != nil {
		return nil, err
	}
	c.ParentID = parent.ID
	if err := s.store.PutCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a category. A category with subcategories is always
// rejected. With deleteTransactions the financial effect of each
// transaction is reversed and the record discarded; otherwise all
// transactions move to the given root-level migration target.
func (s *CategoriesService) Delete(ctx context.Context, ownerID, categoryID string, deleteTransactions bool, migrateToID string) error {
	ctx, span := categoriesTracer.Start(ctx, "CategoriesService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", categoryID))

	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return err
	}
	defer release()

	c, err := s.ownedCategory(ctx, ownerID, categoryID)
	if err != nil {
		return err
	}
	children, err := s.store.CategoriesByParent(ctx, c.ID)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return &domain.ErrConflict{Message: "cannot delete a category that has subcategories"}
	}

	txs, err := s.store.TransactionsByCategory(ctx, c.ID)
	if err != nil {
		return err
	}

	if deleteTransactions {
		// Phase 1: resolve the accounts of every reversal.
		loader := newAccountLoader(s.store)
		revs := make([]reversal, 0, len(txs))
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
			revs = append(revs, rev)
		}
		// Phase 2: apply.
		for _, rev := range revs {
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
				if acct != nil {
					if err := s.store.PutAccount(ctx, acct); err != nil {
						return err
					}
				}
			}
			if err := s.store.DeleteTransaction(ctx, rev.tx.ID); err != nil {
				return err
			}
		}
	} else if len(txs) > 0 {
		if migrateToID == "" {
			return &domain.ErrValidation{Field: "migrate_to_category_id", Message: "must provide a migration target"}
		}
		target, err := s.ownedCategory(ctx, ownerID, migrateToID)
		if err != nil {
			return err
		}
		if !target.IsRoot() {
			return &domain.ErrValidation{Field: "migrate_to_category_id", Message: "target category must be a root category"}
		}
		if target.LedgerID != c.LedgerID {
			return &domain.ErrValidation{Field: "migrate_to_category_id", Message: "target belongs to another ledger"}
		}
		if target.Type != c.Type {
			return &domain.ErrConflict{Message: "invalid category hierarchy"}
		}
		// Reclassification only, no balance effects.
		for _, tx := range txs {
			tx.CategoryID = target.ID
			if err := s.store.PutTransaction(ctx, tx); err != nil {
				return err
			}
		}
	}

	// Budgets pinned to the category go with it.
	budgets, err := s.store.BudgetsByCategory(ctx, c.ID)
	if err != nil {
		return err
	}
	for _, b := range budgets {
		if err := s.store.DeleteBudget(ctx, b.ID); err != nil {
			return err
		}
	}

	if err := s.store.DeleteCategory(ctx, c.ID); err != nil {
		return err
	}
	if deleteTransactions {
		if _, err := s.nw.Refresh(ctx, ownerID); err != nil {
			return err
		}
	}

	s.logger.Info("category deleted",
		zap.String("category_id", c.ID),
		zap.Bool("delete_transactions", deleteTransactions),
		zap.Int("transactions", len(txs)),
	)
	return nil
}

// ListByLedger returns the whole tree of a ledger.
func (s *CategoriesService) ListByLedger(ctx context.Context, ownerID, ledgerID string) ([]*domain.Category, error) {
	ctx, span := categoriesTracer.Start(ctx, "CategoriesService.ListByLedger")
	defer span.End()

	if _, err := s.ownedLedger(ctx, ownerID, ledgerID); err != nil {
		return nil, err
	}
	return s.store.CategoriesByLedger(ctx, ledgerID)
}

// Transactions returns the union of a category's own transactions and
// all its descendants', date descending.
func (s *CategoriesService) Transactions(ctx context.Context, ownerID, categoryID string) ([]*domain.Transaction, error) {
	ctx, span := categoriesTracer.Start(ctx, "CategoriesService.Transactions")
	defer span.End()

	c, err := s.ownedCategory(ctx, ownerID, categoryID)
	if err != nil {
		return nil, err
	}

	out, err := s.store.TransactionsByCategory(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	children, err := s.store.CategoriesByParent(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		childTxs, err := s.store.TransactionsByCategory(ctx, child.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, childTxs...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// TransactionsInPeriod narrows the roll-up to [start, start+period).
func (s *CategoriesService) TransactionsInPeriod(ctx context.Context, ownerID, categoryID string, period domain.BudgetPeriod, start time.Time) ([]*domain.Transaction, error) {
	ctx, span := categoriesTracer.Start(ctx, "CategoriesService.TransactionsInPeriod")
	defer span.End()

	if err := domain.ValidateBudgetPeriod(period); err != nil {
		return nil, err
	}
	all, err := s.Transactions(ctx, ownerID, categoryID)
	if err != nil {
		return nil, err
	}
	var end time.Time
	switch period {
	case domain.BudgetWeekly:
		end = start.AddDate(0, 0, 7)
	case domain.BudgetMonthly:
		end = start.AddDate(0, 1, 0)
	case domain.BudgetYearly:
		end = start.AddDate(1, 0, 0)
	}
	var out []*domain.Transaction
	for _, t := range all {
		if !t.Date.Before(start) && t.Date.Before(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ============================================================
// Template management (admin)
// ============================================================

// CreateTemplateCategory adds a node to the global template tree that
// seeds every new ledger. A non-empty parentID makes a subcategory
// and the type is inherited.
func (s *CategoriesService) CreateTemplateCategory(ctx context.Context, name string, catType domain.CategoryType, parentID string) (*domain.Category, error) {
	ctx, span := categoriesTracer.Start(ctx, "CategoriesService.CreateTemplateCategory")
	defer span.End()

	if err := domain.ValidateCategoryName(name); err != nil {
		return nil, err
	}
	if parentID != "" {
		parent, err := s.store.GetCategory(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if parent.LedgerID != "" {
			return nil, &domain.ErrValidation{Field: "parent_id", Message: "parent is not a template category"}
		}
		if !parent.IsRoot() {
			return nil, &domain.ErrValidation{Field: "parent_id", Message: "parent must be a root category"}
		}
		catType = parent.Type
	} else {
		switch catType {
		case domain.CategoryIncome, domain.CategoryExpense:
		default:
			return nil, &domain.ErrValidation{Field: "type", Message: "must be INCOME or EXPENSE"}
		}
	}
	if err := s.requireUniqueName(ctx, "", name); err != nil {
		return nil, err
	}

	c := &domain.Category{
		ID:        uuid.New().String(),
		Name:      name,
		Type:      catType,
		ParentID:  parentID,
		CreatedAt: time.Now(),
	}
	if err := s.store.PutCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteTemplateCategory removes a template node. Existing ledgers
// keep their copies; only future ledgers are affected.
func (s *CategoriesService) DeleteTemplateCategory(ctx context.Context, categoryID string) error {
	ctx, span := categoriesTracer.Start(ctx, "CategoriesService.DeleteTemplateCategory")
	defer span.End()

	c, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	if c.LedgerID != "" {
		return &domain.ErrValidation{Field: "category_id", Message: "not a template category"}
	}
	children, err := s.store.CategoriesByParent(ctx, c.ID)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return &domain.ErrConflict{Message: "cannot delete a category that has subcategories"}
	}
	return s.store.DeleteCategory(ctx, c.ID)
}

// ListTemplateCategories returns the global template tree.
func (s *CategoriesService) ListTemplateCategories(ctx context.Context) ([]*domain.Category, error) {
	ctx, span := categoriesTracer.Start(ctx, "CategoriesService.ListTemplateCategories")
	defer span.End()
	return s.store.TemplateCategories(ctx)
}

func (s *CategoriesService) requireUniqueName(ctx context.Context, ledgerID, name string) error {
	existing, err := s.store.CategoryByName(ctx, ledgerID, name)
	var notFound *domain.ErrNotFound
	if errors.As(err, &notFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing != nil {
		return &domain.ErrConflict{Message: "category name already in use"}
	}
	return nil
}

func (s *CategoriesService) ownedCategory(ctx context.Context, ownerID, categoryID string) (*domain.Category, error) {
	c, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedLedger(ctx, ownerID, c.LedgerID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CategoriesService) ownedLedger(ctx context.Context, ownerID, ledgerID string) (*domain.Ledger, error) {
	if ledgerID == "" {
		return nil, &domain.ErrForbidden{Action: "access template categories"}
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
