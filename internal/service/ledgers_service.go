package service

import (
	"context"
	"errors"
	"time"

	"github.com/Jjjbit/ledger/internal/domain"
	"github.com/Jjjbit/ledger/internal/infra/observability"
	"github.com/Jjjbit/ledger/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ledgersTracer = otel.Tracer("service.ledgers")

// LedgersService manages ledgers: creation seeded from the category
// template, structural copies and deletion with full reversal of the
// contained transactions.
type LedgersService struct {
	store   port.Store
	nw      *NetWorthRefresher
	locks   *UserLocks
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewLedgersService(store port.Store, nw *NetWorthRefresher, locks *UserLocks, metrics *observability.Metrics, logger *zap.Logger) *LedgersService {
	return &LedgersService{store: store, nw: nw, locks: locks, metrics: metrics, logger: logger}
}

// Create makes a new ledger for the owner with a private copy of the
// category template. Names are unique per owner.
func (s *LedgersService) Create(ctx context.Context, ownerID, name string) (*domain.Ledger, error) {
	ctx, span := ledgersTracer.Start(ctx, "LedgersService.Create")
	defer span.End()

	if name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}
	if err := s.requireUniqueName(ctx, ownerID, name); err != nil {
		return nil, err
	}

	l := &domain.Ledger{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := s.store.PutLedger(ctx, l); err != nil {
		return nil, err
	}
	template, err := s.store.TemplateCategories(ctx)
	if err != nil {
		return nil, err
	}
	if err := copyCategoryTree(ctx, s.store, template, l.ID); err != nil {
		return nil, err
	}
	s.logger.Info("ledger created",
		zap.String("ledger_id", l.ID),
		zap.String("owner_id", ownerID),
		zap.Int("template_categories", len(template)),
	)
	return l, nil
}

// Copy creates a new ledger with an independent deep copy of the
// source's category tree. Transactions are not copied.
func (s *LedgersService) Copy(ctx context.Context, ownerID, sourceID, name string) (*domain.Ledger, error) {
	ctx, span := ledgersTracer.Start(ctx, "LedgersService.Copy")
	defer span.End()
	span.SetAttributes(attribute.String("ledger.source_id", sourceID))

	src, err := s.ownedLedger(ctx, ownerID, sourceID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = src.Name + " (copy)"
	}
	if err := s.requireUniqueName(ctx, ownerID, name); err != nil {
		return nil, err
	}

	l := &domain.Ledger{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := s.store.PutLedger(ctx, l); err != nil {
		return nil, err
	}
	tree, err := s.store.CategoriesByLedger(ctx, src.ID)
	if err != nil {
		return nil, err
	}
	if err := copyCategoryTree(ctx, s.store, tree, l.ID); err != nil {
		return nil, err
	}
	return l, nil
}

// Delete removes a ledger and everything in it. Transactions are
// rolled back before any record is discarded, so account balances end
// up as if the ledger had never been used.
func (s *LedgersService) Delete(ctx context.Context, ownerID, ledgerID string) error {
	ctx, span := ledgersTracer.Start(ctx, "LedgersService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("ledger.id", ledgerID))

	release, err := s.locks.Acquire(ctx, ownerID)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	l, err := s.ownedLedger(ctx, ownerID, ledgerID)
	if err != nil {
		return err
	}

	txs, err := s.store.TransactionsByLedger(ctx, l.ID)
	if err != nil {
		return err
	}
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
	for _, rev := range revs {
		if rev.tx.State == domain.TxExecuted {
			if err := rev.tx.Rollback(rev.from, rev.to); err != nil {
				return err
			}
			s.metrics.IncrTransactionRolledBack()
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

	categories, err := s.store.CategoriesByLedger(ctx, l.ID)
	if err != nil {
		return err
	}
	for _, c := range categories {
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
	}

	if err := s.store.DeleteLedger(ctx, l.ID); err != nil {
		return err
	}
	if _, err := s.nw.Refresh(ctx, ownerID); err != nil {
		return err
	}
	s.metrics.RecordOperationDuration("ledger_delete", time.Since(start))
	s.logger.Info("ledger deleted",
		zap.String("ledger_id", l.ID),
		zap.Int("transactions_reversed", len(revs)),
		zap.Int("categories", len(categories)),
	)
	return nil
}

func (s *LedgersService) Get(ctx context.Context, ownerID, ledgerID string) (*domain.Ledger, error) {
	ctx, span := ledgersTracer.Start(ctx, "LedgersService.Get")
	defer span.End()
	return s.ownedLedger(ctx, ownerID, ledgerID)
}

func (s *LedgersService) List(ctx context.Context, ownerID string) ([]*domain.Ledger, error) {
	ctx, span := ledgersTracer.Start(ctx, "LedgersService.List")
	defer span.End()
	return s.store.LedgersByOwner(ctx, ownerID)
}

func (s *LedgersService) requireUniqueName(ctx context.Context, ownerID, name string) error {
	existing, err := s.store.LedgerByName(ctx, ownerID, name)
	var notFound *domain.ErrNotFound
	if errors.As(err, &notFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing != nil {
		return &domain.ErrConflict{Message: "ledger name already in use"}
	}
	return nil
}

func (s *LedgersService) ownedLedger(ctx context.Context, ownerID, ledgerID string) (*domain.Ledger, error) {
	l, err := s.store.GetLedger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	if l.OwnerID != ownerID {
		return nil, &domain.ErrForbidden{Action: "access ledger " + ledgerID}
	}
	return l, nil
}

// copyCategoryTree clones a two-level category tree into the target
// ledger. Roots are copied first so subcategory parent ids can be
// remapped to the fresh ids.
func copyCategoryTree(ctx context.Context, store port.Store, tree []*domain.Category, ledgerID string) error {
	idMap := make(map[string]string, len(tree))
	now := time.Now()
	for _, c := range tree {
		if !c.IsRoot() {
			continue
		}
		clone := &domain.Category{
			ID:        uuid.New().String(),
			LedgerID:  ledgerID,
			Name:      c.Name,
			Type:      c.Type,
			CreatedAt: now,
		}
		idMap[c.ID] = clone.ID
		if err := store.PutCategory(ctx, clone); err != nil {
			return err
		}
	}
	for _, c := range tree {
		if c.IsRoot() {
			continue
		}
		parentID, ok := idMap[c.ParentID]
		if !ok {
			// Orphan in the source tree, attach as root.
			parentID = ""
		}
		clone := &domain.Category{
			ID:        uuid.New().String(),
			LedgerID:  ledgerID,
			Name:      c.Name,
			Type:      c.Type,
			ParentID:  parentID,
			CreatedAt: now,
		}
		if err := store.PutCategory(ctx, clone); err != nil {
			return err
		}
	}
	return nil
}
