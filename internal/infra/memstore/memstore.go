// Package memstore is an in-memory registry of ledger entities,
// addressed by id. Each relationship is stored once on the owning
// side; the inverse lookups are computed scans. It backs the services
// in tests and single-process deployments.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/Jjjbit/ledger/internal/domain"
)

// Store implements port.Store with plain maps behind one RWMutex.
// Every getter and scan returns a private copy and Put stores one, so
// an in-flight mutation on a loaded record is never visible to other
// readers until it is written back.
type Store struct {
	mu           sync.RWMutex
	users        map[string]*domain.User
	accounts     map[string]*domain.Account
	ledgers      map[string]*domain.Ledger
	transactions map[string]*domain.Transaction
	categories   map[string]*domain.Category
	budgets      map[string]*domain.Budget
	plans        map[string]*domain.InstallmentPlan
}

// New creates an empty registry.
func New() *Store {
	return &Store{
		users:        make(map[string]*domain.User),
		accounts:     make(map[string]*domain.Account),
		ledgers:      make(map[string]*domain.Ledger),
		transactions: make(map[string]*domain.Transaction),
		categories:   make(map[string]*domain.Category),
		budgets:      make(map[string]*domain.Budget),
		plans:        make(map[string]*domain.InstallmentPlan),
	}
}

// Account is the one aggregate with pointer fields; its terms are
// copied as well. The other aggregates hold only value fields, and a
// decimal.Decimal never mutates its shared coefficient, so a shallow
// copy isolates them.
func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	if a.CreditTerms != nil {
		ct := *a.CreditTerms
		c.CreditTerms = &ct
	}
	if a.LoanTerms != nil {
		lt := *a.LoanTerms
		c.LoanTerms = &lt
	}
	return &c
}

func cloneUser(u *domain.User) *domain.User { c := *u; return &c }

func cloneLedger(l *domain.Ledger) *domain.Ledger { c := *l; return &c }

func cloneTransaction(t *domain.Transaction) *domain.Transaction { c := *t; return &c }

func cloneCategory(c *domain.Category) *domain.Category { cc := *c; return &cc }

func cloneBudget(b *domain.Budget) *domain.Budget { c := *b; return &c }

func clonePlan(p *domain.InstallmentPlan) *domain.InstallmentPlan { c := *p; return &c }

// --- Users ---

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: id}
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "user", ID: username}
}

func (s *Store) PutUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = cloneUser(u)
	return nil
}

// --- Accounts ---

func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	return cloneAccount(a), nil
}

func (s *Store) PutAccount(ctx context.Context, a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
	return nil
}

func (s *Store) AccountsByOwner(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Account
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			out = append(out, cloneAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- Ledgers ---

func (s *Store) GetLedger(ctx context.Context, id string) (*domain.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledgers[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "ledger", ID: id}
	}
	return cloneLedger(l), nil
}

func (s *Store) PutLedger(ctx context.Context, l *domain.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[l.ID] = cloneLedger(l)
	return nil
}

func (s *Store) DeleteLedger(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ledgers, id)
	return nil
}

func (s *Store) LedgersByOwner(ctx context.Context, ownerID string) ([]*domain.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Ledger
	for _, l := range s.ledgers {
		if l.OwnerID == ownerID {
			out = append(out, cloneLedger(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) LedgerByName(ctx context.Context, ownerID, name string) (*domain.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.ledgers {
		if l.OwnerID == ownerID && l.Name == name {
			return cloneLedger(l), nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "ledger", ID: name}
}

// --- Transactions ---

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return cloneTransaction(t), nil
}

func (s *Store) PutTransaction(ctx context.Context, t *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[t.ID] = cloneTransaction(t)
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions, id)
	return nil
}

func (s *Store) TransactionsByAccount(ctx context.Context, accountID string) ([]*domain.Transaction, error) {
	return s.selectTransactions(func(t *domain.Transaction) bool {
		return t.FromAccountID == accountID || t.ToAccountID == accountID
	}), nil
}

func (s *Store) TransactionsByLedger(ctx context.Context, ledgerID string) ([]*domain.Transaction, error) {
	return s.selectTransactions(func(t *domain.Transaction) bool {
		return t.LedgerID == ledgerID
	}), nil
}

func (s *Store) TransactionsByCategory(ctx context.Context, categoryID string) ([]*domain.Transaction, error) {
	return s.selectTransactions(func(t *domain.Transaction) bool {
		return t.CategoryID == categoryID
	}), nil
}

// selectTransactions scans with the date-descending order the
// category roll-ups expect.
func (s *Store) selectTransactions(match func(*domain.Transaction) bool) []*domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Transaction
	for _, t := range s.transactions {
		if match(t) {
			out = append(out, cloneTransaction(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

// --- Categories ---

func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "category", ID: id}
	}
	return cloneCategory(c), nil
}

func (s *Store) PutCategory(ctx context.Context, c *domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = cloneCategory(c)
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.categories, id)
	return nil
}

func (s *Store) CategoriesByLedger(ctx context.Context, ledgerID string) ([]*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Category
	for _, c := range s.categories {
		if c.LedgerID == ledgerID {
			out = append(out, cloneCategory(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CategoriesByParent(ctx context.Context, parentID string) ([]*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Category
	for _, c := range s.categories {
		if c.ParentID == parentID && parentID != "" {
			out = append(out, cloneCategory(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CategoryByName(ctx context.Context, ledgerID, name string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.LedgerID == ledgerID && c.Name == name {
			return cloneCategory(c), nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "category", ID: name}
}

func (s *Store) TemplateCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.CategoriesByLedger(ctx, "")
}

// --- Budgets ---

func (s *Store) GetBudget(ctx context.Context, id string) (*domain.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "budget", ID: id}
	}
	return cloneBudget(b), nil
}

func (s *Store) PutBudget(ctx context.Context, b *domain.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[b.ID] = cloneBudget(b)
	return nil
}

func (s *Store) DeleteBudget(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.budgets, id)
	return nil
}

func (s *Store) BudgetsByOwner(ctx context.Context, ownerID string) ([]*domain.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Budget
	for _, b := range s.budgets {
		if b.OwnerID == ownerID {
			out = append(out, cloneBudget(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) BudgetsByCategory(ctx context.Context, categoryID string) ([]*domain.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Budget
	for _, b := range s.budgets {
		if b.CategoryID == categoryID && categoryID != "" {
			out = append(out, cloneBudget(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- Installment plans ---

func (s *Store) GetPlan(ctx context.Context, id string) (*domain.InstallmentPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "installment plan", ID: id}
	}
	return clonePlan(p), nil
}

func (s *Store) PutPlan(ctx context.Context, p *domain.InstallmentPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = clonePlan(p)
	return nil
}

func (s *Store) DeletePlan(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.plans, id)
	return nil
}

func (s *Store) PlansByAccount(ctx context.Context, accountID string) ([]*domain.InstallmentPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.InstallmentPlan
	for _, p := range s.plans {
		if p.AccountID == accountID {
			out = append(out, clonePlan(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
