// Package port defines the interfaces (ports) between the ledger core
// services and the infrastructure that backs them. Following hexagonal
// architecture, these ports decouple the domain/service layer from
// concrete implementations. Relationships are stored on the owning
// side only; every inverse ("transactions for account X") is a query
// here, not a maintained list.
package port

import (
	"context"

	"github.com/Jjjbit/ledger/internal/domain"
)

// UserStore persists user aggregates.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	PutUser(ctx context.Context, u *domain.User) error
}

// AccountStore persists accounts and answers ownership queries.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	PutAccount(ctx context.Context, a *domain.Account) error
	DeleteAccount(ctx context.Context, id string) error
	AccountsByOwner(ctx context.Context, ownerID string) ([]*domain.Account, error)
}

// LedgerStore persists ledgers.
type LedgerStore interface {
	GetLedger(ctx context.Context, id string) (*domain.Ledger, error)
	PutLedger(ctx context.Context, l *domain.Ledger) error
	DeleteLedger(ctx context.Context, id string) error
	LedgersByOwner(ctx context.Context, ownerID string) ([]*domain.Ledger, error)
	LedgerByName(ctx context.Context, ownerID, name string) (*domain.Ledger, error)
}

// TransactionStore persists transactions and derives the inverse
// relationship lookups.
type TransactionStore interface {
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	PutTransaction(ctx context.Context, t *domain.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	TransactionsByAccount(ctx context.Context, accountID string) ([]*domain.Transaction, error)
	TransactionsByLedger(ctx context.Context, ledgerID string) ([]*domain.Transaction, error)
	TransactionsByCategory(ctx context.Context, categoryID string) ([]*domain.Transaction, error)
}

// CategoryStore persists the per-ledger category trees and the global
// template tree (ledger id empty).
type CategoryStore interface {
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	PutCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, id string) error
	CategoriesByLedger(ctx context.Context, ledgerID string) ([]*domain.Category, error)
	CategoriesByParent(ctx context.Context, parentID string) ([]*domain.Category, error)
	CategoryByName(ctx context.Context, ledgerID, name string) (*domain.Category, error)
	TemplateCategories(ctx context.Context) ([]*domain.Category, error)
}

// BudgetStore persists budgets.
type BudgetStore interface {
	GetBudget(ctx context.Context, id string) (*domain.Budget, error)
	PutBudget(ctx context.Context, b *domain.Budget) error
	DeleteBudget(ctx context.Context, id string) error
	BudgetsByOwner(ctx context.Context, ownerID string) ([]*domain.Budget, error)
	BudgetsByCategory(ctx context.Context, categoryID string) ([]*domain.Budget, error)
}

// PlanStore persists installment plans.
type PlanStore interface {
	GetPlan(ctx context.Context, id string) (*domain.InstallmentPlan, error)
	PutPlan(ctx context.Context, p *domain.InstallmentPlan) error
	DeletePlan(ctx context.Context, id string) error
	PlansByAccount(ctx context.Context, accountID string) ([]*domain.InstallmentPlan, error)
}

// Store is the full persistence surface the services depend on.
type Store interface {
	UserStore
	AccountStore
	LedgerStore
	TransactionStore
	CategoryStore
	BudgetStore
	PlanStore
}
