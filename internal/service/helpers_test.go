package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/Jjjbit/ledger/internal/domain"
	"github.com/Jjjbit/ledger/internal/infra/cache"
	"github.com/Jjjbit/ledger/internal/infra/memstore"
	"github.com/Jjjbit/ledger/internal/infra/observability"
	"github.com/Jjjbit/ledger/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// testEnv wires the full service stack over a fresh in-memory store
// with one registered user and one ledger.
type testEnv struct {
	store        *memstore.Store
	accounts     *service.AccountsService
	transactions *service.TransactionsService
	categories   *service.CategoriesService
	ledgers      *service.LedgersService
	budgets      *service.BudgetsService
	userID       string
	ledgerID     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memstore.New()
	metrics := observability.NewMetrics()
	locks := service.NewUserLocks()
	nw := service.NewNetWorthRefresher(store, cache.NewNetWorth(time.Minute), metrics)
	logger := zap.NewNop()

	env := &testEnv{
		store:        store,
		accounts:     service.NewAccountsService(store, nw, locks, metrics, logger),
		transactions: service.NewTransactionsService(store, nw, locks, metrics, logger),
		categories:   service.NewCategoriesService(store, nw, locks, metrics, logger),
		ledgers:      service.NewLedgersService(store, nw, locks, metrics, logger),
		budgets:      service.NewBudgetsService(store, metrics, logger),
		userID:       "user-1",
		ledgerID:     "ledger-1",
	}

	ctx := context.Background()
	if err := store.PutUser(ctx, &domain.User{ID: env.userID, Username: "tester", Role: domain.RoleUser}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := store.PutLedger(ctx, &domain.Ledger{ID: env.ledgerID, OwnerID: env.userID, Name: "Main", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	return env
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (e *testEnv) basicAccount(t *testing.T, name, balance string) *domain.Account {
	t.Helper()
	a, err := e.accounts.CreateBasic(context.Background(), e.userID, service.CreateBasicParams{
		Name:               name,
		Type:               domain.TypeCash,
		Balance:            dec(balance),
		IncludedInNetWorth: true,
		Selectable:         true,
	})
	if err != nil {
		t.Fatalf("create basic account: %v", err)
	}
	return a
}

func (e *testEnv) creditAccount(t *testing.T, name, balance, debt string) *domain.Account {
	t.Helper()
	a, err := e.accounts.CreateCredit(context.Background(), e.userID, service.CreateCreditParams{
		Name:               name,
		Balance:            dec(balance),
		CreditLimit:        dec("5000"),
		CurrentDebt:        dec(debt),
		IncludedInNetWorth: true,
		Selectable:         true,
	})
	if err != nil {
		t.Fatalf("create credit account: %v", err)
	}
	return a
}

func (e *testEnv) expenseCategory(t *testing.T, name string) *domain.Category {
	t.Helper()
	c, err := e.categories.CreateRoot(context.Background(), e.userID, e.ledgerID, name, domain.CategoryExpense)
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	return c
}
