package memstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Jjjbit/ledger/internal/domain"
	"github.com/Jjjbit/ledger/internal/infra/memstore"

	"github.com/shopspring/decimal"
)

func TestAccountRoundTrip(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	a := &domain.Account{ID: "a1", OwnerID: "u1", Name: "Wallet", Kind: domain.KindBasic, Balance: decimal.NewFromInt(10)}
	if err := s.PutAccount(ctx, a); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.GetAccount(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Wallet" {
		t.Errorf("expected Wallet, got %s", got.Name)
	}

	if err := s.DeleteAccount(ctx, "a1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = s.GetAccount(ctx, "a1")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountCopiesIsolateCallers(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	a := &domain.Account{
		ID: "a1", OwnerID: "u1", Name: "Card", Kind: domain.KindCredit,
		Balance:     decimal.NewFromInt(100),
		CreditTerms: &domain.CreditTerms{CreditLimit: decimal.NewFromInt(1000), CurrentDebt: decimal.NewFromInt(50)},
	}
	if err := s.PutAccount(ctx, a); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Mutating the argument after Put must not reach the store.
	a.Name = "changed"
	a.CreditTerms.CurrentDebt = decimal.NewFromInt(999)

	got, err := s.GetAccount(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Card" {
		t.Errorf("expected stored name Card, got %s", got.Name)
	}
	if !got.CreditTerms.CurrentDebt.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected stored debt 50, got %s", got.CreditTerms.CurrentDebt)
	}

	// Mutating a loaded record must not reach the store either.
	got.Balance = decimal.NewFromInt(7)
	got.CreditTerms.CurrentDebt = decimal.NewFromInt(7)

	again, err := s.GetAccount(ctx, "a1")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if !again.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected balance 100, got %s", again.Balance)
	}
	if !again.CreditTerms.CurrentDebt.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected debt 50, got %s", again.CreditTerms.CurrentDebt)
	}
}

func TestTransactionsByAccountSortedDateDescending(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"t1", "t2", "t3"} {
		tx := &domain.Transaction{
			ID:            id,
			Type:          domain.TxExpense,
			Amount:        decimal.NewFromInt(1),
			Date:          base.AddDate(0, 0, i),
			FromAccountID: "a1",
		}
		if err := s.PutTransaction(ctx, tx); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}

	txs, err := s.TransactionsByAccount(ctx, "a1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	if txs[0].ID != "t3" || txs[2].ID != "t1" {
		t.Errorf("expected newest first, got %s..%s", txs[0].ID, txs[2].ID)
	}
}

func TestTransactionsByAccountMatchesEitherSide(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	tx := &domain.Transaction{
		ID: "t1", Type: domain.TxTransfer, Amount: decimal.NewFromInt(5),
		Date: time.Now(), FromAccountID: "a1", ToAccountID: "a2",
	}
	if err := s.PutTransaction(ctx, tx); err != nil {
		t.Fatalf("put: %v", err)
	}

	for _, id := range []string{"a1", "a2"} {
		txs, err := s.TransactionsByAccount(ctx, id)
		if err != nil {
			t.Fatalf("query %s: %v", id, err)
		}
		if len(txs) != 1 {
			t.Errorf("expected transfer visible from %s, got %d", id, len(txs))
		}
	}
}

func TestCategoriesByLedgerAndTemplate(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	tmpl := &domain.Category{ID: "c0", Name: "Food", Type: domain.CategoryExpense}
	owned := &domain.Category{ID: "c1", LedgerID: "l1", Name: "Food", Type: domain.CategoryExpense}
	child := &domain.Category{ID: "c2", LedgerID: "l1", Name: "Groceries", Type: domain.CategoryExpense, ParentID: "c1"}
	for _, c := range []*domain.Category{tmpl, owned, child} {
		if err := s.PutCategory(ctx, c); err != nil {
			t.Fatalf("put %s: %v", c.ID, err)
		}
	}

	template, err := s.TemplateCategories(ctx)
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	if len(template) != 1 || template[0].ID != "c0" {
		t.Errorf("expected only the template node, got %d", len(template))
	}

	byLedger, err := s.CategoriesByLedger(ctx, "l1")
	if err != nil {
		t.Fatalf("by ledger: %v", err)
	}
	if len(byLedger) != 2 {
		t.Errorf("expected 2 ledger categories, got %d", len(byLedger))
	}

	children, err := s.CategoriesByParent(ctx, "c1")
	if err != nil {
		t.Fatalf("by parent: %v", err)
	}
	if len(children) != 1 || children[0].ID != "c2" {
		t.Errorf("expected child c2, got %d", len(children))
	}

	byName, err := s.CategoryByName(ctx, "l1", "Groceries")
	if err != nil {
		t.Fatalf("by name: %v", err)
	}
	if byName.ID != "c2" {
		t.Errorf("expected c2, got %s", byName.ID)
	}
}

func TestLedgerByName(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	l := &domain.Ledger{ID: "l1", OwnerID: "u1", Name: "Household"}
	if err := s.PutLedger(ctx, l); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.LedgerByName(ctx, "u1", "Household")
	if err != nil {
		t.Fatalf("by name: %v", err)
	}
	if got.ID != "l1" {
		t.Errorf("expected l1, got %s", got.ID)
	}

	_, err = s.LedgerByName(ctx, "u2", "Household")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound for other owner, got %v", err)
	}
}

func TestUserByUsername(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	u := &domain.User{ID: "u1", Username: "alice"}
	if err := s.PutUser(ctx, u); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("by username: %v", err)
	}
	if got.ID != "u1" {
		t.Errorf("expected u1, got %s", got.ID)
	}
}
