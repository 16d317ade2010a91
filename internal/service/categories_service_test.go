package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Jjjbit/ledger/internal/domain"
	"github.com/Jjjbit/ledger/internal/service"
)

func TestCategoryNameUniquePerLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.expenseCategory(t, "Food")

	_, err := env.categories.CreateRoot(ctx, env.userID, env.ledgerID, "Food", domain.CategoryExpense)
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSubcategoryInheritsType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.expenseCategory(t, "Food")

	sub, err := env.categories.CreateSub(ctx, env.userID, root.ID, "Groceries")
	if err != nil {
		t.Fatalf("create sub: %v", err)
	}
	if sub.Type != domain.CategoryExpense {
		t.Errorf("expected inherited expense type, got %s", sub.Type)
	}
	if sub.ParentID != root.ID {
		t.Errorf("expected parent %s, got %s", root.ID, sub.ParentID)
	}

	// A subcategory cannot parent another category.
	_, err = env.categories.CreateSub(ctx, env.userID, sub.ID, "Snacks")
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDemoteRequiresChildless(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	food := env.expenseCategory(t, "Food")
	housing := env.expenseCategory(t, "Housing")
	if _, err := env.categories.CreateSub(ctx, env.userID, food.ID, "Groceries"); err != nil {
		t.Fatalf("create sub: %v", err)
	}

	_, err := env.categories.Demote(ctx, env.userID, food.ID, housing.ID)
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPromoteSubcategory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	food := env.expenseCategory(t, "Food")
	sub, err := env.categories.CreateSub(ctx, env.userID, food.ID, "Groceries")
	if err != nil {
		t.Fatalf("create sub: %v", err)
	}

	got, err := env.categories.Promote(ctx, env.userID, sub.ID)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if got.ParentID != "" {
		t.Errorf("expected root after promote, got parent %s", got.ParentID)
	}
}

func TestDeleteCategoryRejectsChildren(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	food := env.expenseCategory(t, "Food")
	if _, err := env.categories.CreateSub(ctx, env.userID, food.ID, "Groceries"); err != nil {
		t.Fatalf("create sub: %v", err)
	}

	err := env.categories.Delete(ctx, env.userID, food.ID, false, "")
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDeleteCategoryRequiresMigrationTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	food := env.expenseCategory(t, "Food")
	a := env.basicAccount(t, "Wallet", "100")
	if _, err := env.transactions.Record(ctx, env.userID, service.RecordParams{
		Type:          domain.TxExpense,
		Amount:        dec("10"),
		FromAccountID: a.ID,
		LedgerID:      env.ledgerID,
		CategoryID:    food.ID,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	err := env.categories.Delete(ctx, env.userID, food.ID, false, "")
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDeleteCategoryMigratesTransactions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	food := env.expenseCategory(t, "Food")
	other := env.expenseCategory(t, "Other Expenses")
	a := env.basicAccount(t, "Wallet", "100")
	tx, err := env.transactions.Record(ctx, env.userID, service.RecordParams{
		Type:          domain.TxExpense,
		Amount:        dec("10"),
		FromAccountID: a.ID,
		LedgerID:      env.ledgerID,
		CategoryID:    food.ID,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := env.categories.Delete(ctx, env.userID, food.ID, false, other.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := env.store.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("transaction should survive: %v", err)
	}
	if got.CategoryID != other.ID {
		t.Errorf("expected migration to %s, got %s", other.ID, got.CategoryID)
	}
	_, err = env.store.GetCategory(ctx, food.ID)
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected category removed, got %v", err)
	}

	// The balance is untouched when transactions only migrate.
	gotAccount, _ := env.store.GetAccount(ctx, a.ID)
	if !gotAccount.Balance.Equal(dec("90")) {
		t.Errorf("expected balance 90, got %s", gotAccount.Balance)
	}
}

func TestDeleteCategoryRejectsSubcategoryTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	food := env.expenseCategory(t, "Food")
	housing := env.expenseCategory(t, "Housing")
	sub, err := env.categories.CreateSub(ctx, env.userID, housing.ID, "Rent")
	if err != nil {
		t.Fatalf("create sub: %v", err)
	}
	a := env.basicAccount(t, "Wallet", "100")
	if _, err := env.transactions.Record(ctx, env.userID, service.RecordParams{
		Type:          domain.TxExpense,
		Amount:        dec("10"),
		FromAccountID: a.ID,
		LedgerID:      env.ledgerID,
		CategoryID:    food.ID,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	err = env.categories.Delete(ctx, env.userID, food.ID, false, sub.ID)
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDeleteCategoryWithTransactionsRestoresBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	food := env.expenseCategory(t, "Food")
	a := env.basicAccount(t, "Wallet", "100")
	if _, err := env.transactions.Record(ctx, env.userID, service.RecordParams{
		Type:          domain.TxExpense,
		Amount:        dec("30"),
		FromAccountID: a.ID,
		LedgerID:      env.ledgerID,
		CategoryID:    food.ID,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := env.categories.Delete(ctx, env.userID, food.ID, true, ""); err != nil {
		t.Fatalf("delete: %v", err)
	}

	gotAccount, _ := env.store.GetAccount(ctx, a.ID)
	if !gotAccount.Balance.Equal(dec("100")) {
		t.Errorf("expected balance restored to 100, got %s", gotAccount.Balance)
	}
	l, _ := env.store.GetLedger(ctx, env.ledgerID)
	if !l.TotalExpenses.IsZero() {
		t.Errorf("expected expenses zeroed, got %s", l.TotalExpenses)
	}
	txs, _ := env.store.TransactionsByCategory(ctx, food.ID)
	if len(txs) != 0 {
		t.Errorf("expected no transactions left, got %d", len(txs))
	}
}

func TestDeleteCategoryRemovesBudgets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	food := env.expenseCategory(t, "Food")
	b, err := env.budgets.Create(ctx, env.userID, food.ID, dec("500"), domain.BudgetMonthly)
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}

	if err := env.categories.Delete(ctx, env.userID, food.ID, false, ""); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, err = env.store.GetBudget(ctx, b.ID)
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected budget removed, got %v", err)
	}
}

func TestCategoryTransactionsIncludeChildren(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	food := env.expenseCategory(t, "Food")
	sub, err := env.categories.CreateSub(ctx, env.userID, food.ID, "Groceries")
	if err != nil {
		t.Fatalf("create sub: %v", err)
	}
	a := env.basicAccount(t, "Wallet", "100")
	for _, catID := range []string{food.ID, sub.ID} {
		if _, err := env.transactions.Record(ctx, env.userID, service.RecordParams{
			Type:          domain.TxExpense,
			Amount:        dec("5"),
			FromAccountID: a.ID,
			LedgerID:      env.ledgerID,
			CategoryID:    catID,
		}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	txs, err := env.categories.Transactions(ctx, env.userID, food.ID)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 2 {
		t.Errorf("expected 2 transactions including subcategory, got %d", len(txs))
	}
}

func TestTemplateCategoryLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	root, err := env.categories.CreateTemplateCategory(ctx, "Salary", domain.CategoryIncome, "")
	if err != nil {
		t.Fatalf("create template root: %v", err)
	}
	if root.LedgerID != "" {
		t.Errorf("template category carries ledger %s", root.LedgerID)
	}
	sub, err := env.categories.CreateTemplateCategory(ctx, "Bonus", domain.CategoryIncome, root.ID)
	if err != nil {
		t.Fatalf("create template sub: %v", err)
	}

	err = env.categories.DeleteTemplateCategory(ctx, root.ID)
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict for a template root with children, got %v", err)
	}
	if err := env.categories.DeleteTemplateCategory(ctx, sub.ID); err != nil {
		t.Fatalf("delete sub: %v", err)
	}
	if err := env.categories.DeleteTemplateCategory(ctx, root.ID); err != nil {
		t.Fatalf("delete root: %v", err)
	}

	all, err := env.categories.ListTemplateCategories(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected empty template, got %d", len(all))
	}
}
