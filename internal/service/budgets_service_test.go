package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Jjjbit/ledger/internal/domain"
	"github.com/Jjjbit/ledger/internal/service"
)

func TestBudgetActiveDuplicateRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	food := env.expenseCategory(t, "Food")

	if _, err := env.budgets.Create(ctx, env.userID, food.ID, dec("500"), domain.BudgetMonthly); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := env.budgets.Create(ctx, env.userID, food.ID, dec("300"), domain.BudgetMonthly)
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// A different period on the same category is fine.
	if _, err := env.budgets.Create(ctx, env.userID, food.ID, dec("6000"), domain.BudgetYearly); err != nil {
		t.Fatalf("yearly budget: %v", err)
	}
}

func TestBudgetRequiresExpenseCategory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	salary, err := env.categories.CreateRoot(ctx, env.userID, env.ledgerID, "Salary", domain.CategoryIncome)
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	_, err = env.budgets.Create(ctx, env.userID, salary.ID, dec("500"), domain.BudgetMonthly)
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestBudgetReportCountsSubtree(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	food := env.expenseCategory(t, "Food")
	groceries, err := env.categories.CreateSub(ctx, env.userID, food.ID, "Groceries")
	if err != nil {
		t.Fatalf("create sub: %v", err)
	}
	a := env.basicAccount(t, "Wallet", "200")
	for _, p := range []struct {
		catID  string
		amount string
	}{
		{food.ID, "30"},
		{groceries.ID, "20"},
	} {
		if _, err := env.transactions.Record(ctx, env.userID, service.RecordParams{
			Type:          domain.TxExpense,
			Amount:        dec(p.amount),
			FromAccountID: a.ID,
			LedgerID:      env.ledgerID,
			CategoryID:    p.catID,
		}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	b, err := env.budgets.Create(ctx, env.userID, food.ID, dec("100"), domain.BudgetMonthly)
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}

	r, err := env.budgets.Report(ctx, env.userID, b.ID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !r.Spent.Equal(dec("50")) {
		t.Errorf("expected spent 50, got %s", r.Spent)
	}
	if !r.Remaining.Equal(dec("50")) {
		t.Errorf("expected remaining 50, got %s", r.Remaining)
	}
	if !r.Active {
		t.Error("expected an active window")
	}
}

func TestUncategorizedBudgetCountsAllExpenses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	food := env.expenseCategory(t, "Food")
	a := env.basicAccount(t, "Wallet", "200")
	other := env.basicAccount(t, "Savings", "0")

	if _, err := env.transactions.Record(ctx, env.userID, service.RecordParams{
		Type:          domain.TxExpense,
		Amount:        dec("40"),
		FromAccountID: a.ID,
		LedgerID:      env.ledgerID,
		CategoryID:    food.ID,
	}); err != nil {
		t.Fatalf("record expense: %v", err)
	}
	// Transfers never count as spend.
	if _, err := env.transactions.Record(ctx, env.userID, service.RecordParams{
		Type:          domain.TxTransfer,
		Amount:        dec("25"),
		FromAccountID: a.ID,
		ToAccountID:   other.ID,
		LedgerID:      env.ledgerID,
	}); err != nil {
		t.Fatalf("record transfer: %v", err)
	}

	b, err := env.budgets.Create(ctx, env.userID, "", dec("100"), domain.BudgetMonthly)
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	r, err := env.budgets.Report(ctx, env.userID, b.ID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !r.Spent.Equal(dec("40")) {
		t.Errorf("expected spent 40, got %s", r.Spent)
	}
}

func TestBudgetMerge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	food := env.expenseCategory(t, "Food")
	housing := env.expenseCategory(t, "Housing")

	target, err := env.budgets.Create(ctx, env.userID, food.ID, dec("300"), domain.BudgetMonthly)
	if err != nil {
		t.Fatalf("create target: %v", err)
	}
	src, err := env.budgets.Create(ctx, env.userID, housing.ID, dec("700"), domain.BudgetMonthly)
	if err != nil {
		t.Fatalf("create source: %v", err)
	}

	got, err := env.budgets.Merge(ctx, env.userID, target.ID, []string{src.ID})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !got.Amount.Equal(dec("1000")) {
		t.Errorf("expected merged amount 1000, got %s", got.Amount)
	}
	var notFound *domain.ErrNotFound
	if _, err := env.store.GetBudget(ctx, src.ID); !errors.As(err, &notFound) {
		t.Fatalf("expected source removed, got %v", err)
	}
}

func TestBudgetMergeRejectsDifferentPeriods(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	food := env.expenseCategory(t, "Food")
	housing := env.expenseCategory(t, "Housing")

	target, err := env.budgets.Create(ctx, env.userID, food.ID, dec("300"), domain.BudgetMonthly)
	if err != nil {
		t.Fatalf("create target: %v", err)
	}
	src, err := env.budgets.Create(ctx, env.userID, housing.ID, dec("100"), domain.BudgetWeekly)
	if err != nil {
		t.Fatalf("create source: %v", err)
	}

	_, err = env.budgets.Merge(ctx, env.userID, target.ID, []string{src.ID})
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestBudgetMergeRejectsTargetAsSource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	food := env.expenseCategory(t, "Food")
	target, err := env.budgets.Create(ctx, env.userID, food.ID, dec("300"), domain.BudgetMonthly)
	if err != nil {
		t.Fatalf("create target: %v", err)
	}

	_, err = env.budgets.Merge(ctx, env.userID, target.ID, []string{target.ID})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestBudgetUpdateAmount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b, err := env.budgets.Create(ctx, env.userID, "", dec("100"), domain.BudgetWeekly)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := env.budgets.UpdateAmount(ctx, env.userID, b.ID, dec("250"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !got.Amount.Equal(dec("250")) {
		t.Errorf("expected amount 250, got %s", got.Amount)
	}

	_, err = env.budgets.UpdateAmount(ctx, env.userID, b.ID, dec("-1"))
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
