package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Jjjbit/ledger/internal/domain"
	"github.com/Jjjbit/ledger/internal/service"
)

func TestRepayDebt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	funding := env.basicAccount(t, "Checking", "200")
	credit := env.creditAccount(t, "Card", "0", "100")

	_, err := env.accounts.RepayDebt(ctx, env.userID, credit.ID, funding.ID, dec("50"), env.ledgerID)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}

	gotCredit, _ := env.store.GetAccount(ctx, credit.ID)
	gotFunding, _ := env.store.GetAccount(ctx, funding.ID)
	if !gotCredit.CreditTerms.CurrentDebt.Equal(dec("50")) {
		t.Errorf("expected debt 50, got %s", gotCredit.CreditTerms.CurrentDebt)
	}
	if !gotFunding.Balance.Equal(dec("150")) {
		t.Errorf("expected funding 150, got %s", gotFunding.Balance)
	}
}

func TestRepayDebtRejectsOverpay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	funding := env.basicAccount(t, "Checking", "500")
	credit := env.creditAccount(t, "Card", "0", "100")

	_, err := env.accounts.RepayDebt(ctx, env.userID, credit.ID, funding.ID, dec("150"), env.ledgerID)
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	// No money moved on the rejected repayment.
	gotFunding, _ := env.store.GetAccount(ctx, funding.ID)
	if !gotFunding.Balance.Equal(dec("500")) {
		t.Errorf("funding balance changed: %s", gotFunding.Balance)
	}
}

func TestCreateLoanCreditsReceivingAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	receiving := env.basicAccount(t, "Checking", "1000")

	loan, err := env.accounts.CreateLoan(ctx, env.userID, service.CreateLoanParams{
		Name:               "Car loan",
		LoanAmount:         dec("100"),
		AnnualRate:         dec("1"),
		TotalPeriods:       36,
		RepaidPeriods:      1,
		RepaymentType:      domain.RepayEqualInstallment,
		ReceivingAccountID: receiving.ID,
		IncludedInNetWorth: true,
	})
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}
	if !loan.LoanTerms.RemainingAmount.Equal(dec("98.70")) {
		t.Errorf("expected remaining 98.70, got %s", loan.LoanTerms.RemainingAmount)
	}

	gotReceiving, _ := env.store.GetAccount(ctx, receiving.ID)
	if !gotReceiving.Balance.Equal(dec("1100")) {
		t.Errorf("expected receiving 1100, got %s", gotReceiving.Balance)
	}

	u, _ := env.store.GetUser(ctx, env.userID)
	if !u.TotalAssets.Equal(dec("1100")) {
		t.Errorf("expected assets 1100, got %s", u.TotalAssets)
	}
	if !u.TotalLiabilities.Equal(dec("98.70")) {
		t.Errorf("expected liabilities 98.70, got %s", u.TotalLiabilities)
	}
	if !u.NetAssets.Equal(dec("1001.30")) {
		t.Errorf("expected net 1001.30, got %s", u.NetAssets)
	}
}

func TestRepayLoanAdvancesSchedule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	funding := env.basicAccount(t, "Checking", "1000")

	loan, err := env.accounts.CreateLoan(ctx, env.userID, service.CreateLoanParams{
		Name:               "Loan",
		LoanAmount:         dec("1200"),
		AnnualRate:         dec("0"),
		TotalPeriods:       12,
		RepaymentType:      domain.RepayEqualInstallment,
		IncludedInNetWorth: true,
	})
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}

	got, err := env.accounts.RepayLoan(ctx, env.userID, loan.ID, service.RepayOptions{
		FromAccountID: funding.ID,
		LedgerID:      env.ledgerID,
	})
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if got.LoanTerms.RepaidPeriods != 1 {
		t.Errorf("expected 1 repaid period, got %d", got.LoanTerms.RepaidPeriods)
	}
	if !got.LoanTerms.RemainingAmount.Equal(dec("1100")) {
		t.Errorf("expected remaining 1100, got %s", got.LoanTerms.RemainingAmount)
	}

	gotFunding, _ := env.store.GetAccount(ctx, funding.ID)
	if !gotFunding.Balance.Equal(dec("900")) {
		t.Errorf("expected funding 900, got %s", gotFunding.Balance)
	}
}

func TestBorrowingAndRepay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	target := env.basicAccount(t, "Checking", "100")

	borrowing, err := env.accounts.CreateBorrowing(ctx, env.userID, service.CreateBorrowingParams{
		Name:        "Alice",
		Amount:      dec("500"),
		ToAccountID: target.ID,
		LedgerID:    env.ledgerID,
	})
	if err != nil {
		t.Fatalf("create borrowing: %v", err)
	}

	gotTarget, _ := env.store.GetAccount(ctx, target.ID)
	if !gotTarget.Balance.Equal(dec("600")) {
		t.Errorf("expected target 600, got %s", gotTarget.Balance)
	}

	_, err = env.accounts.RepayBorrowing(ctx, env.userID, borrowing.ID, target.ID, dec("200"), env.ledgerID)
	if err != nil {
		t.Fatalf("repay borrowing: %v", err)
	}
	gotBorrowing, _ := env.store.GetAccount(ctx, borrowing.ID)
	gotTarget, _ = env.store.GetAccount(ctx, target.ID)
	if !gotBorrowing.Balance.Equal(dec("300")) {
		t.Errorf("expected owed 300, got %s", gotBorrowing.Balance)
	}
	if !gotTarget.Balance.Equal(dec("400")) {
		t.Errorf("expected target 400, got %s", gotTarget.Balance)
	}
}

func TestLendingAndReceiveRepayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	funding := env.basicAccount(t, "Checking", "1000")

	lending, err := env.accounts.CreateLending(ctx, env.userID, service.CreateLendingParams{
		Name:          "Bob",
		Amount:        dec("400"),
		FromAccountID: funding.ID,
		LedgerID:      env.ledgerID,
	})
	if err != nil {
		t.Fatalf("create lending: %v", err)
	}

	gotFunding, _ := env.store.GetAccount(ctx, funding.ID)
	if !gotFunding.Balance.Equal(dec("600")) {
		t.Errorf("expected funding 600, got %s", gotFunding.Balance)
	}

	_, err = env.accounts.ReceiveLendingRepayment(ctx, env.userID, lending.ID, funding.ID, dec("150"), env.ledgerID)
	if err != nil {
		t.Fatalf("receive repayment: %v", err)
	}
	gotLending, _ := env.store.GetAccount(ctx, lending.ID)
	gotFunding, _ = env.store.GetAccount(ctx, funding.ID)
	if !gotLending.Balance.Equal(dec("250")) {
		t.Errorf("expected outstanding 250, got %s", gotLending.Balance)
	}
	if !gotFunding.Balance.Equal(dec("750")) {
		t.Errorf("expected funding 750, got %s", gotFunding.Balance)
	}
}

func TestInstallmentRepayClampsDebt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	credit := env.creditAccount(t, "Card", "0", "50")

	plan, err := env.accounts.CreateInstallmentPlan(ctx, env.userID, service.CreatePlanParams{
		AccountID:    credit.ID,
		Description:  "Phone",
		TotalAmount:  dec("1200"),
		TotalPeriods: 12,
		FeeRate:      dec("0"),
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	// One period is 100 but only 50 debt remains; the reduction clamps.
	got, err := env.accounts.RepayInstallmentPlan(ctx, env.userID, plan.ID, service.RepayOptions{})
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if got.PaidPeriods != 1 {
		t.Errorf("expected 1 paid period, got %d", got.PaidPeriods)
	}

	gotCredit, _ := env.store.GetAccount(ctx, credit.ID)
	if !gotCredit.CreditTerms.CurrentDebt.IsZero() {
		t.Errorf("expected debt clamped to zero, got %s", gotCredit.CreditTerms.CurrentDebt)
	}
}

func TestInstallmentPlanRequiresCreditAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	basic := env.basicAccount(t, "Wallet", "100")

	_, err := env.accounts.CreateInstallmentPlan(ctx, env.userID, service.CreatePlanParams{
		AccountID:    basic.ID,
		TotalAmount:  dec("100"),
		TotalPeriods: 3,
	})
	var unsupported *domain.ErrUnsupportedOperation
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
}

func TestDeleteAccountRollsBackTransactions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.basicAccount(t, "Wallet", "500")
	other := env.basicAccount(t, "Savings", "0")

	if _, err := env.transactions.Record(ctx, env.userID, service.RecordParams{
		Type:          domain.TxTransfer,
		Amount:        dec("200"),
		FromAccountID: a.ID,
		ToAccountID:   other.ID,
		LedgerID:      env.ledgerID,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := env.accounts.Delete(ctx, env.userID, a.ID, true); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// The surviving side of the transfer is restored.
	gotOther, _ := env.store.GetAccount(ctx, other.ID)
	if !gotOther.Balance.IsZero() {
		t.Errorf("expected savings restored to zero, got %s", gotOther.Balance)
	}
	_, err := env.store.GetAccount(ctx, a.ID)
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected account removed, got %v", err)
	}
}

func TestDeleteAccountDetachesTransactions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.basicAccount(t, "Wallet", "500")

	tx, err := env.transactions.Record(ctx, env.userID, service.RecordParams{
		Type:          domain.TxExpense,
		Amount:        dec("50"),
		FromAccountID: a.ID,
		LedgerID:      env.ledgerID,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := env.accounts.Delete(ctx, env.userID, a.ID, false); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := env.store.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("transaction should survive: %v", err)
	}
	if got.FromAccountID != "" {
		t.Errorf("expected account reference cleared, got %s", got.FromAccountID)
	}

	// Ledger totals keep the expense.
	l, _ := env.store.GetLedger(ctx, env.ledgerID)
	if !l.TotalExpenses.Equal(dec("50")) {
		t.Errorf("expected expenses kept at 50, got %s", l.TotalExpenses)
	}
}

func TestForeignAccountForbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.store.PutUser(ctx, &domain.User{ID: "user-2", Username: "other"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	foreign := &domain.Account{ID: "acc-2", OwnerID: "user-2", Kind: domain.KindBasic, Name: "Theirs"}
	if err := env.store.PutAccount(ctx, foreign); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	_, err := env.accounts.Get(ctx, env.userID, foreign.ID)
	var forbidden *domain.ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestEditRejectedLeavesAccountUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	credit := env.creditAccount(t, "Card", "0", "100")

	name := "Renamed"
	limit := dec("9000")
	debt := dec("-1")
	_, err := env.accounts.Edit(ctx, env.userID, credit.ID, service.EditAccountParams{
		Name:        &name,
		CreditLimit: &limit,
		CurrentDebt: &debt,
	})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	got, _ := env.store.GetAccount(ctx, credit.ID)
	if got.Name != "Card" {
		t.Errorf("rejected edit changed name to %s", got.Name)
	}
	if !got.CreditTerms.CreditLimit.Equal(dec("5000")) {
		t.Errorf("rejected edit changed credit limit to %s", got.CreditTerms.CreditLimit)
	}
	if !got.CreditTerms.CurrentDebt.Equal(dec("100")) {
		t.Errorf("rejected edit changed debt to %s", got.CreditTerms.CurrentDebt)
	}
}

func TestEditLoanScheduleValidatesRange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	loan, err := env.accounts.CreateLoan(ctx, env.userID, service.CreateLoanParams{
		Name:               "Loan",
		LoanAmount:         dec("1200"),
		AnnualRate:         dec("0"),
		TotalPeriods:       12,
		RepaymentType:      domain.RepayEqualInstallment,
		IncludedInNetWorth: true,
	})
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}

	var verr *domain.ErrValidation
	repaid := 13
	if _, err := env.accounts.Edit(ctx, env.userID, loan.ID, service.EditAccountParams{RepaidPeriods: &repaid}); !errors.As(err, &verr) {
		t.Fatalf("expected ErrValidation for repaid > total, got %v", err)
	}
	total := 0
	if _, err := env.accounts.Edit(ctx, env.userID, loan.ID, service.EditAccountParams{TotalPeriods: &total}); !errors.As(err, &verr) {
		t.Fatalf("expected ErrValidation for zero total periods, got %v", err)
	}

	got, _ := env.store.GetAccount(ctx, loan.ID)
	if got.LoanTerms.TotalPeriods != 12 || got.LoanTerms.RepaidPeriods != 0 || got.LoanTerms.Ended {
		t.Errorf("rejected edit changed schedule: %+v", got.LoanTerms)
	}

	repaid = 6
	edited, err := env.accounts.Edit(ctx, env.userID, loan.ID, service.EditAccountParams{RepaidPeriods: &repaid})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !edited.LoanTerms.RemainingAmount.Equal(dec("600")) {
		t.Errorf("expected remaining 600, got %s", edited.LoanTerms.RemainingAmount)
	}
}

func TestDeleteAccountReversesSharedCounterparty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.basicAccount(t, "Checking", "500")
	b := env.basicAccount(t, "Savings", "100")

	for i := 0; i < 2; i++ {
		_, err := env.transactions.Record(ctx, env.userID, service.RecordParams{
			Type:          domain.TxTransfer,
			Amount:        dec("50"),
			FromAccountID: a.ID,
			ToAccountID:   b.ID,
			LedgerID:      env.ledgerID,
		})
		if err != nil {
			t.Fatalf("record transfer %d: %v", i, err)
		}
	}

	if err := env.accounts.Delete(ctx, env.userID, a.ID, true); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Both transfers into the same counterparty roll back.
	gotB, _ := env.store.GetAccount(ctx, b.ID)
	if !gotB.Balance.Equal(dec("100")) {
		t.Errorf("expected counterparty back at 100, got %s", gotB.Balance)
	}
}

func TestRepayDebtRejectsSameAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	credit := env.creditAccount(t, "Card", "200", "100")

	_, err := env.accounts.RepayDebt(ctx, env.userID, credit.ID, credit.ID, dec("50"), env.ledgerID)
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	got, _ := env.store.GetAccount(ctx, credit.ID)
	if !got.Balance.Equal(dec("200")) || !got.CreditTerms.CurrentDebt.Equal(dec("100")) {
		t.Errorf("rejected repayment moved money: balance %s debt %s", got.Balance, got.CreditTerms.CurrentDebt)
	}
}
