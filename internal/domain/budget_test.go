package domain_test

import (
	"testing"
	"time"

	"github.com/Jjjbit/ledger/internal/domain"
)

func TestBudgetWindows(t *testing.T) {
	created := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		period domain.BudgetPeriod
		end    time.Time
	}{
		{domain.BudgetWeekly, created.AddDate(0, 0, 7)},
		{domain.BudgetMonthly, created.AddDate(0, 1, 0)},
		{domain.BudgetYearly, created.AddDate(1, 0, 0)},
	}
	for _, tc := range cases {
		b := &domain.Budget{Period: tc.period, CreatedAt: created}
		start, end := b.Window()
		if !start.Equal(created) {
			t.Errorf("%s: expected start %s, got %s", tc.period, created, start)
		}
		if !end.Equal(tc.end) {
			t.Errorf("%s: expected end %s, got %s", tc.period, tc.end, end)
		}
	}
}

func TestBudgetIsActive(t *testing.T) {
	created := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	b := &domain.Budget{Period: domain.BudgetWeekly, CreatedAt: created}

	if !b.IsActive(created.AddDate(0, 0, 3)) {
		t.Error("expected active inside window")
	}
	if b.IsActive(created.AddDate(0, 0, 7)) {
		t.Error("expected inactive at window end")
	}
	if b.IsActive(created.Add(-time.Hour)) {
		t.Error("expected inactive before window start")
	}
}

func TestBudgetRemainingFloorsAtZero(t *testing.T) {
	b := &domain.Budget{Amount: dec("100")}

	if !b.Remaining(dec("30")).Equal(dec("70")) {
		t.Errorf("expected 70 remaining, got %s", b.Remaining(dec("30")))
	}
	if !b.Remaining(dec("150")).IsZero() {
		t.Errorf("expected zero when overspent, got %s", b.Remaining(dec("150")))
	}
}

func TestValidateBudgetPeriod(t *testing.T) {
	if err := domain.ValidateBudgetPeriod(domain.BudgetMonthly); err != nil {
		t.Errorf("expected monthly to validate: %v", err)
	}
	if err := domain.ValidateBudgetPeriod("DAILY"); err == nil {
		t.Error("expected unknown period rejected")
	}
}
