package domain_test

import (
	"testing"

	"github.com/Jjjbit/ledger/internal/domain"
)

func TestComputeNetWorthMixedAccounts(t *testing.T) {
	accounts := []*domain.Account{
		{Kind: domain.KindBasic, Balance: dec("1000"), IncludedInNetWorth: true},
		{Kind: domain.KindCredit, Balance: dec("100"), IncludedInNetWorth: true,
			CreditTerms: &domain.CreditTerms{CurrentDebt: dec("250")}},
		{Kind: domain.KindLending, Balance: dec("300"), IncludedInNetWorth: true},
		{Kind: domain.KindBorrowing, Balance: dec("400"), IncludedInNetWorth: true},
		{Kind: domain.KindLoan, IncludedInNetWorth: true,
			LoanTerms: &domain.LoanTerms{RemainingAmount: dec("98.70")}},
	}

	nw := domain.ComputeNetWorth(accounts)

	// Assets: 1000 + 100 + 300. Lending counts once, here only.
	if !nw.TotalAssets.Equal(dec("1400")) {
		t.Errorf("expected assets 1400, got %s", nw.TotalAssets)
	}
	// Liabilities: 250 debt + 400 borrowed + 98.70 loan remaining.
	if !nw.TotalLiabilities.Equal(dec("748.70")) {
		t.Errorf("expected liabilities 748.70, got %s", nw.TotalLiabilities)
	}
	if !nw.NetAssets.Equal(dec("651.30")) {
		t.Errorf("expected net 651.30, got %s", nw.NetAssets)
	}
}

func TestComputeNetWorthSkipsHiddenAndExcluded(t *testing.T) {
	accounts := []*domain.Account{
		{Kind: domain.KindBasic, Balance: dec("500"), IncludedInNetWorth: true},
		{Kind: domain.KindBasic, Balance: dec("999"), IncludedInNetWorth: true, Hidden: true},
		{Kind: domain.KindBasic, Balance: dec("777"), IncludedInNetWorth: false},
	}

	nw := domain.ComputeNetWorth(accounts)
	if !nw.TotalAssets.Equal(dec("500")) {
		t.Errorf("expected assets 500, got %s", nw.TotalAssets)
	}
}

func TestComputeNetWorthExcludesEndedLoans(t *testing.T) {
	accounts := []*domain.Account{
		{Kind: domain.KindLoan, IncludedInNetWorth: true,
			LoanTerms: &domain.LoanTerms{RemainingAmount: dec("0"), Ended: true}},
		{Kind: domain.KindLoan, IncludedInNetWorth: true,
			LoanTerms: &domain.LoanTerms{RemainingAmount: dec("50")}},
	}

	nw := domain.ComputeNetWorth(accounts)
	if !nw.TotalLiabilities.Equal(dec("50")) {
		t.Errorf("expected liabilities 50, got %s", nw.TotalLiabilities)
	}
}

func TestComputeNetWorthLoanCreationFixture(t *testing.T) {
	// A 100 loan at 1%/36 with one period repaid, principal received
	// into a basic account holding 1000.
	accounts := []*domain.Account{
		{Kind: domain.KindBasic, Balance: dec("1100"), IncludedInNetWorth: true},
		{Kind: domain.KindLoan, IncludedInNetWorth: true,
			LoanTerms: &domain.LoanTerms{RemainingAmount: dec("98.70")}},
	}

	nw := domain.ComputeNetWorth(accounts)
	if !nw.TotalAssets.Equal(dec("1100")) {
		t.Errorf("expected assets 1100, got %s", nw.TotalAssets)
	}
	if !nw.TotalLiabilities.Equal(dec("98.70")) {
		t.Errorf("expected liabilities 98.70, got %s", nw.TotalLiabilities)
	}
	if !nw.NetAssets.Equal(dec("1001.30")) {
		t.Errorf("expected net 1001.30, got %s", nw.NetAssets)
	}
}
