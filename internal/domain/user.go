package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// User aggregate
// ============================================================

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User owns ledgers, accounts and budgets. The net-worth fields are
// memoized snapshots refreshed by an explicit recompute; they are
// never incrementally patched and never trusted as source of truth.
type User struct {
	ID               string          `json:"id"`
	Username         string          `json:"username"`
	PasswordHash     string          `json:"-"`
	Role             Role            `json:"role"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	NetAssets        decimal.Decimal `json:"net_assets"`
	CreatedAt        time.Time       `json:"created_at"`
}

// NetWorth is the derived aggregate over a user's live account set.
type NetWorth struct {
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	NetAssets        decimal.Decimal `json:"net_assets"`
}

// ComputeNetWorth derives the user-level figures from the current
// account set. Rules:
//
//   - assets: balances of basic, credit and lending accounts that are
//     not hidden and are included in net worth. A lending balance is
//     money owed to the user and counts once, here only.
//   - liabilities: credit CurrentDebt, borrowing balances and the
//     RemainingAmount of loans that have not ended, over the same
//     eligibility rule.
//   - net = assets - liabilities. Lending is never added a second
//     time.
func ComputeNetWorth(accounts []*Account) NetWorth {
	assets := decimal.Zero
	liabilities := decimal.Zero

	for _, a := range accounts {
		if !a.CountsTowardNetWorth() {
			continue
		}
		switch a.Kind {
		case KindBasic, KindLending:
			assets = assets.Add(a.Balance)
		case KindCredit:
			assets = assets.Add(a.Balance)
			if a.CreditTerms != nil {
				liabilities = liabilities.Add(a.CreditTerms.CurrentDebt)
			}
		case KindBorrowing:
			liabilities = liabilities.Add(a.Balance)
		case KindLoan:
			if a.LoanTerms != nil && !a.LoanTerms.Ended {
				liabilities = liabilities.Add(a.LoanTerms.RemainingAmount)
			}
		}
	}

	return NetWorth{
		TotalAssets:      assets,
		TotalLiabilities: liabilities,
		NetAssets:        assets.Sub(liabilities),
	}
}
