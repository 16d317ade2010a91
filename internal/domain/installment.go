package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Installment plans
// ============================================================

// FeeStrategy selects how the plan fee is spread over the schedule.
type FeeStrategy string

const (
	// FeeEvenlySplit spreads the total fee evenly across all periods.
	FeeEvenlySplit FeeStrategy = "EVENLY_SPLIT"
)

// InstallmentPlan amortizes a lump purchase on a credit account over a
// fixed number of periods. PaidPeriods never exceeds TotalPeriods.
type InstallmentPlan struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	Description  string          `json:"description,omitempty"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	TotalPeriods int             `json:"total_periods"`
	PaidPeriods  int             `json:"paid_periods"`
	FeeRate      decimal.Decimal `json:"fee_rate"` // percent of TotalAmount
	Strategy     FeeStrategy     `json:"strategy"`
	CreatedAt    time.Time       `json:"created_at"`
}

// PeriodAmount returns one period's fee-adjusted share, rounded to 2
// decimal places.
func (p *InstallmentPlan) PeriodAmount() decimal.Decimal {
	if p.TotalPeriods == 0 {
		return decimal.Zero
	}
	fee := p.TotalAmount.Mul(p.FeeRate).Div(hundred)
	total := p.TotalAmount.Add(fee)
	return RoundMoney(total.Div(decimal.NewFromInt(int64(p.TotalPeriods))))
}

// RemainingPeriods returns how many periods are still unpaid.
func (p *InstallmentPlan) RemainingPeriods() int {
	left := p.TotalPeriods - p.PaidPeriods
	if left < 0 {
		return 0
	}
	return left
}

// Remaining returns the amount still to be paid.
func (p *InstallmentPlan) Remaining() decimal.Decimal {
	return p.PeriodAmount().Mul(decimal.NewFromInt(int64(p.RemainingPeriods())))
}

// PeriodsCovered maps an explicit repayment amount to whole periods,
// at least 1 and never past the end.
func (p *InstallmentPlan) PeriodsCovered(amount decimal.Decimal) int {
	left := p.RemainingPeriods()
	if left == 0 {
		return 0
	}
	per := p.PeriodAmount()
	covered := 1
	if per.IsPositive() {
		covered = int(amount.Div(per).IntPart())
	}
	if covered < 1 {
		covered = 1
	}
	if covered > left {
		covered = left
	}
	return covered
}

// Advance marks the given number of periods paid, clamped to the end.
func (p *InstallmentPlan) Advance(periods int) {
	if periods < 1 {
		return
	}
	p.PaidPeriods += periods
	if p.PaidPeriods > p.TotalPeriods {
		p.PaidPeriods = p.TotalPeriods
	}
}

// Finished reports whether the whole schedule has been paid.
func (p *InstallmentPlan) Finished() bool {
	return p.PaidPeriods >= p.TotalPeriods
}
