package domain

import "github.com/shopspring/decimal"

// ============================================================
// Loan amortization
// ============================================================

// RepaymentType selects the amortization strategy.
type RepaymentType string

const (
	// RepayEqualInstallment keeps the total payment constant across
	// periods (standard annuity).
	RepayEqualInstallment RepaymentType = "EQUAL_INTEREST"
	// RepayEqualPrincipal keeps the principal share constant; the
	// interest share shrinks as the outstanding principal does.
	RepayEqualPrincipal RepaymentType = "EQUAL_PRINCIPAL"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// LoanTerms is the variant payload for loan accounts. RemainingAmount
// is derived from the schedule and changes only through Advance.
type LoanTerms struct {
	LoanAmount         decimal.Decimal `json:"loan_amount"`
	AnnualRate         decimal.Decimal `json:"annual_rate"` // percent, e.g. 1 means 1%
	TotalPeriods       int             `json:"total_periods"`
	RepaidPeriods      int             `json:"repaid_periods"`
	RepaymentType      RepaymentType   `json:"repayment_type"`
	ReceivingAccountID string          `json:"receiving_account_id,omitempty"`
	RepaymentDay       int             `json:"repayment_day,omitempty"`
	RemainingAmount    decimal.Decimal `json:"remaining_amount"`
	Ended              bool            `json:"ended"`
}

// monthlyRate converts the annual percentage rate to a monthly factor.
func (t *LoanTerms) monthlyRate() decimal.Decimal {
	return t.AnnualRate.Div(hundred).Div(twelve)
}

// PeriodPayment returns the payment due for the given 1-based period,
// rounded half-up to 2 decimal places.
func (t *LoanTerms) PeriodPayment(period int) decimal.Decimal {
	if period < 1 || period > t.TotalPeriods {
		return decimal.Zero
	}
	r := t.monthlyRate()
	n := int64(t.TotalPeriods)
	if t.TotalPeriods == 0 {
		return decimal.Zero
	}
	if r.IsZero() {
		return RoundMoney(t.LoanAmount.Div(decimal.NewFromInt(n)))
	}
	switch t.RepaymentType {
	case RepayEqualPrincipal:
		principalShare := t.LoanAmount.Div(decimal.NewFromInt(n))
		outstanding := t.LoanAmount.Sub(principalShare.Mul(decimal.NewFromInt(int64(period - 1))))
		return RoundMoney(principalShare.Add(outstanding.Mul(r)))
	default:
		// Annuity: P * r * (1+r)^n / ((1+r)^n - 1)
		growth := decimal.NewFromInt(1).Add(r).Pow(decimal.NewFromInt(n))
		installment := t.LoanAmount.Mul(r).Mul(growth).Div(growth.Sub(decimal.NewFromInt(1)))
		return RoundMoney(installment)
	}
}

// Remaining computes the outstanding amount as the sum of all future
// period payments. Each period is rounded before summation.
func (t *LoanTerms) Remaining() decimal.Decimal {
	if t.RepaidPeriods >= t.TotalPeriods {
		return decimal.Zero
	}
	switch t.RepaymentType {
	case RepayEqualPrincipal:
		sum := decimal.Zero
		for k := t.RepaidPeriods + 1; k <= t.TotalPeriods; k++ {
			sum = sum.Add(t.PeriodPayment(k))
		}
		return sum
	default:
		periodsLeft := decimal.NewFromInt(int64(t.TotalPeriods - t.RepaidPeriods))
		return t.PeriodPayment(t.RepaidPeriods + 1).Mul(periodsLeft)
	}
}

// PeriodsCovered maps an explicit repayment amount to the number of
// whole periods it covers, at least 1 and never past the end.
func (t *LoanTerms) PeriodsCovered(amount decimal.Decimal) int {
	left := t.TotalPeriods - t.RepaidPeriods
	if left <= 0 {
		return 0
	}
	covered := 0
	paid := decimal.Zero
	for k := t.RepaidPeriods + 1; k <= t.TotalPeriods; k++ {
		paid = paid.Add(t.PeriodPayment(k))
		if paid.GreaterThan(amount) {
			break
		}
		covered++
	}
	if covered < 1 {
		covered = 1
	}
	if covered > left {
		covered = left
	}
	return covered
}

// Advance marks the given number of periods repaid, refreshes
// RemainingAmount and flips Ended once the schedule completes.
func (t *LoanTerms) Advance(periods int) {
	if periods < 1 {
		return
	}
	t.RepaidPeriods += periods
	if t.RepaidPeriods >= t.TotalPeriods {
		t.RepaidPeriods = t.TotalPeriods
		t.Ended = true
	}
	t.RemainingAmount = t.Remaining()
}
