package finance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "microlend/pkg/errors"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestCalculateLoanParametersAmortizing(t *testing.T) {
	// 1000 at 96% APR (8% monthly) over 12 months.
	params, err := CalculateLoanParameters(d("1000"), 12, d("96"))
	require.NoError(t, err)

	assert.True(t, d("8").Equal(params.MonthlyRatePercentage))
	assert.False(t, params.Indefinite)

	payment, _ := params.MonthlyPayment.Float64()
	assert.InDelta(t, 132.6950, payment, 0.001)

	require.NotNil(t, params.TotalRepayment)
	total, _ := params.TotalRepayment.Float64()
	assert.InDelta(t, 1592.3403, total, 0.01)
}

func TestCalculateLoanParametersIndefinite(t *testing.T) {
	// Term 0 is interest-only: payment is pure interest, no total exists.
	params, err := CalculateLoanParameters(d("1000"), 0, d("96"))
	require.NoError(t, err)

	assert.True(t, params.Indefinite)
	assert.True(t, d("80").Equal(params.MonthlyPayment), "got %s", params.MonthlyPayment)
	assert.Nil(t, params.TotalRepayment)
}

func TestCalculateLoanParametersZeroRate(t *testing.T) {
	params, err := CalculateLoanParameters(d("1000"), 10, decimal.Zero)
	require.NoError(t, err)

	assert.True(t, d("100").Equal(params.MonthlyPayment))
	require.NotNil(t, params.TotalRepayment)
	assert.True(t, d("1000").Equal(*params.TotalRepayment), "zero rate must repay exactly the principal")
	assert.True(t, params.MonthlyRatePercentage.IsZero())
}

func TestCalculateLoanParametersInvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		principal decimal.Decimal
		term      int
		rate      decimal.Decimal
	}{
		{"zero principal", decimal.Zero, 12, d("96")},
		{"negative principal", d("-500"), 12, d("96")},
		{"negative rate", d("1000"), 12, d("-1")},
		{"negative term", d("1000"), -3, d("96")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := CalculateLoanParameters(tt.principal, tt.term, tt.rate)
			assert.Nil(t, params)
			assert.ErrorIs(t, err, pkgerrors.ErrInvalidLoanInput)
		})
	}
}

func TestTotalRepaymentNeverBelowPrincipal(t *testing.T) {
	principals := []string{"100", "1000", "25000", "999.99"}
	rates := []string{"0", "12", "48", "96", "200"}
	terms := []int{1, 6, 12, 36, 60}

	for _, p := range principals {
		for _, r := range rates {
			for _, term := range terms {
				params, err := CalculateLoanParameters(d(p), term, d(r))
				require.NoError(t, err)
				require.NotNil(t, params.TotalRepayment)
				assert.True(t, params.TotalRepayment.GreaterThanOrEqual(d(p)),
					"principal=%s rate=%s term=%d: total %s below principal", p, r, term, params.TotalRepayment)
			}
		}
	}
}

func TestSolveTermUnaffordable(t *testing.T) {
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	// 80 exactly covers the interest on 1000 at 8%/month: the balance never
	// shrinks, so no finite term exists.
	sol, err := SolveTermForDesiredPayment(d("1000"), d("8"), d("80"), start)
	require.NoError(t, err)
	assert.True(t, sol.Unaffordable)
	assert.Zero(t, sol.CalculatedTerm)
	assert.Empty(t, sol.Schedule)

	sol, err = SolveTermForDesiredPayment(d("1000"), d("8"), d("50"), start)
	require.NoError(t, err)
	assert.True(t, sol.Unaffordable)

	// Just above the interest-only threshold a (long) finite term exists.
	sol, err = SolveTermForDesiredPayment(d("1000"), d("8"), d("80.01"), start)
	require.NoError(t, err)
	assert.False(t, sol.Unaffordable)
	assert.Greater(t, sol.CalculatedTerm, 0)
}

func TestSolveTermZeroRate(t *testing.T) {
	start := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

	sol, err := SolveTermForDesiredPayment(d("1000"), decimal.Zero, d("100"), start)
	require.NoError(t, err)

	assert.False(t, sol.Unaffordable)
	assert.Equal(t, 10, sol.CalculatedTerm)
	assert.True(t, d("100").Equal(sol.MonthlyPayment))
	assert.True(t, d("1000").Equal(sol.TotalPayment))
	assert.True(t, sol.TotalInterest.IsZero())

	require.Len(t, sol.Schedule, 10)
	last := sol.Schedule[len(sol.Schedule)-1]
	assert.True(t, last.Balance.IsZero(), "final balance %s", last.Balance)
}

func TestSolveTermRederivesExactPayment(t *testing.T) {
	start := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	sol, err := SolveTermForDesiredPayment(d("1000"), d("8"), d("200"), start)
	require.NoError(t, err)
	require.False(t, sol.Unaffordable)

	assert.Equal(t, 7, sol.CalculatedTerm)
	// The re-derived payment for the whole-month term never exceeds the
	// target budget.
	assert.True(t, sol.MonthlyPayment.LessThanOrEqual(d("200")),
		"re-derived payment %s exceeds target", sol.MonthlyPayment)

	require.Len(t, sol.Schedule, 7)
	last := sol.Schedule[len(sol.Schedule)-1]
	assertBalanceZero(t, last.Balance)
}

// The core round-trip invariant: amortizing the re-derived payment over the
// calculated term drives the balance to exactly zero.
func TestScheduleRoundTrip(t *testing.T) {
	start := time.Date(2026, time.May, 10, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		principal string
		ratePct   string
		target    string
	}{
		{"1000", "8", "132.70"},
		{"1000", "8", "90"},
		{"5000", "2", "450"},
		{"750.25", "1.5", "66"},
		{"25000", "0.75", "2100"},
	}

	for _, tc := range cases {
		sol, err := SolveTermForDesiredPayment(d(tc.principal), d(tc.ratePct), d(tc.target), start)
		require.NoError(t, err)
		require.False(t, sol.Unaffordable, "principal=%s rate=%s target=%s", tc.principal, tc.ratePct, tc.target)

		require.Len(t, sol.Schedule, sol.CalculatedTerm)
		last := sol.Schedule[len(sol.Schedule)-1]
		assertBalanceZero(t, last.Balance)

		// Balances decrease monotonically and never go negative.
		prev := d(tc.principal)
		for _, row := range sol.Schedule {
			assert.True(t, row.Balance.LessThan(prev), "period %d balance did not shrink", row.Period)
			assert.False(t, row.Balance.IsNegative())
			prev = row.Balance
		}
	}
}

func TestSolveTermMonotonicInTarget(t *testing.T) {
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	targets := []string{"85", "100", "120", "150", "200", "400", "900"}

	prevTerm := int(^uint(0) >> 1)
	for _, target := range targets {
		sol, err := SolveTermForDesiredPayment(d("1000"), d("8"), d(target), start)
		require.NoError(t, err)
		require.False(t, sol.Unaffordable)
		assert.LessOrEqual(t, sol.CalculatedTerm, prevTerm,
			"raising the budget to %s increased the term", target)
		prevTerm = sol.CalculatedTerm
	}
}

func TestSolveTermInvalidInput(t *testing.T) {
	start := time.Now()

	_, err := SolveTermForDesiredPayment(decimal.Zero, d("8"), d("100"), start)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidLoanInput)

	_, err = SolveTermForDesiredPayment(d("1000"), d("8"), decimal.Zero, start)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidLoanInput)

	_, err = SolveTermForDesiredPayment(d("1000"), d("-2"), d("100"), start)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidLoanInput)
}

func TestScheduleDueDatesClampMonthEnds(t *testing.T) {
	// Starting Jan 31, the first due date clamps to the end of February and
	// stays on the 28th thereafter; no month is skipped or duplicated.
	start := time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
	rows := BuildSchedule(d("300"), decimal.Zero, d("100"), 3, start)

	require.Len(t, rows, 3)
	assert.Equal(t, time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC), rows[0].DueDate)
	assert.Equal(t, time.Date(2026, time.March, 28, 0, 0, 0, 0, time.UTC), rows[1].DueDate)
	assert.Equal(t, time.Date(2026, time.April, 28, 0, 0, 0, 0, time.UTC), rows[2].DueDate)
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name   string
		start  time.Time
		months int
		want   time.Time
	}{
		{
			"plain mid-month",
			time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), 1,
			time.Date(2026, time.April, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			"jan 31 clamps to feb 28",
			time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC), 1,
			time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			"leap year keeps feb 29",
			time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC), 1,
			time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			"mar 31 clamps to apr 30",
			time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC), 1,
			time.Date(2026, time.April, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			"year rollover",
			time.Date(2026, time.December, 15, 0, 0, 0, 0, time.UTC), 1,
			time.Date(2027, time.January, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			"several months at once",
			time.Date(2026, time.October, 31, 0, 0, 0, 0, time.UTC), 4,
			time.Date(2027, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddMonths(tt.start, tt.months))
		})
	}
}

func assertBalanceZero(t *testing.T, balance decimal.Decimal) {
	t.Helper()
	assert.False(t, balance.IsNegative(), "balance went negative: %s", balance)
	assert.True(t, balance.LessThan(d("0.000001")), "final balance %s not driven to zero", balance)
}
