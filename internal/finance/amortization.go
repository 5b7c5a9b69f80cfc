// Package finance implements the loan amortization math and the financial
// snapshot derived from the lending book. Everything here is pure: no I/O,
// no clocks, identical inputs produce identical outputs.
package finance

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "microlend/pkg/errors"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// LoanParameters is the result of pricing a loan from principal, term and APR.
// For indefinite loans (term 0) TotalRepayment is nil: the loan is open-ended
// and a total would be a fabrication.
type LoanParameters struct {
	MonthlyPayment        decimal.Decimal  `json:"monthly_payment"`
	TotalRepayment        *decimal.Decimal `json:"total_repayment,omitempty"`
	MonthlyRatePercentage decimal.Decimal  `json:"monthly_rate_percentage"`
	Indefinite            bool             `json:"indefinite"`
}

// CalculateLoanParameters prices a loan.
//
// termMonths == 0 marks an indefinite interest-only loan: the payment is
// principal * monthlyRate and no total repayment exists. A zero rate with a
// fixed term is a straight split of principal over the term. Otherwise the
// standard amortizing-loan formula applies.
//
// principal <= 0, a negative rate, or a negative term return ErrInvalidLoanInput;
// the engine never silently produces zeros, NaN, or infinities.
func CalculateLoanParameters(principal decimal.Decimal, termMonths int, annualRatePercent decimal.Decimal) (*LoanParameters, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: principal must be positive, got %s", pkgerrors.ErrInvalidLoanInput, principal)
	}
	if annualRatePercent.IsNegative() {
		return nil, fmt.Errorf("%w: annual rate must not be negative, got %s", pkgerrors.ErrInvalidLoanInput, annualRatePercent)
	}
	if termMonths < 0 {
		return nil, fmt.Errorf("%w: term must not be negative, got %d", pkgerrors.ErrInvalidLoanInput, termMonths)
	}

	monthlyRate := annualRatePercent.Div(hundred).Div(twelve)

	if termMonths == 0 {
		return &LoanParameters{
			MonthlyPayment:        principal.Mul(monthlyRate),
			MonthlyRatePercentage: monthlyRate.Mul(hundred),
			Indefinite:            true,
		}, nil
	}

	term := decimal.NewFromInt(int64(termMonths))

	if monthlyRate.IsZero() {
		payment := principal.Div(term)
		total := principal
		return &LoanParameters{
			MonthlyPayment:        payment,
			TotalRepayment:        &total,
			MonthlyRatePercentage: decimal.Zero,
		}, nil
	}

	payment := annuityPayment(principal, monthlyRate, termMonths)
	total := payment.Mul(term)
	return &LoanParameters{
		MonthlyPayment:        payment,
		TotalRepayment:        &total,
		MonthlyRatePercentage: monthlyRate.Mul(hundred),
	}, nil
}

// annuityPayment computes P * r * (1+r)^n / ((1+r)^n - 1), the algebraic
// equivalent of P * r / (1 - (1+r)^-n) that avoids a reciprocal.
// Callers guarantee r > 0 and n > 0.
func annuityPayment(principal, monthlyRate decimal.Decimal, termMonths int) decimal.Decimal {
	pow := one.Add(monthlyRate).Pow(decimal.NewFromInt(int64(termMonths)))
	return principal.Mul(monthlyRate).Mul(pow).Div(pow.Sub(one))
}

// TermSolution answers "how long to pay off at this monthly budget".
// Unaffordable is a first-class outcome, not an error: when the target
// payment does not even cover the interest accruing each month, no finite
// term exists and callers render a "no solution" state.
type TermSolution struct {
	Unaffordable   bool            `json:"unaffordable"`
	CalculatedTerm int             `json:"calculated_term,omitempty"`
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	TotalPayment   decimal.Decimal `json:"total_payment"`
	TotalInterest  decimal.Decimal `json:"total_interest"`
	Schedule       []ScheduleRow   `json:"schedule,omitempty"`
}

// SolveTermForDesiredPayment finds the smallest whole number of months that
// pays off principal at the given monthly rate without exceeding the target
// payment per month, then re-derives the exact payment for that integer term.
// Reusing the raw target for the schedule would leave residual balance at the
// final period; the re-derived payment drives the balance to exactly zero.
func SolveTermForDesiredPayment(principal, monthlyRatePercent, targetPayment decimal.Decimal, startDate time.Time) (*TermSolution, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: principal must be positive, got %s", pkgerrors.ErrInvalidLoanInput, principal)
	}
	if targetPayment.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: target payment must be positive, got %s", pkgerrors.ErrInvalidLoanInput, targetPayment)
	}
	if monthlyRatePercent.IsNegative() {
		return nil, fmt.Errorf("%w: monthly rate must not be negative, got %s", pkgerrors.ErrInvalidLoanInput, monthlyRatePercent)
	}

	rate := monthlyRatePercent.Div(hundred)

	if rate.IsZero() {
		months := int(principal.Div(targetPayment).Ceil().IntPart())
		payment := principal.Div(decimal.NewFromInt(int64(months)))
		return buildSolution(principal, rate, payment, months, startDate), nil
	}

	// Payment must exceed the interest accruing on the full principal or the
	// balance never shrinks.
	if targetPayment.LessThanOrEqual(principal.Mul(rate)) {
		return &TermSolution{Unaffordable: true}, nil
	}

	// n = -ln(1 - P*r/A) / ln(1+r), then round up to whole months. The
	// argument to the first log is in (0, 1) because A > P*r.
	p, _ := principal.Float64()
	r, _ := rate.Float64()
	a, _ := targetPayment.Float64()
	n := -math.Log(1-p*r/a) / math.Log(1+r)
	months := int(math.Ceil(n - 1e-9))
	if months < 1 {
		months = 1
	}

	payment := annuityPayment(principal, rate, months)
	return buildSolution(principal, rate, payment, months, startDate), nil
}

func buildSolution(principal, rate, payment decimal.Decimal, months int, startDate time.Time) *TermSolution {
	total := payment.Mul(decimal.NewFromInt(int64(months)))
	return &TermSolution{
		CalculatedTerm: months,
		MonthlyPayment: payment,
		TotalPayment:   total,
		TotalInterest:  total.Sub(principal),
		Schedule:       BuildSchedule(principal, rate.Mul(hundred), payment, months, startDate),
	}
}

// ScheduleRow is one period of an amortization schedule.
type ScheduleRow struct {
	Period    int             `json:"period"`
	DueDate   time.Time       `json:"due_date"`
	Payment   decimal.Decimal `json:"payment"`
	Interest  decimal.Decimal `json:"interest"`
	Principal decimal.Decimal `json:"principal"`
	Balance   decimal.Decimal `json:"balance"`
}

// BuildSchedule amortizes principal over the given number of months. Each
// period accrues interest on the running balance, the rest of the payment
// retires principal, and the balance is clamped at zero so floating drift
// can never leave a negative final balance. Due dates advance one calendar
// month at a time with day-of-month clamping.
func BuildSchedule(principal, monthlyRatePercent, payment decimal.Decimal, months int, startDate time.Time) []ScheduleRow {
	rate := monthlyRatePercent.Div(hundred)
	balance := principal
	due := startDate

	rows := make([]ScheduleRow, 0, months)
	for i := 1; i <= months; i++ {
		interest := balance.Mul(rate)
		principalPart := payment.Sub(interest)
		balance = balance.Sub(principalPart)
		if balance.IsNegative() {
			balance = decimal.Zero
		}
		due = AddMonths(due, 1)
		rows = append(rows, ScheduleRow{
			Period:    i,
			DueDate:   due,
			Payment:   payment,
			Interest:  interest,
			Principal: principalPart,
			Balance:   balance,
		})
	}
	return rows
}

// AddMonths advances t by the given number of calendar months, clamping the
// day to the last valid day of the target month: Jan 31 plus one month is
// Feb 28 (or 29), never Mar 2/3.
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}
