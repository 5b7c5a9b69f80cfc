package finance

import (
	"strings"

	"github.com/shopspring/decimal"

	"microlend/internal/domain"
)

// FinancialSnapshot is the derived financial state of the lending book.
// It is never stored; it is recomputed from loans, manual accounting entries
// and the configured initial capital.
type FinancialSnapshot struct {
	InitialCapital         decimal.Decimal `json:"initial_capital"`
	WorkingCapital         decimal.Decimal `json:"working_capital"`
	TotalNetProfit         decimal.Decimal `json:"total_net_profit"`
	RealizedInterestProfit decimal.Decimal `json:"realized_interest_profit"`
	ActivePrincipal        decimal.Decimal `json:"active_principal"`
	TotalIncome            decimal.Decimal `json:"total_income"`
	TotalExpense           decimal.Decimal `json:"total_expense"`
	TotalInjections        decimal.Decimal `json:"total_injections"`
	TotalWithdrawals       decimal.Decimal `json:"total_withdrawals"`
}

// BuildSnapshot derives the snapshot in a single pass over its inputs.
//
// Interest profit realizes only at full payoff: a paid loan contributes
// totalRepayment - amount, while overdue and pending loans contribute
// nothing regardless of payments made so far. Paid indefinite loans carry
// no total repayment and therefore also contribute nothing.
//
// Entry types are matched by exact equality on the enum, never by substring.
func BuildSnapshot(loans []domain.Loan, entries []domain.AccountingEntry, initialCapital decimal.Decimal) *FinancialSnapshot {
	s := &FinancialSnapshot{
		InitialCapital:         initialCapital,
		WorkingCapital:         decimal.Zero,
		TotalNetProfit:         decimal.Zero,
		RealizedInterestProfit: decimal.Zero,
		ActivePrincipal:        decimal.Zero,
		TotalIncome:            decimal.Zero,
		TotalExpense:           decimal.Zero,
		TotalInjections:        decimal.Zero,
		TotalWithdrawals:       decimal.Zero,
	}

	for i := range loans {
		loan := &loans[i]
		if loan.Status == domain.LoanStatusPaid {
			if loan.TotalRepayment != nil {
				s.RealizedInterestProfit = s.RealizedInterestProfit.Add(loan.TotalRepayment.Sub(loan.Amount))
			}
			continue
		}
		s.ActivePrincipal = s.ActivePrincipal.Add(loan.Amount)
	}

	for i := range entries {
		entry := &entries[i]
		switch entry.Type {
		case domain.EntryTypeIncome:
			s.TotalIncome = s.TotalIncome.Add(entry.Amount)
		case domain.EntryTypeExpense:
			s.TotalExpense = s.TotalExpense.Add(entry.Amount)
		case domain.EntryTypeCapitalInjection:
			s.TotalInjections = s.TotalInjections.Add(entry.Amount)
		case domain.EntryTypeCapitalWithdrawal:
			s.TotalWithdrawals = s.TotalWithdrawals.Add(entry.Amount)
		}
	}

	s.TotalNetProfit = s.RealizedInterestProfit.Add(s.TotalIncome).Sub(s.TotalExpense)
	s.WorkingCapital = s.InitialCapital.
		Add(s.TotalInjections).
		Sub(s.TotalWithdrawals).
		Add(s.TotalNetProfit)

	return s
}

// ParseInitialCapital reads the initial_capital meta value. A missing or
// unparsable value defaults to zero rather than failing the snapshot.
func ParseInitialCapital(raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return value
}
