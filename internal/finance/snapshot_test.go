package finance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"microlend/internal/domain"
)

func loan(status domain.LoanStatus, amount string, total *decimal.Decimal) domain.Loan {
	return domain.Loan{
		Amount:         d(amount),
		Status:         status,
		TotalRepayment: total,
	}
}

func entry(kind domain.EntryType, amount string) domain.AccountingEntry {
	return domain.AccountingEntry{Type: kind, Amount: d(amount)}
}

func ptr(v decimal.Decimal) *decimal.Decimal { return &v }

func TestBuildSnapshotEmpty(t *testing.T) {
	s := BuildSnapshot(nil, nil, decimal.Zero)

	assert.True(t, s.WorkingCapital.IsZero())
	assert.True(t, s.TotalNetProfit.IsZero())
	assert.True(t, s.ActivePrincipal.IsZero())
}

func TestBuildSnapshotRealizedProfitOnlyFromPaidLoans(t *testing.T) {
	loans := []domain.Loan{
		loan(domain.LoanStatusPaid, "1000", ptr(d("1592.34"))),
		loan(domain.LoanStatusPaid, "500", ptr(d("540"))),
		// Pending and overdue loans have not realized anything yet.
		loan(domain.LoanStatusPending, "2000", ptr(d("3184.68"))),
		loan(domain.LoanStatusOverdue, "800", ptr(d("960"))),
		// A paid indefinite loan has no total to realize against.
		loan(domain.LoanStatusPaid, "300", nil),
	}

	s := BuildSnapshot(loans, nil, decimal.Zero)

	assert.True(t, d("632.34").Equal(s.RealizedInterestProfit), "got %s", s.RealizedInterestProfit)
	assert.True(t, d("2800").Equal(s.ActivePrincipal), "got %s", s.ActivePrincipal)
}

func TestBuildSnapshotEntrySums(t *testing.T) {
	entries := []domain.AccountingEntry{
		entry(domain.EntryTypeIncome, "250"),
		entry(domain.EntryTypeIncome, "50"),
		entry(domain.EntryTypeExpense, "120"),
		entry(domain.EntryTypeCapitalInjection, "5000"),
		entry(domain.EntryTypeCapitalWithdrawal, "1000"),
	}

	s := BuildSnapshot(nil, entries, d("10000"))

	assert.True(t, d("300").Equal(s.TotalIncome))
	assert.True(t, d("120").Equal(s.TotalExpense))
	assert.True(t, d("5000").Equal(s.TotalInjections))
	assert.True(t, d("1000").Equal(s.TotalWithdrawals))
	assert.True(t, d("180").Equal(s.TotalNetProfit))
	// 10000 + 5000 - 1000 + 180
	assert.True(t, d("14180").Equal(s.WorkingCapital), "got %s", s.WorkingCapital)
}

func TestBuildSnapshotIgnoresUnknownEntryTypes(t *testing.T) {
	// Only exact type matches count; a stray value must not bleed into any
	// bucket.
	entries := []domain.AccountingEntry{
		entry(domain.EntryType("income_adjustment"), "999"),
		entry(domain.EntryTypeIncome, "10"),
	}

	s := BuildSnapshot(nil, entries, decimal.Zero)

	assert.True(t, d("10").Equal(s.TotalIncome), "got %s", s.TotalIncome)
	assert.True(t, s.TotalExpense.IsZero())
	assert.True(t, s.TotalInjections.IsZero())
	assert.True(t, s.TotalWithdrawals.IsZero())
}

func TestBuildSnapshotWithoutEntriesWorkingCapitalEqualsProfit(t *testing.T) {
	loans := []domain.Loan{
		loan(domain.LoanStatusPaid, "1000", ptr(d("1592.34"))),
	}

	s := BuildSnapshot(loans, nil, decimal.Zero)

	assert.True(t, s.WorkingCapital.Equal(s.RealizedInterestProfit))
	assert.True(t, s.TotalNetProfit.Equal(s.RealizedInterestProfit))
}

func TestBuildSnapshotInjectionRaisesWorkingCapital(t *testing.T) {
	loans := []domain.Loan{
		loan(domain.LoanStatusPaid, "1000", ptr(d("1100"))),
		loan(domain.LoanStatusPending, "400", ptr(d("480"))),
	}
	entries := []domain.AccountingEntry{
		entry(domain.EntryTypeExpense, "30"),
	}

	base := BuildSnapshot(loans, entries, d("2000"))
	withInjection := BuildSnapshot(loans, append(entries, entry(domain.EntryTypeCapitalInjection, "750")), d("2000"))

	diff := withInjection.WorkingCapital.Sub(base.WorkingCapital)
	assert.True(t, d("750").Equal(diff), "injection moved working capital by %s", diff)
}

func TestParseInitialCapital(t *testing.T) {
	assert.True(t, d("1500.50").Equal(ParseInitialCapital("1500.50")))
	assert.True(t, ParseInitialCapital("").IsZero())
	assert.True(t, ParseInitialCapital("not-a-number").IsZero())
}
