package lending

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microlend/internal/domain"
	"microlend/internal/realtime"
	"microlend/pkg/currency"
)

func seededDashboard(t *testing.T) (*Dashboard, *realtime.Store) {
	t.Helper()

	store := realtime.NewStore()
	total := d("1592.34")
	now := time.Now().UTC()

	store.Seed(
		[]domain.Client{
			{ID: uuid.New(), Name: "Ana", CreatedAt: now},
			{ID: uuid.New(), Name: "Luis", CreatedAt: now},
		},
		[]domain.Loan{
			{ID: uuid.New(), Amount: d("1000"), Status: domain.LoanStatusPaid, TotalRepayment: &total, StartDate: now},
			{ID: uuid.New(), Amount: d("500"), Status: domain.LoanStatusPending, StartDate: now, MonthlyPayment: d("40")},
			{ID: uuid.New(), Amount: d("800"), Status: domain.LoanStatusOverdue, StartDate: now.AddDate(0, -4, 0), MonthlyPayment: d("106.17")},
		},
		[]domain.LoanRequest{
			{ID: uuid.New(), Status: domain.RequestStatusPending, RequestDate: now},
			{ID: uuid.New(), Status: domain.RequestStatusUnderReview, RequestDate: now},
		},
		[]domain.AccountingEntry{
			{ID: uuid.New(), Type: domain.EntryTypeCapitalInjection, Amount: d("5000"), EntryDate: now},
			{ID: uuid.New(), Type: domain.EntryTypeExpense, Amount: d("200"), EntryDate: now},
		},
		[]domain.AppMeta{
			{Key: domain.MetaKeyInitialCapital, Value: "10000"},
		},
	)

	return NewDashboard(store, currency.New("en", "USD")), store
}

func TestDashboardOverview(t *testing.T) {
	dash, _ := seededDashboard(t)

	view := dash.Overview()

	assert.Equal(t, 2, view.TotalClients)
	assert.Equal(t, 2, view.ActiveLoans)
	assert.Equal(t, 1, view.OverdueLoans)
	assert.Equal(t, 1, view.PaidLoans)
	assert.Equal(t, 1, view.PendingRequests)
	assert.Equal(t, 1, view.UnderReview)

	// working capital = 10000 + 5000 injection - 200 expense + 592.34 profit
	assert.True(t, d("15392.34").Equal(view.Snapshot.WorkingCapital),
		"got %s", view.Snapshot.WorkingCapital)
	assert.True(t, d("1300").Equal(view.Snapshot.ActivePrincipal))
	assert.True(t, d("146.17").Equal(view.MonthlyCollection),
		"got %s", view.MonthlyCollection)
	assert.Equal(t, "USD 15,392.34", view.Display["working_capital"])
}

func TestDashboardTracksFeedEvents(t *testing.T) {
	dash, store := seededDashboard(t)

	before := dash.Overview()
	require.Equal(t, 1, before.PaidLoans)

	// Settling the overdue loan through the feed updates the next read.
	loans := store.Loans()
	var overdue domain.Loan
	for _, l := range loans {
		if l.Status == domain.LoanStatusOverdue {
			overdue = l
		}
	}
	total := d("900")
	overdue.Status = domain.LoanStatusPaid
	overdue.TotalRepayment = &total
	store.Apply(realtime.LoanUpdated(&overdue))

	after := dash.Overview()
	assert.Equal(t, 2, after.PaidLoans)
	assert.Equal(t, 0, after.OverdueLoans)
	assert.True(t, after.Snapshot.WorkingCapital.GreaterThan(before.Snapshot.WorkingCapital))
}

func TestDashboardAgenda(t *testing.T) {
	dash, _ := seededDashboard(t)

	now := time.Now().UTC()
	agenda := dash.Agenda(now)

	// Two open loans, the overdue one first.
	require.Len(t, agenda, 2)
	assert.True(t, agenda[0].Overdue)
	assert.False(t, agenda[1].Overdue)
	assert.True(t, agenda[0].DueDate.Before(agenda[1].DueDate))
}
