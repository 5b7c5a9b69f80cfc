package lending

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"microlend/internal/domain"
	"microlend/internal/finance"
	"microlend/internal/realtime"
	"microlend/pkg/currency"
)

// Dashboard derives the operational overview from the realtime store.
// Reads never hit the database; the store mirrors it through the feed.
type Dashboard struct {
	store     *realtime.Store
	formatter *currency.Formatter
}

func NewDashboard(store *realtime.Store, formatter *currency.Formatter) *Dashboard {
	return &Dashboard{store: store, formatter: formatter}
}

// DashboardView is what the overview screen renders. Monetary figures are
// included both raw and display-formatted.
type DashboardView struct {
	Snapshot finance.FinancialSnapshot `json:"snapshot"`
	Display  map[string]string         `json:"display"`

	ActiveLoans     int `json:"active_loans"`
	OverdueLoans    int `json:"overdue_loans"`
	PaidLoans       int `json:"paid_loans"`
	TotalClients    int `json:"total_clients"`
	PendingRequests int `json:"pending_requests"`
	UnderReview     int `json:"under_review"`

	// MonthlyCollection is the sum of monthly payments expected across
	// open loans: the projected intake for a month with full collection.
	MonthlyCollection decimal.Decimal `json:"monthly_collection"`
}

func (d *Dashboard) Overview() *DashboardView {
	loans := d.store.Loans()
	entries := d.store.Entries()

	rawCapital, _ := d.store.Meta(domain.MetaKeyInitialCapital)
	snapshot := finance.BuildSnapshot(loans, entries, finance.ParseInitialCapital(rawCapital))

	view := &DashboardView{
		Snapshot:     *snapshot,
		TotalClients: len(d.store.Clients()),
	}

	now := time.Now().UTC()
	for i := range loans {
		switch EffectiveStatus(&loans[i], now) {
		case domain.LoanStatusPaid:
			view.PaidLoans++
		case domain.LoanStatusOverdue:
			view.OverdueLoans++
			view.ActiveLoans++
		default:
			view.ActiveLoans++
		}
		if loans[i].Status != domain.LoanStatusPaid {
			view.MonthlyCollection = view.MonthlyCollection.Add(loans[i].MonthlyPayment)
		}
	}

	for _, req := range d.store.Requests() {
		switch req.Status {
		case domain.RequestStatusUnderReview:
			view.UnderReview++
		default:
			view.PendingRequests++
		}
	}

	view.Display = map[string]string{
		"working_capital":          d.formatter.Format(snapshot.WorkingCapital),
		"total_net_profit":         d.formatter.Format(snapshot.TotalNetProfit),
		"realized_interest_profit": d.formatter.Format(snapshot.RealizedInterestProfit),
		"active_principal":         d.formatter.Format(snapshot.ActivePrincipal),
		"monthly_collection":       d.formatter.Format(view.MonthlyCollection),
	}

	return view
}

// UpcomingPayment is one expected installment in the payment agenda.
type UpcomingPayment struct {
	LoanID     string    `json:"loan_id"`
	ClientID   string    `json:"client_id"`
	DueDate    time.Time `json:"due_date"`
	Amount     string    `json:"amount"`
	AmountText string    `json:"amount_text"`
	Overdue    bool      `json:"overdue"`
}

// Agenda lists the next expected payment for every open loan, soonest
// first.
func (d *Dashboard) Agenda(now time.Time) []UpcomingPayment {
	loans := d.store.Loans()
	agenda := make([]UpcomingPayment, 0, len(loans))

	for _, loan := range loans {
		if loan.Status == domain.LoanStatusPaid {
			continue
		}
		due := finance.AddMonths(loan.StartDate, loan.PaymentsMade+1)
		agenda = append(agenda, UpcomingPayment{
			LoanID:     loan.ID.String(),
			ClientID:   loan.ClientID.String(),
			DueDate:    due,
			Amount:     loan.MonthlyPayment.StringFixed(2),
			AmountText: d.formatter.Format(loan.MonthlyPayment),
			Overdue:    now.After(due),
		})
	}

	sort.Slice(agenda, func(i, j int) bool { return agenda[i].DueDate.Before(agenda[j].DueDate) })
	return agenda
}
