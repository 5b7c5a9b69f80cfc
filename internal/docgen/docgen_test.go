package docgen

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microlend/internal/domain"
	"microlend/internal/finance"
	"microlend/pkg/currency"
)

func testClient() *domain.Client {
	return &domain.Client{
		ID:       uuid.New(),
		Name:     "Marta Diaz",
		IDNumber: "V-12345678",
		Address:  "Calle 5, Barquisimeto",
	}
}

func testLoan() *domain.Loan {
	total := decimal.RequireFromString("1592.34")
	return &domain.Loan{
		ID:             uuid.New(),
		ClientID:       uuid.New(),
		Amount:         decimal.NewFromInt(1000),
		InterestRate:   decimal.NewFromInt(96),
		TermMonths:     12,
		StartDate:      time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		Status:         domain.LoanStatusPending,
		MonthlyPayment: decimal.RequireFromString("132.70"),
		TotalRepayment: &total,
	}
}

func TestContract(t *testing.T) {
	gen := NewGenerator(currency.New("en", "USD"), "Acme Lending")

	pdf, err := gen.Contract(testClient(), testLoan(), nil)
	require.NoError(t, err)
	assert.True(t, len(pdf) > 500, "suspiciously small pdf: %d bytes", len(pdf))
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestContractIndefiniteLoan(t *testing.T) {
	gen := NewGenerator(currency.New("en", "USD"), "Acme Lending")

	loan := testLoan()
	loan.TermMonths = 0
	loan.TotalRepayment = nil
	loan.MonthlyPayment = decimal.NewFromInt(80)

	pdf, err := gen.Contract(testClient(), loan, nil)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestContractSkipsUnknownSignatureFormat(t *testing.T) {
	gen := NewGenerator(currency.New("en", "USD"), "Acme Lending")

	// Garbage bytes must be ignored, not break rendering.
	pdf, err := gen.Contract(testClient(), testLoan(), []byte("not-an-image"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestReceipt(t *testing.T) {
	gen := NewGenerator(currency.New("en", "USD"), "Acme Lending")

	loan := testLoan()
	loan.PaymentsMade = 3
	pdf, err := gen.Receipt(testClient(), loan, 3, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestPortfolioReport(t *testing.T) {
	gen := NewGenerator(currency.New("en", "USD"), "Acme Lending")

	loan := testLoan()
	snapshot := finance.BuildSnapshot([]domain.Loan{*loan}, nil, decimal.NewFromInt(10000))

	pdf, err := gen.PortfolioReport(snapshot, []domain.Loan{*loan}, map[string]string{
		loan.ClientID.String(): "Marta Diaz",
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}
