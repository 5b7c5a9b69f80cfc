// Package docgen renders the printable documents: loan contracts, payment
// receipts and portfolio reports.
package docgen

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"microlend/internal/domain"
	"microlend/internal/finance"
	"microlend/pkg/currency"
	"microlend/pkg/errors"
)

type Generator struct {
	formatter    *currency.Formatter
	businessName string
}

func NewGenerator(formatter *currency.Formatter, businessName string) *Generator {
	if businessName == "" {
		businessName = "Microlend"
	}
	return &Generator{formatter: formatter, businessName: businessName}
}

// Contract renders the loan agreement. When signature image bytes are
// provided they are embedded above the signature line.
func (g *Generator) Contract(client *domain.Client, loan *domain.Loan, signature []byte) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Loan Agreement", false)
	pdf.AddPage()

	g.header(pdf, "LOAN AGREEMENT")

	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, fmt.Sprintf(
		"This agreement is made on %s between %s (the lender) and %s, "+
			"identity document %s, residing at %s (the borrower).",
		loan.StartDate.Format("January 2, 2006"), g.businessName,
		client.Name, client.IDNumber, client.Address,
	), "", "L", false)
	pdf.Ln(4)

	g.keyValue(pdf, "Principal", g.formatter.Format(loan.Amount))
	g.keyValue(pdf, "Annual interest rate", loan.InterestRate.StringFixed(2)+" %")
	if loan.Indefinite() {
		g.keyValue(pdf, "Term", "open-ended (interest only)")
		g.keyValue(pdf, "Monthly interest payment", g.formatter.Format(loan.MonthlyPayment))
	} else {
		g.keyValue(pdf, "Term", fmt.Sprintf("%d months", loan.TermMonths))
		g.keyValue(pdf, "Monthly payment", g.formatter.Format(loan.MonthlyPayment))
		if loan.TotalRepayment != nil {
			g.keyValue(pdf, "Total repayment", g.formatter.Format(*loan.TotalRepayment))
		}
	}
	pdf.Ln(4)

	if !loan.Indefinite() {
		monthlyRate := loan.InterestRate.Div(decimal.NewFromInt(12))
		rows := finance.BuildSchedule(loan.Amount, monthlyRate, loan.MonthlyPayment, loan.TermMonths, loan.StartDate)
		g.scheduleTable(pdf, rows)
		pdf.Ln(6)
	}

	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5,
		"The borrower agrees to pay each installment on or before its due date. "+
			"Missed installments mark the loan as overdue and remain payable in full.",
		"", "L", false)
	pdf.Ln(10)

	if imageType := sniffImageType(signature); imageType != "" {
		opts := fpdf.ImageOptions{ImageType: imageType, ReadDpi: true}
		pdf.RegisterImageOptionsReader("signature", opts, bytes.NewReader(signature))
		pdf.ImageOptions("signature", pdf.GetX(), pdf.GetY(), 50, 0, true, opts, 0, "")
		pdf.Ln(2)
	}
	pdf.CellFormat(80, 6, "_______________________", "", 1, "L", false, 0, "")
	pdf.CellFormat(80, 6, client.Name, "", 1, "L", false, 0, "")

	return render(pdf)
}

// Receipt renders proof of one registered installment.
func (g *Generator) Receipt(client *domain.Client, loan *domain.Loan, paymentNumber int, paidAt time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetTitle("Payment Receipt", false)
	pdf.AddPage()

	g.header(pdf, "PAYMENT RECEIPT")

	g.keyValue(pdf, "Date", paidAt.Format("January 2, 2006"))
	g.keyValue(pdf, "Client", client.Name)
	g.keyValue(pdf, "Document", client.IDNumber)
	g.keyValue(pdf, "Loan", loan.ID.String())
	g.keyValue(pdf, "Amount received", g.formatter.Format(loan.MonthlyPayment))
	if loan.Indefinite() {
		g.keyValue(pdf, "Installment", fmt.Sprintf("%d", paymentNumber))
	} else {
		g.keyValue(pdf, "Installment", fmt.Sprintf("%d of %d", paymentNumber, loan.TermMonths))
	}
	if loan.Status == domain.LoanStatusPaid {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 6, "LOAN FULLY REPAID", "", 1, "C", false, 0, "")
	}

	return render(pdf)
}

// PortfolioReport renders the financial snapshot plus a loan roster.
func (g *Generator) PortfolioReport(snapshot *finance.FinancialSnapshot, loans []domain.Loan, clients map[string]string, asOf time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Portfolio Report", false)
	pdf.AddPage()

	g.header(pdf, "PORTFOLIO REPORT")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, "As of "+asOf.Format("January 2, 2006 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	g.keyValue(pdf, "Working capital", g.formatter.Format(snapshot.WorkingCapital))
	g.keyValue(pdf, "Active principal", g.formatter.Format(snapshot.ActivePrincipal))
	g.keyValue(pdf, "Total net profit", g.formatter.Format(snapshot.TotalNetProfit))
	g.keyValue(pdf, "Realized interest", g.formatter.Format(snapshot.RealizedInterestProfit))
	pdf.Ln(5)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(55, 6, "Client", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 6, "Principal", "1", 0, "R", true, 0, "")
	pdf.CellFormat(30, 6, "Payment", "1", 0, "R", true, 0, "")
	pdf.CellFormat(25, 6, "Paid", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 6, "Status", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, loan := range loans {
		name := clients[loan.ClientID.String()]
		if name == "" {
			name = loan.ClientID.String()
		}
		paid := fmt.Sprintf("%d", loan.PaymentsMade)
		if !loan.Indefinite() {
			paid = fmt.Sprintf("%d/%d", loan.PaymentsMade, loan.TermMonths)
		}
		pdf.CellFormat(55, 6, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, loan.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, loan.MonthlyPayment.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, paid, "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, string(loan.Status), "1", 1, "C", false, 0, "")
	}

	return render(pdf)
}

func (g *Generator) header(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, g.businessName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "C", false, 0, "")
	pdf.Ln(4)
}

func (g *Generator) keyValue(pdf *fpdf.Fpdf, key, value string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(55, 6, key, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
}

func (g *Generator) scheduleTable(pdf *fpdf.Fpdf, rows []finance.ScheduleRow) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(12, 6, "#", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 6, "Due date", "1", 0, "C", true, 0, "")
	pdf.CellFormat(32, 6, "Payment", "1", 0, "R", true, 0, "")
	pdf.CellFormat(32, 6, "Interest", "1", 0, "R", true, 0, "")
	pdf.CellFormat(32, 6, "Principal", "1", 0, "R", true, 0, "")
	pdf.CellFormat(32, 6, "Balance", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		pdf.CellFormat(12, 6, fmt.Sprintf("%d", row.Period), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, row.DueDate.Format("2006-01-02"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(32, 6, row.Payment.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(32, 6, row.Interest.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(32, 6, row.Principal.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(32, 6, row.Balance.StringFixed(2), "1", 1, "R", false, 0, "")
	}
}

func sniffImageType(data []byte) string {
	switch {
	case len(data) > 8 && bytes.HasPrefix(data, []byte("\x89PNG")):
		return "PNG"
	case len(data) > 3 && bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "JPEG"
	default:
		return ""
	}
}

func render(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "failed to render pdf")
	}
	return buf.Bytes(), nil
}
