package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"microlend/internal/domain"
	"microlend/internal/finance"
	"microlend/pkg/errors"
)

// Procedures bundles the multi-table writes that must land atomically:
// turning a reviewed request into a client plus loan, walk-in originations,
// and payment registration. Each runs in a single transaction with the
// affected rows locked.
type Procedures struct {
	db *sqlx.DB
}

func NewProcedures(db *sqlx.DB) *Procedures {
	return &Procedures{db: db}
}

// ApproveRequest converts a request into a client and a loan and removes
// the request, all in one transaction. Review is optional: pending and
// under_review requests are both approvable. An existing client with the
// same id number is reused instead of duplicated. The build callback
// produces the loan row; it runs inside the transaction with the request's
// figures read under lock.
func (p *Procedures) ApproveRequest(ctx context.Context, requestID uuid.UUID, build func(req *domain.LoanRequest, clientID uuid.UUID) (*domain.Loan, error)) (*domain.Client, *domain.Loan, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var req domain.LoanRequest
	query := `SELECT ` + requestColumns + ` FROM loan_requests WHERE id = $1 FOR UPDATE`
	err = tx.GetContext(ctx, &req, query, requestID)
	if err == sql.ErrNoRows {
		return nil, nil, errors.ErrRequestNotFound
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load loan request")
	}
	switch req.Status {
	case domain.RequestStatusPending, domain.RequestStatusUnderReview:
	default:
		return nil, nil, errors.ErrInvalidStatusChange
	}

	client, err := findOrCreateClient(ctx, tx, &req)
	if err != nil {
		return nil, nil, err
	}

	loan, err := build(&req, client.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := insertLoanTx(ctx, tx, loan); err != nil {
		return nil, nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM loan_requests WHERE id = $1`, requestID); err != nil {
		return nil, nil, errors.Wrap(err, "failed to remove approved request")
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, errors.Wrap(err, "failed to commit approval")
	}

	return client, loan, nil
}

// CreateClientAndLoan originates a loan for a walk-in borrower in one
// transaction, reusing the client row when the id number is already known.
func (p *Procedures) CreateClientAndLoan(ctx context.Context, client *domain.Client, loan *domain.Loan) (*domain.Client, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var existing domain.Client
	query := `
		SELECT id, name, id_number, phone, email, address, join_date, created_at, updated_at
		FROM clients WHERE id_number = $1 FOR UPDATE`
	err = tx.GetContext(ctx, &existing, query, client.IDNumber)
	switch {
	case err == sql.ErrNoRows:
		if err := insertClientTx(ctx, tx, client); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, errors.Wrap(err, "failed to look up client")
	default:
		client = &existing
	}

	loan.ClientID = client.ID
	if err := insertLoanTx(ctx, tx, loan); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit origination")
	}

	return client, nil
}

// RegisterPayment locks the loan row, bumps the payment counter and marks
// term loans paid when the counter reaches the term. Loans that are not
// settled get pending or overdue recomputed from the next due date, so a
// borrower who catches up stops showing as overdue. Calling it on a paid
// loan is an error; payment registration is deliberately not idempotent.
func (p *Procedures) RegisterPayment(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var loan domain.Loan
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`
	err = tx.GetContext(ctx, &loan, query, loanID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrLoanNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load loan")
	}
	if loan.Status == domain.LoanStatusPaid {
		return nil, errors.ErrLoanAlreadyPaid
	}

	now := time.Now().UTC()
	loan.PaymentsMade++
	switch {
	case loan.TermMonths > 0 && loan.PaymentsMade >= loan.TermMonths:
		loan.Status = domain.LoanStatusPaid
	case now.After(finance.AddMonths(loan.StartDate, loan.PaymentsMade+1)):
		loan.Status = domain.LoanStatusOverdue
	default:
		loan.Status = domain.LoanStatusPending
	}
	loan.UpdatedAt = now

	update := `UPDATE loans SET payments_made = $2, status = $3, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, loan.ID, loan.PaymentsMade, loan.Status, loan.UpdatedAt); err != nil {
		return nil, errors.Wrap(err, "failed to register payment")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit payment")
	}

	return &loan, nil
}

func findOrCreateClient(ctx context.Context, tx *sqlx.Tx, req *domain.LoanRequest) (*domain.Client, error) {
	var existing domain.Client
	query := `
		SELECT id, name, id_number, phone, email, address, join_date, created_at, updated_at
		FROM clients WHERE id_number = $1 FOR UPDATE`

	err := tx.GetContext(ctx, &existing, query, req.IDNumber)
	if err == nil {
		return &existing, nil
	}
	if err != sql.ErrNoRows {
		return nil, errors.Wrap(err, "failed to look up client")
	}

	now := time.Now().UTC()
	client := &domain.Client{
		ID:        uuid.New(),
		Name:      req.Name,
		IDNumber:  req.IDNumber,
		Phone:     req.Phone,
		Email:     req.Email,
		Address:   req.Address,
		JoinDate:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := insertClientTx(ctx, tx, client); err != nil {
		return nil, err
	}

	return client, nil
}

func insertClientTx(ctx context.Context, tx *sqlx.Tx, client *domain.Client) error {
	query := `
		INSERT INTO clients (
			id, name, id_number, phone, email, address, join_date, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := tx.ExecContext(ctx, query,
		client.ID, client.Name, client.IDNumber, client.Phone, client.Email,
		client.Address, client.JoinDate, client.CreatedAt, client.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create client")
	}

	return nil
}

func insertLoanTx(ctx context.Context, tx *sqlx.Tx, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (
			id, client_id, amount, interest_rate, term_months, start_date, status,
			monthly_payment, total_repayment, payments_made, signature_url,
			contract_pdf_url, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`

	_, err := tx.ExecContext(ctx, query,
		loan.ID, loan.ClientID, loan.Amount, loan.InterestRate, loan.TermMonths,
		loan.StartDate, loan.Status, loan.MonthlyPayment, loan.TotalRepayment,
		loan.PaymentsMade, loan.SignatureURL, loan.ContractPDFURL,
		loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create loan")
	}

	return nil
}
