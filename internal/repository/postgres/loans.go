package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"microlend/internal/domain"
	"microlend/pkg/errors"
)

type LoanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

const loanColumns = `
	id, client_id, amount, interest_rate, term_months, start_date, status,
	monthly_payment, total_repayment, payments_made, signature_url,
	contract_pdf_url, created_at, updated_at`

func (r *LoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (
			id, client_id, amount, interest_rate, term_months, start_date, status,
			monthly_payment, total_repayment, payments_made, signature_url,
			contract_pdf_url, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`

	_, err := r.db.ExecContext(ctx, query,
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

func (r *LoanRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	var loan domain.Loan
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

	err := r.db.GetContext(ctx, &loan, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrLoanNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find loan")
	}

	return &loan, nil
}

func (r *LoanRepository) List(ctx context.Context, status domain.LoanStatus, limit, offset int) ([]*domain.Loan, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var loans []*domain.Loan
	if status != "" {
		query := `SELECT ` + loanColumns + `
			FROM loans WHERE status = $1
			ORDER BY start_date DESC LIMIT $2 OFFSET $3`
		err := r.db.SelectContext(ctx, &loans, query, status, limit, offset)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list loans by status")
		}
		return loans, nil
	}

	query := `SELECT ` + loanColumns + `
		FROM loans ORDER BY start_date DESC LIMIT $1 OFFSET $2`
	err := r.db.SelectContext(ctx, &loans, query, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list loans")
	}

	return loans, nil
}

// ListAll loads every loan. The dashboard and the overdue sweep work over
// the full book, so this is intentionally unpaginated.
func (r *LoanRepository) ListAll(ctx context.Context) ([]domain.Loan, error) {
	var loans []domain.Loan
	query := `SELECT ` + loanColumns + ` FROM loans ORDER BY start_date DESC`

	err := r.db.SelectContext(ctx, &loans, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load loans")
	}

	return loans, nil
}

func (r *LoanRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*domain.Loan, error) {
	var loans []*domain.Loan
	query := `SELECT ` + loanColumns + `
		FROM loans WHERE client_id = $1 ORDER BY start_date DESC`

	err := r.db.SelectContext(ctx, &loans, query, clientID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list client loans")
	}

	return loans, nil
}

func (r *LoanRepository) CountActiveByClient(ctx context.Context, clientID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM loans WHERE client_id = $1 AND status != $2`

	err := r.db.GetContext(ctx, &count, query, clientID, domain.LoanStatusPaid)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count active loans")
	}

	return count, nil
}

func (r *LoanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	loan.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE loans SET
			amount = $2, interest_rate = $3, term_months = $4, start_date = $5,
			status = $6, monthly_payment = $7, total_repayment = $8,
			payments_made = $9, signature_url = $10, contract_pdf_url = $11,
			updated_at = $12
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		loan.ID, loan.Amount, loan.InterestRate, loan.TermMonths, loan.StartDate,
		loan.Status, loan.MonthlyPayment, loan.TotalRepayment, loan.PaymentsMade,
		loan.SignatureURL, loan.ContractPDFURL, loan.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update loan")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check update result")
	}
	if rows == 0 {
		return errors.ErrLoanNotFound
	}

	return nil
}

func (r *LoanRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.LoanStatus) error {
	query := `UPDATE loans SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "failed to update loan status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check update result")
	}
	if rows == 0 {
		return errors.ErrLoanNotFound
	}

	return nil
}

func (r *LoanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM loans WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete loan")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check delete result")
	}
	if rows == 0 {
		return errors.ErrLoanNotFound
	}

	return nil
}
