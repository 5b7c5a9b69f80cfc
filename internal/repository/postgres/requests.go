package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"microlend/internal/domain"
	"microlend/pkg/errors"
)

type RequestRepository struct {
	db *sqlx.DB
}

func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `
	id, name, id_number, phone, email, address, amount, term_months,
	id_front_url, id_back_url, signature_url, status, request_date,
	created_at, updated_at`

func (r *RequestRepository) Create(ctx context.Context, req *domain.LoanRequest) error {
	query := `
		INSERT INTO loan_requests (
			id, name, id_number, phone, email, address, amount, term_months,
			id_front_url, id_back_url, signature_url, status, request_date,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.Name, req.IDNumber, req.Phone, req.Email, req.Address,
		req.Amount, req.TermMonths, req.IDFrontURL, req.IDBackURL,
		req.SignatureURL, req.Status, req.RequestDate, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create loan request")
	}

	return nil
}

func (r *RequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.LoanRequest, error) {
	var req domain.LoanRequest
	query := `SELECT ` + requestColumns + ` FROM loan_requests WHERE id = $1`

	err := r.db.GetContext(ctx, &req, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrRequestNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find loan request")
	}

	return &req, nil
}

func (r *RequestRepository) List(ctx context.Context, status domain.RequestStatus, limit, offset int) ([]*domain.LoanRequest, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var requests []*domain.LoanRequest
	if status != "" {
		query := `SELECT ` + requestColumns + `
			FROM loan_requests WHERE status = $1
			ORDER BY request_date DESC LIMIT $2 OFFSET $3`
		err := r.db.SelectContext(ctx, &requests, query, status, limit, offset)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list loan requests by status")
		}
		return requests, nil
	}

	query := `SELECT ` + requestColumns + `
		FROM loan_requests ORDER BY request_date DESC LIMIT $1 OFFSET $2`
	err := r.db.SelectContext(ctx, &requests, query, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list loan requests")
	}

	return requests, nil
}

func (r *RequestRepository) ListAll(ctx context.Context) ([]domain.LoanRequest, error) {
	var requests []domain.LoanRequest
	query := `SELECT ` + requestColumns + ` FROM loan_requests ORDER BY request_date DESC`

	err := r.db.SelectContext(ctx, &requests, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load loan requests")
	}

	return requests, nil
}

// FindLatestByIDNumber powers the public status lookup. Only the newest
// request for a given document matters.
func (r *RequestRepository) FindLatestByIDNumber(ctx context.Context, idNumber string) (*domain.LoanRequest, error) {
	var req domain.LoanRequest
	query := `SELECT ` + requestColumns + `
		FROM loan_requests WHERE id_number = $1
		ORDER BY request_date DESC LIMIT 1`

	err := r.db.GetContext(ctx, &req, query, strings.TrimSpace(idNumber))
	if err == sql.ErrNoRows {
		return nil, errors.ErrRequestNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find loan request by id number")
	}

	return &req, nil
}

func (r *RequestRepository) ExistsOpenByIDNumber(ctx context.Context, idNumber string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM loan_requests WHERE id_number = $1)`

	err := r.db.GetContext(ctx, &exists, query, strings.TrimSpace(idNumber))
	if err != nil {
		return false, errors.Wrap(err, "failed to check loan request existence")
	}

	return exists, nil
}

// TransitionStatus moves a request from one status to another. It reports
// ErrRequestAlreadyTaken when the row is no longer in the expected status,
// which covers two reviewers racing on the same request.
func (r *RequestRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.RequestStatus) error {
	query := `UPDATE loan_requests SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`

	result, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "failed to transition loan request")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check transition result")
	}
	if rows == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return errors.ErrRequestAlreadyTaken
	}

	return nil
}

func (r *RequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM loan_requests WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete loan request")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check delete result")
	}
	if rows == 0 {
		return errors.ErrRequestNotFound
	}

	return nil
}
