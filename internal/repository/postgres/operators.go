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

type OperatorRepository struct {
	db *sqlx.DB
}

func NewOperatorRepository(db *sqlx.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

const operatorColumns = `
	id, email, password_hash, name, role, totp_secret, is_totp_enabled,
	is_active, last_login, created_at, updated_at`

func (r *OperatorRepository) Create(ctx context.Context, op *domain.Operator) error {
	query := `
		INSERT INTO operators (
			id, email, password_hash, name, role, totp_secret, is_totp_enabled,
			is_active, last_login, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		op.ID, strings.ToLower(op.Email), op.PasswordHash, op.Name, op.Role,
		op.TOTPSecret, op.IsTOTPEnabled, op.IsActive, op.LastLogin,
		op.CreatedAt, op.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create operator")
	}

	return nil
}

func (r *OperatorRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error) {
	var op domain.Operator
	query := `SELECT ` + operatorColumns + ` FROM operators WHERE id = $1`

	err := r.db.GetContext(ctx, &op, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrOperatorNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find operator")
	}

	return &op, nil
}

func (r *OperatorRepository) FindByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	var op domain.Operator
	query := `SELECT ` + operatorColumns + ` FROM operators WHERE email = $1`

	err := r.db.GetContext(ctx, &op, query, strings.ToLower(strings.TrimSpace(email)))
	if err == sql.ErrNoRows {
		return nil, errors.ErrOperatorNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find operator by email")
	}

	return &op, nil
}

func (r *OperatorRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM operators WHERE email = $1)`

	err := r.db.GetContext(ctx, &exists, query, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return false, errors.Wrap(err, "failed to check operator existence")
	}

	return exists, nil
}

func (r *OperatorRepository) Update(ctx context.Context, op *domain.Operator) error {
	op.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE operators SET
			email = $2, password_hash = $3, name = $4, role = $5,
			totp_secret = $6, is_totp_enabled = $7, is_active = $8, updated_at = $9
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		op.ID, strings.ToLower(op.Email), op.PasswordHash, op.Name, op.Role,
		op.TOTPSecret, op.IsTOTPEnabled, op.IsActive, op.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update operator")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check update result")
	}
	if rows == 0 {
		return errors.ErrOperatorNotFound
	}

	return nil
}

func (r *OperatorRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE operators SET last_login = $2, updated_at = $2 WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "failed to record login")
	}

	return nil
}
