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

type AccountingRepository struct {
	db *sqlx.DB
}

func NewAccountingRepository(db *sqlx.DB) *AccountingRepository {
	return &AccountingRepository{db: db}
}

const entryColumns = `
	id, type, amount, description, entry_date, created_by, created_at, updated_at`

func (r *AccountingRepository) Create(ctx context.Context, entry *domain.AccountingEntry) error {
	query := `
		INSERT INTO accounting_entries (
			id, type, amount, description, entry_date, created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Type, entry.Amount, entry.Description,
		entry.EntryDate, entry.CreatedBy, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create accounting entry")
	}

	return nil
}

func (r *AccountingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.AccountingEntry, error) {
	var entry domain.AccountingEntry
	query := `SELECT ` + entryColumns + ` FROM accounting_entries WHERE id = $1`

	err := r.db.GetContext(ctx, &entry, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrEntryNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find accounting entry")
	}

	return &entry, nil
}

func (r *AccountingRepository) List(ctx context.Context, entryType domain.EntryType, from, to *time.Time, limit, offset int) ([]*domain.AccountingEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT ` + entryColumns + ` FROM accounting_entries WHERE 1=1`
	args := []interface{}{}

	if entryType != "" {
		args = append(args, entryType)
		query += ` AND type = $1`
	}
	if from != nil {
		args = append(args, *from)
		query += ` AND entry_date >= $` + itoa(len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += ` AND entry_date <= $` + itoa(len(args))
	}

	args = append(args, limit)
	query += ` ORDER BY entry_date DESC LIMIT $` + itoa(len(args))
	args = append(args, offset)
	query += ` OFFSET $` + itoa(len(args))

	var entries []*domain.AccountingEntry
	err := r.db.SelectContext(ctx, &entries, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list accounting entries")
	}

	return entries, nil
}

func (r *AccountingRepository) ListAll(ctx context.Context) ([]domain.AccountingEntry, error) {
	var entries []domain.AccountingEntry
	query := `SELECT ` + entryColumns + ` FROM accounting_entries ORDER BY entry_date DESC`

	err := r.db.SelectContext(ctx, &entries, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load accounting entries")
	}

	return entries, nil
}

func (r *AccountingRepository) Update(ctx context.Context, entry *domain.AccountingEntry) error {
	query := `
		UPDATE accounting_entries SET
			type = $2, amount = $3, description = $4, entry_date = $5, updated_at = $6
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Type, entry.Amount, entry.Description,
		entry.EntryDate, entry.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update accounting entry")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check update result")
	}
	if rows == 0 {
		return errors.ErrEntryNotFound
	}

	return nil
}

func (r *AccountingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounting_entries WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete accounting entry")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check delete result")
	}
	if rows == 0 {
		return errors.ErrEntryNotFound
	}

	return nil
}
