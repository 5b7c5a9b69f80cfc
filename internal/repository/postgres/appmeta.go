package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"microlend/internal/domain"
	"microlend/pkg/errors"
)

type MetaRepository struct {
	db *sqlx.DB
}

func NewMetaRepository(db *sqlx.DB) *MetaRepository {
	return &MetaRepository{db: db}
}

func (r *MetaRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	query := `SELECT value FROM app_meta WHERE key = $1`

	err := r.db.GetContext(ctx, &value, query, key)
	if err == sql.ErrNoRows {
		return "", errors.ErrMetaNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to read app meta")
	}

	return value, nil
}

func (r *MetaRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO app_meta (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "failed to write app meta")
	}

	return nil
}

func (r *MetaRepository) All(ctx context.Context) ([]domain.AppMeta, error) {
	var rows []domain.AppMeta
	query := `SELECT key, value, updated_at FROM app_meta ORDER BY key`

	err := r.db.SelectContext(ctx, &rows, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list app meta")
	}

	return rows, nil
}
