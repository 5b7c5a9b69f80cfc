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

type ClientRepository struct {
	db *sqlx.DB
}

func NewClientRepository(db *sqlx.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Create(ctx context.Context, client *domain.Client) error {
	query := `
		INSERT INTO clients (
			id, name, id_number, phone, email, address, join_date, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		client.ID, client.Name, client.IDNumber, client.Phone, client.Email,
		client.Address, client.JoinDate, client.CreatedAt, client.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create client")
	}

	return nil
}

func (r *ClientRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	var client domain.Client
	query := `
		SELECT id, name, id_number, phone, email, address, join_date, created_at, updated_at
		FROM clients WHERE id = $1`

	err := r.db.GetContext(ctx, &client, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrClientNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find client")
	}

	return &client, nil
}

func (r *ClientRepository) FindByIDNumber(ctx context.Context, idNumber string) (*domain.Client, error) {
	var client domain.Client
	query := `
		SELECT id, name, id_number, phone, email, address, join_date, created_at, updated_at
		FROM clients WHERE id_number = $1`

	err := r.db.GetContext(ctx, &client, query, strings.TrimSpace(idNumber))
	if err == sql.ErrNoRows {
		return nil, errors.ErrClientNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find client by id number")
	}

	return &client, nil
}

// List returns clients newest first, optionally filtered by a free-text
// search over name, id number and phone.
func (r *ClientRepository) List(ctx context.Context, search string, limit, offset int) ([]*domain.Client, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var clients []*domain.Client
	if search = strings.TrimSpace(search); search != "" {
		query := `
			SELECT id, name, id_number, phone, email, address, join_date, created_at, updated_at
			FROM clients
			WHERE name ILIKE $1 OR id_number ILIKE $1 OR phone ILIKE $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3`
		err := r.db.SelectContext(ctx, &clients, query, "%"+search+"%", limit, offset)
		if err != nil {
			return nil, errors.Wrap(err, "failed to search clients")
		}
		return clients, nil
	}

	query := `
		SELECT id, name, id_number, phone, email, address, join_date, created_at, updated_at
		FROM clients
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
	err := r.db.SelectContext(ctx, &clients, query, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list clients")
	}

	return clients, nil
}

// ListAll loads every client, used to seed the in-memory store at startup.
func (r *ClientRepository) ListAll(ctx context.Context) ([]domain.Client, error) {
	var clients []domain.Client
	query := `
		SELECT id, name, id_number, phone, email, address, join_date, created_at, updated_at
		FROM clients
		ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &clients, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load clients")
	}

	return clients, nil
}

func (r *ClientRepository) Update(ctx context.Context, client *domain.Client) error {
	client.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE clients SET
			name = $2, id_number = $3, phone = $4, email = $5, address = $6, updated_at = $7
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		client.ID, client.Name, client.IDNumber, client.Phone,
		client.Email, client.Address, client.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update client")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check update result")
	}
	if rows == 0 {
		return errors.ErrClientNotFound
	}

	return nil
}

func (r *ClientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete client")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check delete result")
	}
	if rows == 0 {
		return errors.ErrClientNotFound
	}

	return nil
}

func (r *ClientRepository) ExistsByIDNumber(ctx context.Context, idNumber string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM clients WHERE id_number = $1)`

	err := r.db.GetContext(ctx, &exists, query, strings.TrimSpace(idNumber))
	if err != nil {
		return false, errors.Wrap(err, "failed to check client existence")
	}

	return exists, nil
}
