package postgres

import (
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"microlend/pkg/config"
	"microlend/pkg/errors"
)

// Connect opens the database pool with the configured limits.
func Connect(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
