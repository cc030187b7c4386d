package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"
)

// SQLRepository is the shared base of the database/sql repositories. Queries
// use $n placeholders, which both Postgres drivers and SQLite accept.
type SQLRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSQLRepository(db *sql.DB, logger zerolog.Logger) *SQLRepository {
	return &SQLRepository{
		db:     db,
		logger: logger,
	}
}

func (r *SQLRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.db.PingContext(ctx)
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}
