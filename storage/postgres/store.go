// Package pgstore implements the identity, profile and delivery stores on
// PostgreSQL (schema "profiles", see migrations/postgres).
package pgstore

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is safe for concurrent use.
type Store struct {
	pg *pgxpool.Pool
}

func New(pg *pgxpool.Pool) *Store { return &Store{pg: pg} }

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
