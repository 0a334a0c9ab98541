// Package pgmigrations holds the embedded goose migrations for the profiles
// schema.
package pgmigrations

import (
	"context"
	"database/sql"
	"embed"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var FS embed.FS

// upContext is swapped in tests.
var upContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Up applies all pending migrations.
func Up(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return upContext(ctx, db, ".")
}

// Open opens a database/sql handle over pgx for goose.
func Open(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}
