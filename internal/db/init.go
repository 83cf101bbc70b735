// Package db opens the Postgres connection, applies the embedded schema
// migrations and provides transaction and retry helpers for repositories.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// gooseUp is a seam for testing migrations without a database.
var gooseUp = func(ctx context.Context, db *sql.DB) error {
	return goose.UpContext(ctx, db, "migrations")
}

// InitPostgres opens and pings the database identified by dsn and brings its
// schema up to date.
func InitPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies every pending migration.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUp(ctx, db); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
