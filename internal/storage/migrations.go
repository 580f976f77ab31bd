package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// RunMigrations applies the embedded schema migrations through a database/sql
// handle borrowed from pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	const op = "storage.RunMigrations"

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := gooseUp(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
