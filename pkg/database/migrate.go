package database

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// goose keeps its configuration in package globals
var gooseUp = func(ctx context.Context, db *PostgresDB, fsys fs.FS) error {
	sqlDB := stdlib.OpenDBFromPool(db.pool)
	defer sqlDB.Close()

	goose.SetBaseFS(fsys)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, sqlDB, ".")
}

// Migrate applies the embedded SQL migrations in fsys
func Migrate(ctx context.Context, db *PostgresDB, fsys fs.FS) error {
	if err := gooseUp(ctx, db, fsys); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
