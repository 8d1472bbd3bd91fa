// Package migrate brings a PostgreSQL database up to the object graph schema
// embedded in the migrations package: the users table with its jsonb details,
// the objects table with its type/alias and created_at indexes, the
// object_edges parent/child relation, the commands and subjects catalogs, and
// the auth_limiter login counters.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/tamir303/Afekaton2024/migrations"
)

// Latest reports the highest migration version shipped with this build.
func Latest() (int64, error) {
	return latestIn(migrations.FS)
}

func latestIn(fsys fs.FS) (int64, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return 0, err
	}
	var latest int64
	for _, n := range names {
		v, err := goose.NumericComponent(n)
		if err != nil {
			return 0, fmt.Errorf("migration %s: %w", n, err)
		}
		latest = max(latest, v)
	}
	if latest == 0 {
		return 0, errors.New("no embedded migrations")
	}
	return latest, nil
}

// Up applies every pending migration and returns the resulting schema version.
// A database already past Latest is rejected.
func Up(ctx context.Context, dsn string) (int64, error) {
	latest, err := Latest()
	if err != nil {
		return 0, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return 0, fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}

	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if v > latest {
		return v, fmt.Errorf("schema version %d is newer than this build (%d)", v, latest)
	}
	return v, nil
}
