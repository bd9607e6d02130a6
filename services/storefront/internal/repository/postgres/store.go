package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/shopsync/pkg/database"
	apperrors "github.com/utafrali/shopsync/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema migrations for the local_storage table.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err) // embedded path is fixed
	}
	return sub
}

// Store implements repository.Store on a PostgreSQL table. It has no change
// feed.
type Store struct {
	db        database.DBTX
	namespace string
	tracer    database.QueryTracer
}

// NewStore creates a PostgreSQL-backed store scoped to namespace.
func NewStore(db database.DBTX, namespace string) *Store {
	return &Store{
		db:        db,
		namespace: namespace,
		tracer:    database.QueryTracer{System: database.SystemPostgres},
	}
}

// Migrate applies the store's schema migrations.
func (s *Store) Migrate(ctx context.Context, logger *slog.Logger) error {
	return database.RunMigrations(ctx, s.db, Migrations(), logger)
}

// Get implements repository.Store.
func (s *Store) Get(ctx context.Context, key string) (_ []byte, err error) {
	query := `SELECT value FROM local_storage WHERE namespace = $1 AND key = $2`
	ctx, end := s.tracer.Start(ctx, "get", query)
	defer func() { end(err) }()

	var value []byte
	if err := s.db.QueryRow(ctx, query, s.namespace, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("storage key", key)
		}
		return nil, fmt.Errorf("get storage key %s: %w", key, err)
	}
	return value, nil
}

// Set implements repository.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte) (err error) {
	query := `
		INSERT INTO local_storage (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	ctx, end := s.tracer.Start(ctx, "set", query)
	defer func() { end(err) }()

	if _, err := s.db.Exec(ctx, query, s.namespace, key, value); err != nil {
		return fmt.Errorf("set storage key %s: %w", key, err)
	}
	return nil
}

// Delete implements repository.Store.
func (s *Store) Delete(ctx context.Context, key string) (err error) {
	query := `DELETE FROM local_storage WHERE namespace = $1 AND key = $2`
	ctx, end := s.tracer.Start(ctx, "delete", query)
	defer func() { end(err) }()

	if _, err := s.db.Exec(ctx, query, s.namespace, key); err != nil {
		return fmt.Errorf("delete storage key %s: %w", key, err)
	}
	return nil
}

// Ping implements repository.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
