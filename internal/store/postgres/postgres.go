// Package postgres stores shopper key spaces in a single PostgreSQL table.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"

	"github.com/Noobiez16/SubliGraphic/pkg/database"
	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"

	"github.com/Noobiez16/SubliGraphic/internal/store"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema migrations for this backend.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	getSQL  = `SELECT value FROM storefront_kv WHERE owner = $1 AND key = $2`
	lockSQL = `SELECT pg_advisory_xact_lock(hashtext($1))`
	usedSQL = `SELECT COALESCE(SUM(size), 0) FROM storefront_kv WHERE owner = $1 AND key <> $2`
	putSQL  = `INSERT INTO storefront_kv (owner, key, value, size, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (owner, key) DO UPDATE
		SET value = EXCLUDED.value, size = EXCLUDED.size, updated_at = NOW()`
	delSQL  = `DELETE FROM storefront_kv WHERE owner = $1 AND key = $2`
	listSQL = `SELECT key FROM storefront_kv WHERE owner = $1 AND starts_with(key, $2)`
)

// Scoper is the PostgreSQL backend.
type Scoper struct {
	db     database.DBTX
	limits store.Limits
	tracer database.QueryTracer
}

// New creates a PostgreSQL backend.
func New(db database.DBTX, limits store.Limits, tracer database.QueryTracer) *Scoper {
	if tracer.System == "" {
		tracer.System = "postgresql"
	}
	return &Scoper{db: db, limits: limits, tracer: tracer}
}

// Scope returns the store for owner.
func (s *Scoper) Scope(owner string) store.Store {
	return &ownerStore{Scoper: s, owner: owner}
}

// Ping checks connectivity.
func (s *Scoper) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRow(ctx, "SELECT 1").Scan(&one)
}

type ownerStore struct {
	*Scoper
	owner string
}

func (o *ownerStore) Get(ctx context.Context, key string) (value []byte, err error) {
	ctx, end := o.tracer.Start(ctx, "kv.get", getSQL)
	defer func() { end(err) }()

	if err = o.db.QueryRow(ctx, getSQL, o.owner, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("storage key", key)
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set serializes writers of one owner with an advisory lock so the capacity
// check and the upsert see the same usage.
func (o *ownerStore) Set(ctx context.Context, key string, value []byte) (err error) {
	ctx, end := o.tracer.Start(ctx, "kv.set", putSQL)
	defer func() { end(err) }()

	tx, err := o.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin set %s: %w", key, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, lockSQL, o.owner); err != nil {
		return fmt.Errorf("lock owner: %w", err)
	}
	var used int64
	if err = tx.QueryRow(ctx, usedSQL, o.owner, key).Scan(&used); err != nil {
		return fmt.Errorf("read usage: %w", err)
	}
	if err = o.limits.Check(key, value, used); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, putSQL, o.owner, key, value, store.EntrySize(key, value)); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit set %s: %w", key, err)
	}
	return nil
}

func (o *ownerStore) Remove(ctx context.Context, key string) (err error) {
	ctx, end := o.tracer.Start(ctx, "kv.remove", delSQL)
	defer func() { end(err) }()

	if _, err = o.db.Exec(ctx, delSQL, o.owner, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (o *ownerStore) ListKeys(ctx context.Context, prefix string) (keys []string, err error) {
	ctx, end := o.tracer.Start(ctx, "kv.list", listSQL)
	defer func() { end(err) }()

	rows, err := o.db.Query(ctx, listSQL, o.owner, prefix)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	keys, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan keys: %w", err)
	}
	return keys, nil
}
