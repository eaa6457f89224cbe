package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"profreg/internal/register/models"
	"profreg/pkg/platform/sentinel"
	txcontext "profreg/pkg/platform/tx"
)

// PostgresStore persists entities in PostgreSQL. Slug uniqueness per kind is
// backed by a partial unique index on (kind, slug) WHERE slug IS NOT NULL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const entityColumns = `id, kind, name, slug, created_at, updated_at`

// uniqueViolation is the postgres error code for unique constraint breaches.
const uniqueViolation = "23505"

func (s *PostgresStore) Create(ctx context.Context, e *models.Entity) error {
	query := `
		INSERT INTO entities (id, kind, name, slug, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		e.ID, string(e.Kind), e.Name, e.Slug, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create entity: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Entity, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1`, id)
	return scanEntity(row, "find entity by id")
}

func (s *PostgresStore) FindBySlug(ctx context.Context, kind models.Kind, slug string) (*models.Entity, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE kind = $1 AND slug = $2`, string(kind), slug)
	return scanEntity(row, "find entity by slug")
}

func (s *PostgresStore) FindByName(ctx context.Context, kind models.Kind, name string) (*models.Entity, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE kind = $1 AND LOWER(name) = LOWER($2)`, string(kind), name)
	return scanEntity(row, "find entity by name")
}

func (s *PostgresStore) SlugExists(ctx context.Context, kind models.Kind, slug string) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM entities WHERE kind = $1 AND slug = $2)`, string(kind), slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

// UpdateSlug assigns a slug only when none is set. The WHERE clause makes the
// first-publish slug assignment idempotent under retries: a second call finds
// no NULL-slug row and reports ErrConflict.
func (s *PostgresStore) UpdateSlug(ctx context.Context, id uuid.UUID, slug string) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE entities SET slug = $2, updated_at = $3 WHERE id = $1 AND slug IS NULL`,
		id, slug, time.Now())
	if err != nil {
		return fmt.Errorf("assign slug: %w", err)
	}
	return s.requireRowTouched(ctx, res, id, sentinel.ErrConflict)
}

// ReplaceSlug overwrites the slug as part of an administrative rename.
func (s *PostgresStore) ReplaceSlug(ctx context.Context, id uuid.UUID, slug string) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE entities SET slug = $2, updated_at = $3 WHERE id = $1`,
		id, slug, time.Now())
	if err != nil {
		return fmt.Errorf("replace slug: %w", err)
	}
	return s.requireRowTouched(ctx, res, id, sentinel.ErrNotFound)
}

func (s *PostgresStore) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE entities SET name = $2, updated_at = $3 WHERE id = $1`,
		id, name, time.Now())
	if err != nil {
		return fmt.Errorf("update entity name: %w", err)
	}
	return s.requireRowTouched(ctx, res, id, sentinel.ErrNotFound)
}

// requireRowTouched distinguishes "entity missing" from "guard clause did not
// match" after a conditional UPDATE.
func (s *PostgresStore) requireRowTouched(ctx context.Context, res sql.Result, id uuid.UUID, guardErr error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	if err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM entities WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check entity exists: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return guardErr
}

func scanEntity(row *sql.Row, op string) (*models.Entity, error) {
	var e models.Entity
	var kind string
	var slug sql.NullString
	err := row.Scan(&e.ID, &kind, &e.Name, &slug, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.Kind = models.Kind(kind)
	if slug.Valid {
		e.Slug = &slug.String
	}
	return &e, nil
}
