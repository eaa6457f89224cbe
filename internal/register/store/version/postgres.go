package version

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"profreg/internal/register/models"
	"profreg/pkg/platform/sentinel"
	txcontext "profreg/pkg/platform/tx"
)

// PostgresStore persists versions in PostgreSQL. When the context carries a
// transaction (see pkg/platform/tx) all statements run inside it, which is
// how the lifecycle service keeps its unit of work atomic.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const versionColumns = `id, entity_id, status, summary, qualifications, legislation, created_by, created_at, updated_at`

// Save upserts a version row.
func (s *PostgresStore) Save(ctx context.Context, v *models.Version) error {
	query := `
		INSERT INTO versions (id, entity_id, status, summary, qualifications, legislation, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			summary = EXCLUDED.summary,
			qualifications = EXCLUDED.qualifications,
			legislation = EXCLUDED.legislation,
			updated_at = EXCLUDED.updated_at
	`
	legislation := v.Legislation
	if legislation == nil {
		legislation = []string{}
	}
	_, err := s.execer(ctx).ExecContext(ctx, query,
		v.ID,
		v.EntityID,
		string(v.Status),
		v.Summary,
		v.Qualifications,
		pq.Array(legislation),
		v.CreatedBy,
		v.CreatedAt,
		v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save version: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Version, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE id = $1`, id)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find version by id: %w", err)
	}
	return v, nil
}

// FindLiveForEntity loads the entity's live version, taking a row lock for
// the duration of the surrounding transaction so concurrent publish/archive
// calls for the same entity serialize instead of double-promoting. Returns
// nil when the entity has never been published.
func (s *PostgresStore) FindLiveForEntity(ctx context.Context, entityID uuid.UUID) (*models.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM versions WHERE entity_id = $1 AND status = $2`
	if txcontext.InTx(ctx) {
		query += ` FOR UPDATE`
	}
	row := s.execer(ctx).QueryRowContext(ctx, query, entityID, string(models.StatusLive))
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find live version: %w", err)
	}
	return v, nil
}

// FindLatestForEntity returns the most recently created version for an
// entity, the duplication source for a new draft.
func (s *PostgresStore) FindLatestForEntity(ctx context.Context, entityID uuid.UUID) (*models.Version, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE entity_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, entityID)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find latest version: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) FindAllForEntity(ctx context.Context, entityID uuid.UUID) ([]*models.Version, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE entity_id = $1 ORDER BY created_at, id`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list versions for entity: %w", err)
	}
	defer rows.Close()
	return collectVersions(rows)
}

func (s *PostgresStore) FindByStatus(ctx context.Context, status models.VersionStatus) ([]*models.Version, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE status = $1 ORDER BY created_at, id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list versions by status: %w", err)
	}
	defer rows.Close()
	return collectVersions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*models.Version, error) {
	var v models.Version
	var status string
	var legislation pq.StringArray
	err := row.Scan(
		&v.ID,
		&v.EntityID,
		&status,
		&v.Summary,
		&v.Qualifications,
		&legislation,
		&v.CreatedBy,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Status = models.VersionStatus(status)
	v.Legislation = []string(legislation)
	return &v, nil
}

func collectVersions(rows *sql.Rows) ([]*models.Version, error) {
	var out []*models.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate version rows: %w", err)
	}
	return out, nil
}
