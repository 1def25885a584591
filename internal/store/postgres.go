package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datatops/datatops/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5. Records carry a
// BIGSERIAL id, so listing in id order is append order even when two appends
// share a stored_at timestamp.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *models.Project) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (name, user_key, admin_key, created_at)
		 VALUES ($1, $2, $3, $4)`,
		p.Name, p.UserKey, p.AdminKey, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("%w: create project: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, name string) (*models.Project, error) {
	var p models.Project
	err := s.pool.QueryRow(ctx,
		`SELECT name, user_key, admin_key, created_at FROM projects WHERE name = $1`, name,
	).Scan(&p.Name, &p.UserKey, &p.AdminKey, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get project: %v", ErrUnavailable, err)
	}
	return &p, nil
}

func (s *PostgresStore) AppendRecord(ctx context.Context, project string, payload json.RawMessage) (*models.Record, error) {
	rec := &models.Record{Payload: payload}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO records (project, payload, stored_at)
		 VALUES ($1, $2, NOW()) RETURNING stored_at`,
		project, payload,
	).Scan(&rec.StoredAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: append record: %v", ErrUnavailable, err)
	}
	rec.StoredAt = rec.StoredAt.UTC()
	return rec, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, project string, limit int) ([]*models.Record, error) {
	if _, err := s.GetProject(ctx, project); err != nil {
		return nil, err
	}

	query := `SELECT payload, stored_at FROM records WHERE project = $1 ORDER BY id`
	args := []any{project}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		var r models.Record
		if err := rows.Scan(&r.Payload, &r.StoredAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.StoredAt = r.StoredAt.UTC()
		records = append(records, &r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, user_key, admin_key, created_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: list projects: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.Name, &p.UserKey, &p.AdminKey, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// isUniqueViolation checks if a pgx error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// isForeignKeyViolation checks if a pgx error is a foreign key violation,
// which for records means the project row does not exist.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503" // foreign_key_violation
	}
	return false
}
