// Package postgres stores item snapshots in a PostgreSQL tasks table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/kanban/internal/adapters/storage/record"
	"github.com/hylla/kanban/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is a PostgreSQL-backed item store.
type Repository struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, verifies the connection and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	repo := NewRepository(pool)
	if err := repo.EnsureTable(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return repo, nil
}

// NewRepository wraps an existing pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Close releases the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// EnsureTable creates the tasks table if it doesn't exist.
func (r *Repository) EnsureTable(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id           INTEGER PRIMARY KEY,
			type         TEXT NOT NULL,
			name         TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL,
			start_time   TIMESTAMPTZ,
			duration_min BIGINT,
			epic_id      INTEGER
		)`)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_epic ON tasks(epic_id) WHERE epic_id IS NOT NULL`)
	return err
}

// LoadItems returns every stored item ordered by id.
func (r *Repository) LoadItems(ctx context.Context) ([]domain.Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, type, name, description, status, start_time, duration_min, epic_id
		FROM tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()

	var out []record.Row
	for rows.Next() {
		var (
			row    record.Row
			kind   string
			status string
			start  *time.Time
		)
		if err := rows.Scan(&row.ID, &kind, &row.Name, &row.Description, &status, &start, &row.DurationMinutes, &row.EpicID); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		row.Kind = domain.Kind(kind)
		row.Status = domain.Status(status)
		if start != nil {
			utc := start.UTC()
			row.StartTime = &utc
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return record.Items(out)
}

// SaveItems replaces the table contents in one transaction.
func (r *Repository) SaveItems(ctx context.Context, items []domain.Item) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	batch := &pgx.Batch{}
	for _, item := range items {
		row := record.FromItem(item)
		batch.Queue(`
			INSERT INTO tasks (id, type, name, description, status, start_time, duration_min, epic_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			row.ID, string(row.Kind), row.Name, row.Description, string(row.Status), row.StartTime, row.DurationMinutes, row.EpicID)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert tasks: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}
