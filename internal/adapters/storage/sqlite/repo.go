package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hylla/kanban/internal/adapters/storage/record"
	"github.com/hylla/kanban/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository stores item snapshots in the sqlite tasks table.
type Repository struct {
	db *sql.DB
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database. Each call gets its own
// named database, so repositories never see each other's rows.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY,
			type TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			start_time TEXT,
			duration_min INTEGER,
			epic_id INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_epic ON tasks(epic_id);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// LoadItems returns every stored item ordered by id.
func (r *Repository) LoadItems(ctx context.Context) ([]domain.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, name, description, status, start_time, duration_min, epic_id
		FROM tasks
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]record.Row, 0)
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return record.Items(out)
}

// SaveItems replaces the table contents in one transaction.
func (r *Repository) SaveItems(ctx context.Context, items []domain.Item) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks(id, type, name, description, status, start_time, duration_min, epic_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		row := record.FromItem(item)
		if _, err = stmt.ExecContext(
			ctx,
			row.ID,
			string(row.Kind),
			row.Name,
			row.Description,
			string(row.Status),
			nullableTS(row.StartTime),
			nullableInt64(row.DurationMinutes),
			nullableInt(row.EpicID),
		); err != nil {
			return fmt.Errorf("insert item %d: %w", row.ID, err)
		}
	}
	return tx.Commit()
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (record.Row, error) {
	var (
		row      record.Row
		kindRaw  string
		status   string
		startRaw sql.NullString
		duration sql.NullInt64
		epicID   sql.NullInt64
	)
	if err := s.Scan(&row.ID, &kindRaw, &row.Name, &row.Description, &status, &startRaw, &duration, &epicID); err != nil {
		return record.Row{}, err
	}
	row.Kind = domain.Kind(kindRaw)
	row.Status = domain.Status(status)
	if startRaw.Valid {
		start, err := time.Parse(time.RFC3339Nano, startRaw.String)
		if err != nil {
			return record.Row{}, fmt.Errorf("parse start_time for item %d: %w", row.ID, err)
		}
		row.StartTime = &start
	}
	if duration.Valid {
		minutes := duration.Int64
		row.DurationMinutes = &minutes
	}
	if epicID.Valid {
		id := int(epicID.Int64)
		row.EpicID = &id
	}
	return row, nil
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
