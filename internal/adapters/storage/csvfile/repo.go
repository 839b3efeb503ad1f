// Package csvfile persists item snapshots as one CSV record per item.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hylla/kanban/internal/adapters/storage/record"
	"github.com/hylla/kanban/internal/domain"
)

// header is the first record of every file written by this package.
var header = []string{"id", "type", "name", "status", "description", "epic", "start", "duration"}

// ErrMalformed reports a record that cannot be decoded.
var ErrMalformed = errors.New("malformed csv record")

// Repository stores item snapshots in a single CSV file.
type Repository struct {
	path string
	mu   sync.Mutex
}

// Open prepares the file at path, creating it with a header when missing.
func Open(path string) (*Repository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("csv path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create csv dir: %w", err)
	}
	repo := &Repository{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := repo.write(nil); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat csv file: %w", err)
	}
	return repo, nil
}

// Path returns the backing file path.
func (r *Repository) Path() string {
	return r.path
}

// LoadItems decodes every record in the file.
func (r *Repository) LoadItems(ctx context.Context) ([]domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}
	defer f.Close()

	rows, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	return record.Items(rows)
}

// SaveItems rewrites the whole file.
func (r *Repository) SaveItems(ctx context.Context, items []domain.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := make([]record.Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, record.FromItem(item))
	}
	return r.write(rows)
}

// write replaces the file atomically through a sibling temp file.
func (r *Repository) write(rows []record.Row) error {
	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp csv: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if err := encode(tmp, rows); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp csv: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace csv file: %w", err)
	}
	return nil
}

func encode(w io.Writer, rows []record.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(encodeRow(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func encodeRow(row record.Row) []string {
	fields := []string{
		strconv.Itoa(row.ID),
		string(row.Kind),
		row.Name,
		string(row.Status),
		row.Description,
		"",
		"",
		"",
	}
	if row.EpicID != nil {
		fields[5] = strconv.Itoa(*row.EpicID)
	}
	if row.StartTime != nil {
		fields[6] = row.StartTime.UTC().Format(time.RFC3339)
	}
	if row.DurationMinutes != nil {
		fields[7] = strconv.FormatInt(*row.DurationMinutes, 10)
	}
	return fields
}

func decode(r io.Reader) ([]record.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	var rows []record.Row
	for line := 1; ; line++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if line == 1 && fields[0] == header[0] {
			continue
		}
		row, err := decodeRow(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformed, line, err)
		}
		rows = append(rows, row)
	}
}

func decodeRow(fields []string) (record.Row, error) {
	id, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return record.Row{}, fmt.Errorf("id: %w", err)
	}
	kind, err := domain.ParseKind(fields[1])
	if err != nil {
		return record.Row{}, err
	}
	status, err := domain.ParseStatus(fields[3])
	if err != nil {
		return record.Row{}, err
	}
	row := record.Row{
		ID:          id,
		Kind:        kind,
		Name:        fields[2],
		Status:      status,
		Description: fields[4],
	}
	if raw := strings.TrimSpace(fields[5]); raw != "" {
		epicID, err := strconv.Atoi(raw)
		if err != nil {
			return record.Row{}, fmt.Errorf("epic: %w", err)
		}
		row.EpicID = &epicID
	}
	if raw := strings.TrimSpace(fields[6]); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return record.Row{}, fmt.Errorf("start: %w", err)
		}
		row.StartTime = &start
	}
	if raw := strings.TrimSpace(fields[7]); raw != "" {
		minutes, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return record.Row{}, fmt.Errorf("duration: %w", err)
		}
		row.DurationMinutes = &minutes
	}
	return row, nil
}
