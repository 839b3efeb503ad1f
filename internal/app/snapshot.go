package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/kanban/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "kanban.snapshot.v1"

// Snapshot is a portable JSON export of every stored item.
type Snapshot struct {
	Version    string         `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Items      []SnapshotItem `json:"items"`
}

// SnapshotItem represents snapshot item data used by this package.
type SnapshotItem struct {
	ID              int           `json:"id"`
	Kind            domain.Kind   `json:"kind"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	Status          domain.Status `json:"status"`
	StartTime       *time.Time    `json:"start_time,omitempty"`
	DurationMinutes *int64        `json:"duration_minutes,omitempty"`
	EpicID          *int          `json:"epic_id,omitempty"`
}

// ExportSnapshot handles export snapshot.
func (s *Service) ExportSnapshot(context.Context) (Snapshot, error) {
	items := s.store.All()
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Items:      make([]SnapshotItem, 0, len(items)),
	}
	for _, item := range items {
		snap.Items = append(snap.Items, snapshotItemFromDomain(item))
	}
	return snap, nil
}

// ImportSnapshot replaces the store contents with the snapshot items.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	items := make([]domain.Item, 0, len(snap.Items))
	for _, raw := range snap.Items {
		item, err := raw.toDomain()
		if err != nil {
			return fmt.Errorf("%w: item %d: %w", ErrInvalidSnapshot, raw.ID, err)
		}
		items = append(items, item)
	}
	_, err := mutate(ctx, s, "import", func() (int, error) {
		if err := s.store.Load(items); err != nil {
			return 0, err
		}
		return len(items), nil
	})
	if err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	s.logger.Info("snapshot imported", "items", len(items))
	return nil
}

// Validate checks version, id uniqueness and subtask references.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}
	if strings.TrimSpace(s.Version) != SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidSnapshot, s.Version)
	}
	seen := map[int]domain.Kind{}
	for _, item := range s.Items {
		if item.ID < 0 {
			return fmt.Errorf("%w: item id %d", ErrInvalidSnapshot, item.ID)
		}
		if _, ok := seen[item.ID]; ok {
			return fmt.Errorf("%w: %w: %d", ErrInvalidSnapshot, domain.ErrDuplicateID, item.ID)
		}
		seen[item.ID] = item.Kind
	}
	var errs []error
	for _, item := range s.Items {
		if item.Kind != domain.KindSubTask {
			continue
		}
		if item.EpicID == nil || seen[*item.EpicID] != domain.KindEpic {
			errs = append(errs, fmt.Errorf("subtask %d: %w", item.ID, domain.ErrUnknownEpic))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, errors.Join(errs...))
	}
	return nil
}

func snapshotItemFromDomain(item domain.Item) SnapshotItem {
	out := SnapshotItem{
		ID:          item.ID,
		Kind:        item.Kind,
		Name:        item.Name,
		Description: item.Description,
		Status:      item.Status,
	}
	if item.Kind == domain.KindEpic {
		return out
	}
	out.StartTime = copyTimePtr(item.StartTime)
	if item.Duration != nil {
		minutes := int64(*item.Duration / time.Minute)
		out.DurationMinutes = &minutes
	}
	if item.Kind == domain.KindSubTask {
		epicID := item.EpicID
		out.EpicID = &epicID
	}
	return out
}

func (i SnapshotItem) toDomain() (domain.Item, error) {
	id := i.ID
	in := domain.ItemInput{
		ID:          &id,
		Kind:        i.Kind,
		Name:        i.Name,
		Description: i.Description,
		Status:      i.Status,
		StartTime:   i.StartTime,
		EpicID:      domain.UnassignedID,
	}
	if i.DurationMinutes != nil {
		d, err := domain.MinutesDuration(*i.DurationMinutes)
		if err != nil {
			return domain.Item{}, err
		}
		in.Duration = &d
	}
	if i.EpicID != nil {
		in.EpicID = *i.EpicID
	}
	return domain.NewItem(in)
}

func copyTimePtr(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	ts := in.UTC()
	return &ts
}
