// Package record converts items to and from the flat row shape shared by the storage backends.
package record

import (
	"fmt"
	"time"

	"github.com/hylla/kanban/internal/domain"
)

// Row is one persisted item. Epic rows never carry a schedule or parent.
type Row struct {
	ID              int
	Kind            domain.Kind
	Name            string
	Description     string
	Status          domain.Status
	StartTime       *time.Time
	DurationMinutes *int64
	EpicID          *int
}

// FromItem flattens one item.
func FromItem(item domain.Item) Row {
	row := Row{
		ID:          item.ID,
		Kind:        item.Kind,
		Name:        item.Name,
		Description: item.Description,
		Status:      item.Status,
	}
	if item.Kind == domain.KindEpic {
		return row
	}
	if item.StartTime != nil {
		start := item.StartTime.UTC()
		row.StartTime = &start
	}
	if item.Duration != nil {
		minutes := int64(*item.Duration / time.Minute)
		row.DurationMinutes = &minutes
	}
	if item.Kind == domain.KindSubTask {
		epicID := item.EpicID
		row.EpicID = &epicID
	}
	return row
}

// Item rebuilds a validated item with its persisted id.
func (r Row) Item() (domain.Item, error) {
	id := r.ID
	in := domain.ItemInput{
		ID:          &id,
		Kind:        r.Kind,
		Name:        r.Name,
		Description: r.Description,
		Status:      r.Status,
		StartTime:   r.StartTime,
		EpicID:      domain.UnassignedID,
	}
	if r.DurationMinutes != nil {
		d, err := domain.MinutesDuration(*r.DurationMinutes)
		if err != nil {
			return domain.Item{}, fmt.Errorf("item %d: %w", r.ID, err)
		}
		in.Duration = &d
	}
	if r.EpicID != nil {
		in.EpicID = *r.EpicID
	}
	item, err := domain.NewItem(in)
	if err != nil {
		return domain.Item{}, fmt.Errorf("decode item %d: %w", r.ID, err)
	}
	return item, nil
}

// Items rebuilds every row, stopping at the first invalid one.
func Items(rows []Row) ([]domain.Item, error) {
	out := make([]domain.Item, 0, len(rows))
	for _, row := range rows {
		item, err := row.Item()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
