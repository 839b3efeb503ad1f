package domain

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// UnassignedID marks an item whose id the store must assign.
const UnassignedID = -1

// Item is one work item. Kind selects the variant; EpicID is only meaningful
// for subtasks and SubTaskIDs only for epics.
type Item struct {
	ID          int
	Kind        Kind
	Name        string
	Description string
	Status      Status
	StartTime   *time.Time
	Duration    *time.Duration
	EpicID      int
	SubTaskIDs  []int

	// epicEnd is the derived end of an epic span, written only by Rollup.
	epicEnd *time.Time
}

type ItemInput struct {
	ID          *int
	Kind        Kind
	Name        string
	Description string
	Status      Status
	StartTime   *time.Time
	Duration    *time.Duration
	EpicID      int
}

func NewItem(in ItemInput) (Item, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)

	if !in.Kind.Valid() {
		return Item{}, fmt.Errorf("%w: %q", ErrInvalidKind, in.Kind)
	}
	if in.Name == "" {
		return Item{}, ErrInvalidName
	}
	id := UnassignedID
	if in.ID != nil {
		id = *in.ID
	}
	if id < UnassignedID {
		return Item{}, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	if in.Status == "" {
		in.Status = StatusNew
	}
	if !in.Status.Valid() {
		return Item{}, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
	}
	if in.Duration != nil && *in.Duration < 0 {
		return Item{}, ErrInvalidDuration
	}

	item := Item{
		ID:          id,
		Kind:        in.Kind,
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
		EpicID:      UnassignedID,
	}
	switch in.Kind {
	case KindEpic:
		// Status and span are recomputed from subtasks once the epic is stored.
		item.Status = StatusNew
	case KindSubTask:
		if in.EpicID < 0 {
			return Item{}, fmt.Errorf("%w: %d", ErrUnknownEpic, in.EpicID)
		}
		item.EpicID = in.EpicID
		fallthrough
	default:
		item.StartTime = normalizeStart(in.StartTime)
		item.Duration = normalizeDuration(in.Duration)
	}
	return item, nil
}

// EndTime is StartTime+Duration for leaf items and the derived span end for epics.
func (i Item) EndTime() *time.Time {
	if i.Kind == KindEpic {
		return copyTime(i.epicEnd)
	}
	if i.StartTime == nil || i.Duration == nil {
		return nil
	}
	end := i.StartTime.Add(*i.Duration)
	return &end
}

// HasInterval reports whether the item takes part in overlap validation.
func (i Item) HasInterval() bool {
	return i.Kind.IsLeaf() && i.StartTime != nil && i.Duration != nil
}

// Same reports identity equality: same id and same variant.
func (i Item) Same(other Item) bool {
	return i.ID == other.ID && i.Kind == other.Kind
}

func (i *Item) SetStatus(status Status) error {
	if i.Kind == KindEpic {
		return ErrImmutableDerivedField
	}
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	i.Status = status
	return nil
}

// Rollup recomputes an epic's status, span and subtask ids from subs.
func (i *Item) Rollup(subs []Item) error {
	if i.Kind != KindEpic {
		return ErrNotAnEpic
	}
	statuses := make([]Status, 0, len(subs))
	ids := make([]int, 0, len(subs))
	var start, end *time.Time
	for _, sub := range subs {
		statuses = append(statuses, sub.Status)
		ids = append(ids, sub.ID)
		if !sub.HasInterval() {
			continue
		}
		subEnd := sub.EndTime()
		if start == nil || sub.StartTime.Before(*start) {
			start = copyTime(sub.StartTime)
		}
		if end == nil || subEnd.After(*end) {
			end = subEnd
		}
	}
	slices.Sort(ids)
	i.Status = DeriveEpicStatus(statuses)
	i.SubTaskIDs = ids
	i.StartTime = start
	i.epicEnd = end
	i.Duration = nil
	return nil
}

func (i Item) Clone() Item {
	out := i
	out.StartTime = copyTime(i.StartTime)
	out.epicEnd = copyTime(i.epicEnd)
	if i.Duration != nil {
		d := *i.Duration
		out.Duration = &d
	}
	out.SubTaskIDs = slices.Clone(i.SubTaskIDs)
	return out
}

// Overlaps reports whether two leaf items' [start, start+duration) intervals intersect.
// Items without a full schedule never overlap.
func Overlaps(a, b Item) bool {
	if !a.HasInterval() || !b.HasInterval() {
		return false
	}
	return a.StartTime.Before(*b.EndTime()) && b.StartTime.Before(*a.EndTime())
}

func normalizeStart(start *time.Time) *time.Time {
	if start == nil {
		return nil
	}
	ts := start.UTC().Truncate(time.Second)
	return &ts
}

// MaxDurationMinutes is the largest minute count a time.Duration can hold.
const MaxDurationMinutes = math.MaxInt64 / int64(time.Minute)

// MinutesDuration converts a whole-minute count, rejecting negative values and
// values that would overflow time.Duration.
func MinutesDuration(minutes int64) (time.Duration, error) {
	if minutes < 0 || minutes > MaxDurationMinutes {
		return 0, fmt.Errorf("%w: %d minutes", ErrInvalidDuration, minutes)
	}
	return time.Duration(minutes) * time.Minute, nil
}

// Durations are tracked in whole minutes.
func normalizeDuration(d *time.Duration) *time.Duration {
	if d == nil {
		return nil
	}
	out := d.Truncate(time.Minute)
	return &out
}

func copyTime(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}
