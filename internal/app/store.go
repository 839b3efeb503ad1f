package app

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/hylla/kanban/internal/domain"
)

// Store is the in-memory task store. It owns the id counter, the id index,
// epic ownership, the start-time priority index, and the view history.
// All methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	nextID   int
	items    map[int]*domain.Item
	subtasks map[int]map[int]struct{}
	priority []priorityEntry
	history  *History
}

// priorityEntry orders leaf items by start time, then id.
type priorityEntry struct {
	start time.Time
	id    int
}

func comparePriority(a, b priorityEntry) int {
	if c := a.start.Compare(b.start); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

// NewStore constructs an empty store. historyLimit <= 0 keeps every viewed id.
func NewStore(historyLimit int) *Store {
	return &Store{
		items:    map[int]*domain.Item{},
		subtasks: map[int]map[int]struct{}{},
		history:  NewHistory(historyLimit),
	}
}

// Add inserts item, assigning the next id when item.ID is domain.UnassignedID.
func (s *Store) Add(item domain.Item) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(item, true)
}

func (s *Store) add(item domain.Item, checkOverlap bool) (domain.Item, error) {
	if !item.Kind.Valid() {
		return domain.Item{}, fmt.Errorf("%w: %q", domain.ErrInvalidKind, item.Kind)
	}
	if item.ID < domain.UnassignedID {
		return domain.Item{}, fmt.Errorf("%w: %d", domain.ErrInvalidID, item.ID)
	}
	if item.Kind != domain.KindEpic && !item.Status.Valid() {
		return domain.Item{}, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, item.Status)
	}
	if item.ID != domain.UnassignedID {
		if _, exists := s.items[item.ID]; exists {
			return domain.Item{}, fmt.Errorf("%w: %d", domain.ErrDuplicateID, item.ID)
		}
	}
	if item.Kind == domain.KindSubTask && !s.isEpic(item.EpicID) {
		return domain.Item{}, fmt.Errorf("%w: %d", domain.ErrUnknownEpic, item.EpicID)
	}
	if checkOverlap {
		if conflict, ok := s.findOverlap(item); ok {
			return domain.Item{}, fmt.Errorf("%w: conflicts with item %d", domain.ErrOverlap, conflict)
		}
	}

	stored := item.Clone()
	if stored.ID == domain.UnassignedID {
		stored.ID = s.nextID
	}
	s.nextID = max(s.nextID, stored.ID+1)

	switch stored.Kind {
	case domain.KindEpic:
		stored.EpicID = domain.UnassignedID
		s.items[stored.ID] = &stored
		s.subtasks[stored.ID] = map[int]struct{}{}
		s.rollupEpic(stored.ID)
	case domain.KindSubTask:
		stored.SubTaskIDs = nil
		s.items[stored.ID] = &stored
		s.subtasks[stored.EpicID][stored.ID] = struct{}{}
		s.index(stored)
		s.rollupEpic(stored.EpicID)
	default:
		stored.EpicID = domain.UnassignedID
		stored.SubTaskIDs = nil
		s.items[stored.ID] = &stored
		s.index(stored)
	}
	return s.items[stored.ID].Clone(), nil
}

// Get returns the item and records it in the view history.
func (s *Store) Get(id int) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return domain.Item{}, fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	s.history.Record(id)
	return item.Clone(), nil
}

// GetOfKind behaves like Get but reports ErrNotFound, without touching
// history, when the item exists with a different kind.
func (s *Store) GetOfKind(id int, kind domain.Kind) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok || item.Kind != kind {
		return domain.Item{}, fmt.Errorf("%s %d: %w", kind.Label(), id, domain.ErrNotFound)
	}
	s.history.Record(id)
	return item.Clone(), nil
}

// Peek returns the item without recording history.
func (s *Store) Peek(id int) (domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return domain.Item{}, fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	return item.Clone(), nil
}

// Update replaces the item stored at id. The replacement keeps id and must be
// of the same kind. Overlap is not re-validated on this path. Update does not
// touch history: an already viewed item keeps its place, since only Get
// records views.
func (s *Store) Update(id int, item domain.Item) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[id]
	if !ok {
		return domain.Item{}, fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	if existing.Kind != item.Kind {
		return domain.Item{}, fmt.Errorf("%w: cannot update %s %d to %s", domain.ErrTypeMismatch, existing.Kind.Label(), id, item.Kind.Label())
	}
	replacement := item.Clone()
	replacement.ID = id
	switch replacement.Kind {
	case domain.KindEpic:
		replacement.EpicID = domain.UnassignedID
	case domain.KindSubTask:
		if replacement.EpicID == domain.UnassignedID {
			replacement.EpicID = existing.EpicID
		}
		if replacement.EpicID != existing.EpicID {
			if !s.isEpic(replacement.EpicID) {
				return domain.Item{}, fmt.Errorf("%w: %d", domain.ErrUnknownEpic, replacement.EpicID)
			}
			return domain.Item{}, fmt.Errorf("%w: subtask %d belongs to epic %d", domain.ErrEpicReassignment, id, existing.EpicID)
		}
		replacement.SubTaskIDs = nil
	default:
		replacement.EpicID = domain.UnassignedID
		replacement.SubTaskIDs = nil
	}
	if replacement.Kind != domain.KindEpic && !replacement.Status.Valid() {
		return domain.Item{}, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, replacement.Status)
	}

	s.unindex(*existing)
	s.items[id] = &replacement
	switch replacement.Kind {
	case domain.KindEpic:
		s.rollupEpic(id)
	case domain.KindSubTask:
		s.index(replacement)
		s.rollupEpic(replacement.EpicID)
	default:
		s.index(replacement)
	}
	return s.items[id].Clone(), nil
}

// Delete removes the item. Deleting an epic cascades to its subtasks.
// It returns every removed id, subtasks first.
func (s *Store) Delete(id int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	removed := make([]int, 0, 1)
	switch existing.Kind {
	case domain.KindEpic:
		for _, subID := range slices.Sorted(maps.Keys(s.subtasks[id])) {
			s.remove(subID)
			removed = append(removed, subID)
		}
		delete(s.subtasks, id)
		s.remove(id)
	case domain.KindSubTask:
		epicID := existing.EpicID
		delete(s.subtasks[epicID], id)
		s.remove(id)
		s.rollupEpic(epicID)
	default:
		s.remove(id)
	}
	return append(removed, id), nil
}

// UpdateStatus sets a leaf item's status. Epic status is derived and cannot be set.
func (s *Store) UpdateStatus(id int, status domain.Status) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[id]
	if !ok {
		return domain.Item{}, fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	updated := existing.Clone()
	if err := updated.SetStatus(status); err != nil {
		return domain.Item{}, fmt.Errorf("item %d: %w", id, err)
	}
	s.items[id] = &updated
	if updated.Kind == domain.KindSubTask {
		s.rollupEpic(updated.EpicID)
	}
	return updated.Clone(), nil
}

// All returns every item ordered by id.
func (s *Store) All() []domain.Item {
	return s.filter(func(domain.Item) bool { return true })
}

// Epics returns every epic ordered by id.
func (s *Store) Epics() []domain.Item {
	return s.filter(func(item domain.Item) bool { return item.Kind == domain.KindEpic })
}

// SubTasks returns every subtask ordered by id.
func (s *Store) SubTasks() []domain.Item {
	return s.filter(func(item domain.Item) bool { return item.Kind == domain.KindSubTask })
}

// EpicSubTasks returns the subtasks owned by epicID ordered by id.
func (s *Store) EpicSubTasks(epicID int) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[epicID]
	if !ok {
		return nil, fmt.Errorf("epic %d: %w", epicID, domain.ErrNotFound)
	}
	if item.Kind != domain.KindEpic {
		return nil, fmt.Errorf("item %d: %w", epicID, domain.ErrNotAnEpic)
	}
	ids := slices.Sorted(maps.Keys(s.subtasks[epicID]))
	out := make([]domain.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.items[id].Clone())
	}
	return out, nil
}

// Prioritized returns scheduled leaf items ordered by start time, ties by id.
func (s *Store) Prioritized() []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Item, 0, len(s.priority))
	for _, entry := range s.priority {
		out = append(out, s.items[entry.id].Clone())
	}
	return out
}

// History returns viewed items, most recently viewed last.
func (s *Store) History() []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.history.IDs()
	out := make([]domain.Item, 0, len(ids))
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			out = append(out, item.Clone())
		}
	}
	return out
}

// DeleteAll clears items, indices and history. The id counter keeps counting.
func (s *Store) DeleteAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = map[int]*domain.Item{}
	s.subtasks = map[int]map[int]struct{}{}
	s.priority = nil
	s.history.Clear()
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Load replaces the store contents with previously persisted items. Every item
// needs an explicit id. Epics are inserted first so subtask references
// resolve; overlap is not re-checked since the data was accepted before.
// On error the store is left untouched.
func (s *Store) Load(items []domain.Item) error {
	staged, err := stage(items, 0)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = staged.items
	s.subtasks = staged.subtasks
	s.priority = staged.priority
	s.nextID = max(s.nextID, staged.nextID)
	s.history.Clear()
	return nil
}

// stage builds a detached store from items with explicit ids.
func stage(items []domain.Item, historyLimit int) (*Store, error) {
	ordered := slices.Clone(items)
	slices.SortStableFunc(ordered, func(a, b domain.Item) int {
		aEpic, bEpic := a.Kind == domain.KindEpic, b.Kind == domain.KindEpic
		switch {
		case aEpic && !bEpic:
			return -1
		case bEpic && !aEpic:
			return 1
		default:
			return cmp.Compare(a.ID, b.ID)
		}
	})

	staged := NewStore(historyLimit)
	for _, item := range ordered {
		if item.ID == domain.UnassignedID {
			return nil, fmt.Errorf("load %s %q: %w", item.Kind.Label(), item.Name, domain.ErrInvalidID)
		}
		if _, err := staged.add(item, false); err != nil {
			return nil, fmt.Errorf("load item %d: %w", item.ID, err)
		}
	}
	return staged, nil
}

// checkpoint is a copy of everything a mutation can change.
type checkpoint struct {
	nextID  int
	items   []domain.Item
	history []int
}

func (s *Store) checkpoint() checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]domain.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item.Clone())
	}
	return checkpoint{nextID: s.nextID, items: items, history: s.history.IDs()}
}

// restore puts the store back to cp, including the id counter and history order.
func (s *Store) restore(cp checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged, err := stage(cp.items, s.history.limit)
	if err != nil {
		return err
	}
	for _, id := range cp.history {
		staged.history.Record(id)
	}
	s.items = staged.items
	s.subtasks = staged.subtasks
	s.priority = staged.priority
	s.history = staged.history
	s.nextID = cp.nextID
	return nil
}

func (s *Store) filter(keep func(domain.Item) bool) []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Item, 0, len(s.items))
	for _, id := range slices.Sorted(maps.Keys(s.items)) {
		if item := s.items[id]; keep(*item) {
			out = append(out, item.Clone())
		}
	}
	return out
}

func (s *Store) isEpic(id int) bool {
	item, ok := s.items[id]
	return ok && item.Kind == domain.KindEpic
}

func (s *Store) findOverlap(candidate domain.Item) (int, bool) {
	if !candidate.HasInterval() {
		return 0, false
	}
	for _, entry := range s.priority {
		if domain.Overlaps(candidate, *s.items[entry.id]) {
			return entry.id, true
		}
	}
	return 0, false
}

func (s *Store) remove(id int) {
	if item, ok := s.items[id]; ok {
		s.unindex(*item)
	}
	delete(s.items, id)
	s.history.Evict(id)
}

func (s *Store) rollupEpic(epicID int) {
	epic, ok := s.items[epicID]
	if !ok {
		return
	}
	subs := make([]domain.Item, 0, len(s.subtasks[epicID]))
	for subID := range s.subtasks[epicID] {
		subs = append(subs, *s.items[subID])
	}
	_ = epic.Rollup(subs)
}

func (s *Store) index(item domain.Item) {
	if !item.Kind.IsLeaf() || item.StartTime == nil {
		return
	}
	entry := priorityEntry{start: *item.StartTime, id: item.ID}
	pos, found := slices.BinarySearchFunc(s.priority, entry, comparePriority)
	if found {
		return
	}
	s.priority = slices.Insert(s.priority, pos, entry)
}

func (s *Store) unindex(item domain.Item) {
	if !item.Kind.IsLeaf() || item.StartTime == nil {
		return
	}
	entry := priorityEntry{start: *item.StartTime, id: item.ID}
	if pos, found := slices.BinarySearchFunc(s.priority, entry, comparePriority); found {
		s.priority = slices.Delete(s.priority, pos, pos+1)
	}
}
