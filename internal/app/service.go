package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hylla/kanban/internal/domain"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	HistoryLimit int
	Logger       *log.Logger
}

// Clock returns the current time.
type Clock func() time.Time

// Service serializes store mutations and persists a snapshot after each one.
// A mutation whose snapshot cannot be saved is rolled back, so callers that see
// ErrPersist can rely on the store being unchanged, id counter included.
type Service struct {
	store   *Store
	repo    Repository
	clock   Clock
	logger  *log.Logger
	writeMu sync.Mutex
}

// NewService constructs a service. A nil repo keeps state in memory only.
func NewService(repo Repository, clock Clock, cfg ServiceConfig) *Service {
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{
		store:  NewStore(cfg.HistoryLimit),
		repo:   repo,
		clock:  clock,
		logger: logger,
	}
}

// Load restores persisted items without writing them back.
func (s *Service) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	items, err := s.repo.LoadItems(ctx)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	if err := s.store.Load(items); err != nil {
		return err
	}
	s.logger.Info("store loaded", "items", len(items))
	return nil
}

// AddItem adds one item.
func (s *Service) AddItem(ctx context.Context, item domain.Item) (domain.Item, error) {
	return mutate(ctx, s, "add", func() (domain.Item, error) {
		return s.store.Add(item)
	})
}

// GetItem returns one item and records it in history.
func (s *Service) GetItem(_ context.Context, id int) (domain.Item, error) {
	return s.store.Get(id)
}

// GetItemOfKind returns one item of the requested kind and records it in history.
func (s *Service) GetItemOfKind(_ context.Context, id int, kind domain.Kind) (domain.Item, error) {
	return s.store.GetOfKind(id, kind)
}

// PeekItem returns one item without recording history.
func (s *Service) PeekItem(_ context.Context, id int) (domain.Item, error) {
	return s.store.Peek(id)
}

// UpdateItem replaces the item stored at id.
func (s *Service) UpdateItem(ctx context.Context, id int, item domain.Item) (domain.Item, error) {
	return mutate(ctx, s, "update", func() (domain.Item, error) {
		return s.store.Update(id, item)
	})
}

// DeleteItem deletes one item and returns every removed id.
func (s *Service) DeleteItem(ctx context.Context, id int) ([]int, error) {
	return mutate(ctx, s, "delete", func() ([]int, error) {
		return s.store.Delete(id)
	})
}

// UpdateStatus sets one leaf item's status.
func (s *Service) UpdateStatus(ctx context.Context, id int, status domain.Status) (domain.Item, error) {
	return mutate(ctx, s, "update_status", func() (domain.Item, error) {
		return s.store.UpdateStatus(id, status)
	})
}

// DeleteAll removes every item and clears history.
func (s *Service) DeleteAll(ctx context.Context) error {
	_, err := mutate(ctx, s, "delete_all", func() (int, error) {
		count := s.store.Len()
		s.store.DeleteAll()
		return count, nil
	})
	return err
}

// ListItems lists every item.
func (s *Service) ListItems(context.Context) ([]domain.Item, error) {
	return s.store.All(), nil
}

// ListEpics lists every epic.
func (s *Service) ListEpics(context.Context) ([]domain.Item, error) {
	return s.store.Epics(), nil
}

// ListSubTasks lists every subtask.
func (s *Service) ListSubTasks(context.Context) ([]domain.Item, error) {
	return s.store.SubTasks(), nil
}

// ListEpicSubTasks lists the subtasks of one epic.
func (s *Service) ListEpicSubTasks(_ context.Context, epicID int) ([]domain.Item, error) {
	return s.store.EpicSubTasks(epicID)
}

// Prioritized lists scheduled leaf items by start time.
func (s *Service) Prioritized(context.Context) ([]domain.Item, error) {
	return s.store.Prioritized(), nil
}

// History lists viewed items, most recent last.
func (s *Service) History(context.Context) ([]domain.Item, error) {
	return s.store.History(), nil
}

// mutate runs one store mutation and persists the resulting snapshot before
// another mutation may start. A failed save restores the pre-mutation state.
func mutate[T any](ctx context.Context, s *Service, op string, fn func() (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return zero, err
	}
	var before checkpoint
	if s.repo != nil {
		before = s.store.checkpoint()
	}
	out, err := fn()
	if err != nil {
		s.logger.Debug("mutation rejected", "op", op, "err", err)
		return zero, err
	}
	s.logger.Debug("mutation applied", "op", op)
	if err := s.persist(ctx, op); err != nil {
		if restoreErr := s.store.restore(before); restoreErr != nil {
			s.logger.Error("rollback after persist failure failed", "op", op, "err", restoreErr)
			return zero, errors.Join(err, restoreErr)
		}
		s.logger.Warn("mutation rolled back", "op", op)
		return zero, err
	}
	return out, nil
}

func (s *Service) persist(ctx context.Context, op string) error {
	if s.repo == nil {
		return nil
	}
	snapshot := s.store.All()
	if err := s.repo.SaveItems(ctx, snapshot); err != nil {
		s.logger.Error("persist snapshot failed", "op", op, "items", len(snapshot), "err", err)
		return fmt.Errorf("%s: %w", op, errors.Join(ErrPersist, err))
	}
	return nil
}
