package app

import (
	"context"

	"github.com/hylla/kanban/internal/domain"
)

// Repository persists full point-in-time snapshots of the store.
type Repository interface {
	// LoadItems returns every persisted item with its explicit id.
	LoadItems(context.Context) ([]domain.Item, error)
	// SaveItems replaces the persisted state with items.
	SaveItems(context.Context, []domain.Item) error
}
