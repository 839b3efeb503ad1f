// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"

	"github.com/hylla/kanban/internal/domain"
)

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrInvalidRequest reports malformed or rejected input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrScheduleConflict reports an item whose time interval overlaps an existing one.
var ErrScheduleConflict = errors.New("schedule conflict")

// ErrConflict reports an id collision.
var ErrConflict = errors.New("conflict")

// ItemRequest carries the writable fields of one item.
type ItemRequest struct {
	ID              *int       `json:"id,omitempty"`
	Type            string     `json:"type,omitempty"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Status          string     `json:"status,omitempty"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	DurationMinutes *int64     `json:"duration_minutes,omitempty"`
	EpicID          *int       `json:"epic_id,omitempty"`
}

// ItemView is the transport rendering of one stored item.
type ItemView struct {
	ID              int        `json:"id"`
	Type            string     `json:"type"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Status          string     `json:"status"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	DurationMinutes *int64     `json:"duration_minutes,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	EpicID          *int       `json:"epic_id,omitempty"`
	SubTaskIDs      []int      `json:"subtask_ids,omitempty"`
}

// DeleteResult lists every id removed by one delete.
type DeleteResult struct {
	Deleted []int `json:"deleted"`
}

// ItemService is the store surface shared by every transport. An empty kind matches any item.
type ItemService interface {
	AddItem(context.Context, ItemRequest) (ItemView, error)
	GetItem(context.Context, int, domain.Kind) (ItemView, error)
	UpdateItem(context.Context, int, ItemRequest) (ItemView, error)
	DeleteItem(context.Context, int, domain.Kind) (DeleteResult, error)
	UpdateStatus(context.Context, int, string) (ItemView, error)
	ListItems(context.Context, domain.Kind) ([]ItemView, error)
	ListEpicSubTasks(context.Context, int) ([]ItemView, error)
	History(context.Context) ([]ItemView, error)
	Prioritized(context.Context) ([]ItemView, error)
	DeleteAll(context.Context) error
}
