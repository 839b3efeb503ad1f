package domain

import "errors"

var (
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidKind     = errors.New("invalid kind")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrDuplicateID     = errors.New("duplicate id")
)

// Store-level failures. Every one of them leaves the store unchanged.
var (
	ErrNotFound              = errors.New("not found")
	ErrUnknownEpic           = errors.New("unknown epic")
	ErrOverlap               = errors.New("task overlaps in time with another task")
	ErrTypeMismatch          = errors.New("item type mismatch")
	ErrImmutableDerivedField = errors.New("epic status is derived from its subtasks")
	ErrNotAnEpic             = errors.New("not an epic")
	ErrEpicReassignment      = errors.New("subtask epic cannot change")
)
