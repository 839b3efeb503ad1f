package domain

import (
	"fmt"
	"slices"
	"strings"
)

type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

var validStatuses = []Status{StatusNew, StatusInProgress, StatusDone}

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	return slices.Clone(validStatuses)
}

// ParseStatus accepts NEW, IN_PROGRESS and DONE in any case, with `-` or space as separator.
func ParseStatus(raw string) (Status, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	status := Status(normalized)
	if !slices.Contains(validStatuses, status) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

func (s Status) Valid() bool {
	return slices.Contains(validStatuses, s)
}

// Next cycles NEW -> IN_PROGRESS -> DONE -> NEW.
func (s Status) Next() Status {
	idx := slices.Index(validStatuses, s)
	if idx < 0 {
		return StatusNew
	}
	return validStatuses[(idx+1)%len(validStatuses)]
}

// DeriveEpicStatus computes an epic status from its subtask statuses.
func DeriveEpicStatus(statuses []Status) Status {
	if len(statuses) == 0 {
		return StatusNew
	}
	newCount, doneCount := 0, 0
	for _, status := range statuses {
		switch status {
		case StatusNew:
			newCount++
		case StatusDone:
			doneCount++
		}
	}
	switch {
	case newCount == len(statuses):
		return StatusNew
	case doneCount == len(statuses):
		return StatusDone
	default:
		return StatusInProgress
	}
}
