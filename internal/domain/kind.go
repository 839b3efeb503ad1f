package domain

import (
	"fmt"
	"strings"
)

// Kind tags the work-item variant.
type Kind string

const (
	KindTask    Kind = "TASK"
	KindEpic    Kind = "EPIC"
	KindSubTask Kind = "SUBTASK"
)

// Capabilities describes which optional structure a kind carries.
type Capabilities struct {
	HasSchedule bool
	IsContainer bool
	HasOwner    bool
}

var kindCapabilities = map[Kind]Capabilities{
	KindTask:    {HasSchedule: true},
	KindEpic:    {IsContainer: true},
	KindSubTask: {HasSchedule: true, HasOwner: true},
}

// Kinds returns every kind in display order.
func Kinds() []Kind {
	return []Kind{KindTask, KindEpic, KindSubTask}
}

// ParseKind accepts kind names in any case; "sub-task" and "sub_task" are aliases for SUBTASK.
func ParseKind(raw string) (Kind, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)
	kind := Kind(normalized)
	if _, ok := kindCapabilities[kind]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, raw)
	}
	return kind, nil
}

func (k Kind) Valid() bool {
	_, ok := kindCapabilities[k]
	return ok
}

func (k Kind) Capabilities() Capabilities {
	return kindCapabilities[k]
}

// IsLeaf reports whether items of this kind carry their own schedule.
func (k Kind) IsLeaf() bool {
	return k.Capabilities().HasSchedule
}

// Label returns the lower-case display label.
func (k Kind) Label() string {
	switch k {
	case KindSubTask:
		return "subtask"
	default:
		return strings.ToLower(string(k))
	}
}
