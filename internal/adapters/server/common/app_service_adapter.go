package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/kanban/internal/app"
	"github.com/hylla/kanban/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// AddItem creates one item. Any id in the request is ignored.
func (a *AppServiceAdapter) AddItem(ctx context.Context, in ItemRequest) (ItemView, error) {
	if err := a.ready(); err != nil {
		return ItemView{}, err
	}
	in.ID = nil
	item, err := itemFromRequest(in, "")
	if err != nil {
		return ItemView{}, mapAppError("add item", err)
	}
	created, err := a.service.AddItem(ctx, item)
	if err != nil {
		return ItemView{}, mapAppError("add item", err)
	}
	return MapItem(created), nil
}

// GetItem returns one item and records it in history.
func (a *AppServiceAdapter) GetItem(ctx context.Context, id int, kind domain.Kind) (ItemView, error) {
	if err := a.ready(); err != nil {
		return ItemView{}, err
	}
	var (
		item domain.Item
		err  error
	)
	if kind == "" {
		item, err = a.service.GetItem(ctx, id)
	} else {
		item, err = a.service.GetItemOfKind(ctx, id, kind)
	}
	if err != nil {
		return ItemView{}, mapAppError("get item", err)
	}
	return MapItem(item), nil
}

// UpdateItem replaces the item stored at id. An empty request type keeps the stored kind
// and a subtask without an epic id keeps its parent.
func (a *AppServiceAdapter) UpdateItem(ctx context.Context, id int, in ItemRequest) (ItemView, error) {
	if err := a.ready(); err != nil {
		return ItemView{}, err
	}
	existing, err := a.service.PeekItem(ctx, id)
	if err != nil {
		return ItemView{}, mapAppError("update item", err)
	}
	if in.EpicID == nil && existing.Kind == domain.KindSubTask {
		epicID := existing.EpicID
		in.EpicID = &epicID
	}
	item, err := itemFromRequest(in, existing.Kind)
	if err != nil {
		return ItemView{}, mapAppError("update item", err)
	}
	updated, err := a.service.UpdateItem(ctx, id, item)
	if err != nil {
		return ItemView{}, mapAppError("update item", err)
	}
	return MapItem(updated), nil
}

// DeleteItem removes one item, cascading to subtasks for epics.
func (a *AppServiceAdapter) DeleteItem(ctx context.Context, id int, kind domain.Kind) (DeleteResult, error) {
	if err := a.ready(); err != nil {
		return DeleteResult{}, err
	}
	if kind != "" {
		existing, err := a.service.PeekItem(ctx, id)
		if err != nil {
			return DeleteResult{}, mapAppError("delete item", err)
		}
		if existing.Kind != kind {
			return DeleteResult{}, mapAppError("delete item", fmt.Errorf("%s %d: %w", kind.Label(), id, domain.ErrNotFound))
		}
	}
	removed, err := a.service.DeleteItem(ctx, id)
	if err != nil {
		return DeleteResult{}, mapAppError("delete item", err)
	}
	return DeleteResult{Deleted: removed}, nil
}

// UpdateStatus sets one leaf item's status.
func (a *AppServiceAdapter) UpdateStatus(ctx context.Context, id int, status string) (ItemView, error) {
	if err := a.ready(); err != nil {
		return ItemView{}, err
	}
	parsed, err := domain.ParseStatus(status)
	if err != nil {
		return ItemView{}, mapAppError("update status", err)
	}
	item, err := a.service.UpdateStatus(ctx, id, parsed)
	if err != nil {
		return ItemView{}, mapAppError("update status", err)
	}
	return MapItem(item), nil
}

// ListItems lists items of one kind, or every item when kind is empty.
func (a *AppServiceAdapter) ListItems(ctx context.Context, kind domain.Kind) ([]ItemView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	var (
		items []domain.Item
		err   error
	)
	switch kind {
	case "":
		items, err = a.service.ListItems(ctx)
	case domain.KindEpic:
		items, err = a.service.ListEpics(ctx)
	case domain.KindSubTask:
		items, err = a.service.ListSubTasks(ctx)
	case domain.KindTask:
		items, err = a.service.ListItems(ctx)
		items = filterKind(items, domain.KindTask)
	default:
		err = fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}
	if err != nil {
		return nil, mapAppError("list items", err)
	}
	return MapItems(items), nil
}

// ListEpicSubTasks lists the subtasks of one epic.
func (a *AppServiceAdapter) ListEpicSubTasks(ctx context.Context, epicID int) ([]ItemView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	items, err := a.service.ListEpicSubTasks(ctx, epicID)
	if err != nil {
		return nil, mapAppError("list epic subtasks", err)
	}
	return MapItems(items), nil
}

// History lists viewed items, most recent last.
func (a *AppServiceAdapter) History(ctx context.Context) ([]ItemView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	items, err := a.service.History(ctx)
	if err != nil {
		return nil, mapAppError("history", err)
	}
	return MapItems(items), nil
}

// Prioritized lists scheduled leaf items by start time.
func (a *AppServiceAdapter) Prioritized(ctx context.Context) ([]ItemView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	items, err := a.service.Prioritized(ctx)
	if err != nil {
		return nil, mapAppError("prioritized", err)
	}
	return MapItems(items), nil
}

// DeleteAll removes every item.
func (a *AppServiceAdapter) DeleteAll(ctx context.Context) error {
	if err := a.ready(); err != nil {
		return err
	}
	return mapAppError("delete all", a.service.DeleteAll(ctx))
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return errors.New("app service adapter is not configured")
	}
	return nil
}

// MapItem renders one domain item for transport.
func MapItem(item domain.Item) ItemView {
	view := ItemView{
		ID:          item.ID,
		Type:        string(item.Kind),
		Name:        item.Name,
		Description: item.Description,
		Status:      string(item.Status),
		StartTime:   item.StartTime,
		EndTime:     item.EndTime(),
	}
	if item.Duration != nil {
		minutes := int64(*item.Duration / time.Minute)
		view.DurationMinutes = &minutes
	}
	switch item.Kind {
	case domain.KindSubTask:
		epicID := item.EpicID
		view.EpicID = &epicID
	case domain.KindEpic:
		view.SubTaskIDs = item.SubTaskIDs
	}
	return view
}

// MapItems renders a list of domain items for transport.
func MapItems(items []domain.Item) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, item := range items {
		out = append(out, MapItem(item))
	}
	return out
}

func filterKind(items []domain.Item, kind domain.Kind) []domain.Item {
	out := items[:0]
	for _, item := range items {
		if item.Kind == kind {
			out = append(out, item)
		}
	}
	return out
}

// itemFromRequest validates one request into a domain item.
func itemFromRequest(in ItemRequest, fallback domain.Kind) (domain.Item, error) {
	kind := fallback
	if raw := strings.TrimSpace(in.Type); raw != "" {
		parsed, err := domain.ParseKind(raw)
		if err != nil {
			return domain.Item{}, err
		}
		kind = parsed
	}
	var status domain.Status
	if raw := strings.TrimSpace(in.Status); raw != "" {
		parsed, err := domain.ParseStatus(raw)
		if err != nil {
			return domain.Item{}, err
		}
		status = parsed
	}
	itemIn := domain.ItemInput{
		ID:          in.ID,
		Kind:        kind,
		Name:        in.Name,
		Description: in.Description,
		Status:      status,
		StartTime:   in.StartTime,
		EpicID:      domain.UnassignedID,
	}
	if in.DurationMinutes != nil {
		d, err := domain.MinutesDuration(*in.DurationMinutes)
		if err != nil {
			return domain.Item{}, err
		}
		itemIn.Duration = &d
	}
	if in.EpicID != nil {
		itemIn.EpicID = *in.EpicID
	}
	return domain.NewItem(itemIn)
}

// mapAppError maps app/domain errors into transport-layer error sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnknownEpic),
		errors.Is(err, domain.ErrNotAnEpic):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, domain.ErrOverlap):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrScheduleConflict, err))
	case errors.Is(err, domain.ErrDuplicateID):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, domain.ErrTypeMismatch),
		errors.Is(err, domain.ErrImmutableDerivedField),
		errors.Is(err, domain.ErrEpicReassignment),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidDuration):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
