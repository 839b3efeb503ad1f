// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hylla/kanban/internal/adapters/server/common"
	"github.com/hylla/kanban/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	items common.ItemService
	mux   *http.ServeMux
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the item service.
func NewHandler(items common.ItemService) *Handler {
	h := &Handler{
		items: items,
		mux:   http.NewServeMux(),
	}
	for _, kind := range []domain.Kind{domain.KindTask, domain.KindSubTask, domain.KindEpic} {
		base := "/" + collectionName(kind)
		h.mux.HandleFunc(base, h.collection(kind))
		h.mux.HandleFunc(base+"/{id}", h.single(kind))
	}
	h.mux.HandleFunc("/tasks/{id}/status", h.handleStatus)
	h.mux.HandleFunc("/epics/{id}/subtasks", h.handleEpicSubTasks)
	h.mux.HandleFunc("/items", h.handleListAll)
	h.mux.HandleFunc("/history", h.readOnly(common.ItemService.History))
	h.mux.HandleFunc("/prioritized", h.readOnly(common.ItemService.Prioritized))
	h.mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	})
	return h
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.items == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "item service is not configured",
		})
		return
	}
	if r.URL.Path == "" {
		r.URL.Path = "/"
	}
	h.mux.ServeHTTP(w, r)
}

// collection serves `/tasks`, `/subtasks` and `/epics`.
func (h *Handler) collection(kind domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			items, err := h.items.ListItems(r.Context(), kind)
			if err != nil {
				writeErrorFrom(w, err)
				return
			}
			writeJSON(w, http.StatusOK, items)
		case http.MethodPost:
			h.handleWrite(w, r, kind, nil)
		case http.MethodDelete:
			if kind != domain.KindTask {
				writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
				return
			}
			if err := h.items.DeleteAll(r.Context()); err != nil {
				writeErrorFrom(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			if kind == domain.KindTask {
				writeMethodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
				return
			}
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	}
}

// single serves `/{collection}/{id}`.
func (h *Handler) single(kind domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			item, err := h.items.GetItem(r.Context(), id, kind)
			if err != nil {
				writeErrorFrom(w, err)
				return
			}
			writeJSON(w, http.StatusOK, item)
		case http.MethodPost, http.MethodPut:
			h.handleWrite(w, r, kind, &id)
		case http.MethodDelete:
			result, err := h.items.DeleteItem(r.Context(), id, kind)
			if err != nil {
				writeErrorFrom(w, err)
				return
			}
			writeJSON(w, http.StatusOK, result)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
		}
	}
}

// handleWrite adds an item, or updates one when an id is given in the path or body.
func (h *Handler) handleWrite(w http.ResponseWriter, r *http.Request, kind domain.Kind, id *int) {
	var req common.ItemRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if raw := strings.TrimSpace(req.Type); raw != "" {
		parsed, err := domain.ParseKind(raw)
		if err != nil || parsed != kind {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: fmt.Sprintf("type %q does not match %s endpoint", raw, collectionName(kind)),
			})
			return
		}
	}
	req.Type = string(kind)
	if id == nil {
		id = req.ID
	}
	if id == nil {
		item, err := h.items.AddItem(r.Context(), req)
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
		return
	}
	req.ID = id
	item, err := h.items.UpdateItem(r.Context(), *id, req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// statusRequest is the body of PUT `/tasks/{id}/status`.
type statusRequest struct {
	Status string `json:"status"`
}

// handleStatus serves PUT `/tasks/{id}/status` for tasks and subtasks.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w, http.MethodPut)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	item, err := h.items.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleEpicSubTasks serves GET `/epics/{id}/subtasks`.
func (h *Handler) handleEpicSubTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	items, err := h.items.ListEpicSubTasks(r.Context(), id)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// handleListAll serves GET `/items`.
func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	items, err := h.items.ListItems(r.Context(), "")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// readOnly serves one GET-only list endpoint.
func (h *Handler) readOnly(list func(common.ItemService, context.Context) ([]common.ItemView, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		items, err := list(h.items, r.Context())
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// collectionName maps one kind to its REST collection.
func collectionName(kind domain.Kind) string {
	return kind.Label() + "s"
}

// pathID parses the `{id}` path value, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.PathValue("id"))
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: fmt.Sprintf("invalid id %q", raw),
		})
		return 0, false
	}
	return id, true
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrScheduleConflict):
		writeJSONError(w, http.StatusNotAcceptable, APIError{
			Code:    "overlap",
			Message: err.Error(),
			Hint:    "Pick a start time outside every scheduled item's interval.",
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
