// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hylla/kanban/internal/adapters/server/common"
	"github.com/hylla/kanban/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// itemTypes lists the accepted `type` argument values.
var itemTypes = []string{string(domain.KindTask), string(domain.KindEpic), string(domain.KindSubTask)}

// itemStatuses lists the accepted `status` argument values.
var itemStatuses = []string{string(domain.StatusNew), string(domain.StatusInProgress), string(domain.StatusDone)}

// NewHandler builds one stateless MCP adapter exposing one tool per store operation.
func NewHandler(cfg Config, items common.ItemService) (*Handler, error) {
	if items == nil {
		return nil, fmt.Errorf("item service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerItemTools(mcpSrv, items)
	registerReadTools(mcpSrv, items)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "kanban"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// itemFieldOptions declares the writable item fields shared by add and update.
func itemFieldOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("description", mcp.Description("Free-form description")),
		mcp.WithString("status", mcp.Description("Leaf status, ignored for epics"), mcp.Enum(itemStatuses...)),
		mcp.WithString("start_time", mcp.Description("RFC3339 start time")),
		mcp.WithNumber("duration_minutes", mcp.Description("Duration in whole minutes")),
		mcp.WithNumber("epic_id", mcp.Description("Parent epic id, required for subtasks")),
	}
}

// registerItemTools registers add/update/delete/status tools.
func registerItemTools(srv *mcpserver.MCPServer, items common.ItemService) {
	addOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Add one task, epic or subtask. Rejects scheduled items that overlap an existing interval."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Item type"), mcp.Enum(itemTypes...)),
		mcp.WithString("name", mcp.Required(), mcp.Description("Item name")),
	}, itemFieldOptions()...)
	srv.AddTool(
		mcp.NewTool("kanban.add_item", addOpts...),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			in, err := itemRequestFromArgs(req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if _, err := req.RequireString("type"); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			item, err := items.AddItem(ctx, in)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("add_item", item)
		},
	)

	updateOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Replace one item by id. Epic status and schedule stay derived from subtasks."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithString("type", mcp.Description("Item type, defaults to the stored type"), mcp.Enum(itemTypes...)),
		mcp.WithString("name", mcp.Required(), mcp.Description("Item name")),
	}, itemFieldOptions()...)
	srv.AddTool(
		mcp.NewTool("kanban.update_item", updateOpts...),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireInt("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			in, err := itemRequestFromArgs(req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			item, err := items.UpdateItem(ctx, id, in)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("update_item", item)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kanban.delete_item",
			mcp.WithDescription("Delete one item by id. Deleting an epic deletes its subtasks."),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Item id")),
			mcp.WithString("type", mcp.Description("Only delete when the item has this type"), mcp.Enum(itemTypes...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireInt("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			kind, err := kindArg(req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			result, err := items.DeleteItem(ctx, id, kind)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("delete_item", result)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kanban.update_status",
			mcp.WithDescription("Set the status of one task or subtask."),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Item id")),
			mcp.WithString("status", mcp.Required(), mcp.Description("New status"), mcp.Enum(itemStatuses...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireInt("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			status, err := req.RequireString("status")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			item, err := items.UpdateStatus(ctx, id, status)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("update_status", item)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kanban.delete_all",
			mcp.WithDescription("Delete every item and clear history. Ids are never reused."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if err := items.DeleteAll(ctx); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("delete_all", map[string]any{"deleted": true})
		},
	)
}

// registerReadTools registers get/list/history/prioritized tools.
func registerReadTools(srv *mcpserver.MCPServer, items common.ItemService) {
	srv.AddTool(
		mcp.NewTool(
			"kanban.get_item",
			mcp.WithDescription("Return one item by id and record it in the view history."),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Item id")),
			mcp.WithString("type", mcp.Description("Only match items of this type"), mcp.Enum(itemTypes...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireInt("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			kind, err := kindArg(req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			item, err := items.GetItem(ctx, id, kind)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_item", item)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kanban.list_items",
			mcp.WithDescription("List items ordered by id, optionally of one type."),
			mcp.WithString("type", mcp.Description("Item type filter"), mcp.Enum(itemTypes...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			kind, err := kindArg(req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			rows, err := items.ListItems(ctx, kind)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_items", map[string]any{"items": rows})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kanban.list_epic_subtasks",
			mcp.WithDescription("List the subtasks of one epic."),
			mcp.WithNumber("epic_id", mcp.Required(), mcp.Description("Epic id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			epicID, err := req.RequireInt("epic_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			rows, err := items.ListEpicSubTasks(ctx, epicID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_epic_subtasks", map[string]any{"items": rows})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kanban.history",
			mcp.WithDescription("List recently viewed items, oldest first."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := items.History(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("history", map[string]any{"items": rows})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kanban.prioritized",
			mcp.WithDescription("List scheduled tasks and subtasks ordered by start time."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := items.Prioritized(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("prioritized", map[string]any{"items": rows})
		},
	)
}

// jsonResult encodes one tool payload.
func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// kindArg parses the optional `type` argument.
func kindArg(req mcp.CallToolRequest) (domain.Kind, error) {
	raw := strings.TrimSpace(req.GetString("type", ""))
	if raw == "" {
		return "", nil
	}
	return domain.ParseKind(raw)
}

// itemRequestFromArgs maps tool arguments onto one item request.
func itemRequestFromArgs(req mcp.CallToolRequest) (common.ItemRequest, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return common.ItemRequest{}, err
	}
	in := common.ItemRequest{
		Type:        req.GetString("type", ""),
		Name:        name,
		Description: req.GetString("description", ""),
		Status:      req.GetString("status", ""),
	}
	args := req.GetArguments()
	if raw := strings.TrimSpace(req.GetString("start_time", "")); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return common.ItemRequest{}, fmt.Errorf("start_time must be RFC3339: %w", err)
		}
		in.StartTime = &start
	}
	if _, ok := args["duration_minutes"]; ok {
		minutes := int64(req.GetInt("duration_minutes", 0))
		in.DurationMinutes = &minutes
	}
	if _, ok := args["epic_id"]; ok {
		epicID := req.GetInt("epic_id", domain.UnassignedID)
		in.EpicID = &epicID
	}
	return in, nil
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrScheduleConflict):
		return mcp.NewToolResultError("overlap: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
