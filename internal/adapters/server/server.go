// Package server mounts the REST and MCP transports of the item store on one listener.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hylla/kanban/internal/adapters/server/common"
	"github.com/hylla/kanban/internal/adapters/server/httpapi"
	"github.com/hylla/kanban/internal/adapters/server/mcpapi"
)

const (
	defaultBindAddress = "127.0.0.1:8080"
	defaultAPIEndpoint = "/api/v1"
	defaultMCPEndpoint = "/mcp"
	shutdownGrace      = 5 * time.Second
	readHeaderTimeout  = 10 * time.Second
)

// Config defines serve-mode endpoint configuration.
type Config struct {
	HTTPBind        string
	APIEndpoint     string
	MCPEndpoint     string
	CORSAllowOrigin string
	ServerName      string
	ServerVersion   string
}

// Dependencies carries the item service shared by both transports.
type Dependencies struct {
	Items  common.ItemService
	Logger *log.Logger
}

// NewHandler builds the root handler: probes, the REST API under APIEndpoint and MCP under MCPEndpoint.
// It returns the config with defaults applied.
func NewHandler(cfg Config, deps Dependencies) (http.Handler, Config, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, Config{}, err
	}
	if deps.Items == nil {
		return nil, Config{}, errors.New("item service dependency is required")
	}

	mcpHandler, err := mcpapi.NewHandler(mcpapi.Config{
		ServerName:    cfg.ServerName,
		ServerVersion: cfg.ServerVersion,
		EndpointPath:  cfg.MCPEndpoint,
	}, deps.Items)
	if err != nil {
		return nil, Config{}, fmt.Errorf("configure mcp handler: %w", err)
	}
	api := http.StripPrefix(cfg.APIEndpoint, httpapi.WithCORS(cfg.CORSAllowOrigin, httpapi.NewHandler(deps.Items)))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeProbe(w, http.StatusOK, probe{Status: "ok"})
	})
	mux.HandleFunc("/readyz", readiness(deps.Items))
	mux.Handle(cfg.MCPEndpoint, mcpHandler)
	mux.Handle(cfg.APIEndpoint, api)
	mux.Handle(cfg.APIEndpoint+"/", api)
	return httpapi.WithRequestLog(deps.Logger, mux), cfg, nil
}

// Run serves until ctx ends, then drains in-flight requests.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if ctx == nil {
		ctx = context.Background()
	}
	handler, cfg, err := NewHandler(cfg, deps)
	if err != nil {
		return fmt.Errorf("build server handler: %w", err)
	}
	ln, err := net.Listen("tcp", cfg.HTTPBind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPBind, err)
	}
	if deps.Logger != nil {
		deps.Logger.Info("http server listening", "addr", ln.Addr().String(), "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: readHeaderTimeout}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	shutdownErr := srv.Shutdown(drainCtx)
	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve during shutdown: %w", err)
	}
	if shutdownErr != nil {
		return fmt.Errorf("shutdown server: %w", shutdownErr)
	}
	if deps.Logger != nil {
		deps.Logger.Info("http server stopped")
	}
	return nil
}

// withDefaults fills blank fields and rejects colliding mounts.
func (c Config) withDefaults() (Config, error) {
	c.HTTPBind = orDefault(c.HTTPBind, defaultBindAddress)
	c.APIEndpoint = mountPath(c.APIEndpoint, defaultAPIEndpoint)
	c.MCPEndpoint = mountPath(c.MCPEndpoint, defaultMCPEndpoint)
	if c.APIEndpoint == c.MCPEndpoint {
		return Config{}, fmt.Errorf("api and mcp endpoints must differ, both are %q", c.APIEndpoint)
	}
	c.CORSAllowOrigin = orDefault(c.CORSAllowOrigin, "*")
	c.ServerName = orDefault(c.ServerName, "kanban")
	c.ServerVersion = orDefault(c.ServerVersion, "dev")
	return c, nil
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}

// mountPath cleans one endpoint into "/a/b" form. The root path falls back.
func mountPath(path, fallback string) string {
	path = "/" + strings.Trim(strings.TrimSpace(path), "/")
	if path == "/" {
		return fallback
	}
	return path
}

// probe is the JSON body of /healthz and /readyz.
type probe struct {
	Status string `json:"status"`
	Items  *int   `json:"items,omitempty"`
	Error  string `json:"error,omitempty"`
}

// readiness reports ready once the item store answers a full listing.
func readiness(items common.ItemService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := items.ListItems(r.Context(), "")
		if err != nil {
			writeProbe(w, http.StatusServiceUnavailable, probe{Status: "unavailable", Error: err.Error()})
			return
		}
		n := len(all)
		writeProbe(w, http.StatusOK, probe{Status: "ok", Items: &n})
	}
}

func writeProbe(w http.ResponseWriter, status int, body probe) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
