package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/hylla/kanban/internal/adapters/server"
	"github.com/hylla/kanban/internal/adapters/storage/csvfile"
	"github.com/hylla/kanban/internal/adapters/storage/postgres"
	"github.com/hylla/kanban/internal/adapters/storage/sqlite"
	"github.com/hylla/kanban/internal/app"
	"github.com/hylla/kanban/internal/config"
	"github.com/hylla/kanban/internal/platform"
	"github.com/spf13/cobra"
)

// version stores a package-level helper value.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg server.Config, deps server.Dependencies) error {
	return server.Run(ctx, cfg, deps)
}

func main() {
	root := newRootCommand(newCLI(os.Stdout, os.Stderr))
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}

// run executes one command line without fang styling.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(newCLI(stdout, stderr))
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SilenceUsage = true
	return root.ExecuteContext(ctx)
}

// cli holds global flag values and the runtime resolved for one command.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	dbPath     string
	appName    string
	backend    string
	devMode    bool

	paths  platform.Paths
	cfg    config.Config
	logger *runtimeLogger
	svc    *app.Service
	close  []func() error
}

func newCLI(stdout, stderr io.Writer) *cli {
	appName := "kanban"
	if envApp := strings.TrimSpace(os.Getenv("KANBAN_APP_NAME")); envApp != "" {
		appName = envApp
	}
	devMode := version == "dev"
	if envDev, ok := parseBoolEnv("KANBAN_DEV_MODE"); ok {
		devMode = envDev
	}
	return &cli{
		stdout:  stdout,
		stderr:  stderr,
		appName: appName,
		devMode: devMode,
	}
}

// resolvePaths resolves platform paths for the current app name and mode.
func (c *cli) resolvePaths() error {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: c.appName,
		DevMode: c.devMode,
	})
	if err != nil {
		return err
	}
	c.paths = paths
	return nil
}

// loadConfig resolves the config path and database overrides.
func (c *cli) loadConfig() error {
	if err := c.resolvePaths(); err != nil {
		return err
	}
	configPath := strings.TrimSpace(c.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("KANBAN_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = c.paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(c.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("KANBAN_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = c.paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Storage.Path = dbPath
	}
	if dsn := strings.TrimSpace(os.Getenv("KANBAN_POSTGRES_DSN")); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if backend := strings.TrimSpace(c.backend); backend != "" {
		cfg.Storage.Backend = config.Backend(strings.ToLower(backend))
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %q: %w", configPath, err)
	}
	c.configPath = configPath
	c.cfg = cfg
	return nil
}

// open resolves config, logging, storage and the service for one command.
func (c *cli) open(ctx context.Context, command string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	logger, err := newRuntimeLogger(c.stderr, c.appName, c.devMode, c.cfg.Logging, time.Now)
	if err != nil {
		return fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "tui" {
		// Runtime logs stay in the dev-file sink while the board owns the terminal.
		logger.SetConsoleEnabled(false)
	}
	c.logger = logger
	c.close = append(c.close, logger.Close)

	logger.Info("startup configuration resolved", "app", c.appName, "dev_mode", c.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", c.configPath, "data_dir", c.paths.DataDir)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	repo, closeRepo, err := openRepository(ctx, c.cfg.Storage)
	if err != nil {
		logger.Error("storage open failed", "backend", c.cfg.Storage.Backend, "err", err)
		return fmt.Errorf("open %s repository: %w", c.cfg.Storage.Backend, err)
	}
	if closeRepo != nil {
		c.close = append(c.close, closeRepo)
	}
	logger.Info("storage ready", "backend", c.cfg.Storage.Backend)

	c.svc = app.NewService(repo, time.Now, app.ServiceConfig{
		HistoryLimit: c.cfg.History.Limit,
		Logger:       logger.Component("app"),
	})
	if err := c.svc.Load(ctx); err != nil {
		logger.Error("load stored items failed", "err", err)
		return fmt.Errorf("load stored items: %w", err)
	}
	return nil
}

// shutdown releases resources in reverse acquisition order.
func (c *cli) shutdown() {
	for i := len(c.close) - 1; i >= 0; i-- {
		if err := c.close[i](); err != nil {
			_, _ = fmt.Fprintf(c.stderr, "warning: close: %v\n", err)
		}
	}
	c.close = nil
}

// withService wraps one command flow with runtime setup, teardown and flow logging.
func (c *cli) withService(command string, fn func(context.Context, *app.Service) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := c.open(ctx, command); err != nil {
			c.shutdown()
			return err
		}
		defer c.shutdown()

		c.logger.Info("command flow start", "command", command)
		if err := fn(ctx, c.svc); err != nil {
			c.logger.Error("command flow failed", "command", command, "err", err)
			return err
		}
		c.logger.Info("command flow complete", "command", command)
		return nil
	}
}

// openRepository builds the configured persistence adapter. The memory backend has none.
func openRepository(ctx context.Context, cfg config.StorageConfig) (app.Repository, func() error, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		repo, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	case config.BackendCSV:
		repo, err := csvfile.Open(cfg.CSVPath)
		if err != nil {
			return nil, nil, err
		}
		return repo, nil, nil
	case config.BackendPostgres:
		repo, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	case config.BackendMemory:
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
