package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendCSV      Backend = "csv"
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

type Config struct {
	Storage StorageConfig `toml:"storage"`
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
	History HistoryConfig `toml:"history"`
	Keys    KeyConfig     `toml:"keys"`
}

type StorageConfig struct {
	Backend     Backend `toml:"backend"`
	Path        string  `toml:"path"`
	CSVPath     string  `toml:"csv_path"`
	PostgresDSN string  `toml:"postgres_dsn"`
}

type ServerConfig struct {
	HTTPBind        string `toml:"http_bind"`
	APIEndpoint     string `toml:"api_endpoint"`
	MCPEndpoint     string `toml:"mcp_endpoint"`
	CORSAllowOrigin string `toml:"cors_allow_origin"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"` // debug | info | warn | error
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type HistoryConfig struct {
	Limit int `toml:"limit"`
}

// KeyConfig overrides single TUI bindings. Empty values keep the defaults.
type KeyConfig struct {
	AddItem     string `toml:"add_item"`
	DeleteItem  string `toml:"delete_item"`
	CycleStatus string `toml:"cycle_status"`
	CopyItem    string `toml:"copy_item"`
	NextView    string `toml:"next_view"`
}

func Default(dbPath string) Config {
	csvPath := ""
	if strings.TrimSpace(dbPath) != "" {
		csvPath = strings.TrimSuffix(dbPath, filepath.Ext(dbPath)) + ".csv"
	}
	return Config{
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Path:    dbPath,
			CSVPath: csvPath,
		},
		Server: ServerConfig{
			HTTPBind:        "127.0.0.1:8080",
			APIEndpoint:     "/api/v1",
			MCPEndpoint:     "/mcp",
			CORSAllowOrigin: "*",
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".kanban/log",
			},
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return errors.New("storage.path is required for the sqlite backend")
		}
	case BackendCSV:
		if strings.TrimSpace(c.Storage.CSVPath) == "" {
			return errors.New("storage.csv_path is required for the csv backend")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			return errors.New("storage.postgres_dsn is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid storage.backend: %q", c.Storage.Backend)
	}

	if strings.TrimSpace(c.Server.HTTPBind) == "" {
		return errors.New("server.http_bind is required")
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when the dev file sink is enabled")
	}

	if c.History.Limit < 0 {
		return fmt.Errorf("history.limit must be >= 0, got %d", c.History.Limit)
	}

	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
