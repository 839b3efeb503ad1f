package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/kanban.db")
	if cfg.Storage.Path != "/tmp/kanban.db" {
		t.Fatalf("unexpected db path %q", cfg.Storage.Path)
	}
	if cfg.Storage.CSVPath != "/tmp/kanban.csv" {
		t.Fatalf("unexpected csv path %q", cfg.Storage.CSVPath)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Fatalf("unexpected backend %q", cfg.Storage.Backend)
	}
	if cfg.Server.HTTPBind != "127.0.0.1:8080" || cfg.Server.APIEndpoint != "/api/v1" || cfg.Server.MCPEndpoint != "/mcp" {
		t.Fatalf("unexpected server defaults %+v", cfg.Server)
	}
	if cfg.History.Limit != 0 {
		t.Fatalf("expected unbounded history by default, got %d", cfg.History.Limit)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/kanban.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Path != defaults.Storage.Path {
		t.Fatalf("expected default db path, got %q", cfg.Storage.Path)
	}
}

func TestLoadEmptyPathAndFileUseDefaults(t *testing.T) {
	defaults := Default("/tmp/kanban.db")
	if cfg, err := Load("", defaults); err != nil || cfg.Storage.Path != defaults.Storage.Path {
		t.Fatalf("Load(\"\") = %+v, %v", cfg, err)
	}
	path := filepath.Join(t.TempDir(), "empty.toml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if cfg, err := Load(path, defaults); err != nil || cfg.Logging.Level != "info" {
		t.Fatalf("Load(empty) = %+v, %v", cfg, err)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[storage]
backend = "csv"
csv_path = "/custom/kanban.csv"

[server]
http_bind = "0.0.0.0:9090"
cors_allow_origin = "https://board.example"

[logging]
level = "debug"

[logging.dev_file]
enabled = false

[history]
limit = 10

[keys]
copy_item = "c"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Backend != BackendCSV || cfg.Storage.CSVPath != "/custom/kanban.csv" {
		t.Fatalf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Storage.Path != "/tmp/default.db" {
		t.Fatalf("expected untouched sqlite path, got %q", cfg.Storage.Path)
	}
	if cfg.Server.HTTPBind != "0.0.0.0:9090" || cfg.Server.APIEndpoint != "/api/v1" {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.DevFile.Enabled {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
	if cfg.History.Limit != 10 {
		t.Fatalf("unexpected history limit %d", cfg.History.Limit)
	}
	if cfg.Keys.CopyItem != "c" || cfg.Keys.AddItem != "" {
		t.Fatalf("unexpected key config %+v", cfg.Keys)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"backend":      "[storage]\nbackend = \"mongo\"\n",
		"postgres dsn": "[storage]\nbackend = \"postgres\"\n",
		"level":        "[logging]\nlevel = \"loud\"\n",
		"history":      "[history]\nlimit = -1\n",
		"bind":         "[server]\nhttp_bind = \"\"\n",
		"toml":         "[storage\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := Load(path, Default("/tmp/kanban.db")); err == nil {
				t.Fatal("expected Load() error")
			}
		})
	}
}

func TestEnsureConfigDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kanban", "config.toml")
	if err := EnsureConfigDir(path); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	info, err := os.Stat(filepath.Dir(path))
	if err != nil || !info.IsDir() {
		t.Fatalf("expected config dir, got %v", err)
	}
	if err := EnsureConfigDir("config.toml"); err != nil {
		t.Fatalf("EnsureConfigDir(relative) error = %v", err)
	}
	if !strings.HasSuffix(path, "config.toml") {
		t.Fatal("unexpected path")
	}
}
