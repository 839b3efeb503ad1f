package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// defaultAppName names the config and data directories.
const defaultAppName = "kanban"

// Paths holds the resolved config file and data store locations.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	CSVPath    string
}

// Options selects the app directory name.
type Options struct {
	AppName string
	// DevMode appends "-dev" so development runs never touch real data.
	DevMode bool
}

// envOverride names the variables that replace the host base dirs on one OS.
type envOverride struct {
	config string
	data   string
}

// overridesByOS lists the OSes whose base dirs can be moved through env vars.
// Other systems keep the os.UserConfigDir answer for both.
var overridesByOS = map[string]envOverride{
	"linux":   {config: "XDG_CONFIG_HOME", data: "XDG_DATA_HOME"},
	"windows": {config: "APPDATA", data: "LOCALAPPDATA"},
}

// DefaultPaths resolves the host paths for the default app name.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{})
}

// DefaultPathsWithOptions resolves the host paths for opts.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = defaultAppName
	}
	if opts.DevMode {
		appName += "-dev"
	}
	configDir, dataDir, err := hostBaseDirs(runtime.GOOS)
	if err != nil {
		return Paths{}, err
	}
	env := map[string]string{}
	if o, ok := overridesByOS[runtime.GOOS]; ok {
		env[o.config] = os.Getenv(o.config)
		env[o.data] = os.Getenv(o.data)
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appName)
}

// hostBaseDirs returns the config and data base dirs before env overrides.
func hostBaseDirs(goos string) (string, string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", "", fmt.Errorf("user config dir: %w", err)
	}
	switch goos {
	case "linux":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", fmt.Errorf("user home dir: %w", err)
		}
		return configDir, filepath.Join(home, ".local", "share"), nil
	default:
		return configDir, configDir, nil
	}
}

// PathsFor resolves paths for one OS from explicit base dirs and env values.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, errors.New("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, errors.New("empty app name")
	}

	configBase, dataBase := userConfigDir, userDataDir
	if o, ok := overridesByOS[goos]; ok {
		configBase = firstSet(env[o.config], configBase)
		dataBase = firstSet(env[o.data], dataBase)
	}

	dataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
		CSVPath:    filepath.Join(dataDir, appName+".csv"),
	}, nil
}

func firstSet(v, fallback string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}
