package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

const (
	configFileName      = appName + ".json"
	localConfigFileName = "." + appName + ".json"
)

// GlobalConfig returns the path of the user's config file.
func GlobalConfig() string {
	if p := os.Getenv("VLIST_CONFIG"); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, configFileName)
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("LOCALAPPDATA"), appName, configFileName)
	}
	return filepath.Join(homeDir(), ".config", appName, configFileName)
}

// GlobalConfigData returns the path of the config file vlist writes to when
// settings change from the command line.
func GlobalConfigData() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, configFileName)
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("LOCALAPPDATA"), appName, "data", configFileName)
	}
	return filepath.Join(homeDir(), ".local", "share", appName, configFileName)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// Load reads the global config, the data config and the project config in
// workingDir, later files overriding earlier ones, then applies defaults.
func Load(workingDir string, debug bool) (*Config, error) {
	cfg := &Config{}
	paths := []string{
		GlobalConfig(),
		GlobalConfigData(),
		filepath.Join(workingDir, localConfigFileName),
	}
	for _, path := range paths {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	cfg.dataConfigDir = GlobalConfigData()
	cfg.setDefaults(workingDir)

	if debug {
		cfg.Options.Debug = true
	}
	if v := os.Getenv("VLIST_DEBUG"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			cfg.Options.Debug = on
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFile decodes path over cfg. Missing files are skipped.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	slog.Debug("Loaded config file", "path", path)
	return nil
}

// Default returns the configuration used when no file is present.
func Default(workingDir string) *Config {
	cfg := &Config{dataConfigDir: GlobalConfigData()}
	cfg.setDefaults(workingDir)
	return cfg
}
