package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ProjectConfigPath returns where the project config of dir lives.
func ProjectConfigPath(dir string) string {
	return filepath.Join(dir, localConfigFileName)
}

// ProjectNeedsInitialization reports whether dir has no project config yet.
func ProjectNeedsInitialization(dir string) (bool, error) {
	_, err := os.Stat(ProjectConfigPath(dir))
	if err == nil {
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check project config: %w", err)
	}
	return true, nil
}

// InitProject writes the list options of cfg as the project config of dir.
func InitProject(cfg *Config, dir string) error {
	if cfg == nil {
		return fmt.Errorf("config not loaded")
	}
	data, err := json.MarshalIndent(struct {
		List *ListOptions `json:"list"`
	}{List: cfg.List}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode project config: %w", err)
	}
	if err := os.WriteFile(ProjectConfigPath(dir), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write project config: %w", err)
	}
	return nil
}
