package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	return cfg, nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./smpl2pc2.yaml",
		"./smpl2pc2.conf",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "smplcache")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "smplcache")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "smplcache")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "smplcache")
	}
}

// loadFromFile merges a config file into cfg. YAML is recognised by its
// extension; anything else is read as INI.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return loadINI(cfg, data)
	}
}

// loadINI maps INI sections onto cfg. Keys absent from the file keep their
// current values.
func loadINI(cfg *Config, data []byte) error {
	f, err := ini.Load(data)
	if err != nil {
		return err
	}
	if err := f.MapTo(cfg); err != nil {
		return err
	}

	if key := f.Section("smpl").Key("shape"); key.String() != "" {
		shape, err := ParseShape(key.String())
		if err != nil {
			return fmt.Errorf("[smpl] shape: %w", err)
		}
		cfg.SMPL.Shape = shape
	}
	return nil
}
