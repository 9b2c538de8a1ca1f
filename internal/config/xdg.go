package config

import (
	"os"
	"path/filepath"
)

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// DefaultPath returns the config file path: CLASSEVAL_CONFIG when set,
// otherwise $XDG_CONFIG_HOME/classeval/config.toml.
func DefaultPath() string {
	if p := os.Getenv("CLASSEVAL_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(XDGConfigHome(), "classeval", "config.toml")
}
