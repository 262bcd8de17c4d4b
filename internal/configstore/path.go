package configstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	configFileName = "config.toml"
	appDirName     = "paramref"
)

// GetConfigPath resolves the paramref configuration directory and file path.
// PARAMREF_HOME wins, then $XDG_CONFIG_HOME/paramref, then
// ~/.config/paramref.
func GetConfigPath() (string, string, error) {
	if override := strings.TrimSpace(os.Getenv("PARAMREF_HOME")); override != "" {
		dir, err := filepath.Abs(filepath.Clean(override))
		if err != nil {
			return "", "", fmt.Errorf("resolve PARAMREF_HOME %q: %w", override, err)
		}
		return dir, filepath.Join(dir, configFileName), nil
	}

	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := resolveHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".config")
	}
	dir := filepath.Join(base, appDirName)
	return dir, filepath.Join(dir, configFileName), nil
}

// resolveHomeDir reads HOME on each call rather than trusting a cached value
// so tests that swap the environment see their own home.
func resolveHomeDir() (string, error) {
	home := strings.TrimSpace(os.Getenv("HOME"))
	if home == "" {
		home = strings.TrimSpace(os.Getenv("USERPROFILE"))
	}
	if home == "" {
		return "", fmt.Errorf("resolve home dir: home directory not found")
	}
	return filepath.Clean(home), nil
}

// expandPath expands environment references and a leading ~ in a path value.
// Relative paths are resolved against base when base is not empty.
func expandPath(raw, base string) (string, error) {
	value := strings.TrimSpace(expandConfigValue(raw))
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		home, err := resolveHomeDir()
		if err != nil {
			return "", err
		}
		value = filepath.Join(home, value[1:])
	}
	if !filepath.IsAbs(value) && base != "" {
		value = filepath.Join(base, value)
	}
	return filepath.Clean(value), nil
}
