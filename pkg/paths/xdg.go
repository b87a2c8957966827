// Package paths resolves where scribe keeps its files.
//
// Resolution order:
// 1. SCRIBE_HOME (portable root) → $SCRIBE_HOME/{config,data,state,run}
// 2. XDG env vars → $XDG_*_HOME/scribe
// 3. Platform defaults → ~/.config/scribe, ~/.local/share/scribe, ~/.local/state/scribe
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const appName = "scribe"

// resolve returns the directory for one XDG category.
func resolve(homeSub, xdgEnv string, fallback ...string) string {
	if home := os.Getenv("SCRIBE_HOME"); home != "" {
		return filepath.Join(home, homeSub)
	}
	if dir := os.Getenv(xdgEnv); dir != "" {
		return filepath.Join(dir, appName)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(append(append([]string{homeDir}, fallback...), appName)...)
}

// ConfigDir holds scribe.yml.
func ConfigDir() string {
	return resolve("config", "XDG_CONFIG_HOME", ".config")
}

// DataDir holds downloaded models and the settings file.
func DataDir() string {
	return resolve("data", "XDG_DATA_HOME", ".local", "share")
}

// StateDir holds logs.
func StateDir() string {
	return resolve("state", "XDG_STATE_HOME", ".local", "state")
}

// RuntimeDir holds the backend socket. Falls back to StateDir when
// XDG_RUNTIME_DIR is unset (macOS).
func RuntimeDir() string {
	if home := os.Getenv("SCRIBE_HOME"); home != "" {
		return filepath.Join(home, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// ConfigFile is the default scribe.yml location.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "scribe.yml")
}

// SettingsFile is the default settings store location.
func SettingsFile() string {
	return filepath.Join(DataDir(), "settings.yml")
}

// SocketPath is the default backend unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "scribed.sock")
}

// Expand replaces a leading ~ with the user's home directory.
func Expand(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// EnsureDirs creates every scribe directory.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), DataDir(), StateDir(), RuntimeDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
