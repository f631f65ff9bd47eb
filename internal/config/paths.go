package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Application directory name used across all platforms.
const appName = "gbackup"

// Config file name.
const configFileName = "config.toml"

// DefaultConfigDir returns where config.toml and client_secret.json live:
// $XDG_CONFIG_HOME/gbackup (or ~/.config/gbackup) on Linux and other Unixes,
// ~/Library/Application Support/gbackup on macOS.
func DefaultConfigDir() string {
	return platformDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns where the catalog database, failure log and OAuth
// tokens live: $XDG_DATA_HOME/gbackup (or ~/.local/share/gbackup), and the
// same Application Support directory as config on macOS.
func DefaultDataDir() string {
	return platformDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// platformDir resolves an XDG base directory. It returns "" when the home
// directory is unknown.
func platformDir(xdgVar, homeRel string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", appName)
	}

	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, homeRel, appName)
}

// DefaultConfigPath returns the full path to the default config file.
// It is used when neither GBACKUP_CONFIG nor --config is given.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// TokenPath returns the token file for source inside tokenDir.
func TokenPath(tokenDir, source string) string {
	return filepath.Join(tokenDir, source+".json")
}
