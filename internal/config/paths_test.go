package config

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func skipOnDarwin(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "darwin" {
		t.Skip("XDG variables are ignored on macOS")
	}
}

func TestDefaultConfigPath_EndsWithConfigToml(t *testing.T) {
	path := DefaultConfigPath()
	assert.Contains(t, path, appName)
	assert.True(t, strings.HasSuffix(path, "config.toml"))
}

func TestDefaultConfigDir_MacOS(t *testing.T) {
	if runtime.GOOS != "darwin" {
		t.Skip("macOS-only test")
	}

	assert.Contains(t, DefaultConfigDir(), "Library/Application Support/gbackup")
	assert.Equal(t, DefaultConfigDir(), DefaultDataDir())
}

func TestConfigDir_XDGOverride(t *testing.T) {
	skipOnDarwin(t)
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	assert.Equal(t, "/custom/config/gbackup", DefaultConfigDir())
}

func TestConfigDir_HomeFallback(t *testing.T) {
	skipOnDarwin(t)
	t.Setenv("HOME", "/home/testuser")
	t.Setenv("XDG_CONFIG_HOME", "")

	assert.Equal(t, "/home/testuser/.config/gbackup", DefaultConfigDir())
}

func TestDataDir_XDGOverride(t *testing.T) {
	skipOnDarwin(t)
	t.Setenv("XDG_DATA_HOME", "/custom/data")

	assert.Equal(t, "/custom/data/gbackup", DefaultDataDir())
}

func TestDataDir_HomeFallback(t *testing.T) {
	skipOnDarwin(t)
	t.Setenv("HOME", "/home/testuser")
	t.Setenv("XDG_DATA_HOME", "")

	assert.Equal(t, "/home/testuser/.local/share/gbackup", DefaultDataDir())
}

func TestTokenPath(t *testing.T) {
	assert.Equal(t, "/tokens/photos.json", TokenPath("/tokens", "photos"))
	assert.Equal(t, "/tokens/drive.json", TokenPath("/tokens", "drive"))
}
