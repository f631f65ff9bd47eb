package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	configFilePermissions = 0o644
	configDirPermissions  = 0o755
)

// ErrConfigExists is returned by WriteTemplate when the target already exists.
var ErrConfigExists = errors.New("config: file already exists")

// configTemplate is written by "config init". Every option is present as a
// commented-out default.
const configTemplate = `# gbackup configuration
# Values here are overridden by GBACKUP_* environment variables and flags.

[auth]
# OAuth client registration downloaded from the Google Cloud console.
# client_secret = "~/.config/gbackup/client_secret.json"
# token_dir = "~/.local/share/gbackup/tokens"
# Service account key used for Drive instead of a user login.
# service_account = ""

[photos]
# dest_dir = "~/gbackup/photos"
# What to do when a file with the same name exists: skip or diverge
# duplicate_policy = "diverge"
# duplicate_dir = "duplicate"
# Gitignore-style patterns matched against paths below dest_dir.
# skip_files = []

[drive]
# dest_dir = "~/gbackup/drive"
# Folder ID to start from; "root" is My Drive.
# root_folder = "root"
# duplicate_policy = "skip"
# duplicate_dir = "duplicate"
# MIME type Google Docs, Sheets and Slides are exported as.
# export_format = "application/pdf"
# skip_files = []

[transfers]
# Download rate cap, e.g. "5MB/s". 0 means unlimited.
# bandwidth_limit = "0"

[recorder]
# database = "~/.local/share/gbackup/catalog.db"
# disable_database = false
# CSV of failed items (id,localPath,errorMessage).
# failure_log = ""

[logging]
# log_level = "info"
# log_format = "auto"
# log_file = ""

[network]
# connect_timeout = "10s"
# data_timeout = "60s"
# user_agent = ""
`

// WriteTemplate writes the commented default config to path. It refuses to
// overwrite an existing file.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	return atomicWriteFile(path, []byte(configTemplate))
}

// atomicWriteFile writes data to a temp file next to path and renames it
// into place. Parent directories are created as needed.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
