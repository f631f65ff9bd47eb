// Package tokenfile reads and writes the on-disk OAuth token cache. Each
// Google source (Photos, Drive) gets its own file so the two consents and
// scopes never overwrite each other.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the token directory.
const DirPerms = 0o700

// File is the on-disk format. Source and Scopes record what the token was
// granted for so a scope change can be detected before the API rejects it.
type File struct {
	Token   *oauth2.Token `json:"token"`
	Source  string        `json:"source,omitempty"`
	Scopes  []string      `json:"scopes,omitempty"`
	SavedAt time.Time     `json:"saved_at"`
}

// Load reads a token file. Returns (nil, nil) if the file does not exist.
//
// A bare oauth2.Token document (the token.json written by Google's quickstart
// samples) is accepted as well and returned with empty Source and Scopes.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var tf File
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if tf.Token != nil {
		return &tf, nil
	}

	var bare oauth2.Token
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if bare.AccessToken == "" && bare.RefreshToken == "" {
		return nil, fmt.Errorf("tokenfile: %s has no token (run login again)", path)
	}

	return &File{Token: &bare}, nil
}

// Save writes tf to path atomically: temp file in the same directory, fsync,
// rename. The token value is never logged.
func Save(path string, tf *File) error {
	if tf == nil || tf.Token == nil {
		return errors.New("tokenfile: refusing to save an empty token")
	}

	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("tokenfile: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tokenfile: renaming: %w", err)
	}

	success = true

	return nil
}

// Remove deletes the token file. A missing file is not an error.
func Remove(path string) (bool, error) {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("tokenfile: removing %s: %w", path, err)
	}

	return true, nil
}
