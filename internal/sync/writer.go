package sync

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	filePerms = 0o644
	dirPerms  = 0o755
)

// writeAtomic streams r into dest.TempPath, syncs it and renames it to
// dest.FinalPath. When wantMD5 is set the content must hash to it. On any
// failure the temp file is removed and FinalPath is left untouched.
func writeAtomic(ctx context.Context, dest Destination, r io.Reader, bl *BandwidthLimiter, wantMD5 string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest.FinalPath), dirPerms); err != nil {
		return 0, fmt.Errorf("creating directory for %s: %w", dest.FinalPath, err)
	}

	// A leftover from an interrupted run is never resumed.
	if err := os.Remove(dest.TempPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("removing stale temp file %s: %w", dest.TempPath, err)
	}

	f, err := os.OpenFile(dest.TempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, filePerms)
	if err != nil {
		return 0, fmt.Errorf("creating temp file %s: %w", dest.TempPath, err)
	}

	var (
		w io.Writer = bl.WrapWriter(ctx, f)
		h hash.Hash
	)

	if wantMD5 != "" {
		h = md5.New() //nolint:gosec // Drive publishes MD5 checksums
		w = io.MultiWriter(w, h)
	}

	n, err := io.Copy(w, r)
	if err != nil {
		f.Close()
		os.Remove(dest.TempPath)

		return n, fmt.Errorf("writing %s: %w", dest.TempPath, err)
	}

	if h != nil {
		if got := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(got, wantMD5) {
			f.Close()
			os.Remove(dest.TempPath)

			return n, fmt.Errorf("%w: %s: got %s, want %s", ErrChecksumMismatch, dest.FinalPath, got, wantMD5)
		}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(dest.TempPath)

		return n, fmt.Errorf("syncing %s: %w", dest.TempPath, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(dest.TempPath)

		return n, fmt.Errorf("closing %s: %w", dest.TempPath, err)
	}

	if err := os.Rename(dest.TempPath, dest.FinalPath); err != nil {
		os.Remove(dest.TempPath)

		return n, fmt.Errorf("renaming %s: %w", dest.TempPath, err)
	}

	return n, nil
}

// fileExists reports whether a non-directory entry exists at path.
func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, fmt.Errorf("checking %s: %w", path, err)
}
