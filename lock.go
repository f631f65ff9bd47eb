package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// lockFileName lives in the destination root for the duration of a run.
const lockFileName = ".gbackup.lock"

const lockDirPermissions = 0o755

// ErrDestinationLocked means another gbackup process is writing to the same
// destination.
var ErrDestinationLocked = errors.New("another gbackup run is using this destination")

// lockDestination takes an exclusive, non-blocking lock on dir. The returned
// function releases it.
func lockDestination(dir string) (unlock func() error, err error) {
	if err := os.MkdirAll(dir, lockDirPermissions); err != nil {
		return nil, fmt.Errorf("creating destination %s: %w", dir, err)
	}

	path := filepath.Join(dir, lockFileName)
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}

	if !locked {
		return nil, fmt.Errorf("%w (lock held on %s)", ErrDestinationLocked, path)
	}

	return func() error {
		if err := fl.Unlock(); err != nil {
			return fmt.Errorf("unlocking %s: %w", path, err)
		}

		return nil
	}, nil
}
