package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mediavault/gbackup/internal/sync"
)

const failureLogPermissions = 0o644

var failureLogHeader = []string{"id", "localPath", "errorMessage"}

// FailureLog appends one CSV record per Failed outcome. Every append opens,
// syncs and closes the file, so a crash loses at most the record in flight.
type FailureLog struct {
	path string
}

// NewFailureLog returns a log writing to path. Nothing is created until the
// first failure.
func NewFailureLog(path string) *FailureLog {
	return &FailureLog{path: path}
}

// Path returns the CSV file path.
func (l *FailureLog) Path() string {
	return l.path
}

// Record appends o when it is a failure and ignores every other kind.
func (l *FailureLog) Record(_ context.Context, o sync.Outcome) error {
	if o.Kind != sync.OutcomeFailed {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), dbDirPermissions); err != nil {
		return fmt.Errorf("catalog: creating failure log directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, failureLogPermissions)
	if err != nil {
		return fmt.Errorf("catalog: opening failure log: %w", err)
	}

	if err := appendRecord(f, &o); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("catalog: closing failure log: %w", err)
	}

	return nil
}

func appendRecord(f *os.File, o *sync.Outcome) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("catalog: stat failure log: %w", err)
	}

	w := csv.NewWriter(f)

	if info.Size() == 0 {
		if err := w.Write(failureLogHeader); err != nil {
			return fmt.Errorf("catalog: writing failure log header: %w", err)
		}
	}

	if err := w.Write([]string{o.Item.ID, o.Path, errorText(o)}); err != nil {
		return fmt.Errorf("catalog: writing failure record: %w", err)
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("catalog: flushing failure log: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("catalog: syncing failure log: %w", err)
	}

	return nil
}
