// Package catalog records backup outcomes in a local SQLite database and an
// optional CSV failure log. Both implement sync.Recorder.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/mediavault/gbackup/internal/sync"
)

const dbDirPermissions = 0o700

// SQL statements.
const (
	sqlInsertAsset = `INSERT INTO assets
		(id, source, item_id, filename, suffix, file_id, physical_path,
		 asset_metadata, creation_time, content_type, bytes, outcome, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlInsertFailed = `INSERT INTO failed_assets
		(id, source, item_id, filename, local_path, status, error, subtree, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlListAssets = `SELECT id, source, item_id, filename, physical_path,
		content_type, bytes, outcome, recorded_at
		FROM assets
		WHERE (? = '' OR source = ?)
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT ?`

	sqlListFailed = `SELECT id, source, item_id, filename, local_path,
		status, error, recorded_at
		FROM failed_assets
		WHERE (? = '' OR source = ?)
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT ?`

	sqlSummaryAssets = `SELECT source,
		SUM(CASE WHEN outcome = 'downloaded' THEN 1 ELSE 0 END),
		SUM(CASE WHEN outcome = 'duplicate' THEN 1 ELSE 0 END),
		SUM(bytes),
		MAX(recorded_at)
		FROM assets GROUP BY source`

	sqlSummaryFailed = `SELECT source, COUNT(*), MAX(recorded_at)
		FROM failed_assets GROUP BY source`
)

// ErrClosed is returned when the catalog is used after Close.
var ErrClosed = errors.New("catalog: closed")

// Catalog is the SQLite outcome store. It is the only writer to its
// database.
type Catalog struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	nowFunc func() time.Time
	newID   func() string
}

// Open opens (creating if needed) the catalog at path and applies pending
// migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), dbDirPermissions); err != nil {
		return nil, fmt.Errorf("catalog: creating directory for %s: %w", path, err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: opening database %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("catalog opened", slog.String("path", path))

	return &Catalog{
		db:      db,
		path:    path,
		logger:  logger,
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}, nil
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.path
}

// Close releases the database handle. Calling Close twice is safe.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}

	err := c.db.Close()
	c.db = nil

	if err != nil {
		return fmt.Errorf("catalog: closing database: %w", err)
	}

	return nil
}

// Record stores one outcome. Downloaded and Duplicate outcomes go to assets,
// Failed outcomes to failed_assets; Skipped outcomes are not stored. Each
// call is its own committed statement.
func (c *Catalog) Record(ctx context.Context, o sync.Outcome) error {
	if c.db == nil {
		return ErrClosed
	}

	at := o.At
	if at.IsZero() {
		at = c.nowFunc()
	}

	switch o.Kind {
	case sync.OutcomeDownloaded, sync.OutcomeDuplicate:
		return c.insertAsset(ctx, &o, at)
	case sync.OutcomeFailed:
		return c.insertFailed(ctx, &o, at)
	default:
		return nil
	}
}

func (c *Catalog) insertAsset(ctx context.Context, o *sync.Outcome, at time.Time) error {
	var metadata []byte
	if len(o.Item.Metadata) > 0 {
		metadata = o.Item.Metadata
	}

	var created sql.NullInt64
	if !o.Item.CreatedAt.IsZero() {
		created = sql.NullInt64{Int64: o.Item.CreatedAt.UnixNano(), Valid: true}
	}

	_, err := c.db.ExecContext(ctx, sqlInsertAsset,
		c.newID(), o.Source, o.Item.ID, o.Item.Name, o.Suffix,
		filepath.Base(o.Path), o.Path, metadata, created,
		o.ContentType, o.Bytes, o.Kind.String(), at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("catalog: recording asset %s: %w", o.Item.ID, err)
	}

	return nil
}

func (c *Catalog) insertFailed(ctx context.Context, o *sync.Outcome, at time.Time) error {
	_, err := c.db.ExecContext(ctx, sqlInsertFailed,
		c.newID(), o.Source, o.Item.ID, o.Item.Name, o.Path,
		o.Status, errorText(o), o.Subtree, at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("catalog: recording failure %s: %w", o.Item.ID, err)
	}

	return nil
}

// errorText is the message stored for a Failed outcome.
func errorText(o *sync.Outcome) string {
	if o.Err != nil {
		return o.Err.Error()
	}

	return o.Reason
}
