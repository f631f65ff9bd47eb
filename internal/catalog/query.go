package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// Entry is one catalog row, as shown by "gbackup history".
type Entry struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	ItemID      string    `json:"item_id"`
	Filename    string    `json:"filename"`
	Path        string    `json:"path"`
	Outcome     string    `json:"outcome"`
	ContentType string    `json:"content_type,omitempty"`
	Bytes       int64     `json:"bytes,omitempty"`
	Status      int       `json:"status,omitempty"`
	Error       string    `json:"error,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// ListOptions filters List. An empty Source matches every source.
type ListOptions struct {
	Source string
	Failed bool
	Limit  int
}

// SourceSummary aggregates everything recorded for one source.
type SourceSummary struct {
	Source       string    `json:"source"`
	Downloaded   int       `json:"downloaded"`
	Duplicates   int       `json:"duplicates"`
	Failed       int       `json:"failed"`
	Bytes        int64     `json:"bytes"`
	LastRecorded time.Time `json:"last_recorded"`
}

// List returns the most recent entries first: stored assets, or failures
// when opts.Failed is set.
func (c *Catalog) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	if c.db == nil {
		return nil, ErrClosed
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	if opts.Failed {
		return c.listFailed(ctx, opts.Source, limit)
	}

	rows, err := c.db.QueryContext(ctx, sqlListAssets, opts.Source, opts.Source, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: listing assets: %w", err)
	}
	defer rows.Close()

	var out []Entry

	for rows.Next() {
		var (
			e  Entry
			at int64
		)

		if err := rows.Scan(&e.ID, &e.Source, &e.ItemID, &e.Filename, &e.Path,
			&e.ContentType, &e.Bytes, &e.Outcome, &at); err != nil {
			return nil, fmt.Errorf("catalog: scanning asset row: %w", err)
		}

		e.RecordedAt = time.Unix(0, at)
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterating asset rows: %w", err)
	}

	return out, nil
}

func (c *Catalog) listFailed(ctx context.Context, source string, limit int) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, sqlListFailed, source, source, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: listing failures: %w", err)
	}
	defer rows.Close()

	var out []Entry

	for rows.Next() {
		var (
			e  Entry
			at int64
		)

		if err := rows.Scan(&e.ID, &e.Source, &e.ItemID, &e.Filename, &e.Path,
			&e.Status, &e.Error, &at); err != nil {
			return nil, fmt.Errorf("catalog: scanning failure row: %w", err)
		}

		e.Outcome = "failed"
		e.RecordedAt = time.Unix(0, at)
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterating failure rows: %w", err)
	}

	return out, nil
}

// Summary returns per-source totals, sorted by source name.
func (c *Catalog) Summary(ctx context.Context) ([]SourceSummary, error) {
	if c.db == nil {
		return nil, ErrClosed
	}

	bySource := make(map[string]*SourceSummary)

	get := func(source string) *SourceSummary {
		s, ok := bySource[source]
		if !ok {
			s = &SourceSummary{Source: source}
			bySource[source] = s
		}

		return s
	}

	if err := c.scanSummary(ctx, sqlSummaryAssets, func(rows *sql.Rows) error {
		var (
			source          string
			down, dup, size int64
			last            int64
		)

		if err := rows.Scan(&source, &down, &dup, &size, &last); err != nil {
			return err
		}

		s := get(source)
		s.Downloaded = int(down)
		s.Duplicates = int(dup)
		s.Bytes = size
		s.LastRecorded = laterOf(s.LastRecorded, last)

		return nil
	}); err != nil {
		return nil, err
	}

	if err := c.scanSummary(ctx, sqlSummaryFailed, func(rows *sql.Rows) error {
		var (
			source string
			count  int64
			last   int64
		)

		if err := rows.Scan(&source, &count, &last); err != nil {
			return err
		}

		s := get(source)
		s.Failed = int(count)
		s.LastRecorded = laterOf(s.LastRecorded, last)

		return nil
	}); err != nil {
		return nil, err
	}

	out := make([]SourceSummary, 0, len(bySource))
	for _, s := range bySource {
		out = append(out, *s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })

	return out, nil
}

func (c *Catalog) scanSummary(ctx context.Context, query string, scan func(*sql.Rows) error) error {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("catalog: summarizing: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("catalog: scanning summary row: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("catalog: iterating summary rows: %w", err)
	}

	return nil
}

func laterOf(t time.Time, nanos int64) time.Time {
	if other := time.Unix(0, nanos); other.After(t) {
		return other
	}

	return t
}
