package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mediavault/gbackup/internal/catalog"
)

// errCatalogDisabled is returned by history when recorder.disable_database
// is set.
var errCatalogDisabled = errors.New("the catalog database is disabled (recorder.disable_database)")

type historyOptions struct {
	source string
	failed bool
	limit  int
}

func newHistoryCmd() *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show what previous backups recorded",
		Long: "Prints per-source totals followed by the most recently recorded files.\n" +
			"With --failed, lists failures instead.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.source, "source", "", "only show this source (photos or drive)")
	cmd.Flags().BoolVar(&opts.failed, "failed", false, "list failed items")
	cmd.Flags().IntVar(&opts.limit, "limit", catalog.DefaultListLimit, "maximum number of entries")

	return cmd
}

// historyJSON is the --json schema for history.
type historyJSON struct {
	Summary []catalog.SourceSummary `json:"summary"`
	Entries []catalog.Entry         `json:"entries"`
}

func runHistory(cmd *cobra.Command, opts *historyOptions) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	if cc.Cfg.Recorder.DisableDatabase {
		return errCatalogDisabled
	}

	cat, err := catalog.Open(ctx, cc.Cfg.Recorder.Database, cc.Logger)
	if err != nil {
		return err
	}
	defer cat.Close()

	summary, err := cat.Summary(ctx)
	if err != nil {
		return err
	}

	entries, err := cat.List(ctx, catalog.ListOptions{
		Source: opts.source,
		Failed: opts.failed,
		Limit:  opts.limit,
	})
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		if entries == nil {
			entries = []catalog.Entry{}
		}

		return writeJSON(cc.Stdout, historyJSON{Summary: summary, Entries: entries})
	}

	if len(summary) == 0 {
		fmt.Fprintln(cc.Stdout, "Nothing recorded yet.")
		return nil
	}

	now := time.Now()
	printSummary(cc, summary, now)
	fmt.Fprintln(cc.Stdout)

	if len(entries) == 0 {
		fmt.Fprintln(cc.Stdout, "No matching entries.")
		return nil
	}

	if opts.failed {
		printFailures(cc, entries, now)
	} else {
		printEntries(cc, entries, now)
	}

	return nil
}

func printSummary(cc *CLIContext, summary []catalog.SourceSummary, now time.Time) {
	rows := make([][]string, 0, len(summary))
	for _, s := range summary {
		rows = append(rows, []string{
			s.Source,
			formatCount(s.Downloaded),
			formatCount(s.Duplicates),
			formatCount(s.Failed),
			formatSize(s.Bytes),
			formatTime(s.LastRecorded, now),
		})
	}

	printTable(cc.Stdout, []string{"SOURCE", "DOWNLOADED", "DUPLICATES", "FAILED", "SIZE", "LAST"}, rows)
}

func printEntries(cc *CLIContext, entries []catalog.Entry, now time.Time) {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			formatTime(e.RecordedAt, now),
			e.Source,
			e.Outcome,
			formatSize(e.Bytes),
			e.Path,
		})
	}

	printTable(cc.Stdout, []string{"WHEN", "SOURCE", "OUTCOME", "SIZE", "PATH"}, rows)
}

func printFailures(cc *CLIContext, entries []catalog.Entry, now time.Time) {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		status := "-"
		if e.Status != 0 {
			status = strconv.Itoa(e.Status)
		}

		rows = append(rows, []string{
			formatTime(e.RecordedAt, now),
			e.Source,
			e.ItemID,
			status,
			e.Error,
		})
	}

	printTable(cc.Stdout, []string{"WHEN", "SOURCE", "ITEM", "STATUS", "ERROR"}, rows)
}
