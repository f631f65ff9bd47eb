package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Statusf prints a progress or result line to stderr unless --quiet is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	if cc.Flags.Quiet {
		return
	}

	fmt.Fprintf(cc.Stderr, format, args...)
}

// formatSize returns a human-readable size such as "1.2 MB".
func formatSize(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.Bytes(uint64(-bytes))
	}

	return humanize.Bytes(uint64(bytes))
}

// formatCount adds thousands separators.
func formatCount(n int) string {
	return humanize.Comma(int64(n))
}

// formatTime renders recent times relatively ("3 minutes ago") and older ones
// as a date.
func formatTime(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}

	if now.Sub(t) < 7*24*time.Hour {
		return humanize.RelTime(t, now, "ago", "from now")
	}

	if t.Year() == now.Year() {
		return t.Format("Jan _2 15:04")
	}

	return t.Format("Jan _2  2006")
}

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// printTable writes aligned columns. headers and every row must have the
// same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}
