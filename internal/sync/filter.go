package sync

import (
	"path"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Filter excludes items by gitignore-style patterns matched against their
// path relative to the run's root. A nil Filter excludes nothing.
type Filter struct {
	matcher *ignore.GitIgnore
}

// NewFilter compiles patterns. Blank entries are ignored; no usable
// patterns yields nil.
func NewFilter(patterns []string) *Filter {
	var lines []string

	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}

	if len(lines) == 0 {
		return nil
	}

	return &Filter{matcher: ignore.CompileIgnoreLines(lines...)}
}

// Excluded reports whether relPath (slash-separated) is filtered out.
// Directory-only patterns ("cache/") match when isDir is set.
func (f *Filter) Excluded(relPath string, isDir bool) bool {
	if f == nil {
		return false
	}

	relPath = path.Clean(strings.TrimPrefix(relPath, "/"))

	if f.matcher.MatchesPath(relPath) {
		return true
	}

	return isDir && f.matcher.MatchesPath(relPath+"/")
}
