package sync

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// TempSuffix marks a file that is still being written.
const TempSuffix = ".temp"

// Stem length limits, in bytes. A stem longer than maxStemBytes is cut to
// truncatedStemBytes so the name plus TempSuffix still fits a 255-byte
// filesystem component.
const (
	maxStemBytes       = 250
	truncatedStemBytes = 245
	// uuid plus the separating dash
	duplicateTagBytes = 37
)

// Destination is where an item lands. TempPath is always FinalPath +
// TempSuffix; FinalPath is only ever created by renaming TempPath.
type Destination struct {
	FinalPath string
	TempPath  string
}

// NewDestination joins dir and name.
func NewDestination(dir, name string) Destination {
	final := filepath.Join(dir, name)

	return Destination{FinalPath: final, TempPath: final + TempSuffix}
}

// SanitizeName turns a remote display name into a single safe path component.
// fallback (the item ID) is used when nothing usable remains, and suffix is
// appended for exported documents unless the name already ends with it.
func SanitizeName(name, fallback, suffix string) string {
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		default:
			return r
		}
	}, name)

	if strings.Trim(name, ". ") == "" {
		name = fallback
	}

	if suffix != "" && !strings.EqualFold(filepath.Ext(name), suffix) {
		name += suffix
	}

	stem, ext := splitExt(name)
	if len(stem) > maxStemBytes {
		stem = truncateBytes(stem, truncatedStemBytes)
	}

	return stem + ext
}

// duplicateName builds "<stem>-<id><ext>", shortening the stem so the result
// respects the same length budget as SanitizeName.
func duplicateName(name, id string) string {
	stem, ext := splitExt(name)

	if limit := truncatedStemBytes - duplicateTagBytes; len(stem) > limit {
		stem = truncateBytes(stem, limit)
	}

	return stem + "-" + id + ext
}

// splitExt splits name at its last dot. Dotfiles like ".bashrc" have no
// extension.
func splitExt(name string) (string, string) {
	ext := filepath.Ext(name)
	if ext == name {
		return name, ""
	}

	return strings.TrimSuffix(name, ext), ext
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}

	return s[:n]
}
