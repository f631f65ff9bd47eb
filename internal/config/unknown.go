package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance bounds "did you mean?" suggestions.
const maxLevenshteinDistance = 3

// knownKeys lists the valid keys of every section.
var knownKeys = map[string][]string{
	"auth":      {"client_secret", "token_dir", "service_account"},
	"photos":    {"dest_dir", "duplicate_policy", "duplicate_dir", "skip_files"},
	"drive":     {"dest_dir", "root_folder", "duplicate_policy", "duplicate_dir", "export_format", "skip_files"},
	"transfers": {"bandwidth_limit"},
	"recorder":  {"database", "disable_database", "failure_log"},
	"logging":   {"log_level", "log_format", "log_file"},
	"network":   {"connect_timeout", "data_timeout", "user_agent"},
}

// knownSections is the sorted list of section names.
var knownSections = func() []string {
	names := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		names = append(names, k)
	}

	sort.Strings(names)

	return names
}()

// checkUnknownKeys reports every undecoded key, with a suggestion when a
// known key or section is close enough.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	badSections := map[string]bool{}

	for _, key := range md.Undecoded() {
		if _, known := knownKeys[key[0]]; !known {
			// One error per unknown section, not one per key inside it.
			if badSections[key[0]] {
				continue
			}

			badSections[key[0]] = true
		}

		errs = append(errs, unknownKeyError(key))
	}

	return errors.Join(errs...)
}

func unknownKeyError(key toml.Key) error {
	section := key[0]

	keys, ok := knownKeys[section]
	if !ok {
		if other := sectionOf(section); other != "" {
			return fmt.Errorf("config key %q must be inside [%s]", section, other)
		}

		if s := closestMatch(section, knownSections); s != "" {
			return fmt.Errorf("unknown config section [%s]; did you mean [%s]?", section, s)
		}

		return fmt.Errorf("unknown config key %q", key.String())
	}

	if len(key) < 2 {
		return fmt.Errorf("unknown config key %q", key.String())
	}

	field := key[1]

	if s := closestMatch(field, keys); s != "" {
		return fmt.Errorf("unknown key %q in [%s]; did you mean %q?", field, section, s)
	}

	if other := sectionOf(field); other != "" {
		return fmt.Errorf("unknown key %q in [%s]; it belongs in [%s]", field, section, other)
	}

	return fmt.Errorf("unknown key %q in [%s]", field, section)
}

// sectionOf returns the section that defines key, if any.
func sectionOf(key string) string {
	for _, section := range knownSections {
		for _, k := range knownKeys[section] {
			if k == key {
				return section
			}
		}
	}

	return ""
}

// closestMatch finds the closest candidate by Levenshtein distance, or "".
func closestMatch(unknown string, candidates []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, c := range candidates {
		if d := levenshtein(strings.ToLower(unknown), c); d < bestDist {
			bestDist = d
			best = c
		}
	}

	return best
}

// levenshtein computes the edit distance between two strings with a pair of
// rolling rows.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
