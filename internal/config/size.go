package config

import (
	"fmt"
	"strconv"
	"strings"
)

// sizeUnits maps suffixes to multipliers. IEC units come first so "MiB" is
// not read as "B".
var sizeUnits = []struct {
	suffix     string
	multiplier float64
}{
	{"TIB", 1 << 40},
	{"GIB", 1 << 30},
	{"MIB", 1 << 20},
	{"KIB", 1 << 10},
	{"TB", 1e12},
	{"GB", 1e9},
	{"MB", 1e6},
	{"KB", 1e3},
	{"B", 1},
}

// ParseSize converts "5MB", "512KiB", "1.5GB" or a bare byte count to bytes.
// Empty and "0" are 0. Negative sizes are rejected.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	upper := strings.ToUpper(s)

	for _, u := range sizeUnits {
		if !strings.HasSuffix(upper, u.suffix) {
			continue
		}

		num := strings.TrimSpace(s[:len(s)-len(u.suffix)])

		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size %q: %w", s, err)
		}

		if f < 0 {
			return 0, fmt.Errorf("invalid size %q: must be non-negative", s)
		}

		return int64(f * u.multiplier), nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	if n < 0 {
		return 0, fmt.Errorf("invalid size %q: must be non-negative", s)
	}

	return n, nil
}
