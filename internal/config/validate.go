package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Validation bounds.
const (
	minConnectTimeout = 1 * time.Second
	minDataTimeout    = 5 * time.Second
)

var (
	validPolicies   = []string{"skip", "diverge"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"auto", "text", "json"}
)

// Validate checks every value and reports all problems at once.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateSource("photos", cfg.Photos.DestDir, cfg.Photos.DuplicatePolicy, cfg.Photos.DuplicateDir)...)
	errs = append(errs, validateSource("drive", cfg.Drive.DestDir, cfg.Drive.DuplicatePolicy, cfg.Drive.DuplicateDir)...)
	errs = append(errs, validateDrive(&cfg.Drive)...)
	errs = append(errs, validateTransfers(&cfg.Transfers)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)

	if !cfg.Recorder.DisableDatabase && cfg.Recorder.Database == "" {
		errs = append(errs, errors.New("recorder.database: must not be empty unless disable_database is set"))
	}

	return errors.Join(errs...)
}

func validateSource(section, destDir, policy, dupDir string) []error {
	var errs []error

	if destDir == "" {
		errs = append(errs, fmt.Errorf("%s.dest_dir: must not be empty", section))
	}

	if !slices.Contains(validPolicies, policy) {
		errs = append(errs, fmt.Errorf("%s.duplicate_policy: must be one of %s, got %q",
			section, strings.Join(validPolicies, ", "), policy))
	}

	if dupDir != "" {
		clean := filepath.Clean(dupDir)
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			errs = append(errs, fmt.Errorf("%s.duplicate_dir: must be a path inside dest_dir, got %q", section, dupDir))
		}
	}

	return errs
}

func validateDrive(d *DriveConfig) []error {
	var errs []error

	if d.RootFolder == "" {
		errs = append(errs, errors.New("drive.root_folder: must not be empty"))
	}

	if !strings.Contains(d.ExportFormat, "/") {
		errs = append(errs, fmt.Errorf("drive.export_format: must be a MIME type, got %q", d.ExportFormat))
	}

	return errs
}

func validateTransfers(t *TransfersConfig) []error {
	limit := strings.TrimSuffix(strings.TrimSpace(t.BandwidthLimit), "/s")

	if _, err := ParseSize(limit); err != nil {
		return []error{fmt.Errorf("transfers.bandwidth_limit: %w", err)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !slices.Contains(validLogLevels, strings.ToLower(l.LogLevel)) {
		errs = append(errs, fmt.Errorf("logging.log_level: must be one of %s, got %q",
			strings.Join(validLogLevels, ", "), l.LogLevel))
	}

	if !slices.Contains(validLogFormats, l.LogFormat) {
		errs = append(errs, fmt.Errorf("logging.log_format: must be one of %s, got %q",
			strings.Join(validLogFormats, ", "), l.LogFormat))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	if err := checkDuration("network.connect_timeout", n.ConnectTimeout, minConnectTimeout); err != nil {
		errs = append(errs, err)
	}

	if err := checkDuration("network.data_timeout", n.DataTimeout, minDataTimeout); err != nil {
		errs = append(errs, err)
	}

	return errs
}

func checkDuration(field, value string, minimum time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be at least %s, got %s", field, minimum, d)
	}

	return nil
}

// ParseLogLevel maps a validated log_level to its slog level.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConnectTimeoutDuration returns the parsed connect timeout.
func (n *NetworkConfig) ConnectTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(n.ConnectTimeout)
	if err != nil {
		return 0
	}

	return d
}

// DataTimeoutDuration returns the parsed data timeout.
func (n *NetworkConfig) DataTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(n.DataTimeout)
	if err != nil {
		return 0
	}

	return d
}
