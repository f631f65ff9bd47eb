package config

import (
	"fmt"
	"io"
	"strings"
)

// RenderEffective writes the resolved configuration to w as annotated TOML,
// after every override layer has been applied. Used by "config show".
func RenderEffective(cfg *Config, path string, w io.Writer) error {
	ew := &errWriter{w: w}

	if path != "" {
		ew.printf("# Effective configuration (file: %s)\n\n", path)
	} else {
		ew.printf("# Effective configuration (built-in defaults)\n\n")
	}

	renderAuthSection(ew, &cfg.Auth)
	renderPhotosSection(ew, &cfg.Photos)
	renderDriveSection(ew, &cfg.Drive)

	ew.printf("[transfers]\n")
	ew.printf("  bandwidth_limit = %q\n\n", cfg.Transfers.BandwidthLimit)

	renderRecorderSection(ew, &cfg.Recorder)
	renderLoggingSection(ew, &cfg.Logging)
	renderNetworkSection(ew, &cfg.Network)

	return ew.err
}

// errWriter captures the first write error; later writes are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderAuthSection(ew *errWriter, a *AuthConfig) {
	ew.printf("[auth]\n")
	ew.printf("  client_secret = %q\n", a.ClientSecret)
	ew.printf("  token_dir     = %q\n", a.TokenDir)

	if a.ServiceAccount != "" {
		ew.printf("  service_account = %q\n", a.ServiceAccount)
	}

	ew.printf("\n")
}

func renderPhotosSection(ew *errWriter, p *PhotosConfig) {
	ew.printf("[photos]\n")
	ew.printf("  dest_dir         = %q\n", p.DestDir)
	ew.printf("  duplicate_policy = %q\n", p.DuplicatePolicy)
	ew.printf("  duplicate_dir    = %q\n", p.DuplicateDir)

	if len(p.SkipFiles) > 0 {
		ew.printf("  skip_files       = [%s]\n", joinQuoted(p.SkipFiles))
	}

	ew.printf("\n")
}

func renderDriveSection(ew *errWriter, d *DriveConfig) {
	ew.printf("[drive]\n")
	ew.printf("  dest_dir         = %q\n", d.DestDir)
	ew.printf("  root_folder      = %q\n", d.RootFolder)
	ew.printf("  duplicate_policy = %q\n", d.DuplicatePolicy)
	ew.printf("  duplicate_dir    = %q\n", d.DuplicateDir)
	ew.printf("  export_format    = %q\n", d.ExportFormat)

	if len(d.SkipFiles) > 0 {
		ew.printf("  skip_files       = [%s]\n", joinQuoted(d.SkipFiles))
	}

	ew.printf("\n")
}

func renderRecorderSection(ew *errWriter, r *RecorderConfig) {
	ew.printf("[recorder]\n")
	ew.printf("  database         = %q\n", r.Database)
	ew.printf("  disable_database = %t\n", r.DisableDatabase)

	if r.FailureLog != "" {
		ew.printf("  failure_log      = %q\n", r.FailureLog)
	}

	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", l.LogLevel)
	ew.printf("  log_format = %q\n", l.LogFormat)

	if l.LogFile != "" {
		ew.printf("  log_file   = %q\n", l.LogFile)
	}

	ew.printf("\n")
}

func renderNetworkSection(ew *errWriter, n *NetworkConfig) {
	ew.printf("[network]\n")
	ew.printf("  connect_timeout = %q\n", n.ConnectTimeout)
	ew.printf("  data_timeout    = %q\n", n.DataTimeout)

	if n.UserAgent != "" {
		ew.printf("  user_agent      = %q\n", n.UserAgent)
	}
}

// joinQuoted formats a string slice as comma-separated quoted values.
func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}

	return strings.Join(quoted, ", ")
}
