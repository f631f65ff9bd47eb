package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidDefaults(t *testing.T) {
	assert.NoError(t, Validate(DefaultConfig()))
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty photos dest", func(c *Config) { c.Photos.DestDir = "" }, "photos.dest_dir"},
		{"bad drive policy", func(c *Config) { c.Drive.DuplicatePolicy = "overwrite" }, "drive.duplicate_policy"},
		{"absolute duplicate dir", func(c *Config) { c.Photos.DuplicateDir = "/elsewhere" }, "photos.duplicate_dir"},
		{"escaping duplicate dir", func(c *Config) { c.Drive.DuplicateDir = "../outside" }, "drive.duplicate_dir"},
		{"empty root folder", func(c *Config) { c.Drive.RootFolder = "" }, "drive.root_folder"},
		{"export not a mime type", func(c *Config) { c.Drive.ExportFormat = "pdf" }, "drive.export_format"},
		{"bad bandwidth", func(c *Config) { c.Transfers.BandwidthLimit = "fast" }, "transfers.bandwidth_limit"},
		{"bad log level", func(c *Config) { c.Logging.LogLevel = "verbose" }, "logging.log_level"},
		{"bad log format", func(c *Config) { c.Logging.LogFormat = "xml" }, "logging.log_format"},
		{"connect timeout too short", func(c *Config) { c.Network.ConnectTimeout = "500ms" }, "network.connect_timeout"},
		{"data timeout unparsable", func(c *Config) { c.Network.DataTimeout = "soon" }, "network.data_timeout"},
		{"database empty", func(c *Config) { c.Recorder.Database = "" }, "recorder.database"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_AcceptsEdgeValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Photos.DuplicateDir = ""
	cfg.Drive.DuplicateDir = "nested/dups"
	cfg.Transfers.BandwidthLimit = "10MiB/s"
	cfg.Logging.LogLevel = "WARN"
	cfg.Recorder.DisableDatabase = true
	cfg.Recorder.Database = ""

	assert.NoError(t, Validate(cfg))
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Photos.DuplicatePolicy = "x"
	cfg.Network.DataTimeout = "1s"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "photos.duplicate_policy")
	assert.Contains(t, err.Error(), "network.data_timeout")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("Warn"))
	assert.Equal(t, slog.LevelError, ParseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel(""))
}

func TestNetworkDurations(t *testing.T) {
	n := NetworkConfig{ConnectTimeout: "15s", DataTimeout: "bogus"}

	assert.Equal(t, 15*time.Second, n.ConnectTimeoutDuration())
	assert.Equal(t, time.Duration(0), n.DataTimeoutDuration())
}
