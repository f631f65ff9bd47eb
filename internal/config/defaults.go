package config

import "path/filepath"

// Defaults: layer 0 of the override chain.
const (
	defaultPhotosDestDir  = "~/gbackup/photos"
	defaultDriveDestDir   = "~/gbackup/drive"
	defaultPhotosPolicy   = "diverge"
	defaultDrivePolicy    = "skip"
	defaultDuplicateDir   = "duplicate"
	defaultRootFolder     = "root"
	defaultExportFormat   = "application/pdf"
	defaultBandwidthLimit = "0"
	defaultLogLevel       = "info"
	defaultLogFormat      = "auto"
	defaultConnectTimeout = "10s"
	defaultDataTimeout    = "60s"
	defaultClientSecret   = "client_secret.json"
	defaultTokenDirName   = "tokens"
	defaultDatabaseName   = "catalog.db"
	defaultFailureLogName = "failed_items.csv"
)

// DefaultConfig returns a Config populated with all default values. It is the
// starting point for TOML decoding, so unset fields keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			ClientSecret: joinIfDir(DefaultConfigDir(), defaultClientSecret),
			TokenDir:     joinIfDir(DefaultDataDir(), defaultTokenDirName),
		},
		Photos: PhotosConfig{
			DestDir:         defaultPhotosDestDir,
			DuplicatePolicy: defaultPhotosPolicy,
			DuplicateDir:    defaultDuplicateDir,
		},
		Drive: DriveConfig{
			DestDir:         defaultDriveDestDir,
			RootFolder:      defaultRootFolder,
			DuplicatePolicy: defaultDrivePolicy,
			DuplicateDir:    defaultDuplicateDir,
			ExportFormat:    defaultExportFormat,
		},
		Transfers: TransfersConfig{
			BandwidthLimit: defaultBandwidthLimit,
		},
		Recorder: RecorderConfig{
			Database: joinIfDir(DefaultDataDir(), defaultDatabaseName),
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		Network: NetworkConfig{
			ConnectTimeout: defaultConnectTimeout,
			DataTimeout:    defaultDataTimeout,
		},
	}
}

// DefaultFailureLogPath is used when the database is disabled and no
// failure_log is configured.
func DefaultFailureLogPath() string {
	return joinIfDir(DefaultDataDir(), defaultFailureLogName)
}

// joinIfDir returns "" when dir is unknown (no home directory).
func joinIfDir(dir, name string) string {
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, name)
}
