// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for gbackup. Values resolve through a
// four-layer chain: defaults -> config file -> environment -> CLI flags.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Auth      AuthConfig      `toml:"auth"`
	Photos    PhotosConfig    `toml:"photos"`
	Drive     DriveConfig     `toml:"drive"`
	Transfers TransfersConfig `toml:"transfers"`
	Recorder  RecorderConfig  `toml:"recorder"`
	Logging   LoggingConfig   `toml:"logging"`
	Network   NetworkConfig   `toml:"network"`
}

// AuthConfig locates the OAuth client registration and the token cache.
type AuthConfig struct {
	ClientSecret string `toml:"client_secret"`
	TokenDir     string `toml:"token_dir"`
	// ServiceAccount is a key file used for Drive instead of a user login.
	ServiceAccount string `toml:"service_account"`
}

// PhotosConfig controls the Google Photos library backup.
type PhotosConfig struct {
	DestDir         string   `toml:"dest_dir"`
	DuplicatePolicy string   `toml:"duplicate_policy"`
	DuplicateDir    string   `toml:"duplicate_dir"`
	SkipFiles       []string `toml:"skip_files"`
}

// DriveConfig controls the Google Drive folder backup.
type DriveConfig struct {
	DestDir         string   `toml:"dest_dir"`
	RootFolder      string   `toml:"root_folder"`
	DuplicatePolicy string   `toml:"duplicate_policy"`
	DuplicateDir    string   `toml:"duplicate_dir"`
	ExportFormat    string   `toml:"export_format"`
	SkipFiles       []string `toml:"skip_files"`
}

// TransfersConfig limits download throughput.
type TransfersConfig struct {
	BandwidthLimit string `toml:"bandwidth_limit"`
}

// RecorderConfig selects where outcomes are recorded.
type RecorderConfig struct {
	Database        string `toml:"database"`
	DisableDatabase bool   `toml:"disable_database"`
	// FailureLog is a CSV of failed items. Empty disables it unless the
	// database is disabled, in which case a default path is used.
	FailureLog string `toml:"failure_log"`
}

// LoggingConfig controls log output: level, format and destination.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	DataTimeout    string `toml:"data_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// CLIOverrides holds flag values. Pointer fields distinguish "not given"
// (nil) from an explicit value.
type CLIOverrides struct {
	ConfigPath string // --config (empty = env or default)
	// Source selects which section DestDir and Policy apply to.
	Source     string
	DestDir    *string // --dest
	Policy     *string // --policy
	RootFolder *string // --folder (drive only)
}

// Source section names, matching the CLI subcommands.
const (
	SourcePhotos = "photos"
	SourceDrive  = "drive"
)
