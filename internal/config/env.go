package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names for overrides.
const (
	EnvConfig       = "GBACKUP_CONFIG"
	EnvClientSecret = "GBACKUP_CLIENT_SECRET"
	EnvPhotosDir    = "GBACKUP_PHOTOS_DIR"
	EnvDriveDir     = "GBACKUP_DRIVE_DIR"
	EnvDatabase     = "GBACKUP_DATABASE"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath   string
	ClientSecret string
	PhotosDir    string
	DriveDir     string
	Database     string
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set are left alone, and a missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	return nil
}

// ReadEnvOverrides reads the GBACKUP_* variables.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		ClientSecret: os.Getenv(EnvClientSecret),
		PhotosDir:    os.Getenv(EnvPhotosDir),
		DriveDir:     os.Getenv(EnvDriveDir),
		Database:     os.Getenv(EnvDatabase),
	}
}

// apply copies non-empty overrides into cfg.
func (env EnvOverrides) apply(cfg *Config) {
	if env.ClientSecret != "" {
		cfg.Auth.ClientSecret = env.ClientSecret
	}

	if env.PhotosDir != "" {
		cfg.Photos.DestDir = env.PhotosDir
	}

	if env.DriveDir != "" {
		cfg.Drive.DestDir = env.DriveDir
	}

	if env.Database != "" {
		cfg.Recorder.Database = env.Database
	}
}
