package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal, with "did you mean?" hints.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads path if it exists, otherwise returns the defaults, so
// gbackup runs without any config file.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// ResolveConfigPath picks the config file: CLI > env > default.
func ResolveConfigPath(env EnvOverrides, cli CLIOverrides) string {
	if cli.ConfigPath != "" {
		return cli.ConfigPath
	}

	if env.ConfigPath != "" {
		return env.ConfigPath
	}

	return DefaultConfigPath()
}

// Resolve applies the full chain (defaults -> file -> env -> CLI), expands
// "~" in every path and validates the result.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	cfg, err := LoadOrDefault(ResolveConfigPath(env, cli))
	if err != nil {
		return nil, err
	}

	env.apply(cfg)

	if err := applyCLI(cfg, cli); err != nil {
		return nil, err
	}

	expandPaths(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyCLI(cfg *Config, cli CLIOverrides) error {
	if cli.DestDir == nil && cli.Policy == nil && cli.RootFolder == nil {
		return nil
	}

	switch cli.Source {
	case SourcePhotos:
		if cli.DestDir != nil {
			cfg.Photos.DestDir = *cli.DestDir
		}

		if cli.Policy != nil {
			cfg.Photos.DuplicatePolicy = *cli.Policy
		}

		if cli.RootFolder != nil {
			return errors.New("--folder applies to drive backups only")
		}
	case SourceDrive:
		if cli.DestDir != nil {
			cfg.Drive.DestDir = *cli.DestDir
		}

		if cli.Policy != nil {
			cfg.Drive.DuplicatePolicy = *cli.Policy
		}

		if cli.RootFolder != nil {
			cfg.Drive.RootFolder = *cli.RootFolder
		}
	default:
		return fmt.Errorf("overrides given for unknown source %q", cli.Source)
	}

	return nil
}

func expandPaths(cfg *Config) {
	for _, p := range []*string{
		&cfg.Auth.ClientSecret,
		&cfg.Auth.TokenDir,
		&cfg.Auth.ServiceAccount,
		&cfg.Photos.DestDir,
		&cfg.Drive.DestDir,
		&cfg.Recorder.Database,
		&cfg.Recorder.FailureLog,
		&cfg.Logging.LogFile,
	} {
		*p = expandTilde(*p)
	}
}

// expandTilde replaces a leading "~/" with the user's home directory.
func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}
