package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mediavault/gbackup/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// dotEnvFile is loaded from the working directory before config resolution.
const dotEnvFile = ".env"

// CLIFlags holds the global persistent flags.
type CLIFlags struct {
	ConfigPath string
	JSON       bool
	Verbose    bool
	Quiet      bool
}

// CLIContext is built once per invocation by the root pre-run and handed to
// subcommands through the command context.
type CLIContext struct {
	Flags CLIFlags
	// Cfg is the effective configuration after every override layer.
	Cfg *config.Config
	// CfgPath is the config file that was read, or "" for built-in defaults.
	CfgPath string
	Env     config.EnvOverrides
	Logger  *slog.Logger

	Stdout io.Writer
	Stderr io.Writer

	closeLog func() error
}

type cliContextKey struct{}

// cliContextFrom returns the CLIContext stored by the root pre-run.
func cliContextFrom(ctx context.Context) *CLIContext {
	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)
	return cc
}

// mustCLIContext is cliContextFrom for RunE functions, where the pre-run is
// guaranteed to have run.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("gbackup: command run without CLIContext")
	}

	return cc
}

// skipConfigCommands resolve their own paths and must work with a broken or
// missing config file.
var skipConfigCommands = map[string]bool{
	"gbackup config init": true,
}

// newRootCmd builds the root command with every subcommand registered.
func newRootCmd() *cobra.Command {
	flags := &CLIFlags{}

	cmd := &cobra.Command{
		Use:   "gbackup",
		Short: "Back up Google Photos and Google Drive to local disk",
		Long: "gbackup downloads a Google Photos library or a Google Drive folder tree\n" +
			"into a local directory and records every outcome in a local catalog.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := newCLIContext(cmd, *flags)
			if err != nil {
				return err
			}

			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if cc := cliContextFrom(cmd.Context()); cc != nil && cc.closeLog != nil {
				return cc.closeLog()
			}

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flags.JSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "only log errors")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newPhotosCmd())
	cmd.AddCommand(newDriveCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// newCLIContext loads .env, resolves the configuration for cmd and builds
// the logger.
func newCLIContext(cmd *cobra.Command, flags CLIFlags) (*CLIContext, error) {
	if err := config.LoadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}

	env := config.ReadEnvOverrides()
	cli := cliOverrides(cmd, flags)

	cc := &CLIContext{
		Flags:  flags,
		Env:    env,
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	}

	if skipConfigCommands[cmd.CommandPath()] {
		cc.Cfg = config.DefaultConfig()
	} else {
		cfg, err := config.Resolve(env, cli)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}

		cc.Cfg = cfg
		cc.CfgPath = existingPath(config.ResolveConfigPath(env, cli))
	}

	logger, closeLog, err := buildLogger(&cc.Cfg.Logging, flags, cc.Stderr)
	if err != nil {
		return nil, err
	}

	cc.Logger = logger
	cc.closeLog = closeLog

	return cc, nil
}

// cliOverrides collects the per-command flags that override config values.
// Only flags the user actually set take part.
func cliOverrides(cmd *cobra.Command, flags CLIFlags) config.CLIOverrides {
	cli := config.CLIOverrides{
		ConfigPath: flags.ConfigPath,
		Source:     cmd.Name(),
	}

	changed := func(name string) *string {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			return nil
		}

		v := f.Value.String()

		return &v
	}

	cli.DestDir = changed("dest")
	cli.Policy = changed("policy")
	cli.RootFolder = changed("folder")

	return cli
}

// existingPath returns path when it names a file, otherwise "".
func existingPath(path string) string {
	if path == "" {
		return ""
	}

	if _, err := os.Stat(path); err != nil {
		return ""
	}

	return path
}

// logFileDirPermissions is used when log_file points into a missing directory.
const logFileDirPermissions = 0o755

// buildLogger creates the slog.Logger for this invocation. log_level sets the
// baseline; --verbose and --quiet override it. Output goes to log_file when
// set, otherwise to stderr.
func buildLogger(lc *config.LoggingConfig, flags CLIFlags, stderr io.Writer) (*slog.Logger, func() error, error) {
	level := config.ParseLogLevel(lc.LogLevel)

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	out := stderr
	closeLog := func() error { return nil }

	if lc.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(lc.LogFile), logFileDirPermissions); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}

		f, err := os.OpenFile(lc.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}

		out = f
		closeLog = f.Close
	}

	return slog.New(newLogHandler(out, lc.LogFormat, level)), closeLog, nil
}

// exitOnError prints a user-facing error to stderr and exits 1.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
