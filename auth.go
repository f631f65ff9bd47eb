package main

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mediavault/gbackup/internal/config"
	"github.com/mediavault/gbackup/internal/gauth"
)

var allSources = []string{gauth.SourcePhotos, gauth.SourceDrive}

func newLoginCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize gbackup to read Google Photos or Google Drive",
		Long: "Opens a browser for Google's consent screen and stores the resulting\n" +
			"token. Each source has its own token and must be authorized separately.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, source)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "source to authorize: photos or drive")
	cmd.MarkFlagRequired("source") //nolint:errcheck // flag is defined above

	return cmd
}

func newLogoutCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove saved tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogout(cmd, source)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "source to log out of (default: all)")

	return cmd
}

// browserOpener is replaced in tests.
var browserOpener = openBrowser

func runLogin(cmd *cobra.Command, source string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger

	if _, err := gauth.ScopesFor(source); err != nil {
		return err
	}

	oauthCfg, err := gauth.LoadClientConfig(cc.Cfg.Auth.ClientSecret, source)
	if err != nil {
		return err
	}

	store := gauth.NewStore(config.TokenPath(cc.Cfg.Auth.TokenDir, source), source, oauthCfg, logger)

	ctx, stop := shutdownContext(cmd.Context(), logger)
	defer stop()

	// The URL prompt must show even with --quiet.
	if _, err := gauth.Login(ctx, store, browserOpener, cc.Stderr, logger); err != nil {
		return err
	}

	cc.Statusf("Logged in to %s. Token saved to %s\n", source, store.Path())

	return nil
}

func runLogout(cmd *cobra.Command, source string) error {
	cc := mustCLIContext(cmd.Context())

	sources := allSources
	if source != "" {
		if _, err := gauth.ScopesFor(source); err != nil {
			return err
		}

		sources = []string{source}
	}

	for _, s := range sources {
		store := gauth.NewStore(config.TokenPath(cc.Cfg.Auth.TokenDir, s), s, nil, cc.Logger)
		if err := store.Remove(); err != nil {
			return fmt.Errorf("logging out of %s: %w", s, err)
		}

		cc.Statusf("Logged out of %s.\n", s)
	}

	return nil
}

// openBrowser launches the platform URL handler without waiting for it.
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}

	go cmd.Wait() //nolint:errcheck // the browser outlives us

	return nil
}
