package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/mediavault/gbackup/internal/catalog"
	"github.com/mediavault/gbackup/internal/config"
	"github.com/mediavault/gbackup/internal/gauth"
	"github.com/mediavault/gbackup/internal/gdrive"
	"github.com/mediavault/gbackup/internal/photos"
	"github.com/mediavault/gbackup/internal/sync"
)

func newPhotosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photos",
		Short: "Back up the Google Photos library",
		Long: "Downloads every media item in the library into the destination\n" +
			"directory. Items whose file already exists are handled by the duplicate\n" +
			"policy.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBackup(cmd, sync.SourcePhotos)
		},
	}

	addBackupFlags(cmd)

	return cmd
}

func newDriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Back up a Google Drive folder tree",
		Long: "Downloads a Drive folder and everything below it, recreating the folder\n" +
			"structure locally. Google Docs, Sheets and Slides are exported.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBackup(cmd, sync.SourceDrive)
		},
	}

	addBackupFlags(cmd)
	cmd.Flags().String("folder", "", "Drive folder ID to start from (default: root)")

	return cmd
}

// addBackupFlags registers the flags read by cliOverrides.
func addBackupFlags(cmd *cobra.Command) {
	cmd.Flags().String("dest", "", "destination directory")
	cmd.Flags().String("policy", "", "when the file exists: skip or diverge")
}

// backupPlan is the per-source slice of the configuration.
type backupPlan struct {
	source       string
	destDir      string
	rootFolder   string
	policy       string
	duplicateDir string
	exportMIME   string
	skipFiles    []string
}

func planFor(cfg *config.Config, source string) backupPlan {
	if source == sync.SourceDrive {
		return backupPlan{
			source:       source,
			destDir:      cfg.Drive.DestDir,
			rootFolder:   cfg.Drive.RootFolder,
			policy:       cfg.Drive.DuplicatePolicy,
			duplicateDir: cfg.Drive.DuplicateDir,
			exportMIME:   cfg.Drive.ExportFormat,
			skipFiles:    cfg.Drive.SkipFiles,
		}
	}

	return backupPlan{
		source:       source,
		destDir:      cfg.Photos.DestDir,
		policy:       cfg.Photos.DuplicatePolicy,
		duplicateDir: cfg.Photos.DuplicateDir,
		skipFiles:    cfg.Photos.SkipFiles,
	}
}

// sourceFactory builds the remote side of a run. Tests replace it.
var sourceFactory = newSource

func runBackup(cmd *cobra.Command, source string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger
	plan := planFor(cc.Cfg, source)

	ctx, stop := shutdownContext(cmd.Context(), logger)
	defer stop()

	unlock, err := lockDestination(plan.destDir)
	if err != nil {
		return err
	}

	defer func() {
		if uerr := unlock(); uerr != nil {
			logger.Warn("releasing destination lock", slog.String("error", uerr.Error()))
		}
	}()

	src, err := sourceFactory(ctx, cc, source)
	if err != nil {
		return err
	}

	recorder, closeRecorders, err := openRecorders(ctx, cc)
	if err != nil {
		return err
	}
	defer closeRecorders()

	policy, err := sync.ParsePolicy(plan.policy)
	if err != nil {
		return err
	}

	limiter, err := sync.NewBandwidthLimiter(cc.Cfg.Transfers.BandwidthLimit, logger)
	if err != nil {
		return err
	}

	engine, err := sync.NewEngine(&sync.EngineConfig{
		Source:       src,
		Recorder:     recorder,
		Policy:       policy,
		DuplicateDir: plan.duplicateDir,
		ExportMIME:   plan.exportMIME,
		Filter:       sync.NewFilter(plan.skipFiles),
		Limiter:      limiter,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	report, runErr := engine.Run(ctx, sync.Scope{FolderID: plan.rootFolder, LocalDir: plan.destDir})
	if report != nil {
		if err := printReport(cc, report, plan.destDir); err != nil {
			return err
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("%s backup interrupted", source)
		}

		return fmt.Errorf("%s backup: %w", source, runErr)
	}

	return nil
}

// newSource authenticates and returns the sync.Source for source.
func newSource(ctx context.Context, cc *CLIContext, source string) (sync.Source, error) {
	httpClient := newHTTPClient(&cc.Cfg.Network)
	userAgent := userAgentFor(&cc.Cfg.Network)

	ts, err := tokenSourceFor(ctx, cc, source, httpClient)
	if err != nil {
		return nil, err
	}

	switch source {
	case sync.SourcePhotos:
		client := photos.NewClient(photos.DefaultBaseURL, httpClient,
			gauth.NewBearer(ts, cc.Logger), cc.Logger, userAgent)

		return sync.NewPhotosSource(client), nil
	case sync.SourceDrive:
		client, err := gdrive.New(ctx, ts, httpClient, userAgent, cc.Logger)
		if err != nil {
			return nil, err
		}

		return sync.NewDriveSource(client), nil
	default:
		return nil, fmt.Errorf("%w: %q", gauth.ErrUnknownSource, source)
	}
}

// tokenSourceFor picks the credential: a Drive service account key when one
// is configured, otherwise the token saved by "gbackup login".
func tokenSourceFor(ctx context.Context, cc *CLIContext, source string, httpClient *http.Client) (oauth2.TokenSource, error) {
	auth := &cc.Cfg.Auth

	if source == sync.SourceDrive && auth.ServiceAccount != "" {
		scopes, err := gauth.ScopesFor(source)
		if err != nil {
			return nil, err
		}

		cc.Logger.Debug("using service account", slog.String("key", auth.ServiceAccount))

		return gauth.ServiceAccountTokenSource(auth.ServiceAccount, scopes)
	}

	oauthCfg, err := gauth.LoadClientConfig(auth.ClientSecret, source)
	if err != nil {
		return nil, err
	}

	store := gauth.NewStore(config.TokenPath(auth.TokenDir, source), source, oauthCfg, cc.Logger)

	// Token refreshes go through the same timeouts as API calls.
	refreshCtx := context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	ts, err := store.TokenSource(refreshCtx)
	if errors.Is(err, gauth.ErrNotLoggedIn) {
		return nil, fmt.Errorf("%w; run: gbackup login --source %s", err, source)
	}

	return ts, err
}

// newHTTPClient applies the network timeouts. There is no overall request
// timeout: downloads may legitimately run for a long time.
func newHTTPClient(n *config.NetworkConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   n.ConnectTimeoutDuration(),
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = n.ConnectTimeoutDuration()
	transport.ResponseHeaderTimeout = n.DataTimeoutDuration()

	return &http.Client{Transport: transport}
}

func userAgentFor(n *config.NetworkConfig) string {
	if n.UserAgent != "" {
		return n.UserAgent
	}

	return "gbackup/" + version
}

// openRecorders opens the catalog and failure log the config asks for. The
// returned func closes whatever was opened.
func openRecorders(ctx context.Context, cc *CLIContext) (sync.Recorder, func(), error) {
	rc := &cc.Cfg.Recorder

	var (
		recorders sync.Recorders
		closers   []func() error
	)

	if !rc.DisableDatabase {
		cat, err := catalog.Open(ctx, rc.Database, cc.Logger)
		if err != nil {
			return nil, nil, err
		}

		recorders = append(recorders, cat)
		closers = append(closers, cat.Close)
	}

	failureLog := rc.FailureLog
	if failureLog == "" && rc.DisableDatabase {
		failureLog = config.DefaultFailureLogPath()
	}

	if failureLog != "" {
		recorders = append(recorders, catalog.NewFailureLog(failureLog))
		cc.Logger.Debug("recording failures", slog.String("path", failureLog))
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				cc.Logger.Warn("closing recorder", slog.String("error", err.Error()))
			}
		}
	}

	return recorders, closeAll, nil
}

// reportJSON is the --json schema for backup summaries.
type reportJSON struct {
	Source     string  `json:"source"`
	Dest       string  `json:"dest"`
	Downloaded int     `json:"downloaded"`
	Duplicates int     `json:"duplicates"`
	Skipped    int     `json:"skipped"`
	Failed     int     `json:"failed"`
	Folders    int     `json:"folders"`
	Pages      int     `json:"pages"`
	Bytes      int64   `json:"bytes"`
	Seconds    float64 `json:"seconds"`
}

func printReport(cc *CLIContext, r *sync.Report, dest string) error {
	if cc.Flags.JSON {
		return writeJSON(cc.Stdout, reportJSON{
			Source:     r.Source,
			Dest:       dest,
			Downloaded: r.Downloaded,
			Duplicates: r.Duplicates,
			Skipped:    r.Skipped,
			Failed:     r.Failed,
			Folders:    r.Folders,
			Pages:      r.Pages,
			Bytes:      r.Bytes,
			Seconds:    r.Duration.Seconds(),
		})
	}

	fmt.Fprintf(cc.Stdout, "%s backup to %s\n", r.Source, dest)
	fmt.Fprintf(cc.Stdout, "  downloaded  %s (%s)\n", formatCount(r.Downloaded), formatSize(r.Bytes))
	fmt.Fprintf(cc.Stdout, "  duplicates  %s\n", formatCount(r.Duplicates))
	fmt.Fprintf(cc.Stdout, "  skipped     %s\n", formatCount(r.Skipped))
	fmt.Fprintf(cc.Stdout, "  failed      %s\n", formatCount(r.Failed))

	if r.Folders > 0 {
		fmt.Fprintf(cc.Stdout, "  folders     %s\n", formatCount(r.Folders))
	}

	fmt.Fprintf(cc.Stdout, "  elapsed     %s\n", r.Duration.Round(time.Second))

	return nil
}
