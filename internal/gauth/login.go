package gauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// stateTokenBytes is the number of random bytes in the OAuth2 state parameter.
const stateTokenBytes = 16

// callbackPath is the path Google redirects to on the loopback server.
const callbackPath = "/"

// shutdownTimeout bounds how long the callback server drains on exit.
const shutdownTimeout = 5 * time.Second

type callbackResult struct {
	code string
	err  error
}

// Login runs the installed-app authorization code flow with PKCE:
//  1. binds a loopback HTTP server on a random port
//  2. hands the consent URL to openURL (falls back to printing it on prompt)
//  3. waits for Google to redirect back with the code
//  4. exchanges the code and persists the token through the store
func Login(
	ctx context.Context,
	store *Store,
	openURL func(string) error,
	prompt io.Writer,
	logger *slog.Logger,
) (*oauth2.Token, error) {
	logger.Info("starting browser auth flow",
		slog.String("source", store.source),
		slog.String("path", store.path),
	)

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()

	srv, port, err := startCallbackServer(ctx, mux, resultCh, logger)
	if err != nil {
		return nil, err
	}

	defer shutdownCallbackServer(srv, logger)

	// Work on a copy so the store's config keeps its original redirect URL.
	cfg := *store.cfg
	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d%s", port, callbackPath)

	verifier := oauth2.GenerateVerifier()

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("gauth: generating state token: %w", err)
	}

	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		handleCallback(w, r, state, resultCh)
	})

	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)

	logger.Info("opening browser for authorization")

	if openErr := openURL(authURL); openErr != nil {
		logger.Warn("failed to open browser, printing URL", slog.String("error", openErr.Error()))
		fmt.Fprintf(prompt, "Open this URL in your browser:\n%s\n", authURL)
	}

	code, err := waitForCallback(ctx, resultCh)
	if err != nil {
		return nil, err
	}

	logger.Info("received authorization code, exchanging for token")

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("gauth: token exchange failed: %w", err)
	}

	if err := store.Persist(tok); err != nil {
		return nil, err
	}

	logger.Info("login successful",
		slog.String("source", store.source),
		slog.Time("expiry", tok.Expiry),
	)

	return tok, nil
}

func startCallbackServer(
	ctx context.Context,
	mux *http.ServeMux,
	resultCh chan<- callbackResult,
	logger *slog.Logger,
) (*http.Server, int, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, 0, fmt.Errorf("gauth: binding loopback listener: %w", err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, 0, errors.New("gauth: listener address is not TCP")
	}

	logger.Debug("callback server listening", slog.Int("port", tcpAddr.Port))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			select {
			case resultCh <- callbackResult{err: fmt.Errorf("gauth: callback server error: %w", serveErr)}:
			default:
			}
		}
	}()

	return srv, tcpAddr.Port, nil
}

// handleCallback validates state, extracts the code and reports exactly one
// result; later hits (favicon, reloads) are answered but dropped.
func handleCallback(w http.ResponseWriter, r *http.Request, state string, resultCh chan<- callbackResult) {
	q := r.URL.Query()

	var result callbackResult

	switch {
	case q.Get("state") != state:
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		result.err = errors.New("gauth: OAuth2 state mismatch (possible CSRF)")
	case q.Get("error") != "":
		http.Error(w, "Authorization failed: "+q.Get("error"), http.StatusBadRequest)
		result.err = fmt.Errorf("gauth: authorization failed: %s", q.Get("error"))
	case q.Get("code") == "":
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		result.err = errors.New("gauth: callback missing authorization code")
	default:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body><h1>gbackup is authorized</h1>"+
			"<p>You can close this window and return to the terminal.</p></body></html>")
		result.code = q.Get("code")
	}

	select {
	case resultCh <- result:
	default:
	}
}

func shutdownCallbackServer(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
	}
}

func waitForCallback(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	select {
	case result := <-resultCh:
		if result.err != nil {
			return "", result.err
		}

		return result.code, nil
	case <-ctx.Done():
		return "", fmt.Errorf("gauth: browser auth canceled: %w", ctx.Err())
	}
}

func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
