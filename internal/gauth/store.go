package gauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/mediavault/gbackup/internal/tokenfile"
)

// ErrNoRefreshToken is returned by Refresh when the stored credential cannot
// be renewed without a new interactive login.
var ErrNoRefreshToken = errors.New("gauth: token has no refresh token (run login again)")

// Store is the token store for one source. It pairs the token file on disk
// with the OAuth client config needed to refresh it.
type Store struct {
	path    string
	source  string
	cfg     *oauth2.Config
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewStore creates a Store for the token file at path.
func NewStore(path, source string, cfg *oauth2.Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		path:    path,
		source:  source,
		cfg:     cfg,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Path returns the token file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the saved credential, or (nil, nil) when none exists.
func (s *Store) Load() (*oauth2.Token, error) {
	tf, err := tokenfile.Load(s.path)
	if err != nil {
		return nil, err
	}

	if tf == nil {
		return nil, nil //nolint:nilnil // absent credential
	}

	if tf.Source != "" && tf.Source != s.source {
		s.logger.Warn("token file belongs to a different source",
			slog.String("path", s.path),
			slog.String("want", s.source),
			slog.String("got", tf.Source),
		)
	}

	tok := tf.Token
	s.logger.Debug("loaded saved token",
		slog.String("path", s.path),
		slog.Time("expiry", tok.Expiry),
		slog.Bool("expired", !tok.Expiry.IsZero() && tok.Expiry.Before(s.nowFunc())),
	)

	return tok, nil
}

// Refresh exchanges the refresh token for a fresh access token. The result is
// not persisted; callers pair it with Persist.
func (s *Store) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	// Drop the access token so the config's source always hits the endpoint.
	stale := &oauth2.Token{RefreshToken: tok.RefreshToken}

	fresh, err := s.cfg.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, fmt.Errorf("gauth: refreshing %s token: %w", s.source, err)
	}

	s.logger.Info("token refreshed",
		slog.String("source", s.source),
		slog.Time("new_expiry", fresh.Expiry),
	)

	return fresh, nil
}

// Persist writes tok to the token file.
func (s *Store) Persist(tok *oauth2.Token) error {
	err := tokenfile.Save(s.path, &tokenfile.File{
		Token:   tok,
		Source:  s.source,
		Scopes:  s.cfg.Scopes,
		SavedAt: s.nowFunc().UTC(),
	})
	if err != nil {
		return fmt.Errorf("gauth: persisting %s token: %w", s.source, err)
	}

	s.logger.Debug("persisted token", slog.String("path", s.path))

	return nil
}

// Remove deletes the token file.
func (s *Store) Remove() error {
	removed, err := tokenfile.Remove(s.path)
	if err != nil {
		return err
	}

	if removed {
		s.logger.Info("removed token file", slog.String("path", s.path))
	} else {
		s.logger.Info("no token file to remove (already logged out)", slog.String("path", s.path))
	}

	return nil
}

// TokenSource loads the saved credential and returns a source that refreshes
// it silently and writes every newly issued token back to disk.
//
// ctx is bound to the refresh HTTP calls and must outlive the source.
func (s *Store) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := s.Load()
	if err != nil {
		return nil, err
	}

	if tok == nil {
		return nil, fmt.Errorf("%w: no token at %s", ErrNotLoggedIn, s.path)
	}

	return &persistingSource{
		base:   s.cfg.TokenSource(ctx, tok),
		store:  s,
		last:   tok.AccessToken,
		logger: s.logger,
	}, nil
}

// persistingSource saves the token whenever the wrapped source hands out a
// new access token.
type persistingSource struct {
	base   oauth2.TokenSource
	store  *Store
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if tok.AccessToken == p.last {
		return tok, nil
	}

	p.last = tok.AccessToken

	if err := p.store.Persist(tok); err != nil {
		p.logger.Warn("failed to persist refreshed token", slog.String("error", err.Error()))
	}

	return tok, nil
}
