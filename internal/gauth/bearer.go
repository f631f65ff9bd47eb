package gauth

import (
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
)

// Bearer adapts an oauth2.TokenSource to the string-token interface used by
// the hand-rolled API clients. Every acquisition is logged at debug level so
// refresh activity is visible.
type Bearer struct {
	src    oauth2.TokenSource
	logger *slog.Logger
}

// NewBearer wraps src.
func NewBearer(src oauth2.TokenSource, logger *slog.Logger) *Bearer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bearer{src: src, logger: logger}
}

// Token returns the current access token.
func (b *Bearer) Token() (string, error) {
	t, err := b.src.Token()
	if err != nil {
		b.logger.Warn("token acquisition failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("gauth: obtaining token: %w", err)
	}

	b.logger.Debug("token acquired",
		slog.Time("expiry", t.Expiry),
		slog.Bool("valid", t.Valid()),
	)

	return t.AccessToken, nil
}
