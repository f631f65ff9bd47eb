package photos

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// DefaultBaseURL is the Photos Library API root.
const DefaultBaseURL = "https://photoslibrary.googleapis.com"

// Retry and backoff constants.
const (
	maxRetries       = 5
	baseBackoff      = 1 * time.Second
	maxBackoff       = 60 * time.Second
	backoffFactor    = 2.0
	jitterFraction   = 0.25
	defaultUserAgent = "gbackup/0.1"
	maxErrorBody     = 64 << 10
)

// TokenSource provides OAuth2 bearer tokens.
type TokenSource interface {
	Token() (string, error)
}

// Client talks to the Photos Library API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
	userAgent  string

	// sleepFunc waits between retries. Tests override it.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Photos client. An empty userAgent selects the default.
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger, userAgent string) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
		userAgent:  userAgent,
		sleepFunc:  timeSleep,
	}
}

// get issues an authenticated GET against path (relative to baseURL).
// The caller closes the response body.
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	return c.doRetry(ctx, path, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("photos: creating request: %w", err)
		}

		tok, err := c.token.Token()
		if err != nil {
			return nil, fmt.Errorf("photos: obtaining token: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+tok)

		return req, nil
	})
}

// doRetry executes the request built by newReq, retrying network errors and
// retryable statuses with exponential backoff. label is what gets logged;
// download URLs embed credentials and are never logged.
func (c *Client) doRetry(ctx context.Context, label string, newReq func() (*http.Request, error)) (*http.Response, error) {
	var attempt int

	for {
		req, err := newReq()
		if err != nil {
			return nil, err
		}

		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("photos: request canceled: %w", ctx.Err())
			}

			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("request", label),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("photos: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("photos: %s failed after %d retries: %w", label, maxRetries, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("request", label),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		errBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if isRetryable(resp.StatusCode) && attempt < maxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("request", label),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("photos: request canceled: %w", err)
			}

			attempt++

			continue
		}

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(errBody),
			Err:        classifyStatus(resp.StatusCode),
		}
	}
}

// retryBackoff honors Retry-After on 429, otherwise uses calcBackoff.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand

	return time.Duration(backoff + jitter)
}

func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
