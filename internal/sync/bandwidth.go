package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/mediavault/gbackup/internal/config"
)

// burstMultiplier sizes the token bucket relative to the per-second rate.
const burstMultiplier = 2

// BandwidthLimiter caps the aggregate write rate of downloads. A nil
// limiter is unlimited.
type BandwidthLimiter struct {
	limiter *rate.Limiter
}

// NewBandwidthLimiter parses a bandwidth_limit value such as "5MB/s".
// It returns nil for "0" or "".
func NewBandwidthLimiter(bandwidthLimit string, logger *slog.Logger) (*BandwidthLimiter, error) {
	bytesPerSec, err := parseBandwidthRate(bandwidthLimit)
	if err != nil {
		return nil, fmt.Errorf("sync: bandwidth limit %q: %w", bandwidthLimit, err)
	}

	if bytesPerSec == 0 {
		return nil, nil //nolint:nilnil // nil limiter means unlimited
	}

	burst := int(bytesPerSec) * burstMultiplier

	logger.Debug("bandwidth limit enabled",
		slog.Int64("bytes_per_sec", bytesPerSec),
		slog.Int("burst", burst),
	)

	return &BandwidthLimiter{limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst)}, nil
}

// parseBandwidthRate parses "5MB/s", "100KB", "0" into bytes per second.
func parseBandwidthRate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	if strings.HasSuffix(strings.ToLower(s), "/s") {
		s = s[:len(s)-len("/s")]
	}

	n, err := config.ParseSize(s)
	if err != nil {
		return 0, err
	}

	if n < 0 {
		return 0, fmt.Errorf("must be non-negative")
	}

	return n, nil
}

// WrapWriter returns w throttled by bl. A nil bl returns w unchanged.
func (bl *BandwidthLimiter) WrapWriter(ctx context.Context, w io.Writer) io.Writer {
	if bl == nil {
		return w
	}

	return &limitedWriter{w: w, limiter: bl.limiter, ctx: ctx}
}

type limitedWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n, err := lw.w.Write(p)
	if n > 0 {
		if waitErr := waitN(lw.ctx, lw.limiter, n); waitErr != nil {
			return n, waitErr
		}
	}

	return n, err
}

// waitN takes n tokens in burst-sized steps; WaitN rejects requests larger
// than the burst.
func waitN(ctx context.Context, limiter *rate.Limiter, n int) error {
	burst := limiter.Burst()

	for n > 0 {
		take := min(n, burst)

		if err := limiter.WaitN(ctx, take); err != nil {
			return err
		}

		n -= take
	}

	return nil
}
