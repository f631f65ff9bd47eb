package sync

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBandwidthRate(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"0", 0},
		{"2MB/s", 2_000_000},
		{"512KiB/s", 524_288},
		{"750KB", 750_000},
		{"4096", 4096},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseBandwidthRate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"fast", "-3MB/s", "x/s"} {
		_, err := parseBandwidthRate(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewBandwidthLimiter(t *testing.T) {
	bl, err := NewBandwidthLimiter("0", testLogger(t))
	require.NoError(t, err)
	assert.Nil(t, bl)

	bl, err = NewBandwidthLimiter("1MB/s", testLogger(t))
	require.NoError(t, err)
	require.NotNil(t, bl)
	assert.Equal(t, 2_000_000, bl.limiter.Burst())

	_, err = NewBandwidthLimiter("lots", testLogger(t))
	assert.Error(t, err)
}

func TestWrapWriter_NilPassesThrough(t *testing.T) {
	var bl *BandwidthLimiter
	var buf bytes.Buffer

	w := bl.WrapWriter(context.Background(), &buf)
	assert.Same(t, &buf, w)
}

func TestWrapWriter_Throttles(t *testing.T) {
	// 1000 B/s with a 2000 B burst: 3000 bytes need about a second.
	bl, err := NewBandwidthLimiter("1000", testLogger(t))
	require.NoError(t, err)

	var buf bytes.Buffer

	w := bl.WrapWriter(context.Background(), &buf)

	start := time.Now()
	n, err := w.Write([]byte(strings.Repeat("x", 3000)))
	require.NoError(t, err)

	assert.Equal(t, 3000, n)
	assert.GreaterOrEqual(t, time.Since(start), 800*time.Millisecond)
}

func TestWrapWriter_CanceledContext(t *testing.T) {
	bl, err := NewBandwidthLimiter("10", testLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer

	_, err = bl.WrapWriter(ctx, &buf).Write([]byte(strings.Repeat("y", 100)))
	assert.Error(t, err)
}
