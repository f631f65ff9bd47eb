package gauth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokener struct {
	token string
	exp   int64
	err   error
}

func (f fakeTokener) AccessToken() (string, int64, error) {
	return f.token, f.exp, f.err
}

func TestStubbsSource_Token(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		exp  int64
		want time.Time
	}{
		{"unix timestamp", now.Add(time.Hour).Unix(), now.Add(time.Hour)},
		{"lifetime seconds", 600, now.Add(10 * time.Minute)},
		{"missing", 0, now.Add(time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &stubbsSource{auth: fakeTokener{token: "sa-token", exp: tt.exp}, now: func() time.Time { return now }}

			tok, err := src.Token()
			require.NoError(t, err)
			assert.Equal(t, "sa-token", tok.AccessToken)
			assert.Equal(t, "Bearer", tok.TokenType)
			assert.True(t, tok.Expiry.Equal(tt.want), "expiry = %v, want %v", tok.Expiry, tt.want)
		})
	}
}

func TestStubbsSource_Errors(t *testing.T) {
	src := &stubbsSource{auth: fakeTokener{err: errors.New("jwt rejected")}, now: time.Now}
	_, err := src.Token()
	assert.ErrorContains(t, err, "jwt rejected")

	src = &stubbsSource{auth: fakeTokener{}, now: time.Now}
	_, err = src.Token()
	assert.ErrorContains(t, err, "empty token")
}

func TestServiceAccountTokenSource_BadKeyFile(t *testing.T) {
	dir := t.TempDir()

	_, err := ServiceAccountTokenSource(filepath.Join(dir, "missing.json"), nil)
	assert.Error(t, err)

	incomplete := filepath.Join(dir, "sa.json")
	require.NoError(t, os.WriteFile(incomplete, []byte(`{"client_email":"x@y.iam.gserviceaccount.com"}`), 0o600))

	_, err = ServiceAccountTokenSource(incomplete, nil)
	assert.ErrorContains(t, err, "lacks client_email or private_key")
}
