package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediavault/gbackup/internal/gauth"
)

func writeToken(t *testing.T, env *testEnv, source string) string {
	t.Helper()

	dir := filepath.Join(env.dataDir, "gbackup", "tokens")
	require.NoError(t, os.MkdirAll(dir, 0o700))

	path := filepath.Join(dir, source+".json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"x"}`), 0o600))

	return path
}

func TestLogout_SingleSource(t *testing.T) {
	env := newTestEnv(t)
	photos := writeToken(t, env, "photos")
	drive := writeToken(t, env, "drive")

	_, stderr, err := runCLI(t, "logout", "--source", "photos")
	require.NoError(t, err)

	assert.Contains(t, stderr, "Logged out of photos.")
	assert.NoFileExists(t, photos)
	assert.FileExists(t, drive)
}

func TestLogout_AllSources(t *testing.T) {
	env := newTestEnv(t)
	photos := writeToken(t, env, "photos")
	drive := writeToken(t, env, "drive")

	_, _, err := runCLI(t, "logout")
	require.NoError(t, err)

	assert.NoFileExists(t, photos)
	assert.NoFileExists(t, drive)
}

func TestLogout_NothingSaved(t *testing.T) {
	newTestEnv(t)

	_, _, err := runCLI(t, "logout", "--quiet")
	assert.NoError(t, err)
}

func TestLogout_UnknownSource(t *testing.T) {
	newTestEnv(t)

	_, _, err := runCLI(t, "logout", "--source", "dropbox")
	assert.ErrorIs(t, err, gauth.ErrUnknownSource)
}

func TestLogin_RequiresSource(t *testing.T) {
	newTestEnv(t)

	_, _, err := runCLI(t, "login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"source" not set`)
}

func TestLogin_UnknownSource(t *testing.T) {
	newTestEnv(t)

	_, _, err := runCLI(t, "login", "--source", "flickr")
	assert.ErrorIs(t, err, gauth.ErrUnknownSource)
}

func TestLogin_MissingClientSecret(t *testing.T) {
	newTestEnv(t)

	opened := false
	orig := browserOpener
	browserOpener = func(string) error {
		opened = true
		return nil
	}
	t.Cleanup(func() { browserOpener = orig })

	_, _, err := runCLI(t, "login", "--source", "drive")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client secret")
	assert.False(t, opened)
}
