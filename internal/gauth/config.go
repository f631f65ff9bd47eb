// Package gauth obtains, refreshes and persists Google OAuth2 credentials for
// the Photos Library and Drive APIs. It owns the token store contract
// (load / refresh / persist) and the interactive bootstrap flow; the
// refresh mechanics themselves are delegated to golang.org/x/oauth2.
package gauth

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// Source names. They double as token file names and catalog source tags.
const (
	SourcePhotos = "photos"
	SourceDrive  = "drive"
)

// PhotosScope grants read-only access to the Photos library.
const PhotosScope = "https://www.googleapis.com/auth/photoslibrary.readonly"

// ErrNotLoggedIn is returned when no token file exists for a source.
var ErrNotLoggedIn = errors.New("gauth: not logged in")

// ErrUnknownSource is returned for a source name other than photos or drive.
var ErrUnknownSource = errors.New("gauth: unknown source")

// ScopesFor returns the OAuth scopes requested for a source.
func ScopesFor(source string) ([]string, error) {
	switch source {
	case SourcePhotos:
		return []string{PhotosScope}, nil
	case SourceDrive:
		return []string{drive.DriveReadonlyScope}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
}

// LoadClientConfig reads an OAuth client secret JSON (the "installed" or
// "web" credential downloaded from the Google Cloud console) and builds an
// oauth2.Config for the given source.
func LoadClientConfig(secretPath, source string) (*oauth2.Config, error) {
	scopes, err := ScopesFor(source)
	if err != nil {
		return nil, err
	}

	if secretPath == "" {
		return nil, errors.New("gauth: no client secret configured (set auth.client_secret)")
	}

	data, err := os.ReadFile(secretPath)
	if err != nil {
		return nil, fmt.Errorf("gauth: reading client secret %s: %w", secretPath, err)
	}

	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("gauth: parsing client secret %s: %w", secretPath, err)
	}

	return cfg, nil
}
