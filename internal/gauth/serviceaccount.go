package gauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/m-rots/stubbs"
	"golang.org/x/oauth2"
)

// serviceAccountLifetime is the requested JWT lifetime in seconds (Google's maximum).
const serviceAccountLifetime = 3600

type serviceAccountKey struct {
	Email      string `json:"client_email"`
	PrivateKey string `json:"private_key"`
}

// ServiceAccountTokenSource builds a token source from a Google service
// account key file. Drive folders shared with the service account's email
// can then be backed up without an interactive login.
func ServiceAccountTokenSource(keyPath string, scopes []string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("gauth: reading service account %s: %w", keyPath, err)
	}

	var key serviceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("gauth: decoding service account %s: %w", keyPath, err)
	}

	if key.Email == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("gauth: service account %s lacks client_email or private_key", keyPath)
	}

	priv, err := stubbs.ParseKey(key.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("gauth: parsing service account key: %w", err)
	}

	src := &stubbsSource{
		auth: stubbs.New(key.Email, &priv, scopes, serviceAccountLifetime),
		now:  time.Now,
	}

	return oauth2.ReuseTokenSource(nil, src), nil
}

// accessTokener is the part of *stubbs.Stubbs we depend on.
type accessTokener interface {
	AccessToken() (string, int64, error)
}

type stubbsSource struct {
	auth accessTokener
	now  func() time.Time
}

func (s *stubbsSource) Token() (*oauth2.Token, error) {
	access, exp, err := s.auth.AccessToken()
	if err != nil {
		return nil, fmt.Errorf("gauth: service account token: %w", err)
	}

	if access == "" {
		return nil, errors.New("gauth: service account returned an empty token")
	}

	return &oauth2.Token{
		AccessToken: access,
		TokenType:   "Bearer",
		Expiry:      s.expiry(exp),
	}, nil
}

// expiry interprets stubbs' expiry value, which is a unix timestamp; small
// values are treated as a lifetime in seconds.
func (s *stubbsSource) expiry(exp int64) time.Time {
	switch {
	case exp <= 0:
		return s.now().Add(serviceAccountLifetime * time.Second)
	case exp < 1_000_000_000:
		return s.now().Add(time.Duration(exp) * time.Second)
	default:
		return time.Unix(exp, 0)
	}
}
