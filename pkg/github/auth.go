package github

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// AppConfig contains GitHub App authentication settings.
type AppConfig struct {
	AppID          int64
	PrivateKeyPath string
	// PrivateKey takes precedence over PrivateKeyPath.
	PrivateKey     []byte
	InstallationID int64
}

func (c AppConfig) enabled() bool {
	return c.AppID != 0 && c.InstallationID != 0 && (len(c.PrivateKey) > 0 || c.PrivateKeyPath != "")
}

// appAuthenticator signs app JWTs and exchanges them for installation
// tokens through the GitHub API.
type appAuthenticator struct {
	cfg     AppConfig
	baseURL string
	base    http.RoundTripper
	now     func() time.Time

	keyOnce  sync.Once
	key      *rsa.PrivateKey
	keyError error
}

func newAppAuthenticator(cfg AppConfig, baseURL string, base http.RoundTripper) *appAuthenticator {
	return &appAuthenticator{cfg: cfg, baseURL: baseURL, base: base, now: time.Now}
}

// TokenSource returns a cached oauth2.TokenSource that mints a new
// installation token shortly before the previous one expires.
func (a *appAuthenticator) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &installationTokenSource{ctx: ctx, auth: a})
}

type installationTokenSource struct {
	ctx  context.Context
	auth *appAuthenticator
}

func (s *installationTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.auth.installationToken(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: token.GetToken(),
		Expiry:      token.GetExpiresAt().Time,
	}, nil
}

func (a *appAuthenticator) installationToken(ctx context.Context) (*gh.InstallationToken, error) {
	client, err := newAPIClient(&http.Client{Transport: &jwtTransport{auth: a, base: a.base}}, a.baseURL)
	if err != nil {
		return nil, err
	}
	token, _, err := client.Apps.CreateInstallationToken(ctx, a.cfg.InstallationID, nil)
	if err != nil {
		return nil, fmt.Errorf("github token exchange failed: %w", err)
	}
	if token.GetToken() == "" {
		return nil, errors.New("github installation token missing from response")
	}
	return token, nil
}

// jwtTransport authenticates requests as the GitHub App itself.
type jwtTransport struct {
	auth *appAuthenticator
	base http.RoundTripper
}

func (t *jwtTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	jwt, err := t.auth.jwt()
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+jwt)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

func (a *appAuthenticator) jwt() (string, error) {
	key, err := a.privateKey()
	if err != nil {
		return "", err
	}
	now := a.now().UTC()
	encodedHeader, err := encodeSegment(map[string]interface{}{
		"alg": "RS256",
		"typ": "JWT",
	})
	if err != nil {
		return "", err
	}
	encodedClaims, err := encodeSegment(map[string]interface{}{
		"iat": now.Add(-30 * time.Second).Unix(),
		"exp": now.Add(9 * time.Minute).Unix(),
		"iss": a.cfg.AppID,
	})
	if err != nil {
		return "", err
	}
	unsigned := encodedHeader + "." + encodedClaims
	hash := sha256.Sum256([]byte(unsigned))
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hash[:])
	if err != nil {
		return "", err
	}
	return unsigned + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

func (a *appAuthenticator) privateKey() (*rsa.PrivateKey, error) {
	a.keyOnce.Do(func() {
		data := a.cfg.PrivateKey
		if len(data) == 0 {
			data, a.keyError = os.ReadFile(a.cfg.PrivateKeyPath)
			if a.keyError != nil {
				return
			}
		}
		a.key, a.keyError = parsePrivateKey(data)
	})
	return a.key, a.keyError
}

func parsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("github private key PEM decode failed")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("github private key is not RSA")
	}
	return key, nil
}

func encodeSegment(data map[string]interface{}) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
