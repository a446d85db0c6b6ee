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
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = New(context.Background(), Config{App: AppConfig{AppID: 1}})
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestTeamMembersFollowsPagination(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/orgs/octo/teams/core/members", r.URL.Path)
		assert.Equal(t, "Bearer t0ken", r.Header.Get("Authorization"))
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"id": 3, "login": "hubot"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/api/v3/orgs/octo/teams/core/members?per_page=100&page=2>; rel="next"`, server.URL))
		fmt.Fprint(w, `[{"id": 1, "login": "octocat"}, {"id": 2, "login": "mona"}]`)
	}))
	defer server.Close()

	client, err := New(context.Background(), Config{Token: "t0ken", BaseURL: server.URL})
	require.NoError(t, err)

	members, err := client.TeamMembers(context.Background(), "octo", "core")
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, "hubot", members[2].GetLogin())
}

func TestUserIDCachesLookups(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/api/v3/users/mona" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"id": 42, "login": "mona"}`)
	}))
	defer server.Close()

	client, err := New(context.Background(), Config{Token: "t0ken", BaseURL: server.URL + "/"})
	require.NoError(t, err)

	for _, login := range []string{"mona", "@Mona"} {
		id, err := client.UserID(context.Background(), login)
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err = client.UserID(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestAppInstallationToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	var exchanges int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/app/installations/99/access_tokens":
			atomic.AddInt32(&exchanges, 1)
			assert.Equal(t, http.MethodPost, r.Method)
			jwt := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			verifyJWT(t, &key.PublicKey, jwt, 7)
			fmt.Fprint(w, `{"token": "ghs_installation", "expires_at": "2099-01-01T00:00:00Z"}`)
		case "/api/v3/users/mona":
			assert.Equal(t, "Bearer ghs_installation", r.Header.Get("Authorization"))
			fmt.Fprint(w, `{"id": 5, "login": "mona"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := New(context.Background(), Config{
		BaseURL: server.URL,
		App:     AppConfig{AppID: 7, PrivateKey: keyPEM, InstallationID: 99},
	})
	require.NoError(t, err)

	id, err := client.UserID(context.Background(), "mona")
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	client.logins = map[string]int64{}
	_, err = client.UserID(context.Background(), "mona")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges), "token should be reused until it expires")
}

func TestParsePrivateKeyRejectsGarbage(t *testing.T) {
	_, err := parsePrivateKey([]byte("not a key"))
	assert.Error(t, err)
}

func verifyJWT(t *testing.T, pub *rsa.PublicKey, jwt string, appID int64) {
	t.Helper()
	parts := strings.Split(jwt, ".")
	require.Len(t, parts, 3)

	hash := sha256.Sum256([]byte(parts[0] + "." + parts[1]))
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	require.NoError(t, rsa.VerifyPKCS1v15(pub, crypto.SHA256, hash[:], signature))

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var claims struct {
		Iss int64 `json:"iss"`
		Iat int64 `json:"iat"`
		Exp int64 `json:"exp"`
	}
	require.NoError(t, json.Unmarshal(raw, &claims))
	assert.Equal(t, appID, claims.Iss)
	assert.Less(t, claims.Iat, claims.Exp)
}
