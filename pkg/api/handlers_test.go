package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ghbridge/pkg/identity"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "s3cr3t"

type adminServer struct {
	mux      *http.ServeMux
	users    *identity.UserMap
	mutes    *identity.MuteList
	userPath string
	mutePath string
}

func newAdminServer(t *testing.T, usersDoc, mutesDoc string) adminServer {
	t.Helper()
	dir := t.TempDir()
	userPath := filepath.Join(dir, "users.json")
	mutePath := filepath.Join(dir, "mutes.json")
	require.NoError(t, os.WriteFile(userPath, []byte(usersDoc), 0o600))
	require.NoError(t, os.WriteFile(mutePath, []byte(mutesDoc), 0o600))

	users := identity.NewUserMap(identity.DocumentBackend{Source: identity.FileSource{Path: userPath, Empty: []byte("{}")}})
	require.NoError(t, users.Load(context.Background()))
	mutes := identity.NewMuteList(identity.DocumentBackend{Source: identity.FileSource{Path: mutePath, Empty: []byte("[]")}})
	require.NoError(t, mutes.Load(context.Background()))

	mux := http.NewServeMux()
	Mount(mux, "/admin", testToken,
		&UsersHandler{Store: users, Logger: zerolog.Nop()},
		&MutesHandler{Store: mutes, Logger: zerolog.Nop()},
	)
	return adminServer{mux: mux, users: users, mutes: mutes, userPath: userPath, mutePath: mutePath}
}

func (s adminServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func TestAdminRequiresToken(t *testing.T) {
	s := newAdminServer(t, `{}`, `[]`)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	req = httptest.NewRequest(http.MethodGet, "/admin/mutes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	RequireToken("", http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminUsersLifecycle(t *testing.T) {
	s := newAdminServer(t, `{"1": "111"}`, `[]`)

	rec := s.do(t, http.MethodGet, "/admin/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"github_id": 1, "discord_id": "111"}]`, rec.Body.String())

	rec = s.do(t, http.MethodPut, "/admin/users/2", `{"discord_id": "222", "login": "Bob"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"github_id": 2, "login": "Bob", "discord_id": "222"}`, rec.Body.String())

	discordID, ok := s.users.DiscordID(2)
	require.True(t, ok)
	assert.Equal(t, "222", discordID)
	githubID, ok := s.users.GitHubID("bob")
	require.True(t, ok)
	assert.Equal(t, int64(2), githubID)

	saved, err := os.ReadFile(s.userPath)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(saved, &doc))
	assert.Contains(t, doc, "2")

	rec = s.do(t, http.MethodGet, "/admin/users/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"discord_id":"222"`)

	rec = s.do(t, http.MethodDelete, "/admin/users/1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	_, ok = s.users.DiscordID(1)
	assert.False(t, ok)

	reloaded := identity.NewUserMap(identity.DocumentBackend{Source: identity.FileSource{Path: s.userPath}})
	require.NoError(t, reloaded.Load(context.Background()))
	assert.Equal(t, []identity.User{{GitHubID: 2, Login: "Bob", DiscordID: "222"}}, reloaded.Users())

	rec = s.do(t, http.MethodGet, "/admin/users/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminUsersRejectsBadInput(t *testing.T) {
	s := newAdminServer(t, `{}`, `[]`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"non numeric id", http.MethodPut, "/admin/users/abc", `{"discord_id": "1"}`, http.StatusBadRequest},
		{"zero id", http.MethodGet, "/admin/users/0", "", http.StatusBadRequest},
		{"invalid json", http.MethodPut, "/admin/users/2", `{`, http.StatusBadRequest},
		{"missing discord id", http.MethodPut, "/admin/users/2", `{"login": "bob"}`, http.StatusBadRequest},
		{"post collection", http.MethodPost, "/admin/users", `{}`, http.StatusMethodNotAllowed},
		{"patch entry", http.MethodPatch, "/admin/users/2", `{}`, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Empty(t, s.users.Users())
}

func TestAdminMutesLifecycle(t *testing.T) {
	s := newAdminServer(t, `{}`, `[12345]`)
	opened := "opened"

	rec := s.do(t, http.MethodGet, "/admin/mutes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"userId": 12345, "type": "all", "events": null}]`, rec.Body.String())

	rec = s.do(t, http.MethodPut, "/admin/mutes/7", `{"type": "include", "events": [{"eventName": "issues", "actions": ["opened"]}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.mutes.IsMuted(7, "issues", &opened))
	assert.False(t, s.mutes.IsMuted(7, "push", nil))

	rec = s.do(t, http.MethodPut, "/admin/mutes/8", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId": 8, "type": "all", "events": null}`, rec.Body.String())
	assert.True(t, s.mutes.IsMuted(8, "push", nil))

	rec = s.do(t, http.MethodDelete, "/admin/mutes/12345", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, s.mutes.IsMuted(12345, "push", nil))

	reloaded := identity.NewMuteList(identity.DocumentBackend{Source: identity.FileSource{Path: s.mutePath}})
	require.NoError(t, reloaded.Load(context.Background()))
	assert.True(t, reloaded.IsMuted(7, "issues", &opened))
	assert.True(t, reloaded.IsMuted(8, "push", nil))
	assert.False(t, reloaded.IsMuted(12345, "push", nil))

	rec = s.do(t, http.MethodGet, "/admin/mutes/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"include"`)

	rec = s.do(t, http.MethodGet, "/admin/mutes/12345", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/admin/mutes/9", `{"type": "sometimes"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, s.mutes.IsMuted(9, "push", nil))
}

func TestAdminReadOnlySource(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"1": "111"}`))
	}))
	defer remote.Close()

	users := identity.NewUserMap(identity.DocumentBackend{Source: identity.NewURLSource(remote.URL, remote.Client())})
	require.NoError(t, users.Load(context.Background()))
	mux := http.NewServeMux()
	Mount(mux, "/admin/", testToken, &UsersHandler{Store: users, Logger: zerolog.Nop()}, &MutesHandler{Logger: zerolog.Nop()})
	s := adminServer{mux: mux}

	rec := s.do(t, http.MethodPut, "/admin/users/2", `{"discord_id": "222"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "read-only")

	rec = s.do(t, http.MethodGet, "/admin/mutes", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminNotLoaded(t *testing.T) {
	dir := t.TempDir()
	mutes := identity.NewMuteList(identity.DocumentBackend{Source: identity.FileSource{Path: filepath.Join(dir, "mutes.json")}})
	mux := http.NewServeMux()
	Mount(mux, "/admin", testToken, &UsersHandler{Logger: zerolog.Nop()}, &MutesHandler{Store: mutes, Logger: zerolog.Nop()})
	s := adminServer{mux: mux}

	rec := s.do(t, http.MethodPut, "/admin/mutes/1", `{"type": "all"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not loaded")
}
