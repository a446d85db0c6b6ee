package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ghbridge/pkg/identity"

	"github.com/rs/zerolog"
)

// UserStore is the part of identity.UserMap the admin API edits.
type UserStore interface {
	Users() []identity.User
	Set(githubID int64, discordID, login string) error
	Delete(githubID int64) error
	Save(ctx context.Context) error
}

// MuteStore is the part of identity.MuteList the admin API edits.
type MuteStore interface {
	Rules() []identity.MuteRule
	Replace(userID int64, rule *identity.MuteRule) error
	Save(ctx context.Context) error
}

type userJSON struct {
	GitHubID  int64  `json:"github_id"`
	Login     string `json:"login,omitempty"`
	DiscordID string `json:"discord_id"`
}

type message struct {
	Message string `json:"message"`
}

// UsersHandler lists, sets and deletes user map entries.
//
//	GET    {prefix}/users
//	GET    {prefix}/users/{id}
//	PUT    {prefix}/users/{id}  {"discord_id": "...", "login": "..."}
//	DELETE {prefix}/users/{id}
type UsersHandler struct {
	Store  UserStore
	Logger zerolog.Logger
}

func (h *UsersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeMessage(w, http.StatusServiceUnavailable, "user map not configured")
		return
	}
	raw := r.PathValue("id")
	if raw == "" {
		if r.Method != http.MethodGet {
			writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		users := h.Store.Users()
		out := make([]userJSON, 0, len(users))
		for _, user := range users {
			out = append(out, toUserJSON(user))
		}
		writeJSON(w, http.StatusOK, out)
		return
	}
	id, ok := parseID(w, raw)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		for _, user := range h.Store.Users() {
			if user.GitHubID == id {
				writeJSON(w, http.StatusOK, toUserJSON(user))
				return
			}
		}
		writeMessage(w, http.StatusNotFound, "user not found")
	case http.MethodPut:
		var body userJSON
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid json body")
			return
		}
		body.DiscordID = strings.TrimSpace(body.DiscordID)
		if body.DiscordID == "" {
			writeMessage(w, http.StatusBadRequest, "missing discord_id")
			return
		}
		if err := h.Store.Set(id, body.DiscordID, strings.TrimSpace(body.Login)); err != nil {
			h.fail(w, "set user", err)
			return
		}
		if err := h.Store.Save(r.Context()); err != nil {
			h.fail(w, "save user map", err)
			return
		}
		h.Logger.Info().Int64("github_id", id).Str("discord_id", body.DiscordID).Msg("user mapped")
		writeJSON(w, http.StatusOK, userJSON{GitHubID: id, Login: strings.TrimSpace(body.Login), DiscordID: body.DiscordID})
	case http.MethodDelete:
		if err := h.Store.Delete(id); err != nil {
			h.fail(w, "delete user", err)
			return
		}
		if err := h.Store.Save(r.Context()); err != nil {
			h.fail(w, "save user map", err)
			return
		}
		h.Logger.Info().Int64("github_id", id).Msg("user unmapped")
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *UsersHandler) fail(w http.ResponseWriter, op string, err error) {
	h.Logger.Error().Err(err).Msg(op)
	writeError(w, op, err)
}

// MutesHandler lists, replaces and removes mute rules.
//
//	GET    {prefix}/mutes
//	GET    {prefix}/mutes/{id}
//	PUT    {prefix}/mutes/{id}  {"type": "include", "events": [...]}
//	DELETE {prefix}/mutes/{id}
type MutesHandler struct {
	Store  MuteStore
	Logger zerolog.Logger
}

func (h *MutesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeMessage(w, http.StatusServiceUnavailable, "mute list not configured")
		return
	}
	raw := r.PathValue("id")
	if raw == "" {
		if r.Method != http.MethodGet {
			writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		rules := h.Store.Rules()
		if rules == nil {
			rules = []identity.MuteRule{}
		}
		writeJSON(w, http.StatusOK, rules)
		return
	}
	id, ok := parseID(w, raw)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		for _, rule := range h.Store.Rules() {
			if rule.UserID == id {
				writeJSON(w, http.StatusOK, rule)
				return
			}
		}
		writeMessage(w, http.StatusNotFound, "mute rule not found")
	case http.MethodPut:
		var rule identity.MuteRule
		if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid json body")
			return
		}
		switch rule.Type {
		case "":
			rule.Type = identity.MuteAll
		case identity.MuteAll, identity.MuteInclude, identity.MuteExclude:
		default:
			writeMessage(w, http.StatusBadRequest, "type must be all, include, or exclude")
			return
		}
		rule.UserID = id
		if err := h.Store.Replace(id, &rule); err != nil {
			h.fail(w, "replace mute rule", err)
			return
		}
		if err := h.Store.Save(r.Context()); err != nil {
			h.fail(w, "save mute list", err)
			return
		}
		h.Logger.Info().Int64("user_id", id).Str("type", string(rule.Type)).Msg("user muted")
		writeJSON(w, http.StatusOK, rule)
	case http.MethodDelete:
		if err := h.Store.Replace(id, nil); err != nil {
			h.fail(w, "remove mute rule", err)
			return
		}
		if err := h.Store.Save(r.Context()); err != nil {
			h.fail(w, "save mute list", err)
			return
		}
		h.Logger.Info().Int64("user_id", id).Msg("user unmuted")
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *MutesHandler) fail(w http.ResponseWriter, op string, err error) {
	h.Logger.Error().Err(err).Msg(op)
	writeError(w, op, err)
}

// Mount registers the users and mutes handlers under prefix, behind a bearer token.
func Mount(mux *http.ServeMux, prefix, token string, users *UsersHandler, mutes *MutesHandler) {
	prefix = strings.TrimRight(prefix, "/")
	mux.Handle(prefix+"/users", RequireToken(token, users))
	mux.Handle(prefix+"/users/{id}", RequireToken(token, users))
	mux.Handle(prefix+"/mutes", RequireToken(token, mutes))
	mux.Handle(prefix+"/mutes/{id}", RequireToken(token, mutes))
}

// RequireToken rejects requests whose Authorization header is not "Bearer <token>".
func RequireToken(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, "invalid github user id")
		return 0, false
	}
	return id, true
}

func toUserJSON(user identity.User) userJSON {
	return userJSON{GitHubID: user.GitHubID, Login: user.Login, DiscordID: user.DiscordID}
}

// writeError maps identity errors to status codes. A read-only source keeps
// the in-memory change until the next refresh.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, identity.ErrReadOnlySource):
		writeMessage(w, http.StatusConflict, op+": source is read-only")
	case errors.Is(err, identity.ErrNotLoaded):
		writeMessage(w, http.StatusServiceUnavailable, op+": not loaded yet")
	default:
		writeMessage(w, http.StatusInternalServerError, op+" failed")
	}
}

func writeMessage(w http.ResponseWriter, status int, text string) {
	writeJSON(w, status, message{Message: text})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
