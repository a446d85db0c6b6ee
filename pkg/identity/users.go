package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Option configures a UserMap or MuteList.
type Option func(*options)

type options struct {
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// WithTTL makes Refresh reload data older than ttl. Zero disables reloads.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func newOptions(opts []Option) options {
	o := options{now: time.Now, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// UserMap resolves GitHub user ids and logins to Discord user ids.
type UserMap struct {
	backend UserBackend
	opts    options

	mu       sync.RWMutex
	loaded   bool
	loadedAt time.Time
	byID     map[int64]User
	byLogin  map[string]int64
}

func NewUserMap(backend UserBackend, opts ...Option) *UserMap {
	return &UserMap{backend: backend, opts: newOptions(opts)}
}

// Load replaces the in-memory map with the backend's contents.
func (m *UserMap) Load(ctx context.Context) error {
	users, err := m.backend.LoadUsers(ctx)
	if err != nil {
		return err
	}
	byID := make(map[int64]User, len(users))
	byLogin := make(map[string]int64, len(users))
	for _, user := range users {
		byID[user.GitHubID] = user
		if user.Login != "" {
			byLogin[strings.ToLower(user.Login)] = user.GitHubID
		}
	}

	m.mu.Lock()
	m.byID, m.byLogin = byID, byLogin
	m.loaded = true
	m.loadedAt = m.opts.now()
	m.mu.Unlock()
	m.opts.logger.Debug().Int("users", len(users)).Msg("user map loaded")
	return nil
}

// Refresh reloads the map when it was never loaded or is older than the
// TTL. A failed reload keeps the previous data.
func (m *UserMap) Refresh(ctx context.Context) error {
	m.mu.RLock()
	stale := !m.loaded || (m.opts.ttl > 0 && m.opts.now().Sub(m.loadedAt) >= m.opts.ttl)
	m.mu.RUnlock()
	if !stale {
		return nil
	}
	return m.Load(ctx)
}

// DiscordID returns the Discord user id mapped to a GitHub user id.
func (m *UserMap) DiscordID(githubID int64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.byID[githubID]
	if !ok || user.DiscordID == "" {
		return "", false
	}
	return user.DiscordID, true
}

// GitHubID returns the GitHub user id for a login, ignoring case and a
// leading @.
func (m *UserMap) GitHubID(login string) (int64, bool) {
	login = strings.ToLower(strings.TrimPrefix(login, "@"))
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byLogin[login]
	return id, ok
}

// Set maps a GitHub user to a Discord user in memory. Call Save to persist.
func (m *UserMap) Set(githubID int64, discordID, login string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return ErrNotLoaded
	}
	if previous, ok := m.byID[githubID]; ok && previous.Login != "" {
		delete(m.byLogin, strings.ToLower(previous.Login))
	}
	m.byID[githubID] = User{GitHubID: githubID, Login: login, DiscordID: discordID}
	if login != "" {
		m.byLogin[strings.ToLower(login)] = githubID
	}
	return nil
}

// Delete removes a GitHub user in memory. Call Save to persist.
func (m *UserMap) Delete(githubID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return ErrNotLoaded
	}
	if previous, ok := m.byID[githubID]; ok && previous.Login != "" {
		delete(m.byLogin, strings.ToLower(previous.Login))
	}
	delete(m.byID, githubID)
	return nil
}

// Save writes the in-memory map back to its backend.
func (m *UserMap) Save(ctx context.Context) error {
	m.mu.RLock()
	if !m.loaded {
		m.mu.RUnlock()
		return ErrNotLoaded
	}
	users := m.usersLocked()
	m.mu.RUnlock()
	return m.backend.SaveUsers(ctx, users)
}

// Users returns a snapshot ordered by GitHub id.
func (m *UserMap) Users() []User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usersLocked()
}

func (m *UserMap) usersLocked() []User {
	users := make([]User, 0, len(m.byID))
	for _, user := range m.byID {
		users = append(users, user)
	}
	sortUsers(users)
	return users
}
