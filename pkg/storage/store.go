package storage

import (
	"context"
	"time"
)

// UserRecord links a GitHub account to a Discord user.
type UserRecord struct {
	GitHubID  string
	Login     string
	DiscordID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MuteRecord mutes one event for one GitHub user. Actions nil means every
// action of the event. Mode "all" rows carry no event.
type MuteRecord struct {
	GitHubID  string
	Mode      string
	Event     string
	Actions   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserStore defines persistence for the GitHub to Discord user map.
type UserStore interface {
	UpsertUser(ctx context.Context, record UserRecord) error
	DeleteUser(ctx context.Context, githubID string) error
	ListUsers(ctx context.Context) ([]UserRecord, error)
	Close() error
}

// MuteStore defines persistence for per-user mute rules.
type MuteStore interface {
	ReplaceMutes(ctx context.Context, githubID string, records []MuteRecord) error
	ListMutes(ctx context.Context) ([]MuteRecord, error)
	Close() error
}
