package notify

import (
	"context"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/rs/zerolog"
)

// IdentityMap resolves GitHub identities to Discord user ids.
type IdentityMap interface {
	DiscordID(githubID int64) (string, bool)
	GitHubID(login string) (int64, bool)
}

// TeamLookup lists the members of an organization team.
type TeamLookup interface {
	TeamMembers(ctx context.Context, org, slug string) ([]*github.User, error)
}

// LoginLookup resolves a login that the identity map does not index.
type LoginLookup interface {
	UserID(ctx context.Context, login string) (int64, error)
}

// Candidate is a user or a team that may be mentioned.
type Candidate struct {
	User *github.User
	Team *github.Team
	// Org owns Team; teams are expanded within it.
	Org string
}

// UserCandidates wraps users as mention candidates.
func UserCandidates(users ...*github.User) []Candidate {
	out := make([]Candidate, 0, len(users))
	for _, user := range users {
		if user != nil {
			out = append(out, Candidate{User: user})
		}
	}
	return out
}

// TeamCandidates wraps teams of org as mention candidates.
func TeamCandidates(org string, teams ...*github.Team) []Candidate {
	out := make([]Candidate, 0, len(teams))
	for _, team := range teams {
		if team != nil {
			out = append(out, Candidate{Team: team, Org: org})
		}
	}
	return out
}

// Mentioner renders Discord mention tokens for GitHub users and teams.
type Mentioner struct {
	identities IdentityMap
	teams      TeamLookup
	logins     LoginLookup
	logger     zerolog.Logger
}

// MentionerOption configures a Mentioner.
type MentionerOption func(*Mentioner)

// WithTeamLookup enables team expansion.
func WithTeamLookup(lookup TeamLookup) MentionerOption {
	return func(m *Mentioner) { m.teams = lookup }
}

// WithLoginLookup resolves logins missing from the identity map.
func WithLoginLookup(lookup LoginLookup) MentionerOption {
	return func(m *Mentioner) { m.logins = lookup }
}

func WithLogger(logger zerolog.Logger) MentionerOption {
	return func(m *Mentioner) { m.logger = logger }
}

// NewMentioner builds a resolver over identities.
func NewMentioner(identities IdentityMap, opts ...MentionerOption) *Mentioner {
	m := &Mentioner{identities: identities, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mention returns space-joined <@id> tokens for candidates in input order.
// The sender and users without a Discord id are skipped. Teams contribute
// their members when a TeamLookup is configured and nothing otherwise.
func (m *Mentioner) Mention(ctx context.Context, sender *github.User, candidates []Candidate) string {
	if m == nil || m.identities == nil {
		return ""
	}
	tokens := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		switch {
		case candidate.User != nil:
			tokens = m.appendUser(tokens, sender, candidate.User.GetID())
		case candidate.Team != nil:
			for _, member := range m.expandTeam(ctx, candidate) {
				tokens = m.appendUser(tokens, sender, member.GetID())
			}
		}
	}
	return strings.Join(tokens, " ")
}

// MentionLogins resolves free-text @login references.
func (m *Mentioner) MentionLogins(ctx context.Context, sender *github.User, logins []string) string {
	if m == nil || m.identities == nil {
		return ""
	}
	tokens := make([]string, 0, len(logins))
	for _, login := range logins {
		id, ok := m.identities.GitHubID(login)
		if !ok && m.logins != nil {
			resolved, err := m.logins.UserID(ctx, login)
			if err != nil {
				m.logger.Debug().Err(err).Str("login", login).Msg("login lookup failed")
				continue
			}
			id, ok = resolved, true
		}
		if !ok {
			continue
		}
		tokens = m.appendUser(tokens, sender, id)
	}
	return strings.Join(tokens, " ")
}

func (m *Mentioner) appendUser(tokens []string, sender *github.User, id int64) []string {
	if id == 0 || (sender != nil && sender.GetID() == id) {
		return tokens
	}
	discordID, ok := m.identities.DiscordID(id)
	if !ok || discordID == "" {
		return tokens
	}
	return append(tokens, "<@"+discordID+">")
}

func (m *Mentioner) expandTeam(ctx context.Context, candidate Candidate) []*github.User {
	if m.teams == nil || candidate.Org == "" || candidate.Team.GetSlug() == "" {
		return nil
	}
	members, err := m.teams.TeamMembers(ctx, candidate.Org, candidate.Team.GetSlug())
	if err != nil {
		m.logger.Warn().Err(err).
			Str("org", candidate.Org).
			Str("team", candidate.Team.GetSlug()).
			Msg("team expansion failed")
		return nil
	}
	return members
}
