package notify

import (
	"context"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
)

var testNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

// fakeIdentities maps GitHub ids to Discord ids and logins to GitHub ids.
type fakeIdentities struct {
	discord map[int64]string
	logins  map[string]int64
}

func (f fakeIdentities) DiscordID(id int64) (string, bool) {
	v, ok := f.discord[id]
	return v, ok
}

func (f fakeIdentities) GitHubID(login string) (int64, bool) {
	v, ok := f.logins[strings.ToLower(strings.TrimPrefix(login, "@"))]
	return v, ok
}

type fakeTeams map[string][]*github.User

func (f fakeTeams) TeamMembers(_ context.Context, org, slug string) ([]*github.User, error) {
	return f[org+"/"+slug], nil
}

func user(login string, id int64) *github.User {
	return &github.User{
		Login:     github.String(login),
		ID:        github.Int64(id),
		HTMLURL:   github.String("https://github.com/" + login),
		AvatarURL: github.String("https://avatars.githubusercontent.com/u/1"),
	}
}

func users(logins ...string) []*github.User {
	out := make([]*github.User, 0, len(logins))
	for i, login := range logins {
		out = append(out, user(login, int64(100+i)))
	}
	return out
}

// testContext resolves alice(1), bob(2) and carol(3).
func testContext(event string) *Context {
	identities := fakeIdentities{
		discord: map[int64]string{1: "d-alice", 2: "d-bob", 3: "d-carol"},
		logins:  map[string]int64{"alice": 1, "bob": 2, "carol": 3},
	}
	teams := fakeTeams{"octo/core": {user("bob", 2), user("carol", 3)}}
	return &Context{
		Event:     event,
		Mentioner: NewMentioner(identities, WithTeamLookup(teams)),
		Now:       func() time.Time { return testNow },
	}
}

func run(event, payload string) (*Notification, error) {
	handler, err := Route(event)
	if err != nil {
		return nil, err
	}
	return handler(context.Background(), testContext(event), []byte(payload))
}
