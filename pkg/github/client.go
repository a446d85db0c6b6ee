package github

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	gh "github.com/google/go-github/v57/github"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://api.github.com"

// ErrNoCredentials is returned by New when neither a token nor a complete
// GitHub App configuration is set.
var ErrNoCredentials = errors.New("github credentials are not configured")

// Config selects how the API client authenticates. A token wins over App
// credentials.
type Config struct {
	Token   string
	BaseURL string
	App     AppConfig
}

// Client answers the lookups mention resolution needs: team members and
// user ids by login.
type Client struct {
	api *gh.Client

	mu     sync.Mutex
	logins map[string]int64
}

// New builds an authenticated client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	base := cleanhttp.DefaultPooledClient()
	baseURL := normalizeBaseURL(cfg.BaseURL)

	var ts oauth2.TokenSource
	switch {
	case cfg.Token != "":
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	case cfg.App.enabled():
		ts = newAppAuthenticator(cfg.App, baseURL, base.Transport).TokenSource(ctx)
	default:
		return nil, ErrNoCredentials
	}

	httpClient := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), ts)
	api, err := newAPIClient(httpClient, baseURL)
	if err != nil {
		return nil, err
	}
	return NewFromAPI(api), nil
}

// NewFromAPI wraps an existing go-github client.
func NewFromAPI(api *gh.Client) *Client {
	return &Client{api: api, logins: make(map[string]int64)}
}

// TeamMembers lists every member of org/slug, following pagination.
func (c *Client) TeamMembers(ctx context.Context, org, slug string) ([]*gh.User, error) {
	opts := &gh.TeamListTeamMembersOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	var members []*gh.User
	for {
		page, resp, err := c.api.Teams.ListTeamMembersBySlug(ctx, org, slug, opts)
		if err != nil {
			return nil, err
		}
		members = append(members, page...)
		if resp == nil || resp.NextPage == 0 {
			return members, nil
		}
		opts.Page = resp.NextPage
	}
}

// UserID resolves a login to its numeric id. Successful lookups are cached
// for the life of the client.
func (c *Client) UserID(ctx context.Context, login string) (int64, error) {
	key := strings.ToLower(strings.TrimPrefix(login, "@"))
	c.mu.Lock()
	id, ok := c.logins[key]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	user, _, err := c.api.Users.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.logins[key] = user.GetID()
	c.mu.Unlock()
	return user.GetID(), nil
}

func newAPIClient(httpClient *http.Client, baseURL string) (*gh.Client, error) {
	if baseURL == defaultBaseURL {
		return gh.NewClient(httpClient), nil
	}
	return gh.NewEnterpriseClient(baseURL, baseURL, httpClient)
}

func normalizeBaseURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return defaultBaseURL
	}
	return base
}
