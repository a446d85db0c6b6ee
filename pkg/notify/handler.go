package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/go-github/v57/github"
)

// Handler turns one webhook payload into a notification. A nil notification
// with a nil error means the event is deliberately ignored.
type Handler func(ctx context.Context, hc *Context, payload []byte) (*Notification, error)

// Context carries the per-request collaborators a Handler may use.
type Context struct {
	// Event is the X-GitHub-Event name the payload was delivered under.
	Event     string
	Mentioner *Mentioner
	Now       func() time.Time
}

func (hc *Context) now() time.Time {
	if hc == nil || hc.Now == nil {
		return time.Now()
	}
	return hc.Now()
}

func (hc *Context) mentioner() *Mentioner {
	if hc == nil {
		return nil
	}
	return hc.Mentioner
}

// message starts a silent message carrying the common footer and timestamp.
func (hc *Context) message(title, url string, sender *github.User, color int) Message {
	return Message{
		Title:                 title,
		URL:                   url,
		Author:                authorOf(sender),
		Color:                 color,
		SuppressNotifications: true,
		Footer:                "GitHub " + hc.Event,
		Timestamp:             hc.now(),
	}
}

func (hc *Context) mention(ctx context.Context, sender *github.User, candidates ...Candidate) string {
	return hc.mentioner().Mention(ctx, sender, candidates)
}

func decode[T any](payload []byte) (*T, error) {
	var event T
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &event, nil
}

func notify(key string, msg Message) (*Notification, error) {
	return &Notification{Key: key, Message: msg}, nil
}

func issueKey(repo string, number int, bucket string) string {
	return fmt.Sprintf("%s#%d-%s", repo, number, bucket)
}

func issueTitle(repo, kind, action string, number int, title string) string {
	return fmt.Sprintf("[%s] %s %s: #%d %s", repo, kind, action, number, title)
}

// repoTitle formats titles for entities without a number.
func repoTitle(repo, kind, action, subject string) string {
	if subject == "" {
		return fmt.Sprintf("[%s] %s %s", repo, kind, action)
	}
	return fmt.Sprintf("[%s] %s %s: %s", repo, kind, action, subject)
}
