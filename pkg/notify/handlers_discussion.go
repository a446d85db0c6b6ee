package notify

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
)

type discussionPayload struct {
	github.DiscussionEvent
	Changes *struct {
		Title    *editFrom `json:"title,omitempty"`
		Body     *editFrom `json:"body,omitempty"`
		Category *struct {
			From struct {
				Name string `json:"name"`
			} `json:"from"`
		} `json:"category,omitempty"`
		NewRepository *struct {
			FullName string `json:"full_name"`
		} `json:"new_repository,omitempty"`
	} `json:"changes,omitempty"`
	Answer *github.CommentDiscussion `json:"answer,omitempty"`
	Label  *github.Label             `json:"label,omitempty"`
}

var discussionBuckets = map[string]string{
	"pinned":     "pinned",
	"unpinned":   "pinned",
	"labeled":    "label",
	"unlabeled":  "label",
	"answered":   "answered",
	"unanswered": "answered",
	"locked":     "locked",
	"unlocked":   "locked",
}

func discussionKey(repo string, number int, bucket string) string {
	return fmt.Sprintf("%s-discussion-%d-%s", repo, number, bucket)
}

func handleDiscussion(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[discussionPayload](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	discussion := event.GetDiscussion()
	repo := event.GetRepo().GetFullName()

	msg := hc.message(
		repoTitle(repo, "Discussion", humanize(action), discussion.GetTitle()),
		discussion.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	changes := event.Changes

	switch action {
	case "created":
		msg.Description = bodyText(discussion.GetBody(), BodyLimit)
		msg.Fields = []Field{inline("Category", discussion.GetDiscussionCategory().GetName())}
	case "edited":
		if changes == nil {
			return nil, nil
		}
		var fields []Field
		if changes.Title != nil {
			fields = appendDiff(fields, "Title", changes.Title.From, discussion.GetTitle(), 0)
		}
		if changes.Body != nil {
			fields = appendDiff(fields, "Body", changes.Body.From, discussion.GetBody(), LongBodyLimit)
		}
		if len(fields) == 0 {
			return nil, nil
		}
		msg.Fields = fields
	case "labeled":
		if event.Label.GetName() == "" {
			return nil, nil
		}
		msg.Fields = []Field{inline("Label", event.Label.GetName())}
	case "unlabeled":
		if event.Label.GetName() == "" {
			return nil, nil
		}
		msg.Fields = []Field{inline("Removed Label", event.Label.GetName())}
	case "transferred":
		to := repo
		if changes != nil && changes.NewRepository != nil && changes.NewRepository.FullName != "" {
			to = changes.NewRepository.FullName
		}
		msg.Fields = []Field{inline("To Repository", to)}
	case "category_changed":
		from := "*Unknown*"
		if changes != nil && changes.Category != nil && changes.Category.From.Name != "" {
			from = changes.Category.From.Name
		}
		msg.Fields = []Field{
			inline("From Category", from),
			inline("To Category", discussion.GetDiscussionCategory().GetName()),
		}
	case "answered":
		msg.Fields = []Field{
			block("Answer", Truncate(event.Answer.GetBody(), BodyLimit)),
			inline("Answer By", event.Answer.GetUser().GetLogin()),
		}
	case "locked":
		if reason := discussion.GetActiveLockReason(); reason != "" {
			msg.Fields = []Field{inline("Lock Reason", reason)}
		}
	case "deleted", "pinned", "unpinned", "unanswered", "unlocked", "closed", "reopened":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	return notify(discussionKey(repo, discussion.GetNumber(), bucketFor(discussionBuckets, action)), msg)
}

func handleDiscussionComment(ctx context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.DiscussionCommentEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	discussion := event.GetDiscussion()
	comment := event.GetComment()
	repo := event.GetRepo().GetFullName()

	msg := hc.message(
		repoTitle(repo, "Discussion comment", action, discussion.GetTitle()),
		comment.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	switch action {
	case "created":
		msg.Description = bodyText(comment.GetBody(), BodyLimit)
		msg.Content = hc.mention(ctx, event.GetSender(), UserCandidates(discussion.GetUser())...)
	case "edited":
		msg.Description = bodyText(comment.GetBody(), BodyLimit)
	case "deleted":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	return notify(discussionKey(repo, discussion.GetNumber(), fmt.Sprintf("comment-%d", comment.GetID())), msg)
}
