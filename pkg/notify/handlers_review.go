package notify

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
)

type reviewPayload struct {
	github.PullRequestReviewEvent
	Changes *github.EditChange `json:"changes,omitempty"`
}

var reviewStates = map[string]string{
	"approved":          "Approved",
	"changes_requested": "Requested changes",
	"dismissed":         "Dismissed",
	"commented":         "Commented",
}

func handlePullRequestReview(ctx context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[reviewPayload](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	review := event.GetReview()
	pr := event.GetPullRequest()
	repo := event.GetRepo().GetFullName()
	state := review.GetState()

	titleAction := action
	if action == "submitted" {
		titleAction = fmt.Sprintf("%s (%s)", action, state)
	}
	color := colorFor(hc.Event, action)
	if action == "submitted" {
		color = colorFor(hc.Event, action, state)
	}
	msg := hc.message(
		issueTitle(repo, "Pull Request Review", titleAction, pr.GetNumber(), pr.GetTitle()),
		review.GetHTMLURL(), event.GetSender(), color,
	)
	key := issueKey(repo, pr.GetNumber(), fmt.Sprintf("review-%s-%d", action, review.GetID()))

	switch action {
	case "submitted":
		if state == "commented" {
			return nil, nil
		}
		label, ok := reviewStates[state]
		if !ok {
			label = humanize(state)
		}
		msg.Description = fmt.Sprintf("The pull request was %s by %s", label, review.GetUser().GetLogin())
		msg.Content = hc.mention(ctx, event.GetSender(), UserCandidates(pr.GetUser())...)
		msg.SuppressNotifications = state != "changes_requested"
	case "edited":
		body := event.Changes.GetBody()
		if body == nil {
			return nil, nil
		}
		msg.Fields = appendDiff(nil, "Body", body.GetFrom(), review.GetBody(), LongBodyLimit)
		if len(msg.Fields) == 0 {
			return nil, nil
		}
	case "dismissed":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	return notify(key, msg)
}

func handlePullRequestReviewComment(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.PullRequestReviewCommentEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "created", "edited", "deleted":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	pr := event.GetPullRequest()
	comment := event.GetComment()
	repo := event.GetRepo().GetFullName()

	msg := hc.message(
		issueTitle(repo, "Pull Request Review comment", action, pr.GetNumber(), pr.GetTitle()),
		comment.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	msg.Description = "```\n" + Truncate(comment.GetBody(), BodyLimit) + "\n```"
	if path := comment.GetPath(); path != "" {
		msg.Fields = []Field{inline("File", path)}
	}
	return notify(issueKey(repo, pr.GetNumber(), fmt.Sprintf("review-%s-%d", action, comment.GetID())), msg)
}

func handlePullRequestReviewThread(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.PullRequestReviewThreadEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "resolved", "unresolved":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	pr := event.GetPullRequest()
	repo := event.GetRepo().GetFullName()

	var first *github.PullRequestComment
	if comments := event.GetThread().Comments; len(comments) > 0 {
		first = comments[0]
	}
	msg := hc.message(
		issueTitle(repo, "Pull Request Review thread", action, pr.GetNumber(), pr.GetTitle()),
		first.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	if msg.URL == "" {
		msg.URL = pr.GetHTMLURL()
	}
	return notify(issueKey(repo, pr.GetNumber(), fmt.Sprintf("review-thread-%s-%d", action, first.GetID())), msg)
}
