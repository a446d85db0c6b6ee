package notify

import (
	"context"

	"github.com/google/go-github/v57/github"
)

type pullRequestPayload struct {
	github.PullRequestEvent
	Milestone *github.Milestone `json:"milestone,omitempty"`
	Reason    string            `json:"reason,omitempty"`
}

// pullRequestBuckets collapses paired actions onto one dedup key.
var pullRequestBuckets = map[string]string{
	"assigned":               "assigned",
	"unassigned":             "assigned",
	"review_requested":       "review_requested",
	"review_request_removed": "review_requested",
	"labeled":                "label",
	"unlabeled":              "label",
	"locked":                 "locked",
	"unlocked":               "locked",
	"auto_merge_enabled":     "auto_merge",
	"auto_merge_disabled":    "auto_merge",
	"milestoned":             "milestoned",
	"demilestoned":           "milestoned",
	"enqueued":               "enqueued",
	"dequeued":               "enqueued",
}

func bucketFor(buckets map[string]string, action string) string {
	if bucket, ok := buckets[action]; ok {
		return bucket
	}
	return action
}

func handlePullRequest(ctx context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[pullRequestPayload](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	pr := event.GetPullRequest()
	repo := event.GetRepo().GetFullName()
	sender := event.GetSender()

	msg := hc.message(
		issueTitle(repo, "Pull Request", action, pr.GetNumber(), pr.GetTitle()),
		pr.GetHTMLURL(), sender, colorFor(hc.Event, action),
	)
	key := issueKey(repo, pr.GetNumber(), bucketFor(pullRequestBuckets, action))

	branch := inline("Branch", pr.GetHead().GetRef())
	reviewers := inline("Reviewers", orDefault(usersText(pr.RequestedReviewers, pr.RequestedTeams), NoReviewers))
	assignees := inline("Assignees", orDefault(usersText(pr.Assignees, nil), NoAssignees))
	org := ownerLogin(event.GetOrganization(), event.GetRepo())
	reviewerCandidates := append(UserCandidates(pr.RequestedReviewers...), TeamCandidates(org, pr.RequestedTeams...)...)

	switch action {
	case "synchronize":
		return nil, nil
	case "opened", "reopened":
		msg.Description = bodyText(pr.GetBody(), BodyLimit)
		msg.Fields = []Field{branch, reviewers, assignees}
		msg.Content = joinMentions(
			hc.mention(ctx, sender, reviewerCandidates...),
			hc.mention(ctx, sender, UserCandidates(pr.Assignees...)...),
		)
	case "closed":
		msg.Description = bodyText(pr.GetBody(), BodyLimit)
		msg.Fields = []Field{branch, inline("Merged", yesNo(pr.GetMerged()))}
	case "assigned":
		msg.Fields = []Field{branch, assignees}
		if !pr.GetDraft() {
			msg.Content = hc.mention(ctx, sender, UserCandidates(event.GetAssignee())...)
		}
	case "unassigned":
		msg.Fields = []Field{branch, assignees}
	case "review_requested":
		msg.Fields = []Field{branch, reviewers}
		if event.RequestedReviewer != nil {
			msg.Content = hc.mention(ctx, sender, UserCandidates(event.RequestedReviewer)...)
		} else {
			msg.Content = hc.mention(ctx, sender, TeamCandidates(org, event.RequestedTeam)...)
		}
	case "review_request_removed":
		msg.Fields = []Field{branch, reviewers}
	case "labeled", "unlabeled":
		msg.Fields = []Field{inline("Labels", orDefault(labelsText(pr.Labels), NoLabels))}
	case "edited":
		fields := pullRequestEditFields(event, pr)
		if len(fields) == 0 {
			return nil, nil
		}
		msg.Fields = fields
		if title := event.GetChanges().GetTitle(); title != nil && isWIPTitle(title.GetFrom()) && !isWIPTitle(pr.GetTitle()) {
			msg.Content = hc.mention(ctx, sender, reviewerCandidates...)
		}
	case "ready_for_review":
		msg.Fields = []Field{branch, reviewers}
		msg.Content = hc.mention(ctx, sender, reviewerCandidates...)
	case "locked", "unlocked", "auto_merge_enabled", "converted_to_draft", "enqueued", "dequeued":
	case "auto_merge_disabled":
		msg.Fields = []Field{inline("Reason", orDefault(event.Reason, NotAvailable))}
	case "milestoned", "demilestoned":
		msg.Fields = []Field{inline("Milestone", orDefault(milestoneTitle(event.Milestone, pr.GetMilestone()), NoMilestone))}
	default:
		return nil, notImplemented(hc.Event, action)
	}
	return notify(key, msg)
}

func pullRequestEditFields(event *pullRequestPayload, pr *github.PullRequest) []Field {
	changes := event.GetChanges()
	fields := editFields(changes, pr.GetTitle(), pr.GetBody())
	if ref := changes.GetBase().GetRef(); ref != nil {
		fields = appendDiff(fields, "Base", ref.GetFrom(), pr.GetBase().GetRef(), 0)
	}
	return fields
}

func milestoneTitle(milestones ...*github.Milestone) string {
	for _, m := range milestones {
		if m.GetTitle() != "" {
			return m.GetTitle()
		}
	}
	return ""
}

func ownerLogin(org *github.Organization, repo *github.Repository) string {
	if org.GetLogin() != "" {
		return org.GetLogin()
	}
	return repo.GetOwner().GetLogin()
}

// joinMentions joins non-empty mention groups with a single space.
func joinMentions(groups ...string) string {
	out := ""
	for _, group := range groups {
		if group == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += group
	}
	return out
}
