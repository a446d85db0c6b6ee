package notify

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
)

var issueBuckets = map[string]string{
	"assigned":     "assigned",
	"unassigned":   "assigned",
	"labeled":      "label",
	"unlabeled":    "label",
	"locked":       "locked",
	"unlocked":     "locked",
	"milestoned":   "milestoned",
	"demilestoned": "milestoned",
	"pinned":       "pinned",
	"unpinned":     "pinned",
}

func handleIssues(ctx context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.IssuesEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	issue := event.GetIssue()
	repo := event.GetRepo().GetFullName()
	sender := event.GetSender()

	msg := hc.message(
		issueTitle(repo, "Issue", humanize(action), issue.GetNumber(), issue.GetTitle()),
		issue.GetHTMLURL(), sender, colorFor(hc.Event, action),
	)
	key := issueKey(repo, issue.GetNumber(), bucketFor(issueBuckets, action))
	labels := inline("Labels", orDefault(labelsText(issue.Labels), NoLabels))
	assignees := inline("Assignees", orDefault(usersText(issue.Assignees, nil), NoAssignees))

	switch action {
	case "opened", "reopened":
		msg.Description = bodyText(issue.GetBody(), BodyLimit)
		msg.Fields = []Field{labels, assignees}
		msg.Content = hc.mention(ctx, sender, UserCandidates(issue.Assignees...)...)
	case "closed":
		msg.Description = bodyText(issue.GetBody(), BodyLimit)
		if reason := issue.GetStateReason(); reason != "" {
			msg.Fields = []Field{inline("Reason", humanize(reason))}
		}
	case "assigned":
		msg.Fields = []Field{assignees}
		msg.Content = hc.mention(ctx, sender, UserCandidates(event.GetAssignee())...)
	case "unassigned":
		msg.Fields = []Field{assignees}
	case "labeled", "unlabeled":
		if event.GetLabel().GetName() == "" {
			return nil, nil
		}
		msg.Fields = []Field{inline("Label", event.GetLabel().GetName()), labels}
	case "edited":
		fields := editFields(event.GetChanges(), issue.GetTitle(), issue.GetBody())
		if len(fields) == 0 {
			return nil, nil
		}
		msg.Fields = fields
	case "locked", "unlocked":
		if reason := issue.GetActiveLockReason(); reason != "" && action == "locked" {
			msg.Fields = []Field{inline("Lock Reason", humanize(reason))}
		}
	case "milestoned", "demilestoned":
		if event.GetMilestone().GetTitle() == "" {
			return nil, nil
		}
		msg.Fields = []Field{inline("Milestone", event.GetMilestone().GetTitle())}
	case "transferred", "pinned", "unpinned":
	case "deleted":
		msg.URL = event.GetRepo().GetHTMLURL()
	default:
		return nil, notImplemented(hc.Event, action)
	}
	return notify(key, msg)
}

// editFields renders title and body diffs from a changes object.
func editFields(changes *github.EditChange, title, body string) []Field {
	var fields []Field
	if prev := changes.GetTitle(); prev != nil {
		fields = appendDiff(fields, "Title", prev.GetFrom(), title, 0)
	}
	if prev := changes.GetBody(); prev != nil {
		fields = appendDiff(fields, "Body", prev.GetFrom(), body, LongBodyLimit)
	}
	return fields
}

func handleIssueComment(ctx context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.IssueCommentEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	issue := event.GetIssue()
	comment := event.GetComment()
	repo := event.GetRepo().GetFullName()

	msg := hc.message(
		issueTitle(repo, "Issue comment", action, issue.GetNumber(), issue.GetTitle()),
		comment.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	switch action {
	case "created":
		msg.Description = bodyText(comment.GetBody(), BodyLimit)
		msg.Content = hc.mentioner().MentionLogins(ctx, event.GetSender(), mentionedLogins(comment.GetBody()))
	case "edited":
		msg.Description = bodyText(comment.GetBody(), BodyLimit)
	case "deleted":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	return notify(issueKey(repo, issue.GetNumber(), fmt.Sprintf("comment-%d", comment.GetID())), msg)
}

type labelPayload struct {
	github.LabelEvent
	Changes *struct {
		Name        *editFrom `json:"name,omitempty"`
		Color       *editFrom `json:"color,omitempty"`
		Description *editFrom `json:"description,omitempty"`
	} `json:"changes,omitempty"`
}

type editFrom struct {
	From string `json:"from"`
}

func handleLabel(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[labelPayload](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	label := event.GetLabel()
	repo := event.GetRepo().GetFullName()

	msg := hc.message(
		repoTitle(repo, "Label", action, label.GetName()),
		event.GetRepo().GetHTMLURL()+"/labels", event.GetSender(), colorFor(hc.Event, action),
	)
	switch action {
	case "created", "deleted":
		msg.Fields = []Field{
			inline("Color", "#"+label.GetColor()),
			inline("Description", orDefault(label.GetDescription(), NoDescription)),
		}
	case "edited":
		if event.Changes == nil {
			return nil, nil
		}
		var fields []Field
		if c := event.Changes.Name; c != nil {
			fields = append(fields, inline("Name", c.From+" → "+label.GetName()))
		}
		if c := event.Changes.Color; c != nil {
			fields = append(fields, inline("Color", "#"+c.From+" → #"+label.GetColor()))
		}
		if c := event.Changes.Description; c != nil {
			fields = appendDiff(fields, "Description", c.From, label.GetDescription(), 0)
		}
		if len(fields) == 0 {
			return nil, nil
		}
		msg.Fields = fields
	default:
		return nil, notImplemented(hc.Event, action)
	}
	return notify(fmt.Sprintf("%s-label-%d-%s", repo, label.GetID(), action), msg)
}

type milestonePayload struct {
	github.MilestoneEvent
	Changes *struct {
		Title       *editFrom `json:"title,omitempty"`
		Description *editFrom `json:"description,omitempty"`
		DueOn       *editFrom `json:"due_on,omitempty"`
	} `json:"changes,omitempty"`
}

var milestoneBuckets = map[string]string{
	"opened": "state",
	"closed": "state",
}

func handleMilestone(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[milestonePayload](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	milestone := event.GetMilestone()
	repo := event.GetRepo().GetFullName()

	msg := hc.message(
		repoTitle(repo, "Milestone", action, milestone.GetTitle()),
		milestone.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	progress := inline("Progress", fmt.Sprintf("%d open / %d closed", milestone.GetOpenIssues(), milestone.GetClosedIssues()))
	switch action {
	case "created", "opened", "closed":
		msg.Description = bodyText(milestone.GetDescription(), BodyLimit)
		msg.Fields = []Field{progress}
		if due := milestone.GetDueOn(); !due.IsZero() {
			msg.Fields = append(msg.Fields, inline("Due", due.Format("2006-01-02")))
		}
	case "edited":
		if event.Changes == nil {
			return nil, nil
		}
		var fields []Field
		if c := event.Changes.Title; c != nil {
			fields = appendDiff(fields, "Title", c.From, milestone.GetTitle(), 0)
		}
		if c := event.Changes.Description; c != nil {
			fields = appendDiff(fields, "Description", c.From, milestone.GetDescription(), LongBodyLimit)
		}
		if c := event.Changes.DueOn; c != nil {
			fields = append(fields, inline("Due", orDefault(c.From, NotAvailable)+" → "+milestone.GetDueOn().Format("2006-01-02")))
		}
		if len(fields) == 0 {
			return nil, nil
		}
		msg.Fields = fields
	case "deleted":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	return notify(fmt.Sprintf("%s-milestone-%d-%s", repo, milestone.GetNumber(), bucketFor(milestoneBuckets, action)), msg)
}
