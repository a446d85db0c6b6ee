package notify

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
)

// projectScope names the repository a classic project belongs to, falling
// back to the owning organization for org-level boards.
func projectScope(org *github.Organization, repo *github.Repository) string {
	if name := repo.GetFullName(); name != "" {
		return name
	}
	return ownerLogin(org, repo)
}

func handleProject(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.ProjectEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	project := event.GetProject()
	scope := projectScope(event.GetOrg(), event.GetRepo())

	msg := hc.message(
		issueTitle(scope, "Project", action, project.GetNumber(), project.GetName()),
		project.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	switch action {
	case "created":
		msg.Description = bodyText(project.GetBody(), BodyLimit)
	case "edited":
		changes := event.GetChanges()
		var fields []Field
		if name := changes.GetName(); name != nil {
			fields = appendDiff(fields, "Name", name.GetFrom(), project.GetName(), 0)
		}
		if body := changes.GetBody(); body != nil {
			fields = appendDiff(fields, "Body", body.GetFrom(), project.GetBody(), LongBodyLimit)
		}
		if len(fields) == 0 {
			return nil, nil
		}
		msg.Fields = fields
	case "closed", "reopened", "deleted":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	return notify(fmt.Sprintf("%s-project-%d", scope, project.GetID()), msg)
}

func handleProjectCard(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.ProjectCardEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	card := event.GetProjectCard()
	scope := projectScope(event.GetOrg(), event.GetRepo())

	msg := hc.message(
		repoTitle(scope, "Project card", action, firstLine(card.GetNote())),
		orDefault(card.GetContentURL(), card.GetURL()), event.GetSender(), colorFor(hc.Event, action),
	)
	switch action {
	case "created", "converted", "deleted":
		if note := card.GetNote(); note != "" {
			msg.Description = Truncate(note, BodyLimit)
		}
	case "moved":
		if previous := card.GetPreviousColumnName(); previous != "" {
			msg.Fields = []Field{inline("From Column", previous)}
		}
		msg.Fields = append(msg.Fields, inline("To Column", orDefault(card.GetColumnName(), NotAvailable)))
	case "edited":
		note := event.GetChanges().GetNote()
		if note == nil {
			return nil, nil
		}
		msg.Fields = appendDiff(nil, "Note", note.GetFrom(), card.GetNote(), LongBodyLimit)
		if len(msg.Fields) == 0 {
			return nil, nil
		}
	default:
		return nil, notImplemented(hc.Event, action)
	}
	return notify(fmt.Sprintf("%s-project-card-%d", scope, card.GetID()), msg)
}

func handleProjectColumn(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.ProjectColumnEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	column := event.GetProjectColumn()
	scope := projectScope(event.GetOrg(), event.GetRepo())

	msg := hc.message(
		repoTitle(scope, "Project column", action, column.GetName()),
		"", event.GetSender(), colorFor(hc.Event, action),
	)
	switch action {
	case "created", "moved", "deleted":
	case "edited":
		name := event.GetChanges().GetName()
		if name == nil || name.GetFrom() == column.GetName() {
			return nil, nil
		}
		msg.Fields = []Field{inline("Previous Name", name.GetFrom())}
	default:
		return nil, notImplemented(hc.Event, action)
	}
	return notify(fmt.Sprintf("%s-project-column-%d", scope, column.GetID()), msg)
}

func handleProjectsV2Item(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.ProjectV2ItemEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "created", "edited", "deleted", "archived", "restored", "converted", "reordered":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	item := event.GetProjectV2Item()
	org := event.GetOrg().GetLogin()

	msg := hc.message(
		repoTitle(org, "Project item", action, humanize(item.GetContentType())),
		"", event.GetSender(), colorFor(hc.Event, action),
	)
	msg.Fields = []Field{inline("Project", orDefault(item.GetProjectNodeID(), NotAvailable))}
	if action == "edited" && event.GetChanges() == nil {
		return nil, nil
	}
	return notify(fmt.Sprintf("%s-project-item-%d", org, item.GetID()), msg)
}
