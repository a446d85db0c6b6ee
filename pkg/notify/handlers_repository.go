package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
)

func handlePush(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.PushEvent](payload)
	if err != nil {
		return nil, err
	}
	if event.GetDeleted() || len(event.Commits) == 0 {
		return nil, nil
	}
	repo := event.GetRepo().GetFullName()
	ref := strings.TrimPrefix(event.GetRef(), "refs/heads/")

	lines := make([]string, 0, len(event.Commits))
	for _, commit := range event.Commits {
		lines = append(lines, fmt.Sprintf("[`%s`](%s) %s - %s",
			shortSHA(commit.GetID()), commit.GetURL(), firstLine(commit.GetMessage()), commit.GetAuthor().GetName()))
	}
	msg := hc.message(
		fmt.Sprintf("[%s:%s] %d new commit(s)", repo, ref, len(event.Commits)),
		event.GetCompare(), event.GetSender(), colorFor(hc.Event, ""),
	)
	msg.Description = Truncate(strings.Join(lines, "\n"), LongBodyLimit)
	if event.GetForced() {
		msg.Fields = []Field{inline("Forced", yesNo(true))}
	}
	return notify(fmt.Sprintf("%s:%s-push-%s", repo, ref, shortSHA(event.GetAfter())), msg)
}

func handleCreate(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.CreateEvent](payload)
	if err != nil {
		return nil, err
	}
	repo := event.GetRepo().GetFullName()
	msg := hc.message(
		repoTitle(repo, capitalize(event.GetRefType()), "created", event.GetRef()),
		refURL(event.GetRepo(), event.GetRefType(), event.GetRef()), event.GetSender(), colorFor(hc.Event, ""),
	)
	if desc := event.GetDescription(); desc != "" {
		msg.Description = Truncate(desc, BodyLimit)
	}
	return notify(fmt.Sprintf("%s-create-%s-%s", repo, event.GetRefType(), event.GetRef()), msg)
}

func handleDelete(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.DeleteEvent](payload)
	if err != nil {
		return nil, err
	}
	repo := event.GetRepo().GetFullName()
	msg := hc.message(
		repoTitle(repo, capitalize(event.GetRefType()), "deleted", event.GetRef()),
		event.GetRepo().GetHTMLURL(), event.GetSender(), colorFor(hc.Event, ""),
	)
	return notify(fmt.Sprintf("%s-delete-%s-%s", repo, event.GetRefType(), event.GetRef()), msg)
}

func refURL(repo *github.Repository, refType, ref string) string {
	switch refType {
	case "branch":
		return repo.GetHTMLURL() + "/tree/" + ref
	case "tag":
		return repo.GetHTMLURL() + "/releases/tag/" + ref
	}
	return repo.GetHTMLURL()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func handleFork(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.ForkEvent](payload)
	if err != nil {
		return nil, err
	}
	repo := event.GetRepo().GetFullName()
	login := event.GetSender().GetLogin()
	msg := hc.message(
		fmt.Sprintf("Forked %s by %s to %s", repo, login, event.GetForkee().GetFullName()),
		event.GetForkee().GetHTMLURL(), event.GetSender(), colorFor(hc.Event, ""),
	)
	return notify(fmt.Sprintf("%s-fork-%s", repo, login), msg)
}

func handleStar(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.StarEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	verb := "Starred"
	switch action {
	case "created":
	case "deleted":
		verb = "Unstarred"
	default:
		return nil, notImplemented(hc.Event, action)
	}
	repo := event.GetRepo().GetFullName()
	login := event.GetSender().GetLogin()
	msg := hc.message(
		fmt.Sprintf("%s %s by %s", verb, repo, login),
		event.GetRepo().GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	msg.Fields = []Field{inline("Stars", fmt.Sprint(event.GetRepo().GetStargazersCount()))}
	return notify(fmt.Sprintf("%s-star-%s", repo, login), msg)
}

func handleWatch(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.WatchEvent](payload)
	if err != nil {
		return nil, err
	}
	if action := event.GetAction(); action != "started" {
		return nil, notImplemented(hc.Event, action)
	}
	repo := event.GetRepo().GetFullName()
	login := event.GetSender().GetLogin()
	msg := hc.message(
		fmt.Sprintf("Watching %s by %s", repo, login),
		event.GetRepo().GetHTMLURL(), event.GetSender(), colorFor(hc.Event, event.GetAction()),
	)
	return notify(fmt.Sprintf("%s-watch-%s", repo, login), msg)
}

func handlePublic(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.PublicEvent](payload)
	if err != nil {
		return nil, err
	}
	repo := event.GetRepo().GetFullName()
	login := event.GetSender().GetLogin()
	msg := hc.message(
		fmt.Sprintf("Published %s by %s", repo, login),
		event.GetRepo().GetHTMLURL(), event.GetSender(), colorFor(hc.Event, ""),
	)
	return notify(fmt.Sprintf("%s-public-%s", repo, login), msg)
}

type repositoryPayload struct {
	github.RepositoryEvent
	Changes *struct {
		Description   *editFrom `json:"description,omitempty"`
		Homepage      *editFrom `json:"homepage,omitempty"`
		DefaultBranch *editFrom `json:"default_branch,omitempty"`
		Repository    *struct {
			Name *editFrom `json:"name,omitempty"`
		} `json:"repository,omitempty"`
		Owner *struct {
			From struct {
				User *github.User `json:"user,omitempty"`
				Org  *github.User `json:"organization,omitempty"`
			} `json:"from"`
		} `json:"owner,omitempty"`
	} `json:"changes,omitempty"`
}

var repositoryBuckets = map[string]string{
	"archived":   "archived",
	"unarchived": "archived",
	"publicized": "visibility",
	"privatized": "visibility",
}

func handleRepository(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[repositoryPayload](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	repository := event.GetRepo()
	repo := repository.GetFullName()

	msg := hc.message(
		repoTitle(repo, "Repository", action, ""),
		repository.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	changes := event.Changes
	switch action {
	case "created":
		msg.Description = bodyText(repository.GetDescription(), BodyLimit)
		msg.Fields = []Field{inline("Visibility", orDefault(repository.GetVisibility(), NotAvailable))}
	case "deleted", "archived", "unarchived", "publicized", "privatized":
	case "renamed":
		if changes == nil || changes.Repository == nil || changes.Repository.Name == nil {
			return nil, nil
		}
		msg.Fields = []Field{
			inline("From", changes.Repository.Name.From),
			inline("To", repository.GetName()),
		}
	case "transferred":
		if changes != nil && changes.Owner != nil {
			from := changes.Owner.From.User
			if from == nil {
				from = changes.Owner.From.Org
			}
			msg.Fields = []Field{
				inline("From", orDefault(from.GetLogin(), NotAvailable)),
				inline("To", repository.GetOwner().GetLogin()),
			}
		}
	case "edited":
		if changes == nil {
			return nil, nil
		}
		var fields []Field
		if changes.Description != nil {
			fields = appendDiff(fields, "Description", changes.Description.From, repository.GetDescription(), 0)
		}
		if changes.Homepage != nil && changes.Homepage.From != repository.GetHomepage() {
			fields = append(fields, inline("Homepage", orDefault(repository.GetHomepage(), NotAvailable)))
		}
		if changes.DefaultBranch != nil && changes.DefaultBranch.From != repository.GetDefaultBranch() {
			fields = append(fields, inline("Default Branch", changes.DefaultBranch.From+" → "+repository.GetDefaultBranch()))
		}
		if len(fields) == 0 {
			return nil, nil
		}
		msg.Fields = fields
	default:
		return nil, notImplemented(hc.Event, action)
	}
	return notify(fmt.Sprintf("%s-repository-%s", repo, bucketFor(repositoryBuckets, action)), msg)
}

func handleRepositoryDispatch(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.RepositoryDispatchEvent](payload)
	if err != nil {
		return nil, err
	}
	repo := event.GetRepo().GetFullName()
	msg := hc.message(
		repoTitle(repo, "Repository dispatch", "received", event.GetAction()),
		event.GetRepo().GetHTMLURL(), event.GetSender(), colorFor(hc.Event, ""),
	)
	msg.Fields = []Field{inline("Branch", orDefault(event.GetBranch(), NotAvailable))}
	if len(event.ClientPayload) > 0 && string(event.ClientPayload) != "null" {
		msg.Fields = append(msg.Fields, block("Client Payload", "```json\n"+Truncate(string(event.ClientPayload), BodyLimit)+"\n```"))
	}
	return notify(fmt.Sprintf("%s-dispatch-%s-%s", repo, event.GetAction(), hc.now().Format("20060102T150405")), msg)
}

func handleRepositoryImport(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.RepositoryImportEvent](payload)
	if err != nil {
		return nil, err
	}
	status := event.GetStatus()
	switch status {
	case "success", "cancelled", "failure":
	default:
		return nil, notImplemented(hc.Event, status)
	}
	repo := event.GetRepo().GetFullName()
	msg := hc.message(
		repoTitle(repo, "Repository import", status, ""),
		event.GetRepo().GetHTMLURL(), event.GetSender(), colorFor(hc.Event, status),
	)
	return notify(repo+"-import", msg)
}

type releasePayload struct {
	github.ReleaseEvent
	Changes *struct {
		Name *editFrom `json:"name,omitempty"`
		Body *editFrom `json:"body,omitempty"`
	} `json:"changes,omitempty"`
}

func handleRelease(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[releasePayload](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	release := event.GetRelease()
	repo := event.GetRepo().GetFullName()
	name := orDefault(release.GetName(), release.GetTagName())

	msg := hc.message(
		repoTitle(repo, "Release", action, name),
		release.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	details := []Field{
		inline("Tag", release.GetTagName()),
		inline("Pre-release", yesNo(release.GetPrerelease())),
	}
	switch action {
	case "published", "created", "released", "prereleased":
		msg.Description = bodyText(release.GetBody(), LongBodyLimit)
		msg.Fields = details
	case "edited":
		if event.Changes == nil {
			return nil, nil
		}
		var fields []Field
		if event.Changes.Name != nil {
			fields = appendDiff(fields, "Name", event.Changes.Name.From, release.GetName(), 0)
		}
		if event.Changes.Body != nil {
			fields = appendDiff(fields, "Body", event.Changes.Body.From, release.GetBody(), LongBodyLimit)
		}
		if len(fields) == 0 {
			return nil, nil
		}
		msg.Fields = fields
	case "unpublished", "deleted":
		msg.Fields = details[:1]
	default:
		return nil, notImplemented(hc.Event, action)
	}
	return notify(fmt.Sprintf("%s-release-%d-%s", repo, release.GetID(), action), msg)
}

func handleGollum(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.GollumEvent](payload)
	if err != nil {
		return nil, err
	}
	if len(event.Pages) == 0 {
		return nil, nil
	}
	repo := event.GetRepo().GetFullName()
	lines := make([]string, 0, len(event.Pages))
	ids := make([]string, 0, len(event.Pages))
	for _, page := range event.Pages {
		lines = append(lines, fmt.Sprintf("%s [%s](%s)", capitalize(page.GetAction()), page.GetTitle(), page.GetHTMLURL()))
		ids = append(ids, page.GetPageName()+"@"+shortSHA(page.GetSHA()))
	}
	msg := hc.message(
		fmt.Sprintf("[%s] Wiki updated: %d page(s)", repo, len(event.Pages)),
		event.Pages[0].GetHTMLURL(), event.GetSender(), colorFor(hc.Event, ""),
	)
	msg.Description = Truncate(strings.Join(lines, "\n"), LongBodyLimit)
	return notify(fmt.Sprintf("%s-gollum-%s", repo, strings.Join(ids, ",")), msg)
}

func handleCommitComment(ctx context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.CommitCommentEvent](payload)
	if err != nil {
		return nil, err
	}
	if action := event.GetAction(); action != "created" {
		return nil, notImplemented(hc.Event, action)
	}
	comment := event.GetComment()
	repo := event.GetRepo().GetFullName()
	sha := shortSHA(comment.GetCommitID())

	msg := hc.message(
		repoTitle(repo, "Commit comment", "created", sha),
		comment.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, "created"),
	)
	msg.Description = bodyText(comment.GetBody(), BodyLimit)
	if path := comment.GetPath(); path != "" {
		msg.Fields = []Field{inline("File", path)}
	}
	msg.Content = hc.mentioner().MentionLogins(ctx, event.GetSender(), mentionedLogins(comment.GetBody()))
	return notify(fmt.Sprintf("%s@%s-comment-%d", repo, sha, comment.GetID()), msg)
}

func handleStatus(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.StatusEvent](payload)
	if err != nil {
		return nil, err
	}
	state := event.GetState()
	switch state {
	case "pending", "success", "failure", "error":
	default:
		return nil, notImplemented(hc.Event, state)
	}
	repo := event.GetRepo().GetFullName()
	sha := shortSHA(event.GetSHA())
	msg := hc.message(
		repoTitle(repo, "Status", state, event.GetContext()),
		event.GetTargetURL(), event.GetSender(), colorFor(hc.Event, state),
	)
	if msg.URL == "" {
		msg.URL = event.GetCommit().GetHTMLURL()
	}
	msg.Description = event.GetDescription()
	branches := make([]string, 0, len(event.Branches))
	for _, branch := range event.Branches {
		branches = append(branches, branch.GetName())
	}
	msg.Fields = []Field{
		inline("Commit", sha),
		inline("Branches", orDefault(strings.Join(branches, ", "), NotAvailable)),
	}
	return notify(fmt.Sprintf("%s@%s-status-%s", repo, sha, event.GetContext()), msg)
}

func handleBranchProtectionRule(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.BranchProtectionRuleEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "created", "edited", "deleted":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	rule := event.GetRule()
	repo := event.GetRepo().GetFullName()
	msg := hc.message(
		repoTitle(repo, "Branch protection rule", action, rule.GetName()),
		event.GetRepo().GetHTMLURL()+"/settings/branches", event.GetSender(), colorFor(hc.Event, action),
	)
	if action != "deleted" {
		msg.Fields = []Field{
			inline("Required Reviews", fmt.Sprint(rule.GetRequiredApprovingReviewCount())),
			inline("Admin Enforced", yesNo(rule.GetAdminEnforced())),
		}
	}
	return notify(fmt.Sprintf("%s-branch-protection-%d-%s", repo, rule.GetID(), action), msg)
}

func handlePageBuild(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.PageBuildEvent](payload)
	if err != nil {
		return nil, err
	}
	build := event.GetBuild()
	repo := event.GetRepo().GetFullName()
	msg := hc.message(
		repoTitle(repo, "Pages build", orDefault(build.GetStatus(), "unknown"), ""),
		event.GetRepo().GetHTMLURL(), event.GetSender(), colorFor(hc.Event, build.GetStatus()),
	)
	msg.Fields = []Field{
		inline("Commit", shortSHA(build.GetCommit())),
		inline("Duration", fmt.Sprintf("%dms", build.GetDuration())),
	}
	if errMsg := build.GetError().GetMessage(); errMsg != "" {
		msg.Fields = append(msg.Fields, block("Error", errMsg))
	}
	return notify(fmt.Sprintf("%s-pages-%s", repo, shortSHA(build.GetCommit())), msg)
}

func handlePing(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.PingEvent](payload)
	if err != nil {
		return nil, err
	}
	repo := orDefault(event.GetRepo().GetFullName(), NotAvailable)
	sender := orDefault(event.GetSender().GetLogin(), NotAvailable)
	org := orDefault(event.GetOrg().GetLogin(), NotAvailable)
	hookType := event.GetHook().GetType()

	msg := hc.message("Received a ping event", "", event.GetSender(), colorFor(hc.Event, ""))
	msg.Description = event.GetZen()
	msg.Fields = []Field{
		inline("Hook Type", hookType),
		inline("Repository", repo),
		inline("Sender", sender),
		inline("Organization", org),
	}
	return notify(strings.Join([]string{repo, sender, org, hookType}, ":"), msg)
}

func handleMeta(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.MetaEvent](payload)
	if err != nil {
		return nil, err
	}
	if action := event.GetAction(); action != "deleted" {
		return nil, notImplemented(hc.Event, action)
	}
	target := orDefault(event.GetRepo().GetFullName(), event.GetOrg().GetLogin())
	msg := hc.message(
		repoTitle(target, "Webhook", "deleted", fmt.Sprint(event.GetHookID())),
		"", event.GetSender(), colorFor(hc.Event, "deleted"),
	)
	msg.Fields = []Field{
		inline("Hook Type", orDefault(event.GetHook().GetType(), NotAvailable)),
		inline("Events", orDefault(strings.Join(event.GetHook().Events, ", "), NotAvailable)),
	}
	return notify(fmt.Sprintf("meta-%d", event.GetHookID()), msg)
}

func handleDeployKey(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.DeployKeyEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "created", "deleted":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	key := event.GetKey()
	repo := event.GetRepo().GetFullName()
	msg := hc.message(
		repoTitle(repo, "Deploy key", action, key.GetTitle()),
		event.GetRepo().GetHTMLURL()+"/settings/keys", event.GetSender(), colorFor(hc.Event, action),
	)
	msg.Fields = []Field{inline("Read Only", yesNo(key.GetReadOnly()))}
	return notify(fmt.Sprintf("%s-deploy-key-%d-%s", repo, key.GetID(), action), msg)
}
