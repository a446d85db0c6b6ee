package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
)

func conclusionOr(status, conclusion string) string {
	if conclusion != "" {
		return conclusion
	}
	return status
}

func handleCheckRun(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.CheckRunEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "created", "completed", "rerequested", "requested_action":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	run := event.GetCheckRun()
	repo := event.GetRepo().GetFullName()
	state := conclusionOr(run.GetStatus(), run.GetConclusion())

	msg := hc.message(
		repoTitle(repo, "Check run", humanize(action), run.GetName()),
		orDefault(run.GetHTMLURL(), run.GetDetailsURL()), event.GetSender(), colorFor(hc.Event, action, state),
	)
	msg.Fields = []Field{
		inline("Status", humanize(state)),
		inline("Commit", shortSHA(run.GetHeadSHA())),
	}
	if summary := run.GetOutput().GetSummary(); summary != "" {
		msg.Description = Truncate(summary, BodyLimit)
	}
	if requested := event.GetRequestedAction(); requested != nil {
		msg.Fields = append(msg.Fields, inline("Requested Action", requested.Identifier))
	}
	return notify(fmt.Sprintf("%s-check-run-%d", repo, run.GetID()), msg)
}

func handleCheckSuite(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.CheckSuiteEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "completed", "requested", "rerequested":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	suite := event.GetCheckSuite()
	repo := event.GetRepo().GetFullName()
	state := conclusionOr(suite.GetStatus(), suite.GetConclusion())

	msg := hc.message(
		repoTitle(repo, "Check suite", humanize(action), suite.GetApp().GetName()),
		event.GetRepo().GetHTMLURL()+"/commit/"+suite.GetHeadSHA(), event.GetSender(), colorFor(hc.Event, action, state),
	)
	msg.Fields = []Field{
		inline("Status", humanize(state)),
		inline("Branch", orDefault(suite.GetHeadBranch(), NotAvailable)),
		inline("Commit", shortSHA(suite.GetHeadSHA())),
	}
	return notify(fmt.Sprintf("%s-check-suite-%d", repo, suite.GetID()), msg)
}

func handleWorkflowRun(ctx context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.WorkflowRunEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "requested", "in_progress", "completed":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	run := event.GetWorkflowRun()
	repo := event.GetRepo().GetFullName()
	state := conclusionOr(run.GetStatus(), run.GetConclusion())

	msg := hc.message(
		issueTitle(repo, "Workflow run", humanize(action), run.GetRunNumber(), run.GetName()),
		run.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action, state),
	)
	msg.Description = firstLine(run.GetDisplayTitle())
	msg.Fields = []Field{
		inline("Status", humanize(state)),
		inline("Branch", orDefault(run.GetHeadBranch(), NotAvailable)),
		inline("Trigger", orDefault(run.GetEvent(), NotAvailable)),
	}
	if action == "completed" && run.GetConclusion() == "failure" {
		msg.Content = hc.mention(ctx, event.GetSender(), UserCandidates(run.GetTriggeringActor())...)
	}
	return notify(fmt.Sprintf("%s-workflow-run-%d-%d", repo, run.GetID(), run.GetRunAttempt()), msg)
}

func handleWorkflowJob(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.WorkflowJobEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "queued", "in_progress", "completed", "waiting":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	job := event.GetWorkflowJob()
	repo := event.GetRepo().GetFullName()
	state := conclusionOr(job.GetStatus(), job.GetConclusion())

	msg := hc.message(
		repoTitle(repo, "Workflow job", humanize(action), job.GetName()),
		job.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action, state),
	)
	msg.Fields = []Field{
		inline("Workflow", orDefault(job.GetWorkflowName(), NotAvailable)),
		inline("Status", humanize(state)),
		inline("Runner", orDefault(job.GetRunnerName(), NotAvailable)),
	}
	return notify(fmt.Sprintf("%s-workflow-job-%d", repo, job.GetID()), msg)
}

func handleWorkflowDispatch(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.WorkflowDispatchEvent](payload)
	if err != nil {
		return nil, err
	}
	repo := event.GetRepo().GetFullName()
	workflow := event.GetWorkflow()

	msg := hc.message(
		repoTitle(repo, "Workflow", "dispatched", workflow),
		event.GetRepo().GetHTMLURL()+"/actions", event.GetSender(), colorFor(hc.Event, ""),
	)
	msg.Fields = []Field{inline("Ref", strings.TrimPrefix(event.GetRef(), "refs/heads/"))}
	if len(event.Inputs) > 0 && string(event.Inputs) != "null" && string(event.Inputs) != "{}" {
		msg.Fields = append(msg.Fields, block("Inputs", "```json\n"+Truncate(string(event.Inputs), BodyLimit)+"\n```"))
	}
	return notify(fmt.Sprintf("%s-workflow-dispatch-%s-%s", repo, workflow, hc.now().Format("20060102T150405")), msg)
}

type deploymentPayload struct {
	github.DeploymentEvent
	Action string `json:"action"`
}

func handleDeployment(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[deploymentPayload](payload)
	if err != nil {
		return nil, err
	}
	if event.Action != "" && event.Action != "created" {
		return nil, notImplemented(hc.Event, event.Action)
	}
	deployment := event.GetDeployment()
	repo := event.GetRepo().GetFullName()

	msg := hc.message(
		repoTitle(repo, "Deployment", "created", deployment.GetEnvironment()),
		event.GetRepo().GetHTMLURL()+"/deployments", event.GetSender(), colorFor(hc.Event, "created"),
	)
	msg.Description = Truncate(deployment.GetDescription(), BodyLimit)
	msg.Fields = []Field{
		inline("Ref", deployment.GetRef()),
		inline("Commit", shortSHA(deployment.GetSHA())),
		inline("Task", orDefault(deployment.GetTask(), NotAvailable)),
	}
	return notify(fmt.Sprintf("%s-deployment-%d", repo, deployment.GetID()), msg)
}

type deploymentStatusPayload struct {
	github.DeploymentStatusEvent
	Action string `json:"action"`
}

func handleDeploymentStatus(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[deploymentStatusPayload](payload)
	if err != nil {
		return nil, err
	}
	if event.Action != "" && event.Action != "created" {
		return nil, notImplemented(hc.Event, event.Action)
	}
	deployment := event.GetDeployment()
	status := event.GetDeploymentStatus()
	repo := event.GetRepo().GetFullName()
	state := status.GetState()

	url := orDefault(status.GetTargetURL(), status.GetLogURL())
	if url == "" {
		url = event.GetRepo().GetHTMLURL() + "/deployments"
	}
	msg := hc.message(
		repoTitle(repo, "Deployment", humanize(state), orDefault(status.GetEnvironment(), deployment.GetEnvironment())),
		url, event.GetSender(), colorFor(hc.Event, state),
	)
	msg.Description = Truncate(status.GetDescription(), BodyLimit)
	msg.Fields = []Field{
		inline("Ref", deployment.GetRef()),
		inline("Commit", shortSHA(deployment.GetSHA())),
	}
	if env := status.GetEnvironmentURL(); env != "" {
		msg.Fields = append(msg.Fields, inline("Environment URL", env))
	}
	return notify(fmt.Sprintf("%s-deployment-%d-status", repo, deployment.GetID()), msg)
}

// deploymentReviewPayload has no go-github counterpart.
type deploymentReviewPayload struct {
	Action      string              `json:"action"`
	Environment string              `json:"environment"`
	Comment     string              `json:"comment"`
	Since       string              `json:"since"`
	Requestor   *github.User        `json:"requestor,omitempty"`
	Approver    *github.User        `json:"approver,omitempty"`
	WorkflowRun *github.WorkflowRun `json:"workflow_run,omitempty"`
	Reviewers   []struct {
		Type     string          `json:"type"`
		Reviewer json.RawMessage `json:"reviewer"`
	} `json:"reviewers,omitempty"`
	Repo   *github.Repository   `json:"repository,omitempty"`
	Org    *github.Organization `json:"organization,omitempty"`
	Sender *github.User         `json:"sender,omitempty"`
}

func handleDeploymentReview(ctx context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[deploymentReviewPayload](payload)
	if err != nil {
		return nil, err
	}
	action := event.Action
	switch action {
	case "requested", "approved", "rejected":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	repo := event.Repo.GetFullName()
	run := event.WorkflowRun

	msg := hc.message(
		repoTitle(repo, "Deployment review", action, event.Environment),
		orDefault(run.GetHTMLURL(), event.Repo.GetHTMLURL()), event.Sender, colorFor(hc.Event, action),
	)
	msg.Fields = []Field{inline("Workflow", orDefault(run.GetName(), NotAvailable))}
	if event.Comment != "" {
		msg.Description = Truncate(event.Comment, BodyLimit)
	}
	if action == "requested" {
		var candidates []Candidate
		org := ownerLogin(event.Org, event.Repo)
		for _, r := range event.Reviewers {
			switch r.Type {
			case "User":
				var user github.User
				if json.Unmarshal(r.Reviewer, &user) == nil {
					candidates = append(candidates, UserCandidates(&user)...)
				}
			case "Team":
				var team github.Team
				if json.Unmarshal(r.Reviewer, &team) == nil {
					candidates = append(candidates, TeamCandidates(org, &team)...)
				}
			}
		}
		msg.Content = hc.mention(ctx, event.Sender, candidates...)
	}
	return notify(fmt.Sprintf("%s-deployment-review-%d-%s", repo, run.GetID(), event.Environment), msg)
}

type mergeGroupPayload struct {
	github.MergeGroupEvent
	Reason string `json:"reason,omitempty"`
}

func handleMergeGroup(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[mergeGroupPayload](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "checks_requested", "destroyed":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	group := event.GetMergeGroup()
	repo := event.GetRepo().GetFullName()

	msg := hc.message(
		repoTitle(repo, "Merge group", humanize(action), strings.TrimPrefix(group.GetBaseRef(), "refs/heads/")),
		event.GetRepo().GetHTMLURL()+"/queue/"+strings.TrimPrefix(group.GetBaseRef(), "refs/heads/"),
		event.GetSender(), colorFor(hc.Event, action),
	)
	msg.Description = Truncate(firstLine(group.GetHeadCommit().GetMessage()), BodyLimit)
	msg.Fields = []Field{inline("Head", shortSHA(group.GetHeadSHA()))}
	if event.Reason != "" {
		msg.Fields = append(msg.Fields, inline("Reason", humanize(event.Reason)))
	}
	return notify(fmt.Sprintf("%s-merge-group-%s", repo, shortSHA(group.GetHeadSHA())), msg)
}
