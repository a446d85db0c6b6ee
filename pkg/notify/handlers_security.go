package notify

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
)

// Alert lifecycles collapse onto one message per alert.
var alertBuckets = map[string]string{
	"created":            "alert",
	"appeared_in_branch": "alert",
	"reopened":           "alert",
	"reopened_by_user":   "alert",
	"closed_by_user":     "alert",
	"fixed":              "alert",
	"dismissed":          "alert",
	"auto_dismissed":     "alert",
	"auto_reopened":      "alert",
	"reintroduced":       "alert",
	"create":             "alert",
	"resolve":            "alert",
	"dismiss":            "alert",
	"reopen":             "alert",
}

func handleCodeScanningAlert(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.CodeScanningAlertEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "created", "appeared_in_branch", "reopened", "reopened_by_user", "closed_by_user", "fixed":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	alert := event.GetAlert()
	repo := event.GetRepo().GetFullName()
	rule := alert.GetRule()

	msg := hc.message(
		issueTitle(repo, "Code scanning alert", humanize(action), alert.GetNumber(), orDefault(rule.GetDescription(), alert.GetRuleDescription())),
		alert.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	msg.Fields = []Field{
		inline("Severity", orDefault(orDefault(rule.GetSecuritySeverityLevel(), rule.GetSeverity()), NotAvailable)),
		inline("Tool", orDefault(alert.GetTool().GetName(), NotAvailable)),
		inline("Ref", orDefault(event.GetRef(), NotAvailable)),
	}
	if path := alert.GetMostRecentInstance().GetLocation().GetPath(); path != "" {
		msg.Fields = append(msg.Fields, inline("Location", path))
	}
	return notify(fmt.Sprintf("%s-code-scanning-%d-%s", repo, alert.GetNumber(), bucketFor(alertBuckets, action)), msg)
}

func handleDependabotAlert(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.DependabotAlertEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "created", "dismissed", "fixed", "reintroduced", "reopened", "auto_dismissed", "auto_reopened":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	alert := event.GetAlert()
	advisory := alert.GetSecurityAdvisory()
	repo := event.GetRepo().GetFullName()
	pkg := alert.GetDependency().GetPackage()

	msg := hc.message(
		issueTitle(repo, "Dependabot alert", humanize(action), alert.GetNumber(), advisory.GetSummary()),
		alert.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	msg.Fields = []Field{
		inline("Package", fmt.Sprintf("%s (%s)", pkg.GetName(), pkg.GetEcosystem())),
		inline("Severity", orDefault(advisory.GetSeverity(), NotAvailable)),
		inline("Patched", orDefault(alert.GetSecurityVulnerability().GetFirstPatchedVersion().GetIdentifier(), NotAvailable)),
	}
	if action == "dismissed" {
		msg.Fields = append(msg.Fields, inline("Reason", humanize(orDefault(alert.GetDismissedReason(), NotAvailable))))
	}
	return notify(fmt.Sprintf("%s-dependabot-%d-%s", repo, alert.GetNumber(), bucketFor(alertBuckets, action)), msg)
}

func handleRepositoryVulnerabilityAlert(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.RepositoryVulnerabilityAlertEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "create", "dismiss", "reopen", "resolve":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	alert := event.GetAlert()
	repo := event.GetRepository().GetFullName()

	msg := hc.message(
		repoTitle(repo, "Vulnerability alert", action, alert.GetAffectedPackageName()),
		orDefault(alert.GetExternalReference(), event.GetRepository().GetHTMLURL()+"/security"),
		event.GetSender(), colorFor(hc.Event, action),
	)
	msg.Fields = []Field{
		inline("Severity", orDefault(alert.GetSeverity(), NotAvailable)),
		inline("Affected", orDefault(alert.GetAffectedRange(), NotAvailable)),
		inline("Fixed In", orDefault(alert.GetFixedIn(), NotAvailable)),
	}
	return notify(fmt.Sprintf("%s-vulnerability-%d-%s", repo, alert.GetID(), bucketFor(alertBuckets, action)), msg)
}

func handleSecurityAdvisory(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.SecurityAdvisoryEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "published", "updated", "performed", "withdrawn":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	advisory := event.GetSecurityAdvisory()
	title := fmt.Sprintf("Security advisory %s: %s", action, advisory.GetSummary())
	if repo := event.GetRepository().GetFullName(); repo != "" {
		title = repoTitle(repo, "Security advisory", action, advisory.GetSummary())
	}

	msg := hc.message(title, advisory.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action))
	msg.Description = bodyText(advisory.GetDescription(), BodyLimit)
	msg.Fields = []Field{
		inline("GHSA", advisory.GetGHSAID()),
		inline("CVE", orDefault(advisory.GetCVEID(), NotAvailable)),
		inline("Severity", orDefault(advisory.GetSeverity(), NotAvailable)),
	}
	return notify(fmt.Sprintf("advisory-%s", advisory.GetGHSAID()), msg)
}
