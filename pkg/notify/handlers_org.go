package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
)

func repoNames(repos []*github.Repository) string {
	names := make([]string, 0, len(repos))
	for _, repo := range repos {
		if name := repo.GetFullName(); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

func handleInstallation(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.InstallationEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "created", "deleted", "suspend", "unsuspend", "new_permissions_accepted":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	installation := event.GetInstallation()
	account := installation.GetAccount().GetLogin()

	msg := hc.message(
		repoTitle(account, "Installation", humanize(action), installation.GetAppSlug()),
		installation.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	msg.Fields = []Field{inline("Repository Selection", orDefault(installation.GetRepositorySelection(), NotAvailable))}
	if action == "created" && len(event.Repositories) > 0 {
		msg.Fields = append(msg.Fields, block("Repositories", Truncate(repoNames(event.Repositories), BodyLimit)))
	}
	return notify(fmt.Sprintf("%s-installation-%d", account, installation.GetID()), msg)
}

func handleInstallationRepositories(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.InstallationRepositoriesEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	var repos []*github.Repository
	switch action {
	case "added":
		repos = event.RepositoriesAdded
	case "removed":
		repos = event.RepositoriesRemoved
	default:
		return nil, notImplemented(hc.Event, action)
	}
	installation := event.GetInstallation()
	account := installation.GetAccount().GetLogin()

	msg := hc.message(
		repoTitle(account, "Installation repositories", action, installation.GetAppSlug()),
		installation.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	msg.Description = orDefault(Truncate(repoNames(repos), BodyLimit), NotAvailable)
	return notify(fmt.Sprintf("%s-installation-%d-repositories-%s", account, installation.GetID(), action), msg)
}

func handleGitHubAppAuthorization(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.GitHubAppAuthorizationEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	if action != "revoked" {
		return nil, notImplemented(hc.Event, action)
	}
	login := event.GetSender().GetLogin()
	msg := hc.message("GitHub App authorization revoked: "+login, event.GetSender().GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action))
	return notify("app-authorization-"+login, msg)
}

func handleMarketplacePurchase(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.MarketplacePurchaseEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "purchased", "pending_change", "pending_change_cancelled", "changed", "cancelled":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	purchase := event.GetMarketplacePurchase()
	account := purchase.GetAccount().GetLogin()
	plan := purchase.GetPlan()

	msg := hc.message(
		repoTitle(account, "Marketplace purchase", humanize(action), plan.GetName()),
		"", event.GetSender(), colorFor(hc.Event, action),
	)
	msg.Fields = []Field{
		inline("Billing Cycle", orDefault(purchase.GetBillingCycle(), NotAvailable)),
		inline("Units", fmt.Sprint(purchase.GetUnitCount())),
	}
	if previous := event.GetPreviousMarketplacePurchase().GetPlan().GetName(); previous != "" && previous != plan.GetName() {
		msg.Fields = append(msg.Fields, inline("Previous Plan", previous))
	}
	return notify(fmt.Sprintf("marketplace-%s-%d", account, plan.GetID()), msg)
}

func handleMember(ctx context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.MemberEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	member := event.GetMember()
	repo := event.GetRepo().GetFullName()

	msg := hc.message(
		repoTitle(repo, "Collaborator", action, member.GetLogin()),
		event.GetRepo().GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	switch action {
	case "added":
		msg.Content = hc.mention(ctx, event.GetSender(), UserCandidates(member)...)
	case "removed", "edited":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	return notify(fmt.Sprintf("%s-member-%s", repo, member.GetLogin()), msg)
}

func handleMembership(ctx context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.MembershipEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	org := event.GetOrg().GetLogin()
	team := event.GetTeam()
	member := event.GetMember()

	msg := hc.message(
		fmt.Sprintf("[%s] Team membership %s: %s %s", org, action, team.GetName(), member.GetLogin()),
		team.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	switch action {
	case "added":
		msg.Content = hc.mention(ctx, event.GetSender(), UserCandidates(member)...)
	case "removed":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	return notify(fmt.Sprintf("%s-membership-%s-%s", org, team.GetSlug(), member.GetLogin()), msg)
}

func handleOrganization(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.OrganizationEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	org := event.GetOrganization()

	var subject string
	switch action {
	case "member_added", "member_removed":
		subject = event.GetMembership().GetUser().GetLogin()
	case "member_invited":
		invitation := event.GetInvitation()
		subject = orDefault(invitation.GetLogin(), invitation.GetEmail())
	case "renamed", "deleted":
	default:
		return nil, notImplemented(hc.Event, action)
	}

	msg := hc.message(
		fmt.Sprintf("[%s] Organization %s", org.GetLogin(), humanize(action)),
		org.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	if subject != "" {
		msg.Title += ": " + subject
	}
	if role := event.GetMembership().GetRole(); role != "" {
		msg.Fields = []Field{inline("Role", role)}
	} else if role := event.GetInvitation().GetRole(); role != "" {
		msg.Fields = []Field{inline("Role", role)}
	}
	return notify(fmt.Sprintf("%s-organization-%s-%s", org.GetLogin(), action, subject), msg)
}

func handleOrgBlock(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.OrgBlockEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "blocked", "unblocked":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	org := event.GetOrganization().GetLogin()
	user := event.GetBlockedUser()
	msg := hc.message(repoTitle(org, "User", action, user.GetLogin()), user.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action))
	return notify(fmt.Sprintf("%s-block-%s", org, user.GetLogin()), msg)
}

func handleTeam(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.TeamEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	org := event.GetOrg().GetLogin()
	team := event.GetTeam()

	msg := hc.message(
		repoTitle(org, "Team", humanize(action), team.GetName()),
		team.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, action),
	)
	switch action {
	case "created", "deleted":
	case "added_to_repository", "removed_from_repository":
		msg.Fields = []Field{inline("Repository", event.GetRepo().GetFullName())}
		if permission := team.GetPermission(); permission != "" {
			msg.Fields = append(msg.Fields, inline("Permission", permission))
		}
	case "edited":
		changes := event.GetChanges()
		var fields []Field
		if name := changes.GetName(); name != nil {
			fields = appendDiff(fields, "Name", name.GetFrom(), team.GetName(), 0)
		}
		if desc := changes.GetDescription(); desc != nil {
			fields = appendDiff(fields, "Description", desc.GetFrom(), team.GetDescription(), BodyLimit)
		}
		if privacy := changes.GetPrivacy(); privacy != nil && privacy.GetFrom() != team.GetPrivacy() {
			fields = append(fields, inline("Privacy", privacy.GetFrom()+" → "+team.GetPrivacy()))
		}
		if len(fields) == 0 {
			return nil, nil
		}
		msg.Fields = fields
	default:
		return nil, notImplemented(hc.Event, action)
	}
	return notify(fmt.Sprintf("%s-team-%d-%s", org, team.GetID(), action), msg)
}

func handleTeamAdd(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.TeamAddEvent](payload)
	if err != nil {
		return nil, err
	}
	repo := event.GetRepo().GetFullName()
	team := event.GetTeam()
	msg := hc.message(
		fmt.Sprintf("[%s] Team added: %s", repo, team.GetName()),
		team.GetHTMLURL(), event.GetSender(), colorFor(hc.Event, ""),
	)
	return notify(fmt.Sprintf("%s-team-add-%d", repo, team.GetID()), msg)
}

// sponsorshipPayload covers the sponsorship event, which go-github does not model.
type sponsorshipPayload struct {
	Action      string `json:"action"`
	Sponsorship struct {
		Sponsor      *github.User `json:"sponsor"`
		Sponsorable  *github.User `json:"sponsorable"`
		PrivacyLevel string       `json:"privacy_level"`
		Tier         sponsorTier  `json:"tier"`
	} `json:"sponsorship"`
	Changes *struct {
		Tier *struct {
			From sponsorTier `json:"from"`
		} `json:"tier,omitempty"`
		PrivacyLevel *editFrom `json:"privacy_level,omitempty"`
	} `json:"changes,omitempty"`
	EffectiveDate string       `json:"effective_date,omitempty"`
	Sender        *github.User `json:"sender"`
}

type sponsorTier struct {
	Name                  string `json:"name"`
	MonthlyPriceInDollars int    `json:"monthly_price_in_dollars"`
	IsOneTime             bool   `json:"is_one_time"`
}

func (t sponsorTier) String() string {
	if t.Name == "" {
		return NotAvailable
	}
	return fmt.Sprintf("%s ($%d)", t.Name, t.MonthlyPriceInDollars)
}

func handleSponsorship(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[sponsorshipPayload](payload)
	if err != nil {
		return nil, err
	}
	action := event.Action
	sponsorship := event.Sponsorship
	sponsorable := sponsorship.Sponsorable.GetLogin()
	sponsor := sponsorship.Sponsor.GetLogin()

	msg := hc.message(
		repoTitle(sponsorable, "Sponsorship", humanize(action), sponsor),
		"https://github.com/sponsors/"+sponsorable, event.Sender, colorFor(hc.Event, action),
	)
	msg.Fields = []Field{inline("Tier", sponsorship.Tier.String())}
	switch action {
	case "created", "cancelled":
	case "edited":
		if event.Changes == nil || event.Changes.PrivacyLevel == nil {
			return nil, nil
		}
		msg.Fields = append(msg.Fields, inline("Privacy", event.Changes.PrivacyLevel.From+" → "+sponsorship.PrivacyLevel))
	case "tier_changed":
		if event.Changes != nil && event.Changes.Tier != nil {
			msg.Fields = append(msg.Fields, inline("Previous Tier", event.Changes.Tier.From.String()))
		}
	case "pending_cancellation", "pending_tier_change":
		msg.Fields = append(msg.Fields, inline("Effective", orDefault(event.EffectiveDate, NotAvailable)))
	default:
		return nil, notImplemented(hc.Event, action)
	}
	return notify(fmt.Sprintf("%s-sponsorship-%s", sponsorable, sponsor), msg)
}

func handlePackage(_ context.Context, hc *Context, payload []byte) (*Notification, error) {
	event, err := decode[github.PackageEvent](payload)
	if err != nil {
		return nil, err
	}
	action := event.GetAction()
	switch action {
	case "published", "updated":
	default:
		return nil, notImplemented(hc.Event, action)
	}
	pkg := event.GetPackage()
	version := pkg.GetPackageVersion()
	scope := event.GetRepo().GetFullName()
	if scope == "" {
		scope = ownerLogin(event.GetOrg(), event.GetRepo())
	}

	subject := pkg.GetName()
	if v := orDefault(version.GetVersion(), version.GetName()); strings.TrimSpace(v) != "" {
		subject += "@" + v
	}
	msg := hc.message(
		repoTitle(scope, "Package", action, subject),
		orDefault(version.GetHTMLURL(), pkg.GetHTMLURL()), event.GetSender(), colorFor(hc.Event, action),
	)
	msg.Fields = []Field{inline("Type", orDefault(pkg.GetPackageType(), NotAvailable))}
	return notify(fmt.Sprintf("%s-package-%d-%s", scope, pkg.GetID(), version.GetVersion()), msg)
}
