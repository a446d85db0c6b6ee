package notify

import (
	"fmt"
	"sort"
)

var handlers = map[string]Handler{
	"branch_protection_rule":         handleBranchProtectionRule,
	"check_run":                      handleCheckRun,
	"check_suite":                    handleCheckSuite,
	"code_scanning_alert":            handleCodeScanningAlert,
	"commit_comment":                 handleCommitComment,
	"create":                         handleCreate,
	"delete":                         handleDelete,
	"dependabot_alert":               handleDependabotAlert,
	"deploy_key":                     handleDeployKey,
	"deployment":                     handleDeployment,
	"deployment_review":              handleDeploymentReview,
	"deployment_status":              handleDeploymentStatus,
	"discussion":                     handleDiscussion,
	"discussion_comment":             handleDiscussionComment,
	"fork":                           handleFork,
	"github_app_authorization":       handleGitHubAppAuthorization,
	"gollum":                         handleGollum,
	"installation":                   handleInstallation,
	"installation_repositories":      handleInstallationRepositories,
	"issue_comment":                  handleIssueComment,
	"issues":                         handleIssues,
	"label":                          handleLabel,
	"marketplace_purchase":           handleMarketplacePurchase,
	"member":                         handleMember,
	"membership":                     handleMembership,
	"merge_group":                    handleMergeGroup,
	"meta":                           handleMeta,
	"milestone":                      handleMilestone,
	"org_block":                      handleOrgBlock,
	"organization":                   handleOrganization,
	"package":                        handlePackage,
	"page_build":                     handlePageBuild,
	"ping":                           handlePing,
	"project":                        handleProject,
	"project_card":                   handleProjectCard,
	"project_column":                 handleProjectColumn,
	"projects_v2_item":               handleProjectsV2Item,
	"public":                         handlePublic,
	"pull_request":                   handlePullRequest,
	"pull_request_review":            handlePullRequestReview,
	"pull_request_review_comment":    handlePullRequestReviewComment,
	"pull_request_review_thread":     handlePullRequestReviewThread,
	"push":                           handlePush,
	"release":                        handleRelease,
	"repository":                     handleRepository,
	"repository_dispatch":            handleRepositoryDispatch,
	"repository_import":              handleRepositoryImport,
	"repository_vulnerability_alert": handleRepositoryVulnerabilityAlert,
	"security_advisory":              handleSecurityAdvisory,
	"sponsorship":                    handleSponsorship,
	"star":                           handleStar,
	"status":                         handleStatus,
	"team":                           handleTeam,
	"team_add":                       handleTeamAdd,
	"watch":                          handleWatch,
	"workflow_dispatch":              handleWorkflowDispatch,
	"workflow_job":                   handleWorkflowJob,
	"workflow_run":                   handleWorkflowRun,
}

// Route returns the handler registered for an X-GitHub-Event name.
func Route(event string) (Handler, error) {
	handler, ok := handlers[event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, event)
	}
	return handler, nil
}

// Events lists every routable event name in sorted order.
func Events() []string {
	events := make([]string, 0, len(handlers))
	for event := range handlers {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}
