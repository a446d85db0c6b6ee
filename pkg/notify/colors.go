package notify

// Embed colors.
const (
	ColorUnknown   = 0x000000
	ColorGreen     = 0x2ecc71
	ColorGreyBlue  = 0x95a5a6
	ColorBlue      = 0x3498db
	ColorOrange    = 0xf39c12
	ColorPurple    = 0x9b59b6
	ColorGray      = 0x7f8c8d
	ColorRed       = 0xe74c3c
	ColorYellow    = 0xf1c40f
	ColorStarred   = ColorYellow
	ColorUnstarred = ColorGray
)

// colorTable maps "event.action" (or "event.action.state") to an embed color.
var colorTable = map[string]int{
	"pull_request.opened":                 ColorGreen,
	"pull_request.closed":                 ColorGreyBlue,
	"pull_request.reopened":               ColorBlue,
	"pull_request.assigned":               ColorOrange,
	"pull_request.unassigned":             ColorOrange,
	"pull_request.review_requested":       ColorPurple,
	"pull_request.review_request_removed": ColorPurple,
	"pull_request.labeled":                ColorBlue,
	"pull_request.unlabeled":              ColorBlue,
	"pull_request.edited":                 ColorBlue,
	"pull_request.ready_for_review":       ColorGreen,
	"pull_request.locked":                 ColorGray,
	"pull_request.unlocked":               ColorGray,
	"pull_request.auto_merge_enabled":     ColorGreen,
	"pull_request.auto_merge_disabled":    ColorRed,
	"pull_request.converted_to_draft":     ColorGreyBlue,
	"pull_request.milestoned":             ColorBlue,
	"pull_request.demilestoned":           ColorGreyBlue,
	"pull_request.enqueued":               ColorBlue,
	"pull_request.dequeued":               ColorBlue,

	"pull_request_review.submitted.approved":          ColorGreen,
	"pull_request_review.submitted.changes_requested": ColorOrange,
	"pull_request_review.submitted.dismissed":         ColorRed,
	"pull_request_review.edited":                      ColorBlue,
	"pull_request_review.dismissed":                   ColorRed,

	"pull_request_review_comment.created": ColorGreen,
	"pull_request_review_comment.edited":  ColorBlue,
	"pull_request_review_comment.deleted": ColorRed,

	"pull_request_review_thread.resolved":   ColorGreen,
	"pull_request_review_thread.unresolved": ColorRed,

	"issues.opened":       ColorGreen,
	"issues.closed":       ColorGreyBlue,
	"issues.reopened":     ColorBlue,
	"issues.assigned":     ColorOrange,
	"issues.unassigned":   ColorOrange,
	"issues.labeled":      ColorBlue,
	"issues.unlabeled":    ColorBlue,
	"issues.edited":       ColorBlue,
	"issues.locked":       ColorGray,
	"issues.unlocked":     ColorGray,
	"issues.milestoned":   ColorBlue,
	"issues.demilestoned": ColorGreyBlue,
	"issues.transferred":  ColorGreyBlue,
	"issues.pinned":       ColorGreen,
	"issues.unpinned":     ColorRed,
	"issues.deleted":      ColorRed,

	"issue_comment.created": ColorBlue,
	"issue_comment.edited":  ColorBlue,
	"issue_comment.deleted": ColorRed,

	"discussion.created":          ColorGreen,
	"discussion.edited":           ColorBlue,
	"discussion.deleted":          ColorRed,
	"discussion.pinned":           ColorGreen,
	"discussion.unpinned":         ColorRed,
	"discussion.locked":           ColorGray,
	"discussion.unlocked":         ColorGray,
	"discussion.transferred":      ColorGreyBlue,
	"discussion.category_changed": ColorBlue,
	"discussion.answered":         ColorGreen,
	"discussion.unanswered":       ColorRed,
	"discussion.labeled":          ColorBlue,
	"discussion.unlabeled":        ColorBlue,
	"discussion.closed":           ColorGreyBlue,
	"discussion.reopened":         ColorBlue,

	"discussion_comment.created": ColorBlue,
	"discussion_comment.edited":  ColorBlue,
	"discussion_comment.deleted": ColorRed,

	"star.created":  ColorStarred,
	"star.deleted":  ColorUnstarred,
	"watch.started": ColorStarred,
	"fork":          ColorBlue,
	"public":        ColorGreen,
	"push":          ColorGreen,
	"ping":          ColorGreyBlue,
	"create":        ColorGreen,
	"delete":        ColorRed,
	"gollum":        ColorBlue,

	"release.published":   ColorGreen,
	"release.released":    ColorGreen,
	"release.created":     ColorGreen,
	"release.prereleased": ColorBlue,
	"release.edited":      ColorBlue,
	"release.unpublished": ColorGreyBlue,
	"release.deleted":     ColorRed,

	"check_run.completed.success":    ColorGreen,
	"check_run.completed.failure":    ColorRed,
	"check_run.completed.timed_out":  ColorRed,
	"check_suite.completed.success":  ColorGreen,
	"check_suite.completed.failure":  ColorRed,
	"workflow_run.completed.success": ColorGreen,
	"workflow_run.completed.failure": ColorRed,
	"workflow_job.completed.success": ColorGreen,
	"workflow_job.completed.failure": ColorRed,

	"deployment_status.success":  ColorGreen,
	"deployment_status.failure":  ColorRed,
	"deployment_status.error":    ColorRed,
	"deployment_status.pending":  ColorGreyBlue,
	"deployment_status.queued":   ColorGreyBlue,
	"deployment_status.inactive": ColorGray,

	"status.success": ColorGreen,
	"status.failure": ColorRed,
	"status.error":   ColorRed,
	"status.pending": ColorGreyBlue,

	"check_run.completed.cancelled":       ColorGray,
	"check_run.completed.skipped":         ColorGray,
	"check_run.completed.neutral":         ColorGreyBlue,
	"check_run.completed.action_required": ColorOrange,
	"check_suite.completed.cancelled":     ColorGray,
	"check_suite.completed.timed_out":     ColorRed,
	"workflow_run.completed.cancelled":    ColorGray,
	"workflow_run.completed.skipped":      ColorGray,
	"workflow_run.completed.timed_out":    ColorRed,
	"workflow_job.completed.cancelled":    ColorGray,
	"workflow_job.completed.skipped":      ColorGray,
	"workflow_dispatch":                   ColorBlue,

	"page_build.built":             ColorGreen,
	"page_build.errored":           ColorRed,
	"page_build.building":          ColorGreyBlue,
	"repository_import.success":    ColorGreen,
	"repository_import.cancelled":  ColorGray,
	"repository_import.failure":    ColorRed,
	"repository_dispatch":          ColorBlue,
	"repository.privatized":        ColorGray,
	"repository.publicized":        ColorGreen,
	"repository.transferred":       ColorGreyBlue,
	"repository.unarchived":        ColorBlue,
	"commit_comment.created":       ColorBlue,
	"deployment.created":           ColorBlue,
	"deployment_review.approved":   ColorGreen,
	"deployment_review.rejected":   ColorRed,
	"deployment_review.requested":  ColorPurple,
	"merge_group.checks_requested": ColorBlue,
	"merge_group.destroyed":        ColorGreyBlue,
	"meta.deleted":                 ColorRed,
	"team_add":                     ColorGreen,

	"code_scanning_alert.closed_by_user":     ColorGreen,
	"code_scanning_alert.appeared_in_branch": ColorOrange,
	"code_scanning_alert.created":            ColorRed,
	"dependabot_alert.created":               ColorRed,
	"dependabot_alert.reintroduced":          ColorRed,
	"repository_vulnerability_alert.create":  ColorRed,
	"repository_vulnerability_alert.reopen":  ColorOrange,
	"repository_vulnerability_alert.resolve": ColorGreen,
	"repository_vulnerability_alert.dismiss": ColorGray,
	"security_advisory.published":            ColorRed,
	"security_advisory.updated":              ColorOrange,
	"security_advisory.performed":            ColorGreen,

	"installation.new_permissions_accepted":         ColorGreen,
	"github_app_authorization.revoked":              ColorRed,
	"marketplace_purchase.purchased":                ColorGreen,
	"marketplace_purchase.changed":                  ColorBlue,
	"marketplace_purchase.pending_change":           ColorOrange,
	"marketplace_purchase.pending_change_cancelled": ColorGreyBlue,
	"marketplace_purchase.cancelled":                ColorRed,
	"organization.member_added":                     ColorGreen,
	"organization.member_invited":                   ColorPurple,
	"organization.member_removed":                   ColorRed,
	"team.added_to_repository":                      ColorGreen,
	"team.removed_from_repository":                  ColorRed,
	"sponsorship.tier_changed":                      ColorBlue,
	"sponsorship.cancelled":                         ColorRed,
	"sponsorship.pending_cancellation":              ColorOrange,
	"sponsorship.pending_tier_change":               ColorOrange,
	"package.updated":                               ColorBlue,
	"project_card.converted":                        ColorBlue,
	"projects_v2_item.reordered":                    ColorBlue,
}

// actionColors colors events whose severity depends only on the action name.
var actionColors = map[string]int{
	"created":          ColorGreen,
	"opened":           ColorGreen,
	"added":            ColorGreen,
	"published":        ColorGreen,
	"approved":         ColorGreen,
	"fixed":            ColorGreen,
	"resolved":         ColorGreen,
	"reopened":         ColorBlue,
	"edited":           ColorBlue,
	"renamed":          ColorBlue,
	"moved":            ColorBlue,
	"converted":        ColorBlue,
	"requested":        ColorPurple,
	"rerequested":      ColorPurple,
	"in_progress":      ColorGreyBlue,
	"queued":           ColorGreyBlue,
	"waiting":          ColorGreyBlue,
	"closed":           ColorGreyBlue,
	"archived":         ColorGreyBlue,
	"restored":         ColorBlue,
	"reactivated":      ColorOrange,
	"reopened_by_user": ColorOrange,
	"dismissed":        ColorRed,
	"deleted":          ColorRed,
	"removed":          ColorRed,
	"rejected":         ColorRed,
	"blocked":          ColorRed,
	"unblocked":        ColorGreen,
	"suspend":          ColorOrange,
	"unsuspend":        ColorGreen,
	"withdrawn":        ColorGreyBlue,
	"auto_dismissed":   ColorGray,
	"auto_reopened":    ColorOrange,
}

// colorFor looks up the color of an event. Lookups fall back from the most
// specific "event.action.state" key to "event.action", "event" and finally
// the action alone. Unmapped combinations yield ColorUnknown.
func colorFor(event, action string, state ...string) int {
	keys := make([]string, 0, 4)
	if action != "" && len(state) > 0 && state[0] != "" {
		keys = append(keys, event+"."+action+"."+state[0])
	}
	if action != "" {
		keys = append(keys, event+"."+action)
	}
	keys = append(keys, event)
	for _, key := range keys {
		if color, ok := colorTable[key]; ok {
			return color
		}
	}
	if color, ok := actionColors[action]; ok {
		return color
	}
	return ColorUnknown
}
