package notify

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	repoJSON   = `"repository": {"full_name": "octo/hello", "html_url": "https://github.com/octo/hello", "owner": {"login": "octo"}}`
	senderJSON = `"sender": {"login": "alice", "id": 1, "html_url": "https://github.com/alice", "avatar_url": "https://avatars.githubusercontent.com/u/1"}`
)

func payload(action, body string) string {
	return `{"action": "` + action + `", ` + body + `, ` + repoJSON + `, ` + senderJSON + `}`
}

func fieldValue(t *testing.T, msg Message, name string) string {
	t.Helper()
	for _, field := range msg.Fields {
		if field.Name == name {
			return field.Value
		}
	}
	t.Fatalf("field %q not found in %+v", name, msg.Fields)
	return ""
}

const issueJSON = `"issue": {
	"number": 7, "title": "Broken build", "body": "It fails on main",
	"html_url": "https://github.com/octo/hello/issues/7",
	"labels": [],
	"assignees": [{"login": "bob", "id": 2}, {"login": "alice", "id": 1}]
}`

func TestIssuesOpened(t *testing.T) {
	n, err := run("issues", payload("opened", issueJSON))
	require.NoError(t, err)
	require.NotNil(t, n)

	assert.Equal(t, "octo/hello#7-opened", n.Key)
	msg := n.Message
	assert.Equal(t, "[octo/hello] Issue opened: #7 Broken build", msg.Title)
	assert.Equal(t, "https://github.com/octo/hello/issues/7", msg.URL)
	assert.Equal(t, "It fails on main", msg.Description)
	assert.Equal(t, NoLabels, fieldValue(t, msg, "Labels"))
	assert.Equal(t, "@bob @alice", fieldValue(t, msg, "Assignees"))
	assert.Equal(t, "<@d-bob>", msg.Content)
	assert.Equal(t, ColorGreen, msg.Color)
	assert.Equal(t, "GitHub issues", msg.Footer)
	assert.True(t, msg.Timestamp.Equal(testNow))
	assert.True(t, msg.SuppressNotifications)
	require.NotNil(t, msg.Author)
	assert.Equal(t, "alice", msg.Author.Name)
	assert.Equal(t, "https://github.com/alice", msg.Author.URL)
}

func TestIssuesBucketsPairedActions(t *testing.T) {
	labeled, err := run("issues", payload("labeled", issueJSON+`, "label": {"name": "bug"}`))
	require.NoError(t, err)
	unlabeled, err := run("issues", payload("unlabeled", issueJSON+`, "label": {"name": "bug"}`))
	require.NoError(t, err)
	assert.Equal(t, "octo/hello#7-label", labeled.Key)
	assert.Equal(t, labeled.Key, unlabeled.Key)

	pinned, err := run("issues", payload("unpinned", issueJSON))
	require.NoError(t, err)
	assert.Equal(t, "octo/hello#7-pinned", pinned.Key)
}

func TestIssuesNoOps(t *testing.T) {
	n, err := run("issues", payload("edited", issueJSON+`, "changes": {}`))
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = run("issues", payload("labeled", issueJSON))
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = run("issues", payload("edited", issueJSON+`, "changes": {"title": {"from": "Broken build"}}`))
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestIssuesEditedRendersDiff(t *testing.T) {
	n, err := run("issues", payload("edited", issueJSON+`, "changes": {"body": {"from": "It fails"}}`))
	require.NoError(t, err)
	require.NotNil(t, n)
	diff := fieldValue(t, n.Message, "Body")
	assert.True(t, strings.HasPrefix(diff, "```diff\n"))
	assert.Contains(t, diff, "-It fails")
	assert.Contains(t, diff, "+It fails on main")
}

func TestIssuesUnknownAction(t *testing.T) {
	_, err := run("issues", payload("teleported", issueJSON))
	assert.True(t, errors.Is(err, ErrNotImplemented))
}

func TestIssueCommentMentionsLogins(t *testing.T) {
	body := issueJSON + `, "comment": {"id": 99, "body": "@bob @ghost @alice can you look?", "html_url": "https://github.com/octo/hello/issues/7#issuecomment-99"}`
	n, err := run("issue_comment", payload("created", body))
	require.NoError(t, err)
	assert.Equal(t, "octo/hello#7-comment-99", n.Key)
	assert.Equal(t, "<@d-bob>", n.Message.Content)
	assert.Equal(t, "[octo/hello] Issue comment created: #7 Broken build", n.Message.Title)
}

const pullJSON = `"organization": {"login": "octo"}, "pull_request": {
	"number": 3, "title": "Add cache", "body": "Adds a cache", "draft": false,
	"html_url": "https://github.com/octo/hello/pull/3",
	"user": {"login": "bob", "id": 2},
	"head": {"ref": "feature/cache"}, "base": {"ref": "main"},
	"requested_reviewers": [{"login": "carol", "id": 3}],
	"requested_teams": [{"name": "Core", "slug": "core"}],
	"assignees": [{"login": "bob", "id": 2}]
}`

func TestPullRequestOpened(t *testing.T) {
	n, err := run("pull_request", payload("opened", pullJSON))
	require.NoError(t, err)

	assert.Equal(t, "octo/hello#3-opened", n.Key)
	assert.Equal(t, "[octo/hello] Pull Request opened: #3 Add cache", n.Message.Title)
	assert.Equal(t, "feature/cache", fieldValue(t, n.Message, "Branch"))
	assert.Equal(t, "@carol Core", fieldValue(t, n.Message, "Reviewers"))
	assert.Equal(t, "@bob", fieldValue(t, n.Message, "Assignees"))
	// Reviewers (carol, then team core = bob, carol) followed by assignees.
	assert.Equal(t, "<@d-carol> <@d-bob> <@d-carol> <@d-bob>", n.Message.Content)
}

func TestPullRequestSynchronizeIgnored(t *testing.T) {
	n, err := run("pull_request", payload("synchronize", pullJSON))
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestPullRequestClosed(t *testing.T) {
	merged := strings.Replace(pullJSON, `"draft": false`, `"draft": false, "merged": true`, 1)
	n, err := run("pull_request", payload("closed", merged))
	require.NoError(t, err)
	assert.Equal(t, "Yes", fieldValue(t, n.Message, "Merged"))
	assert.Equal(t, ColorGreyBlue, n.Message.Color)
}

func TestPullRequestDraftAssignmentDoesNotMention(t *testing.T) {
	assign := `, "assignee": {"login": "carol", "id": 3}`

	n, err := run("pull_request", payload("assigned", pullJSON+assign))
	require.NoError(t, err)
	assert.Equal(t, "octo/hello#3-assigned", n.Key)
	assert.Equal(t, "<@d-carol>", n.Message.Content)

	draft := strings.Replace(pullJSON, `"draft": false`, `"draft": true`, 1)
	n, err = run("pull_request", payload("assigned", draft+assign))
	require.NoError(t, err)
	assert.Empty(t, n.Message.Content)
}

func TestPullRequestWIPRemovalMentionsReviewers(t *testing.T) {
	for _, from := range []string{"WIP: Add cache", "[WIP] Add cache", "Add cache wip"} {
		body := pullJSON + `, "changes": {"title": {"from": "` + from + `"}}`
		n, err := run("pull_request", payload("edited", body))
		require.NoError(t, err, from)
		require.NotNil(t, n, from)
		assert.Equal(t, "<@d-carol> <@d-bob> <@d-carol>", n.Message.Content, from)
		assert.NotEmpty(t, fieldValue(t, n.Message, "Title"), from)
	}

	n, err := run("pull_request", payload("edited", pullJSON+`, "changes": {"title": {"from": "Add caches"}}`))
	require.NoError(t, err)
	assert.Empty(t, n.Message.Content)

	n, err = run("pull_request", payload("edited", pullJSON+`, "changes": {}`))
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestPullRequestReviewRequested(t *testing.T) {
	n, err := run("pull_request", payload("review_requested", pullJSON+`, "requested_team": {"name": "Core", "slug": "core"}`))
	require.NoError(t, err)
	assert.Equal(t, "octo/hello#3-review_requested", n.Key)
	assert.Equal(t, "<@d-bob> <@d-carol>", n.Message.Content)

	removed, err := run("pull_request", payload("review_request_removed", pullJSON))
	require.NoError(t, err)
	assert.Equal(t, n.Key, removed.Key)
}

func TestPullRequestReview(t *testing.T) {
	review := func(state string) string {
		return pullJSON + `, "review": {"id": 55, "state": "` + state + `", "user": {"login": "alice"}, "html_url": "https://github.com/octo/hello/pull/3#pullrequestreview-55"}`
	}

	n, err := run("pull_request_review", payload("submitted", review("commented")))
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = run("pull_request_review", payload("submitted", review("approved")))
	require.NoError(t, err)
	assert.Equal(t, "octo/hello#3-review-submitted-55", n.Key)
	assert.True(t, n.Message.SuppressNotifications)
	assert.Equal(t, ColorGreen, n.Message.Color)

	n, err = run("pull_request_review", payload("submitted", review("changes_requested")))
	require.NoError(t, err)
	assert.False(t, n.Message.SuppressNotifications)
	assert.Equal(t, "<@d-bob>", n.Message.Content)
	assert.Equal(t, "[octo/hello] Pull Request Review submitted (changes_requested): #3 Add cache", n.Message.Title)

	n, err = run("pull_request_review", payload("edited", review("approved")))
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestStarSharesKeyAcrossActions(t *testing.T) {
	repo := `"starred_at": "2024-05-06T07:08:09Z"`
	created, err := run("star", payload("created", repo))
	require.NoError(t, err)
	deleted, err := run("star", payload("deleted", repo))
	require.NoError(t, err)

	assert.Equal(t, "octo/hello-star-alice", created.Key)
	assert.Equal(t, created.Key, deleted.Key)
	assert.Equal(t, "Starred octo/hello by alice", created.Message.Title)
	assert.Equal(t, "Unstarred octo/hello by alice", deleted.Message.Title)
	assert.Equal(t, ColorStarred, created.Message.Color)
	assert.Equal(t, ColorUnstarred, deleted.Message.Color)
}

func TestPush(t *testing.T) {
	push := `{
		"ref": "refs/heads/main", "after": "0123456789abcdef", "compare": "https://github.com/octo/hello/compare/a...b",
		"commits": [
			{"id": "aaaaaaaaaaaa", "message": "first\n\ndetails", "url": "https://github.com/octo/hello/commit/a", "author": {"name": "Alice"}},
			{"id": "bbbbbbbbbbbb", "message": "second", "url": "https://github.com/octo/hello/commit/b", "author": {"name": "Bob"}}
		],
		` + repoJSON + `, ` + senderJSON + `}`

	n, err := run("push", push)
	require.NoError(t, err)
	assert.Equal(t, "[octo/hello:main] 2 new commit(s)", n.Message.Title)
	assert.Equal(t, "octo/hello:main-push-0123456", n.Key)
	assert.Contains(t, n.Message.Description, "[`aaaaaaa`](https://github.com/octo/hello/commit/a) first - Alice")
	assert.NotContains(t, n.Message.Description, "details")

	deleted := strings.Replace(push, `"ref": "refs/heads/main"`, `"ref": "refs/heads/main", "deleted": true`, 1)
	n, err = run("push", deleted)
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestFork(t *testing.T) {
	n, err := run("fork", `{"forkee": {"full_name": "alice/hello", "html_url": "https://github.com/alice/hello"}, `+repoJSON+`, `+senderJSON+`}`)
	require.NoError(t, err)
	assert.Equal(t, "octo/hello-fork-alice", n.Key)
	assert.Equal(t, "Forked octo/hello by alice to alice/hello", n.Message.Title)
}

func TestPing(t *testing.T) {
	n, err := run("ping", `{"zen": "Design for failure.", "hook": {"type": "Repository"}, `+repoJSON+`, `+senderJSON+`}`)
	require.NoError(t, err)
	assert.Equal(t, "Received a ping event", n.Message.Title)
	assert.Equal(t, "Design for failure.", n.Message.Description)
	assert.Equal(t, "octo/hello:alice:N/A:Repository", n.Key)
}

func TestPairedActionsShareBuckets(t *testing.T) {
	tests := []struct {
		name    string
		buckets map[string]string
		actions []string
		want    string
	}{
		{"issues assigned", issueBuckets, []string{"assigned", "unassigned"}, "assigned"},
		{"issues label", issueBuckets, []string{"labeled", "unlabeled"}, "label"},
		{"issues locked", issueBuckets, []string{"locked", "unlocked"}, "locked"},
		{"issues milestoned", issueBuckets, []string{"milestoned", "demilestoned"}, "milestoned"},
		{"issues pinned", issueBuckets, []string{"pinned", "unpinned"}, "pinned"},
		{"issues opened", issueBuckets, []string{"opened"}, "opened"},
		{"pull request assigned", pullRequestBuckets, []string{"assigned", "unassigned"}, "assigned"},
		{"pull request review requested", pullRequestBuckets, []string{"review_requested", "review_request_removed"}, "review_requested"},
		{"pull request label", pullRequestBuckets, []string{"labeled", "unlabeled"}, "label"},
		{"pull request locked", pullRequestBuckets, []string{"locked", "unlocked"}, "locked"},
		{"pull request auto merge", pullRequestBuckets, []string{"auto_merge_enabled", "auto_merge_disabled"}, "auto_merge"},
		{"pull request milestoned", pullRequestBuckets, []string{"milestoned", "demilestoned"}, "milestoned"},
		{"pull request enqueued", pullRequestBuckets, []string{"enqueued", "dequeued"}, "enqueued"},
		{"pull request closed", pullRequestBuckets, []string{"closed"}, "closed"},
		{"discussion pinned", discussionBuckets, []string{"pinned", "unpinned"}, "pinned"},
		{"discussion label", discussionBuckets, []string{"labeled", "unlabeled"}, "label"},
		{"discussion answered", discussionBuckets, []string{"answered", "unanswered"}, "answered"},
		{"discussion locked", discussionBuckets, []string{"locked", "unlocked"}, "locked"},
		{"discussion edited", discussionBuckets, []string{"edited"}, "edited"},
		{"milestone state", milestoneBuckets, []string{"opened", "closed"}, "state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, action := range tt.actions {
				assert.Equal(t, tt.want, bucketFor(tt.buckets, action), action)
			}
		})
	}
}

const discussionJSON = `"discussion": {
	"number": 4, "title": "Roadmap", "body": "What next?",
	"html_url": "https://github.com/octo/hello/discussions/4",
	"category": {"name": "Ideas"}
}`

func TestDiscussionPinnedAndUnpinnedShareKey(t *testing.T) {
	pinned, err := run("discussion", payload("pinned", discussionJSON))
	require.NoError(t, err)
	require.NotNil(t, pinned)
	unpinned, err := run("discussion", payload("unpinned", discussionJSON))
	require.NoError(t, err)
	require.NotNil(t, unpinned)

	assert.Equal(t, "octo/hello-discussion-4-pinned", pinned.Key)
	assert.Equal(t, pinned.Key, unpinned.Key)
	assert.Equal(t, ColorGreen, pinned.Message.Color)
	assert.Equal(t, ColorRed, unpinned.Message.Color)
}

func TestDiscussionCategoryChanged(t *testing.T) {
	n, err := run("discussion", payload("category_changed", discussionJSON+`, "changes": {"category": {"from": {"name": "General"}}}`))
	require.NoError(t, err)
	require.NotNil(t, n)

	assert.Equal(t, "[octo/hello] Discussion category changed: Roadmap", n.Message.Title)
	assert.Equal(t, "octo/hello-discussion-4-category_changed", n.Key)
	assert.Equal(t, "General", fieldValue(t, n.Message, "From Category"))
	assert.Equal(t, "Ideas", fieldValue(t, n.Message, "To Category"))

	n, err = run("discussion", payload("category_changed", discussionJSON))
	require.NoError(t, err)
	assert.Equal(t, "*Unknown*", fieldValue(t, n.Message, "From Category"))
}

func TestEditedWithoutChangesIsIgnored(t *testing.T) {
	const labelJSON = `"label": {"id": 9, "name": "bug", "color": "d73a4a"}`
	const milestoneJSON = `"milestone": {"number": 2, "title": "v1", "html_url": "https://github.com/octo/hello/milestone/2"}`

	tests := []struct {
		name    string
		event   string
		payload string
	}{
		{"label empty changes", "label", payload("edited", labelJSON+`, "changes": {}`)},
		{"label no changes", "label", payload("edited", labelJSON)},
		{"milestone empty changes", "milestone", payload("edited", milestoneJSON+`, "changes": {}`)},
		{"milestone no changes", "milestone", payload("edited", milestoneJSON)},
		{"discussion empty changes", "discussion", payload("edited", discussionJSON+`, "changes": {}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := run(tt.event, tt.payload)
			require.NoError(t, err)
			assert.Nil(t, n)
		})
	}

	n, err := run("label", payload("edited", labelJSON+`, "changes": {"name": {"from": "bugs"}}`))
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "bugs → bug", fieldValue(t, n.Message, "Name"))
}
