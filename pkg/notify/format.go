package notify

import (
	"regexp"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/pmezard/go-difflib/difflib"
)

// TruncationMarker is appended to text cut by Truncate.
const TruncationMarker = "..."

// Body length caps.
const (
	BodyLimit     = 500
	LongBodyLimit = 1000
)

// Placeholders rendered when a value is absent.
const (
	NoDescription = "*No description provided*"
	NoLabels      = "*No labels*"
	NoAssignees   = "*No assignees provided*"
	NoReviewers   = "*No reviewers provided*"
	NoMilestone   = "*No milestone provided*"
	NotAvailable  = "N/A"
)

// Truncate returns s unchanged when it holds at most limit characters.
// Otherwise it returns the first limit characters followed by TruncationMarker.
func Truncate(s string, limit int) string {
	if limit < 0 {
		limit = 0
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + TruncationMarker
}

func orDefault(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

// bodyText renders an entity body capped at limit, or the description placeholder.
func bodyText(s string, limit int) string {
	return orDefault(Truncate(s, limit), NoDescription)
}

// UnifiedDiff renders a line diff between previous and current. Identical
// inputs render as the empty string.
func UnifiedDiff(previous, current string) string {
	if previous == current {
		return ""
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:       difflib.SplitLines(previous),
		B:       difflib.SplitLines(current),
		Context: 3,
	})
	if err != nil {
		return ""
	}
	return text
}

// diffBlock wraps a rendered diff in a fenced diff block. The diff is
// computed on the full texts and the rendered diff is cut at limit
// (0 disables the cap).
func diffBlock(previous, current string, limit int) string {
	diff := UnifiedDiff(previous, current)
	if diff == "" {
		return ""
	}
	if limit > 0 {
		diff = Truncate(diff, limit)
	}
	if !strings.HasSuffix(diff, "\n") {
		diff += "\n"
	}
	return "```diff\n" + diff + "```"
}

func usersText(users []*github.User, teams []*github.Team) string {
	names := make([]string, 0, len(users)+len(teams))
	for _, user := range users {
		if user == nil || user.GetLogin() == "" {
			continue
		}
		names = append(names, "@"+user.GetLogin())
	}
	for _, team := range teams {
		if team == nil || team.GetName() == "" {
			continue
		}
		names = append(names, team.GetName())
	}
	return strings.Join(names, " ")
}

func labelsText(labels []*github.Label) string {
	names := make([]string, 0, len(labels))
	for _, label := range labels {
		if label.GetName() != "" {
			names = append(names, label.GetName())
		}
	}
	return strings.Join(names, ", ")
}

func humanize(action string) string {
	return strings.ReplaceAll(action, "_", " ")
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

var wipPattern = regexp.MustCompile(`(?i)\bwip\b`)

// isWIPTitle reports whether a pull request title carries a work-in-progress
// marker such as "WIP:", "[WIP]" or a standalone "WIP" word.
func isWIPTitle(title string) bool {
	return wipPattern.MatchString(title)
}

var loginPattern = regexp.MustCompile(`(?i)@([\da-z](?:-?[\da-z]){0,38})`)

// mentionedLogins extracts @login references from free text in order.
func mentionedLogins(text string) []string {
	matches := loginPattern.FindAllStringSubmatch(text, -1)
	logins := make([]string, 0, len(matches))
	for _, match := range matches {
		logins = append(logins, match[1])
	}
	return logins
}

// appendDiff adds a diff field when previous and current differ.
func appendDiff(fields []Field, name, previous, current string, limit int) []Field {
	if diff := diffBlock(previous, current, limit); diff != "" {
		fields = append(fields, block(name, diff))
	}
	return fields
}
