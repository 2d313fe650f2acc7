package preview

import (
	"fmt"
	"strings"

	"golang.org/x/text/width"

	"github.com/lexsuite/review-cli/internal/match"
	"github.com/lexsuite/review-cli/internal/model"
)

const annotationColumnCap = 60

// Render projects the snapshot's active view to plain text.
func Render(snap Snapshot, matchCfg match.Config) string {
	switch snap.ActiveView {
	case ViewSummary:
		return RenderSummary(snap.Title, snap.Result)
	case ViewIssues:
		return RenderIssues(snap.Result)
	case ViewAnnotated:
		return RenderAnnotated(snap.Original, snap.Result, matchCfg)
	default:
		return snap.Original
	}
}

// RenderSummary renders the risk breakdown. Severity counts are recomputed
// from the issue slice; the backend's precomputed counters are ignored.
func RenderSummary(title string, result *model.ReviewResult) string {
	if result == nil {
		return "暂无审查结果\n"
	}
	counts := result.Recount()

	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "合同: %s\n", title)
	}
	fmt.Fprintf(&b, "风险统计: 共 %d 项 (高风险 %d / 中风险 %d / 低风险 %d)\n",
		counts.Total(), counts.High, counts.Medium, counts.Low)
	if result.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", result.Summary)
	}
	return b.String()
}

// RenderIssues lists all issues grouped by severity, highest first.
func RenderIssues(result *model.ReviewResult) string {
	if result == nil || len(result.Issues) == 0 {
		return "未发现问题\n"
	}

	var b strings.Builder
	n := 0
	for _, sev := range []model.Severity{model.SeverityHigh, model.SeverityMedium, model.SeverityLow} {
		for _, issue := range result.IssuesBySeverity(sev) {
			n++
			fmt.Fprintf(&b, "%d. 【%s】%s\n", n, sev.Label(), issue.Problem)
			if issue.Category != "" {
				fmt.Fprintf(&b, "   类别: %s\n", issue.Category)
			}
			if issue.LocationHint != "" {
				fmt.Fprintf(&b, "   位置: %s\n", issue.LocationHint)
			}
			if issue.Suggestion != "" {
				fmt.Fprintf(&b, "   建议: %s\n", issue.Suggestion)
			}
		}
	}
	return b.String()
}

// RenderAnnotated shows the contract text with each issue anchored beside the
// line the matcher attributes it to. Issues the matcher cannot place end up
// in a trailing section instead of being dropped.
func RenderAnnotated(original string, result *model.ReviewResult, cfg match.Config) string {
	if result == nil {
		return original
	}

	m := match.New(original, cfg)
	lines := m.Lines()

	anchored := make(map[int][]model.Issue)
	var unanchored []model.Issue
	for _, issue := range result.Issues {
		line, ok := m.Locate(match.Anchorable{
			LocationHint: issue.LocationHint,
			OriginalText: issue.OriginalText,
			Problem:      issue.Problem,
			Suggestion:   issue.Suggestion,
		})
		if ok {
			anchored[line] = append(anchored[line], issue)
		} else {
			unanchored = append(unanchored, issue)
		}
	}

	col := 0
	for _, line := range lines {
		if w := displayWidth(line); w > col {
			col = w
		}
	}
	if col > annotationColumnCap {
		col = annotationColumnCap
	}

	var b strings.Builder
	for i, line := range lines {
		num := i + 1
		fmt.Fprintf(&b, "%4d  %s", num, line)
		issues := anchored[num]
		if len(issues) == 0 {
			b.WriteByte('\n')
			continue
		}
		pad := col - displayWidth(line)
		if pad < 0 {
			pad = 0
		}
		b.WriteString(strings.Repeat(" ", pad))
		fmt.Fprintf(&b, "  ◀ %s\n", annotation(issues[0]))
		for _, extra := range issues[1:] {
			// Continuation annotations align under the first one.
			fmt.Fprintf(&b, "%s  ◀ %s\n", strings.Repeat(" ", 6+col), annotation(extra))
		}
	}

	if len(unanchored) > 0 {
		b.WriteString("\n未定位的问题:\n")
		for _, issue := range unanchored {
			fmt.Fprintf(&b, "  - %s\n", annotation(issue))
		}
	}
	return b.String()
}

func annotation(issue model.Issue) string {
	text := issue.Problem
	if text == "" {
		text = issue.Suggestion
	}
	return fmt.Sprintf("【%s】%s", issue.Severity.Label(), text)
}

// displayWidth is the terminal column count of s, counting East Asian wide
// and fullwidth runes as two columns.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w += 2
		default:
			w++
		}
	}
	return w
}
