// Package review implements the pull request analysis pipeline: prompt
// construction, model invocation, response validation, and scoring.
package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/reposage/reposage/internal/platform"
)

// The six fixed rubric categories, in report order.
const (
	CategoryStructure       = "structure"
	CategoryStandards       = "standards"
	CategoryBugs            = "bugs"
	CategorySecurity        = "security"
	CategoryPerformance     = "performance"
	CategoryMaintainability = "maintainability"
)

// CategoryNames lists the rubric categories in canonical order. Every
// AnalysisResult carries exactly one score per name.
var CategoryNames = []string{
	CategoryStructure,
	CategoryStandards,
	CategoryBugs,
	CategorySecurity,
	CategoryPerformance,
	CategoryMaintainability,
}

// categoryDefinitions describes what each category measures, used when
// building the rubric portion of a prompt.
var categoryDefinitions = map[string]string{
	CategoryStructure:       "organization of the change: cohesion, separation of concerns, sensible file and function boundaries",
	CategoryStandards:       "adherence to language idioms, naming conventions, and project style",
	CategoryBugs:            "correctness: logic errors, unhandled edge cases, race conditions, resource leaks",
	CategorySecurity:        "vulnerabilities: injection, credential handling, unsafe input processing, data exposure",
	CategoryPerformance:     "efficiency: algorithmic complexity, unnecessary allocations or network calls, scalability concerns",
	CategoryMaintainability: "readability and future cost: clarity, documentation, test coverage, duplication",
}

// CategoryScore is one rubric category's verdict.
type CategoryScore struct {
	Name      string `json:"name"`
	Score     int    `json:"score"` // 0 through 10
	Rationale string `json:"rationale"`
}

// Severity classifies an inline comment.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the three enumerated severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// InlineComment is a file-and-line-anchored remark.
type InlineComment struct {
	FilePath string   `json:"file_path"`
	Line     int      `json:"line"` // positive
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Grade is the letter summary of an overall score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// AnalysisResult is the validated outcome of one model invocation.
// OverallScore and Grade are always recomputed from Categories, never
// taken from the model's output.
type AnalysisResult struct {
	Categories     []CategoryScore `json:"categories"` // canonical order, all six present
	OverallScore   int             `json:"overall_score"`
	Grade          Grade           `json:"grade"`
	Summary        string          `json:"summary"`
	InlineComments []InlineComment `json:"inline_comments,omitempty"`
}

// Report is the terminal artifact of one pipeline run.
type Report struct {
	ID            string             `json:"id"`
	Ref           platform.Ref       `json:"ref"`
	Metadata      *platform.Metadata `json:"metadata,omitempty"`
	Result        *AnalysisResult    `json:"result"`
	DiffBytes     int                `json:"diff_bytes"`
	DiffTruncated bool               `json:"diff_truncated"`
	CommentPosted bool               `json:"comment_posted"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Markdown renders the report as platform-flavored markdown, used both
// for posted comments and as input to terminal rendering.
func (r *Report) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Code Review: %s\n\n", r.Ref.String())
	if r.Metadata != nil && r.Metadata.Title != "" {
		fmt.Fprintf(&b, "**%s**\n\n", r.Metadata.Title)
	}
	fmt.Fprintf(&b, "**Overall: %d/100 (grade %s)**\n\n", r.Result.OverallScore, r.Result.Grade)

	if r.Result.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(r.Result.Summary))
	}

	b.WriteString("| Category | Score | Rationale |\n|---|---|---|\n")
	for _, c := range r.Result.Categories {
		fmt.Fprintf(&b, "| %s | %d/10 | %s |\n", c.Name, c.Score, sanitizeCell(c.Rationale))
	}
	b.WriteString("\n")

	if len(r.Result.InlineComments) > 0 {
		b.WriteString("### Findings\n\n")
		for _, c := range r.Result.InlineComments {
			fmt.Fprintf(&b, "- **%s** `%s:%d` %s\n", c.Severity, c.FilePath, c.Line, c.Message)
		}
		b.WriteString("\n")
	}

	if r.DiffTruncated {
		b.WriteString("_Note: the diff was truncated to fit the analysis budget; some files were not reviewed._\n")
	}

	return b.String()
}

// sanitizeCell keeps a rationale from breaking the markdown table.
func sanitizeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}
