package review

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/reposage/reposage/internal/diff"
	"github.com/reposage/reposage/internal/platform"
)

// Depth selects how much extra emphasis the review prompt carries.
type Depth string

const (
	DepthStandard      Depth = "standard"
	DepthComprehensive Depth = "comprehensive"
	DepthSecurity      Depth = "security"
)

// ParseDepth validates a depth flag value.
func ParseDepth(s string) (Depth, error) {
	switch Depth(strings.ToLower(strings.TrimSpace(s))) {
	case DepthStandard, "":
		return DepthStandard, nil
	case DepthComprehensive:
		return DepthComprehensive, nil
	case DepthSecurity:
		return DepthSecurity, nil
	}
	return "", fmt.Errorf("unknown review depth %q (want standard, comprehensive, or security)", s)
}

// depthExtensions adds focus instructions per depth. Standard adds
// nothing.
var depthExtensions = map[Depth]string{
	DepthComprehensive: "Perform deep architectural analysis and design pattern review.",
	DepthSecurity:      "Focus on security vulnerabilities and data protection.",
}

const reviewPromptTemplate = `Act as a senior software engineer performing a code review. Analyze the following pull request diff and score it against the rubric below. Your response **MUST** end with a single valid JSON object following the schema **EXACTLY** — no additional fields, no missing fields.

## Pull Request

Title: {{.Title}}
Author: {{.Author}}
Branch: {{.SourceBranch}} -> {{.TargetBranch}}
{{- if .Description}}
Description: {{.Description}}
{{- end}}
{{- if .Languages}}
Languages: {{.Languages}}
{{- end}}

## Rubric

Score each category from 0 (unacceptable) to 10 (exemplary). Scores must be integers.
{{range .Categories}}
- **{{.Name}}**: {{.Definition}}
{{- end}}

## Output Schema

{
  "summary": "2-3 sentence overview of the change and its quality",
  "categories": [
    {"name": "structure", "score": 8, "rationale": "one sentence"},
    {"name": "standards", "score": 7, "rationale": "one sentence"},
    {"name": "bugs", "score": 9, "rationale": "one sentence"},
    {"name": "security", "score": 6, "rationale": "one sentence"},
    {"name": "performance", "score": 8, "rationale": "one sentence"},
    {"name": "maintainability", "score": 7, "rationale": "one sentence"}
  ],
  "inline_comments": [
    {"file_path": "path/from/diff.go", "line": 42, "severity": "warning", "message": "what is wrong and how to fix it"}
  ]
}

IMPORTANT:
- Include **all six** categories with exactly the names listed above.
- Every score is an integer between 0 and 10.
- "severity" is one of: info, warning, critical.
- "line" refers to a line number in the new version of the file and must be a positive integer.
- "inline_comments" may be empty, but the field must be present.
{{- if .Extension}}
- {{.Extension}}
{{- end}}
{{- if .Truncated}}

Note: the diff below was truncated to fit a size budget; {{.OmittedFiles}} of the changed files are not shown. Review only what is present.
{{- end}}

---

**Diff to Analyze:**

` + "```diff\n{{.Diff}}\n```"

const repairPromptTemplate = `Your previous response could not be parsed: {{.Reason}}.

Respond again with **ONLY** a single valid JSON object following this schema exactly:

{
  "summary": "string",
  "categories": [
    {"name": "structure", "score": 0, "rationale": "string"},
    {"name": "standards", "score": 0, "rationale": "string"},
    {"name": "bugs", "score": 0, "rationale": "string"},
    {"name": "security", "score": 0, "rationale": "string"},
    {"name": "performance", "score": 0, "rationale": "string"},
    {"name": "maintainability", "score": 0, "rationale": "string"}
  ],
  "inline_comments": [
    {"file_path": "string", "line": 1, "severity": "info|warning|critical", "message": "string"}
  ]
}

All six categories listed above must be present, scores are integers from 0 to 10, and no other fields are allowed.

The pull request under review:

{{.Original}}`

var (
	reviewTmpl = template.Must(template.New("review").Parse(reviewPromptTemplate))
	repairTmpl = template.Must(template.New("repair").Parse(repairPromptTemplate))
)

// PromptBuilder renders review prompts. It is a pure formatter: no
// network access, no stored state beyond the configured depth.
type PromptBuilder struct {
	depth Depth
}

// NewPromptBuilder creates a builder for the given depth.
func NewPromptBuilder(depth Depth) *PromptBuilder {
	if depth == "" {
		depth = DepthStandard
	}
	return &PromptBuilder{depth: depth}
}

// Build renders the review prompt from the pull request's metadata and
// its bounded diff. It fails when required metadata is missing.
func (p *PromptBuilder) Build(meta *platform.Metadata, payload *diff.Payload) (string, error) {
	if meta == nil {
		return "", fmt.Errorf("building prompt: metadata is required")
	}
	if meta.Title == "" {
		return "", fmt.Errorf("building prompt: pull request title is required")
	}
	if payload == nil || strings.TrimSpace(payload.RawText) == "" {
		return "", fmt.Errorf("building prompt: diff is required")
	}

	type categoryEntry struct {
		Name       string
		Definition string
	}
	categories := make([]categoryEntry, 0, len(CategoryNames))
	for _, name := range CategoryNames {
		categories = append(categories, categoryEntry{Name: name, Definition: categoryDefinitions[name]})
	}

	data := map[string]any{
		"Title":        meta.Title,
		"Author":       meta.Author,
		"Description":  strings.TrimSpace(meta.Description),
		"SourceBranch": meta.SourceBranch,
		"TargetBranch": meta.TargetBranch,
		"Languages":    strings.Join(payload.Languages(), ", "),
		"Categories":   categories,
		"Extension":    depthExtensions[p.depth],
		"Truncated":    payload.Truncated,
		"OmittedFiles": payload.OmittedFiles,
		"Diff":         strings.TrimRight(payload.RawText, "\n"),
	}

	var buf bytes.Buffer
	if err := reviewTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering review prompt: %w", err)
	}
	return buf.String(), nil
}

// Repair renders the one-shot re-prompt used after a malformed model
// response, restating the schema alongside the original prompt.
func (p *PromptBuilder) Repair(original, reason string) (string, error) {
	var buf bytes.Buffer
	err := repairTmpl.Execute(&buf, map[string]string{
		"Original": original,
		"Reason":   reason,
	})
	if err != nil {
		return "", fmt.Errorf("rendering repair prompt: %w", err)
	}
	return buf.String(), nil
}
