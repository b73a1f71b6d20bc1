// Package render formats finished review reports for terminals, plain
// markdown, and machine consumption.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/muesli/reflow/wordwrap"

	"github.com/reposage/reposage/internal/review"
)

// Format selects the output shape.
type Format string

const (
	FormatConsole  Format = "console"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat validates an output flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatConsole, "":
		return FormatConsole, nil
	case FormatMarkdown:
		return FormatMarkdown, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want console, markdown, or json)", s)
}

const wrapWidth = 100

var gradeStyles = map[review.Grade]lipgloss.Style{
	review.GradeA: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
	review.GradeB: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("78")),
	review.GradeC: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220")),
	review.GradeD: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")),
	review.GradeF: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
}

var severityColors = map[review.Severity]*color.Color{
	review.SeverityInfo:     color.New(color.FgBlue),
	review.SeverityWarning:  color.New(color.FgYellow),
	review.SeverityCritical: color.New(color.FgRed, color.Bold),
}

// Renderer writes reports in one of the supported formats.
type Renderer struct {
	out    io.Writer
	format Format
}

// New creates a renderer writing to out.
func New(out io.Writer, format Format) *Renderer {
	if format == "" {
		format = FormatConsole
	}
	return &Renderer{out: out, format: format}
}

// Render writes the report.
func (r *Renderer) Render(report *review.Report) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(report)
	case FormatMarkdown:
		return r.renderMarkdown(report)
	default:
		return r.renderConsole(report)
	}
}

func (r *Renderer) renderJSON(report *review.Report) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// renderMarkdown writes the report's markdown, styled for the terminal
// when possible and raw otherwise.
func (r *Renderer) renderMarkdown(report *review.Report) error {
	md := report.Markdown()

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrapWidth),
	)
	if err == nil {
		if styled, renderErr := renderer.Render(md); renderErr == nil {
			_, err = io.WriteString(r.out, styled)
			return err
		}
	}

	_, err = io.WriteString(r.out, md)
	return err
}

func (r *Renderer) renderConsole(report *review.Report) error {
	result := report.Result

	fmt.Fprintf(r.out, "\nCode Review: %s\n", report.Ref.String())
	if report.Metadata != nil && report.Metadata.Title != "" {
		fmt.Fprintf(r.out, "%s\n", report.Metadata.Title)
	}

	badge := gradeStyles[result.Grade].Render(fmt.Sprintf(" %s ", result.Grade))
	fmt.Fprintf(r.out, "\nOverall: %d/100  %s\n\n", result.OverallScore, badge)

	if result.Summary != "" {
		fmt.Fprintf(r.out, "%s\n\n", wordwrap.String(result.Summary, wrapWidth))
	}

	r.writeScoreTable(result.Categories)

	if len(result.InlineComments) > 0 {
		fmt.Fprintf(r.out, "\nFindings:\n")
		for _, c := range result.InlineComments {
			label := severityColors[c.Severity].Sprintf("%-8s", c.Severity)
			fmt.Fprintf(r.out, "  %s %s:%d  %s\n", label, c.FilePath, c.Line,
				wordwrap.String(c.Message, wrapWidth))
		}
	}

	if report.DiffTruncated {
		fmt.Fprintf(r.out, "\nNote: the diff was truncated to fit the analysis budget; some files were not reviewed.\n")
	}
	if report.CommentPosted {
		fmt.Fprintf(r.out, "\nReview comment posted to %s.\n", report.Ref.String())
	}
	return nil
}

func (r *Renderer) writeScoreTable(categories []review.CategoryScore) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatTitle

	t.AppendHeader(table.Row{"Category", "Score", "Rationale"})
	for _, c := range categories {
		t.AppendRow(table.Row{c.Name, fmt.Sprintf("%d/10", c.Score), c.Rationale})
	}
	t.Render()
}
