package review

import (
	"encoding/json"
	"strings"

	"github.com/reposage/reposage/internal/fault"
)

// wire types mirror the response schema before validation. Scores and
// line numbers decode as json.Number so non-integer values are caught
// instead of silently rounded.
type wireResult struct {
	Summary        string        `json:"summary"`
	Categories     []wireScore   `json:"categories"`
	InlineComments []wireComment `json:"inline_comments"`
}

type wireScore struct {
	Name      string      `json:"name"`
	Score     json.Number `json:"score"`
	Rationale string      `json:"rationale"`
}

type wireComment struct {
	FilePath string      `json:"file_path"`
	Line     json.Number `json:"line"`
	Severity string      `json:"severity"`
	Message  string      `json:"message"`
}

// ParseResult validates raw model output into an AnalysisResult. The
// output is untrusted text: the JSON object is located inside whatever
// prose surrounds it, then checked against the schema without any
// coercion. Every violation is a malformed-response fault.
func ParseResult(raw string) (*AnalysisResult, error) {
	payload, err := extractJSON(raw)
	if err != nil {
		return nil, fault.Wrap(fault.KindMalformedResponse, err, "locating JSON in model output")
	}

	decoder := json.NewDecoder(strings.NewReader(payload))
	decoder.UseNumber()

	var wire wireResult
	if err := decoder.Decode(&wire); err != nil {
		return nil, fault.Wrap(fault.KindMalformedResponse, err, "decoding model output")
	}

	categories, err := validateCategories(wire.Categories)
	if err != nil {
		return nil, err
	}

	comments, err := validateComments(wire.InlineComments)
	if err != nil {
		return nil, err
	}

	overall := AggregateScore(categories)
	return &AnalysisResult{
		Categories:     categories,
		OverallScore:   overall,
		Grade:          GradeFor(overall),
		Summary:        strings.TrimSpace(wire.Summary),
		InlineComments: comments,
	}, nil
}

// validateCategories checks that exactly the six fixed categories are
// present, each once, with integer scores in [0,10], and returns them in
// canonical order.
func validateCategories(scores []wireScore) ([]CategoryScore, error) {
	if len(scores) != len(CategoryNames) {
		return nil, fault.New(fault.KindMalformedResponse,
			"expected %d categories, got %d", len(CategoryNames), len(scores))
	}

	byName := make(map[string]CategoryScore, len(scores))
	for _, s := range scores {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if _, known := categoryDefinitions[name]; !known {
			return nil, fault.New(fault.KindMalformedResponse, "unknown category %q", s.Name)
		}
		if _, dup := byName[name]; dup {
			return nil, fault.New(fault.KindMalformedResponse, "duplicate category %q", name)
		}

		score, err := intInRange(s.Score, 0, 10)
		if err != nil {
			return nil, fault.Wrap(fault.KindMalformedResponse, err, "category %q score", name)
		}

		byName[name] = CategoryScore{Name: name, Score: score, Rationale: strings.TrimSpace(s.Rationale)}
	}

	ordered := make([]CategoryScore, 0, len(CategoryNames))
	for _, name := range CategoryNames {
		c, ok := byName[name]
		if !ok {
			return nil, fault.New(fault.KindMalformedResponse, "missing category %q", name)
		}
		ordered = append(ordered, c)
	}
	return ordered, nil
}

func validateComments(comments []wireComment) ([]InlineComment, error) {
	out := make([]InlineComment, 0, len(comments))
	for i, c := range comments {
		severity := Severity(strings.ToLower(strings.TrimSpace(c.Severity)))
		if !severity.Valid() {
			return nil, fault.New(fault.KindMalformedResponse,
				"inline comment %d: invalid severity %q", i, c.Severity)
		}

		line, err := intInRange(c.Line, 1, 1<<31-1)
		if err != nil {
			return nil, fault.Wrap(fault.KindMalformedResponse, err, "inline comment %d line", i)
		}

		if strings.TrimSpace(c.FilePath) == "" {
			return nil, fault.New(fault.KindMalformedResponse, "inline comment %d: empty file path", i)
		}

		out = append(out, InlineComment{
			FilePath: c.FilePath,
			Line:     line,
			Severity: severity,
			Message:  strings.TrimSpace(c.Message),
		})
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// intInRange converts a json.Number into an integer within [lo, hi].
// Fractional values are rejected, not rounded.
func intInRange(n json.Number, lo, hi int64) (int, error) {
	v, err := n.Int64()
	if err != nil {
		return 0, fault.New(fault.KindMalformedResponse, "%q is not an integer", n.String())
	}
	if v < lo || v > hi {
		return 0, fault.New(fault.KindMalformedResponse, "%d is outside [%d,%d]", v, lo, hi)
	}
	return int(v), nil
}

// extractJSON finds the first balanced JSON object in text that may
// carry prose before or after it. Braces inside JSON strings are
// skipped.
func extractJSON(input string) (string, error) {
	start := strings.Index(input, "{")
	if start == -1 {
		return "", fault.New(fault.KindMalformedResponse, "no JSON object found")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(input); i++ {
		ch := input[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return input[start : i+1], nil
			}
		}
	}
	return "", fault.New(fault.KindMalformedResponse, "incomplete JSON object")
}
