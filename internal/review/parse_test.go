package review

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposage/reposage/internal/fault"
)

func validResponse() string {
	return `{
		"summary": "Solid change with minor issues.",
		"categories": [
			{"name": "structure", "score": 8, "rationale": "well organized"},
			{"name": "standards", "score": 7, "rationale": "mostly idiomatic"},
			{"name": "bugs", "score": 9, "rationale": "no defects found"},
			{"name": "security", "score": 6, "rationale": "one unvalidated input"},
			{"name": "performance", "score": 8, "rationale": "no hot paths touched"},
			{"name": "maintainability", "score": 7, "rationale": "could use more tests"}
		],
		"inline_comments": [
			{"file_path": "handler.go", "line": 42, "severity": "warning", "message": "validate the id parameter"}
		]
	}`
}

func TestParseResultValid(t *testing.T) {
	result, err := ParseResult(validResponse())
	require.NoError(t, err)

	assert.Equal(t, 75, result.OverallScore)
	assert.Equal(t, GradeC, result.Grade)
	assert.Equal(t, "Solid change with minor issues.", result.Summary)

	require.Len(t, result.Categories, 6)
	for i, name := range CategoryNames {
		assert.Equal(t, name, result.Categories[i].Name)
	}

	require.Len(t, result.InlineComments, 1)
	assert.Equal(t, "handler.go", result.InlineComments[0].FilePath)
	assert.Equal(t, 42, result.InlineComments[0].Line)
	assert.Equal(t, SeverityWarning, result.InlineComments[0].Severity)
}

func TestParseResultSurroundingProse(t *testing.T) {
	raw := "Here is my review of the change:\n\n" + validResponse() + "\n\nLet me know if you need more detail."
	result, err := ParseResult(raw)
	require.NoError(t, err)
	assert.Equal(t, 75, result.OverallScore)
}

func TestParseResultCodeFence(t *testing.T) {
	raw := "```json\n" + validResponse() + "\n```"
	result, err := ParseResult(raw)
	require.NoError(t, err)
	assert.Equal(t, GradeC, result.Grade)
}

func TestParseResultBracesInsideStrings(t *testing.T) {
	raw := `{
		"summary": "Watch the struct{} literal here.",
		"categories": [
			{"name": "structure", "score": 10, "rationale": "uses map[string]struct{} idiomatically"},
			{"name": "standards", "score": 10, "rationale": "ok"},
			{"name": "bugs", "score": 10, "rationale": "ok"},
			{"name": "security", "score": 10, "rationale": "ok"},
			{"name": "performance", "score": 10, "rationale": "ok"},
			{"name": "maintainability", "score": 10, "rationale": "ok"}
		],
		"inline_comments": []
	}`
	result, err := ParseResult(raw)
	require.NoError(t, err)
	assert.Equal(t, 100, result.OverallScore)
	assert.Equal(t, GradeA, result.Grade)
}

func categoriesJSON(scores map[string]any) string {
	out := ""
	for name, score := range scores {
		if out != "" {
			out += ","
		}
		out += fmt.Sprintf(`{"name": %q, "score": %v, "rationale": "r"}`, name, score)
	}
	return "[" + out + "]"
}

func TestParseResultRejects(t *testing.T) {
	allValid := map[string]any{
		"structure": 8, "standards": 7, "bugs": 9,
		"security": 6, "performance": 8, "maintainability": 7,
	}

	missing := map[string]any{}
	for k, v := range allValid {
		if k != "security" {
			missing[k] = v
		}
	}
	missing["vibes"] = 5

	tooHigh := map[string]any{}
	negative := map[string]any{}
	fractional := map[string]any{}
	for k, v := range allValid {
		tooHigh[k], negative[k], fractional[k] = v, v, v
	}
	tooHigh["bugs"] = 11
	negative["bugs"] = -1
	fractional["bugs"] = 7.5

	tests := []struct {
		name string
		raw  string
	}{
		{"no JSON at all", "I cannot review this diff."},
		{"unterminated object", `{"summary": "x", "categories": [`},
		{"too few categories", `{"summary":"s","categories":` + categoriesJSON(map[string]any{"structure": 8}) + `,"inline_comments":[]}`},
		{"unknown category replaces required one", `{"summary":"s","categories":` + categoriesJSON(missing) + `,"inline_comments":[]}`},
		{"score above ten", `{"summary":"s","categories":` + categoriesJSON(tooHigh) + `,"inline_comments":[]}`},
		{"negative score", `{"summary":"s","categories":` + categoriesJSON(negative) + `,"inline_comments":[]}`},
		{"fractional score", `{"summary":"s","categories":` + categoriesJSON(fractional) + `,"inline_comments":[]}`},
		{"invalid severity", `{"summary":"s","categories":` + categoriesJSON(allValid) + `,"inline_comments":[{"file_path":"a.go","line":3,"severity":"fatal","message":"m"}]}`},
		{"zero line number", `{"summary":"s","categories":` + categoriesJSON(allValid) + `,"inline_comments":[{"file_path":"a.go","line":0,"severity":"info","message":"m"}]}`},
		{"empty file path", `{"summary":"s","categories":` + categoriesJSON(allValid) + `,"inline_comments":[{"file_path":" ","line":3,"severity":"info","message":"m"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResult(tt.raw)
			require.Error(t, err)
			assert.Equal(t, fault.KindMalformedResponse, fault.KindOf(err))
		})
	}
}

func TestParseResultDuplicateCategory(t *testing.T) {
	raw := `{"summary":"s","categories":[
		{"name": "structure", "score": 8, "rationale": "r"},
		{"name": "structure", "score": 7, "rationale": "r"},
		{"name": "bugs", "score": 9, "rationale": "r"},
		{"name": "security", "score": 6, "rationale": "r"},
		{"name": "performance", "score": 8, "rationale": "r"},
		{"name": "maintainability", "score": 7, "rationale": "r"}
	],"inline_comments":[]}`

	_, err := ParseResult(raw)
	require.Error(t, err)
	assert.Equal(t, fault.KindMalformedResponse, fault.KindOf(err))
}
