// Package diff parses unified diffs into per-file blocks and enforces
// the size budget applied before a diff is handed to the model.
package diff

import (
	"fmt"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// FileDiff is one file's block within a unified diff, header included.
type FileDiff struct {
	Path     string
	Language string
	Text     string
}

// ByteSize returns the block's length in bytes.
func (f FileDiff) ByteSize() int {
	return len(f.Text)
}

// Payload is a bounded diff ready for prompting. ByteSize always tracks
// the current RawText, so after truncation it reflects the bounded text,
// not the original fetch.
type Payload struct {
	RawText      string
	ByteSize     int
	FileCount    int
	Truncated    bool
	OmittedFiles int
	Files        []FileDiff
}

// TokenEstimate approximates the payload's token cost as byte length
// divided by an average bytes-per-token ratio. No tokenizer is consulted.
func (p *Payload) TokenEstimate(bytesPerToken int) int {
	if bytesPerToken <= 0 {
		bytesPerToken = 4
	}
	return (p.ByteSize + bytesPerToken - 1) / bytesPerToken
}

// Languages returns the distinct languages across the payload's files,
// in first-seen order.
func (p *Payload) Languages() []string {
	seen := make(map[string]bool, len(p.Files))
	var langs []string
	for _, f := range p.Files {
		if f.Language == "" || seen[f.Language] {
			continue
		}
		seen[f.Language] = true
		langs = append(langs, f.Language)
	}
	return langs
}

// Parse splits a unified diff into per-file blocks and detects each
// file's language from its path and changed lines.
func Parse(raw string) *Payload {
	files := splitFiles(raw)

	payload := &Payload{
		RawText:   raw,
		ByteSize:  len(raw),
		FileCount: len(files),
		Files:     files,
	}
	return payload
}

// splitFiles cuts the diff at "diff --git" headers. Text before the
// first header (extended headers some platforms prepend) is dropped.
func splitFiles(raw string) []FileDiff {
	var files []FileDiff

	var current strings.Builder
	var path string
	flush := func() {
		if current.Len() == 0 {
			return
		}
		text := current.String()
		files = append(files, FileDiff{
			Path:     path,
			Language: detectLanguage(path, text),
			Text:     text,
		})
		current.Reset()
	}

	inFile := false
	for _, line := range strings.SplitAfter(raw, "\n") {
		if strings.HasPrefix(line, "diff --git ") {
			flush()
			inFile = true
			path = pathFromHeader(line)
		}
		if inFile {
			current.WriteString(line)
		}
	}
	flush()
	return files
}

// pathFromHeader extracts the new-side path from a "diff --git a/X b/Y"
// line.
func pathFromHeader(line string) string {
	line = strings.TrimSpace(line)
	idx := strings.LastIndex(line, " b/")
	if idx < 0 {
		return ""
	}
	return line[idx+len(" b/"):]
}

func detectLanguage(path, text string) string {
	if path == "" {
		return ""
	}
	lang := enry.GetLanguage(path, []byte(text))
	if lang == enry.OtherLanguage {
		lang, _ = enry.GetLanguageByExtension(path)
	}
	return lang
}

// omissionMarker is the trailing note appended to a truncated diff.
func omissionMarker(omitted int) string {
	noun := "files"
	if omitted == 1 {
		noun = "file"
	}
	return fmt.Sprintf("\n[diff truncated: %d %s omitted to fit the size budget]\n", omitted, noun)
}
