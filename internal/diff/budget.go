package diff

import (
	"strings"

	"github.com/reposage/reposage/internal/config"
	"github.com/reposage/reposage/internal/loggy"
)

// Budgeter bounds a diff so it fits the model's input window. Both a
// byte ceiling and an estimated-token ceiling apply; the tighter of the
// two wins.
type Budgeter struct {
	maxBytes      int
	maxTokens     int
	bytesPerToken int
	logger        *loggy.Logger
}

// NewBudgeter creates a budgeter from the review configuration.
func NewBudgeter(cfg config.ReviewConfig, logger *loggy.Logger) *Budgeter {
	return &Budgeter{
		maxBytes:      cfg.MaxDiffBytes,
		maxTokens:     cfg.MaxDiffTokens,
		bytesPerToken: cfg.BytesPerToken,
		logger:        logger,
	}
}

// limit is the effective byte ceiling after converting the token budget
// into bytes.
func (b *Budgeter) limit() int {
	limit := b.maxBytes
	if tokenBytes := b.maxTokens * b.bytesPerToken; tokenBytes > 0 && tokenBytes < limit {
		limit = tokenBytes
	}
	return limit
}

// Apply returns the payload unchanged when it fits the budget. Otherwise
// it keeps whole per-file blocks from the start of the diff until the
// next block would overflow, and appends a marker naming how many files
// were dropped. Blocks are never cut mid-hunk.
func (b *Budgeter) Apply(payload *Payload) *Payload {
	limit := b.limit()
	if limit <= 0 || payload.ByteSize <= limit {
		return payload
	}

	// The marker has to fit inside the ceiling too, so reserve its
	// worst-case length before packing blocks.
	reserve := len(omissionMarker(payload.FileCount))

	var kept []FileDiff
	size := 0
	for _, f := range payload.Files {
		if size+f.ByteSize() > limit-reserve {
			break
		}
		size += f.ByteSize()
		kept = append(kept, f)
	}

	omitted := len(payload.Files) - len(kept)

	var text strings.Builder
	text.Grow(size + reserve)
	for _, f := range kept {
		text.WriteString(f.Text)
	}
	text.WriteString(omissionMarker(omitted))

	bounded := &Payload{
		RawText:      text.String(),
		ByteSize:     text.Len(),
		FileCount:    payload.FileCount,
		Truncated:    true,
		OmittedFiles: omitted,
		Files:        kept,
	}

	b.logger.Info("diff truncated to fit budget",
		"original_bytes", payload.ByteSize,
		"bounded_bytes", bounded.ByteSize,
		"kept_files", len(kept),
		"omitted_files", omitted)

	return bounded
}
