package review

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reposage/reposage/internal/config"
	"github.com/reposage/reposage/internal/diff"
	"github.com/reposage/reposage/internal/loggy"
	"github.com/reposage/reposage/internal/platform"
	"github.com/reposage/reposage/internal/ulid"
)

// Options tune one analysis run.
type Options struct {
	Depth       Depth
	PostComment bool // publish the report back to the pull request
}

// Service runs the full pipeline: resolve URL, fetch the pull request,
// bound the diff, invoke the model, aggregate scores.
type Service struct {
	cfg       *config.Config
	generator Generator
	budgeter  *diff.Budgeter
	logger    *loggy.Logger

	// adapterFor is swappable for tests.
	adapterFor func(platform.Ref, *config.Config, *loggy.Logger) (platform.Adapter, error)
}

// NewService creates a review service.
func NewService(cfg *config.Config, generator Generator, logger *loggy.Logger) *Service {
	return &Service{
		cfg:        cfg,
		generator:  generator,
		budgeter:   diff.NewBudgeter(cfg.Review, logger),
		logger:     logger,
		adapterFor: platform.ForRef,
	}
}

// Analyze reviews the pull request at rawURL and returns the finished
// report. Comment posting is best-effort: its failure is logged and
// reflected in the report, never propagated.
func (s *Service) Analyze(ctx context.Context, rawURL string, opts Options) (*Report, error) {
	ref, err := platform.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With("ref", ref.String(), "platform", ref.Platform)
	logger.Info("starting review", "depth", opts.Depth)

	adapter, err := s.adapterFor(ref, s.cfg, logger)
	if err != nil {
		return nil, err
	}

	var (
		meta    *platform.Metadata
		rawDiff string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		meta, err = adapter.FetchMetadata(gctx, ref)
		return err
	})
	g.Go(func() error {
		var err error
		rawDiff, err = adapter.FetchDiff(gctx, ref)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	payload := s.budgeter.Apply(diff.Parse(rawDiff))
	logger.Debug("diff bounded",
		"bytes", payload.ByteSize,
		"files", payload.FileCount,
		"truncated", payload.Truncated,
		"estimated_tokens", payload.TokenEstimate(s.cfg.Review.BytesPerToken))

	builder := NewPromptBuilder(opts.Depth)
	prompt, err := builder.Build(meta, payload)
	if err != nil {
		return nil, err
	}

	engine := NewEngine(s.generator, builder, logger)
	result, err := engine.Analyze(ctx, prompt)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ID:            ulid.ReviewID(),
		Ref:           ref,
		Metadata:      meta,
		Result:        result,
		DiffBytes:     payload.ByteSize,
		DiffTruncated: payload.Truncated,
		CreatedAt:     time.Now().UTC(),
	}

	if opts.PostComment || s.cfg.Review.PostComments {
		if err := adapter.PostComment(ctx, ref, report.Markdown()); err != nil {
			logger.Warn("posting review comment failed", "error", err)
		} else {
			report.CommentPosted = true
		}
	}

	logger.Info("review finished",
		"review_id", report.ID,
		"overall", result.OverallScore,
		"grade", result.Grade,
		"comment_posted", report.CommentPosted)
	return report, nil
}
