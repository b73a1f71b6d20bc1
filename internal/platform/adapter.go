package platform

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/reposage/reposage/internal/config"
	"github.com/reposage/reposage/internal/fault"
	"github.com/reposage/reposage/internal/loggy"
)

// Adapter is the capability set the pipeline needs from a git hosting
// platform. Implementations normalize diffs to plain unified-diff text so
// everything downstream stays platform-agnostic.
type Adapter interface {
	// FetchMetadata returns the pull request's descriptive fields.
	FetchMetadata(ctx context.Context, ref Ref) (*Metadata, error)

	// FetchDiff returns the unified diff of the pull request. It fails
	// with an empty-diff fault when the platform reports no changes.
	FetchDiff(ctx context.Context, ref Ref) (string, error)

	// PostComment publishes a comment on the pull request. Best-effort:
	// callers must not fail an analysis on its error.
	PostComment(ctx context.Context, ref Ref, body string) error
}

// ForRef selects the adapter matching the ref's platform.
func ForRef(ref Ref, cfg *config.Config, logger *loggy.Logger) (Adapter, error) {
	switch ref.Platform {
	case GitHub:
		return NewGitHubAdapter(cfg.GitHub, logger), nil
	case GitLab:
		return NewGitLabAdapter(cfg.GitLab, logger), nil
	case Bitbucket:
		return NewBitbucketAdapter(cfg.Bitbucket, logger), nil
	default:
		return nil, fault.New(fault.KindInvalidURL, "unsupported platform %q", ref.Platform)
	}
}

// withRetry runs op with exponential backoff, retrying only failures the
// taxonomy marks retryable. It returns the last classified error once
// attempts are exhausted.
func withRetry(ctx context.Context, maxRetries int, op func() error) error {
	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !fault.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxRetries)), ctx)
	err := backoff.Retry(wrapped, bo)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && fault.KindOf(err) == fault.KindInternal {
		return fault.Wrap(fault.KindTimeout, err, "request deadline exceeded")
	}
	return err
}

// retryAfterHint parses a Retry-After style value in seconds; zero when
// absent or unparseable.
func retryAfterHint(value string) time.Duration {
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value + "s")
	if err != nil {
		return 0
	}
	return d
}
