package platform

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"golang.org/x/oauth2"

	"github.com/reposage/reposage/internal/config"
	"github.com/reposage/reposage/internal/fault"
	"github.com/reposage/reposage/internal/loggy"
)

// GitHubAdapter talks to the GitHub REST API through go-github.
type GitHubAdapter struct {
	client     *github.Client
	maxRetries int
	logger     *loggy.Logger
}

// NewGitHubAdapter creates a GitHub adapter authenticated with the
// configured token. A non-default base URL switches the client into
// enterprise mode.
func NewGitHubAdapter(cfg config.PlatformConfig, logger *loggy.Logger) *GitHubAdapter {
	var httpClient *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	} else {
		httpClient = &http.Client{}
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	httpClient.Timeout = timeout

	client := github.NewClient(httpClient)
	if cfg.BaseURL != "" && cfg.BaseURL != "https://api.github.com" {
		if enterprise, err := client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL); err == nil {
			client = enterprise
		} else {
			logger.Warn("falling back to public GitHub API", "base_url", cfg.BaseURL, "error", err)
		}
	}

	return &GitHubAdapter{
		client:     client,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

// FetchMetadata returns title, description, author, branches and the
// changed-file count of the pull request.
func (a *GitHubAdapter) FetchMetadata(ctx context.Context, ref Ref) (*Metadata, error) {
	var meta *Metadata

	err := withRetry(ctx, a.maxRetries, func() error {
		pr, resp, err := a.client.PullRequests.Get(ctx, ref.Owner, ref.Repo, ref.Number)
		if err != nil {
			return a.classify(resp, err, ref)
		}

		meta = &Metadata{
			Title:        pr.GetTitle(),
			Description:  pr.GetBody(),
			Author:       pr.GetUser().GetLogin(),
			SourceBranch: pr.GetHead().GetRef(),
			TargetBranch: pr.GetBase().GetRef(),
			ChangedFiles: pr.GetChangedFiles(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return meta, nil
}

// FetchDiff returns the raw unified diff GitHub serves for the pull
// request (the application/vnd.github.diff representation).
func (a *GitHubAdapter) FetchDiff(ctx context.Context, ref Ref) (string, error) {
	var diff string

	err := withRetry(ctx, a.maxRetries, func() error {
		raw, resp, err := a.client.PullRequests.GetRaw(ctx, ref.Owner, ref.Repo, ref.Number,
			github.RawOptions{Type: github.Diff})
		if err != nil {
			return a.classify(resp, err, ref)
		}
		diff = raw
		return nil
	})
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(diff) == "" {
		return "", fault.New(fault.KindEmptyDiff, "pull request %s has no changes", ref)
	}
	return diff, nil
}

// PostComment publishes an issue comment on the pull request.
func (a *GitHubAdapter) PostComment(ctx context.Context, ref Ref, body string) error {
	comment := &github.IssueComment{Body: github.String(body)}
	_, resp, err := a.client.Issues.CreateComment(ctx, ref.Owner, ref.Repo, ref.Number, comment)
	if err != nil {
		return a.classify(resp, err, ref)
	}

	a.logger.Info("posted review comment", "ref", ref.String(), "platform", GitHub)
	return nil
}

// classify maps go-github errors onto the fault taxonomy.
func (a *GitHubAdapter) classify(resp *github.Response, err error, ref Ref) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		hint := time.Until(rateErr.Rate.Reset.Time)
		if hint < 0 {
			hint = 0
		}
		return fault.Wrap(fault.KindRateLimit, err, "GitHub rate limit hit for %s", ref).
			WithRetryAfter(hint)
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fault.Wrap(fault.KindRateLimit, err, "GitHub secondary rate limit for %s", ref).
			WithRetryAfter(abuseErr.GetRetryAfter())
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fault.Wrap(fault.KindTimeout, err, "GitHub request for %s", ref)
	}

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fault.Wrap(fault.KindAuth, err, "GitHub credentials rejected for %s", ref)
	case status == http.StatusNotFound:
		return fault.Wrap(fault.KindNotFound, err, "pull request %s not found", ref)
	case status == http.StatusTooManyRequests:
		return fault.Wrap(fault.KindRateLimit, err, "GitHub rate limit hit for %s", ref)
	case status >= http.StatusInternalServerError:
		return fault.Wrap(fault.KindTimeout, err, "GitHub upstream error for %s", ref)
	default:
		return fault.Wrap(fault.KindTimeout, err, "GitHub request failed for %s", ref)
	}
}
