package platform

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/reposage/reposage/internal/config"
	"github.com/reposage/reposage/internal/fault"
	"github.com/reposage/reposage/internal/loggy"
)

// BitbucketAdapter talks to the Bitbucket Cloud REST API (2.0).
type BitbucketAdapter struct {
	cfg    config.PlatformConfig
	logger *loggy.Logger
}

// NewBitbucketAdapter creates a Bitbucket adapter. Authentication uses
// basic auth with an app password when a username is configured, and a
// bearer token otherwise.
func NewBitbucketAdapter(cfg config.PlatformConfig, logger *loggy.Logger) *BitbucketAdapter {
	return &BitbucketAdapter{cfg: cfg, logger: logger}
}

func (a *BitbucketAdapter) rest() *restClient {
	username, token := a.cfg.Username, a.cfg.Token
	return newRESTClient(a.cfg.BaseURL, a.cfg, func(req *http.Request) {
		switch {
		case username != "" && token != "":
			req.SetBasicAuth(username, token)
		case token != "":
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}, a.logger)
}

func (a *BitbucketAdapter) prPath(ref Ref) string {
	return fmt.Sprintf("/repositories/%s/%s/pullrequests/%d", ref.Owner, ref.Repo, ref.Number)
}

type bitbucketPullRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      struct {
		DisplayName string `json:"display_name"`
		Nickname    string `json:"nickname"`
	} `json:"author"`
	Source struct {
		Branch struct {
			Name string `json:"name"`
		} `json:"branch"`
	} `json:"source"`
	Destination struct {
		Branch struct {
			Name string `json:"name"`
		} `json:"branch"`
	} `json:"destination"`
}

// FetchMetadata returns the pull request's descriptive fields. The
// changed-file count comes from the diffstat endpoint since the PR
// object itself does not carry one.
func (a *BitbucketAdapter) FetchMetadata(ctx context.Context, ref Ref) (*Metadata, error) {
	rest := a.rest()

	var pr bitbucketPullRequest
	if err := rest.getJSON(ctx, a.prPath(ref), &pr); err != nil {
		return nil, err
	}

	author := pr.Author.Nickname
	if author == "" {
		author = pr.Author.DisplayName
	}

	meta := &Metadata{
		Title:        pr.Title,
		Description:  pr.Description,
		Author:       author,
		SourceBranch: pr.Source.Branch.Name,
		TargetBranch: pr.Destination.Branch.Name,
	}

	var stat struct {
		Size   int   `json:"size"`
		Values []any `json:"values"`
	}
	if err := rest.getJSON(ctx, a.prPath(ref)+"/diffstat", &stat); err != nil {
		// Metadata without a file count is still usable
		a.logger.Warn("diffstat unavailable", "ref", ref.String(), "error", err)
		return meta, nil
	}

	meta.ChangedFiles = stat.Size
	if meta.ChangedFiles == 0 {
		meta.ChangedFiles = len(stat.Values)
	}
	return meta, nil
}

// FetchDiff returns the raw unified diff Bitbucket serves for the pull
// request.
func (a *BitbucketAdapter) FetchDiff(ctx context.Context, ref Ref) (string, error) {
	diff, err := a.rest().getText(ctx, a.prPath(ref)+"/diff")
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(diff) == "" {
		return "", fault.New(fault.KindEmptyDiff, "pull request %s has no changes", ref)
	}
	return diff, nil
}

// PostComment publishes a comment on the pull request.
func (a *BitbucketAdapter) PostComment(ctx context.Context, ref Ref, body string) error {
	payload := map[string]any{
		"content": map[string]string{"raw": body},
	}
	if err := a.rest().postJSON(ctx, a.prPath(ref)+"/comments", payload); err != nil {
		return err
	}

	a.logger.Info("posted review comment", "ref", ref.String(), "platform", Bitbucket)
	return nil
}
