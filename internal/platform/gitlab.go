package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/reposage/reposage/internal/config"
	"github.com/reposage/reposage/internal/fault"
	"github.com/reposage/reposage/internal/loggy"
)

// GitLabAdapter talks to the GitLab REST API (v4). The API host follows
// the merge request's own host unless an explicit base URL is configured,
// which is what makes self-hosted instances work without extra setup.
type GitLabAdapter struct {
	cfg    config.PlatformConfig
	logger *loggy.Logger
}

// NewGitLabAdapter creates a GitLab adapter.
func NewGitLabAdapter(cfg config.PlatformConfig, logger *loggy.Logger) *GitLabAdapter {
	return &GitLabAdapter{cfg: cfg, logger: logger}
}

func (a *GitLabAdapter) rest(ref Ref) *restClient {
	baseURL := a.cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s/api/v4", ref.Host)
	}

	token := a.cfg.Token
	return newRESTClient(baseURL, a.cfg, func(req *http.Request) {
		if token != "" {
			req.Header.Set("PRIVATE-TOKEN", token)
		}
	}, a.logger)
}

func (a *GitLabAdapter) mrPath(ref Ref) string {
	return fmt.Sprintf("/projects/%s/merge_requests/%d", url.PathEscape(ref.ProjectPath()), ref.Number)
}

type gitlabMergeRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	ChangesCount string `json:"changes_count"` // "12", or "12+" when capped
	Author       struct {
		Username string `json:"username"`
	} `json:"author"`
}

type gitlabChange struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	Diff        string `json:"diff"`
	NewFile     bool   `json:"new_file"`
	DeletedFile bool   `json:"deleted_file"`
}

// FetchMetadata returns the merge request's descriptive fields.
func (a *GitLabAdapter) FetchMetadata(ctx context.Context, ref Ref) (*Metadata, error) {
	var mr gitlabMergeRequest
	if err := a.rest(ref).getJSON(ctx, a.mrPath(ref), &mr); err != nil {
		return nil, err
	}

	return &Metadata{
		Title:        mr.Title,
		Description:  mr.Description,
		Author:       mr.Author.Username,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		ChangedFiles: parseChangesCount(mr.ChangesCount),
	}, nil
}

// FetchDiff reassembles a unified diff from GitLab's per-file changes
// payload. GitLab serves hunks without git headers, so the adapter adds
// them back to match what the other platforms produce.
func (a *GitLabAdapter) FetchDiff(ctx context.Context, ref Ref) (string, error) {
	var payload struct {
		Changes []gitlabChange `json:"changes"`
	}
	if err := a.rest(ref).getJSON(ctx, a.mrPath(ref)+"/changes", &payload); err != nil {
		return "", err
	}

	if len(payload.Changes) == 0 {
		return "", fault.New(fault.KindEmptyDiff, "merge request %s has no changes", ref)
	}

	var b strings.Builder
	for _, change := range payload.Changes {
		writeGitHeader(&b, change)
		b.WriteString(change.Diff)
		if !strings.HasSuffix(change.Diff, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// PostComment publishes a note on the merge request.
func (a *GitLabAdapter) PostComment(ctx context.Context, ref Ref, body string) error {
	err := a.rest(ref).postJSON(ctx, a.mrPath(ref)+"/notes", map[string]string{"body": body})
	if err != nil {
		return err
	}

	a.logger.Info("posted review comment", "ref", ref.String(), "platform", GitLab)
	return nil
}

func writeGitHeader(b *strings.Builder, change gitlabChange) {
	fmt.Fprintf(b, "diff --git a/%s b/%s\n", change.OldPath, change.NewPath)
	switch {
	case change.NewFile:
		fmt.Fprintf(b, "--- /dev/null\n+++ b/%s\n", change.NewPath)
	case change.DeletedFile:
		fmt.Fprintf(b, "--- a/%s\n+++ /dev/null\n", change.OldPath)
	default:
		fmt.Fprintf(b, "--- a/%s\n+++ b/%s\n", change.OldPath, change.NewPath)
	}
}

// parseChangesCount reads GitLab's changes_count, which is a string and
// may carry a trailing "+" when the count is capped.
func parseChangesCount(s string) int {
	s = strings.TrimSuffix(strings.TrimSpace(s), "+")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
