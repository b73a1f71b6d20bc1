package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposage/reposage/internal/config"
	"github.com/reposage/reposage/internal/fault"
	"github.com/reposage/reposage/internal/loggy"
)

func gitlabTestAdapter(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *GitLabAdapter) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.PlatformConfig{
		Token:          "glpat-test",
		BaseURL:        server.URL,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     2,
	}
	return server, NewGitLabAdapter(cfg, loggy.NewNoopLogger())
}

func TestGitLabFetchMetadata(t *testing.T) {
	ref := Ref{Platform: GitLab, Owner: "acme", Repo: "widgets", Number: 7, Host: "gitlab.com"}

	_, adapter := gitlabTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/acme%2Fwidgets/merge_requests/7", r.URL.EscapedPath())
		assert.Equal(t, "glpat-test", r.Header.Get("PRIVATE-TOKEN"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"title":         "Add widget cache",
			"description":   "Speeds up lookups",
			"source_branch": "feat/cache",
			"target_branch": "main",
			"changes_count": "3+",
			"author":        map[string]string{"username": "jdoe"},
		})
	})

	meta, err := adapter.FetchMetadata(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, "Add widget cache", meta.Title)
	assert.Equal(t, "jdoe", meta.Author)
	assert.Equal(t, "feat/cache", meta.SourceBranch)
	assert.Equal(t, "main", meta.TargetBranch)
	assert.Equal(t, 3, meta.ChangedFiles)
}

func TestGitLabFetchDiffNormalizesHeaders(t *testing.T) {
	ref := Ref{Platform: GitLab, Owner: "acme", Repo: "widgets", Number: 7, Host: "gitlab.com"}

	_, adapter := gitlabTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/acme%2Fwidgets/merge_requests/7/changes", r.URL.EscapedPath())

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"changes": []map[string]any{
				{
					"old_path": "cache.go",
					"new_path": "cache.go",
					"diff":     "@@ -1,2 +1,3 @@\n package cache\n+// warm on start\n",
				},
				{
					"old_path": "new.go",
					"new_path": "new.go",
					"new_file": true,
					"diff":     "@@ -0,0 +1 @@\n+package cache\n",
				},
			},
		})
	})

	diff, err := adapter.FetchDiff(context.Background(), ref)
	require.NoError(t, err)

	assert.Contains(t, diff, "diff --git a/cache.go b/cache.go\n--- a/cache.go\n+++ b/cache.go\n@@ -1,2 +1,3 @@")
	assert.Contains(t, diff, "diff --git a/new.go b/new.go\n--- /dev/null\n+++ b/new.go\n@@ -0,0 +1 @@")
}

func TestGitLabFetchDiffEmpty(t *testing.T) {
	ref := Ref{Platform: GitLab, Owner: "acme", Repo: "widgets", Number: 7, Host: "gitlab.com"}

	_, adapter := gitlabTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"changes": []any{}})
	})

	_, err := adapter.FetchDiff(context.Background(), ref)
	require.Error(t, err)
	assert.Equal(t, fault.KindEmptyDiff, fault.KindOf(err))
}

func TestGitLabErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   fault.Kind
	}{
		{"not found", http.StatusNotFound, fault.KindNotFound},
		{"unauthorized", http.StatusUnauthorized, fault.KindAuth},
		{"forbidden", http.StatusForbidden, fault.KindAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := Ref{Platform: GitLab, Owner: "acme", Repo: "widgets", Number: 7, Host: "gitlab.com"}
			_, adapter := gitlabTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := adapter.FetchMetadata(context.Background(), ref)
			require.Error(t, err)
			assert.Equal(t, tt.want, fault.KindOf(err))
		})
	}
}

func TestGitLabRateLimitCarriesRetryAfter(t *testing.T) {
	ref := Ref{Platform: GitLab, Owner: "acme", Repo: "widgets", Number: 7, Host: "gitlab.com"}
	_, adapter := gitlabTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := adapter.FetchMetadata(context.Background(), ref)
	require.Error(t, err)
	assert.Equal(t, fault.KindRateLimit, fault.KindOf(err))

	var fe *fault.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 30*time.Second, fe.RetryAfter)
}

func TestGitLabRetriesServerErrors(t *testing.T) {
	ref := Ref{Platform: GitLab, Owner: "acme", Repo: "widgets", Number: 7, Host: "gitlab.com"}

	attempts := 0
	_, adapter := gitlabTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"title":         "t",
			"changes_count": "1",
			"author":        map[string]string{"username": "u"},
		})
	})

	meta, err := adapter.FetchMetadata(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, "t", meta.Title)
}

func TestParseChangesCount(t *testing.T) {
	assert.Equal(t, 5, parseChangesCount("5"))
	assert.Equal(t, 12, parseChangesCount("12+"))
	assert.Equal(t, 0, parseChangesCount(""))
	assert.Equal(t, 0, parseChangesCount("many"))
}
