// internal/github/client_test.go
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-dashboard/internal/apierr"
	"github-dashboard/internal/model"
)

// setupTestClient creates a httptest server and a client pointing to it.
func setupTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	// No token needed; we never talk to the real GitHub.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := NewClient("", "testuser", logger)

	// Override the client's internals to point to our test server.
	testClient, err := github.NewClient(server.Client()).WithEnterpriseURLs(server.URL, server.URL)
	require.NoError(t, err)
	client.gh = testClient
	client.http = server.Client()
	client.graphqlURL = server.URL + "/graphql"

	return client, server
}

func repoJSON(id int) string {
	return fmt.Sprintf(`{"id": %d, "name": "repo-%d", "full_name": "testuser/repo-%d", "owner": {"login": "testuser"}, "stargazers_count": %d, "html_url": "https://github.com/testuser/repo-%d"}`, id, id, id, id, id)
}

func repoPage(start, count int) string {
	items := make([]string, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, repoJSON(start+i))
	}
	return "[" + strings.Join(items, ",") + "]"
}

func TestClient_Repos_Pagination(t *testing.T) {
	t.Run("stops after a short page", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.True(t, strings.HasSuffix(r.URL.Path, "/user/repos"))
			count := atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusOK)
			if count == 1 {
				fmt.Fprintln(w, repoPage(0, perPageDefault))
				return
			}
			fmt.Fprintln(w, repoPage(perPageDefault, 3))
		})
		client, _ := setupTestClient(t, handler)

		repos, err := client.Repos(context.Background())

		require.NoError(t, err)
		assert.Len(t, repos, perPageDefault+3)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
	})

	t.Run("makes one extra request when the total is an exact multiple", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusOK)
			if count == 1 {
				fmt.Fprintln(w, repoPage(0, perPageDefault))
				return
			}
			fmt.Fprintln(w, "[]")
		})
		client, _ := setupTestClient(t, handler)

		repos, err := client.Repos(context.Background())

		require.NoError(t, err)
		assert.Len(t, repos, perPageDefault)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
	})

	t.Run("marks ownership from the configured username", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, `[{"id": 1, "name": "mine", "full_name": "testuser/mine", "owner": {"login": "TestUser"}}, {"id": 2, "name": "theirs", "full_name": "other/theirs", "owner": {"login": "other"}}]`)
		})
		client, _ := setupTestClient(t, handler)

		repos, err := client.Repos(context.Background())

		require.NoError(t, err)
		require.Len(t, repos, 2)
		assert.True(t, repos[0].IsOwner)
		assert.False(t, repos[1].IsOwner)
	})
}

func TestClient_Repos_Retry(t *testing.T) {
	t.Run("retries on 503 and succeeds", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := atomic.AddInt32(&requestCount, 1)
			if count == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, repoPage(0, 1))
		})
		client, _ := setupTestClient(t, handler)

		repos, err := client.Repos(context.Background())

		require.NoError(t, err)
		assert.Len(t, repos, 1)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
	})

	t.Run("fails with a typed error after persistent 503", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		client, _ := setupTestClient(t, handler)

		_, err := client.Repos(context.Background())

		require.Error(t, err)
		var httpErr *apierr.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusServiceUnavailable, httpErr.Status)
		assert.Equal(t, int32(maxRetries+1), atomic.LoadInt32(&requestCount))
	})

	t.Run("waits out a near rate-limit reset", func(t *testing.T) {
		var requestCount int32
		resetTime := time.Now().Add(2 * time.Second)
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := atomic.AddInt32(&requestCount, 1)
			if count == 1 {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime.Unix()))
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprintln(w, `{"message": "API rate limit exceeded"}`)
				return
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, repoPage(0, 1))
		})
		client, _ := setupTestClient(t, handler)

		repos, err := client.Repos(context.Background())

		require.NoError(t, err)
		assert.Len(t, repos, 1)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
	})

	t.Run("surfaces a distant rate-limit reset as a typed error", func(t *testing.T) {
		resetTime := time.Now().Add(time.Hour)
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime.Unix()))
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprintln(w, `{"message": "API rate limit exceeded"}`)
		})
		client, _ := setupTestClient(t, handler)

		_, err := client.Repos(context.Background())

		require.Error(t, err)
		var rateErr *apierr.RateLimitError
		require.ErrorAs(t, err, &rateErr)
		assert.Greater(t, rateErr.RetryAfter, 30*time.Minute)
	})
}

func TestClient_Issues(t *testing.T) {
	t.Run("excludes pull requests from the issues endpoint", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.True(t, strings.HasSuffix(r.URL.Path, "/repos/testuser/repo-1/issues"))
			assert.Equal(t, "all", r.URL.Query().Get("state"))
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, `[
				{"id": 10, "number": 1, "title": "a bug", "state": "open", "user": {"login": "alice"}},
				{"id": 11, "number": 2, "title": "a pr", "state": "open", "pull_request": {"url": "https://x"}}
			]`)
		})
		client, _ := setupTestClient(t, handler)

		repos := []model.Repository{{Name: "repo-1", FullName: "testuser/repo-1", Owner: "testuser"}}
		issues, err := client.Issues(context.Background(), repos)

		require.NoError(t, err)
		require.Len(t, issues, 1)
		assert.Equal(t, "a bug", issues[0].Title)
		assert.Equal(t, "testuser/repo-1", issues[0].Repo)
	})
}

func TestClient_Issues_Pagination(t *testing.T) {
	t.Run("follows pages until a short page", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := atomic.AddInt32(&requestCount, 1)
			assert.Equal(t, fmt.Sprintf("%d", count), r.URL.Query().Get("page"))
			w.WriteHeader(http.StatusOK)
			if count == 1 {
				items := make([]string, perPageDefault)
				for i := range items {
					items[i] = fmt.Sprintf(`{"id": %d, "number": %d, "title": "issue-%d", "state": "open"}`, i, i, i)
				}
				fmt.Fprintln(w, "["+strings.Join(items, ",")+"]")
				return
			}
			fmt.Fprintln(w, `[{"id": 500, "number": 500, "title": "last one", "state": "open"}]`)
		})
		client, _ := setupTestClient(t, handler)

		repos := []model.Repository{{Name: "big", FullName: "testuser/big", Owner: "testuser"}}
		issues, err := client.Issues(context.Background(), repos)

		require.NoError(t, err)
		assert.Len(t, issues, perPageDefault+1)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
	})

	t.Run("stops at the page cap", func(t *testing.T) {
		var requestCount int32
		full := repoIssuesPage()
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, full)
		})
		client, _ := setupTestClient(t, handler)

		repos := []model.Repository{{Name: "huge", FullName: "testuser/huge", Owner: "testuser"}}
		issues, err := client.Issues(context.Background(), repos)

		require.NoError(t, err)
		assert.Len(t, issues, maxItemPages*perPageDefault)
		assert.Equal(t, int32(maxItemPages), atomic.LoadInt32(&requestCount))
	})
}

func repoIssuesPage() string {
	items := make([]string, perPageDefault)
	for i := range items {
		items[i] = fmt.Sprintf(`{"id": %d, "number": %d, "title": "issue-%d", "state": "open"}`, i, i, i)
	}
	return "[" + strings.Join(items, ",") + "]"
}

func TestClient_PullRequests_Pagination(t *testing.T) {
	var requestCount int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusOK)
		if count == 1 {
			items := make([]string, perPageDefault)
			for i := range items {
				items[i] = fmt.Sprintf(`{"id": %d, "number": %d, "title": "pr-%d", "state": "open"}`, i, i, i)
			}
			fmt.Fprintln(w, "["+strings.Join(items, ",")+"]")
			return
		}
		fmt.Fprintln(w, `[{"id": 900, "number": 900, "title": "trailing", "state": "open"}]`)
	})
	client, _ := setupTestClient(t, handler)

	repos := []model.Repository{{Name: "big", FullName: "testuser/big", Owner: "testuser"}}
	prs, err := client.PullRequests(context.Background(), repos)

	require.NoError(t, err)
	assert.Len(t, prs, perPageDefault+1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
}

func TestClient_Commits(t *testing.T) {
	t.Run("treats an empty repository as zero commits", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "/repos/testuser/empty/") {
				w.WriteHeader(http.StatusConflict)
				fmt.Fprintln(w, `{"message": "Git Repository is empty."}`)
				return
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, `[{"sha": "abc123", "commit": {"message": "first\n\nbody", "author": {"name": "Alice", "date": "2026-08-01T10:00:00Z"}}, "author": {"login": "alice"}}]`)
		})
		client, _ := setupTestClient(t, handler)

		repos := []model.Repository{
			{Name: "empty", FullName: "testuser/empty", Owner: "testuser"},
			{Name: "busy", FullName: "testuser/busy", Owner: "testuser"},
		}
		commits, err := client.Commits(context.Background(), repos)

		require.NoError(t, err)
		require.Len(t, commits, 1)
		assert.Equal(t, "abc123", commits[0].SHA)
		assert.Equal(t, "first", commits[0].Message)
		assert.Equal(t, "testuser/busy", commits[0].Repo)
	})
}
