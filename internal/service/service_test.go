// internal/service/service_test.go
package service

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-dashboard/internal/apierr"
	"github-dashboard/internal/cache"
	"github-dashboard/internal/model"
	"github-dashboard/internal/store"
)

var testNow = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

// fakeFetcher serves canned data and counts calls. Setting err fails every
// fetch with that error.
type fakeFetcher struct {
	repos   []model.Repository
	issues  []model.Issue
	prs     []model.PullRequest
	commits []model.Commit
	langs   []model.LanguageCount
	err     error

	repoCalls int32
}

func (f *fakeFetcher) Repos(ctx context.Context) ([]model.Repository, error) {
	atomic.AddInt32(&f.repoCalls, 1)
	return f.repos, f.err
}

func (f *fakeFetcher) Issues(ctx context.Context, _ []model.Repository) ([]model.Issue, error) {
	return f.issues, f.err
}

func (f *fakeFetcher) PullRequests(ctx context.Context, _ []model.Repository) ([]model.PullRequest, error) {
	return f.prs, f.err
}

func (f *fakeFetcher) Commits(ctx context.Context, _ []model.Repository) ([]model.Commit, error) {
	return f.commits, f.err
}

func (f *fakeFetcher) LanguageStats(ctx context.Context) ([]model.LanguageCount, error) {
	return f.langs, f.err
}

func newTestService(t *testing.T, fetcher *fakeFetcher) (*Service, *store.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fileStore, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)
	docs, err := store.New(t.TempDir())
	require.NoError(t, err)

	svc := New(fetcher, cache.New(fileStore, logger), docs, logger, "testuser", 5*time.Minute, time.Hour, "file")
	svc.now = func() time.Time { return testNow }
	return svc, docs
}

func sampleData() *fakeFetcher {
	return &fakeFetcher{
		repos: []model.Repository{
			{FullName: "testuser/app", Owner: "testuser", IsOwner: true, Stars: 10, UpdatedAt: testNow.AddDate(0, 0, -1)},
		},
		issues: []model.Issue{
			{ID: 1, Repo: "testuser/app", Title: "bug", State: model.StateOpen, CreatedAt: testNow.AddDate(0, 0, -2), UpdatedAt: testNow.AddDate(0, 0, -2)},
		},
		prs: []model.PullRequest{
			{ID: 2, Repo: "testuser/app", Title: "feature", State: model.StateOpen, CreatedAt: testNow.AddDate(0, 0, -1), UpdatedAt: testNow.AddDate(0, 0, -1)},
		},
		commits: []model.Commit{
			{SHA: "abc", Repo: "testuser/app", Message: "init", Date: testNow.AddDate(0, 0, -3)},
		},
		langs: []model.LanguageCount{{Name: "Go", Count: 1}},
	}
}

func TestService_Repos_Caching(t *testing.T) {
	fetcher := sampleData()
	svc, _ := newTestService(t, fetcher)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		repos, err := svc.Repos(ctx, false)
		require.NoError(t, err)
		assert.Len(t, repos, 1)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.repoCalls))

	_, err := svc.Repos(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetcher.repoCalls), "force bypasses the cache")
}

func TestService_RateLimitFallsBackToSnapshot(t *testing.T) {
	fetcher := sampleData()
	svc, docs := newTestService(t, fetcher)
	ctx := context.Background()

	require.NoError(t, docs.SaveSnapshot(model.Snapshot{
		SyncedAt: testNow.AddDate(0, 0, -1),
		Repos:    []model.Repository{{FullName: "testuser/from-snapshot"}},
	}))

	fetcher.err = &apierr.RateLimitError{RetryAfter: time.Hour}

	repos, err := svc.Repos(ctx, true)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "testuser/from-snapshot", repos[0].FullName)
}

func TestService_RateLimitWithoutSnapshotFails(t *testing.T) {
	fetcher := sampleData()
	fetcher.err = &apierr.RateLimitError{RetryAfter: time.Hour}
	svc, _ := newTestService(t, fetcher)

	_, err := svc.Repos(context.Background(), true)

	var rateErr *apierr.RateLimitError
	require.ErrorAs(t, err, &rateErr)
}

func TestService_Stats(t *testing.T) {
	fetcher := sampleData()
	svc, _ := newTestService(t, fetcher)

	overview, err := svc.Stats(context.Background(), false)

	require.NoError(t, err)
	assert.Equal(t, 1, overview.Totals.Repos)
	assert.Equal(t, 1, overview.Totals.OpenIssues)
	assert.Equal(t, []model.LanguageCount{{Name: "Go", Count: 1}}, overview.LanguageStats)
}

func TestService_Sync(t *testing.T) {
	fetcher := sampleData()
	svc, docs := newTestService(t, fetcher)

	report, err := svc.Sync(context.Background())

	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.Equal(t, "file", report.Mode)
	assert.Equal(t, model.SyncCounts{Repos: 1, Issues: 1, PRs: 1, Commits: 1, Timeline: 3}, report.Stats)

	snap, ok, err := docs.Snapshot()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testNow, snap.SyncedAt)
	assert.Len(t, snap.Timeline, 3)
}

func TestService_Ops_PrefersSnapshot(t *testing.T) {
	fetcher := sampleData()
	svc, docs := newTestService(t, fetcher)

	require.NoError(t, docs.SaveSnapshot(model.Snapshot{
		SyncedAt: testNow,
		Repos:    []model.Repository{{FullName: "u/one"}, {FullName: "u/two"}},
	}))

	summary, err := svc.Ops(context.Background(), false)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Counts.Repos, "snapshot data served without touching the fetcher")
	assert.Zero(t, atomic.LoadInt32(&fetcher.repoCalls))
}

func TestService_RunAutomation(t *testing.T) {
	fetcher := sampleData()
	fetcher.issues = []model.Issue{
		{ID: 1, Repo: "testuser/app", Title: "ancient bug", State: model.StateOpen, UpdatedAt: testNow.AddDate(0, 0, -30)},
	}
	svc, docs := newTestService(t, fetcher)

	_, err := docs.CreateRule(model.Rule{
		Name:    "stale issues",
		Scope:   model.ScopeGlobal,
		Enabled: true,
		Conditions: model.RuleConditions{
			Target: model.TargetIssue,
			Type:   model.CondStaleDays,
			Value:  "14",
		},
	})
	require.NoError(t, err)

	t.Run("dry run reports matches without persisting", func(t *testing.T) {
		report, err := svc.RunAutomation(context.Background(), false, false)
		require.NoError(t, err)
		assert.True(t, report.OK)
		assert.Equal(t, 1, report.Rules)
		require.Len(t, report.Results, 1)
		assert.Zero(t, report.Applied)

		alerts, err := docs.Alerts()
		require.NoError(t, err)
		assert.Empty(t, alerts)
	})

	t.Run("apply persists alerts", func(t *testing.T) {
		report, err := svc.RunAutomation(context.Background(), true, false)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Applied)

		alerts, err := docs.Alerts()
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, "stale issues: ancient bug", alerts[0].Title)
		assert.Equal(t, "automation", alerts[0].Source)
	})

	t.Run("repeated applies append without dedup", func(t *testing.T) {
		_, err := svc.RunAutomation(context.Background(), true, false)
		require.NoError(t, err)

		alerts, err := docs.Alerts()
		require.NoError(t, err)
		assert.Len(t, alerts, 2)
	})

	t.Run("disabled rules stay out of the rule count", func(t *testing.T) {
		_, err := docs.CreateRule(model.Rule{
			Name:    "muted",
			Scope:   model.ScopeGlobal,
			Enabled: false,
			Conditions: model.RuleConditions{
				Target: model.TargetIssue,
				Type:   model.CondStaleDays,
				Value:  "1",
			},
		})
		require.NoError(t, err)

		report, err := svc.RunAutomation(context.Background(), false, false)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Rules)
	})
}
