// internal/service/service.go
//
// Package service implements the dashboard operations on top of the GitHub
// client, the cache, and the document store. Every read prefers cached or
// snapshot data over live API calls; only Sync and force refreshes go to
// the network unconditionally.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github-dashboard/internal/apierr"
	"github-dashboard/internal/cache"
	"github-dashboard/internal/model"
	"github-dashboard/internal/ops"
	"github-dashboard/internal/rules"
	"github-dashboard/internal/stats"
	"github-dashboard/internal/store"
)

// Fetcher is the GitHub access surface the service depends on.
type Fetcher interface {
	Repos(ctx context.Context) ([]model.Repository, error)
	Issues(ctx context.Context, repos []model.Repository) ([]model.Issue, error)
	PullRequests(ctx context.Context, repos []model.Repository) ([]model.PullRequest, error)
	Commits(ctx context.Context, repos []model.Repository) ([]model.Commit, error)
	LanguageStats(ctx context.Context) ([]model.LanguageCount, error)
}

// Service coordinates fetching, caching, and derived views.
type Service struct {
	fetcher    Fetcher
	cache      *cache.Cache
	docs       *store.Store
	logger     *slog.Logger
	username   string
	ttl        time.Duration
	commitsTTL time.Duration
	syncMode   string
	now        func() time.Time
}

// New builds a Service. syncMode is recorded in sync reports and names the
// durable backend in use ("file" or "db").
func New(fetcher Fetcher, c *cache.Cache, docs *store.Store, logger *slog.Logger, username string, ttl, commitsTTL time.Duration, syncMode string) *Service {
	return &Service{
		fetcher:    fetcher,
		cache:      c,
		docs:       docs,
		logger:     logger,
		username:   username,
		ttl:        ttl,
		commitsTTL: commitsTTL,
		syncMode:   syncMode,
		now:        time.Now,
	}
}

// Repos returns the repository list, cached. When GitHub rate-limits a live
// fetch, the last snapshot is served instead.
func (s *Service) Repos(ctx context.Context, force bool) ([]model.Repository, error) {
	key := fmt.Sprintf("repos_%s", s.username)
	repos, err := cache.Fetch(ctx, s.cache, key, s.ttl, force, s.fetcher.Repos)
	if err != nil {
		if snap, ok := s.snapshotFallback(err); ok {
			return snap.Repos, nil
		}
		return nil, err
	}
	return repos, nil
}

// Issues returns issues across all repositories, cached.
func (s *Service) Issues(ctx context.Context, force bool) ([]model.Issue, error) {
	repos, err := s.Repos(ctx, force)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("issues_%d", len(repos))
	issues, err := cache.Fetch(ctx, s.cache, key, s.ttl, force, func(ctx context.Context) ([]model.Issue, error) {
		return s.fetcher.Issues(ctx, repos)
	})
	if err != nil {
		if snap, ok := s.snapshotFallback(err); ok {
			return snap.Issues, nil
		}
		return nil, err
	}
	return issues, nil
}

// PullRequests returns pull requests across all repositories, cached.
func (s *Service) PullRequests(ctx context.Context, force bool) ([]model.PullRequest, error) {
	repos, err := s.Repos(ctx, force)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("prs_%d", len(repos))
	prs, err := cache.Fetch(ctx, s.cache, key, s.ttl, force, func(ctx context.Context) ([]model.PullRequest, error) {
		return s.fetcher.PullRequests(ctx, repos)
	})
	if err != nil {
		if snap, ok := s.snapshotFallback(err); ok {
			return snap.PRs, nil
		}
		return nil, err
	}
	return prs, nil
}

// Commits returns recent commits across all repositories, cached with the
// longer commits TTL.
func (s *Service) Commits(ctx context.Context, force bool) ([]model.Commit, error) {
	repos, err := s.Repos(ctx, force)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("commits_%d", len(repos))
	commits, err := cache.Fetch(ctx, s.cache, key, s.commitsTTL, force, func(ctx context.Context) ([]model.Commit, error) {
		return s.fetcher.Commits(ctx, repos)
	})
	if err != nil {
		if snap, ok := s.snapshotFallback(err); ok {
			return snap.Commits, nil
		}
		return nil, err
	}
	return commits, nil
}

// Stats returns the aggregate dashboard view, cached. The language
// histogram comes from the GraphQL API when reachable, falling back to the
// primary languages of the fetched repositories.
func (s *Service) Stats(ctx context.Context, force bool) (model.Stats, error) {
	return cache.Fetch(ctx, s.cache, "stats_overview", s.ttl, force, func(ctx context.Context) (model.Stats, error) {
		data, err := s.loadData(ctx, force)
		if err != nil {
			return model.Stats{}, err
		}

		overview := stats.Build(data.Repos, data.Issues, data.PRs, data.Commits, s.now())
		if langs, err := s.fetcher.LanguageStats(ctx); err != nil {
			s.logger.Warn("language stats unavailable, using repo languages", "error", err)
		} else if len(langs) > 0 {
			overview.LanguageStats = langs
		}
		return overview, nil
	})
}

// Timeline returns the merged activity feed, cached with the commits TTL.
func (s *Service) Timeline(ctx context.Context, force bool) ([]model.TimelineEvent, error) {
	return cache.Fetch(ctx, s.cache, "timeline_events", s.commitsTTL, force, func(ctx context.Context) ([]model.TimelineEvent, error) {
		data, err := s.loadData(ctx, force)
		if err != nil {
			return nil, err
		}
		return stats.BuildTimeline(data.Issues, data.PRs, data.Commits, 0), nil
	})
}

// Ops returns the staleness and backlog summary. It is derived on every
// call from (usually cached) entity data.
func (s *Service) Ops(ctx context.Context, force bool) (model.OpsSummary, error) {
	data, err := s.loadData(ctx, force)
	if err != nil {
		return model.OpsSummary{}, err
	}
	return ops.Summarize(data.Repos, data.Issues, data.PRs, data.Commits, s.now()), nil
}

// Sync fetches everything live, rebuilds the timeline, and saves a new
// snapshot.
func (s *Service) Sync(ctx context.Context) (model.SyncReport, error) {
	started := s.now()
	s.logger.Info("sync started", "username", s.username)

	repos, err := s.Repos(ctx, true)
	if err != nil {
		return model.SyncReport{}, fmt.Errorf("syncing repos: %w", err)
	}
	issues, err := s.Issues(ctx, true)
	if err != nil {
		return model.SyncReport{}, fmt.Errorf("syncing issues: %w", err)
	}
	prs, err := s.PullRequests(ctx, true)
	if err != nil {
		return model.SyncReport{}, fmt.Errorf("syncing pull requests: %w", err)
	}
	commits, err := s.Commits(ctx, true)
	if err != nil {
		return model.SyncReport{}, fmt.Errorf("syncing commits: %w", err)
	}

	timeline := stats.BuildTimeline(issues, prs, commits, 0)
	snap := model.Snapshot{
		SyncedAt: s.now(),
		Repos:    repos,
		Issues:   issues,
		PRs:      prs,
		Commits:  commits,
		Timeline: timeline,
	}
	if err := s.docs.SaveSnapshot(snap); err != nil {
		return model.SyncReport{}, fmt.Errorf("saving snapshot: %w", err)
	}

	report := model.SyncReport{
		OK:   true,
		Mode: s.syncMode,
		Stats: model.SyncCounts{
			Repos:    len(repos),
			Issues:   len(issues),
			PRs:      len(prs),
			Commits:  len(commits),
			Timeline: len(timeline),
		},
	}
	s.logger.Info("sync finished",
		"duration", s.now().Sub(started).String(),
		"repos", report.Stats.Repos,
		"issues", report.Stats.Issues,
		"prs", report.Stats.PRs,
		"commits", report.Stats.Commits,
	)
	return report, nil
}

// RunAutomation evaluates all stored rules. With apply set, matches whose
// action is an alert are persisted to the alert list.
func (s *Service) RunAutomation(ctx context.Context, apply, force bool) (model.AutomationReport, error) {
	ruleList, err := s.docs.Rules()
	if err != nil {
		return model.AutomationReport{}, err
	}

	data, err := s.loadData(ctx, force)
	if err != nil {
		return model.AutomationReport{}, err
	}

	now := s.now()
	results := rules.Evaluate(ruleList, data, now)
	enabled := lo.CountBy(ruleList, func(r model.Rule) bool { return r.Enabled })

	applied := 0
	if apply {
		alerts := rules.ToAlerts(results, now)
		applied, err = s.docs.PrependAlerts(alerts)
		if err != nil {
			return model.AutomationReport{}, fmt.Errorf("persisting alerts: %w", err)
		}
	}

	s.logger.Info("automation run", "rules", enabled, "matches", len(results), "applied", applied)
	return model.AutomationReport{
		OK:          true,
		GeneratedAt: now,
		Rules:       enabled,
		Results:     results,
		Applied:     applied,
	}, nil
}

// loadData assembles the entity set for derived views. Without force, a
// saved snapshot is preferred over touching the cache or the API.
func (s *Service) loadData(ctx context.Context, force bool) (rules.Data, error) {
	if !force {
		if snap, ok, err := s.docs.Snapshot(); err == nil && ok {
			return rules.Data{Repos: snap.Repos, Issues: snap.Issues, PRs: snap.PRs, Commits: snap.Commits}, nil
		}
	}

	repos, err := s.Repos(ctx, force)
	if err != nil {
		return rules.Data{}, err
	}
	issues, err := s.Issues(ctx, force)
	if err != nil {
		return rules.Data{}, err
	}
	prs, err := s.PullRequests(ctx, force)
	if err != nil {
		return rules.Data{}, err
	}
	commits, err := s.Commits(ctx, force)
	if err != nil {
		return rules.Data{}, err
	}
	return rules.Data{Repos: repos, Issues: issues, PRs: prs, Commits: commits}, nil
}

// snapshotFallback serves the saved snapshot when a live fetch was refused
// by the rate limiter. Other errors are never masked.
func (s *Service) snapshotFallback(fetchErr error) (model.Snapshot, bool) {
	var rateErr *apierr.RateLimitError
	if !errors.As(fetchErr, &rateErr) {
		return model.Snapshot{}, false
	}
	snap, ok, err := s.docs.Snapshot()
	if err != nil || !ok {
		return model.Snapshot{}, false
	}
	s.logger.Warn("rate limited, serving snapshot", "syncedAt", snap.SyncedAt, "error", fetchErr)
	return snap, true
}
