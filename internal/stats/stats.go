// internal/stats/stats.go
//
// Package stats derives the aggregate dashboard view and the unified
// activity timeline from normalized entities. Everything here is pure.
package stats

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github-dashboard/internal/model"
)

const (
	topRepoCount       = 5
	recentUpdateWindow = 7 * 24 * time.Hour
	recentUpdateCount  = 8
	languageCount      = 8
	activityBuckets    = 14
)

// Build computes the dashboard stats from the current snapshot data.
// The language histogram here is the local fallback; callers may replace it
// with the richer API-derived variant.
func Build(repos []model.Repository, issues []model.Issue, prs []model.PullRequest, commits []model.Commit, now time.Time) model.Stats {
	ownerCount := lo.CountBy(repos, func(r model.Repository) bool { return r.IsOwner })

	totals := model.StatsTotals{
		Repos:             len(repos),
		OwnerRepos:        ownerCount,
		CollaboratorRepos: len(repos) - ownerCount,
		OpenIssues:        lo.CountBy(issues, func(i model.Issue) bool { return i.State == model.StateOpen }),
		ClosedIssues:      lo.CountBy(issues, func(i model.Issue) bool { return i.State == model.StateClosed }),
		OpenPRs:           lo.CountBy(prs, func(p model.PullRequest) bool { return p.State == model.StateOpen }),
		MergedPRs:         lo.CountBy(prs, func(p model.PullRequest) bool { return p.State == model.StateMerged }),
		Stars:             lo.SumBy(repos, func(r model.Repository) int { return r.Stars }),
		Forks:             lo.SumBy(repos, func(r model.Repository) int { return r.Forks }),
	}

	return model.Stats{
		Totals:        totals,
		TopRepos:      topRepos(repos),
		RecentUpdates: recentUpdates(repos, now),
		LanguageStats: SummarizeLanguages(repos),
		Activity:      buildActivity(commits),
	}
}

// topRepos returns the top repositories by star count. Ties keep the
// original list order.
func topRepos(repos []model.Repository) []model.Repository {
	sorted := make([]model.Repository, len(repos))
	copy(sorted, repos)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Stars > sorted[j].Stars })
	if len(sorted) > topRepoCount {
		sorted = sorted[:topRepoCount]
	}
	return sorted
}

// recentUpdates returns repositories updated within the last seven days,
// newest first, capped at eight.
func recentUpdates(repos []model.Repository, now time.Time) []model.Repository {
	cutoff := now.Add(-recentUpdateWindow)
	recent := lo.Filter(repos, func(r model.Repository, _ int) bool {
		return !r.UpdatedAt.Before(cutoff)
	})
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].UpdatedAt.After(recent[j].UpdatedAt) })
	if len(recent) > recentUpdateCount {
		recent = recent[:recentUpdateCount]
	}
	return recent
}

// SummarizeLanguages builds the primary-language histogram over the fetched
// repositories, top 8 by count. Ties keep first-encountered order. This is
// the cheap local fallback for the GraphQL-based variant.
func SummarizeLanguages(repos []model.Repository) []model.LanguageCount {
	totals := map[string]int{}
	var order []string
	for _, repo := range repos {
		lang := repo.Language
		if lang == "" {
			lang = "Unknown"
		}
		if _, seen := totals[lang]; !seen {
			order = append(order, lang)
		}
		totals[lang]++
	}

	stats := make([]model.LanguageCount, 0, len(order))
	for _, name := range order {
		stats = append(stats, model.LanguageCount{Name: name, Count: totals[name]})
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Count > stats[j].Count })
	if len(stats) > languageCount {
		stats = stats[:languageCount]
	}
	return stats
}

// buildActivity buckets commits by UTC calendar day and keeps the most
// recent 14 buckets. Only days with at least one commit appear.
func buildActivity(commits []model.Commit) []model.ActivityBucket {
	counts := map[string]int{}
	for _, commit := range commits {
		day := commit.Date.UTC().Format("2006-01-02")
		counts[day]++
	}

	buckets := make([]model.ActivityBucket, 0, len(counts))
	for day, count := range counts {
		buckets = append(buckets, model.ActivityBucket{Date: day, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Date < buckets[j].Date })
	if len(buckets) > activityBuckets {
		buckets = buckets[len(buckets)-activityBuckets:]
	}
	return buckets
}
