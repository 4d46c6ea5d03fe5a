// internal/ops/ops.go
//
// Package ops builds the staleness and backlog summary. Like stats, it is
// pure over already-fetched entities.
package ops

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github-dashboard/internal/model"
)

// Staleness thresholds and list caps.
const (
	staleIssueDays = 14
	stalePRDays    = 7
	noCommitDays   = 30

	staleIssueCap  = 10
	stalePRCap     = 10
	quietRepoCap   = 10
	reviewQueueCap = 8
)

// Summarize computes the ops view: stale open issues and PRs, repositories
// with no recent commits, and the per-repo review queue. The stale and
// quiet lists keep the input order; only the caps trim them. The quiet-repo
// count covers the capped list, while the stale counts cover everything.
func Summarize(repos []model.Repository, issues []model.Issue, prs []model.PullRequest, commits []model.Commit, now time.Time) model.OpsSummary {
	openIssues := lo.Filter(issues, func(i model.Issue, _ int) bool { return i.State == model.StateOpen })
	openPRs := lo.Filter(prs, func(p model.PullRequest, _ int) bool { return p.State == model.StateOpen })

	staleIssues := lo.Filter(openIssues, func(i model.Issue, _ int) bool {
		return daysSince(i.UpdatedAt, now) >= staleIssueDays
	})

	stalePRs := lo.Filter(openPRs, func(p model.PullRequest, _ int) bool {
		return daysSince(p.UpdatedAt, now) >= stalePRDays
	})

	quiet := capSlice(quietRepos(repos, commits, now), quietRepoCap)
	queue := reviewQueue(openPRs)

	summary := model.OpsSummary{
		GeneratedAt: now,
		Counts: model.OpsCounts{
			Repos:                len(repos),
			OpenIssues:           len(openIssues),
			OpenPRs:              len(openPRs),
			StaleIssues:          len(staleIssues),
			StalePRs:             len(stalePRs),
			ReposNoRecentCommits: len(quiet),
		},
		StaleIssues:          capSlice(staleIssues, staleIssueCap),
		StalePRs:             capSlice(stalePRs, stalePRCap),
		ReposNoRecentCommits: quiet,
		ReviewQueue:          capSlice(queue, reviewQueueCap),
	}
	return summary
}

// quietRepos lists repositories whose latest known commit is older than the
// no-commit threshold, in repository order. Repositories with no commits at
// all count as quiet.
func quietRepos(repos []model.Repository, commits []model.Commit, now time.Time) []model.RepoLastCommit {
	latest := LatestCommitByRepo(commits)

	var quiet []model.RepoLastCommit
	for _, repo := range repos {
		last, ok := latest[repo.FullName]
		if !ok {
			quiet = append(quiet, model.RepoLastCommit{FullName: repo.FullName})
			continue
		}
		if daysSince(last, now) >= noCommitDays {
			when := last
			quiet = append(quiet, model.RepoLastCommit{FullName: repo.FullName, LastCommitAt: &when})
		}
	}
	return quiet
}

// LatestCommitByRepo maps each repository fullName to its most recent
// commit date.
func LatestCommitByRepo(commits []model.Commit) map[string]time.Time {
	latest := make(map[string]time.Time, len(commits))
	for _, commit := range commits {
		if commit.Date.After(latest[commit.Repo]) {
			latest[commit.Repo] = commit.Date
		}
	}
	return latest
}

// reviewQueue counts open PRs per repository, busiest first. Ties keep the
// order repositories first appeared in the PR list.
func reviewQueue(openPRs []model.PullRequest) []model.ReviewQueueEntry {
	counts := map[string]int{}
	var order []string
	for _, pr := range openPRs {
		if _, seen := counts[pr.Repo]; !seen {
			order = append(order, pr.Repo)
		}
		counts[pr.Repo]++
	}

	queue := make([]model.ReviewQueueEntry, 0, len(order))
	for _, repo := range order {
		queue = append(queue, model.ReviewQueueEntry{Repo: repo, Count: counts[repo]})
	}
	sort.SliceStable(queue, func(i, j int) bool { return queue[i].Count > queue[j].Count })
	return queue
}

func capSlice[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func daysSince(then, now time.Time) int {
	if then.IsZero() || then.After(now) {
		return 0
	}
	return int(now.Sub(then).Hours() / 24)
}
