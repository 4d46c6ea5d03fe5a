package stats

import (
	"fmt"
	"sort"

	"github-dashboard/internal/model"
)

// TimelineLimit is the maximum number of events the unified timeline keeps.
const TimelineLimit = 200

// BuildTimeline merges issues, pull requests and commits into a single
// reverse-chronological event stream. A closed or merged item contributes
// both its open event and its terminal event. Events without a usable
// timestamp are dropped. The result is capped at limit (TimelineLimit when
// limit <= 0).
func BuildTimeline(issues []model.Issue, prs []model.PullRequest, commits []model.Commit, limit int) []model.TimelineEvent {
	if limit <= 0 {
		limit = TimelineLimit
	}

	events := make([]model.TimelineEvent, 0, len(issues)+len(prs)+len(commits))

	for _, issue := range issues {
		events = append(events, model.TimelineEvent{
			ID:    fmt.Sprintf("issue-open-%d", issue.ID),
			Type:  model.EventIssueOpened,
			Repo:  issue.Repo,
			Title: issue.Title,
			Actor: actorLogin(issue.Author),
			Date:  issue.CreatedAt,
			URL:   issue.URL,
		})
		if issue.State == model.StateClosed && issue.ClosedAt != nil {
			events = append(events, model.TimelineEvent{
				ID:    fmt.Sprintf("issue-closed-%d", issue.ID),
				Type:  model.EventIssueClosed,
				Repo:  issue.Repo,
				Title: issue.Title,
				Actor: closerFor(issue),
				Date:  *issue.ClosedAt,
				URL:   issue.URL,
			})
		}
	}

	for _, pr := range prs {
		events = append(events, model.TimelineEvent{
			ID:    fmt.Sprintf("pr-open-%d", pr.ID),
			Type:  model.EventPROpened,
			Repo:  pr.Repo,
			Title: pr.Title,
			Actor: actorLogin(pr.Author),
			Date:  pr.CreatedAt,
			URL:   pr.URL,
		})
		// Terminal events credit the assignee, as with issue closes.
		switch {
		case pr.MergedAt != nil:
			events = append(events, model.TimelineEvent{
				ID:    fmt.Sprintf("pr-merged-%d", pr.ID),
				Type:  model.EventPRMerged,
				Repo:  pr.Repo,
				Title: pr.Title,
				Actor: actorLogin(pr.Assignee),
				Date:  *pr.MergedAt,
				URL:   pr.URL,
			})
		case pr.State == model.StateClosed && pr.ClosedAt != nil:
			events = append(events, model.TimelineEvent{
				ID:    fmt.Sprintf("pr-closed-%d", pr.ID),
				Type:  model.EventPRClosed,
				Repo:  pr.Repo,
				Title: pr.Title,
				Actor: actorLogin(pr.Assignee),
				Date:  *pr.ClosedAt,
				URL:   pr.URL,
			})
		}
	}

	for _, commit := range commits {
		events = append(events, model.TimelineEvent{
			ID:    "commit-" + commit.SHA,
			Type:  model.EventCommit,
			Repo:  commit.Repo,
			Title: commit.Message,
			Actor: actorLogin(commit.Author),
			Date:  commit.Date,
			URL:   commit.URL,
		})
	}

	kept := events[:0]
	for _, ev := range events {
		if !ev.Date.IsZero() {
			kept = append(kept, ev)
		}
	}
	events = kept

	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.After(events[j].Date) })
	if len(events) > limit {
		events = events[:limit]
	}
	return events
}

// closerFor picks the actor for an issue-closed event. The close actor is
// not part of the issue payload, so the assignee stands in.
func closerFor(issue model.Issue) string {
	if issue.Assignee != nil && issue.Assignee.Login != "" {
		return issue.Assignee.Login
	}
	return "unknown"
}

func actorLogin(a *model.Actor) string {
	if a == nil || a.Login == "" {
		return "unknown"
	}
	return a.Login
}
