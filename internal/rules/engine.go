// internal/rules/engine.go
//
// Package rules evaluates user-authored automation rules against fetched
// data and converts the matches into alerts.
package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github-dashboard/internal/model"
)

// Data is the entity set one evaluation runs over.
type Data struct {
	Repos   []model.Repository
	Issues  []model.Issue
	PRs     []model.PullRequest
	Commits []model.Commit
}

// Evaluate runs every enabled rule over the data and returns all matches.
// Rules never mutate anything; side effects happen only when the caller
// applies the produced actions.
func Evaluate(rules []model.Rule, data Data, now time.Time) []model.RuleResult {
	latestCommit := latestCommitByRepo(data.Commits)

	var results []model.RuleResult
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		switch rule.Conditions.Target {
		case model.TargetIssue:
			for _, issue := range data.Issues {
				if issue.State != model.StateOpen || !inScope(rule, issue.Repo) {
					continue
				}
				if reason, ok := matchItem(rule.Conditions, issue.Title, issue.Labels, issue.UpdatedAt, now); ok {
					results = append(results, newResult(rule, model.TargetIssue, issue.Repo, issue.Title, issue.Number, issue.URL, reason))
				}
			}
		case model.TargetPR:
			for _, pr := range data.PRs {
				if pr.State != model.StateOpen || !inScope(rule, pr.Repo) {
					continue
				}
				if reason, ok := matchItem(rule.Conditions, pr.Title, pr.Labels, pr.UpdatedAt, now); ok {
					results = append(results, newResult(rule, model.TargetPR, pr.Repo, pr.Title, pr.Number, pr.URL, reason))
				}
			}
		case model.TargetRepo:
			for _, repo := range data.Repos {
				if !inScope(rule, repo.FullName) {
					continue
				}
				if reason, ok := matchRepo(rule.Conditions, repo, latestCommit[repo.FullName], now); ok {
					results = append(results, newResult(rule, model.TargetRepo, repo.FullName, repo.FullName, 0, repo.URL, reason))
				}
			}
		}
	}
	return results
}

// ToAlerts converts matches with an alert action into persisted alerts,
// newest evaluation first. Matches carrying a non-alert action are skipped.
func ToAlerts(results []model.RuleResult, now time.Time) []model.Alert {
	var alerts []model.Alert
	for _, result := range results {
		if result.Action.Type != model.ActionAlert {
			continue
		}
		alerts = append(alerts, model.Alert{
			ID:         uuid.NewString(),
			Type:       model.ActionAlert,
			Severity:   result.Action.Severity,
			Title:      fmt.Sprintf("%s: %s", result.RuleName, result.Title),
			Message:    result.Action.Message,
			Repo:       result.Repo,
			CreatedAt:  now,
			Source:     "automation",
			RuleID:     result.RuleID,
			RuleName:   result.RuleName,
			TargetType: result.TargetType,
			TargetURL:  result.URL,
		})
	}
	return alerts
}

// inScope reports whether a rule applies to the given repository. An empty
// scope behaves like global.
func inScope(rule model.Rule, fullName string) bool {
	return rule.Scope == "" || rule.Scope == model.ScopeGlobal || rule.Scope == fullName
}

// matchItem applies issue/PR conditions. The returned reason is a short
// human-readable explanation attached to the match.
func matchItem(cond model.RuleConditions, title string, labels []model.Label, updatedAt, now time.Time) (string, bool) {
	switch cond.Type {
	case model.CondStaleDays:
		threshold, ok := cond.Value.Float()
		if !ok {
			return "", false
		}
		age := daysSince(updatedAt, now)
		if float64(age) >= threshold {
			return fmt.Sprintf("no updates in %d days", age), true
		}
	case model.CondLabelContains:
		needle := strings.ToLower(cond.Value.String())
		if needle == "" {
			return "", false
		}
		for _, label := range labels {
			if strings.Contains(strings.ToLower(label.Name), needle) {
				return fmt.Sprintf("label %q matches %q", label.Name, cond.Value.String()), true
			}
		}
	case model.CondTitleContains:
		needle := strings.ToLower(cond.Value.String())
		if needle != "" && strings.Contains(strings.ToLower(title), needle) {
			return fmt.Sprintf("title contains %q", cond.Value.String()), true
		}
	}
	return "", false
}

// matchRepo applies repository conditions. lastCommit is zero when the
// repository has no fetched commits, which counts as inactive.
func matchRepo(cond model.RuleConditions, repo model.Repository, lastCommit time.Time, now time.Time) (string, bool) {
	switch cond.Type {
	case model.CondNoCommitDays:
		threshold, ok := cond.Value.Float()
		if !ok {
			return "", false
		}
		if lastCommit.IsZero() {
			return "no commits found", true
		}
		age := daysSince(lastCommit, now)
		if float64(age) >= threshold {
			return fmt.Sprintf("no commits in %d days", age), true
		}
	case model.CondLanguageIs:
		needle := strings.ToLower(cond.Value.String())
		if needle != "" && strings.Contains(strings.ToLower(repo.Language), needle) {
			return fmt.Sprintf("language is %s", repo.Language), true
		}
	case model.CondStarsAbove:
		threshold, ok := cond.Value.Float()
		if !ok {
			return "", false
		}
		if float64(repo.Stars) >= threshold {
			return fmt.Sprintf("%d stars", repo.Stars), true
		}
	}
	return "", false
}

func newResult(rule model.Rule, targetType, repo, title string, number int, url, reason string) model.RuleResult {
	return model.RuleResult{
		ID:         uuid.NewString(),
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		TargetType: targetType,
		Repo:       repo,
		Title:      title,
		Number:     number,
		URL:        url,
		Reason:     reason,
		Action:     buildAction(rule, targetType, reason),
	}
}

// buildAction fills in defaults for a rule's action: alert type, low
// severity, and a generated message when the rule does not set one.
func buildAction(rule model.Rule, targetType, reason string) model.RuleAction {
	action := model.RuleAction{
		Type:     rule.Actions.Type,
		Severity: rule.Actions.Severity,
		Message:  rule.Actions.Message,
	}
	if action.Type == "" {
		action.Type = model.ActionAlert
	}
	if action.Severity == "" {
		action.Severity = "low"
	}
	if action.Message == "" {
		action.Message = fmt.Sprintf("automated check on %s: %s", targetLabel(targetType), reason)
	}
	return action
}

func targetLabel(targetType string) string {
	switch targetType {
	case model.TargetIssue:
		return "issue"
	case model.TargetPR:
		return "pull request"
	default:
		return "repository"
	}
}

func latestCommitByRepo(commits []model.Commit) map[string]time.Time {
	latest := make(map[string]time.Time, len(commits))
	for _, commit := range commits {
		if commit.Date.After(latest[commit.Repo]) {
			latest[commit.Repo] = commit.Date
		}
	}
	return latest
}

func daysSince(then, now time.Time) int {
	if then.IsZero() || then.After(now) {
		return 0
	}
	return int(now.Sub(then).Hours() / 24)
}
