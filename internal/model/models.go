// internal/model/models.go
package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Repository represents the normalized metadata of a GitHub repository.
// FullName ("owner/name") is the stable key used by every other entity.
type Repository struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	FullName    string    `json:"fullName"`
	Owner       string    `json:"owner"`
	IsOwner     bool      `json:"isOwner"`
	IsPrivate   bool      `json:"isPrivate"`
	Visibility  string    `json:"visibility"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Stars       int       `json:"stars"`
	Forks       int       `json:"forks"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	URL         string    `json:"url"`
}

// Actor is a person reference attached to issues, PRs, and commits.
type Actor struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatarUrl"`
}

// Label is an issue/PR label.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Issue states. Merged only ever applies to pull requests.
const (
	StateOpen   = "open"
	StateClosed = "closed"
	StateMerged = "merged"
)

// Issue is a normalized GitHub issue. Repo is the repository fullName.
type Issue struct {
	ID        int64      `json:"id"`
	Number    int        `json:"number"`
	Repo      string     `json:"repo"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	Labels    []Label    `json:"labels"`
	Assignee  *Actor     `json:"assignee"`
	Author    *Actor     `json:"author"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ClosedAt  *time.Time `json:"closedAt"`
	URL       string     `json:"url"`
}

// PullRequest is a normalized GitHub pull request. State is "merged" when
// MergedAt is set, otherwise it mirrors the upstream open/closed state.
type PullRequest struct {
	ID        int64      `json:"id"`
	Number    int        `json:"number"`
	Repo      string     `json:"repo"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	Labels    []Label    `json:"labels"`
	Assignee  *Actor     `json:"assignee"`
	Author    *Actor     `json:"author"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ClosedAt  *time.Time `json:"closedAt"`
	MergedAt  *time.Time `json:"mergedAt"`
	URL       string     `json:"url"`
}

// Commit is a normalized commit. Message holds only the subject line and
// Date is the author date.
type Commit struct {
	SHA     string    `json:"sha"`
	Repo    string    `json:"repo"`
	RepoURL string    `json:"repoUrl"`
	Message string    `json:"message"`
	Author  *Actor    `json:"author"`
	Date    time.Time `json:"date"`
	URL     string    `json:"url"`
}

// Timeline event types.
const (
	EventCommit      = "commit"
	EventIssueOpened = "issue_opened"
	EventIssueClosed = "issue_closed"
	EventPROpened    = "pr_opened"
	EventPRMerged    = "pr_merged"
	EventPRClosed    = "pr_closed"
)

// TimelineEvent is a synthetic feed entry derived from issues, PRs, and
// commits. The composite ID is unique across the merged feed.
type TimelineEvent struct {
	ID    string    `json:"id"`
	Type  string    `json:"type"`
	Repo  string    `json:"repo"`
	Title string    `json:"title"`
	Actor string    `json:"actor"`
	Date  time.Time `json:"date"`
	URL   string    `json:"url"`
}

// ConditionValue tolerates both string and numeric JSON, since rules written
// through the UI may carry either ("14" or 14).
type ConditionValue string

// UnmarshalJSON implements json.Unmarshaler.
func (v *ConditionValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = ConditionValue(s)
		return nil
	}
	if string(data) == "null" {
		*v = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = ConditionValue(n.String())
	return nil
}

// Float returns the numeric value, or false when it does not parse.
func (v ConditionValue) Float() (float64, bool) {
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// String returns the raw string form.
func (v ConditionValue) String() string { return string(v) }

// Rule targets, condition types, scopes, and action types.
const (
	TargetIssue = "issue"
	TargetPR    = "pr"
	TargetRepo  = "repo"

	CondStaleDays     = "staleDays"
	CondLabelContains = "labelContains"
	CondTitleContains = "titleContains"
	CondNoCommitDays  = "noCommitDays"
	CondLanguageIs    = "languageIs"
	CondStarsAbove    = "starsAbove"

	ScopeGlobal = "global"

	ActionAlert = "alert"
)

// RuleConditions selects the entities a rule inspects and the predicate
// applied to them.
type RuleConditions struct {
	Target string         `json:"target"`
	Type   string         `json:"type"`
	Value  ConditionValue `json:"value"`
}

// RuleActions describes what to do on a match.
type RuleActions struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Rule is a user-authored automation rule.
type Rule struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Scope      string         `json:"scope"`
	Conditions RuleConditions `json:"conditions"`
	Actions    RuleActions    `json:"actions"`
	Enabled    bool           `json:"enabled"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// RuleAction is the action derived for a single match.
type RuleAction struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// RuleResult is one entity matched by one rule.
type RuleResult struct {
	ID         string     `json:"id"`
	RuleID     string     `json:"ruleId"`
	RuleName   string     `json:"ruleName"`
	TargetType string     `json:"targetType"`
	Repo       string     `json:"repo"`
	Title      string     `json:"title"`
	Number     int        `json:"number,omitempty"`
	URL        string     `json:"url"`
	Reason     string     `json:"reason"`
	Action     RuleAction `json:"action"`
}

// Alert is a persisted notification, either user-created or produced by the
// automation engine.
type Alert struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Severity     string    `json:"severity"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Repo         string    `json:"repo"`
	Acknowledged bool      `json:"acknowledged"`
	CreatedAt    time.Time `json:"createdAt"`
	Source       string    `json:"source,omitempty"`
	RuleID       string    `json:"ruleId,omitempty"`
	RuleName     string    `json:"ruleName,omitempty"`
	TargetType   string    `json:"targetType,omitempty"`
	TargetURL    string    `json:"targetUrl,omitempty"`
}

// Knowledge is a per-repository annotation.
type Knowledge struct {
	Tags      []string  `json:"tags"`
	Notes     string    `json:"notes"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LanguageCount is one bucket of the language histogram.
type LanguageCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ActivityBucket counts commits on one UTC calendar day.
type ActivityBucket struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// StatsTotals is the counters block of the dashboard stats.
type StatsTotals struct {
	Repos             int `json:"repos"`
	OwnerRepos        int `json:"ownerRepos"`
	CollaboratorRepos int `json:"collaboratorRepos"`
	OpenIssues        int `json:"openIssues"`
	ClosedIssues      int `json:"closedIssues"`
	OpenPRs           int `json:"openPrs"`
	MergedPRs         int `json:"mergedPrs"`
	Stars             int `json:"stars"`
	Forks             int `json:"forks"`
}

// Stats is the aggregate dashboard view.
type Stats struct {
	Totals        StatsTotals      `json:"totals"`
	TopRepos      []Repository     `json:"topRepos"`
	RecentUpdates []Repository     `json:"recentUpdates"`
	LanguageStats []LanguageCount  `json:"languageStats"`
	Activity      []ActivityBucket `json:"activity"`
}

// OpsCounts is the counters block of the ops summary.
type OpsCounts struct {
	Repos                int `json:"repos"`
	OpenIssues           int `json:"openIssues"`
	OpenPRs              int `json:"openPrs"`
	StaleIssues          int `json:"staleIssues"`
	StalePRs             int `json:"stalePrs"`
	ReposNoRecentCommits int `json:"reposNoRecentCommits"`
}

// RepoLastCommit pairs a repository with its most recent known commit date.
type RepoLastCommit struct {
	FullName     string     `json:"fullName"`
	LastCommitAt *time.Time `json:"lastCommitAt"`
}

// ReviewQueueEntry counts open PRs awaiting review in one repository.
type ReviewQueueEntry struct {
	Repo  string `json:"repo"`
	Count int    `json:"count"`
}

// OpsSummary is the staleness/backlog view.
type OpsSummary struct {
	GeneratedAt          time.Time          `json:"generatedAt"`
	Counts               OpsCounts          `json:"counts"`
	StaleIssues          []Issue            `json:"staleIssues"`
	StalePRs             []PullRequest      `json:"stalePrs"`
	ReposNoRecentCommits []RepoLastCommit   `json:"reposNoRecentCommits"`
	ReviewQueue          []ReviewQueueEntry `json:"reviewQueue"`
}

// Snapshot is a whole-document capture of all fetched entities at one sync
// point, used as a stale-but-available fallback.
type Snapshot struct {
	SyncedAt time.Time       `json:"syncedAt"`
	Repos    []Repository    `json:"repos"`
	Issues   []Issue         `json:"issues"`
	PRs      []PullRequest   `json:"prs"`
	Commits  []Commit        `json:"commits"`
	Timeline []TimelineEvent `json:"timeline"`
}

// SyncReport summarizes one sync run.
type SyncReport struct {
	OK    bool       `json:"ok"`
	Mode  string     `json:"mode"`
	Stats SyncCounts `json:"stats"`
}

// SyncCounts holds entity counts captured by a sync.
type SyncCounts struct {
	Repos    int `json:"repos"`
	Issues   int `json:"issues"`
	PRs      int `json:"prs"`
	Commits  int `json:"commits"`
	Timeline int `json:"timeline"`
}

// AutomationReport is the response of one rule-engine run.
type AutomationReport struct {
	OK          bool         `json:"ok"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Rules       int          `json:"rules"`
	Results     []RuleResult `json:"results"`
	Applied     int          `json:"applied"`
}
