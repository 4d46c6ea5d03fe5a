// internal/github/normalize.go
package github

import (
	"strings"
	"time"

	"github.com/google/go-github/v62/github"

	"github-dashboard/internal/model"
)

// toRepository translates a github.Repository into our internal model.
// Missing optional fields get explicit defaults.
func toRepository(r *github.Repository, username string) model.Repository {
	owner := r.GetOwner().GetLogin()
	if owner == "" {
		owner = "unknown"
	}

	visibility := r.GetVisibility()
	if visibility == "" {
		if r.GetPrivate() {
			visibility = "private"
		} else {
			visibility = "public"
		}
	}

	language := r.GetLanguage()
	if language == "" {
		language = "Unknown"
	}

	return model.Repository{
		ID:          r.GetID(),
		Name:        r.GetName(),
		FullName:    r.GetFullName(),
		Owner:       owner,
		IsOwner:     strings.EqualFold(owner, username),
		IsPrivate:   r.GetPrivate(),
		Visibility:  visibility,
		Description: r.GetDescription(),
		Language:    language,
		Stars:       r.GetStargazersCount(),
		Forks:       r.GetForksCount(),
		CreatedAt:   r.GetCreatedAt().Time,
		UpdatedAt:   r.GetUpdatedAt().Time,
		URL:         r.GetHTMLURL(),
	}
}

func toIssue(is *github.Issue, repo model.Repository) model.Issue {
	return model.Issue{
		ID:        is.GetID(),
		Number:    is.GetNumber(),
		Repo:      repo.FullName,
		Title:     is.GetTitle(),
		State:     is.GetState(),
		Labels:    toLabels(is.Labels),
		Assignee:  toActor(is.Assignee),
		Author:    toActor(is.User),
		CreatedAt: is.GetCreatedAt().Time,
		UpdatedAt: is.GetUpdatedAt().Time,
		ClosedAt:  timePtr(is.ClosedAt),
		URL:       is.GetHTMLURL(),
	}
}

// toPullRequest derives the synthetic "merged" state when a merge timestamp
// is present; otherwise the upstream open/closed state is kept.
func toPullRequest(pr *github.PullRequest, repo model.Repository) model.PullRequest {
	state := pr.GetState()
	if pr.MergedAt != nil {
		state = model.StateMerged
	}

	return model.PullRequest{
		ID:        pr.GetID(),
		Number:    pr.GetNumber(),
		Repo:      repo.FullName,
		Title:     pr.GetTitle(),
		State:     state,
		Labels:    toLabels(pr.Labels),
		Assignee:  toActor(pr.Assignee),
		Author:    toActor(pr.User),
		CreatedAt: pr.GetCreatedAt().Time,
		UpdatedAt: pr.GetUpdatedAt().Time,
		ClosedAt:  timePtr(pr.ClosedAt),
		MergedAt:  timePtr(pr.MergedAt),
		URL:       pr.GetHTMLURL(),
	}
}

// toCommit keeps only the subject line of the message and the author date.
func toCommit(rc *github.RepositoryCommit, repo model.Repository) model.Commit {
	return model.Commit{
		SHA:     rc.GetSHA(),
		Repo:    repo.FullName,
		RepoURL: repo.URL,
		Message: firstLine(rc.GetCommit().GetMessage()),
		Author:  commitActor(rc),
		Date:    rc.GetCommit().GetAuthor().GetDate().Time,
		URL:     rc.GetHTMLURL(),
	}
}

// commitActor prefers the linked GitHub account, falls back to the git
// author name, and finally to the literal "unknown".
func commitActor(rc *github.RepositoryCommit) *model.Actor {
	if u := rc.Author; u != nil && u.GetLogin() != "" {
		return &model.Actor{Login: u.GetLogin(), AvatarURL: u.GetAvatarURL()}
	}
	if a := rc.GetCommit().GetAuthor(); a != nil && a.GetName() != "" {
		return &model.Actor{Login: a.GetName()}
	}
	return &model.Actor{Login: "unknown"}
}

func toActor(u *github.User) *model.Actor {
	if u == nil {
		return nil
	}
	return &model.Actor{
		Login:     u.GetLogin(),
		AvatarURL: u.GetAvatarURL(),
	}
}

func toLabels(labels []*github.Label) []model.Label {
	out := make([]model.Label, 0, len(labels))
	for _, l := range labels {
		out = append(out, model.Label{Name: l.GetName(), Color: l.GetColor()})
	}
	return out
}

func firstLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return message[:i]
	}
	return message
}

func timePtr(ts *github.Timestamp) *time.Time {
	if ts == nil {
		return nil
	}
	t := ts.Time
	return &t
}
