// internal/github/client.go
package github

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github-dashboard/internal/apierr"
	"github-dashboard/internal/model"
)

const (
	perPageDefault = 100

	// Pagination caps per endpoint.
	maxRepoPages   = 20
	maxItemPages   = 5
	commitsPerRepo = 20

	// Repositories fetched concurrently when fanning out per-repo calls.
	fetchConcurrency = 4

	// Retry policy for transient upstream failures.
	maxRetries  = 2
	backoffBase = 500 * time.Millisecond

	// Longest we are willing to sit out a rate-limit window in-process.
	rateLimitWaitCeiling = 15 * time.Second
)

// Client is a wrapper around the go-github client plus a raw GraphQL
// transport, translating upstream payloads into our internal model.
type Client struct {
	gh         *github.Client
	http       *http.Client
	graphqlURL string
	username   string
	logger     *slog.Logger
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
func NewClient(token, username string, logger *slog.Logger) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		gh:         github.NewClient(tc),
		http:       tc,
		graphqlURL: "https://api.github.com/graphql",
		username:   username,
		logger:     logger,
	}
}

// withRetry runs one API call with the retry policy: transient statuses
// (429/502/503/504) back off exponentially up to maxRetries; a primary
// rate limit is waited out once when the reset is near, otherwise surfaced
// as a typed error. Everything else is classified and returned immediately.
func withRetry[T any](ctx context.Context, logger *slog.Logger, call func() (T, *github.Response, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		v, _, err := call()
		if err == nil {
			return v, nil
		}

		var rateErr *github.RateLimitError
		if errors.As(err, &rateErr) {
			wait := time.Until(rateErr.Rate.Reset.Time)
			if attempt < maxRetries && wait > 0 && wait <= rateLimitWaitCeiling {
				logger.Warn("rate limited, waiting for reset", "wait", wait.Round(time.Millisecond))
				if err := sleepCtx(ctx, wait); err != nil {
					return zero, err
				}
				continue
			}
			if wait < 0 {
				wait = 0
			}
			return zero, &apierr.RateLimitError{RetryAfter: wait}
		}

		var abuseErr *github.AbuseRateLimitError
		if errors.As(err, &abuseErr) {
			wait := abuseErr.GetRetryAfter()
			if attempt < maxRetries && wait > 0 && wait <= rateLimitWaitCeiling {
				if err := sleepCtx(ctx, wait); err != nil {
					return zero, err
				}
				continue
			}
			return zero, &apierr.RateLimitError{RetryAfter: wait}
		}

		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil {
			status := ghErr.Response.StatusCode
			switch status {
			case http.StatusTooManyRequests,
				http.StatusBadGateway,
				http.StatusServiceUnavailable,
				http.StatusGatewayTimeout:
				if attempt < maxRetries {
					delay := backoffBase << attempt
					logger.Debug("transient upstream error, retrying", "status", status, "delay", delay)
					if err := sleepCtx(ctx, delay); err != nil {
						return zero, err
					}
					continue
				}
				return zero, &apierr.HTTPError{Status: status, Message: ghErr.Message}
			case http.StatusConflict:
				// The commits endpoint answers 409 for repositories with no
				// commit history ("Git Repository is empty").
				return zero, &apierr.EmptyRepositoryError{}
			default:
				return zero, &apierr.HTTPError{Status: status, Message: ghErr.Message}
			}
		}

		return zero, err
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Repos fetches every repository the account owns or collaborates on,
// paginating until a short page or the page cap.
func (c *Client) Repos(ctx context.Context) ([]model.Repository, error) {
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Affiliation: "owner,collaborator,organization_member",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPageDefault},
	}

	var all []model.Repository
	for page := 1; page <= maxRepoPages; page++ {
		opts.Page = page
		c.logger.Debug("fetching repositories page", "page", page)

		repos, err := withRetry(ctx, c.logger, func() ([]*github.Repository, *github.Response, error) {
			return c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
		})
		if err != nil {
			return nil, err
		}

		for _, repo := range repos {
			all = append(all, toRepository(repo, c.username))
		}
		if len(repos) < perPageDefault {
			break
		}
	}

	return all, nil
}

// Issues fetches issues for each repository concurrently, paginating up to
// the item page cap. Pull requests surfaced by the issues endpoint are
// excluded.
func (c *Client) Issues(ctx context.Context, repos []model.Repository) ([]model.Issue, error) {
	results, err := mapConcurrent(ctx, fetchConcurrency, repos, func(ctx context.Context, repo model.Repository) ([]model.Issue, error) {
		opts := &github.IssueListByRepoOptions{
			State:       "all",
			ListOptions: github.ListOptions{PerPage: perPageDefault},
		}

		var issues []model.Issue
		for page := 1; page <= maxItemPages; page++ {
			opts.Page = page
			raw, err := withRetry(ctx, c.logger, func() ([]*github.Issue, *github.Response, error) {
				return c.gh.Issues.ListByRepo(ctx, repo.Owner, repo.Name, opts)
			})
			if err != nil {
				return nil, err
			}

			for _, is := range raw {
				if is.IsPullRequest() {
					continue
				}
				issues = append(issues, toIssue(is, repo))
			}
			if len(raw) < perPageDefault {
				break
			}
		}
		return issues, nil
	})
	if err != nil {
		return nil, err
	}
	return flatten(results), nil
}

// PullRequests fetches pull requests for each repository concurrently,
// paginating up to the item page cap.
func (c *Client) PullRequests(ctx context.Context, repos []model.Repository) ([]model.PullRequest, error) {
	results, err := mapConcurrent(ctx, fetchConcurrency, repos, func(ctx context.Context, repo model.Repository) ([]model.PullRequest, error) {
		opts := &github.PullRequestListOptions{
			State:       "all",
			ListOptions: github.ListOptions{PerPage: perPageDefault},
		}

		var prs []model.PullRequest
		for page := 1; page <= maxItemPages; page++ {
			opts.Page = page
			raw, err := withRetry(ctx, c.logger, func() ([]*github.PullRequest, *github.Response, error) {
				return c.gh.PullRequests.List(ctx, repo.Owner, repo.Name, opts)
			})
			if err != nil {
				return nil, err
			}

			for _, pr := range raw {
				prs = append(prs, toPullRequest(pr, repo))
			}
			if len(raw) < perPageDefault {
				break
			}
		}
		return prs, nil
	})
	if err != nil {
		return nil, err
	}
	return flatten(results), nil
}

// Commits fetches the most recent commits for each repository concurrently.
// Repositories with no commit history yield an empty list instead of an
// error and do not abort the batch.
func (c *Client) Commits(ctx context.Context, repos []model.Repository) ([]model.Commit, error) {
	results, err := mapConcurrent(ctx, fetchConcurrency, repos, func(ctx context.Context, repo model.Repository) ([]model.Commit, error) {
		opts := &github.CommitsListOptions{
			ListOptions: github.ListOptions{PerPage: commitsPerRepo, Page: 1},
		}
		raw, err := withRetry(ctx, c.logger, func() ([]*github.RepositoryCommit, *github.Response, error) {
			return c.gh.Repositories.ListCommits(ctx, repo.Owner, repo.Name, opts)
		})
		if err != nil {
			var emptyErr *apierr.EmptyRepositoryError
			if errors.As(err, &emptyErr) {
				c.logger.Debug("repository has no commits", "repo", repo.FullName)
				return nil, nil
			}
			return nil, err
		}

		commits := make([]model.Commit, 0, len(raw))
		for _, rc := range raw {
			commits = append(commits, toCommit(rc, repo))
		}
		return commits, nil
	})
	if err != nil {
		return nil, err
	}
	return flatten(results), nil
}

func flatten[T any](lists [][]T) []T {
	var out []T
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
