// internal/apierr/apierr.go
//
// Package apierr defines the error taxonomy produced by the GitHub fetch
// layer. Failures are classified once, where they happen; downstream code
// branches with errors.As instead of inspecting message text.
package apierr

import (
	"fmt"
	"time"
)

// RateLimitError is returned when the upstream API quota is exhausted and
// waiting it out is not an option. RetryAfter is the estimated time until
// the quota resets, for caller messaging.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("GitHub API rate limit exceeded, retry in %s", e.RetryAfter.Round(time.Second))
	}
	return "GitHub API rate limit exceeded"
}

// HTTPError is any non-2xx response that is not a rate limit, after retries
// have been exhausted for the transient statuses.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("GitHub API request failed: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("GitHub API request failed: %d", e.Status)
}

// ShapeError is returned when a response body does not have the expected
// shape, e.g. a paginated endpoint returning a non-list payload.
type ShapeError struct {
	Endpoint string
	Detail   string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unexpected response shape from %s: %s", e.Endpoint, e.Detail)
}

// EmptyRepositoryError marks a repository with no commit history. The commit
// fetch path converts it into an empty result instead of surfacing it.
type EmptyRepositoryError struct {
	Repo string
}

func (e *EmptyRepositoryError) Error() string {
	return fmt.Sprintf("repository %s has no commit history", e.Repo)
}
