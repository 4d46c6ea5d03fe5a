// internal/github/graphql.go
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github-dashboard/internal/apierr"
	"github-dashboard/internal/model"
)

// languagesQuery pages through the viewer's repositories and pulls each
// primary language.
const languagesQuery = `
  query RepoLanguages($cursor: String) {
    viewer {
      repositories(first: 50, after: $cursor, ownerAffiliations: [OWNER, COLLABORATOR, ORGANIZATION_MEMBER]) {
        nodes {
          nameWithOwner
          primaryLanguage {
            name
          }
        }
        pageInfo {
          endCursor
          hasNextPage
        }
      }
    }
  }
`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type languagesResponse struct {
	Data struct {
		Viewer struct {
			Repositories struct {
				Nodes []struct {
					NameWithOwner   string `json:"nameWithOwner"`
					PrimaryLanguage *struct {
						Name string `json:"name"`
					} `json:"primaryLanguage"`
				} `json:"nodes"`
				PageInfo struct {
					EndCursor   string `json:"endCursor"`
					HasNextPage bool   `json:"hasNextPage"`
				} `json:"pageInfo"`
			} `json:"repositories"`
		} `json:"viewer"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

// LanguageStats builds the primary-language histogram over all of the
// account's repositories via the GraphQL API, top 8 by count. Ties keep
// first-encountered order.
func (c *Client) LanguageStats(ctx context.Context) ([]model.LanguageCount, error) {
	totals := map[string]int{}
	var order []string

	var cursor *string
	for {
		vars := map[string]any{"cursor": cursor}
		resp, err := c.graphql(ctx, languagesQuery, vars)
		if err != nil {
			return nil, err
		}

		repoData := resp.Data.Viewer.Repositories
		for _, node := range repoData.Nodes {
			name := "Unknown"
			if node.PrimaryLanguage != nil {
				name = node.PrimaryLanguage.Name
			}
			if _, seen := totals[name]; !seen {
				order = append(order, name)
			}
			totals[name]++
		}

		if !repoData.PageInfo.HasNextPage {
			break
		}
		end := repoData.PageInfo.EndCursor
		cursor = &end
	}

	stats := make([]model.LanguageCount, 0, len(order))
	for _, name := range order {
		stats = append(stats, model.LanguageCount{Name: name, Count: totals[name]})
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Count > stats[j].Count })
	if len(stats) > 8 {
		stats = stats[:8]
	}
	return stats, nil
}

func (c *Client) graphql(ctx context.Context, query string, variables map[string]any) (*languagesResponse, error) {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &apierr.HTTPError{Status: resp.StatusCode, Message: "graphql request failed"}
	}

	var parsed languagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &apierr.ShapeError{Endpoint: "graphql", Detail: err.Error()}
	}

	if len(parsed.Errors) > 0 {
		messages := make([]string, 0, len(parsed.Errors))
		for _, e := range parsed.Errors {
			messages = append(messages, e.Message)
		}
		return nil, fmt.Errorf("graphql errors: %s", strings.Join(messages, ", "))
	}

	return &parsed, nil
}
