// internal/github/graphql_test.go
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-dashboard/internal/apierr"
	"github-dashboard/internal/model"
)

func TestClient_LanguageStats(t *testing.T) {
	t.Run("pages through the cursor and counts primary languages", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/graphql", r.URL.Path)

			var req graphqlRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

			count := atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusOK)
			if count == 1 {
				assert.Nil(t, req.Variables["cursor"])
				fmt.Fprintln(w, `{"data": {"viewer": {"repositories": {
					"nodes": [
						{"nameWithOwner": "u/a", "primaryLanguage": {"name": "Go"}},
						{"nameWithOwner": "u/b", "primaryLanguage": {"name": "TypeScript"}},
						{"nameWithOwner": "u/c", "primaryLanguage": null}
					],
					"pageInfo": {"endCursor": "CUR1", "hasNextPage": true}
				}}}}`)
				return
			}
			assert.Equal(t, "CUR1", req.Variables["cursor"])
			fmt.Fprintln(w, `{"data": {"viewer": {"repositories": {
				"nodes": [
					{"nameWithOwner": "u/d", "primaryLanguage": {"name": "Go"}}
				],
				"pageInfo": {"endCursor": "", "hasNextPage": false}
			}}}}`)
		})
		client, _ := setupTestClient(t, handler)

		stats, err := client.LanguageStats(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []model.LanguageCount{
			{Name: "Go", Count: 2},
			{Name: "TypeScript", Count: 1},
			{Name: "Unknown", Count: 1},
		}, stats)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
	})

	t.Run("non-200 becomes a typed HTTP error", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		client, _ := setupTestClient(t, handler)

		_, err := client.LanguageStats(context.Background())

		var httpErr *apierr.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadGateway, httpErr.Status)
	})

	t.Run("malformed payload becomes a shape error", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, `not json`)
		})
		client, _ := setupTestClient(t, handler)

		_, err := client.LanguageStats(context.Background())

		var shapeErr *apierr.ShapeError
		require.ErrorAs(t, err, &shapeErr)
		assert.Equal(t, "graphql", shapeErr.Endpoint)
	})

	t.Run("graphql-level errors fail the call", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, `{"errors": [{"message": "bad token"}]}`)
		})
		client, _ := setupTestClient(t, handler)

		_, err := client.LanguageStats(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad token")
	})
}
