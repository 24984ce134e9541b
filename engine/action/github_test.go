package action

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v74/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGitHubClient(t *testing.T, handler http.HandlerFunc) *github.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := github.NewClient(nil)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base
	client.UploadURL = base
	return client
}

func TestGitHubCommentExecutor(t *testing.T) {
	t.Run("Should post a comment and return its id and URL", func(t *testing.T) {
		client := newTestGitHubClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/repos/acme/widgets/issues/42/comments", r.URL.Path)
			var body github.IssueComment
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "hello from webhookflow", body.GetBody())
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(&github.IssueComment{
				ID:      github.Ptr(int64(99)),
				HTMLURL: github.Ptr("https://github.com/acme/widgets/issues/42#comment-99"),
			})
		})
		exec := githubCommentExecutor(client)

		result, err := exec(context.Background(), map[string]any{
			"owner":       "acme",
			"repo":        "widgets",
			"issueNumber": float64(42),
			"body":        "hello from webhookflow",
		}, Context{})

		require.NoError(t, err)
		out := result.(map[string]any)
		assert.EqualValues(t, 99, out["commentId"])
		assert.Equal(t, "https://github.com/acme/widgets/issues/42#comment-99", out["url"])
	})

	t.Run("Should reject params missing a required field", func(t *testing.T) {
		exec := githubCommentExecutor(github.NewClient(nil))

		_, err := exec(context.Background(), map[string]any{"owner": "acme"}, Context{})

		require.Error(t, err)
	})
}

func TestRegisterGitHubActions(t *testing.T) {
	t.Run("Should register github_comment on the registry", func(t *testing.T) {
		r := NewRegistry()
		r.RegisterGitHubActions("")
		_, err := r.Execute(context.Background(), "github_comment", map[string]any{}, Context{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires params")
	})
}
