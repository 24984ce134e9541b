package action

import (
	"context"

	"github.com/google/go-github/v74/github"

	"github.com/compozy/webhookflow/engine/errs"
)

// RegisterGitHubActions installs the github_comment action, replacing the
// namespace's "not implemented" passthrough with a real
// github.com/google/go-github-backed executor. token may be empty, which
// leaves the client unauthenticated (subject to GitHub's stricter
// unauthenticated rate limit).
func (r *Registry) RegisterGitHubActions(token string) {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	r.Register("github_comment", githubCommentExecutor(client))
}

// githubCommentExecutor posts a comment onto a GitHub issue or pull
// request, addressed by owner/repo/issueNumber (PRs share the issues API
// for comments).
func githubCommentExecutor(client *github.Client) Executor {
	return func(ctx context.Context, params map[string]any, _ Context) (any, error) {
		owner, _ := params["owner"].(string)
		repo, _ := params["repo"].(string)
		issueNumber, _ := params["issueNumber"].(float64)
		body, _ := params["body"].(string)
		if owner == "" || repo == "" || issueNumber <= 0 || body == "" {
			return nil, errs.New(
				errs.KindValidation,
				"action: github_comment requires params.owner, params.repo, params.issueNumber, params.body",
			)
		}
		comment, _, err := client.Issues.CreateComment(ctx, owner, repo, int(issueNumber), &github.IssueComment{
			Body: &body,
		})
		if err != nil {
			return nil, errs.Wrap(errs.KindRetryable, "action: github_comment failed", err)
		}
		return map[string]any{
			"commentId": comment.GetID(),
			"url":       comment.GetHTMLURL(),
		}, nil
	}
}
