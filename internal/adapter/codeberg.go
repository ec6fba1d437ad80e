package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/formalci/formalci/internal/bot"
	"github.com/formalci/formalci/internal/model"
)

const codebergDefaultAPIURL = "https://codeberg.org/api/v1"

// Codeberg speaks the Gitea API dialect: commit statuses are
// append-only on some deployments, the way GitLab's are, so
// UpdateCheckRun is a no-op here as well.
var codebergStatusMapping = NewStatusMapping(map[model.CheckConclusion]string{
	model.ConclusionSuccess:   "success",
	model.ConclusionFailure:   "failure",
	model.ConclusionCancelled: "warning",
})

// CodebergAdapter talks to the Gitea-dialect REST API. Cloning is
// anonymous (no token folded into the clone URL); API writes (statuses,
// comments, issues) still authenticate with a bearer token, since Gitea
// rejects anonymous writes.
type CodebergAdapter struct {
	httpClient *http.Client
	token      string
	baseURL    string
}

// NewCodebergAdapter builds a CodebergAdapter.
func NewCodebergAdapter(token, baseURL string) *CodebergAdapter {
	if baseURL == "" {
		baseURL = codebergDefaultAPIURL
	}
	return &CodebergAdapter{httpClient: http.DefaultClient, token: token, baseURL: baseURL}
}

func (a *CodebergAdapter) Platform() model.Platform { return model.Codeberg }

func (a *CodebergAdapter) CloneRepo(ctx context.Context, repo model.RepoId, commit string) (string, error) {
	cloneURL := fmt.Sprintf("https://codeberg.org/%s.git", repo.FullName())
	return cloneInto(ctx, cloneURL, commit, bot.KindHTTP)
}

func (a *CodebergAdapter) request(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return bot.Wrap(bot.KindHTTP, "encoding request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+endpoint, reader)
	if err != nil {
		return bot.Wrap(bot.KindHTTP, "building request", err)
	}
	if a.token != "" {
		req.Header.Set("Authorization", "token "+a.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return bot.Wrap(bot.KindHTTP, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return bot.WrapPlatform(bot.KindHTTP, "codeberg API error", resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *CodebergAdapter) CreateCheckRun(ctx context.Context, repo model.RepoId, run model.CheckRun) (model.CheckRunId, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/statuses/%s", repo.Owner, repo.Name, run.HeadSHA)

	state := "pending"
	if run.Status.Kind == model.CheckCompleted {
		state = codebergStatusMapping.Map(run.Status.Conclusion)
	}

	body := map[string]string{
		"state":       state,
		"context":     run.Name,
		"description": run.Status.Summary,
	}
	if run.DetailsURL != "" {
		body["target_url"] = run.DetailsURL
	}

	var result struct {
		ID int64 `json:"id"`
	}
	if err := a.request(ctx, http.MethodPost, endpoint, body, &result); err != nil {
		return "", err
	}
	return model.CheckRunId(fmt.Sprintf("%d", result.ID)), nil
}

func (a *CodebergAdapter) UpdateCheckRun(ctx context.Context, repo model.RepoId, id model.CheckRunId, status model.CheckStatus) error {
	return nil
}

func (a *CodebergAdapter) CreateComment(ctx context.Context, repo model.RepoId, pr model.PrId, body string) (model.CommentId, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", repo.Owner, repo.Name, pr)
	var result struct {
		ID int64 `json:"id"`
	}
	if err := a.request(ctx, http.MethodPost, endpoint, map[string]string{"body": body}, &result); err != nil {
		return "", err
	}
	return model.CommentId(fmt.Sprintf("%d", result.ID)), nil
}

func (a *CodebergAdapter) CreateIssue(ctx context.Context, repo model.RepoId, issue model.NewIssue) (model.IssueId, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/issues", repo.Owner, repo.Name)
	var result struct {
		Number int64 `json:"number"`
	}
	body := map[string]interface{}{
		"title":  issue.Title,
		"body":   issue.Body,
		"labels": issue.Labels,
	}
	if err := a.request(ctx, http.MethodPost, endpoint, body, &result); err != nil {
		return "", err
	}
	return model.IssueId(fmt.Sprintf("%d", result.Number)), nil
}

func (a *CodebergAdapter) GetDefaultBranch(ctx context.Context, repo model.RepoId) (string, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s", repo.Owner, repo.Name)
	var result struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := a.request(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return "", err
	}
	return result.DefaultBranch, nil
}
