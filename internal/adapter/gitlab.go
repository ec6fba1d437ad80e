package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/formalci/formalci/internal/bot"
	"github.com/formalci/formalci/internal/model"
)

const gitlabDefaultAPIURL = "https://gitlab.com/api/v4"

// gitlab commit statuses are immutable: updates mean posting a new
// status rather than mutating an existing one.
var gitlabStatusMapping = NewStatusMapping(map[model.CheckConclusion]string{
	model.ConclusionSuccess:   "success",
	model.ConclusionFailure:   "failed",
	model.ConclusionCancelled: "canceled",
})

// GitLabAdapter talks to the GitLab REST API directly over net/http: a
// bare HTTP client plus request helpers carrying the PRIVATE-TOKEN
// header. The handful of endpoints used here doesn't justify a full
// SDK.
type GitLabAdapter struct {
	httpClient *http.Client
	token      string
	baseURL    string
}

// NewGitLabAdapter builds a GitLabAdapter against baseURL (pass "" for
// gitlab.com).
func NewGitLabAdapter(token, baseURL string) *GitLabAdapter {
	if baseURL == "" {
		baseURL = gitlabDefaultAPIURL
	}
	return &GitLabAdapter{httpClient: http.DefaultClient, token: token, baseURL: baseURL}
}

func (a *GitLabAdapter) Platform() model.Platform { return model.GitLab }

func (a *GitLabAdapter) CloneRepo(ctx context.Context, repo model.RepoId, commit string) (string, error) {
	host := "gitlab.com"
	if u, err := url.Parse(a.baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	cloneURL := fmt.Sprintf("https://oauth2:%s@%s/%s.git", a.token, host, repo.FullName())
	if a.token == "" {
		cloneURL = fmt.Sprintf("https://%s/%s.git", host, repo.FullName())
	}
	return cloneInto(ctx, cloneURL, commit, bot.KindGitLab)
}

func (a *GitLabAdapter) projectPath(repo model.RepoId) string {
	return url.PathEscape(repo.Owner + "/" + repo.Name)
}

func (a *GitLabAdapter) request(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return bot.Wrap(bot.KindGitLab, "encoding request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+endpoint, reader)
	if err != nil {
		return bot.Wrap(bot.KindGitLab, "building request", err)
	}
	req.Header.Set("PRIVATE-TOKEN", a.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return bot.Wrap(bot.KindGitLab, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return bot.WrapPlatform(bot.KindGitLab, "gitlab API error", resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *GitLabAdapter) CreateCheckRun(ctx context.Context, repo model.RepoId, run model.CheckRun) (model.CheckRunId, error) {
	endpoint := fmt.Sprintf("/projects/%s/statuses/%s", a.projectPath(repo), run.HeadSHA)

	state := "running"
	if run.Status.Kind == model.CheckCompleted {
		state = gitlabStatusMapping.Map(run.Status.Conclusion)
	}

	body := map[string]string{
		"state":       state,
		"name":        run.Name,
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
	return model.CheckRunId(strconv.FormatInt(result.ID, 10)), nil
}

// UpdateCheckRun is a no-op: GitLab commit statuses are immutable, so
// there is nothing to update in place. Callers that need a new state
// must call CreateCheckRun again to post a fresh status.
func (a *GitLabAdapter) UpdateCheckRun(ctx context.Context, repo model.RepoId, id model.CheckRunId, status model.CheckStatus) error {
	return nil
}

func (a *GitLabAdapter) CreateComment(ctx context.Context, repo model.RepoId, pr model.PrId, body string) (model.CommentId, error) {
	endpoint := fmt.Sprintf("/projects/%s/merge_requests/%d/notes", a.projectPath(repo), pr)
	var result struct {
		ID int64 `json:"id"`
	}
	if err := a.request(ctx, http.MethodPost, endpoint, map[string]string{"body": body}, &result); err != nil {
		return "", err
	}
	return model.CommentId(strconv.FormatInt(result.ID, 10)), nil
}

func (a *GitLabAdapter) CreateIssue(ctx context.Context, repo model.RepoId, issue model.NewIssue) (model.IssueId, error) {
	endpoint := fmt.Sprintf("/projects/%s/issues", a.projectPath(repo))
	var result struct {
		IID int64 `json:"iid"`
	}
	body := map[string]interface{}{
		"title":       issue.Title,
		"description": issue.Body,
		"labels":      issue.Labels,
	}
	if err := a.request(ctx, http.MethodPost, endpoint, body, &result); err != nil {
		return "", err
	}
	return model.IssueId(strconv.FormatInt(result.IID, 10)), nil
}

func (a *GitLabAdapter) GetDefaultBranch(ctx context.Context, repo model.RepoId) (string, error) {
	endpoint := fmt.Sprintf("/projects/%s", a.projectPath(repo))
	var result struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := a.request(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return "", err
	}
	return result.DefaultBranch, nil
}
