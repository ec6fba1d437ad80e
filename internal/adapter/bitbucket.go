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

const bitbucketDefaultAPIURL = "https://api.bitbucket.org/2.0"

var bitbucketStatusMapping = NewStatusMapping(map[model.CheckConclusion]string{
	model.ConclusionSuccess:   "SUCCESSFUL",
	model.ConclusionFailure:   "FAILED",
	model.ConclusionCancelled: "STOPPED",
})

// BitbucketAdapter talks to the Bitbucket Cloud REST API using app
// password (basic auth) credentials, with the same hand-rolled request
// helpers as the GitLab adapter.
type BitbucketAdapter struct {
	httpClient  *http.Client
	username    string
	appPassword string
	baseURL     string
	// botKey prefixes the stable build-status key per check name, so
	// repeated check runs for the same named check update the same
	// status entry instead of accumulating duplicates.
	botKey string
}

// NewBitbucketAdapter builds a BitbucketAdapter.
func NewBitbucketAdapter(username, appPassword, baseURL, botKey string) *BitbucketAdapter {
	if baseURL == "" {
		baseURL = bitbucketDefaultAPIURL
	}
	if botKey == "" {
		botKey = "formalci"
	}
	return &BitbucketAdapter{
		httpClient:  http.DefaultClient,
		username:    username,
		appPassword: appPassword,
		baseURL:     baseURL,
		botKey:      botKey,
	}
}

func (a *BitbucketAdapter) Platform() model.Platform { return model.Bitbucket }

func (a *BitbucketAdapter) CloneRepo(ctx context.Context, repo model.RepoId, commit string) (string, error) {
	cloneURL := fmt.Sprintf("https://%s:%s@bitbucket.org/%s.git", a.username, a.appPassword, repo.FullName())
	if a.username == "" {
		cloneURL = fmt.Sprintf("https://bitbucket.org/%s.git", repo.FullName())
	}
	return cloneInto(ctx, cloneURL, commit, bot.KindBitbucket)
}

func (a *BitbucketAdapter) request(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return bot.Wrap(bot.KindBitbucket, "encoding request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+endpoint, reader)
	if err != nil {
		return bot.Wrap(bot.KindBitbucket, "building request", err)
	}
	req.SetBasicAuth(a.username, a.appPassword)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return bot.Wrap(bot.KindBitbucket, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return bot.WrapPlatform(bot.KindBitbucket, "bitbucket API error", resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *BitbucketAdapter) CreateCheckRun(ctx context.Context, repo model.RepoId, run model.CheckRun) (model.CheckRunId, error) {
	endpoint := fmt.Sprintf("/repositories/%s/%s/commit/%s/statuses/build", repo.Owner, repo.Name, run.HeadSHA)

	state := "INPROGRESS"
	if run.Status.Kind == model.CheckCompleted {
		state = bitbucketStatusMapping.Map(run.Status.Conclusion)
	}

	body := map[string]string{
		"key":         fmt.Sprintf("%s-%s", a.botKey, run.Name),
		"state":       state,
		"name":        run.Name,
		"description": run.Status.Summary,
	}
	if run.DetailsURL != "" {
		body["url"] = run.DetailsURL
	} else {
		body["url"] = "https://formalci.invalid/checks"
	}

	if err := a.request(ctx, http.MethodPost, endpoint, body, nil); err != nil {
		return "", err
	}
	return model.CheckRunId(body["key"]), nil
}

// UpdateCheckRun is a no-op. A build status id is not an addressable
// resource on Bitbucket; callers that need a new state re-post via
// CreateCheckRun, which the stable key turns into an in-place update.
func (a *BitbucketAdapter) UpdateCheckRun(ctx context.Context, repo model.RepoId, id model.CheckRunId, status model.CheckStatus) error {
	return nil
}

func (a *BitbucketAdapter) CreateComment(ctx context.Context, repo model.RepoId, pr model.PrId, body string) (model.CommentId, error) {
	endpoint := fmt.Sprintf("/repositories/%s/%s/pullrequests/%d/comments", repo.Owner, repo.Name, pr)
	var result struct {
		ID int64 `json:"id"`
	}
	reqBody := map[string]interface{}{"content": map[string]string{"raw": body}}
	if err := a.request(ctx, http.MethodPost, endpoint, reqBody, &result); err != nil {
		return "", err
	}
	return model.CommentId(fmt.Sprintf("%d", result.ID)), nil
}

// CreateIssue may fail if the repository's issue tracker is disabled;
// that surfaces as a normal KindBitbucket error from request, which
// callers treat as "issue creation unsupported here".
func (a *BitbucketAdapter) CreateIssue(ctx context.Context, repo model.RepoId, issue model.NewIssue) (model.IssueId, error) {
	endpoint := fmt.Sprintf("/repositories/%s/%s/issues", repo.Owner, repo.Name)
	var result struct {
		ID int64 `json:"id"`
	}
	reqBody := map[string]interface{}{
		"title":   issue.Title,
		"content": map[string]string{"raw": issue.Body},
	}
	if err := a.request(ctx, http.MethodPost, endpoint, reqBody, &result); err != nil {
		return "", bot.Wrap(bot.KindBitbucket, "issue tracker likely disabled", err)
	}
	return model.IssueId(fmt.Sprintf("%d", result.ID)), nil
}

func (a *BitbucketAdapter) GetDefaultBranch(ctx context.Context, repo model.RepoId) (string, error) {
	endpoint := fmt.Sprintf("/repositories/%s/%s", repo.Owner, repo.Name)
	var result struct {
		MainBranch struct {
			Name string `json:"name"`
		} `json:"mainbranch"`
	}
	if err := a.request(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return "", err
	}
	return result.MainBranch.Name, nil
}
