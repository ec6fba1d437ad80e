package adapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v58/github"
	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/peterbourgon/diskv"
	"golang.org/x/oauth2"

	"github.com/formalci/formalci/internal/bot"
	"github.com/formalci/formalci/internal/model"
)

var githubStatusMapping = NewStatusMapping(map[model.CheckConclusion]string{
	model.ConclusionSuccess:   "success",
	model.ConclusionFailure:   "failure",
	model.ConclusionNeutral:   "neutral",
	model.ConclusionCancelled: "cancelled",
	model.ConclusionSkipped:   "skipped",
	model.ConclusionTimedOut:  "timed_out",
	model.ConclusionActionRequired: "action_required",
})

// GitHubAdapter implements PlatformAdapter against the GitHub Checks
// and Issues APIs. The transport stack is an oauth2.Transport wrapping
// an httpcache.Transport so conditional requests (ETags) don't burn API
// rate limit on repeated metadata lookups.
type GitHubAdapter struct {
	client *github.Client
	token  string
}

// NewGitHubAdapter builds a GitHubAdapter. cacheDir, if non-empty,
// backs the HTTP cache with a diskv store that survives restarts;
// otherwise responses are cached in memory only.
func NewGitHubAdapter(token, cacheDir string) *GitHubAdapter {
	var cacheTransport *httpcache.Transport
	if cacheDir != "" {
		d := diskv.New(diskv.Options{
			BasePath:     cacheDir,
			CacheSizeMax: 100 * 1000 * 1000,
		})
		cacheTransport = httpcache.NewTransport(diskcache.NewWithDiskv(d))
	} else {
		cacheTransport = httpcache.NewTransport(httpcache.NewMemoryCache())
	}

	var transport http.RoundTripper = cacheTransport
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{
			Base:   transport,
			Source: oauth2.ReuseTokenSource(nil, ts),
		}
	}

	httpClient := &http.Client{Transport: transport}
	return &GitHubAdapter{client: github.NewClient(httpClient), token: token}
}

func (a *GitHubAdapter) Platform() model.Platform { return model.GitHub }

func (a *GitHubAdapter) CloneRepo(ctx context.Context, repo model.RepoId, commit string) (string, error) {
	url := fmt.Sprintf("https://x-access-token:%s@github.com/%s.git", a.token, repo.FullName())
	if a.token == "" {
		url = fmt.Sprintf("https://github.com/%s.git", repo.FullName())
	}
	return cloneInto(ctx, url, commit, bot.KindGitHub)
}

func (a *GitHubAdapter) CreateCheckRun(ctx context.Context, repo model.RepoId, run model.CheckRun) (model.CheckRunId, error) {
	opts := github.CreateCheckRunOptions{
		Name:    run.Name,
		HeadSHA: run.HeadSHA,
	}
	if run.DetailsURL != "" {
		opts.DetailsURL = &run.DetailsURL
	}

	status := checkStatusKindToGitHub(run.Status.Kind)
	opts.Status = &status

	if run.Status.Kind == model.CheckCompleted {
		conclusion := githubStatusMapping.Map(run.Status.Conclusion)
		opts.Conclusion = &conclusion
		if run.Status.Summary != "" {
			opts.Output = &github.CheckRunOutput{
				Title:   &run.Name,
				Summary: &run.Status.Summary,
			}
		}
	}

	checkRun, _, err := a.client.Checks.CreateCheckRun(ctx, repo.Owner, repo.Name, opts)
	if err != nil {
		return "", bot.Wrap(bot.KindGitHub, "creating check run", err)
	}
	return model.CheckRunId(fmt.Sprintf("%d", checkRun.GetID())), nil
}

func (a *GitHubAdapter) UpdateCheckRun(ctx context.Context, repo model.RepoId, id model.CheckRunId, status model.CheckStatus) error {
	var checkRunID int64
	if _, err := fmt.Sscanf(string(id), "%d", &checkRunID); err != nil {
		return bot.Wrap(bot.KindGitHub, "parsing check run id", err)
	}

	opts := github.UpdateCheckRunOptions{}
	st := checkStatusKindToGitHub(status.Kind)
	opts.Status = &st

	if status.Kind == model.CheckCompleted {
		conclusion := githubStatusMapping.Map(status.Conclusion)
		opts.Conclusion = &conclusion
		if status.Summary != "" {
			opts.Output = &github.CheckRunOutput{Summary: &status.Summary}
		}
	}

	_, _, err := a.client.Checks.UpdateCheckRun(ctx, repo.Owner, repo.Name, checkRunID, opts)
	if err != nil {
		return bot.Wrap(bot.KindGitHub, "updating check run", err)
	}
	return nil
}

func (a *GitHubAdapter) CreateComment(ctx context.Context, repo model.RepoId, pr model.PrId, body string) (model.CommentId, error) {
	comment, _, err := a.client.Issues.CreateComment(ctx, repo.Owner, repo.Name, int(pr), &github.IssueComment{Body: &body})
	if err != nil {
		return "", bot.Wrap(bot.KindGitHub, "creating comment", err)
	}
	return model.CommentId(fmt.Sprintf("%d", comment.GetID())), nil
}

func (a *GitHubAdapter) CreateIssue(ctx context.Context, repo model.RepoId, issue model.NewIssue) (model.IssueId, error) {
	created, _, err := a.client.Issues.Create(ctx, repo.Owner, repo.Name, &github.IssueRequest{
		Title:  &issue.Title,
		Body:   &issue.Body,
		Labels: &issue.Labels,
	})
	if err != nil {
		return "", bot.Wrap(bot.KindGitHub, "creating issue", err)
	}
	return model.IssueId(fmt.Sprintf("%d", created.GetNumber())), nil
}

func (a *GitHubAdapter) GetDefaultBranch(ctx context.Context, repo model.RepoId) (string, error) {
	r, _, err := a.client.Repositories.Get(ctx, repo.Owner, repo.Name)
	if err != nil {
		return "", bot.Wrap(bot.KindGitHub, "fetching repository", err)
	}
	return r.GetDefaultBranch(), nil
}

func checkStatusKindToGitHub(kind model.CheckStatusKind) string {
	switch kind {
	case model.CheckQueued:
		return "queued"
	case model.CheckInProgress:
		return "in_progress"
	default:
		return "completed"
	}
}
