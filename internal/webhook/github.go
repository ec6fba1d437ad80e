package webhook

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/formalci/formalci/internal/metrics"
	"github.com/formalci/formalci/internal/model"
)

// githubAllowedPRActions lists the pull_request actions that trigger a
// check; everything else is acknowledged and discarded.
var githubAllowedPRActions = map[string]bool{
	"opened":      true,
	"synchronize": true,
	"reopened":    true,
}

type githubRepoRef struct {
	FullName string `json:"full_name"`
}

type githubPushPayload struct {
	After      string        `json:"after"`
	Repository githubRepoRef `json:"repository"`
	Commits    []struct {
		Added    []string `json:"added"`
		Modified []string `json:"modified"`
	} `json:"commits"`
}

type githubPullRequestPayload struct {
	Action      string        `json:"action"`
	Repository  githubRepoRef `json:"repository"`
	PullRequest struct {
		Head struct {
			SHA string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`
}

type githubCheckSuitePayload struct {
	Action     string        `json:"action"`
	Repository githubRepoRef `json:"repository"`
	CheckSuite struct {
		HeadSHA string `json:"head_sha"`
	} `json:"check_suite"`
}

// ServeGitHub handles POST /webhooks/github.
func (ing *Ingress) ServeGitHub(w http.ResponseWriter, r *http.Request) {
	platform := model.GitHub
	body, err := readBody(r)
	if err != nil {
		respond(w, platform, http.StatusBadRequest, "cannot read body")
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	metrics.RecordWebhookEvent("github", eventType)

	fullName, ok := peekFullName(body, eventType)
	if !ok {
		respond(w, platform, http.StatusBadRequest, "malformed payload")
		return
	}

	repo, found, err := lookupRepo(r.Context(), ing.Store, platform, fullName)
	if err != nil {
		logrus.WithError(err).Error("webhook(github): repository lookup failed")
		respond(w, platform, http.StatusInternalServerError, "internal error")
		return
	}
	if !found {
		respond(w, platform, http.StatusOK, "")
		return
	}

	if !verifyHMACSignature(body, r.Header.Get("X-Hub-Signature-256"), repo.WebhookSecret) {
		respond(w, platform, http.StatusUnauthorized, "bad signature")
		return
	}

	switch eventType {
	case "push":
		ing.handleGitHubPush(w, r, repo, body)
	case "pull_request":
		ing.handleGitHubPullRequest(w, r, repo, body)
	case "check_suite":
		ing.handleGitHubCheckSuite(w, r, repo, body)
	default:
		logrus.WithField("event", eventType).Debug("webhook(github): unhandled event type, discarding")
		respond(w, platform, http.StatusOK, "")
	}
}

func peekFullName(body []byte, eventType string) (string, bool) {
	var ref struct {
		Repository githubRepoRef `json:"repository"`
	}
	if err := decodeJSON(body, &ref); err != nil || ref.Repository.FullName == "" {
		return "", false
	}
	return ref.Repository.FullName, true
}

func (ing *Ingress) handleGitHubPush(w http.ResponseWriter, r *http.Request, repo model.Repository, body []byte) {
	var payload githubPushPayload
	if err := decodeJSON(body, &payload); err != nil {
		respond(w, model.GitHub, http.StatusBadRequest, "malformed push payload")
		return
	}
	if !repo.Enabled || !repo.CheckOnPush {
		respond(w, model.GitHub, http.StatusOK, "")
		return
	}

	files := unionAddedModified(payload.Commits)
	err := ing.enqueuePush(r.Context(), repo, parsedPush{CommitSHA: payload.After, Files: files})
	if err != nil {
		respond(w, model.GitHub, http.StatusInternalServerError, "internal error")
		return
	}
	respond(w, model.GitHub, http.StatusOK, "")
}

func (ing *Ingress) handleGitHubPullRequest(w http.ResponseWriter, r *http.Request, repo model.Repository, body []byte) {
	var payload githubPullRequestPayload
	if err := decodeJSON(body, &payload); err != nil {
		respond(w, model.GitHub, http.StatusBadRequest, "malformed pull_request payload")
		return
	}
	if !githubAllowedPRActions[payload.Action] || !repo.Enabled || !repo.CheckOnPR {
		respond(w, model.GitHub, http.StatusOK, "")
		return
	}

	if err := ing.enqueueAllProvers(r.Context(), repo, payload.PullRequest.Head.SHA, model.PriorityHigh); err != nil {
		respond(w, model.GitHub, http.StatusInternalServerError, "internal error")
		return
	}
	respond(w, model.GitHub, http.StatusOK, "")
}

func (ing *Ingress) handleGitHubCheckSuite(w http.ResponseWriter, r *http.Request, repo model.Repository, body []byte) {
	var payload githubCheckSuitePayload
	if err := decodeJSON(body, &payload); err != nil {
		respond(w, model.GitHub, http.StatusBadRequest, "malformed check_suite payload")
		return
	}
	if (payload.Action != "requested" && payload.Action != "rerequested") || !repo.Enabled || !repo.CheckOnPR {
		respond(w, model.GitHub, http.StatusOK, "")
		return
	}

	if err := ing.enqueueAllProvers(r.Context(), repo, payload.CheckSuite.HeadSHA, model.PriorityHigh); err != nil {
		respond(w, model.GitHub, http.StatusInternalServerError, "internal error")
		return
	}
	respond(w, model.GitHub, http.StatusOK, "")
}
