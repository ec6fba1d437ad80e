package webhook

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/formalci/formalci/internal/metrics"
	"github.com/formalci/formalci/internal/model"
)

var gitlabAllowedMRActions = map[string]bool{
	"open":   true,
	"update": true,
	"reopen": true,
}

type gitlabProjectRef struct {
	PathWithNamespace string `json:"path_with_namespace"`
}

type gitlabPushPayload struct {
	After   string           `json:"after"`
	Project gitlabProjectRef `json:"project"`
	Commits []struct {
		Added    []string `json:"added"`
		Modified []string `json:"modified"`
	} `json:"commits"`
}

type gitlabMergeRequestPayload struct {
	Project          gitlabProjectRef `json:"project"`
	ObjectAttributes struct {
		Action     string `json:"action"`
		State      string `json:"state"`
		LastCommit struct {
			ID string `json:"id"`
		} `json:"last_commit"`
	} `json:"object_attributes"`
}

// ServeGitLab handles POST /webhooks/gitlab.
func (ing *Ingress) ServeGitLab(w http.ResponseWriter, r *http.Request) {
	platform := model.GitLab
	body, err := readBody(r)
	if err != nil {
		respond(w, platform, http.StatusBadRequest, "cannot read body")
		return
	}

	eventType := r.Header.Get("X-Gitlab-Event")
	metrics.RecordWebhookEvent("gitlab", eventType)

	var ref struct {
		Project gitlabProjectRef `json:"project"`
	}
	if err := decodeJSON(body, &ref); err != nil || ref.Project.PathWithNamespace == "" {
		respond(w, platform, http.StatusBadRequest, "malformed payload")
		return
	}

	repo, found, err := lookupRepo(r.Context(), ing.Store, platform, ref.Project.PathWithNamespace)
	if err != nil {
		logrus.WithError(err).Error("webhook(gitlab): repository lookup failed")
		respond(w, platform, http.StatusInternalServerError, "internal error")
		return
	}
	if !found {
		respond(w, platform, http.StatusOK, "")
		return
	}

	if !verifyToken(r.Header.Get("X-Gitlab-Token"), repo.WebhookSecret) {
		respond(w, platform, http.StatusUnauthorized, "bad token")
		return
	}

	switch eventType {
	case "Push Hook":
		ing.handleGitLabPush(w, r, repo, body)
	case "Merge Request Hook":
		ing.handleGitLabMergeRequest(w, r, repo, body)
	default:
		logrus.WithField("event", eventType).Debug("webhook(gitlab): unhandled event type, discarding")
		respond(w, platform, http.StatusOK, "")
	}
}

func (ing *Ingress) handleGitLabPush(w http.ResponseWriter, r *http.Request, repo model.Repository, body []byte) {
	var payload gitlabPushPayload
	if err := decodeJSON(body, &payload); err != nil {
		respond(w, model.GitLab, http.StatusBadRequest, "malformed push payload")
		return
	}
	if !repo.Enabled || !repo.CheckOnPush {
		respond(w, model.GitLab, http.StatusOK, "")
		return
	}

	files := unionAddedModified(payload.Commits)
	if err := ing.enqueuePush(r.Context(), repo, parsedPush{CommitSHA: payload.After, Files: files}); err != nil {
		respond(w, model.GitLab, http.StatusInternalServerError, "internal error")
		return
	}
	respond(w, model.GitLab, http.StatusOK, "")
}

func (ing *Ingress) handleGitLabMergeRequest(w http.ResponseWriter, r *http.Request, repo model.Repository, body []byte) {
	var payload gitlabMergeRequestPayload
	if err := decodeJSON(body, &payload); err != nil {
		respond(w, model.GitLab, http.StatusBadRequest, "malformed merge_request payload")
		return
	}

	matched := gitlabAllowedMRActions[payload.ObjectAttributes.Action] || payload.ObjectAttributes.State == "opened"
	if !matched || !repo.Enabled || !repo.CheckOnPR {
		respond(w, model.GitLab, http.StatusOK, "")
		return
	}

	sha := payload.ObjectAttributes.LastCommit.ID
	if err := ing.enqueueAllProvers(r.Context(), repo, sha, model.PriorityHigh); err != nil {
		respond(w, model.GitLab, http.StatusInternalServerError, "internal error")
		return
	}
	respond(w, model.GitLab, http.StatusOK, "")
}
