package webhook

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/formalci/formalci/internal/metrics"
	"github.com/formalci/formalci/internal/model"
)

// Gitea (Codeberg's software) mirrors GitHub's webhook payload shape
// and supports the same "sha256=<hex>" HMAC signature header, so the
// parse/verify logic here reuses githubPushPayload/githubPullRequestPayload
// and verifyHMACSignature rather than duplicating them.

// ServeCodeberg handles POST /webhooks/codeberg.
func (ing *Ingress) ServeCodeberg(w http.ResponseWriter, r *http.Request) {
	platform := model.Codeberg
	body, err := readBody(r)
	if err != nil {
		respond(w, platform, http.StatusBadRequest, "cannot read body")
		return
	}

	eventType := r.Header.Get("X-Gitea-Event")
	metrics.RecordWebhookEvent("codeberg", eventType)

	fullName, ok := peekFullName(body, eventType)
	if !ok {
		respond(w, platform, http.StatusBadRequest, "malformed payload")
		return
	}

	repo, found, err := lookupRepo(r.Context(), ing.Store, platform, fullName)
	if err != nil {
		logrus.WithError(err).Error("webhook(codeberg): repository lookup failed")
		respond(w, platform, http.StatusInternalServerError, "internal error")
		return
	}
	if !found {
		respond(w, platform, http.StatusOK, "")
		return
	}

	// Some Gitea/Codeberg deployments never set a per-repo secret
	// (relying on network policy instead, same as Bitbucket); only
	// enforce the signature when one is configured.
	if len(repo.WebhookSecret) > 0 && !verifyHMACSignature(body, r.Header.Get("X-Hub-Signature-256"), repo.WebhookSecret) {
		respond(w, platform, http.StatusUnauthorized, "bad signature")
		return
	}

	switch eventType {
	case "push":
		ing.handleCodebergPush(w, r, repo, body)
	case "pull_request":
		ing.handleCodebergPullRequest(w, r, repo, body)
	default:
		logrus.WithField("event", eventType).Debug("webhook(codeberg): unhandled event type, discarding")
		respond(w, platform, http.StatusOK, "")
	}
}

func (ing *Ingress) handleCodebergPush(w http.ResponseWriter, r *http.Request, repo model.Repository, body []byte) {
	var payload githubPushPayload
	if err := decodeJSON(body, &payload); err != nil {
		respond(w, model.Codeberg, http.StatusBadRequest, "malformed push payload")
		return
	}
	if !repo.Enabled || !repo.CheckOnPush {
		respond(w, model.Codeberg, http.StatusOK, "")
		return
	}

	files := unionAddedModified(payload.Commits)
	if err := ing.enqueuePush(r.Context(), repo, parsedPush{CommitSHA: payload.After, Files: files}); err != nil {
		respond(w, model.Codeberg, http.StatusInternalServerError, "internal error")
		return
	}
	respond(w, model.Codeberg, http.StatusOK, "")
}

func (ing *Ingress) handleCodebergPullRequest(w http.ResponseWriter, r *http.Request, repo model.Repository, body []byte) {
	var payload githubPullRequestPayload
	if err := decodeJSON(body, &payload); err != nil {
		respond(w, model.Codeberg, http.StatusBadRequest, "malformed pull_request payload")
		return
	}
	if !githubAllowedPRActions[payload.Action] || !repo.Enabled || !repo.CheckOnPR {
		respond(w, model.Codeberg, http.StatusOK, "")
		return
	}

	if err := ing.enqueueAllProvers(r.Context(), repo, payload.PullRequest.Head.SHA, model.PriorityHigh); err != nil {
		respond(w, model.Codeberg, http.StatusInternalServerError, "internal error")
		return
	}
	respond(w, model.Codeberg, http.StatusOK, "")
}
