package webhook

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/formalci/formalci/internal/metrics"
	"github.com/formalci/formalci/internal/model"
)

var bitbucketAllowedPRKeys = map[string]bool{
	"pullrequest:created": true,
	"pullrequest:updated": true,
}

type bitbucketRepoRef struct {
	FullName string `json:"full_name"`
}

type bitbucketPushPayload struct {
	Repository bitbucketRepoRef `json:"repository"`
	Push       struct {
		Changes []struct {
			New struct {
				Target struct {
					Hash string `json:"hash"`
				} `json:"target"`
			} `json:"new"`
		} `json:"changes"`
	} `json:"push"`
}

type bitbucketPullRequestPayload struct {
	Repository  bitbucketRepoRef `json:"repository"`
	PullRequest struct {
		Source struct {
			Commit struct {
				Hash string `json:"hash"`
			} `json:"commit"`
		} `json:"source"`
	} `json:"pullrequest"`
}

// ServeBitbucket handles POST /webhooks/bitbucket. Bitbucket offers no
// HMAC scheme: this endpoint is unauthenticated (deployments should
// network-restrict it) unless the operator has set a webhook_secret on
// the repo, in which case it is compared against an out-of-band shared
// token in the "token" query parameter or Authorization header.
func (ing *Ingress) ServeBitbucket(w http.ResponseWriter, r *http.Request) {
	platform := model.Bitbucket
	body, err := readBody(r)
	if err != nil {
		respond(w, platform, http.StatusBadRequest, "cannot read body")
		return
	}

	eventKey := r.Header.Get("X-Event-Key")
	metrics.RecordWebhookEvent("bitbucket", eventKey)

	var ref struct {
		Repository bitbucketRepoRef `json:"repository"`
	}
	if err := decodeJSON(body, &ref); err != nil || ref.Repository.FullName == "" {
		respond(w, platform, http.StatusBadRequest, "malformed payload")
		return
	}

	repo, found, err := lookupRepo(r.Context(), ing.Store, platform, ref.Repository.FullName)
	if err != nil {
		logrus.WithError(err).Error("webhook(bitbucket): repository lookup failed")
		respond(w, platform, http.StatusInternalServerError, "internal error")
		return
	}
	if !found {
		respond(w, platform, http.StatusOK, "")
		return
	}

	if len(repo.WebhookSecret) > 0 {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = r.Header.Get("Authorization")
		}
		if !verifyToken(token, repo.WebhookSecret) {
			respond(w, platform, http.StatusUnauthorized, "bad token")
			return
		}
	}

	switch eventKey {
	case "repo:push":
		ing.handleBitbucketPush(w, r, repo, body)
	case "pullrequest:created", "pullrequest:updated":
		ing.handleBitbucketPullRequest(w, r, repo, body, eventKey)
	default:
		logrus.WithField("event", eventKey).Debug("webhook(bitbucket): unhandled event type, discarding")
		respond(w, platform, http.StatusOK, "")
	}
}

func (ing *Ingress) handleBitbucketPush(w http.ResponseWriter, r *http.Request, repo model.Repository, body []byte) {
	var payload bitbucketPushPayload
	if err := decodeJSON(body, &payload); err != nil {
		respond(w, model.Bitbucket, http.StatusBadRequest, "malformed push payload")
		return
	}
	if !repo.Enabled || !repo.CheckOnPush {
		respond(w, model.Bitbucket, http.StatusOK, "")
		return
	}
	if len(payload.Push.Changes) == 0 {
		respond(w, model.Bitbucket, http.StatusOK, "")
		return
	}

	sha := payload.Push.Changes[len(payload.Push.Changes)-1].New.Target.Hash
	// Bitbucket's push payload carries no per-commit file diff (unlike
	// GitHub/GitLab), so every enabled prover is checked rather than
	// filtering by touched extension.
	if err := ing.enqueueAllProvers(r.Context(), repo, sha, model.PriorityNormal); err != nil {
		respond(w, model.Bitbucket, http.StatusInternalServerError, "internal error")
		return
	}
	respond(w, model.Bitbucket, http.StatusOK, "")
}

func (ing *Ingress) handleBitbucketPullRequest(w http.ResponseWriter, r *http.Request, repo model.Repository, body []byte, eventKey string) {
	var payload bitbucketPullRequestPayload
	if err := decodeJSON(body, &payload); err != nil {
		respond(w, model.Bitbucket, http.StatusBadRequest, "malformed pullrequest payload")
		return
	}
	if !bitbucketAllowedPRKeys[eventKey] || !repo.Enabled || !repo.CheckOnPR {
		respond(w, model.Bitbucket, http.StatusOK, "")
		return
	}

	if err := ing.enqueueAllProvers(r.Context(), repo, payload.PullRequest.Source.Commit.Hash, model.PriorityHigh); err != nil {
		respond(w, model.Bitbucket, http.StatusInternalServerError, "internal error")
		return
	}
	respond(w, model.Bitbucket, http.StatusOK, "")
}
