package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formalci/formalci/internal/model"
	"github.com/formalci/formalci/internal/prover"
	"github.com/formalci/formalci/internal/scheduler"
	"github.com/formalci/formalci/internal/store"
)

func newTestIngress(t *testing.T) (*Ingress, model.Repository) {
	t.Helper()
	s := store.NewMemory()
	sched := scheduler.New(4, 100)

	repo := model.Repository{
		RepoId:         model.RepoId{Platform: model.GitHub, Owner: "acme", Name: "thm"},
		EnabledProvers: []prover.Kind{prover.Metamath, prover.Lean},
		Enabled:        true,
		CheckOnPush:    true,
		CheckOnPR:      true,
		WebhookSecret:  []byte("test-secret"),
	}
	repo.ID = uuid.New()
	require.NoError(t, s.CreateRepository(context.Background(), repo))

	return New(s, sched), repo
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestGitHubPushFiltersByExtension(t *testing.T) {
	ing, _ := newTestIngress(t)

	body := []byte(`{
		"after": "c0",
		"repository": {"full_name": "acme/thm"},
		"commits": [{"added": ["README.md"], "modified": ["proof.mm", "lib/x.lean"]}]
	}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", sign(body, "test-secret"))
	rec := httptest.NewRecorder()

	ing.ServeGitHub(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	stats := ing.Scheduler.Stats()
	assert.Equal(t, 2, stats.Queued)
}

func TestGitHubPullRequestGetsHighPriorityAndEmptyFiles(t *testing.T) {
	ing, _ := newTestIngress(t)

	body := []byte(`{
		"action": "opened",
		"repository": {"full_name": "acme/thm"},
		"pull_request": {"head": {"sha": "c1"}}
	}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-Hub-Signature-256", sign(body, "test-secret"))
	rec := httptest.NewRecorder()

	ing.ServeGitHub(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, ing.Scheduler.Stats().Queued) // one per enabled prover
}

func TestGitHubSignatureRejection(t *testing.T) {
	ing, _ := newTestIngress(t)

	body := []byte(`{"repository":{"full_name":"acme/thm"},"test":"payload"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", "sha256=0000000000000000000000000000000000000000000000000000000000000000")
	rec := httptest.NewRecorder()

	ing.ServeGitHub(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGitHubTamperedSignatureRejectedAtAnyPosition(t *testing.T) {
	ing, _ := newTestIngress(t)

	body := []byte(`{"after":"c5","repository":{"full_name":"acme/thm"},"commits":[]}`)
	good := sign(body, "test-secret")

	for i := len("sha256="); i < len(good); i++ {
		tampered := []byte(good)
		if tampered[i] == '0' {
			tampered[i] = '1'
		} else {
			tampered[i] = '0'
		}
		req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
		req.Header.Set("X-GitHub-Event", "push")
		req.Header.Set("X-Hub-Signature-256", string(tampered))
		rec := httptest.NewRecorder()

		ing.ServeGitHub(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "flipped hex digit at %d", i)
	}
}

func TestGitHubSignatureAcceptance(t *testing.T) {
	ing, _ := newTestIngress(t)

	body := []byte(`{
		"after": "c2",
		"repository": {"full_name": "acme/thm"},
		"commits": []
	}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", sign(body, "test-secret"))
	rec := httptest.NewRecorder()

	ing.ServeGitHub(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGitHubUnregisteredRepoIsIgnoredWith200(t *testing.T) {
	ing, _ := newTestIngress(t)

	body := []byte(`{"after":"c0","repository":{"full_name":"other/repo"},"commits":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "push")
	rec := httptest.NewRecorder()

	ing.ServeGitHub(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGitLabMergeRequestAcceptedActions(t *testing.T) {
	s := store.NewMemory()
	sched := scheduler.New(4, 100)
	repo := model.Repository{
		RepoId:         model.RepoId{Platform: model.GitLab, Owner: "acme", Name: "thm"},
		EnabledProvers: []prover.Kind{prover.Coq},
		Enabled:        true,
		CheckOnPR:      true,
		WebhookSecret:  []byte("gl-secret"),
	}
	require.NoError(t, s.CreateRepository(context.Background(), repo))
	ing := New(s, sched)

	body := []byte(`{
		"project": {"path_with_namespace": "acme/thm"},
		"object_attributes": {"action": "open", "state": "opened", "last_commit": {"id": "c9"}}
	}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gitlab", bytes.NewReader(body))
	req.Header.Set("X-Gitlab-Event", "Merge Request Hook")
	req.Header.Set("X-Gitlab-Token", "gl-secret")
	rec := httptest.NewRecorder()

	ing.ServeGitLab(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ing.Scheduler.Stats().Queued)
}

func TestGitLabBadTokenRejected(t *testing.T) {
	s := store.NewMemory()
	sched := scheduler.New(4, 100)
	repo := model.Repository{
		RepoId:         model.RepoId{Platform: model.GitLab, Owner: "acme", Name: "thm"},
		EnabledProvers: []prover.Kind{prover.Coq},
		Enabled:        true,
		CheckOnPR:      true,
		WebhookSecret:  []byte("gl-secret"),
	}
	require.NoError(t, s.CreateRepository(context.Background(), repo))
	ing := New(s, sched)

	body := []byte(`{"project": {"path_with_namespace": "acme/thm"}, "object_attributes": {"action": "open"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gitlab", bytes.NewReader(body))
	req.Header.Set("X-Gitlab-Event", "Merge Request Hook")
	req.Header.Set("X-Gitlab-Token", "wrong")
	rec := httptest.NewRecorder()

	ing.ServeGitLab(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBitbucketUnauthenticatedWithoutSecretSucceeds(t *testing.T) {
	s := store.NewMemory()
	sched := scheduler.New(4, 100)
	repo := model.Repository{
		RepoId:         model.RepoId{Platform: model.Bitbucket, Owner: "acme", Name: "thm"},
		EnabledProvers: []prover.Kind{prover.Coq},
		Enabled:        true,
		CheckOnPR:      true,
	}
	require.NoError(t, s.CreateRepository(context.Background(), repo))
	ing := New(s, sched)

	body := []byte(`{
		"repository": {"full_name": "acme/thm"},
		"pullrequest": {"source": {"commit": {"hash": "abc"}}}
	}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/bitbucket", bytes.NewReader(body))
	req.Header.Set("X-Event-Key", "pullrequest:created")
	rec := httptest.NewRecorder()

	ing.ServeBitbucket(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ing.Scheduler.Stats().Queued)
}

func TestDuplicateJobRejectedOnSecondEnqueue(t *testing.T) {
	ing, repo := newTestIngress(t)

	job := model.NewProofJob(repo.ID, "c2", prover.Metamath, nil)
	_, acceptedFirst := ing.Scheduler.Enqueue(job)
	_, acceptedSecond := ing.Scheduler.Enqueue(job)

	assert.True(t, acceptedFirst)
	assert.False(t, acceptedSecond)
}
