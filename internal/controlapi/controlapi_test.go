package controlapi

import (
	"bytes"
	"context"
	"encoding/json"
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
	"github.com/formalci/formalci/internal/verifier"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st := store.NewMemory()
	sched := scheduler.New(4, 100)
	return New(st, sched, verifier.New("http://verifier.invalid/graphql"))
}

func call(t *testing.T, s *Server, query string, variables interface{}) (response, int) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{"query": query, "variables": variables})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeGraphQL(rec, req)

	var resp response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp, rec.Code
}

func TestUnknownOperationIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	resp, code := call(t, s, "not_a_real_operation", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, code)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "unknown operation")
}

func TestRegisterRepositoryIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	vars := map[string]interface{}{
		"platform":        "github",
		"owner":           "acme",
		"name":            "widgets",
		"enabled_provers": []string{"coq"},
		"check_on_push":   true,
		"check_on_pr":     true,
		"auto_comment":    true,
		"mode":            "verifier",
	}

	first, code := call(t, s, "register_repository", vars)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, first.Errors)

	second, code := call(t, s, "register_repository", vars)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, second.Errors)

	firstJSON, _ := json.Marshal(first.Data)
	secondJSON, _ := json.Marshal(second.Data)
	assert.JSONEq(t, string(firstJSON), string(secondJSON))
}

func TestRegisterRepositoryRejectsEmptyProvers(t *testing.T) {
	s := newTestServer(t)
	resp, code := call(t, s, "register_repository", map[string]interface{}{
		"platform": "github",
		"owner":    "acme",
		"name":     "empty",
	})
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Errors, 1)
}

func TestTriggerCheckEnqueuesOnePerEnabledProver(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sched := scheduler.New(4, 100)
	s := New(st, sched, verifier.New("http://verifier.invalid/graphql"))

	repo := model.Repository{
		ID:             uuid.New(),
		RepoId:         model.RepoId{Platform: model.GitHub, Owner: "acme", Name: "widgets"},
		EnabledProvers: []prover.Kind{prover.Coq, prover.Lean},
	}
	require.NoError(t, st.CreateRepository(ctx, repo))

	resp, code := call(t, s, "trigger_check", map[string]interface{}{
		"repo_id": repo.ID.String(),
		"commit":  "deadbeef",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, resp.Errors)
	assert.NotNil(t, resp.Data)

	stats := sched.Stats()
	assert.Equal(t, 2, stats.Queued+stats.Running)
}

func TestCancelJobOnUnknownJobReturnsFalse(t *testing.T) {
	s := newTestServer(t)
	resp, code := call(t, s, "cancel_job", map[string]interface{}{"job_id": uuid.New().String()})
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, resp.Errors)
	assert.Equal(t, false, resp.Data)
}

func TestQueueStatsReflectsEmptyScheduler(t *testing.T) {
	s := newTestServer(t)
	resp, code := call(t, s, "queue_stats", map[string]interface{}{})
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, resp.Errors)
	assert.NotNil(t, resp.Data)
}
