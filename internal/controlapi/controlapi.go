// Package controlapi implements the bot's control surface:
// registration, status lookups, manual triggers, cancellation, and
// settings updates, bypassing the webhook ingress entirely.
//
// The wire shape is a small JSON dispatcher rather than a full GraphQL
// engine: POST /graphql with body {"query": "<operationName>",
// "variables": {...}}, routed to a registered Go function per operation
// name, and mounted on gorilla/mux the same way every other HTTP
// surface in this repo is.
package controlapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/formalci/formalci/internal/metrics"
	"github.com/formalci/formalci/internal/model"
	"github.com/formalci/formalci/internal/modes"
	"github.com/formalci/formalci/internal/prover"
	"github.com/formalci/formalci/internal/scheduler"
	"github.com/formalci/formalci/internal/store"
	"github.com/formalci/formalci/internal/verifier"
)

// Server holds the dependencies every operation needs and owns the
// operation registry.
type Server struct {
	Store      store.Store
	Scheduler  *scheduler.Scheduler
	Verifier   *verifier.Client
	operations map[string]operation
}

type operation func(ctx context.Context, s *Server, variables json.RawMessage) (interface{}, error)

// New builds a Server with every query/mutation wired into the registry.
func New(st store.Store, sched *scheduler.Scheduler, v *verifier.Client) *Server {
	s := &Server{Store: st, Scheduler: sched, Verifier: v}
	s.operations = map[string]operation{
		"repository":           opRepository,
		"repositories":         opRepositories,
		"job":                  opJob,
		"jobs_for_repo":        opJobsForRepo,
		"available_provers":    opAvailableProvers,
		"prover_status":        opProverStatus,
		"queue_stats":          opQueueStats,
		"verifier_health":      opVerifierHealth,
		"register_repository":  opRegisterRepository,
		"trigger_check":        opTriggerCheck,
		"request_suggestions":  opRequestSuggestions,
		"update_repo_settings": opUpdateRepoSettings,
		"set_repo_enabled":     opSetRepoEnabled,
		"cancel_job":           opCancelJob,
		"delete_repository":    opDeleteRepository,
	}
	return s
}

// Router mounts POST /graphql and the debugging playground onto a new
// mux.Router.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/graphql", s.ServeGraphQL).Methods(http.MethodPost)
	r.HandleFunc("/graphql/playground", ServePlayground).Methods(http.MethodGet)
	return r
}

type request struct {
	Query     string          `json:"query"`
	Variables json.RawMessage `json:"variables"`
}

type response struct {
	Data   interface{} `json:"data,omitempty"`
	Errors []string    `json:"errors,omitempty"`
}

// ServeGraphQL is the sole entry point for every query and mutation:
// it decodes the envelope, looks up the named operation, and replies
// with a {data} or {errors} body. An unknown operation name or decode
// failure is a 400; an operation's own error is surfaced as a 200 with
// an errors array, following the GraphQL convention (query validity and
// field-level errors are reported separately).
func (s *Server) ServeGraphQL(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Errors: []string{"malformed request body"}})
		return
	}

	op, ok := s.operations[req.Query]
	if !ok {
		writeJSON(w, http.StatusBadRequest, response{Errors: []string{"unknown operation: " + req.Query}})
		return
	}

	data, err := op(r.Context(), s, req.Variables)
	if err != nil {
		logrus.WithError(err).WithField("operation", req.Query).Warn("controlapi: operation failed")
		writeJSON(w, http.StatusOK, response{Errors: []string{err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, response{Data: data})
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ServePlayground renders a minimal static HTML console for manually
// posting {query, variables} bodies to /graphql during development: a
// textarea, a fetch() call, and a pre-rendered result.
func ServePlayground(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(playgroundHTML))
}

const playgroundHTML = `<!DOCTYPE html>
<html>
<head><title>formalci control API</title></head>
<body>
<h1>formalci control API</h1>
<textarea id="q" rows="6" cols="80">{"query":"queue_stats","variables":{}}</textarea><br>
<button onclick="run()">Run</button>
<pre id="out"></pre>
<script>
function run() {
  fetch('/graphql', {method:'POST', body: document.getElementById('q').value})
    .then(r => r.json())
    .then(j => document.getElementById('out').textContent = JSON.stringify(j, null, 2))
    .catch(e => document.getElementById('out').textContent = String(e));
}
</script>
</body>
</html>`

func decodeVars(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// --- queries ---

func opRepository(ctx context.Context, s *Server, raw json.RawMessage) (interface{}, error) {
	var vars struct {
		RepoID   *uuid.UUID `json:"repo_id"`
		Platform string     `json:"platform"`
		Owner    string     `json:"owner"`
		Name     string     `json:"name"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}
	if vars.RepoID != nil {
		return s.Store.GetRepository(ctx, *vars.RepoID)
	}
	return s.Store.GetRepositoryByName(ctx, model.Platform(vars.Platform), vars.Owner, vars.Name)
}

func opRepositories(ctx context.Context, s *Server, raw json.RawMessage) (interface{}, error) {
	var vars struct {
		Platform *string `json:"platform"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}
	repos, err := s.Store.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}
	if vars.Platform == nil {
		return repos, nil
	}
	filtered := make([]model.Repository, 0, len(repos))
	for _, r := range repos {
		if string(r.RepoId.Platform) == *vars.Platform {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

func opJob(ctx context.Context, s *Server, raw json.RawMessage) (interface{}, error) {
	var vars struct {
		JobID uuid.UUID `json:"job_id"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}
	if job, ok := s.Scheduler.GetJob(vars.JobID); ok {
		return job, nil
	}
	return s.Store.GetJob(ctx, vars.JobID)
}

func opJobsForRepo(ctx context.Context, s *Server, raw json.RawMessage) (interface{}, error) {
	var vars struct {
		RepoID uuid.UUID `json:"repo_id"`
		Limit  int       `json:"limit"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}
	return s.Store.ListJobsForRepo(ctx, vars.RepoID, vars.Limit)
}

type availableProver struct {
	Kind   prover.Kind          `json:"kind"`
	Name   string               `json:"name"`
	Tier   string               `json:"tier"`
	Status verifier.ProverStatus `json:"status"`
}

func opAvailableProvers(ctx context.Context, s *Server, _ json.RawMessage) (interface{}, error) {
	all := prover.All()
	out := make([]availableProver, len(all))
	for i, meta := range all {
		status := verifier.ProverUnknown
		if s.Verifier != nil {
			if st, err := s.Verifier.ProverStatus(ctx, meta.Kind); err == nil {
				status = st
			}
		}
		out[i] = availableProver{Kind: meta.Kind, Name: meta.Name, Tier: meta.Tier.String(), Status: status}
	}
	return out, nil
}

func opProverStatus(ctx context.Context, s *Server, raw json.RawMessage) (interface{}, error) {
	var vars struct {
		Prover string `json:"prover"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}
	if s.Verifier == nil {
		return verifier.ProverUnknown, nil
	}
	return s.Verifier.ProverStatus(ctx, prover.Kind(vars.Prover))
}

func opQueueStats(_ context.Context, s *Server, _ json.RawMessage) (interface{}, error) {
	return s.Scheduler.Stats(), nil
}

func opVerifierHealth(ctx context.Context, s *Server, _ json.RawMessage) (interface{}, error) {
	if s.Verifier == nil {
		return false, nil
	}
	return s.Verifier.HealthCheck(ctx), nil
}

// --- mutations ---

func opRegisterRepository(ctx context.Context, s *Server, raw json.RawMessage) (interface{}, error) {
	var vars struct {
		Platform       string   `json:"platform"`
		Owner          string   `json:"owner"`
		Name           string   `json:"name"`
		EnabledProvers []string `json:"enabled_provers"`
		CheckOnPush    bool     `json:"check_on_push"`
		CheckOnPR      bool     `json:"check_on_pr"`
		AutoComment    bool     `json:"auto_comment"`
		Mode           string   `json:"mode"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}

	if existing, err := s.Store.GetRepositoryByName(ctx, model.Platform(vars.Platform), vars.Owner, vars.Name); err == nil {
		return existing, nil
	} else if err != store.ErrNotFound {
		return nil, err
	}

	provers := make([]prover.Kind, len(vars.EnabledProvers))
	for i, p := range vars.EnabledProvers {
		provers[i] = prover.Kind(p)
	}
	mode := modes.Mode(vars.Mode)
	if mode == "" {
		mode = modes.Default
	}

	repo := model.Repository{
		ID:             uuid.New(),
		RepoId:         model.RepoId{Platform: model.Platform(vars.Platform), Owner: vars.Owner, Name: vars.Name},
		EnabledProvers: provers,
		Enabled:        true,
		CheckOnPush:    vars.CheckOnPush,
		CheckOnPR:      vars.CheckOnPR,
		AutoComment:    vars.AutoComment,
		Mode:           mode,
	}
	if err := repo.Validate(); err != nil {
		return nil, err
	}
	if err := s.Store.CreateRepository(ctx, repo); err != nil {
		return nil, err
	}
	return repo, nil
}

func opTriggerCheck(ctx context.Context, s *Server, raw json.RawMessage) (interface{}, error) {
	var vars struct {
		RepoID  uuid.UUID `json:"repo_id"`
		Commit  string    `json:"commit"`
		Provers []string  `json:"provers"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}

	repo, err := s.Store.GetRepository(ctx, vars.RepoID)
	if err != nil {
		return nil, err
	}

	commit := vars.Commit
	if commit == "" {
		commit = "HEAD"
	}

	kinds := repo.EnabledProvers
	if len(vars.Provers) > 0 {
		kinds = make([]prover.Kind, len(vars.Provers))
		for i, p := range vars.Provers {
			kinds[i] = prover.Kind(p)
		}
	}

	var first *model.ProofJob
	for _, kind := range kinds {
		job := model.NewProofJob(repo.ID, commit, kind, nil).WithPriority(model.PriorityCritical)
		if _, accepted := s.Scheduler.Enqueue(job); !accepted {
			logrus.WithFields(logrus.Fields{"repo_id": repo.ID, "prover": kind}).
				Debug("controlapi: trigger_check prover rejected (duplicate or queue full)")
			continue
		}
		if err := s.Store.CreateJob(ctx, job); err != nil {
			logrus.WithError(err).WithField("job_id", job.ID).Warn("controlapi: persisting triggered job failed")
			continue
		}
		metrics.RecordJobEnqueued(string(kind), job.Priority.String())
		if first == nil {
			j := job
			first = &j
		}
	}
	if first == nil {
		return nil, nil
	}
	return *first, nil
}

func opRequestSuggestions(ctx context.Context, s *Server, raw json.RawMessage) (interface{}, error) {
	var vars struct {
		Prover    string `json:"prover"`
		Context   string `json:"context"`
		GoalState string `json:"goal_state"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}
	if s.Verifier == nil {
		return nil, nil
	}
	return s.Verifier.SuggestTactics(ctx, prover.Kind(vars.Prover), vars.Context, vars.GoalState)
}

func opUpdateRepoSettings(ctx context.Context, s *Server, raw json.RawMessage) (interface{}, error) {
	var vars struct {
		RepoID      uuid.UUID `json:"repo_id"`
		CheckOnPush *bool     `json:"check_on_push"`
		CheckOnPR   *bool     `json:"check_on_pr"`
		AutoComment *bool     `json:"auto_comment"`
		Mode        *string   `json:"mode"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}

	repo, err := s.Store.GetRepository(ctx, vars.RepoID)
	if err != nil {
		return nil, err
	}
	if vars.CheckOnPush != nil {
		repo.CheckOnPush = *vars.CheckOnPush
	}
	if vars.CheckOnPR != nil {
		repo.CheckOnPR = *vars.CheckOnPR
	}
	if vars.AutoComment != nil {
		repo.AutoComment = *vars.AutoComment
	}
	if vars.Mode != nil {
		repo.Mode = modes.Mode(*vars.Mode)
	}
	if err := repo.Validate(); err != nil {
		return nil, err
	}
	if err := s.Store.UpdateRepository(ctx, repo); err != nil {
		return nil, err
	}
	return repo, nil
}

func opSetRepoEnabled(ctx context.Context, s *Server, raw json.RawMessage) (interface{}, error) {
	var vars struct {
		RepoID  uuid.UUID `json:"repo_id"`
		Enabled bool      `json:"enabled"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}

	repo, err := s.Store.GetRepository(ctx, vars.RepoID)
	if err != nil {
		return nil, err
	}
	repo.Enabled = vars.Enabled
	if err := s.Store.UpdateRepository(ctx, repo); err != nil {
		return nil, err
	}
	return repo, nil
}

func opCancelJob(ctx context.Context, s *Server, raw json.RawMessage) (interface{}, error) {
	var vars struct {
		JobID uuid.UUID `json:"job_id"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}

	cancelled := s.Scheduler.CancelJob(vars.JobID)
	if !cancelled {
		return cancelled, nil
	}

	job, err := s.Store.GetJob(ctx, vars.JobID)
	if err != nil {
		return cancelled, nil
	}
	job.Cancel()
	if err := s.Store.UpdateJob(ctx, job); err != nil {
		logrus.WithError(err).WithField("job_id", vars.JobID).Warn("controlapi: persisting cancelled job failed")
	}
	return cancelled, nil
}

func opDeleteRepository(ctx context.Context, s *Server, raw json.RawMessage) (interface{}, error) {
	var vars struct {
		RepoID uuid.UUID `json:"repo_id"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}
	if err := s.Store.DeleteRepository(ctx, vars.RepoID); err != nil {
		return nil, err
	}
	return true, nil
}
