// Package runner wires the scheduler, platform adapters, verifier
// client, executor, retry policy, and store into the worker loop:
// start a job, clone its repository, verify, report back to the
// platform, persist the terminal state.
//
// The remote verifier is always the primary verification path (its URL
// is mandatory configuration); the local sandboxed Executor only takes
// over when verifier.HealthCheck reports the backend unreachable. Both
// backends therefore see real job traffic.
package runner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/formalci/formalci/internal/adapter"
	"github.com/formalci/formalci/internal/executor"
	"github.com/formalci/formalci/internal/metrics"
	"github.com/formalci/formalci/internal/model"
	"github.com/formalci/formalci/internal/modes"
	"github.com/formalci/formalci/internal/prover"
	"github.com/formalci/formalci/internal/retry"
	"github.com/formalci/formalci/internal/scheduler"
	"github.com/formalci/formalci/internal/store"
	"github.com/formalci/formalci/internal/verifier"
)

// Runner drains the scheduler's ready queue and drives each job through
// clone -> verify (or execute) -> report -> persist.
type Runner struct {
	Scheduler *scheduler.Scheduler
	Store     store.Store
	Verifier  *verifier.Client
	Executor  *executor.Executor
	Retry     *retry.Policy
	Adapters  map[model.Platform]adapter.PlatformAdapter

	// PollInterval is how often Run checks for a free scheduler slot
	// when the queue was last found empty or at capacity.
	PollInterval time.Duration
}

// New builds a Runner. adapters must have one entry per model.Platform
// this deployment serves; a job for a platform with no registered
// adapter fails immediately rather than blocking the worker loop.
func New(sched *scheduler.Scheduler, s store.Store, v *verifier.Client, exec *executor.Executor, rp *retry.Policy, adapters map[model.Platform]adapter.PlatformAdapter) *Runner {
	return &Runner{
		Scheduler:    sched,
		Store:        s,
		Verifier:     v,
		Executor:     exec,
		Retry:        rp,
		Adapters:     adapters,
		PollInterval: 500 * time.Millisecond,
	}
}

// Run blocks, repeatedly starting and driving jobs, until ctx is
// cancelled. Each started job runs in its own goroutine so a slow clone
// or a long-running prover never blocks other jobs up to the scheduler's
// concurrency cap.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-ticker.C:
			for {
				job, ok := r.Scheduler.TryStartNext()
				if !ok {
					break
				}
				wg.Add(1)
				go func(job model.ProofJob) {
					defer wg.Done()
					r.drive(ctx, job)
				}(job)
			}
		}
	}
}

// drive runs one started job to completion: clone, verify/execute,
// report to the platform, persist, and mark complete in the scheduler.
// It never panics on prover or platform misbehaviour; every failure
// mode becomes a JobResult with success=false.
func (r *Runner) drive(ctx context.Context, job model.ProofJob) {
	log := logrus.WithFields(logrus.Fields{"job_id": job.ID, "prover": job.Prover})

	repo, err := r.Store.GetRepository(ctx, job.RepoID)
	if err != nil {
		log.WithError(err).Error("runner: repository vanished for a running job")
		r.finish(ctx, job, false, "repository not found", model.JobResult{})
		return
	}

	a, ok := r.Adapters[repo.RepoId.Platform]
	if !ok {
		log.WithField("platform", repo.RepoId.Platform).Error("runner: no adapter registered for platform")
		r.finish(ctx, job, false, "no adapter for platform", model.JobResult{})
		return
	}

	checkID, err := a.CreateCheckRun(ctx, repo.RepoId, model.CheckRun{
		Name:    "formalci/" + string(job.Prover),
		HeadSHA: job.CommitSHA,
		Status:  model.CheckStatus{Kind: model.CheckInProgress},
	})
	if err != nil {
		log.WithError(err).Warn("runner: create_check_run failed, continuing without a check run to update")
	}

	dir, err := a.CloneRepo(ctx, repo.RepoId, job.CommitSHA)
	if err != nil {
		log.WithError(err).Warn("runner: clone failed")
		r.reportAndFinish(ctx, a, repo, checkID, job, false, "clone failed: "+err.Error(), model.JobResult{Message: err.Error()})
		return
	}
	defer os.RemoveAll(dir)

	content, extras, err := readProofContent(dir, job)
	if err != nil {
		log.WithError(err).Warn("runner: reading proof source failed")
		r.reportAndFinish(ctx, a, repo, checkID, job, false, "reading proof source failed: "+err.Error(), model.JobResult{Message: err.Error()})
		return
	}

	result := r.verify(ctx, job.Prover, content, extras)

	mode := repo.Mode
	if mode == "" {
		mode = modes.Default
	}
	var suggestions []string
	if mode.SuggestsTactics() && !result.Success {
		tactics, err := r.Verifier.SuggestTactics(ctx, job.Prover, content, result.Message)
		if err != nil {
			log.WithError(err).Debug("runner: suggest_tactics failed, continuing without suggestions")
		}
		for _, t := range tactics {
			suggestions = append(suggestions, t.Tactic)
		}
	}
	formatted := mode.FormatResult(result.Success, string(job.Prover), result.Message, suggestions)

	r.reportAndFinish(ctx, a, repo, checkID, job, result.Success, formatted.Summary, result)
}

// verificationOutcome is the normalized result of either the remote
// verifier or the local executor, collapsed onto model.JobResult's
// shape so drive doesn't need to branch on which path produced it.
type verificationOutcome = model.JobResult

// verify dispatches to the remote verifier when healthy, else falls back
// to the local sandboxed executor. Verifier requests run inside the
// retry policy's classified-backoff loop; the executor runs once.
func (r *Runner) verify(ctx context.Context, kind prover.Kind, content string, extras map[string][]byte) verificationOutcome {
	if r.Verifier != nil && r.Verifier.HealthCheck(ctx) {
		var out verificationOutcome
		err := r.Retry.ExecuteAuto(func() error {
			res, err := r.Verifier.VerifyProof(ctx, kind, content)
			if err != nil {
				return err
			}
			out = verificationOutcome{
				Success:      res.Status == verifier.StatusVerified,
				Message:      res.Message,
				ProverOutput: res.ProverOutput,
				DurationMs:   res.DurationMs,
			}
			return nil
		})
		if err == nil {
			return out
		}
		logrus.WithError(err).Warn("runner: verifier request exhausted retries, falling back to local executor")
	}

	if r.Executor == nil {
		return verificationOutcome{Success: false, Message: "no verifier available and no local executor configured"}
	}

	res, err := r.Executor.Execute(ctx, kind, []byte(content), extras)
	if err != nil {
		return verificationOutcome{Success: false, Message: "executor error: " + err.Error()}
	}

	msg := ""
	switch {
	case res.TimedOut:
		msg = "execution timed out"
	case res.OOMKilled:
		msg = "execution was killed for exceeding its memory bound"
	case !res.Success:
		msg = res.Stderr
	}
	return verificationOutcome{
		Success:      res.Success,
		Message:      msg,
		ProverOutput: res.Stdout,
		DurationMs:   res.DurationMs,
	}
}

// reportAndFinish updates the check run on the originating platform
// (best effort: a reporting failure is logged, never fatal to the job
// outcome) and then persists the terminal state.
func (r *Runner) reportAndFinish(ctx context.Context, a adapter.PlatformAdapter, repo model.Repository, checkID model.CheckRunId, job model.ProofJob, success bool, summary string, result model.JobResult) {
	conclusion := model.ConclusionFailure
	if success {
		conclusion = model.ConclusionSuccess
	}
	if checkID != "" {
		if err := a.UpdateCheckRun(ctx, repo.RepoId, checkID, model.CheckStatus{
			Kind:       model.CheckCompleted,
			Conclusion: conclusion,
			Summary:    summary,
		}); err != nil {
			logrus.WithError(err).WithField("job_id", job.ID).Warn("runner: update_check_run failed")
		}
	}
	r.finish(ctx, job, success, summary, result)
}

// finish transitions the job to terminal in the scheduler and persists
// it to the store. Comment posting to a PR is not attempted here: a
// ProofJob carries a commit SHA, not a PR number, so per-job comments
// remain a control-API-triggered capability instead.
func (r *Runner) finish(ctx context.Context, job model.ProofJob, success bool, message string, result model.JobResult) {
	r.Scheduler.CompleteJob(job.ID, success, message, result)

	job.Complete(success, message, result)
	if err := r.Store.UpdateJob(ctx, job); err != nil {
		logrus.WithError(err).WithField("job_id", job.ID).Error("runner: persisting completed job failed")
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	metrics.RecordJobCompleted(string(job.Prover), outcome)
}

// readProofContent loads the prover's source text from the cloned
// working tree. When job.FilePaths names a file it is read directly; an
// empty FilePaths ("check all") falls back to the first file under dir
// matching the prover's registered extension.
// Every other file found for the same prover extension is attached as
// extraFiles so multi-file proofs still see their siblings.
func readProofContent(dir string, job model.ProofJob) (string, map[string][]byte, error) {
	meta := prover.MustLookup(job.Prover)

	var target string
	if len(job.FilePaths) > 0 {
		target = filepath.Join(dir, job.FilePaths[0])
	}

	extras := make(map[string][]byte)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !matchesAnyExtension(path, meta.Extensions) {
			return nil
		}
		if target == "" {
			target = path
			return nil
		}
		if path == target {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr == nil {
			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil {
				rel = filepath.Base(path)
			}
			extras[rel] = data
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	if target == "" {
		return "", nil, os.ErrNotExist
	}

	content, err := os.ReadFile(target)
	if err != nil {
		return "", nil, err
	}
	return string(content), extras, nil
}

func matchesAnyExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	for _, e := range extensions {
		if e == ext {
			return true
		}
	}
	return false
}
