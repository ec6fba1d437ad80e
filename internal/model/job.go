package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/formalci/formalci/internal/prover"
)

// JobPriority is totally ordered; higher values run first.
type JobPriority int

const (
	PriorityLow JobPriority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p JobPriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// JobStatus follows Queued -> Running -> (Completed | Failed |
// Cancelled), plus the shortcut Queued -> Cancelled. Running ->
// Cancelled is never valid; running jobs run to completion.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether a status is one of the three terminal states.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// JobResult is attached to a job once it reaches a terminal status.
type JobResult struct {
	Success       bool
	Message       string
	ProverOutput  string
	DurationMs    uint64
	VerifiedFiles []string
	FailedFiles   []string
}

// ProofJob is one scheduled unit of work: one (repo, commit, prover)
// triple, per the GLOSSARY.
type ProofJob struct {
	ID          uuid.UUID
	RepoID      uuid.UUID
	CommitSHA   string
	Prover      prover.Kind
	FilePaths   []string
	Priority    JobPriority
	Status      JobStatus
	QueuedAt    time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Result      *JobResult
	ErrorMsg    string
}

// NewProofJob builds a freshly queued job with PriorityNormal; callers
// adjust priority with WithPriority before enqueuing.
func NewProofJob(repoID uuid.UUID, commitSHA string, p prover.Kind, filePaths []string) ProofJob {
	return ProofJob{
		ID:        uuid.New(),
		RepoID:    repoID,
		CommitSHA: commitSHA,
		Prover:    p,
		FilePaths: filePaths,
		Priority:  PriorityNormal,
		Status:    StatusQueued,
		QueuedAt:  time.Now(),
	}
}

// WithPriority returns a copy of the job with priority overridden.
func (j ProofJob) WithPriority(p JobPriority) ProofJob {
	j.Priority = p
	return j
}

// DedupKey returns the (repo_id, commit_sha, prover) triple the
// scheduler's admission control keys duplicate detection on. It is
// deliberately independent of FilePaths: re-running the same prover on
// a different file subset is not a distinct job.
func (j ProofJob) DedupKey() [3]string {
	return [3]string{j.RepoID.String(), j.CommitSHA, string(j.Prover)}
}

// Start transitions the job to Running and stamps StartedAt.
func (j *ProofJob) Start() {
	now := time.Now()
	j.Status = StatusRunning
	j.StartedAt = &now
}

// Complete transitions the job to a terminal status and attaches a
// result, computing duration from StartedAt when available.
func (j *ProofJob) Complete(success bool, message string, result JobResult) {
	now := time.Now()
	j.CompletedAt = &now
	if success {
		j.Status = StatusCompleted
	} else {
		j.Status = StatusFailed
		j.ErrorMsg = message
	}
	if j.StartedAt != nil {
		result.DurationMs = uint64(now.Sub(*j.StartedAt).Milliseconds())
	}
	j.Result = &result
}

// Cancel transitions a queued job to Cancelled. Callers must not call
// this on a Running job; the scheduler enforces that separately.
func (j *ProofJob) Cancel() {
	j.Status = StatusCancelled
}

// DurationMs returns the elapsed time since start, or 0 if not started.
func (j ProofJob) DurationMs() uint64 {
	if j.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	return uint64(end.Sub(*j.StartedAt).Milliseconds())
}
