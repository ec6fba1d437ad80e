// Package store defines the durable persistence interface for
// repositories and proof jobs, and two implementations: an in-memory
// backend for single-process/test use, and a Redis-backed backend for
// multi-process deployments.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/formalci/formalci/internal/model"
	"github.com/formalci/formalci/internal/prover"
)

// Store is the persistence boundary every component depends on instead
// of a concrete backend.
type Store interface {
	CreateRepository(ctx context.Context, repo model.Repository) error
	GetRepository(ctx context.Context, id uuid.UUID) (model.Repository, error)
	GetRepositoryByName(ctx context.Context, platform model.Platform, owner, name string) (model.Repository, error)
	ListRepositories(ctx context.Context) ([]model.Repository, error)
	UpdateRepository(ctx context.Context, repo model.Repository) error
	DeleteRepository(ctx context.Context, id uuid.UUID) error

	CreateJob(ctx context.Context, job model.ProofJob) error
	GetJob(ctx context.Context, id uuid.UUID) (model.ProofJob, error)
	UpdateJob(ctx context.Context, job model.ProofJob) error
	ListJobsForRepo(ctx context.Context, repoID uuid.UUID, limit int) ([]model.ProofJob, error)
	ListQueuedJobs(ctx context.Context) ([]model.ProofJob, error)

	HealthCheck(ctx context.Context) error
}

// ErrNotFound is returned by Get*/Update*/Delete* when the target
// record does not exist.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "store: not found" }

// ErrAlreadyExists is returned by CreateRepository when the
// (platform, owner, name) triple is already registered.
var ErrAlreadyExists = errAlreadyExists{}

type errAlreadyExists struct{}

func (errAlreadyExists) Error() string { return "store: already exists" }

func cloneRepo(r model.Repository) model.Repository {
	out := r
	out.EnabledProvers = append([]prover.Kind(nil), r.EnabledProvers...)
	out.WebhookSecret = append([]byte(nil), r.WebhookSecret...)
	return out
}

func cloneJob(j model.ProofJob) model.ProofJob {
	out := j
	out.FilePaths = append([]string(nil), j.FilePaths...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	if j.Result != nil {
		r := *j.Result
		r.VerifiedFiles = append([]string(nil), j.Result.VerifiedFiles...)
		r.FailedFiles = append([]string(nil), j.Result.FailedFiles...)
		out.Result = &r
	}
	return out
}

// repoKey is the unique lookup key for a registered repository.
type repoKey struct {
	platform model.Platform
	owner    string
	name     string
}

func keyOf(r model.Repository) repoKey {
	return repoKey{platform: r.RepoId.Platform, owner: r.RepoId.Owner, name: r.RepoId.Name}
}

// sortJobsByQueuedAtDesc orders jobs most-recent-first by QueuedAt,
// the ordering every job listing promises.
func sortJobsByQueuedAtDesc(jobs []model.ProofJob) {
	for i := 1; i < len(jobs); i++ {
		j := i
		for j > 0 && jobs[j-1].QueuedAt.Before(jobs[j].QueuedAt) {
			jobs[j-1], jobs[j] = jobs[j], jobs[j-1]
			j--
		}
	}
}

func applyLimit(jobs []model.ProofJob, limit int) []model.ProofJob {
	if limit > 0 && len(jobs) > limit {
		return jobs[:limit]
	}
	return jobs
}
