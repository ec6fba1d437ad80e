package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formalci/formalci/internal/model"
	"github.com/formalci/formalci/internal/prover"
)

func newTestRepo(owner, name string) model.Repository {
	return model.Repository{
		ID: uuid.New(),
		RepoId: model.RepoId{
			Platform: model.GitHub,
			Owner:    owner,
			Name:     name,
		},
		EnabledProvers: []prover.Kind{prover.Coq},
		Enabled:        true,
		CheckOnPush:    true,
	}
}

func TestMemoryCreateAndGetRepository(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	repo := newTestRepo("acme", "widgets")
	require.NoError(t, s.CreateRepository(ctx, repo))

	got, err := s.GetRepository(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.RepoId, got.RepoId)
}

func TestMemoryCreateRepositoryRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	repo := newTestRepo("acme", "widgets")
	require.NoError(t, s.CreateRepository(ctx, repo))

	dup := newTestRepo("acme", "widgets")
	err := s.CreateRepository(ctx, dup)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestMemoryGetRepositoryByName(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	repo := newTestRepo("acme", "widgets")
	require.NoError(t, s.CreateRepository(ctx, repo))

	got, err := s.GetRepositoryByName(ctx, model.GitHub, "acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, repo.ID, got.ID)

	_, err = s.GetRepositoryByName(ctx, model.GitHub, "acme", "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDeleteRepositoryCascadesJobs(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	repo := newTestRepo("acme", "widgets")
	require.NoError(t, s.CreateRepository(ctx, repo))

	job := model.NewProofJob(repo.ID, "deadbeef", prover.Coq, []string{"Foo.v"})
	require.NoError(t, s.CreateJob(ctx, job))

	require.NoError(t, s.DeleteRepository(ctx, repo.ID))

	_, err := s.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryListJobsForRepoOrderedMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	repo := newTestRepo("acme", "widgets")
	require.NoError(t, s.CreateRepository(ctx, repo))

	older := model.NewProofJob(repo.ID, "commit1", prover.Coq, nil)
	newer := model.NewProofJob(repo.ID, "commit2", prover.Coq, nil)
	newer.QueuedAt = older.QueuedAt.Add(1)

	require.NoError(t, s.CreateJob(ctx, older))
	require.NoError(t, s.CreateJob(ctx, newer))

	jobs, err := s.ListJobsForRepo(ctx, repo.ID, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, newer.ID, jobs[0].ID)
	assert.Equal(t, older.ID, jobs[1].ID)
}

func TestMemoryListQueuedJobs(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	repo := newTestRepo("acme", "widgets")
	require.NoError(t, s.CreateRepository(ctx, repo))

	queued := model.NewProofJob(repo.ID, "commit1", prover.Coq, nil)
	running := model.NewProofJob(repo.ID, "commit2", prover.Coq, nil)
	running.Start()

	require.NoError(t, s.CreateJob(ctx, queued))
	require.NoError(t, s.CreateJob(ctx, running))

	jobs, err := s.ListQueuedJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, queued.ID, jobs[0].ID)
}

func TestMemoryHealthCheck(t *testing.T) {
	s := NewMemory()
	assert.NoError(t, s.HealthCheck(context.Background()))
}
