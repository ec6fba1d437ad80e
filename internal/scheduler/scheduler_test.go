package scheduler

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formalci/formalci/internal/model"
	"github.com/formalci/formalci/internal/prover"
)

func newJob(repoID uuid.UUID, commit string, priority model.JobPriority) model.ProofJob {
	return model.NewProofJob(repoID, commit, prover.Coq, nil).WithPriority(priority)
}

func TestEnqueueRejectsDuplicateByRepoCommitProver(t *testing.T) {
	s := New(4, 100)
	repoID := uuid.New()

	job := newJob(repoID, "c1", model.PriorityNormal)
	_, firstOK := s.Enqueue(job)
	_, secondOK := s.Enqueue(job)

	assert.True(t, firstOK)
	assert.False(t, secondOK)
	assert.Equal(t, 1, s.Stats().Queued)
}

func TestEnqueueAllowsSameCommitDifferentProver(t *testing.T) {
	s := New(4, 100)
	repoID := uuid.New()

	a := model.NewProofJob(repoID, "c1", prover.Coq, nil)
	b := model.NewProofJob(repoID, "c1", prover.Lean, nil)

	_, okA := s.Enqueue(a)
	_, okB := s.Enqueue(b)

	assert.True(t, okA)
	assert.True(t, okB)
	assert.Equal(t, 2, s.Stats().Queued)
}

func TestEnqueueRejectsWhenQueueFull(t *testing.T) {
	s := New(4, 1)
	repoID := uuid.New()

	_, first := s.Enqueue(newJob(repoID, "c1", model.PriorityNormal))
	_, second := s.Enqueue(newJob(repoID, "c2", model.PriorityNormal))

	assert.True(t, first)
	assert.False(t, second)
}

func TestEnqueueOrdersByPriority(t *testing.T) {
	s := New(4, 100)
	repoID := uuid.New()

	low := newJob(repoID, "c1", model.PriorityLow)
	critical := newJob(repoID, "c2", model.PriorityCritical)
	normal := newJob(repoID, "c3", model.PriorityNormal)

	s.Enqueue(low)
	s.Enqueue(critical)
	s.Enqueue(normal)

	first, ok := s.TryStartNext()
	require.True(t, ok)
	assert.Equal(t, critical.ID, first.ID)

	second, ok := s.TryStartNext()
	require.True(t, ok)
	assert.Equal(t, normal.ID, second.ID)

	third, ok := s.TryStartNext()
	require.True(t, ok)
	assert.Equal(t, low.ID, third.ID)
}

func TestTryStartNextRespectsConcurrencyCap(t *testing.T) {
	s := New(1, 100)
	repoID := uuid.New()

	s.Enqueue(newJob(repoID, "c1", model.PriorityNormal))
	s.Enqueue(newJob(repoID, "c2", model.PriorityNormal))

	_, ok := s.TryStartNext()
	require.True(t, ok)
	assert.False(t, s.HasCapacity())

	_, ok = s.TryStartNext()
	assert.False(t, ok)
	assert.Equal(t, 1, s.Stats().Queued)
}

func TestConcurrentTryStartNextRespectsCap(t *testing.T) {
	s := New(1, 100)
	repoID := uuid.New()

	for i := 0; i < 8; i++ {
		s.Enqueue(newJob(repoID, fmt.Sprintf("c%d", i), model.PriorityNormal))
	}

	const workers = 8
	var wg sync.WaitGroup
	started := make(chan model.ProofJob, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if job, ok := s.TryStartNext(); ok {
				started <- job
			}
		}()
	}
	wg.Wait()
	close(started)

	var count int
	for range started {
		count++
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, s.Stats().Running)
}

func TestCompleteJobFreesCapacity(t *testing.T) {
	s := New(1, 100)
	repoID := uuid.New()

	job := newJob(repoID, "c1", model.PriorityNormal)
	s.Enqueue(job)
	started, ok := s.TryStartNext()
	require.True(t, ok)

	s.CompleteJob(started.ID, true, "ok", model.JobResult{Success: true})
	assert.True(t, s.HasCapacity())
	assert.Equal(t, 0, s.Stats().Running)

	_, stillThere := s.GetJob(started.ID)
	assert.False(t, stillThere)
}

func TestCancelJobOnlyAffectsQueuedJobs(t *testing.T) {
	s := New(1, 100)
	repoID := uuid.New()

	queued := newJob(repoID, "c1", model.PriorityNormal)
	running := newJob(repoID, "c2", model.PriorityNormal)
	s.Enqueue(running)
	s.Enqueue(queued)

	startedJob, ok := s.TryStartNext()
	require.True(t, ok)
	assert.Equal(t, running.ID, startedJob.ID)

	assert.True(t, s.CancelJob(queued.ID))
	assert.False(t, s.CancelJob(startedJob.ID))
}

func TestJobsForRepoCoversQueuedAndRunning(t *testing.T) {
	s := New(4, 100)
	repoA := uuid.New()
	repoB := uuid.New()

	s.Enqueue(newJob(repoA, "c1", model.PriorityNormal))
	s.Enqueue(newJob(repoA, "c2", model.PriorityNormal))
	s.Enqueue(newJob(repoB, "c3", model.PriorityNormal))
	s.TryStartNext()

	assert.Len(t, s.JobsForRepo(repoA), 2)
	assert.Len(t, s.JobsForRepo(repoB), 1)
}

func TestRehydrateOrdersQueueByPriority(t *testing.T) {
	s := New(4, 100)
	repoID := uuid.New()

	queued := []model.ProofJob{
		newJob(repoID, "c1", model.PriorityLow),
		newJob(repoID, "c2", model.PriorityCritical),
		newJob(repoID, "c3", model.PriorityHigh),
	}
	s.Rehydrate(queued)

	first, ok := s.TryStartNext()
	require.True(t, ok)
	assert.Equal(t, model.PriorityCritical, first.Priority)
}
