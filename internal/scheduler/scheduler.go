// Package scheduler implements the single-process priority job queue:
// admission control with dedup, stable priority ordering, a bounded
// concurrency cap on running jobs, and the start/complete/cancel
// lifecycle. State is a mutex-guarded pair of slices plus an atomic
// running counter; no method blocks on external I/O under the lock.
package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/formalci/formalci/internal/model"
)

// Stats is a point-in-time snapshot of queue/capacity state.
type Stats struct {
	Queued         int
	Running        int
	MaxConcurrent  int
	MaxQueueSize   int
}

// Scheduler is safe for concurrent use. No method blocks on external I/O
// while holding its mutex.
type Scheduler struct {
	mu      sync.Mutex
	queue   []model.ProofJob
	running []model.ProofJob

	activeCount int64

	maxConcurrent int
	maxQueueSize  int
}

// New builds a Scheduler with the given concurrency cap and queue size
// limit.
func New(maxConcurrent, maxQueueSize int) *Scheduler {
	return &Scheduler{
		maxConcurrent: maxConcurrent,
		maxQueueSize:  maxQueueSize,
	}
}

// Enqueue admits a job into the queue, in priority order, rejecting
// duplicates and queue-full conditions silently: it returns (id, true)
// on acceptance, (uuid.Nil, false) on rejection. Both rejection reasons
// are logged but indistinguishable to the caller; the caller is
// expected to also call store.CreateJob, which does surface real
// persistence errors.
func (s *Scheduler) Enqueue(job model.ProofJob) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) >= s.maxQueueSize {
		logrus.WithField("job_id", job.ID).Warn("scheduler: queue full, rejecting job")
		return uuid.Nil, false
	}

	key := job.DedupKey()
	for _, existing := range s.queue {
		if existing.DedupKey() == key {
			logrus.WithField("job_id", job.ID).Debug("scheduler: duplicate job, rejecting")
			return uuid.Nil, false
		}
	}

	insertAt := len(s.queue)
	for i, existing := range s.queue {
		if existing.Priority < job.Priority {
			insertAt = i
			break
		}
	}
	s.queue = append(s.queue, model.ProofJob{})
	copy(s.queue[insertAt+1:], s.queue[insertAt:])
	s.queue[insertAt] = job

	logrus.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"queue_size": len(s.queue),
		"priority":   job.Priority,
	}).Info("scheduler: enqueued job")

	return job.ID, true
}

// TryStartNext pops the highest-priority queued job and marks it
// Running, if capacity allows. Returns false if the queue is empty or
// the scheduler is already at max_concurrent.
func (s *Scheduler) TryStartNext() (model.ProofJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The capacity check must happen under the lock: two concurrent
	// callers could otherwise both observe a stale count and each pop a
	// job, pushing activeCount past maxConcurrent.
	if atomic.LoadInt64(&s.activeCount) >= int64(s.maxConcurrent) {
		return model.ProofJob{}, false
	}

	if len(s.queue) == 0 {
		return model.ProofJob{}, false
	}

	job := s.queue[0]
	s.queue = s.queue[1:]

	job.Start()
	atomic.AddInt64(&s.activeCount, 1)
	s.running = append(s.running, job)

	logrus.WithFields(logrus.Fields{
		"job_id": job.ID,
		"active": atomic.LoadInt64(&s.activeCount),
		"max":    s.maxConcurrent,
	}).Info("scheduler: started job")

	return job, true
}

// CompleteJob removes a running job, attaches a result, and decrements
// the active count. It is a no-op if the job is not currently running.
func (s *Scheduler) CompleteJob(id uuid.UUID, success bool, message string, result model.JobResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, job := range s.running {
		if job.ID != id {
			continue
		}
		job.Complete(success, message, result)
		s.running = append(s.running[:i], s.running[i+1:]...)
		atomic.AddInt64(&s.activeCount, -1)
		logrus.WithFields(logrus.Fields{
			"job_id":  id,
			"success": success,
			"active":  atomic.LoadInt64(&s.activeCount),
		}).Info("scheduler: completed job")
		return
	}
}

// GetJob finds a job by id across both running and queued jobs.
func (s *Scheduler) GetJob(id uuid.UUID) (model.ProofJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.running {
		if job.ID == id {
			return job, true
		}
	}
	for _, job := range s.queue {
		if job.ID == id {
			return job, true
		}
	}
	return model.ProofJob{}, false
}

// JobsForRepo returns every in-memory job (running or queued) belonging
// to a repository.
func (s *Scheduler) JobsForRepo(repoID uuid.UUID) []model.ProofJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.ProofJob
	for _, job := range s.running {
		if job.RepoID == repoID {
			out = append(out, job)
		}
	}
	for _, job := range s.queue {
		if job.RepoID == repoID {
			out = append(out, job)
		}
	}
	return out
}

// CancelJob removes a queued job, returning true on success. Running
// jobs cannot be cancelled; propagating cancellation into the executor
// would require a cancellation token threaded through the run API,
// which the run API does not carry today.
func (s *Scheduler) CancelJob(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, job := range s.queue {
		if job.ID == id {
			job.Cancel()
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			logrus.WithField("job_id", id).Info("scheduler: cancelled queued job")
			return true
		}
	}
	logrus.WithField("job_id", id).Warn("scheduler: cannot cancel (not queued)")
	return false
}

// Stats returns a snapshot of queue depth and capacity.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Queued:        len(s.queue),
		Running:       len(s.running),
		MaxConcurrent: s.maxConcurrent,
		MaxQueueSize:  s.maxQueueSize,
	}
}

// HasCapacity reports whether another job could start right now.
func (s *Scheduler) HasCapacity() bool {
	return atomic.LoadInt64(&s.activeCount) < int64(s.maxConcurrent)
}

// Rehydrate reloads Queued jobs from the store into the in-memory queue
// on process restart. Jobs persisted as Running at the time of a crash
// are not rehydrated; they stay in the store as historical records and
// need an explicit re-trigger to run again.
func (s *Scheduler) Rehydrate(queued []model.ProofJob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := make([]model.ProofJob, len(queued))
	copy(ordered, queued)
	for i := 1; i < len(ordered); i++ {
		j := i
		for j > 0 && ordered[j-1].Priority < ordered[j].Priority {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
			j--
		}
	}
	s.queue = ordered
	logrus.WithField("count", len(ordered)).Info("scheduler: rehydrated queue from store")
}
