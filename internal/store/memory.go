package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/formalci/formalci/internal/model"
)

// memoryStore is a mutex-guarded in-process Store, for single-instance
// deployments and tests: RWMutex-guarded maps, no background
// goroutines.
type memoryStore struct {
	mu    sync.RWMutex
	repos map[uuid.UUID]model.Repository
	jobs  map[uuid.UUID]model.ProofJob
}

// NewMemory creates an in-memory Store.
func NewMemory() Store {
	return &memoryStore{
		repos: make(map[uuid.UUID]model.Repository),
		jobs:  make(map[uuid.UUID]model.ProofJob),
	}
}

func (m *memoryStore) CreateRepository(_ context.Context, repo model.Repository) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := keyOf(repo)
	for _, existing := range m.repos {
		if keyOf(existing) == key {
			return ErrAlreadyExists
		}
	}
	m.repos[repo.ID] = cloneRepo(repo)
	return nil
}

func (m *memoryStore) GetRepository(_ context.Context, id uuid.UUID) (model.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	repo, ok := m.repos[id]
	if !ok {
		return model.Repository{}, ErrNotFound
	}
	return cloneRepo(repo), nil
}

func (m *memoryStore) GetRepositoryByName(_ context.Context, platform model.Platform, owner, name string) (model.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := repoKey{platform: platform, owner: owner, name: name}
	for _, repo := range m.repos {
		if keyOf(repo) == want {
			return cloneRepo(repo), nil
		}
	}
	return model.Repository{}, ErrNotFound
}

func (m *memoryStore) ListRepositories(_ context.Context) ([]model.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Repository, 0, len(m.repos))
	for _, repo := range m.repos {
		out = append(out, cloneRepo(repo))
	}
	return out, nil
}

func (m *memoryStore) UpdateRepository(_ context.Context, repo model.Repository) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.repos[repo.ID]; !ok {
		return ErrNotFound
	}
	m.repos[repo.ID] = cloneRepo(repo)
	return nil
}

func (m *memoryStore) DeleteRepository(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.repos[id]; !ok {
		return ErrNotFound
	}
	delete(m.repos, id)

	for jobID, job := range m.jobs {
		if job.RepoID == id {
			delete(m.jobs, jobID)
		}
	}
	return nil
}

func (m *memoryStore) CreateJob(_ context.Context, job model.ProofJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; ok {
		return ErrAlreadyExists
	}
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *memoryStore) GetJob(_ context.Context, id uuid.UUID) (model.ProofJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return model.ProofJob{}, ErrNotFound
	}
	return cloneJob(job), nil
}

func (m *memoryStore) UpdateJob(_ context.Context, job model.ProofJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *memoryStore) ListJobsForRepo(_ context.Context, repoID uuid.UUID, limit int) ([]model.ProofJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.ProofJob
	for _, job := range m.jobs {
		if job.RepoID == repoID {
			out = append(out, cloneJob(job))
		}
	}
	sortJobsByQueuedAtDesc(out)
	return applyLimit(out, limit), nil
}

func (m *memoryStore) ListQueuedJobs(_ context.Context) ([]model.ProofJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.ProofJob
	for _, job := range m.jobs {
		if job.Status == model.StatusQueued {
			out = append(out, cloneJob(job))
		}
	}
	sortJobsByQueuedAtDesc(out)
	return out, nil
}

func (m *memoryStore) HealthCheck(_ context.Context) error {
	return nil
}
