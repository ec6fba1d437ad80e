package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"

	"github.com/formalci/formalci/internal/bot"
	"github.com/formalci/formalci/internal/model"
)

// Redis key layout. Repositories are indexed twice: by id (the primary
// record) and by a deterministic name key (for GetRepositoryByName and
// the uniqueness check CreateRepository enforces).
const (
	repoKeyPrefix    = "formalci:repo:"
	repoIndexPrefix  = "formalci:repo:byname:"
	repoSetKey       = "formalci:repos"
	jobKeyPrefix     = "formalci:job:"
	jobsByRepoPrefix = "formalci:jobs:repo:"
	queuedJobsSetKey = "formalci:jobs:queued"
)

// redisStore is a Store backed by a redigo connection pool, for
// deployments where job history must survive a process restart.
type redisStore struct {
	pool *redis.Pool
}

// NewRedis builds a Store backed by Redis at addr.
func NewRedis(addr string) Store {
	pool := &redis.Pool{
		MaxIdle:     8,
		MaxActive:   32,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
	}
	return &redisStore{pool: pool}
}

func repoNameKey(platform model.Platform, owner, name string) string {
	return fmt.Sprintf("%s%s/%s/%s", repoIndexPrefix, platform, owner, name)
}

func (r *redisStore) CreateRepository(ctx context.Context, repo model.Repository) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer conn.Close()

	nameKey := repoNameKey(repo.RepoId.Platform, repo.RepoId.Owner, repo.RepoId.Name)
	existing, err := redis.String(conn.Do("GET", nameKey))
	if err != nil && err != redis.ErrNil {
		return storeErr(err)
	}
	if existing != "" {
		return ErrAlreadyExists
	}

	payload, err := json.Marshal(repo)
	if err != nil {
		return storeErr(err)
	}

	if _, err := conn.Do("SET", repoKeyPrefix+repo.ID.String(), payload); err != nil {
		return storeErr(err)
	}
	if _, err := conn.Do("SET", nameKey, repo.ID.String()); err != nil {
		return storeErr(err)
	}
	if _, err := conn.Do("SADD", repoSetKey, repo.ID.String()); err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *redisStore) GetRepository(ctx context.Context, id uuid.UUID) (model.Repository, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return model.Repository{}, storeErr(err)
	}
	defer conn.Close()

	raw, err := redis.Bytes(conn.Do("GET", repoKeyPrefix+id.String()))
	if err == redis.ErrNil {
		return model.Repository{}, ErrNotFound
	}
	if err != nil {
		return model.Repository{}, storeErr(err)
	}

	var repo model.Repository
	if err := json.Unmarshal(raw, &repo); err != nil {
		return model.Repository{}, storeErr(err)
	}
	return repo, nil
}

func (r *redisStore) GetRepositoryByName(ctx context.Context, platform model.Platform, owner, name string) (model.Repository, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return model.Repository{}, storeErr(err)
	}
	idStr, err := redis.String(conn.Do("GET", repoNameKey(platform, owner, name)))
	conn.Close()
	if err == redis.ErrNil {
		return model.Repository{}, ErrNotFound
	}
	if err != nil {
		return model.Repository{}, storeErr(err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return model.Repository{}, storeErr(err)
	}
	return r.GetRepository(ctx, id)
}

func (r *redisStore) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	ids, err := redis.Strings(conn.Do("SMEMBERS", repoSetKey))
	conn.Close()
	if err != nil {
		return nil, storeErr(err)
	}

	out := make([]model.Repository, 0, len(ids))
	for _, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		repo, err := r.GetRepository(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, repo)
	}
	return out, nil
}

func (r *redisStore) UpdateRepository(ctx context.Context, repo model.Repository) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer conn.Close()

	exists, err := redis.Bool(conn.Do("EXISTS", repoKeyPrefix+repo.ID.String()))
	if err != nil {
		return storeErr(err)
	}
	if !exists {
		return ErrNotFound
	}

	payload, err := json.Marshal(repo)
	if err != nil {
		return storeErr(err)
	}
	_, err = conn.Do("SET", repoKeyPrefix+repo.ID.String(), payload)
	return storeErr(err)
}

func (r *redisStore) DeleteRepository(ctx context.Context, id uuid.UUID) error {
	repo, err := r.GetRepository(ctx, id)
	if err != nil {
		return err
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer conn.Close()

	if _, err := conn.Do("DEL", repoKeyPrefix+id.String()); err != nil {
		return storeErr(err)
	}
	if _, err := conn.Do("DEL", repoNameKey(repo.RepoId.Platform, repo.RepoId.Owner, repo.RepoId.Name)); err != nil {
		return storeErr(err)
	}
	if _, err := conn.Do("SREM", repoSetKey, id.String()); err != nil {
		return storeErr(err)
	}

	jobIDs, err := redis.Strings(conn.Do("SMEMBERS", jobsByRepoPrefix+id.String()))
	if err != nil {
		return storeErr(err)
	}
	for _, jobID := range jobIDs {
		conn.Do("DEL", jobKeyPrefix+jobID)
		conn.Do("SREM", queuedJobsSetKey, jobID)
	}
	_, err = conn.Do("DEL", jobsByRepoPrefix+id.String())
	return storeErr(err)
}

func (r *redisStore) CreateJob(ctx context.Context, job model.ProofJob) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer conn.Close()

	payload, err := json.Marshal(job)
	if err != nil {
		return storeErr(err)
	}

	if _, err := conn.Do("SET", jobKeyPrefix+job.ID.String(), payload); err != nil {
		return storeErr(err)
	}
	if _, err := conn.Do("SADD", jobsByRepoPrefix+job.RepoID.String(), job.ID.String()); err != nil {
		return storeErr(err)
	}
	if job.Status == model.StatusQueued {
		if _, err := conn.Do("SADD", queuedJobsSetKey, job.ID.String()); err != nil {
			return storeErr(err)
		}
	}
	return nil
}

func (r *redisStore) GetJob(ctx context.Context, id uuid.UUID) (model.ProofJob, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return model.ProofJob{}, storeErr(err)
	}
	defer conn.Close()

	raw, err := redis.Bytes(conn.Do("GET", jobKeyPrefix+id.String()))
	if err == redis.ErrNil {
		return model.ProofJob{}, ErrNotFound
	}
	if err != nil {
		return model.ProofJob{}, storeErr(err)
	}

	var job model.ProofJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return model.ProofJob{}, storeErr(err)
	}
	return job, nil
}

func (r *redisStore) UpdateJob(ctx context.Context, job model.ProofJob) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer conn.Close()

	exists, err := redis.Bool(conn.Do("EXISTS", jobKeyPrefix+job.ID.String()))
	if err != nil {
		return storeErr(err)
	}
	if !exists {
		return ErrNotFound
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return storeErr(err)
	}
	if _, err := conn.Do("SET", jobKeyPrefix+job.ID.String(), payload); err != nil {
		return storeErr(err)
	}

	if job.Status.Terminal() {
		_, err = conn.Do("SREM", queuedJobsSetKey, job.ID.String())
	} else if job.Status == model.StatusQueued {
		_, err = conn.Do("SADD", queuedJobsSetKey, job.ID.String())
	}
	return storeErr(err)
}

func (r *redisStore) ListJobsForRepo(ctx context.Context, repoID uuid.UUID, limit int) ([]model.ProofJob, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	ids, err := redis.Strings(conn.Do("SMEMBERS", jobsByRepoPrefix+repoID.String()))
	conn.Close()
	if err != nil {
		return nil, storeErr(err)
	}

	out := make([]model.ProofJob, 0, len(ids))
	for _, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		job, err := r.GetJob(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, job)
	}
	sortJobsByQueuedAtDesc(out)
	return applyLimit(out, limit), nil
}

func (r *redisStore) ListQueuedJobs(ctx context.Context) ([]model.ProofJob, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	ids, err := redis.Strings(conn.Do("SMEMBERS", queuedJobsSetKey))
	conn.Close()
	if err != nil {
		return nil, storeErr(err)
	}

	out := make([]model.ProofJob, 0, len(ids))
	for _, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		job, err := r.GetJob(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, job)
	}
	sortJobsByQueuedAtDesc(out)
	return out, nil
}

func (r *redisStore) HealthCheck(ctx context.Context) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer conn.Close()
	_, err = conn.Do("PING")
	return storeErr(err)
}

// storeErr tags redis failures with the storage error kind so the retry
// classifier can tell a dropped connection from a data problem.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return bot.Wrap(bot.KindStore, "redis", err)
}
