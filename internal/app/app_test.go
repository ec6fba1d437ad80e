package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formalci/formalci/internal/config"
	"github.com/formalci/formalci/internal/model"
)

func TestBuildWithDefaultsUsesMemoryStoreAndNoCredentialedAdapters(t *testing.T) {
	a, err := Build(config.Default())
	require.NoError(t, err)

	require.NotNil(t, a.Store)
	require.NotNil(t, a.Scheduler)
	require.NotNil(t, a.Verifier)
	require.NotNil(t, a.Executor)
	require.NotNil(t, a.Retry)

	_, hasGitHub := a.Adapters[model.GitHub]
	_, hasGitLab := a.Adapters[model.GitLab]
	_, hasBitbucket := a.Adapters[model.Bitbucket]
	_, hasCodeberg := a.Adapters[model.Codeberg]
	assert.False(t, hasGitHub)
	assert.False(t, hasGitLab)
	assert.False(t, hasBitbucket)
	assert.True(t, hasCodeberg, "codeberg adapter is always present, even without credentials")
}

func TestBuildRegistersAdapterWhenCredentialsPresent(t *testing.T) {
	cfg := config.Default()
	cfg.Credentials.GitHubToken = "token123"
	cfg.Credentials.GitLabToken = "token456"
	cfg.Credentials.GitLabURL = "https://gitlab.example.com"
	cfg.Credentials.BitbucketUsername = "bot"
	cfg.Credentials.BitbucketAppPassword = "secret"

	a, err := Build(cfg)
	require.NoError(t, err)

	_, hasGitHub := a.Adapters[model.GitHub]
	_, hasGitLab := a.Adapters[model.GitLab]
	_, hasBitbucket := a.Adapters[model.Bitbucket]
	assert.True(t, hasGitHub)
	assert.True(t, hasGitLab)
	assert.True(t, hasBitbucket)
}

func TestBuildAppliesExecutorBoundsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Executor.MemoryMB = 4096
	cfg.Executor.CPUCores = 1.5
	cfg.Executor.WallClockSecs = 120

	a, err := Build(cfg)
	require.NoError(t, err)

	assert.Equal(t, 4096, a.Executor.Bounds.MemoryMB)
	assert.Equal(t, 1.5, a.Executor.Bounds.CPUCores)
	assert.Equal(t, 120*1e9, float64(a.Executor.Bounds.WallClock))
}

func TestBuildSelectsRedisStoreWhenConfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = "redis"
	cfg.Store.RedisURL = "localhost:6379"

	a, err := Build(cfg)
	require.NoError(t, err)
	assert.NotNil(t, a.Store)
}
