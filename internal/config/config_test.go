package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GITHUB_TOKEN", "GITLAB_TOKEN", "GITLAB_URL", "BITBUCKET_USERNAME", "BITBUCKET_APP_PASSWORD", "BITBUCKET_URL", "CODEBERG_TOKEN", "CODEBERG_URL"} {
		t.Setenv(key, "")
	}
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	clearCredentialEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFillsCredentialsFromEnv(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("GITHUB_TOKEN", "env-token")
	t.Setenv("GITLAB_URL", "https://gitlab.example.com")
	t.Setenv("CODEBERG_TOKEN", "cb-token")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Credentials.GitHubToken)
	assert.Equal(t, "https://gitlab.example.com", cfg.Credentials.GitLabURL)
	assert.Equal(t, "cb-token", cfg.Credentials.CodebergToken)
}

func TestLoadFilePrecedesEnv(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("GITHUB_TOKEN", "env-token")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[credentials]
github_token = "file-token"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.Credentials.GitHubToken)
}

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
verifier_url = "https://verifier.example.com/graphql"

[server]
port = 9090

[store]
backend = "redis"
redis_url = "redis://localhost:6379"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis://localhost:6379", cfg.Store.RedisURL)
	// Untouched fields keep their default value.
	assert.Equal(t, Default().Scheduler, cfg.Scheduler)
}

func TestLoadRejectsRedisBackendWithoutURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[store]
backend = "redis"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[repo_defaults]
mode = "dictator"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.toml")
	assert.Error(t, err)
}
