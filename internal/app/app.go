// Package app is the composition root: it turns a loaded config.Config
// into the wired set of components every CLI subcommand needs (store,
// scheduler, adapters, verifier client, executor, retry policy).
// `serve` builds its dependency graph here from the config file; the
// client subcommands (`register`, `check`, `status`, `list`) talk to a
// running server's control API instead, and `init-db` opens the store
// directly.
package app

import (
	"time"

	"github.com/formalci/formalci/internal/adapter"
	"github.com/formalci/formalci/internal/config"
	"github.com/formalci/formalci/internal/executor"
	"github.com/formalci/formalci/internal/model"
	"github.com/formalci/formalci/internal/retry"
	"github.com/formalci/formalci/internal/scheduler"
	"github.com/formalci/formalci/internal/store"
	"github.com/formalci/formalci/internal/verifier"
)

// App holds every wired component a CLI subcommand or the HTTP server
// might need.
type App struct {
	Config    config.Config
	Store     store.Store
	Scheduler *scheduler.Scheduler
	Verifier  *verifier.Client
	Executor  *executor.Executor
	Retry     *retry.Policy
	Adapters  map[model.Platform]adapter.PlatformAdapter
}

// Build constructs an App from a loaded configuration. The store backend
// is selected by cfg.Store.Backend; GitHub, GitLab and Bitbucket
// adapters are constructed only when their credentials in
// cfg.Credentials are non-empty, and the Codeberg adapter is always
// constructed (a platform with no adapter is simply absent from Adapters,
// and jobs routed to it fail with a clear "no adapter" error rather than
// a nil-pointer panic).
func Build(cfg config.Config) (*App, error) {
	var st store.Store
	switch cfg.Store.Backend {
	case "redis":
		st = store.NewRedis(cfg.Store.RedisURL)
	default:
		st = store.NewMemory()
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.Retry.MaxRetries
	retryCfg.Multiplier = cfg.Retry.Multiplier
	retryCfg.InitialBackoff, retryCfg.MaxBackoff = cfg.Retry.AsDurations()

	a := &App{
		Config:    cfg,
		Store:     st,
		Scheduler: scheduler.New(cfg.Scheduler.MaxConcurrent, cfg.Scheduler.MaxQueueSize),
		Verifier:  verifier.New(cfg.VerifierURL),
		Executor:  executor.New(executor.SecurityProfile(cfg.Executor.Profile)),
		Retry:     retry.WithConfig(retryCfg),
		Adapters:  map[model.Platform]adapter.PlatformAdapter{},
	}
	a.Executor.Bounds.MemoryMB = cfg.Executor.MemoryMB
	a.Executor.Bounds.CPUCores = cfg.Executor.CPUCores
	if cfg.Executor.WallClockSecs > 0 {
		a.Executor.Bounds.WallClock = time.Duration(cfg.Executor.WallClockSecs) * time.Second
	}

	if cfg.Credentials.GitHubToken != "" {
		a.Adapters[model.GitHub] = adapter.NewGitHubAdapter(cfg.Credentials.GitHubToken, "")
	}
	if cfg.Credentials.GitLabToken != "" {
		a.Adapters[model.GitLab] = adapter.NewGitLabAdapter(cfg.Credentials.GitLabToken, cfg.Credentials.GitLabURL)
	}
	if cfg.Credentials.BitbucketUsername != "" && cfg.Credentials.BitbucketAppPassword != "" {
		a.Adapters[model.Bitbucket] = adapter.NewBitbucketAdapter(
			cfg.Credentials.BitbucketUsername, cfg.Credentials.BitbucketAppPassword, cfg.Credentials.BitbucketURL, "formalci",
		)
	}
	// Codeberg is registered even without a token: anonymous clones and
	// webhook-driven reads still work; API writes need CODEBERG_TOKEN.
	a.Adapters[model.Codeberg] = adapter.NewCodebergAdapter(cfg.Credentials.CodebergToken, cfg.Credentials.CodebergURL)

	return a, nil
}
