// Package config loads the bot's TOML configuration file into a typed
// Config struct. Loading is a one-shot Load(path); the bot is
// single-node and restarts to pick up config changes, so there is no
// hot-reload machinery.
package config

import (
	"os"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/formalci/formalci/internal/bot"
	"github.com/formalci/formalci/internal/executor"
	"github.com/formalci/formalci/internal/modes"
)

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Port int `toml:"port"`
}

// CredentialsConfig holds per-platform credentials. Values left empty
// in the file fall back to the conventional environment variables
// (GITHUB_TOKEN, GITLAB_TOKEN, GITLAB_URL, BITBUCKET_USERNAME,
// BITBUCKET_APP_PASSWORD, BITBUCKET_URL, CODEBERG_TOKEN, CODEBERG_URL);
// operators are expected to populate either from a secrets manager
// rather than commit tokens.
type CredentialsConfig struct {
	GitHubToken          string `toml:"github_token"`
	GitLabToken          string `toml:"gitlab_token"`
	GitLabURL            string `toml:"gitlab_url"`
	BitbucketUsername    string `toml:"bitbucket_username"`
	BitbucketAppPassword string `toml:"bitbucket_app_password"`
	BitbucketURL         string `toml:"bitbucket_url"`
	CodebergToken        string `toml:"codeberg_token"`
	CodebergURL          string `toml:"codeberg_url"`
}

// RetryConfig mirrors internal/retry.Config's fields for TOML tuning.
type RetryConfig struct {
	MaxRetries        int     `toml:"max_retries"`
	InitialBackoffMs  int     `toml:"initial_backoff_ms"`
	MaxBackoffMs      int     `toml:"max_backoff_ms"`
	Multiplier        float64 `toml:"multiplier"`
}

// SchedulerConfig tunes the in-memory priority queue.
type SchedulerConfig struct {
	MaxConcurrent int `toml:"max_concurrent"`
	MaxQueueSize  int `toml:"max_queue_size"`
}

// StoreConfig selects and configures the durable backend.
type StoreConfig struct {
	Backend  string `toml:"backend"` // "memory" or "redis"
	RedisURL string `toml:"redis_url"`
}

// ExecutorConfig tunes the prover subprocess sandbox.
type ExecutorConfig struct {
	Profile       string `toml:"profile"` // "maximum", "standard", "minimal"
	MemoryMB      int    `toml:"memory_mb"`
	CPUCores      float64 `toml:"cpu_cores"`
	WallClockSecs int    `toml:"wall_clock_secs"`
}

// RepoDefaults are applied to newly-registered repositories that don't
// override them explicitly via the control API.
type RepoDefaults struct {
	Mode        string `toml:"mode"` // verifier/advisor/consultant/regulator
	AutoComment bool   `toml:"auto_comment"`
}

// Config is the bot's top-level configuration.
type Config struct {
	Server        ServerConfig      `toml:"server"`
	Credentials   CredentialsConfig `toml:"credentials"`
	VerifierURL   string            `toml:"verifier_url"`
	Retry         RetryConfig       `toml:"retry"`
	Scheduler     SchedulerConfig   `toml:"scheduler"`
	Store         StoreConfig       `toml:"store"`
	Executor      ExecutorConfig    `toml:"executor"`
	RepoDefaults  RepoDefaults      `toml:"repo_defaults"`
}

// Default returns a Config with every field at its documented default,
// for use when no file is given (e.g. local development).
func Default() Config {
	return Config{
		Server:      ServerConfig{Port: 8080},
		VerifierURL: "http://localhost:4000/graphql",
		Retry: RetryConfig{
			MaxRetries:       3,
			InitialBackoffMs: 1000,
			MaxBackoffMs:     60000,
			Multiplier:       2.0,
		},
		Scheduler: SchedulerConfig{MaxConcurrent: 4, MaxQueueSize: 1000},
		Store:     StoreConfig{Backend: "memory"},
		Executor: ExecutorConfig{
			Profile:       string(executor.ProfileStandard),
			MemoryMB:      2048,
			CPUCores:      2.0,
			WallClockSecs: 300,
		},
		RepoDefaults: RepoDefaults{Mode: string(modes.Default), AutoComment: true},
	}
}

// Load reads and parses path into a Config seeded with Default(), so a
// partial file only needs to specify the fields it overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, bot.Wrap(bot.KindConfig, "reading config file", err)
		}
		if err := toml.Unmarshal(content, &cfg); err != nil {
			return Config{}, bot.Wrap(bot.KindConfig, "parsing config file", err)
		}
	}
	cfg.Credentials.fillFromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// fillFromEnv populates credential fields the file left empty from the
// conventional environment variables.
func (c *CredentialsConfig) fillFromEnv() {
	fill := func(dst *string, env string) {
		if *dst == "" {
			*dst = os.Getenv(env)
		}
	}
	fill(&c.GitHubToken, "GITHUB_TOKEN")
	fill(&c.GitLabToken, "GITLAB_TOKEN")
	fill(&c.GitLabURL, "GITLAB_URL")
	fill(&c.BitbucketUsername, "BITBUCKET_USERNAME")
	fill(&c.BitbucketAppPassword, "BITBUCKET_APP_PASSWORD")
	fill(&c.BitbucketURL, "BITBUCKET_URL")
	fill(&c.CodebergToken, "CODEBERG_TOKEN")
	fill(&c.CodebergURL, "CODEBERG_URL")
}

// Validate rejects configurations that would make the bot misbehave in
// a way that's cheaper to catch at load time than at runtime.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return bot.New(bot.KindConfig, "server.port must be between 1 and 65535")
	}
	if c.VerifierURL == "" {
		return bot.New(bot.KindConfig, "verifier_url must be set")
	}
	switch c.Store.Backend {
	case "memory", "redis":
	default:
		return bot.New(bot.KindConfig, "store.backend must be \"memory\" or \"redis\"")
	}
	if c.Store.Backend == "redis" && c.Store.RedisURL == "" {
		return bot.New(bot.KindConfig, "store.redis_url is required when store.backend = \"redis\"")
	}
	if c.Scheduler.MaxConcurrent <= 0 {
		return bot.New(bot.KindConfig, "scheduler.max_concurrent must be positive")
	}
	if c.Scheduler.MaxQueueSize <= 0 {
		return bot.New(bot.KindConfig, "scheduler.max_queue_size must be positive")
	}
	if !modes.Mode(c.RepoDefaults.Mode).Valid() {
		return bot.New(bot.KindConfig, "repo_defaults.mode must be one of verifier/advisor/consultant/regulator")
	}
	return nil
}

// AsDurations converts the millisecond fields loaded from TOML
// into time.Durations, the shape internal/retry.Config expects.
func (c RetryConfig) AsDurations() (initial, max time.Duration) {
	return time.Duration(c.InitialBackoffMs) * time.Millisecond, time.Duration(c.MaxBackoffMs) * time.Millisecond
}
