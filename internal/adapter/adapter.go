// Package adapter unifies GitHub, GitLab, Bitbucket, and Codeberg
// behind a single PlatformAdapter capability set, plus a shared
// git-clone helper every adapter uses to materialize the commit under
// test.
package adapter

import (
	"context"

	"github.com/formalci/formalci/internal/model"
)

// PlatformAdapter is the capability set every code-hosting platform
// must implement. Every method is a total function over its inputs:
// create_check_run in particular must never fail to produce *some*
// platform-native representation of a platform-neutral status.
type PlatformAdapter interface {
	Platform() model.Platform

	// CloneRepo shallow-clones repo at commit (or the default branch tip
	// if commit == "HEAD") into a temporary directory the caller owns
	// and must remove.
	CloneRepo(ctx context.Context, repo model.RepoId, commit string) (string, error)

	CreateCheckRun(ctx context.Context, repo model.RepoId, run model.CheckRun) (model.CheckRunId, error)
	UpdateCheckRun(ctx context.Context, repo model.RepoId, id model.CheckRunId, status model.CheckStatus) error
	CreateComment(ctx context.Context, repo model.RepoId, pr model.PrId, body string) (model.CommentId, error)
	CreateIssue(ctx context.Context, repo model.RepoId, issue model.NewIssue) (model.IssueId, error)
	GetDefaultBranch(ctx context.Context, repo model.RepoId) (string, error)
}

// StatusMapping is a platform's fixed, total mapping from the
// platform-neutral CheckConclusion set onto a platform-native value of
// type T. Every adapter builds one of these instead of a branch cascade,
// so the "mapping MUST be complete" requirement is enforced once, in
// Map's Collapsed() fallback, rather than by auditing switch statements
// for missing cases.
type StatusMapping[T any] struct {
	entries map[model.CheckConclusion]T
}

// NewStatusMapping builds a StatusMapping from a copy of explicit. The
// table only needs entries for the conclusions a platform actually
// distinguishes; Map resolves the rest through Collapsed().
func NewStatusMapping[T any](explicit map[model.CheckConclusion]T) StatusMapping[T] {
	m := StatusMapping[T]{entries: make(map[model.CheckConclusion]T, len(explicit))}
	for k, v := range explicit {
		m.entries[k] = v
	}
	return m
}

// Map looks up c, falling back to c.Collapsed() when the table has no
// direct entry, which is what makes the mapping total without forcing
// every platform to spell out all seven conclusions.
func (m StatusMapping[T]) Map(c model.CheckConclusion) T {
	if v, ok := m.entries[c]; ok {
		return v
	}
	return m.entries[c.Collapsed()]
}
