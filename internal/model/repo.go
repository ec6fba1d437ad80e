package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/formalci/formalci/internal/modes"
	"github.com/formalci/formalci/internal/prover"
)

// RepoId is the natural key for a repository: platform plus owner/name.
type RepoId struct {
	Platform Platform
	Owner    string
	Name     string
}

// FullName returns "owner/name", as used in check runs, comments, and
// log lines across every adapter.
func (r RepoId) FullName() string {
	return r.Owner + "/" + r.Name
}

// Repository is the persistent entity stored for every registered repo.
type Repository struct {
	ID                 uuid.UUID
	RepoId             RepoId
	EnabledProvers     []prover.Kind
	Enabled            bool
	CheckOnPush        bool
	CheckOnPR          bool
	AutoComment        bool
	WebhookSecret      []byte
	LastCheckedCommit  string
	// Mode selects the reporting/enforcement profile: how much detail
	// check runs and comments carry, whether tactic suggestions are
	// requested, and whether failures block merges.
	Mode      modes.Mode
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate enforces the invariants a Repository must hold before being
// persisted: at least one enabled prover, and a recognized bot mode.
func (r Repository) Validate() error {
	if len(r.EnabledProvers) == 0 {
		return ErrEmptyEnabledProvers
	}
	if r.Mode != "" && !r.Mode.Valid() {
		return ErrInvalidMode
	}
	return nil
}
