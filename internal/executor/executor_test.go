package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/formalci/formalci/internal/prover"
)

func TestCommandArgsKeepsNetworkNamespaceWithoutBwrap(t *testing.T) {
	e := New(ProfileMaximum)
	e.sandboxOnce.Do(func() { e.sandboxAvailable = false }) // force the no-bwrap path deterministically
	meta, _ := prover.Lookup(prover.Coq)
	program, args := e.commandArgs(meta, "proof.v", "/tmp/work")

	assert.Equal(t, "unshare", program)
	assert.Equal(t, "-n", args[0])
	assert.Contains(t, args[len(args)-1], "coqc proof.v")
}

func TestCommandArgsSandboxedMaximumProfileHardens(t *testing.T) {
	e := New(ProfileMaximum)
	e.sandboxOnce.Do(func() { e.sandboxAvailable = true })
	meta, _ := prover.Lookup(prover.Lean)
	program, args := e.commandArgs(meta, "proof.lean", "/tmp/work")

	assert.Equal(t, "bwrap", program)
	assert.Contains(t, args, "--unshare-net")
	assert.Contains(t, args, "--cap-drop")
	assert.Contains(t, args, "--unshare-user")
}

func TestCommandArgsSandboxedStandardProfileSkipsUserNamespace(t *testing.T) {
	e := New(ProfileStandard)
	e.sandboxOnce.Do(func() { e.sandboxAvailable = true })
	meta, _ := prover.Lookup(prover.Z3)
	_, args := e.commandArgs(meta, "proof.smt2", "/tmp/work")

	assert.Contains(t, args, "--unshare-net")
	assert.NotContains(t, args, "--unshare-user")
}

func TestCommandArgsMinimalProfileStillDeniesNetwork(t *testing.T) {
	e := New(ProfileMinimal)
	meta, _ := prover.Lookup(prover.Metamath)
	program, args := e.commandArgs(meta, "proof.mm", "/tmp/work")

	assert.Equal(t, "unshare", program)
	assert.Equal(t, "-n", args[0])
	assert.NotEqual(t, "bwrap", program)
}

func TestDefaultBounds(t *testing.T) {
	b := DefaultBounds()
	assert.Equal(t, 2048, b.MemoryMB)
	assert.Equal(t, 100, b.PidLimit)
}
