// Package executor runs a prover against untrusted proof source in an
// isolated subprocess. The child runs in its own process group and is
// killed by negative-pid signal on timeout, selected over with a
// finished channel.
//
// Isolation is not containerized. Maximum/Standard profiles wrap the
// prover invocation in `bwrap` (bubblewrap) when present on $PATH: a
// network namespace, a read-only bind of "/", and a writable tmpfs at
// /tmp. When bwrap is absent the filesystem isolation degrades to a
// resource-limited shell (ulimit) wrapper, but the child is still
// denied the network through a fresh namespace (unshare -n); no profile
// ever grants network access.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/formalci/formalci/internal/prover"
)

// SecurityProfile selects the isolation level applied to the prover
// subprocess.
type SecurityProfile string

const (
	// ProfileMaximum sandboxes with bwrap when available (read-only
	// root, writable tmpfs, no network, all capabilities dropped) and
	// additionally unshares the user, UTS and IPC namespaces. No
	// kernel-isolating runtime is probed for or used; without bwrap it
	// runs under unshare -n like the other profiles.
	ProfileMaximum SecurityProfile = "maximum"
	// ProfileStandard sandboxes with bwrap when available but does not
	// require a kernel-isolating runtime.
	ProfileStandard SecurityProfile = "standard"
	// ProfileMinimal skips filesystem sandboxing, keeping only the
	// wall-clock/memory bounds and the network namespace; intended for
	// local development only.
	ProfileMinimal SecurityProfile = "minimal"
)

// Bounds are the resource limits of a single execution. Execute applies
// MemoryMB (ulimit -v) and WallClock (a kill timer, plus ulimit -t of
// WallClock+1s); CPUCores and PidLimit are carried but not applied to
// the subprocess.
type Bounds struct {
	MemoryMB  int
	CPUCores  float64
	WallClock time.Duration
	PidLimit  int
}

// DefaultBounds is the production resource envelope for one prover run.
func DefaultBounds() Bounds {
	return Bounds{MemoryMB: 2048, CPUCores: 2.0, WallClock: 5 * time.Minute, PidLimit: 100}
}

// Result is the outcome of one prover invocation.
type Result struct {
	Success    bool
	Stdout     string
	Stderr     string
	ExitCode   *int
	DurationMs uint64
	TimedOut   bool
	OOMKilled  bool
}

// Executor runs provers as sandboxed subprocesses under a
// SecurityProfile.
type Executor struct {
	Profile SecurityProfile
	Bounds  Bounds

	sandboxOnce      sync.Once
	sandboxAvailable bool
}

// New builds an Executor with the given profile and default bounds.
func New(profile SecurityProfile) *Executor {
	return &Executor{Profile: profile, Bounds: DefaultBounds()}
}

// detectSandbox probes once for bwrap on $PATH and caches the result
// for the lifetime of the Executor.
func (e *Executor) detectSandbox() bool {
	e.sandboxOnce.Do(func() {
		_, err := exec.LookPath("bwrap")
		e.sandboxAvailable = err == nil
		if !e.sandboxAvailable {
			logrus.Warn("executor: bwrap not found on PATH, filesystem isolation degraded (network namespace still enforced)")
		}
	})
	return e.sandboxAvailable
}

// Execute writes source to a temp file named after the prover's
// extension, invokes the prover's command on it under e.Profile, and
// returns once the process exits, is killed for exceeding
// e.Bounds.WallClock, or ctx is cancelled.
func (e *Executor) Execute(ctx context.Context, kind prover.Kind, source []byte, extraFiles map[string][]byte) (Result, error) {
	meta, ok := prover.Lookup(kind)
	if !ok {
		return Result{}, fmt.Errorf("executor: unknown prover %q", kind)
	}

	workDir, err := os.MkdirTemp("", "formalci-exec-")
	if err != nil {
		return Result{}, fmt.Errorf("executor: creating work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	proofFile := "proof" + meta.Extensions[0]
	if err := os.WriteFile(filepath.Join(workDir, proofFile), source, 0o644); err != nil {
		return Result{}, fmt.Errorf("executor: writing proof source: %w", err)
	}
	for name, content := range extraFiles {
		if err := os.WriteFile(filepath.Join(workDir, filepath.Base(name)), content, 0o644); err != nil {
			return Result{}, fmt.Errorf("executor: writing extra file %s: %w", name, err)
		}
	}

	program, args := e.commandArgs(meta, proofFile, workDir)

	cmd := exec.Command(program, args...)
	cmd.Dir = workDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("executor: starting %s: %w", program, err)
	}

	finished := make(chan error, 1)
	go func() { finished <- cmd.Wait() }()

	timer := time.NewTimer(e.Bounds.WallClock)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-finished
		return Result{}, ctx.Err()

	case <-timer.C:
		killProcessGroup(cmd)
		<-finished
		return Result{
			Stdout:     stdout.String(),
			Stderr:     stderr.String() + fmt.Sprintf("\nexecution timed out after %s", e.Bounds.WallClock),
			DurationMs: uint64(time.Since(start).Milliseconds()),
			TimedOut:   true,
		}, nil

	case err := <-finished:
		duration := uint64(time.Since(start).Milliseconds())
		return buildResult(cmd, err, stdout.String(), stderr.String(), duration), nil
	}
}

func buildResult(cmd *exec.Cmd, waitErr error, stdout, stderr string, durationMs uint64) Result {
	result := Result{Stdout: stdout, Stderr: stderr, DurationMs: durationMs}

	if cmd.ProcessState != nil {
		code := cmd.ProcessState.ExitCode()
		result.ExitCode = &code
		result.Success = code == 0
		result.OOMKilled = code == 137
	} else if waitErr != nil {
		result.Stderr += "\n" + waitErr.Error()
	}

	return result
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		cmd.Process.Kill()
		return
	}
	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
		cmd.Process.Kill()
	}
}

// commandArgs builds the argv for running meta's executable against
// proofFile inside workDir, wrapped in bwrap when e.Profile calls for
// filesystem sandboxing and bwrap is available, and always wrapped in a
// ulimit shell so memory/CPU bounds apply even without bwrap.
//
// Network isolation is not negotiable: provers must never reach the
// network, under any profile. When bwrap is unavailable (or the profile
// is Minimal, which skips filesystem isolation only) the child still
// runs inside a fresh network namespace via unshare -n.
func (e *Executor) commandArgs(meta prover.Metadata, proofFile, workDir string) (string, []string) {
	memKB := e.Bounds.MemoryMB * 1024
	cpuSeconds := int(e.Bounds.WallClock.Seconds()) + 1
	shellCmd := fmt.Sprintf("ulimit -v %d; ulimit -t %d; exec %s %s", memKB, cpuSeconds, meta.Executable, proofFile)

	if e.Profile == ProfileMinimal || !e.detectSandbox() {
		return "unshare", []string{"-n", "--", "sh", "-c", shellCmd}
	}

	args := []string{
		"--ro-bind", "/", "/",
		"--dev", "/dev",
		"--proc", "/proc",
		"--tmpfs", "/tmp",
		"--bind", workDir, workDir,
		"--chdir", workDir,
		"--unshare-net",
		"--unshare-pid",
		"--die-with-parent",
		"--cap-drop", "ALL",
	}
	if e.Profile == ProfileMaximum {
		args = append(args, "--unshare-user", "--unshare-uts", "--unshare-ipc")
	}
	args = append(args, "--", "sh", "-c", shellCmd)
	return "bwrap", args
}
