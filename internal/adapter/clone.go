package adapter

import (
	"context"
	"os"
	"os/exec"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/formalci/formalci/internal/bot"
)

// cloneInto shallow-clones url at commit into a fresh temp directory
// via git init / fetch / checkout. When commit isn't "HEAD", it tries
// `fetch --depth 1 <url> <commit>` directly; if the remote refuses to
// serve an arbitrary commit hash (common on GitHub/GitLab unless
// "uploadpack.allowReachableSHA1InWant" is set), it falls back to
// fetching the default branch shallow and then fetching the commit on
// top of it.
func cloneInto(ctx context.Context, url, commit string, errKind bot.Kind) (string, error) {
	dir, err := os.MkdirTemp("", "formalci-clone-")
	if err != nil {
		return "", bot.Wrap(errKind, "creating clone dir", err)
	}

	run := func(args ...string) error {
		return runGit(ctx, dir, args...)
	}

	if err := run("init"); err != nil {
		os.RemoveAll(dir)
		return "", bot.Wrap(errKind, "git init", err)
	}

	if commit == "" || commit == "HEAD" {
		if err := run("fetch", "--depth", "1", url, "HEAD"); err != nil {
			os.RemoveAll(dir)
			return "", bot.Wrap(errKind, "fetching default branch", err)
		}
		if err := run("checkout", "FETCH_HEAD"); err != nil {
			os.RemoveAll(dir)
			return "", bot.Wrap(errKind, "checking out FETCH_HEAD", err)
		}
		return dir, nil
	}

	if err := run("fetch", "--depth", "1", url, commit); err == nil {
		if err := run("checkout", commit); err == nil {
			return dir, nil
		}
	}

	logrus.WithField("commit", commit).Debug("adapter: direct commit fetch failed, falling back to default-branch fetch")

	if err := run("fetch", "--depth", "1", url, "HEAD"); err != nil {
		os.RemoveAll(dir)
		return "", bot.Wrap(errKind, "fetching default branch after direct-commit miss", err)
	}
	if err := run("fetch", "--depth", "1", url, commit); err != nil {
		os.RemoveAll(dir)
		return "", bot.Wrap(errKind, "fetching commit after default-branch fetch", err)
	}
	if err := run("checkout", commit); err != nil {
		os.RemoveAll(dir)
		return "", bot.Wrap(errKind, "checking out commit", err)
	}
	return dir, nil
}

// runGit runs a bounded git subprocess in dir, killing its whole
// process group on context cancellation.
func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	if err := cmd.Run(); err != nil {
		return err
	}
	return nil
}
