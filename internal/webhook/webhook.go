// Package webhook implements the bot's webhook ingress: one handler per
// platform, each authenticating, classifying, parsing, filtering by
// file extension, and enqueuing proof jobs through a shared
// Scheduler/Store pair.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/formalci/formalci/internal/bot"
	"github.com/formalci/formalci/internal/metrics"
	"github.com/formalci/formalci/internal/model"
	"github.com/formalci/formalci/internal/prover"
	"github.com/formalci/formalci/internal/scheduler"
	"github.com/formalci/formalci/internal/store"
)

// Ingress wires the webhook handlers to the scheduler and store.
type Ingress struct {
	Store     store.Store
	Scheduler *scheduler.Scheduler
}

// New builds an Ingress.
func New(s store.Store, sched *scheduler.Scheduler) *Ingress {
	return &Ingress{Store: s, Scheduler: sched}
}

// parsedPush is the platform-neutral shape every push-event parser
// produces: the commit to check and the set of touched paths (nil means
// "couldn't determine, check every enabled prover").
type parsedPush struct {
	CommitSHA string
	Files     []string // nil: unknown file set, scan-all; non-nil (possibly empty): exact file list
}

// parsedRequest is a platform-neutral shape for a PR/MR event. Matched
// is false when the action/state isn't one this bot reacts to. The
// PR/MR handlers check the action inline and do not construct it.
type parsedRequest struct {
	CommitSHA string
	Matched   bool
}

func splitFullName(fullName string) (owner, name string, ok bool) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// respond writes status and body and records the outbound-response
// metric; every handler path funnels through here so no response path
// is left unmetered.
func respond(w http.ResponseWriter, platform model.Platform, status int, body string) {
	metrics.RecordWebhookResponse(string(platform), strconv.Itoa(status))
	w.WriteHeader(status)
	if body != "" {
		_, _ = w.Write([]byte(body))
	}
}

// readBody reads and returns the full request body; webhook signature
// verification needs the exact raw bytes, so this must happen before
// any JSON decoding.
func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

// lookupRepo finds the registered repository a webhook targets. The
// bool return distinguishes "not registered" (caller should respond 200
// and stop) from a real store failure.
func lookupRepo(ctx context.Context, s store.Store, platform model.Platform, fullName string) (model.Repository, bool, error) {
	owner, name, ok := splitFullName(fullName)
	if !ok {
		return model.Repository{}, false, bot.New(bot.KindInvalidInput, "malformed repository full_name: "+fullName)
	}
	repo, err := s.GetRepositoryByName(ctx, platform, owner, name)
	if err != nil {
		if err == store.ErrNotFound {
			return model.Repository{}, false, nil
		}
		return model.Repository{}, false, err
	}
	return repo, true, nil
}

// selectProvers groups a push event's touched files by the prover each
// belongs to, restricted to the repository's enabled_provers. Files
// matching no enabled prover are dropped.
func selectProvers(files []string, enabled []prover.Kind) map[prover.Kind][]string {
	out := make(map[prover.Kind][]string)
	for _, f := range files {
		ext := extensionOf(f)
		kind, ok := prover.RecognizeExtension(ext, enabled)
		if !ok {
			continue
		}
		out[kind] = append(out[kind], f)
	}
	return out
}

func extensionOf(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return ""
	}
	return path[idx:]
}

// unionAddedModified collects the union of added+modified paths across
// a push event's commit list.
func unionAddedModified(commits []struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
}) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, c := range commits {
		for _, f := range append(append([]string{}, c.Added...), c.Modified...) {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// enqueuePush creates one job per prover matched by the push's touched
// files, at PriorityNormal.
func (ing *Ingress) enqueuePush(ctx context.Context, repo model.Repository, push parsedPush) error {
	if push.Files == nil {
		return ing.enqueueAllProvers(ctx, repo, push.CommitSHA, model.PriorityNormal)
	}
	byProver := selectProvers(push.Files, repo.EnabledProvers)
	for kind, files := range byProver {
		if err := ing.enqueueOne(ctx, repo, push.CommitSHA, kind, files, model.PriorityNormal); err != nil {
			return err
		}
	}
	return nil
}

// enqueueAllProvers creates one job per enabled prover with an empty
// file list ("check all"), used for PR/MR/check-suite events and
// pushes whose platform payload carries no per-file diff.
func (ing *Ingress) enqueueAllProvers(ctx context.Context, repo model.Repository, commitSHA string, priority model.JobPriority) error {
	for _, kind := range repo.EnabledProvers {
		if err := ing.enqueueOne(ctx, repo, commitSHA, kind, nil, priority); err != nil {
			return err
		}
	}
	return nil
}

// enqueueOne admits a single job into the scheduler and, on acceptance,
// persists it to the store. Scheduler rejection (duplicate or queue
// full) is silent; only a store failure is returned to the caller.
func (ing *Ingress) enqueueOne(ctx context.Context, repo model.Repository, commitSHA string, kind prover.Kind, files []string, priority model.JobPriority) error {
	job := model.NewProofJob(repo.ID, commitSHA, kind, files).WithPriority(priority)

	id, accepted := ing.Scheduler.Enqueue(job)
	if !accepted {
		return nil
	}
	job.ID = id

	if err := ing.Store.CreateJob(ctx, job); err != nil {
		logrus.WithError(err).WithField("job_id", job.ID).Error("webhook: failed to persist enqueued job")
		return bot.Wrap(bot.KindStore, "persisting job", err)
	}
	metrics.RecordJobEnqueued(string(kind), priority.String())
	return nil
}

// decodeJSON is a thin wrapper so every handler reports malformed
// payloads the same way (parse failures become 400s).
func decodeJSON(body []byte, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		return bot.Wrap(bot.KindInvalidInput, "decoding webhook payload", err)
	}
	return nil
}
