// Package serve implements the `formalci serve` subcommand: the long
// running HTTP server exposing the health check, control API, and
// webhook ingress endpoints, plus the background worker loop. SIGINT
// and SIGTERM trigger a graceful http.Server.Shutdown with a bounded
// grace period.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/formalci/formalci/internal/app"
	"github.com/formalci/formalci/internal/config"
	"github.com/formalci/formalci/internal/controlapi"
	"github.com/formalci/formalci/internal/runner"
	"github.com/formalci/formalci/internal/webhook"
)

type flags struct {
	GracePeriod time.Duration
}

// MakeCommand returns the `serve` command.
func MakeCommand(configPath *string) *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server: health, control API, and webhook ingress.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*configPath, f)
		},
	}
	cmd.Flags().DurationVar(&f.GracePeriod, "grace-period", 10*time.Second, "time to wait for in-flight requests during shutdown")
	return cmd
}

func run(configPath string, f *flags) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	a, err := app.Build(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reload jobs that were still queued when the previous process
	// exited, so a restart doesn't silently drop accepted work.
	if queued, err := a.Store.ListQueuedJobs(ctx); err != nil {
		logrus.WithError(err).Warn("serve: rehydrating queued jobs failed, starting with an empty queue")
	} else if len(queued) > 0 {
		a.Scheduler.Rehydrate(queued)
	}

	rnr := runner.New(a.Scheduler, a.Store, a.Verifier, a.Executor, a.Retry, a.Adapters)
	go rnr.Run(ctx)

	ing := webhook.New(a.Store, a.Scheduler)
	capi := controlapi.New(a.Store, a.Scheduler, a.Verifier)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := a.Store.HealthCheck(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, "DEGRADED")
			return
		}
		fmt.Fprint(w, "OK")
	}).Methods(http.MethodGet)
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "formalci: proof-aware CI bot")
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/graphql", capi.ServeGraphQL).Methods(http.MethodPost)
	router.HandleFunc("/graphql/playground", controlapi.ServePlayground).Methods(http.MethodGet)

	router.HandleFunc("/webhooks/github", ing.ServeGitHub).Methods(http.MethodPost)
	router.HandleFunc("/webhooks/gitlab", ing.ServeGitLab).Methods(http.MethodPost)
	router.HandleFunc("/webhooks/bitbucket", ing.ServeBitbucket).Methods(http.MethodPost)
	router.HandleFunc("/webhooks/codeberg", ing.ServeCodeberg).Methods(http.MethodPost)

	httpServer := &http.Server{Addr: ":" + strconv.Itoa(cfg.Server.Port), Handler: router}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logrus.Info("serve: shutting down")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), f.GracePeriod)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logrus.WithField("port", cfg.Server.Port).Info("serve: listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
