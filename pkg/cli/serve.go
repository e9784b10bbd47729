package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/protolink/pkg/api"
	"github.com/platinummonkey/protolink/pkg/loader"
	"github.com/platinummonkey/protolink/pkg/observability"
	"github.com/platinummonkey/protolink/pkg/pipeline"
	"github.com/platinummonkey/protolink/pkg/storage"
)

func getServeCmd(gs *globalState) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the link, lint, compatibility, graph and snapshot API. When
server.snapshot_schedule is set, the configured roots are linked on that cron
schedule and stored as a new version of server.snapshot_name whenever they
changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = net.JoinHostPort(gs.cfg.Server.Host, gs.cfg.Server.Port)
			}
			return runServe(cmd.Context(), gs, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.host:server.port)")
	return cmd
}

func runServe(ctx context.Context, gs *globalState, addr string) error {
	cfg := gs.cfg
	log := gs.logger

	otelCfg := cfg.Observability.OTel
	otelCfg.ServiceVersion = Version
	providers, err := observability.InitOTel(ctx, otelCfg, log)
	if err != nil {
		return err
	}
	var otelMetrics *observability.OTelMetrics
	if providers != nil {
		if otelMetrics, err = observability.NewOTelMetrics(); err != nil {
			return err
		}
	}

	store, err := gs.openStore()
	if err != nil {
		_ = observability.ShutdownOTel(ctx, providers, log)
		return err
	}

	lintConfig, err := cfg.LoadLintConfig()
	if err != nil {
		_ = store.Close()
		_ = observability.ShutdownOTel(ctx, providers, log)
		return err
	}

	health := observability.NewHealthChecker(Version)
	health.Register("storage", store.Ping, true)

	// Posted sources are self-contained, so the API loader has no roots.
	apiLoader := loader.New(gs.fs, nil, cfg.LoaderConfig(log))
	if err := gs.metrics.WatchLoader(apiLoader); err != nil {
		_ = store.Close()
		_ = observability.ShutdownOTel(ctx, providers, log)
		return err
	}
	gs.loaderWatched = true

	opts := api.Options{
		Pipeline: pipeline.New(apiLoader, pipeline.Options{
			Metrics:     gs.metrics,
			OTelMetrics: otelMetrics,
			Logger:      log,
			Parallelism: cfg.Link.Parallelism,
		}),
		Store:        store,
		Metrics:      gs.metrics,
		Health:       health,
		LintConfig:   lintConfig,
		Logger:       log,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	if cfg.Observability.MetricsEnabled {
		opts.Gatherer = prometheus.Gatherers{gs.registry, prometheus.DefaultGatherer}
	}
	server := api.NewServer(opts)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(log, httpServer, cfg.Server.ShutdownTimeout)

	var scheduler *cron.Cron
	if cfg.Server.SnapshotSchedule != "" {
		p, err := gs.newPipeline(nil)
		if err != nil {
			_ = store.Close()
			_ = observability.ShutdownOTel(ctx, providers, log)
			return err
		}
		job := &snapshotJob{
			pipeline: p,
			store:    store,
			name:     cfg.Server.SnapshotName,
			metrics:  gs.metrics,
			log:      log.WithField("job", "snapshot"),
		}
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(cfg.Server.SnapshotSchedule, func() {
			defer observability.RecoverPanic(log, "snapshot job")
			if _, err := job.run(ctx); err != nil {
				job.log.WithError(err).Error("Snapshot job failed")
			}
		}); err != nil {
			_ = store.Close()
			_ = observability.ShutdownOTel(ctx, providers, log)
			return fmt.Errorf("invalid snapshot schedule: %w", err)
		}
		scheduler.Start()
		log.WithFields(logrus.Fields{
			"schedule": cfg.Server.SnapshotSchedule,
			"snapshot": cfg.Server.SnapshotName,
		}).Info("Snapshot job scheduled")
	}

	// The store outlives the scheduler so a running job can finish.
	shutdown.RegisterShutdownFunc("snapshots", func(ctx context.Context) error {
		if scheduler != nil {
			select {
			case <-scheduler.Stop().Done():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return store.Close()
	})
	shutdown.RegisterShutdownFunc("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, log)
	})

	serveErr := make(chan error, 1)
	go func() {
		defer close(serveErr)
		defer observability.RecoverPanic(log, "http server")
		log.WithField("addr", addr).Info("Starting protolink API")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// listenErr is written before cancel and read after waitCtx is done.
	var listenErr error
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err, ok := <-serveErr; ok {
			listenErr = fmt.Errorf("HTTP server failed: %w", err)
			cancel()
		}
	}()

	if err := shutdown.WaitForShutdown(waitCtx); err != nil {
		return err
	}
	return listenErr
}

// snapshotJob stores the linked roots as a new snapshot version when they
// differ from the latest stored version.
type snapshotJob struct {
	pipeline *pipeline.Pipeline
	store    storage.SnapshotStore
	name     string
	metrics  *observability.Metrics
	log      logrus.FieldLogger
}

// run reports whether a new version was stored.
func (j *snapshotJob) run(ctx context.Context) (bool, error) {
	start := time.Now()
	snap, err := j.pipeline.Snapshot(ctx, j.name, "")
	if err != nil {
		return false, err
	}

	latest, err := j.store.Latest(ctx, j.name)
	switch {
	case errors.Is(err, storage.ErrSnapshotNotFound):
	case err != nil:
		return false, fmt.Errorf("failed to load latest snapshot: %w", err)
	case latest.Digest == snap.Digest:
		j.log.WithField("version", latest.Version).Debug("Schema unchanged, nothing stored")
		return false, nil
	}

	err = j.store.Put(ctx, snap)
	j.metrics.ObserveSnapshotOperation("put", err)
	if err != nil {
		return false, err
	}
	j.log.WithFields(logrus.Fields{
		"version":     snap.Version,
		"files":       snap.FileCount,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Snapshot stored")
	return true, nil
}
