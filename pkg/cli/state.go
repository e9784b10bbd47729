package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/platinummonkey/protolink/pkg/config"
	"github.com/platinummonkey/protolink/pkg/loader"
	"github.com/platinummonkey/protolink/pkg/observability"
	"github.com/platinummonkey/protolink/pkg/pipeline"
	"github.com/platinummonkey/protolink/pkg/schema"
	"github.com/platinummonkey/protolink/pkg/storage"
)

// globalState is what every command shares. Tests build one over buffers.
type globalState struct {
	ctx    context.Context
	fs     afero.Fs
	stdout io.Writer
	stderr io.Writer

	// Set by the root command before any subcommand runs.
	cfg      *config.Config
	logger   *logrus.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics

	loaderWatched bool
}

func newGlobalState(ctx context.Context) *globalState {
	return &globalState{
		ctx:    ctx,
		fs:     afero.NewOsFs(),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// newPipeline links the files below roots, or below the configured roots
// when none are given. Cache counters follow the first loader of the run.
func (gs *globalState) newPipeline(roots []string) (*pipeline.Pipeline, error) {
	if len(roots) == 0 {
		roots = gs.cfg.Link.Roots
	}
	l := loader.New(gs.fs, roots, gs.cfg.LoaderConfig(gs.logger))
	if !gs.loaderWatched {
		if err := gs.metrics.WatchLoader(l); err != nil {
			return nil, err
		}
		gs.loaderWatched = true
	}
	return pipeline.New(l, pipeline.Options{
		Metrics:     gs.metrics,
		Logger:      gs.logger,
		Parallelism: gs.cfg.Link.Parallelism,
	}), nil
}

func (gs *globalState) openStore() (storage.SnapshotStore, error) {
	store, err := storage.Open(gs.ctx, gs.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot storage: %w", err)
	}
	return store, nil
}

// exitError ends the process with code. A nil err means the failure was
// already reported.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// reportLinkError prints schema diagnostics to stderr and turns them into
// exit status 1. Other errors are returned unchanged.
func (gs *globalState) reportLinkError(err error) error {
	var linkErr *schema.Error
	var fatal *schema.FatalError
	switch {
	case errors.As(err, &linkErr):
		fmt.Fprintln(gs.stderr, linkErr.Error())
		fmt.Fprintf(gs.stderr, "\n%d errors\n", len(linkErr.Diagnostics()))
		return &exitError{code: 1}
	case errors.As(err, &fatal):
		fmt.Fprintln(gs.stderr, fatal.Error())
		return &exitError{code: 1}
	}
	return err
}
