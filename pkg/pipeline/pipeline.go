// Package pipeline runs the load, link and export steps shared by the CLI,
// the HTTP API and the snapshot job, recording metrics and spans for each
// link.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/protolink/pkg/api/protobuf"
	"github.com/platinummonkey/protolink/pkg/descriptor"
	"github.com/platinummonkey/protolink/pkg/loader"
	"github.com/platinummonkey/protolink/pkg/observability"
	"github.com/platinummonkey/protolink/pkg/schema"
	"github.com/platinummonkey/protolink/pkg/storage"
)

var tracer = otel.Tracer("github.com/platinummonkey/protolink/pkg/pipeline")

// Options configures a Pipeline. Every field is optional.
type Options struct {
	Metrics     *observability.Metrics
	OTelMetrics *observability.OTelMetrics
	Logger      logrus.FieldLogger
	// Parallelism bounds the files linked concurrently. Zero means
	// runtime.GOMAXPROCS(0).
	Parallelism int
}

// Pipeline links the files of one loader.
type Pipeline struct {
	loader      *loader.Loader
	linker      *schema.Linker
	metrics     *observability.Metrics
	otelMetrics *observability.OTelMetrics
	log         logrus.FieldLogger
}

// New creates a pipeline over l.
func New(l *loader.Loader, opts Options) *Pipeline {
	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &Pipeline{
		loader:      l,
		linker:      schema.NewLinker(schema.LinkerOptions{Parallelism: opts.Parallelism, Logger: log}),
		metrics:     opts.Metrics,
		otelMetrics: opts.OTelMetrics,
		log:         log,
	}
}

// Loader returns the loader the pipeline reads from.
func (p *Pipeline) Loader() *loader.Loader {
	return p.loader
}

// Link loads every file below the loader roots and links them.
func (p *Pipeline) Link(ctx context.Context) (*schema.Schema, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Link",
		trace.WithAttributes(attribute.StringSlice("roots", p.loader.Roots())))
	defer span.End()

	files, err := p.loader.Load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}
	return p.link(ctx, span, files)
}

// LinkSources links in-memory sources keyed by import path.
func (p *Pipeline) LinkSources(ctx context.Context, sources map[string]string) (*schema.Schema, error) {
	ctx, span := tracer.Start(ctx, "pipeline.LinkSources",
		trace.WithAttributes(attribute.Int("sources", len(sources))))
	defer span.End()

	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	files, err := p.loader.LoadSources(ctx, sources)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}
	return p.link(ctx, span, files)
}

// ErrNoSources is returned when there is nothing to link.
var ErrNoSources = errors.New("no proto sources")

func (p *Pipeline) link(ctx context.Context, span trace.Span, files []*protobuf.RootNode) (*schema.Schema, error) {
	start := time.Now()
	s, err := p.linker.Link(ctx, files)
	elapsed := time.Since(start)

	diagnostics := 0
	var linkErr *schema.Error
	if errors.As(err, &linkErr) {
		diagnostics = len(linkErr.Diagnostics())
	}
	if p.metrics != nil {
		p.metrics.ObserveLink(elapsed, err)
	}
	if p.otelMetrics != nil {
		p.otelMetrics.RecordLink(ctx, elapsed, diagnostics, err)
	}

	log := observability.WithTraceContext(ctx, p.log).WithFields(logrus.Fields{
		"files":       len(files),
		"duration_ms": elapsed.Milliseconds(),
		"result":      observability.LinkResult(err),
	})
	span.SetAttributes(attribute.Int("files", len(files)), attribute.Int("diagnostics", diagnostics))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "link failed")
		log.WithField("diagnostics", diagnostics).Debug("Link failed")
		return nil, err
	}
	log.Debug("Link succeeded")
	return s, nil
}

// Descriptors links the loader roots and exports the result.
func (p *Pipeline) Descriptors(ctx context.Context) (*descriptorpb.FileDescriptorSet, error) {
	s, err := p.Link(ctx)
	if err != nil {
		return nil, err
	}
	return descriptor.Build(s)
}

// Snapshot links the loader roots and wraps the descriptors as a snapshot.
// An empty version is generated from the current time.
func (p *Pipeline) Snapshot(ctx context.Context, name, version string) (*storage.Snapshot, error) {
	set, err := p.Descriptors(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := storage.NewSnapshot(name, version, set)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}
	return snap, nil
}
