package schema

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/google/uuid"
	"github.com/platinummonkey/protolink/pkg/api/protobuf"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var linkerTracer = otel.Tracer("protolink/schema/linker")

// LinkerOptions configures a Linker.
type LinkerOptions struct {
	// Parallelism bounds the number of files linked concurrently. Zero
	// means runtime.GOMAXPROCS(0).
	Parallelism int
	// Logger receives debug output. Nil discards it.
	Logger logrus.FieldLogger
}

// Linker links parsed files into a Schema. A Linker holds no state between
// calls and may be used concurrently.
type Linker struct {
	parallelism int
	log         logrus.FieldLogger
}

// NewLinker creates a linker.
func NewLinker(opts LinkerOptions) *Linker {
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &Linker{parallelism: parallelism, log: log}
}

// Parallelism returns the number of files linked concurrently.
func (l *Linker) Parallelism() int {
	return l.parallelism
}

// Link links files with default options.
func Link(ctx context.Context, files []*protobuf.RootNode) (*Schema, error) {
	return NewLinker(LinkerOptions{}).Link(ctx, files)
}

// Link resolves every type reference in files and validates the result.
//
// Files are linked as one unit: imports must name other files of the same
// call. A *FatalError is returned for unsupported input, an *Error holding
// every diagnostic when linking or validation failed, and ctx.Err() when
// ctx is done first.
func (l *Linker) Link(ctx context.Context, files []*protobuf.RootNode) (*Schema, error) {
	ctx, span := linkerTracer.Start(ctx, "schema.Link",
		trace.WithAttributes(attribute.Int("files", len(files))),
	)
	defer span.End()

	log := l.log.WithField("link_id", uuid.NewString())
	log.WithField("files", len(files)).Debug("linking schema")

	if fatal := findGroup(files); fatal != nil {
		span.RecordError(fatal)
		span.SetStatus(codes.Error, "unsupported input")
		return nil, fatal
	}

	s := &sink{}
	g := buildGraph(files, s)
	st := &linkState{g: g, sink: s}

	for _, e := range g.extends {
		st.linkExtendTarget(e)
	}
	st.attachExtensions()

	if err := l.forEachFile(ctx, g.files, "schema.link_file", st.linkFile); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "link canceled")
		return nil, err
	}
	if err := l.forEachFile(ctx, g.files, "schema.validate_file", st.validateFile); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation canceled")
		return nil, err
	}

	if n := s.len(); n > 0 {
		err := &Error{diagnostics: s.sorted()}
		log.WithField("diagnostics", n).Debug("schema has errors")
		span.SetAttributes(attribute.Int("diagnostics", n))
		span.SetStatus(codes.Error, fmt.Sprintf("%d diagnostics", n))
		return nil, err
	}

	schema := newSchema(g)
	log.WithField("types", len(g.types)).Debug("schema linked")
	span.SetStatus(codes.Ok, "linked")
	return schema, nil
}

// forEachFile runs fn once per file on a bounded errgroup. Files are
// independent within a pass; the sink orders their diagnostics.
func (l *Linker) forEachFile(ctx context.Context, files []*ProtoFile, spanName string, fn func(*ProtoFile)) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(l.parallelism)

	for _, f := range files {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			_, span := linkerTracer.Start(egCtx, spanName,
				trace.WithAttributes(attribute.String("file", f.Path())),
			)
			defer span.End()
			fn(f)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
