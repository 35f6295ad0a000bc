// Package pipeline turns one request into at most one artifact for one
// backend. A run resolves the candidate source across the configured root
// pairs, decides whether the destination is stale, and only then reads,
// compiles and writes. Soft outcomes (nothing matched, no source) let the
// caller move on to the next backend.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/conneroisu/assetc/internal/backend"
	"github.com/conneroisu/assetc/internal/errors"
	"github.com/conneroisu/assetc/internal/fsutil"
	"github.com/conneroisu/assetc/internal/logging"
)

// TracerName is the instrumentation name of the pipeline spans.
const TracerName = "github.com/conneroisu/assetc/internal/pipeline"

// Stage is a step of a pipeline run. Stages are entered in declaration
// order; a run stops early on a short-circuit or at StageFailed.
type Stage int

const (
	StageMatching Stage = iota
	StageValidatingSource
	StageResolvingDest
	StageEnsuringDestDir
	StageStattingDest
	StageDecidingStaleness
	StageReadingSource
	StageCompiling
	StageWriting
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageMatching:          "MATCHING",
	StageValidatingSource:  "VALIDATING_SOURCE",
	StageResolvingDest:     "RESOLVING_DEST",
	StageEnsuringDestDir:   "ENSURING_DEST_DIR",
	StageStattingDest:      "STATTING_DEST",
	StageDecidingStaleness: "DECIDING_STALENESS",
	StageReadingSource:     "READING_SOURCE",
	StageCompiling:         "COMPILING",
	StageWriting:           "WRITING",
	StageDone:              "DONE",
	StageFailed:            "FAILED",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Status is the terminal state of a run.
type Status string

const (
	StatusCompiled Status = "compiled"
	StatusSkipped  Status = "skipped"
	StatusNoMatch  Status = "no_match"
	StatusNotFound Status = "not_found"
	StatusFailed   Status = "failed"
)

// Artifact describes the source and destination of one run.
type Artifact struct {
	Source     string
	Dest       string
	SourceRoot string
	DestRoot   string
	SourceInfo fsutil.FileInfo
	DestInfo   fsutil.FileInfo
	Verdict    Verdict
}

// Outcome is the result of one run.
type Outcome struct {
	Backend     string
	RequestPath string
	Status      Status
	// Stage is the last stage entered; Stages lists all of them.
	Stage    Stage
	Stages   []Stage
	Artifact *Artifact
	Duration time.Duration
	// Err is set for every status except compiled and skipped.
	Err error
}

// Produced reports whether the run wrote an artifact.
func (o *Outcome) Produced() bool {
	return o.Status == StatusCompiled
}

// Failed reports whether the run ended with a hard error.
func (o *Outcome) Failed() bool {
	return o.Status == StatusFailed
}

// FailedAt returns the stage a failed run was in when it failed.
func (o *Outcome) FailedAt() Stage {
	if n := len(o.Stages); n >= 2 && o.Stages[n-1] == StageFailed {
		return o.Stages[n-2]
	}
	return o.Stage
}

func (o *Outcome) enter(s Stage) {
	o.Stage = s
	o.Stages = append(o.Stages, s)
}

func (o *Outcome) finish(status Status, err error) Outcome {
	o.Status = status
	if err != nil {
		o.Err = errors.Annotate(err, o.Backend, o.RequestPath)
	}
	if status == StatusFailed {
		o.enter(StageFailed)
	}
	return *o
}

// Pipeline runs backends against the filesystem.
type Pipeline struct {
	registry *backend.Registry
	settings Settings
	logger   logging.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the clock used by the expiry check.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithTracer replaces the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = t
	}
}

// New creates a pipeline over the backends in registry. Wrapped backends are
// looked up there.
func New(registry *backend.Registry, settings Settings, logger logging.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &Pipeline{
		registry: registry,
		settings: settings,
		logger:   logger.WithComponent("pipeline"),
		tracer:   otel.Tracer(TracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Settings returns the global settings of the pipeline.
func (p *Pipeline) Settings() Settings {
	return p.settings
}

// Run executes the pipeline of d for req. callOpts take precedence over every
// configured option. Once started a run is not cancelled with ctx; external
// processes are bounded by their own timeout.
func (p *Pipeline) Run(ctx context.Context, req *Request, d *backend.Descriptor, callOpts backend.Options) (result Outcome) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	out := &Outcome{Backend: d.ID, RequestPath: req.Path}

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("assetc.backend", d.ID),
		attribute.String("assetc.request.path", req.Path),
		attribute.String("assetc.request.id", req.ID),
	))
	defer func() {
		if r := recover(); r != nil {
			result = out.finish(StatusFailed, errors.NewBackendError(errors.ErrCodeBackendCompile,
				fmt.Sprintf("backend panicked: %v", r), nil))
		}
		result.Duration = time.Since(start)
		span.SetAttributes(attribute.String("assetc.status", string(result.Status)))
		if result.Failed() {
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Err.Error())
		}
		span.End()
	}()

	log := p.logger.With("backend", d.ID, "path", req.Path, "request_id", req.ID)

	settings, err := p.settings.Override(d.ID)
	if err != nil {
		return out.finish(StatusFailed, err)
	}

	out.enter(StageMatching)
	candidates := ResolveAcrossRoots(d, settings.Roots, req.Path)
	if len(candidates) == 0 {
		return out.finish(StatusNoMatch, errors.NewNoMatchError("request does not match"))
	}

	out.enter(StageValidatingSource)
	cand, srcInfo, err := Validate(candidates)
	if err != nil {
		if errors.IsSoft(err) {
			log.Debug(ctx, "no source found", "candidates", len(candidates))
			return out.finish(StatusNotFound, err)
		}
		return out.finish(StatusFailed, err)
	}
	art := &Artifact{
		Source:     cand.Source,
		SourceRoot: cand.Root.Source,
		DestRoot:   cand.Root.Dest,
		SourceInfo: srcInfo,
	}
	out.Artifact = art

	out.enter(StageResolvingDest)
	art.Dest = LookupDestination(d, cand.Root.Dest, req.Path)

	out.enter(StageEnsuringDestDir)
	if settings.CreateDirs {
		if err := fsutil.MkdirAll(filepath.Dir(art.Dest)); err != nil {
			return out.finish(StatusFailed, errors.WrapIO(err, errors.ErrCodeMkdir, "cannot create destination directory", filepath.Dir(art.Dest)))
		}
	}

	out.enter(StageStattingDest)
	if art.DestInfo, err = fsutil.Stat(art.Dest); err != nil {
		return out.finish(StatusFailed, errors.NewStalenessError(errors.ErrCodeStalenessCheck, "cannot stat destination", err).WithPath(art.Dest))
	}

	out.enter(StageDecidingStaleness)
	if art.Verdict, err = IsStale(art.SourceInfo, art.DestInfo, settings.Delta, settings.Expires, p.now()); err != nil {
		return out.finish(StatusFailed, err)
	}
	switch art.Verdict {
	case VerdictFresh:
		log.Debug(ctx, "artifact is fresh", "dest", art.Dest)
		return out.finish(StatusSkipped, nil)
	case VerdictExpired:
		log.Debug(ctx, "artifact expired", "dest", art.Dest)
		if err := os.Remove(art.Dest); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return out.finish(StatusFailed, errors.WrapIO(err, errors.ErrCodeWrite, "cannot remove expired artifact", art.Dest))
		}
	}

	out.enter(StageReadingSource)
	text, err := os.ReadFile(art.Source)
	if err != nil {
		return out.finish(StatusFailed, errors.WrapIO(err, errors.ErrCodeRead, "cannot read source", art.Source))
	}

	out.enter(StageCompiling)
	src := backend.Source{Path: art.Source, RequestPath: req.Path, Text: text}
	compiled, err := p.compile(ctx, d, src, callOpts, nil)
	if err != nil {
		return out.finish(StatusFailed, err)
	}

	out.enter(StageWriting)
	log.Info(ctx, "writing artifact", "move", describeMove(art.Source, art.Dest), "verdict", art.Verdict.String())
	if err := fsutil.WriteFile(art.Dest, compiled); err != nil {
		return out.finish(StatusFailed, errors.WrapIO(err, errors.ErrCodeWrite, "cannot write artifact", art.Dest))
	}

	out.enter(StageDone)
	return out.finish(StatusCompiled, nil)
}

// compile runs d against src, compiling the backend it wraps first. Only the
// outermost backend sees callOpts.
func (p *Pipeline) compile(ctx context.Context, d *backend.Descriptor, src backend.Source, callOpts backend.Options, chain []string) ([]byte, error) {
	chain = append(chain, d.ID)

	if d.Wraps != "" {
		if slices.Contains(chain, d.Wraps) {
			return nil, errors.NewBackendError(errors.ErrCodeBackendCompile,
				fmt.Sprintf("wrap cycle %v -> %s", chain, d.Wraps), nil).WithBackend(d.ID)
		}
		inner, ok := p.registry.Lookup(d.Wraps)
		if !ok {
			return nil, errors.NewBackendError(errors.ErrCodeBackendCompile,
				fmt.Sprintf("wrapped backend %q is not registered", d.Wraps), nil).WithBackend(d.ID)
		}
		text, err := p.compile(ctx, inner, src, nil, chain)
		if err != nil {
			return nil, err
		}
		src.Text = text
	}

	settings, err := p.settings.Override(d.ID)
	if err != nil {
		return nil, err
	}
	src.Timeout = settings.ExternalTimeout

	ctx, span := p.tracer.Start(ctx, "backend.compile", trace.WithAttributes(
		attribute.String("assetc.backend", d.ID),
		attribute.String("assetc.source", src.Path),
	))
	defer span.End()

	out, err := d.Compiler.Compile(ctx, src, EffectiveOptions(d, settings, callOpts, src))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.WrapBackend(err, d.ID, "compile failed")
	}
	return out, nil
}

// describeMove renders src and dest as prefix{src -> dest} around their
// common directory.
func describeMove(src, dest string) string {
	prefix := fsutil.CommonPath(src, dest)
	if prefix == "" {
		return src + " -> " + dest
	}
	return prefix + "{" + strings.TrimPrefix(src, prefix) + " -> " + strings.TrimPrefix(dest, prefix) + "}"
}
