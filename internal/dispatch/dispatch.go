// Package dispatch decides, per incoming request, which enabled backends run
// and in what order, and always hands the request on to the next handler.
//
// Invariants:
//   - next.ServeHTTP is called exactly once per request, whatever the
//     backends do (including panicking)
//   - backends run in the configured order and strictly one after another
//   - without cascade, no backend runs after one has produced an artifact
package dispatch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/conneroisu/assetc/internal/backend"
	"github.com/conneroisu/assetc/internal/config"
	"github.com/conneroisu/assetc/internal/errors"
	"github.com/conneroisu/assetc/internal/logging"
	"github.com/conneroisu/assetc/internal/pipeline"
)

// Observer is notified of every pipeline outcome.
type Observer interface {
	Observe(ctx context.Context, req *pipeline.Request, out pipeline.Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, req *pipeline.Request, out pipeline.Outcome)

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, req *pipeline.Request, out pipeline.Outcome) {
	f(ctx, req, out)
}

// Call describes one dispatch outside of net/http.
type Call struct {
	Method string
	URL    string
	// Options are per-call backend options; they win over configuration.
	Options backend.Options
	// Backends replaces the enabled list when non-empty.
	Backends []string
}

// Summary reports what happened for one request.
type Summary struct {
	Request *pipeline.Request
	// Passthrough is set when the request was not eligible at all.
	Passthrough bool
	Outcomes    []pipeline.Outcome
	// Matches is the number of backends that produced an artifact.
	Matches int
}

// Failures returns the outcomes that ended with a hard error.
func (s Summary) Failures() []pipeline.Outcome {
	var out []pipeline.Outcome
	for _, o := range s.Outcomes {
		if o.Failed() {
			out = append(out, o)
		}
	}
	return out
}

// Dispatcher runs the enabled backends for eligible requests.
type Dispatcher struct {
	cfg       *config.Config
	registry  *backend.Registry
	pipeline  *pipeline.Pipeline
	logger    logging.Logger
	observers []Observer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver adds an observer of pipeline outcomes.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observers = append(d.observers, o)
		}
	}
}

// New creates a dispatcher. It fails with a configuration error when no
// backend is enabled.
func New(cfg *config.Config, registry *backend.Registry, p *pipeline.Pipeline, logger logging.Logger, opts ...Option) (*Dispatcher, error) {
	if cfg == nil || len(cfg.Enabled) == 0 {
		return nil, errors.NewConfigError("you must supply a list of enabled backends")
	}
	if registry == nil || p == nil {
		return nil, errors.NewConfigError("dispatcher requires a registry and a pipeline")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	d := &Dispatcher{
		cfg:      cfg,
		registry: registry,
		pipeline: p,
		logger:   logger.WithComponent("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}

	for _, id := range cfg.Enabled {
		if _, ok := registry.Lookup(id); !ok {
			d.logger.Warn(context.Background(), nil, "enabled backend is not registered", "backend", id)
		}
	}

	return d, nil
}

// Eligible reports whether a request with method for path is intercepted.
func (d *Dispatcher) Eligible(method, path string) bool {
	return d.cfg.MethodAllowed(method) && !d.cfg.IsIgnored(path)
}

// Handle runs the backends for one call and reports the outcomes.
func (d *Dispatcher) Handle(ctx context.Context, call Call) Summary {
	req := pipeline.NewRequest(call.Method, call.URL, d.cfg.Mount, d.cfg.ResolveIndex)
	summary := Summary{Request: req}

	if !d.Eligible(req.Method, req.Path) {
		summary.Passthrough = true
		return summary
	}

	ids := d.cfg.Enabled
	if len(call.Backends) > 0 {
		ids = call.Backends
	}

	for _, id := range ids {
		if req.Matches > 0 && !d.cfg.Cascade {
			break
		}
		desc, ok := d.registry.Lookup(id)
		if !ok {
			d.logger.Debug(ctx, "skipping unknown backend", "backend", id)
			continue
		}

		req.Active = desc
		out := d.pipeline.Run(ctx, req, desc, call.Options)
		req.Active = nil

		if out.Produced() {
			req.Matches++
		}
		if out.Failed() {
			fields := append([]interface{}{"request_id", req.ID, "stage", out.FailedAt().String()},
				errors.LogFields(out.Err)...)
			d.logger.Error(ctx, out.Err, "backend failed", fields...)
		}

		summary.Outcomes = append(summary.Outcomes, out)
		d.notify(ctx, req, out)
	}

	summary.Matches = req.Matches
	return summary
}

func (d *Dispatcher) notify(ctx context.Context, req *pipeline.Request, out pipeline.Outcome) {
	for _, o := range d.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error(ctx, fmt.Errorf("%v", r), "observer panicked", "backend", out.Backend)
				}
			}()
			o.Observe(ctx, req, out)
		}()
	}
}

// Middleware returns a handler that compiles what the request needs and then
// calls next.
func (d *Dispatcher) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					d.logger.Error(r.Context(), fmt.Errorf("%v", rec), "dispatch panicked", "path", r.URL.Path)
				}
			}()
			d.Handle(r.Context(), Call{Method: r.Method, URL: r.URL.RequestURI()})
		}()

		next.ServeHTTP(w, r)
	})
}
