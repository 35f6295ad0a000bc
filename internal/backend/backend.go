// Package backend defines the capability contract a compiler must satisfy to
// take part in the pipeline, and the registry that holds the registered
// descriptors for the lifetime of the process.
package backend

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// DefaultMatch is the match rule used when a descriptor does not declare
// one: script requests, optionally ".mod" and/or ".min" qualified.
var DefaultMatch = regexp.MustCompile(`(?i)(?:\.mod)?(\.min)?\.js$`)

// Options are the backend options in effect for one compile.
type Options map[string]interface{}

// Clone returns a shallow copy of o.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Merge returns a shallow copy of o overlaid with each layer in turn; later
// layers win.
func (o Options) Merge(layers ...Options) Options {
	out := o.Clone()
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// String returns the option as a string, or "" when unset or not a string.
func (o Options) String(key string) string {
	if s, ok := o[key].(string); ok {
		return s
	}
	return ""
}

// Bool returns the option as a bool.
func (o Options) Bool(key string) bool {
	b, _ := o[key].(bool)
	return b
}

// Source is the input handed to a compile capability.
type Source struct {
	// Path is the absolute path of the source file.
	Path string
	// RequestPath is the normalized request path that selected it.
	RequestPath string
	// Text is the source text, or the output of the wrapped backend.
	Text []byte
	// Timeout is the configured limit for process-based backends. Zero
	// leaves the choice to the backend.
	Timeout time.Duration
}

// Compiler is the compile capability of a backend.
type Compiler interface {
	Compile(ctx context.Context, src Source, opts Options) ([]byte, error)
}

// CompileFunc is a synchronous compile capability.
type CompileFunc func(ctx context.Context, src Source, opts Options) ([]byte, error)

// Compile implements Compiler.
func (f CompileFunc) Compile(ctx context.Context, src Source, opts Options) ([]byte, error) {
	return f(ctx, src, opts)
}

// AsyncCompileFunc is an asynchronous compile capability: it must invoke done
// exactly once, from any goroutine.
type AsyncCompileFunc func(ctx context.Context, src Source, opts Options, done func([]byte, error))

// Compile implements Compiler by waiting for the completion callback.
func (f AsyncCompileFunc) Compile(ctx context.Context, src Source, opts Options) ([]byte, error) {
	type result struct {
		out []byte
		err error
	}
	ch := make(chan result, 1)
	f(ctx, src, opts, func(out []byte, err error) {
		select {
		case ch <- result{out, err}:
		default:
		}
	})
	select {
	case r := <-ch:
		return r.out, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Descriptor describes one registered backend.
type Descriptor struct {
	// ID is the unique backend identifier.
	ID string
	// Name is a human readable name; defaults to ID.
	Name string
	// Match selects request paths. Nil means DefaultMatch.
	Match *regexp.Regexp
	// SourceExt replaces the matched suffix to form the source path. It may
	// reference capture groups of Match ("$1.js").
	SourceExt string
	// DestExt, when set, replaces the matched suffix to form the destination
	// path; otherwise the request path is used as is.
	DestExt string
	// Defaults are the declared default options.
	Defaults Options
	// OptionsFunc computes the options from the merged overrides. It takes
	// precedence over Defaults.
	OptionsFunc func(overrides Options, src Source) Options
	// Compiler is the compile capability.
	Compiler Compiler
	// Wraps names a backend whose output is fed into this one.
	Wraps string
}

// DisplayName returns Name, or ID when Name is empty.
func (d *Descriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// MatchRule returns the effective match rule.
func (d *Descriptor) MatchRule() *regexp.Regexp {
	if d.Match != nil {
		return d.Match
	}
	return DefaultMatch
}

func (d *Descriptor) String() string {
	return d.ID
}

// Options resolves the options for one compile: declared defaults (or the
// options function) overlaid with the overrides.
func (d *Descriptor) Options(overrides Options, src Source) Options {
	if d.OptionsFunc != nil {
		return d.OptionsFunc(overrides.Clone(), src)
	}
	return d.Defaults.Merge(overrides)
}

// Validate checks the descriptor against the capability contract.
func (d *Descriptor) Validate() error {
	if d == nil {
		return fmt.Errorf("descriptor is nil")
	}
	if d.ID == "" {
		return fmt.Errorf("backend %q must have a valid id", d.DisplayName())
	}
	if d.Compiler == nil {
		return fmt.Errorf("backend %q is missing a compile capability", d.ID)
	}
	if d.Wraps == d.ID {
		return fmt.Errorf("backend %q cannot wrap itself", d.ID)
	}
	return nil
}

// Info is the serializable summary of a descriptor.
type Info struct {
	ID        string  `json:"id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	Match     string  `json:"match" yaml:"match"`
	SourceExt string  `json:"source_ext" yaml:"source_ext"`
	DestExt   string  `json:"dest_ext,omitempty" yaml:"dest_ext,omitempty"`
	Wraps     string  `json:"wraps,omitempty" yaml:"wraps,omitempty"`
	Defaults  Options `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// Info summarizes d.
func (d *Descriptor) Info() Info {
	return Info{
		ID:        d.ID,
		Name:      d.DisplayName(),
		Match:     d.MatchRule().String(),
		SourceExt: d.SourceExt,
		DestExt:   d.DestExt,
		Wraps:     d.Wraps,
		Defaults:  d.Defaults,
	}
}
