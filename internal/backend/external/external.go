// Package external adapts command line compilers to the backend contract.
// The source text is piped to the command's stdin and its stdout is the
// compiled output; anything it writes to stderr is logged as a warning.
package external

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/conneroisu/assetc/internal/backend"
	"github.com/conneroisu/assetc/internal/config"
	"github.com/conneroisu/assetc/internal/errors"
	"github.com/conneroisu/assetc/internal/logging"
)

// DefaultTimeout bounds a command when nothing else does.
const DefaultTimeout = config.DefaultExternalTimeout

// Option keys read by the adapter.
const (
	OptExternalTimeout = "external_timeout"
	OptTimeout         = "timeout"
	OptArgs            = "args"
)

// PreprocessFunc rewrites the argument list for one compile.
type PreprocessFunc func(args []string, src backend.Source, opts backend.Options) []string

// Spec declares a process-based backend.
type Spec struct {
	ID        string
	Name      string
	Match     *regexp.Regexp
	SourceExt string
	DestExt   string
	Defaults  backend.Options

	Command string
	Args    []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is appended to the process environment.
	Env []string
	// Timeout is the backend's own limit, used when no option sets one.
	Timeout    time.Duration
	Preprocess PreprocessFunc

	Logger logging.Logger
}

// Runner is the compile capability of a process-based backend.
type Runner struct {
	spec   Spec
	logger logging.Logger
}

// New returns a descriptor whose compile capability runs spec.Command.
func New(spec Spec) *backend.Descriptor {
	return &backend.Descriptor{
		ID:        spec.ID,
		Name:      spec.Name,
		Match:     spec.Match,
		SourceExt: spec.SourceExt,
		DestExt:   spec.DestExt,
		Defaults:  spec.Defaults,
		Compiler:  NewRunner(spec),
	}
}

// NewRunner creates the compile capability for spec.
func NewRunner(spec Spec) *Runner {
	logger := spec.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Runner{
		spec:   spec,
		logger: logger.WithComponent("external").With("backend", spec.ID),
	}
}

// Timeout resolves the limit for one compile: the external_timeout option,
// then the timeout option, then the configured setting, then the backend's
// own limit, then DefaultTimeout.
func (r *Runner) Timeout(src backend.Source, opts backend.Options) (time.Duration, error) {
	for _, key := range []string{OptExternalTimeout, OptTimeout} {
		raw, ok := opts[key]
		if !ok {
			continue
		}
		d, err := config.ParseMillis(raw)
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfiguration,
				"invalid "+key).WithBackend(r.spec.ID)
		}
		if d > 0 {
			return d, nil
		}
	}
	switch {
	case src.Timeout > 0:
		return src.Timeout, nil
	case r.spec.Timeout > 0:
		return r.spec.Timeout, nil
	default:
		return DefaultTimeout, nil
	}
}

// Args returns the command line arguments for one compile.
func (r *Runner) Args(src backend.Source, opts backend.Options) []string {
	args := append([]string(nil), r.spec.Args...)
	if r.spec.Preprocess != nil {
		args = r.spec.Preprocess(args, src, opts)
	}
	return append(args, stringList(opts[OptArgs])...)
}

// Compile implements backend.Compiler.
func (r *Runner) Compile(ctx context.Context, src backend.Source, opts backend.Options) ([]byte, error) {
	timeout, err := r.Timeout(src, opts)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := r.Args(src, opts)
	r.logger.Debug(ctx, "running external compiler", "command", r.spec.Command, "args", strings.Join(args, " "), "timeout", timeout)

	cmd := exec.CommandContext(ctx, r.spec.Command, args...)
	cmd.Dir = r.spec.Dir
	if len(r.spec.Env) > 0 {
		cmd.Env = append(os.Environ(), r.spec.Env...)
	}
	cmd.Stdin = bytes.NewReader(src.Text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err = cmd.Run()

	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		r.logger.Warn(ctx, nil, "external compiler wrote to stderr", "source", src.Path, "stderr", msg)
	}

	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.NewBackendError(errors.ErrCodeBackendExecution,
				fmt.Sprintf("%s timed out after %s", r.spec.Command, timeout), err).WithBackend(r.spec.ID)
		}
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return nil, errors.NewBackendError(errors.ErrCodeBackendExecution,
				fmt.Sprintf("%s exited with status %d", r.spec.Command, exitErr.ExitCode()), err).
				WithBackend(r.spec.ID).
				WithContext("stderr", strings.TrimSpace(stderr.String()))
		}
		return nil, errors.NewBackendError(errors.ErrCodeBackendExecution,
			fmt.Sprintf("cannot run %s", r.spec.Command), err).WithBackend(r.spec.ID)
	}

	return stdout.Bytes(), nil
}

func stringList(raw interface{}) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return strings.Fields(v)
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}
