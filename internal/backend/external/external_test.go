package external

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assetc/internal/backend"
	"github.com/conneroisu/assetc/internal/errors"
	"github.com/conneroisu/assetc/internal/logging"
)

func requireCommand(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestCompilePipesStdinToStdout(t *testing.T) {
	requireCommand(t, "cat")

	d := New(Spec{ID: "cat", Command: "cat", SourceExt: ".txt"})
	require.NoError(t, d.Validate())

	out, err := d.Compiler.Compile(context.Background(), backend.Source{Text: []byte("hello world")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(out))
}

func TestCompileNonZeroExit(t *testing.T) {
	requireCommand(t, "sh")

	var logs bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelWarn, Output: &logs})
	d := New(Spec{ID: "broken", Command: "sh", Args: []string{"-c", "echo 'parse error on line 1' >&2; exit 3"}, Logger: logger})

	_, err := d.Compiler.Compile(context.Background(), backend.Source{Path: "/src/app.coffee"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBackendExecution)
	assert.Contains(t, err.Error(), "status 3")
	assert.Contains(t, err.Error(), "backend:broken")
	assert.Contains(t, logs.String(), "parse error on line 1")
}

func TestCompileTimeout(t *testing.T) {
	requireCommand(t, "sleep")

	d := New(Spec{ID: "slow", Command: "sleep", Args: []string{"5"}})
	start := time.Now()
	_, err := d.Compiler.Compile(context.Background(), backend.Source{}, backend.Options{OptExternalTimeout: 50})

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBackendExecution)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestCompileMissingCommand(t *testing.T) {
	d := New(Spec{ID: "ghost", Command: "assetc-no-such-compiler"})

	_, err := d.Compiler.Compile(context.Background(), backend.Source{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBackendExecution)
	assert.Contains(t, err.Error(), "cannot run")
}

func TestTimeoutResolution(t *testing.T) {
	tests := []struct {
		name     string
		spec     time.Duration
		src      time.Duration
		opts     backend.Options
		expected time.Duration
	}{
		{name: "default", expected: DefaultTimeout},
		{name: "setting", src: 2 * time.Second, expected: 2 * time.Second},
		{name: "setting before backend limit", spec: 4 * time.Second, src: 2 * time.Second, expected: 2 * time.Second},
		{name: "backend limit", spec: 4 * time.Second, expected: 4 * time.Second},
		{name: "timeout option", src: 2 * time.Second, opts: backend.Options{OptTimeout: 100}, expected: 100 * time.Millisecond},
		{name: "external_timeout wins", opts: backend.Options{OptTimeout: 100, OptExternalTimeout: "1.5s"}, expected: 1500 * time.Millisecond},
		{name: "zero option ignored", src: time.Second, opts: backend.Options{OptExternalTimeout: 0}, expected: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner(Spec{ID: "x", Command: "true", Timeout: tt.spec})
			got, err := r.Timeout(backend.Source{Timeout: tt.src}, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := NewRunner(Spec{ID: "x"}).Timeout(backend.Source{}, backend.Options{OptTimeout: "soon"})
	assert.True(t, errors.IsConfigError(err))
}

func TestArgsPreprocessAndOptions(t *testing.T) {
	r := NewRunner(Spec{
		ID:      "sass_ruby",
		Command: "sass",
		Args:    []string{"--stdin"},
		Preprocess: func(args []string, src backend.Source, _ backend.Options) []string {
			return append(args, "--load-path="+filepath.Dir(src.Path))
		},
	})

	args := r.Args(backend.Source{Path: "/site/css/main.sass"}, backend.Options{OptArgs: []interface{}{"--style", "compressed"}})
	assert.Equal(t, []string{"--stdin", "--load-path=/site/css", "--style", "compressed"}, args)

	// the declared arguments are never mutated
	assert.Equal(t, []string{"--stdin"}, r.Args(backend.Source{}, nil)[:1])
	assert.Equal(t, []string{"--stdin"}, r.spec.Args)
}

func TestCompileUsesWorkingDirectoryAndEnv(t *testing.T) {
	requireCommand(t, "sh")

	dir := t.TempDir()
	d := New(Spec{
		ID:      "env",
		Command: "sh",
		Args:    []string{"-c", `printf '%s|%s' "$(pwd)" "$ASSETC_TEST_FLAVOUR"`},
		Dir:     dir,
		Env:     []string{"ASSETC_TEST_FLAVOUR=mint"},
	})

	out, err := d.Compiler.Compile(context.Background(), backend.Source{}, nil)
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Contains(t, []string{dir + "|mint", resolved + "|mint"}, string(out))
}
