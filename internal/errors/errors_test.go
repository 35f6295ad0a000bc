package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *AssetError
		want string
	}{
		{
			name: "full",
			err: NewBackendError(ErrCodeBackendExecution, "command failed", fmt.Errorf("exit status 1")).
				WithBackend("coffee").WithPath("/app.js"),
			want: "[BACKEND_EXECUTION] backend:coffee /app.js command failed: exit status 1",
		},
		{
			name: "message only",
			err:  &AssetError{Message: "plain"},
			want: "plain",
		},
		{
			name: "config",
			err:  NewConfigErrorf("backend %q is unknown", "jade"),
			want: `[CONFIGURATION] backend "jade" is unknown`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsComparesTypeAndCode(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", NewIOError(ErrCodeWrite, "cannot write", fs.ErrPermission))

	assert.True(t, errors.Is(err, ErrWrite))
	assert.False(t, errors.Is(err, ErrBackendCompile))
	assert.True(t, errors.Is(err, fs.ErrPermission), "the cause stays reachable")

	vanished := NewStalenessError(ErrCodeSourceVanished, "source disappeared", nil)
	assert.True(t, errors.Is(vanished, ErrSourceVanished))
	assert.False(t, errors.Is(vanished, ErrStalenessCheck))
}

func TestSoftAndHard(t *testing.T) {
	tests := []struct {
		name string
		err  error
		soft bool
	}{
		{name: "no match", err: NewNoMatchError("no rule matched"), soft: true},
		{name: "not found", err: NewSourceNotFoundError([]string{"/a.coffee"}), soft: true},
		{name: "wrapped not found", err: fmt.Errorf("x: %w", NewSourceNotFoundError(nil)), soft: true},
		{name: "compile", err: NewBackendError(ErrCodeBackendCompile, "bad", nil), soft: false},
		{name: "staleness", err: NewStalenessError(ErrCodeStalenessCheck, "stat", nil), soft: false},
		{name: "foreign", err: fmt.Errorf("boom"), soft: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.soft, IsSoft(tt.err))
			assert.Equal(t, !tt.soft, IsHard(tt.err))
		})
	}
	assert.False(t, IsHard(nil))
	assert.False(t, IsSoft(nil))
}

func TestTypeAndCodeOf(t *testing.T) {
	assert.Equal(t, ErrorType(""), TypeOf(nil))
	assert.Equal(t, "", CodeOf(nil))
	assert.Equal(t, ErrorTypeInternal, TypeOf(fmt.Errorf("x")))
	assert.Equal(t, ErrCodeInternal, CodeOf(fmt.Errorf("x")))
	assert.Equal(t, ErrorTypeConfig, TypeOf(NewConfigError("x")))
	assert.True(t, IsConfigError(fmt.Errorf("setup: %w", NewConfigError("x"))))
	assert.Equal(t, ErrCodeSourceNotFound, CodeOf(NewSourceNotFoundError(nil)))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeIO, ErrCodeRead, "x"))
	assert.Nil(t, WrapBackend(nil, "coffee", "x"))
	assert.Nil(t, WrapIO(nil, ErrCodeRead, "x", "/p"))

	inner := NewIOError(ErrCodeRead, "cannot read", fs.ErrNotExist).WithBackend("less").WithPath("/a.less")
	outer := Wrap(inner, ErrorTypeBackend, ErrCodeBackendCompile, "compile failed")
	assert.Equal(t, "less", outer.Backend)
	assert.Equal(t, "/a.less", outer.Path)
	assert.True(t, errors.Is(outer, ErrBackendCompile))
	assert.True(t, errors.Is(outer, fs.ErrNotExist))

	mkdir := WrapIO(fs.ErrPermission, ErrCodeMkdir, "cannot create", "/public/js")
	assert.Equal(t, ErrorTypeIO, mkdir.Type)
	assert.Equal(t, "/public/js", mkdir.Path)
}

func TestWrapBackend(t *testing.T) {
	foreign := WrapBackend(fmt.Errorf("unexpected token"), "coffee", "compile failed")
	assert.Equal(t, ErrCodeBackendCompile, foreign.Code)
	assert.Equal(t, "coffee", foreign.Backend)

	// backend errors pass through and keep their code
	exec := NewBackendError(ErrCodeBackendExecution, "timed out", nil)
	got := WrapBackend(exec, "stylus", "compile failed")
	assert.Same(t, exec, got)
	assert.Equal(t, "stylus", got.Backend)

	owned := NewBackendError(ErrCodeBackendCompile, "bad", nil).WithBackend("coffee")
	assert.Equal(t, "coffee", WrapBackend(owned, "uglify", "compile failed").Backend)

	// other asset errors are wrapped
	ioErr := NewIOError(ErrCodeRead, "cannot read", nil)
	wrapped := WrapBackend(ioErr, "less", "compile failed")
	assert.Equal(t, ErrorTypeBackend, wrapped.Type)
	assert.True(t, errors.Is(wrapped, ioErr))
}

func TestAnnotate(t *testing.T) {
	assert.NoError(t, Annotate(nil, "coffee", "/app.js"))

	err := Annotate(fmt.Errorf("boom"), "coffee", "/app.js")
	var ae *AssetError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ErrorTypeInternal, ae.Type)
	assert.Equal(t, "coffee", ae.Backend)
	assert.Equal(t, "/app.js", ae.Path)

	owned := NewBackendError(ErrCodeBackendCompile, "bad", nil).WithBackend("less").WithPath("/src/a.less")
	require.ErrorAs(t, Annotate(owned, "coffee", "/app.js"), &ae)
	assert.Equal(t, "less", ae.Backend)
	assert.Equal(t, "/src/a.less", ae.Path)
}

func TestLogFields(t *testing.T) {
	assert.Nil(t, LogFields(fmt.Errorf("x")))

	err := NewSourceNotFoundError([]string{"/a.coffee"}).WithBackend("coffee").WithPath("/a.js")
	fields := LogFields(err)
	assert.Equal(t, []interface{}{
		"error_type", "not_found",
		"error_code", ErrCodeSourceNotFound,
		"backend", "coffee",
		"path", "/a.js",
		"candidates", []string{"/a.coffee"},
	}, fields)
}
