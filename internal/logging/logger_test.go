package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input       string
		expected    LogLevel
		expectError bool
	}{
		{input: "debug", expected: LevelDebug},
		{input: "INFO", expected: LevelInfo},
		{input: "", expected: LevelInfo},
		{input: "Warn", expected: LevelWarn},
		{input: "warning", expected: LevelWarn},
		{input: "error", expected: LevelError},
		{input: "silent", expected: LevelSilent},
		{input: "loud", expected: LevelInfo, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Format: "text", Output: &buf})
	ctx := context.Background()

	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	logger.Warn(ctx, nil, "warn message")
	logger.Error(ctx, errors.New("boom"), "error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
	assert.Contains(t, out, "boom")
}

func TestLoggerSilent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelSilent, Output: &buf})

	logger.Error(context.Background(), errors.New("boom"), "should not appear")

	assert.Empty(t, buf.String())
	assert.False(t, logger.Enabled(LevelError))
}

func TestLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("pipeline").
		With("backend", "coffee").
		Info(context.Background(), "compiled", "path", "/app.js")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &record))
	assert.Equal(t, "compiled", record["msg"])
	assert.Equal(t, "pipeline", record["component"])
	assert.Equal(t, "coffee", record["backend"])
	assert.Equal(t, "/app.js", record["path"])
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})
	_ = parent.With("request_id", "abc")

	parent.Info(context.Background(), "plain")
	assert.NotContains(t, buf.String(), "request_id")
}
