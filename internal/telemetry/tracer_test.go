package telemetry

import (
	"bytes"
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assetc/internal/backend"
	"github.com/conneroisu/assetc/internal/config"
	"github.com/conneroisu/assetc/internal/pipeline"
)

func TestInitTracerExportsPipelineSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracer(TracerConfig{ServiceName: "assetc-test", Output: &buf, Sync: true}, nil)
	require.NoError(t, err)

	d := &backend.Descriptor{
		ID:        "css",
		Match:     regexp.MustCompile(`\.css$`),
		SourceExt: ".less",
		Compiler: backend.CompileFunc(func(context.Context, backend.Source, backend.Options) ([]byte, error) {
			return nil, nil
		}),
	}
	reg := backend.NewRegistry()
	reg.MustRegister(d)
	dir := t.TempDir()
	p := pipeline.New(reg, pipeline.Settings{Roots: []config.RootPair{{Source: dir, Dest: dir}}}, nil)

	out := p.Run(context.Background(), pipeline.NewRequest("GET", "/app.js", "", ""), d, nil)
	assert.Equal(t, pipeline.StatusNoMatch, out.Status)

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"pipeline.run"`)
	assert.Contains(t, buf.String(), "assetc-test")
	assert.Contains(t, buf.String(), `"no_match"`)
}
