package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/assetc/internal/backend"
)

// YAML compiles ".json" requests from ".yaml" sources.
//
// Options:
//   - indent: indentation string (default two spaces)
//   - compact: emit a single line
func YAML() *backend.Descriptor {
	return &backend.Descriptor{
		ID:        "yaml",
		Name:      "YAML to JSON",
		Match:     regexp.MustCompile(`(?i)\.json$`),
		SourceExt: ".yaml",
		Defaults:  backend.Options{"indent": "  ", "compact": false},
		Compiler:  backend.CompileFunc(compileYAML),
	}
}

func compileYAML(_ context.Context, src backend.Source, opts backend.Options) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(src.Text, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if !opts.Bool("compact") {
		enc.SetIndent("", opts.String("indent"))
	}
	if err := enc.Encode(jsonValue(doc)); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return buf.Bytes(), nil
}

// jsonValue converts the generic maps yaml may produce into ones
// encoding/json accepts.
func jsonValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			t[k] = jsonValue(val)
		}
		return t
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonValue(val)
		}
		return out
	case []interface{}:
		for i, val := range t {
			t[i] = jsonValue(val)
		}
		return t
	default:
		return v
	}
}
