package builtin

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/assetc/internal/backend"
)

// TemplateData is the data a page template is executed with.
type TemplateData struct {
	// Path is the request path being served.
	Path string
	// Source is the template file.
	Source string
	// Options are the backend options, including any configured values.
	Options backend.Options
}

// Template renders ".html" requests from ".tmpl" sources with html/template.
// A "partials" option names a glob, relative to the source directory, of
// templates parsed alongside the page.
func Template() *backend.Descriptor {
	return &backend.Descriptor{
		ID:        "gotmpl",
		Name:      "Go html/template",
		Match:     regexp.MustCompile(`(?i)\.html?$`),
		SourceExt: ".tmpl",
		Compiler:  backend.CompileFunc(renderTemplate),
	}
}

var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"join":  strings.Join,
}

func renderTemplate(_ context.Context, src backend.Source, opts backend.Options) ([]byte, error) {
	name := filepath.Base(src.Path)
	tmpl, err := template.New(name).Funcs(templateFuncs).Parse(string(src.Text))
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	if glob := opts.String("partials"); glob != "" {
		if !filepath.IsAbs(glob) {
			glob = filepath.Join(filepath.Dir(src.Path), glob)
		}
		matches, err := filepath.Glob(glob)
		if err != nil {
			return nil, fmt.Errorf("partials: %w", err)
		}
		if len(matches) > 0 {
			if tmpl, err = tmpl.ParseFiles(matches...); err != nil {
				return nil, fmt.Errorf("parse partials: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	data := TemplateData{Path: src.RequestPath, Source: src.Path, Options: opts}
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return buf.Bytes(), nil
}
