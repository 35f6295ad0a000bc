package builtin

import (
	"path/filepath"
	"regexp"

	"github.com/conneroisu/assetc/internal/backend"
	"github.com/conneroisu/assetc/internal/backend/external"
	"github.com/conneroisu/assetc/internal/logging"
)

var (
	cssMatch    = regexp.MustCompile(`(?i)\.css$`)
	uglifyMatch = regexp.MustCompile(`(?i)\.min(\.mod)?\.js$`)
)

func processBackends(logger logging.Logger) []*backend.Descriptor {
	specs := []external.Spec{
		{
			ID:         "coffee",
			Name:       "CoffeeScript",
			SourceExt:  ".coffee",
			DestExt:    ".js",
			Defaults:   backend.Options{"bare": true},
			Command:    "coffee",
			Args:       []string{"--stdio", "--print"},
			Preprocess: bareFlag,
		},
		{
			ID:         "coco",
			Name:       "Coco",
			SourceExt:  ".co",
			DestExt:    ".js",
			Defaults:   backend.Options{"bare": true},
			Command:    "coco",
			Args:       []string{"--stdin", "--print"},
			Preprocess: bareFlag,
		},
		{
			ID:        "uglify",
			Name:      "UglifyJS",
			Match:     uglifyMatch,
			SourceExt: "$1.js",
			Command:   "uglifyjs",
			Args:      []string{"--compress", "--mangle"},
		},
		{
			ID:         "stylus",
			Name:       "Stylus",
			Match:      cssMatch,
			SourceExt:  ".styl",
			Command:    "stylus",
			Preprocess: stylusArgs,
		},
		{
			ID:         "less",
			Name:       "Less",
			Match:      cssMatch,
			SourceExt:  ".less",
			Command:    "lessc",
			Args:       []string{"-"},
			Preprocess: lessArgs,
		},
		{
			ID:        "sass",
			Name:      "Sass",
			Match:     cssMatch,
			SourceExt: ".sass",
			Command:   "sass",
			Args:      []string{"--stdin", "--indented"},
		},
		{
			ID:         "sass_ruby",
			Name:       "Sass (Ruby)",
			Match:      cssMatch,
			SourceExt:  ".sass",
			Command:    "sass",
			Args:       []string{"--stdin", "--no-cache"},
			Preprocess: loadPaths,
		},
		{
			ID:         "jison",
			Name:       "Jison",
			SourceExt:  ".jison",
			Command:    "jison",
			Preprocess: jisonArgs,
		},
	}

	out := make([]*backend.Descriptor, 0, len(specs))
	for _, spec := range specs {
		spec.Logger = logger
		out = append(out, external.New(spec))
	}
	return out
}

func bareFlag(args []string, _ backend.Source, opts backend.Options) []string {
	if opts.Bool("bare") {
		args = append(args, "--bare")
	}
	return args
}

func stylusArgs(args []string, src backend.Source, opts backend.Options) []string {
	args = append(args, "--include", filepath.Dir(src.Path))
	if opts.Bool("nib") {
		args = append(args, "--use", "nib")
	}
	if opts.Bool("compress") {
		args = append(args, "--compress")
	}
	return args
}

func lessArgs(args []string, src backend.Source, opts backend.Options) []string {
	args = append(args, "--include-path="+filepath.Dir(src.Path))
	if opts.Bool("compress") {
		args = append(args, "--compress")
	}
	return args
}

// loadPaths adds the source directory and the configured load_path option
// to the sass import path.
func loadPaths(args []string, src backend.Source, opts backend.Options) []string {
	args = append(args, "--load-path="+filepath.Dir(src.Path))
	if extra := opts.String("load_path"); extra != "" {
		args = append(args, "--load-path="+extra)
	}
	return args
}

// jisonArgs hands jison the grammar file; it cannot read one from stdin.
func jisonArgs(args []string, src backend.Source, _ backend.Options) []string {
	return append(args, src.Path, "-o", "/dev/stdout")
}
