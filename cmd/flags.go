package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/assetc/internal/backend"
)

var outputFormats = []string{"table", "json", "yaml"}

// bindFlag binds a flag to a viper key; only an explicitly set flag
// overrides the file and environment.
func bindFlag(fs *pflag.FlagSet, flagName, key string) {
	if f := fs.Lookup(flagName); f != nil {
		_ = viper.BindPFlag(key, f)
	}
}

// addOutputFlag registers -o/--output on fs.
func addOutputFlag(fs *pflag.FlagSet, target *string) {
	fs.StringVarP(target, "output", "o", "table", "Output format ("+strings.Join(outputFormats, "|")+")")
}

// validateFormat checks format against valid and suggests the closest one.
func validateFormat(format string, valid []string) error {
	for _, v := range valid {
		if format == v {
			return nil
		}
	}
	msg := fmt.Sprintf("invalid output format %q, must be one of: %s", format, strings.Join(valid, ", "))
	if s := closest(format, valid); s != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", s)
	}
	return fmt.Errorf("%s", msg)
}

func closest(input string, candidates []string) string {
	best, bestDist := "", 3
	for _, c := range candidates {
		if d := levenshtein(strings.ToLower(input), c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur := make([]int, len(b)+1)
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev = cur
	}
	return prev[len(b)]
}

// optionsValue collects repeated key=value flags into backend options.
// Values that parse as bool, integer or float are stored typed.
type optionsValue struct {
	opts backend.Options
}

var _ pflag.Value = (*optionsValue)(nil)

func newOptionsValue() *optionsValue {
	return &optionsValue{opts: backend.Options{}}
}

func (v *optionsValue) Set(raw string) error {
	key, value, ok := strings.Cut(raw, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", raw)
	}
	v.opts[key] = parseScalar(value)
	return nil
}

func (v *optionsValue) String() string {
	keys := make([]string, 0, len(v.opts))
	for k := range v.opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v.opts[k]))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (v *optionsValue) Type() string {
	return "key=value"
}

// Options returns the collected options, or nil when none were set.
func (v *optionsValue) Options() backend.Options {
	if len(v.opts) == 0 {
		return nil
	}
	return v.opts
}

func parseScalar(s string) interface{} {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
