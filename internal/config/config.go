// Package config provides configuration management for assetc using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration names the ordered list of enabled backends, the
// source/destination root pairs, the staleness tolerance and expiry window,
// the dispatch policy (cascade, ignore pattern, allowed methods), per-backend
// option overrides, and the server settings used by "assetc serve".
package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/assetc/internal/fsutil"
)

// Defaults.
const (
	DefaultIndexFile       = "index.html"
	DefaultIgnore          = `(?i)\.(jpe?g|gif|png)$`
	DefaultExternalTimeout = 3000 * time.Millisecond
	DefaultLogLevel        = "warn"
	DefaultHost            = "localhost"
	DefaultPort            = 8080

	// AllOptionsKey is the options bucket applied to every backend.
	AllOptionsKey = "all"
)

// Config is the effective configuration.
type Config struct {
	Enabled         []string
	Roots           []RootPair
	Mount           string
	ResolveIndex    string // empty disables index resolution
	Delta           time.Duration
	Expires         time.Duration // zero disables forced invalidation
	CreateDirs      bool
	Cascade         bool
	Ignore          *regexp.Regexp
	AllowedMethods  []string
	Options         map[string]map[string]interface{}
	ExternalTimeout time.Duration
	LogLevel        string
	LogFormat       string

	Server  ServerConfig
	Metrics MetricsConfig
	Tracing TracingConfig

	// sortedRoots is set when several roots came from the map form, whose
	// key order viper does not keep.
	sortedRoots bool
}

// RootPair maps a source directory to the directory its artifacts go to.
type RootPair struct {
	Source string `json:"src" yaml:"src"`
	Dest   string `json:"dest" yaml:"dest"`
}

type ServerConfig struct {
	Host   string
	Port   int
	Static bool
}

type MetricsConfig struct {
	Enabled bool
}

type TracingConfig struct {
	Enabled bool
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mount", "")
	v.SetDefault("resolve_index", false)
	v.SetDefault("delta", 0)
	v.SetDefault("expires", 0)
	v.SetDefault("create_dirs", true)
	v.SetDefault("cascade", false)
	v.SetDefault("ignore", DefaultIgnore)
	v.SetDefault("allowed_methods", []string{"GET"})
	v.SetDefault("external_timeout", int(DefaultExternalTimeout/time.Millisecond))
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", "text")
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.static", true)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("tracing.enabled", false)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return FromViper(viper.GetViper())
}

// FromViper builds a Config from v, normalizing the alternative forms the
// settings accept. It does not check the result; see Validate.
func FromViper(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		Enabled:        splitList(v.Get("enabled")),
		Mount:          v.GetString("mount"),
		CreateDirs:     v.GetBool("create_dirs"),
		Cascade:        v.GetBool("cascade"),
		AllowedMethods: upper(splitList(v.Get("allowed_methods"))),
		LogLevel:       v.GetString("log_level"),
		LogFormat:      v.GetString("log_format"),
		Server: ServerConfig{
			Host:   v.GetString("server.host"),
			Port:   v.GetInt("server.port"),
			Static: v.GetBool("server.static"),
		},
		Metrics: MetricsConfig{Enabled: v.GetBool("metrics.enabled")},
		Tracing: TracingConfig{Enabled: v.GetBool("tracing.enabled")},
	}

	var err error
	if cfg.Roots, err = parseRoots(v); err != nil {
		return nil, fmt.Errorf("roots: %w", err)
	}
	if _, isMap := v.Get("roots").(map[string]interface{}); isMap && len(cfg.Roots) > 1 {
		cfg.sortedRoots = true
	}
	if cfg.ResolveIndex, err = parseResolveIndex(v.Get("resolve_index")); err != nil {
		return nil, fmt.Errorf("resolve_index: %w", err)
	}
	if cfg.Delta, err = ParseSeconds(v.Get("delta")); err != nil {
		return nil, fmt.Errorf("delta: %w", err)
	}
	if cfg.Expires, err = ParseMillis(v.Get("expires")); err != nil {
		return nil, fmt.Errorf("expires: %w", err)
	}
	if cfg.ExternalTimeout, err = ParseMillis(v.Get("external_timeout")); err != nil {
		return nil, fmt.Errorf("external_timeout: %w", err)
	}
	if cfg.ExternalTimeout <= 0 {
		cfg.ExternalTimeout = DefaultExternalTimeout
	}
	if pattern := v.GetString("ignore"); pattern != "" {
		if cfg.Ignore, err = regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("ignore: %w", err)
		}
	}
	if cfg.Options, err = parseOptions(v.Get("options")); err != nil {
		return nil, fmt.Errorf("options: %w", err)
	}

	return cfg, nil
}

// MethodAllowed reports whether requests with method are intercepted.
func (c *Config) MethodAllowed(method string) bool {
	for _, m := range c.AllowedMethods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// IsIgnored reports whether path bypasses the pipeline.
func (c *Config) IsIgnored(path string) bool {
	return c.Ignore != nil && c.Ignore.MatchString(path)
}

// DestRoots returns the distinct destination roots in configuration order.
func (c *Config) DestRoots() []string {
	seen := make(map[string]bool, len(c.Roots))
	out := make([]string, 0, len(c.Roots))
	for _, r := range c.Roots {
		if !seen[r.Dest] {
			seen[r.Dest] = true
			out = append(out, r.Dest)
		}
	}
	return out
}

func parseRoots(v *viper.Viper) ([]RootPair, error) {
	var pairs []RootPair

	switch raw := v.Get("roots").(type) {
	case nil:
		srcs := splitList(v.Get("src"))
		if len(srcs) == 0 {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, err
			}
			srcs = []string{cwd}
		}
		dest := v.GetString("dest")
		if dest == "" {
			dest = srcs[0]
		}
		for _, src := range srcs {
			pairs = append(pairs, RootPair{Source: src, Dest: dest})
		}
	case map[string]interface{}:
		// map iteration is unordered; sort for a stable resolution order
		keys := make([]string, 0, len(raw))
		for src := range raw {
			keys = append(keys, src)
		}
		sort.Strings(keys)
		for _, src := range keys {
			dest, ok := raw[src].(string)
			if !ok {
				return nil, fmt.Errorf("destination for %q must be a string", src)
			}
			pairs = append(pairs, RootPair{Source: src, Dest: dest})
		}
	case []interface{}:
		for i, item := range raw {
			pair, err := parseRootItem(item)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			pairs = append(pairs, pair)
		}
	case []map[string]interface{}:
		for i, item := range raw {
			pair, err := parseRootItem(item)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			pairs = append(pairs, pair)
		}
	case [][]string:
		for i, item := range raw {
			pair, err := parseRootItem(item)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			pairs = append(pairs, pair)
		}
	case []RootPair:
		pairs = append(pairs, raw...)
	default:
		return nil, fmt.Errorf("unsupported roots value of type %T", raw)
	}

	for i := range pairs {
		src, err := fsutil.Expand(pairs[i].Source)
		if err != nil {
			return nil, err
		}
		dest, err := fsutil.Expand(pairs[i].Dest)
		if err != nil {
			return nil, err
		}
		pairs[i] = RootPair{Source: src, Dest: dest}
	}

	return pairs, nil
}

func parseRootItem(item interface{}) (RootPair, error) {
	switch it := item.(type) {
	case []interface{}:
		if len(it) != 2 {
			return RootPair{}, fmt.Errorf("expected [src, dest], got %d elements", len(it))
		}
		src, ok1 := it[0].(string)
		dest, ok2 := it[1].(string)
		if !ok1 || !ok2 {
			return RootPair{}, fmt.Errorf("src and dest must be strings")
		}
		return RootPair{Source: src, Dest: dest}, nil
	case []string:
		if len(it) != 2 {
			return RootPair{}, fmt.Errorf("expected [src, dest], got %d elements", len(it))
		}
		return RootPair{Source: it[0], Dest: it[1]}, nil
	case map[string]interface{}:
		src, _ := it["src"].(string)
		dest, _ := it["dest"].(string)
		if src == "" {
			return RootPair{}, fmt.Errorf("missing src")
		}
		if dest == "" {
			dest = src
		}
		return RootPair{Source: src, Dest: dest}, nil
	case RootPair:
		return it, nil
	default:
		return RootPair{}, fmt.Errorf("unsupported root entry of type %T", item)
	}
}

func parseResolveIndex(raw interface{}) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case bool:
		if v {
			return DefaultIndexFile, nil
		}
		return "", nil
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return parseResolveIndex(b)
		}
		return strings.TrimLeft(v, "/"), nil
	default:
		return "", fmt.Errorf("expected a boolean or a file name, got %T", raw)
	}
}

// ParseMillis interprets numbers as milliseconds and strings as either a
// millisecond count or a Go duration ("1.5s"). false and nil mean zero.
func ParseMillis(raw interface{}) (time.Duration, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case bool:
		if v {
			return 0, fmt.Errorf("expected a duration, got true")
		}
		return 0, nil
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	case time.Duration:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(n * float64(time.Millisecond)), nil
		}
		return time.ParseDuration(s)
	default:
		return 0, fmt.Errorf("unsupported duration value of type %T", raw)
	}
}

// ParseSeconds interprets numbers as seconds and strings as either a second
// count or a Go duration.
func ParseSeconds(raw interface{}) (time.Duration, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case time.Duration:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(n * float64(time.Second)), nil
		}
		return time.ParseDuration(s)
	default:
		return 0, fmt.Errorf("unsupported duration value of type %T", raw)
	}
}

func parseOptions(raw interface{}) (map[string]map[string]interface{}, error) {
	out := map[string]map[string]interface{}{AllOptionsKey: {}}
	if raw == nil {
		return out, nil
	}

	top, ok := toStringMap(raw)
	if !ok {
		return nil, fmt.Errorf("expected a map keyed by backend id, got %T", raw)
	}
	for id, val := range top {
		m, ok := toStringMap(val)
		if !ok {
			return nil, fmt.Errorf("options for %q must be a map, got %T", id, val)
		}
		out[strings.ToLower(id)] = m
	}

	return out, nil
}

func toStringMap(raw interface{}) (map[string]interface{}, bool) {
	switch m := raw.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	case nil:
		return map[string]interface{}{}, true
	default:
		return nil, false
	}
}

// splitList accepts a list, or a string separated by commas or whitespace.
func splitList(raw interface{}) []string {
	var items []string
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		items = strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})
	case []string:
		items = v
	case []interface{}:
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
	default:
		items = []string{fmt.Sprint(v)}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func upper(items []string) []string {
	for i, s := range items {
		items[i] = strings.ToUpper(s)
	}
	return items
}
