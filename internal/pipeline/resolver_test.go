package pipeline

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assetc/internal/backend"
	"github.com/conneroisu/assetc/internal/config"
	"github.com/conneroisu/assetc/internal/errors"
	"github.com/conneroisu/assetc/internal/fsutil"
)

func TestMatches(t *testing.T) {
	uglify := &backend.Descriptor{ID: "uglify", Match: regexp.MustCompile(`(?i)\.min(\.mod)?\.js$`), SourceExt: "$1.js"}
	coffee := &backend.Descriptor{ID: "coffee", SourceExt: ".coffee"}

	tests := []struct {
		name     string
		d        *backend.Descriptor
		path     string
		expected string
		matched  bool
	}{
		{name: "default rule", d: coffee, path: "/app.js", expected: "/src/app.coffee", matched: true},
		{name: "default rule min", d: coffee, path: "/lib/app.min.js", expected: "/src/lib/app.coffee", matched: true},
		{name: "default rule case", d: coffee, path: "/APP.JS", expected: "/src/APP.coffee", matched: true},
		{name: "default rule miss", d: coffee, path: "/app.css", matched: false},
		{name: "group expansion", d: uglify, path: "/app.min.mod.js", expected: "/src/app.mod.js", matched: true},
		{name: "group expansion empty", d: uglify, path: "/app.min.js", expected: "/src/app.js", matched: true},
		{name: "no min", d: uglify, path: "/app.js", matched: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, ok := Matches(tt.d, "/src", tt.path)
			assert.Equal(t, tt.matched, ok)
			if tt.matched {
				assert.Equal(t, filepath.FromSlash(tt.expected), src)
			}
		})
	}
}

func TestResolveAcrossRootsKeepsOrder(t *testing.T) {
	d := &backend.Descriptor{ID: "coffee", SourceExt: ".coffee"}
	roots := []config.RootPair{{Source: "/one", Dest: "/out1"}, {Source: "/two", Dest: "/out2"}}

	cands := ResolveAcrossRoots(d, roots, "/app.js")
	require.Len(t, cands, 2)
	assert.Equal(t, filepath.FromSlash("/one/app.coffee"), cands[0].Source)
	assert.Equal(t, "/out2", cands[1].Root.Dest)

	assert.Empty(t, ResolveAcrossRoots(d, roots, "/app.css"))
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "b.coffee")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	cands := []Candidate{
		{Source: filepath.Join(dir, "a.coffee")},
		{Source: existing},
	}
	c, info, err := Validate(cands)
	require.NoError(t, err)
	assert.Equal(t, existing, c.Source)
	assert.True(t, info.Exists)

	_, _, err = Validate(cands[:1])
	assert.ErrorIs(t, err, errors.ErrSourceNotFound)
}

func TestLookupDestination(t *testing.T) {
	plain := &backend.Descriptor{ID: "coffee", SourceExt: ".coffee"}
	rewritten := &backend.Descriptor{ID: "yaml", Match: regexp.MustCompile(`\.data\.json$`), SourceExt: ".yaml", DestExt: ".json"}

	assert.Equal(t, filepath.FromSlash("/out/js/app.js"), LookupDestination(plain, "/out", "/js/app.js"))
	assert.Equal(t, filepath.FromSlash("/out/conf.json"), LookupDestination(rewritten, "/out", "/conf.data.json"))
}

func TestNewRequest(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		mount    string
		index    string
		path     string
		basename string
	}{
		{name: "plain", url: "/app.js", path: "/app.js", basename: "app.js"},
		{name: "query", url: "/app.js?v=2", path: "/app.js", basename: "app.js"},
		{name: "mount stripped", url: "/static/js/app.js", mount: "/static", path: "/js/app.js", basename: "app.js"},
		{name: "mount trailing slash", url: "/static/app.js", mount: "static/", path: "/app.js", basename: "app.js"},
		{name: "mount prefix only", url: "/staticfiles/app.js", mount: "/static", path: "/staticfiles/app.js", basename: "app.js"},
		{name: "index", url: "/docs/", index: "index.html", path: "/docs/index.html", basename: "index.html"},
		{name: "index at mount", url: "/static", mount: "/static", index: "index.html", path: "/index.html", basename: "index.html"},
		{name: "no index", url: "/docs/", path: "/docs", basename: "docs"},
		{name: "traversal cleaned", url: "/../../etc/passwd", path: "/etc/passwd", basename: "passwd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewRequest("GET", tt.url, tt.mount, tt.index)
			assert.Equal(t, tt.path, req.Path)
			assert.Equal(t, tt.basename, req.Basename)
			assert.Equal(t, tt.url, req.URL)
			assert.NotEmpty(t, req.ID)
			assert.Zero(t, req.Matches)
		})
	}

	assert.NotEqual(t, NewRequest("GET", "/a", "", "").ID, NewRequest("GET", "/a", "", "").ID)
}

func TestIsStale(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) time.Time { return now.Add(d) }
	file := func(mod, change time.Time) fsutil.FileInfo {
		return fsutil.FileInfo{Exists: true, ModTime: mod, CTime: change}
	}

	tests := []struct {
		name      string
		src, dest fsutil.FileInfo
		tolerance time.Duration
		expires   time.Duration
		expected  Verdict
	}{
		{name: "missing dest", src: file(at(-time.Hour), at(-time.Hour)), expected: VerdictMissing},
		{name: "fresh", src: file(at(-time.Hour), at(-time.Hour)), dest: file(at(-time.Minute), at(-time.Minute)), expected: VerdictFresh},
		{name: "outdated", src: file(at(-time.Second), at(-time.Second)), dest: file(at(-time.Minute), at(-time.Minute)), expected: VerdictOutdated},
		{name: "within tolerance", src: file(at(-time.Second), at(-time.Second)), dest: file(at(-time.Minute), at(-time.Minute)), tolerance: 2 * time.Minute, expected: VerdictFresh},
		{name: "expired", src: file(at(-time.Hour), at(-time.Hour)), dest: file(at(-time.Minute), at(-time.Minute)), expires: 30 * time.Second, expected: VerdictExpired},
		{name: "expires exactly now", src: file(at(-time.Hour), at(-time.Hour)), dest: file(at(-time.Minute), at(-time.Minute)), expires: time.Minute, expected: VerdictExpired},
		{name: "not yet expired", src: file(at(-time.Hour), at(-time.Hour)), dest: file(at(-time.Minute), at(-time.Minute)), expires: time.Hour, expected: VerdictFresh},
		{name: "expiry before mtime", src: file(at(-time.Second), at(-time.Second)), dest: file(at(-time.Minute), at(-time.Minute)), expires: time.Second, expected: VerdictExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := IsStale(tt.src, tt.dest, tt.tolerance, tt.expires, now)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
			assert.Equal(t, tt.expected != VerdictFresh, v.Stale())
		})
	}

	_, err := IsStale(fsutil.FileInfo{}, file(now, now), 0, 0, now)
	assert.ErrorIs(t, err, errors.ErrSourceVanished)
	assert.True(t, errors.IsHard(err))
}

func TestEffectiveOptionsPrecedence(t *testing.T) {
	d := &backend.Descriptor{ID: "Coffee", Defaults: backend.Options{"a": 1, "b": 1, "c": 1, "d": 1}}
	s := Settings{Options: map[string]backend.Options{
		config.AllOptionsKey: {"b": 2, "c": 2, "d": 2},
		"coffee":             {"c": 3, "d": 3},
	}}

	opts := EffectiveOptions(d, s, backend.Options{"d": 4}, backend.Source{})
	assert.Equal(t, backend.Options{"a": 1, "b": 2, "c": 3, "d": 4}, opts)
	assert.Equal(t, 1, d.Defaults["b"], "defaults must not be mutated")
}

func TestEffectiveOptionsFunc(t *testing.T) {
	d := &backend.Descriptor{
		ID: "sass",
		OptionsFunc: func(overrides backend.Options, src backend.Source) backend.Options {
			overrides["dir"] = filepath.Dir(src.Path)
			return overrides
		},
	}
	opts := EffectiveOptions(d, Settings{}, backend.Options{"style": "compressed"}, backend.Source{Path: "/css/site.scss"})
	assert.Equal(t, "compressed", opts["style"])
	assert.Equal(t, "/css", opts["dir"])
}

func TestSettingsOverride(t *testing.T) {
	base := Settings{
		Delta:           time.Second,
		Expires:         0,
		CreateDirs:      true,
		ExternalTimeout: 3 * time.Second,
		Options: map[string]backend.Options{
			"coffee": {KeyDelta: 2.5, KeyExpires: "1m", KeyCreateDirs: "false", KeyExternalTimeout: 500},
			"bad":    {KeyDelta: []int{1}},
		},
	}

	got, err := base.Override("COFFEE")
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, got.Delta)
	assert.Equal(t, time.Minute, got.Expires)
	assert.False(t, got.CreateDirs)
	assert.Equal(t, 500*time.Millisecond, got.ExternalTimeout)
	assert.True(t, base.CreateDirs, "base settings must not change")

	same, err := base.Override("less")
	require.NoError(t, err)
	assert.Equal(t, base.Delta, same.Delta)

	_, err = base.Override("bad")
	assert.True(t, errors.IsConfigError(err))
}
