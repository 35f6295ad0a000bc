package pipeline

import (
	"path/filepath"
	"regexp"

	"github.com/conneroisu/assetc/internal/backend"
	"github.com/conneroisu/assetc/internal/config"
	"github.com/conneroisu/assetc/internal/errors"
	"github.com/conneroisu/assetc/internal/fsutil"
)

// Candidate is one possible source for a request under a root pair.
type Candidate struct {
	Root   config.RootPair
	Source string
}

// Matches applies the match rule of d to requestPath. On a match it returns
// the candidate source path under srcRoot: the request path with its matched
// suffix replaced by the source extension.
func Matches(d *backend.Descriptor, srcRoot, requestPath string) (string, bool) {
	rule := d.MatchRule()
	if !rule.MatchString(requestPath) {
		return "", false
	}

	rel := replaceMatch(rule, requestPath, d.SourceExt)
	return filepath.Join(srcRoot, filepath.FromSlash(rel)), true
}

// ResolveAcrossRoots returns one candidate per root pair whose source root
// yields a match, in configuration order.
func ResolveAcrossRoots(d *backend.Descriptor, roots []config.RootPair, requestPath string) []Candidate {
	var out []Candidate
	for _, root := range roots {
		if src, ok := Matches(d, root.Source, requestPath); ok {
			out = append(out, Candidate{Root: root, Source: src})
		}
	}
	return out
}

// Validate returns the first candidate whose source is an existing regular
// file, together with its metadata.
func Validate(candidates []Candidate) (Candidate, fsutil.FileInfo, error) {
	tried := make([]string, 0, len(candidates))
	for _, c := range candidates {
		info, err := fsutil.Stat(c.Source)
		if err != nil {
			return Candidate{}, fsutil.FileInfo{},
				errors.NewStalenessError(errors.ErrCodeStalenessCheck, "cannot stat source", err).WithPath(c.Source)
		}
		tried = append(tried, c.Source)
		if !info.Exists || info.IsDir {
			continue
		}
		return c, info, nil
	}

	return Candidate{}, fsutil.FileInfo{}, errors.NewSourceNotFoundError(tried)
}

// LookupDestination returns the artifact location for requestPath under
// destRoot. Without a destination extension the request path is used as is.
func LookupDestination(d *backend.Descriptor, destRoot, requestPath string) string {
	rel := requestPath
	if d.DestExt != "" {
		rel = replaceMatch(d.MatchRule(), requestPath, d.DestExt)
	}
	return filepath.Join(destRoot, filepath.FromSlash(rel))
}

// replaceMatch replaces the first match of rule in s with repl, expanding
// $n group references.
func replaceMatch(rule *regexp.Regexp, s, repl string) string {
	loc := rule.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}
	expanded := rule.ExpandString(nil, repl, s, loc)
	return s[:loc[0]] + string(expanded) + s[loc[1]:]
}
