//go:build property

package pipeline

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/assetc/internal/fsutil"
)

// TestStalenessProperties validates the precedence of the staleness checks
func TestStalenessProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seconds := func(n int64) time.Duration { return time.Duration(n) * time.Second }

	// Property: a missing destination is always stale, whatever the timings
	properties.Property("missing destination is stale", prop.ForAll(
		func(srcAge, tolerance, expires int64) bool {
			src := fsutil.FileInfo{Exists: true, ModTime: now.Add(-seconds(srcAge))}
			v, err := IsStale(src, fsutil.FileInfo{}, seconds(tolerance), seconds(expires), now)
			return err == nil && v == VerdictMissing
		},
		gen.Int64Range(0, 86400),
		gen.Int64Range(0, 3600),
		gen.Int64Range(0, 3600),
	))

	// Property: with expiry disabled, the verdict depends only on the mtimes
	properties.Property("mtime comparison honours tolerance", prop.ForAll(
		func(srcAge, destAge, tolerance int64) bool {
			src := fsutil.FileInfo{Exists: true, ModTime: now.Add(-seconds(srcAge))}
			dest := fsutil.FileInfo{Exists: true, ModTime: now.Add(-seconds(destAge)), CTime: now.Add(-seconds(destAge))}
			v, err := IsStale(src, dest, seconds(tolerance), 0, now)
			if err != nil {
				return false
			}
			outdated := destAge-srcAge > tolerance
			return v.Stale() == outdated
		},
		gen.Int64Range(0, 86400),
		gen.Int64Range(0, 86400),
		gen.Int64Range(0, 3600),
	))

	// Property: an artifact older than the expiry window is always expired
	properties.Property("expiry wins over mtimes", prop.ForAll(
		func(srcAge, extra, expires int64) bool {
			src := fsutil.FileInfo{Exists: true, ModTime: now.Add(-seconds(srcAge))}
			changed := now.Add(-seconds(expires + extra))
			dest := fsutil.FileInfo{Exists: true, ModTime: changed, CTime: changed}
			v, err := IsStale(src, dest, 0, seconds(expires), now)
			return err == nil && v == VerdictExpired
		},
		gen.Int64Range(0, 86400),
		gen.Int64Range(0, 3600),
		gen.Int64Range(1, 3600),
	))

	// Property: a vanished source is reported as an error before anything else
	properties.Property("vanished source is an error", prop.ForAll(
		func(destAge int64, destExists bool) bool {
			dest := fsutil.FileInfo{Exists: destExists, ModTime: now.Add(-seconds(destAge))}
			_, err := IsStale(fsutil.FileInfo{}, dest, 0, 0, now)
			return err != nil
		},
		gen.Int64Range(0, 86400),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
