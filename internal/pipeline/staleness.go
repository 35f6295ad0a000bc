package pipeline

import (
	"time"

	"github.com/conneroisu/assetc/internal/errors"
	"github.com/conneroisu/assetc/internal/fsutil"
)

// Verdict is the outcome of the staleness decision.
type Verdict int

const (
	// VerdictFresh means the artifact is current and is served as is.
	VerdictFresh Verdict = iota
	// VerdictMissing means there is no artifact yet.
	VerdictMissing
	// VerdictExpired means the artifact outlived the expiry window and is
	// deleted before regeneration.
	VerdictExpired
	// VerdictOutdated means the source changed after the artifact was built.
	VerdictOutdated
)

// Stale reports whether the artifact must be rebuilt.
func (v Verdict) Stale() bool {
	return v != VerdictFresh
}

func (v Verdict) String() string {
	switch v {
	case VerdictFresh:
		return "fresh"
	case VerdictMissing:
		return "missing"
	case VerdictExpired:
		return "expired"
	case VerdictOutdated:
		return "outdated"
	default:
		return "unknown"
	}
}

// IsStale decides whether dest must be regenerated from src.
//
// The checks run in order: a vanished source is an error, a missing
// destination is stale, an expired destination (expires > 0 and its change
// time plus expires is not in the future) is stale, and a source modified
// more than tolerance after the destination is stale.
func IsStale(src, dest fsutil.FileInfo, tolerance, expires time.Duration, now time.Time) (Verdict, error) {
	if !src.Exists {
		return VerdictFresh, errors.NewStalenessError(errors.ErrCodeSourceVanished, "source vanished", nil)
	}
	if !dest.Exists {
		return VerdictMissing, nil
	}
	if expires > 0 && !dest.CTime.Add(expires).After(now) {
		return VerdictExpired, nil
	}
	if src.ModTime.After(dest.ModTime.Add(tolerance)) {
		return VerdictOutdated, nil
	}
	return VerdictFresh, nil
}
