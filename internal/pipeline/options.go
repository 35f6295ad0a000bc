package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/conneroisu/assetc/internal/backend"
	"github.com/conneroisu/assetc/internal/config"
	"github.com/conneroisu/assetc/internal/errors"
)

// Keys inside a backend's options bucket that override the global settings
// for that backend only.
const (
	KeyDelta           = "delta"
	KeyExpires         = "expires"
	KeyCreateDirs      = "create_dirs"
	KeyExternalTimeout = "external_timeout"
)

// Settings are the parts of the configuration a pipeline run consults.
type Settings struct {
	Roots           []config.RootPair
	Delta           time.Duration
	Expires         time.Duration
	CreateDirs      bool
	ExternalTimeout time.Duration
	// Options holds the per-backend overrides keyed by lowercase backend id,
	// plus the "all" bucket.
	Options map[string]backend.Options
}

// SettingsFromConfig extracts the pipeline settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	opts := make(map[string]backend.Options, len(cfg.Options))
	for id, m := range cfg.Options {
		opts[strings.ToLower(id)] = backend.Options(m)
	}

	return Settings{
		Roots:           cfg.Roots,
		Delta:           cfg.Delta,
		Expires:         cfg.Expires,
		CreateDirs:      cfg.CreateDirs,
		ExternalTimeout: cfg.ExternalTimeout,
		Options:         opts,
	}
}

// Override returns s with the settings keys found in the options bucket of
// backend id applied.
func (s Settings) Override(id string) (Settings, error) {
	bucket := s.Options[strings.ToLower(id)]
	if len(bucket) == 0 {
		return s, nil
	}

	var err error
	if raw, ok := bucket[KeyDelta]; ok {
		if s.Delta, err = config.ParseSeconds(raw); err != nil {
			return s, overrideError(id, KeyDelta, err)
		}
	}
	if raw, ok := bucket[KeyExpires]; ok {
		if s.Expires, err = config.ParseMillis(raw); err != nil {
			return s, overrideError(id, KeyExpires, err)
		}
	}
	if raw, ok := bucket[KeyExternalTimeout]; ok {
		if s.ExternalTimeout, err = config.ParseMillis(raw); err != nil {
			return s, overrideError(id, KeyExternalTimeout, err)
		}
	}
	if raw, ok := bucket[KeyCreateDirs]; ok {
		if s.CreateDirs, err = parseBool(raw); err != nil {
			return s, overrideError(id, KeyCreateDirs, err)
		}
	}

	return s, nil
}

// EffectiveOptions merges the options for one compile of d. Precedence from
// lowest to highest: the declared defaults (or the options function), the
// "all" bucket, the bucket of d, and the per-call options.
func EffectiveOptions(d *backend.Descriptor, s Settings, call backend.Options, src backend.Source) backend.Options {
	overrides := s.Options[config.AllOptionsKey].Merge(s.Options[strings.ToLower(d.ID)], call)
	return d.Options(overrides, src)
}

func parseBool(raw interface{}) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("expected a boolean, got %T", raw)
	}
}

func overrideError(id, key string, err error) error {
	return errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfiguration,
		fmt.Sprintf("invalid %s override", key)).WithBackend(id)
}
