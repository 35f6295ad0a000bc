// Package builtin holds the backends assetc ships with. Most wrap a command
// line compiler; yaml, gotmpl and htmlmin run in process.
package builtin

import (
	"github.com/conneroisu/assetc/internal/backend"
	"github.com/conneroisu/assetc/internal/logging"
)

// Descriptors returns a fresh descriptor for every built-in backend, in
// registration order. Process-based backends log through logger.
func Descriptors(logger logging.Logger) []*backend.Descriptor {
	return append(processBackends(logger), YAML(), Template(), HTMLMin())
}

// Register adds every built-in backend to reg.
func Register(reg *backend.Registry, logger logging.Logger) error {
	for _, d := range Descriptors(logger) {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}
