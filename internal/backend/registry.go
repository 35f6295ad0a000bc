package backend

import (
	"sort"
	"sync"

	"github.com/conneroisu/assetc/internal/errors"
)

// Registry maps backend ids to descriptors. It is filled once at startup and
// passed explicitly to the dispatcher; there is no removal.
type Registry struct {
	backends map[string]*Descriptor
	mutex    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]*Descriptor),
	}
}

// Register adds d. Re-registering the same descriptor is a no-op; a
// different descriptor under a taken id is a configuration error.
func (r *Registry) Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return errors.NewConfigError(err.Error())
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if old, exists := r.backends[d.ID]; exists {
		if old == d {
			return nil
		}
		return errors.NewConfigErrorf("backend id collision (%q): new=%s is not old=%s",
			d.ID, d.DisplayName(), old.DisplayName())
	}

	r.backends[d.ID] = d
	return nil
}

// MustRegister registers every descriptor and panics on the first error.
func (r *Registry) MustRegister(ds ...*Descriptor) {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the descriptor registered under id.
func (r *Registry) Lookup(id string) (*Descriptor, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	d, ok := r.backends[id]
	return d, ok
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ids := make([]string, 0, len(r.backends))
	for id := range r.backends {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.backends)
}

// Describe returns the summaries of every registered backend, sorted by id.
func (r *Registry) Describe() []Info {
	ids := r.IDs()
	infos := make([]Info, 0, len(ids))
	for _, id := range ids {
		if d, ok := r.Lookup(id); ok {
			infos = append(infos, d.Info())
		}
	}
	return infos
}
