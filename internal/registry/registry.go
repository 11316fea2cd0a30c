// Package registry holds the allow-list of models exposed through the
// admin surface. A model that was never registered does not exist as far
// as the rest of the system is concerned.
package registry

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rasinmuhammed/matrix-admin/model"
)

// snapshot is an immutable view of all registered descriptors.
type snapshot struct {
	models map[string]*model.ModelDescriptor
	names  []string
}

// Registry is a read-optimized, thread-safe store of model descriptors.
// Reads go through an atomic pointer swap and take no lock; writers
// serialize on a mutex and publish a fresh snapshot.
type Registry struct {
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// New creates an empty Registry.
func New() *Registry {
	r := &Registry{}
	r.snap.Store(&snapshot{models: map[string]*model.ModelDescriptor{}})
	return r
}

func (r *Registry) current() *snapshot {
	return r.snap.Load()
}

// Register adds a descriptor under its model name. Registering a name
// twice fails with DUPLICATE_MODEL; the existing descriptor is kept.
func (r *Registry) Register(desc *model.ModelDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.current()
	if _, ok := old.models[desc.Name]; ok {
		return model.NewDuplicateModelError(desc.Name)
	}

	next := &snapshot{
		models: make(map[string]*model.ModelDescriptor, len(old.models)+1),
		names:  make([]string, 0, len(old.names)+1),
	}
	for name, d := range old.models {
		next.models[name] = d
	}
	next.models[desc.Name] = desc
	for name := range next.models {
		next.names = append(next.names, name)
	}
	sort.Strings(next.names)

	r.snap.Store(next)
	return nil
}

// Get returns the descriptor for the named model, or MODEL_NOT_FOUND.
func (r *Registry) Get(name string) (*model.ModelDescriptor, error) {
	d, ok := r.current().models[name]
	if !ok {
		return nil, model.NewModelNotFoundError(name)
	}
	return d, nil
}

// IsRegistered reports whether the named model exists, without error
// allocation.
func (r *Registry) IsRegistered(name string) bool {
	_, ok := r.current().models[name]
	return ok
}

// ValidateModelAccess is the gate every inbound request passes through.
// It returns the descriptor only when the name is on the allow-list.
func (r *Registry) ValidateModelAccess(name string) (*model.ModelDescriptor, error) {
	return r.Get(name)
}

// ValidateSubtypeAccess checks that subtype belongs to the named model's
// declared subtype set. A subtype valid for some other model is still
// rejected here.
func (r *Registry) ValidateSubtypeAccess(name, subtype string) (*model.ModelDescriptor, error) {
	d, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if !d.AllowsSubtype(subtype) {
		return nil, model.NewSubtypeNotAllowedError(name, subtype)
	}
	return d, nil
}

// AllNames returns the registered model names in sorted order.
func (r *Registry) AllNames() []string {
	names := r.current().names
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// All returns every registered descriptor, ordered by model name.
func (r *Registry) All() []*model.ModelDescriptor {
	s := r.current()
	out := make([]*model.ModelDescriptor, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.models[name])
	}
	return out
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	return len(r.current().names)
}
