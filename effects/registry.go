package effects

import "log"

// Registry memoizes the most recently built bundle. At most one bundle is
// resident at any time: a miss tears the resident bundle down before the
// next one is built.
type Registry struct {
	resident *Bundle
}

func NewRegistry() *Registry { return &Registry{} }

// Select returns the bundle for id, building it on a miss. Selecting the
// resident id again returns the same bundle without touching the GPU. When
// the build fails nothing stays resident and the error is returned as is;
// falling back to the unfiltered picture is up to the caller.
func (r *Registry) Select(id ID, env *Env) (*Bundle, error) {
	if r.resident != nil && r.resident.ID == id {
		return r.resident, nil
	}
	r.Release()

	b, err := Build(id, env)
	if err != nil {
		return nil, err
	}
	log.Printf("Built effect %q: %d passes", id, len(b.Passes))
	r.resident = b
	return b, nil
}

// Resident returns the memoized bundle, or nil.
func (r *Registry) Resident() *Bundle { return r.resident }

// Release tears down and forgets the resident bundle.
func (r *Registry) Release() {
	if r.resident == nil {
		return
	}
	r.resident.Destroy()
	r.resident = nil
}
