package comm

import (
	"fmt"
	"sort"

	"github.com/cartfluid/ibmesh/hier"
)

type algEntry struct {
	alg       *Algorithm
	schedules []*Schedule
}

// Registry owns the named, reusable communication algorithms registered
// during initialization and the per-level schedules built from them.
// Identifiers are derived from variable names by the callers, who are
// responsible for their uniqueness.
type Registry struct {
	name string

	algs map[ScheduleKind]map[string]*algEntry
}

// NewRegistry returns an empty schedule registry.
func NewRegistry(name string) *Registry {
	r := &Registry{name: name, algs: make(map[ScheduleKind]map[string]*algEntry)}
	for _, k := range []ScheduleKind{GhostfillKind, CoarsenKind, ProlongKind} {
		r.algs[k] = make(map[string]*algEntry)
	}
	return r
}

func (r *Registry) register(kind ScheduleKind, name string, alg *Algorithm, replace bool) error {
	m := r.algs[kind]
	if _, ok := m[name]; ok && !replace {
		return fmt.Errorf(
			"%s: a %s algorithm named '%s' is already registered; "+
				"use the Replace variant to overwrite it",
			r.name, kind, name,
		)
	}
	m[name] = &algEntry{alg: alg}
	return nil
}

// RegisterGhostfill registers a ghost-cell fill algorithm under the given
// identifier. Registering a duplicate identifier is an error.
func (r *Registry) RegisterGhostfill(name string, alg *Algorithm) error {
	return r.register(GhostfillKind, name, alg, false)
}

// RegisterCoarsen registers a coarsening algorithm.
func (r *Registry) RegisterCoarsen(name string, alg *Algorithm) error {
	return r.register(CoarsenKind, name, alg, false)
}

// RegisterProlong registers a prolongation algorithm.
func (r *Registry) RegisterProlong(name string, alg *Algorithm) error {
	return r.register(ProlongKind, name, alg, false)
}

// ReplaceGhostfill registers a ghost-cell fill algorithm, overwriting any
// previous registration under the same identifier.
func (r *Registry) ReplaceGhostfill(name string, alg *Algorithm) {
	_ = r.register(GhostfillKind, name, alg, true)
}

// ReplaceCoarsen overwrites a coarsening algorithm registration.
func (r *Registry) ReplaceCoarsen(name string, alg *Algorithm) {
	_ = r.register(CoarsenKind, name, alg, true)
}

// ReplaceProlong overwrites a prolongation algorithm registration.
func (r *Registry) ReplaceProlong(name string, alg *Algorithm) {
	_ = r.register(ProlongKind, name, alg, true)
}

// BuildSchedules instantiates per-level schedules for every registered
// algorithm against the given hierarchy. It must be called again after
// every regrid, since the level decomposition the schedules bind to has
// changed.
func (r *Registry) BuildSchedules(h *hier.Hierarchy) {
	for kind, m := range r.algs {
		for _, e := range m {
			e.schedules = e.schedules[:0]
			lo := 0
			if kind != GhostfillKind {
				lo = 1
			}
			for ln := lo; ln < h.NumLevels(); ln++ {
				e.schedules = append(e.schedules, &Schedule{
					Alg: e.alg, Kind: kind, Level: ln, h: h,
				})
			}
		}
	}
}

// lookup returns the schedules registered under the identifier. A miss is
// a programming error: schedules must be registered during initialization,
// before first use.
func (r *Registry) lookup(kind ScheduleKind, name string) []*Schedule {
	e, ok := r.algs[kind][name]
	if !ok {
		known := make([]string, 0, len(r.algs[kind]))
		for k := range r.algs[kind] {
			known = append(known, k)
		}
		sort.Strings(known)
		panic(fmt.Sprintf(
			"%s: no %s algorithm named '%s' is registered (known: %v)",
			r.name, kind, name, known,
		))
	}
	return e.schedules
}

// GhostfillSchedules returns the per-level ghost-fill schedules built for
// the identifier.
func (r *Registry) GhostfillSchedules(name string) []*Schedule {
	return r.lookup(GhostfillKind, name)
}

// CoarsenSchedules returns the per-level coarsening schedules built for
// the identifier.
func (r *Registry) CoarsenSchedules(name string) []*Schedule {
	return r.lookup(CoarsenKind, name)
}

// ProlongSchedules returns the per-level prolongation schedules built for
// the identifier.
func (r *Registry) ProlongSchedules(name string) []*Schedule {
	return r.lookup(ProlongKind, name)
}
