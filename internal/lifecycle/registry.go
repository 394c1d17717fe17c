package lifecycle

import (
	"context"
	"sync"
)

// Registry hands out one Machine per document, so the in-flight guard holds
// across requests.
type Registry struct {
	deps Deps

	mu       sync.Mutex
	machines map[Ref]*Machine
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, machines: make(map[Ref]*Machine)}
}

// Machine returns the machine for ref, seeding a new one from the stored
// status. Once created, a machine is authoritative since every transition
// goes through it.
//
// Sent documents are terminal and are not kept: a machine is dropped when
// its send is persisted, and one seeded as sent is never registered. The
// stored status is read under the registry lock, so a machine built after a
// drop always sees sent.
func (r *Registry) Machine(ctx context.Context, ref Ref) (*Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.machines[ref]; ok {
		return m, nil
	}
	st, err := r.deps.Store.Status(ctx, ref)
	if err != nil {
		return nil, err
	}
	m := &Machine{ref: ref, deps: &r.deps, reg: r, status: st}
	if st != StatusSent {
		r.machines[ref] = m
	}
	return m, nil
}

// Len is the number of live machines.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.machines)
}

// Forget drops the machine of a deleted document. It is a no-op while a send
// is in flight.
func (r *Registry) Forget(ref Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.machines[ref]; ok && !m.InFlight() {
		delete(r.machines, ref)
	}
}

func (r *Registry) retire(m *Machine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.machines[m.ref] == m {
		delete(r.machines, m.ref)
	}
}
