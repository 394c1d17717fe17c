// Package selection tracks which line items of a candidate list are included
// in a submission. Entries are keyed by line item identity, so reordering or
// resizing the list never desynchronises the selection.
package selection

import (
	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/google/uuid"
)

// Keyed is anything with a stable identity.
type Keyed interface {
	Key() uuid.UUID
}

// Set is a set of selected identities. The zero value is not usable; use New.
type Set struct {
	ids map[uuid.UUID]struct{}
}

func New(ids ...uuid.UUID) *Set {
	s := &Set{ids: make(map[uuid.UUID]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// SelectAll returns a set holding every item, used when preloading an
// existing document for edit.
func SelectAll[T Keyed](items []T) *Set {
	s := New()
	for _, it := range items {
		s.ids[it.Key()] = struct{}{}
	}
	return s
}

// Toggle flips one entry and reports the new state.
func (s *Set) Toggle(id uuid.UUID) bool {
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Set forces one entry to the given state.
func (s *Set) Set(id uuid.UUID, selected bool) {
	if selected {
		s.ids[id] = struct{}{}
		return
	}
	delete(s.ids, id)
}

func (s *Set) Has(id uuid.UUID) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *Set) Len() int { return len(s.ids) }

// Forget drops an identity, e.g. when its row is removed from the list.
func (s *Set) Forget(id uuid.UUID) { delete(s.ids, id) }

// IDs returns the selected identities in no particular order.
func (s *Set) IDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}

// ToggleAll sets every entry of items to target. Selections referring to
// items outside the list are cleared when target is false.
func ToggleAll[T Keyed](s *Set, items []T, target bool) {
	if !target {
		clear(s.ids)
		return
	}
	for _, it := range items {
		s.ids[it.Key()] = struct{}{}
	}
}

// Rows returns the selected items in list order. A selection holding an
// identity that is not in items means a list mutation was not reflected in
// the set; that is reported as an InvariantError instead of being ignored.
func Rows[T Keyed](items []T, s *Set) ([]T, error) {
	present := make(map[uuid.UUID]struct{}, len(items))
	out := make([]T, 0, len(s.ids))
	for _, it := range items {
		k := it.Key()
		present[k] = struct{}{}
		if _, ok := s.ids[k]; ok {
			out = append(out, it)
		}
	}
	for id := range s.ids {
		if _, ok := present[id]; !ok {
			return nil, apperr.Invariant("selection references unknown line item %s", id)
		}
	}
	return out, nil
}
