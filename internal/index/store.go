// Package index implements the keyed entity cache that backs a table handle:
// a map from identity to entity plus an ordered view of its values.
package index

import (
	"container/list"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/mesh-intelligence/tablesync/pkg/types"
)

// Store is a keyed cache of entities. Keys are entity identities and are
// unique. The ordered view follows insertion order of the current contents:
// an entity that is removed and set again moves to the end, while a set on an
// existing key keeps its position.
//
// Store is safe for concurrent use. Observers registered with Subscribe run
// after every change, outside the store lock.
type Store[T types.Entity] struct {
	mu      sync.RWMutex
	entries map[string]*list.Element
	order   *list.List // of T, in insertion order
	view    []T        // cached ordered view; nil when stale

	obsMu     sync.Mutex
	observers map[uint64]func()
	nextObs   uint64
}

// New creates a Store holding the given mapping. The initial entries are
// ordered by key so that construction is deterministic.
func New[T types.Entity](initial map[string]T) *Store[T] {
	s := &Store[T]{
		entries:   make(map[string]*list.Element, len(initial)),
		order:     list.New(),
		observers: make(map[uint64]func()),
	}
	s.install(initial)
	return s
}

// Set upserts each entity keyed by its identity. Within one call the last
// entity for a given identity wins. If any entity has an empty identity the
// call returns types.ErrInvalidID and the store is left unchanged.
func (s *Store[T]) Set(entities ...T) error {
	if len(entities) == 0 {
		return nil
	}
	for i, e := range entities {
		if Identity(e) == "" {
			return fmt.Errorf("set entity %d: %w", i, types.ErrInvalidID)
		}
	}

	s.mu.Lock()
	for _, e := range entities {
		id := Identity(e)
		if el, ok := s.entries[id]; ok {
			el.Value = e
			continue
		}
		s.entries[id] = s.order.PushBack(e)
	}
	s.view = nil
	s.mu.Unlock()

	s.notify()
	return nil
}

// Remove deletes each entity's identity from the store. Entities that are not
// present, or that have no identity, are ignored.
func (s *Store[T]) Remove(entities ...T) {
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		if id := Identity(e); id != "" {
			ids = append(ids, id)
		}
	}
	s.RemoveIDs(ids...)
}

// RemoveIDs deletes the given identities. Absent identities are ignored; the
// store only notifies observers when something was actually removed.
func (s *Store[T]) RemoveIDs(ids ...string) {
	s.mu.Lock()
	removed := false
	for _, id := range ids {
		el, ok := s.entries[id]
		if !ok {
			continue
		}
		s.order.Remove(el)
		delete(s.entries, id)
		removed = true
	}
	if removed {
		s.view = nil
	}
	s.mu.Unlock()

	if removed {
		s.notify()
	}
}

// Replace discards the current contents and installs mapping in a single
// step. Readers never observe a partially replaced store.
func (s *Store[T]) Replace(mapping map[string]T) {
	s.mu.Lock()
	s.entries = make(map[string]*list.Element, len(mapping))
	s.order = list.New()
	s.install(mapping)
	s.mu.Unlock()

	s.notify()
}

// ReplaceWith discards the current contents and installs entities keyed by
// identity, keeping their order. Entities without identity are skipped; for
// duplicate identities the last one wins but keeps the first one's position.
func (s *Store[T]) ReplaceWith(entities ...T) {
	s.mu.Lock()
	s.entries = make(map[string]*list.Element, len(entities))
	s.order = list.New()
	for _, e := range entities {
		id := Identity(e)
		if id == "" {
			continue
		}
		if el, ok := s.entries[id]; ok {
			el.Value = e
			continue
		}
		s.entries[id] = s.order.PushBack(e)
	}
	s.view = nil
	s.mu.Unlock()

	s.notify()
}

// install adds mapping in key order. The caller holds s.mu or owns s.
func (s *Store[T]) install(mapping map[string]T) {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.entries[k] = s.order.PushBack(mapping[k])
	}
	s.view = nil
}

// Identity returns the identity of e, or "" when e is a nil pointer, map,
// or interface and therefore carries no identity.
func Identity[T types.Entity](e T) string {
	v := reflect.ValueOf(e)
	switch v.Kind() {
	case reflect.Invalid:
		return ""
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return ""
		}
	}
	return e.EntityID()
}

// Get returns the entity stored under id.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.entries[id]
	if !ok {
		var zero T
		return zero, false
	}
	return el.Value.(T), true
}

// Has reports whether id is present.
func (s *Store[T]) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// Len returns the number of entities.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Index returns a copy of the identity-to-entity mapping.
func (s *Store[T]) Index() map[string]T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]T, len(s.entries))
	for id, el := range s.entries {
		out[id] = el.Value.(T)
	}
	return out
}

// Array returns the ordered view. The view is rebuilt only after a change;
// callers receive their own copy.
func (s *Store[T]) Array() []T {
	s.mu.RLock()
	if s.view != nil {
		out := make([]T, len(s.view))
		copy(out, s.view)
		s.mu.RUnlock()
		return out
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view == nil {
		view := make([]T, 0, s.order.Len())
		for el := s.order.Front(); el != nil; el = el.Next() {
			view = append(view, el.Value.(T))
		}
		s.view = view
	}
	out := make([]T, len(s.view))
	copy(out, s.view)
	return out
}

// Subscribe registers fn to run after every change. The returned function
// removes the observer; calling it more than once is harmless.
func (s *Store[T]) Subscribe(fn func()) (cancel func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Store[T]) notify() {
	s.obsMu.Lock()
	fns := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
