package scope

import "sync"

// Scope is a node in a provider tree. Lookups walk from a scope towards the
// root and stop at the first provider of the requested binding.
type Scope struct {
	parent *Scope

	mu        sync.RWMutex
	providers map[*bindingKey]any
	children  map[*Mount]func()
	closed    bool
}

// bindingKey identifies a Binding. It is never zero-sized so every Bind call
// gets a distinct pointer.
type bindingKey struct {
	name string
}

// NewRoot returns an empty scope with no parent.
func NewRoot() *Scope {
	return newScope(nil)
}

func newScope(parent *Scope) *Scope {
	return &Scope{
		parent:    parent,
		providers: make(map[*bindingKey]any),
		children:  make(map[*Mount]func()),
	}
}

// Parent returns the enclosing scope, or nil for a root.
func (s *Scope) Parent() *Scope {
	return s.parent
}

func (s *Scope) lookup(key *bindingKey) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		p, ok := cur.providers[key]
		cur.mu.RUnlock()
		if ok {
			return p, true
		}
	}
	return nil, false
}

func (s *Scope) register(key *bindingKey, provider any) {
	s.mu.Lock()
	s.providers[key] = provider
	s.mu.Unlock()
}

func (s *Scope) unregister(key *bindingKey) {
	s.mu.Lock()
	delete(s.providers, key)
	s.mu.Unlock()
}

// adopt records a provider mounted under s. It reports false once s has
// been closed by the unmount of its owning provider.
func (s *Scope) adopt(m *Mount, unmount func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.children[m] = unmount
	return true
}

// Closed reports whether the provider owning s has unmounted. Nothing can be
// mounted under a closed scope.
func (s *Scope) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Scope) release(m *Mount) {
	s.mu.Lock()
	delete(s.children, m)
	s.mu.Unlock()
}

// closeAndUnmountChildren closes s and unmounts every provider mounted
// directly under it.
func (s *Scope) closeAndUnmountChildren() {
	s.mu.Lock()
	s.closed = true
	fns := make([]func(), 0, len(s.children))
	for _, fn := range s.children {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
