package scope

import (
	"errors"
	"fmt"
	"sync"
)

// ErrMissingProvider matches every MissingProviderError.
var ErrMissingProvider = errors.New("missing provider")

// ErrScopeClosed is returned by Provide under a scope whose provider has
// unmounted.
var ErrScopeClosed = errors.New("scope is closed")

// MissingProviderError reports an accessor used outside any provider of its
// binding. It signals a wiring defect, not a data condition.
type MissingProviderError struct {
	Name string
}

func (e *MissingProviderError) Error() string {
	return fmt.Sprintf("%s must be used within a %sProvider", e.Name, e.Name)
}

// Is makes errors.Is(err, ErrMissingProvider) true.
func (e *MissingProviderError) Is(target error) bool {
	return target == ErrMissingProvider
}

// Hook sets up state for one mount and returns the render function that
// derives the published value from props. Setup runs once per Provide; render
// runs on mount, on SetProps and on every Mount.Changed.
type Hook[P, V any] func(m *Mount, props P) (render func(props P) V, err error)

// Binding pairs a hook with the identity its providers are registered under.
type Binding[P, V any] struct {
	name string
	key  *bindingKey
	hook Hook[P, V]
}

// Bind creates a Binding. name appears in missing-provider errors; two
// bindings with the same name are still distinct.
func Bind[P, V any](name string, hook Hook[P, V]) *Binding[P, V] {
	return &Binding[P, V]{
		name: name,
		key:  &bindingKey{name: name},
		hook: hook,
	}
}

// Name returns the binding name.
func (b *Binding[P, V]) Name() string {
	return b.name
}

// Provide mounts a provider under parent. A nil parent mounts under a fresh
// root. If the hook fails, nothing stays mounted and its cleanups have run.
func (b *Binding[P, V]) Provide(parent *Scope, props P) (*Provider[P, V], error) {
	if parent == nil {
		parent = NewRoot()
	}
	if parent.Closed() {
		return nil, fmt.Errorf("mount %s: %w", b.name, ErrScopeClosed)
	}
	m := newMount(parent)
	p := &Provider[P, V]{
		binding: b,
		scope:   newScope(parent),
		mount:   m,
		props:   props,
		subs:    make(map[uint64]func(V)),
	}
	m.setOnChange(p.Refresh)

	render, err := b.hook(m, props)
	if err != nil {
		m.close()
		return nil, fmt.Errorf("mount %s: %w", b.name, err)
	}
	if render == nil {
		m.close()
		return nil, fmt.Errorf("mount %s: hook returned no render function", b.name)
	}

	p.mu.Lock()
	p.render = render
	p.mu.Unlock()
	p.Refresh()

	p.scope.register(b.key, p)
	if !parent.adopt(m, p.Unmount) {
		p.Unmount()
		return nil, fmt.Errorf("mount %s: %w", b.name, ErrScopeClosed)
	}
	return p, nil
}

// Nearest returns the closest provider of b visible from s.
func (b *Binding[P, V]) Nearest(s *Scope) (*Provider[P, V], error) {
	if s != nil {
		if found, ok := s.lookup(b.key); ok {
			return found.(*Provider[P, V]), nil
		}
	}
	return nil, &MissingProviderError{Name: b.name}
}

// Use returns the current value of the closest provider of b visible from s.
func (b *Binding[P, V]) Use(s *Scope) (V, error) {
	p, err := b.Nearest(s)
	if err != nil {
		var zero V
		return zero, err
	}
	return p.Value(), nil
}

// MustUse is like Use but panics with the MissingProviderError.
func (b *Binding[P, V]) MustUse(s *Scope) V {
	v, err := b.Use(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Provider owns one mounted instance of a hook and publishes its value.
type Provider[P, V any] struct {
	binding *Binding[P, V]
	scope   *Scope
	mount   *Mount

	mu      sync.Mutex
	render  func(P) V
	props   P
	value   V
	version uint64
	subs    map[uint64]func(V)
	nextSub uint64
}

// Scope returns the scope that children of this provider live in.
func (p *Provider[P, V]) Scope() *Scope {
	return p.scope
}

// Value returns the latest published value.
func (p *Provider[P, V]) Value() V {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Version counts publications; it increases by one on every render.
func (p *Provider[P, V]) Version() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

// Props returns the current props.
func (p *Provider[P, V]) Props() P {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.props
}

// Mounted reports whether the provider is still mounted.
func (p *Provider[P, V]) Mounted() bool {
	return p.mount.Alive()
}

// SetProps replaces the props and republishes.
func (p *Provider[P, V]) SetProps(props P) {
	p.mu.Lock()
	p.props = props
	p.mu.Unlock()
	p.Refresh()
}

// Refresh renders the value from the current props and state and notifies
// subscribers. Subscribers run outside the provider lock, in no particular
// order; compare Version to discard stale deliveries.
func (p *Provider[P, V]) Refresh() {
	if !p.mount.Alive() {
		return
	}
	p.mu.Lock()
	if p.render == nil {
		p.mu.Unlock()
		return
	}
	v := p.render(p.props)
	p.value = v
	p.version++
	subs := make([]func(V), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}

// Subscribe registers fn to receive every published value. The returned
// function unsubscribes.
func (p *Provider[P, V]) Subscribe(fn func(V)) (cancel func()) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	if p.subs != nil {
		p.subs[id] = fn
	}
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Unmount discards the provider: providers mounted beneath it unmount first,
// then the hook's cleanups run, its context is cancelled and lookups stop
// finding it. Unmount is idempotent.
func (p *Provider[P, V]) Unmount() {
	if !p.mount.Alive() {
		return
	}
	p.scope.closeAndUnmountChildren()
	if !p.mount.close() {
		return
	}
	p.scope.unregister(p.binding.key)
	p.mount.parent.release(p.mount)

	p.mu.Lock()
	p.subs = nil
	p.render = nil
	p.mu.Unlock()
}
