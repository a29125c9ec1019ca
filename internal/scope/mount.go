package scope

import (
	"context"
	"sync"
	"sync/atomic"
)

// Mount is the hook's handle on its provider. It reports liveness, lets the
// hook ask for a republish, and collects cleanup work for unmount. Mount
// satisfies action.Owner.
type Mount struct {
	parent *Scope
	ctx    context.Context
	cancel context.CancelFunc
	alive  atomic.Bool

	mu       sync.Mutex
	cleanups []func()
	onChange func()
}

func newMount(parent *Scope) *Mount {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Mount{parent: parent, ctx: ctx, cancel: cancel}
	m.alive.Store(true)
	return m
}

// Alive reports whether the provider is still mounted.
func (m *Mount) Alive() bool {
	return m.alive.Load()
}

// Changed recomputes the provider's value and republishes it to subscribers.
// It is a no-op once the provider is unmounted. The render function must not
// call Changed.
func (m *Mount) Changed() {
	if !m.Alive() {
		return
	}
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// OnUnmount registers fn to run when the provider unmounts. Cleanups run in
// reverse registration order. Registering on a dead mount runs fn at once.
func (m *Mount) OnUnmount(fn func()) {
	if !m.Alive() {
		fn()
		return
	}
	m.mu.Lock()
	m.cleanups = append(m.cleanups, fn)
	m.mu.Unlock()
}

// Parent returns the scope the provider was mounted under. Hooks use it to
// reach providers of other bindings.
func (m *Mount) Parent() *Scope {
	return m.parent
}

// Context is cancelled when the provider unmounts.
func (m *Mount) Context() context.Context {
	return m.ctx
}

func (m *Mount) setOnChange(fn func()) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// close marks the mount dead and runs cleanups. It reports false if the
// mount was already closed.
func (m *Mount) close() bool {
	if !m.alive.CompareAndSwap(true, false) {
		return false
	}
	m.cancel()

	m.mu.Lock()
	cleanups := m.cleanups
	m.cleanups = nil
	m.onChange = nil
	m.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	return true
}
