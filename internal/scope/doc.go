// Package scope publishes stateful values to a tree of consumers without
// threading them through every call.
//
// Bind turns a hook, a function that sets up state and derives a value from
// props, into a Binding. Provide mounts the binding under a parent Scope and
// returns a Provider that owns the hook's state for as long as it stays
// mounted. Code running in the provider's Scope, or in any scope beneath it,
// reaches the nearest provider of that binding with Use. A lookup that finds
// no provider fails with a MissingProviderError instead of producing a
// default.
//
//	counter := scope.Bind("Counter", func(m *scope.Mount, start int) (func(int) int, error) {
//		n := start
//		// ... mutate n and call m.Changed() to republish
//		return func(int) int { return n }, nil
//	})
//
//	root := scope.NewRoot()
//	p, _ := counter.Provide(root, 10)
//	defer p.Unmount()
//	v, err := counter.Use(p.Scope())
//
// Scopes are plain values passed by reference; there is no package-level
// registry, so independent trees never share state.
package scope
