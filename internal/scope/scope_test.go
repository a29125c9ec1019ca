package scope

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter is a small stateful hook: props set the starting value and the
// returned handle increments it and republishes.
type counter struct {
	mu    sync.Mutex
	n     int
	mount *Mount
}

func (c *counter) Inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	c.mount.Changed()
}

func (c *counter) Get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type counterView struct {
	Value int
	Label string
	Ctl   *counter
}

func bindCounter(name string) *Binding[string, counterView] {
	return Bind(name, func(m *Mount, label string) (func(string) counterView, error) {
		c := &counter{mount: m}
		return func(label string) counterView {
			return counterView{Value: c.Get(), Label: label, Ctl: c}
		}, nil
	})
}

func TestMissingProviderMessage(t *testing.T) {
	b := bindCounter("Counter")

	_, err := b.Use(NewRoot())
	require.Error(t, err)
	assert.Equal(t, "Counter must be used within a CounterProvider", err.Error())
	assert.True(t, errors.Is(err, ErrMissingProvider))

	var missing *MissingProviderError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "Counter", missing.Name)
}

func TestMustUsePanicsOutsideProvider(t *testing.T) {
	b := bindCounter("Todos")

	assert.PanicsWithError(t, "Todos must be used within a TodosProvider", func() {
		b.MustUse(NewRoot())
	})
	assert.Panics(t, func() { b.MustUse(nil) })
}

func TestUseFindsProviderFromDescendants(t *testing.T) {
	b := bindCounter("Counter")
	root := NewRoot()

	p, err := b.Provide(root, "a")
	require.NoError(t, err)
	defer p.Unmount()

	other := bindCounter("Other")
	mid, err := other.Provide(p.Scope(), "b")
	require.NoError(t, err)

	v, err := b.Use(mid.Scope())
	require.NoError(t, err)
	assert.Equal(t, "a", v.Label)

	// The provider is not visible from the scope it was mounted under.
	_, err = b.Use(root)
	assert.ErrorIs(t, err, ErrMissingProvider)
}

func TestNearestProviderShadowsOuter(t *testing.T) {
	b := bindCounter("Counter")

	outer, err := b.Provide(nil, "outer")
	require.NoError(t, err)
	inner, err := b.Provide(outer.Scope(), "inner")
	require.NoError(t, err)

	v := b.MustUse(inner.Scope())
	assert.Equal(t, "inner", v.Label)
	v = b.MustUse(outer.Scope())
	assert.Equal(t, "outer", v.Label)

	found, err := b.Nearest(inner.Scope())
	require.NoError(t, err)
	assert.Same(t, inner, found)
}

func TestBindingsWithSameNameAreDistinct(t *testing.T) {
	first := bindCounter("Counter")
	second := bindCounter("Counter")

	p, err := first.Provide(NewRoot(), "x")
	require.NoError(t, err)

	_, err = second.Use(p.Scope())
	assert.ErrorIs(t, err, ErrMissingProvider)
}

func TestChangedRepublishes(t *testing.T) {
	b := bindCounter("Counter")
	p, err := b.Provide(NewRoot(), "c")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.Version())

	var got []int
	cancel := p.Subscribe(func(v counterView) { got = append(got, v.Value) })

	ctl := p.Value().Ctl
	ctl.Inc()
	ctl.Inc()

	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 2, b.MustUse(p.Scope()).Value)
	assert.Equal(t, uint64(3), p.Version())

	cancel()
	ctl.Inc()
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 3, p.Value().Value)
}

func TestSetPropsRerenders(t *testing.T) {
	b := bindCounter("Counter")
	p, err := b.Provide(NewRoot(), "before")
	require.NoError(t, err)

	ctl := p.Value().Ctl
	ctl.Inc()
	p.SetProps("after")

	v := p.Value()
	assert.Equal(t, "after", v.Label)
	assert.Equal(t, 1, v.Value, "state survives a props change")
	assert.Same(t, ctl, v.Ctl)
	assert.Equal(t, "after", p.Props())
}

func TestUnmount(t *testing.T) {
	var order []string
	b := Bind("Res", func(m *Mount, _ struct{}) (func(struct{}) int, error) {
		m.OnUnmount(func() { order = append(order, "first") })
		m.OnUnmount(func() { order = append(order, "second") })
		return func(struct{}) int { return 1 }, nil
	})

	root := NewRoot()
	p, err := b.Provide(root, struct{}{})
	require.NoError(t, err)
	ctx := p.mount.Context()
	s := p.Scope()

	notified := 0
	p.Subscribe(func(int) { notified++ })

	p.Unmount()
	p.Unmount()

	assert.False(t, p.Mounted())
	assert.Equal(t, []string{"second", "first"}, order)
	assert.Error(t, ctx.Err())

	_, err = b.Use(s)
	assert.ErrorIs(t, err, ErrMissingProvider)

	p.Refresh()
	p.mount.Changed()
	assert.Zero(t, notified)
	assert.Equal(t, uint64(1), p.Version())
}

func TestUnmountCascadesToChildren(t *testing.T) {
	parent := bindCounter("Parent")
	child := bindCounter("Child")

	pp, err := parent.Provide(NewRoot(), "p")
	require.NoError(t, err)
	cp, err := child.Provide(pp.Scope(), "c")
	require.NoError(t, err)
	gp, err := child.Provide(cp.Scope(), "g")
	require.NoError(t, err)

	pp.Unmount()

	assert.False(t, cp.Mounted())
	assert.False(t, gp.Mounted())
}

func TestChildUnmountDoesNotAffectParent(t *testing.T) {
	parent := bindCounter("Parent")
	child := bindCounter("Child")

	pp, err := parent.Provide(NewRoot(), "p")
	require.NoError(t, err)
	cp, err := child.Provide(pp.Scope(), "c")
	require.NoError(t, err)

	cp.Unmount()

	assert.True(t, pp.Mounted())
	_, err = parent.Use(pp.Scope())
	assert.NoError(t, err)
}

func TestProvideUnderUnmountedProviderFails(t *testing.T) {
	parent := bindCounter("Parent")
	child := bindCounter("Child")

	pp, err := parent.Provide(NewRoot(), "p")
	require.NoError(t, err)
	dead := pp.Scope()
	pp.Unmount()
	assert.True(t, dead.Closed())

	cp, err := child.Provide(dead, "c")
	assert.Nil(t, cp)
	assert.ErrorIs(t, err, ErrScopeClosed)
	assert.Equal(t, "mount Child: scope is closed", err.Error())

	_, err = child.Use(dead)
	assert.ErrorIs(t, err, ErrMissingProvider)
}

func TestProvideHookFailure(t *testing.T) {
	cleaned := false
	boom := errors.New("boom")
	b := Bind("Broken", func(m *Mount, _ int) (func(int) int, error) {
		m.OnUnmount(func() { cleaned = true })
		return nil, boom
	})

	root := NewRoot()
	p, err := b.Provide(root, 0)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, boom)
	assert.True(t, cleaned)

	_, err = b.Use(root)
	assert.ErrorIs(t, err, ErrMissingProvider)
}

func TestHookReachesEnclosingProviders(t *testing.T) {
	base := bindCounter("Base")
	derived := Bind("Derived", func(m *Mount, _ struct{}) (func(struct{}) string, error) {
		v, err := base.Use(m.Parent())
		if err != nil {
			return nil, err
		}
		return func(struct{}) string { return "derived from " + v.Label }, nil
	})

	_, err := derived.Provide(NewRoot(), struct{}{})
	assert.ErrorIs(t, err, ErrMissingProvider)

	bp, err := base.Provide(NewRoot(), "base")
	require.NoError(t, err)
	dp, err := derived.Provide(bp.Scope(), struct{}{})
	require.NoError(t, err)
	assert.Equal(t, "derived from base", dp.Value())
}

func TestIndependentRootsShareNothing(t *testing.T) {
	b := bindCounter("Counter")

	a, err := b.Provide(NewRoot(), "a")
	require.NoError(t, err)
	c, err := b.Provide(NewRoot(), "c")
	require.NoError(t, err)

	a.Value().Ctl.Inc()

	assert.Equal(t, 1, a.Value().Value)
	assert.Equal(t, 0, c.Value().Value)
}

func TestConcurrentChanged(t *testing.T) {
	b := bindCounter("Counter")
	p, err := b.Provide(NewRoot(), "c")
	require.NoError(t, err)
	ctl := p.Value().Ctl

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctl.Inc()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, p.Value().Value)
	assert.Equal(t, uint64(51), p.Version())
}
