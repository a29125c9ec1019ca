// Package table binds a named backend table to a local ordered index through
// five single-flight actions. Every successful action reconciles its result
// into the index, so the index always reflects the last known server truth.
package table

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tablesync/internal/action"
	"github.com/mesh-intelligence/tablesync/internal/index"
	"github.com/mesh-intelligence/tablesync/pkg/types"
)

// Backend is the remote collaborator. Every call names the table it targets;
// a Table supplies its own name so callers never do.
type Backend[T types.Entity, W any] interface {
	Find(ctx context.Context, table string, params types.FindParams) (T, error)
	Create(ctx context.Context, table string, params types.CreateParams[W]) (T, error)
	Update(ctx context.Context, table string, params types.UpdateParams[W]) (T, error)
	Remove(ctx context.Context, table string, params types.RemoveParams) (T, error)
	List(ctx context.Context, table string, params types.ListParams) ([]T, error)
}

// Table is the handle for one backend table. T is the full entity, W the
// writable projection sent on create and update.
type Table[T types.Entity, W any] struct {
	name    string
	backend Backend[T, W]
	index   *index.Store[T]
	owner   action.Owner
	logger  *zap.Logger
	closed  atomic.Bool

	goneMu   sync.Mutex
	goneNext int
	gone     map[int]func(gone func(id string) bool)

	Find   *action.Action[types.FindParams, T]
	Create *action.Action[types.CreateParams[W], T]
	Update *action.Action[types.UpdateParams[W], T]
	Remove *action.Action[types.RemoveParams, T]
	List   *action.Action[types.ListParams, []T]
}

// New builds the handle for the table called name.
func New[T types.Entity, W any](name string, backend Backend[T, W], opts ...Option[T]) (*Table[T, W], error) {
	if name == "" {
		return nil, types.ErrInvalidTable
	}
	if backend == nil {
		return nil, types.ErrNilBackend
	}

	o := options[T]{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	t := &Table[T, W]{
		name:    name,
		backend: backend,
		index:   index.New(o.initial),
		owner:   o.owner,
		logger:  o.logger.With(zap.String("table", name)),
	}
	live := liveness[T, W]{t}

	t.Find = action.New(
		func(ctx context.Context, p types.FindParams) (T, error) {
			return backend.Find(ctx, name, p)
		},
		action.WithName[types.FindParams, T](name+".find"),
		action.WithOwner[types.FindParams, T](live),
		action.WithLogger[types.FindParams, T](t.logger),
	)
	t.Create = action.New(
		func(ctx context.Context, p types.CreateParams[W]) (T, error) {
			return backend.Create(ctx, name, p)
		},
		action.WithName[types.CreateParams[W], T](name+".create"),
		action.WithOwner[types.CreateParams[W], T](live),
		action.WithLogger[types.CreateParams[W], T](t.logger),
		action.WithOnSuccess(func(_ types.CreateParams[W], result T) { t.upsert("create", result) }),
	)
	t.Update = action.New(
		func(ctx context.Context, p types.UpdateParams[W]) (T, error) {
			return backend.Update(ctx, name, p)
		},
		action.WithName[types.UpdateParams[W], T](name+".update"),
		action.WithOwner[types.UpdateParams[W], T](live),
		action.WithLogger[types.UpdateParams[W], T](t.logger),
		action.WithOnSuccess(func(_ types.UpdateParams[W], result T) { t.upsert("update", result) }),
	)
	t.Remove = action.New(
		func(ctx context.Context, p types.RemoveParams) (T, error) {
			return backend.Remove(ctx, name, p)
		},
		action.WithName[types.RemoveParams, T](name+".remove"),
		action.WithOwner[types.RemoveParams, T](live),
		action.WithLogger[types.RemoveParams, T](t.logger),
		action.WithOnSuccess(func(p types.RemoveParams, result T) { t.drop(p, result) }),
	)
	t.List = action.New(
		func(ctx context.Context, p types.ListParams) ([]T, error) {
			return backend.List(ctx, name, p)
		},
		action.WithName[types.ListParams, []T](name+".list"),
		action.WithOwner[types.ListParams, []T](live),
		action.WithLogger[types.ListParams, []T](t.logger),
		action.WithOnSuccess(t.resync),
	)
	return t, nil
}

func (t *Table[T, W]) upsert(op string, result T) {
	if index.Identity(result) == "" {
		t.logger.Debug("result without identity, index unchanged", zap.String("op", op))
		return
	}
	if err := t.index.Set(result); err != nil {
		t.logger.Warn("index update failed", zap.String("op", op), zap.Error(err))
	}
}

func (t *Table[T, W]) drop(p types.RemoveParams, result T) {
	id := index.Identity(result)
	if id == "" {
		t.logger.Debug("result without identity, index unchanged", zap.String("op", "remove"))
		id = p.ID
	} else {
		t.index.Remove(result)
	}
	if id != "" {
		t.notifyGone(func(other string) bool { return other == id })
	}
}

// resync reconciles a list result. An unfiltered, unpaginated list is the
// whole table and replaces the index; anything narrower is merged.
func (t *Table[T, W]) resync(params types.ListParams, results []T) {
	keep := make([]T, 0, len(results))
	for _, r := range results {
		if index.Identity(r) != "" {
			keep = append(keep, r)
		}
	}

	if params.IsPartial() {
		if err := t.index.Set(keep...); err != nil {
			t.logger.Warn("index merge failed", zap.Error(err))
		}
		t.logger.Debug("partial list merged", zap.Int("results", len(keep)))
		return
	}
	t.index.ReplaceWith(keep...)
	t.logger.Debug("index resynced", zap.Int("entries", len(keep)))

	listed := make(map[string]struct{}, len(keep))
	for _, r := range keep {
		listed[index.Identity(r)] = struct{}{}
	}
	t.notifyGone(func(id string) bool {
		_, ok := listed[id]
		return !ok
	})
}

// onGone registers fn to run after the backend reports entities gone: a
// successful remove, or a full list that left them out. fn receives a
// predicate telling whether a given identity is gone. Entities the index
// never held are reported too.
func (t *Table[T, W]) onGone(fn func(gone func(id string) bool)) (cancel func()) {
	t.goneMu.Lock()
	defer t.goneMu.Unlock()
	if t.gone == nil {
		t.gone = make(map[int]func(func(string) bool))
	}
	key := t.goneNext
	t.goneNext++
	t.gone[key] = fn
	return func() {
		t.goneMu.Lock()
		delete(t.gone, key)
		t.goneMu.Unlock()
	}
}

func (t *Table[T, W]) notifyGone(gone func(id string) bool) {
	t.goneMu.Lock()
	fns := make([]func(func(string) bool), 0, len(t.gone))
	for _, fn := range t.gone {
		fns = append(fns, fn)
	}
	t.goneMu.Unlock()
	for _, fn := range fns {
		fn(gone)
	}
}

// Name returns the backend table name.
func (t *Table[T, W]) Name() string {
	return t.name
}

// Index returns a copy of the identity mapping.
func (t *Table[T, W]) Index() map[string]T {
	return t.index.Index()
}

// Array returns the index values in insertion order.
func (t *Table[T, W]) Array() []T {
	return t.index.Array()
}

// Get returns the indexed entity with the given identity.
func (t *Table[T, W]) Get(id string) (T, bool) {
	return t.index.Get(id)
}

// Len returns the number of indexed entities.
func (t *Table[T, W]) Len() int {
	return t.index.Len()
}

// Subscribe calls fn after every index change.
func (t *Table[T, W]) Subscribe(fn func()) (cancel func()) {
	return t.index.Subscribe(fn)
}

// Close detaches the handle. Calls already in flight still return to their
// callers but no longer touch the index or action state.
func (t *Table[T, W]) Close() {
	t.closed.Store(true)
}

// Closed reports whether Close was called.
func (t *Table[T, W]) Closed() bool {
	return t.closed.Load()
}

// String implements fmt.Stringer.
func (t *Table[T, W]) String() string {
	return fmt.Sprintf("table %s (%d entries)", t.name, t.Len())
}

// liveness is the action.Owner shared by a table's actions.
type liveness[T types.Entity, W any] struct {
	t *Table[T, W]
}

func (l liveness[T, W]) Alive() bool {
	if l.t.closed.Load() {
		return false
	}
	return l.t.owner == nil || l.t.owner.Alive()
}

func (l liveness[T, W]) Changed() {
	if l.t.owner != nil {
		l.t.owner.Changed()
	}
}
