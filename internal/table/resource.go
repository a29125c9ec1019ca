package table

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tablesync/internal/action"
	"github.com/mesh-intelligence/tablesync/pkg/types"
)

// Resource publishes a single entity of a table. It starts from the index
// when the entity is already there and fetches it otherwise, then follows
// index changes for that identity.
type Resource[T types.Entity, W any] struct {
	table  *Table[T, W]
	id     string
	owner  action.Owner
	logger *zap.Logger
	find   *action.Action[types.FindParams, T]
	stop   func()
	closed atomic.Bool

	mu      sync.RWMutex
	value   T
	present bool
	indexed bool
}

// NewResource publishes the entity with identity id. ctx bounds the initial
// fetch, if one is needed.
func NewResource[T types.Entity, W any](ctx context.Context, tbl *Table[T, W], id string, opts ...Option[T]) (*Resource[T, W], error) {
	if tbl == nil {
		return nil, types.ErrNilBackend
	}
	if id == "" {
		return nil, types.ErrInvalidID
	}

	o := options[T]{logger: tbl.logger}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Resource[T, W]{
		table:  tbl,
		id:     id,
		owner:  o.owner,
		logger: o.logger.With(zap.String("id", id)),
	}

	if v, ok := tbl.Get(id); ok {
		r.value, r.present, r.indexed = v, true, true
	}
	stopFollow := tbl.Subscribe(r.follow)
	stopGone := tbl.onGone(func(gone func(string) bool) {
		if gone(r.id) {
			r.clear()
		}
	})
	r.stop = func() {
		stopFollow()
		stopGone()
	}

	actOpts := []action.Option[types.FindParams, T]{
		action.WithName[types.FindParams, T](tbl.Name() + ".resource"),
		action.WithDefaults[types.FindParams, T](types.FindParams{ID: id}),
		action.WithOwner[types.FindParams, T](resourceLiveness[T, W]{r}),
		action.WithLogger[types.FindParams, T](r.logger),
		action.WithOnSuccess(func(_ types.FindParams, v T) { r.found(v) }),
	}
	if !r.present {
		actOpts = append(actOpts, action.WithAutoTrigger[types.FindParams, T](ctx))
	}
	r.find = action.New(func(ctx context.Context, p types.FindParams) (T, error) {
		return tbl.backend.Find(ctx, tbl.Name(), p)
	}, actOpts...)

	return r, nil
}

func (r *Resource[T, W]) found(v T) {
	r.mu.Lock()
	if !r.indexed {
		r.value, r.present = v, true
	}
	r.mu.Unlock()
}

// follow tracks the index. Once the entity has been seen in the index, its
// disappearance makes the resource absent.
func (r *Resource[T, W]) follow() {
	if r.closed.Load() {
		return
	}
	v, ok := r.table.Get(r.id)

	r.mu.Lock()
	changed := false
	switch {
	case ok:
		r.value, r.present, r.indexed = v, true, true
		changed = true
	case r.indexed:
		var zero T
		r.value, r.present, r.indexed = zero, false, false
		changed = true
	}
	r.mu.Unlock()

	if changed && r.owner != nil && r.owner.Alive() {
		r.owner.Changed()
	}
}

// clear makes the resource absent after the backend reported its entity
// gone, whether or not the index ever held it.
func (r *Resource[T, W]) clear() {
	if r.closed.Load() {
		return
	}
	r.mu.Lock()
	changed := r.present
	var zero T
	r.value, r.present, r.indexed = zero, false, false
	r.mu.Unlock()

	if changed && r.owner != nil && r.owner.Alive() {
		r.owner.Changed()
	}
}

// ID returns the identity the resource follows.
func (r *Resource[T, W]) ID() string {
	return r.id
}

// Get returns the entity, or false while it is absent.
func (r *Resource[T, W]) Get() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value, r.present
}

// Loading reports whether the fetch is in flight.
func (r *Resource[T, W]) Loading() bool {
	return r.find.Loading()
}

// Err returns the fetch failure, if any.
func (r *Resource[T, W]) Err() error {
	return r.find.Err()
}

// Refetch fetches the entity again.
func (r *Resource[T, W]) Refetch(ctx context.Context) (T, error) {
	return r.find.Trigger(ctx, types.FindParams{})
}

// Wait blocks until a fetch in flight settles.
func (r *Resource[T, W]) Wait(ctx context.Context) error {
	return r.find.Wait(ctx)
}

// Close stops following the index and discards fetches still in flight.
func (r *Resource[T, W]) Close() {
	if r.closed.CompareAndSwap(false, true) {
		r.stop()
	}
}

type resourceLiveness[T types.Entity, W any] struct {
	r *Resource[T, W]
}

func (l resourceLiveness[T, W]) Alive() bool {
	if l.r.closed.Load() || l.r.table.Closed() {
		return false
	}
	return l.r.owner == nil || l.r.owner.Alive()
}

func (l resourceLiveness[T, W]) Changed() {
	if l.r.owner != nil {
		l.r.owner.Changed()
	}
}
