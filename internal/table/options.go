package table

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tablesync/internal/action"
	"github.com/mesh-intelligence/tablesync/pkg/types"
)

type options[T types.Entity] struct {
	logger  *zap.Logger
	owner   action.Owner
	initial map[string]T
}

// Option configures a Table or Resource.
type Option[T types.Entity] func(*options[T])

// WithLogger sets the logger. The default discards everything.
func WithLogger[T types.Entity](logger *zap.Logger) Option[T] {
	return func(o *options[T]) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOwner ties the handle to owner: state changes notify it, and results
// arriving after it stops being alive are discarded.
func WithOwner[T types.Entity](owner action.Owner) Option[T] {
	return func(o *options[T]) {
		o.owner = owner
	}
}

// WithInitial seeds the index. Resources ignore it.
func WithInitial[T types.Entity](initial map[string]T) Option[T] {
	return func(o *options[T]) {
		o.initial = initial
	}
}
