package action

import (
	"context"

	"go.uber.org/zap"
)

// Option configures an Action.
type Option[I, R any] func(*Action[I, R], *config)

type config struct {
	autoTrigger bool
	autoCtx     context.Context
}

// WithName sets the name used in logs and in Error values.
func WithName[I, R any](name string) Option[I, R] {
	return func(a *Action[I, R], _ *config) {
		a.name = name
	}
}

// WithDefaults sets the initial defaults merged into every call.
func WithDefaults[I, R any](defaults I) Option[I, R] {
	return func(a *Action[I, R], _ *config) {
		a.defaults = defaults
	}
}

// WithMerge replaces the merge policy. See Merge for the default.
func WithMerge[I, R any](merge MergeFunc[I]) Option[I, R] {
	return func(a *Action[I, R], _ *config) {
		if merge != nil {
			a.merge = merge
		}
	}
}

// WithOnSuccess registers a hook that runs after a successful call has been
// recorded and before the flight ends. It receives the merged input.
func WithOnSuccess[I, R any](fn func(in I, result R)) Option[I, R] {
	return func(a *Action[I, R], _ *config) {
		a.onSuccess = fn
	}
}

// WithOwner ties the action to owner. State changes notify the owner, and
// results arriving after the owner is gone are discarded.
func WithOwner[I, R any](owner Owner) Option[I, R] {
	return func(a *Action[I, R], _ *config) {
		a.owner = owner
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger[I, R any](logger *zap.Logger) Option[I, R] {
	return func(a *Action[I, R], _ *config) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAutoTrigger starts one call with only the defaults as soon as the
// action is constructed.
func WithAutoTrigger[I, R any](ctx context.Context) Option[I, R] {
	return func(_ *Action[I, R], cfg *config) {
		if ctx == nil {
			ctx = context.Background()
		}
		cfg.autoTrigger = true
		cfg.autoCtx = ctx
	}
}
