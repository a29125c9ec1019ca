// Package action implements the single-flight guard around one asynchronous
// operation. An Action tracks loading, error and result state, merges a
// baseline of default input into every call, and drops calls that arrive while
// a previous call is still in flight.
package action

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Func is the wrapped operation.
type Func[I, R any] func(ctx context.Context, in I) (R, error)

// ErrInFlight is returned by Trigger when the call was dropped because the
// action was already loading. State is left untouched.
var ErrInFlight = errors.New("action already in flight")

// ErrFailed matches every failure recorded by an Action.
var ErrFailed = errors.New("action failed")

// Error is the failure recorded in State.Err and returned from Trigger. It
// unwraps to both ErrFailed and the error produced by the operation.
type Error struct {
	Action string
	Err    error
}

func (e *Error) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("action failed: %v", e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Action, e.Err)
}

// Unwrap exposes ErrFailed and the underlying cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	return []error{ErrFailed, e.Err}
}

// State is a snapshot of an Action.
type State[R any] struct {
	Loading   bool
	Err       error
	Result    R
	HasResult bool
}

// Owner ties an Action to the lifetime of whatever created it. Results that
// arrive after the owner stopped being alive are not applied.
type Owner interface {
	Alive() bool
	Changed()
}

// Action is a single-flight wrapper around Func. The zero value is not usable;
// construct with New.
type Action[I, R any] struct {
	name      string
	fn        Func[I, R]
	merge     MergeFunc[I]
	onSuccess func(in I, result R)
	owner     Owner
	logger    *zap.Logger

	flight atomic.Bool

	mu       sync.RWMutex
	defaults I
	state    State[R]
	done     chan struct{} // closed when the current flight settles
}

// New wraps fn. With WithAutoTrigger the action starts one asynchronous call
// using only its defaults before New returns.
func New[I, R any](fn Func[I, R], opts ...Option[I, R]) *Action[I, R] {
	a := &Action[I, R]{
		fn:     fn,
		merge:  Merge[I],
		logger: zap.NewNop(),
	}
	cfg := config{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(a, &cfg)
	}
	if cfg.autoTrigger {
		var zero I
		a.Go(cfg.autoCtx, zero)
	}
	return a
}

// Trigger runs the operation with in merged against the defaults and waits
// for it. If a call is already in flight, Trigger returns ErrInFlight at once
// without invoking the operation. Failures are recorded in the state and
// returned as *Error.
func (a *Action[I, R]) Trigger(ctx context.Context, in I) (R, error) {
	merged, ok := a.begin(in)
	if !ok {
		var zero R
		return zero, ErrInFlight
	}
	return a.run(ctx, merged)
}

// Go starts the operation in a new goroutine and reports whether it was
// started. The single-flight check happens before Go returns, so false means
// the call was dropped.
func (a *Action[I, R]) Go(ctx context.Context, in I) bool {
	merged, ok := a.begin(in)
	if !ok {
		return false
	}
	go func() {
		_, _ = a.run(ctx, merged)
	}()
	return true
}

// Wait blocks until the call in flight, if any, has settled.
func (a *Action[I, R]) Wait(ctx context.Context) error {
	a.mu.RLock()
	done := a.done
	a.mu.RUnlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Action[I, R]) begin(in I) (I, bool) {
	if !a.flight.CompareAndSwap(false, true) {
		a.logger.Debug("trigger dropped", zap.String("action", a.name))
		var zero I
		return zero, false
	}

	a.mu.Lock()
	a.state.Loading = true
	a.state.Err = nil
	a.done = make(chan struct{})
	merged := a.merge(a.defaults, in)
	a.mu.Unlock()

	a.changed()
	return merged, true
}

func (a *Action[I, R]) run(ctx context.Context, in I) (result R, err error) {
	defer a.settle()

	result, err = a.fn(ctx, in)
	if err != nil {
		err = &Error{Action: a.name, Err: err}
	}

	if a.owner != nil && !a.owner.Alive() {
		a.logger.Debug("owner gone, result discarded", zap.String("action", a.name))
		return result, err
	}

	a.mu.Lock()
	if err != nil {
		a.state.Err = err
	} else {
		a.state.Result = result
		a.state.HasResult = true
		a.state.Err = nil
	}
	a.mu.Unlock()

	if err != nil {
		a.logger.Warn("action failed", zap.String("action", a.name), zap.Error(err))
		return result, err
	}
	if a.onSuccess != nil {
		a.onSuccess(in, result)
	}
	return result, nil
}

// settle ends the flight. It runs even if the operation panics so that the
// action never stays locked.
func (a *Action[I, R]) settle() {
	a.mu.Lock()
	a.state.Loading = false
	done := a.done
	a.done = nil
	a.mu.Unlock()

	a.flight.Store(false)
	if done != nil {
		close(done)
	}
	a.changed()
}

func (a *Action[I, R]) changed() {
	if a.owner != nil && a.owner.Alive() {
		a.owner.Changed()
	}
}

// SetDefaults replaces the defaults. Calls already in flight keep the input
// they were started with.
func (a *Action[I, R]) SetDefaults(defaults I) {
	a.mu.Lock()
	a.defaults = defaults
	a.mu.Unlock()
	a.changed()
}

// Defaults returns the current defaults.
func (a *Action[I, R]) Defaults() I {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.defaults
}

// State returns a snapshot of loading, error and result.
func (a *Action[I, R]) State() State[R] {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Loading reports whether a call is in flight.
func (a *Action[I, R]) Loading() bool {
	return a.State().Loading
}

// Err returns the failure recorded by the last settled call, if it failed.
func (a *Action[I, R]) Err() error {
	return a.State().Err
}

// Result returns the result of the last successful call.
func (a *Action[I, R]) Result() (R, bool) {
	s := a.State()
	return s.Result, s.HasResult
}

// Name returns the name used in logs and errors.
func (a *Action[I, R]) Name() string {
	return a.name
}
