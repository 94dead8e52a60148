// Package lazy implements the memoizing, dependency-ordered evaluation
// protocol behind every artifact element. One protocol serves two
// callers: the build pipeline, which can wait for asynchronous factory
// work, and synchronous accessors, which must fail explicitly the
// instant evaluation would suspend.
//
// An element moves Unevaluated → Evaluating → Cached and its factory
// runs at most once, even when the factory fails. Concurrent accessors
// arriving while an asynchronous resolution is in flight all observe
// the same result.
package lazy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrWouldSuspend marks the failure class of a synchronous access that
// hit in-flight asynchronous work. It is the caller environment's
// limitation, not a value-level failure, and is therefore never cached
// on the element.
var ErrWouldSuspend = errors.New("lazy: synchronous access would suspend on pending asynchronous work")

// SuspendError wraps ErrWouldSuspend with the element it happened on.
type SuspendError struct {
	Label string
}

func (e *SuspendError) Error() string {
	return fmt.Sprintf("lazy: element %q has unresolved asynchronous work; "+
		"synchronous access cannot await it", e.Label)
}

func (e *SuspendError) Unwrap() error { return ErrWouldSuspend }

// Stats tallies cache behavior across all elements of one build.
type Stats struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// Snapshot returns the current hit and miss counts.
func (s *Stats) Snapshot() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

// Evaluable is the dependency contract: anything that can be driven to
// completion ahead of a factory, in either execution mode.
type Evaluable interface {
	Eval(ctx context.Context) error
	EvalSync() error
}

// Outcome is what a factory produces: an immediate value, an immediate
// error, or a future carrying an in-flight asynchronous resolution.
type Outcome[T any] struct {
	value  T
	err    error
	future *Future[T]
}

// Of wraps an immediate value.
func Of[T any](v T) Outcome[T] { return Outcome[T]{value: v} }

// Fail wraps an immediate error.
func Fail[T any](err error) Outcome[T] { return Outcome[T]{err: err} }

// Await adopts a future as the factory's result.
func Await[T any](f *Future[T]) Outcome[T] { return Outcome[T]{future: f} }

// Factory produces an element's value. It is invoked at most once per
// element lifetime.
type Factory[T any] func(ctx context.Context) Outcome[T]

// Future is a single-assignment asynchronous result.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go runs fn on a new goroutine and returns a future resolving to its
// result.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		f.val, f.err = fn()
		close(f.done)
	}()
	return f
}

// Resolved returns an already-resolved future; useful in tests.
func Resolved[T any](v T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: v, err: err}
	close(f.done)
	return f
}

func (f *Future[T]) ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

const (
	stateUnevaluated = iota
	stateEvaluating
	stateCached
)

// Element memoizes one factory invocation.
type Element[T any] struct {
	mu    sync.Mutex
	state int
	// done is non-nil while Evaluating; closed whenever the evaluation
	// attempt settles, successfully or by rollback. Waiters re-check
	// state after waking.
	done  chan struct{}
	value T
	err   error

	label   string
	factory Factory[T]
	getDeps func() []Evaluable
	stats   *Stats
}

// Option configures an Element.
type Option[T any] func(*Element[T])

// WithDeps supplies the dependency thunk, evaluated in declaration
// order before the factory runs.
func WithDeps[T any](getDeps func() []Evaluable) Option[T] {
	return func(e *Element[T]) { e.getDeps = getDeps }
}

// WithStats attaches build-level cache counters.
func WithStats[T any](s *Stats) Option[T] {
	return func(e *Element[T]) { e.stats = s }
}

// NewElement creates an unevaluated element. The label names the
// element in suspension errors; pass the canonical ID.
func NewElement[T any](label string, factory Factory[T], opts ...Option[T]) *Element[T] {
	e := &Element[T]{label: label, factory: factory}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Element[T]) recordHit() {
	if e.stats != nil {
		e.stats.hits.Add(1)
	}
}

func (e *Element[T]) recordMiss() {
	if e.stats != nil {
		e.stats.misses.Add(1)
	}
}

// Get drives the element to completion, waiting on asynchronous work as
// needed, and returns the cached value ever after.
func (e *Element[T]) Get(ctx context.Context) (T, error) {
	for {
		e.mu.Lock()
		switch e.state {
		case stateCached:
			v, err := e.value, e.err
			e.mu.Unlock()
			e.recordHit()
			return v, err

		case stateEvaluating:
			ch := e.done
			e.mu.Unlock()
			select {
			case <-ctx.Done():
				var zero T
				return zero, ctx.Err()
			case <-ch:
			}
			// Re-check: the attempt may have been rolled back by a
			// synchronous accessor that hit a suspension before the
			// factory ran.
			continue

		default:
			e.state = stateEvaluating
			e.done = make(chan struct{})
			e.mu.Unlock()
			return e.evaluate(ctx)
		}
	}
}

// evaluate runs deps then the factory; only the goroutine that won the
// Unevaluated→Evaluating transition gets here.
func (e *Element[T]) evaluate(ctx context.Context) (T, error) {
	if e.getDeps != nil {
		for _, dep := range e.getDeps() {
			if err := dep.Eval(ctx); err != nil {
				return e.settle(*new(T), err)
			}
		}
	}
	e.recordMiss()
	out := e.factory(ctx)
	if out.future != nil {
		select {
		case <-ctx.Done():
			// The factory started work we cannot cancel; adopt it so a
			// later accessor still observes the single execution.
			e.adoptFuture(out.future)
			var zero T
			return zero, ctx.Err()
		case <-out.future.done:
			return e.settle(out.future.val, out.future.err)
		}
	}
	return e.settle(out.value, out.err)
}

// GetSync drives the element without ever blocking. It succeeds when
// the whole dependency chain and the factory resolve synchronously, and
// fails with a SuspendError the instant anything would require waiting.
func (e *Element[T]) GetSync() (T, error) {
	var zero T

	e.mu.Lock()
	switch e.state {
	case stateCached:
		v, err := e.value, e.err
		e.mu.Unlock()
		e.recordHit()
		return v, err

	case stateEvaluating:
		e.mu.Unlock()
		return zero, &SuspendError{Label: e.label}

	default:
		e.state = stateEvaluating
		e.done = make(chan struct{})
		e.mu.Unlock()
	}

	if e.getDeps != nil {
		for _, dep := range e.getDeps() {
			if err := dep.EvalSync(); err != nil {
				if errors.Is(err, ErrWouldSuspend) {
					// The factory has not run; this attempt can be
					// retried asynchronously later.
					e.rollback()
					return zero, err
				}
				return e.settle(zero, err)
			}
		}
	}
	e.recordMiss()

	out := e.factory(context.Background())
	if out.future != nil {
		if out.future.ready() {
			return e.settle(out.future.val, out.future.err)
		}
		// The factory already executed; keep its in-flight result so
		// asynchronous accessors share it, but fail this caller now.
		e.adoptFuture(out.future)
		return zero, &SuspendError{Label: e.label}
	}
	return e.settle(out.value, out.err)
}

// Eval implements Evaluable.
func (e *Element[T]) Eval(ctx context.Context) error {
	_, err := e.Get(ctx)
	return err
}

// EvalSync implements Evaluable.
func (e *Element[T]) EvalSync() error {
	_, err := e.GetSync()
	return err
}

// Peek returns the cached value without evaluating and without
// touching the cache counters. ok is false while the element has not
// settled or settled with an error.
func (e *Element[T]) Peek() (v T, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateCached || e.err != nil {
		return v, false
	}
	return e.value, true
}

// Cached reports whether the element has settled, without evaluating.
func (e *Element[T]) Cached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == stateCached
}

func (e *Element[T]) settle(v T, err error) (T, error) {
	e.mu.Lock()
	e.value, e.err = v, err
	e.state = stateCached
	close(e.done)
	e.done = nil
	e.mu.Unlock()
	return v, err
}

func (e *Element[T]) rollback() {
	e.mu.Lock()
	e.state = stateUnevaluated
	close(e.done)
	e.done = nil
	e.mu.Unlock()
}

// adoptFuture parks an unresolved factory result on the element and
// settles it from a background goroutine once the future resolves.
func (e *Element[T]) adoptFuture(f *Future[T]) {
	go func() {
		<-f.done
		e.settle(f.val, f.err)
	}()
}
