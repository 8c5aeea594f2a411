package singleton

import (
	"runtime"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// lifecycle is shared by every instance of one singleton. It holds what an
// instance needs to destroy itself, never the singleton's lock.
type lifecycle[T any] struct {
	name      string
	destroy   DestroyFunc[T]
	log       *zap.Logger
	leakCheck bool

	created   atomic.Uint64
	destroyed atomic.Uint64
}

// cell is one instance together with its owner count. The count only moves
// away from zero inside the singleton lock, when the instance is created.
type cell[T any] struct {
	value T
	gen   uint64
	refs  atomic.Int64
	lc    *lifecycle[T]
}

func (c *cell[T]) upgrade() bool {
	for {
		n := c.refs.Load()
		if n <= 0 {
			return false
		}
		if c.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (c *cell[T]) acquire() {
	if c.refs.Inc() <= 1 {
		panic("singleton: acquired a destroyed instance")
	}
}

func (c *cell[T]) release() error {
	n := c.refs.Dec()
	if n > 0 {
		return nil
	}
	if n < 0 {
		panic("singleton: released more references than were acquired")
	}

	return c.lc.finish(c)
}

func (lc *lifecycle[T]) finish(c *cell[T]) error {
	var (
		err  error
		zero T
	)

	if lc.destroy != nil {
		err = lc.destroy(c.value)
	}
	c.value = zero
	lc.destroyed.Inc()

	if err != nil {
		lc.log.Warn("destroy instance failed",
			zap.String("singleton", lc.name),
			zap.Uint64("generation", c.gen),
			zap.Error(err))
		return err
	}

	lc.log.Info("instance destroyed",
		zap.String("singleton", lc.name),
		zap.Uint64("generation", c.gen))
	return nil
}

// Ref is an owning handle to a singleton instance. The instance stays alive
// until every Ref derived from the same GetOrInit generation is released.
//
// A Ref must not be copied by value; use Clone to share ownership. Keep the
// Ref reachable for as long as the value from Value is in use: ownership is
// tracked on the Ref, not on the value.
type Ref[T any] struct {
	c        *cell[T]
	released *atomic.Bool
	tracked  bool
	cleanup  runtime.Cleanup
}

// leak is what the runtime cleanup of a tracked Ref sees. It must not point
// at the cell so the cleanup never keeps an instance reachable.
type leak struct {
	log      *zap.Logger
	name     string
	gen      uint64
	released *atomic.Bool
}

func newRef[T any](c *cell[T]) *Ref[T] {
	ref := &Ref[T]{
		c:        c,
		released: atomic.NewBool(false),
	}

	if c.lc.leakCheck {
		ref.tracked = true
		ref.cleanup = runtime.AddCleanup(ref, reportLeaked, leak{
			log:      c.lc.log,
			name:     c.lc.name,
			gen:      c.gen,
			released: ref.released,
		})
	}

	return ref
}

// reportLeaked only logs. The owner count is left as is, so a leaked Ref keeps
// its instance from being destroyed while a caller may still use the value.
func reportLeaked(l leak) {
	if l.released.Load() {
		return
	}

	l.log.Warn("reference collected without Release",
		zap.String("singleton", l.name),
		zap.Uint64("generation", l.gen))
}

// Value returns the protected instance. It panics with ErrReleased when
// called after Release. The value is only guaranteed alive while ref is
// reachable and not released.
func (ref *Ref[T]) Value() T {
	if ref.released.Load() {
		panic(ErrReleased)
	}

	return ref.c.value
}

// Clone returns a new owning handle to the same instance. It never waits on
// the singleton lock.
func (ref *Ref[T]) Clone() *Ref[T] {
	if ref.released.Load() {
		panic(ErrReleased)
	}

	ref.c.acquire()
	return newRef(ref.c)
}

// Release gives up this handle's ownership. The last Release destroys the
// instance synchronously and returns the destroy error, if any. Releasing the
// same Ref twice returns ErrReleased.
func (ref *Ref[T]) Release() error {
	if !ref.released.CompareAndSwap(false, true) {
		return ErrReleased
	}

	if ref.tracked {
		ref.cleanup.Stop()
	}

	return ref.c.release()
}

// Close implements io.Closer.
func (ref *Ref[T]) Close() error {
	return ref.Release()
}

// Generation is the sequence number of the instance, starting at 1 for the
// first instance a singleton creates.
func (ref *Ref[T]) Generation() uint64 {
	return ref.c.gen
}

// Count is the number of outstanding owners of the instance.
func (ref *Ref[T]) Count() int64 {
	return ref.c.refs.Load()
}

// Same reports whether both handles point at the same instance.
func (ref *Ref[T]) Same(other *Ref[T]) bool {
	return other != nil && ref.c == other.c
}
