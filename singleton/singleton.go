// Package singleton provides a recreatable, reference counted singleton.
//
// A Singleton lazily builds one shared instance with a caller supplied
// factory and hands out Ref handles to it. When the last Ref is released the
// instance is destroyed, and the next GetOrInit builds a fresh one.
//
// The factory runs while the singleton's lock is held, so at most one
// instance is ever live and no two callers race to build competing ones. A
// factory must not call GetOrInit on its own singleton; when it passes the
// context it was given the call fails with ErrReentrant, otherwise it
// deadlocks.
package singleton

import (
	"context"
	"fmt"
	"io"
	"weak"

	"github.com/hnhuaxi/refsingleton/utils"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type (
	Factory[T any]     func(ctx context.Context) (T, error)
	DestroyFunc[T any] func(value T) error
)

// Chain runs every hook in order and combines their errors.
func Chain[T any](fns ...DestroyFunc[T]) DestroyFunc[T] {
	return func(value T) error {
		var errs error
		for _, fn := range fns {
			if fn != nil {
				errs = multierr.Append(errs, fn(value))
			}
		}
		return errs
	}
}

func Closer[T io.Closer]() DestroyFunc[T] {
	return func(value T) error {
		return value.Close()
	}
}

type Singleton[T any] struct {
	sem *semaphore.Weighted
	opt Option
	lc  *lifecycle[T]

	// guarded by sem
	current weak.Pointer[cell[T]]
	gen     uint64
	poison  error

	poisoned atomic.Bool
}

type Stats struct {
	Name      string
	Created   uint64
	Destroyed uint64
	Live      bool
	Poisoned  bool
}

type holderKey[T any] struct {
	s *Singleton[T]
}

// New returns an empty singleton. destroy may be nil.
func New[T any](destroy DestroyFunc[T], opts ...OptionFunc) *Singleton[T] {
	opt := NewOption(opts...)
	if opt.Name == "" {
		opt.Name = utils.TypeName[T]()
	}

	return &Singleton[T]{
		sem: semaphore.NewWeighted(1),
		opt: opt,
		lc: &lifecycle[T]{
			name:      opt.Name,
			destroy:   destroy,
			log:       opt.Logger,
			leakCheck: opt.LeakCheck,
		},
	}
}

func (s *Singleton[T]) Name() string {
	return s.opt.Name
}

// GetOrInit returns a reference to the live instance, building one with
// factory when there is none. Factory errors are returned unchanged and leave
// the singleton empty. Callers block while another caller runs the factory.
func (s *Singleton[T]) GetOrInit(ctx context.Context, factory Factory[T]) (*Ref[T], error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	if s.poison != nil {
		return nil, s.poison
	}

	if ref := s.upgrade(); ref != nil {
		return ref, nil
	}

	return s.create(ctx, factory)
}

// Get returns a reference to the live instance, or ErrEmpty. It never builds
// one.
func (s *Singleton[T]) Get(ctx context.Context) (*Ref[T], error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	if s.poison != nil {
		return nil, s.poison
	}

	if ref := s.upgrade(); ref != nil {
		return ref, nil
	}

	return nil, ErrEmpty
}

// Stats is a lock free snapshot. The counters are loaded one after the other,
// so Live is approximate while a create or a destroy runs on another
// goroutine, and stays true for an instance whose Ref leaked without Release.
// Destroyed is loaded first, so Created is never below it.
func (s *Singleton[T]) Stats() Stats {
	destroyed := s.lc.destroyed.Load()
	created := s.lc.created.Load()

	return Stats{
		Name:      s.opt.Name,
		Created:   created,
		Destroyed: destroyed,
		Live:      created > destroyed,
		Poisoned:  s.poisoned.Load(),
	}
}

func (s *Singleton[T]) lock(ctx context.Context) error {
	if ctx.Value(holderKey[T]{s}) != nil {
		return fmt.Errorf("%w: %s", ErrReentrant, s.opt.Name)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if s.opt.WaitTimeout <= 0 {
		return s.sem.Acquire(ctx, 1)
	}

	wait, cancel := context.WithTimeout(ctx, s.opt.WaitTimeout)
	defer cancel()

	if err := s.sem.Acquire(wait, 1); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("%w: %s after %s", ErrWaitTimeout, s.opt.Name, s.opt.WaitTimeout)
		}
		return err
	}

	return nil
}

// upgrade resolves the weak handle into a new owner, or nil when the last
// instance has been released or collected.
func (s *Singleton[T]) upgrade() *Ref[T] {
	c := s.current.Value()
	if c == nil || !c.upgrade() {
		return nil
	}

	s.lc.log.Debug("reuse instance",
		zap.String("singleton", s.opt.Name),
		zap.Uint64("generation", c.gen),
		zap.Int64("refs", c.refs.Load()))
	return newRef(c)
}

func (s *Singleton[T]) create(ctx context.Context, factory Factory[T]) (*Ref[T], error) {
	defer func() {
		if v := recover(); v != nil {
			s.poison = &PanicError{Name: s.opt.Name, Value: v}
			s.poisoned.Store(true)
			s.current = weak.Pointer[cell[T]]{}
			s.lc.log.Error("factory panicked, singleton poisoned",
				zap.String("singleton", s.opt.Name),
				zap.Any("panic", v))
			panic(v)
		}
	}()

	value, err := factory(context.WithValue(ctx, holderKey[T]{s}, struct{}{}))
	if err != nil {
		s.lc.log.Debug("factory failed",
			zap.String("singleton", s.opt.Name),
			zap.Error(err))
		return nil, err
	}

	s.gen++
	c := &cell[T]{
		value: value,
		gen:   s.gen,
		lc:    s.lc,
	}
	c.refs.Store(1)

	s.current = weak.Make(c)
	s.lc.created.Inc()
	s.lc.log.Debug("instance created",
		zap.String("singleton", s.opt.Name),
		zap.Uint64("generation", c.gen))

	return newRef(c), nil
}
