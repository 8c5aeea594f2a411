// Package registry keeps one recreatable singleton per resource name.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/akrennmair/slice"
	"github.com/hnhuaxi/refsingleton/singleton"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var (
	ErrNotFound   = errors.New("registry: resource not registered")
	ErrRegistered = errors.New("registry: resource already registered")
)

type entry[T any] struct {
	factory singleton.Factory[T]
	single  *singleton.Singleton[T]
}

// Registry maps names to singletons sharing one destroy hook and a common
// set of options. The registry lock only guards the name table; factories run
// under their own singleton's lock.
type Registry[T any] struct {
	mu      sync.RWMutex
	set     map[string]*entry[T]
	destroy singleton.DestroyFunc[T]
	opts    []singleton.OptionFunc
	log     *zap.Logger
}

func New[T any](destroy singleton.DestroyFunc[T], opts ...singleton.OptionFunc) *Registry[T] {
	return &Registry[T]{
		set:     make(map[string]*entry[T]),
		destroy: destroy,
		opts:    opts,
		log:     singleton.NewOption(opts...).Logger,
	}
}

// Register stores factory under name. It reports false, and keeps the
// existing factory, when name is taken.
func (reg *Registry[T]) Register(name string, factory singleton.Factory[T]) bool {
	return reg.RegisterWith(name, factory)
}

// RegisterWith is Register with per name options applied after the registry
// options, so any of them, zero values included, can be overridden.
func (reg *Registry[T]) RegisterWith(name string, factory singleton.Factory[T], opts ...singleton.OptionFunc) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.set[name]; ok {
		return false
	}

	all := append(slices.Clone(reg.opts), singleton.OptName(name))
	all = append(all, opts...)
	reg.set[name] = &entry[T]{
		factory: factory,
		single:  singleton.New(reg.destroy, all...),
	}
	reg.log.Debug("resource registered", zap.String("name", name))
	return true
}

// MustRegister panics with ErrRegistered when name is taken.
func (reg *Registry[T]) MustRegister(name string, factory singleton.Factory[T]) {
	if !reg.Register(name, factory) {
		panic(fmt.Errorf("%w: %s", ErrRegistered, name))
	}
}

// Unregister forgets name. References already handed out stay valid and the
// instance is destroyed when the last of them is released.
//
// Registering name again creates an independent singleton. Until the old
// references are released, the old instance and a new one built by Acquire
// are alive at the same time under the same name.
func (reg *Registry[T]) Unregister(name string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.set[name]; !ok {
		return false
	}

	delete(reg.set, name)
	reg.log.Debug("resource unregistered", zap.String("name", name))
	return true
}

func (reg *Registry[T]) lookup(name string) (*entry[T], error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	e, ok := reg.set[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, nil
}

// Acquire returns a reference to the named resource, building it when no
// reference to it is outstanding.
func (reg *Registry[T]) Acquire(ctx context.Context, name string) (*singleton.Ref[T], error) {
	e, err := reg.lookup(name)
	if err != nil {
		return nil, err
	}

	return e.single.GetOrInit(ctx, e.factory)
}

func (reg *Registry[T]) MustAcquire(ctx context.Context, name string) *singleton.Ref[T] {
	ref, err := reg.Acquire(ctx, name)
	if err != nil {
		panic(err)
	}
	return ref
}

// Get returns a reference to the named resource only when it is live.
func (reg *Registry[T]) Get(ctx context.Context, name string) (*singleton.Ref[T], error) {
	e, err := reg.lookup(name)
	if err != nil {
		return nil, err
	}

	return e.single.Get(ctx)
}

// Names returns the registered names in order.
func (reg *Registry[T]) Names() []string {
	reg.mu.RLock()
	names := maps.Keys(reg.set)
	reg.mu.RUnlock()

	slices.Sort(names)
	return names
}

func (reg *Registry[T]) Stats() map[string]singleton.Stats {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	stats := make(map[string]singleton.Stats, len(reg.set))
	for name, e := range reg.set {
		stats[name] = e.single.Stats()
	}
	return stats
}

// Live returns the names whose instance is currently alive, in order.
func (reg *Registry[T]) Live() []string {
	stats := reg.Stats()
	return slice.Filter(reg.Names(), func(name string) bool {
		return stats[name].Live
	})
}
