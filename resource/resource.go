// Package resource provides singleton factories for clients that are costly
// to open and should live only while something uses them.
package resource

import (
	"github.com/hnhuaxi/refsingleton/registry"
	"github.com/hnhuaxi/refsingleton/singleton"
)

// Spec pairs how to build a client with how to tear it down.
type Spec[T any] struct {
	Name    string
	Factory singleton.Factory[T]
	Destroy singleton.DestroyFunc[T]
}

// Singleton returns an empty singleton for the resource. opts are applied
// after the resource name, so OptName overrides it.
func (spec Spec[T]) Singleton(opts ...singleton.OptionFunc) *singleton.Singleton[T] {
	return singleton.New(spec.Destroy, append([]singleton.OptionFunc{singleton.OptName(spec.Name)}, opts...)...)
}

// Registry returns a registry that tears resources down with spec.Destroy.
// Each name still needs its own factory, usually from another Spec of the
// same kind.
func (spec Spec[T]) Registry(opts ...singleton.OptionFunc) *registry.Registry[T] {
	return registry.New(spec.Destroy, opts...)
}
