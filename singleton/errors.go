package singleton

import (
	"errors"
	"fmt"
)

var (
	ErrEmpty       = errors.New("singleton: no live instance")
	ErrPoisoned    = errors.New("singleton: poisoned by a panicking factory")
	ErrReentrant   = errors.New("singleton: factory re-entered its own singleton")
	ErrReleased    = errors.New("singleton: reference already released")
	ErrWaitTimeout = errors.New("singleton: timed out waiting for the lock")
)

// PanicError is returned by every call on a singleton whose factory
// panicked. It matches ErrPoisoned with errors.Is.
type PanicError struct {
	Name  string
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("singleton %s: poisoned by factory panic: %v", e.Name, e.Value)
}

func (e *PanicError) Unwrap() error {
	return ErrPoisoned
}
