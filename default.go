package redstruct

import "context"

// DefaultDict is a Dict whose Get returns a fresh default value on a miss.
// The default is never written back: the key stays absent until Set.
type DefaultDict[K ~string, V any] struct {
	*Dict[K, V]
	factory func() V
}

// NewDefaultDict returns the DefaultDict named name. factory must not be nil.
func NewDefaultDict[K ~string, V any](driver Driver, name string, factory func() V, opts ...Option) *DefaultDict[K, V] {
	if factory == nil {
		panic("redstruct: nil default factory")
	}
	return &DefaultDict[K, V]{Dict: newDict[K, V](TagDefaultDict, driver, name, opts), factory: factory}
}

// Get returns the value stored under k, or factory() when it is absent.
func (d *DefaultDict[K, V]) Get(ctx context.Context, k K) (V, error) {
	v, ok, err := d.lookup(ctx, k)
	if err == nil && !ok {
		return d.factory(), nil
	}
	return v, err
}

// DefaultHash is a Hash whose Get returns a fresh default value on a miss.
// The default is never written back: the field stays absent until Set.
type DefaultHash[K ~string, V any] struct {
	*Hash[K, V]
	factory func() V
}

// NewDefaultHash returns the DefaultHash named name. factory must not be nil.
func NewDefaultHash[K ~string, V any](driver Driver, name string, factory func() V, opts ...Option) *DefaultHash[K, V] {
	if factory == nil {
		panic("redstruct: nil default factory")
	}
	return &DefaultHash[K, V]{Hash: newHash[K, V](TagDefaultHash, driver, name, opts), factory: factory}
}

// Get returns the value of field k, or factory() when it is absent.
func (h *DefaultHash[K, V]) Get(ctx context.Context, k K) (V, error) {
	v, ok, err := h.lookup(ctx, k)
	if err == nil && !ok {
		return h.factory(), nil
	}
	return v, err
}
