package redstruct

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Container is implemented by every structure.
type Container interface {
	// Key returns the namespaced store key of the structure.
	Key() string
	// Clear removes every element and the keys backing them.
	Clear(ctx context.Context) error
}

// Sized is a Container that can report its element count without iterating.
type Sized interface {
	Container
	Len(ctx context.Context) (int64, error)
}

// Dictionary is the common surface of Map, Dict and Hash.
type Dictionary[K ~string, V any] interface {
	Container
	Get(ctx context.Context, key K) (V, error)
	GetOr(ctx context.Context, key K, def V) (V, error)
	Set(ctx context.Context, key K, value V) error
	Delete(ctx context.Context, key K) error
	Contains(ctx context.Context, key K) (bool, error)
	Incr(ctx context.Context, key K, delta int64) (int64, error)
	Update(ctx context.Context, entries map[K]V) error
	Keys(ctx context.Context) *Iterator[K]
	Values(ctx context.Context) *Iterator[V]
	Items(ctx context.Context) *Iterator[Entry[K, V]]
}

// Sequence is the common surface of List and Set.
type Sequence[V any] interface {
	Sized
	Contains(ctx context.Context, value V) (bool, error)
	Iter(ctx context.Context) *Iterator[V]
}

var (
	_ Dictionary[string, int] = (*Map[string, int])(nil)
	_ Dictionary[string, int] = (*Dict[string, int])(nil)
	_ Dictionary[string, int] = (*Hash[string, int])(nil)
	_ Dictionary[string, int] = (*DefaultDict[string, int])(nil)
	_ Dictionary[string, int] = (*DefaultHash[string, int])(nil)
	_ Sized                   = (*Dict[string, int])(nil)
	_ Sized                   = (*Hash[string, int])(nil)
	_ Sized                   = (*SortedSet[string, float64])(nil)
	_ Sequence[int]           = (*List[int])(nil)
	_ Sequence[int]           = (*Set[int])(nil)
)

// base holds what every structure shares: its key, the driver and the
// construction options.
type base struct {
	key    string
	driver Driver
	cfg    config
}

func newBase(tag, name string, driver Driver, opts []Option) base {
	if driver == nil {
		panic("redstruct: nil Driver")
	}
	cfg := newConfig(opts)
	return base{key: Key(tag, cfg.prefix, name), driver: driver, cfg: cfg}
}

// Key returns the namespaced store key of the structure.
func (b *base) Key() string {
	return b.key
}

func (b *base) logf(level string, ctx context.Context, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if b.cfg.logTag != "" {
		msg = b.cfg.logTag + " " + msg
	}
	switch level {
	case "info":
		b.cfg.logger.Info(ctx, "%s", msg)
	case "warn":
		b.cfg.logger.Warn(ctx, "%s", msg)
	case "error":
		b.cfg.logger.Error(ctx, "%s", msg)
	case "debug":
		b.cfg.logger.Debug(ctx, "%s", msg)
	}
}

// fail logs err unless it is a plain miss and returns it unchanged.
func (b *base) fail(ctx context.Context, op string, err error) error {
	switch {
	case err == nil, errors.Is(err, ErrNotFound), errors.Is(err, ErrOutOfRange):
	case errors.Is(err, ErrConflict):
		b.logf("warn", ctx, "%s %s conflicted: %v", op, b.key, err)
	default:
		b.logf("error", ctx, "%s %s failed: %v", op, b.key, err)
	}
	return err
}

// keyed is the base of structures stored under a single key, which can
// expire as a whole.
type keyed struct {
	base
}

// Clear deletes the structure's key.
func (k *keyed) Clear(ctx context.Context) error {
	_, err := k.driver.Delete(ctx, k.key)
	return k.fail(ctx, "Clear", err)
}

// Exists reports whether the structure currently holds any element.
func (k *keyed) Exists(ctx context.Context) (bool, error) {
	n, err := k.driver.Exists(ctx, k.key)
	return n > 0, k.fail(ctx, "Exists", err)
}

// TTL returns the remaining time-to-live of the structure. Returns -1 if it
// has no expiration.
func (k *keyed) TTL(ctx context.Context) (time.Duration, error) {
	ttl, err := k.driver.TTL(ctx, k.key)
	return ttl, k.fail(ctx, "TTL", err)
}

// Expire sets or updates the time-to-live of the whole structure.
func (k *keyed) Expire(ctx context.Context, ttl time.Duration) error {
	return k.fail(ctx, "Expire", k.driver.Expire(ctx, k.key, ttl))
}

// Persist removes the expiration from the structure.
func (k *keyed) Persist(ctx context.Context) error {
	return k.fail(ctx, "Persist", k.driver.Persist(ctx, k.key))
}

// ExpireAt makes the whole structure expire at t. A t in the past deletes it.
func (k *keyed) ExpireAt(ctx context.Context, t time.Time) error {
	return k.fail(ctx, "ExpireAt", k.driver.ExpireAt(ctx, k.key, t))
}
