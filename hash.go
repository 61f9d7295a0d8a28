package redstruct

import (
	"context"
	"errors"
)

// Hash is a dictionary stored as the fields of a single store hash. Length,
// membership and iteration are native; iteration follows the store's field
// order, which is insertion order for small hashes.
type Hash[K ~string, V any] struct {
	keyed
	ser serializer[V]
}

// NewHash returns the Hash named name. It does not touch the store.
func NewHash[K ~string, V any](driver Driver, name string, opts ...Option) *Hash[K, V] {
	return newHash[K, V](TagHash, driver, name, opts)
}

func newHash[K ~string, V any](tag string, driver Driver, name string, opts []Option) *Hash[K, V] {
	b := newBase(tag, name, driver, opts)
	return &Hash[K, V]{keyed: keyed{b}, ser: newSerializer[V](b.cfg)}
}

func (h *Hash[K, V]) lookup(ctx context.Context, k K) (V, bool, error) {
	var zero V
	data, err := h.driver.HGet(ctx, h.key, string(k))
	if errors.Is(err, ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, h.fail(ctx, "HGet", err)
	}
	v, err := h.ser.decode(data)
	return v, err == nil, h.fail(ctx, "HGet", err)
}

// Get returns the value of field k, or a KeyError wrapping ErrNotFound.
func (h *Hash[K, V]) Get(ctx context.Context, k K) (V, error) {
	v, ok, err := h.lookup(ctx, k)
	if err == nil && !ok {
		err = notFound(h.key, k)
	}
	return v, err
}

// GetOr returns the value of field k, or def when it is absent.
func (h *Hash[K, V]) GetOr(ctx context.Context, k K, def V) (V, error) {
	v, ok, err := h.lookup(ctx, k)
	if err == nil && !ok {
		return def, nil
	}
	return v, err
}

// MGet returns the values of the present fields among keys.
func (h *Hash[K, V]) MGet(ctx context.Context, keys ...K) (map[K]V, error) {
	out := make(map[K]V, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	fields := make([]string, len(keys))
	for i, k := range keys {
		fields[i] = string(k)
	}
	values, err := h.driver.HMGet(ctx, h.key, fields...)
	if err != nil {
		return nil, h.fail(ctx, "HMGet", err)
	}
	for i, data := range values {
		if data == nil {
			continue
		}
		v, err := h.ser.decode(data)
		if err != nil {
			return nil, h.fail(ctx, "HMGet", err)
		}
		out[keys[i]] = v
	}
	return out, nil
}

// Set stores value in field k.
func (h *Hash[K, V]) Set(ctx context.Context, k K, value V) error {
	return h.Update(ctx, map[K]V{k: value})
}

// Update stores every entry with a single HSET.
func (h *Hash[K, V]) Update(ctx context.Context, entries map[K]V) error {
	if len(entries) == 0 {
		return nil
	}
	fields, err := encodeEntries(h.ser, entries, func(k K) string { return string(k) })
	if err != nil {
		return h.fail(ctx, "HSet", err)
	}
	_, err = h.driver.HSet(ctx, h.key, fields)
	return h.fail(ctx, "HSet", err)
}

// Delete removes field k, reporting a KeyError wrapping ErrNotFound when it
// is absent.
func (h *Hash[K, V]) Delete(ctx context.Context, k K) error {
	n, err := h.Remove(ctx, k)
	if err == nil && n == 0 {
		return notFound(h.key, k)
	}
	return err
}

// Remove deletes every present field among keys and returns how many existed.
func (h *Hash[K, V]) Remove(ctx context.Context, keys ...K) (int64, error) {
	fields := make([]string, len(keys))
	for i, k := range keys {
		fields[i] = string(k)
	}
	n, err := h.driver.HDel(ctx, h.key, fields...)
	return n, h.fail(ctx, "HDel", err)
}

// Pop removes field k and returns its value. When callers race, exactly one
// of them gets the value.
func (h *Hash[K, V]) Pop(ctx context.Context, k K) (V, error) {
	v, err := h.Get(ctx, k)
	if err != nil {
		return v, err
	}
	if err := h.Delete(ctx, k); err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}

// Contains reports whether field k is present.
func (h *Hash[K, V]) Contains(ctx context.Context, k K) (bool, error) {
	ok, err := h.driver.HExists(ctx, h.key, string(k))
	return ok, h.fail(ctx, "HExists", err)
}

// Incr atomically adds delta to the integer in field k. A missing field
// counts as zero; a non-integer value fails with ErrTypeMismatch.
func (h *Hash[K, V]) Incr(ctx context.Context, k K, delta int64) (int64, error) {
	n, err := h.driver.HIncrBy(ctx, h.key, string(k), delta)
	if err != nil {
		return 0, h.fail(ctx, "HIncrBy", fieldError(h.key, k, err))
	}
	return n, nil
}

// IncrFloat is Incr for floating point values.
func (h *Hash[K, V]) IncrFloat(ctx context.Context, k K, delta float64) (float64, error) {
	f, err := h.driver.HIncrByFloat(ctx, h.key, string(k), delta)
	if err != nil {
		return 0, h.fail(ctx, "HIncrByFloat", fieldError(h.key, k, err))
	}
	return f, nil
}

// Len returns the number of fields.
func (h *Hash[K, V]) Len(ctx context.Context) (int64, error) {
	n, err := h.driver.HLen(ctx, h.key)
	return n, h.fail(ctx, "HLen", err)
}

func (h *Hash[K, V]) items(pattern string) pager[Entry[K, V]] {
	size := h.cfg.pageSize
	return scanPager(func(ctx context.Context, cursor uint64) ([]Entry[K, V], uint64, error) {
		fields, next, err := h.driver.HScan(ctx, h.key, pattern, cursor, size)
		if err != nil {
			return nil, 0, h.fail(ctx, "HScan", err)
		}
		out := make([]Entry[K, V], len(fields))
		for i, f := range fields {
			v, err := h.ser.decode(f.Value)
			if err != nil {
				return nil, 0, h.fail(ctx, "HScan", err)
			}
			out[i] = Entry[K, V]{Key: K(f.Name), Value: v}
		}
		return out, next, nil
	})
}

// Keys iterates over the field names in storage order.
func (h *Hash[K, V]) Keys(ctx context.Context) *Iterator[K] {
	return newIterator(ctx, mapPager(h.items(""), func(e Entry[K, V]) K { return e.Key }))
}

// Values iterates over the values in storage order.
func (h *Hash[K, V]) Values(ctx context.Context) *Iterator[V] {
	return newIterator(ctx, mapPager(h.items(""), entryValue[K, V]))
}

// Items iterates over the entries in storage order.
func (h *Hash[K, V]) Items(ctx context.Context) *Iterator[Entry[K, V]] {
	return newIterator(ctx, h.items(""))
}

// Match iterates over the entries whose field name matches a glob pattern.
// The store filters the fields. A malformed pattern reports ErrInvalidPattern.
func (h *Hash[K, V]) Match(ctx context.Context, pattern string) (*Iterator[Entry[K, V]], error) {
	if !validGlob(pattern) {
		return nil, ErrInvalidPattern
	}
	return newIterator(ctx, h.items(pattern)), nil
}

// Fields returns every field name in one round trip.
func (h *Hash[K, V]) Fields(ctx context.Context) ([]K, error) {
	names, err := h.driver.HKeys(ctx, h.key)
	if err != nil {
		return nil, h.fail(ctx, "HKeys", err)
	}
	keys := make([]K, len(names))
	for i, n := range names {
		keys[i] = K(n)
	}
	return keys, nil
}

// FieldValues returns every value in one round trip, in the order of Fields.
func (h *Hash[K, V]) FieldValues(ctx context.Context) ([]V, error) {
	data, err := h.driver.HVals(ctx, h.key)
	if err != nil {
		return nil, h.fail(ctx, "HVals", err)
	}
	values, err := h.ser.decodeAll(data)
	return values, h.fail(ctx, "HVals", err)
}

// All collects every entry into a map.
func (h *Hash[K, V]) All(ctx context.Context) (map[K]V, error) {
	entries, err := Collect(h.Items(ctx))
	if err != nil {
		return nil, err
	}
	out := make(map[K]V, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out, nil
}
