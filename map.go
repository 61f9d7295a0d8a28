package redstruct

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
)

// Map is a dictionary stored as one string key per entry, "key:field". It
// keeps no count of its entries; use Dict when Len is needed and Hash when
// iteration is frequent.
type Map[K ~string, V any] struct {
	base
	ser serializer[V]
}

// NewMap returns the Map named name. It does not touch the store.
func NewMap[K ~string, V any](driver Driver, name string, opts ...Option) *Map[K, V] {
	b := newBase(TagMap, name, driver, opts)
	return &Map[K, V]{base: b, ser: newSerializer[V](b.cfg)}
}

func (m *Map[K, V]) field(k K) string {
	return memberKey(m.key, string(k))
}

func (m *Map[K, V]) lookup(ctx context.Context, k K) (V, bool, error) {
	var zero V
	data, err := m.driver.Get(ctx, m.field(k))
	if errors.Is(err, ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, m.fail(ctx, "Get", err)
	}
	v, err := m.ser.decode(data)
	return v, err == nil, m.fail(ctx, "Get", err)
}

// Get returns the value stored under k, or a KeyError wrapping ErrNotFound.
func (m *Map[K, V]) Get(ctx context.Context, k K) (V, error) {
	v, ok, err := m.lookup(ctx, k)
	if err == nil && !ok {
		err = notFound(m.key, k)
	}
	return v, err
}

// GetOr returns the value stored under k, or def when it is absent.
func (m *Map[K, V]) GetOr(ctx context.Context, k K, def V) (V, error) {
	v, ok, err := m.lookup(ctx, k)
	if err == nil && !ok {
		return def, nil
	}
	return v, err
}

// MGet returns the values of the present keys among keys.
func (m *Map[K, V]) MGet(ctx context.Context, keys ...K) (map[K]V, error) {
	out := make(map[K]V, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	fields := make([]string, len(keys))
	for i, k := range keys {
		fields[i] = m.field(k)
	}
	found, err := m.driver.MGet(ctx, fields)
	if err != nil {
		return nil, m.fail(ctx, "MGet", err)
	}
	for i, k := range keys {
		data, ok := found[fields[i]]
		if !ok {
			continue
		}
		v, err := m.ser.decode(data)
		if err != nil {
			return nil, m.fail(ctx, "MGet", err)
		}
		out[k] = v
	}
	return out, nil
}

// Set stores value under k without expiration.
func (m *Map[K, V]) Set(ctx context.Context, k K, value V) error {
	return m.SetEx(ctx, k, value, 0)
}

// SetEx stores value under k, expiring after ttl. A zero ttl never expires.
func (m *Map[K, V]) SetEx(ctx context.Context, k K, value V, ttl time.Duration) error {
	data, err := m.ser.encode(value)
	if err != nil {
		return m.fail(ctx, "Set", err)
	}
	return m.fail(ctx, "Set", m.driver.Set(ctx, m.field(k), data, ttl))
}

// Update stores every entry in a single round trip.
func (m *Map[K, V]) Update(ctx context.Context, entries map[K]V) error {
	if len(entries) == 0 {
		return nil
	}
	pairs, err := encodeEntries(m.ser, entries, m.field)
	if err != nil {
		return m.fail(ctx, "Update", err)
	}
	return m.fail(ctx, "Update", m.driver.MSet(ctx, pairs))
}

// Delete removes k, reporting a KeyError wrapping ErrNotFound when it is absent.
func (m *Map[K, V]) Delete(ctx context.Context, k K) error {
	n, err := m.driver.Delete(ctx, m.field(k))
	if err != nil {
		return m.fail(ctx, "Delete", err)
	}
	if n == 0 {
		return notFound(m.key, k)
	}
	return nil
}

// Remove deletes every present key among keys and returns how many existed.
func (m *Map[K, V]) Remove(ctx context.Context, keys ...K) (int64, error) {
	fields := make([]string, len(keys))
	for i, k := range keys {
		fields[i] = m.field(k)
	}
	n, err := m.driver.Delete(ctx, fields...)
	return n, m.fail(ctx, "Remove", err)
}

// Pop removes k and returns its value. When callers race, exactly one of
// them gets the value.
func (m *Map[K, V]) Pop(ctx context.Context, k K) (V, error) {
	v, err := m.Get(ctx, k)
	if err != nil {
		return v, err
	}
	if err := m.Delete(ctx, k); err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}

// Contains reports whether k is present.
func (m *Map[K, V]) Contains(ctx context.Context, k K) (bool, error) {
	n, err := m.driver.Exists(ctx, m.field(k))
	return n > 0, m.fail(ctx, "Contains", err)
}

// Incr atomically adds delta to the integer stored under k. A missing key
// counts as zero; a non-integer value fails with ErrTypeMismatch.
func (m *Map[K, V]) Incr(ctx context.Context, k K, delta int64) (int64, error) {
	n, err := m.driver.IncrBy(ctx, m.field(k), delta)
	if err != nil {
		return 0, m.fail(ctx, "Incr", fieldError(m.key, k, err))
	}
	return n, nil
}

// IncrFloat is Incr for floating point values.
func (m *Map[K, V]) IncrFloat(ctx context.Context, k K, delta float64) (float64, error) {
	f, err := m.driver.IncrByFloat(ctx, m.field(k), delta)
	if err != nil {
		return 0, m.fail(ctx, "IncrFloat", fieldError(m.key, k, err))
	}
	return f, nil
}

// TTL returns the remaining time-to-live of k. Returns -1 if it has no expiration.
func (m *Map[K, V]) TTL(ctx context.Context, k K) (time.Duration, error) {
	ttl, err := m.driver.TTL(ctx, m.field(k))
	if errors.Is(err, ErrNotFound) {
		return 0, notFound(m.key, k)
	}
	return ttl, m.fail(ctx, "TTL", err)
}

// Expire sets or updates the time-to-live of k.
func (m *Map[K, V]) Expire(ctx context.Context, k K, ttl time.Duration) error {
	err := m.driver.Expire(ctx, m.field(k), ttl)
	if errors.Is(err, ErrNotFound) {
		return notFound(m.key, k)
	}
	return m.fail(ctx, "Expire", err)
}

// ExpireAt makes k expire at t. A t in the past deletes k.
func (m *Map[K, V]) ExpireAt(ctx context.Context, k K, t time.Time) error {
	err := m.driver.ExpireAt(ctx, m.field(k), t)
	if errors.Is(err, ErrNotFound) {
		return notFound(m.key, k)
	}
	return m.fail(ctx, "ExpireAt", err)
}

// scanFields pages through the entry keys of the map whose key matches
// pattern.
func (m *Map[K, V]) scanFields(pattern string) pager[string] {
	match := escapeGlob(m.key+":") + pattern
	size := m.cfg.pageSize
	return scanPager(func(ctx context.Context, cursor uint64) ([]string, uint64, error) {
		keys, next, err := m.driver.Scan(ctx, match, cursor, size)
		return keys, next, m.fail(ctx, "Scan", err)
	})
}

func (m *Map[K, V]) keyOf(field string) K {
	return K(strings.TrimPrefix(field, m.key+":"))
}

// Keys iterates over the keys in store scan order. Keys written during the
// iteration may or may not be visited.
func (m *Map[K, V]) Keys(ctx context.Context) *Iterator[K] {
	return newIterator(ctx, mapPager(m.scanFields("*"), m.keyOf))
}

// Match iterates over the keys matching a glob pattern (see the store's SCAN
// MATCH). The store filters the keys. A malformed pattern reports
// ErrInvalidPattern.
func (m *Map[K, V]) Match(ctx context.Context, pattern string) (*Iterator[K], error) {
	if !validGlob(pattern) {
		return nil, ErrInvalidPattern
	}
	return newIterator(ctx, mapPager(m.scanFields(pattern), m.keyOf)), nil
}

// Values iterates over the values in store scan order.
func (m *Map[K, V]) Values(ctx context.Context) *Iterator[V] {
	return newIterator(ctx, mapPager(m.items(), entryValue[K, V]))
}

// Items iterates over the entries in store scan order.
func (m *Map[K, V]) Items(ctx context.Context) *Iterator[Entry[K, V]] {
	return newIterator(ctx, m.items())
}

func (m *Map[K, V]) items() pager[Entry[K, V]] {
	next := m.scanFields("*")
	return func(ctx context.Context) ([]Entry[K, V], bool, error) {
		fields, more, err := next(ctx)
		if err != nil || len(fields) == 0 {
			return nil, more, err
		}
		found, err := m.driver.MGet(ctx, fields)
		if err != nil {
			return nil, false, m.fail(ctx, "MGet", err)
		}
		return decodeEntries(m.ser, fields, found, m.keyOf, more)
	}
}

// Clear deletes every entry of the map. The entry keys are collected before
// any of them is deleted, since deleting while scanning may skip keys.
// Entries written during Clear may survive.
func (m *Map[K, V]) Clear(ctx context.Context) error {
	fields, err := Collect(newIterator(ctx, m.scanFields("*")))
	if err != nil {
		return err
	}
	for chunk := range slices.Chunk(fields, int(max(m.cfg.pageSize, 1))) {
		if _, err := m.driver.Delete(ctx, chunk...); err != nil {
			return m.fail(ctx, "Clear", err)
		}
	}
	return nil
}

func entryValue[K, V any](e Entry[K, V]) V {
	return e.Value
}

func encodeEntries[K ~string, V any](ser serializer[V], entries map[K]V, keyFn func(K) string) (map[string][]byte, error) {
	pairs := make(map[string][]byte, len(entries))
	for k, v := range entries {
		data, err := ser.encode(v)
		if err != nil {
			return nil, err
		}
		pairs[keyFn(k)] = data
	}
	return pairs, nil
}

// decodeEntries decodes the values found for fields, in fields order.
// Fields deleted since they were listed are skipped.
func decodeEntries[K ~string, V any](ser serializer[V], fields []string, found map[string][]byte, keyOf func(string) K, more bool) ([]Entry[K, V], bool, error) {
	out := make([]Entry[K, V], 0, len(fields))
	for _, f := range fields {
		data, ok := found[f]
		if !ok {
			continue
		}
		v, err := ser.decode(data)
		if err != nil {
			return nil, false, err
		}
		out = append(out, Entry[K, V]{Key: keyOf(f), Value: v})
	}
	return out, more, nil
}
