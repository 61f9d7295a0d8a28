package redstruct

import (
	"context"
	"errors"
	"strconv"
)

// Dict is a Map that also knows its size. Next to the one key per entry it
// maintains two auxiliary keys:
//
//	prefix:dict.size:name  entry count, adjusted with INCRBY
//	prefix:dict.keys:name  set of present keys, used for membership and iteration
//
// The count only stays exact while every write goes through the Dict. Writing
// entry keys directly desynchronizes it. Iteration walks the key set, so it
// costs one more round trip per page than Hash; prefer Hash when iteration
// is frequent.
type Dict[K ~string, V any] struct {
	base
	ser     serializer[V]
	counter string
	index   string
}

// NewDict returns the Dict named name. It does not touch the store.
func NewDict[K ~string, V any](driver Driver, name string, opts ...Option) *Dict[K, V] {
	return newDict[K, V](TagDict, driver, name, opts)
}

func newDict[K ~string, V any](tag string, driver Driver, name string, opts []Option) *Dict[K, V] {
	b := newBase(tag, name, driver, opts)
	return &Dict[K, V]{
		base:    b,
		ser:     newSerializer[V](b.cfg),
		counter: Key(tag+".size", b.cfg.prefix, name),
		index:   Key(tag+".keys", b.cfg.prefix, name),
	}
}

func (d *Dict[K, V]) field(k K) string {
	return memberKey(d.key, string(k))
}

// track adjusts the counter by the number of keys the index gained or lost.
func (d *Dict[K, V]) track(ctx context.Context, op string, delta int64) error {
	if delta == 0 {
		return nil
	}
	_, err := d.driver.IncrBy(ctx, d.counter, delta)
	return d.fail(ctx, op, err)
}

func (d *Dict[K, V]) lookup(ctx context.Context, k K) (V, bool, error) {
	var zero V
	data, err := d.driver.Get(ctx, d.field(k))
	if errors.Is(err, ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, d.fail(ctx, "Get", err)
	}
	v, err := d.ser.decode(data)
	return v, err == nil, d.fail(ctx, "Get", err)
}

// Get returns the value stored under k, or a KeyError wrapping ErrNotFound.
func (d *Dict[K, V]) Get(ctx context.Context, k K) (V, error) {
	v, ok, err := d.lookup(ctx, k)
	if err == nil && !ok {
		err = notFound(d.key, k)
	}
	return v, err
}

// GetOr returns the value stored under k, or def when it is absent.
func (d *Dict[K, V]) GetOr(ctx context.Context, k K, def V) (V, error) {
	v, ok, err := d.lookup(ctx, k)
	if err == nil && !ok {
		return def, nil
	}
	return v, err
}

// MGet returns the values of the present keys among keys.
func (d *Dict[K, V]) MGet(ctx context.Context, keys ...K) (map[K]V, error) {
	out := make(map[K]V, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	fields := make([]string, len(keys))
	for i, k := range keys {
		fields[i] = d.field(k)
	}
	found, err := d.driver.MGet(ctx, fields)
	if err != nil {
		return nil, d.fail(ctx, "MGet", err)
	}
	for i, k := range keys {
		if data, ok := found[fields[i]]; ok {
			v, err := d.ser.decode(data)
			if err != nil {
				return nil, d.fail(ctx, "MGet", err)
			}
			out[k] = v
		}
	}
	return out, nil
}

// Set stores value under k. The entry and its index membership are written
// in one transaction; the counter follows in a second command.
func (d *Dict[K, V]) Set(ctx context.Context, k K, value V) error {
	data, err := d.ser.encode(value)
	if err != nil {
		return d.fail(ctx, "Set", err)
	}
	var added *Result[int64]
	err = d.driver.Pipeline(ctx, func(b Batch) {
		b.Set(d.field(k), data, 0)
		added = b.SAdd(d.index, []byte(k))
	})
	if err != nil {
		return d.fail(ctx, "Set", err)
	}
	return d.track(ctx, "Set", added.Val())
}

// Update stores every entry in one transaction and adjusts the counter by the
// number of keys that were new.
func (d *Dict[K, V]) Update(ctx context.Context, entries map[K]V) error {
	if len(entries) == 0 {
		return nil
	}
	pairs, err := encodeEntries(d.ser, entries, d.field)
	if err != nil {
		return d.fail(ctx, "Update", err)
	}
	members := make([][]byte, 0, len(entries))
	for k := range entries {
		members = append(members, []byte(k))
	}
	var added *Result[int64]
	err = d.driver.Pipeline(ctx, func(b Batch) {
		b.MSet(pairs)
		added = b.SAdd(d.index, members...)
	})
	if err != nil {
		return d.fail(ctx, "Update", err)
	}
	return d.track(ctx, "Update", added.Val())
}

// Delete removes k, reporting a KeyError wrapping ErrNotFound when it is absent.
func (d *Dict[K, V]) Delete(ctx context.Context, k K) error {
	n, err := d.Remove(ctx, k)
	if err == nil && n == 0 {
		return notFound(d.key, k)
	}
	return err
}

// Remove deletes every present key among keys and returns how many existed.
func (d *Dict[K, V]) Remove(ctx context.Context, keys ...K) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	fields := make([]string, len(keys))
	members := make([][]byte, len(keys))
	for i, k := range keys {
		fields[i] = d.field(k)
		members[i] = []byte(k)
	}
	var deleted, removed *Result[int64]
	err := d.driver.Pipeline(ctx, func(b Batch) {
		deleted = b.Delete(fields...)
		removed = b.SRem(d.index, members...)
	})
	if err != nil {
		return 0, d.fail(ctx, "Remove", err)
	}
	return deleted.Val(), d.track(ctx, "Remove", -removed.Val())
}

// Pop removes k and returns its value. When callers race, exactly one of
// them gets the value.
func (d *Dict[K, V]) Pop(ctx context.Context, k K) (V, error) {
	v, err := d.Get(ctx, k)
	if err != nil {
		return v, err
	}
	if err := d.Delete(ctx, k); err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}

// Contains reports whether k is present.
func (d *Dict[K, V]) Contains(ctx context.Context, k K) (bool, error) {
	n, err := d.driver.Exists(ctx, d.field(k))
	return n > 0, d.fail(ctx, "Contains", err)
}

// Incr atomically adds delta to the integer stored under k. A missing key
// counts as zero and becomes a tracked entry.
func (d *Dict[K, V]) Incr(ctx context.Context, k K, delta int64) (int64, error) {
	var n, added *Result[int64]
	err := d.driver.Pipeline(ctx, func(b Batch) {
		n = b.IncrBy(d.field(k), delta)
		added = b.SAdd(d.index, []byte(k))
	})
	if n != nil && n.Err() != nil {
		return 0, d.fail(ctx, "Incr", fieldError(d.key, k, n.Err()))
	}
	if err != nil {
		return 0, d.fail(ctx, "Incr", err)
	}
	return n.Val(), d.track(ctx, "Incr", added.Val())
}

// IncrFloat is Incr for floating point values.
func (d *Dict[K, V]) IncrFloat(ctx context.Context, k K, delta float64) (float64, error) {
	var f *Result[float64]
	var added *Result[int64]
	err := d.driver.Pipeline(ctx, func(b Batch) {
		f = b.IncrByFloat(d.field(k), delta)
		added = b.SAdd(d.index, []byte(k))
	})
	if f != nil && f.Err() != nil {
		return 0, d.fail(ctx, "IncrFloat", fieldError(d.key, k, f.Err()))
	}
	if err != nil {
		return 0, d.fail(ctx, "IncrFloat", err)
	}
	return f.Val(), d.track(ctx, "IncrFloat", added.Val())
}

// Len returns the tracked entry count in O(1).
func (d *Dict[K, V]) Len(ctx context.Context) (int64, error) {
	data, err := d.driver.Get(ctx, d.counter)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, d.fail(ctx, "Len", err)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, d.fail(ctx, "Len", &KeyError{Key: d.counter, Err: ErrTypeMismatch})
	}
	return n, nil
}

func (d *Dict[K, V]) scanIndex() pager[K] {
	size := d.cfg.pageSize
	return scanPager(func(ctx context.Context, cursor uint64) ([]K, uint64, error) {
		members, next, err := d.driver.SScan(ctx, d.index, "", cursor, size)
		if err != nil {
			return nil, 0, d.fail(ctx, "Scan", err)
		}
		keys := make([]K, len(members))
		for i, m := range members {
			keys[i] = K(m)
		}
		return keys, next, nil
	})
}

// Keys iterates over the tracked keys in index scan order.
func (d *Dict[K, V]) Keys(ctx context.Context) *Iterator[K] {
	return newIterator(ctx, d.scanIndex())
}

// Values iterates over the values in index scan order.
func (d *Dict[K, V]) Values(ctx context.Context) *Iterator[V] {
	return newIterator(ctx, mapPager(d.items(), entryValue[K, V]))
}

// Items iterates over the entries in index scan order.
func (d *Dict[K, V]) Items(ctx context.Context) *Iterator[Entry[K, V]] {
	return newIterator(ctx, d.items())
}

func (d *Dict[K, V]) items() pager[Entry[K, V]] {
	next := d.scanIndex()
	prefix := d.key + ":"
	return func(ctx context.Context) ([]Entry[K, V], bool, error) {
		keys, more, err := next(ctx)
		if err != nil || len(keys) == 0 {
			return nil, more, err
		}
		fields := make([]string, len(keys))
		for i, k := range keys {
			fields[i] = d.field(k)
		}
		found, err := d.driver.MGet(ctx, fields)
		if err != nil {
			return nil, false, d.fail(ctx, "MGet", err)
		}
		return decodeEntries(d.ser, fields, found, func(f string) K {
			return K(f[len(prefix):])
		}, more)
	}
}

// Clear deletes every entry, the key index and the counter.
func (d *Dict[K, V]) Clear(ctx context.Context) error {
	next := d.scanIndex()
	for {
		keys, more, err := next(ctx)
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			fields := make([]string, len(keys))
			for i, k := range keys {
				fields[i] = d.field(k)
			}
			if _, err := d.driver.Delete(ctx, fields...); err != nil {
				return d.fail(ctx, "Clear", err)
			}
		}
		if !more {
			break
		}
	}
	_, err := d.driver.Delete(ctx, d.index, d.counter)
	return d.fail(ctx, "Clear", err)
}
