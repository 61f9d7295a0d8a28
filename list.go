package redstruct

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"slices"

	"github.com/google/uuid"
)

// List is a sequence stored as a single store list.
//
// Contains, Index and Count scan the whole list: the store keeps no
// membership index for lists, so they cost O(N) round trips in pages.
type List[V any] struct {
	keyed
	ser serializer[V]
}

// NewList returns the List named name. It does not touch the store.
func NewList[V any](driver Driver, name string, opts ...Option) *List[V] {
	b := newBase(TagList, name, driver, opts)
	return &List[V]{keyed: keyed{b}, ser: newSerializer[V](b.cfg)}
}

// PushLeft prepends values one at a time, so they end up in reverse order
// at the head. It returns the new length.
func (l *List[V]) PushLeft(ctx context.Context, values ...V) (int64, error) {
	data, err := l.ser.encodeAll(values)
	if err != nil {
		return 0, l.fail(ctx, "LPush", err)
	}
	n, err := l.driver.LPush(ctx, l.key, data...)
	return n, l.fail(ctx, "LPush", err)
}

// PushRight appends values and returns the new length.
func (l *List[V]) PushRight(ctx context.Context, values ...V) (int64, error) {
	data, err := l.ser.encodeAll(values)
	if err != nil {
		return 0, l.fail(ctx, "RPush", err)
	}
	n, err := l.driver.RPush(ctx, l.key, data...)
	return n, l.fail(ctx, "RPush", err)
}

// Extend appends every value of seq, one RPUSH per page.
func (l *List[V]) Extend(ctx context.Context, seq iter.Seq[V]) error {
	for chunk := range chunks(seq, int(l.cfg.pageSize)) {
		if _, err := l.PushRight(ctx, chunk...); err != nil {
			return err
		}
	}
	return nil
}

func (l *List[V]) pop(ctx context.Context, op string, left bool) (V, error) {
	var zero V
	var data []byte
	var err error
	if left {
		data, err = l.driver.LPop(ctx, l.key)
	} else {
		data, err = l.driver.RPop(ctx, l.key)
	}
	if errors.Is(err, ErrNotFound) {
		return zero, &KeyError{Key: l.key, Err: ErrNotFound}
	}
	if err != nil {
		return zero, l.fail(ctx, op, err)
	}
	v, err := l.ser.decode(data)
	return v, l.fail(ctx, op, err)
}

// PopLeft removes and returns the head. An empty list reports ErrNotFound.
func (l *List[V]) PopLeft(ctx context.Context) (V, error) {
	return l.pop(ctx, "LPop", true)
}

// PopRight removes and returns the tail. An empty list reports ErrNotFound.
func (l *List[V]) PopRight(ctx context.Context) (V, error) {
	return l.pop(ctx, "RPop", false)
}

// Get returns the element at index; negative indexes count from the end.
// A missing index reports ErrOutOfRange.
func (l *List[V]) Get(ctx context.Context, index int64) (V, error) {
	var zero V
	data, err := l.driver.LIndex(ctx, l.key, index)
	if errors.Is(err, ErrNotFound) {
		return zero, outOfRange(l.key, index)
	}
	if err != nil {
		return zero, l.fail(ctx, "LIndex", err)
	}
	v, err := l.ser.decode(data)
	return v, l.fail(ctx, "LIndex", err)
}

// Set overwrites the element at index. A missing index reports ErrOutOfRange.
func (l *List[V]) Set(ctx context.Context, index int64, value V) error {
	data, err := l.ser.encode(value)
	if err != nil {
		return l.fail(ctx, "LSet", err)
	}
	err = l.driver.LSet(ctx, l.key, index, data)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrOutOfRange) {
		return outOfRange(l.key, index)
	}
	return l.fail(ctx, "LSet", err)
}

// Slice returns the elements in [start, stop). Negative bounds count from the
// end and End selects through the last element. Strides are not supported.
func (l *List[V]) Slice(ctx context.Context, start, stop int) ([]V, error) {
	from, to, ok := halfOpen(start, stop)
	if !ok {
		return nil, nil
	}
	data, err := l.driver.LRange(ctx, l.key, from, to)
	if err != nil {
		return nil, l.fail(ctx, "LRange", err)
	}
	values, err := l.ser.decodeAll(data)
	return values, l.fail(ctx, "LRange", err)
}

// All returns the whole list.
func (l *List[V]) All(ctx context.Context) ([]V, error) {
	return l.Slice(ctx, 0, End)
}

func (l *List[V]) insert(ctx context.Context, op string, before bool, pivot, value V) (int64, error) {
	p, err := l.ser.encode(pivot)
	if err != nil {
		return 0, l.fail(ctx, op, err)
	}
	data, err := l.ser.encode(value)
	if err != nil {
		return 0, l.fail(ctx, op, err)
	}
	n, err := l.driver.LInsert(ctx, l.key, before, p, data)
	if err != nil {
		return 0, l.fail(ctx, op, err)
	}
	if n <= 0 {
		return 0, notFound(l.key, pivot)
	}
	return n, nil
}

// InsertBefore inserts value before the first occurrence of pivot and returns
// the new length. A missing pivot reports ErrNotFound.
func (l *List[V]) InsertBefore(ctx context.Context, pivot, value V) (int64, error) {
	return l.insert(ctx, "LInsert", true, pivot, value)
}

// InsertAfter inserts value after the first occurrence of pivot.
func (l *List[V]) InsertAfter(ctx context.Context, pivot, value V) (int64, error) {
	return l.insert(ctx, "LInsert", false, pivot, value)
}

// RemoveValue removes occurrences of value: the first count from the head
// when count > 0, the last -count from the tail when count < 0, all of them
// when count == 0. It returns how many were removed.
func (l *List[V]) RemoveValue(ctx context.Context, value V, count int64) (int64, error) {
	data, err := l.ser.encode(value)
	if err != nil {
		return 0, l.fail(ctx, "LRem", err)
	}
	n, err := l.driver.LRem(ctx, l.key, count, data)
	return n, l.fail(ctx, "LRem", err)
}

// Trim keeps only the elements in [start, stop).
func (l *List[V]) Trim(ctx context.Context, start, stop int) error {
	from, to, ok := halfOpen(start, stop)
	if !ok {
		return l.Clear(ctx)
	}
	return l.fail(ctx, "LTrim", l.driver.LTrim(ctx, l.key, from, to))
}

// Reverse reverses the list. It reads the whole list, reverses it in memory
// and rewrites it, so it costs O(N) in memory and bandwidth. The rewrite is
// conditional on the list not changing meanwhile; otherwise Reverse returns
// ErrConflict and leaves the list untouched.
func (l *List[V]) Reverse(ctx context.Context) error {
	err := l.driver.Watch(ctx, func(tx Txn) error {
		data, err := tx.LRange(ctx, l.key, 0, -1)
		if err != nil || len(data) < 2 {
			return err
		}
		slices.Reverse(data)
		return tx.Exec(ctx, func(b Batch) {
			b.Delete(l.key)
			b.RPush(l.key, data...)
		})
	}, l.key)
	return l.fail(ctx, "Reverse", err)
}

// PopAt removes and returns the element at index; negative indexes count
// from the end. The store has no remove-by-index, so the element is
// overwritten with a unique marker which is then removed. Both writes run
// under an optimistic lock on the list: a concurrent change makes PopAt
// return ErrConflict and leaves the list untouched.
func (l *List[V]) PopAt(ctx context.Context, index int64) (V, error) {
	var zero V
	var data []byte
	err := l.driver.Watch(ctx, func(tx Txn) error {
		var err error
		data, err = tx.LIndex(ctx, l.key, index)
		if errors.Is(err, ErrNotFound) {
			return outOfRange(l.key, index)
		}
		if err != nil {
			return err
		}
		marker := []byte("redstruct:removed:" + uuid.NewString())
		return tx.Exec(ctx, func(b Batch) {
			b.LSet(l.key, index, marker)
			b.LRem(l.key, 1, marker)
		})
	}, l.key)
	if err != nil {
		return zero, l.fail(ctx, "PopAt", err)
	}
	v, err := l.ser.decode(data)
	return v, l.fail(ctx, "PopAt", err)
}

// DeleteAt removes the element at index. It is guarded like PopAt.
func (l *List[V]) DeleteAt(ctx context.Context, index int64) error {
	_, err := l.PopAt(ctx, index)
	return err
}

// InsertAt inserts value before the element at index. Negative indexes count
// from the end; an index past either end inserts at that end. Inserting in
// the middle rewrites the tail of the list under an optimistic lock, so it
// costs O(N-index) and may return ErrConflict.
func (l *List[V]) InsertAt(ctx context.Context, index int64, value V) error {
	data, err := l.ser.encode(value)
	if err != nil {
		return l.fail(ctx, "InsertAt", err)
	}
	err = l.driver.Watch(ctx, func(tx Txn) error {
		n, err := tx.LLen(ctx, l.key)
		if err != nil {
			return err
		}
		i := index
		if i < 0 {
			i += n
		}
		i = min(max(i, 0), n)
		var tail [][]byte
		if i > 0 && i < n {
			if tail, err = tx.LRange(ctx, l.key, i, -1); err != nil {
				return err
			}
		}
		return tx.Exec(ctx, func(b Batch) {
			switch {
			case i == 0:
				b.LPush(l.key, data)
			case i == n:
				b.RPush(l.key, data)
			default:
				b.LTrim(l.key, 0, i-1)
				b.RPush(l.key, append([][]byte{data}, tail...)...)
			}
		})
	}, l.key)
	return l.fail(ctx, "InsertAt", err)
}

// Len returns the list length.
func (l *List[V]) Len(ctx context.Context) (int64, error) {
	n, err := l.driver.LLen(ctx, l.key)
	return n, l.fail(ctx, "LLen", err)
}

// Index returns the position of the first occurrence of value, or a KeyError
// wrapping ErrNotFound.
func (l *List[V]) Index(ctx context.Context, value V) (int64, error) {
	data, err := l.ser.encode(value)
	if err != nil {
		return 0, l.fail(ctx, "Index", err)
	}
	next := l.rawPager(false)
	var pos int64
	for {
		page, more, err := next(ctx)
		if err != nil {
			return 0, err
		}
		for _, b := range page {
			if bytes.Equal(b, data) {
				return pos, nil
			}
			pos++
		}
		if !more {
			return 0, notFound(l.key, value)
		}
	}
}

// Contains reports whether value occurs in the list.
func (l *List[V]) Contains(ctx context.Context, value V) (bool, error) {
	_, err := l.Index(ctx, value)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Count returns how many times value occurs in the list.
func (l *List[V]) Count(ctx context.Context, value V) (int64, error) {
	data, err := l.ser.encode(value)
	if err != nil {
		return 0, l.fail(ctx, "Count", err)
	}
	next := l.rawPager(false)
	var n int64
	for {
		page, more, err := next(ctx)
		if err != nil {
			return 0, err
		}
		for _, b := range page {
			if bytes.Equal(b, data) {
				n++
			}
		}
		if !more {
			return n, nil
		}
	}
}

// rawPager fetches encoded elements page by page, from the tail when reverse.
func (l *List[V]) rawPager(reverse bool) pager[[]byte] {
	return rangePager(l.cfg.pageSize, func(ctx context.Context, offset, size int64) ([][]byte, error) {
		var page [][]byte
		var err error
		if reverse {
			page, err = l.driver.LRange(ctx, l.key, -(offset + size), -(offset + 1))
			slices.Reverse(page)
		} else {
			page, err = l.driver.LRange(ctx, l.key, offset, offset+size-1)
		}
		return page, l.fail(ctx, "LRange", err)
	})
}

func (l *List[V]) decoded(p pager[[]byte]) pager[V] {
	return func(ctx context.Context) ([]V, bool, error) {
		page, more, err := p(ctx)
		if err != nil {
			return nil, false, err
		}
		values, err := l.ser.decodeAll(page)
		return values, more, l.fail(ctx, "LRange", err)
	}
}

// Iter iterates from head to tail.
func (l *List[V]) Iter(ctx context.Context) *Iterator[V] {
	return newIterator(ctx, l.decoded(l.rawPager(false)))
}

// ReverseIter iterates from tail to head.
func (l *List[V]) ReverseIter(ctx context.Context) *Iterator[V] {
	return newIterator(ctx, l.decoded(l.rawPager(true)))
}

// chunks splits seq into slices of at most size elements.
func chunks[V any](seq iter.Seq[V], size int) iter.Seq[[]V] {
	return func(yield func([]V) bool) {
		chunk := make([]V, 0, size)
		for v := range seq {
			chunk = append(chunk, v)
			if len(chunk) == size {
				if !yield(chunk) {
					return
				}
				chunk = make([]V, 0, size)
			}
		}
		if len(chunk) > 0 {
			yield(chunk)
		}
	}
}
