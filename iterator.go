package redstruct

import (
	"context"
	"iter"
	"math"
)

// End as a Slice stop selects through the last element.
const End = math.MaxInt

// Entry is one key/value pair of a dictionary-like structure.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// Item is one sorted set member with its score.
type Item[M any, S Score] struct {
	Member M
	Score  S
}

// pager fetches the next page. more reports whether another call may return
// further elements.
type pager[T any] func(ctx context.Context) (page []T, more bool, err error)

// Iterator walks a structure page by page. It is not safe for concurrent use
// and cannot be rewound; ask the structure for a new one instead.
//
//	it := d.Keys(ctx)
//	for it.Next() {
//		fmt.Println(it.Value())
//	}
//	if err := it.Err(); err != nil {
//		return err
//	}
type Iterator[T any] struct {
	ctx  context.Context
	next pager[T]
	page []T
	pos  int
	done bool
	cur  T
	err  error
}

func newIterator[T any](ctx context.Context, next pager[T]) *Iterator[T] {
	return &Iterator[T]{ctx: ctx, next: next}
}

// Next advances to the next element, fetching a page when needed.
func (it *Iterator[T]) Next() bool {
	for it.pos >= len(it.page) {
		if it.done || it.err != nil {
			return false
		}
		page, more, err := it.next(it.ctx)
		if err != nil {
			it.err = err
			return false
		}
		it.page, it.pos, it.done = page, 0, !more
	}
	it.cur = it.page[it.pos]
	it.pos++
	return true
}

// Value returns the current element.
func (it *Iterator[T]) Value() T {
	return it.cur
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator[T]) Err() error {
	return it.err
}

// Seq adapts the iterator for range loops. Check Err after the loop.
func (it *Iterator[T]) Seq() iter.Seq[T] {
	return func(yield func(T) bool) {
		for it.Next() {
			if !yield(it.Value()) {
				return
			}
		}
	}
}

// Collect drains it into a slice.
func Collect[T any](it *Iterator[T]) ([]T, error) {
	var out []T
	for it.Next() {
		out = append(out, it.Value())
	}
	return out, it.Err()
}

// scanPager pages through a cursor based scan. A zero cursor after the first
// call ends it.
func scanPager[T any](scan func(ctx context.Context, cursor uint64) ([]T, uint64, error)) pager[T] {
	var cursor uint64
	return func(ctx context.Context) ([]T, bool, error) {
		page, next, err := scan(ctx, cursor)
		if err != nil {
			return nil, false, err
		}
		cursor = next
		return page, next != 0, nil
	}
}

// rangePager pages through an index range in steps of size.
func rangePager[T any](size int64, fetch func(ctx context.Context, offset, size int64) ([]T, error)) pager[T] {
	var offset int64
	return func(ctx context.Context) ([]T, bool, error) {
		page, err := fetch(ctx, offset, size)
		if err != nil {
			return nil, false, err
		}
		offset += int64(len(page))
		return page, int64(len(page)) == size, nil
	}
}

// mapPager converts each element of the pages p returns.
func mapPager[T, U any](p pager[T], f func(T) U) pager[U] {
	return func(ctx context.Context) ([]U, bool, error) {
		page, more, err := p(ctx)
		if err != nil {
			return nil, false, err
		}
		out := make([]U, len(page))
		for i, v := range page {
			out[i] = f(v)
		}
		return out, more, nil
	}
}

// halfOpen converts a half-open [start, stop) slice, negative values counting
// from the end, into the inclusive bounds of a store range command.
// ok is false when the slice is empty regardless of length.
func halfOpen(start, stop int) (from, to int64, ok bool) {
	switch {
	case stop == End:
		to = -1
	case stop == 0:
		return 0, 0, false
	default:
		to = int64(stop) - 1
	}
	if stop > 0 && start >= 0 && start >= stop {
		return 0, 0, false
	}
	if stop < 0 && start < 0 && start >= stop {
		return 0, 0, false
	}
	return int64(start), to, true
}
