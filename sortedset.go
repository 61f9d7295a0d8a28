package redstruct

import (
	"context"
	"errors"
	"math"
)

// Score is the numeric type a SortedSet reports scores as. The store keeps
// every score as a float64; integer score types truncate.
type Score interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// AnyScore matches every score.
var AnyScore = ScoreRange{Min: math.Inf(-1), Max: math.Inf(1)}

// Between returns the inclusive range [min, max].
func Between[S Score](min, max S) ScoreRange {
	return ScoreRange{Min: float64(min), Max: float64(max)}
}

// SortedSet is a collection of unique members ordered by score, ties broken
// by the byte order of the encoded member. Members can be addressed by value
// or by rank, the 0-based position in that order.
//
// Only members pass through the codec. Scores are stored natively so the
// store can order by them.
type SortedSet[M comparable, S Score] struct {
	keyed
	ser serializer[M]
}

// NewSortedSet returns the SortedSet named name. It does not touch the store.
// WithReversed makes ranks, Slice and iteration use descending order.
func NewSortedSet[M comparable, S Score](driver Driver, name string, opts ...Option) *SortedSet[M, S] {
	b := newBase(TagSortedSet, name, driver, opts)
	return &SortedSet[M, S]{keyed: keyed{b}, ser: newSerializer[M](b.cfg)}
}

func (z *SortedSet[M, S]) item(e Z) (Item[M, S], error) {
	m, err := z.ser.decode(e.Member)
	return Item[M, S]{Member: m, Score: S(e.Score)}, err
}

func (z *SortedSet[M, S]) items(ctx context.Context, op string, zs []Z) ([]Item[M, S], error) {
	out := make([]Item[M, S], len(zs))
	for i, e := range zs {
		it, err := z.item(e)
		if err != nil {
			return nil, z.fail(ctx, op, err)
		}
		out[i] = it
	}
	return out, nil
}

// Add inserts member or updates its score. It reports whether member was new.
func (z *SortedSet[M, S]) Add(ctx context.Context, member M, score S) (bool, error) {
	n, err := z.Update(ctx, map[M]S{member: score})
	return n > 0, err
}

// Update adds or rescores every member in one command and returns how many
// were new.
func (z *SortedSet[M, S]) Update(ctx context.Context, members map[M]S) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	zs := make([]Z, 0, len(members))
	for m, s := range members {
		data, err := z.ser.encode(m)
		if err != nil {
			return 0, z.fail(ctx, "ZAdd", err)
		}
		zs = append(zs, Z{Member: data, Score: float64(s)})
	}
	n, err := z.driver.ZAdd(ctx, z.key, zs...)
	return n, z.fail(ctx, "ZAdd", err)
}

// Remove deletes members and returns how many were present.
func (z *SortedSet[M, S]) Remove(ctx context.Context, members ...M) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	data, err := z.ser.encodeAll(members)
	if err != nil {
		return 0, z.fail(ctx, "ZRem", err)
	}
	n, err := z.driver.ZRem(ctx, z.key, data...)
	return n, z.fail(ctx, "ZRem", err)
}

// GetByMember returns the score of member, or a KeyError wrapping
// ErrNotFound naming the member.
func (z *SortedSet[M, S]) GetByMember(ctx context.Context, member M) (S, error) {
	data, err := z.ser.encode(member)
	if err != nil {
		return 0, z.fail(ctx, "ZScore", err)
	}
	f, err := z.driver.ZScore(ctx, z.key, data)
	if errors.Is(err, ErrNotFound) {
		return 0, notFound(z.key, member)
	}
	if err != nil {
		return 0, z.fail(ctx, "ZScore", err)
	}
	return S(f), nil
}

// Contains reports whether member is present.
func (z *SortedSet[M, S]) Contains(ctx context.Context, member M) (bool, error) {
	_, err := z.GetByMember(ctx, member)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Incr atomically adds delta to the score of member, inserting it with score
// delta when absent, and returns the new score.
func (z *SortedSet[M, S]) Incr(ctx context.Context, member M, delta S) (S, error) {
	data, err := z.ser.encode(member)
	if err != nil {
		return 0, z.fail(ctx, "ZIncrBy", err)
	}
	f, err := z.driver.ZIncrBy(ctx, z.key, data, float64(delta))
	return S(f), z.fail(ctx, "ZIncrBy", err)
}

// Decr atomically subtracts delta from the score of member.
func (z *SortedSet[M, S]) Decr(ctx context.Context, member M, delta S) (S, error) {
	data, err := z.ser.encode(member)
	if err != nil {
		return 0, z.fail(ctx, "ZIncrBy", err)
	}
	f, err := z.driver.ZIncrBy(ctx, z.key, data, -float64(delta))
	return S(f), z.fail(ctx, "ZIncrBy", err)
}

func (z *SortedSet[M, S]) rank(ctx context.Context, member M, reverse bool) (int64, error) {
	data, err := z.ser.encode(member)
	if err != nil {
		return 0, z.fail(ctx, "ZRank", err)
	}
	r, err := z.driver.ZRank(ctx, z.key, data, reverse)
	if errors.Is(err, ErrNotFound) {
		return 0, notFound(z.key, member)
	}
	return r, z.fail(ctx, "ZRank", err)
}

// Rank returns the position of member in iteration order.
func (z *SortedSet[M, S]) Rank(ctx context.Context, member M) (int64, error) {
	return z.rank(ctx, member, z.cfg.reversed)
}

// RevRank returns the position of member counted from the other end.
func (z *SortedSet[M, S]) RevRank(ctx context.Context, member M) (int64, error) {
	return z.rank(ctx, member, !z.cfg.reversed)
}

// Len returns the number of members.
func (z *SortedSet[M, S]) Len(ctx context.Context) (int64, error) {
	n, err := z.driver.ZCard(ctx, z.key)
	return n, z.fail(ctx, "ZCard", err)
}

// Count returns the number of members with a score within r.
func (z *SortedSet[M, S]) Count(ctx context.Context, r ScoreRange) (int64, error) {
	n, err := z.driver.ZCount(ctx, z.key, r)
	return n, z.fail(ctx, "ZCount", err)
}

// At returns the member at rank; negative ranks count from the end. A missing
// rank reports ErrOutOfRange.
func (z *SortedSet[M, S]) At(ctx context.Context, rank int64) (Item[M, S], error) {
	e, err := z.at(ctx, z.driver, rank)
	if err != nil {
		return Item[M, S]{}, err
	}
	it, err := z.item(e)
	return it, z.fail(ctx, "ZRange", err)
}

func (z *SortedSet[M, S]) at(ctx context.Context, c Commands, rank int64) (Z, error) {
	zs, err := c.ZRange(ctx, z.key, rank, rank, z.cfg.reversed)
	if err != nil {
		return Z{}, z.fail(ctx, "ZRange", err)
	}
	if len(zs) == 0 {
		return Z{}, outOfRange(z.key, rank)
	}
	return zs[0], nil
}

// Slice returns the members with rank in [start, stop). Negative bounds count
// from the end and End selects through the last member. The store only
// serves contiguous ranges, so there is no stride.
func (z *SortedSet[M, S]) Slice(ctx context.Context, start, stop int) ([]Item[M, S], error) {
	from, to, ok := halfOpen(start, stop)
	if !ok {
		return nil, nil
	}
	zs, err := z.driver.ZRange(ctx, z.key, from, to, z.cfg.reversed)
	if err != nil {
		return nil, z.fail(ctx, "ZRange", err)
	}
	return z.items(ctx, "ZRange", zs)
}

// SetByRank sets the score of the member currently at rank. The lookup and
// the write run under an optimistic lock on the set: if another caller
// changes the set in between, nothing is written and ErrConflict is returned
// for the caller to retry.
func (z *SortedSet[M, S]) SetByRank(ctx context.Context, rank int64, score S) error {
	err := z.driver.Watch(ctx, func(tx Txn) error {
		e, err := z.at(ctx, tx, rank)
		if err != nil {
			return err
		}
		return tx.Exec(ctx, func(b Batch) {
			b.ZAdd(z.key, Z{Member: e.Member, Score: float64(score)})
		})
	}, z.key)
	return z.fail(ctx, "SetByRank", err)
}

// DeleteByRank removes the member currently at rank and returns it. It is
// guarded like SetByRank.
func (z *SortedSet[M, S]) DeleteByRank(ctx context.Context, rank int64) (M, error) {
	var removed Z
	err := z.driver.Watch(ctx, func(tx Txn) error {
		e, err := z.at(ctx, tx, rank)
		if err != nil {
			return err
		}
		removed = e
		return tx.Exec(ctx, func(b Batch) {
			b.ZRem(z.key, e.Member)
		})
	}, z.key)
	if err != nil {
		var zero M
		return zero, z.fail(ctx, "DeleteByRank", err)
	}
	m, err := z.ser.decode(removed.Member)
	return m, z.fail(ctx, "DeleteByRank", err)
}

func (z *SortedSet[M, S]) rankPager(reverse bool) pager[Item[M, S]] {
	return rangePager(z.cfg.pageSize, func(ctx context.Context, offset, size int64) ([]Item[M, S], error) {
		zs, err := z.driver.ZRange(ctx, z.key, offset, offset+size-1, reverse)
		if err != nil {
			return nil, z.fail(ctx, "ZRange", err)
		}
		return z.items(ctx, "ZRange", zs)
	})
}

// Items iterates over members and scores in rank order, one page per round
// trip.
func (z *SortedSet[M, S]) Items(ctx context.Context) *Iterator[Item[M, S]] {
	return newIterator(ctx, z.rankPager(z.cfg.reversed))
}

// Keys iterates over the members in rank order.
func (z *SortedSet[M, S]) Keys(ctx context.Context) *Iterator[M] {
	return newIterator(ctx, mapPager(z.rankPager(z.cfg.reversed), func(it Item[M, S]) M { return it.Member }))
}

// Values iterates over the scores in rank order.
func (z *SortedSet[M, S]) Values(ctx context.Context) *Iterator[S] {
	return newIterator(ctx, mapPager(z.rankPager(z.cfg.reversed), func(it Item[M, S]) S { return it.Score }))
}

// ItemsByScore iterates over the members with a score within r, ascending or,
// when reverse, descending.
func (z *SortedSet[M, S]) ItemsByScore(ctx context.Context, r ScoreRange, reverse bool) *Iterator[Item[M, S]] {
	return newIterator(ctx, rangePager(z.cfg.pageSize, func(ctx context.Context, offset, size int64) ([]Item[M, S], error) {
		zs, err := z.driver.ZRangeByScore(ctx, z.key, r, reverse, offset, size)
		if err != nil {
			return nil, z.fail(ctx, "ZRangeByScore", err)
		}
		return z.items(ctx, "ZRangeByScore", zs)
	}))
}

// Match iterates over the members whose encoded form matches a glob pattern,
// in store scan order rather than rank order. A malformed pattern reports
// ErrInvalidPattern.
func (z *SortedSet[M, S]) Match(ctx context.Context, pattern string) (*Iterator[Item[M, S]], error) {
	if !validGlob(pattern) {
		return nil, ErrInvalidPattern
	}
	size := z.cfg.pageSize
	return newIterator(ctx, scanPager(func(ctx context.Context, cursor uint64) ([]Item[M, S], uint64, error) {
		zs, next, err := z.driver.ZScan(ctx, z.key, pattern, cursor, size)
		if err != nil {
			return nil, 0, z.fail(ctx, "ZScan", err)
		}
		items, err := z.items(ctx, "ZScan", zs)
		return items, next, err
	})), nil
}
