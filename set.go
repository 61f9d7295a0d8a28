package redstruct

import (
	"context"
	"errors"
	"iter"

	"github.com/google/uuid"
)

// Set is an unordered collection of distinct values stored as a single
// store set. Values are compared by their encoded form.
type Set[V any] struct {
	keyed
	ser  serializer[V]
	opts []Option
}

// NewSet returns the Set named name. It does not touch the store.
func NewSet[V any](driver Driver, name string, opts ...Option) *Set[V] {
	b := newBase(TagSet, name, driver, opts)
	return &Set[V]{keyed: keyed{b}, ser: newSerializer[V](b.cfg), opts: opts}
}

// Add inserts values and returns how many were new.
func (s *Set[V]) Add(ctx context.Context, values ...V) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	data, err := s.ser.encodeAll(values)
	if err != nil {
		return 0, s.fail(ctx, "SAdd", err)
	}
	n, err := s.driver.SAdd(ctx, s.key, data...)
	return n, s.fail(ctx, "SAdd", err)
}

// Update adds every value of seq, one SADD per page.
func (s *Set[V]) Update(ctx context.Context, seq iter.Seq[V]) error {
	for chunk := range chunks(seq, int(s.cfg.pageSize)) {
		if _, err := s.Add(ctx, chunk...); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes values and returns how many were present.
func (s *Set[V]) Remove(ctx context.Context, values ...V) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	data, err := s.ser.encodeAll(values)
	if err != nil {
		return 0, s.fail(ctx, "SRem", err)
	}
	n, err := s.driver.SRem(ctx, s.key, data...)
	return n, s.fail(ctx, "SRem", err)
}

// Contains reports whether value is a member.
func (s *Set[V]) Contains(ctx context.Context, value V) (bool, error) {
	data, err := s.ser.encode(value)
	if err != nil {
		return false, s.fail(ctx, "SIsMember", err)
	}
	ok, err := s.driver.SIsMember(ctx, s.key, data)
	return ok, s.fail(ctx, "SIsMember", err)
}

// Pop removes and returns an arbitrary member. An empty set reports ErrNotFound.
func (s *Set[V]) Pop(ctx context.Context) (V, error) {
	var zero V
	data, err := s.driver.SPop(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return zero, &KeyError{Key: s.key, Err: ErrNotFound}
	}
	if err != nil {
		return zero, s.fail(ctx, "SPop", err)
	}
	v, err := s.ser.decode(data)
	return v, s.fail(ctx, "SPop", err)
}

// Sample returns up to n distinct random members without removing them.
// A negative n returns exactly -n members and may repeat them.
func (s *Set[V]) Sample(ctx context.Context, n int64) ([]V, error) {
	data, err := s.driver.SRandMember(ctx, s.key, n)
	if err != nil {
		return nil, s.fail(ctx, "SRandMember", err)
	}
	values, err := s.ser.decodeAll(data)
	return values, s.fail(ctx, "SRandMember", err)
}

// Members returns every member in one round trip.
func (s *Set[V]) Members(ctx context.Context) ([]V, error) {
	data, err := s.driver.SMembers(ctx, s.key)
	if err != nil {
		return nil, s.fail(ctx, "SMembers", err)
	}
	values, err := s.ser.decodeAll(data)
	return values, s.fail(ctx, "SMembers", err)
}

// Len returns the number of members.
func (s *Set[V]) Len(ctx context.Context) (int64, error) {
	n, err := s.driver.SCard(ctx, s.key)
	return n, s.fail(ctx, "SCard", err)
}

func (s *Set[V]) scan(pattern string) pager[V] {
	size := s.cfg.pageSize
	return scanPager(func(ctx context.Context, cursor uint64) ([]V, uint64, error) {
		data, next, err := s.driver.SScan(ctx, s.key, pattern, cursor, size)
		if err != nil {
			return nil, 0, s.fail(ctx, "SScan", err)
		}
		values, err := s.ser.decodeAll(data)
		return values, next, s.fail(ctx, "SScan", err)
	})
}

// Iter iterates over the members in store scan order.
func (s *Set[V]) Iter(ctx context.Context) *Iterator[V] {
	return newIterator(ctx, s.scan(""))
}

// Match iterates over the members whose encoded form matches a glob pattern.
// With the String codec that is the member itself. A malformed pattern
// reports ErrInvalidPattern.
func (s *Set[V]) Match(ctx context.Context, pattern string) (*Iterator[V], error) {
	if !validGlob(pattern) {
		return nil, ErrInvalidPattern
	}
	return newIterator(ctx, s.scan(pattern)), nil
}

// Move atomically moves value from s to dst. It reports false when value was
// not a member of s; when callers race on the same value exactly one of them
// gets true.
func (s *Set[V]) Move(ctx context.Context, value V, dst *Set[V]) (bool, error) {
	data, err := s.ser.encode(value)
	if err != nil {
		return false, s.fail(ctx, "SMove", err)
	}
	ok, err := s.driver.SMove(ctx, s.key, dst.key, data)
	return ok, s.fail(ctx, "SMove", err)
}

func keysOf[V any](s *Set[V], others []*Set[V]) []string {
	keys := make([]string, 0, len(others)+1)
	keys = append(keys, s.key)
	for _, o := range others {
		keys = append(keys, o.key)
	}
	return keys
}

func (s *Set[V]) combine(ctx context.Context, op SetOp, others []*Set[V]) ([]V, error) {
	data, err := s.driver.SCombine(ctx, op, keysOf(s, others)...)
	if err != nil {
		return nil, s.fail(ctx, op.String(), err)
	}
	values, err := s.ser.decodeAll(data)
	return values, s.fail(ctx, op.String(), err)
}

// Union returns the members of s and others. Nothing is stored.
func (s *Set[V]) Union(ctx context.Context, others ...*Set[V]) ([]V, error) {
	return s.combine(ctx, SetUnion, others)
}

// Intersection returns the members common to s and every other set.
func (s *Set[V]) Intersection(ctx context.Context, others ...*Set[V]) ([]V, error) {
	return s.combine(ctx, SetInter, others)
}

// Difference returns the members of s found in none of others.
func (s *Set[V]) Difference(ctx context.Context, others ...*Set[V]) ([]V, error) {
	return s.combine(ctx, SetDiff, others)
}

// combineValues stages values under a scratch key so the store computes the
// algebra. Staging, computing and cleanup run in one transaction.
func (s *Set[V]) combineValues(ctx context.Context, op SetOp, values []V) ([]V, error) {
	name := op.String()
	if len(values) == 0 {
		if op == SetInter {
			return nil, nil
		}
		return s.Members(ctx)
	}
	data, err := s.ser.encodeAll(values)
	if err != nil {
		return nil, s.fail(ctx, name, err)
	}
	scratch := memberKey(s.key, "tmp:"+uuid.NewString())
	var res *Result[[][]byte]
	err = s.driver.Pipeline(ctx, func(b Batch) {
		b.SAdd(scratch, data...)
		res = b.SCombine(op, s.key, scratch)
		b.Delete(scratch)
	})
	if err != nil {
		return nil, s.fail(ctx, name, err)
	}
	out, err := s.ser.decodeAll(res.Val())
	return out, s.fail(ctx, name, err)
}

// UnionValues returns the members of s together with values.
func (s *Set[V]) UnionValues(ctx context.Context, values ...V) ([]V, error) {
	return s.combineValues(ctx, SetUnion, values)
}

// IntersectionValues returns the members of s that are among values.
func (s *Set[V]) IntersectionValues(ctx context.Context, values ...V) ([]V, error) {
	return s.combineValues(ctx, SetInter, values)
}

// DifferenceValues returns the members of s that are not among values.
func (s *Set[V]) DifferenceValues(ctx context.Context, values ...V) ([]V, error) {
	return s.combineValues(ctx, SetDiff, values)
}

func (s *Set[V]) combineStore(ctx context.Context, op SetOp, name string, others []*Set[V]) (*Set[V], error) {
	dst := NewSet[V](s.driver, name, s.opts...)
	_, err := s.driver.SCombineStore(ctx, op, dst.key, keysOf(s, others)...)
	if err != nil {
		return nil, s.fail(ctx, op.String()+"store", err)
	}
	return dst, nil
}

// UnionStore stores the union of s and others as the Set named name, with
// the options of s, replacing its previous content.
func (s *Set[V]) UnionStore(ctx context.Context, name string, others ...*Set[V]) (*Set[V], error) {
	return s.combineStore(ctx, SetUnion, name, others)
}

// IntersectionStore is UnionStore for the intersection.
func (s *Set[V]) IntersectionStore(ctx context.Context, name string, others ...*Set[V]) (*Set[V], error) {
	return s.combineStore(ctx, SetInter, name, others)
}

// DifferenceStore is UnionStore for the difference.
func (s *Set[V]) DifferenceStore(ctx context.Context, name string, others ...*Set[V]) (*Set[V], error) {
	return s.combineStore(ctx, SetDiff, name, others)
}
