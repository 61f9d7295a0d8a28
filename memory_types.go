package redstruct

import (
	"context"
	"math/rand/v2"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/emirpasic/gods/sets/treeset"
)

// Hashes

// hfield is a hash value tagged with its insertion sequence number, which
// serves as the HSCAN cursor.
type hfield struct {
	seq   uint64
	value string
}

// hput stores value under name, keeping the position of an existing field.
func (e *entry) hput(name, value string) bool {
	if v, ok := e.hash.Get(name); ok {
		e.hash.Put(name, hfield{seq: v.(hfield).seq, value: value})
		return false
	}
	e.seq++
	e.hash.Put(name, hfield{seq: e.seq, value: value})
	return true
}

func (e *entry) hget(name string) (string, bool) {
	v, ok := e.hash.Get(name)
	if !ok {
		return "", false
	}
	return v.(hfield).value, true
}

func (m *Memory) HGet(ctx context.Context, key, field string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.read(key, kindHash)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrNotFound
	}
	v, ok := e.hget(field)
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

// HSet stores fields in lexical field order so that insertion order is
// deterministic for a given map.
func (m *Memory) HSet(ctx context.Context, key string, fields map[string][]byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.write(key, kindHash)
	if err != nil {
		return 0, err
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var added int64
	for _, name := range names {
		if e.hput(name, string(fields[name])) {
			added++
		}
	}
	m.settle(key, e)
	return added, nil
}

func (m *Memory) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.read(key, kindHash)
	if err != nil || e == nil {
		return 0, err
	}
	var n int64
	for _, field := range fields {
		if _, ok := e.hash.Get(field); ok {
			e.hash.Remove(field)
			n++
		}
	}
	if n > 0 {
		m.touch(key)
	}
	m.settle(key, e)
	return n, nil
}

func (m *Memory) HExists(ctx context.Context, key, field string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.read(key, kindHash)
	if err != nil || e == nil {
		return false, err
	}
	_, ok := e.hash.Get(field)
	return ok, nil
}

func (m *Memory) HLen(ctx context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.read(key, kindHash)
	if err != nil || e == nil {
		return 0, err
	}
	return int64(e.hash.Size()), nil
}

func (m *Memory) hfields(key string) ([]Field, error) {
	fields, _, err := m.hscan(key, "", 0, -1)
	return fields, err
}

// hscan returns up to count fields matching match in insertion order,
// starting at sequence number cursor, and the sequence number to resume at.
// count < 0 means no limit.
func (m *Memory) hscan(key, match string, cursor uint64, count int64) ([]Field, uint64, error) {
	e, err := m.read(key, kindHash)
	if err != nil || e == nil {
		return nil, 0, err
	}
	var fields []Field
	it := e.hash.Iterator()
	for it.Next() {
		f := it.Value().(hfield)
		if f.seq < cursor {
			continue
		}
		if count >= 0 && int64(len(fields)) == count {
			return fields, f.seq, nil
		}
		name := it.Key().(string)
		if match == "" || globMatch(match, name) {
			fields = append(fields, Field{Name: name, Value: []byte(f.value)})
		}
	}
	return fields, 0, nil
}

func (m *Memory) HKeys(ctx context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fields, err := m.hfields(key)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names, nil
}

func (m *Memory) HVals(ctx context.Context, key string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fields, err := m.hfields(key)
	if err != nil {
		return nil, err
	}
	values := make([][]byte, len(fields))
	for i, f := range fields {
		values[i] = f.Value
	}
	return values, nil
}

// HMGet returns one value per field, nil where the field is absent.
func (m *Memory) HMGet(ctx context.Context, key string, fields ...string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.read(key, kindHash)
	if err != nil {
		return nil, err
	}
	values := make([][]byte, len(fields))
	if e == nil {
		return values, nil
	}
	for i, field := range fields {
		if v, ok := e.hget(field); ok {
			values[i] = []byte(v)
		}
	}
	return values, nil
}

func (m *Memory) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.write(key, kindHash)
	if err != nil {
		return 0, err
	}
	var current int64
	if v, ok := e.hget(field); ok {
		current, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, ErrTypeMismatch
		}
	}
	current += delta
	e.hput(field, strconv.FormatInt(current, 10))
	return current, nil
}

func (m *Memory) HIncrByFloat(ctx context.Context, key, field string, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.write(key, kindHash)
	if err != nil {
		return 0, err
	}
	var current float64
	if v, ok := e.hget(field); ok {
		current, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, ErrTypeMismatch
		}
	}
	current += delta
	e.hput(field, strconv.FormatFloat(current, 'f', -1, 64))
	return current, nil
}

// HScan pages through fields in insertion order. The cursor is the
// insertion sequence number of the next field, so deleting fields between
// calls never skips the remaining ones.
func (m *Memory) HScan(ctx context.Context, key, match string, cursor uint64, count int64) ([]Field, uint64, error) {
	if count <= 0 {
		count = defaultPageSize
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hscan(key, match, cursor, count)
}

// Lists

func (m *Memory) LPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.push(key, true, values)
}

func (m *Memory) RPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.push(key, false, values)
}

func (m *Memory) push(key string, left bool, values [][]byte) (int64, error) {
	e, err := m.write(key, kindList)
	if err != nil {
		return 0, err
	}
	for _, v := range values {
		if left {
			e.list.Insert(0, string(v))
		} else {
			e.list.Add(string(v))
		}
	}
	n := e.list.Size()
	m.settle(key, e)
	return int64(n), nil
}

func (m *Memory) LPop(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pop(key, true)
}

func (m *Memory) RPop(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pop(key, false)
}

func (m *Memory) pop(key string, left bool) ([]byte, error) {
	e, err := m.read(key, kindList)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrNotFound
	}
	i := 0
	if !left {
		i = e.list.Size() - 1
	}
	v, _ := e.list.Get(i)
	e.list.Remove(i)
	m.touch(key)
	m.settle(key, e)
	return []byte(v.(string)), nil
}

// listIndex resolves a possibly negative index against a list of length n.
func listIndex(index int64, n int) (int, bool) {
	if index < 0 {
		index += int64(n)
	}
	if index < 0 || index >= int64(n) {
		return 0, false
	}
	return int(index), true
}

// span resolves an inclusive, possibly negative [start, stop] range the way
// LRANGE and ZRANGE do.
func span(start, stop int64, n int) (int, int, bool) {
	size := int64(n)
	if start < 0 {
		start += size
	}
	if stop < 0 {
		stop += size
	}
	if start < 0 {
		start = 0
	}
	if stop >= size {
		stop = size - 1
	}
	if start > stop || start >= size {
		return 0, 0, false
	}
	return int(start), int(stop), true
}

func (m *Memory) LIndex(ctx context.Context, key string, index int64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.read(key, kindList)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrNotFound
	}
	i, ok := listIndex(index, e.list.Size())
	if !ok {
		return nil, ErrNotFound
	}
	v, _ := e.list.Get(i)
	return []byte(v.(string)), nil
}

func (m *Memory) LSet(ctx context.Context, key string, index int64, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lset(key, index, value)
}

func (m *Memory) lset(key string, index int64, value []byte) error {
	e, err := m.read(key, kindList)
	if err != nil {
		return err
	}
	if e == nil {
		return ErrNotFound
	}
	i, ok := listIndex(index, e.list.Size())
	if !ok {
		return ErrOutOfRange
	}
	e.list.Set(i, string(value))
	m.touch(key)
	return nil
}

func (m *Memory) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.read(key, kindList)
	if err != nil || e == nil {
		return nil, err
	}
	lo, hi, ok := span(start, stop, e.list.Size())
	if !ok {
		return nil, nil
	}
	values := make([][]byte, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		v, _ := e.list.Get(i)
		values = append(values, []byte(v.(string)))
	}
	return values, nil
}

func (m *Memory) LInsert(ctx context.Context, key string, before bool, pivot, value []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.read(key, kindList)
	if err != nil || e == nil {
		return 0, err
	}
	i := e.list.IndexOf(string(pivot))
	if i < 0 {
		return -1, nil
	}
	if !before {
		i++
	}
	e.list.Insert(i, string(value))
	m.touch(key)
	return int64(e.list.Size()), nil
}

// LRem removes count occurrences of value: from the head when count > 0,
// from the tail when count < 0, all of them when count == 0.
func (m *Memory) LRem(ctx context.Context, key string, count int64, value []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lrem(key, count, value)
}

func (m *Memory) lrem(key string, count int64, value []byte) (int64, error) {
	e, err := m.read(key, kindList)
	if err != nil || e == nil {
		return 0, err
	}
	target := string(value)
	limit := count
	if limit < 0 {
		limit = -limit
	}
	var removed int64
	if count >= 0 {
		for i := 0; i < e.list.Size() && (limit == 0 || removed < limit); {
			if v, _ := e.list.Get(i); v.(string) == target {
				e.list.Remove(i)
				removed++
				continue
			}
			i++
		}
	} else {
		for i := e.list.Size() - 1; i >= 0 && removed < limit; i-- {
			if v, _ := e.list.Get(i); v.(string) == target {
				e.list.Remove(i)
				removed++
			}
		}
	}
	if removed > 0 {
		m.touch(key)
	}
	m.settle(key, e)
	return removed, nil
}

func (m *Memory) LLen(ctx context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.read(key, kindList)
	if err != nil || e == nil {
		return 0, err
	}
	return int64(e.list.Size()), nil
}

func (m *Memory) LTrim(ctx context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ltrim(key, start, stop)
}

func (m *Memory) ltrim(key string, start, stop int64) error {
	e, err := m.read(key, kindList)
	if err != nil || e == nil {
		return err
	}
	m.touch(key)
	lo, hi, ok := span(start, stop, e.list.Size())
	if !ok {
		m.drop(key)
		return nil
	}
	kept := e.list.Values()[lo : hi+1]
	e.list.Clear()
	e.list.Add(kept...)
	return nil
}

// Sets

func (m *Memory) SAdd(ctx context.Context, key string, members ...[]byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sadd(key, members)
}

func (m *Memory) sadd(key string, members [][]byte) (int64, error) {
	e, err := m.write(key, kindSet)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, member := range members {
		if !e.set.Contains(string(member)) {
			e.set.Add(string(member))
			n++
		}
	}
	m.settle(key, e)
	return n, nil
}

func (m *Memory) SRem(ctx context.Context, key string, members ...[]byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.srem(key, members)
}

func (m *Memory) srem(key string, members [][]byte) (int64, error) {
	e, err := m.read(key, kindSet)
	if err != nil || e == nil {
		return 0, err
	}
	var n int64
	for _, member := range members {
		if e.set.Contains(string(member)) {
			e.set.Remove(string(member))
			n++
		}
	}
	if n > 0 {
		m.touch(key)
	}
	m.settle(key, e)
	return n, nil
}

func (m *Memory) SIsMember(ctx context.Context, key string, member []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.read(key, kindSet)
	if err != nil || e == nil {
		return false, err
	}
	return e.set.Contains(string(member)), nil
}

func (m *Memory) smembers(key string) ([]string, error) {
	e, err := m.read(key, kindSet)
	if err != nil || e == nil {
		return nil, err
	}
	members := make([]string, 0, e.set.Size())
	for _, v := range e.set.Values() {
		members = append(members, v.(string))
	}
	sort.Strings(members)
	return members, nil
}

func (m *Memory) SMembers(ctx context.Context, key string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members, err := m.smembers(key)
	return toBytes(members), err
}

func (m *Memory) SCard(ctx context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.read(key, kindSet)
	if err != nil || e == nil {
		return 0, err
	}
	return int64(e.set.Size()), nil
}

func (m *Memory) SPop(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, err := m.smembers(key)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrNotFound
	}
	member := members[rand.IntN(len(members))]
	e := m.data[key]
	e.set.Remove(member)
	m.touch(key)
	m.settle(key, e)
	return []byte(member), nil
}

// SRandMember returns up to count distinct members, or exactly -count members
// with possible repeats when count is negative.
func (m *Memory) SRandMember(ctx context.Context, key string, count int64) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members, err := m.smembers(key)
	if err != nil || len(members) == 0 {
		return nil, err
	}
	if count < 0 {
		out := make([][]byte, -count)
		for i := range out {
			out[i] = []byte(members[rand.IntN(len(members))])
		}
		return out, nil
	}
	rand.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
	if count < int64(len(members)) {
		members = members[:count]
	}
	return toBytes(members), nil
}

func (m *Memory) SCombine(ctx context.Context, op SetOp, keys ...string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scombine(op, keys)
}

func (m *Memory) scombine(op SetOp, keys []string) ([][]byte, error) {
	var acc map[string]struct{}
	for i, key := range keys {
		members, err := m.smembers(key)
		if err != nil {
			return nil, err
		}
		cur := make(map[string]struct{}, len(members))
		for _, member := range members {
			cur[member] = struct{}{}
		}
		if i == 0 {
			acc = cur
			continue
		}
		switch op {
		case SetUnion:
			for member := range cur {
				acc[member] = struct{}{}
			}
		case SetInter:
			for member := range acc {
				if _, ok := cur[member]; !ok {
					delete(acc, member)
				}
			}
		case SetDiff:
			for member := range cur {
				delete(acc, member)
			}
		}
	}
	out := make([]string, 0, len(acc))
	for member := range acc {
		out = append(out, member)
	}
	sort.Strings(out)
	return toBytes(out), nil
}

func (m *Memory) SCombineStore(ctx context.Context, op SetOp, dst string, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, err := m.scombine(op, keys)
	if err != nil {
		return 0, err
	}
	m.drop(dst)
	if len(members) == 0 {
		return 0, nil
	}
	return m.sadd(dst, members)
}

// SMove moves member from src to dst under one lock, so concurrent moves of
// the same member succeed exactly once.
func (m *Memory) SMove(ctx context.Context, src, dst string, member []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, err := m.read(src, kindSet)
	if err != nil {
		return false, err
	}
	if _, err := m.read(dst, kindSet); err != nil {
		return false, err
	}
	if from == nil || !from.set.Contains(string(member)) {
		return false, nil
	}
	from.set.Remove(string(member))
	m.touch(src)
	m.settle(src, from)
	if _, err := m.sadd(dst, [][]byte{member}); err != nil {
		return false, err
	}
	return true, nil
}

// SScan pages through members in hash order; see Scan.
func (m *Memory) SScan(ctx context.Context, key, match string, cursor uint64, count int64) ([][]byte, uint64, error) {
	m.mu.RLock()
	members, err := m.smembers(key)
	m.mu.RUnlock()
	if err != nil {
		return nil, 0, err
	}
	if match != "" {
		members = slices.DeleteFunc(members, func(member string) bool { return !globMatch(match, member) })
	}
	out, next := hashPage(members, func(member string) string { return member }, cursor, count)
	return toBytes(out), next, nil
}

func toBytes(ss []string) [][]byte {
	if ss == nil {
		return nil
	}
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

// Sorted sets

type zmember struct {
	member string
	score  float64
}

// zcompare orders by score, then lexically by member.
func zcompare(a, b interface{}) int {
	x, y := a.(zmember), b.(zmember)
	switch {
	case x.score < y.score:
		return -1
	case x.score > y.score:
		return 1
	}
	return strings.Compare(x.member, y.member)
}

// zset keeps members ordered in a tree. Reads work on a sorted snapshot of
// the tree that is built on first use after a write, which makes rank and
// range lookups binary searches on a set that is read more than written.
type zset struct {
	scores map[string]float64
	tree   *treeset.Set
	// snapshot is only cleared under the driver's write lock; readers holding
	// the read lock may race to build it, with identical results.
	snapshot atomic.Pointer[[]zmember]
}

func newZSet() *zset {
	return &zset{scores: make(map[string]float64), tree: treeset.NewWith(zcompare)}
}

// put reports whether member is new.
func (z *zset) put(member string, score float64) bool {
	old, exists := z.scores[member]
	if exists {
		if old == score {
			return false
		}
		z.tree.Remove(zmember{member, old})
	}
	z.scores[member] = score
	z.tree.Add(zmember{member, score})
	z.snapshot.Store(nil)
	return !exists
}

func (z *zset) remove(member string) bool {
	score, ok := z.scores[member]
	if !ok {
		return false
	}
	delete(z.scores, member)
	z.tree.Remove(zmember{member, score})
	z.snapshot.Store(nil)
	return true
}

// sorted returns the members in ascending order. The slice must not be modified.
func (z *zset) sorted() []zmember {
	if p := z.snapshot.Load(); p != nil {
		return *p
	}
	out := make([]zmember, 0, z.tree.Size())
	it := z.tree.Iterator()
	for it.Next() {
		out = append(out, it.Value().(zmember))
	}
	z.snapshot.Store(&out)
	return out
}

// scoreBounds returns the half-open index range of the members scored within r.
func (z *zset) scoreBounds(r ScoreRange) (lo, hi int) {
	all := z.sorted()
	lo = sort.Search(len(all), func(i int) bool { return all[i].score >= r.Min })
	hi = sort.Search(len(all), func(i int) bool { return all[i].score > r.Max })
	return lo, max(lo, hi)
}

func (zm zmember) z() Z {
	return Z{Member: []byte(zm.member), Score: zm.score}
}

func (m *Memory) ZAdd(ctx context.Context, key string, members ...Z) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.zadd(key, members)
}

func (m *Memory) zadd(key string, members []Z) (int64, error) {
	e, err := m.write(key, kindZSet)
	if err != nil {
		return 0, err
	}
	var added int64
	for _, z := range members {
		if e.zset.put(string(z.Member), z.Score) {
			added++
		}
	}
	m.settle(key, e)
	return added, nil
}

func (m *Memory) ZScore(ctx context.Context, key string, member []byte) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.read(key, kindZSet)
	if err != nil {
		return 0, err
	}
	if e == nil {
		return 0, ErrNotFound
	}
	score, ok := e.zset.scores[string(member)]
	if !ok {
		return 0, ErrNotFound
	}
	return score, nil
}

func (m *Memory) ZIncrBy(ctx context.Context, key string, member []byte, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.write(key, kindZSet)
	if err != nil {
		return 0, err
	}
	score := e.zset.scores[string(member)] + delta
	e.zset.put(string(member), score)
	return score, nil
}

func (m *Memory) ZRem(ctx context.Context, key string, members ...[]byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.zrem(key, members)
}

func (m *Memory) zrem(key string, members [][]byte) (int64, error) {
	e, err := m.read(key, kindZSet)
	if err != nil || e == nil {
		return 0, err
	}
	var n int64
	for _, member := range members {
		if e.zset.remove(string(member)) {
			n++
		}
	}
	if n > 0 {
		m.touch(key)
	}
	m.settle(key, e)
	return n, nil
}

func (m *Memory) ZCard(ctx context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.read(key, kindZSet)
	if err != nil || e == nil {
		return 0, err
	}
	return int64(len(e.zset.scores)), nil
}

func (m *Memory) ZCount(ctx context.Context, key string, r ScoreRange) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.read(key, kindZSet)
	if err != nil || e == nil {
		return 0, err
	}
	lo, hi := e.zset.scoreBounds(r)
	return int64(hi - lo), nil
}

func (m *Memory) ZRank(ctx context.Context, key string, member []byte, reverse bool) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.read(key, kindZSet)
	if err != nil {
		return 0, err
	}
	if e == nil {
		return 0, ErrNotFound
	}
	score, ok := e.zset.scores[string(member)]
	if !ok {
		return 0, ErrNotFound
	}
	target := zmember{string(member), score}
	all := e.zset.sorted()
	rank := int64(sort.Search(len(all), func(i int) bool { return zcompare(all[i], target) >= 0 }))
	if reverse {
		rank = int64(len(all)) - 1 - rank
	}
	return rank, nil
}

func (m *Memory) ZRange(ctx context.Context, key string, start, stop int64, reverse bool) ([]Z, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.read(key, kindZSet)
	if err != nil || e == nil {
		return nil, err
	}
	all := e.zset.sorted()
	lo, hi, ok := span(start, stop, len(all))
	if !ok {
		return nil, nil
	}
	out := make([]Z, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		j := i
		if reverse {
			j = len(all) - 1 - i
		}
		out = append(out, all[j].z())
	}
	return out, nil
}

func (m *Memory) ZRangeByScore(ctx context.Context, key string, r ScoreRange, reverse bool, offset, count int64) ([]Z, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.read(key, kindZSet)
	if err != nil || e == nil {
		return nil, err
	}
	all := e.zset.sorted()
	lo, hi := e.zset.scoreBounds(r)
	n := int64(hi - lo)
	if offset >= n {
		return nil, nil
	}
	n -= offset
	if count >= 0 {
		n = min(n, count)
	}
	out := make([]Z, 0, n)
	for i := int64(0); i < n; i++ {
		if reverse {
			out = append(out, all[int64(hi)-1-offset-i].z())
		} else {
			out = append(out, all[int64(lo)+offset+i].z())
		}
	}
	return out, nil
}

// ZScan pages through members in hash order; see Scan.
func (m *Memory) ZScan(ctx context.Context, key, match string, cursor uint64, count int64) ([]Z, uint64, error) {
	m.mu.RLock()
	e, err := m.read(key, kindZSet)
	if err != nil || e == nil {
		m.mu.RUnlock()
		return nil, 0, err
	}
	var members []Z
	for member, score := range e.zset.scores {
		if match == "" || globMatch(match, member) {
			members = append(members, Z{Member: []byte(member), Score: score})
		}
	}
	m.mu.RUnlock()

	out, next := hashPage(members, func(z Z) string { return string(z.Member) }, cursor, count)
	return out, next, nil
}
