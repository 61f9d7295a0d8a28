package redstruct

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/sets/hashset"
)

type kind uint8

const (
	kindString kind = iota + 1
	kindHash
	kindList
	kindSet
	kindZSet
)

type entry struct {
	kind   kind
	value  []byte
	hash   *linkedhashmap.Map
	list   *arraylist.List
	set    *hashset.Set
	zset   *zset
	seq    uint64
	expire time.Time
}

// Memory implements Driver with thread-safe in-memory storage. It follows the
// reply semantics of a Redis server closely enough to stand in for one in
// tests and single-process deployments.
type Memory struct {
	mu      sync.RWMutex
	data    map[string]*entry
	watches map[string]*watch
}

// watch counts the modifications of a key while at least one Watch call
// holds it. The record is dropped with the last holder.
type watch struct {
	refs    int
	version uint64
}

// NewMemory creates an in-memory Driver instance.
func NewMemory() *Memory {
	return &Memory{
		data:    make(map[string]*entry),
		watches: make(map[string]*watch),
	}
}

func newEntry(k kind) *entry {
	e := &entry{kind: k}
	switch k {
	case kindHash:
		e.hash = linkedhashmap.New()
	case kindList:
		e.list = arraylist.New()
	case kindSet:
		e.set = hashset.New()
	case kindZSet:
		e.zset = newZSet()
	}
	return e
}

func (e *entry) expired() bool {
	if e.expire.IsZero() {
		return false
	}
	return time.Now().After(e.expire)
}

func (e *entry) empty() bool {
	switch e.kind {
	case kindHash:
		return e.hash.Size() == 0
	case kindList:
		return e.list.Size() == 0
	case kindSet:
		return e.set.Size() == 0
	case kindZSet:
		return len(e.zset.scores) == 0
	}
	return false
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

func clone(src []byte) []byte {
	if src == nil {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}

// peek returns the live entry at key without mutating the map.
// Callers must hold at least the read lock.
func (m *Memory) peek(key string) *entry {
	e, ok := m.data[key]
	if !ok || e.expired() {
		return nil
	}
	return e
}

// read returns the live entry at key if it holds k, nil if the key is absent.
func (m *Memory) read(key string, k kind) (*entry, error) {
	e := m.peek(key)
	if e == nil {
		return nil, nil
	}
	if e.kind != k {
		return nil, ErrTypeMismatch
	}
	return e, nil
}

// write returns the entry at key for mutation, creating it if absent.
// Callers must hold the write lock.
func (m *Memory) write(key string, k kind) (*entry, error) {
	e, ok := m.data[key]
	if ok && e.expired() {
		delete(m.data, key)
		ok = false
	}
	if !ok {
		e = newEntry(k)
		m.data[key] = e
	} else if e.kind != k {
		return nil, ErrTypeMismatch
	}
	m.touch(key)
	return e, nil
}

// settle removes collections left empty by a mutation.
func (m *Memory) settle(key string, e *entry) {
	if e != nil && e.empty() {
		delete(m.data, key)
	}
}

func (m *Memory) drop(key string) bool {
	e, ok := m.data[key]
	if !ok {
		return false
	}
	delete(m.data, key)
	m.touch(key)
	return !e.expired()
}

func (m *Memory) touch(key string) {
	if w := m.watches[key]; w != nil {
		w.version++
	}
}

func (m *Memory) Exists(ctx context.Context, keys ...string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, key := range keys {
		if m.peek(key) != nil {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Delete(ctx context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.del(keys), nil
}

func (m *Memory) del(keys []string) int64 {
	var n int64
	for _, key := range keys {
		if m.drop(key) {
			n++
		}
	}
	return n
}

// TTL returns the remaining time-to-live. Returns -1 if key has no expiration, ErrNotFound if key doesn't exist.
func (m *Memory) TTL(ctx context.Context, key string) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e := m.peek(key)
	if e == nil {
		return 0, ErrNotFound
	}
	if e.expire.IsZero() {
		return -1, nil
	}
	return time.Until(e.expire), nil
}

// Expire sets or updates the TTL for a key. A non-positive ttl deletes the key.
func (m *Memory) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.peek(key)
	if e == nil {
		return ErrNotFound
	}
	if ttl <= 0 {
		m.drop(key)
		return nil
	}
	e.expire = expiry(ttl)
	m.touch(key)
	return nil
}

// ExpireAt sets the key to expire at t. A t in the past deletes the key.
func (m *Memory) ExpireAt(ctx context.Context, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.peek(key)
	if e == nil {
		return ErrNotFound
	}
	if !at.After(time.Now()) {
		m.drop(key)
		return nil
	}
	e.expire = at
	m.touch(key)
	return nil
}

// Persist removes the expiration from a key.
func (m *Memory) Persist(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.peek(key)
	if e == nil {
		return ErrNotFound
	}
	e.expire = time.Time{}
	m.touch(key)
	return nil
}

// Scan returns the live keys matching match in hash order.
func (m *Memory) Scan(ctx context.Context, match string, cursor uint64, count int64) ([]string, uint64, error) {
	m.mu.RLock()
	var keys []string
	for key, e := range m.data {
		if !e.expired() && (match == "" || globMatch(match, key)) {
			keys = append(keys, key)
		}
	}
	m.mu.RUnlock()

	page, next := hashPage(keys, func(key string) string { return key }, cursor, count)
	return page, next, nil
}

// hashPage returns up to count items in the order of the hash of their name,
// starting at the first item whose hash is at least cursor. The returned
// cursor is the hash of the first item left out, so items that stay present
// are returned exactly once however the collection changes between calls.
// Items sharing a hash never straddle two pages.
func hashPage[T any](items []T, name func(T) string, cursor uint64, count int64) ([]T, uint64) {
	if count <= 0 {
		count = defaultPageSize
	}
	type hashed struct {
		sum  uint64
		name string
		item T
	}
	candidates := make([]hashed, 0, len(items))
	for _, item := range items {
		n := name(item)
		if sum := xxhash.Sum64String(n); sum >= cursor {
			candidates = append(candidates, hashed{sum: sum, name: n, item: item})
		}
	}
	slices.SortFunc(candidates, func(a, b hashed) int {
		if c := cmp.Compare(a.sum, b.sum); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})

	n := min(int(count), len(candidates))
	for n > 0 && n < len(candidates) && candidates[n].sum == candidates[n-1].sum {
		n++
	}
	out := make([]T, n)
	for i := range out {
		out[i] = candidates[i].item
	}
	if n == len(candidates) {
		return out, 0
	}
	return out, candidates[n].sum
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.read(key, kindString)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrNotFound
	}
	return clone(e.value), nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(key, value, ttl)
	return nil
}

func (m *Memory) set(key string, value []byte, ttl time.Duration) {
	m.data[key] = &entry{kind: kindString, value: clone(value), expire: expiry(ttl)}
	m.touch(key)
}

// MGet retrieves multiple keys. Keys that are absent or hold a collection are omitted.
func (m *Memory) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if e := m.peek(key); e != nil && e.kind == kindString {
			result[key] = clone(e.value)
		}
	}
	return result, nil
}

// MSet sets multiple key-value pairs.
func (m *Memory) MSet(ctx context.Context, pairs map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mset(pairs)
	return nil
}

func (m *Memory) mset(pairs map[string][]byte) {
	for key, value := range pairs {
		m.set(key, value, 0)
	}
}

// IncrBy atomically increments the integer stored as decimal text at key.
func (m *Memory) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.incrBy(key, delta)
}

func (m *Memory) incrBy(key string, delta int64) (int64, error) {
	e, err := m.write(key, kindString)
	if err != nil {
		return 0, err
	}
	var current int64
	if e.value != nil {
		current, err = strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, ErrTypeMismatch
		}
	}
	current += delta
	e.value = strconv.AppendInt(nil, current, 10)
	return current, nil
}

// IncrByFloat atomically increments the number stored as decimal text at key.
func (m *Memory) IncrByFloat(ctx context.Context, key string, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.incrByFloat(key, delta)
}

func (m *Memory) incrByFloat(key string, delta float64) (float64, error) {
	e, err := m.write(key, kindString)
	if err != nil {
		return 0, err
	}
	var current float64
	if e.value != nil {
		current, err = strconv.ParseFloat(string(e.value), 64)
		if err != nil {
			return 0, ErrTypeMismatch
		}
	}
	current += delta
	e.value = strconv.AppendFloat(nil, current, 'f', -1, 64)
	return current, nil
}

// Pipeline applies the batch under a single write lock.
func (m *Memory) Pipeline(ctx context.Context, fn func(b Batch)) error {
	b := &memoryBatch{}
	fn(b)

	m.mu.Lock()
	defer m.mu.Unlock()
	return b.apply(m)
}

// Watch snapshots the versions of keys; the Txn's Exec compares them again
// under the write lock before applying its batch.
func (m *Memory) Watch(ctx context.Context, fn func(tx Txn) error, keys ...string) error {
	m.mu.Lock()
	watched := make(map[string]uint64, len(keys))
	for _, key := range keys {
		w := m.watches[key]
		if w == nil {
			w = &watch{}
			m.watches[key] = w
		}
		w.refs++
		watched[key] = w.version
	}
	m.mu.Unlock()
	defer m.unwatch(keys)

	return fn(&memoryTxn{Memory: m, watched: watched})
}

func (m *Memory) unwatch(keys []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		if w := m.watches[key]; w != nil {
			if w.refs--; w.refs == 0 {
				delete(m.watches, key)
			}
		}
	}
}

type memoryTxn struct {
	*Memory
	watched map[string]uint64
}

func (tx *memoryTxn) Exec(ctx context.Context, fn func(b Batch)) error {
	b := &memoryBatch{}
	fn(b)

	tx.mu.Lock()
	defer tx.mu.Unlock()
	for key, ver := range tx.watched {
		if tx.watches[key].version != ver {
			return ErrConflict
		}
	}
	return b.apply(tx.Memory)
}

type memoryBatch struct {
	ops []func(m *Memory) error
}

func (b *memoryBatch) apply(m *Memory) error {
	var first error
	for _, op := range b.ops {
		if err := op(m); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (b *memoryBatch) queue(op func(m *Memory) error) {
	b.ops = append(b.ops, op)
}

func (b *memoryBatch) Set(key string, value []byte, ttl time.Duration) {
	value = clone(value)
	b.queue(func(m *Memory) error {
		m.set(key, value, ttl)
		return nil
	})
}

func (b *memoryBatch) MSet(pairs map[string][]byte) {
	b.queue(func(m *Memory) error {
		m.mset(pairs)
		return nil
	})
}

func (b *memoryBatch) Delete(keys ...string) *Result[int64] {
	r := &Result[int64]{}
	b.queue(func(m *Memory) error {
		r.set(m.del(keys), nil)
		return nil
	})
	return r
}

func (b *memoryBatch) IncrBy(key string, delta int64) *Result[int64] {
	r := &Result[int64]{}
	b.queue(func(m *Memory) error {
		r.set(m.incrBy(key, delta))
		return r.err
	})
	return r
}

func (b *memoryBatch) IncrByFloat(key string, delta float64) *Result[float64] {
	r := &Result[float64]{}
	b.queue(func(m *Memory) error {
		r.set(m.incrByFloat(key, delta))
		return r.err
	})
	return r
}

func (b *memoryBatch) LPush(key string, values ...[]byte) *Result[int64] {
	r := &Result[int64]{}
	b.queue(func(m *Memory) error {
		r.set(m.push(key, true, values))
		return r.err
	})
	return r
}

func (b *memoryBatch) LSet(key string, index int64, value []byte) {
	value = clone(value)
	b.queue(func(m *Memory) error {
		return m.lset(key, index, value)
	})
}

func (b *memoryBatch) LRem(key string, count int64, value []byte) *Result[int64] {
	r := &Result[int64]{}
	b.queue(func(m *Memory) error {
		r.set(m.lrem(key, count, value))
		return r.err
	})
	return r
}

func (b *memoryBatch) LTrim(key string, start, stop int64) {
	b.queue(func(m *Memory) error {
		return m.ltrim(key, start, stop)
	})
}

func (b *memoryBatch) RPush(key string, values ...[]byte) *Result[int64] {
	r := &Result[int64]{}
	b.queue(func(m *Memory) error {
		r.set(m.push(key, false, values))
		return r.err
	})
	return r
}

func (b *memoryBatch) SAdd(key string, members ...[]byte) *Result[int64] {
	r := &Result[int64]{}
	b.queue(func(m *Memory) error {
		r.set(m.sadd(key, members))
		return r.err
	})
	return r
}

func (b *memoryBatch) SRem(key string, members ...[]byte) *Result[int64] {
	r := &Result[int64]{}
	b.queue(func(m *Memory) error {
		r.set(m.srem(key, members))
		return r.err
	})
	return r
}

func (b *memoryBatch) SCombine(op SetOp, keys ...string) *Result[[][]byte] {
	r := &Result[[][]byte]{}
	b.queue(func(m *Memory) error {
		r.set(m.scombine(op, keys))
		return r.err
	})
	return r
}

func (b *memoryBatch) ZAdd(key string, members ...Z) *Result[int64] {
	r := &Result[int64]{}
	b.queue(func(m *Memory) error {
		r.set(m.zadd(key, members))
		return r.err
	})
	return r
}

func (b *memoryBatch) ZRem(key string, members ...[]byte) *Result[int64] {
	r := &Result[int64]{}
	b.queue(func(m *Memory) error {
		r.set(m.zrem(key, members))
		return r.err
	})
	return r
}
