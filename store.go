package redstruct

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound       = errors.New("redstruct: not found")
	ErrTypeMismatch   = errors.New("redstruct: type mismatch")
	ErrOutOfRange     = fmt.Errorf("%w: index out of range", ErrTypeMismatch)
	ErrSerialization  = errors.New("redstruct: serialization failed")
	ErrConflict       = errors.New("redstruct: transaction conflict")
	ErrInvalidPattern = errors.New("redstruct: invalid pattern")
)

// SetOp selects the set algebra command used by SCombine and SCombineStore.
type SetOp int

const (
	SetUnion SetOp = iota
	SetInter
	SetDiff
)

func (op SetOp) String() string {
	switch op {
	case SetUnion:
		return "union"
	case SetInter:
		return "inter"
	case SetDiff:
		return "diff"
	default:
		return fmt.Sprintf("SetOp(%d)", int(op))
	}
}

// Z is a sorted set member paired with its score.
type Z struct {
	Member []byte
	Score  float64
}

// Field is a hash field paired with its value, in hash storage order.
type Field struct {
	Name  string
	Value []byte
}

// ScoreRange is an inclusive score interval. Use math.Inf for open ends.
type ScoreRange struct {
	Min, Max float64
}

// Commands describes the primitive per-key commands of the backing store.
// Missing keys or members report ErrNotFound, commands against a key holding
// another kind of value report ErrTypeMismatch. Implementations must be thread-safe.
type Commands interface {
	// Keys
	Exists(ctx context.Context, keys ...string) (int64, error)
	Delete(ctx context.Context, keys ...string) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// ExpireAt sets the key to expire at t. A t in the past deletes the key.
	ExpireAt(ctx context.Context, key string, at time.Time) error
	Persist(ctx context.Context, key string) error
	// Scan pages through the keys matching the glob pattern match. A zero
	// returned cursor ends the scan. Keys present for the whole scan are
	// returned at least once; pages may be empty.
	Scan(ctx context.Context, match string, cursor uint64, count int64) ([]string, uint64, error)

	// Scalars
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	MSet(ctx context.Context, pairs map[string][]byte) error
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	IncrByFloat(ctx context.Context, key string, delta float64) (float64, error)

	// Hashes
	HGet(ctx context.Context, key, field string) ([]byte, error)
	HSet(ctx context.Context, key string, fields map[string][]byte) (int64, error)
	HDel(ctx context.Context, key string, fields ...string) (int64, error)
	HExists(ctx context.Context, key, field string) (bool, error)
	HLen(ctx context.Context, key string) (int64, error)
	HKeys(ctx context.Context, key string) ([]string, error)
	HVals(ctx context.Context, key string) ([][]byte, error)
	HMGet(ctx context.Context, key string, fields ...string) ([][]byte, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	HIncrByFloat(ctx context.Context, key, field string, delta float64) (float64, error)
	// HScan, SScan and ZScan page through the elements of one key with the
	// guarantees of Scan. An empty match selects every element.
	HScan(ctx context.Context, key, match string, cursor uint64, count int64) ([]Field, uint64, error)

	// Lists
	LPush(ctx context.Context, key string, values ...[]byte) (int64, error)
	RPush(ctx context.Context, key string, values ...[]byte) (int64, error)
	LPop(ctx context.Context, key string) ([]byte, error)
	RPop(ctx context.Context, key string) ([]byte, error)
	LIndex(ctx context.Context, key string, index int64) ([]byte, error)
	LSet(ctx context.Context, key string, index int64, value []byte) error
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	// LInsert returns the new length, or -1 when pivot is absent.
	LInsert(ctx context.Context, key string, before bool, pivot, value []byte) (int64, error)
	LRem(ctx context.Context, key string, count int64, value []byte) (int64, error)
	LLen(ctx context.Context, key string) (int64, error)
	LTrim(ctx context.Context, key string, start, stop int64) error

	// Sets
	SAdd(ctx context.Context, key string, members ...[]byte) (int64, error)
	SRem(ctx context.Context, key string, members ...[]byte) (int64, error)
	SIsMember(ctx context.Context, key string, member []byte) (bool, error)
	SMembers(ctx context.Context, key string) ([][]byte, error)
	SCard(ctx context.Context, key string) (int64, error)
	SPop(ctx context.Context, key string) ([]byte, error)
	SRandMember(ctx context.Context, key string, count int64) ([][]byte, error)
	SCombine(ctx context.Context, op SetOp, keys ...string) ([][]byte, error)
	SCombineStore(ctx context.Context, op SetOp, dst string, keys ...string) (int64, error)
	SMove(ctx context.Context, src, dst string, member []byte) (bool, error)
	SScan(ctx context.Context, key, match string, cursor uint64, count int64) ([][]byte, uint64, error)

	// Sorted sets
	ZAdd(ctx context.Context, key string, members ...Z) (int64, error)
	ZScore(ctx context.Context, key string, member []byte) (float64, error)
	ZIncrBy(ctx context.Context, key string, member []byte, delta float64) (float64, error)
	ZRem(ctx context.Context, key string, members ...[]byte) (int64, error)
	ZCard(ctx context.Context, key string) (int64, error)
	ZCount(ctx context.Context, key string, r ScoreRange) (int64, error)
	ZRank(ctx context.Context, key string, member []byte, reverse bool) (int64, error)
	ZRange(ctx context.Context, key string, start, stop int64, reverse bool) ([]Z, error)
	// ZRangeByScore returns members within r; count < 0 means no limit.
	ZRangeByScore(ctx context.Context, key string, r ScoreRange, reverse bool, offset, count int64) ([]Z, error)
	ZScan(ctx context.Context, key, match string, cursor uint64, count int64) ([]Z, uint64, error)
}

// Batch queues write commands for a single transactional round trip.
// Results are available once the enclosing Pipeline or Exec call returns.
type Batch interface {
	Set(key string, value []byte, ttl time.Duration)
	MSet(pairs map[string][]byte)
	Delete(keys ...string) *Result[int64]
	IncrBy(key string, delta int64) *Result[int64]
	IncrByFloat(key string, delta float64) *Result[float64]
	LPush(key string, values ...[]byte) *Result[int64]
	RPush(key string, values ...[]byte) *Result[int64]
	LSet(key string, index int64, value []byte)
	LRem(key string, count int64, value []byte) *Result[int64]
	LTrim(key string, start, stop int64)
	SAdd(key string, members ...[]byte) *Result[int64]
	SRem(key string, members ...[]byte) *Result[int64]
	SCombine(op SetOp, keys ...string) *Result[[][]byte]
	ZAdd(key string, members ...Z) *Result[int64]
	ZRem(key string, members ...[]byte) *Result[int64]
}

// Txn is an optimistic transaction opened by Driver.Watch. Reads observe the
// live store; Exec applies the queued batch only if no watched key changed.
type Txn interface {
	Commands
	Exec(ctx context.Context, fn func(b Batch)) error
}

// Driver is a store connection handle. Its pooling and lifecycle belong to the
// caller.
type Driver interface {
	Commands

	// Pipeline runs the queued commands as one MULTI/EXEC transaction.
	Pipeline(ctx context.Context, fn func(b Batch)) error

	// Watch runs fn with an optimistic lock on keys. Exec inside fn reports
	// ErrConflict if any of them was modified after Watch started.
	Watch(ctx context.Context, fn func(tx Txn) error, keys ...string) error
}

// Result holds the reply of a batched command.
type Result[T any] struct {
	val T
	err error
}

func (r *Result[T]) Val() T     { return r.val }
func (r *Result[T]) Err() error { return r.err }
func (r *Result[T]) set(v T, err error) {
	r.val, r.err = v, err
}
