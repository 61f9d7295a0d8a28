package redstruct

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Driver on top of a go-redis client. Pooling, retries and
// timeouts are configured on the client.
type Redis struct {
	redisCommands
	client redis.UniversalClient
}

// NewRedis wraps an existing go-redis client.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{redisCommands: redisCommands{c: client}, client: client}
}

// NewRedisFromURL connects using a redis:// or rediss:// URL.
func NewRedisFromURL(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redstruct: parse redis url: %w", err)
	}
	return NewRedis(redis.NewClient(opts)), nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Pipeline(ctx context.Context, fn func(b Batch)) error {
	return pipeline(ctx, r.client, fn)
}

func (r *Redis) Watch(ctx context.Context, fn func(tx Txn) error, keys ...string) error {
	var fnErr error
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		fnErr = fn(&redisTxn{redisCommands: redisCommands{c: tx}, tx: tx})
		return fnErr
	}, keys...)
	if err != nil && err == fnErr {
		// Already translated by the Txn.
		return err
	}
	return mapErr(err)
}

type redisTxn struct {
	redisCommands
	tx *redis.Tx
}

func (t *redisTxn) Exec(ctx context.Context, fn func(b Batch)) error {
	return pipeline(ctx, t.tx, fn)
}

type txPipeliner interface {
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

func pipeline(ctx context.Context, c txPipeliner, fn func(b Batch)) error {
	b := &redisBatch{ctx: ctx}
	_, err := c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		b.p = p
		fn(b)
		return nil
	})
	for _, resolve := range b.resolve {
		resolve()
	}
	return mapErr(err)
}

// mapErr translates go-redis replies into the package sentinels. Anything
// else is a store failure and is returned unchanged.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "WRONGTYPE"),
		strings.Contains(msg, "not an integer"),
		strings.Contains(msg, "not a valid float"),
		strings.Contains(msg, "increment or decrement would overflow"):
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	case strings.Contains(msg, "index out of range"):
		return fmt.Errorf("%w: %v", ErrOutOfRange, err)
	case strings.Contains(msg, "no such key"):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func formatScore(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "+inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func args(values [][]byte) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// pairArgs flattens pairs into alternating key/value arguments.
func pairArgs(pairs map[string][]byte) []interface{} {
	out := make([]interface{}, 0, 2*len(pairs))
	for k, v := range pairs {
		out = append(out, k, v)
	}
	return out
}

func strs(values []string) [][]byte {
	return toBytes(values)
}

func fromZ(zs []redis.Z) []Z {
	out := make([]Z, len(zs))
	for i, z := range zs {
		out[i] = Z{Member: []byte(z.Member.(string)), Score: z.Score}
	}
	return out
}

func toZ(members []Z) []redis.Z {
	out := make([]redis.Z, len(members))
	for i, z := range members {
		out[i] = redis.Z{Score: z.Score, Member: z.Member}
	}
	return out
}

// redisCommands implements Commands over any go-redis command set, so the
// same code serves plain clients and WATCH transactions.
type redisCommands struct {
	c redis.Cmdable
}

func (r redisCommands) Exists(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.c.Exists(ctx, keys...).Result()
	return n, mapErr(err)
}

func (r redisCommands) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.c.Del(ctx, keys...).Result()
	return n, mapErr(err)
}

// TTL returns -1 for keys without expiration and ErrNotFound for missing keys.
func (r redisCommands) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.c.PTTL(ctx, key).Result()
	if err != nil {
		return 0, mapErr(err)
	}
	switch ttl {
	case -2:
		return 0, ErrNotFound
	case -1:
		return -1, nil
	}
	return ttl, nil
}

func (r redisCommands) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := r.c.PExpire(ctx, key, ttl).Result()
	if err != nil {
		return mapErr(err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r redisCommands) Persist(ctx context.Context, key string) error {
	ok, err := r.c.Persist(ctx, key).Result()
	if err != nil {
		return mapErr(err)
	}
	if !ok {
		n, err := r.c.Exists(ctx, key).Result()
		if err != nil {
			return mapErr(err)
		}
		if n == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (r redisCommands) ExpireAt(ctx context.Context, key string, at time.Time) error {
	ok, err := r.c.PExpireAt(ctx, key, at).Result()
	if err != nil {
		return mapErr(err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r redisCommands) Scan(ctx context.Context, match string, cursor uint64, count int64) ([]string, uint64, error) {
	keys, next, err := r.c.Scan(ctx, cursor, match, count).Result()
	return keys, next, mapErr(err)
}

func (r redisCommands) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.c.Get(ctx, key).Bytes()
	return v, mapErr(err)
}

func (r redisCommands) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return mapErr(r.c.Set(ctx, key, value, ttl).Err())
}

func (r redisCommands) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	values, err := r.c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, mapErr(err)
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			result[keys[i]] = []byte(s)
		}
	}
	return result, nil
}

func (r redisCommands) MSet(ctx context.Context, pairs map[string][]byte) error {
	if len(pairs) == 0 {
		return nil
	}
	return mapErr(r.c.MSet(ctx, pairArgs(pairs)...).Err())
}

func (r redisCommands) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := r.c.IncrBy(ctx, key, delta).Result()
	return n, mapErr(err)
}

func (r redisCommands) IncrByFloat(ctx context.Context, key string, delta float64) (float64, error) {
	f, err := r.c.IncrByFloat(ctx, key, delta).Result()
	return f, mapErr(err)
}

func (r redisCommands) HGet(ctx context.Context, key, field string) ([]byte, error) {
	v, err := r.c.HGet(ctx, key, field).Bytes()
	return v, mapErr(err)
}

func (r redisCommands) HSet(ctx context.Context, key string, fields map[string][]byte) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	n, err := r.c.HSet(ctx, key, pairArgs(fields)...).Result()
	return n, mapErr(err)
}

func (r redisCommands) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	n, err := r.c.HDel(ctx, key, fields...).Result()
	return n, mapErr(err)
}

func (r redisCommands) HExists(ctx context.Context, key, field string) (bool, error) {
	ok, err := r.c.HExists(ctx, key, field).Result()
	return ok, mapErr(err)
}

func (r redisCommands) HLen(ctx context.Context, key string) (int64, error) {
	n, err := r.c.HLen(ctx, key).Result()
	return n, mapErr(err)
}

func (r redisCommands) HKeys(ctx context.Context, key string) ([]string, error) {
	names, err := r.c.HKeys(ctx, key).Result()
	return names, mapErr(err)
}

func (r redisCommands) HVals(ctx context.Context, key string) ([][]byte, error) {
	values, err := r.c.HVals(ctx, key).Result()
	return strs(values), mapErr(err)
}

func (r redisCommands) HMGet(ctx context.Context, key string, fields ...string) ([][]byte, error) {
	out := make([][]byte, len(fields))
	if len(fields) == 0 {
		return out, nil
	}
	values, err := r.c.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, mapErr(err)
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			out[i] = []byte(s)
		}
	}
	return out, nil
}

func (r redisCommands) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	n, err := r.c.HIncrBy(ctx, key, field, delta).Result()
	return n, mapErr(err)
}

func (r redisCommands) HIncrByFloat(ctx context.Context, key, field string, delta float64) (float64, error) {
	f, err := r.c.HIncrByFloat(ctx, key, field, delta).Result()
	return f, mapErr(err)
}

func (r redisCommands) HScan(ctx context.Context, key, match string, cursor uint64, count int64) ([]Field, uint64, error) {
	kvs, next, err := r.c.HScan(ctx, key, cursor, match, count).Result()
	if err != nil {
		return nil, 0, mapErr(err)
	}
	fields := make([]Field, 0, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		fields = append(fields, Field{Name: kvs[i], Value: []byte(kvs[i+1])})
	}
	return fields, next, nil
}

func (r redisCommands) LPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	n, err := r.c.LPush(ctx, key, args(values)...).Result()
	return n, mapErr(err)
}

func (r redisCommands) RPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	n, err := r.c.RPush(ctx, key, args(values)...).Result()
	return n, mapErr(err)
}

func (r redisCommands) LPop(ctx context.Context, key string) ([]byte, error) {
	v, err := r.c.LPop(ctx, key).Bytes()
	return v, mapErr(err)
}

func (r redisCommands) RPop(ctx context.Context, key string) ([]byte, error) {
	v, err := r.c.RPop(ctx, key).Bytes()
	return v, mapErr(err)
}

func (r redisCommands) LIndex(ctx context.Context, key string, index int64) ([]byte, error) {
	v, err := r.c.LIndex(ctx, key, index).Bytes()
	return v, mapErr(err)
}

func (r redisCommands) LSet(ctx context.Context, key string, index int64, value []byte) error {
	return mapErr(r.c.LSet(ctx, key, index, value).Err())
}

func (r redisCommands) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	values, err := r.c.LRange(ctx, key, start, stop).Result()
	return strs(values), mapErr(err)
}

func (r redisCommands) LInsert(ctx context.Context, key string, before bool, pivot, value []byte) (int64, error) {
	where := "AFTER"
	if before {
		where = "BEFORE"
	}
	n, err := r.c.LInsert(ctx, key, where, pivot, value).Result()
	return n, mapErr(err)
}

func (r redisCommands) LRem(ctx context.Context, key string, count int64, value []byte) (int64, error) {
	n, err := r.c.LRem(ctx, key, count, value).Result()
	return n, mapErr(err)
}

func (r redisCommands) LLen(ctx context.Context, key string) (int64, error) {
	n, err := r.c.LLen(ctx, key).Result()
	return n, mapErr(err)
}

func (r redisCommands) LTrim(ctx context.Context, key string, start, stop int64) error {
	return mapErr(r.c.LTrim(ctx, key, start, stop).Err())
}

func (r redisCommands) SAdd(ctx context.Context, key string, members ...[]byte) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	n, err := r.c.SAdd(ctx, key, args(members)...).Result()
	return n, mapErr(err)
}

func (r redisCommands) SRem(ctx context.Context, key string, members ...[]byte) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	n, err := r.c.SRem(ctx, key, args(members)...).Result()
	return n, mapErr(err)
}

func (r redisCommands) SIsMember(ctx context.Context, key string, member []byte) (bool, error) {
	ok, err := r.c.SIsMember(ctx, key, member).Result()
	return ok, mapErr(err)
}

func (r redisCommands) SMembers(ctx context.Context, key string) ([][]byte, error) {
	members, err := r.c.SMembers(ctx, key).Result()
	return strs(members), mapErr(err)
}

func (r redisCommands) SCard(ctx context.Context, key string) (int64, error) {
	n, err := r.c.SCard(ctx, key).Result()
	return n, mapErr(err)
}

func (r redisCommands) SPop(ctx context.Context, key string) ([]byte, error) {
	v, err := r.c.SPop(ctx, key).Bytes()
	return v, mapErr(err)
}

func (r redisCommands) SRandMember(ctx context.Context, key string, count int64) ([][]byte, error) {
	members, err := r.c.SRandMemberN(ctx, key, count).Result()
	return strs(members), mapErr(err)
}

func (r redisCommands) SCombine(ctx context.Context, op SetOp, keys ...string) ([][]byte, error) {
	var cmd *redis.StringSliceCmd
	switch op {
	case SetUnion:
		cmd = r.c.SUnion(ctx, keys...)
	case SetInter:
		cmd = r.c.SInter(ctx, keys...)
	case SetDiff:
		cmd = r.c.SDiff(ctx, keys...)
	default:
		return nil, fmt.Errorf("redstruct: unknown %v", op)
	}
	members, err := cmd.Result()
	return strs(members), mapErr(err)
}

func (r redisCommands) SCombineStore(ctx context.Context, op SetOp, dst string, keys ...string) (int64, error) {
	var cmd *redis.IntCmd
	switch op {
	case SetUnion:
		cmd = r.c.SUnionStore(ctx, dst, keys...)
	case SetInter:
		cmd = r.c.SInterStore(ctx, dst, keys...)
	case SetDiff:
		cmd = r.c.SDiffStore(ctx, dst, keys...)
	default:
		return 0, fmt.Errorf("redstruct: unknown %v", op)
	}
	n, err := cmd.Result()
	return n, mapErr(err)
}

func (r redisCommands) SMove(ctx context.Context, src, dst string, member []byte) (bool, error) {
	ok, err := r.c.SMove(ctx, src, dst, member).Result()
	return ok, mapErr(err)
}

func (r redisCommands) SScan(ctx context.Context, key, match string, cursor uint64, count int64) ([][]byte, uint64, error) {
	members, next, err := r.c.SScan(ctx, key, cursor, match, count).Result()
	return strs(members), next, mapErr(err)
}

func (r redisCommands) ZAdd(ctx context.Context, key string, members ...Z) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	n, err := r.c.ZAdd(ctx, key, toZ(members)...).Result()
	return n, mapErr(err)
}

func (r redisCommands) ZScore(ctx context.Context, key string, member []byte) (float64, error) {
	f, err := r.c.ZScore(ctx, key, string(member)).Result()
	return f, mapErr(err)
}

func (r redisCommands) ZIncrBy(ctx context.Context, key string, member []byte, delta float64) (float64, error) {
	f, err := r.c.ZIncrBy(ctx, key, delta, string(member)).Result()
	return f, mapErr(err)
}

func (r redisCommands) ZRem(ctx context.Context, key string, members ...[]byte) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	n, err := r.c.ZRem(ctx, key, args(members)...).Result()
	return n, mapErr(err)
}

func (r redisCommands) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := r.c.ZCard(ctx, key).Result()
	return n, mapErr(err)
}

func (r redisCommands) ZCount(ctx context.Context, key string, sr ScoreRange) (int64, error) {
	n, err := r.c.ZCount(ctx, key, formatScore(sr.Min), formatScore(sr.Max)).Result()
	return n, mapErr(err)
}

func (r redisCommands) ZRank(ctx context.Context, key string, member []byte, reverse bool) (int64, error) {
	var cmd *redis.IntCmd
	if reverse {
		cmd = r.c.ZRevRank(ctx, key, string(member))
	} else {
		cmd = r.c.ZRank(ctx, key, string(member))
	}
	n, err := cmd.Result()
	return n, mapErr(err)
}

func (r redisCommands) ZRange(ctx context.Context, key string, start, stop int64, reverse bool) ([]Z, error) {
	var cmd *redis.ZSliceCmd
	if reverse {
		cmd = r.c.ZRevRangeWithScores(ctx, key, start, stop)
	} else {
		cmd = r.c.ZRangeWithScores(ctx, key, start, stop)
	}
	zs, err := cmd.Result()
	return fromZ(zs), mapErr(err)
}

func (r redisCommands) ZRangeByScore(ctx context.Context, key string, sr ScoreRange, reverse bool, offset, count int64) ([]Z, error) {
	by := &redis.ZRangeBy{
		Min:    formatScore(sr.Min),
		Max:    formatScore(sr.Max),
		Offset: offset,
		Count:  count,
	}
	if offset == 0 && count < 0 {
		by.Count = 0
	}
	var cmd *redis.ZSliceCmd
	if reverse {
		cmd = r.c.ZRevRangeByScoreWithScores(ctx, key, by)
	} else {
		cmd = r.c.ZRangeByScoreWithScores(ctx, key, by)
	}
	zs, err := cmd.Result()
	return fromZ(zs), mapErr(err)
}

func (r redisCommands) ZScan(ctx context.Context, key, match string, cursor uint64, count int64) ([]Z, uint64, error) {
	flat, next, err := r.c.ZScan(ctx, key, cursor, match, count).Result()
	if err != nil {
		return nil, 0, mapErr(err)
	}
	out := make([]Z, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		score, err := strconv.ParseFloat(flat[i+1], 64)
		if err != nil {
			return nil, 0, fmt.Errorf("redstruct: zscan score %q: %w", flat[i+1], err)
		}
		out = append(out, Z{Member: []byte(flat[i]), Score: score})
	}
	return out, next, nil
}

// redisBatch queues commands on a MULTI/EXEC pipeline; resolve copies the
// replies into Results once the pipeline has executed.
type redisBatch struct {
	ctx     context.Context
	p       redis.Pipeliner
	resolve []func()
}

func (b *redisBatch) Set(key string, value []byte, ttl time.Duration) {
	b.p.Set(b.ctx, key, value, ttl)
}

func (b *redisBatch) MSet(pairs map[string][]byte) {
	if len(pairs) > 0 {
		b.p.MSet(b.ctx, pairArgs(pairs)...)
	}
}

func (b *redisBatch) intResult(cmd *redis.IntCmd) *Result[int64] {
	r := &Result[int64]{}
	b.resolve = append(b.resolve, func() {
		n, err := cmd.Result()
		r.set(n, mapErr(err))
	})
	return r
}

func (b *redisBatch) Delete(keys ...string) *Result[int64] {
	if len(keys) == 0 {
		return &Result[int64]{}
	}
	return b.intResult(b.p.Del(b.ctx, keys...))
}

func (b *redisBatch) IncrBy(key string, delta int64) *Result[int64] {
	return b.intResult(b.p.IncrBy(b.ctx, key, delta))
}

func (b *redisBatch) IncrByFloat(key string, delta float64) *Result[float64] {
	cmd := b.p.IncrByFloat(b.ctx, key, delta)
	r := &Result[float64]{}
	b.resolve = append(b.resolve, func() {
		f, err := cmd.Result()
		r.set(f, mapErr(err))
	})
	return r
}

func (b *redisBatch) LPush(key string, values ...[]byte) *Result[int64] {
	return b.intResult(b.p.LPush(b.ctx, key, args(values)...))
}

func (b *redisBatch) LSet(key string, index int64, value []byte) {
	b.p.LSet(b.ctx, key, index, value)
}

func (b *redisBatch) LRem(key string, count int64, value []byte) *Result[int64] {
	return b.intResult(b.p.LRem(b.ctx, key, count, value))
}

func (b *redisBatch) LTrim(key string, start, stop int64) {
	b.p.LTrim(b.ctx, key, start, stop)
}

func (b *redisBatch) RPush(key string, values ...[]byte) *Result[int64] {
	return b.intResult(b.p.RPush(b.ctx, key, args(values)...))
}

func (b *redisBatch) SAdd(key string, members ...[]byte) *Result[int64] {
	if len(members) == 0 {
		return &Result[int64]{}
	}
	return b.intResult(b.p.SAdd(b.ctx, key, args(members)...))
}

func (b *redisBatch) SRem(key string, members ...[]byte) *Result[int64] {
	if len(members) == 0 {
		return &Result[int64]{}
	}
	return b.intResult(b.p.SRem(b.ctx, key, args(members)...))
}

func (b *redisBatch) SCombine(op SetOp, keys ...string) *Result[[][]byte] {
	var cmd *redis.StringSliceCmd
	switch op {
	case SetInter:
		cmd = b.p.SInter(b.ctx, keys...)
	case SetDiff:
		cmd = b.p.SDiff(b.ctx, keys...)
	default:
		cmd = b.p.SUnion(b.ctx, keys...)
	}
	r := &Result[[][]byte]{}
	b.resolve = append(b.resolve, func() {
		members, err := cmd.Result()
		r.set(strs(members), mapErr(err))
	})
	return r
}

func (b *redisBatch) ZAdd(key string, members ...Z) *Result[int64] {
	if len(members) == 0 {
		return &Result[int64]{}
	}
	return b.intResult(b.p.ZAdd(b.ctx, key, toZ(members)...))
}

func (b *redisBatch) ZRem(key string, members ...[]byte) *Result[int64] {
	if len(members) == 0 {
		return &Result[int64]{}
	}
	return b.intResult(b.p.ZRem(b.ctx, key, args(members)...))
}
