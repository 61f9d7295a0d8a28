package redstruct

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/redis/go-redis/v9"
)

// cmpEmpty treats nil and empty slices as equal.
var cmpEmpty = cmpopts.EquateEmpty()

// mockDriver delegates to an in-memory store unless a func field overrides
// the command.
type mockDriver struct {
	*Memory
	getFunc      func(ctx context.Context, key string) ([]byte, error)
	setFunc      func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	incrByFunc   func(ctx context.Context, key string, delta int64) (int64, error)
	hgetFunc     func(ctx context.Context, key, field string) ([]byte, error)
	zrangeFunc   func(ctx context.Context, key string, start, stop int64, reverse bool) ([]Z, error)
	pipelineFunc func(ctx context.Context, fn func(b Batch)) error
	pipelined    int
}

func newMockDriver() *mockDriver {
	return &mockDriver{Memory: NewMemory()}
}

func (m *mockDriver) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, key)
	}
	return m.Memory.Get(ctx, key)
}

func (m *mockDriver) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFunc != nil {
		return m.setFunc(ctx, key, value, ttl)
	}
	return m.Memory.Set(ctx, key, value, ttl)
}

func (m *mockDriver) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	if m.incrByFunc != nil {
		return m.incrByFunc(ctx, key, delta)
	}
	return m.Memory.IncrBy(ctx, key, delta)
}

func (m *mockDriver) HGet(ctx context.Context, key, field string) ([]byte, error) {
	if m.hgetFunc != nil {
		return m.hgetFunc(ctx, key, field)
	}
	return m.Memory.HGet(ctx, key, field)
}

func (m *mockDriver) ZRange(ctx context.Context, key string, start, stop int64, reverse bool) ([]Z, error) {
	if m.zrangeFunc != nil {
		return m.zrangeFunc(ctx, key, start, stop, reverse)
	}
	return m.Memory.ZRange(ctx, key, start, stop, reverse)
}

func (m *mockDriver) Pipeline(ctx context.Context, fn func(b Batch)) error {
	m.pipelined++
	if m.pipelineFunc != nil {
		return m.pipelineFunc(ctx, fn)
	}
	return m.Memory.Pipeline(ctx, fn)
}

// conflictingDriver runs intrude between the reads and the Exec of every
// Watch transaction.
type conflictingDriver struct {
	Driver
	intrude func(ctx context.Context) error
}

func (c *conflictingDriver) Watch(ctx context.Context, fn func(tx Txn) error, keys ...string) error {
	return c.Driver.Watch(ctx, func(tx Txn) error {
		return fn(&conflictingTxn{Txn: tx, intrude: c.intrude})
	}, keys...)
}

type conflictingTxn struct {
	Txn
	intrude func(ctx context.Context) error
}

func (t *conflictingTxn) Exec(ctx context.Context, fn func(b Batch)) error {
	if err := t.intrude(ctx); err != nil {
		return err
	}
	return t.Txn.Exec(ctx, fn)
}

func newTestRedis(t testing.TB) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client)
}

// forEachDriver runs fn against the in-memory driver and against the Redis
// driver backed by miniredis.
func forEachDriver(t *testing.T, fn func(t *testing.T, d Driver)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("redis", func(t *testing.T) {
		fn(t, newTestRedis(t))
	})
}

func TestNewStructure_NilDriverPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewMap with nil driver should panic")
		}
	}()
	NewMap[string, string](nil, "users")
}

func TestStructure_KeyConstruction(t *testing.T) {
	d := NewMemory()
	tests := []struct {
		name string
		c    Container
		want string
	}{
		{"map", NewMap[string, string](d, "users"), "rs:map:users"},
		{"dict", NewDict[string, string](d, "users"), "rs:dict:users"},
		{"defaultdict", NewDefaultDict[string, int](d, "users", func() int { return 0 }), "rs:defaultdict:users"},
		{"hash", NewHash[string, string](d, "users"), "rs:hash:users"},
		{"defaulthash", NewDefaultHash[string, int](d, "users", func() int { return 0 }), "rs:defaulthash:users"},
		{"list", NewList[string](d, "users"), "rs:list:users"},
		{"set", NewSet[string](d, "users"), "rs:set:users"},
		{"sorted set", NewSortedSet[string, float64](d, "users"), "rs:sorted_set:users"},
		{"prefix", NewHash[string, string](d, "users", WithPrefix("app")), "app:hash:users"},
		{"empty prefix", NewHash[string, string](d, "users", WithPrefix("")), ":hash:users"},
		{"escaped name", NewList[string](d, "a:b"), "rs:list:a%3Ab"},
	}
	for _, tt := range tests {
		if got := tt.c.Key(); got != tt.want {
			t.Errorf("%s: Key() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDict_AuxiliaryKeys(t *testing.T) {
	d := NewDict[string, string](NewMemory(), "users", WithPrefix("app"))
	if d.counter != "app:dict.size:users" {
		t.Errorf("counter = %q, want %q", d.counter, "app:dict.size:users")
	}
	if d.index != "app:dict.keys:users" {
		t.Errorf("index = %q, want %q", d.index, "app:dict.keys:users")
	}
}

func TestStructure_DriverError(t *testing.T) {
	expectedErr := errors.New("driver error")
	mock := newMockDriver()
	mock.getFunc = func(ctx context.Context, key string) ([]byte, error) {
		return nil, expectedErr
	}
	mock.setFunc = func(ctx context.Context, key string, value []byte, ttl time.Duration) error {
		return expectedErr
	}
	ctx := context.Background()
	m := NewMap[string, string](mock, "users")

	if err := m.Set(ctx, "k", "v"); !errors.Is(err, expectedErr) {
		t.Errorf("Set should propagate driver error, got %v", err)
	}
	if _, err := m.Get(ctx, "k"); !errors.Is(err, expectedErr) {
		t.Errorf("Get should propagate driver error, got %v", err)
	}
	if _, err := m.GetOr(ctx, "k", "def"); !errors.Is(err, expectedErr) {
		t.Errorf("GetOr should propagate driver error, got %v", err)
	}
}

func TestStructure_CustomKeyType(t *testing.T) {
	type userID string
	ctx := context.Background()
	h := NewHash[userID, string](NewMemory(), "users")

	if err := h.Set(ctx, userID("1001"), "Alice"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	name, err := h.Get(ctx, userID("1001"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if name != "Alice" {
		t.Errorf("Get returned %q, want %q", name, "Alice")
	}
}

func TestStructure_TypeTagsIsolate(t *testing.T) {
	d := NewMemory()
	ctx := context.Background()

	h := NewHash[string, string](d, "shared")
	l := NewList[string](d, "shared")
	if err := h.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Hash.Set failed: %v", err)
	}
	if _, err := l.PushRight(ctx, "v"); err != nil {
		t.Fatalf("List.PushRight on same name should not collide: %v", err)
	}
}

func TestStructure_MapEntriesIsolateFromPrefixedKeys(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		m := NewMap[string, string](d, "hash")
		h := NewHash[string, string](d, "x", WithPrefix("rs:map"))

		if err := m.Set(ctx, "x", "entry"); err != nil {
			t.Fatalf("Map.Set failed: %v", err)
		}
		if err := h.Set(ctx, "f", "field"); err != nil {
			t.Fatalf("Hash.Set under a map-like prefix should not collide: %v", err)
		}
		if v, _ := m.Get(ctx, "x"); v != "entry" {
			t.Errorf("Map.Get = %q, want entry", v)
		}
	})
}
