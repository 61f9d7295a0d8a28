package redstruct

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestHash_GetSet(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		h := NewHash[string, string](d, "greetings")

		if err := h.Set(ctx, "test", "best"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		_ = h.Update(ctx, map[string]string{"hello": "world", "jello": "fellow"})

		if v, _ := h.Get(ctx, "hello"); v != "world" {
			t.Errorf("Get = %q, want world", v)
		}
		_, err := h.Get(ctx, "missing")
		var ke *KeyError
		if !errors.As(err, &ke) || !errors.Is(err, ErrNotFound) || ke.Field != "missing" {
			t.Errorf("Get(missing) = %v, want KeyError wrapping ErrNotFound", err)
		}
		if v, _ := h.GetOr(ctx, "missing", "none"); v != "none" {
			t.Errorf("GetOr = %q, want none", v)
		}
		found, _ := h.MGet(ctx, "test", "missing")
		if diff := cmp.Diff(map[string]string{"test": "best"}, found); diff != "" {
			t.Errorf("MGet mismatch (-want +got):\n%s", diff)
		}
		if n, _ := h.Len(ctx); n != 3 {
			t.Errorf("Len = %d, want 3", n)
		}

		all, err := h.All(ctx)
		if err != nil {
			t.Fatalf("All failed: %v", err)
		}
		want := map[string]string{"test": "best", "hello": "world", "jello": "fellow"}
		if diff := cmp.Diff(want, all); diff != "" {
			t.Errorf("All mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"hello", "jello", "test"}, sortedKeys(Collect(h.Keys(ctx)))); diff != "" {
			t.Errorf("Keys mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestHash_DeleteAndClear(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		h := NewHash[string, int](d, "numbers")
		_ = h.Update(ctx, map[string]int{"a": 1, "b": 2, "c": 3})

		if err := h.Delete(ctx, "a"); err != nil {
			t.Errorf("Delete failed: %v", err)
		}
		if err := h.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete: expected ErrNotFound, got %v", err)
		}
		if v, err := h.Pop(ctx, "b"); v != 2 || err != nil {
			t.Errorf("Pop = %d, %v; want 2", v, err)
		}
		if ok, _ := h.Contains(ctx, "b"); ok {
			t.Error("Contains(b) after Pop should be false")
		}
		if n, _ := h.Remove(ctx, "c", "missing"); n != 1 {
			t.Errorf("Remove = %d, want 1", n)
		}
		if ok, _ := h.Exists(ctx); ok {
			t.Error("emptied hash should not exist")
		}

		_ = h.Set(ctx, "d", 4)
		if err := h.Clear(ctx); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if n, _ := h.Len(ctx); n != 0 {
			t.Errorf("Len after Clear = %d, want 0", n)
		}
	})
}

func TestHash_Incr(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		h := NewHash[string, int](d, "counters")

		if n, _ := h.Incr(ctx, "hits", 4); n != 4 {
			t.Errorf("Incr = %d, want 4", n)
		}
		if v, _ := h.Get(ctx, "hits"); v != 4 {
			t.Errorf("Get after Incr = %d, want 4", v)
		}
		if f, _ := h.IncrFloat(ctx, "ratio", 0.25); f != 0.25 {
			t.Errorf("IncrFloat = %v, want 0.25", f)
		}

		_ = NewHash[string, string](d, "counters").Set(ctx, "name", "alice")
		_, err := h.Incr(ctx, "name", 1)
		var ke *KeyError
		if !errors.As(err, &ke) || !errors.Is(err, ErrTypeMismatch) || ke.Field != "name" {
			t.Errorf("Incr on text = %v, want KeyError wrapping ErrTypeMismatch", err)
		}
	})
}

func TestHash_Expiry(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		h := NewHash[string, string](d, "sessions")
		_ = h.Set(ctx, "s1", "alice")

		if ttl, _ := h.TTL(ctx); ttl != -1 {
			t.Errorf("TTL = %v, want -1", ttl)
		}
		if err := h.Expire(ctx, time.Minute); err != nil {
			t.Fatalf("Expire failed: %v", err)
		}
		if ttl, _ := h.TTL(ctx); ttl <= 0 {
			t.Errorf("TTL after Expire = %v, want positive", ttl)
		}
		if err := h.Persist(ctx); err != nil {
			t.Fatalf("Persist failed: %v", err)
		}
		if ttl, _ := h.TTL(ctx); ttl != -1 {
			t.Errorf("TTL after Persist = %v, want -1", ttl)
		}
	})
}

func TestHash_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	h := NewHash[string, int](NewMemory(), "ordered", WithPageSize(2))
	for i, k := range []string{"zeta", "alpha", "mid"} {
		_ = h.Set(ctx, k, i)
	}

	keys, _ := Collect(h.Keys(ctx))
	if diff := cmp.Diff([]string{"zeta", "alpha", "mid"}, keys); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
	values, _ := Collect(h.Values(ctx))
	if diff := cmp.Diff([]int{0, 1, 2}, values); diff != "" {
		t.Errorf("Values mismatch (-want +got):\n%s", diff)
	}
}

func TestHash_StructValues(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		h := NewHash[string, profile](d, "profiles", WithCodec(JSON))
		want := profile{Name: "Alice", Age: 30, Tags: map[string]string{"team": "core"}}
		_ = h.Set(ctx, "1001", want)

		got, err := h.Get(ctx, "1001")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Get mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestHash_MatchAndFields(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		h := NewHash[string, int](d, "inventory", WithPageSize(2))
		for _, k := range []string{"apple", "avocado", "banana", "apricot"} {
			_ = h.Set(ctx, k, len(k))
		}

		it, err := h.Match(ctx, "a[pv]*")
		if err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		entries, err := Collect(it)
		if err != nil {
			t.Fatalf("Match iteration failed: %v", err)
		}
		want := map[string]int{"apple": 5, "avocado": 7, "apricot": 7}
		if diff := cmp.Diff(want, entryMap(entries)); diff != "" {
			t.Errorf("Match mismatch (-want +got):\n%s", diff)
		}
		if _, err := h.Match(ctx, "[a"); !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("Match with bad pattern: expected ErrInvalidPattern, got %v", err)
		}

		fields, err := h.Fields(ctx)
		if err != nil {
			t.Fatalf("Fields failed: %v", err)
		}
		values, err := h.FieldValues(ctx)
		if err != nil {
			t.Fatalf("FieldValues failed: %v", err)
		}
		if len(fields) != len(values) {
			t.Fatalf("Fields and FieldValues lengths differ: %d vs %d", len(fields), len(values))
		}
		got := make(map[string]int, len(fields))
		for i, f := range fields {
			got[f] = values[i]
		}
		want["banana"] = 6
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Fields/FieldValues mismatch (-want +got):\n%s", diff)
		}
	})
}
