package redstruct

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDict_EndToEnd(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		dict := NewDict[string, string](d, "greetings")

		if err := dict.Set(ctx, "test", "best"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := dict.Update(ctx, map[string]string{"hello": "world", "jello": "fellow"}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if diff := cmp.Diff([]string{"hello", "jello", "test"}, sortedKeys(Collect(dict.Keys(ctx)))); diff != "" {
			t.Errorf("Keys mismatch (-want +got):\n%s", diff)
		}
		if n, _ := dict.Len(ctx); n != 3 {
			t.Errorf("Len = %d, want 3", n)
		}

		if err := dict.Delete(ctx, "test"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if n, _ := dict.Len(ctx); n != 2 {
			t.Errorf("Len after Delete = %d, want 2", n)
		}
		if ok, _ := dict.Contains(ctx, "test"); ok {
			t.Error("Contains(test) after Delete should be false")
		}
		if err := dict.Delete(ctx, "test"); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete: expected ErrNotFound, got %v", err)
		}

		items, _ := Collect(dict.Items(ctx))
		if diff := cmp.Diff(map[string]string{"hello": "world", "jello": "fellow"}, entryMap(items)); diff != "" {
			t.Errorf("Items mismatch (-want +got):\n%s", diff)
		}
		values, _ := Collect(dict.Values(ctx))
		if len(values) != 2 {
			t.Errorf("Values returned %d, want 2", len(values))
		}
	})
}

func TestDict_OverwriteKeepsCount(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		dict := NewDict[string, int](d, "numbers")

		_ = dict.Set(ctx, "a", 1)
		_ = dict.Set(ctx, "a", 2)
		_ = dict.Update(ctx, map[string]int{"a": 3, "b": 4})
		if n, _ := dict.Len(ctx); n != 2 {
			t.Errorf("Len = %d, want 2", n)
		}
		if v, _ := dict.Get(ctx, "a"); v != 3 {
			t.Errorf("Get(a) = %d, want 3", v)
		}
	})
}

func TestDict_Incr(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		dict := NewDict[string, int](d, "counters")

		if n, _ := dict.Incr(ctx, "hits", 2); n != 2 {
			t.Errorf("Incr = %d, want 2", n)
		}
		if n, _ := dict.Incr(ctx, "hits", 5); n != 7 {
			t.Errorf("Incr = %d, want 7", n)
		}
		if f, _ := dict.IncrFloat(ctx, "ratio", 1.5); f != 1.5 {
			t.Errorf("IncrFloat = %v, want 1.5", f)
		}
		if n, _ := dict.Len(ctx); n != 2 {
			t.Errorf("Len = %d, want 2", n)
		}

		text := NewDict[string, string](d, "counters")
		_ = text.Set(ctx, "name", "alice")
		_, err := dict.Incr(ctx, "name", 1)
		var ke *KeyError
		if !errors.As(err, &ke) || !errors.Is(err, ErrTypeMismatch) || ke.Field != "name" {
			t.Errorf("Incr on text = %v, want KeyError wrapping ErrTypeMismatch", err)
		}
		if n, _ := dict.Len(ctx); n != 3 {
			t.Errorf("Len after failed Incr = %d, want 3", n)
		}
	})
}

func TestDict_PopAndRemove(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		dict := NewDict[string, string](d, "letters")
		_ = dict.Update(ctx, map[string]string{"a": "A", "b": "B", "c": "C"})

		if v, err := dict.Pop(ctx, "a"); v != "A" || err != nil {
			t.Errorf("Pop = %q, %v; want A", v, err)
		}
		if n, _ := dict.Remove(ctx, "b", "c", "missing"); n != 2 {
			t.Errorf("Remove = %d, want 2", n)
		}
		if n, _ := dict.Len(ctx); n != 0 {
			t.Errorf("Len = %d, want 0", n)
		}
		if v, _ := dict.GetOr(ctx, "a", "none"); v != "none" {
			t.Errorf("GetOr after Pop = %q, want none", v)
		}
		found, _ := dict.MGet(ctx, "a", "b")
		if len(found) != 0 {
			t.Errorf("MGet after Remove = %v, want empty", found)
		}
	})
}

func TestDict_Clear(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		dict := NewDict[string, int](d, "numbers", WithPageSize(2))
		entries := map[string]int{}
		for i := 0; i < 5; i++ {
			entries["k"+strconv.Itoa(i)] = i
		}
		_ = dict.Update(ctx, entries)

		if err := dict.Clear(ctx); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if n, _ := dict.Len(ctx); n != 0 {
			t.Errorf("Len after Clear = %d, want 0", n)
		}
		if n, _ := d.Exists(ctx, dict.counter, dict.index, dict.field("k0")); n != 0 {
			t.Errorf("%d backing keys survived Clear", n)
		}
	})
}

// The counter matches the number of distinct present keys after any sequence
// of Dict operations.
func TestDict_CountMatchesModel(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		dict := NewDict[string, int](d, "model")
		model := map[string]int{}
		r := rand.New(rand.NewPCG(1, 2))

		for i := 0; i < 300; i++ {
			k := "k" + strconv.Itoa(r.IntN(12))
			switch r.IntN(5) {
			case 0:
				_ = dict.Set(ctx, k, i)
				model[k] = i
			case 1:
				_ = dict.Delete(ctx, k)
				delete(model, k)
			case 2:
				n, err := dict.Incr(ctx, k, 1)
				if err != nil {
					t.Fatalf("Incr(%s) failed: %v", k, err)
				}
				model[k] = int(n)
			case 3:
				k2 := "k" + strconv.Itoa(r.IntN(12))
				_ = dict.Update(ctx, map[string]int{k: i, k2: i})
				model[k], model[k2] = i, i
			case 4:
				_, _ = dict.Remove(ctx, k, "k0")
				delete(model, k)
				delete(model, "k0")
			}
			n, err := dict.Len(ctx)
			if err != nil {
				t.Fatalf("Len failed: %v", err)
			}
			if n != int64(len(model)) {
				t.Fatalf("step %d: Len = %d, model has %d", i, n, len(model))
			}
		}

		got := map[string]int{}
		items, _ := Collect(dict.Items(ctx))
		for _, e := range items {
			got[e.Key] = e.Value
		}
		if diff := cmp.Diff(model, got); diff != "" {
			t.Errorf("contents mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestDict_ConcurrentSet(t *testing.T) {
	ctx := context.Background()
	dict := NewDict[string, int](NewMemory(), "concurrent")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = dict.Set(ctx, "k"+strconv.Itoa(j), i)
			}
		}(i)
	}
	wg.Wait()

	if n, _ := dict.Len(ctx); n != 10 {
		t.Errorf("Len = %d, want 10", n)
	}
}

func TestDict_UsesTransactions(t *testing.T) {
	mock := newMockDriver()
	ctx := context.Background()
	dict := NewDict[string, string](mock, "users")

	_ = dict.Set(ctx, "a", "1")
	_ = dict.Update(ctx, map[string]string{"b": "2"})
	_ = dict.Delete(ctx, "a")
	if mock.pipelined != 3 {
		t.Errorf("pipelined %d times, want 3", mock.pipelined)
	}

	mock.pipelineFunc = func(ctx context.Context, fn func(b Batch)) error {
		return errors.New("connection reset")
	}
	if err := dict.Set(ctx, "c", "3"); err == nil {
		t.Error("Set should fail when the transaction fails")
	}
	mock.pipelineFunc = nil
	if n, _ := dict.Len(ctx); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
}
