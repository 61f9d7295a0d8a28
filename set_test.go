package redstruct

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sorted(values []string, err error) []string {
	if err != nil {
		return []string{"error: " + err.Error()}
	}
	out := slices.Clone(values)
	sort.Strings(out)
	return out
}

func TestSet_Basics(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		s := NewSet[string](d, "greetings")

		if n, _ := s.Add(ctx, "hello", "bonjour", "hello"); n != 2 {
			t.Errorf("Add = %d, want 2", n)
		}
		if n, _ := s.Add(ctx); n != 0 {
			t.Errorf("Add() = %d, want 0", n)
		}
		if err := s.Update(ctx, slices.Values([]string{"hola", "ciao"})); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if n, _ := s.Len(ctx); n != 4 {
			t.Errorf("Len = %d, want 4", n)
		}
		if ok, _ := s.Contains(ctx, "hola"); !ok {
			t.Error("Contains(hola) should be true")
		}
		if n, _ := s.Remove(ctx, "hola", "missing"); n != 1 {
			t.Errorf("Remove = %d, want 1", n)
		}

		want := []string{"bonjour", "ciao", "hello"}
		if diff := cmp.Diff(want, sorted(s.Members(ctx))); diff != "" {
			t.Errorf("Members mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(want, sorted(Collect(s.Iter(ctx)))); diff != "" {
			t.Errorf("Iter mismatch (-want +got):\n%s", diff)
		}

		sample, _ := s.Sample(ctx, 2)
		if len(sample) != 2 {
			t.Errorf("Sample(2) returned %d members", len(sample))
		}
		for _, v := range sample {
			if !slices.Contains(want, v) {
				t.Errorf("Sample returned non-member %q", v)
			}
		}
		if n, _ := s.Len(ctx); n != 3 {
			t.Errorf("Sample changed Len to %d", n)
		}
	})
}

func TestSet_Pop(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		s := NewSet[int](d, "numbers")
		_, _ = s.Add(ctx, 1, 2)

		seen := map[int]bool{}
		for i := 0; i < 2; i++ {
			v, err := s.Pop(ctx)
			if err != nil {
				t.Fatalf("Pop failed: %v", err)
			}
			seen[v] = true
		}
		if !seen[1] || !seen[2] {
			t.Errorf("Pop returned %v, want both members", seen)
		}
		_, err := s.Pop(ctx)
		var ke *KeyError
		if !errors.As(err, &ke) || !errors.Is(err, ErrNotFound) {
			t.Errorf("Pop on empty set = %v, want KeyError wrapping ErrNotFound", err)
		}
		if ok, _ := s.Exists(ctx); ok {
			t.Error("emptied set should not exist")
		}
	})
}

func TestSet_Algebra(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		a := NewSet[string](d, "a")
		b := NewSet[string](d, "b")
		words := []string{"hello", "goodbye", "bonjour", "au revoir"}
		_, _ = a.Add(ctx, words...)
		_, _ = b.Add(ctx, append(words, "bienvenue")...)

		all := sorted(append(slices.Clone(words), "bienvenue"), nil)
		if diff := cmp.Diff(all, sorted(a.Union(ctx, b))); diff != "" {
			t.Errorf("Union mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(sorted(words, nil), sorted(a.Intersection(ctx, b))); diff != "" {
			t.Errorf("Intersection mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"bienvenue"}, sorted(b.Difference(ctx, a))); diff != "" {
			t.Errorf("Difference mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{}, sorted(a.Difference(ctx, b)), cmpEmpty); diff != "" {
			t.Errorf("empty Difference mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestSet_AlgebraWithValues(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		s := NewSet[string](d, "letters")
		_, _ = s.Add(ctx, "a", "b", "c")

		if diff := cmp.Diff([]string{"a", "b", "c", "d"}, sorted(s.UnionValues(ctx, "c", "d"))); diff != "" {
			t.Errorf("UnionValues mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"c"}, sorted(s.IntersectionValues(ctx, "c", "d"))); diff != "" {
			t.Errorf("IntersectionValues mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"a", "b"}, sorted(s.DifferenceValues(ctx, "c", "d"))); diff != "" {
			t.Errorf("DifferenceValues mismatch (-want +got):\n%s", diff)
		}
		if got, _ := s.IntersectionValues(ctx); len(got) != 0 {
			t.Errorf("IntersectionValues() = %v, want empty", got)
		}
		if diff := cmp.Diff([]string{"a", "b", "c"}, sorted(s.DifferenceValues(ctx))); diff != "" {
			t.Errorf("DifferenceValues() mismatch (-want +got):\n%s", diff)
		}

		// The scratch key is removed in the same transaction.
		if n, _ := d.Exists(ctx, s.Key()); n != 1 {
			t.Error("set key should still exist")
		}
		keys, _, _ := d.Scan(ctx, escapeGlob(s.Key()+":")+"*", 0, 100)
		if len(keys) != 0 {
			t.Errorf("scratch keys left behind: %v", keys)
		}
	})
}

func TestSet_Store(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		a := NewSet[int](d, "a")
		b := NewSet[int](d, "b")
		_, _ = a.Add(ctx, 1, 2, 3)
		_, _ = b.Add(ctx, 3, 4)

		u, err := a.UnionStore(ctx, "u", b)
		if err != nil {
			t.Fatalf("UnionStore failed: %v", err)
		}
		if u.Key() != "rs:set:u" {
			t.Errorf("UnionStore key = %q", u.Key())
		}
		if n, _ := u.Len(ctx); n != 4 {
			t.Errorf("union Len = %d, want 4", n)
		}

		i, _ := a.IntersectionStore(ctx, "u", b)
		got, _ := i.Members(ctx)
		if diff := cmp.Diff([]int{3}, got); diff != "" {
			t.Errorf("IntersectionStore mismatch (-want +got):\n%s", diff)
		}
		rest, _ := a.DifferenceStore(ctx, "d", b)
		if n, _ := rest.Len(ctx); n != 2 {
			t.Errorf("difference Len = %d, want 2", n)
		}
	})
}

func TestSet_Move(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		src := NewSet[string](d, "src")
		dst := NewSet[string](d, "dst")
		_, _ = src.Add(ctx, "x")

		if ok, err := src.Move(ctx, "x", dst); !ok || err != nil {
			t.Fatalf("Move = %v, %v; want true", ok, err)
		}
		if ok, _ := src.Move(ctx, "x", dst); ok {
			t.Error("second Move should report false")
		}
		if ok, _ := dst.Contains(ctx, "x"); !ok {
			t.Error("dst should contain x")
		}
	})
}

func TestSet_ConcurrentMove(t *testing.T) {
	ctx := context.Background()
	d := NewMemory()
	src := NewSet[string](d, "src")
	dst := NewSet[string](d, "dst")
	_, _ = src.Add(ctx, "token")

	var moved atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := src.Move(ctx, "token", dst); ok {
				moved.Add(1)
			}
		}()
	}
	wg.Wait()

	if n := moved.Load(); n != 1 {
		t.Errorf("Move succeeded %d times, want 1", n)
	}
}

func TestSet_Match(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		s := NewSet[string](d, "colors", WithPageSize(2))
		_, _ = s.Add(ctx, "red", "rose", "ruby", "blue")

		it, err := s.Match(ctx, "r*")
		if err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		if diff := cmp.Diff([]string{"red", "rose", "ruby"}, sorted(Collect(it))); diff != "" {
			t.Errorf("Match mismatch (-want +got):\n%s", diff)
		}
		if _, err := s.Match(ctx, `bad\`); !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("Match with bad pattern: expected ErrInvalidPattern, got %v", err)
		}
	})
}

// Canonical encoding keeps struct members with maps comparable by value.
func TestSet_MsgPackMapMembers(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		type tagged struct {
			Name   string
			Labels map[int]string
		}
		s := NewSet[tagged](d, "tagged", WithCodec(MsgPack))
		labels := map[int]string{}
		for i := 0; i < 20; i++ {
			labels[i] = strconv.Itoa(i * i)
		}
		_, _ = s.Add(ctx, tagged{Name: "a", Labels: labels})

		for i := 0; i < 5; i++ {
			copied := make(map[int]string, len(labels))
			for k, v := range labels {
				copied[k] = v
			}
			if ok, err := s.Contains(ctx, tagged{Name: "a", Labels: copied}); err != nil || !ok {
				t.Fatalf("Contains = %v, %v; want true", ok, err)
			}
		}
		if n, err := s.Remove(ctx, tagged{Name: "a", Labels: labels}); err != nil || n != 1 {
			t.Errorf("Remove = %d, %v; want 1", n, err)
		}
	})
}
