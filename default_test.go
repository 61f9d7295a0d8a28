package redstruct

import (
	"context"
	"testing"
)

func TestDefaultDict(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		calls := 0
		dd := NewDefaultDict[string, []string](d, "groups", func() []string {
			calls++
			return []string{"guest"}
		})

		v, err := dd.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if len(v) != 1 || v[0] != "guest" || calls != 1 {
			t.Errorf("Get = %v (factory calls %d), want [guest] once", v, calls)
		}
		// The default is not written back.
		if ok, _ := dd.Contains(ctx, "missing"); ok {
			t.Error("default value was stored")
		}
		if n, _ := dd.Len(ctx); n != 0 {
			t.Errorf("Len = %d, want 0", n)
		}

		_ = dd.Set(ctx, "admins", []string{"alice"})
		v, _ = dd.Get(ctx, "admins")
		if len(v) != 1 || v[0] != "alice" {
			t.Errorf("Get(admins) = %v, want [alice]", v)
		}
		if n, _ := dd.Len(ctx); n != 1 {
			t.Errorf("Len = %d, want 1", n)
		}
		if dd.Key() != "rs:defaultdict:groups" {
			t.Errorf("Key = %q", dd.Key())
		}
	})
}

func TestDefaultHash(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		ctx := context.Background()
		dh := NewDefaultHash[string, int](d, "counts", func() int { return 0 })

		if v, err := dh.Get(ctx, "visits"); v != 0 || err != nil {
			t.Errorf("Get = %d, %v; want 0", v, err)
		}
		if n, _ := dh.Len(ctx); n != 0 {
			t.Errorf("Len = %d, want 0", n)
		}
		if n, _ := dh.Incr(ctx, "visits", 1); n != 1 {
			t.Errorf("Incr = %d, want 1", n)
		}
		if v, _ := dh.Get(ctx, "visits"); v != 1 {
			t.Errorf("Get after Incr = %d, want 1", v)
		}
	})
}

func TestDefaultFactoryRequired(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewDefaultHash with nil factory should panic")
		}
	}()
	NewDefaultHash[string, int](NewMemory(), "counts", nil)
}
