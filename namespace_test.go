package redstruct

import "testing"

func TestKey(t *testing.T) {
	tests := []struct {
		tag, prefix, name string
		want              string
	}{
		{TagHash, "rs", "users", "rs:hash:users"},
		{TagHash, "app:", "users", "app:hash:users"},
		{TagHash, "", "users", ":hash:users"},
		{TagHash, "app:v2", "users", "app%3Av2:hash:users"},
		{TagList, "rs", "a:b", "rs:list:a%3Ab"},
		{TagList, "rs", "a%3Ab", "rs:list:a%253Ab"},
		{TagSortedSet, "rs", "", "rs:sorted_set:"},
	}
	for _, tt := range tests {
		if got := Key(tt.tag, tt.prefix, tt.name); got != tt.want {
			t.Errorf("Key(%q, %q, %q) = %q, want %q", tt.tag, tt.prefix, tt.name, got, tt.want)
		}
	}
}

func TestKey_Injective(t *testing.T) {
	names := []string{"a:b", "a%3Ab", "a%b", "a", "a:", ":a"}
	seen := make(map[string]string)
	for _, name := range names {
		key := Key(TagSet, "rs", name)
		if prev, ok := seen[key]; ok {
			t.Errorf("names %q and %q both map to %q", prev, name, key)
		}
		seen[key] = name
	}
}

func TestMemberKey_NoStructureCollision(t *testing.T) {
	entry := memberKey(Key(TagMap, "rs", "hash"), "x")
	for _, prefix := range []string{"rs:map", "rs:map:", ""} {
		if key := Key(TagHash, prefix, "x"); key == entry {
			t.Errorf("entry key %q collides with hash key under prefix %q", entry, prefix)
		}
	}
	if got := memberKey(Key(TagMap, "", "hash"), "x"); got == Key(TagHash, "map", "x") {
		t.Errorf("entry key %q collides with a prefixed hash key", got)
	}
}

func TestMemberKey(t *testing.T) {
	if got := memberKey("rs:map:users", "1001"); got != "rs:map:users:1001" {
		t.Errorf("memberKey = %q", got)
	}
}
