// Package redstruct provides Go collections backed by a Redis-compatible key-value store.
//
// # Overview
//
// redstruct turns the per-key primitives of the store (strings, hashes, lists,
// sets, sorted sets) into familiar collection types: Map, Dict, Hash, their
// default-value variants, List, Set and SortedSet. It separates the collection
// semantics from the store access (Driver), so the same structures run against
// a real server through Redis or in-process through Memory.
//
// # Architecture
//
// The package consists of three layers:
//
// 1. Driver: store primitives over []byte, plus transactional Pipeline and
// optimistic Watch
// 2. Codec: value encoding, fixed per structure at construction
// 3. Structures: typed collections issuing one or a short bounded sequence of
// commands per operation
//
// Keys are stored as "prefix:type:name" so structures of different types never
// collide. Colons and percent signs inside prefix and name are percent-escaped,
// and an empty prefix leaves the key starting with ":". Keys of Map and Dict
// entries append ":field" to that, so they can never equal a structure key.
//
// Match on Map, Hash, Set and SortedSet takes a store glob ("*", "?", "[a-z]",
// "[^x]", "\x") and lets the store filter; "*" crosses every separator.
//
// # Quick Start
//
//	store := redstruct.NewRedis(redis.NewClient(&redis.Options{Addr: "localhost:6379"}))
//	ctx := context.Background()
//
//	users := redstruct.NewDict[string, string](store, "users")
//	users.Set(ctx, "1001", "Alice")
//	name, _ := users.Get(ctx, "1001")
//	n, _ := users.Len(ctx)
//
//	board := redstruct.NewSortedSet[string, int](store, "leaderboard")
//	board.Update(ctx, map[string]int{"alice": 30, "bob": 12})
//	rank, _ := board.Rank(ctx, "alice")
//
// # Choosing a Dictionary
//
// Map stores one string key per entry and cannot report its length. Dict adds
// an entry count and a key index next to the entries; both stay exact only as
// long as every write goes through the Dict. Hash stores all entries in one
// store hash, which gives native length and cheap iteration, and is the right
// choice unless entries need individual TTLs.
//
// # Serialization
//
// With serialization off (the default) strings, byte slices, numbers and
// booleans are stored as plain text, so numeric values remain usable with
// Incr. Every other type is encoded with the codec. WithCodec selects JSON,
// MsgPack or Proto and turns serialization on for all values:
//
//	profiles := redstruct.NewHash[string, Profile](store, "profiles",
//	    redstruct.WithCodec(redstruct.MsgPack))
//
// A structure must always be opened with the same codec settings. The store
// carries no type information, so mixing settings on one key is undefined.
//
// # Concurrency
//
// Structures are safe for concurrent use and hold no state besides their
// configuration. Every operation is a single store command unless documented
// otherwise. Multi-step operations (Dict writes, List.Reverse,
// SortedSet.SetByRank and DeleteByRank) use store transactions; rank
// operations and Reverse return ErrConflict when another caller changed the
// structure first. The package never retries.
//
// # Error Handling
//
// The package defines sentinel errors for common cases:
//
//	_, err := users.Get(ctx, "missing")
//	if errors.Is(err, redstruct.ErrNotFound) {
//	    // Handle missing key
//	}
//
// Misses on a field, member or index are reported as *KeyError naming the
// structure key. Available errors: ErrNotFound, ErrTypeMismatch,
// ErrOutOfRange, ErrSerialization, ErrConflict, ErrInvalidPattern. Any other
// error comes from the store and is returned unchanged.
package redstruct
