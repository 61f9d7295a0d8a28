package redstruct

import "strings"

// Type tags embedded in every key so that structures of different kinds never
// share a key, even with identical prefix and name.
const (
	TagMap         = "map"
	TagDict        = "dict"
	TagDefaultDict = "defaultdict"
	TagHash        = "hash"
	TagDefaultHash = "defaulthash"
	TagList        = "list"
	TagSet         = "set"
	TagSortedSet   = "sorted_set"
)

var segmentEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// Key derives the store key "prefix:tag:name". Colons in prefix and name are
// escaped, so a structure key always has exactly two separators and every
// member key (see memberKey) has more. Trailing colons of prefix are
// dropped, so "app" and "app:" share a namespace. An empty prefix still
// leaves its separator: ":tag:name".
func Key(tag, prefix, name string) string {
	prefix = segmentEscaper.Replace(strings.TrimRight(prefix, ":"))
	return prefix + ":" + tag + ":" + segmentEscaper.Replace(name)
}

// memberKey is the key of one member of a key-per-member structure. member
// is not escaped; the structure key before it stays unambiguous.
func memberKey(key, member string) string {
	return key + ":" + member
}
