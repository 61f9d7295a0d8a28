package redstruct

import "strings"

// Patterns follow the glob dialect of the store's SCAN MATCH:
//
//	*       any run of characters, including none
//	?       any single character
//	[abc]   one of the listed characters; [^abc] negates, [a-z] is a range
//	\x      the character x itself
//
// Matching works on bytes and '*' crosses every separator, '/' and ':' included.

// escapeGlob quotes the glob metacharacters of s.
func escapeGlob(s string) string {
	var buf strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\', '^', '-':
			buf.WriteByte('\\')
		}
		buf.WriteByte(s[i])
	}
	return buf.String()
}

// validGlob rejects patterns the store would read differently from what the
// caller wrote: an unterminated or empty class and a trailing backslash.
func validGlob(pattern string) bool {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			if i++; i == len(pattern) {
				return false
			}
		case '[':
			j := i + 1
			if j < len(pattern) && pattern[j] == '^' {
				j++
			}
			start := j
			for ; j < len(pattern) && pattern[j] != ']'; j++ {
				if pattern[j] == '\\' {
					j++
				}
			}
			if j >= len(pattern) || j == start {
				return false
			}
			i = j
		}
	}
	return true
}

// globMatch reports whether s matches pattern. pattern must be valid.
func globMatch(pattern, s string) bool {
	// star and mark record the last '*' and the input position it resumes at.
	star, mark := -1, 0
	p, i := 0, 0
	for i < len(s) {
		if p < len(pattern) {
			switch c := pattern[p]; c {
			case '*':
				star, mark = p, i
				p++
				continue
			case '?':
				p++
				i++
				continue
			case '[':
				if end, ok := matchClass(pattern, p, s[i]); ok {
					p = end
					i++
					continue
				}
			case '\\':
				if p+1 < len(pattern) && pattern[p+1] == s[i] {
					p += 2
					i++
					continue
				}
			default:
				if c == s[i] {
					p++
					i++
					continue
				}
			}
		}
		if star < 0 {
			return false
		}
		mark++
		p, i = star+1, mark
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// matchClass matches c against the class opening at pattern[open] and
// returns the index just past its closing bracket.
func matchClass(pattern string, open int, c byte) (int, bool) {
	j := open + 1
	negate := false
	if j < len(pattern) && pattern[j] == '^' {
		negate = true
		j++
	}
	matched := false
	for j < len(pattern) && pattern[j] != ']' {
		lo := pattern[j]
		if lo == '\\' && j+1 < len(pattern) {
			j++
			lo = pattern[j]
		}
		hi := lo
		if j+2 < len(pattern) && pattern[j+1] == '-' && pattern[j+2] != ']' {
			j += 2
			hi = pattern[j]
			if hi == '\\' && j+1 < len(pattern) {
				j++
				hi = pattern[j]
			}
			if lo > hi {
				lo, hi = hi, lo
			}
		}
		if lo <= c && c <= hi {
			matched = true
		}
		j++
	}
	return j + 1, matched != negate
}
