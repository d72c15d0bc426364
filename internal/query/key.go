package query

import "strings"

// Key identifies one cacheable query as an ordered tuple of path segments,
// e.g. NewKey("secrets", "detail", name). Two queries with equal keys share
// one cache entry.
type Key []string

// NewKey builds a Key from its segments.
func NewKey(parts ...string) Key {
	return Key(parts)
}

// With returns a new Key with the given segments appended. The receiver is
// not modified.
func (k Key) With(parts ...string) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	out = append(out, parts...)
	return out
}

// Equal reports whether two keys are structurally identical.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether the key starts with the given prefix segments.
// An empty prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// String renders the key for logs and error messages.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// id returns the map key used internally. The separator cannot appear in
// well-formed segments, so distinct tuples never collide.
func (k Key) id() string {
	return strings.Join(k, "\x1f")
}
