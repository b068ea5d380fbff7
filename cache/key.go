package cache

import "strings"

// Key addresses one slot of the store, e.g. Key{"tasks", boardID}.
type Key []string

const keySep = "\x1f"

// String renders the key for logs, e.g. "tasks/b1".
func (k Key) String() string {
	return strings.Join(k, "/")
}

// ID is the canonical form used to index the store.
func (k Key) ID() string {
	return strings.Join(k, keySep)
}

// HasPrefix reports whether every element of prefix matches the leading
// elements of k. The empty prefix matches every key.
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

// Equal reports whether k and other address the same slot.
func (k Key) Equal(other Key) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}

func (k Key) clone() Key {
	return append(Key(nil), k...)
}
