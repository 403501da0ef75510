package servicetools

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/unkn0wn-root/servicetools/internal/keys"
)

const hashLen = 16

// Fingerprint derives the cache key of a call. Structurally equal arguments
// give the same key; no other normalization is applied.
func Fingerprint(namespace, method string, args ...any) string {
	sum := xxhash.Sum64String(keys.Serialize(method, args))
	return fmt.Sprintf("%s:%s:%0*x", namespace, method, hashLen, sum)
}

// shortTag is the log correlation tag of a key: the first six hex digits of
// its hash.
func shortTag(key string) string {
	if len(key) < hashLen {
		return key
	}
	return key[len(key)-hashLen : len(key)-hashLen+6]
}
