package servicetools

// Hooks lightweight callbacks for high-signal cache events.
// Implementations MUST be cheap and non-blocking.
// The dispatcher calls them on hot paths.
type Hooks interface {
	// A response was served from the cache.
	CacheHit(namespace, method string)
	// The backend had to be called.
	CacheMiss(namespace, method string)

	// A stored entry was deleted on read.
	// reason ∈ {"corrupt", "codec_mismatch", "value_decode"}
	SelfHeal(storageKey, reason string)

	// Provider returned an error on Get; the call was treated as a miss.
	ProviderGetError(storageKey string, err error)
	// Provider returned an error on Set; the response was returned uncached.
	ProviderSetError(storageKey string, err error)
	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CacheHit(string, string)        {}
func (NopHooks) CacheMiss(string, string)       {}
func (NopHooks) SelfHeal(string, string)        {}
func (NopHooks) ProviderGetError(string, error) {}
func (NopHooks) ProviderSetError(string, error) {}
func (NopHooks) ProviderSetRejected(string)     {}
