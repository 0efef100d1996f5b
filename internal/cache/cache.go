package cache

// Cache is a minimal key-value cache whose entries expire after a fixed lifetime.
type Cache[K comparable, V any] interface {
	// Get returns the value and whether it was present and not expired.
	Get(key K) (V, bool)

	// Set stores the value for the cache's configured lifetime.
	Set(key K, value V)

	// Delete removes a key if present.
	Delete(key K)

	// Len returns the number of non-expired items currently stored.
	Len() int

	// PurgeExpired scans and removes expired entries.
	PurgeExpired() int
}
