package cache

import "time"

const (
	// The minimum expiry given to an entry in a store that expires
	// things by itself.
	MinExpiry = time.Hour
)

// BackendExpiry is how long a store with its own expiry (memcached,
// redis) should keep an entry. It is longer than ttl, so the Store
// sees stale entries and deletes them itself; the store's expiry
// is only garbage collection.
func BackendExpiry(ttl time.Duration) time.Duration {
	expiry := ttl * 2
	if expiry < MinExpiry {
		expiry = MinExpiry
	}
	return expiry
}
