package config

import "time"

// CacheConfig controls the Redis cache of free slots per doctor and day.
// Entries are dropped whenever a booking, cancellation or template
// replacement commits, so TTL only bounds how long an entry survives a
// missed invalidation.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads CACHE_ENABLED, CACHE_TTL and CACHE_PREFIX.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: envBool("CACHE_ENABLED", true),
		TTL:     envDur("CACHE_TTL", 30*time.Second),
		Prefix:  envStr("CACHE_PREFIX", "avail"),
	}
}
