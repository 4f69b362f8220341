package config

import "time"

// CacheConfig tunes the Redis response cache sitting in front of the
// public catalog listings.  Seat availability is never served from
// this cache: it only covers endpoints whose payload tolerates a
// short TTL, such as the movie catalog.
type CacheConfig struct {
    Enabled      bool
    TTL          time.Duration
    Prefix       string
    MaxBodyBytes int // responses larger than this are served but not cached
}

// LoadCacheConfig reads the CATALOG_CACHE_* environment variables,
// with defaults tuned for small JSON listings.
func LoadCacheConfig() CacheConfig {
    cfg := CacheConfig{
        Enabled:      envBool("CATALOG_CACHE_ENABLED", true),
        TTL:          envDur("CATALOG_CACHE_TTL", 30*time.Second),
        Prefix:       envStr("CATALOG_CACHE_PREFIX", "catalog"),
        MaxBodyBytes: envInt("CATALOG_CACHE_MAX_BODY_BYTES", 1<<20),
    }
    if cfg.TTL <= 0 { cfg.TTL = 30 * time.Second }
    if cfg.MaxBodyBytes <= 0 { cfg.MaxBodyBytes = 1 << 20 }
    return cfg
}
