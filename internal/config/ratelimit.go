package config

import "time"

// RateLimitConfig tunes the Redis token bucket guarding the booking
// endpoints.  A bucket holds Capacity tokens and gains RefillTokens
// every RefillInterval; each request spends one.  KeyStrategy picks
// the bucket identity (ip, user, route, or combinations such as the
// default "ip_user_route").
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration // idle bucket lifetime in Redis
    KeyStrategy    string
    Prefix         string
}

// LoadRateLimitConfig reads the RATE_LIMIT_* variables.  The defaults
// allow a short seat-picking burst while keeping a single client from
// hammering initiate/confirm in a tight loop.
func LoadRateLimitConfig() RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
    }
    cfg.clamp()
    return cfg
}

// clamp forces the knobs into ranges the Lua limiter script can work
// with.  The TTL must outlive several refill intervals or idle buckets
// would reset to full capacity early.
func (c *RateLimitConfig) clamp() {
    if c.Capacity < 1 {
        c.Capacity = 1
    }
    if c.RefillTokens < 1 {
        c.RefillTokens = 1
    }
    if c.RefillInterval <= 0 {
        c.RefillInterval = time.Second
    }
    if min := 5 * c.RefillInterval; c.TTL < min {
        c.TTL = min
    }
}
