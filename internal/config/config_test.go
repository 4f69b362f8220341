package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestLoadRateLimitConfig_Defaults(t *testing.T) {
    cfg := LoadRateLimitConfig()
    assert.True(t, cfg.Enabled)
    assert.Equal(t, 60, cfg.Capacity)
    assert.Equal(t, 1, cfg.RefillTokens)
    assert.Equal(t, time.Second, cfg.RefillInterval)
    assert.Equal(t, 10*time.Minute, cfg.TTL)
    assert.Equal(t, "ip_user_route", cfg.KeyStrategy)
    assert.Equal(t, "rl", cfg.Prefix)
}

func TestLoadRateLimitConfig_ClampsBadValues(t *testing.T) {
    t.Setenv("RATE_LIMIT_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
    t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
    t.Setenv("RATE_LIMIT_TTL", "1s") // shorter than 5 refill intervals

    cfg := LoadRateLimitConfig()
    assert.Equal(t, 1, cfg.Capacity)
    assert.Equal(t, 1, cfg.RefillTokens)
    assert.Equal(t, 2*time.Second, cfg.RefillInterval)
    assert.Equal(t, 10*time.Second, cfg.TTL, "TTL must cover five refill intervals")
}

func TestLoadCacheConfig_Defaults(t *testing.T) {
    cfg := LoadCacheConfig()
    assert.True(t, cfg.Enabled)
    assert.Equal(t, 30*time.Second, cfg.TTL)
    assert.Equal(t, "catalog", cfg.Prefix)
    assert.Equal(t, 1<<20, cfg.MaxBodyBytes)

    t.Setenv("CATALOG_CACHE_ENABLED", "off")
    assert.False(t, LoadCacheConfig().Enabled)
}

func TestEnvHelpers_FallBackOnGarbage(t *testing.T) {
    t.Setenv("X_INT", "not-a-number")
    t.Setenv("X_DUR", "soon")
    t.Setenv("X_FLOAT", "half")
    t.Setenv("X_BOOL", "maybe")

    assert.Equal(t, 7, envInt("X_INT", 7))
    assert.Equal(t, time.Minute, envDur("X_DUR", time.Minute))
    assert.Equal(t, 0.5, envFloat("X_FLOAT", 0.5))
    assert.True(t, envBool("X_BOOL", true))
    assert.False(t, envBool("X_BOOL", false))
}

func TestEnvBool_AcceptsCommonSpellings(t *testing.T) {
    for _, v := range []string{"1", "true", "TRUE", "yes", "on"} {
        t.Setenv("X_BOOL", v)
        assert.True(t, envBool("X_BOOL", false), v)
    }
    for _, v := range []string{"0", "false", "False", "no", "OFF"} {
        t.Setenv("X_BOOL", v)
        assert.False(t, envBool("X_BOOL", true), v)
    }
}

func TestRedisOptions(t *testing.T) {
    t.Run("unset means off", func(t *testing.T) {
        t.Setenv("REDIS_URL", "")
        t.Setenv("REDIS_ADDR", "")
        t.Setenv("REDIS_HOST", "")
        assert.Nil(t, redisOptions())
    })

    t.Run("url wins", func(t *testing.T) {
        t.Setenv("REDIS_URL", "redis://:sekrit@cache.internal:6380/2")
        t.Setenv("REDIS_ADDR", "ignored:1")
        opts := redisOptions()
        require.NotNil(t, opts)
        assert.Equal(t, "cache.internal:6380", opts.Addr)
        assert.Equal(t, "sekrit", opts.Password)
        assert.Equal(t, 2, opts.DB)
    })

    t.Run("host and port assemble", func(t *testing.T) {
        t.Setenv("REDIS_HOST", "10.0.0.5")
        t.Setenv("REDIS_PORT", "")
        t.Setenv("REDIS_DB", "1")
        opts := redisOptions()
        require.NotNil(t, opts)
        assert.Equal(t, "10.0.0.5:6379", opts.Addr)
        assert.Equal(t, 1, opts.DB)
    })

    t.Run("bad url means off", func(t *testing.T) {
        t.Setenv("REDIS_URL", "://nope")
        assert.Nil(t, redisOptions())
    })
}
