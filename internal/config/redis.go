package config

// Redis is strictly optional: it backs the booking read cache, the
// catalog response cache and the rate limiter, and the server runs
// without all three when it is absent.  NewRedisClient therefore never
// fails the boot; it returns nil and lets callers degrade.

import (
    "context"
    "crypto/tls"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
)

// NewRedisClient dials Redis from the environment and verifies the
// connection with a short ping.  It returns nil when nothing is
// configured or the server does not answer.
//
// Recognized variables:
//   REDIS_URL  – redis:// or rediss:// URL, wins over everything else
//   REDIS_ADDR – host:port
//   REDIS_HOST / REDIS_PORT – assembled when REDIS_ADDR is unset
//   REDIS_PASSWORD, REDIS_DB, REDIS_TLS
func NewRedisClient() *redis.Client {
    opts := redisOptions()
    if opts == nil {
        return nil
    }
    client := redis.NewClient(opts)
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}

// redisOptions resolves connection options, or nil when Redis is not
// configured at all.  Unset means "off", not "localhost": a missing
// local Redis should not stall startup on a doomed ping.
func redisOptions() *redis.Options {
    if raw := os.Getenv("REDIS_URL"); raw != "" {
        opts, err := redis.ParseURL(raw)
        if err != nil {
            return nil
        }
        return opts
    }

    addr := os.Getenv("REDIS_ADDR")
    if addr == "" {
        host := os.Getenv("REDIS_HOST")
        if host == "" {
            return nil
        }
        port := os.Getenv("REDIS_PORT")
        if port == "" {
            port = "6379"
        }
        addr = host + ":" + port
    }

    opts := &redis.Options{
        Addr:     addr,
        Password: os.Getenv("REDIS_PASSWORD"),
    }
    if v := os.Getenv("REDIS_DB"); v != "" {
        if n, err := strconv.Atoi(v); err == nil {
            opts.DB = n
        }
    }
    if v := os.Getenv("REDIS_TLS"); v == "1" || strings.EqualFold(v, "true") {
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    return opts
}
