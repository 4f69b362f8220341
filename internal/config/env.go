package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// Optional-variable helpers.  Unset or unparsable values fall back to
// the given default; only must()/mustInt() in config.go treat a bad
// value as fatal.

func envStr(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func envInt(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    n, err := strconv.Atoi(v)
    if err != nil {
        return def
    }
    return n
}

func envFloat(key string, def float64) float64 {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    f, err := strconv.ParseFloat(v, 64)
    if err != nil {
        return def
    }
    return f
}

func envDur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    d, err := time.ParseDuration(v)
    if err != nil {
        return def
    }
    return d
}

func envBool(key string, def bool) bool {
    switch strings.ToLower(os.Getenv(key)) {
    case "1", "true", "yes", "on":
        return true
    case "0", "false", "no", "off":
        return false
    }
    return def
}
