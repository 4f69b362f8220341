package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"    // time provides duration types for booking and payment knobs
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for the
// booking and payment timing knobs.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time‑to‑live in minutes
    RefreshTTLDays int    // refresh token time‑to‑live in days
    BcryptCost     int    // bcrypt cost for password hashing

    // Booking engine knobs.
    LockDuration    time.Duration // how long a pending booking holds its seats
    CleanupInterval time.Duration // how often the expiry reaper wakes up
    CancelGrace     time.Duration // minimum time before showtime for refundable cancellation

    // Payment knobs.
    PaymentGateway      string        // gateway backend: "mock" or "stripe"
    StripeSecretKey     string        // secret key for the stripe gateway
    MaxPaymentRetries   int           // retry attempts for transient gateway failures
    PaymentRetryBackoff time.Duration // initial backoff between retries (doubles each attempt)
    MockSuccessRate     float64       // success rate for the mock gateway (0..1)

    // Read cache knob.
    BookingCacheTTL time.Duration // TTL for cached booking reads in Redis

    // Message broker.
    AMQPUrl string // RabbitMQ connection URL; empty disables booking events
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Tuning knobs fall
// back to sensible defaults so a minimal .env is enough to boot.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),      // environment (dev/test/prod)
        Port:           must("APP_PORT"),     // port to bind the HTTP server
        DBUser:         must("DB_USER"),      // database user
        DBPass:         os.Getenv("DB_PASS"), // database password (empty allowed)
        DBHost:         must("DB_HOST"),      // database host
        DBPort:         must("DB_PORT"),      // database port
        DBName:         must("DB_NAME"),      // database name
        JWTSecret:      must("JWT_SECRET"),   // secret used for signing JWTs
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),   // TTL for access tokens in minutes
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"), // TTL for refresh tokens in days
        BcryptCost:     mustInt("BCRYPT_COST"),            // bcrypt cost factor

        LockDuration:    minutes(envInt("LOCK_DURATION_MIN", 15)),    // seat lock window
        CleanupInterval: minutes(envInt("CLEANUP_INTERVAL_MIN", 5)),  // reaper period
        CancelGrace:     minutes(envInt("CANCEL_GRACE_MIN", 30)),     // refund cutoff before showtime

        PaymentGateway:      envStr("PAYMENT_GATEWAY", "mock"),            // gateway backend selector
        StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),               // required only when gateway=stripe
        MaxPaymentRetries:   envInt("MAX_PAYMENT_RETRIES", 3),             // transient failure retries
        PaymentRetryBackoff: envDur("PAYMENT_RETRY_BACKOFF", 2*time.Second), // initial retry backoff
        MockSuccessRate:     envFloat("MOCK_GATEWAY_SUCCESS_RATE", 0.95),  // mock gateway success rate

        BookingCacheTTL: envDur("BOOKING_CACHE_TTL", 30*time.Second), // booking read cache TTL

        AMQPUrl: os.Getenv("RABBITMQ_URL"), // empty allowed: events become no-ops
    }
}

// minutes converts a count of minutes into a time.Duration.  Kept as a
// helper so the Load call sites stay on one line each.
func minutes(n int) time.Duration {
    return time.Duration(n) * time.Minute
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
