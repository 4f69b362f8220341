package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/movie-ticket-booking/internal/config"
)

// captureWriter tees the response into a buffer while forwarding it
// to the client.  A body over limit flips truncated and drops the
// buffer: oversized responses are served normally but never cached.
type captureWriter struct {
    http.ResponseWriter
    status    int
    buf       bytes.Buffer
    limit     int64
    truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if !cw.truncated {
        if cw.limit > 0 && int64(cw.buf.Len())+int64(len(b)) > cw.limit {
            cw.truncated = true
            cw.buf.Reset()
        } else {
            cw.buf.Write(b)
        }
    }
    return cw.ResponseWriter.Write(b)
}

// catalogKey hashes the request path and raw query into a
// fixed-width key, so arbitrary query strings cannot grow unbounded
// Redis keys. The concrete path is used, not the route pattern:
// /v1/movies/1/shows and /v1/movies/2/shows are distinct entries.
func catalogKey(prefix string, c echo.Context) string {
    r := c.Request()
    sum := sha1.Sum([]byte(r.URL.Path + "?" + r.URL.RawQuery))
    return fmt.Sprintf("%s:%x", prefix, sum[:])
}

// packResponse lays out a cached response as
// [4B status][4B header length][header JSON][body], so a hit replays
// the exact bytes and headers the handler produced.
func packResponse(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func unpackResponse(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    header = make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, header, bs[8+hlen:], true
}

// NewCatalogCache builds a Redis-backed response cache for the public
// catalog listings.  Successful GET responses are stored whole under
// a hash of route and query for cfg.TTL, so repeated browses of the
// same listing skip the database entirely.  Seat availability
// endpoints must never sit behind this middleware: their payload
// depends on the current time.
func NewCatalogCache(cfg config.CacheConfig, rdb *redis.Client, logger *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return func(c echo.Context) error { return next(c) } }
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if c.Request().Method != http.MethodGet {
                return next(c)
            }
            key := catalogKey(cfg.Prefix, c)

            bs, err := rdb.Get(c.Request().Context(), key).Bytes()
            if err == nil {
                if status, hdr, body, ok := unpackResponse(bs); ok {
                    for k, vals := range hdr {
                        if strings.EqualFold(k, "Content-Length") {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    if len(body) > 0 {
                        _, _ = c.Response().Write(body)
                    }
                    return nil
                }
            } else if err != redis.Nil {
                // Redis trouble must never block browsing; fail open.
                logger.Warn("catalog cache unavailable", zap.String("key", key), zap.Error(err))
                return next(c)
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.truncated {
                return nil
            }

            hdr := make(http.Header, len(c.Response().Header()))
            for k, vals := range c.Response().Header() {
                vv := make([]string, len(vals))
                copy(vv, vals)
                hdr[k] = vv
            }
            if payload, err := packResponse(cw.status, hdr, cw.buf.Bytes()); err == nil {
                // Detached context: the request is already answered.
                _ = rdb.SetEx(context.Background(), key, payload, cfg.TTL).Err()
            }
            return nil
        }
    }
}
