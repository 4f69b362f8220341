package middleware

import (
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "go.uber.org/zap"
)

// RequestLogger emits one structured line per request through the
// shared zap logger, replacing Echo's plain-text logger.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogStatus:   true,
        LogMethod:   true,
        LogURI:      true,
        LogLatency:  true,
        LogRemoteIP: true,
        LogError:    true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            fields := []zap.Field{
                zap.String("method", v.Method),
                zap.String("uri", v.URI),
                zap.Int("status", v.Status),
                zap.Duration("latency", v.Latency),
                zap.String("remote_ip", v.RemoteIP),
                zap.String("user", currentUserID(c)),
            }
            if v.Error != nil {
                fields = append(fields, zap.Error(v.Error))
                logger.Error("request", fields...)
                return nil
            }
            logger.Info("request", fields...)
            return nil
        },
    })
}
