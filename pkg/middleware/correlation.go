package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wms-platform/scan-console/pkg/errors"
	"github.com/wms-platform/scan-console/pkg/logging"
)

// gin context keys
const (
	ContextKeyRequestID = "requestId"
	ContextKeyTraceID   = "traceId"
	ContextKeySpanID    = "spanId"
	ContextKeyDeviceID  = "deviceId"
)

const (
	HeaderRequestID = "X-Request-ID"
	// HeaderDeviceID identifies the handheld scanner or console sending the request
	HeaderDeviceID = "X-Device-ID"
)

// RequestID propagates X-Request-ID, minting one when absent, and records
// the scanning device. Both also land on the request context for loggers
// and the WMS backend client.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header(HeaderRequestID, requestID)

		ctx := logging.ContextWithRequestID(c.Request.Context(), requestID)
		if device := c.GetHeader(HeaderDeviceID); device != "" {
			c.Set(ContextKeyDeviceID, device)
			ctx = logging.ContextWithOperator(ctx, device)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// LoggerConfig holds request logger configuration
type LoggerConfig struct {
	Logger       *slog.Logger
	ExcludePaths []string
}

// DefaultLoggerConfig skips the probe and scrape endpoints
func DefaultLoggerConfig(logger *slog.Logger) *LoggerConfig {
	return &LoggerConfig{
		Logger:       logger,
		ExcludePaths: []string{"/health", "/ready", "/metrics"},
	}
}

// LoggerWithConfig logs one line per request: error for 5xx, warn for 4xx, info otherwise.
func LoggerWithConfig(config *LoggerConfig) gin.HandlerFunc {
	skip := pathSet(config.ExcludePaths)

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if skip[path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"latencyMs", latency.Milliseconds(),
			"clientIP", c.ClientIP(),
		}
		for _, key := range []string{ContextKeyRequestID, ContextKeyTraceID, ContextKeyDeviceID} {
			if v := contextString(c, key); v != "" {
				attrs = append(attrs, key, v)
			}
		}
		if query := c.Request.URL.RawQuery; query != "" {
			attrs = append(attrs, "query", query)
		}

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		config.Logger.Log(c.Request.Context(), level, "HTTP request", attrs...)
	}
}

// Recovery turns a handler panic into a 500 error response
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.Error("Panic recovered",
					"error", recovered,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"requestId", GetRequestID(c),
				)
				AbortWithAppError(c, errors.ErrInternal("An unexpected error occurred"))
			}
		}()
		c.Next()
	}
}

func contextString(c *gin.Context, key string) string {
	if v, ok := c.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func GetRequestID(c *gin.Context) string {
	return contextString(c, ContextKeyRequestID)
}

// GetDeviceID returns the X-Device-ID of the scanning terminal, if any
func GetDeviceID(c *gin.Context) string {
	return contextString(c, ContextKeyDeviceID)
}

func pathSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set
}
