package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/szabolcsnagy0/kindly/cache"
	"github.com/szabolcsnagy0/kindly/utils"
	"go.uber.org/zap"
)

// CacheMiddleware caches successful GET responses per caller.
func CacheMiddleware(duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || cache.Client == nil {
			c.Next()
			return
		}

		var userID uint
		if caller, ok := CallerFrom(c); ok {
			userID = caller.UserID
		}
		ctx := c.Request.Context()
		cacheKey := cache.ResponseKey(userID, c.Request.URL.Path, c.Request.URL.RawQuery)

		var cachedResponse CachedResponse
		if err := cache.Get(ctx, cacheKey, &cachedResponse); err == nil {
			utils.Logger.Debug("cache_hit", zap.String("key", cacheKey))
			c.Header("X-Cache", "HIT")
			c.Data(cachedResponse.Status, cachedResponse.ContentType, cachedResponse.Body)
			c.Abort()
			return
		} else if !errors.Is(err, cache.ErrMiss) {
			utils.Logger.Warn("cache_get_failed", zap.Error(err), zap.String("key", cacheKey))
		}

		c.Header("X-Cache", "MISS")
		blw := &bodyLogWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		if c.Writer.Status() != http.StatusOK {
			return
		}
		cachedResp := CachedResponse{
			Status:      c.Writer.Status(),
			ContentType: c.Writer.Header().Get("Content-Type"),
			Body:        blw.body.Bytes(),
		}
		if err := cache.Set(ctx, cacheKey, cachedResp, duration); err != nil {
			utils.Logger.Warn("cache_set_failed", zap.Error(err), zap.String("key", cacheKey))
		}
	}
}

type CachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyLogWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// InvalidateOnWrite drops the caller's cached responses after a successful mutation.
func InvalidateOnWrite() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == http.MethodGet || c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		caller, ok := CallerFrom(c)
		if !ok {
			return
		}
		if err := InvalidateUserCache(c, caller.UserID); err != nil {
			utils.Logger.Warn("cache_invalidate_failed", zap.Uint("user_id", caller.UserID), zap.Error(err))
		}
	}
}

// InvalidateUserCache removes every cached response stored for userID.
func InvalidateUserCache(c *gin.Context, userID uint) error {
	utils.Logger.Debug("invalidating_user_cache", zap.Uint("user_id", userID))
	return cache.DeletePattern(c.Request.Context(), cache.UserResponsePattern(userID))
}

// RateLimitMiddleware counts requests per client IP in Redis. Without Redis it lets everything through.
func RateLimitMiddleware(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cache.Client == nil || maxRequests <= 0 {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		count, err := cache.IncrementCounter(c.Request.Context(), cache.RateLimitKey(clientIP), window)
		if err != nil {
			utils.Logger.Error("rate_limit_error", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, maxRequests-int(count))))

		if count > int64(maxRequests) {
			utils.Logger.Warn("rate_limit_exceeded",
				zap.String("ip", clientIP),
				zap.Int64("count", count),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorBody("RATE_LIMITED", "Too many requests, try again later"))
			return
		}

		c.Next()
	}
}
