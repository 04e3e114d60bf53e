package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/0xcro3dile/policyqa-go/internal/domain/usecases"
)

const (
	headerRequestID = "X-Request-ID"
	ctxRequestID    = "request_id"

	siteLockedMessage = "Website is locked. Visit the site in a browser and unlock with the access key."
)

// requestID propagates an incoming X-Request-ID or assigns a new ULID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = ulid.Make().String()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(ctxRequestID)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(ctxRequestID)),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error."})
	})
}

// siteGate locks every route except /unlock, /logout and /healthz behind
// the site access cookie when a site key is configured.
func (s *Server) siteGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.site.Enabled() {
			c.Next()
			return
		}

		switch c.Request.URL.Path {
		case "/unlock", "/logout", "/healthz":
			c.Next()
			return
		}

		if value, err := c.Cookie(usecases.SiteCookieName); err == nil && s.site.Verify(value) {
			c.Next()
			return
		}

		c.Header("Cache-Control", "no-store")
		if wantsJSON(c.Request) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"ok":      false,
				"error":   "SITE_LOCKED",
				"message": siteLockedMessage,
			})
			return
		}

		s.renderUnlock(c, http.StatusUnauthorized, "", c.Request.URL.RequestURI())
		c.Abort()
	}
}

func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Accept")), "application/json")
}
