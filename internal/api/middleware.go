package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"opas-admin-workers/internal/common/metrics"

	"github.com/gin-gonic/gin"
)

const (
	ctxStaffSubject = "staffSubject"
	ctxStaffRole    = "staffRole"
)

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request", map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"durationMs": time.Since(start).Milliseconds(),
			"staff":      c.GetString(ctxStaffSubject),
		})
	}
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.APIRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// authenticate requires a valid staff bearer token.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.Verifier == nil {
			abortWithError(c, http.StatusServiceUnavailable, "AUTH_NOT_CONFIGURED", "staff authentication is not configured")
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header is required")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header must be a Bearer token")
			return
		}

		claims, err := s.opts.Verifier.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}

		c.Set(ctxStaffSubject, claims.Subject)
		c.Set(ctxStaffRole, claims.Role)
		c.Next()
	}
}

// authorize asks the RBAC policy whether the caller's role may act on obj.
func (s *Server) authorize(obj, act string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ctxStaffRole)
		if s.opts.Policy == nil || !s.opts.Policy.Can(role, obj, act) {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "role "+role+" may not "+act+" "+obj)
			return
		}
		c.Next()
	}
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}
