package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"jobprep_backend/internal/auth"
)

const (
	requestIDHeader = "X-Request-ID"

	ctxRequestID = "RequestID"
	ctxSubject   = "Subject"
	ctxClaims    = "Claims"
)

// AuthMiddleware admits requests carrying a valid bearer token and stores its
// subject and claims on the context.
func AuthMiddleware(tokens TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			newErrorResponse(c, http.StatusUnauthorized, "empty authorization header")

			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			newErrorResponse(c, http.StatusUnauthorized, "invalid authorization header")

			return
		}

		claims, err := tokens.Verify(parts[1])
		if err != nil {
			detail := "invalid token"
			if errors.Is(err, auth.ErrTokenExpired) {
				detail = "token expired"
			}
			newErrorResponse(c, http.StatusUnauthorized, detail)

			return
		}

		subject, err := auth.Subject(claims)
		if err != nil {
			newErrorResponse(c, http.StatusUnauthorized, "invalid token claims")

			return
		}

		c.Set(ctxSubject, subject)
		c.Set(ctxClaims, claims)

		c.Next()
	}
}

// requestID propagates an incoming X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		c.Set(ctxRequestID, id)
		c.Header(requestIDHeader, id)

		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		h.log.Info("request",
			slog.String("request_id", c.GetString(ctxRequestID)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

func (h *Handler) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				h.log.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
					slog.String("request_id", c.GetString(ctxRequestID)),
					slog.String("method", c.Request.Method),
					slog.String("path", c.Request.URL.Path),
				)

				newErrorResponse(c, http.StatusInternalServerError, "Internal server error")
			}
		}()

		c.Next()
	}
}

func (h *Handler) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		h.metrics.HTTPInFlight.Inc()
		defer h.metrics.HTTPInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())

		h.metrics.HTTPRequests.WithLabelValues(c.Request.Method, path, status).Inc()
		h.metrics.HTTPDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
