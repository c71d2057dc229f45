package handler

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"auth_service/internal/apperr"
	"auth_service/internal/limiter"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	guuid "github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"

	ctxRequestID = "RequestID"
	ctxUserID    = "UserID"
	ctxUsername  = "Username"
)

// RequestID propagates the caller's X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = guuid.NewString()
		}

		c.Set(ctxRequestID, id)
		c.Header(requestIDHeader, id)

		c.Next()
	}
}

func (h *Handler) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("request_id", c.GetString(ctxRequestID)),
		}
		if username := c.GetString(ctxUsername); username != "" {
			attrs = append(attrs, slog.String("username", username))
		}

		h.log.Info("request completed", attrs...)
	}
}

// AuthMiddleware resolves the caller from the bearer header or the access
// token cookie.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "handler.AuthMiddleware"

		log := h.log.With(slog.String("op", op), slog.String("request_id", c.GetString(ctxRequestID)))

		claims, err := h.guard.Authenticate(bearerToken(c))
		if err != nil {
			log.Debug("authentication failed", slog.Any("error", err))

			newErrorResponse(c, http.StatusUnauthorized, apperr.KindUnauthorized.String(), apperr.MessageOf(err))

			return
		}

		c.Set(ctxUserID, claims.UserID())
		c.Set(ctxUsername, claims.Username)

		c.Next()
	}
}

// RateLimit throttles by client ip within scope. A nil limiter disables it;
// an unreachable redis lets the request through.
func (h *Handler) RateLimit(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter == nil {
			c.Next()
			return
		}

		const op = "handler.RateLimit"

		log := h.log.With(slog.String("op", op), slog.String("scope", scope))

		err := h.limiter.Enforce(c.Request.Context(), scope, c.ClientIP())
		switch {
		case err == nil:
		case errors.Is(err, limiter.ErrRateLimited):
			retry := h.limiter.RetryAfter(c.Request.Context(), scope, c.ClientIP())
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))

			log.Warn("rate limit exceeded", slog.String("ip", c.ClientIP()))

			newErrorResponse(c, http.StatusTooManyRequests, "rate_limited", "too many requests")

			return
		default:
			log.Error("rate limiter unavailable", slog.Any("error", err))
		}

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	token, err := c.Cookie(accessCookie)
	if err != nil {
		return ""
	}
	return token
}

func callerID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}
