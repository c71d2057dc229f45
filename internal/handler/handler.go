package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"auth_service/internal/apperr"
	"auth_service/internal/auth"
	"auth_service/internal/models"
	"auth_service/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"
)

type RateLimiter interface {
	Enforce(ctx context.Context, scope, key string) error
	RetryAfter(ctx context.Context, scope, key string) time.Duration
}

type CookieConfig struct {
	Secure     bool
	Domain     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Handler struct {
	serviceLayer service.Service
	guard        *auth.Guard
	limiter      RateLimiter
	cookies      CookieConfig
	log          *slog.Logger
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type sessionResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func newErrorResponse(c *gin.Context, statusCode int, kind, errMessage string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{Kind: kind, Message: errMessage})
}

// NewHandler builds the HTTP layer. rl may be nil to disable throttling.
func NewHandler(srvc service.Service, guard *auth.Guard, rl RateLimiter, cookies CookieConfig, lgr *slog.Logger) *Handler {
	return &Handler{
		serviceLayer: srvc,
		guard:        guard,
		limiter:      rl,
		cookies:      cookies,
		log:          lgr,
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), h.RequestLogger(), gin.Recovery())

	sessions := router.Group("/auth")
	{
		sessions.POST("/register", h.RateLimit("register"), h.Register)
		sessions.POST("/login", h.RateLimit("login"), h.Login)
		sessions.POST("/refresh", h.RateLimit("refresh"), h.RefreshTokens)

		authed := sessions.Group("", h.AuthMiddleware())
		authed.POST("/logout", h.Logout)
		authed.POST("/change-password", h.ChangePassword)
		authed.GET("/me", h.GetProfile)
	}

	users := router.Group("/users", h.AuthMiddleware())
	{
		users.PATCH("/:id", h.UpdateAccountDetails)
	}

	return router
}

// writeError maps an error kind to a status and writes a body that never
// carries the underlying cause.
func (h *Handler) writeError(c *gin.Context, log *slog.Logger, msg string, err error) {
	kind := apperr.KindOf(err)

	var status int
	switch kind {
	case apperr.KindInvalidInput:
		status = http.StatusBadRequest
	case apperr.KindInvalidCredentials, apperr.KindInvalidToken, apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		log.Error(msg, slog.String("kind", kind.String()), slog.Any("error", err))
		newErrorResponse(c, status, kind.String(), "internal error")
		return
	}

	log.Info(msg, slog.String("kind", kind.String()), slog.Any("error", err))
	newErrorResponse(c, status, kind.String(), apperr.MessageOf(err))
}

func (h *Handler) opLogger(c *gin.Context, op string) *slog.Logger {
	return h.log.With(slog.String("op", op), slog.String("request_id", c.GetString(ctxRequestID)))
}

func (h *Handler) setSessionCookies(c *gin.Context, tokens models.TokenPair) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(accessCookie, tokens.AccessToken, int(h.cookies.AccessTTL.Seconds()), "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(refreshCookie, tokens.RefreshToken, int(h.cookies.RefreshTTL.Seconds()), "/", h.cookies.Domain, h.cookies.Secure, true)
}

func (h *Handler) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(accessCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(refreshCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
}

func newSessionResponse(session models.Session) sessionResponse {
	return sessionResponse{
		User:         session.User,
		AccessToken:  session.Tokens.AccessToken,
		RefreshToken: session.Tokens.RefreshToken,
	}
}
