package handler

import (
	"log/slog"
	"net/http"

	"auth_service/internal/apperr"
	"auth_service/internal/service"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	const op = "handler.Register"

	log := h.opLogger(c, op)

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, apperr.KindInvalidInput.String(), "all fields are required")

		return
	}

	user, err := h.serviceLayer.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(c, log, "failed to register user", err)

		return
	}

	log.Info("user registered", slog.String("user_id", user.ID.String()))

	c.JSON(http.StatusCreated, user)
}

// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.opLogger(c, op)

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, apperr.KindInvalidInput.String(), "username or email and password are required")

		return
	}

	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" {
		newErrorResponse(c, http.StatusBadRequest, apperr.KindInvalidInput.String(), "username or email and password are required")

		return
	}

	session, err := h.serviceLayer.Login(c.Request.Context(), identifier, req.Password)
	if err != nil {
		h.writeError(c, log, "failed to login", err)

		return
	}

	log.Info("user logged in", slog.String("user_id", session.User.ID.String()))

	h.setSessionCookies(c, session.Tokens)
	c.JSON(http.StatusOK, newSessionResponse(session))
}

// POST /auth/refresh
func (h *Handler) RefreshTokens(c *gin.Context) {
	const op = "handler.RefreshTokens"

	log := h.opLogger(c, op)

	var req refreshRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Debug("failed to read request body", slog.Any("error", err))

			newErrorResponse(c, http.StatusBadRequest, apperr.KindInvalidInput.String(), "invalid request body")

			return
		}
	}

	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(refreshCookie)
	}
	if token == "" {
		newErrorResponse(c, http.StatusUnauthorized, apperr.KindInvalidToken.String(), apperr.ErrInvalidToken.Message)

		return
	}

	session, err := h.serviceLayer.Refresh(c.Request.Context(), token)
	if err != nil {
		h.writeError(c, log, "failed to refresh tokens", err)

		return
	}

	h.setSessionCookies(c, session.Tokens)
	c.JSON(http.StatusOK, newSessionResponse(session))
}

// POST /auth/logout
func (h *Handler) Logout(c *gin.Context) {
	const op = "handler.Logout"

	log := h.opLogger(c, op)

	id, ok := callerID(c)
	if !ok {
		log.Error("failed to get user id from context")

		newErrorResponse(c, http.StatusUnauthorized, apperr.KindUnauthorized.String(), apperr.ErrUnauthorized.Message)

		return
	}

	if err := h.serviceLayer.Logout(c.Request.Context(), id); err != nil {
		h.writeError(c, log, "failed to logout", err)

		return
	}

	log.Info("user logout", slog.String("user_id", id.String()))

	h.clearSessionCookies(c)
	c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

// POST /auth/change-password
func (h *Handler) ChangePassword(c *gin.Context) {
	const op = "handler.ChangePassword"

	log := h.opLogger(c, op)

	id, ok := callerID(c)
	if !ok {
		log.Error("failed to get user id from context")

		newErrorResponse(c, http.StatusUnauthorized, apperr.KindUnauthorized.String(), apperr.ErrUnauthorized.Message)

		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, apperr.KindInvalidInput.String(), "old and new password are required")

		return
	}

	if err := h.serviceLayer.ChangePassword(c.Request.Context(), id, req.OldPassword, req.NewPassword); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			// the token was valid, so the record should exist
			log.Error("authenticated user has no record", slog.String("user_id", id.String()), slog.Any("error", err))
		}
		h.writeError(c, log, "failed to change password", err)

		return
	}

	log.Info("password changed", slog.String("user_id", id.String()))

	c.JSON(http.StatusOK, messageResponse{Message: "password changed"})
}

// GET /auth/me
func (h *Handler) GetProfile(c *gin.Context) {
	const op = "handler.GetProfile"

	log := h.opLogger(c, op)

	id, ok := callerID(c)
	if !ok {
		log.Error("failed to get user id from context")

		newErrorResponse(c, http.StatusUnauthorized, apperr.KindUnauthorized.String(), apperr.ErrUnauthorized.Message)

		return
	}

	user, err := h.serviceLayer.CurrentUser(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, log, "failed to get user by id", err)

		return
	}

	c.JSON(http.StatusOK, user)
}
