package handler

import (
	"log/slog"
	"net/http"

	"auth_service/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type updateAccountRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required"`
}

// PATCH /users/:id
func (h *Handler) UpdateAccountDetails(c *gin.Context) {
	const op = "handler.UpdateAccountDetails"

	log := h.opLogger(c, op)

	caller, ok := callerID(c)
	if !ok {
		log.Error("failed to get user id from context")

		newErrorResponse(c, http.StatusUnauthorized, apperr.KindUnauthorized.String(), apperr.ErrUnauthorized.Message)

		return
	}

	ownerID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		newErrorResponse(c, http.StatusBadRequest, apperr.KindInvalidInput.String(), "invalid user id")

		return
	}

	if err := h.guard.AuthorizeOwnership(ownerID, caller); err != nil {
		log.Warn("ownership check failed", slog.String("caller", caller.String()), slog.String("owner", ownerID.String()))

		h.writeError(c, log, "forbidden", err)

		return
	}

	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, apperr.KindInvalidInput.String(), "full name and email are required")

		return
	}

	user, err := h.serviceLayer.UpdateAccountDetails(c.Request.Context(), ownerID, req.FullName, req.Email)
	if err != nil {
		h.writeError(c, log, "failed to update account", err)

		return
	}

	c.JSON(http.StatusOK, user)
}
