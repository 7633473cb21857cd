package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"deposit-core/internal/handler/request"
	"deposit-core/internal/handler/response"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/validator"
)

type AutoConvertSettings interface {
	GetAutoConvert(ctx context.Context, userID uint64) (bool, error)
	SetAutoConvert(ctx context.Context, userID uint64, enabled bool) error
}

type SettingsHandler struct {
	settings AutoConvertSettings
}

func NewSettingsHandler(settings AutoConvertSettings) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetAutoConvert
// @Summary Read a user's auto-convert flag
// @Tags internal
// @Produce json
// @Param id path int true "user id"
// @Success 200 {object} response.Response
// @Router /internal/v1/users/{id}/auto-convert [get]
func (h *SettingsHandler) GetAutoConvert(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	enabled, err := h.settings.GetAutoConvert(c.Request.Context(), uid)
	if err != nil {
		response.Error(c, errno.ErrDatabase)
		return
	}
	response.Success(c, gin.H{"user_id": uid, "enabled": enabled})
}

// SetAutoConvert
// @Summary Change a user's auto-convert flag
// @Tags internal
// @Accept json
// @Produce json
// @Param id path int true "user id"
// @Param request body request.SetAutoConvertRequest true "flag"
// @Success 200 {object} response.Response
// @Router /internal/v1/users/{id}/auto-convert [put]
func (h *SettingsHandler) SetAutoConvert(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req request.SetAutoConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	if err := h.settings.SetAutoConvert(c.Request.Context(), uid, *req.Enabled); err != nil {
		response.Error(c, errno.ErrDatabase)
		return
	}
	response.Success(c, gin.H{"user_id": uid, "enabled": *req.Enabled})
}
