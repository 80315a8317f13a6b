package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/policyforge/policyforge-api/internal/service"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
	"github.com/policyforge/policyforge-api/pkg/response"
)

// NotificationHandler exposes the per-user notification feed.
type NotificationHandler struct {
	service *service.NotificationService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// List godoc
// @Summary List the caller's notifications, newest first
// @Tags Notifications
// @Produce json
// @Param status query string false "all or unread" default(all)
// @Param limit query int false "Max rows" default(50)
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	rows, err := h.service.List(c.Request.Context(), principalFromContext(c), c.Query("status"), queryInt(c, "limit", 50))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// MarkRead godoc
// @Summary Mark the caller's notifications as read
// @Tags Notifications
// @Accept json
// @Produce json
// @Param payload body service.MarkReadRequest true "Ids to mark, or all"
// @Success 200 {object} response.Envelope
// @Router /notifications/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req service.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.MarkRead(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
