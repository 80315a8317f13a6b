package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/policyforge/policyforge-api/internal/service"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
	"github.com/policyforge/policyforge-api/pkg/response"
)

// OwnerHandler exposes the ownership registry endpoints.
type OwnerHandler struct {
	service *service.OwnerService
}

// NewOwnerHandler constructs an owner handler.
func NewOwnerHandler(svc *service.OwnerService) *OwnerHandler {
	return &OwnerHandler{service: svc}
}

// List godoc
// @Summary List a document's role grants
// @Tags Owners
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/owners [get]
func (h *OwnerHandler) List(c *gin.Context) {
	entries, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Set godoc
// @Summary Grant or change a document role for an email
// @Tags Owners
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body service.SetOwnerRequest true "Owner payload"
// @Success 201 {object} response.Envelope
// @Router /documents/{id}/owners [post]
func (h *OwnerHandler) Set(c *gin.Context) {
	var req service.SetOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.service.Set(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Remove godoc
// @Summary Remove a document role grant
// @Tags Owners
// @Param id path string true "Document ID"
// @Param ownerId path string true "Owner entry ID"
// @Success 204
// @Router /documents/{id}/owners/{ownerId} [delete]
func (h *OwnerHandler) Remove(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), c.Param("id"), c.Param("ownerId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
