package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/policyforge/policyforge-api/internal/service"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
	"github.com/policyforge/policyforge-api/pkg/response"
)

// ApprovalHandler exposes the approval workflow endpoints.
type ApprovalHandler struct {
	service *service.ApprovalService
}

// NewApprovalHandler constructs an approval handler.
func NewApprovalHandler(svc *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{service: svc}
}

// Request godoc
// @Summary Request an approval from a reviewer
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body service.RequestApprovalRequest true "Approval payload"
// @Success 201 {object} response.Envelope
// @Router /documents/{id}/approvals [post]
func (h *ApprovalHandler) Request(c *gin.Context) {
	var req service.RequestApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	approval, err := h.service.Request(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, approval)
}

// List godoc
// @Summary List a document's approvals
// @Tags Approvals
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/approvals [get]
func (h *ApprovalHandler) List(c *gin.Context) {
	result, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Decide godoc
// @Summary Decide a pending approval
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param approvalId path string true "Approval ID"
// @Param payload body service.DecideRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/approvals/{approvalId}/decide [post]
func (h *ApprovalHandler) Decide(c *gin.Context) {
	var req service.DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	approval, err := h.service.Decide(c.Request.Context(), principalFromContext(c), c.Param("id"), c.Param("approvalId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approval, nil)
}

// Summary godoc
// @Summary Aggregate approvals per status
// @Tags Approvals
// @Produce json
// @Param scope query string false "any or latest" default(any)
// @Success 200 {object} response.Envelope
// @Router /approvals/summary [get]
func (h *ApprovalHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Query("scope"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
