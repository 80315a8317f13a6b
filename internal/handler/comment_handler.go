package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/policyforge/policyforge-api/internal/service"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
	"github.com/policyforge/policyforge-api/pkg/response"
)

// CommentHandler exposes the comment log endpoints.
type CommentHandler struct {
	service *service.CommentService
}

// NewCommentHandler constructs a comment handler.
func NewCommentHandler(svc *service.CommentService) *CommentHandler {
	return &CommentHandler{service: svc}
}

// Create godoc
// @Summary Append a comment to a document
// @Tags Comments
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body service.CreateCommentRequest true "Comment payload"
// @Success 201 {object} response.Envelope
// @Router /documents/{id}/comments [post]
func (h *CommentHandler) Create(c *gin.Context) {
	var req service.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	comment, err := h.service.Create(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// List godoc
// @Summary List a document's comments oldest first
// @Tags Comments
// @Produce json
// @Param id path string true "Document ID"
// @Param version query int false "Filter to one version"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	comments, err := h.service.List(c.Request.Context(), c.Param("id"), queryIntPtr(c, "version"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comments, nil)
}
