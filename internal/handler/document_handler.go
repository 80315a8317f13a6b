package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/policyforge/policyforge-api/internal/service"
	"github.com/policyforge/policyforge-api/internal/templates"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
	"github.com/policyforge/policyforge-api/pkg/response"
)

// DocumentHandler exposes the document store endpoints.
type DocumentHandler struct {
	service *service.DocumentService
}

// NewDocumentHandler constructs a document handler.
func NewDocumentHandler(svc *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// ListTemplates godoc
// @Summary List policy templates
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /templates [get]
func (h *DocumentHandler) ListTemplates(c *gin.Context) {
	response.JSON(c, http.StatusOK, templates.List(), nil)
}

// Create godoc
// @Summary Generate a policy document from a template
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body templates.DraftParams true "Draft parameters"
// @Success 201 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	var params templates.DraftParams
	if err := c.ShouldBindJSON(&params); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	doc, err := h.service.Create(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// List godoc
// @Summary List documents
// @Tags Documents
// @Produce json
// @Param limit query int false "Max documents"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.service.List(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Get godoc
// @Summary Get a document with its version history
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Update godoc
// @Summary Update document metadata
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body service.UpdateDocumentRequest true "Metadata payload"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [patch]
func (h *DocumentHandler) Update(c *gin.Context) {
	var req service.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	doc, err := h.service.UpdateMetadata(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Delete godoc
// @Summary Delete a document
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListVersions godoc
// @Summary List a document's versions
// @Tags Versions
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/versions [get]
func (h *DocumentHandler) ListVersions(c *gin.Context) {
	versions, err := h.service.ListVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// AddVersion godoc
// @Summary Append a new version rendered from fresh parameters
// @Tags Versions
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body templates.DraftParams true "Draft parameters"
// @Success 201 {object} response.Envelope
// @Router /documents/{id}/versions [post]
func (h *DocumentHandler) AddVersion(c *gin.Context) {
	var params templates.DraftParams
	if err := c.ShouldBindJSON(&params); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	version, err := h.service.AddVersion(c.Request.Context(), c.Param("id"), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, version)
}

// GetVersion godoc
// @Summary Get one version with content and parameter snapshot
// @Tags Versions
// @Produce json
// @Param id path string true "Document ID"
// @Param version path int true "Version number"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/versions/{version} [get]
func (h *DocumentHandler) GetVersion(c *gin.Context) {
	version, ok := h.versionParam(c)
	if !ok {
		return
	}
	v, err := h.service.GetVersion(c.Request.Context(), c.Param("id"), version)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, v, nil)
}

// DeleteVersion godoc
// @Summary Delete one version without renumbering the rest
// @Tags Versions
// @Param id path string true "Document ID"
// @Param version path int true "Version number"
// @Success 204
// @Router /documents/{id}/versions/{version} [delete]
func (h *DocumentHandler) DeleteVersion(c *gin.Context) {
	version, ok := h.versionParam(c)
	if !ok {
		return
	}
	if err := h.service.DeleteVersion(c.Request.Context(), c.Param("id"), version); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Rollback godoc
// @Summary Create a new version copied from a historical one
// @Tags Versions
// @Produce json
// @Param id path string true "Document ID"
// @Param version path int true "Version to roll back to"
// @Success 201 {object} response.Envelope
// @Router /documents/{id}/versions/{version}/rollback [post]
func (h *DocumentHandler) Rollback(c *gin.Context) {
	version, ok := h.versionParam(c)
	if !ok {
		return
	}
	v, err := h.service.Rollback(c.Request.Context(), c.Param("id"), version)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, v)
}

// ExportPDF godoc
// @Summary Download one version as PDF
// @Tags Versions
// @Produce application/pdf
// @Param id path string true "Document ID"
// @Param version path int true "Version number"
// @Success 200 {file} binary
// @Router /documents/{id}/versions/{version}/pdf [get]
func (h *DocumentHandler) ExportPDF(c *gin.Context) {
	version, ok := h.versionParam(c)
	if !ok {
		return
	}
	payload, filename, err := h.service.ExportVersionPDF(c.Request.Context(), c.Param("id"), version)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", payload)
}

func (h *DocumentHandler) versionParam(c *gin.Context) (int, bool) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "version must be a positive integer"))
		return 0, false
	}
	return version, true
}
