package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/policyforge/policyforge-api/internal/service"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
	"github.com/policyforge/policyforge-api/pkg/response"
)

// FrameworkHandler exposes the compliance catalog and assessment tracker.
type FrameworkHandler struct {
	service *service.AssessmentService
}

// NewFrameworkHandler constructs a framework handler.
func NewFrameworkHandler(svc *service.AssessmentService) *FrameworkHandler {
	return &FrameworkHandler{service: svc}
}

// List godoc
// @Summary List compliance frameworks
// @Tags Compliance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /frameworks [get]
func (h *FrameworkHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.ListFrameworks(), nil)
}

// Get godoc
// @Summary Get one framework with its controls
// @Tags Compliance
// @Produce json
// @Param key path string true "Framework key"
// @Param q query string false "Search controls"
// @Param function query string false "Filter by function"
// @Success 200 {object} response.Envelope
// @Router /frameworks/{key} [get]
func (h *FrameworkHandler) Get(c *gin.Context) {
	fw, err := h.service.GetFramework(c.Param("key"), c.Query("q"), c.Query("function"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fw, nil)
}

// ListControls godoc
// @Summary List a framework's controls merged with stored assessments
// @Tags Compliance
// @Produce json
// @Param key path string true "Framework key"
// @Success 200 {object} response.Envelope
// @Router /frameworks/{key}/controls [get]
func (h *FrameworkHandler) ListControls(c *gin.Context) {
	views, err := h.service.ListControls(c.Request.Context(), orgFromContext(c), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// UpsertAssessment godoc
// @Summary Set the assessment for one control
// @Tags Compliance
// @Accept json
// @Produce json
// @Param key path string true "Framework key"
// @Param controlId path string true "Control ID"
// @Param payload body service.UpsertAssessmentRequest true "Assessment payload"
// @Success 200 {object} response.Envelope
// @Router /frameworks/{key}/controls/{controlId}/assessment [put]
func (h *FrameworkHandler) UpsertAssessment(c *gin.Context) {
	var req service.UpsertAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assessment, err := h.service.Upsert(c.Request.Context(), orgFromContext(c), c.Param("key"), c.Param("controlId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessment, nil)
}

// BulkUpsert godoc
// @Summary Apply a batch of assessments in one transaction
// @Tags Compliance
// @Accept json
// @Produce json
// @Param key path string true "Framework key"
// @Param payload body []service.BulkAssessmentItem true "Assessment batch"
// @Success 200 {object} response.Envelope
// @Router /frameworks/{key}/assessments [put]
func (h *FrameworkHandler) BulkUpsert(c *gin.Context) {
	var items []service.BulkAssessmentItem
	if err := c.ShouldBindJSON(&items); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.BulkUpsert(c.Request.Context(), orgFromContext(c), c.Param("key"), items)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CreateLink godoc
// @Summary Link a document to a control as evidence
// @Tags Compliance
// @Accept json
// @Produce json
// @Param key path string true "Framework key"
// @Param controlId path string true "Control ID"
// @Param payload body service.CreateLinkRequest true "Link payload"
// @Success 201 {object} response.Envelope
// @Router /frameworks/{key}/controls/{controlId}/links [post]
func (h *FrameworkHandler) CreateLink(c *gin.Context) {
	var req service.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	link, err := h.service.CreateLink(c.Request.Context(), orgFromContext(c), c.Param("key"), c.Param("controlId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// ListLinks godoc
// @Summary List a control's document links
// @Tags Compliance
// @Produce json
// @Param key path string true "Framework key"
// @Param controlId path string true "Control ID"
// @Success 200 {object} response.Envelope
// @Router /frameworks/{key}/controls/{controlId}/links [get]
func (h *FrameworkHandler) ListLinks(c *gin.Context) {
	links, err := h.service.ListLinks(c.Request.Context(), orgFromContext(c), c.Param("key"), c.Param("controlId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, links, nil)
}

// DeleteLink godoc
// @Summary Remove a control's document link
// @Tags Compliance
// @Param key path string true "Framework key"
// @Param controlId path string true "Control ID"
// @Param linkId path string true "Link ID"
// @Success 204
// @Router /frameworks/{key}/controls/{controlId}/links/{linkId} [delete]
func (h *FrameworkHandler) DeleteLink(c *gin.Context) {
	if err := h.service.DeleteLink(c.Request.Context(), c.Param("linkId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ExportCSV godoc
// @Summary Download the merged control view as CSV
// @Tags Compliance
// @Produce text/csv
// @Param key path string true "Framework key"
// @Success 200 {file} binary
// @Router /frameworks/{key}/export [get]
func (h *FrameworkHandler) ExportCSV(c *gin.Context) {
	data, filename, err := h.service.ExportCSV(c.Request.Context(), orgFromContext(c), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", data)
}
