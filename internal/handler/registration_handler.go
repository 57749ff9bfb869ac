package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/workflow"
	"github.com/noah-isme/registrar-api/pkg/response"
)

type registrationService interface {
	Submit(ctx context.Context, actor models.Actor, req models.SubmitRegistrationRequest) (*models.RegistrationDetail, error)
	Approve(ctx context.Context, actor models.Actor, id string) (*models.ApprovalResult, error)
	Reject(ctx context.Context, actor models.Actor, id string, req models.RejectRegistrationRequest) (*models.RegistrationDetail, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.RegistrationDetail, error)
	GetMine(ctx context.Context, actor models.Actor, semesterID string) (*models.RegistrationDetail, error)
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, *models.Pagination, error)
	Export(ctx context.Context, semesterID, format string) (*models.ExportFile, error)
}

// RegistrationHandler exposes the semester registration workflow.
type RegistrationHandler struct {
	service registrationService
}

// NewRegistrationHandler builds a new handler.
func NewRegistrationHandler(svc registrationService) *RegistrationHandler {
	return &RegistrationHandler{service: svc}
}

// Submit godoc
// @Summary Submit a semester registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body models.SubmitRegistrationRequest true "Course selection"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) Submit(c *gin.Context) {
	var req models.SubmitRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid registration payload"))
		return
	}
	detail, err := h.service.Submit(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// List godoc
// @Summary List registrations
// @Tags Registrations
// @Produce json
// @Param semester_id query string false "Semester ID"
// @Param user_id query string false "Student ID"
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /registrations [get]
func (h *RegistrationHandler) List(c *gin.Context) {
	filter := models.RegistrationFilter{
		SemesterID: c.Query("semester_id"),
		UserID:     c.Query("user_id"),
	}
	if raw := strings.ToUpper(strings.TrimSpace(c.Query("status"))); raw != "" {
		status, err := workflow.ParseStatus(raw)
		if err != nil {
			response.Error(c, bindError(err, "invalid status filter"))
			return
		}
		filter.Status = &status
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Export godoc
// @Summary Export registrations as CSV or PDF
// @Tags Registrations
// @Produce text/csv,application/pdf
// @Param semester_id query string false "Semester ID (defaults to active)"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /registrations/export [get]
func (h *RegistrationHandler) Export(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), c.Query("semester_id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Mine godoc
// @Summary Get the caller's registration
// @Tags Registrations
// @Produce json
// @Param semester_id query string false "Semester ID (defaults to active)"
// @Success 200 {object} response.Envelope
// @Router /registrations/me [get]
func (h *RegistrationHandler) Mine(c *gin.Context) {
	detail, err := h.service.GetMine(c.Request.Context(), actorFromContext(c), c.Query("semester_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Get godoc
// @Summary Get a registration with its course uploads
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /registrations/{id} [get]
func (h *RegistrationHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Approve godoc
// @Summary Approve a registration and issue its card
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations/{id}/approve [post]
func (h *RegistrationHandler) Approve(c *gin.Context) {
	result, err := h.service.Approve(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Reject godoc
// @Summary Reject a registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body models.RejectRegistrationRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /registrations/{id}/reject [post]
func (h *RegistrationHandler) Reject(c *gin.Context) {
	var req models.RejectRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid rejection payload"))
		return
	}
	detail, err := h.service.Reject(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}
