package handler

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/pkg/response"
)

type courseUploadService interface {
	ApproveCourse(ctx context.Context, actor models.Actor, id string, req models.CourseDecisionRequest) (*models.CourseUpload, error)
	RejectCourse(ctx context.Context, actor models.Actor, id string, req models.CourseDecisionRequest) (*models.CourseUpload, error)
	Withdraw(ctx context.Context, actor models.Actor, id string) (bool, error)
	ListApprovals(ctx context.Context, actor models.Actor, id string) ([]models.Approval, error)
}

// CourseUploadHandler exposes per-course decisions inside a registration.
type CourseUploadHandler struct {
	service courseUploadService
}

// NewCourseUploadHandler builds a new handler.
func NewCourseUploadHandler(svc courseUploadService) *CourseUploadHandler {
	return &CourseUploadHandler{service: svc}
}

// bindDecision accepts an empty body since comments are optional.
func bindDecision(c *gin.Context) (models.CourseDecisionRequest, error) {
	var req models.CourseDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}
	return req, nil
}

// Approve godoc
// @Summary Approve one course of a registration
// @Tags Course Uploads
// @Accept json
// @Produce json
// @Param id path string true "Course upload ID"
// @Param payload body models.CourseDecisionRequest false "Comments"
// @Success 200 {object} response.Envelope
// @Router /course-uploads/{id}/approve [post]
func (h *CourseUploadHandler) Approve(c *gin.Context) {
	h.decide(c, h.service.ApproveCourse)
}

// Reject godoc
// @Summary Reject one course of a registration
// @Tags Course Uploads
// @Accept json
// @Produce json
// @Param id path string true "Course upload ID"
// @Param payload body models.CourseDecisionRequest false "Comments"
// @Success 200 {object} response.Envelope
// @Router /course-uploads/{id}/reject [post]
func (h *CourseUploadHandler) Reject(c *gin.Context) {
	h.decide(c, h.service.RejectCourse)
}

func (h *CourseUploadHandler) decide(c *gin.Context, fn func(context.Context, models.Actor, string, models.CourseDecisionRequest) (*models.CourseUpload, error)) {
	req, err := bindDecision(c)
	if err != nil {
		response.Error(c, bindError(err, "invalid decision payload"))
		return
	}
	upload, err := fn(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, upload)
}

// Withdraw godoc
// @Summary Withdraw a course from a registration
// @Description Removing the last course deletes the registration.
// @Tags Course Uploads
// @Produce json
// @Param id path string true "Course upload ID"
// @Success 200 {object} response.Envelope
// @Router /course-uploads/{id} [delete]
func (h *CourseUploadHandler) Withdraw(c *gin.Context) {
	deleted, err := h.service.Withdraw(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"registration_deleted": deleted})
}

// Approvals godoc
// @Summary List the approval log of a course upload
// @Tags Course Uploads
// @Produce json
// @Param id path string true "Course upload ID"
// @Success 200 {object} response.Envelope
// @Router /course-uploads/{id}/approvals [get]
func (h *CourseUploadHandler) Approvals(c *gin.Context) {
	records, err := h.service.ListApprovals(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}
