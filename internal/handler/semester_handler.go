package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/pkg/response"
)

type semesterService interface {
	List(ctx context.Context, academicYearID string) ([]models.Semester, error)
	Get(ctx context.Context, id string) (*models.Semester, error)
	GetActive(ctx context.Context) (*models.Semester, error)
	Create(ctx context.Context, req models.CreateSemesterRequest) (*models.Semester, error)
	Activate(ctx context.Context, actor models.Actor, id string) (*models.Semester, error)
	Delete(ctx context.Context, id string) error
}

type academicYearService interface {
	List(ctx context.Context) ([]models.AcademicYear, error)
	Create(ctx context.Context, req models.CreateAcademicYearRequest) (*models.AcademicYear, error)
	Activate(ctx context.Context, actor models.Actor, id string) (*models.AcademicYear, error)
}

// SemesterHandler exposes academic years and semesters.
type SemesterHandler struct {
	semesters semesterService
	years     academicYearService
}

// NewSemesterHandler builds a new handler.
func NewSemesterHandler(semesters semesterService, years academicYearService) *SemesterHandler {
	return &SemesterHandler{semesters: semesters, years: years}
}

// ListYears godoc
// @Summary List academic years
// @Tags Semesters
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /academic-years [get]
func (h *SemesterHandler) ListYears(c *gin.Context) {
	years, err := h.years.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, years)
}

// CreateYear godoc
// @Summary Create an academic year
// @Tags Semesters
// @Accept json
// @Produce json
// @Param payload body models.CreateAcademicYearRequest true "Academic year"
// @Success 201 {object} response.Envelope
// @Router /academic-years [post]
func (h *SemesterHandler) CreateYear(c *gin.Context) {
	var req models.CreateAcademicYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid academic year payload"))
		return
	}
	year, err := h.years.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, year)
}

// ActivateYear godoc
// @Summary Make an academic year the active one
// @Tags Semesters
// @Produce json
// @Param id path string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /academic-years/{id}/activate [post]
func (h *SemesterHandler) ActivateYear(c *gin.Context) {
	year, err := h.years.Activate(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, year)
}

// List godoc
// @Summary List semesters
// @Tags Semesters
// @Produce json
// @Param academic_year_id query string false "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /semesters [get]
func (h *SemesterHandler) List(c *gin.Context) {
	semesters, err := h.semesters.List(c.Request.Context(), c.Query("academic_year_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, semesters)
}

// Active godoc
// @Summary Get the active semester
// @Tags Semesters
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/active [get]
func (h *SemesterHandler) Active(c *gin.Context) {
	semester, err := h.semesters.GetActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, semester)
}

// Get godoc
// @Summary Get a semester
// @Tags Semesters
// @Produce json
// @Param id path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /semesters/{id} [get]
func (h *SemesterHandler) Get(c *gin.Context) {
	semester, err := h.semesters.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, semester)
}

// Create godoc
// @Summary Create a semester
// @Tags Semesters
// @Accept json
// @Produce json
// @Param payload body models.CreateSemesterRequest true "Semester"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /semesters [post]
func (h *SemesterHandler) Create(c *gin.Context) {
	var req models.CreateSemesterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid semester payload"))
		return
	}
	semester, err := h.semesters.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, semester)
}

// Activate godoc
// @Summary Make a semester the active one
// @Tags Semesters
// @Produce json
// @Param id path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /semesters/{id}/activate [post]
func (h *SemesterHandler) Activate(c *gin.Context) {
	semester, err := h.semesters.Activate(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, semester)
}

// Delete godoc
// @Summary Delete a semester without registrations
// @Tags Semesters
// @Param id path string true "Semester ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /semesters/{id} [delete]
func (h *SemesterHandler) Delete(c *gin.Context) {
	if err := h.semesters.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
