package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/pkg/response"
)

type timetableService interface {
	Create(ctx context.Context, actor models.Actor, req models.CreateTimetableRequest) (*models.Timetable, error)
	List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Timetable, error)
	ListSlots(ctx context.Context, id string) ([]models.TimetableSlot, error)
	AddSlot(ctx context.Context, actor models.Actor, timetableID string, req models.CreateSlotRequest) (*models.TimetableSlot, error)
	DeleteSlot(ctx context.Context, actor models.Actor, timetableID, slotID string) error
	Publish(ctx context.Context, actor models.Actor, id string) (*models.Timetable, error)
	Unpublish(ctx context.Context, actor models.Actor, id string) (*models.Timetable, error)
	GetPublished(ctx context.Context, semesterID string) (*models.PublishedTimetable, error)
	MyTimetable(ctx context.Context, actor models.Actor, semesterID string) (*models.PublishedTimetable, error)
}

// TimetableHandler exposes timetables, slots and publication.
type TimetableHandler struct {
	service timetableService
}

// NewTimetableHandler builds a new handler.
func NewTimetableHandler(svc timetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Create godoc
// @Summary Create a draft timetable
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body models.CreateTimetableRequest true "Timetable"
// @Success 201 {object} response.Envelope
// @Router /timetables [post]
func (h *TimetableHandler) Create(c *gin.Context) {
	var req models.CreateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid timetable payload"))
		return
	}
	timetable, err := h.service.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, timetable)
}

// List godoc
// @Summary List timetables
// @Tags Timetables
// @Produce json
// @Param semester_id query string false "Semester ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	filter := models.TimetableFilter{SemesterID: c.Query("semester_id")}
	filter.Page, filter.PageSize = pageParams(c)
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	timetable, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, timetable)
}

// Slots godoc
// @Summary List the slots of a timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/slots [get]
func (h *TimetableHandler) Slots(c *gin.Context) {
	slots, err := h.service.ListSlots(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, slots)
}

// AddSlot godoc
// @Summary Book a slot
// @Description Fails with 409 and every overlapping slot when the time range collides on the same day.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body models.CreateSlotRequest true "Slot"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/{id}/slots [post]
func (h *TimetableHandler) AddSlot(c *gin.Context) {
	var req models.CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid slot payload"))
		return
	}
	slot, err := h.service.AddSlot(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// DeleteSlot godoc
// @Summary Remove a slot
// @Tags Timetables
// @Param id path string true "Timetable ID"
// @Param slotId path string true "Slot ID"
// @Success 204
// @Router /timetables/{id}/slots/{slotId} [delete]
func (h *TimetableHandler) DeleteSlot(c *gin.Context) {
	if err := h.service.DeleteSlot(c.Request.Context(), actorFromContext(c), c.Param("id"), c.Param("slotId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Publish godoc
// @Summary Publish a timetable
// @Description Unpublishes every other timetable of the semester.
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	timetable, err := h.service.Publish(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, timetable)
}

// Unpublish godoc
// @Summary Unpublish a timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/unpublish [post]
func (h *TimetableHandler) Unpublish(c *gin.Context) {
	timetable, err := h.service.Unpublish(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, timetable)
}

// Published godoc
// @Summary Get the published timetable of a semester
// @Tags Timetables
// @Produce json
// @Param id path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{id}/published-timetable [get]
func (h *TimetableHandler) Published(c *gin.Context) {
	published, err := h.service.GetPublished(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, published)
}

// Mine godoc
// @Summary Get the caller's personal timetable
// @Tags Timetables
// @Produce json
// @Param semester_id query string false "Semester ID (defaults to active)"
// @Success 200 {object} response.Envelope
// @Router /timetables/me [get]
func (h *TimetableHandler) Mine(c *gin.Context) {
	projection, err := h.service.MyTimetable(c.Request.Context(), actorFromContext(c), c.Query("semester_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, projection)
}
