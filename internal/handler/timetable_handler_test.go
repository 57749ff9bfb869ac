package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

type timetableServiceMock struct {
	addSlotErr   error
	addSlotReq   models.CreateSlotRequest
	deleted      [2]string
	mineSemester string
	mineActor    models.Actor
	publishedFor string
}

func (m *timetableServiceMock) Create(_ context.Context, _ models.Actor, req models.CreateTimetableRequest) (*models.Timetable, error) {
	return &models.Timetable{ID: "tt-1", SemesterID: req.SemesterID, Name: req.Name}, nil
}

func (m *timetableServiceMock) List(_ context.Context, filter models.TimetableFilter) ([]models.Timetable, *models.Pagination, error) {
	return []models.Timetable{{ID: "tt-1", SemesterID: filter.SemesterID}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *timetableServiceMock) Get(_ context.Context, id string) (*models.Timetable, error) {
	return &models.Timetable{ID: id}, nil
}

func (m *timetableServiceMock) ListSlots(_ context.Context, id string) ([]models.TimetableSlot, error) {
	return []models.TimetableSlot{{ID: "slot-1", TimetableID: id}}, nil
}

func (m *timetableServiceMock) AddSlot(_ context.Context, _ models.Actor, timetableID string, req models.CreateSlotRequest) (*models.TimetableSlot, error) {
	m.addSlotReq = req
	if m.addSlotErr != nil {
		return nil, m.addSlotErr
	}
	return &models.TimetableSlot{ID: "slot-2", TimetableID: timetableID, CourseID: req.CourseID}, nil
}

func (m *timetableServiceMock) DeleteSlot(_ context.Context, _ models.Actor, timetableID, slotID string) error {
	m.deleted = [2]string{timetableID, slotID}
	return nil
}

func (m *timetableServiceMock) Publish(_ context.Context, _ models.Actor, id string) (*models.Timetable, error) {
	return &models.Timetable{ID: id, IsPublished: true}, nil
}

func (m *timetableServiceMock) Unpublish(_ context.Context, _ models.Actor, id string) (*models.Timetable, error) {
	return &models.Timetable{ID: id}, nil
}

func (m *timetableServiceMock) GetPublished(_ context.Context, semesterID string) (*models.PublishedTimetable, error) {
	m.publishedFor = semesterID
	if semesterID == "sem-empty" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no published timetable for semester")
	}
	return &models.PublishedTimetable{Timetable: models.Timetable{ID: "tt-1", SemesterID: semesterID, IsPublished: true}}, nil
}

func (m *timetableServiceMock) MyTimetable(_ context.Context, actor models.Actor, semesterID string) (*models.PublishedTimetable, error) {
	m.mineActor = actor
	m.mineSemester = semesterID
	return &models.PublishedTimetable{}, nil
}

func TestTimetableHandlerAddSlot(t *testing.T) {
	svc := &timetableServiceMock{}
	h := NewTimetableHandler(svc)

	body := `{"course_id":"CS101","day_of_week":1,"start_time":"09:00","end_time":"10:00","room_number":"A1"}`
	c, w := newContext(http.MethodPost, "/timetables/tt-1/slots", body, staffClaims, idParam("tt-1"))
	h.AddSlot(c)

	requireStatus(t, w, http.StatusCreated)
	require.NotNil(t, svc.addSlotReq.DayOfWeek)
	assert.Equal(t, 1, *svc.addSlotReq.DayOfWeek)
	assert.Equal(t, "09:00", svc.addSlotReq.StartTime)
}

func TestTimetableHandlerAddSlotConflictListsEveryOverlap(t *testing.T) {
	conflicts := []models.TimetableSlot{
		{ID: "slot-a", DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00", RoomNumber: "A1"},
		{ID: "slot-b", DayOfWeek: 1, StartTime: "09:30", EndTime: "11:00", RoomNumber: "B2"},
	}
	svc := &timetableServiceMock{
		addSlotErr: appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrConflict, "slot overlaps 2 existing slot(s)"),
			&models.SlotConflictError{Slot: conflicts[0], Slots: conflicts},
		),
	}
	h := NewTimetableHandler(svc)

	body := `{"course_id":"CS101","day_of_week":1,"start_time":"09:15","end_time":"09:45"}`
	c, w := newContext(http.MethodPost, "/timetables/tt-1/slots", body, staffClaims, idParam("tt-1"))
	h.AddSlot(c)

	requireStatus(t, w, http.StatusConflict)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrConflict.Code, env.Error.Code)

	var details models.SlotConflictError
	require.NoError(t, json.Unmarshal(env.Error.Details, &details))
	require.Len(t, details.Slots, 2)
	assert.Equal(t, "slot-a", details.Slots[0].ID)
	assert.Equal(t, "slot-b", details.Slots[1].ID)
}

func TestTimetableHandlerDeleteSlot(t *testing.T) {
	svc := &timetableServiceMock{}
	h := NewTimetableHandler(svc)

	c, w := newContext(http.MethodDelete, "/timetables/tt-1/slots/slot-1", "", staffClaims,
		idParam("tt-1"), gin.Param{Key: "slotId", Value: "slot-1"})
	h.DeleteSlot(c)
	c.Writer.WriteHeaderNow()

	requireStatus(t, w, http.StatusNoContent)
	assert.Equal(t, [2]string{"tt-1", "slot-1"}, svc.deleted)
}

func TestTimetableHandlerPublished(t *testing.T) {
	svc := &timetableServiceMock{}
	h := NewTimetableHandler(svc)

	c, w := newContext(http.MethodGet, "/semesters/sem-1/published-timetable", "", studentClaims, idParam("sem-1"))
	h.Published(c)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "sem-1", svc.publishedFor)

	c, w = newContext(http.MethodGet, "/semesters/sem-empty/published-timetable", "", studentClaims, idParam("sem-empty"))
	h.Published(c)
	requireStatus(t, w, http.StatusNotFound)
}

func TestTimetableHandlerMine(t *testing.T) {
	svc := &timetableServiceMock{}
	h := NewTimetableHandler(svc)

	c, w := newContext(http.MethodGet, "/timetables/me?semester_id=sem-2", "", studentClaims)
	h.Mine(c)

	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "sem-2", svc.mineSemester)
	assert.Equal(t, "stu-1", svc.mineActor.UserID)
}
