package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

type registrationServiceMock struct {
	submitReq   models.SubmitRegistrationRequest
	submitActor models.Actor
	submitErr   error
	rejectReq   models.RejectRegistrationRequest
	listFilter  models.RegistrationFilter
	exportSem   string
	exportFmt   string
	approveErr  error
	called      map[string]bool
}

func newRegistrationServiceMock() *registrationServiceMock {
	return &registrationServiceMock{called: map[string]bool{}}
}

func (m *registrationServiceMock) Submit(_ context.Context, actor models.Actor, req models.SubmitRegistrationRequest) (*models.RegistrationDetail, error) {
	m.called["submit"] = true
	m.submitActor = actor
	m.submitReq = req
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &models.RegistrationDetail{Registration: models.Registration{ID: "reg-1", UserID: actor.UserID, Status: models.StatusPending}}, nil
}

func (m *registrationServiceMock) Approve(_ context.Context, _ models.Actor, id string) (*models.ApprovalResult, error) {
	m.called["approve"] = true
	if m.approveErr != nil {
		return nil, m.approveErr
	}
	return &models.ApprovalResult{
		Registration: models.RegistrationDetail{Registration: models.Registration{ID: id, Status: models.StatusApproved}},
		Card:         models.RegistrationCard{CardNumber: "REG-2024-0001"},
	}, nil
}

func (m *registrationServiceMock) Reject(_ context.Context, _ models.Actor, id string, req models.RejectRegistrationRequest) (*models.RegistrationDetail, error) {
	m.called["reject"] = true
	m.rejectReq = req
	return &models.RegistrationDetail{Registration: models.Registration{ID: id, Status: models.StatusRejected}}, nil
}

func (m *registrationServiceMock) Get(_ context.Context, _ models.Actor, id string) (*models.RegistrationDetail, error) {
	if id == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
	}
	return &models.RegistrationDetail{Registration: models.Registration{ID: id}}, nil
}

func (m *registrationServiceMock) GetMine(_ context.Context, actor models.Actor, _ string) (*models.RegistrationDetail, error) {
	return &models.RegistrationDetail{Registration: models.Registration{ID: "reg-1", UserID: actor.UserID}}, nil
}

func (m *registrationServiceMock) List(_ context.Context, filter models.RegistrationFilter) ([]models.Registration, *models.Pagination, error) {
	m.listFilter = filter
	return []models.Registration{{ID: "reg-1"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (m *registrationServiceMock) Export(_ context.Context, semesterID, format string) (*models.ExportFile, error) {
	m.exportSem = semesterID
	m.exportFmt = format
	return &models.ExportFile{Filename: "registrations.csv", ContentType: "text/csv", Body: []byte("id,user_id\nreg-1,stu-1\n")}, nil
}

func TestRegistrationHandlerSubmit(t *testing.T) {
	svc := newRegistrationServiceMock()
	h := NewRegistrationHandler(svc)

	c, w := newContext(http.MethodPost, "/registrations", `{"course_ids":["CS101","MA201"]}`, studentClaims)
	h.Submit(c)

	requireStatus(t, w, http.StatusCreated)
	assert.Equal(t, []string{"CS101", "MA201"}, svc.submitReq.CourseIDs)
	assert.Equal(t, models.Actor{UserID: "stu-1", Role: models.RoleStudent}, svc.submitActor)
}

func TestRegistrationHandlerSubmitMalformedBody(t *testing.T) {
	svc := newRegistrationServiceMock()
	h := NewRegistrationHandler(svc)

	c, w := newContext(http.MethodPost, "/registrations", `{"course_ids":`, studentClaims)
	h.Submit(c)

	requireStatus(t, w, http.StatusBadRequest)
	assert.False(t, svc.called["submit"])
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, w).Error.Code)
}

func TestRegistrationHandlerSubmitDuplicate(t *testing.T) {
	svc := newRegistrationServiceMock()
	svc.submitErr = appErrors.Clone(appErrors.ErrConflict, "registration already exists for this semester")
	h := NewRegistrationHandler(svc)

	c, w := newContext(http.MethodPost, "/registrations", `{"course_ids":["CS101"]}`, studentClaims)
	h.Submit(c)

	requireStatus(t, w, http.StatusConflict)
	assert.Equal(t, appErrors.ErrConflict.Code, decodeEnvelope(t, w).Error.Code)
}

func TestRegistrationHandlerListFilters(t *testing.T) {
	svc := newRegistrationServiceMock()
	h := NewRegistrationHandler(svc)

	c, w := newContext(http.MethodGet, "/registrations?semester_id=sem-1&status=approved&page=2&page_size=5", "", registrarClaims)
	h.List(c)

	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "sem-1", svc.listFilter.SemesterID)
	require.NotNil(t, svc.listFilter.Status)
	assert.Equal(t, models.StatusApproved, *svc.listFilter.Status)
	assert.Equal(t, 2, svc.listFilter.Page)
	assert.Equal(t, 5, svc.listFilter.PageSize)

	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
}

func TestRegistrationHandlerListRejectsUnknownStatus(t *testing.T) {
	h := NewRegistrationHandler(newRegistrationServiceMock())

	c, w := newContext(http.MethodGet, "/registrations?status=archived", "", registrarClaims)
	h.List(c)

	requireStatus(t, w, http.StatusBadRequest)
}

func TestRegistrationHandlerExport(t *testing.T) {
	svc := newRegistrationServiceMock()
	h := NewRegistrationHandler(svc)

	c, w := newContext(http.MethodGet, "/registrations/export?semester_id=sem-1&format=csv", "", registrarClaims)
	h.Export(c)

	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "sem-1", svc.exportSem)
	assert.Equal(t, "csv", svc.exportFmt)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="registrations.csv"`)
	assert.Contains(t, w.Body.String(), "reg-1,stu-1")
}

func TestRegistrationHandlerGetNotFound(t *testing.T) {
	h := NewRegistrationHandler(newRegistrationServiceMock())

	c, w := newContext(http.MethodGet, "/registrations/missing", "", registrarClaims, idParam("missing"))
	h.Get(c)

	requireStatus(t, w, http.StatusNotFound)
}

func TestRegistrationHandlerApprove(t *testing.T) {
	svc := newRegistrationServiceMock()
	h := NewRegistrationHandler(svc)

	c, w := newContext(http.MethodPost, "/registrations/reg-1/approve", "", registrarClaims, idParam("reg-1"))
	h.Approve(c)

	requireStatus(t, w, http.StatusOK)
	assert.Contains(t, string(decodeEnvelope(t, w).Data), "REG-2024-0001")
}

func TestRegistrationHandlerApproveInconsistentState(t *testing.T) {
	svc := newRegistrationServiceMock()
	svc.approveErr = appErrors.Clone(appErrors.ErrInconsistentState, "card belongs to another registration")
	h := NewRegistrationHandler(svc)

	c, w := newContext(http.MethodPost, "/registrations/reg-1/approve", "", registrarClaims, idParam("reg-1"))
	h.Approve(c)

	requireStatus(t, w, http.StatusInternalServerError)
	assert.Equal(t, appErrors.ErrInconsistentState.Code, decodeEnvelope(t, w).Error.Code)
}

func TestRegistrationHandlerReject(t *testing.T) {
	svc := newRegistrationServiceMock()
	h := NewRegistrationHandler(svc)

	c, w := newContext(http.MethodPost, "/registrations/reg-1/reject", `{"reason":"missing prerequisite"}`, registrarClaims, idParam("reg-1"))
	h.Reject(c)

	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "missing prerequisite", svc.rejectReq.Reason)
}
