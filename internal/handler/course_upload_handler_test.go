package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

type courseUploadServiceMock struct {
	decisions []models.ApprovalStatus
	comments  string
	withdrawn bool
}

func (m *courseUploadServiceMock) ApproveCourse(_ context.Context, _ models.Actor, id string, req models.CourseDecisionRequest) (*models.CourseUpload, error) {
	m.decisions = append(m.decisions, models.StatusApproved)
	m.comments = req.Comments
	return &models.CourseUpload{ID: id, Status: models.StatusApproved}, nil
}

func (m *courseUploadServiceMock) RejectCourse(_ context.Context, actor models.Actor, id string, req models.CourseDecisionRequest) (*models.CourseUpload, error) {
	if actor.Role == models.RoleStaff && id == "cu-foreign" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not assigned to this course")
	}
	m.decisions = append(m.decisions, models.StatusRejected)
	m.comments = req.Comments
	return &models.CourseUpload{ID: id, Status: models.StatusRejected}, nil
}

func (m *courseUploadServiceMock) Withdraw(_ context.Context, _ models.Actor, id string) (bool, error) {
	if id == "cu-approved" {
		return false, appErrors.Clone(appErrors.ErrValidation, "approved courses cannot be withdrawn")
	}
	return m.withdrawn, nil
}

func (m *courseUploadServiceMock) ListApprovals(_ context.Context, _ models.Actor, id string) ([]models.Approval, error) {
	return []models.Approval{{ID: "ap-1", CourseUploadID: id, Status: models.StatusApproved}}, nil
}

func TestCourseUploadHandlerApproveWithoutBody(t *testing.T) {
	svc := &courseUploadServiceMock{}
	h := NewCourseUploadHandler(svc)

	c, w := newContext(http.MethodPost, "/course-uploads/cu-1/approve", "", staffClaims, idParam("cu-1"))
	h.Approve(c)

	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, []models.ApprovalStatus{models.StatusApproved}, svc.decisions)
	assert.Empty(t, svc.comments)
}

func TestCourseUploadHandlerRejectWithComments(t *testing.T) {
	svc := &courseUploadServiceMock{}
	h := NewCourseUploadHandler(svc)

	c, w := newContext(http.MethodPost, "/course-uploads/cu-1/reject", `{"comments":"section full"}`, staffClaims, idParam("cu-1"))
	h.Reject(c)

	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "section full", svc.comments)
}

func TestCourseUploadHandlerRejectMalformedBody(t *testing.T) {
	svc := &courseUploadServiceMock{}
	h := NewCourseUploadHandler(svc)

	c, w := newContext(http.MethodPost, "/course-uploads/cu-1/reject", `{"comments":`, staffClaims, idParam("cu-1"))
	h.Reject(c)

	requireStatus(t, w, http.StatusBadRequest)
	assert.Empty(t, svc.decisions)
}

func TestCourseUploadHandlerRejectForbidden(t *testing.T) {
	h := NewCourseUploadHandler(&courseUploadServiceMock{})

	c, w := newContext(http.MethodPost, "/course-uploads/cu-foreign/reject", "", staffClaims, idParam("cu-foreign"))
	h.Reject(c)

	requireStatus(t, w, http.StatusForbidden)
}

func TestCourseUploadHandlerWithdraw(t *testing.T) {
	svc := &courseUploadServiceMock{withdrawn: true}
	h := NewCourseUploadHandler(svc)

	c, w := newContext(http.MethodDelete, "/course-uploads/cu-1", "", studentClaims, idParam("cu-1"))
	h.Withdraw(c)
	requireStatus(t, w, http.StatusOK)
	assert.JSONEq(t, `{"registration_deleted":true}`, string(decodeEnvelope(t, w).Data))

	c, w = newContext(http.MethodDelete, "/course-uploads/cu-approved", "", studentClaims, idParam("cu-approved"))
	h.Withdraw(c)
	requireStatus(t, w, http.StatusBadRequest)
}

func TestCourseUploadHandlerApprovals(t *testing.T) {
	h := NewCourseUploadHandler(&courseUploadServiceMock{})

	c, w := newContext(http.MethodGet, "/course-uploads/cu-1/approvals", "", registrarClaims, idParam("cu-1"))
	h.Approvals(c)

	requireStatus(t, w, http.StatusOK)
	assert.Contains(t, string(decodeEnvelope(t, w).Data), `"course_upload_id":"cu-1"`)
}
