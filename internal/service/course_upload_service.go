package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/workflow"
	"github.com/noah-isme/registrar-api/pkg/config"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

type lecturerAssignments interface {
	IsAssigned(ctx context.Context, lecturerID, courseID, semesterID string) (bool, error)
}

// CourseUploadService handles per-course decisions and withdrawals while a registration is
// still open. Whole-registration decisions override these through the cascade.
type CourseUploadService struct {
	uploads       courseUploadRepository
	registrations registrationRepository
	approvals     approvalLog
	lecturers     lecturerAssignments
	semesters     semesterLookup
	tx            txProvider
	notifier      Notifier
	audit         auditWriter
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	cfg           config.RegistrationConfig
	now           func() time.Time
}

// CourseUploadServiceDeps groups the collaborators of CourseUploadService.
type CourseUploadServiceDeps struct {
	Uploads       courseUploadRepository
	Registrations registrationRepository
	Approvals     approvalLog
	Lecturers     lecturerAssignments
	Semesters     semesterLookup
	Tx            txProvider
	Notifier      Notifier
	Audit         auditWriter
	Metrics       *MetricsService
	Validator     *validator.Validate
	Logger        *zap.Logger
	Config        config.RegistrationConfig
}

// NewCourseUploadService constructs the service.
func NewCourseUploadService(deps CourseUploadServiceDeps) *CourseUploadService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &CourseUploadService{
		uploads:       deps.Uploads,
		registrations: deps.Registrations,
		approvals:     deps.Approvals,
		lecturers:     deps.Lecturers,
		semesters:     deps.Semesters,
		tx:            deps.Tx,
		notifier:      deps.Notifier,
		audit:         deps.Audit,
		metrics:       deps.Metrics,
		validator:     deps.Validator,
		logger:        deps.Logger,
		cfg:           deps.Config,
		now:           time.Now,
	}
}

// ApproveCourse approves one course upload.
func (s *CourseUploadService) ApproveCourse(ctx context.Context, actor models.Actor, id string, req models.CourseDecisionRequest) (*models.CourseUpload, error) {
	return s.decide(ctx, actor, id, models.StatusApproved, req)
}

// RejectCourse rejects one course upload.
func (s *CourseUploadService) RejectCourse(ctx context.Context, actor models.Actor, id string, req models.CourseDecisionRequest) (*models.CourseUpload, error) {
	return s.decide(ctx, actor, id, models.StatusRejected, req)
}

func (s *CourseUploadService) decide(ctx context.Context, actor models.Actor, id string, target models.ApprovalStatus, req models.CourseDecisionRequest) (*models.CourseUpload, error) {
	if actor.Role == models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students cannot decide course uploads")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course decision payload")
	}

	upload, err := s.uploads.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "course upload")
	}
	if err := s.authorizeReviewer(ctx, actor, upload); err != nil {
		return nil, err
	}
	if s.cfg.EnforceDeadline {
		semester, err := s.semesters.FindByID(ctx, upload.SemesterID)
		if err != nil {
			return nil, notFoundOrInternal(err, "semester")
		}
		if semester.CourseUploadDeadline != nil && s.now().After(*semester.CourseUploadDeadline) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "course upload deadline has passed")
		}
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer rollback(tx, s.logger)

	// Registration first, then upload: the same order the registration cascade locks in.
	reg, err := s.registrations.LockByID(ctx, tx, upload.RegistrationID)
	if err != nil {
		return nil, notFoundOrInternal(err, "registration")
	}
	if reg.Status != models.StatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("registration is %s; course decisions are closed", reg.Status))
	}
	upload, err = s.uploads.LockByID(ctx, tx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "course upload")
	}
	if !workflow.CanTransitionCourseUpload(upload.Status, target) {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("cannot move course upload from %s to %s", upload.Status, target))
	}

	now := s.now().UTC()
	if err := s.uploads.UpdateStatus(ctx, tx, upload.ID, target); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course upload")
	}
	if err := s.approvals.Append(ctx, tx, models.Approval{
		ID:             uuid.NewString(),
		CourseUploadID: upload.ID,
		ApproverID:     actor.UserID,
		Status:         target,
		Comments:       optionalString(req.Comments),
		CreatedAt:      now,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record approval")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit course decision")
	}

	upload.Status = target
	upload.UpdatedAt = now

	action := models.AuditActionCourseApprove
	if target == models.StatusRejected {
		action = models.AuditActionCourseReject
	}
	s.metrics.RecordTransition("course_upload", target)
	emitAudit(ctx, s.audit, s.logger, actor, action, "course_upload", upload.ID,
		map[string]string{"course_id": upload.CourseID, "comments": req.Comments})
	s.notifier.Notify(ctx, upload.UserID, "Course "+string(target),
		fmt.Sprintf("Course %s was %s.", upload.CourseID, target))

	return upload, nil
}

// authorizeReviewer lets registrars and admins decide any course and staff only the courses
// they teach in the upload's semester.
func (s *CourseUploadService) authorizeReviewer(ctx context.Context, actor models.Actor, upload *models.CourseUpload) error {
	if actor.Role.IsApprover() {
		return nil
	}
	if actor.Role != models.RoleStaff {
		return appErrors.Clone(appErrors.ErrForbidden, "not allowed to review course uploads")
	}
	assigned, err := s.lecturers.IsAssigned(ctx, actor.UserID, upload.CourseID, upload.SemesterID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check lecturer assignment")
	}
	if !assigned {
		return appErrors.Clone(appErrors.ErrForbidden, "not assigned to this course")
	}
	return nil
}

// Withdraw drops a course upload. Students may drop their own non-approved uploads; registrars
// may drop any. Dropping the last upload deletes the registration too. It reports whether the
// registration was deleted.
func (s *CourseUploadService) Withdraw(ctx context.Context, actor models.Actor, id string) (bool, error) {
	if actor.Role != models.RoleStudent && actor.Role != models.RoleRegistrar {
		return false, appErrors.Clone(appErrors.ErrForbidden, "not allowed to withdraw course uploads")
	}
	upload, err := s.uploads.FindByID(ctx, id)
	if err != nil {
		return false, notFoundOrInternal(err, "course upload")
	}
	if actor.Role == models.RoleStudent && upload.UserID != actor.UserID {
		return false, appErrors.Clone(appErrors.ErrForbidden, "course upload belongs to another student")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer rollback(tx, s.logger)

	if _, err := s.registrations.LockByID(ctx, tx, upload.RegistrationID); err != nil {
		return false, notFoundOrInternal(err, "registration")
	}
	upload, err = s.uploads.LockByID(ctx, tx, id)
	if err != nil {
		return false, notFoundOrInternal(err, "course upload")
	}
	if actor.Role == models.RoleStudent && upload.Status == models.StatusApproved {
		return false, appErrors.Clone(appErrors.ErrForbidden, "cannot drop an approved course without registrar intervention")
	}

	if err := s.uploads.Delete(ctx, tx, upload.ID); err != nil {
		return false, notFoundOrInternal(err, "course upload")
	}
	remaining, err := s.uploads.CountByRegistration(ctx, tx, upload.RegistrationID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count course uploads")
	}
	deleted := remaining == 0
	if deleted {
		if err := s.registrations.Delete(ctx, tx, upload.RegistrationID); err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete empty registration")
		}
	}
	if err := tx.Commit(); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit withdrawal")
	}

	emitAudit(ctx, s.audit, s.logger, actor, models.AuditActionCourseWithdraw, "course_upload", upload.ID,
		map[string]interface{}{"course_id": upload.CourseID, "registration_deleted": deleted})
	if actor.UserID != upload.UserID {
		s.notifier.Notify(ctx, upload.UserID, "Course withdrawn",
			fmt.Sprintf("Course %s was withdrawn from your registration by the registrar.", upload.CourseID))
	}
	return deleted, nil
}

// ListApprovals returns the append-only decision log of a course upload, oldest first.
func (s *CourseUploadService) ListApprovals(ctx context.Context, actor models.Actor, id string) ([]models.Approval, error) {
	upload, err := s.uploads.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "course upload")
	}
	if err := s.authorizeReviewer(ctx, actor, upload); err != nil {
		return nil, err
	}
	records, err := s.approvals.ListByCourseUpload(ctx, upload.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approvals")
	}
	return records, nil
}
