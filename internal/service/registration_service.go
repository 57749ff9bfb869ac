package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/workflow"
	"github.com/noah-isme/registrar-api/pkg/config"
	"github.com/noah-isme/registrar-api/pkg/database"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
	"github.com/noah-isme/registrar-api/pkg/export"
)

type registrationRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, reg *models.Registration) error
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Registration, error)
	FindByUserSemester(ctx context.Context, exec sqlx.ExtContext, userID, semesterID string) (*models.Registration, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, reg *models.Registration) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, int, error)
	ListAll(ctx context.Context, semesterID string) ([]models.Registration, error)
}

type courseUploadRepository interface {
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, uploads []models.CourseUpload) error
	FindByID(ctx context.Context, id string) (*models.CourseUpload, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseUpload, error)
	ListByRegistration(ctx context.Context, exec sqlx.ExtContext, registrationID string) ([]models.CourseUpload, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ApprovalStatus) error
	CascadeStatus(ctx context.Context, exec sqlx.ExtContext, registrationID string, status models.ApprovalStatus) ([]string, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	DeleteByRegistration(ctx context.Context, exec sqlx.ExtContext, registrationID string) error
	CountByRegistration(ctx context.Context, exec sqlx.ExtContext, registrationID string) (int, error)
}

type approvalLog interface {
	Append(ctx context.Context, exec sqlx.ExtContext, approvals ...models.Approval) error
	ListByCourseUpload(ctx context.Context, courseUploadID string) ([]models.Approval, error)
}

type registrationCards interface {
	Issue(ctx context.Context, exec sqlx.ExtContext, reg *models.Registration) (*models.RegistrationCard, bool, error)
	Lookup(ctx context.Context, userID, semesterID string) (*models.RegistrationCard, error)
}

var registrationExportHeaders = []string{
	"id", "user_id", "semester_id", "status", "rejection_reason", "reviewed_by", "reviewed_at", "created_at",
}

// RegistrationService drives the registration state machine: submission, whole-registration
// approval with its course cascade and card issuance, and rejection.
type RegistrationService struct {
	registrations registrationRepository
	uploads       courseUploadRepository
	approvals     approvalLog
	cards         registrationCards
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

// RegistrationServiceDeps groups the collaborators of RegistrationService.
type RegistrationServiceDeps struct {
	Registrations registrationRepository
	Uploads       courseUploadRepository
	Approvals     approvalLog
	Cards         registrationCards
	Semesters     semesterLookup
	Tx            txProvider
	Notifier      Notifier
	Audit         auditWriter
	Metrics       *MetricsService
	Validator     *validator.Validate
	Logger        *zap.Logger
	Config        config.RegistrationConfig
}

// NewRegistrationService constructs the service.
func NewRegistrationService(deps RegistrationServiceDeps) *RegistrationService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Config.ResubmitPolicy == "" {
		deps.Config.ResubmitPolicy = config.ResubmitReject
	}
	return &RegistrationService{
		registrations: deps.Registrations,
		uploads:       deps.Uploads,
		approvals:     deps.Approvals,
		cards:         deps.Cards,
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

// Submit creates the caller's registration for a semester (the active one when unset) with one
// PENDING course upload per course. An existing registration is handled by the resubmit policy.
func (s *RegistrationService) Submit(ctx context.Context, actor models.Actor, req models.SubmitRegistrationRequest) (*models.RegistrationDetail, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can submit registrations")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	courseIDs, err := normalizeCourseIDs(req.CourseIDs)
	if err != nil {
		return nil, err
	}

	semester, err := resolveSemester(ctx, s.semesters, req.SemesterID)
	if err != nil {
		return nil, err
	}
	if s.cfg.EnforceDeadline && semester.RegistrationDeadline != nil && s.now().After(*semester.RegistrationDeadline) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "registration deadline has passed")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer rollback(tx, s.logger)

	now := s.now().UTC()
	reg, err := s.openRegistration(ctx, tx, actor.UserID, semester.ID, now)
	if err != nil {
		return nil, err
	}

	uploads := make([]models.CourseUpload, 0, len(courseIDs))
	for _, courseID := range courseIDs {
		uploads = append(uploads, models.CourseUpload{
			ID:             uuid.NewString(),
			RegistrationID: reg.ID,
			UserID:         actor.UserID,
			SemesterID:     semester.ID,
			CourseID:       courseID,
			Status:         models.StatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	if err := s.uploads.CreateBatch(ctx, tx, uploads); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store course uploads")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit registration")
	}

	s.metrics.RecordTransition("registration", models.StatusPending)
	emitAudit(ctx, s.audit, s.logger, actor, models.AuditActionRegistrationSubmit, "registration", reg.ID,
		map[string]interface{}{"semester_id": semester.ID, "course_ids": courseIDs})
	s.notifier.Notify(ctx, actor.UserID, "Registration submitted",
		fmt.Sprintf("Your registration for %s was received with %d course(s).", semester.Name, len(courseIDs)))
	s.notifier.NotifyRole(ctx, models.RoleRegistrar, "New registration",
		fmt.Sprintf("A registration for %s is waiting for review.", semester.Name))

	return &models.RegistrationDetail{Registration: *reg, CourseUploads: uploads}, nil
}

// openRegistration returns a PENDING registration with no uploads for (userID, semesterID),
// creating it or, under the reset policy, reopening an existing one.
func (s *RegistrationService) openRegistration(ctx context.Context, tx *sqlx.Tx, userID, semesterID string, now time.Time) (*models.Registration, error) {
	existing, err := s.registrations.FindByUserSemester(ctx, tx, userID, semesterID)
	switch {
	case err == nil:
		if s.cfg.ResubmitPolicy != config.ResubmitReset {
			return nil, appErrors.Clone(appErrors.ErrConflict, "registration already exists for this semester")
		}
		if existing.Status == models.StatusApproved {
			return nil, appErrors.Clone(appErrors.ErrConflict, "approved registration cannot be resubmitted")
		}
		if err := s.uploads.DeleteByRegistration(ctx, tx, existing.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear course uploads")
		}
		existing.Status = models.StatusPending
		existing.RejectionReason = nil
		existing.ReviewedBy = nil
		existing.ReviewedAt = nil
		existing.UpdatedAt = now
		if err := s.registrations.UpdateStatus(ctx, tx, existing); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reopen registration")
		}
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	reg := &models.Registration{
		ID:         uuid.NewString(),
		UserID:     userID,
		SemesterID: semesterID,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.registrations.Create(ctx, tx, reg); err != nil {
		if database.IsUniqueViolation(err, "registrations_user_semester_key") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "registration already exists for this semester")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}
	return reg, nil
}

// Approve approves a registration, force-approves every course upload and issues the card,
// all in one transaction. Re-approving an approved registration changes nothing and returns
// the existing card.
func (s *RegistrationService) Approve(ctx context.Context, actor models.Actor, id string) (*models.ApprovalResult, error) {
	if !actor.Role.IsApprover() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only registrars can approve registrations")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer rollback(tx, s.logger)

	reg, transitioned, err := s.decide(ctx, tx, actor, id, models.StatusApproved, nil)
	if err != nil {
		return nil, err
	}
	card, created, err := s.cards.Issue(ctx, tx, reg)
	if err != nil {
		return nil, err
	}
	uploads, err := s.uploads.ListByRegistration(ctx, tx, reg.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course uploads")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit approval")
	}

	if created {
		s.metrics.RecordCardIssued()
		emitAudit(ctx, s.audit, s.logger, actor, models.AuditActionCardIssue, "registration_card", card.ID,
			map[string]string{"card_number": card.CardNumber})
	}
	if transitioned {
		s.metrics.RecordTransition("registration", models.StatusApproved)
		emitAudit(ctx, s.audit, s.logger, actor, models.AuditActionRegistrationApprove, "registration", reg.ID, nil)
		s.notifier.Notify(ctx, reg.UserID, "Registration approved",
			fmt.Sprintf("Your registration was approved. Card number %s.", card.CardNumber))
	}

	return &models.ApprovalResult{
		Registration: models.RegistrationDetail{Registration: *reg, CourseUploads: uploads, Card: card},
		Card:         *card,
	}, nil
}

// Reject rejects a PENDING registration with a reason and cascades REJECTED to its uploads.
func (s *RegistrationService) Reject(ctx context.Context, actor models.Actor, id string, req models.RejectRegistrationRequest) (*models.RegistrationDetail, error) {
	if !actor.Role.IsApprover() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only registrars can reject registrations")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rejection payload")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer rollback(tx, s.logger)

	reg, _, err := s.decide(ctx, tx, actor, id, models.StatusRejected, &reason)
	if err != nil {
		return nil, err
	}
	uploads, err := s.uploads.ListByRegistration(ctx, tx, reg.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course uploads")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit rejection")
	}

	s.metrics.RecordTransition("registration", models.StatusRejected)
	emitAudit(ctx, s.audit, s.logger, actor, models.AuditActionRegistrationReject, "registration", reg.ID,
		map[string]string{"reason": reason})
	s.notifier.Notify(ctx, reg.UserID, "Registration rejected", "Your registration was rejected: "+reason)

	return &models.RegistrationDetail{Registration: *reg, CourseUploads: uploads}, nil
}

// decide locks the registration, applies the transition to target and cascades it to every
// course upload, appending one cascade approval record per upload it changed. transitioned is
// false when the registration already held target; nothing is written in that case.
func (s *RegistrationService) decide(ctx context.Context, tx *sqlx.Tx, actor models.Actor, id string, target models.ApprovalStatus, reason *string) (reg *models.Registration, transitioned bool, err error) {
	reg, err = s.registrations.LockByID(ctx, tx, id)
	if err != nil {
		return nil, false, notFoundOrInternal(err, "registration")
	}
	if !workflow.CanTransitionRegistration(reg.Status, target) {
		return nil, false, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("cannot move registration from %s to %s", reg.Status, target))
	}
	if reg.Status == target {
		return reg, false, nil
	}

	reviewedAt := s.now().UTC()
	reg.Status = target
	reg.RejectionReason = reason
	reg.ReviewedBy = &actor.UserID
	reg.ReviewedAt = &reviewedAt
	reg.UpdatedAt = reviewedAt
	if err := s.registrations.UpdateStatus(ctx, tx, reg); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update registration")
	}

	childStatus, ok := workflow.Cascade(target)
	if !ok {
		return reg, true, nil
	}
	changed, err := s.uploads.CascadeStatus(ctx, tx, reg.ID, childStatus)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cascade course uploads")
	}
	if len(changed) == 0 {
		return reg, true, nil
	}
	records := make([]models.Approval, 0, len(changed))
	for _, uploadID := range changed {
		records = append(records, models.Approval{
			ID:             uuid.NewString(),
			CourseUploadID: uploadID,
			ApproverID:     actor.UserID,
			Status:         childStatus,
			Comments:       reason,
			Cascade:        true,
			CreatedAt:      reviewedAt,
		})
	}
	if err := s.approvals.Append(ctx, tx, records...); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record cascade approvals")
	}
	return reg, true, nil
}

// Get returns a registration with its uploads and card. Students only see their own.
func (s *RegistrationService) Get(ctx context.Context, actor models.Actor, id string) (*models.RegistrationDetail, error) {
	reg, err := s.registrations.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "registration")
	}
	if actor.Role == models.RoleStudent && reg.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another student")
	}
	return s.detail(ctx, reg)
}

// GetMine returns the caller's registration for a semester (the active one when unset).
func (s *RegistrationService) GetMine(ctx context.Context, actor models.Actor, semesterID string) (*models.RegistrationDetail, error) {
	semester, err := resolveSemester(ctx, s.semesters, semesterID)
	if err != nil {
		return nil, err
	}
	reg, err := s.registrations.FindByUserSemester(ctx, nil, actor.UserID, semester.ID)
	if err != nil {
		return nil, notFoundOrInternal(err, "registration")
	}
	return s.detail(ctx, reg)
}

func (s *RegistrationService) detail(ctx context.Context, reg *models.Registration) (*models.RegistrationDetail, error) {
	uploads, err := s.uploads.ListByRegistration(ctx, nil, reg.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course uploads")
	}
	detail := &models.RegistrationDetail{Registration: *reg, CourseUploads: uploads}
	if reg.Status == models.StatusApproved {
		card, err := s.cards.Lookup(ctx, reg.UserID, reg.SemesterID)
		if err != nil {
			return nil, err
		}
		detail.Card = card
	}
	return detail, nil
}

// List returns a filtered page of registrations.
func (s *RegistrationService) List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, *models.Pagination, error) {
	items, total, err := s.registrations.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return items, paginate(filter.Page, filter.PageSize, total), nil
}

// Export renders every registration of a semester as CSV or as a PDF table.
func (s *RegistrationService) Export(ctx context.Context, semesterID, format string) (*models.ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = models.ExportFormatCSV
	}
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	semester, err := resolveSemester(ctx, s.semesters, semesterID)
	if err != nil {
		return nil, err
	}
	regs, err := s.registrations.ListAll(ctx, semester.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registrations")
	}

	rows := make([]map[string]string, 0, len(regs))
	for _, reg := range regs {
		row := map[string]string{
			"id":          reg.ID,
			"user_id":     reg.UserID,
			"semester_id": reg.SemesterID,
			"status":      string(reg.Status),
			"created_at":  reg.CreatedAt.UTC().Format(time.RFC3339),
		}
		if reg.RejectionReason != nil {
			row["rejection_reason"] = *reg.RejectionReason
		}
		if reg.ReviewedBy != nil {
			row["reviewed_by"] = *reg.ReviewedBy
		}
		if reg.ReviewedAt != nil {
			row["reviewed_at"] = reg.ReviewedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}

	dataset := export.Dataset{Headers: registrationExportHeaders, Rows: rows}
	file := &models.ExportFile{Filename: fmt.Sprintf("registrations-%s.%s", strings.ToLower(semester.Code), format)}
	if format == models.ExportFormatPDF {
		file.ContentType = "application/pdf"
		file.Body, err = export.NewPDFExporter().Render(dataset, "Registrations "+semester.Code)
	} else {
		file.ContentType = "text/csv"
		file.Body, err = export.NewCSVExporter().Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return file, nil
}

func normalizeCourseIDs(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "course id must not be blank")
		}
		if _, dup := seen[id]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate course id %q", id))
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one course is required")
	}
	return out, nil
}
