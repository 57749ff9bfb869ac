package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository"
	"github.com/noah-isme/registrar-api/internal/workflow"
	"github.com/noah-isme/registrar-api/pkg/database"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

type semesterRepository interface {
	List(ctx context.Context, academicYearID string) ([]models.Semester, error)
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	FindActive(ctx context.Context) (*models.Semester, error)
	Create(ctx context.Context, semester *models.Semester) error
	CountRegistrations(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
}

type academicYearReader interface {
	FindByID(ctx context.Context, id string) (*models.AcademicYear, error)
}

// SemesterService manages semesters and the single active semester.
type SemesterService struct {
	repo      semesterRepository
	years     academicYearReader
	flags     exclusiveFlagWriter
	tx        txProvider
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSemesterService constructs the service.
func NewSemesterService(repo semesterRepository, years academicYearReader, flags exclusiveFlagWriter, tx txProvider, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *SemesterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemesterService{repo: repo, years: years, flags: flags, tx: tx, audit: audit, validator: validate, logger: logger}
}

// List returns semesters, optionally limited to one academic year.
func (s *SemesterService) List(ctx context.Context, academicYearID string) ([]models.Semester, error) {
	semesters, err := s.repo.List(ctx, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
	}
	return semesters, nil
}

// Get returns one semester.
func (s *SemesterService) Get(ctx context.Context, id string) (*models.Semester, error) {
	semester, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "semester")
	}
	return semester, nil
}

// GetActive returns the active semester.
func (s *SemesterService) GetActive(ctx context.Context) (*models.Semester, error) {
	return resolveSemester(ctx, s.repo, "")
}

// Create stores a new inactive semester. The code is upper-cased and must be usable as a
// card number prefix.
func (s *SemesterService) Create(ctx context.Context, req models.CreateSemesterRequest) (*models.Semester, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester payload")
	}
	code, err := workflow.NormalizeSemesterCode(req.Code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester code")
	}
	for _, deadline := range []*time.Time{req.RegistrationDeadline, req.CourseUploadDeadline} {
		if deadline != nil && deadline.After(req.EndDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "deadlines must not be after the semester end date")
		}
	}
	if req.AcademicYearID != nil {
		if _, err := s.years.FindByID(ctx, *req.AcademicYearID); err != nil {
			return nil, notFoundOrInternal(err, "academic year")
		}
	}

	now := time.Now().UTC()
	semester := &models.Semester{
		ID:                   uuid.NewString(),
		AcademicYearID:       req.AcademicYearID,
		Name:                 strings.TrimSpace(req.Name),
		Code:                 code,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		RegistrationDeadline: req.RegistrationDeadline,
		CourseUploadDeadline: req.CourseUploadDeadline,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repo.Create(ctx, semester); err != nil {
		switch {
		case database.IsUniqueViolation(err, "semesters_code_key"):
			return nil, appErrors.Clone(appErrors.ErrConflict, "semester code already exists")
		case database.IsUniqueViolation(err, ""):
			return nil, appErrors.Clone(appErrors.ErrConflict, "semester name already exists")
		case database.IsCheckViolation(err):
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "semester dates are inconsistent")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create semester")
	}
	return semester, nil
}

// Activate makes id the only active semester.
func (s *SemesterService) Activate(ctx context.Context, actor models.Actor, id string) (*models.Semester, error) {
	if !actor.Role.IsApprover() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only registrars can activate semesters")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer rollback(tx, s.logger)

	if err := s.flags.Set(ctx, tx, repository.SemesterActive, id, true); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate semester")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit semester activation")
	}

	emitAudit(ctx, s.audit, s.logger, actor, models.AuditActionSemesterActivate, "semester", id, nil)
	return s.Get(ctx, id)
}

// Delete removes a semester that no registration references.
func (s *SemesterService) Delete(ctx context.Context, id string) error {
	count, err := s.repo.CountRegistrations(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registrations")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "semester has registrations and cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		case database.IsForeignKeyViolation(err, ""):
			return appErrors.Clone(appErrors.ErrConflict, "semester is still referenced")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete semester")
	}
	return nil
}
