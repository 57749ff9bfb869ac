package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository"
	"github.com/noah-isme/registrar-api/pkg/database"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

type academicYearRepository interface {
	List(ctx context.Context) ([]models.AcademicYear, error)
	FindByID(ctx context.Context, id string) (*models.AcademicYear, error)
	Create(ctx context.Context, year *models.AcademicYear) error
}

type exclusiveFlagWriter interface {
	Set(ctx context.Context, exec sqlx.ExtContext, spec repository.FlagSpec, id string, value bool) error
	Count(ctx context.Context, exec sqlx.ExtContext, spec repository.FlagSpec, scopeValue string) (int, error)
}

// AcademicYearService manages academic years and which one is active.
type AcademicYearService struct {
	repo      academicYearRepository
	flags     exclusiveFlagWriter
	tx        txProvider
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAcademicYearService constructs the service.
func NewAcademicYearService(repo academicYearRepository, flags exclusiveFlagWriter, tx txProvider, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *AcademicYearService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcademicYearService{repo: repo, flags: flags, tx: tx, audit: audit, validator: validate, logger: logger}
}

// List returns every academic year, newest first.
func (s *AcademicYearService) List(ctx context.Context) ([]models.AcademicYear, error) {
	years, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list academic years")
	}
	return years, nil
}

// Create stores a new inactive academic year.
func (s *AcademicYearService) Create(ctx context.Context, req models.CreateAcademicYearRequest) (*models.AcademicYear, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid academic year payload")
	}
	now := time.Now().UTC()
	year := &models.AcademicYear{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, year); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "academic year name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create academic year")
	}
	return year, nil
}

// Activate makes id the only active academic year.
func (s *AcademicYearService) Activate(ctx context.Context, actor models.Actor, id string) (*models.AcademicYear, error) {
	if !actor.Role.IsApprover() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only registrars can activate academic years")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer rollback(tx, s.logger)

	if err := s.flags.Set(ctx, tx, repository.AcademicYearActive, id, true); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate academic year")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit academic year activation")
	}

	emitAudit(ctx, s.audit, s.logger, actor, models.AuditActionAcademicYearActive, "academic_year", id, nil)

	year, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "academic year")
	}
	return year, nil
}
