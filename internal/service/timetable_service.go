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
	"github.com/noah-isme/registrar-api/internal/repository"
	"github.com/noah-isme/registrar-api/internal/workflow"
	"github.com/noah-isme/registrar-api/pkg/database"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

type timetableRepository interface {
	Create(ctx context.Context, timetable *models.Timetable) error
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Timetable, error)
	List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error)
	ListPublished(ctx context.Context, semesterID string) ([]models.Timetable, error)
}

type timetableSlotRepository interface {
	ListByDay(ctx context.Context, exec sqlx.ExtContext, timetableID string, day int) ([]models.TimetableSlot, error)
	ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSlot, error)
	Create(ctx context.Context, exec sqlx.ExtContext, slot *models.TimetableSlot) error
	Delete(ctx context.Context, exec sqlx.ExtContext, timetableID, slotID string) error
}

type lecturerCourseLister interface {
	ListCourseIDs(ctx context.Context, lecturerID, semesterID string) ([]string, error)
}

// TimetableService manages draft timetables, conflict-free slot booking and the single
// published timetable per semester.
type TimetableService struct {
	timetables timetableRepository
	slots      timetableSlotRepository
	semesters  semesterLookup
	flags      exclusiveFlagWriter
	tx         txProvider
	cache      *CacheService
	approved   approvedCourseLookup
	lecturers  lecturerCourseLister
	audit      auditWriter
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cacheTTL   time.Duration
}

// TimetableServiceDeps groups the collaborators of TimetableService.
type TimetableServiceDeps struct {
	Timetables timetableRepository
	Slots      timetableSlotRepository
	Semesters  semesterLookup
	Flags      exclusiveFlagWriter
	Tx         txProvider
	Cache      *CacheService
	Approved   approvedCourseLookup
	Lecturers  lecturerCourseLister
	Audit      auditWriter
	Metrics    *MetricsService
	Validator  *validator.Validate
	Logger     *zap.Logger
	CacheTTL   time.Duration
}

// NewTimetableService constructs the service.
func NewTimetableService(deps TimetableServiceDeps) *TimetableService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TimetableService{
		timetables: deps.Timetables,
		slots:      deps.Slots,
		semesters:  deps.Semesters,
		flags:      deps.Flags,
		tx:         deps.Tx,
		cache:      deps.Cache,
		approved:   deps.Approved,
		lecturers:  deps.Lecturers,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		validator:  deps.Validator,
		logger:     deps.Logger,
		cacheTTL:   deps.CacheTTL,
	}
}

func publishedCacheKey(semesterID string) string {
	return "timetable:published:" + semesterID
}

func canEditTimetables(role models.UserRole) bool {
	return role == models.RoleStaff || role == models.RoleRegistrar || role == models.RoleAdmin
}

// Create stores a new unpublished timetable.
func (s *TimetableService) Create(ctx context.Context, actor models.Actor, req models.CreateTimetableRequest) (*models.Timetable, error) {
	if !canEditTimetables(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to create timetables")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	if _, err := s.semesters.FindByID(ctx, req.SemesterID); err != nil {
		return nil, notFoundOrInternal(err, "semester")
	}

	now := time.Now().UTC()
	timetable := &models.Timetable{
		ID:         uuid.NewString(),
		SemesterID: req.SemesterID,
		Name:       strings.TrimSpace(req.Name),
		CreatedBy:  optionalString(actor.UserID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.timetables.Create(ctx, timetable); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable")
	}
	return timetable, nil
}

// List returns a page of timetables.
func (s *TimetableService) List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, *models.Pagination, error) {
	items, total, err := s.timetables.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	return items, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns one timetable.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.Timetable, error) {
	timetable, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "timetable")
	}
	return timetable, nil
}

// ListSlots returns every slot of a timetable ordered by day and start time.
func (s *TimetableService) ListSlots(ctx context.Context, id string) ([]models.TimetableSlot, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	slots, err := s.slots.ListByTimetable(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list slots")
	}
	return slots, nil
}

// AddSlot books a slot unless it overlaps an existing slot of the same timetable on the same
// day. The timetable row is locked so concurrent inserts are checked one after another. Rooms
// are not considered. A conflict error lists every overlapping slot.
func (s *TimetableService) AddSlot(ctx context.Context, actor models.Actor, timetableID string, req models.CreateSlotRequest) (*models.TimetableSlot, error) {
	if !canEditTimetables(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to edit timetables")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	candidate, err := workflow.NewInterval(*req.DayOfWeek, req.StartTime, req.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot time")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer rollback(tx, s.logger)

	timetable, err := s.timetables.LockByID(ctx, tx, timetableID)
	if err != nil {
		return nil, notFoundOrInternal(err, "timetable")
	}
	existing, err := s.slots.ListByDay(ctx, tx, timetableID, candidate.Day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slots")
	}

	slot := models.TimetableSlot{
		ID:               uuid.NewString(),
		TimetableID:      timetableID,
		CourseID:         strings.TrimSpace(req.CourseID),
		LecturerCourseID: req.LecturerCourseID,
		DayOfWeek:        candidate.Day,
		StartTime:        workflow.FormatClock(candidate.Start),
		EndTime:          workflow.FormatClock(candidate.End),
		RoomNumber:       strings.TrimSpace(req.RoomNumber),
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.checkConflicts(slot, candidate, existing); err != nil {
		return nil, err
	}

	if err := s.slots.Create(ctx, tx, &slot); err != nil {
		if database.IsCheckViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "slot violates a timetable constraint")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store slot")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit slot")
	}

	if timetable.IsPublished {
		s.cache.Invalidate(ctx, publishedCacheKey(timetable.SemesterID))
	}
	return &slot, nil
}

func (s *TimetableService) checkConflicts(candidate models.TimetableSlot, interval workflow.Interval, existing []models.TimetableSlot) error {
	intervals := make([]workflow.Interval, 0, len(existing))
	for _, slot := range existing {
		iv, err := workflow.NewInterval(slot.DayOfWeek, slot.StartTime, slot.EndTime)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInconsistentState.Code, appErrors.ErrInconsistentState.Status,
				fmt.Sprintf("stored slot %s has an invalid time range", slot.ID))
		}
		intervals = append(intervals, iv)
	}

	hits := workflow.FindConflicts(interval, intervals)
	if len(hits) == 0 {
		return nil
	}
	conflicts := make([]models.TimetableSlot, 0, len(hits))
	for _, idx := range hits {
		conflicts = append(conflicts, existing[idx])
	}
	s.metrics.RecordSlotConflict()

	conflictErr := &models.SlotConflictError{
		Message: fmt.Sprintf("slot %s %s-%s overlaps %d existing slot(s)",
			time.Weekday(candidate.DayOfWeek), candidate.StartTime, candidate.EndTime, len(conflicts)),
		Candidate: candidate,
		Slot:      conflicts[0],
		Slots:     conflicts,
	}
	return appErrors.WithDetails(
		appErrors.Wrap(conflictErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflictErr.Message),
		conflictErr,
	)
}

// DeleteSlot removes one slot.
func (s *TimetableService) DeleteSlot(ctx context.Context, actor models.Actor, timetableID, slotID string) error {
	if !canEditTimetables(actor.Role) {
		return appErrors.Clone(appErrors.ErrForbidden, "not allowed to edit timetables")
	}
	timetable, err := s.Get(ctx, timetableID)
	if err != nil {
		return err
	}
	if err := s.slots.Delete(ctx, nil, timetableID, slotID); err != nil {
		return notFoundOrInternal(err, "slot")
	}
	if timetable.IsPublished {
		s.cache.Invalidate(ctx, publishedCacheKey(timetable.SemesterID))
	}
	return nil
}

// Publish makes the timetable the only published one of its semester.
func (s *TimetableService) Publish(ctx context.Context, actor models.Actor, id string) (*models.Timetable, error) {
	return s.setPublished(ctx, actor, id, true)
}

// Unpublish clears the timetable's published flag. Siblings are untouched.
func (s *TimetableService) Unpublish(ctx context.Context, actor models.Actor, id string) (*models.Timetable, error) {
	return s.setPublished(ctx, actor, id, false)
}

func (s *TimetableService) setPublished(ctx context.Context, actor models.Actor, id string, publish bool) (*models.Timetable, error) {
	if !actor.Role.IsApprover() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only registrars can publish timetables")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer rollback(tx, s.logger)

	// The flag write goes first: publishing takes the semester's advisory lock before any
	// timetable row lock, the same order every other publish follows.
	if err := s.flags.Set(ctx, tx, repository.TimetablePublished, id, publish); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update publication")
	}
	timetable, err := s.timetables.LockByID(ctx, tx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "timetable")
	}
	if publish {
		published, err := s.flags.Count(ctx, tx, repository.TimetablePublished, timetable.SemesterID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify publication")
		}
		if published > 1 {
			s.logger.Error("semester has several published timetables",
				zap.String("semester_id", timetable.SemesterID), zap.Int("published", published))
			return nil, appErrors.Clone(appErrors.ErrInconsistentState,
				fmt.Sprintf("semester %s has %d published timetables", timetable.SemesterID, published))
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit publication")
	}

	s.cache.Invalidate(ctx, publishedCacheKey(timetable.SemesterID))
	action := models.AuditActionTimetablePublish
	if !publish {
		action = models.AuditActionTimetableUnpublish
	}
	emitAudit(ctx, s.audit, s.logger, actor, action, "timetable", id, map[string]string{"semester_id": timetable.SemesterID})

	timetable.IsPublished = publish
	return timetable, nil
}

// GetPublished returns the semester's published timetable with its slots. More than one
// published timetable is reported as an inconsistent state.
func (s *TimetableService) GetPublished(ctx context.Context, semesterID string) (*models.PublishedTimetable, error) {
	key := publishedCacheKey(semesterID)
	var cached models.PublishedTimetable
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	published, err := s.timetables.ListPublished(ctx, semesterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load published timetable")
	}
	switch len(published) {
	case 0:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no published timetable for this semester")
	case 1:
	default:
		s.logger.Error("multiple published timetables", zap.String("semester_id", semesterID), zap.Int("count", len(published)))
		return nil, appErrors.Clone(appErrors.ErrInconsistentState,
			fmt.Sprintf("semester %s has %d published timetables", semesterID, len(published)))
	}

	slots, err := s.slots.ListByTimetable(ctx, published[0].ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list slots")
	}
	result := &models.PublishedTimetable{Timetable: published[0], Slots: slots}
	s.cache.Set(ctx, key, result, s.cacheTTL)
	return result, nil
}

// MyTimetable projects the semester's published timetable onto the caller: a student sees the
// slots of their approved courses and a staff member the slots of the courses they teach.
func (s *TimetableService) MyTimetable(ctx context.Context, actor models.Actor, semesterID string) (*models.PublishedTimetable, error) {
	semester, err := resolveSemester(ctx, s.semesters, semesterID)
	if err != nil {
		return nil, err
	}

	var courseIDs []string
	switch actor.Role {
	case models.RoleStudent:
		courseIDs, err = s.approved.ListApprovedCourseIDs(ctx, actor.UserID, semester.ID)
	case models.RoleStaff:
		courseIDs, err = s.lecturers.ListCourseIDs(ctx, actor.UserID, semester.ID)
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "personal timetables are for students and staff")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}

	published, err := s.GetPublished(ctx, semester.ID)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(courseIDs))
	for _, id := range courseIDs {
		wanted[id] = struct{}{}
	}
	slots := make([]models.TimetableSlot, 0, len(published.Slots))
	for _, slot := range published.Slots {
		if _, ok := wanted[slot.CourseID]; ok {
			slots = append(slots, slot)
		}
	}
	return &models.PublishedTimetable{Timetable: published.Timetable, Slots: slots}, nil
}
