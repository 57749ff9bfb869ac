package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/registrar-api/internal/models"
)

const timetableColumns = "id, semester_id, name, is_published, created_by, created_at, updated_at"

// TimetableRepository persists timetables. Publication goes through ExclusiveFlag.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository instantiates a timetable repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an unpublished timetable.
func (r *TimetableRepository) Create(ctx context.Context, timetable *models.Timetable) error {
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	timetable.CreatedAt = now
	timetable.UpdatedAt = now
	timetable.IsPublished = false

	const query = `INSERT INTO timetables (id, semester_id, name, is_published, created_by, created_at, updated_at) VALUES (:id, :semester_id, :name, :is_published, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, timetable); err != nil {
		return fmt.Errorf("create timetable: %w", err)
	}
	return nil
}

// FindByID loads a timetable without locking.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	query := "SELECT " + timetableColumns + " FROM timetables WHERE id = $1"
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// LockByID loads a timetable and holds its row lock until exec commits. Slot writers take
// this lock so conflict checks and inserts on one timetable run one at a time.
func (r *TimetableRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Timetable, error) {
	query := "SELECT " + timetableColumns + " FROM timetables WHERE id = $1 FOR UPDATE"
	var timetable models.Timetable
	if err := sqlx.GetContext(ctx, r.exec(exec), &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// List returns timetables, optionally for one semester, with the total count.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error) {
	base := "FROM timetables"
	var args []interface{}
	if filter.SemesterID != "" {
		base += " WHERE semester_id = $1"
		args = append(args, filter.SemesterID)
	}
	size, offset := pageWindow(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", timetableColumns, base, size, offset)

	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetables: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetables: %w", err)
	}
	return timetables, total, nil
}

// ListPublished returns every published timetable of a semester. More than one row means the
// publication invariant was broken.
func (r *TimetableRepository) ListPublished(ctx context.Context, semesterID string) ([]models.Timetable, error) {
	query := "SELECT " + timetableColumns + " FROM timetables WHERE semester_id = $1 AND is_published = TRUE"
	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, query, semesterID); err != nil {
		return nil, fmt.Errorf("list published timetables: %w", err)
	}
	return timetables, nil
}
