package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/registrar-api/internal/models"
)

const semesterColumns = "id, academic_year_id, name, code, start_date, end_date, registration_deadline, course_upload_deadline, is_active, created_at, updated_at"

// SemesterRepository handles persistence for semesters.
type SemesterRepository struct {
	db *sqlx.DB
}

// NewSemesterRepository instantiates a semester repository.
func NewSemesterRepository(db *sqlx.DB) *SemesterRepository {
	return &SemesterRepository{db: db}
}

// List returns semesters, optionally restricted to one academic year.
func (r *SemesterRepository) List(ctx context.Context, academicYearID string) ([]models.Semester, error) {
	query := "SELECT " + semesterColumns + " FROM semesters"
	var args []interface{}
	if academicYearID != "" {
		query += " WHERE academic_year_id = $1"
		args = append(args, academicYearID)
	}
	query += " ORDER BY start_date DESC"

	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, query, args...); err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	return semesters, nil
}

// FindByID loads a semester by identifier.
func (r *SemesterRepository) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	query := "SELECT " + semesterColumns + " FROM semesters WHERE id = $1"
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, id); err != nil {
		return nil, err
	}
	return &semester, nil
}

// FindActive returns the currently active semester.
func (r *SemesterRepository) FindActive(ctx context.Context) (*models.Semester, error) {
	query := "SELECT " + semesterColumns + " FROM semesters WHERE is_active = TRUE LIMIT 1"
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query); err != nil {
		return nil, err
	}
	return &semester, nil
}

// Create inserts a new, inactive semester.
func (r *SemesterRepository) Create(ctx context.Context, semester *models.Semester) error {
	if semester.ID == "" {
		semester.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	semester.CreatedAt = now
	semester.UpdatedAt = now
	semester.IsActive = false

	const query = `INSERT INTO semesters (id, academic_year_id, name, code, start_date, end_date, registration_deadline, course_upload_deadline, is_active, created_at, updated_at) VALUES (:id, :academic_year_id, :name, :code, :start_date, :end_date, :registration_deadline, :course_upload_deadline, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, semester); err != nil {
		return fmt.Errorf("create semester: %w", err)
	}
	return nil
}

// CountRegistrations returns how many registrations reference the semester.
func (r *SemesterRepository) CountRegistrations(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations WHERE semester_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count semester registrations: %w", err)
	}
	return count, nil
}

// Delete removes a semester. Callers check CountRegistrations first; the RESTRICT foreign
// key rejects the delete if a registration slipped in between.
func (r *SemesterRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM semesters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete semester: %w", err)
	}
	return requireAffected(result, "semester")
}
