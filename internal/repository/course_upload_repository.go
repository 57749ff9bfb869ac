package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/registrar-api/internal/models"
)

const courseUploadColumns = "id, registration_id, user_id, semester_id, course_id, status, created_at, updated_at"

// CourseUploadRepository persists the course selections of a registration.
type CourseUploadRepository struct {
	db *sqlx.DB
}

// NewCourseUploadRepository instantiates a course upload repository.
func NewCourseUploadRepository(db *sqlx.DB) *CourseUploadRepository {
	return &CourseUploadRepository{db: db}
}

func (r *CourseUploadRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateBatch inserts uploads in a single statement.
func (r *CourseUploadRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, uploads []models.CourseUpload) error {
	if len(uploads) == 0 {
		return nil
	}
	now := time.Now().UTC()
	placeholders := make([]string, 0, len(uploads))
	args := make([]interface{}, 0, len(uploads)*8)
	for i := range uploads {
		u := &uploads[i]
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		if u.Status == "" {
			u.Status = models.StatusPending
		}
		u.CreatedAt = now
		u.UpdatedAt = now
		n := len(args)
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8))
		args = append(args, u.ID, u.RegistrationID, u.UserID, u.SemesterID, u.CourseID, u.Status, u.CreatedAt, u.UpdatedAt)
	}

	query := "INSERT INTO course_uploads (" + courseUploadColumns + ") VALUES " + strings.Join(placeholders, ", ")
	if _, err := r.exec(exec).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create course uploads: %w", err)
	}
	return nil
}

// FindByID loads a course upload without locking.
func (r *CourseUploadRepository) FindByID(ctx context.Context, id string) (*models.CourseUpload, error) {
	query := "SELECT " + courseUploadColumns + " FROM course_uploads WHERE id = $1"
	var upload models.CourseUpload
	if err := r.db.GetContext(ctx, &upload, query, id); err != nil {
		return nil, err
	}
	return &upload, nil
}

// LockByID loads a course upload and holds its row lock until exec commits.
func (r *CourseUploadRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseUpload, error) {
	query := "SELECT " + courseUploadColumns + " FROM course_uploads WHERE id = $1 FOR UPDATE"
	var upload models.CourseUpload
	if err := sqlx.GetContext(ctx, r.exec(exec), &upload, query, id); err != nil {
		return nil, err
	}
	return &upload, nil
}

// ListByRegistration returns the uploads of a registration ordered by course.
func (r *CourseUploadRepository) ListByRegistration(ctx context.Context, exec sqlx.ExtContext, registrationID string) ([]models.CourseUpload, error) {
	query := "SELECT " + courseUploadColumns + " FROM course_uploads WHERE registration_id = $1 ORDER BY course_id"
	var uploads []models.CourseUpload
	if err := sqlx.SelectContext(ctx, r.exec(exec), &uploads, query, registrationID); err != nil {
		return nil, fmt.Errorf("list course uploads: %w", err)
	}
	return uploads, nil
}

// UpdateStatus sets the current status of a single upload.
func (r *CourseUploadRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ApprovalStatus) error {
	result, err := r.exec(exec).ExecContext(ctx, `UPDATE course_uploads SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update course upload status: %w", err)
	}
	return requireAffected(result, "course upload")
}

// CascadeStatus force-sets every upload of a registration that is not already at status,
// overriding per-course decisions, and returns the ids it changed.
func (r *CourseUploadRepository) CascadeStatus(ctx context.Context, exec sqlx.ExtContext, registrationID string, status models.ApprovalStatus) ([]string, error) {
	const query = `UPDATE course_uploads SET status = $1, updated_at = $2 WHERE registration_id = $3 AND status <> $1 RETURNING id`
	var ids []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, status, time.Now().UTC(), registrationID); err != nil {
		return nil, fmt.Errorf("cascade course upload status: %w", err)
	}
	return ids, nil
}

// Delete removes one upload.
func (r *CourseUploadRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM course_uploads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course upload: %w", err)
	}
	return requireAffected(result, "course upload")
}

// DeleteByRegistration removes every upload of a registration.
func (r *CourseUploadRepository) DeleteByRegistration(ctx context.Context, exec sqlx.ExtContext, registrationID string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM course_uploads WHERE registration_id = $1`, registrationID); err != nil {
		return fmt.Errorf("delete course uploads: %w", err)
	}
	return nil
}

// CountByRegistration returns how many uploads a registration still owns.
func (r *CourseUploadRepository) CountByRegistration(ctx context.Context, exec sqlx.ExtContext, registrationID string) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, `SELECT COUNT(*) FROM course_uploads WHERE registration_id = $1`, registrationID); err != nil {
		return 0, fmt.Errorf("count course uploads: %w", err)
	}
	return count, nil
}

// ListApprovedCourseIDs returns the course ids a student holds APPROVED uploads for.
func (r *CourseUploadRepository) ListApprovedCourseIDs(ctx context.Context, userID, semesterID string) ([]string, error) {
	const query = `SELECT course_id FROM course_uploads WHERE user_id = $1 AND semester_id = $2 AND status = 'APPROVED' ORDER BY course_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID, semesterID); err != nil {
		return nil, fmt.Errorf("list approved course ids: %w", err)
	}
	return ids, nil
}
