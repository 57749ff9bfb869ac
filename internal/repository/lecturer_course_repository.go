package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// LecturerCourseRepository reads staff teaching assignments.
type LecturerCourseRepository struct {
	db *sqlx.DB
}

// NewLecturerCourseRepository instantiates a lecturer course repository.
func NewLecturerCourseRepository(db *sqlx.DB) *LecturerCourseRepository {
	return &LecturerCourseRepository{db: db}
}

// IsAssigned reports whether the lecturer teaches courseID in the semester.
func (r *LecturerCourseRepository) IsAssigned(ctx context.Context, lecturerID, courseID, semesterID string) (bool, error) {
	const query = `SELECT 1 FROM lecturer_courses WHERE lecturer_id = $1 AND course_id = $2 AND semester_id = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, lecturerID, courseID, semesterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check lecturer course: %w", err)
	}
	return true, nil
}

// ListCourseIDs returns the courses a lecturer teaches in the semester.
func (r *LecturerCourseRepository) ListCourseIDs(ctx context.Context, lecturerID, semesterID string) ([]string, error) {
	const query = `SELECT course_id FROM lecturer_courses WHERE lecturer_id = $1 AND semester_id = $2 ORDER BY course_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, lecturerID, semesterID); err != nil {
		return nil, fmt.Errorf("list lecturer courses: %w", err)
	}
	return ids, nil
}
