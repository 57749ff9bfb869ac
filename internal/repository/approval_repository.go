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

const approvalColumns = "id, course_upload_id, approver_id, status, comments, is_cascade, created_at"

// ApprovalRepository is the append-only log of course upload decisions. It exposes no update
// or delete.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository instantiates an approval repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

func (r *ApprovalRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Append inserts approval records in one statement.
func (r *ApprovalRepository) Append(ctx context.Context, exec sqlx.ExtContext, approvals ...models.Approval) error {
	if len(approvals) == 0 {
		return nil
	}
	now := time.Now().UTC()
	placeholders := make([]string, 0, len(approvals))
	args := make([]interface{}, 0, len(approvals)*7)
	for i := range approvals {
		a := &approvals[i]
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.CreatedAt = now
		n := len(args)
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7))
		args = append(args, a.ID, a.CourseUploadID, a.ApproverID, a.Status, a.Comments, a.Cascade, a.CreatedAt)
	}

	query := "INSERT INTO course_upload_approvals (" + approvalColumns + ") VALUES " + strings.Join(placeholders, ", ")
	if _, err := r.exec(exec).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append approvals: %w", err)
	}
	return nil
}

// ListByCourseUpload returns the decision history of an upload, oldest first.
func (r *ApprovalRepository) ListByCourseUpload(ctx context.Context, courseUploadID string) ([]models.Approval, error) {
	query := "SELECT " + approvalColumns + " FROM course_upload_approvals WHERE course_upload_id = $1 ORDER BY created_at, id"
	var approvals []models.Approval
	if err := r.db.SelectContext(ctx, &approvals, query, courseUploadID); err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return approvals, nil
}
