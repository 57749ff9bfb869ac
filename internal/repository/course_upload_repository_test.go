package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/models"
)

func TestCourseUploadRepositoryCreateBatch(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewCourseUploadRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_uploads (id, registration_id, user_id, semester_id, course_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8), ($9, $10, $11, $12, $13, $14, $15, $16)")).
		WithArgs(
			sqlmock.AnyArg(), "reg-1", "user-1", "sem-1", "C1", models.StatusPending, sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), "reg-1", "user-1", "sem-1", "C2", models.StatusPending, sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	uploads := []models.CourseUpload{
		{RegistrationID: "reg-1", UserID: "user-1", SemesterID: "sem-1", CourseID: "C1"},
		{RegistrationID: "reg-1", UserID: "user-1", SemesterID: "sem-1", CourseID: "C2"},
	}
	require.NoError(t, repo.CreateBatch(context.Background(), nil, uploads))
	assert.NotEmpty(t, uploads[0].ID)
	assert.NotEqual(t, uploads[0].ID, uploads[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseUploadRepositoryCascadeStatus(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewCourseUploadRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE course_uploads SET status = $1, updated_at = $2 WHERE registration_id = $3 AND status <> $1 RETURNING id")).
		WithArgs(models.StatusApproved, sqlmock.AnyArg(), "reg-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("cu-1").AddRow("cu-2"))

	ids, err := repo.CascadeStatus(context.Background(), nil, "reg-1", models.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, []string{"cu-1", "cu-2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseUploadRepositoryDeleteMissing(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewCourseUploadRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_uploads WHERE id = $1")).
		WithArgs("cu-x").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), nil, "cu-x")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryAppend(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewApprovalRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_upload_approvals (id, course_upload_id, approver_id, status, comments, is_cascade, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7), ($8, $9, $10, $11, $12, $13, $14)")).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.Append(context.Background(), nil,
		models.Approval{CourseUploadID: "cu-1", ApproverID: "reg", Status: models.StatusApproved, Cascade: true},
		models.Approval{CourseUploadID: "cu-2", ApproverID: "reg", Status: models.StatusApproved, Cascade: true},
	)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
