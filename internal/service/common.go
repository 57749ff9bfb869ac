package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type semesterLookup interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	FindActive(ctx context.Context) (*models.Semester, error)
}

// Notifier delivers in-app notifications without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message string)
	NotifyRole(ctx context.Context, role models.UserRole, title, message string)
}

type approvedCourseLookup interface {
	ListApprovedCourseIDs(ctx context.Context, userID, semesterID string) ([]string, error)
}

// resolveSemester loads the semester by id, or the active one when id is empty.
func resolveSemester(ctx context.Context, semesters semesterLookup, id string) (*models.Semester, error) {
	var (
		semester *models.Semester
		err      error
	)
	if strings.TrimSpace(id) == "" {
		semester, err = semesters.FindActive(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active semester")
		}
	} else {
		semester, err = semesters.FindByID(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	return semester, nil
}

// notFoundOrInternal maps sql.ErrNoRows to a NOT_FOUND error and anything else to INTERNAL_ERROR.
func notFoundOrInternal(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+entity)
}

func rollback(tx *sqlx.Tx, logger *zap.Logger) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Warn("rollback failed", zap.Error(err))
	}
}

func emitAudit(ctx context.Context, writer auditWriter, logger *zap.Logger, actor models.Actor, action, resource, resourceID string, values interface{}) {
	if writer == nil {
		return
	}
	entry := &models.AuditLog{Action: action, Resource: resource}
	if actor.UserID != "" {
		entry.UserID = &actor.UserID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if values != nil {
		if payload, err := json.Marshal(values); err == nil {
			entry.NewValues = payload
		}
	}
	if err := writer.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to persist audit log", zap.String("action", action), zap.Error(err))
	}
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}

// paginate mirrors the repository page window so responses report the page actually served.
func paginate(page, size, total int) *models.Pagination {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
