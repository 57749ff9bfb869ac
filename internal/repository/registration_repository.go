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

const registrationColumns = "id, user_id, semester_id, status, rejection_reason, reviewed_by, reviewed_at, created_at, updated_at"

// RegistrationRepository persists registrations. Write methods accept an optional executor so
// they can join a caller owned transaction.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository instantiates a registration repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func (r *RegistrationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a registration.
func (r *RegistrationRepository) Create(ctx context.Context, exec sqlx.ExtContext, reg *models.Registration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	reg.CreatedAt = now
	reg.UpdatedAt = now
	if reg.Status == "" {
		reg.Status = models.StatusPending
	}

	const query = `INSERT INTO registrations (id, user_id, semester_id, status, rejection_reason, reviewed_by, reviewed_at, created_at, updated_at) VALUES (:id, :user_id, :semester_id, :status, :rejection_reason, :reviewed_by, :reviewed_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, reg); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// FindByID loads a registration without locking.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	query := "SELECT " + registrationColumns + " FROM registrations WHERE id = $1"
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// LockByID loads a registration and holds its row lock until exec commits.
func (r *RegistrationRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Registration, error) {
	query := "SELECT " + registrationColumns + " FROM registrations WHERE id = $1 FOR UPDATE"
	var reg models.Registration
	if err := sqlx.GetContext(ctx, r.exec(exec), &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// FindByUserSemester loads the registration of a student for a semester, locking it when
// exec is a transaction.
func (r *RegistrationRepository) FindByUserSemester(ctx context.Context, exec sqlx.ExtContext, userID, semesterID string) (*models.Registration, error) {
	query := "SELECT " + registrationColumns + " FROM registrations WHERE user_id = $1 AND semester_id = $2"
	if exec != nil {
		query += " FOR UPDATE"
	}
	var reg models.Registration
	if err := sqlx.GetContext(ctx, r.exec(exec), &reg, query, userID, semesterID); err != nil {
		return nil, err
	}
	return &reg, nil
}

// UpdateStatus writes status, rejection reason and reviewer fields.
func (r *RegistrationRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, reg *models.Registration) error {
	reg.UpdatedAt = time.Now().UTC()
	const query = `UPDATE registrations SET status = :status, rejection_reason = :rejection_reason, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at, updated_at = :updated_at WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, reg)
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	return requireAffected(result, "registration")
}

// Delete removes a registration; its course uploads go with it through ON DELETE CASCADE.
func (r *RegistrationRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	return requireAffected(result, "registration")
}

// List returns registrations matching filter with the total count.
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, int, error) {
	base := "FROM registrations WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	size, offset := pageWindow(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", registrationColumns, base, size, offset)

	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}
	return regs, total, nil
}

// ListAll returns every registration matching filter without paging, for exports.
func (r *RegistrationRepository) ListAll(ctx context.Context, semesterID string) ([]models.Registration, error) {
	query := "SELECT " + registrationColumns + " FROM registrations"
	var args []interface{}
	if semesterID != "" {
		query += " WHERE semester_id = $1"
		args = append(args, semesterID)
	}
	query += " ORDER BY created_at"
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, args...); err != nil {
		return nil, fmt.Errorf("list registrations for export: %w", err)
	}
	return regs, nil
}
