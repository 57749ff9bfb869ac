package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/registrar-api/internal/models"
)

const slotColumns = "id, timetable_id, course_id, lecturer_course_id, day_of_week, start_time, end_time, room_number, created_at"

// TimetableSlotRepository persists timetable slots.
type TimetableSlotRepository struct {
	db *sqlx.DB
}

// NewTimetableSlotRepository instantiates a slot repository.
func NewTimetableSlotRepository(db *sqlx.DB) *TimetableSlotRepository {
	return &TimetableSlotRepository{db: db}
}

func (r *TimetableSlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByDay returns the slots of a timetable on one day ordered by start time.
func (r *TimetableSlotRepository) ListByDay(ctx context.Context, exec sqlx.ExtContext, timetableID string, day int) ([]models.TimetableSlot, error) {
	query := "SELECT " + slotColumns + " FROM timetable_slots WHERE timetable_id = $1 AND day_of_week = $2 ORDER BY start_time"
	var slots []models.TimetableSlot
	if err := sqlx.SelectContext(ctx, r.exec(exec), &slots, query, timetableID, day); err != nil {
		return nil, fmt.Errorf("list slots by day: %w", err)
	}
	return slots, nil
}

// ListByTimetable returns all slots of a timetable in weekly order.
func (r *TimetableSlotRepository) ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSlot, error) {
	query := "SELECT " + slotColumns + " FROM timetable_slots WHERE timetable_id = $1 ORDER BY day_of_week, start_time"
	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query, timetableID); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

// Create inserts a slot.
func (r *TimetableSlotRepository) Create(ctx context.Context, exec sqlx.ExtContext, slot *models.TimetableSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	slot.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO timetable_slots (id, timetable_id, course_id, lecturer_course_id, day_of_week, start_time, end_time, room_number, created_at) VALUES (:id, :timetable_id, :course_id, :lecturer_course_id, :day_of_week, :start_time, :end_time, :room_number, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, slot); err != nil {
		return fmt.Errorf("create slot: %w", err)
	}
	return nil
}

// Delete removes a slot from a timetable.
func (r *TimetableSlotRepository) Delete(ctx context.Context, exec sqlx.ExtContext, timetableID, slotID string) error {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM timetable_slots WHERE id = $1 AND timetable_id = $2`, slotID, timetableID)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	return requireAffected(result, "slot")
}
