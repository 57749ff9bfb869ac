package models

import (
	"fmt"
	"time"
)

// Timetable is a named schedule for a semester. At most one per semester is published.
type Timetable struct {
	ID          string    `db:"id" json:"id"`
	SemesterID  string    `db:"semester_id" json:"semester_id"`
	Name        string    `db:"name" json:"name"`
	IsPublished bool      `db:"is_published" json:"is_published"`
	CreatedBy   *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TimetableSlot is one weekly booking. DayOfWeek follows time.Weekday (0 = Sunday).
type TimetableSlot struct {
	ID               string    `db:"id" json:"id"`
	TimetableID      string    `db:"timetable_id" json:"timetable_id"`
	CourseID         string    `db:"course_id" json:"course_id"`
	LecturerCourseID *string   `db:"lecturer_course_id" json:"lecturer_course_id,omitempty"`
	DayOfWeek        int       `db:"day_of_week" json:"day_of_week"`
	StartTime        string    `db:"start_time" json:"start_time"`
	EndTime          string    `db:"end_time" json:"end_time"`
	RoomNumber       string    `db:"room_number" json:"room_number"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// TimetableFilter narrows timetable listings.
type TimetableFilter struct {
	SemesterID string
	Page       int
	PageSize   int
}

// CreateTimetableRequest is the payload for a new draft timetable.
type CreateTimetableRequest struct {
	SemesterID string `json:"semester_id" validate:"required,uuid"`
	Name       string `json:"name" validate:"required,max=128"`
}

// CreateSlotRequest is the payload for adding a slot. Times are "HH:MM".
type CreateSlotRequest struct {
	CourseID         string  `json:"course_id" validate:"required,max=64"`
	LecturerCourseID *string `json:"lecturer_course_id" validate:"omitempty,uuid"`
	DayOfWeek        *int    `json:"day_of_week" validate:"required,min=0,max=6"`
	StartTime        string  `json:"start_time" validate:"required,len=5"`
	EndTime          string  `json:"end_time" validate:"required,len=5"`
	RoomNumber       string  `json:"room_number" validate:"max=32"`
}

// PublishedTimetable is a published timetable with its slots.
type PublishedTimetable struct {
	Timetable Timetable       `json:"timetable"`
	Slots     []TimetableSlot `json:"slots"`
}

// SlotConflictError lists every existing slot that overlaps a candidate. Slots holds all of
// them; Slot is the earliest for callers that only show one.
type SlotConflictError struct {
	Message   string          `json:"message"`
	Candidate TimetableSlot   `json:"candidate"`
	Slot      TimetableSlot   `json:"conflict"`
	Slots     []TimetableSlot `json:"conflicts"`
}

// Error implements the error interface for slot conflicts.
func (e *SlotConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("slot overlaps %d existing slot(s)", len(e.Slots))
}
