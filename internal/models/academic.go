package models

import "time"

// AcademicYear groups semesters. At most one is active.
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Semester is the unit registrations and timetables belong to. At most one is active.
type Semester struct {
	ID                   string     `db:"id" json:"id"`
	AcademicYearID       *string    `db:"academic_year_id" json:"academic_year_id,omitempty"`
	Name                 string     `db:"name" json:"name"`
	Code                 string     `db:"code" json:"code"`
	StartDate            time.Time  `db:"start_date" json:"start_date"`
	EndDate              time.Time  `db:"end_date" json:"end_date"`
	RegistrationDeadline *time.Time `db:"registration_deadline" json:"registration_deadline,omitempty"`
	CourseUploadDeadline *time.Time `db:"course_upload_deadline" json:"course_upload_deadline,omitempty"`
	IsActive             bool       `db:"is_active" json:"is_active"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// CreateAcademicYearRequest is the payload for creating an academic year.
type CreateAcademicYearRequest struct {
	Name      string    `json:"name" validate:"required,max=64"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
}

// CreateSemesterRequest is the payload for creating a semester. Code prefixes card numbers.
type CreateSemesterRequest struct {
	AcademicYearID       *string    `json:"academic_year_id" validate:"omitempty,uuid"`
	Name                 string     `json:"name" validate:"required,max=64"`
	Code                 string     `json:"code" validate:"required,min=2,max=16"`
	StartDate            time.Time  `json:"start_date" validate:"required"`
	EndDate              time.Time  `json:"end_date" validate:"required,gtfield=StartDate"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
	CourseUploadDeadline *time.Time `json:"course_upload_deadline"`
}
