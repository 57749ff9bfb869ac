package models

import "time"

// ApprovalStatus is shared by registrations, course uploads and approval records.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "PENDING"
	StatusApproved ApprovalStatus = "APPROVED"
	StatusRejected ApprovalStatus = "REJECTED"
)

// Registration is a student's enrollment request for one semester.
type Registration struct {
	ID              string         `db:"id" json:"id"`
	UserID          string         `db:"user_id" json:"user_id"`
	SemesterID      string         `db:"semester_id" json:"semester_id"`
	Status          ApprovalStatus `db:"status" json:"status"`
	RejectionReason *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReviewedBy      *string        `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time     `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// CourseUpload is a single course selection inside a registration.
type CourseUpload struct {
	ID             string         `db:"id" json:"id"`
	RegistrationID string         `db:"registration_id" json:"registration_id"`
	UserID         string         `db:"user_id" json:"user_id"`
	SemesterID     string         `db:"semester_id" json:"semester_id"`
	CourseID       string         `db:"course_id" json:"course_id"`
	Status         ApprovalStatus `db:"status" json:"status"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Approval is an immutable record of one decision on a course upload. Cascade marks records
// written by a whole-registration decision.
type Approval struct {
	ID             string         `db:"id" json:"id"`
	CourseUploadID string         `db:"course_upload_id" json:"course_upload_id"`
	ApproverID     string         `db:"approver_id" json:"approver_id"`
	Status         ApprovalStatus `db:"status" json:"status"`
	Comments       *string        `db:"comments" json:"comments,omitempty"`
	Cascade        bool           `db:"is_cascade" json:"cascade"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// RegistrationCard is the proof-of-registration issued once per (user, semester).
type RegistrationCard struct {
	ID             string    `db:"id" json:"id"`
	RegistrationID *string   `db:"registration_id" json:"registration_id,omitempty"`
	UserID         string    `db:"user_id" json:"user_id"`
	SemesterID     string    `db:"semester_id" json:"semester_id"`
	CardNumber     string    `db:"card_number" json:"card_number"`
	IssuedDate     time.Time `db:"issued_date" json:"issued_date"`
}

// RegistrationDetail bundles a registration with its course uploads and, once approved, its card.
type RegistrationDetail struct {
	Registration
	CourseUploads []CourseUpload    `json:"course_uploads"`
	Card          *RegistrationCard `json:"card,omitempty"`
}

// RegistrationFilter narrows registration listings.
type RegistrationFilter struct {
	SemesterID string
	UserID     string
	Status     *ApprovalStatus
	Page       int
	PageSize   int
}

// SubmitRegistrationRequest is the payload a student posts. An empty semester means the active one.
type SubmitRegistrationRequest struct {
	SemesterID string   `json:"semester_id" validate:"omitempty,uuid"`
	CourseIDs  []string `json:"course_ids" validate:"required,min=1,dive,required,max=64"`
}

// RejectRegistrationRequest carries the mandatory rejection reason.
type RejectRegistrationRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// CourseDecisionRequest carries optional reviewer comments for a per-course decision.
type CourseDecisionRequest struct {
	Comments string `json:"comments" validate:"max=1000"`
}

// ApprovalResult is returned by a whole-registration approval.
type ApprovalResult struct {
	Registration RegistrationDetail `json:"registration"`
	Card         RegistrationCard   `json:"card"`
}

// CardVerification is the public answer to a card token lookup.
type CardVerification struct {
	Valid      bool      `json:"valid"`
	CardNumber string    `json:"card_number"`
	UserID     string    `json:"user_id,omitempty"`
	SemesterID string    `json:"semester_id,omitempty"`
	IssuedDate time.Time `json:"issued_date,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
	Reason     string    `json:"reason,omitempty"`
}

// CardView is the card as shown to its holder, including the verification token.
type CardView struct {
	RegistrationCard
	VerifyToken string    `json:"verify_token"`
	ExpiresAt   time.Time `json:"verify_expires_at"`
}

// LecturerCourse assigns a staff member to teach a course in a semester.
type LecturerCourse struct {
	ID         string    `db:"id" json:"id"`
	LecturerID string    `db:"lecturer_id" json:"lecturer_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	SemesterID string    `db:"semester_id" json:"semester_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Export formats accepted by the registrations export.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
