package models

import "time"

// Audit actions recorded for workflow transitions.
const (
	AuditActionLogin               = "LOGIN"
	AuditActionRegistrationSubmit  = "REGISTRATION_SUBMIT"
	AuditActionRegistrationApprove = "REGISTRATION_APPROVE"
	AuditActionRegistrationReject  = "REGISTRATION_REJECT"
	AuditActionCourseApprove       = "COURSE_UPLOAD_APPROVE"
	AuditActionCourseReject        = "COURSE_UPLOAD_REJECT"
	AuditActionCourseWithdraw      = "COURSE_UPLOAD_WITHDRAW"
	AuditActionCardIssue           = "REGISTRATION_CARD_ISSUE"
	AuditActionTimetablePublish    = "TIMETABLE_PUBLISH"
	AuditActionTimetableUnpublish  = "TIMETABLE_UNPUBLISH"
	AuditActionSemesterActivate    = "SEMESTER_ACTIVATE"
	AuditActionAcademicYearActive  = "ACADEMIC_YEAR_ACTIVATE"
	AuditActionRegistrationExport  = "REGISTRATION_EXPORT"
	AuditActionCardDownload        = "REGISTRATION_CARD_DOWNLOAD"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
