// Package workflow holds the pure rules of the registration engine: the two approval state
// machines, the slot overlap predicate and card number formatting.
//
// Registration graph:
//
//	PENDING ──► APPROVED ──► APPROVED (idempotent re-approval)
//	    │
//	    └─────► REJECTED
//
// Course upload graph (per-course decisions, only while the registration is PENDING):
//
//	PENDING ──► APPROVED
//	    └─────► REJECTED
//
// A registration decision overrides course uploads unconditionally; see Cascade.
package workflow

import (
	"fmt"

	"github.com/noah-isme/registrar-api/internal/models"
)

var registrationTransitions = map[models.ApprovalStatus][]models.ApprovalStatus{
	models.StatusPending:  {models.StatusApproved, models.StatusRejected},
	models.StatusApproved: {models.StatusApproved},
	// REJECTED is terminal
}

var courseUploadTransitions = map[models.ApprovalStatus][]models.ApprovalStatus{
	models.StatusPending: {models.StatusApproved, models.StatusRejected},
}

// ParseStatus converts a raw string to an ApprovalStatus.
func ParseStatus(s string) (models.ApprovalStatus, error) {
	st := models.ApprovalStatus(s)
	switch st {
	case models.StatusPending, models.StatusApproved, models.StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown approval status %q", s)
}

// CanTransitionRegistration reports whether a registration may move from → to.
func CanTransitionRegistration(from, to models.ApprovalStatus) bool {
	return allowed(registrationTransitions, from, to)
}

// CanTransitionCourseUpload reports whether a per-course decision may move from → to.
func CanTransitionCourseUpload(from, to models.ApprovalStatus) bool {
	return allowed(courseUploadTransitions, from, to)
}

// Cascade returns the status every course upload takes when its registration moves to
// registrationStatus. ok is false for PENDING, which does not cascade.
func Cascade(registrationStatus models.ApprovalStatus) (models.ApprovalStatus, bool) {
	switch registrationStatus {
	case models.StatusApproved, models.StatusRejected:
		return registrationStatus, true
	default:
		return "", false
	}
}

// Consistent reports whether a registration and its course uploads satisfy the cascade rule:
// a decided registration has every child in the same status.
func Consistent(registrationStatus models.ApprovalStatus, children []models.ApprovalStatus) bool {
	target, ok := Cascade(registrationStatus)
	if !ok {
		return true
	}
	for _, child := range children {
		if child != target {
			return false
		}
	}
	return true
}

func allowed(table map[models.ApprovalStatus][]models.ApprovalStatus, from, to models.ApprovalStatus) bool {
	for _, s := range table[from] {
		if s == to {
			return true
		}
	}
	return false
}
