package scheduling

import (
	"fmt"
	"strings"
	"time"
)

// EnrollmentStatus is the lifecycle state of an enrollment.
type EnrollmentStatus string

// Enrollment states.
const (
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentCancelled EnrollmentStatus = "CANCELLED"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
)

// ParseEnrollmentStatus normalises raw into a status.
func ParseEnrollmentStatus(raw string) (EnrollmentStatus, error) {
	status := EnrollmentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case EnrollmentActive, EnrollmentCancelled, EnrollmentCompleted:
		return status, nil
	}
	return "", fmt.Errorf("unknown enrollment status %q", raw)
}

var enrollmentTransitions = map[EnrollmentStatus]map[EnrollmentStatus]bool{
	EnrollmentActive: {
		EnrollmentCancelled: true,
		EnrollmentCompleted: true,
	},
	EnrollmentCancelled: {
		EnrollmentActive:    true,
		EnrollmentCompleted: true,
	},
}

// ValidateEnrollmentTransition checks from -> to against the lifecycle.
// COMPLETED is terminal, including a re-apply of COMPLETED itself.
func ValidateEnrollmentTransition(from, to EnrollmentStatus) error {
	if from == EnrollmentCompleted {
		return ErrTerminalState
	}
	if !enrollmentTransitions[from][to] {
		return ErrInvalidTransition.withMessage(fmt.Sprintf("cannot move enrollment from %s to %s", from, to))
	}
	return nil
}

// ReopensSeat reports whether the transition takes a seat back.
func ReopensSeat(from, to EnrollmentStatus) bool {
	return from != EnrollmentActive && to == EnrollmentActive
}

// CanTransition validates the lifecycle move and, when it reopens a seat,
// that the course still has room.
func CanTransition(from, to EnrollmentStatus, course CourseFacts, activeCount int) error {
	if err := ValidateEnrollmentTransition(from, to); err != nil {
		return err
	}
	if ReopensSeat(from, to) && activeCount >= course.Capacity {
		return ErrCourseFull.withMessage(fmt.Sprintf("course is full (%d/%d)", activeCount, course.Capacity))
	}
	return nil
}

// CancellationWindow is the minimum notice required to cancel a reservation.
const CancellationWindow = 24 * time.Hour

// CancellationFacts describes the reservation being cancelled.
type CancellationFacts struct {
	OwnerID   string
	Cancelled bool
	ClassDate time.Time
}

// CanCancelReservation checks ownership, current state and notice period.
// The class is considered to start at midnight of its date in now's location.
func CanCancelReservation(f CancellationFacts, actorID string, now time.Time) error {
	if f.OwnerID != actorID {
		return ErrNotOwner
	}
	if f.Cancelled {
		return ErrAlreadyCancelled
	}
	if HoursUntilClass(f.ClassDate, now) < CancellationWindow.Hours() {
		return ErrCancellationWindow
	}
	return nil
}

// HoursUntilClass returns the fractional hours from now to the start of classDate.
func HoursUntilClass(classDate, now time.Time) float64 {
	start := CivilDay(classDate, now.Location())
	return start.Sub(now).Hours()
}
