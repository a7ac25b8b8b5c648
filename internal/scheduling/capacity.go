package scheduling

import (
	"fmt"
	"time"
)

// StudentFacts describes the prospective student. A nil pointer means the
// user does not exist.
type StudentFacts struct {
	ID        string
	Active    bool
	IsStudent bool
}

// CourseFacts describes the course being admitted into.
type CourseFacts struct {
	ID       string
	Active   bool
	Capacity int
}

// EnrollmentFacts is the snapshot CanEnroll decides on. It is gathered
// inside the transaction that will write the enrollment.
type EnrollmentFacts struct {
	Student     *StudentFacts
	Course      *CourseFacts
	ActiveCount int
	// Existing is the status of a prior enrollment for the same pair.
	Existing *EnrollmentStatus
}

// CanEnroll applies the admission rules in order and returns the first
// failing rejection.
func CanEnroll(f EnrollmentFacts) error {
	if f.Student == nil || !f.Student.Active || !f.Student.IsStudent {
		return ErrInvalidStudent
	}
	if f.Course == nil || !f.Course.Active {
		return ErrInvalidCourse
	}
	if f.ActiveCount >= f.Course.Capacity {
		return ErrCourseFull.withMessage(fmt.Sprintf("course is full (%d/%d)", f.ActiveCount, f.Course.Capacity))
	}
	if f.Existing != nil && BlocksReenrollment(*f.Existing) {
		return ErrAlreadyEnrolled
	}
	return nil
}

// BlocksReenrollment reports whether a prior enrollment in status prevents a
// new one. Cancelled enrollments are reopened instead.
func BlocksReenrollment(status EnrollmentStatus) bool {
	return status == EnrollmentActive || status == EnrollmentCompleted
}

// ReservationFacts is the snapshot CanReserve decides on.
type ReservationFacts struct {
	ClassDate time.Time
	Course    *CourseFacts
	// Enrollment is the student's enrollment status in the course, nil when absent.
	Enrollment           *EnrollmentStatus
	ReinforcementEntries int
	ReservedCount        int
}

// CanReserve applies the reservation rules in order. Calendar days are
// evaluated in now's location.
func CanReserve(f ReservationFacts, now time.Time) error {
	if CivilDay(f.ClassDate, now.Location()).Before(Tomorrow(now)) {
		return ErrPastOrTodayDate
	}
	if f.Enrollment == nil || *f.Enrollment != EnrollmentActive {
		return ErrNotEnrolled
	}
	if f.Course == nil {
		return ErrCourseNotFound
	}
	if f.ReinforcementEntries < 1 {
		return ErrNoReinforcementAvailable
	}
	if f.ReservedCount >= f.Course.Capacity {
		return ErrReservationFull.withMessage(fmt.Sprintf("no seats left for this date (%d/%d)", f.ReservedCount, f.Course.Capacity))
	}
	return nil
}

// CivilDay returns midnight of t's calendar date interpreted in loc. Stored
// DATE values carry their day in the year/month/day fields whatever their zone.
func CivilDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Tomorrow returns midnight of the day after now, in now's location.
func Tomorrow(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}
