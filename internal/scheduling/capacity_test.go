package scheduling

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func statusPtr(s EnrollmentStatus) *EnrollmentStatus {
	return &s
}

func validEnrollmentFacts() EnrollmentFacts {
	return EnrollmentFacts{
		Student:     &StudentFacts{ID: "s1", Active: true, IsStudent: true},
		Course:      &CourseFacts{ID: "c1", Active: true, Capacity: 10},
		ActiveCount: 3,
	}
}

func TestCanEnrollReasonsInOrder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EnrollmentFacts)
		want   error
	}{
		{"ok", func(*EnrollmentFacts) {}, nil},
		{"missing student", func(f *EnrollmentFacts) { f.Student = nil }, ErrInvalidStudent},
		{"inactive student", func(f *EnrollmentFacts) { f.Student.Active = false }, ErrInvalidStudent},
		{"teacher as student", func(f *EnrollmentFacts) { f.Student.IsStudent = false }, ErrInvalidStudent},
		{"student checked before course", func(f *EnrollmentFacts) { f.Student = nil; f.Course = nil }, ErrInvalidStudent},
		{"missing course", func(f *EnrollmentFacts) { f.Course = nil }, ErrInvalidCourse},
		{"inactive course", func(f *EnrollmentFacts) { f.Course.Active = false }, ErrInvalidCourse},
		{"full before duplicate", func(f *EnrollmentFacts) {
			f.ActiveCount = 10
			f.Existing = statusPtr(EnrollmentActive)
		}, ErrCourseFull},
		{"already active", func(f *EnrollmentFacts) { f.Existing = statusPtr(EnrollmentActive) }, ErrAlreadyEnrolled},
		{"already completed", func(f *EnrollmentFacts) { f.Existing = statusPtr(EnrollmentCompleted) }, ErrAlreadyEnrolled},
		{"cancelled does not block", func(f *EnrollmentFacts) { f.Existing = statusPtr(EnrollmentCancelled) }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := validEnrollmentFacts()
			tt.mutate(&facts)
			err := CanEnroll(facts)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestCanEnrollCapacityBoundary(t *testing.T) {
	facts := validEnrollmentFacts()
	facts.Course.Capacity = 5

	facts.ActiveCount = 4
	assert.NoError(t, CanEnroll(facts))

	facts.ActiveCount = 5
	err := CanEnroll(facts)
	assert.True(t, errors.Is(err, ErrCourseFull))
	rejection, ok := AsRejection(err)
	assert.True(t, ok)
	assert.Equal(t, KindConflict, rejection.Kind)
}

func lima(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Lima")
	if err != nil {
		return time.FixedZone("PET", -5*60*60)
	}
	return loc
}

func validReservationFacts(classDate time.Time) ReservationFacts {
	return ReservationFacts{
		ClassDate:            classDate,
		Course:               &CourseFacts{ID: "c1", Active: true, Capacity: 3},
		Enrollment:           statusPtr(EnrollmentActive),
		ReinforcementEntries: 1,
		ReservedCount:        0,
	}
}

func TestCanReserveDates(t *testing.T) {
	loc := lima(t)
	now := time.Date(2024, 5, 10, 21, 30, 0, 0, loc)
	today := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	err := CanReserve(validReservationFacts(today), now)
	assert.True(t, errors.Is(err, ErrPastOrTodayDate))

	err = CanReserve(validReservationFacts(today.AddDate(0, 0, -3)), now)
	assert.True(t, errors.Is(err, ErrPastOrTodayDate))

	assert.NoError(t, CanReserve(validReservationFacts(today.AddDate(0, 0, 1)), now), "tomorrow is bookable")
	assert.NoError(t, CanReserve(validReservationFacts(today.AddDate(0, 0, 2)), now))
}

func TestCanReserveReasons(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	classDate := now.AddDate(0, 0, 2)

	tests := []struct {
		name   string
		mutate func(*ReservationFacts)
		want   error
	}{
		{"no enrollment", func(f *ReservationFacts) { f.Enrollment = nil }, ErrNotEnrolled},
		{"cancelled enrollment", func(f *ReservationFacts) { f.Enrollment = statusPtr(EnrollmentCancelled) }, ErrNotEnrolled},
		{"missing course", func(f *ReservationFacts) { f.Course = nil }, ErrCourseNotFound},
		{"no reinforcement", func(f *ReservationFacts) { f.ReinforcementEntries = 0 }, ErrNoReinforcementAvailable},
		{"full", func(f *ReservationFacts) { f.ReservedCount = 3 }, ErrReservationFull},
		{"last seat", func(f *ReservationFacts) { f.ReservedCount = 2 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := validReservationFacts(classDate)
			tt.mutate(&facts)
			err := CanReserve(facts, now)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestTomorrowAndCivilDay(t *testing.T) {
	loc := lima(t)
	now := time.Date(2024, 12, 31, 23, 59, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, loc), Tomorrow(now))

	stored := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, loc), CivilDay(stored, loc))
}
