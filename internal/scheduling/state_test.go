package scheduling

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEnrollmentTransition(t *testing.T) {
	allowed := [][2]EnrollmentStatus{
		{EnrollmentActive, EnrollmentCancelled},
		{EnrollmentActive, EnrollmentCompleted},
		{EnrollmentCancelled, EnrollmentActive},
		{EnrollmentCancelled, EnrollmentCompleted},
	}
	for _, pair := range allowed {
		assert.NoError(t, ValidateEnrollmentTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	for _, to := range []EnrollmentStatus{EnrollmentActive, EnrollmentCancelled, EnrollmentCompleted} {
		err := ValidateEnrollmentTransition(EnrollmentCompleted, to)
		assert.True(t, errors.Is(err, ErrTerminalState), "COMPLETED -> %s", to)
	}

	err := ValidateEnrollmentTransition(EnrollmentActive, EnrollmentActive)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	err = ValidateEnrollmentTransition(EnrollmentCancelled, EnrollmentCancelled)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestCompletedToCancelledFailsRegardlessOfHistory(t *testing.T) {
	history := []EnrollmentStatus{EnrollmentActive, EnrollmentCancelled, EnrollmentActive, EnrollmentCompleted}
	current := history[0]
	for _, next := range history[1:] {
		require.NoError(t, ValidateEnrollmentTransition(current, next))
		current = next
	}
	err := ValidateEnrollmentTransition(current, EnrollmentCancelled)
	assert.True(t, errors.Is(err, ErrTerminalState))
	rejection, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, KindStateTransition, rejection.Kind)
}

func TestCanTransitionChecksSeatOnReopen(t *testing.T) {
	course := CourseFacts{ID: "c1", Active: true, Capacity: 2}

	assert.NoError(t, CanTransition(EnrollmentCancelled, EnrollmentActive, course, 1))
	err := CanTransition(EnrollmentCancelled, EnrollmentActive, course, 2)
	assert.True(t, errors.Is(err, ErrCourseFull))

	assert.NoError(t, CanTransition(EnrollmentActive, EnrollmentCancelled, course, 2), "leaving never needs a seat")
}

func TestParseEnrollmentStatus(t *testing.T) {
	status, err := ParseEnrollmentStatus("completed")
	require.NoError(t, err)
	assert.Equal(t, EnrollmentCompleted, status)

	_, err = ParseEnrollmentStatus("DROPPED")
	assert.Error(t, err)
}

func TestCanCancelReservationWindow(t *testing.T) {
	classDate := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	facts := CancellationFacts{OwnerID: "s1", ClassDate: classDate}

	exactly24h := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, CanCancelReservation(facts, "s1", exactly24h))

	oneMinuteLate := exactly24h.Add(time.Minute)
	err := CanCancelReservation(facts, "s1", oneMinuteLate)
	assert.True(t, errors.Is(err, ErrCancellationWindow))

	assert.InDelta(t, 23.983, HoursUntilClass(classDate, oneMinuteLate), 0.001)
}

func TestCanCancelReservationOrder(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tooLate := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	err := CanCancelReservation(CancellationFacts{OwnerID: "s1", Cancelled: true, ClassDate: tooLate}, "s2", now)
	assert.True(t, errors.Is(err, ErrNotOwner), "ownership is checked first")

	err = CanCancelReservation(CancellationFacts{OwnerID: "s1", Cancelled: true, ClassDate: tooLate}, "s1", now)
	assert.True(t, errors.Is(err, ErrAlreadyCancelled))

	err = CanCancelReservation(CancellationFacts{OwnerID: "s1", ClassDate: tooLate}, "s1", now)
	assert.True(t, errors.Is(err, ErrCancellationWindow))
}
