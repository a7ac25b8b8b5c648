package scheduling

import "errors"

// Kind classifies a rejection for transport mapping.
type Kind string

// Rejection kinds.
const (
	KindValidation      Kind = "VALIDATION"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindStateTransition Kind = "STATE_TRANSITION"
	KindOwnership       Kind = "OWNERSHIP"
)

// Reason is the stable machine-readable code of a rejection.
type Reason string

// Rejection reasons.
const (
	ReasonInvalidInterval          Reason = "INVALID_INTERVAL"
	ReasonScheduleConflict         Reason = "SCHEDULE_CONFLICT"
	ReasonInvalidStudent           Reason = "INVALID_STUDENT"
	ReasonInvalidCourse            Reason = "INVALID_COURSE"
	ReasonCourseFull               Reason = "COURSE_FULL"
	ReasonAlreadyEnrolled          Reason = "ALREADY_ENROLLED"
	ReasonPastOrTodayDate          Reason = "PAST_OR_TODAY_DATE"
	ReasonCourseNotFound           Reason = "COURSE_NOT_FOUND"
	ReasonNotEnrolled              Reason = "NOT_ENROLLED"
	ReasonNoReinforcementAvailable Reason = "NO_REINFORCEMENT_AVAILABLE"
	ReasonReservationFull          Reason = "RESERVATION_FULL"
	ReasonTerminalState            Reason = "TERMINAL_STATE"
	ReasonInvalidTransition        Reason = "INVALID_TRANSITION"
	ReasonNotOwner                 Reason = "OWNERSHIP"
	ReasonAlreadyCancelled         Reason = "ALREADY_CANCELLED"
	ReasonCancellationWindow       Reason = "CANCELLATION_WINDOW"
)

// Rejection is a business-rule refusal. Two rejections match under errors.Is
// when they share a reason, so callers can compare against the sentinels below.
type Rejection struct {
	Reason  Reason
	Kind    Kind
	Message string
}

// Error implements error.
func (r *Rejection) Error() string {
	if r == nil {
		return "<nil>"
	}
	return r.Message
}

// Is reports reason equality.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	if !ok || r == nil || t == nil {
		return false
	}
	return r.Reason == t.Reason
}

func (r *Rejection) withMessage(message string) *Rejection {
	clone := *r
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Sentinel rejections.
var (
	ErrInvalidInterval          = &Rejection{ReasonInvalidInterval, KindValidation, "start time must be before end time"}
	ErrScheduleConflict         = &Rejection{ReasonScheduleConflict, KindConflict, "schedule overlaps an existing entry"}
	ErrInvalidStudent           = &Rejection{ReasonInvalidStudent, KindValidation, "student does not exist, is inactive or is not a student"}
	ErrInvalidCourse            = &Rejection{ReasonInvalidCourse, KindValidation, "course does not exist or is inactive"}
	ErrCourseFull               = &Rejection{ReasonCourseFull, KindConflict, "course has reached its capacity"}
	ErrAlreadyEnrolled          = &Rejection{ReasonAlreadyEnrolled, KindConflict, "student is already enrolled in this course"}
	ErrPastOrTodayDate          = &Rejection{ReasonPastOrTodayDate, KindValidation, "reservations must be made at least one day in advance"}
	ErrCourseNotFound           = &Rejection{ReasonCourseNotFound, KindNotFound, "course not found"}
	ErrNotEnrolled              = &Rejection{ReasonNotEnrolled, KindOwnership, "student has no active enrollment in this course"}
	ErrNoReinforcementAvailable = &Rejection{ReasonNoReinforcementAvailable, KindValidation, "course has no active reinforcement classes"}
	ErrReservationFull          = &Rejection{ReasonReservationFull, KindConflict, "no seats left for this date"}
	ErrTerminalState            = &Rejection{ReasonTerminalState, KindStateTransition, "completed enrollments cannot change status"}
	ErrInvalidTransition        = &Rejection{ReasonInvalidTransition, KindStateTransition, "status transition not allowed"}
	ErrNotOwner                 = &Rejection{ReasonNotOwner, KindOwnership, "reservation belongs to another student"}
	ErrAlreadyCancelled         = &Rejection{ReasonAlreadyCancelled, KindConflict, "reservation is already cancelled"}
	ErrCancellationWindow       = &Rejection{ReasonCancellationWindow, KindStateTransition, "reservations can only be cancelled 24 hours before the class"}
)

// AsRejection extracts the rejection carried by err, if any.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
