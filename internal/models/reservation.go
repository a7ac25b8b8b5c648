package models

import "time"

// Reservation books a seat in a reinforcement class on a given date.
type Reservation struct {
	ID          string     `db:"id" json:"id"`
	StudentID   string     `db:"student_id" json:"student_id"`
	CourseID    string     `db:"course_id" json:"course_id"`
	ClassDate   time.Time  `db:"class_date" json:"class_date"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	Cancelled   bool       `db:"cancelled" json:"cancelled"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`

	StudentName  string  `db:"student_name" json:"student_name,omitempty"`
	StudentEmail string  `db:"student_email" json:"student_email,omitempty"`
	StudentPhone *string `db:"student_phone" json:"student_phone,omitempty"`
	CourseName   string  `db:"course_name" json:"course_name,omitempty"`
	Subject      string  `db:"subject" json:"subject,omitempty"`
	TeacherID    string  `db:"teacher_id" json:"teacher_id,omitempty"`
}

// ReservationFilter captures reservation listing criteria.
type ReservationFilter struct {
	StudentID        string
	CourseID         string
	TeacherID        string
	From             *time.Time
	To               *time.Time
	IncludeCancelled bool
	Page             int
	PageSize         int
	SortOrder        string
}

// ReservationOption is an ACTIVE course of the student with its active entries.
type ReservationOption struct {
	CourseID    string          `json:"course_id"`
	CourseName  string          `json:"course_name"`
	Subject     string          `json:"subject"`
	TeacherName string          `json:"teacher_name"`
	Schedules   []ScheduleEntry `json:"schedules"`
}

// HasReinforcement reports whether any active REINFORCEMENT entry exists.
func (o ReservationOption) HasReinforcement() bool {
	for _, s := range o.Schedules {
		if s.Active && s.ClassType == ClassTypeReinforcement {
			return true
		}
	}
	return false
}
