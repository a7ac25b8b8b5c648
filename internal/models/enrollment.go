package models

import (
	"time"

	"github.com/noah-isme/academy-api/internal/scheduling"
)

// EnrollmentStatus is the lifecycle state of an enrollment.
type EnrollmentStatus = scheduling.EnrollmentStatus

const (
	EnrollmentActive    = scheduling.EnrollmentActive
	EnrollmentCancelled = scheduling.EnrollmentCancelled
	EnrollmentCompleted = scheduling.EnrollmentCompleted
)

// Enrollment links a student to a course. One row exists per pair.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	CourseID       string           `db:"course_id" json:"course_id"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	EnrollmentDate time.Time        `db:"enrollment_date" json:"enrollment_date"`
	Notes          *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`

	StudentName  string `db:"student_name" json:"student_name,omitempty"`
	StudentEmail string `db:"student_email" json:"student_email,omitempty"`
	CourseName   string `db:"course_name" json:"course_name,omitempty"`
	Subject      string `db:"subject" json:"subject,omitempty"`
}

// EnrollmentFilter captures enrollment listing criteria.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	TeacherID string
	Status    *EnrollmentStatus
	Page      int
	PageSize  int
}

// StudentOption is an active student without an ACTIVE enrollment in a course.
type StudentOption struct {
	ID        string  `db:"id" json:"id"`
	FirstName string  `db:"first_name" json:"first_name"`
	LastName  string  `db:"last_name" json:"last_name"`
	Email     string  `db:"email" json:"email"`
	DNI       *string `db:"dni" json:"dni,omitempty"`
}
