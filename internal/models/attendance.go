package models

import (
	"math"
	"time"
)

// Attendance records whether a student attended a course on a date.
type Attendance struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	ClassDate  time.Time `db:"class_date" json:"class_date"`
	Present    bool      `db:"present" json:"present"`
	Notes      *string   `db:"notes" json:"notes,omitempty"`
	RecordedBy string    `db:"recorded_by" json:"recorded_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`

	StudentName string  `db:"student_name" json:"student_name,omitempty"`
	StudentDNI  *string `db:"student_dni" json:"student_dni,omitempty"`
	CourseName  string  `db:"course_name" json:"course_name,omitempty"`
}

// AttendanceMark is one row of a batch registration.
type AttendanceMark struct {
	StudentID string  `json:"student_id" validate:"required,uuid"`
	Present   bool    `json:"present"`
	Notes     *string `json:"notes" validate:"omitempty,max=500"`
}

// AttendanceFilter captures attendance query criteria.
type AttendanceFilter struct {
	CourseID  string
	StudentID string
	TeacherID string
	// StudentDNI matches by substring when StudentID is not a UUID.
	StudentDNI string
	From       *time.Time
	To         *time.Time
}

// AttendanceStats summarises a set of attendance rows.
type AttendanceStats struct {
	Total      int     `json:"total_classes"`
	Attended   int     `json:"attended_classes"`
	Absences   int     `json:"absences"`
	Percentage float64 `json:"attendance_percentage"`
}

// NewAttendanceStats derives absences and the percentage rounded to two
// decimals, 0 when there are no rows.
func NewAttendanceStats(total, attended int) AttendanceStats {
	stats := AttendanceStats{Total: total, Attended: attended, Absences: total - attended}
	if total > 0 {
		stats.Percentage = math.Round(float64(attended)/float64(total)*10000) / 100
	}
	return stats
}

// AttendanceReport bundles matching rows with their summary.
type AttendanceReport struct {
	Records []Attendance    `json:"records"`
	Stats   AttendanceStats `json:"stats"`
}
