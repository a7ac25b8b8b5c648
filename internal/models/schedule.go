package models

import (
	"time"

	"github.com/noah-isme/academy-api/internal/scheduling"
)

// Weekday is the day a schedule entry repeats on.
type Weekday = scheduling.Weekday

// ClassType distinguishes regular classes from optional reinforcement sessions.
type ClassType string

const (
	ClassTypeRegular       ClassType = "REGULAR"
	ClassTypeReinforcement ClassType = "REINFORCEMENT"
)

// ScheduleEntry is a weekly recurring slot of a course.
type ScheduleEntry struct {
	ID         string    `db:"id" json:"id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	CourseName string    `db:"course_name" json:"course_name,omitempty"`
	Weekday    Weekday   `db:"weekday" json:"weekday"`
	StartTime  string    `db:"start_time" json:"start_time"`
	EndTime    string    `db:"end_time" json:"end_time"`
	Classroom  *string   `db:"classroom" json:"classroom,omitempty"`
	ClassType  ClassType `db:"class_type" json:"class_type"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Interval parses the stored wall-clock pair.
func (s ScheduleEntry) Interval() (scheduling.TimeInterval, error) {
	return scheduling.ParseInterval(string(s.Weekday), s.StartTime, s.EndTime)
}

// Hours returns the entry duration in hours, 0 when unparsable.
func (s ScheduleEntry) Hours() float64 {
	iv, err := s.Interval()
	if err != nil {
		return 0
	}
	return iv.Duration().Hours()
}

// ScheduleFilter captures schedule listing criteria.
type ScheduleFilter struct {
	CourseID  string
	TeacherID string
	Weekday   *Weekday
	ClassType *ClassType
	Active    *bool
}
