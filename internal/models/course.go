package models

import (
	"time"

	"github.com/noah-isme/academy-api/internal/scheduling"
)

// Course is a subject taught by one teacher with a fixed seat capacity.
type Course struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  *string   `db:"description" json:"description,omitempty"`
	Subject      string    `db:"subject" json:"subject"`
	TeacherID    string    `db:"teacher_id" json:"teacher_id"`
	TeacherName  string    `db:"teacher_name" json:"teacher_name"`
	Capacity     int       `db:"capacity" json:"capacity"`
	MonthlyPrice float64   `db:"monthly_price" json:"monthly_price"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`

	EnrolledCount     int `db:"enrolled_count" json:"enrolled_count"`
	AvailableCapacity int `db:"-" json:"available_capacity"`
}

// Facts projects the course for capacity decisions.
func (c Course) Facts() scheduling.CourseFacts {
	return scheduling.CourseFacts{ID: c.ID, Active: c.Active, Capacity: c.Capacity}
}

// FillDerived computes AvailableCapacity from EnrolledCount.
func (c *Course) FillDerived() {
	c.AvailableCapacity = c.Capacity - c.EnrolledCount
	if c.AvailableCapacity < 0 {
		c.AvailableCapacity = 0
	}
}

// CourseFilter captures course listing criteria.
type CourseFilter struct {
	Subject   string
	TeacherID string
	StudentID string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TeacherOption is an active teacher that can be assigned to a course.
type TeacherOption struct {
	ID          string `db:"id" json:"id"`
	FirstName   string `db:"first_name" json:"first_name"`
	LastName    string `db:"last_name" json:"last_name"`
	Email       string `db:"email" json:"email"`
	CourseCount int    `db:"course_count" json:"course_count"`
}
