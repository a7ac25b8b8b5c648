package models

import "time"

// AdminCounters holds the headline counts of the admin dashboard.
type AdminCounters struct {
	ActiveStudents int `db:"active_students" json:"active_students"`
	ActiveTeachers int `db:"active_teachers" json:"active_teachers"`
	ActiveCourses  int `db:"active_courses" json:"active_courses"`
}

// TeacherCounters holds the headline counts of a teacher dashboard.
type TeacherCounters struct {
	ActiveStudents      int `db:"active_students" json:"active_students"`
	ActiveCourses       int `db:"active_courses" json:"active_courses"`
	PendingReservations int `db:"pending_reservations" json:"pending_reservations"`
}

// StudentCounters holds the headline counts of a student dashboard.
type StudentCounters struct {
	ActiveCourses    int `db:"active_courses" json:"active_courses"`
	Certificates     int `db:"certificates" json:"certificates"`
	AttendedClasses  int `db:"attended_classes" json:"attended_classes"`
	RecordedClasses  int `db:"recorded_classes" json:"recorded_classes"`
	PendingPayments  int `db:"pending_payments" json:"pending_payments"`
	UpcomingBookings int `db:"upcoming_bookings" json:"upcoming_bookings"`
}

// MonthlyCount is a count bucketed by month (YYYY-MM).
type MonthlyCount struct {
	Month string `db:"month" json:"month"`
	Count int    `db:"count" json:"count"`
}

// MonthlyAmount is a sum bucketed by month (YYYY-MM).
type MonthlyAmount struct {
	Month  string  `db:"month" json:"month"`
	Amount float64 `db:"amount" json:"amount"`
}

// SubjectCount counts distinct active students per subject.
type SubjectCount struct {
	Subject  string `db:"subject" json:"subject"`
	Students int    `db:"students" json:"students"`
}

// CourseRanking ranks a course by active enrollments.
type CourseRanking struct {
	CourseID    string `db:"course_id" json:"course_id"`
	Name        string `db:"name" json:"name"`
	Subject     string `db:"subject" json:"subject"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	Enrolled    int    `db:"enrolled" json:"enrolled"`
	Capacity    int    `db:"capacity" json:"capacity"`
}

// ActivityRow is one entry of the recent activity feed.
type ActivityRow struct {
	Type   string    `db:"type" json:"type"`
	Actor  string    `db:"actor" json:"actor"`
	Target string    `db:"target" json:"target"`
	Amount *float64  `db:"amount" json:"amount,omitempty"`
	At     time.Time `db:"at" json:"at"`
}

// CourseProgressRow carries the inputs of a per-course progress figure.
type CourseProgressRow struct {
	CourseID      string `db:"course_id" json:"course_id"`
	Name          string `db:"name" json:"name"`
	TeacherName   string `db:"teacher_name" json:"teacher_name"`
	Students      int    `db:"students" json:"students"`
	ActiveEntries int    `db:"active_entries" json:"active_entries"`
	Attended      int    `db:"attended" json:"attended"`
}

// WeeklyAttendanceRow aggregates attendance of one 7-day bucket counted from
// the window start.
type WeeklyAttendanceRow struct {
	Bucket  int `db:"bucket" json:"bucket"`
	Total   int `db:"total" json:"total"`
	Present int `db:"present" json:"present"`
}

// DashboardScope restricts aggregates to a teacher's courses or a student.
type DashboardScope struct {
	TeacherID string
	StudentID string
}
