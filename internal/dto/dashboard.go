package dto

import (
	"time"

	"github.com/noah-isme/academy-api/internal/models"
)

// AdminDashboardResponse captures the aggregated admin dashboard payload.
type AdminDashboardResponse struct {
	Counters          models.AdminCounters   `json:"counters"`
	Revenue           RevenueSummary         `json:"revenue"`
	EnrollmentTrend   []models.MonthlyCount  `json:"enrollmentTrend"`
	RevenueTrend      []models.MonthlyAmount `json:"revenueTrend"`
	StudentsBySubject []models.SubjectCount  `json:"studentsBySubject"`
	TopCourses        []CourseOccupancy      `json:"topCourses"`
	RecentActivity    []models.ActivityRow   `json:"recentActivity"`
	GeneratedAt       time.Time              `json:"generatedAt"`
}

// RevenueSummary compares PAID revenue of the current and previous month.
type RevenueSummary struct {
	CurrentMonth  float64 `json:"currentMonth"`
	PreviousMonth float64 `json:"previousMonth"`
	ChangePercent float64 `json:"changePercent"`
}

// CourseOccupancy is a ranked course with its fill rate.
type CourseOccupancy struct {
	models.CourseRanking
	Occupancy float64 `json:"occupancy"`
}

// TeacherDashboardResponse captures the teacher dashboard payload.
type TeacherDashboardResponse struct {
	TeacherID          string                 `json:"teacherId"`
	Counters           models.TeacherCounters `json:"counters"`
	CourseProgress     []CourseProgress       `json:"courseProgress"`
	Engagement         []WeeklyRate           `json:"engagement"`
	RecentReservations []models.Reservation   `json:"recentReservations"`
	UpcomingClasses    []UpcomingClass        `json:"upcomingClasses"`
	GeneratedAt        time.Time              `json:"generatedAt"`
}

// StudentDashboardResponse captures the student dashboard payload.
type StudentDashboardResponse struct {
	StudentID        string           `json:"studentId"`
	ActiveCourses    int              `json:"activeCourses"`
	AttendedHours    int              `json:"attendedHours"`
	Certificates     int              `json:"certificates"`
	AttendanceRate   float64          `json:"attendanceRate"`
	PendingPayments  int              `json:"pendingPayments"`
	UpcomingBookings int              `json:"upcomingBookings"`
	CourseProgress   []CourseProgress `json:"courseProgress"`
	WeeklyProgress   []WeeklyRate     `json:"weeklyProgress"`
	UpcomingClasses  []UpcomingClass  `json:"upcomingClasses"`
	GeneratedAt      time.Time        `json:"generatedAt"`
}

// CourseProgress is a per-course progress percentage capped at 100.
type CourseProgress struct {
	CourseID    string  `json:"courseId"`
	Name        string  `json:"name"`
	TeacherName string  `json:"teacherName"`
	Students    int     `json:"students"`
	Progress    float64 `json:"progress"`
}

// WeeklyRate is the attendance of one of the last four weeks.
type WeeklyRate struct {
	Week    string  `json:"week"`
	From    string  `json:"from"`
	Total   int     `json:"total"`
	Present int     `json:"present"`
	Rate    float64 `json:"rate"`
}

// UpcomingClass is the next occurrence of an active schedule entry.
type UpcomingClass struct {
	CourseID   string           `json:"courseId"`
	CourseName string           `json:"courseName"`
	Date       string           `json:"date"`
	Weekday    models.Weekday   `json:"weekday"`
	StartTime  string           `json:"startTime"`
	EndTime    string           `json:"endTime"`
	Classroom  *string          `json:"classroom,omitempty"`
	ClassType  models.ClassType `json:"classType"`
}
