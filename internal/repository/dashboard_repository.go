package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-api/internal/models"
)

// DashboardRepository runs the aggregate queries behind the dashboards.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// AdminCounters counts active students, teachers and courses.
func (r *DashboardRepository) AdminCounters(ctx context.Context) (models.AdminCounters, error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM users WHERE role = 'STUDENT' AND active) AS active_students,
		(SELECT COUNT(*) FROM users WHERE role = 'TEACHER' AND active) AS active_teachers,
		(SELECT COUNT(*) FROM courses WHERE active) AS active_courses`
	var counters models.AdminCounters
	if err := r.db.GetContext(ctx, &counters, query); err != nil {
		return counters, fmt.Errorf("admin counters: %w", err)
	}
	return counters, nil
}

// RevenueBetween sums PAID payments with payment_date in [from, to).
func (r *DashboardRepository) RevenueBetween(ctx context.Context, from, to time.Time) (float64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'PAID' AND payment_date >= $1 AND payment_date < $2`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, from, to); err != nil {
		return 0, fmt.Errorf("revenue between: %w", err)
	}
	return total, nil
}

// MonthlyEnrollments counts enrollments per month since from.
func (r *DashboardRepository) MonthlyEnrollments(ctx context.Context, from time.Time) ([]models.MonthlyCount, error) {
	const query = `SELECT to_char(date_trunc('month', enrollment_date), 'YYYY-MM') AS month, COUNT(*) AS count
	FROM enrollments WHERE enrollment_date >= $1 GROUP BY 1 ORDER BY 1`
	var rows []models.MonthlyCount
	if err := r.db.SelectContext(ctx, &rows, query, from); err != nil {
		return nil, fmt.Errorf("monthly enrollments: %w", err)
	}
	return rows, nil
}

// MonthlyRevenue sums PAID payments per month since from.
func (r *DashboardRepository) MonthlyRevenue(ctx context.Context, from time.Time) ([]models.MonthlyAmount, error) {
	const query = `SELECT to_char(date_trunc('month', payment_date), 'YYYY-MM') AS month, COALESCE(SUM(amount), 0) AS amount
	FROM payments WHERE status = 'PAID' AND payment_date >= $1 GROUP BY 1 ORDER BY 1`
	var rows []models.MonthlyAmount
	if err := r.db.SelectContext(ctx, &rows, query, from); err != nil {
		return nil, fmt.Errorf("monthly revenue: %w", err)
	}
	return rows, nil
}

// StudentsBySubject counts distinct actively enrolled students per subject.
func (r *DashboardRepository) StudentsBySubject(ctx context.Context) ([]models.SubjectCount, error) {
	const query = `SELECT c.subject, COUNT(DISTINCT e.student_id) AS students
	FROM enrollments e JOIN courses c ON c.id = e.course_id
	WHERE e.status = 'ACTIVE' GROUP BY c.subject ORDER BY students DESC, c.subject`
	var rows []models.SubjectCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("students by subject: %w", err)
	}
	return rows, nil
}

// TopCourses ranks active courses by active enrollments.
func (r *DashboardRepository) TopCourses(ctx context.Context, limit int) ([]models.CourseRanking, error) {
	const query = `SELECT c.id AS course_id, c.name, c.subject, t.first_name || ' ' || t.last_name AS teacher_name, c.capacity,
		COUNT(e.id) FILTER (WHERE e.status = 'ACTIVE') AS enrolled
	FROM courses c
	JOIN users t ON t.id = c.teacher_id
	LEFT JOIN enrollments e ON e.course_id = c.id
	WHERE c.active
	GROUP BY c.id, c.name, c.subject, t.first_name, t.last_name, c.capacity
	ORDER BY enrolled DESC, c.name
	LIMIT $1`
	var rows []models.CourseRanking
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("top courses: %w", err)
	}
	return rows, nil
}

// RecentActivity merges the latest enrollments, PAID payments and reservations.
func (r *DashboardRepository) RecentActivity(ctx context.Context, limit int) ([]models.ActivityRow, error) {
	const query = `SELECT * FROM (
		(SELECT 'ENROLLMENT' AS type, u.first_name || ' ' || u.last_name AS actor, c.name AS target, NULL::numeric AS amount, e.created_at AS at
		 FROM enrollments e JOIN users u ON u.id = e.student_id JOIN courses c ON c.id = e.course_id
		 ORDER BY e.created_at DESC LIMIT $1)
		UNION ALL
		(SELECT 'PAYMENT', u.first_name || ' ' || u.last_name, p.concept, p.amount, p.created_at
		 FROM payments p JOIN users u ON u.id = p.student_id WHERE p.status = 'PAID'
		 ORDER BY p.created_at DESC LIMIT $1)
		UNION ALL
		(SELECT 'RESERVATION', u.first_name || ' ' || u.last_name, c.name, NULL::numeric, rv.created_at
		 FROM reservations rv JOIN users u ON u.id = rv.student_id JOIN courses c ON c.id = rv.course_id WHERE NOT rv.cancelled
		 ORDER BY rv.created_at DESC LIMIT $1)
	) activity ORDER BY at DESC LIMIT $1`
	var rows []models.ActivityRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	return rows, nil
}

// TeacherCounters counts a teacher's students, courses and upcoming reservations.
func (r *DashboardRepository) TeacherCounters(ctx context.Context, teacherID string, today time.Time) (models.TeacherCounters, error) {
	const query = `SELECT
		(SELECT COUNT(DISTINCT e.student_id) FROM enrollments e JOIN courses c ON c.id = e.course_id WHERE c.teacher_id = $1 AND e.status = 'ACTIVE') AS active_students,
		(SELECT COUNT(*) FROM courses WHERE teacher_id = $1 AND active) AS active_courses,
		(SELECT COUNT(*) FROM reservations rv JOIN courses c ON c.id = rv.course_id WHERE c.teacher_id = $1 AND NOT rv.cancelled AND rv.class_date >= $2::date) AS pending_reservations`
	var counters models.TeacherCounters
	if err := r.db.GetContext(ctx, &counters, query, teacherID, civilDate(today)); err != nil {
		return counters, fmt.Errorf("teacher counters: %w", err)
	}
	return counters, nil
}

// StudentCounters counts a student's courses, certificates, attendance and dues.
func (r *DashboardRepository) StudentCounters(ctx context.Context, studentID string, today time.Time) (models.StudentCounters, error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM enrollments WHERE student_id = $1 AND status = 'ACTIVE') AS active_courses,
		(SELECT COUNT(*) FROM enrollments WHERE student_id = $1 AND status = 'COMPLETED') AS certificates,
		(SELECT COUNT(*) FROM attendance WHERE student_id = $1 AND present) AS attended_classes,
		(SELECT COUNT(*) FROM attendance WHERE student_id = $1) AS recorded_classes,
		(SELECT COUNT(*) FROM payments WHERE student_id = $1 AND status IN ('PENDING', 'OVERDUE')) AS pending_payments,
		(SELECT COUNT(*) FROM reservations WHERE student_id = $1 AND NOT cancelled AND class_date >= $2::date) AS upcoming_bookings`
	var counters models.StudentCounters
	if err := r.db.GetContext(ctx, &counters, query, studentID, civilDate(today)); err != nil {
		return counters, fmt.Errorf("student counters: %w", err)
	}
	return counters, nil
}

// CourseProgress returns per-course progress inputs: the teacher's active
// courses, or the courses a student is actively enrolled in.
func (r *DashboardRepository) CourseProgress(ctx context.Context, scope models.DashboardScope) ([]models.CourseProgressRow, error) {
	var (
		query string
		arg   string
	)
	switch {
	case scope.TeacherID != "":
		query = `SELECT c.id AS course_id, c.name, t.first_name || ' ' || t.last_name AS teacher_name,
			(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id AND e.status = 'ACTIVE') AS students,
			(SELECT COUNT(*) FROM schedules s WHERE s.course_id = c.id AND s.active) AS active_entries,
			(SELECT COUNT(*) FROM attendance a WHERE a.course_id = c.id AND a.present) AS attended
		FROM courses c JOIN users t ON t.id = c.teacher_id
		WHERE c.teacher_id = $1 AND c.active ORDER BY c.name`
		arg = scope.TeacherID
	case scope.StudentID != "":
		query = `SELECT c.id AS course_id, c.name, t.first_name || ' ' || t.last_name AS teacher_name,
			(SELECT COUNT(*) FROM enrollments e2 WHERE e2.course_id = c.id AND e2.status = 'ACTIVE') AS students,
			(SELECT COUNT(*) FROM schedules s WHERE s.course_id = c.id AND s.active) AS active_entries,
			(SELECT COUNT(*) FROM attendance a WHERE a.course_id = c.id AND a.student_id = e.student_id AND a.present) AS attended
		FROM enrollments e JOIN courses c ON c.id = e.course_id JOIN users t ON t.id = c.teacher_id
		WHERE e.student_id = $1 AND e.status = 'ACTIVE' ORDER BY c.name`
		arg = scope.StudentID
	default:
		return nil, fmt.Errorf("course progress: empty scope")
	}
	var rows []models.CourseProgressRow
	if err := r.db.SelectContext(ctx, &rows, query, arg); err != nil {
		return nil, fmt.Errorf("course progress: %w", err)
	}
	return rows, nil
}

// WeeklyAttendance buckets attendance since from into 7-day windows.
func (r *DashboardRepository) WeeklyAttendance(ctx context.Context, scope models.DashboardScope, from time.Time) ([]models.WeeklyAttendanceRow, error) {
	var (
		condition string
		arg       string
	)
	switch {
	case scope.TeacherID != "":
		condition = "c.teacher_id = $1"
		arg = scope.TeacherID
	case scope.StudentID != "":
		condition = "a.student_id = $1"
		arg = scope.StudentID
	default:
		return nil, fmt.Errorf("weekly attendance: empty scope")
	}
	query := `SELECT (a.class_date - $2::date) / 7 AS bucket, COUNT(*) AS total, COUNT(*) FILTER (WHERE a.present) AS present
	FROM attendance a JOIN courses c ON c.id = a.course_id
	WHERE ` + condition + ` AND a.class_date >= $2::date
	GROUP BY bucket ORDER BY bucket`
	var rows []models.WeeklyAttendanceRow
	if err := r.db.SelectContext(ctx, &rows, query, arg, civilDate(from)); err != nil {
		return nil, fmt.Errorf("weekly attendance: %w", err)
	}
	return rows, nil
}
