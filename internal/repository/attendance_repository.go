package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-api/internal/models"
)

const attendanceSelect = `SELECT a.id, a.student_id, a.course_id, a.class_date, a.present, a.notes, a.recorded_by, a.created_at, a.updated_at,
	u.first_name || ' ' || u.last_name AS student_name, u.dni AS student_dni, c.name AS course_name
	FROM attendance a
	JOIN users u ON u.id = a.student_id
	JOIN courses c ON c.id = a.course_id`

// AttendanceRepository stores per-class attendance marks.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// RegisterBatch upserts one mark per student for the class date in a single
// transaction. Any failing row rolls back the whole batch.
func (r *AttendanceRepository) RegisterBatch(ctx context.Context, courseID string, classDate time.Time, recordedBy string, marks []models.AttendanceMark) ([]models.Attendance, error) {
	records := make([]models.Attendance, 0, len(marks))
	err := withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		const upsert = `INSERT INTO attendance (id, student_id, course_id, class_date, present, notes, recorded_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $8)
		ON CONFLICT (student_id, course_id, class_date)
		DO UPDATE SET present = EXCLUDED.present, notes = EXCLUDED.notes, recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`
		now := time.Now().UTC()
		for _, mark := range marks {
			record := models.Attendance{
				StudentID:  mark.StudentID,
				CourseID:   courseID,
				ClassDate:  classDate,
				Present:    mark.Present,
				Notes:      mark.Notes,
				RecordedBy: recordedBy,
				UpdatedAt:  now,
			}
			row := tx.QueryRowxContext(ctx, upsert, uuid.NewString(), mark.StudentID, courseID, civilDate(classDate), mark.Present, mark.Notes, recordedBy, now)
			if err := row.Scan(&record.ID, &record.CreatedAt); err != nil {
				return fmt.Errorf("register attendance for %s: %w", mark.StudentID, err)
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func attendanceWhere(filter models.AttendanceFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("a.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.StudentDNI != "" {
		conditions = append(conditions, fmt.Sprintf("u.dni LIKE $%d", len(args)+1))
		args = append(args, "%"+filter.StudentDNI+"%")
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("a.class_date >= $%d::date", len(args)+1))
		args = append(args, civilDate(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("a.class_date <= $%d::date", len(args)+1))
		args = append(args, civilDate(*filter.To))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns attendance rows matching filter, newest class first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error) {
	clause, args := attendanceWhere(filter)
	query := attendanceSelect + clause + ` ORDER BY a.class_date DESC, u.last_name, u.first_name`
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// Stats counts total and present rows matching filter.
func (r *AttendanceRepository) Stats(ctx context.Context, filter models.AttendanceFilter) (models.AttendanceStats, error) {
	clause, args := attendanceWhere(filter)
	query := `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE a.present) AS attended
	FROM attendance a JOIN users u ON u.id = a.student_id JOIN courses c ON c.id = a.course_id` + clause
	var row struct {
		Total    int `db:"total"`
		Attended int `db:"attended"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return models.AttendanceStats{}, fmt.Errorf("attendance stats: %w", err)
	}
	return models.NewAttendanceStats(row.Total, row.Attended), nil
}
