package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/scheduling"
)

const enrollmentSelect = `SELECT e.id, e.student_id, e.course_id, e.status, e.enrollment_date, e.notes, e.created_at, e.updated_at,
	u.first_name || ' ' || u.last_name AS student_name, u.email AS student_email, c.name AS course_name, c.subject
	FROM enrollments e
	JOIN users u ON u.id = e.student_id
	JOIN courses c ON c.id = e.course_id`

// EnrollmentDecision inspects the locked enrollment state before a status change.
type EnrollmentDecision func(current models.Enrollment, course scheduling.CourseFacts, activeCount int) error

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	_, size, offset := page(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("%s%s ORDER BY e.enrollment_date DESC LIMIT %d OFFSET %d", enrollmentSelect, clause, size, offset)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM enrollments e JOIN courses c ON c.id = e.course_id` + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment with student and course details.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, enrollmentSelect+` WHERE e.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// ListAvailableStudents returns active students without an ACTIVE enrollment in courseID.
func (r *EnrollmentRepository) ListAvailableStudents(ctx context.Context, courseID string) ([]models.StudentOption, error) {
	const query = `SELECT u.id, u.first_name, u.last_name, u.email, u.dni FROM users u
	WHERE u.role = 'STUDENT' AND u.active
	AND NOT EXISTS (SELECT 1 FROM enrollments e WHERE e.student_id = u.id AND e.course_id = $1 AND e.status = 'ACTIVE')
	ORDER BY u.last_name, u.first_name`
	var students []models.StudentOption
	if err := r.db.SelectContext(ctx, &students, query, courseID); err != nil {
		return nil, fmt.Errorf("list available students: %w", err)
	}
	return students, nil
}

// ActiveStudentIDs returns the students holding an ACTIVE enrollment in courseID.
func (r *EnrollmentRepository) ActiveStudentIDs(ctx context.Context, courseID string) ([]string, error) {
	const query = `SELECT student_id FROM enrollments WHERE course_id = $1 AND status = 'ACTIVE'`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, courseID); err != nil {
		return nil, fmt.Errorf("list active students: %w", err)
	}
	return ids, nil
}

// Enroll admits studentID into courseID. The course row is locked, the
// admission facts are read in the same transaction and handed to decide;
// the enrollment is written only if decide returns nil. A CANCELLED
// enrollment for the pair is reopened instead of inserting a new row.
func (r *EnrollmentRepository) Enroll(ctx context.Context, studentID, courseID string, notes *string, decide func(scheduling.EnrollmentFacts) error) (*models.Enrollment, error) {
	var result *models.Enrollment
	err := withSerializableTx(ctx, r.db, func(tx *sqlx.Tx) error {
		facts := scheduling.EnrollmentFacts{}

		course, err := lockCourse(ctx, tx, courseID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		facts.Course = course

		student, err := studentFacts(ctx, tx, studentID)
		if err != nil {
			return err
		}
		facts.Student = student

		if course != nil {
			if facts.ActiveCount, err = countActive(ctx, tx, courseID); err != nil {
				return err
			}
		}

		var existing struct {
			ID     string                      `db:"id"`
			Status scheduling.EnrollmentStatus `db:"status"`
		}
		const existingQuery = `SELECT id, status FROM enrollments WHERE student_id = $1 AND course_id = $2 FOR UPDATE`
		err = tx.GetContext(ctx, &existing, existingQuery, studentID, courseID)
		switch {
		case err == nil:
			status := existing.Status
			facts.Existing = &status
		case errors.Is(err, sql.ErrNoRows):
		default:
			return fmt.Errorf("find existing enrollment: %w", err)
		}

		if err := decide(facts); err != nil {
			return err
		}

		now := time.Now().UTC()
		enrollment := &models.Enrollment{
			StudentID:      studentID,
			CourseID:       courseID,
			Status:         models.EnrollmentActive,
			EnrollmentDate: now,
			Notes:          notes,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if facts.Existing != nil {
			enrollment.ID = existing.ID
			const reopen = `UPDATE enrollments SET status = 'ACTIVE', enrollment_date = $2, notes = COALESCE($3, notes), updated_at = $2 WHERE id = $1`
			if _, err := tx.ExecContext(ctx, reopen, existing.ID, now, notes); err != nil {
				return fmt.Errorf("reopen enrollment: %w", err)
			}
		} else {
			enrollment.ID = uuid.NewString()
			const insert = `INSERT INTO enrollments (id, student_id, course_id, status, enrollment_date, notes, created_at, updated_at)
			VALUES (:id, :student_id, :course_id, :status, :enrollment_date, :notes, :created_at, :updated_at)`
			if _, err := tx.NamedExecContext(ctx, insert, enrollment); err != nil {
				return constraintError("create enrollment", err)
			}
		}
		result = enrollment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus moves an enrollment to status after decide approved the
// locked state. Locks are taken course first, matching Enroll.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, decide EnrollmentDecision) (*models.Enrollment, error) {
	var result *models.Enrollment
	err := withSerializableTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var courseID string
		if err := tx.GetContext(ctx, &courseID, `SELECT course_id FROM enrollments WHERE id = $1`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("find enrollment course: %w", err)
		}
		course, err := lockCourse(ctx, tx, courseID)
		if err != nil {
			return err
		}

		var current models.Enrollment
		const currentQuery = `SELECT id, student_id, course_id, status, enrollment_date, notes, created_at, updated_at FROM enrollments WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &current, currentQuery, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock enrollment: %w", err)
		}

		active, err := countActive(ctx, tx, courseID)
		if err != nil {
			return err
		}
		if err := decide(current, *course, active); err != nil {
			return err
		}

		current.Status = status
		current.UpdatedAt = time.Now().UTC()
		const update = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, update, id, status, current.UpdatedAt); err != nil {
			return fmt.Errorf("update enrollment status: %w", err)
		}
		result = &current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func studentFacts(ctx context.Context, tx *sqlx.Tx, studentID string) (*scheduling.StudentFacts, error) {
	var row struct {
		ID     string          `db:"id"`
		Active bool            `db:"active"`
		Role   models.UserRole `db:"role"`
	}
	if err := tx.GetContext(ctx, &row, `SELECT id, active, role FROM users WHERE id = $1`, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load student: %w", err)
	}
	return &scheduling.StudentFacts{ID: row.ID, Active: row.Active, IsStudent: row.Role == models.RoleStudent}, nil
}

func countActive(ctx context.Context, tx *sqlx.Tx, courseID string) (int, error) {
	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = 'ACTIVE'`, courseID); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return n, nil
}
