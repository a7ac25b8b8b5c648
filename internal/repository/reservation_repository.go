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

const reservationSelect = `SELECT r.id, r.student_id, r.course_id, r.class_date, r.notes, r.cancelled, r.cancelled_at, r.created_at, r.updated_at,
	u.first_name || ' ' || u.last_name AS student_name, u.email AS student_email, u.phone AS student_phone,
	c.name AS course_name, c.subject, c.teacher_id
	FROM reservations r
	JOIN users u ON u.id = r.student_id
	JOIN courses c ON c.id = r.course_id`

// ReservationRepository persists reinforcement class reservations.
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository constructs the repository.
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// List returns reservations ordered by class date.
func (r *ReservationRepository) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("r.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("r.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("r.class_date >= $%d::date", len(args)+1))
		args = append(args, civilDate(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("r.class_date <= $%d::date", len(args)+1))
		args = append(args, civilDate(*filter.To))
	}
	if !filter.IncludeCancelled {
		conditions = append(conditions, "NOT r.cancelled")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	order := sortDirection(filter.SortOrder, "ASC")
	_, size, offset := page(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("%s%s ORDER BY r.class_date %s, r.created_at LIMIT %d OFFSET %d", reservationSelect, clause, order, size, offset)
	var reservations []models.Reservation
	if err := r.db.SelectContext(ctx, &reservations, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM reservations r JOIN courses c ON c.id = r.course_id` + clause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}
	return reservations, total, nil
}

// FindByID returns a reservation with its joined details.
func (r *ReservationRepository) FindByID(ctx context.Context, id string) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.GetContext(ctx, &reservation, reservationSelect+` WHERE r.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find reservation: %w", err)
	}
	return &reservation, nil
}

// ListForDate returns the active reservations of a class date.
func (r *ReservationRepository) ListForDate(ctx context.Context, classDate time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	query := reservationSelect + ` WHERE r.class_date = $1::date AND NOT r.cancelled ORDER BY c.name, u.last_name`
	if err := r.db.SelectContext(ctx, &reservations, query, civilDate(classDate)); err != nil {
		return nil, fmt.Errorf("list reservations for date: %w", err)
	}
	return reservations, nil
}

// Reserve books a seat after decide approved the facts read under the
// course row lock.
func (r *ReservationRepository) Reserve(ctx context.Context, studentID, courseID string, classDate time.Time, notes *string, decide func(scheduling.ReservationFacts) error) (*models.Reservation, error) {
	var result *models.Reservation
	err := withSerializableTx(ctx, r.db, func(tx *sqlx.Tx) error {
		facts := scheduling.ReservationFacts{ClassDate: classDate}

		course, err := lockCourse(ctx, tx, courseID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		facts.Course = course

		var status scheduling.EnrollmentStatus
		const enrollmentQuery = `SELECT status FROM enrollments WHERE student_id = $1 AND course_id = $2`
		err = tx.GetContext(ctx, &status, enrollmentQuery, studentID, courseID)
		switch {
		case err == nil:
			facts.Enrollment = &status
		case errors.Is(err, sql.ErrNoRows):
		default:
			return fmt.Errorf("load enrollment: %w", err)
		}

		if course != nil {
			const reinforcementQuery = `SELECT COUNT(*) FROM schedules WHERE course_id = $1 AND class_type = 'REINFORCEMENT' AND active`
			if err := tx.GetContext(ctx, &facts.ReinforcementEntries, reinforcementQuery, courseID); err != nil {
				return fmt.Errorf("count reinforcement entries: %w", err)
			}
			const reservedQuery = `SELECT COUNT(*) FROM reservations WHERE course_id = $1 AND class_date = $2::date AND NOT cancelled`
			if err := tx.GetContext(ctx, &facts.ReservedCount, reservedQuery, courseID, civilDate(classDate)); err != nil {
				return fmt.Errorf("count reservations: %w", err)
			}
		}

		if err := decide(facts); err != nil {
			return err
		}

		now := time.Now().UTC()
		reservation := &models.Reservation{
			ID:        uuid.NewString(),
			StudentID: studentID,
			CourseID:  courseID,
			ClassDate: classDate,
			Notes:     notes,
			CreatedAt: now,
			UpdatedAt: now,
		}
		const insert = `INSERT INTO reservations (id, student_id, course_id, class_date, notes, cancelled, created_at, updated_at)
		VALUES ($1, $2, $3, $4::date, $5, FALSE, $6, $6)`
		if _, err := tx.ExecContext(ctx, insert, reservation.ID, studentID, courseID, civilDate(classDate), notes, now); err != nil {
			return constraintError("create reservation", err)
		}
		result = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel marks a reservation cancelled after decide approved the locked row.
func (r *ReservationRepository) Cancel(ctx context.Context, id string, decide func(models.Reservation) error) (*models.Reservation, error) {
	var result *models.Reservation
	err := withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		var current models.Reservation
		const query = `SELECT id, student_id, course_id, class_date, notes, cancelled, cancelled_at, created_at, updated_at FROM reservations WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &current, query, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock reservation: %w", err)
		}
		if err := decide(current); err != nil {
			return err
		}

		now := time.Now().UTC()
		const update = `UPDATE reservations SET cancelled = TRUE, cancelled_at = $2, updated_at = $2 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, update, id, now); err != nil {
			return fmt.Errorf("cancel reservation: %w", err)
		}
		current.Cancelled = true
		current.CancelledAt = &now
		current.UpdatedAt = now
		result = &current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
