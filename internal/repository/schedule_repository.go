package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/scheduling"
)

const scheduleSelect = `SELECT s.id, s.course_id, c.name AS course_name, s.weekday, s.start_time, s.end_time, s.classroom, s.class_type, s.active, s.created_at, s.updated_at
	FROM schedules s JOIN courses c ON c.id = s.course_id`

// ScheduleGuard inspects the locked course timetable before a write. Returning
// an error aborts the write.
type ScheduleGuard func(ctx context.Context, src scheduling.EntrySource) error

// ScheduleRepository manages weekly schedule entries.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// List returns entries ordered by weekday then start time.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, error) {
	query := scheduleSelect + ` WHERE 1=1`
	var args []interface{}
	if filter.CourseID != "" {
		query += fmt.Sprintf(" AND s.course_id = $%d", len(args)+1)
		args = append(args, filter.CourseID)
	}
	if filter.TeacherID != "" {
		query += fmt.Sprintf(" AND c.teacher_id = $%d", len(args)+1)
		args = append(args, filter.TeacherID)
	}
	if filter.Weekday != nil {
		query += fmt.Sprintf(" AND s.weekday = $%d", len(args)+1)
		args = append(args, *filter.Weekday)
	}
	if filter.ClassType != nil {
		query += fmt.Sprintf(" AND s.class_type = $%d", len(args)+1)
		args = append(args, *filter.ClassType)
	}
	if filter.Active != nil {
		query += fmt.Sprintf(" AND s.active = $%d AND c.active = $%d", len(args)+1, len(args)+1)
		args = append(args, *filter.Active)
	}
	query += " ORDER BY " + weekdayOrder + ", s.start_time"

	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return entries, nil
}

// ListActiveByCourses returns active entries of the given courses.
func (r *ScheduleRepository) ListActiveByCourses(ctx context.Context, courseIDs []string) ([]models.ScheduleEntry, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(scheduleSelect+` WHERE s.active AND s.course_id IN (?) ORDER BY `+weekdayOrder+`, s.start_time`, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("build schedules by courses: %w", err)
	}
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list schedules by courses: %w", err)
	}
	return entries, nil
}

// FindByID returns a single entry.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	var entry models.ScheduleEntry
	if err := r.db.GetContext(ctx, &entry, scheduleSelect+` WHERE s.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find schedule: %w", err)
	}
	return &entry, nil
}

// Create inserts entry after guard approved the locked timetable. It returns
// sql.ErrNoRows when the course does not exist.
func (r *ScheduleRepository) Create(ctx context.Context, entry *models.ScheduleEntry, guard ScheduleGuard) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	return withSerializableTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := lockCourse(ctx, tx, entry.CourseID); err != nil {
			return err
		}
		if guard != nil {
			if err := guard(ctx, txEntrySource{tx: tx}); err != nil {
				return err
			}
		}
		const query = `INSERT INTO schedules (id, course_id, weekday, start_time, end_time, classroom, class_type, active, created_at, updated_at)
		VALUES (:id, :course_id, :weekday, :start_time, :end_time, :classroom, :class_type, :active, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
			return constraintError("create schedule", err)
		}
		return nil
	})
}

// Update stores entry after guard approved the locked timetable. The entry
// must already belong to entry.CourseID; otherwise sql.ErrNoRows is returned.
func (r *ScheduleRepository) Update(ctx context.Context, entry *models.ScheduleEntry, guard ScheduleGuard) error {
	entry.UpdatedAt = time.Now().UTC()
	return withSerializableTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := lockCourse(ctx, tx, entry.CourseID); err != nil {
			return err
		}
		if guard != nil {
			if err := guard(ctx, txEntrySource{tx: tx}); err != nil {
				return err
			}
		}
		const query = `UPDATE schedules SET weekday = :weekday, start_time = :start_time, end_time = :end_time, classroom = :classroom,
		class_type = :class_type, active = :active, updated_at = :updated_at WHERE id = :id AND course_id = :course_id`
		res, err := tx.NamedExecContext(ctx, query, entry)
		if err != nil {
			return fmt.Errorf("update schedule: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

// Delete removes an entry.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// txEntrySource reads active entries inside the guarding transaction.
type txEntrySource struct {
	tx *sqlx.Tx
}

type entryRow struct {
	ID        string    `db:"id"`
	CourseID  string    `db:"course_id"`
	Weekday   string    `db:"weekday"`
	StartTime string    `db:"start_time"`
	EndTime   string    `db:"end_time"`
	CreatedAt time.Time `db:"created_at"`
}

// ActiveEntries implements scheduling.EntrySource.
func (s txEntrySource) ActiveEntries(ctx context.Context, courseID string, day scheduling.Weekday) ([]scheduling.Entry, error) {
	const query = `SELECT id, course_id, weekday, start_time, end_time, created_at FROM schedules
	WHERE course_id = $1 AND weekday = $2 AND active ORDER BY created_at, id`
	var rows []entryRow
	if err := s.tx.SelectContext(ctx, &rows, query, courseID, day); err != nil {
		return nil, fmt.Errorf("active entries: %w", err)
	}
	entries := make([]scheduling.Entry, 0, len(rows))
	for _, row := range rows {
		iv, err := scheduling.ParseInterval(row.Weekday, row.StartTime, row.EndTime)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", row.ID, err)
		}
		entries = append(entries, scheduling.Entry{ID: row.ID, CourseID: row.CourseID, Interval: iv, CreatedAt: row.CreatedAt})
	}
	return entries, nil
}

// lockCourse takes a row lock on the course and returns its capacity facts.
// It returns sql.ErrNoRows when the course does not exist.
func lockCourse(ctx context.Context, tx *sqlx.Tx, courseID string) (*scheduling.CourseFacts, error) {
	const query = `SELECT id, active, capacity FROM courses WHERE id = $1 FOR UPDATE`
	var row struct {
		ID       string `db:"id"`
		Active   bool   `db:"active"`
		Capacity int    `db:"capacity"`
	}
	if err := tx.GetContext(ctx, &row, query, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock course: %w", err)
	}
	return &scheduling.CourseFacts{ID: row.ID, Active: row.Active, Capacity: row.Capacity}, nil
}
