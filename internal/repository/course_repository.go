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
)

const courseSelect = `SELECT c.id, c.name, c.description, c.subject, c.teacher_id,
	COALESCE(t.first_name || ' ' || t.last_name, '') AS teacher_name,
	c.capacity, c.monthly_price, c.active, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id AND e.status = 'ACTIVE') AS enrolled_count`

// CourseRepository manages course persistence.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching filter with the total count.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	baseQuery := `FROM courses c LEFT JOIN users t ON t.id = c.teacher_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("c.subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM enrollments se WHERE se.course_id = c.id AND se.student_id = $%d AND se.status = 'ACTIVE')", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("c.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.name) LIKE $%d OR LOWER(c.subject) LIKE $%d)", n, n))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortColumns := map[string]string{
		"name":          "c.name",
		"subject":       "c.subject",
		"capacity":      "c.capacity",
		"monthly_price": "c.monthly_price",
		"created_at":    "c.created_at",
	}
	sortBy, ok := sortColumns[filter.SortBy]
	if !ok {
		sortBy = "c.created_at"
	}
	sortOrder := sortDirection(filter.SortOrder, "DESC")
	_, pageSize, offset := page(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("%s %s ORDER BY %s %s LIMIT %d OFFSET %d", courseSelect, baseQuery, sortBy, sortOrder, pageSize, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}
	for i := range courses {
		courses[i].FillDerived()
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course with its teacher and enrollment count.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := courseSelect + ` FROM courses c LEFT JOIN users t ON t.id = c.teacher_id WHERE c.id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	course.FillDerived()
	return &course, nil
}

// ListSubjects returns the distinct subjects of active courses.
func (r *CourseRepository) ListSubjects(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT subject FROM courses WHERE active ORDER BY subject`
	var subjects []string
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, name, description, subject, teacher_id, capacity, monthly_price, active, created_at, updated_at)
	VALUES (:id, :name, :description, :subject, :teacher_id, :capacity, :monthly_price, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return constraintError("create course", err)
	}
	return nil
}

// Update stores the mutable course fields.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET name = :name, description = :description, subject = :subject, teacher_id = :teacher_id,
	capacity = :capacity, monthly_price = :monthly_price, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetActive toggles a course on or off.
func (r *CourseRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE courses SET active = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set course active: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IsTaughtBy reports whether teacherID owns the course.
func (r *CourseRepository) IsTaughtBy(ctx context.Context, courseID, teacherID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1 AND teacher_id = $2)`
	var owns bool
	if err := r.db.GetContext(ctx, &owns, query, courseID, teacherID); err != nil {
		return false, fmt.Errorf("check course owner: %w", err)
	}
	return owns, nil
}
