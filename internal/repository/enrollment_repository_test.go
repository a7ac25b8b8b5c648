package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/scheduling"
)

func expectEnrollFacts(mock sqlmock.Sqlmock, capacity, active int, existing *string) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, active, capacity FROM courses WHERE id = $1 FOR UPDATE")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "active", "capacity"}).AddRow("course-1", true, capacity))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, active, role FROM users WHERE id = $1")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "active", "role"}).AddRow("stu-1", true, "STUDENT"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = 'ACTIVE'")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(active))
	existingQuery := mock.ExpectQuery(regexp.QuoteMeta("SELECT id, status FROM enrollments WHERE student_id = $1 AND course_id = $2 FOR UPDATE")).
		WithArgs("stu-1", "course-1")
	if existing == nil {
		existingQuery.WillReturnError(sql.ErrNoRows)
	} else {
		existingQuery.WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("enr-old", *existing))
	}
}

func TestEnrollInsertsNewEnrollment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	expectEnrollFacts(mock, 2, 1, nil)
	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var seen scheduling.EnrollmentFacts
	enrollment, err := repo.Enroll(context.Background(), "stu-1", "course-1", nil, func(f scheduling.EnrollmentFacts) error {
		seen = f
		return scheduling.CanEnroll(f)
	})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentActive, enrollment.Status)
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, 1, seen.ActiveCount)
	assert.Nil(t, seen.Existing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollRejectedRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	expectEnrollFacts(mock, 2, 2, nil)
	mock.ExpectRollback()

	_, err := repo.Enroll(context.Background(), "stu-1", "course-1", nil, scheduling.CanEnroll)
	assert.ErrorIs(t, err, scheduling.ErrCourseFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollReopensCancelledEnrollment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	cancelled := "CANCELLED"
	expectEnrollFacts(mock, 2, 0, &cancelled)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = 'ACTIVE'")).
		WithArgs("enr-old", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment, err := repo.Enroll(context.Background(), "stu-1", "course-1", nil, scheduling.CanEnroll)
	require.NoError(t, err)
	assert.Equal(t, "enr-old", enrollment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollCompletedBlocks(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	completed := "COMPLETED"
	expectEnrollFacts(mock, 5, 0, &completed)
	mock.ExpectRollback()

	_, err := repo.Enroll(context.Background(), "stu-1", "course-1", nil, scheduling.CanEnroll)
	assert.ErrorIs(t, err, scheduling.ErrAlreadyEnrolled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollUniqueViolationMapsToDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	expectEnrollFacts(mock, 5, 0, nil)
	mock.ExpectExec("INSERT INTO enrollments").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := repo.Enroll(context.Background(), "stu-1", "course-1", nil, scheduling.CanEnroll)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollMissingCourse(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM courses WHERE id = \\$1 FOR UPDATE").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("FROM users WHERE id = \\$1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "active", "role"}).AddRow("stu-1", true, "STUDENT"))
	mock.ExpectQuery("SELECT id, status FROM enrollments").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Enroll(context.Background(), "stu-1", "course-1", nil, scheduling.CanEnroll)
	assert.ErrorIs(t, err, scheduling.ErrInvalidCourse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusLocksCourseFirst(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT course_id FROM enrollments WHERE id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"course_id"}).AddRow("course-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "active", "capacity"}).AddRow("course-1", true, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "course_id", "status", "enrollment_date", "notes", "created_at", "updated_at"}).
			AddRow("enr-1", "stu-1", "course-1", "CANCELLED", now, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := repo.UpdateStatus(context.Background(), "enr-1", models.EnrollmentActive, func(current models.Enrollment, course scheduling.CourseFacts, active int) error {
		return scheduling.CanTransition(current.Status, models.EnrollmentActive, course, active)
	})
	assert.ErrorIs(t, err, scheduling.ErrCourseFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusWritesNewStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT course_id FROM enrollments").
		WillReturnRows(sqlmock.NewRows([]string{"course_id"}).AddRow("course-1"))
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "active", "capacity"}).AddRow("course-1", true, 3))
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "course_id", "status", "enrollment_date", "notes", "created_at", "updated_at"}).
			AddRow("enr-1", "stu-1", "course-1", "ACTIVE", now, nil, now, now))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2")).
		WithArgs("enr-1", models.EnrollmentCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := repo.UpdateStatus(context.Background(), "enr-1", models.EnrollmentCompleted, func(current models.Enrollment, course scheduling.CourseFacts, active int) error {
		return scheduling.CanTransition(current.Status, models.EnrollmentCompleted, course, active)
	})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentCompleted, updated.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAvailableStudents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE u.role = 'STUDENT' AND u.active")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "email", "dni"}).
			AddRow("stu-2", "Luis", "Rojas", "luis@academy.pe", "87654321"))

	students, err := repo.ListAvailableStudents(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "stu-2", students[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
