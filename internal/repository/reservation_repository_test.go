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

func expectReserveFacts(mock sqlmock.Sqlmock, classDate string, reinforcement, reserved int) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1 FOR UPDATE")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "active", "capacity"}).AddRow("course-1", true, 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM enrollments WHERE student_id = $1 AND course_id = $2")).
		WithArgs("stu-1", "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("ACTIVE"))
	mock.ExpectQuery(regexp.QuoteMeta("class_type = 'REINFORCEMENT' AND active")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(reinforcement))
	mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE course_id = $1 AND class_date = $2::date AND NOT cancelled")).
		WithArgs("course-1", classDate).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(reserved))
}

func TestReserveInsertsWithCivilDate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	classDate := time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC)
	expectReserveFacts(mock, "2024-05-12", 1, 1)
	mock.ExpectExec("INSERT INTO reservations").
		WithArgs(sqlmock.AnyArg(), "stu-1", "course-1", "2024-05-12", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	reservation, err := repo.Reserve(context.Background(), "stu-1", "course-1", classDate, nil, func(f scheduling.ReservationFacts) error {
		return scheduling.CanReserve(f, now)
	})
	require.NoError(t, err)
	assert.False(t, reservation.Cancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveFullRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	expectReserveFacts(mock, "2024-05-12", 1, 2)
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), "stu-1", "course-1", time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC), nil, func(f scheduling.ReservationFacts) error {
		return scheduling.CanReserve(f, now)
	})
	assert.ErrorIs(t, err, scheduling.ErrReservationFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveDuplicateActiveReservation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	expectReserveFacts(mock, "2024-05-12", 1, 0)
	mock.ExpectExec("INSERT INTO reservations").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), "stu-1", "course-1", time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC), nil, func(scheduling.ReservationFacts) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelReservation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	classDate := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE id = $1 FOR UPDATE")).
		WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "course_id", "class_date", "notes", "cancelled", "cancelled_at", "created_at", "updated_at"}).
			AddRow("res-1", "stu-1", "course-1", classDate, nil, false, nil, now, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reservations SET cancelled = TRUE")).
		WithArgs("res-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var seen models.Reservation
	cancelled, err := repo.Cancel(context.Background(), "res-1", func(current models.Reservation) error {
		seen = current
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "stu-1", seen.StudentID)
	assert.True(t, cancelled.Cancelled)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelReservationRejected(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "course_id", "class_date", "notes", "cancelled", "cancelled_at", "created_at", "updated_at"}).
			AddRow("res-1", "stu-1", "course-1", now, nil, false, nil, now, now))
	mock.ExpectRollback()

	_, err := repo.Cancel(context.Background(), "res-1", func(current models.Reservation) error {
		return scheduling.CanCancelReservation(scheduling.CancellationFacts{OwnerID: current.StudentID, ClassDate: current.ClassDate}, "stu-2", now)
	})
	assert.ErrorIs(t, err, scheduling.ErrNotOwner)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelReservationNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Cancel(context.Background(), "missing", func(models.Reservation) error { return nil })
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListReservationsDefaultsToActiveAscending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.student_id = $1 AND NOT r.cancelled ORDER BY r.class_date ASC")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reservations r")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.ReservationFilter{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
