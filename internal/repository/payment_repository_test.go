package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/models"
)

var paymentRowColumns = []string{"id", "student_id", "amount", "concept", "due_date", "payment_date", "payment_method", "status", "receipt_number", "notes", "recorded_by", "created_at", "updated_at"}

func TestFormatReceiptNumber(t *testing.T) {
	assert.Equal(t, "REC-2024-000042", FormatReceiptNumber(2024, 42))
	assert.Equal(t, "REC-2025-1234567", FormatReceiptNumber(2025, 1234567))
}

func TestCreatePaidPaymentIssuesReceipt(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT nextval('receipt_number_seq')")).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(7))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment := &models.Payment{StudentID: "s1", Amount: 250, Concept: "Mensualidad", Status: models.PaymentPaid, PaymentDate: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)}
	require.NoError(t, repo.Create(context.Background(), payment))
	require.NotNil(t, payment.ReceiptNumber)
	assert.Equal(t, "REC-2024-000007", *payment.ReceiptNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePendingPaymentSkipsReceipt(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment := &models.Payment{StudentID: "s1", Amount: 250, Concept: "Mensualidad", Status: models.PaymentPending}
	require.NoError(t, repo.Create(context.Background(), payment))
	assert.Nil(t, payment.ReceiptNumber)
	assert.False(t, payment.PaymentDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePaymentToPaidIssuesReceiptOnce(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE id = $1 FOR UPDATE")).
		WithArgs("pay-1").
		WillReturnRows(sqlmock.NewRows(paymentRowColumns).
			AddRow("pay-1", "s1", 250.0, "Mensualidad", nil, now, nil, "PENDING", nil, nil, nil, now, now))
	mock.ExpectQuery("nextval").WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(12))
	mock.ExpectExec("UPDATE payments SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := repo.Update(context.Background(), "pay-1", func(p *models.Payment) error {
		p.Status = models.PaymentPaid
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, updated.ReceiptNumber)
	assert.Equal(t, "REC-2024-000012", *updated.ReceiptNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPaymentsFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	status := models.PaymentOverdue
	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.status = $1 AND p.student_id = $2 ORDER BY p.payment_date DESC LIMIT 20 OFFSET 0")).
		WithArgs(status, "s1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM payments p WHERE")).
		WithArgs(status, "s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.PaymentFilter{Status: &status, StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOverdue(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	cutoff := time.Date(2024, 8, 6, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'OVERDUE'")).
		WithArgs(cutoff, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.MarkOverdue(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
