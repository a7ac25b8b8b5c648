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

const paymentSelect = `SELECT p.id, p.student_id, p.amount, p.concept, p.due_date, p.payment_date, p.payment_method, p.status, p.receipt_number,
	p.notes, p.recorded_by, p.created_at, p.updated_at,
	u.first_name || ' ' || u.last_name AS student_name, u.email AS student_email, u.dni AS student_dni,
	rb.first_name || ' ' || rb.last_name AS recorder_name
	FROM payments p
	JOIN users u ON u.id = p.student_id
	LEFT JOIN users rb ON rb.id = p.recorded_by`

const paymentColumns = `id, student_id, amount, concept, due_date, payment_date, payment_method, status, receipt_number, notes, recorded_by, created_at, updated_at`

// PaymentRepository persists student payments and issues receipt numbers.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// List returns payments ordered by payment date, newest first.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("p.payment_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("p.payment_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	_, size, offset := page(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("%s%s ORDER BY p.payment_date DESC LIMIT %d OFFSET %d", paymentSelect, clause, size, offset)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM payments p"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// FindByID returns a payment with student and recorder details.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, paymentSelect+` WHERE p.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return &payment, nil
}

// Create inserts payment, issuing a receipt number when it is recorded as PAID.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = now
	}

	return withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if payment.NeedsReceipt() {
			receipt, err := nextReceiptNumber(ctx, tx, payment.PaymentDate)
			if err != nil {
				return err
			}
			payment.ReceiptNumber = &receipt
		}
		query := `INSERT INTO payments (` + paymentColumns + `) VALUES (:id, :student_id, :amount, :concept, :due_date, :payment_date, :payment_method, :status, :receipt_number, :notes, :recorded_by, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, query, payment); err != nil {
			return constraintError("create payment", err)
		}
		return nil
	})
}

// Update applies mutate to the locked payment and stores the result. A receipt
// number is issued when the payment becomes PAID without one.
func (r *PaymentRepository) Update(ctx context.Context, id string, mutate func(*models.Payment) error) (*models.Payment, error) {
	var result *models.Payment
	err := withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		var payment models.Payment
		if err := tx.GetContext(ctx, &payment, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock payment: %w", err)
		}
		if err := mutate(&payment); err != nil {
			return err
		}
		if payment.NeedsReceipt() {
			receipt, err := nextReceiptNumber(ctx, tx, payment.PaymentDate)
			if err != nil {
				return err
			}
			payment.ReceiptNumber = &receipt
		}
		payment.UpdatedAt = time.Now().UTC()
		const query = `UPDATE payments SET amount = :amount, concept = :concept, due_date = :due_date, payment_date = :payment_date,
		payment_method = :payment_method, status = :status, receipt_number = :receipt_number, notes = :notes, updated_at = :updated_at WHERE id = :id`
		if _, err := tx.NamedExecContext(ctx, query, &payment); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		result = &payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a payment.
func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkOverdue flags PENDING payments whose due date passed before cutoff.
func (r *PaymentRepository) MarkOverdue(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `UPDATE payments SET status = 'OVERDUE', updated_at = $2 WHERE status = 'PENDING' AND due_date < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark overdue payments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark overdue payments rows: %w", err)
	}
	return n, nil
}

// nextReceiptNumber draws from receipt_number_seq, so numbers stay unique
// under concurrent writers.
func nextReceiptNumber(ctx context.Context, tx *sqlx.Tx, at time.Time) (string, error) {
	var seq int64
	if err := tx.GetContext(ctx, &seq, `SELECT nextval('receipt_number_seq')`); err != nil {
		return "", fmt.Errorf("next receipt number: %w", err)
	}
	return FormatReceiptNumber(at.Year(), seq), nil
}

// FormatReceiptNumber renders REC-<year>-<6-digit sequence>.
func FormatReceiptNumber(year int, seq int64) string {
	return fmt.Sprintf("REC-%d-%06d", year, seq)
}
