package models

import "time"

// PaymentStatus tracks the settlement of a payment.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentOverdue PaymentStatus = "OVERDUE"
)

// Payment is a charge to a student, typically a monthly fee.
type Payment struct {
	ID            string        `db:"id" json:"id"`
	StudentID     string        `db:"student_id" json:"student_id"`
	Amount        float64       `db:"amount" json:"amount"`
	Concept       string        `db:"concept" json:"concept"`
	DueDate       *time.Time    `db:"due_date" json:"due_date,omitempty"`
	PaymentDate   time.Time     `db:"payment_date" json:"payment_date"`
	PaymentMethod *string       `db:"payment_method" json:"payment_method,omitempty"`
	Status        PaymentStatus `db:"status" json:"status"`
	ReceiptNumber *string       `db:"receipt_number" json:"receipt_number,omitempty"`
	Notes         *string       `db:"notes" json:"notes,omitempty"`
	RecordedBy    *string       `db:"recorded_by" json:"recorded_by,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`

	StudentName  string  `db:"student_name" json:"student_name,omitempty"`
	StudentEmail string  `db:"student_email" json:"student_email,omitempty"`
	StudentDNI   *string `db:"student_dni" json:"student_dni,omitempty"`
	RecorderName *string `db:"recorder_name" json:"recorder_name,omitempty"`
}

// NeedsReceipt reports whether a receipt number must be issued.
func (p Payment) NeedsReceipt() bool {
	return p.Status == PaymentPaid && (p.ReceiptNumber == nil || *p.ReceiptNumber == "")
}

// PaymentFilter captures payment listing criteria. From/To bound payment_date.
type PaymentFilter struct {
	Status    *PaymentStatus
	StudentID string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}
