package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/repository"
	"github.com/noah-isme/academy-api/internal/scheduling"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
	"github.com/noah-isme/academy-api/pkg/export"
)

type paymentRepository interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, id string, mutate func(*models.Payment) error) (*models.Payment, error)
	Delete(ctx context.Context, id string) error
	MarkOverdue(ctx context.Context, cutoff time.Time) (int64, error)
}

type studentDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreatePaymentRequest records a charge or a received payment.
type CreatePaymentRequest struct {
	StudentID     string  `json:"student_id" validate:"required,uuid"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	Concept       string  `json:"concept" validate:"required,min=3,max=200"`
	DueDate       *string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	PaymentDate   *string `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	PaymentMethod *string `json:"payment_method" validate:"omitempty,max=30"`
	Status        string  `json:"status" validate:"omitempty,oneof=PENDING PAID OVERDUE"`
	Notes         *string `json:"notes" validate:"omitempty,max=500"`
}

// UpdatePaymentRequest patches a payment. Nil fields are left unchanged.
type UpdatePaymentRequest struct {
	Amount        *float64 `json:"amount" validate:"omitempty,gt=0"`
	Concept       *string  `json:"concept" validate:"omitempty,min=3,max=200"`
	DueDate       *string  `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	PaymentDate   *string  `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	PaymentMethod *string  `json:"payment_method" validate:"omitempty,max=30"`
	Status        *string  `json:"status" validate:"omitempty,oneof=PENDING PAID OVERDUE"`
	Notes         *string  `json:"notes" validate:"omitempty,max=500"`
}

// PaymentService records student payments and issues receipts.
type PaymentService struct {
	repo      paymentRepository
	students  studentDirectory
	audit     auditWriter
	exports   *ExportService
	events    eventSink
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(repo paymentRepository, students studentDirectory, audit auditWriter, exports *ExportService, events eventSink, cache *CacheService, loc *time.Location, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &PaymentService{
		repo:      repo,
		students:  students,
		audit:     audit,
		exports:   exports,
		events:    events,
		cache:     cache,
		validator: validate,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
}

// List returns payments matching filter.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list payments")
	}
	return items, paginate(filter.Page, filter.PageSize, total), nil
}

// Mine lists the principal's own payments.
func (s *PaymentService) Mine(ctx context.Context, principal models.Principal, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	filter.StudentID = principal.UserID
	return s.List(ctx, filter)
}

// Get returns a payment visible to the principal: admins see all, students
// only their own.
func (s *PaymentService) Get(ctx context.Context, principal models.Principal, id string) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, internalError(err, "failed to load payment")
	}
	if !principal.IsAdmin() && payment.StudentID != principal.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment belongs to another student")
	}
	return payment, nil
}

// Create records a payment for a student. Payments default to PENDING; a PAID
// payment is issued a receipt number.
func (s *PaymentService) Create(ctx context.Context, principal models.Principal, req CreatePaymentRequest, meta models.RequestMeta) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payment payload")
	}
	if err := s.ensureStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}

	status := models.PaymentStatus(req.Status)
	if status == "" {
		status = models.PaymentPending
	}
	recordedBy := principal.UserID
	payment := &models.Payment{
		StudentID:     req.StudentID,
		Amount:        req.Amount,
		Concept:       req.Concept,
		PaymentMethod: req.PaymentMethod,
		Status:        status,
		Notes:         req.Notes,
		RecordedBy:    &recordedBy,
	}
	var err error
	if payment.DueDate, err = s.optionalDate(req.DueDate); err != nil {
		return nil, err
	}
	paymentDate, err := s.optionalDate(req.PaymentDate)
	if err != nil {
		return nil, err
	}
	if paymentDate != nil {
		payment.PaymentDate = *paymentDate
	} else {
		payment.PaymentDate = s.now().In(s.loc)
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrForeignKey) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, internalError(err, "failed to create payment")
	}
	s.cache.Invalidate(ctx, dashboardCachePattern)
	s.recordAudit(ctx, principal, payment.ID, nil, payment, meta)

	detail, err := s.Get(ctx, principal, payment.ID)
	if err != nil {
		return nil, err
	}
	dispatch(ctx, s.events, DomainEvent{
		Type:    EventPaymentRecorded,
		UserID:  detail.StudentID,
		Kind:    models.NotificationPayment,
		Title:   "Payment recorded",
		Message: fmt.Sprintf("A payment of S/ %.2f for %s was recorded (%s).", detail.Amount, detail.Concept, detail.Status),
		Data:    detail,
	})
	return detail, nil
}

// Update patches a payment. Moving it to PAID issues a receipt number.
func (s *PaymentService) Update(ctx context.Context, principal models.Principal, id string, req UpdatePaymentRequest, meta models.RequestMeta) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payment payload")
	}
	dueDate, err := s.optionalDate(req.DueDate)
	if err != nil {
		return nil, err
	}
	paymentDate, err := s.optionalDate(req.PaymentDate)
	if err != nil {
		return nil, err
	}

	var before models.Payment
	updated, err := s.repo.Update(ctx, id, func(p *models.Payment) error {
		before = *p
		if req.Amount != nil {
			p.Amount = *req.Amount
		}
		if req.Concept != nil {
			p.Concept = *req.Concept
		}
		if dueDate != nil {
			p.DueDate = dueDate
		}
		if paymentDate != nil {
			p.PaymentDate = *paymentDate
		}
		if req.PaymentMethod != nil {
			p.PaymentMethod = req.PaymentMethod
		}
		if req.Status != nil {
			p.Status = models.PaymentStatus(*req.Status)
		}
		if req.Notes != nil {
			p.Notes = req.Notes
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, internalError(err, "failed to update payment")
	}
	s.cache.Invalidate(ctx, dashboardCachePattern)
	s.recordAudit(ctx, principal, id, &before, updated, meta)

	detail, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if before.Status != models.PaymentPaid && detail.Status == models.PaymentPaid {
		dispatch(ctx, s.events, DomainEvent{
			Type:    EventPaymentPaid,
			UserID:  detail.StudentID,
			Kind:    models.NotificationPayment,
			Title:   "Payment received",
			Message: fmt.Sprintf("We received your payment of S/ %.2f for %s.", detail.Amount, detail.Concept),
			Data:    detail,
		})
	}
	return detail, nil
}

// Delete removes a payment.
func (s *PaymentService) Delete(ctx context.Context, principal models.Principal, id string, meta models.RequestMeta) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return internalError(err, "failed to delete payment")
	}
	s.cache.Invalidate(ctx, dashboardCachePattern)
	s.recordAudit(ctx, principal, id, nil, nil, meta)
	return nil
}

// Receipt renders the PDF receipt of a paid payment.
func (s *PaymentService) Receipt(ctx context.Context, principal models.Principal, id string) (*ExportResult, error) {
	payment, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if payment.ReceiptNumber == nil || *payment.ReceiptNumber == "" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment has no receipt until it is paid")
	}
	receipt := export.Receipt{
		Number:       *payment.ReceiptNumber,
		IssuedAt:     payment.UpdatedAt,
		StudentName:  payment.StudentName,
		StudentEmail: payment.StudentEmail,
		StudentDNI:   deref(payment.StudentDNI),
		Concept:      payment.Concept,
		Amount:       payment.Amount,
		Method:       deref(payment.PaymentMethod),
		PaymentDate:  payment.PaymentDate,
		Notes:        deref(payment.Notes),
	}
	return s.exports.RenderReceipt(payment.StudentID, receipt)
}

// MarkOverdue flags pending payments whose due date has passed and returns
// how many changed.
func (s *PaymentService) MarkOverdue(ctx context.Context) (int64, error) {
	today := scheduling.CivilDay(s.now().In(s.loc), s.loc)
	n, err := s.repo.MarkOverdue(ctx, today)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.cache.Invalidate(ctx, dashboardCachePattern)
	}
	return n, nil
}

func (s *PaymentService) ensureStudent(ctx context.Context, id string) error {
	user, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return internalError(err, "failed to load student")
	}
	if user.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrValidation, "payments can only be recorded for students")
	}
	return nil
}

func (s *PaymentService) optionalDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	day, err := time.ParseInLocation(dateLayout, *raw, s.loc)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", *raw))
	}
	return &day, nil
}

func (s *PaymentService) recordAudit(ctx context.Context, principal models.Principal, paymentID string, before, after *models.Payment, meta models.RequestMeta) {
	if s.audit == nil {
		return
	}
	userID := principal.UserID
	entry := &models.AuditLog{
		ID:         uuid.NewString(),
		UserID:     &userID,
		Action:     models.AuditActionPaymentWrite,
		Resource:   "payment",
		ResourceID: &paymentID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
		CreatedAt:  time.Now().UTC(),
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
