package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/models"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
	"github.com/noah-isme/academy-api/pkg/events"
	"github.com/noah-isme/academy-api/pkg/jobs"
	"github.com/noah-isme/academy-api/pkg/mailer"
)

// Domain event types.
const (
	EventEnrollmentCreated       = "enrollment.created"
	EventEnrollmentStatusChanged = "enrollment.status_changed"
	EventReservationCreated      = "reservation.created"
	EventReservationCancelled    = "reservation.cancelled"
	EventReservationReminder     = "reservation.reminder"
	EventPaymentRecorded         = "payment.recorded"
	EventPaymentPaid             = "payment.paid"
)

// DomainEvent is a change that concerns one user. It becomes an in-app
// notification, an optional email and a broker message.
type DomainEvent struct {
	Type    string                  `json:"type"`
	UserID  string                  `json:"user_id"`
	Kind    models.NotificationType `json:"kind"`
	Title   string                  `json:"title"`
	Message string                  `json:"message"`
	Data    interface{}             `json:"data,omitempty"`
}

// eventSink receives domain events from the write services. Dispatch never
// fails the caller.
type eventSink interface {
	Dispatch(ctx context.Context, event DomainEvent)
}

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type recipientDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type jobQueue interface {
	TryEnqueue(job jobs.Job) error
}

// NotificationService stores in-app notifications and fans domain events out
// to email and the message broker through a background queue.
type NotificationService struct {
	repo      notificationRepository
	users     recipientDirectory
	mailer    mailer.Mailer
	publisher events.Publisher
	queue     jobQueue
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationService constructs the service. A nil mailer or publisher
// disables that channel.
func NewNotificationService(repo notificationRepository, users recipientDirectory, mail mailer.Mailer, publisher events.Publisher, logger *zap.Logger) *NotificationService {
	if mail == nil {
		mail = mailer.NopMailer{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, users: users, mailer: mail, publisher: publisher, logger: logger, now: time.Now}
}

// UseQueue routes Dispatch through queue. Without a queue events are
// delivered inline.
func (s *NotificationService) UseQueue(queue jobQueue) {
	s.queue = queue
}

// Dispatch enqueues event for delivery without waiting on the queue. When the
// buffer is full the event is dropped and logged so the caller's request is
// never held up.
func (s *NotificationService) Dispatch(ctx context.Context, event DomainEvent) {
	if s == nil || event.UserID == "" {
		return
	}
	if s.queue == nil {
		if err := s.Deliver(ctx, event); err != nil {
			s.logger.Warn("event delivery failed", zap.String("type", event.Type), zap.Error(err))
		}
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: event.Type, Payload: event}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.logger.Warn("dropped event", zap.Bool("queue_full", errors.Is(err, jobs.ErrQueueFull)),
			zap.String("type", event.Type), zap.String("user_id", event.UserID), zap.Error(err))
	}
}

// HandleJob is the queue handler for dispatched events.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(DomainEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.Type)
	}
	return s.Deliver(ctx, event)
}

// Deliver persists the notification, then emails and publishes it. Only a
// failed write is returned for retry; channel failures are logged so a retry
// never stores the notification twice.
func (s *NotificationService) Deliver(ctx context.Context, event DomainEvent) error {
	notification := &models.Notification{
		ID:        uuid.NewString(),
		UserID:    event.UserID,
		Title:     event.Title,
		Message:   event.Message,
		Type:      event.Kind,
		CreatedAt: s.now().UTC(),
	}
	if notification.Type == "" {
		notification.Type = models.NotificationSystem
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	var errs []error
	if err := s.email(ctx, event); err != nil {
		errs = append(errs, err)
	}
	envelope := events.Event{ID: notification.ID, Type: event.Type, OccurredAt: notification.CreatedAt, Data: event}
	if err := s.publisher.Publish(ctx, envelope); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		s.logger.Warn("notification channel failed", zap.String("type", event.Type), zap.String("user_id", event.UserID), zap.Error(errors.Join(errs...)))
	}
	return nil
}

func (s *NotificationService) email(ctx context.Context, event DomainEvent) error {
	if _, nop := s.mailer.(mailer.NopMailer); nop || s.users == nil {
		return nil
	}
	user, err := s.users.FindByID(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	return s.mailer.Send(ctx, mailer.Message{
		ToName:    user.FullName(),
		ToAddress: user.Email,
		Subject:   event.Title,
		Text:      event.Message,
	})
}

// List returns the principal's notifications with the unread count in meta.
func (s *NotificationService) List(ctx context.Context, principal models.Principal, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, int, error) {
	filter.UserID = principal.UserID
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, 0, internalError(err, "failed to list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, principal.UserID)
	if err != nil {
		return nil, nil, 0, internalError(err, "failed to count notifications")
	}
	return items, paginate(filter.Page, filter.PageSize, total), unread, nil
}

// MarkRead marks one of the principal's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, principal models.Principal, id string) error {
	if err := s.repo.MarkRead(ctx, id, principal.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return internalError(err, "failed to update notification")
	}
	return nil
}

// MarkAllRead marks every unread notification of the principal as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, principal models.Principal) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, principal.UserID)
	if err != nil {
		return 0, internalError(err, "failed to update notifications")
	}
	return n, nil
}

func dispatch(ctx context.Context, sink eventSink, event DomainEvent) {
	if sink != nil {
		sink.Dispatch(ctx, event)
	}
}
