package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/scheduling"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type reservationRepository interface {
	List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error)
	FindByID(ctx context.Context, id string) (*models.Reservation, error)
	ListForDate(ctx context.Context, classDate time.Time) ([]models.Reservation, error)
	Reserve(ctx context.Context, studentID, courseID string, classDate time.Time, notes *string, decide func(scheduling.ReservationFacts) error) (*models.Reservation, error)
	Cancel(ctx context.Context, id string, decide func(models.Reservation) error) (*models.Reservation, error)
}

type reservationCourses interface {
	courseOwnership
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
}

type activeScheduleReader interface {
	ListActiveByCourses(ctx context.Context, courseIDs []string) ([]models.ScheduleEntry, error)
}

// ReservationRequest books a reinforcement class.
type ReservationRequest struct {
	CourseID  string  `json:"course_id" validate:"required,uuid"`
	ClassDate string  `json:"class_date" validate:"required,datetime=2006-01-02"`
	Notes     *string `json:"notes" validate:"omitempty,max=500"`
}

// ReservationService books and cancels seats in reinforcement classes.
// Calendar rules are evaluated in the academy time zone.
type ReservationService struct {
	repo      reservationRepository
	courses   reservationCourses
	schedules activeScheduleReader
	events    eventSink
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewReservationService constructs ReservationService. A nil loc means UTC.
func NewReservationService(repo reservationRepository, courses reservationCourses, schedules activeScheduleReader, events eventSink, cache *CacheService, metrics *MetricsService, loc *time.Location, validate *validator.Validate, logger *zap.Logger) *ReservationService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReservationService{
		repo:      repo,
		courses:   courses,
		schedules: schedules,
		events:    events,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
}

func (s *ReservationService) clock() time.Time {
	return s.now().In(s.loc)
}

// Reserve books a seat for the principal.
func (s *ReservationService) Reserve(ctx context.Context, principal models.Principal, req ReservationRequest) (*models.Reservation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid reservation payload")
	}
	classDate, err := time.ParseInLocation(dateLayout, req.ClassDate, s.loc)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class_date must be YYYY-MM-DD")
	}

	now := s.clock()
	decide := func(f scheduling.ReservationFacts) error {
		return scheduling.CanReserve(f, now)
	}
	reservation, err := s.repo.Reserve(ctx, principal.UserID, req.CourseID, classDate, req.Notes, decide)
	if err != nil {
		return nil, s.writeError("reservation.create", err)
	}
	s.metrics.RecordAdmission("reservation.create")
	s.cache.Invalidate(ctx, dashboardCachePattern)

	detail, err := s.Get(ctx, reservation.ID)
	if err != nil {
		return nil, err
	}
	dispatch(ctx, s.events, DomainEvent{
		Type:    EventReservationCreated,
		UserID:  detail.StudentID,
		Kind:    models.NotificationReservation,
		Title:   "Reservation confirmed",
		Message: fmt.Sprintf("Your seat in %s on %s is reserved.", detail.CourseName, detail.ClassDate.Format(dateLayout)),
		Data:    detail,
	})
	return detail, nil
}

// Cancel cancels one of the principal's reservations at least 24 hours
// before the class.
func (s *ReservationService) Cancel(ctx context.Context, principal models.Principal, id string) (*models.Reservation, error) {
	now := s.clock()
	decide := func(current models.Reservation) error {
		return scheduling.CanCancelReservation(scheduling.CancellationFacts{
			OwnerID:   current.StudentID,
			Cancelled: current.Cancelled,
			ClassDate: current.ClassDate,
		}, principal.UserID, now)
	}
	if _, err := s.repo.Cancel(ctx, id, decide); err != nil {
		return nil, s.writeError("reservation.cancel", err)
	}
	s.cache.Invalidate(ctx, dashboardCachePattern)

	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dispatch(ctx, s.events, DomainEvent{
		Type:    EventReservationCancelled,
		UserID:  detail.StudentID,
		Kind:    models.NotificationReservation,
		Title:   "Reservation cancelled",
		Message: fmt.Sprintf("Your reservation in %s on %s was cancelled.", detail.CourseName, detail.ClassDate.Format(dateLayout)),
		Data:    detail,
	})
	return detail, nil
}

// Get returns a reservation by id.
func (s *ReservationService) Get(ctx context.Context, id string) (*models.Reservation, error) {
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reservation not found")
		}
		return nil, internalError(err, "failed to load reservation")
	}
	return reservation, nil
}

// List returns reservations matching filter.
func (s *ReservationService) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list reservations")
	}
	return items, paginate(filter.Page, filter.PageSize, total), nil
}

// Mine lists the principal's own reservations.
func (s *ReservationService) Mine(ctx context.Context, principal models.Principal, filter models.ReservationFilter) ([]models.Reservation, *models.Pagination, error) {
	filter.StudentID = principal.UserID
	filter.TeacherID = ""
	return s.List(ctx, filter)
}

// ForTeacher lists reservations across the principal's courses.
func (s *ReservationService) ForTeacher(ctx context.Context, principal models.Principal, filter models.ReservationFilter) ([]models.Reservation, *models.Pagination, error) {
	filter.TeacherID = principal.UserID
	return s.List(ctx, filter)
}

// ForCourse lists the reservations of a course the principal teaches.
func (s *ReservationService) ForCourse(ctx context.Context, principal models.Principal, courseID string, filter models.ReservationFilter) ([]models.Reservation, *models.Pagination, error) {
	if err := ensureCourseAccess(ctx, s.courses, principal, courseID); err != nil {
		return nil, nil, err
	}
	filter.CourseID = courseID
	return s.List(ctx, filter)
}

// Options lists the principal's active courses that offer reinforcement
// classes, with their active schedule entries.
func (s *ReservationService) Options(ctx context.Context, principal models.Principal) ([]models.ReservationOption, error) {
	active := true
	courses, _, err := s.courses.List(ctx, models.CourseFilter{StudentID: principal.UserID, Active: &active, PageSize: 100})
	if err != nil {
		return nil, internalError(err, "failed to list enrolled courses")
	}
	if len(courses) == 0 {
		return []models.ReservationOption{}, nil
	}

	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	entries, err := s.schedules.ListActiveByCourses(ctx, ids)
	if err != nil {
		return nil, internalError(err, "failed to list schedules")
	}
	byCourse := make(map[string][]models.ScheduleEntry, len(courses))
	for _, e := range entries {
		byCourse[e.CourseID] = append(byCourse[e.CourseID], e)
	}

	options := make([]models.ReservationOption, 0, len(courses))
	for _, c := range courses {
		option := models.ReservationOption{
			CourseID:    c.ID,
			CourseName:  c.Name,
			Subject:     c.Subject,
			TeacherName: c.TeacherName,
			Schedules:   byCourse[c.ID],
		}
		if option.HasReinforcement() {
			options = append(options, option)
		}
	}
	return options, nil
}

// SendReminders notifies the students booked for tomorrow and returns how
// many reminders were dispatched.
func (s *ReservationService) SendReminders(ctx context.Context) (int, error) {
	tomorrow := scheduling.Tomorrow(s.clock())
	reservations, err := s.repo.ListForDate(ctx, tomorrow)
	if err != nil {
		return 0, err
	}
	for _, r := range reservations {
		dispatch(ctx, s.events, DomainEvent{
			Type:    EventReservationReminder,
			UserID:  r.StudentID,
			Kind:    models.NotificationReminder,
			Title:   "Class tomorrow",
			Message: fmt.Sprintf("Reminder: your reinforcement class in %s is tomorrow (%s).", r.CourseName, tomorrow.Format(dateLayout)),
			Data:    r,
		})
	}
	return len(reservations), nil
}

func (s *ReservationService) writeError(op string, err error) error {
	return guardedWriteError(s.metrics, op, err, "reservation not found", "failed to save reservation")
}
