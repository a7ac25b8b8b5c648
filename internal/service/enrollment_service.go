package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/repository"
	"github.com/noah-isme/academy-api/internal/scheduling"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ListAvailableStudents(ctx context.Context, courseID string) ([]models.StudentOption, error)
	Enroll(ctx context.Context, studentID, courseID string, notes *string, decide func(scheduling.EnrollmentFacts) error) (*models.Enrollment, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, decide repository.EnrollmentDecision) (*models.Enrollment, error)
}

// EnrollStudentRequest describes an enrollment creation request.
type EnrollStudentRequest struct {
	StudentID string  `json:"student_id" validate:"required,uuid"`
	CourseID  string  `json:"course_id" validate:"required,uuid"`
	Notes     *string `json:"notes" validate:"omitempty,max=500"`
}

// UpdateEnrollmentStatusRequest carries the target status.
type UpdateEnrollmentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// EnrollmentService admits students into courses under the capacity guard.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   courseOwnership
	events    eventSink
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses courseOwnership, events eventSink, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, courses: courses, events: events, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// List returns enrollments matching filter.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list enrollments")
	}
	return enrollments, paginate(filter.Page, filter.PageSize, total), nil
}

// ListByCourse returns the enrollments of a course. Teachers may only read
// their own courses.
func (s *EnrollmentService) ListByCourse(ctx context.Context, principal models.Principal, courseID string, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	if err := ensureCourseAccess(ctx, s.courses, principal, courseID); err != nil {
		return nil, nil, err
	}
	filter.CourseID = courseID
	return s.List(ctx, filter)
}

// Get returns a single enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, internalError(err, "failed to load enrollment")
	}
	return enrollment, nil
}

// AvailableStudents lists active students without an ACTIVE enrollment in courseID.
func (s *EnrollmentService) AvailableStudents(ctx context.Context, courseID string) ([]models.StudentOption, error) {
	students, err := s.repo.ListAvailableStudents(ctx, courseID)
	if err != nil {
		return nil, internalError(err, "failed to list available students")
	}
	return students, nil
}

// Enroll admits a student. The admission rules are evaluated on facts read
// under the course lock, so concurrent requests cannot overfill a course.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollStudentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}

	enrollment, err := s.repo.Enroll(ctx, req.StudentID, req.CourseID, req.Notes, scheduling.CanEnroll)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			err = scheduling.ErrAlreadyEnrolled
		}
		return nil, s.writeError("enrollment.create", err)
	}
	s.metrics.RecordAdmission("enrollment.create")
	s.cache.Invalidate(ctx, dashboardCachePattern)
	s.logger.Info("student enrolled", zap.String("enrollment_id", enrollment.ID), zap.String("student_id", req.StudentID), zap.String("course_id", req.CourseID))

	detail, err := s.Get(ctx, enrollment.ID)
	if err != nil {
		return nil, err
	}
	dispatch(ctx, s.events, DomainEvent{
		Type:    EventEnrollmentCreated,
		UserID:  detail.StudentID,
		Kind:    models.NotificationEnrollment,
		Title:   "Enrollment confirmed",
		Message: fmt.Sprintf("You are now enrolled in %s.", detail.CourseName),
		Data:    detail,
	})
	return detail, nil
}

// UpdateStatus moves an enrollment through its lifecycle. Reopening a
// cancelled enrollment takes a seat and is subject to capacity.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, req UpdateEnrollmentStatusRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid status payload")
	}
	target, err := scheduling.ParseEnrollmentStatus(req.Status)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return s.transition(ctx, id, target)
}

// Cancel is the DELETE form of a transition to CANCELLED.
func (s *EnrollmentService) Cancel(ctx context.Context, id string) (*models.Enrollment, error) {
	return s.transition(ctx, id, models.EnrollmentCancelled)
}

func (s *EnrollmentService) transition(ctx context.Context, id string, target models.EnrollmentStatus) (*models.Enrollment, error) {
	var previous models.EnrollmentStatus
	decide := func(current models.Enrollment, course scheduling.CourseFacts, activeCount int) error {
		previous = current.Status
		return scheduling.CanTransition(current.Status, target, course, activeCount)
	}
	if _, err := s.repo.UpdateStatus(ctx, id, target, decide); err != nil {
		return nil, s.writeError("enrollment.status", err)
	}
	if scheduling.ReopensSeat(previous, target) {
		s.metrics.RecordAdmission("enrollment.status")
	}
	s.cache.Invalidate(ctx, dashboardCachePattern)
	s.logger.Info("enrollment status changed", zap.String("enrollment_id", id), zap.String("from", string(previous)), zap.String("to", string(target)))

	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dispatch(ctx, s.events, DomainEvent{
		Type:    EventEnrollmentStatusChanged,
		UserID:  detail.StudentID,
		Kind:    models.NotificationEnrollment,
		Title:   "Enrollment updated",
		Message: fmt.Sprintf("Your enrollment in %s is now %s.", detail.CourseName, detail.Status),
		Data:    map[string]interface{}{"enrollment": detail, "previous_status": previous},
	})
	return detail, nil
}

func (s *EnrollmentService) writeError(op string, err error) error {
	return guardedWriteError(s.metrics, op, err, "enrollment not found", "failed to save enrollment")
}
