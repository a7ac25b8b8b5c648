package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/repository"
	"github.com/noah-isme/academy-api/internal/scheduling"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error)
	Create(ctx context.Context, entry *models.ScheduleEntry, guard repository.ScheduleGuard) error
	Update(ctx context.Context, entry *models.ScheduleEntry, guard repository.ScheduleGuard) error
	Delete(ctx context.Context, id string) error
}

// ScheduleRequest describes a weekly schedule entry.
type ScheduleRequest struct {
	CourseID  string           `json:"course_id" validate:"required,uuid"`
	Weekday   string           `json:"weekday" validate:"required,weekday"`
	StartTime string           `json:"start_time" validate:"required,hhmm"`
	EndTime   string           `json:"end_time" validate:"required,hhmm"`
	Classroom *string          `json:"classroom" validate:"omitempty,max=50"`
	ClassType models.ClassType `json:"class_type" validate:"omitempty,oneof=REGULAR REINFORCEMENT"`
}

// ScheduleService maintains course timetables free of overlaps.
type ScheduleService struct {
	repo      scheduleRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(repo scheduleRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// List returns entries ordered by weekday then start time.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, error) {
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list schedules")
	}
	return entries, nil
}

// Get returns a single entry.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, internalError(err, "failed to load schedule")
	}
	return entry, nil
}

// Create stores a new active entry unless it overlaps an active entry of the
// same course on the same weekday.
func (s *ScheduleService) Create(ctx context.Context, req ScheduleRequest) (*models.ScheduleEntry, error) {
	entry, candidate, err := s.build(req)
	if err != nil {
		return nil, err
	}
	entry.Active = true

	if err := s.repo.Create(ctx, entry, s.guard(entry.CourseID, candidate, "")); err != nil {
		return nil, s.writeError("schedule.create", err)
	}
	s.metrics.RecordAdmission("schedule.create")
	s.cache.Invalidate(ctx, dashboardCachePattern)
	return s.Get(ctx, entry.ID)
}

// Update replaces an entry, re-checking overlaps while excluding itself.
func (s *ScheduleService) Update(ctx context.Context, id string, req ScheduleRequest) (*models.ScheduleEntry, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.CourseID != current.CourseID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule entries cannot move to another course")
	}
	entry, candidate, err := s.build(req)
	if err != nil {
		return nil, err
	}
	entry.ID = current.ID
	entry.CourseID = current.CourseID
	entry.Active = current.Active
	entry.CreatedAt = current.CreatedAt

	var guard repository.ScheduleGuard
	if entry.Active {
		guard = s.guard(entry.CourseID, candidate, entry.ID)
	}
	if err := s.repo.Update(ctx, entry, guard); err != nil {
		return nil, s.writeError("schedule.update", err)
	}
	s.cache.Invalidate(ctx, dashboardCachePattern)
	return s.Get(ctx, id)
}

// SetStatus activates or deactivates an entry. Reactivation is checked for
// overlaps like a new entry.
func (s *ScheduleService) SetStatus(ctx context.Context, id string, active bool) (*models.ScheduleEntry, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Active == active {
		return entry, nil
	}
	entry.Active = active

	var guard repository.ScheduleGuard
	if active {
		candidate, err := entry.Interval()
		if err != nil {
			return nil, s.writeError("schedule.status", err)
		}
		guard = s.guard(entry.CourseID, candidate, entry.ID)
	}
	if err := s.repo.Update(ctx, entry, guard); err != nil {
		return nil, s.writeError("schedule.status", err)
	}
	s.cache.Invalidate(ctx, dashboardCachePattern)
	return s.Get(ctx, id)
}

// Delete removes an entry.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return internalError(err, "failed to delete schedule")
	}
	s.cache.Invalidate(ctx, dashboardCachePattern)
	return nil
}

func (s *ScheduleService) build(req ScheduleRequest) (*models.ScheduleEntry, scheduling.TimeInterval, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, scheduling.TimeInterval{}, validationError(err, "invalid schedule payload")
	}
	candidate, err := scheduling.ParseInterval(req.Weekday, req.StartTime, req.EndTime)
	if err != nil {
		appErr, _ := rejectionError(err)
		return nil, scheduling.TimeInterval{}, appErr
	}
	classType := req.ClassType
	if classType == "" {
		classType = models.ClassTypeRegular
	}
	return &models.ScheduleEntry{
		CourseID:  req.CourseID,
		Weekday:   candidate.Weekday,
		StartTime: candidate.Start.String(),
		EndTime:   candidate.End.String(),
		Classroom: req.Classroom,
		ClassType: classType,
	}, candidate, nil
}

// guard runs the conflict detector against the timetable locked by the
// repository transaction.
func (s *ScheduleService) guard(courseID string, candidate scheduling.TimeInterval, excludeID string) repository.ScheduleGuard {
	return func(ctx context.Context, src scheduling.EntrySource) error {
		conflict, err := scheduling.NewDetector(src).CheckConflict(ctx, courseID, candidate, excludeID)
		if err != nil {
			return err
		}
		return conflict.Err(candidate)
	}
}

func (s *ScheduleService) writeError(op string, err error) error {
	return guardedWriteError(s.metrics, op, err, "course or schedule not found", "failed to save schedule")
}
