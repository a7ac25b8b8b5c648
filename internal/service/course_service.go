package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/repository"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListSubjects(ctx context.Context) ([]string, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	SetActive(ctx context.Context, id string, active bool) error
	IsTaughtBy(ctx context.Context, courseID, teacherID string) (bool, error)
}

type teacherDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListTeacherOptions(ctx context.Context) ([]models.TeacherOption, error)
}

// CourseRequest is the payload for creating or replacing a course.
type CourseRequest struct {
	Name         string  `json:"name" validate:"required,min=3,max=100"`
	Description  *string `json:"description" validate:"omitempty,max=1000"`
	Subject      string  `json:"subject" validate:"required,min=2,max=50"`
	TeacherID    string  `json:"teacher_id" validate:"required,uuid"`
	Capacity     int     `json:"capacity" validate:"required,min=1,max=40"`
	MonthlyPrice float64 `json:"monthly_price" validate:"required,gt=0"`
}

// CourseService manages the course catalogue.
type CourseService struct {
	repo      courseRepository
	teachers  teacherDirectory
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, teachers teacherDirectory, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, teachers: teachers, cache: cache, validator: validate, logger: logger}
}

// List returns courses visible to the principal. Teachers only see their own
// courses and students only those they are actively enrolled in when mine
// is set.
func (s *CourseService) List(ctx context.Context, principal models.Principal, filter models.CourseFilter, mine bool) ([]models.Course, *models.Pagination, error) {
	if mine {
		switch principal.Role {
		case models.RoleTeacher:
			filter.TeacherID = principal.UserID
		case models.RoleStudent:
			filter.StudentID = principal.UserID
		}
	}
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list courses")
	}
	return courses, paginate(filter.Page, filter.PageSize, total), nil
}

// Subjects lists the distinct subjects of active courses.
func (s *CourseService) Subjects(ctx context.Context) ([]string, error) {
	subjects, err := s.repo.ListSubjects(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list subjects")
	}
	return subjects, nil
}

// TeacherOptions lists the active teachers a course can be assigned to.
func (s *CourseService) TeacherOptions(ctx context.Context) ([]models.TeacherOption, error) {
	teachers, err := s.teachers.ListTeacherOptions(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list teachers")
	}
	return teachers, nil
}

// Get returns a course by id.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, internalError(err, "failed to load course")
	}
	return course, nil
}

// Create adds an active course.
func (s *CourseService) Create(ctx context.Context, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}
	if err := s.ensureTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}

	course := &models.Course{
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Subject:      strings.TrimSpace(req.Subject),
		TeacherID:    req.TeacherID,
		Capacity:     req.Capacity,
		MonthlyPrice: req.MonthlyPrice,
		Active:       true,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		if errors.Is(err, repository.ErrForeignKey) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, internalError(err, "failed to create course")
	}
	s.invalidate(ctx)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("teacher_id", course.TeacherID))
	return s.Get(ctx, course.ID)
}

// Update replaces the mutable course fields. Capacity cannot drop below the
// number of active enrollments.
func (s *CourseService) Update(ctx context.Context, id string, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.TeacherID != course.TeacherID {
		if err := s.ensureTeacher(ctx, req.TeacherID); err != nil {
			return nil, err
		}
	}
	if req.Capacity < course.EnrolledCount {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("capacity %d is below the %d active enrollments", req.Capacity, course.EnrolledCount))
	}

	course.Name = strings.TrimSpace(req.Name)
	course.Description = req.Description
	course.Subject = strings.TrimSpace(req.Subject)
	course.TeacherID = req.TeacherID
	course.Capacity = req.Capacity
	course.MonthlyPrice = req.MonthlyPrice

	if err := s.repo.Update(ctx, course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, internalError(err, "failed to update course")
	}
	s.invalidate(ctx)
	return s.Get(ctx, id)
}

// SetStatus activates or deactivates a course. Courses are never deleted.
func (s *CourseService) SetStatus(ctx context.Context, id string, active bool) (*models.Course, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, internalError(err, "failed to update course status")
	}
	s.invalidate(ctx)
	return s.Get(ctx, id)
}

// EnsureAccess verifies that a teacher principal owns the course. Admins pass.
func (s *CourseService) EnsureAccess(ctx context.Context, principal models.Principal, courseID string) error {
	return ensureCourseAccess(ctx, s.repo, principal, courseID)
}

type courseOwnership interface {
	IsTaughtBy(ctx context.Context, courseID, teacherID string) (bool, error)
}

func ensureCourseAccess(ctx context.Context, courses courseOwnership, principal models.Principal, courseID string) error {
	switch principal.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		owns, err := courses.IsTaughtBy(ctx, courseID, principal.UserID)
		if err != nil {
			return internalError(err, "failed to check course ownership")
		}
		if !owns {
			return appErrors.Clone(appErrors.ErrForbidden, "course is assigned to another teacher")
		}
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "insufficient role")
}

func (s *CourseService) ensureTeacher(ctx context.Context, teacherID string) error {
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "teacher not found")
		}
		return internalError(err, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher || !teacher.Active {
		return appErrors.Clone(appErrors.ErrValidation, "assigned user must be an active teacher")
	}
	return nil
}

func (s *CourseService) invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, dashboardCachePattern)
}
