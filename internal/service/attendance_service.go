package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/models"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
	"github.com/noah-isme/academy-api/pkg/export"
)

type attendanceRepository interface {
	RegisterBatch(ctx context.Context, courseID string, classDate time.Time, recordedBy string, marks []models.AttendanceMark) ([]models.Attendance, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error)
	Stats(ctx context.Context, filter models.AttendanceFilter) (models.AttendanceStats, error)
}

type courseRoster interface {
	ActiveStudentIDs(ctx context.Context, courseID string) ([]string, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// RegisterAttendanceRequest marks a whole class in one call.
type RegisterAttendanceRequest struct {
	CourseID  string                  `json:"course_id" validate:"required,uuid"`
	ClassDate string                  `json:"class_date" validate:"required,datetime=2006-01-02"`
	Records   []models.AttendanceMark `json:"records" validate:"required,min=1,dive"`
}

// AttendanceQuery carries the optional query-string filters.
type AttendanceQuery struct {
	CourseID  string
	StudentID string
	From      string
	To        string
}

// AttendanceService records class attendance and derives statistics.
type AttendanceService struct {
	repo      attendanceRepository
	courses   courseOwnership
	roster    courseRoster
	audit     auditWriter
	exports   *ExportService
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	loc       *time.Location
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, courses courseOwnership, roster courseRoster, audit auditWriter, exports *ExportService, cache *CacheService, loc *time.Location, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceService{
		repo:      repo,
		courses:   courses,
		roster:    roster,
		audit:     audit,
		exports:   exports,
		cache:     cache,
		validator: validate,
		logger:    logger,
		loc:       loc,
	}
}

// RegisterBatch stores every mark of a class date atomically. All students
// must hold an ACTIVE enrollment in the course.
func (s *AttendanceService) RegisterBatch(ctx context.Context, principal models.Principal, req RegisterAttendanceRequest, meta models.RequestMeta) ([]models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid attendance payload")
	}
	classDate, err := s.parseDate(req.ClassDate)
	if err != nil {
		return nil, err
	}
	if err := ensureCourseAccess(ctx, s.courses, principal, req.CourseID); err != nil {
		return nil, err
	}

	enrolled, err := s.roster.ActiveStudentIDs(ctx, req.CourseID)
	if err != nil {
		return nil, internalError(err, "failed to load course roster")
	}
	allowed := make(map[string]bool, len(enrolled))
	for _, id := range enrolled {
		allowed[id] = true
	}
	seen := make(map[string]bool, len(req.Records))
	var invalid []string
	for _, mark := range req.Records {
		if seen[mark.StudentID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s appears twice", mark.StudentID))
		}
		seen[mark.StudentID] = true
		if !allowed[mark.StudentID] {
			invalid = append(invalid, mark.StudentID)
		}
	}
	if len(invalid) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "students are not actively enrolled in the course").
			WithDetails(map[string][]string{"student_ids": invalid})
	}

	records, err := s.repo.RegisterBatch(ctx, req.CourseID, classDate, principal.UserID, req.Records)
	if err != nil {
		return nil, internalError(err, "failed to register attendance")
	}
	s.cache.Invalidate(ctx, dashboardCachePattern)
	s.recordAudit(ctx, principal, req, len(records), meta)
	return records, nil
}

// ByCourseDate returns the marks of one class.
func (s *AttendanceService) ByCourseDate(ctx context.Context, principal models.Principal, courseID, date string) ([]models.Attendance, error) {
	if err := ensureCourseAccess(ctx, s.courses, principal, courseID); err != nil {
		return nil, err
	}
	day, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.List(ctx, models.AttendanceFilter{CourseID: courseID, From: &day, To: &day})
	if err != nil {
		return nil, internalError(err, "failed to list attendance")
	}
	return records, nil
}

// StudentHistory returns a student's marks. Students only see their own;
// teachers only see marks of their courses.
func (s *AttendanceService) StudentHistory(ctx context.Context, principal models.Principal, studentID string, query AttendanceQuery) ([]models.Attendance, error) {
	query.StudentID = studentID
	filter, err := s.scopedFilter(principal, query)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list attendance")
	}
	return records, nil
}

// StudentStats summarises a student's marks, optionally for one course.
func (s *AttendanceService) StudentStats(ctx context.Context, principal models.Principal, studentID string, query AttendanceQuery) (models.AttendanceStats, error) {
	query.StudentID = studentID
	return s.Stats(ctx, principal, query)
}

// Stats summarises the marks matching query within the principal's scope.
func (s *AttendanceService) Stats(ctx context.Context, principal models.Principal, query AttendanceQuery) (models.AttendanceStats, error) {
	filter, err := s.scopedFilter(principal, query)
	if err != nil {
		return models.AttendanceStats{}, err
	}
	stats, err := s.repo.Stats(ctx, filter)
	if err != nil {
		return models.AttendanceStats{}, internalError(err, "failed to compute attendance stats")
	}
	return stats, nil
}

// Report returns the matching marks together with their statistics.
func (s *AttendanceService) Report(ctx context.Context, principal models.Principal, query AttendanceQuery) (*models.AttendanceReport, error) {
	filter, err := s.scopedFilter(principal, query)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list attendance")
	}
	stats, err := s.repo.Stats(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to compute attendance stats")
	}
	if records == nil {
		records = []models.Attendance{}
	}
	return &models.AttendanceReport{Records: records, Stats: stats}, nil
}

// Export renders the report as CSV or PDF and stores it behind a signed link.
func (s *AttendanceService) Export(ctx context.Context, principal models.Principal, query AttendanceQuery, rawFormat string) (*ExportResult, error) {
	format, ok := export.ParseFormat(rawFormat)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be pdf or csv")
	}
	report, err := s.Report(ctx, principal, query)
	if err != nil {
		return nil, err
	}
	subtitle := "All dates"
	if query.From != "" || query.To != "" {
		subtitle = fmt.Sprintf("%s to %s", orDash(query.From), orDash(query.To))
	}
	name := "attendance"
	if query.StudentID != "" {
		name = "attendance_student_" + query.StudentID
	}
	return s.exports.RenderReport(principal.UserID, name, format, attendanceReport("Attendance report", subtitle, *report))
}

func (s *AttendanceService) scopedFilter(principal models.Principal, query AttendanceQuery) (models.AttendanceFilter, error) {
	filter := models.AttendanceFilter{CourseID: query.CourseID}
	if query.StudentID != "" {
		if _, err := uuid.Parse(query.StudentID); err == nil {
			filter.StudentID = query.StudentID
		} else {
			filter.StudentDNI = query.StudentID
		}
	}
	if query.From != "" {
		from, err := s.parseDate(query.From)
		if err != nil {
			return filter, err
		}
		filter.From = &from
	}
	if query.To != "" {
		to, err := s.parseDate(query.To)
		if err != nil {
			return filter, err
		}
		filter.To = &to
	}

	switch principal.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		filter.TeacherID = principal.UserID
	case models.RoleStudent:
		if (filter.StudentID != "" && filter.StudentID != principal.UserID) || filter.StudentDNI != "" {
			return filter, appErrors.Clone(appErrors.ErrForbidden, "students can only read their own attendance")
		}
		filter.StudentID = principal.UserID
	default:
		return filter, appErrors.Clone(appErrors.ErrForbidden, "insufficient role")
	}
	return filter, nil
}

func (s *AttendanceService) parseDate(raw string) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, raw, s.loc)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
	}
	return day, nil
}

func (s *AttendanceService) recordAudit(ctx context.Context, principal models.Principal, req RegisterAttendanceRequest, count int, meta models.RequestMeta) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{"class_date": req.ClassDate, "records": count})
	userID := principal.UserID
	courseID := req.CourseID
	entry := &models.AuditLog{
		ID:         uuid.NewString(),
		UserID:     &userID,
		Action:     models.AuditActionAttendanceRegister,
		Resource:   "course",
		ResourceID: &courseID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
