package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/scheduling"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

// dashboardCachePattern matches every cached dashboard payload. Writes that
// move a dashboard figure invalidate it.
const dashboardCachePattern = "dash:*"

const (
	trendMonths        = 6
	engagementWeeks    = 4
	topCoursesLimit    = 4
	recentActivitySize = 8
	hoursPerClass      = 1.5
)

type dashboardRepository interface {
	AdminCounters(ctx context.Context) (models.AdminCounters, error)
	RevenueBetween(ctx context.Context, from, to time.Time) (float64, error)
	MonthlyEnrollments(ctx context.Context, from time.Time) ([]models.MonthlyCount, error)
	MonthlyRevenue(ctx context.Context, from time.Time) ([]models.MonthlyAmount, error)
	StudentsBySubject(ctx context.Context) ([]models.SubjectCount, error)
	TopCourses(ctx context.Context, limit int) ([]models.CourseRanking, error)
	RecentActivity(ctx context.Context, limit int) ([]models.ActivityRow, error)
	TeacherCounters(ctx context.Context, teacherID string, today time.Time) (models.TeacherCounters, error)
	StudentCounters(ctx context.Context, studentID string, today time.Time) (models.StudentCounters, error)
	CourseProgress(ctx context.Context, scope models.DashboardScope) ([]models.CourseProgressRow, error)
	WeeklyAttendance(ctx context.Context, scope models.DashboardScope, from time.Time) ([]models.WeeklyAttendanceRow, error)
}

type reservationLister interface {
	List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL        time.Duration
	UpcomingLimit   int
	RecentBookings  int
	UpcomingHorizon int
}

// DashboardService composes the role-scoped dashboards.
type DashboardService struct {
	repo         dashboardRepository
	schedules    activeScheduleReader
	reservations reservationLister
	cache        *CacheService
	logger       *zap.Logger
	loc          *time.Location
	now          func() time.Time
	cfg          DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Repo         dashboardRepository
	Schedules    activeScheduleReader
	Reservations reservationLister
	Cache        *CacheService
	Logger       *zap.Logger
	Location     *time.Location
	Config       DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.UpcomingLimit <= 0 {
		cfg.UpcomingLimit = 3
	}
	if cfg.RecentBookings <= 0 {
		cfg.RecentBookings = 4
	}
	if cfg.UpcomingHorizon <= 0 {
		cfg.UpcomingHorizon = 7
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{
		repo:         params.Repo,
		schedules:    params.Schedules,
		reservations: params.Reservations,
		cache:        params.Cache,
		logger:       logger,
		loc:          loc,
		now:          time.Now,
		cfg:          cfg,
	}
}

// Admin returns the academy-wide dashboard and whether it came from cache.
func (s *DashboardService) Admin(ctx context.Context) (*dto.AdminDashboardResponse, bool, error) {
	const cacheKey = "dash:admin"
	var cached dto.AdminDashboardResponse
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, true, nil
	}
	summary, err := s.composeAdmin(ctx)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

// Teacher returns a teacher dashboard. Admins pick the teacher through
// requestedID; teachers always get their own.
func (s *DashboardService) Teacher(ctx context.Context, principal models.Principal, requestedID string) (*dto.TeacherDashboardResponse, bool, error) {
	teacherID, err := dashboardSubject(principal, models.RoleTeacher, requestedID)
	if err != nil {
		return nil, false, err
	}
	cacheKey := fmt.Sprintf("dash:teacher:%s", teacherID)
	var cached dto.TeacherDashboardResponse
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, true, nil
	}
	summary, err := s.composeTeacher(ctx, teacherID)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

// Student returns a student dashboard. Admins pick the student through
// requestedID; students always get their own.
func (s *DashboardService) Student(ctx context.Context, principal models.Principal, requestedID string) (*dto.StudentDashboardResponse, bool, error) {
	studentID, err := dashboardSubject(principal, models.RoleStudent, requestedID)
	if err != nil {
		return nil, false, err
	}
	cacheKey := fmt.Sprintf("dash:student:%s", studentID)
	var cached dto.StudentDashboardResponse
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, true, nil
	}
	summary, err := s.composeStudent(ctx, studentID)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

func dashboardSubject(principal models.Principal, role models.UserRole, requestedID string) (string, error) {
	switch {
	case principal.IsAdmin():
		if requestedID == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, "userId is required")
		}
		return requestedID, nil
	case principal.Role == role:
		if requestedID != "" && requestedID != principal.UserID {
			return "", appErrors.Clone(appErrors.ErrForbidden, "cannot view another user's dashboard")
		}
		return principal.UserID, nil
	default:
		return "", appErrors.Clone(appErrors.ErrForbidden, "insufficient role")
	}
}

func (s *DashboardService) composeAdmin(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	now := s.now().In(s.loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	prevStart := monthStart.AddDate(0, -1, 0)
	nextStart := monthStart.AddDate(0, 1, 0)
	trendStart := monthStart.AddDate(0, -(trendMonths - 1), 0)

	counters, err := s.repo.AdminCounters(ctx)
	if err != nil {
		return nil, internalError(err, "failed to load dashboard counters")
	}
	current, err := s.repo.RevenueBetween(ctx, monthStart, nextStart)
	if err != nil {
		return nil, internalError(err, "failed to load revenue")
	}
	previous, err := s.repo.RevenueBetween(ctx, prevStart, monthStart)
	if err != nil {
		return nil, internalError(err, "failed to load revenue")
	}
	enrollments, err := s.repo.MonthlyEnrollments(ctx, trendStart)
	if err != nil {
		return nil, internalError(err, "failed to load enrollment trend")
	}
	revenue, err := s.repo.MonthlyRevenue(ctx, trendStart)
	if err != nil {
		return nil, internalError(err, "failed to load revenue trend")
	}
	subjects, err := s.repo.StudentsBySubject(ctx)
	if err != nil {
		return nil, internalError(err, "failed to load subjects")
	}
	ranking, err := s.repo.TopCourses(ctx, topCoursesLimit)
	if err != nil {
		return nil, internalError(err, "failed to load top courses")
	}
	activity, err := s.repo.RecentActivity(ctx, recentActivitySize)
	if err != nil {
		return nil, internalError(err, "failed to load recent activity")
	}

	top := make([]dto.CourseOccupancy, 0, len(ranking))
	for _, c := range ranking {
		top = append(top, dto.CourseOccupancy{CourseRanking: c, Occupancy: percent(c.Enrolled, c.Capacity)})
	}
	if subjects == nil {
		subjects = []models.SubjectCount{}
	}
	if activity == nil {
		activity = []models.ActivityRow{}
	}
	return &dto.AdminDashboardResponse{
		Counters: counters,
		Revenue: dto.RevenueSummary{
			CurrentMonth:  current,
			PreviousMonth: previous,
			ChangePercent: revenueChange(current, previous),
		},
		EnrollmentTrend:   fillMonthlyCounts(trendStart, enrollments),
		RevenueTrend:      fillMonthlyAmounts(trendStart, revenue),
		StudentsBySubject: subjects,
		TopCourses:        top,
		RecentActivity:    activity,
		GeneratedAt:       now.UTC(),
	}, nil
}

func (s *DashboardService) composeTeacher(ctx context.Context, teacherID string) (*dto.TeacherDashboardResponse, error) {
	now := s.now().In(s.loc)
	today := scheduling.CivilDay(now, s.loc)
	scope := models.DashboardScope{TeacherID: teacherID}

	counters, err := s.repo.TeacherCounters(ctx, teacherID, today)
	if err != nil {
		return nil, internalError(err, "failed to load dashboard counters")
	}
	rows, err := s.repo.CourseProgress(ctx, scope)
	if err != nil {
		return nil, internalError(err, "failed to load course progress")
	}
	weekly, err := s.loadWeekly(ctx, scope, today)
	if err != nil {
		return nil, err
	}
	upcoming, err := s.upcomingClasses(ctx, rows, now)
	if err != nil {
		return nil, err
	}
	bookings, _, err := s.reservations.List(ctx, models.ReservationFilter{
		TeacherID: teacherID,
		From:      &today,
		Page:      1,
		PageSize:  s.cfg.RecentBookings,
		SortOrder: "asc",
	})
	if err != nil {
		return nil, internalError(err, "failed to load reservations")
	}
	if bookings == nil {
		bookings = []models.Reservation{}
	}

	return &dto.TeacherDashboardResponse{
		TeacherID:          teacherID,
		Counters:           counters,
		CourseProgress:     courseProgress(rows),
		Engagement:         weekly,
		RecentReservations: bookings,
		UpcomingClasses:    upcoming,
		GeneratedAt:        now.UTC(),
	}, nil
}

func (s *DashboardService) composeStudent(ctx context.Context, studentID string) (*dto.StudentDashboardResponse, error) {
	now := s.now().In(s.loc)
	today := scheduling.CivilDay(now, s.loc)
	scope := models.DashboardScope{StudentID: studentID}

	counters, err := s.repo.StudentCounters(ctx, studentID, today)
	if err != nil {
		return nil, internalError(err, "failed to load dashboard counters")
	}
	rows, err := s.repo.CourseProgress(ctx, scope)
	if err != nil {
		return nil, internalError(err, "failed to load course progress")
	}
	weekly, err := s.loadWeekly(ctx, scope, today)
	if err != nil {
		return nil, err
	}
	upcoming, err := s.upcomingClasses(ctx, rows, now)
	if err != nil {
		return nil, err
	}

	return &dto.StudentDashboardResponse{
		StudentID:        studentID,
		ActiveCourses:    counters.ActiveCourses,
		AttendedHours:    int(math.Round(float64(counters.AttendedClasses) * hoursPerClass)),
		Certificates:     counters.Certificates,
		AttendanceRate:   percent(counters.AttendedClasses, counters.RecordedClasses),
		PendingPayments:  counters.PendingPayments,
		UpcomingBookings: counters.UpcomingBookings,
		CourseProgress:   courseProgress(rows),
		WeeklyProgress:   weekly,
		UpcomingClasses:  upcoming,
		GeneratedAt:      now.UTC(),
	}, nil
}

// loadWeekly returns four 7-day buckets ending today, oldest first.
func (s *DashboardService) loadWeekly(ctx context.Context, scope models.DashboardScope, today time.Time) ([]dto.WeeklyRate, error) {
	from := today.AddDate(0, 0, -(engagementWeeks*7 - 1))
	rows, err := s.repo.WeeklyAttendance(ctx, scope, from)
	if err != nil {
		return nil, internalError(err, "failed to load weekly attendance")
	}
	weeks := make([]dto.WeeklyRate, engagementWeeks)
	for i := range weeks {
		weeks[i] = dto.WeeklyRate{
			Week: fmt.Sprintf("Week %d", i+1),
			From: from.AddDate(0, 0, i*7).Format(dateLayout),
		}
	}
	for _, row := range rows {
		if row.Bucket < 0 || row.Bucket >= engagementWeeks {
			continue
		}
		weeks[row.Bucket].Total = row.Total
		weeks[row.Bucket].Present = row.Present
		weeks[row.Bucket].Rate = percent(row.Present, row.Total)
	}
	return weeks, nil
}

// upcomingClasses lists the next occurrences of the courses' active entries
// within the configured horizon. Classes that already started today are skipped.
func (s *DashboardService) upcomingClasses(ctx context.Context, rows []models.CourseProgressRow, now time.Time) ([]dto.UpcomingClass, error) {
	out := []dto.UpcomingClass{}
	if len(rows) == 0 || s.schedules == nil {
		return out, nil
	}
	ids := make([]string, 0, len(rows))
	names := make(map[string]string, len(rows))
	for _, r := range rows {
		ids = append(ids, r.CourseID)
		names[r.CourseID] = r.Name
	}
	entries, err := s.schedules.ListActiveByCourses(ctx, ids)
	if err != nil {
		return nil, internalError(err, "failed to load schedules")
	}

	today := scheduling.CivilDay(now, s.loc)
	clock := scheduling.ClockTime(now.Hour()*60 + now.Minute())
	type occurrence struct {
		day   time.Time
		start scheduling.ClockTime
		entry models.ScheduleEntry
	}
	var found []occurrence
	for _, e := range entries {
		interval, err := e.Interval()
		if err != nil {
			s.logger.Warn("skipping malformed schedule entry", zap.String("entry_id", e.ID), zap.Error(err))
			continue
		}
		for offset := 0; offset < s.cfg.UpcomingHorizon; offset++ {
			day := today.AddDate(0, 0, offset)
			if scheduling.WeekdayOf(day) != interval.Weekday {
				continue
			}
			if offset == 0 && interval.Start <= clock {
				continue
			}
			found = append(found, occurrence{day: day, start: interval.Start, entry: e})
			break
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if !found[i].day.Equal(found[j].day) {
			return found[i].day.Before(found[j].day)
		}
		return found[i].start < found[j].start
	})
	if len(found) > s.cfg.UpcomingLimit {
		found = found[:s.cfg.UpcomingLimit]
	}
	for _, o := range found {
		name := o.entry.CourseName
		if name == "" {
			name = names[o.entry.CourseID]
		}
		out = append(out, dto.UpcomingClass{
			CourseID:   o.entry.CourseID,
			CourseName: name,
			Date:       o.day.Format(dateLayout),
			Weekday:    o.entry.Weekday,
			StartTime:  o.entry.StartTime,
			EndTime:    o.entry.EndTime,
			Classroom:  o.entry.Classroom,
			ClassType:  o.entry.ClassType,
		})
	}
	return out, nil
}

func courseProgress(rows []models.CourseProgressRow) []dto.CourseProgress {
	out := make([]dto.CourseProgress, 0, len(rows))
	for _, r := range rows {
		progress := percent(r.Attended, r.ActiveEntries)
		if progress > 100 {
			progress = 100
		}
		out = append(out, dto.CourseProgress{
			CourseID:    r.CourseID,
			Name:        r.Name,
			TeacherName: r.TeacherName,
			Students:    r.Students,
			Progress:    progress,
		})
	}
	return out
}

func fillMonthlyCounts(from time.Time, rows []models.MonthlyCount) []models.MonthlyCount {
	byMonth := make(map[string]int, len(rows))
	for _, r := range rows {
		byMonth[r.Month] = r.Count
	}
	out := make([]models.MonthlyCount, trendMonths)
	for i := range out {
		month := from.AddDate(0, i, 0).Format("2006-01")
		out[i] = models.MonthlyCount{Month: month, Count: byMonth[month]}
	}
	return out
}

func fillMonthlyAmounts(from time.Time, rows []models.MonthlyAmount) []models.MonthlyAmount {
	byMonth := make(map[string]float64, len(rows))
	for _, r := range rows {
		byMonth[r.Month] = r.Amount
	}
	out := make([]models.MonthlyAmount, trendMonths)
	for i := range out {
		month := from.AddDate(0, i, 0).Format("2006-01")
		out[i] = models.MonthlyAmount{Month: month, Amount: byMonth[month]}
	}
	return out
}

// percent returns part/whole as a whole-number percentage, 0 when whole is 0.
func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part) / float64(whole) * 100)
}

// revenueChange is the month-over-month change with one decimal; 0 when
// there was no revenue the previous month.
func revenueChange(current, previous float64) float64 {
	if previous <= 0 {
		return 0
	}
	return math.Round((current-previous)/previous*1000) / 10
}
