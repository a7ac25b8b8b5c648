package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/models"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

type fakeDashboardRepo struct {
	calls       int
	revenue     map[string]float64
	enrollments []models.MonthlyCount
	progress    []models.CourseProgressRow
	weekly      []models.WeeklyAttendanceRow
	student     models.StudentCounters
	weeklyFrom  time.Time
	countersErr error
}

func (f *fakeDashboardRepo) AdminCounters(context.Context) (models.AdminCounters, error) {
	f.calls++
	if f.countersErr != nil {
		return models.AdminCounters{}, f.countersErr
	}
	return models.AdminCounters{ActiveStudents: 40, ActiveTeachers: 5, ActiveCourses: 8}, nil
}

func (f *fakeDashboardRepo) RevenueBetween(_ context.Context, from, _ time.Time) (float64, error) {
	return f.revenue[from.Format("2006-01")], nil
}

func (f *fakeDashboardRepo) MonthlyEnrollments(context.Context, time.Time) ([]models.MonthlyCount, error) {
	return f.enrollments, nil
}

func (f *fakeDashboardRepo) MonthlyRevenue(context.Context, time.Time) ([]models.MonthlyAmount, error) {
	return nil, nil
}

func (f *fakeDashboardRepo) StudentsBySubject(context.Context) ([]models.SubjectCount, error) {
	return []models.SubjectCount{{Subject: "Matemática", Students: 12}}, nil
}

func (f *fakeDashboardRepo) TopCourses(_ context.Context, limit int) ([]models.CourseRanking, error) {
	return []models.CourseRanking{{CourseID: courseA, Name: "Álgebra", Enrolled: 9, Capacity: 12}}, nil
}

func (f *fakeDashboardRepo) RecentActivity(context.Context, int) ([]models.ActivityRow, error) {
	return nil, nil
}

func (f *fakeDashboardRepo) TeacherCounters(context.Context, string, time.Time) (models.TeacherCounters, error) {
	return models.TeacherCounters{ActiveStudents: 9, ActiveCourses: 1, PendingReservations: 2}, nil
}

func (f *fakeDashboardRepo) StudentCounters(context.Context, string, time.Time) (models.StudentCounters, error) {
	return f.student, nil
}

func (f *fakeDashboardRepo) CourseProgress(context.Context, models.DashboardScope) ([]models.CourseProgressRow, error) {
	return f.progress, nil
}

func (f *fakeDashboardRepo) WeeklyAttendance(_ context.Context, _ models.DashboardScope, from time.Time) ([]models.WeeklyAttendanceRow, error) {
	f.weeklyFrom = from
	return f.weekly, nil
}

type memoryCache map[string][]byte

func (m memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m[key] = raw
	return nil
}

func (m memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	for key := range m {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m, key)
		}
	}
	return nil
}

type fakeReservationLister struct {
	filter models.ReservationFilter
}

func (f *fakeReservationLister) List(_ context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error) {
	f.filter = filter
	return nil, 0, nil
}

// Wednesday 2024-03-13 10:30 in the academy zone.
var dashboardNow = time.Date(2024, 3, 13, 10, 30, 0, 0, lima)

func newDashboardFixture(t *testing.T, repo *fakeDashboardRepo, cache *CacheService) (*DashboardService, *fakeReservationLister) {
	t.Helper()
	schedules := fakeActiveSchedules{
		{ID: "e1", CourseID: courseA, Weekday: "WEDNESDAY", StartTime: "09:00", EndTime: "10:00", ClassType: models.ClassTypeRegular},
		{ID: "e2", CourseID: courseA, Weekday: "WEDNESDAY", StartTime: "16:00", EndTime: "17:00", ClassType: models.ClassTypeRegular},
		{ID: "e3", CourseID: courseA, Weekday: "MONDAY", StartTime: "08:00", EndTime: "09:00", ClassType: models.ClassTypeRegular},
		{ID: "e4", CourseID: courseA, Weekday: "FRIDAY", StartTime: "08:00", EndTime: "09:00", ClassType: models.ClassTypeRegular},
	}
	bookings := &fakeReservationLister{}
	svc := NewDashboardService(DashboardServiceParams{
		Repo:         repo,
		Schedules:    schedules,
		Reservations: bookings,
		Cache:        cache,
		Location:     lima,
	})
	svc.now = func() time.Time { return dashboardNow }
	return svc, bookings
}

func TestAdminDashboardFiguresAndCache(t *testing.T) {
	cache := NewCacheService(memoryCache{}, nil, time.Minute, nil, true)

	repo := &fakeDashboardRepo{
		revenue:     map[string]float64{"2024-03": 1200, "2024-02": 1000},
		enrollments: []models.MonthlyCount{{Month: "2023-11", Count: 3}, {Month: "2024-03", Count: 7}},
	}
	svc, _ := newDashboardFixture(t, repo, cache)

	summary, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 20.0, summary.Revenue.ChangePercent)
	require.Len(t, summary.EnrollmentTrend, 6)
	assert.Equal(t, "2023-10", summary.EnrollmentTrend[0].Month)
	assert.Equal(t, 3, summary.EnrollmentTrend[1].Count)
	assert.Equal(t, 7, summary.EnrollmentTrend[5].Count)
	assert.Len(t, summary.RevenueTrend, 6)
	require.Len(t, summary.TopCourses, 1)
	assert.Equal(t, 75.0, summary.TopCourses[0].Occupancy)

	_, hit, err = svc.Admin(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, repo.calls)

	cache.Invalidate(context.Background(), dashboardCachePattern)
	_, hit, err = svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, repo.calls)
}

func TestAdminDashboardStoreFailure(t *testing.T) {
	svc, _ := newDashboardFixture(t, &fakeDashboardRepo{countersErr: errors.New("connection reset")}, nil)
	_, _, err := svc.Admin(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestRevenueChangeWithoutPreviousMonth(t *testing.T) {
	assert.Equal(t, 0.0, revenueChange(500, 0))
	assert.Equal(t, -33.3, revenueChange(200, 300))
}

func TestTeacherDashboard(t *testing.T) {
	repo := &fakeDashboardRepo{
		progress: []models.CourseProgressRow{
			{CourseID: courseA, Name: "Álgebra", Students: 9, ActiveEntries: 4, Attended: 7},
			{CourseID: "c2", Name: "Física", Students: 3, ActiveEntries: 3, Attended: 1},
		},
		weekly: []models.WeeklyAttendanceRow{{Bucket: 0, Total: 4, Present: 3}, {Bucket: 3, Total: 3, Present: 2}},
	}
	svc, bookings := newDashboardFixture(t, repo, nil)

	summary, _, err := svc.Teacher(context.Background(), teacherPrincipal, "")
	require.NoError(t, err)
	assert.Equal(t, teacherID, summary.TeacherID)
	assert.Equal(t, teacherID, bookings.filter.TeacherID)

	require.Len(t, summary.CourseProgress, 2)
	assert.Equal(t, 100.0, summary.CourseProgress[0].Progress)
	assert.Equal(t, 33.0, summary.CourseProgress[1].Progress)

	require.Len(t, summary.Engagement, 4)
	assert.Equal(t, "2024-02-15", summary.Engagement[0].From)
	assert.Equal(t, 75.0, summary.Engagement[0].Rate)
	assert.Equal(t, 0.0, summary.Engagement[1].Rate)
	assert.Equal(t, 67.0, summary.Engagement[3].Rate)
	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, lima), repo.weeklyFrom)

	require.Len(t, summary.UpcomingClasses, 3)
	assert.Equal(t, "2024-03-13", summary.UpcomingClasses[0].Date)
	assert.Equal(t, "16:00", summary.UpcomingClasses[0].StartTime)
	assert.Equal(t, "2024-03-15", summary.UpcomingClasses[1].Date)
	assert.Equal(t, "2024-03-18", summary.UpcomingClasses[2].Date)
	assert.Equal(t, "Álgebra", summary.UpcomingClasses[0].CourseName)
}

func TestStudentDashboard(t *testing.T) {
	repo := &fakeDashboardRepo{
		student: models.StudentCounters{ActiveCourses: 2, Certificates: 1, AttendedClasses: 7, RecordedClasses: 9, PendingPayments: 1},
	}
	svc, _ := newDashboardFixture(t, repo, nil)

	summary, _, err := svc.Student(context.Background(), asStudent(studentID), "")
	require.NoError(t, err)
	assert.Equal(t, 11, summary.AttendedHours)
	assert.Equal(t, 78.0, summary.AttendanceRate)
	assert.Equal(t, 1, summary.Certificates)
	assert.Empty(t, summary.UpcomingClasses)
}

func TestDashboardSubjectResolution(t *testing.T) {
	admin := models.Principal{UserID: "admin", Role: models.RoleAdmin}

	id, err := dashboardSubject(admin, models.RoleStudent, studentID)
	require.NoError(t, err)
	assert.Equal(t, studentID, id)

	_, err = dashboardSubject(admin, models.RoleStudent, "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = dashboardSubject(asStudent(studentID), models.RoleStudent, "someone-else")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = dashboardSubject(asStudent(studentID), models.RoleTeacher, "")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
