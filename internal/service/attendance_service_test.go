package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/models"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

type fakeAttendanceRepo struct {
	registered  []models.AttendanceMark
	lastFilter  models.AttendanceFilter
	records     []models.Attendance
	registerErr error
}

func (f *fakeAttendanceRepo) RegisterBatch(ctx context.Context, courseID string, classDate time.Time, recordedBy string, marks []models.AttendanceMark) ([]models.Attendance, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.registered = marks
	out := make([]models.Attendance, 0, len(marks))
	for _, m := range marks {
		out = append(out, models.Attendance{ID: uuid.NewString(), StudentID: m.StudentID, CourseID: courseID, ClassDate: classDate, Present: m.Present, RecordedBy: recordedBy})
	}
	return out, nil
}

func (f *fakeAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error) {
	f.lastFilter = filter
	return f.records, nil
}

func (f *fakeAttendanceRepo) Stats(ctx context.Context, filter models.AttendanceFilter) (models.AttendanceStats, error) {
	f.lastFilter = filter
	attended := 0
	for _, r := range f.records {
		if r.Present {
			attended++
		}
	}
	return models.NewAttendanceStats(len(f.records), attended), nil
}

type fakeRoster map[string][]string

func (f fakeRoster) ActiveStudentIDs(ctx context.Context, courseID string) ([]string, error) {
	return f[courseID], nil
}

type fakeAuditWriter struct {
	logs []*models.AuditLog
}

func (f *fakeAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

type attendanceFixture struct {
	svc    *AttendanceService
	repo   *fakeAttendanceRepo
	audit  *fakeAuditWriter
	s1, s2 string
}

func newAttendanceFixture(t *testing.T) attendanceFixture {
	t.Helper()
	s1, s2 := uuid.NewString(), uuid.NewString()
	repo := &fakeAttendanceRepo{}
	audit := &fakeAuditWriter{}
	courses := newFakeCourseRepo(&models.Course{ID: courseA, TeacherID: teacherID})
	svc := NewAttendanceService(repo, courses, fakeRoster{courseA: {s1, s2}}, audit, newTestExportService(t), nil, lima, nil, nil)
	return attendanceFixture{svc: svc, repo: repo, audit: audit, s1: s1, s2: s2}
}

var teacherPrincipal = models.Principal{UserID: teacherID, Role: models.RoleTeacher}

func TestRegisterBatchChecksRosterAndOwner(t *testing.T) {
	f := newAttendanceFixture(t)
	ctx := context.Background()
	req := RegisterAttendanceRequest{
		CourseID:  courseA,
		ClassDate: "2024-03-04",
		Records:   []models.AttendanceMark{{StudentID: f.s1, Present: true}, {StudentID: f.s2}},
	}

	records, err := f.svc.RegisterBatch(ctx, teacherPrincipal, req, models.RequestMeta{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionAttendanceRegister, f.audit.logs[0].Action)

	_, err = f.svc.RegisterBatch(ctx, models.Principal{UserID: uuid.NewString(), Role: models.RoleTeacher}, req, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	outsider := uuid.NewString()
	req.Records = append(req.Records, models.AttendanceMark{StudentID: outsider})
	_, err = f.svc.RegisterBatch(ctx, teacherPrincipal, req, models.RequestMeta{})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, map[string][]string{"student_ids": {outsider}}, appErr.Details)
}

func TestRegisterBatchRejectsBadPayloads(t *testing.T) {
	f := newAttendanceFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterBatch(ctx, teacherPrincipal, RegisterAttendanceRequest{CourseID: courseA, ClassDate: "2024-03-04"}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	dup := RegisterAttendanceRequest{CourseID: courseA, ClassDate: "2024-03-04", Records: []models.AttendanceMark{{StudentID: f.s1}, {StudentID: f.s1}}}
	_, err = f.svc.RegisterBatch(ctx, teacherPrincipal, dup, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Nil(t, f.repo.registered)
}

func TestRegisterBatchStoreFailureIsInternal(t *testing.T) {
	f := newAttendanceFixture(t)
	f.repo.registerErr = errors.New("row 2 violates foreign key")
	req := RegisterAttendanceRequest{CourseID: courseA, ClassDate: "2024-03-04", Records: []models.AttendanceMark{{StudentID: f.s1}}}

	_, err := f.svc.RegisterBatch(context.Background(), teacherPrincipal, req, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.Empty(t, f.audit.logs)
}

func TestAttendanceScopeByRole(t *testing.T) {
	f := newAttendanceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Stats(ctx, teacherPrincipal, AttendanceQuery{From: "2024-03-01", To: "2024-03-31"})
	require.NoError(t, err)
	assert.Equal(t, teacherID, f.repo.lastFilter.TeacherID)
	require.NotNil(t, f.repo.lastFilter.From)

	_, err = f.svc.StudentHistory(ctx, asStudent(f.s1), f.s1, AttendanceQuery{})
	require.NoError(t, err)
	assert.Equal(t, f.s1, f.repo.lastFilter.StudentID)

	_, err = f.svc.StudentHistory(ctx, asStudent(f.s1), f.s2, AttendanceQuery{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.StudentHistory(ctx, models.Principal{Role: models.RoleAdmin}, "1234", AttendanceQuery{})
	require.NoError(t, err)
	assert.Equal(t, "1234", f.repo.lastFilter.StudentDNI)

	_, err = f.svc.Stats(ctx, teacherPrincipal, AttendanceQuery{From: "03/01/2024"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAttendanceReportAndExport(t *testing.T) {
	f := newAttendanceFixture(t)
	f.repo.records = []models.Attendance{
		{StudentName: "Ana", Present: true, ClassDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
		{StudentName: "Luis", Present: true, ClassDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
		{StudentName: "Rosa", ClassDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
	}
	admin := models.Principal{UserID: uuid.NewString(), Role: models.RoleAdmin}

	report, err := f.svc.Report(context.Background(), admin, AttendanceQuery{CourseID: courseA})
	require.NoError(t, err)
	assert.Equal(t, 66.67, report.Stats.Percentage)
	assert.Equal(t, 1, report.Stats.Absences)

	result, err := f.svc.Export(context.Background(), admin, AttendanceQuery{CourseID: courseA}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.NotEmpty(t, result.Token)

	_, err = f.svc.Export(context.Background(), admin, AttendanceQuery{}, "docx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
