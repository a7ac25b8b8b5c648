package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/repository"
	"github.com/noah-isme/academy-api/internal/scheduling"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

// fakeScheduleRepo stores entries in memory and runs guards against them the
// way the SQL repository does inside its transaction.
type fakeScheduleRepo struct {
	entries map[string]*models.ScheduleEntry
	courses map[string]bool
	clock   time.Time
}

func newFakeScheduleRepo(courseIDs ...string) *fakeScheduleRepo {
	repo := &fakeScheduleRepo{entries: map[string]*models.ScheduleEntry{}, courses: map[string]bool{}, clock: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
	for _, id := range courseIDs {
		repo.courses[id] = true
	}
	return repo
}

func (f *fakeScheduleRepo) ActiveEntries(ctx context.Context, courseID string, day scheduling.Weekday) ([]scheduling.Entry, error) {
	var out []scheduling.Entry
	for _, e := range f.entries {
		if e.CourseID != courseID || e.Weekday != day || !e.Active {
			continue
		}
		iv, err := e.Interval()
		if err != nil {
			return nil, err
		}
		out = append(out, scheduling.Entry{ID: e.ID, CourseID: e.CourseID, Interval: iv, CreatedAt: e.CreatedAt})
	}
	return out, nil
}

func (f *fakeScheduleRepo) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, error) {
	var out []models.ScheduleEntry
	for _, e := range f.entries {
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeScheduleRepo) FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *e
	return &copy, nil
}

func (f *fakeScheduleRepo) Create(ctx context.Context, entry *models.ScheduleEntry, guard repository.ScheduleGuard) error {
	if !f.courses[entry.CourseID] {
		return sql.ErrNoRows
	}
	if guard != nil {
		if err := guard(ctx, f); err != nil {
			return err
		}
	}
	f.clock = f.clock.Add(time.Minute)
	entry.ID = uuid.NewString()
	entry.CreatedAt = f.clock
	stored := *entry
	f.entries[entry.ID] = &stored
	return nil
}

func (f *fakeScheduleRepo) Update(ctx context.Context, entry *models.ScheduleEntry, guard repository.ScheduleGuard) error {
	if _, ok := f.entries[entry.ID]; !ok {
		return sql.ErrNoRows
	}
	if guard != nil {
		if err := guard(ctx, f); err != nil {
			return err
		}
	}
	stored := *entry
	f.entries[entry.ID] = &stored
	return nil
}

func (f *fakeScheduleRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.entries[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.entries, id)
	return nil
}

const courseA = "0e1d2c3b-4a59-4687-b6a5-d4c3b2a19080"

func scheduleReq(day, start, end string) ScheduleRequest {
	return ScheduleRequest{CourseID: courseA, Weekday: day, StartTime: start, EndTime: end}
}

func TestCreateScheduleDetectsOverlap(t *testing.T) {
	repo := newFakeScheduleRepo(courseA)
	svc := NewScheduleService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, scheduleReq("MONDAY", "08:00", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, models.ClassTypeRegular, first.ClassType)

	_, err = svc.Create(ctx, scheduleReq("MONDAY", "10:00", "12:00"))
	require.NoError(t, err, "touching endpoints do not overlap")

	_, err = svc.Create(ctx, scheduleReq("TUESDAY", "09:00", "11:00"))
	require.NoError(t, err, "other weekdays never overlap")

	_, err = svc.Create(ctx, scheduleReq("monday", "09:00", "11:00"))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "SCHEDULE_CONFLICT", appErr.Code)
	assert.Equal(t, 409, appErr.Status)
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, first.ID, details["conflicting_entry_id"], "the earliest created overlapping entry is reported")
}

func TestCreateScheduleContainment(t *testing.T) {
	repo := newFakeScheduleRepo(courseA)
	svc := NewScheduleService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, scheduleReq("FRIDAY", "14:00", "18:00"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, scheduleReq("FRIDAY", "15:00", "16:00"))
	assert.ErrorIs(t, err, appErrors.New("SCHEDULE_CONFLICT", 409, ""))
	_, err = svc.Create(ctx, scheduleReq("FRIDAY", "13:00", "19:00"))
	assert.ErrorIs(t, err, appErrors.New("SCHEDULE_CONFLICT", 409, ""))
}

func TestCreateScheduleValidation(t *testing.T) {
	svc := NewScheduleService(newFakeScheduleRepo(courseA), nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, scheduleReq("FUNDAY", "08:00", "10:00"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(ctx, scheduleReq("MONDAY", "8am", "10:00"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(ctx, scheduleReq("MONDAY", "10:00", "10:00"))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INVALID_INTERVAL", appErr.Code)
	assert.Equal(t, 400, appErr.Status)
}

func TestCreateScheduleMissingCourse(t *testing.T) {
	svc := NewScheduleService(newFakeScheduleRepo(), nil, nil, nil, nil)
	_, err := svc.Create(context.Background(), scheduleReq("MONDAY", "08:00", "10:00"))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUpdateScheduleExcludesItself(t *testing.T) {
	repo := newFakeScheduleRepo(courseA)
	svc := NewScheduleService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	entry, err := svc.Create(ctx, scheduleReq("WEDNESDAY", "08:00", "10:00"))
	require.NoError(t, err)

	moved, err := svc.Update(ctx, entry.ID, scheduleReq("WEDNESDAY", "09:00", "11:00"))
	require.NoError(t, err)
	assert.Equal(t, "09:00", moved.StartTime)
}

func TestReactivatingScheduleChecksConflicts(t *testing.T) {
	repo := newFakeScheduleRepo(courseA)
	svc := NewScheduleService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	old, err := svc.Create(ctx, scheduleReq("THURSDAY", "08:00", "10:00"))
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, old.ID, false)
	require.NoError(t, err)

	_, err = svc.Create(ctx, scheduleReq("THURSDAY", "09:00", "11:00"))
	require.NoError(t, err, "inactive entries do not block")

	_, err = svc.SetStatus(ctx, old.ID, true)
	assert.ErrorIs(t, err, appErrors.New("SCHEDULE_CONFLICT", 409, ""))
}

func TestScheduleTxConflictSurfacesAsRetryable(t *testing.T) {
	svc := NewScheduleService(txConflictScheduleRepo{newFakeScheduleRepo(courseA)}, nil, nil, nil, nil)
	_, err := svc.Create(context.Background(), scheduleReq("MONDAY", "08:00", "10:00"))
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

type txConflictScheduleRepo struct {
	*fakeScheduleRepo
}

func (txConflictScheduleRepo) Create(ctx context.Context, entry *models.ScheduleEntry, guard repository.ScheduleGuard) error {
	return repository.ErrTxConflict
}

func TestUpdateScheduleKeepsCourse(t *testing.T) {
	const courseB = "7c6b5a49-3827-4615-a4b3-c2d1e0f9a8b7"
	repo := newFakeScheduleRepo(courseA, courseB)
	svc := NewScheduleService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, scheduleReq("MONDAY", "08:00", "10:00"))
	require.NoError(t, err)
	second, err := svc.Create(ctx, scheduleReq("MONDAY", "10:00", "12:00"))
	require.NoError(t, err)

	req := scheduleReq("MONDAY", "08:00", "10:00")
	req.CourseID = courseB
	_, err = svc.Update(ctx, second.ID, req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	stored, err := repo.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, courseA, stored.CourseID)
	assert.Equal(t, "10:00", stored.StartTime)

	_, err = svc.Update(ctx, second.ID, scheduleReq("MONDAY", "08:00", "10:00"))
	assert.ErrorIs(t, err, appErrors.New("SCHEDULE_CONFLICT", 409, ""))
}
