package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/scheduling"
	"github.com/noah-isme/academy-api/internal/service"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

type fakeScheduleService struct {
	filter  models.ScheduleFilter
	created service.ScheduleRequest
	err     error
	deleted string
}

func (f *fakeScheduleService) List(_ context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, error) {
	f.filter = filter
	return []models.ScheduleEntry{}, f.err
}

func (f *fakeScheduleService) Get(_ context.Context, id string) (*models.ScheduleEntry, error) {
	return &models.ScheduleEntry{ID: id}, f.err
}

func (f *fakeScheduleService) Create(_ context.Context, req service.ScheduleRequest) (*models.ScheduleEntry, error) {
	f.created = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.ScheduleEntry{ID: "s1"}, nil
}

func (f *fakeScheduleService) Update(_ context.Context, id string, _ service.ScheduleRequest) (*models.ScheduleEntry, error) {
	return &models.ScheduleEntry{ID: id}, f.err
}

func (f *fakeScheduleService) SetStatus(_ context.Context, id string, _ bool) (*models.ScheduleEntry, error) {
	return &models.ScheduleEntry{ID: id}, f.err
}

func (f *fakeScheduleService) Delete(_ context.Context, id string) error {
	f.deleted = id
	return f.err
}

func TestScheduleHandlerListFilters(t *testing.T) {
	svc := &fakeScheduleService{}
	h := NewScheduleHandler(svc)

	c, rec := newContext(http.MethodGet, "/schedules?weekday=monday&class_type=REINFORCEMENT&course_id=c1", nil, adminCaller)
	h.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.filter.Weekday)
	assert.Equal(t, scheduling.Monday, *svc.filter.Weekday)
	require.NotNil(t, svc.filter.ClassType)
	assert.Equal(t, models.ClassTypeReinforcement, *svc.filter.ClassType)
	assert.Equal(t, "c1", svc.filter.CourseID)

	c, rec = newContext(http.MethodGet, "/schedules?weekday=funday", nil, adminCaller)
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newContext(http.MethodGet, "/schedules?class_type=LAB", nil, adminCaller)
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleHandlerCreateConflict(t *testing.T) {
	svc := &fakeScheduleService{err: appErrors.Clone(appErrors.ErrConflict, "overlaps MONDAY 08:00-10:00")}
	h := NewScheduleHandler(svc)

	body := map[string]string{"course_id": "c1", "weekday": "MONDAY", "start_time": "09:00", "end_time": "11:00"}
	c, rec := newContext(http.MethodPost, "/schedules", body, adminCaller)
	h.Create(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "09:00", svc.created.StartTime)
}

func TestScheduleHandlerDelete(t *testing.T) {
	svc := &fakeScheduleService{}
	h := NewScheduleHandler(svc)

	c, _ := newContext(http.MethodDelete, "/schedules/s1", nil, adminCaller, gin.Param{Key: "id", Value: "s1"})
	h.Delete(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "s1", svc.deleted)
}
