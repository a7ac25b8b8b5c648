package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/service"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

type fakeCourseService struct {
	principal models.Principal
	filter    models.CourseFilter
	mine      bool
	created   service.CourseRequest
	err       error
}

func (f *fakeCourseService) List(_ context.Context, p models.Principal, filter models.CourseFilter, mine bool) ([]models.Course, *models.Pagination, error) {
	f.principal, f.filter, f.mine = p, filter, mine
	return []models.Course{}, &models.Pagination{}, f.err
}

func (f *fakeCourseService) Subjects(context.Context) ([]string, error) {
	return []string{"Matemática", "Física"}, f.err
}

func (f *fakeCourseService) TeacherOptions(context.Context) ([]models.TeacherOption, error) {
	return nil, f.err
}

func (f *fakeCourseService) Get(_ context.Context, id string) (*models.Course, error) {
	return &models.Course{ID: id}, f.err
}

func (f *fakeCourseService) Create(_ context.Context, req service.CourseRequest) (*models.Course, error) {
	f.created = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Course{ID: "c1", Name: req.Name}, nil
}

func (f *fakeCourseService) Update(_ context.Context, id string, req service.CourseRequest) (*models.Course, error) {
	return &models.Course{ID: id}, f.err
}

func (f *fakeCourseService) SetStatus(_ context.Context, id string, active bool) (*models.Course, error) {
	return &models.Course{ID: id}, f.err
}

func TestCourseHandlerMineScopesToCaller(t *testing.T) {
	svc := &fakeCourseService{}
	h := NewCourseHandler(svc)

	c, rec := newContext(http.MethodGet, "/courses/mine?subject=F%C3%ADsica", nil, teacherCaller)
	h.Mine(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.mine)
	assert.Equal(t, "u-teacher", svc.principal.UserID)
	assert.Equal(t, "Física", svc.filter.Subject)

	c, _ = newContext(http.MethodGet, "/courses", nil, studentCaller)
	h.List(c)
	assert.False(t, svc.mine)
}

func TestCourseHandlerCreate(t *testing.T) {
	svc := &fakeCourseService{}
	h := NewCourseHandler(svc)

	body := map[string]interface{}{"name": "Álgebra I", "subject": "Matemática", "capacity": 12, "monthly_price": 150}
	c, rec := newContext(http.MethodPost, "/courses", body, adminCaller)
	h.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 12, svc.created.Capacity)
	assert.Equal(t, 150.0, svc.created.MonthlyPrice)
}

func TestCourseHandlerUpdateConflict(t *testing.T) {
	svc := &fakeCourseService{err: appErrors.Clone(appErrors.ErrConflict, "capacity below active enrollments")}
	h := NewCourseHandler(svc)

	c, rec := newContext(http.MethodPut, "/courses/c1", map[string]int{"capacity": 1}, adminCaller, gin.Param{Key: "id", Value: "c1"})
	h.Update(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}
