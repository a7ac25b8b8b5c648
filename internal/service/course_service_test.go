package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/models"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

type fakeCourseRepo struct {
	courses    map[string]*models.Course
	lastFilter models.CourseFilter
}

func newFakeCourseRepo(courses ...*models.Course) *fakeCourseRepo {
	repo := &fakeCourseRepo{courses: map[string]*models.Course{}}
	for _, c := range courses {
		repo.courses[c.ID] = c
	}
	return repo
}

func (f *fakeCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	f.lastFilter = filter
	var out []models.Course
	for _, c := range f.courses {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (f *fakeCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	c, ok := f.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *c
	copy.FillDerived()
	return &copy, nil
}

func (f *fakeCourseRepo) ListSubjects(ctx context.Context) ([]string, error) {
	return []string{"Física", "Matemática"}, nil
}

func (f *fakeCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.ID = uuid.NewString()
	f.courses[course.ID] = course
	return nil
}

func (f *fakeCourseRepo) Update(ctx context.Context, course *models.Course) error {
	if _, ok := f.courses[course.ID]; !ok {
		return sql.ErrNoRows
	}
	f.courses[course.ID] = course
	return nil
}

func (f *fakeCourseRepo) SetActive(ctx context.Context, id string, active bool) error {
	c, ok := f.courses[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Active = active
	return nil
}

func (f *fakeCourseRepo) IsTaughtBy(ctx context.Context, courseID, teacherID string) (bool, error) {
	c, ok := f.courses[courseID]
	return ok && c.TeacherID == teacherID, nil
}

type fakeTeacherDirectory struct {
	users map[string]*models.User
}

func (f fakeTeacherDirectory) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f fakeTeacherDirectory) ListTeacherOptions(ctx context.Context) ([]models.TeacherOption, error) {
	var out []models.TeacherOption
	for _, u := range f.users {
		if u.Role == models.RoleTeacher && u.Active {
			out = append(out, models.TeacherOption{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName})
		}
	}
	return out, nil
}

const (
	teacherID  = "6f1f4c1e-5b1f-4a64-9a0c-1f2e3d4c5b6a"
	studentID  = "8a2b3c4d-1e2f-4a5b-8c7d-9e0f1a2b3c4d"
	inactiveID = "1b2c3d4e-5f60-4718-8293-a4b5c6d7e8f9"
)

func newCourseFixture(courses ...*models.Course) (*CourseService, *fakeCourseRepo) {
	repo := newFakeCourseRepo(courses...)
	teachers := fakeTeacherDirectory{users: map[string]*models.User{
		teacherID:  {ID: teacherID, Role: models.RoleTeacher, Active: true},
		studentID:  {ID: studentID, Role: models.RoleStudent, Active: true},
		inactiveID: {ID: inactiveID, Role: models.RoleTeacher, Active: false},
	}}
	return NewCourseService(repo, teachers, nil, nil, nil), repo
}

func TestCreateCourseRequiresActiveTeacher(t *testing.T) {
	svc, _ := newCourseFixture()
	req := CourseRequest{Name: "Álgebra I", Subject: "Matemática", TeacherID: teacherID, Capacity: 10, MonthlyPrice: 150}

	course, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, course.Active)
	assert.Equal(t, 10, course.AvailableCapacity)

	req.TeacherID = studentID
	_, err = svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	req.TeacherID = inactiveID
	_, err = svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCreateCourseValidatesShape(t *testing.T) {
	svc, _ := newCourseFixture()
	cases := map[string]CourseRequest{
		"short name":    {Name: "Al", Subject: "Matemática", TeacherID: teacherID, Capacity: 10, MonthlyPrice: 150},
		"zero capacity": {Name: "Álgebra", Subject: "Matemática", TeacherID: teacherID, Capacity: 0, MonthlyPrice: 150},
		"over capacity": {Name: "Álgebra", Subject: "Matemática", TeacherID: teacherID, Capacity: 41, MonthlyPrice: 150},
		"free":          {Name: "Álgebra", Subject: "Matemática", TeacherID: teacherID, Capacity: 10, MonthlyPrice: 0},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), req)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}

func TestUpdateCourseCapacityBelowEnrollments(t *testing.T) {
	existing := &models.Course{ID: "c1", Name: "Álgebra", Subject: "Matemática", TeacherID: teacherID, Capacity: 10, MonthlyPrice: 150, Active: true, EnrolledCount: 6}
	svc, _ := newCourseFixture(existing)

	_, err := svc.Update(context.Background(), "c1", CourseRequest{Name: "Álgebra", Subject: "Matemática", TeacherID: teacherID, Capacity: 5, MonthlyPrice: 150})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	updated, err := svc.Update(context.Background(), "c1", CourseRequest{Name: "Álgebra", Subject: "Matemática", TeacherID: teacherID, Capacity: 6, MonthlyPrice: 180})
	require.NoError(t, err)
	assert.Equal(t, 0, updated.AvailableCapacity)
}

func TestListMineScopesByRole(t *testing.T) {
	svc, repo := newCourseFixture()

	_, _, err := svc.List(context.Background(), models.Principal{UserID: teacherID, Role: models.RoleTeacher}, models.CourseFilter{}, true)
	require.NoError(t, err)
	assert.Equal(t, teacherID, repo.lastFilter.TeacherID)

	_, _, err = svc.List(context.Background(), models.Principal{UserID: studentID, Role: models.RoleStudent}, models.CourseFilter{}, true)
	require.NoError(t, err)
	assert.Equal(t, studentID, repo.lastFilter.StudentID)
}

func TestEnsureCourseAccess(t *testing.T) {
	svc, _ := newCourseFixture(&models.Course{ID: "c1", TeacherID: teacherID})

	assert.NoError(t, svc.EnsureAccess(context.Background(), models.Principal{Role: models.RoleAdmin}, "c1"))
	assert.NoError(t, svc.EnsureAccess(context.Background(), models.Principal{UserID: teacherID, Role: models.RoleTeacher}, "c1"))
	assert.ErrorIs(t, svc.EnsureAccess(context.Background(), models.Principal{UserID: "other", Role: models.RoleTeacher}, "c1"), appErrors.ErrForbidden)
	assert.ErrorIs(t, svc.EnsureAccess(context.Background(), models.Principal{UserID: studentID, Role: models.RoleStudent}, "c1"), appErrors.ErrForbidden)
}

func TestSetCourseStatusMissing(t *testing.T) {
	svc, _ := newCourseFixture()
	_, err := svc.SetStatus(context.Background(), "ghost", false)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
