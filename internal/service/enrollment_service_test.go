package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
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

// memoryEnrollments mimics EnrollmentRepository: facts are gathered and the
// decision applied under one lock, as the SQL version does in a transaction.
type memoryEnrollments struct {
	mu          sync.Mutex
	courses     map[string]*models.Course
	users       map[string]*models.User
	enrollments map[string]*models.Enrollment
	enrollErr   error
}

func newMemoryEnrollments() *memoryEnrollments {
	return &memoryEnrollments{
		courses:     map[string]*models.Course{},
		users:       map[string]*models.User{},
		enrollments: map[string]*models.Enrollment{},
	}
}

func (m *memoryEnrollments) addStudent(id string) {
	m.users[id] = &models.User{ID: id, Role: models.RoleStudent, Active: true}
}

func (m *memoryEnrollments) activeCount(courseID string) int {
	n := 0
	for _, e := range m.enrollments {
		if e.CourseID == courseID && e.Status == models.EnrollmentActive {
			n++
		}
	}
	return n
}

func (m *memoryEnrollments) find(studentID, courseID string) *models.Enrollment {
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return e
		}
	}
	return nil
}

func (m *memoryEnrollments) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (m *memoryEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *e
	if c, ok := m.courses[e.CourseID]; ok {
		copy.CourseName = c.Name
	}
	return &copy, nil
}

func (m *memoryEnrollments) ListAvailableStudents(ctx context.Context, courseID string) ([]models.StudentOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StudentOption
	for id, u := range m.users {
		if e := m.find(id, courseID); u.Active && (e == nil || e.Status != models.EnrollmentActive) {
			out = append(out, models.StudentOption{ID: id})
		}
	}
	return out, nil
}

func (m *memoryEnrollments) Enroll(ctx context.Context, studentID, courseID string, notes *string, decide func(scheduling.EnrollmentFacts) error) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enrollErr != nil {
		return nil, m.enrollErr
	}

	facts := scheduling.EnrollmentFacts{}
	if c, ok := m.courses[courseID]; ok {
		f := c.Facts()
		facts.Course = &f
		facts.ActiveCount = m.activeCount(courseID)
	}
	if u, ok := m.users[studentID]; ok {
		facts.Student = &scheduling.StudentFacts{ID: u.ID, Active: u.Active, IsStudent: u.Role == models.RoleStudent}
	}
	existing := m.find(studentID, courseID)
	if existing != nil {
		status := existing.Status
		facts.Existing = &status
	}
	if err := decide(facts); err != nil {
		return nil, err
	}

	if existing != nil {
		existing.Status = models.EnrollmentActive
		existing.EnrollmentDate = time.Now()
		copy := *existing
		return &copy, nil
	}
	e := &models.Enrollment{ID: uuid.NewString(), StudentID: studentID, CourseID: courseID, Status: models.EnrollmentActive, Notes: notes}
	m.enrollments[e.ID] = e
	copy := *e
	return &copy, nil
}

func (m *memoryEnrollments) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, decide repository.EnrollmentDecision) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	course := m.courses[e.CourseID]
	if err := decide(*e, course.Facts(), m.activeCount(e.CourseID)); err != nil {
		return nil, err
	}
	e.Status = status
	copy := *e
	return &copy, nil
}

func (m *memoryEnrollments) IsTaughtBy(ctx context.Context, courseID, teacherID string) (bool, error) {
	c, ok := m.courses[courseID]
	return ok && c.TeacherID == teacherID, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []DomainEvent
}

func (r *recordingSink) Dispatch(ctx context.Context, event DomainEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newEnrollmentFixture(capacity int, students ...string) (*EnrollmentService, *memoryEnrollments, *recordingSink) {
	store := newMemoryEnrollments()
	store.courses[courseA] = &models.Course{ID: courseA, Name: "Álgebra", TeacherID: teacherID, Capacity: capacity, Active: true}
	for _, id := range students {
		store.addStudent(id)
	}
	sink := &recordingSink{}
	return NewEnrollmentService(store, store, sink, nil, NewMetricsService(), nil, nil), store, sink
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected an API error, got %v", err)
	return appErr.Code
}

func TestEnrollUntilCourseIsFull(t *testing.T) {
	a, b, c := uuid.NewString(), uuid.NewString(), uuid.NewString()
	svc, _, sink := newEnrollmentFixture(2, a, b, c)
	ctx := context.Background()

	first, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: a, CourseID: courseA})
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, EnrollStudentRequest{StudentID: b, CourseID: courseA})
	require.NoError(t, err)

	_, err = svc.Enroll(ctx, EnrollStudentRequest{StudentID: c, CourseID: courseA})
	require.Error(t, err)
	assert.Equal(t, "COURSE_FULL", reasonOf(t, err))

	_, err = svc.UpdateStatus(ctx, first.ID, UpdateEnrollmentStatusRequest{Status: "CANCELLED"})
	require.NoError(t, err)

	third, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: c, CourseID: courseA})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentActive, third.Status)

	assert.Equal(t, []string{
		EventEnrollmentCreated, EventEnrollmentCreated, EventEnrollmentStatusChanged, EventEnrollmentCreated,
	}, sink.types())
}

func TestConcurrentEnrollmentsNeverOverfill(t *testing.T) {
	students := make([]string, 10)
	for i := range students {
		students[i] = uuid.NewString()
	}
	svc, store, _ := newEnrollmentFixture(3, students...)

	var wg sync.WaitGroup
	for _, id := range students {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: id, CourseID: courseA})
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 3, store.activeCount(courseA))
}

func TestReenrollmentPolicy(t *testing.T) {
	student := uuid.NewString()
	ctx := context.Background()

	t.Run("cancelled enrollment is reopened", func(t *testing.T) {
		svc, store, _ := newEnrollmentFixture(5, student)
		first, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: student, CourseID: courseA})
		require.NoError(t, err)
		_, err = svc.Cancel(ctx, first.ID)
		require.NoError(t, err)

		again, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: student, CourseID: courseA})
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
		assert.Len(t, store.enrollments, 1)
	})

	t.Run("active enrollment blocks", func(t *testing.T) {
		svc, _, _ := newEnrollmentFixture(5, student)
		_, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: student, CourseID: courseA})
		require.NoError(t, err)
		_, err = svc.Enroll(ctx, EnrollStudentRequest{StudentID: student, CourseID: courseA})
		assert.Equal(t, "ALREADY_ENROLLED", reasonOf(t, err))
	})

	t.Run("completed enrollment blocks", func(t *testing.T) {
		svc, _, _ := newEnrollmentFixture(5, student)
		first, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: student, CourseID: courseA})
		require.NoError(t, err)
		_, err = svc.UpdateStatus(ctx, first.ID, UpdateEnrollmentStatusRequest{Status: "completed"})
		require.NoError(t, err)
		_, err = svc.Enroll(ctx, EnrollStudentRequest{StudentID: student, CourseID: courseA})
		assert.Equal(t, "ALREADY_ENROLLED", reasonOf(t, err))
	})
}

func TestEnrollRejectsInvalidParties(t *testing.T) {
	student := uuid.NewString()
	svc, store, _ := newEnrollmentFixture(5, student)
	ctx := context.Background()

	_, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: uuid.NewString(), CourseID: courseA})
	assert.Equal(t, "INVALID_STUDENT", reasonOf(t, err))

	store.users[teacherID] = &models.User{ID: teacherID, Role: models.RoleTeacher, Active: true}
	_, err = svc.Enroll(ctx, EnrollStudentRequest{StudentID: teacherID, CourseID: courseA})
	assert.Equal(t, "INVALID_STUDENT", reasonOf(t, err))

	store.courses[courseA].Active = false
	_, err = svc.Enroll(ctx, EnrollStudentRequest{StudentID: student, CourseID: courseA})
	assert.Equal(t, "INVALID_COURSE", reasonOf(t, err))

	_, err = svc.Enroll(ctx, EnrollStudentRequest{StudentID: "not-a-uuid", CourseID: courseA})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestEnrollStoreErrors(t *testing.T) {
	student := uuid.NewString()
	svc, store, _ := newEnrollmentFixture(5, student)
	ctx := context.Background()

	store.enrollErr = repository.ErrDuplicate
	_, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: student, CourseID: courseA})
	assert.Equal(t, "ALREADY_ENROLLED", reasonOf(t, err))

	store.enrollErr = repository.ErrTxConflict
	_, err = svc.Enroll(ctx, EnrollStudentRequest{StudentID: student, CourseID: courseA})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestEnrollmentTransitions(t *testing.T) {
	a, b := uuid.NewString(), uuid.NewString()
	svc, _, _ := newEnrollmentFixture(1, a, b)
	ctx := context.Background()

	first, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: a, CourseID: courseA})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, first.ID, UpdateEnrollmentStatusRequest{Status: "ACTIVE"})
	assert.Equal(t, "INVALID_TRANSITION", reasonOf(t, err))

	_, err = svc.UpdateStatus(ctx, first.ID, UpdateEnrollmentStatusRequest{Status: "PAUSED"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Cancel(ctx, first.ID)
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, EnrollStudentRequest{StudentID: b, CourseID: courseA})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, first.ID, UpdateEnrollmentStatusRequest{Status: "ACTIVE"})
	assert.Equal(t, "COURSE_FULL", reasonOf(t, err), "reopening needs a free seat")

	_, err = svc.UpdateStatus(ctx, first.ID, UpdateEnrollmentStatusRequest{Status: "COMPLETED"})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, first.ID, UpdateEnrollmentStatusRequest{Status: "CANCELLED"})
	assert.Equal(t, "TERMINAL_STATE", reasonOf(t, err))

	_, err = svc.Cancel(ctx, uuid.NewString())
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestListByCourseChecksOwnership(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(5)
	ctx := context.Background()

	_, _, err := svc.ListByCourse(ctx, models.Principal{UserID: teacherID, Role: models.RoleTeacher}, courseA, models.EnrollmentFilter{})
	assert.NoError(t, err)

	_, _, err = svc.ListByCourse(ctx, models.Principal{UserID: uuid.NewString(), Role: models.RoleTeacher}, courseA, models.EnrollmentFilter{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
