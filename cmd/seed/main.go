// Command seed fills an empty database with a deterministic academy: users,
// courses with timetables, enrollments, attendance history, payments and
// upcoming reinforcement reservations. It goes through the services so every
// admission rule applies to the generated data.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/repository"
	"github.com/noah-isme/academy-api/internal/scheduling"
	"github.com/noah-isme/academy-api/internal/service"
	"github.com/noah-isme/academy-api/pkg/config"
	"github.com/noah-isme/academy-api/pkg/database"
	"github.com/noah-isme/academy-api/pkg/events"
	"github.com/noah-isme/academy-api/pkg/logger"
	"github.com/noah-isme/academy-api/pkg/mailer"
	"github.com/noah-isme/academy-api/pkg/storage"
)

const (
	seedPassword = "Academy2024!"
	dateLayout   = "2006-01-02"
)

type seedConfig struct {
	Admins            int
	Teachers          int
	Students          int
	AttendanceMonths  int
	ReservationDays   int
	CoursesPerStudent int
	AttendanceRate    float64
	PaymentRate       float64
	Seed              int64
	Force             bool
}

var subjects = []struct {
	subject string
	name    string
	price   float64
}{
	{"Mathematics", "Algebra Fundamentals", 180},
	{"Mathematics", "Geometry and Trigonometry", 180},
	{"Physics", "Mechanics Workshop", 200},
	{"Chemistry", "General Chemistry", 190},
	{"Language", "Reading Comprehension", 150},
	{"Biology", "Cell Biology Review", 170},
}

var firstNames = []string{"Ana", "Luis", "Maria", "Jorge", "Lucia", "Diego", "Carmen", "Pedro", "Sofia", "Raul", "Elena", "Mateo"}
var lastNames = []string{"Paz", "Rojas", "Quispe", "Flores", "Vargas", "Mendoza", "Castro", "Torres", "Salazar", "Ramos"}

func parseFlags(args []string) (seedConfig, error) {
	cfg := seedConfig{}
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.IntVar(&cfg.Admins, "admins", 1, "number of administrators")
	fs.IntVar(&cfg.Teachers, "teachers", 4, "number of teachers")
	fs.IntVar(&cfg.Students, "students", 30, "number of students")
	fs.IntVar(&cfg.AttendanceMonths, "attendance-months", 3, "months of attendance history")
	fs.IntVar(&cfg.ReservationDays, "reservation-days", 14, "days ahead to book reinforcement seats")
	fs.IntVar(&cfg.CoursesPerStudent, "courses-per-student", 2, "enrollments per student")
	fs.Float64Var(&cfg.AttendanceRate, "attendance-rate", 0.7, "probability a student attends a class")
	fs.Float64Var(&cfg.PaymentRate, "payment-rate", 0.7, "probability a monthly fee is paid")
	fs.Int64Var(&cfg.Seed, "seed", 42, "random seed")
	fs.BoolVar(&cfg.Force, "force", false, "seed even when courses already exist")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.Admins < 1 || cfg.Teachers < 1 || cfg.Students < 0 {
		return cfg, errors.New("at least one admin and one teacher are required")
	}
	if cfg.AttendanceRate < 0 || cfg.AttendanceRate > 1 || cfg.PaymentRate < 0 || cfg.PaymentRate > 1 {
		return cfg, errors.New("rates must be between 0 and 1")
	}
	return cfg, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		log.Fatal("export storage unavailable", zap.Error(err))
	}

	loc := cfg.Location()
	validate := service.NewValidator()
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(nil, metrics, 0, log, false)
	exports := service.NewExportService(files, storage.NewLinkSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL), cfg.AppName, service.ExportConfig{APIPrefix: cfg.APIPrefix}, log)

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), userRepo, mailer.NopMailer{}, events.NopPublisher{}, log)

	s := &seeder{
		opts:         opts,
		rng:          rand.New(rand.NewSource(opts.Seed)),
		loc:          loc,
		now:          time.Now().In(loc),
		log:          log,
		users:        service.NewUserService(userRepo, validate, log),
		courses:      service.NewCourseService(courseRepo, userRepo, cacheSvc, validate, log),
		schedules:    service.NewScheduleService(scheduleRepo, cacheSvc, metrics, validate, log),
		enrollments:  service.NewEnrollmentService(enrollmentRepo, courseRepo, notifications, cacheSvc, metrics, validate, log),
		reservations: service.NewReservationService(repository.NewReservationRepository(db), courseRepo, scheduleRepo, notifications, cacheSvc, metrics, loc, validate, log),
		attendance:   service.NewAttendanceService(repository.NewAttendanceRepository(db), courseRepo, enrollmentRepo, userRepo, exports, cacheSvc, loc, validate, log),
		payments:     service.NewPaymentService(repository.NewPaymentRepository(db), userRepo, userRepo, exports, notifications, cacheSvc, loc, validate, log),
	}
	if err := s.run(ctx); err != nil {
		log.Fatal("seed failed", zap.Error(err))
	}
}

type seeder struct {
	opts seedConfig
	rng  *rand.Rand
	loc  *time.Location
	now  time.Time
	log  *zap.Logger

	users        *service.UserService
	courses      *service.CourseService
	schedules    *service.ScheduleService
	enrollments  *service.EnrollmentService
	reservations *service.ReservationService
	attendance   *service.AttendanceService
	payments     *service.PaymentService

	stats map[string]int
}

type seededCourse struct {
	course   *models.Course
	regular  []scheduling.Weekday
	students []string
}

func (s *seeder) run(ctx context.Context) error {
	s.stats = map[string]int{}
	system := models.Principal{UserID: "seed", Role: models.RoleAdmin}

	_, page, err := s.courses.List(ctx, system, models.CourseFilter{Page: 1, PageSize: 1}, false)
	if err != nil {
		return fmt.Errorf("check existing data: %w", err)
	}
	if page.TotalCount > 0 && !s.opts.Force {
		s.log.Info("database already contains courses, skipping seed", zap.Int("courses", page.TotalCount))
		return nil
	}

	admins, err := s.createUsers(ctx, models.RoleAdmin, s.opts.Admins, "")
	if err != nil {
		return err
	}
	admin := models.Principal{UserID: admins[0].ID, Role: models.RoleAdmin, Email: admins[0].Email}

	teachers, err := s.createUsers(ctx, models.RoleTeacher, s.opts.Teachers, admin.UserID)
	if err != nil {
		return err
	}
	students, err := s.createUsers(ctx, models.RoleStudent, s.opts.Students, admin.UserID)
	if err != nil {
		return err
	}

	courses, err := s.createCourses(ctx, teachers)
	if err != nil {
		return err
	}
	s.enroll(ctx, students, courses)

	for _, c := range courses {
		s.recordAttendance(ctx, admin, c)
	}
	s.bill(ctx, admin, courses)
	s.reserve(ctx, courses)

	if n, err := s.payments.MarkOverdue(ctx); err == nil {
		s.stats["overdue"] = int(n)
	}

	s.log.Info("seed completed",
		zap.Int64("seed", s.opts.Seed),
		zap.Int("users", s.stats["users"]),
		zap.Int("courses", s.stats["courses"]),
		zap.Int("schedules", s.stats["schedules"]),
		zap.Int("enrollments", s.stats["enrollments"]),
		zap.Int("attendance", s.stats["attendance"]),
		zap.Int("payments", s.stats["payments"]),
		zap.Int("overdue", s.stats["overdue"]),
		zap.Int("reservations", s.stats["reservations"]),
		zap.String("password", seedPassword),
	)
	return nil
}

func (s *seeder) createUsers(ctx context.Context, role models.UserRole, count int, actorID string) ([]models.User, error) {
	out := make([]models.User, 0, count)
	for i := 1; i <= count; i++ {
		req := service.CreateUserRequest{
			Email:     fmt.Sprintf("%s%d@academy.test", roleSlug(role), i),
			Password:  seedPassword,
			FirstName: firstNames[s.rng.Intn(len(firstNames))],
			LastName:  lastNames[s.rng.Intn(len(lastNames))],
			Role:      role,
		}
		if role == models.RoleStudent {
			dni := fmt.Sprintf("%08d", 40000000+i*137+s.rng.Intn(100))
			req.DNI = &dni
		}
		user, err := s.users.Create(ctx, req, actorID, models.RequestMeta{UserAgent: "seed"})
		if err != nil {
			return nil, fmt.Errorf("create %s %s: %w", role, req.Email, err)
		}
		out = append(out, *user)
		s.stats["users"]++
	}
	return out, nil
}

func roleSlug(role models.UserRole) string {
	switch role {
	case models.RoleAdmin:
		return "admin"
	case models.RoleTeacher:
		return "teacher"
	default:
		return "student"
	}
}

func (s *seeder) createCourses(ctx context.Context, teachers []models.User) ([]*seededCourse, error) {
	var out []*seededCourse
	for i, spec := range subjects {
		teacher := teachers[i%len(teachers)]
		course, err := s.courses.Create(ctx, service.CourseRequest{
			Name:         spec.name,
			Subject:      spec.subject,
			TeacherID:    teacher.ID,
			Capacity:     15 + s.rng.Intn(6),
			MonthlyPrice: spec.price,
		})
		if err != nil {
			return nil, fmt.Errorf("create course %s: %w", spec.name, err)
		}
		s.stats["courses"]++

		seeded := &seededCourse{course: course}
		first := scheduling.Weekdays[i%5]
		second := scheduling.Weekdays[(i+2)%5]
		start := 15 + i%3
		for _, day := range []scheduling.Weekday{first, second} {
			if err := s.addSchedule(ctx, course.ID, day, start, models.ClassTypeRegular); err != nil {
				return nil, err
			}
			seeded.regular = append(seeded.regular, day)
		}
		if err := s.addSchedule(ctx, course.ID, scheduling.Saturday, 9+i%4, models.ClassTypeReinforcement); err != nil {
			return nil, err
		}
		out = append(out, seeded)
	}
	return out, nil
}

func (s *seeder) addSchedule(ctx context.Context, courseID string, day scheduling.Weekday, hour int, classType models.ClassType) error {
	room := fmt.Sprintf("Room %d", 101+s.rng.Intn(6))
	_, err := s.schedules.Create(ctx, service.ScheduleRequest{
		CourseID:  courseID,
		Weekday:   string(day),
		StartTime: fmt.Sprintf("%02d:00", hour),
		EndTime:   fmt.Sprintf("%02d:30", hour+1),
		Classroom: &room,
		ClassType: classType,
	})
	if err != nil {
		return fmt.Errorf("create schedule %s %s: %w", courseID, day, err)
	}
	s.stats["schedules"]++
	return nil
}

func (s *seeder) enroll(ctx context.Context, students []models.User, courses []*seededCourse) {
	for _, student := range students {
		for _, idx := range s.rng.Perm(len(courses))[:min(s.opts.CoursesPerStudent, len(courses))] {
			c := courses[idx]
			_, err := s.enrollments.Enroll(ctx, service.EnrollStudentRequest{StudentID: student.ID, CourseID: c.course.ID})
			if err != nil {
				// Full courses are expected with small capacities.
				s.log.Debug("enrollment skipped", zap.String("student", student.Email), zap.String("course", c.course.Name), zap.Error(err))
				continue
			}
			c.students = append(c.students, student.ID)
			s.stats["enrollments"]++
		}
	}
}

func (s *seeder) recordAttendance(ctx context.Context, admin models.Principal, c *seededCourse) {
	if len(c.students) == 0 {
		return
	}
	today := scheduling.CivilDay(s.now, s.loc)
	for day := today.AddDate(0, -s.opts.AttendanceMonths, 0); day.Before(today); day = day.AddDate(0, 0, 1) {
		if !containsWeekday(c.regular, scheduling.WeekdayOf(day)) {
			continue
		}
		records := make([]models.AttendanceMark, 0, len(c.students))
		for _, id := range c.students {
			records = append(records, models.AttendanceMark{StudentID: id, Present: s.rng.Float64() < s.opts.AttendanceRate})
		}
		saved, err := s.attendance.RegisterBatch(ctx, admin, service.RegisterAttendanceRequest{
			CourseID:  c.course.ID,
			ClassDate: day.Format(dateLayout),
			Records:   records,
		}, models.RequestMeta{UserAgent: "seed"})
		if err != nil {
			s.log.Warn("attendance skipped", zap.String("course", c.course.Name), zap.Time("date", day), zap.Error(err))
			continue
		}
		s.stats["attendance"] += len(saved)
	}
}

// bill issues one monthly fee per enrollment for every month of history,
// the current month included.
func (s *seeder) bill(ctx context.Context, admin models.Principal, courses []*seededCourse) {
	start := time.Date(s.now.Year(), s.now.Month(), 1, 0, 0, 0, 0, s.loc).AddDate(0, -s.opts.AttendanceMonths, 0)
	for _, c := range courses {
		for _, studentID := range c.students {
			for month := start; !month.After(s.now); month = month.AddDate(0, 1, 0) {
				due := month.AddDate(0, 0, 4).Format(dateLayout)
				req := service.CreatePaymentRequest{
					StudentID: studentID,
					Amount:    c.course.MonthlyPrice,
					Concept:   fmt.Sprintf("%s - %s", c.course.Name, month.Format("January 2006")),
					DueDate:   &due,
					Status:    string(models.PaymentPending),
				}
				if s.rng.Float64() < s.opts.PaymentRate {
					paid := month.AddDate(0, 0, s.rng.Intn(4)).Format(dateLayout)
					method := []string{"CASH", "TRANSFER", "CARD"}[s.rng.Intn(3)]
					req.Status = string(models.PaymentPaid)
					req.PaymentDate = &paid
					req.PaymentMethod = &method
				}
				if _, err := s.payments.Create(ctx, admin, req, models.RequestMeta{UserAgent: "seed"}); err != nil {
					s.log.Warn("payment skipped", zap.String("student", studentID), zap.Error(err))
					continue
				}
				s.stats["payments"]++
			}
		}
	}
}

func (s *seeder) reserve(ctx context.Context, courses []*seededCourse) {
	tomorrow := scheduling.Tomorrow(s.now)
	for _, c := range courses {
		for day := tomorrow; day.Before(tomorrow.AddDate(0, 0, s.opts.ReservationDays)); day = day.AddDate(0, 0, 1) {
			if scheduling.WeekdayOf(day) != scheduling.Saturday {
				continue
			}
			for _, studentID := range c.students {
				if s.rng.Float64() >= 0.5 {
					continue
				}
				student := models.Principal{UserID: studentID, Role: models.RoleStudent}
				_, err := s.reservations.Reserve(ctx, student, service.ReservationRequest{CourseID: c.course.ID, ClassDate: day.Format(dateLayout)})
				if err != nil {
					s.log.Debug("reservation skipped", zap.String("student", studentID), zap.Error(err))
					continue
				}
				s.stats["reservations"]++
			}
		}
	}
}

func containsWeekday(days []scheduling.Weekday, day scheduling.Weekday) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
