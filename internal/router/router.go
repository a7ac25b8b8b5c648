// Package router binds handlers to the HTTP surface.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/handler"
	"github.com/noah-isme/academy-api/internal/middleware"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/academy-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academy-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler the API serves.
type Handlers struct {
	Auth          *handler.AuthHandler
	Users         *handler.UserHandler
	Courses       *handler.CourseHandler
	Schedules     *handler.ScheduleHandler
	Enrollments   *handler.EnrollmentHandler
	Reservations  *handler.ReservationHandler
	Attendance    *handler.AttendanceHandler
	Payments      *handler.PaymentHandler
	Notifications *handler.NotificationHandler
	Dashboard     *handler.DashboardHandler
	Exports       *handler.ExportHandler
	Metrics       *handler.MetricsHandler
}

// Options configures cross-cutting middleware.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableSwagger  bool
	EnableMetrics  bool
	Tokens         middleware.TokenValidator
	Audit          middleware.AuditWriter
	Observer       middleware.RequestObserver
	Logger         *zap.Logger
}

// New builds the gin engine with every route registered.
func New(h Handlers, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	if opts.Observer != nil {
		r.Use(middleware.Metrics(opts.Observer))
	}

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	if opts.EnableMetrics {
		r.GET("/metrics", h.Metrics.Prometheus)
	}
	if opts.EnableSwagger {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	auth := middleware.JWT(opts.Tokens)
	admin := middleware.RequireRoles(models.RoleAdmin)
	teacher := middleware.RequireRoles(models.RoleTeacher)
	student := middleware.RequireRoles(models.RoleStudent)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(opts.Audit, opts.Logger, action, resource)
	}

	api.GET("/exports/:token", h.Exports.Download)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/refresh", h.Auth.Refresh)
	authGroup.POST("/logout", auth, h.Auth.Logout)
	authGroup.GET("/me", auth, h.Auth.Me)
	authGroup.PUT("/password", auth, h.Auth.ChangePassword)

	users := api.Group("/users", auth, admin)
	users.GET("", h.Users.List)
	users.GET("/stats", h.Users.Stats)
	users.GET("/:id", h.Users.Get)
	users.POST("", h.Users.Create)
	users.PUT("/:id", h.Users.Update)
	users.PATCH("/:id/status", h.Users.SetStatus)
	users.PATCH("/:id/password", h.Users.ResetPassword)
	users.DELETE("/:id", h.Users.Delete)

	courses := api.Group("/courses", auth)
	courses.GET("", h.Courses.List)
	courses.GET("/subjects", h.Courses.Subjects)
	courses.GET("/teachers", admin, h.Courses.Teachers)
	courses.GET("/mine", teacher, h.Courses.Mine)
	courses.GET("/enrolled", student, h.Courses.Mine)
	courses.GET("/:id", h.Courses.Get)
	courses.POST("", admin, audit(models.AuditActionCourseWrite, "course"), h.Courses.Create)
	courses.PUT("/:id", admin, audit(models.AuditActionCourseWrite, "course"), h.Courses.Update)
	courses.PATCH("/:id/status", admin, audit(models.AuditActionCourseWrite, "course"), h.Courses.SetStatus)

	schedules := api.Group("/schedules", auth)
	schedules.GET("", h.Schedules.List)
	schedules.GET("/:id", h.Schedules.Get)
	schedules.POST("", admin, audit(models.AuditActionScheduleWrite, "schedule"), h.Schedules.Create)
	schedules.PUT("/:id", admin, audit(models.AuditActionScheduleWrite, "schedule"), h.Schedules.Update)
	schedules.PATCH("/:id/status", admin, audit(models.AuditActionScheduleWrite, "schedule"), h.Schedules.SetStatus)
	schedules.DELETE("/:id", admin, audit(models.AuditActionScheduleWrite, "schedule"), h.Schedules.Delete)

	enrollments := api.Group("/enrollments", auth)
	enrollments.POST("", admin, audit(models.AuditActionEnrollmentWrite, "enrollment"), h.Enrollments.Enroll)
	enrollments.GET("", admin, h.Enrollments.List)
	enrollments.GET("/course/:courseId", staff, h.Enrollments.ByCourse)
	enrollments.GET("/available/:courseId", admin, h.Enrollments.Available)
	enrollments.PATCH("/:id/status", admin, audit(models.AuditActionEnrollmentWrite, "enrollment"), h.Enrollments.UpdateStatus)
	enrollments.DELETE("/:id", admin, audit(models.AuditActionEnrollmentWrite, "enrollment"), h.Enrollments.Cancel)

	reservations := api.Group("/reservations", auth)
	reservations.POST("", student, h.Reservations.Reserve)
	reservations.GET("/mine", student, h.Reservations.Mine)
	reservations.GET("/options", student, h.Reservations.Options)
	reservations.PATCH("/:id/cancel", student, h.Reservations.Cancel)
	reservations.GET("/teacher", teacher, h.Reservations.Teacher)
	reservations.GET("/teacher/courses/:courseId", staff, h.Reservations.ByCourse)
	reservations.GET("", admin, h.Reservations.List)

	attendance := api.Group("/attendance", auth)
	attendance.POST("", staff, h.Attendance.Register)
	attendance.GET("/course/:courseId/date/:date", staff, h.Attendance.ByCourseDate)
	attendance.GET("/students/:studentId", h.Attendance.StudentHistory)
	attendance.GET("/students/:studentId/stats", h.Attendance.StudentStats)
	attendance.GET("/students/:studentId/export", staff, h.Attendance.ExportStudent)
	attendance.GET("/me/history", student, h.Attendance.MyHistory)
	attendance.GET("/me/stats", student, h.Attendance.MyStats)
	attendance.GET("/stats", staff, h.Attendance.Stats)
	attendance.GET("/report", staff, h.Attendance.Report)
	attendance.GET("/report/export", staff, h.Attendance.Export)

	payments := api.Group("/payments", auth)
	payments.POST("", admin, h.Payments.Create)
	payments.GET("", admin, h.Payments.List)
	payments.GET("/mine", student, h.Payments.Mine)
	payments.GET("/:id", h.Payments.Get)
	payments.GET("/:id/receipt", h.Payments.Receipt)
	payments.PATCH("/:id", admin, h.Payments.Update)
	payments.DELETE("/:id", admin, h.Payments.Delete)

	notifications := api.Group("/notifications", auth)
	notifications.GET("", h.Notifications.List)
	notifications.PATCH("/read-all", h.Notifications.MarkAllRead)
	notifications.PATCH("/:id/read", h.Notifications.MarkRead)

	dashboard := api.Group("/dashboard", auth)
	dashboard.GET("/admin", admin, h.Dashboard.Admin)
	dashboard.GET("/teacher", staff, h.Dashboard.Teacher)
	dashboard.GET("/student", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent), h.Dashboard.Student)

	return r
}
