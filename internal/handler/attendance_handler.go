package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-api/internal/middleware"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/service"
	"github.com/noah-isme/academy-api/pkg/response"
)

type attendanceService interface {
	RegisterBatch(ctx context.Context, principal models.Principal, req service.RegisterAttendanceRequest, meta models.RequestMeta) ([]models.Attendance, error)
	ByCourseDate(ctx context.Context, principal models.Principal, courseID, date string) ([]models.Attendance, error)
	StudentHistory(ctx context.Context, principal models.Principal, studentID string, query service.AttendanceQuery) ([]models.Attendance, error)
	StudentStats(ctx context.Context, principal models.Principal, studentID string, query service.AttendanceQuery) (models.AttendanceStats, error)
	Stats(ctx context.Context, principal models.Principal, query service.AttendanceQuery) (models.AttendanceStats, error)
	Report(ctx context.Context, principal models.Principal, query service.AttendanceQuery) (*models.AttendanceReport, error)
	Export(ctx context.Context, principal models.Principal, query service.AttendanceQuery, format string) (*service.ExportResult, error)
}

// AttendanceHandler exposes attendance registration and reporting.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

func attendanceQuery(c *gin.Context) service.AttendanceQuery {
	return service.AttendanceQuery{
		CourseID:  c.Query("course_id"),
		StudentID: c.Query("student_id"),
		From:      c.Query("from"),
		To:        c.Query("to"),
	}
}

// Register godoc
// @Summary Register attendance for a class
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.RegisterAttendanceRequest true "Attendance marks"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Register(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.RegisterAttendanceRequest
	if !bindJSON(c, &req, "invalid attendance payload") {
		return
	}
	records, err := h.service.RegisterBatch(c.Request.Context(), p, req, middleware.RequestMetaFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, records)
}

// ByCourseDate godoc
// @Summary Attendance of one class
// @Tags Attendance
// @Produce json
// @Param courseId path string true "Course ID"
// @Param date path string true "Class date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/course/{courseId}/date/{date} [get]
func (h *AttendanceHandler) ByCourseDate(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	records, err := h.service.ByCourseDate(c.Request.Context(), p, c.Param("courseId"), c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// StudentHistory godoc
// @Summary Attendance history of a student
// @Tags Attendance
// @Produce json
// @Param studentId path string true "Student ID or DNI"
// @Success 200 {object} response.Envelope
// @Router /attendance/students/{studentId} [get]
func (h *AttendanceHandler) StudentHistory(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	h.history(c, p, c.Param("studentId"))
}

// MyHistory godoc
// @Summary Attendance history of the caller
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/me/history [get]
func (h *AttendanceHandler) MyHistory(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	h.history(c, p, p.UserID)
}

func (h *AttendanceHandler) history(c *gin.Context, p models.Principal, studentID string) {
	records, err := h.service.StudentHistory(c.Request.Context(), p, studentID, attendanceQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// StudentStats godoc
// @Summary Attendance statistics of a student
// @Tags Attendance
// @Produce json
// @Param studentId path string true "Student ID or DNI"
// @Success 200 {object} response.Envelope
// @Router /attendance/students/{studentId}/stats [get]
func (h *AttendanceHandler) StudentStats(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	h.studentStats(c, p, c.Param("studentId"))
}

// MyStats godoc
// @Summary Attendance statistics of the caller
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/me/stats [get]
func (h *AttendanceHandler) MyStats(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	h.studentStats(c, p, p.UserID)
}

func (h *AttendanceHandler) studentStats(c *gin.Context, p models.Principal, studentID string) {
	stats, err := h.service.StudentStats(c.Request.Context(), p, studentID, attendanceQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Stats godoc
// @Summary Attendance statistics
// @Tags Attendance
// @Produce json
// @Param course_id query string false "Course ID"
// @Param from query string false "From date"
// @Param to query string false "To date"
// @Success 200 {object} response.Envelope
// @Router /attendance/stats [get]
func (h *AttendanceHandler) Stats(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), p, attendanceQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Report godoc
// @Summary Attendance report
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/report [get]
func (h *AttendanceHandler) Report(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	report, err := h.service.Report(c.Request.Context(), p, attendanceQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Export godoc
// @Summary Download the attendance report
// @Tags Attendance
// @Produce application/pdf
// @Produce text/csv
// @Param format query string false "pdf or csv"
// @Success 200 {file} file
// @Router /attendance/report/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	h.export(c, p, attendanceQuery(c))
}

// ExportStudent godoc
// @Summary Download a student's attendance report
// @Tags Attendance
// @Produce application/pdf
// @Produce text/csv
// @Param studentId path string true "Student ID or DNI"
// @Param format query string false "pdf or csv"
// @Success 200 {file} file
// @Router /attendance/students/{studentId}/export [get]
func (h *AttendanceHandler) ExportStudent(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	query := attendanceQuery(c)
	query.StudentID = c.Param("studentId")
	h.export(c, p, query)
}

func (h *AttendanceHandler) export(c *gin.Context, p models.Principal, query service.AttendanceQuery) {
	result, err := h.service.Export(c.Request.Context(), p, query, c.DefaultQuery("format", "pdf"))
	if err != nil {
		response.Error(c, err)
		return
	}
	sendExport(c, result)
}

// sendExport streams the rendered file and advertises its signed link.
func sendExport(c *gin.Context, result *service.ExportResult) {
	if result.URL != "" {
		c.Header("X-Download-URL", result.URL)
	}
	response.Binary(c, result.ContentType, result.Filename, result.Data)
}
