package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/middleware"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/pkg/response"
)

type dashboardService interface {
	Admin(ctx context.Context) (*dto.AdminDashboardResponse, bool, error)
	Teacher(ctx context.Context, principal models.Principal, requestedID string) (*dto.TeacherDashboardResponse, bool, error)
	Student(ctx context.Context, principal models.Principal, requestedID string) (*dto.StudentDashboardResponse, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Admin godoc
// @Summary Admin dashboard summary
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/admin [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	summary, cacheHit, err := h.service.Admin(c.Request.Context())
	h.respond(c, summary, cacheHit, err)
}

// Teacher godoc
// @Summary Teacher dashboard
// @Description Admins pass userId to inspect a given teacher.
// @Tags Dashboard
// @Produce json
// @Param userId query string false "Teacher ID (admin only)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /dashboard/teacher [get]
func (h *DashboardHandler) Teacher(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	summary, cacheHit, err := h.service.Teacher(c.Request.Context(), p, strings.TrimSpace(c.Query("userId")))
	h.respond(c, summary, cacheHit, err)
}

// Student godoc
// @Summary Student dashboard
// @Description Admins pass userId to inspect a given student.
// @Tags Dashboard
// @Produce json
// @Param userId query string false "Student ID (admin only)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /dashboard/student [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	summary, cacheHit, err := h.service.Student(c.Request.Context(), p, strings.TrimSpace(c.Query("userId")))
	h.respond(c, summary, cacheHit, err)
}

func (h *DashboardHandler) respond(c *gin.Context, data interface{}, cacheHit bool, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	respondWithMeta(c, http.StatusOK, data, nil)
}
