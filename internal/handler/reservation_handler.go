package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/service"
	"github.com/noah-isme/academy-api/pkg/response"
)

type reservationService interface {
	Reserve(ctx context.Context, principal models.Principal, req service.ReservationRequest) (*models.Reservation, error)
	Cancel(ctx context.Context, principal models.Principal, id string) (*models.Reservation, error)
	List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, *models.Pagination, error)
	Mine(ctx context.Context, principal models.Principal, filter models.ReservationFilter) ([]models.Reservation, *models.Pagination, error)
	ForTeacher(ctx context.Context, principal models.Principal, filter models.ReservationFilter) ([]models.Reservation, *models.Pagination, error)
	ForCourse(ctx context.Context, principal models.Principal, courseID string, filter models.ReservationFilter) ([]models.Reservation, *models.Pagination, error)
	Options(ctx context.Context, principal models.Principal) ([]models.ReservationOption, error)
}

// ReservationHandler exposes reinforcement class bookings.
type ReservationHandler struct {
	service reservationService
}

// NewReservationHandler constructs the handler.
func NewReservationHandler(svc reservationService) *ReservationHandler {
	return &ReservationHandler{service: svc}
}

func reservationFilter(c *gin.Context) (models.ReservationFilter, error) {
	filter := models.ReservationFilter{
		StudentID:        c.Query("student_id"),
		CourseID:         c.Query("course_id"),
		TeacherID:        c.Query("teacher_id"),
		IncludeCancelled: c.Query("include_cancelled") == "true",
		SortOrder:        c.Query("sort_order"),
	}
	filter.Page, filter.PageSize = pageParams(c)
	var err error
	if filter.From, err = dateQuery(c, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = dateQuery(c, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}

// Reserve godoc
// @Summary Book a reinforcement class
// @Tags Reservations
// @Accept json
// @Produce json
// @Param payload body service.ReservationRequest true "Reservation payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reservations [post]
func (h *ReservationHandler) Reserve(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.ReservationRequest
	if !bindJSON(c, &req, "invalid reservation payload") {
		return
	}
	reservation, err := h.service.Reserve(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reservation)
}

// Cancel godoc
// @Summary Cancel a reservation
// @Tags Reservations
// @Produce json
// @Param id path string true "Reservation ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reservations/{id}/cancel [patch]
func (h *ReservationHandler) Cancel(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	reservation, err := h.service.Cancel(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reservation, nil)
}

// List godoc
// @Summary List all reservations
// @Tags Reservations
// @Produce json
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reservations [get]
func (h *ReservationHandler) List(c *gin.Context) {
	filter, err := reservationFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Mine godoc
// @Summary List the caller's reservations
// @Tags Reservations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reservations/mine [get]
func (h *ReservationHandler) Mine(c *gin.Context) {
	h.scoped(c, h.service.Mine)
}

// Teacher godoc
// @Summary List reservations across the caller's courses
// @Tags Reservations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reservations/teacher [get]
func (h *ReservationHandler) Teacher(c *gin.Context) {
	h.scoped(c, h.service.ForTeacher)
}

func (h *ReservationHandler) scoped(c *gin.Context, list func(context.Context, models.Principal, models.ReservationFilter) ([]models.Reservation, *models.Pagination, error)) {
	p, ok := principal(c)
	if !ok {
		return
	}
	filter, err := reservationFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := list(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ByCourse godoc
// @Summary List reservations of a course
// @Tags Reservations
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /reservations/teacher/courses/{courseId} [get]
func (h *ReservationHandler) ByCourse(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	filter, err := reservationFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.service.ForCourse(c.Request.Context(), p, c.Param("courseId"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Options godoc
// @Summary List bookable courses and their slots
// @Tags Reservations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reservations/options [get]
func (h *ReservationHandler) Options(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	options, err := h.service.Options(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, options, nil)
}
