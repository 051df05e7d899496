package registration

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/campus-events-backend/internal/event"
	"github.com/sharath018/campus-events-backend/middleware"
	"github.com/sharath018/campus-events-backend/pkg/response"
)

// Failure codes understood by the portal client.
const (
	CodeEventFull         = "EVENT_FULL"
	CodeAlreadyRegistered = "ALREADY_REGISTERED"
	CodePaymentRequired   = "PAYMENT_REQUIRED"
	CodeInFlight          = "REGISTRATION_IN_PROGRESS"
	CodeEventClosed       = "REGISTRATION_CLOSED"
	CodeNotFound          = "NOT_FOUND"
)

type Handler struct {
	service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{service: s}
}

// WriteFailure maps registration errors onto {status:"Failure"} bodies.
func WriteFailure(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEventFull):
		response.Failure(c, http.StatusConflict, CodeEventFull, "event is full")
	case errors.Is(err, ErrAlreadyRegistered):
		response.Failure(c, http.StatusConflict, CodeAlreadyRegistered, err.Error())
	case errors.Is(err, ErrInFlight):
		response.Failure(c, http.StatusConflict, CodeInFlight, err.Error())
	case errors.Is(err, ErrEventNotFound):
		response.Failure(c, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, ErrPaymentRequired):
		response.Failure(c, http.StatusBadRequest, CodePaymentRequired, err.Error())
	case errors.Is(err, ErrEventClosed):
		response.Failure(c, http.StatusBadRequest, CodeEventClosed, err.Error())
	case errors.Is(err, ErrForbidden):
		response.Failure(c, http.StatusForbidden, "", err.Error())
	case errors.Is(err, ErrInvalidAttendance):
		response.Failure(c, http.StatusBadRequest, "", err.Error())
	case errors.Is(err, ErrNotRegistered):
		response.Failure(c, http.StatusNotFound, CodeNotFound, err.Error())
	default:
		response.Failure(c, http.StatusInternalServerError, "", "something went wrong")
	}
}

// ===========================
// POST /events/:id/register-free
func (h *Handler) RegisterFree(c *gin.Context) {
	userID := middleware.UserID(c)
	created, err := h.service.RegisterFree(c.Request.Context(), userID, c.Param("id"), middleware.GetIPFromContext(c))
	if err != nil {
		WriteFailure(c, err)
		return
	}
	if !created {
		response.Done(c, response.StatusAlreadyRegistered, "already registered")
		return
	}
	response.Done(c, response.StatusSuccess, "registered successfully")
}

// ===========================
// GET /users/:userId/registrations
func (h *Handler) ListRegistered(c *gin.Context) {
	events, err := h.service.ListRegistered(c.Request.Context(), c.Param("userId"))
	if err != nil {
		WriteFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, event.EventList{Events: event.ToResponses(events)})
}

// ===========================
// GET /users/:userId/attended
func (h *Handler) ListAttended(c *gin.Context) {
	events, err := h.service.ListAttended(c.Request.Context(), c.Param("userId"))
	if err != nil {
		WriteFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, event.EventList{Events: event.ToResponses(events)})
}

// ===========================
// GET /events/:id/registrations
func (h *Handler) ListByEvent(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "unauthenticated")
		return
	}
	attendees, err := h.service.ListByEvent(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		WriteFailure(c, err)
		return
	}
	response.OK(c, attendees)
}

// ===========================
// POST /events/:id/attendance
func (h *Handler) MarkAttendance(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "unauthenticated")
		return
	}

	var req AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Failure(c, http.StatusBadRequest, "", err.Error())
		return
	}

	err := h.service.MarkAttendance(c.Request.Context(), user, c.Param("id"), req.Entries, middleware.GetIPFromContext(c))
	if err != nil {
		WriteFailure(c, err)
		return
	}
	response.Done(c, response.StatusSuccess, "attendance updated")
}
