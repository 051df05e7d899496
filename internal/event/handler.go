package event

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/campus-events-backend/middleware"
	"github.com/sharath018/campus-events-backend/pkg/response"
)

type Handler struct {
	service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{service: s}
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrInvalidDate), errors.Is(err, ErrInvalidFee),
		errors.Is(err, ErrInvalidStrength), errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrBelowRegistered):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrHasRegistrations), errors.Is(err, ErrNotPending):
		response.Conflict(c, err.Error())
	default:
		response.Internal(c, "something went wrong")
	}
}

// ===========================
// GET /events
func (h *Handler) ListEvents(c *gin.Context) {
	events, err := h.service.ListApproved(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch events"})
		return
	}
	c.JSON(http.StatusOK, EventList{Events: ToResponses(events)})
}

// ===========================
// GET /events/:id
func (h *Handler) GetEvent(c *gin.Context) {
	e, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, ToResponse(*e))
}

// ===========================
// GET /events/pending
func (h *Handler) ListPending(c *gin.Context) {
	events, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, EventList{Events: ToResponses(events)})
}

// ===========================
// GET /events/mine
func (h *Handler) ListMine(c *gin.Context) {
	events, err := h.service.ListMine(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, EventList{Events: ToResponses(events)})
}

// ===========================
// POST /events
func (h *Handler) CreateEvent(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "unauthenticated")
		return
	}

	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	e, err := h.service.Create(c.Request.Context(), user, req, middleware.GetIPFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, ToResponse(*e))
}

// ===========================
// PUT /events/:id
func (h *Handler) UpdateEvent(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "unauthenticated")
		return
	}

	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	e, err := h.service.Update(c.Request.Context(), user, c.Param("id"), req, middleware.GetIPFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, ToResponse(*e))
}

// ===========================
// PATCH /events/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "unauthenticated")
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.service.SetStatus(c.Request.Context(), user, c.Param("id"), req.Status, middleware.GetIPFromContext(c)); err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"id": c.Param("id"), "status": req.Status})
}

// ===========================
// DELETE /events/:id
func (h *Handler) DeleteEvent(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "unauthenticated")
		return
	}

	if err := h.service.Delete(c.Request.Context(), user, c.Param("id"), middleware.GetIPFromContext(c)); err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"id": c.Param("id"), "deleted": true})
}

// ===========================
// DELETE /events/:id/reject
func (h *Handler) RejectEvent(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "unauthenticated")
		return
	}

	if err := h.service.Reject(c.Request.Context(), user, c.Param("id"), middleware.GetIPFromContext(c)); err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"id": c.Param("id"), "status": StatusRejected})
}
