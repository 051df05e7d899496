package notification

import (
	"errors"
	"net/http"
	"strconv"

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

// GET /notifications?limit=20
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	items, err := h.service.ListInApp(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		response.Internal(c, "failed to fetch notifications")
		return
	}
	response.OK(c, items)
}

// PATCH /notifications/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}

	err = h.service.MarkInAppAsRead(c.Request.Context(), uint(id), middleware.UserID(c))
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case err != nil:
		response.Internal(c, "failed to mark as read")
	default:
		response.OK(c, gin.H{"message": "marked as read"})
	}
}

// PATCH /notifications/read-all
func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.service.MarkAllInAppAsRead(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Internal(c, "failed to mark notifications as read")
		return
	}
	response.OK(c, gin.H{"updated": n})
}

// POST /notifications/devices
func (h *Handler) RegisterDevice(c *gin.Context) {
	var req DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.service.RegisterDeviceToken(c.Request.Context(), middleware.UserID(c), req); err != nil {
		response.Internal(c, "failed to register device token")
		return
	}
	response.OK(c, gin.H{"message": "device token registered successfully"})
}

// DELETE /notifications/devices
func (h *Handler) RemoveDevice(c *gin.Context) {
	var req struct {
		DeviceToken string `json:"device_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.service.RemoveDeviceToken(c.Request.Context(), middleware.UserID(c), req.DeviceToken); err != nil {
		response.Internal(c, "failed to unregister device token")
		return
	}
	response.OK(c, gin.H{"message": "device token removed successfully"})
}

// GET /notifications/stream (SSE)
func (h *Handler) Stream(c *gin.Context) {
	ch, closeFn, err := h.service.Subscribe(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, response.Body{Success: false, Error: ErrStreamUnavailable.Error()})
		return
	}
	defer closeFn()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	_, _ = c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	for {
		select {
		case payload, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent("inapp", payload)
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}
