package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sharath018/campus-events-backend/middleware"
)

func newRouter(svc Service, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Next()
	})
	r.GET("/notifications", h.List)
	r.PATCH("/notifications/read-all", h.MarkAllRead)
	r.PATCH("/notifications/:id/read", h.MarkRead)
	r.POST("/notifications/devices", h.RegisterDevice)
	r.DELETE("/notifications/devices", h.RemoveDevice)
	r.GET("/notifications/stream", h.Stream)
	return r
}

func TestNotificationHandlers(t *testing.T) {
	repo := newMemRepo()
	_ = repo.CreateInApp(context.Background(), &InAppNotification{UserID: "u-1", Title: "Registration confirmed"})
	_ = repo.CreateInApp(context.Background(), &InAppNotification{UserID: "u-2", Title: "someone else"})
	r := newRouter(NewService(repo, nil, nil, zap.NewNop()), "u-1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Success bool                `json:"success"`
		Data    []InAppNotification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.True(t, list.Success)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Registration confirmed", list.Data[0].Title)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"mark read", http.MethodPatch, "/notifications/1/read", "", http.StatusOK},
		{"mark other user's", http.MethodPatch, "/notifications/2/read", "", http.StatusNotFound},
		{"bad id", http.MethodPatch, "/notifications/abc/read", "", http.StatusBadRequest},
		{"register device", http.MethodPost, "/notifications/devices", `{"device_token":"tok-a","device_type":"android"}`, http.StatusOK},
		{"bad device type", http.MethodPost, "/notifications/devices", `{"device_token":"tok-a","device_type":"fridge"}`, http.StatusBadRequest},
		{"remove device", http.MethodDelete, "/notifications/devices", `{"device_token":"tok-a"}`, http.StatusOK},
		{"stream unavailable", http.MethodGet, "/notifications/stream", "", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	assert.True(t, repo.inApp[0].IsRead)
	assert.Empty(t, repo.tokens["u-1"])
}

func TestMarkAllReadHandler(t *testing.T) {
	repo := newMemRepo()
	_ = repo.CreateInApp(context.Background(), &InAppNotification{UserID: "u-1", Title: "one"})
	_ = repo.CreateInApp(context.Background(), &InAppNotification{UserID: "u-1", Title: "two"})
	_ = repo.CreateInApp(context.Background(), &InAppNotification{UserID: "u-2", Title: "other"})
	r := newRouter(NewService(repo, nil, nil, zap.NewNop()), "u-1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/notifications/read-all", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Updated int64 `json:"updated"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.EqualValues(t, 2, body.Data.Updated)
	assert.True(t, repo.inApp[0].IsRead)
	assert.True(t, repo.inApp[1].IsRead)
	assert.False(t, repo.inApp[2].IsRead)
}
