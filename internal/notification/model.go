package notification

import (
	"time"

	"gorm.io/datatypes"
)

// Categories
const (
	CategoryRegistration = "registration"
	CategorySystem       = "system"
)

// InAppNotification - per-user bell notifications
type InAppNotification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Title     string         `gorm:"size:150;not null" json:"title"`
	Message   string         `gorm:"type:text;not null" json:"message"`
	Category  string         `gorm:"size:30;not null" json:"category"`
	Data      datatypes.JSON `gorm:"type:jsonb" json:"data,omitempty"`
	IsRead    bool           `gorm:"default:false" json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DeviceToken stores an FCM registration token for a user device.
type DeviceToken struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"type:uuid;not null;index" json:"user_id"`
	DeviceToken string    `gorm:"size:255;not null;uniqueIndex" json:"device_token"`
	DeviceType  string    `gorm:"size:20" json:"device_type"` // android, ios, web
	DeviceName  string    `gorm:"size:100" json:"device_name"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	LastUsedAt  time.Time `json:"last_used_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type DeviceRequest struct {
	DeviceToken string `json:"device_token" binding:"required"`
	DeviceType  string `json:"device_type" binding:"omitempty,oneof=android ios web"`
	DeviceName  string `json:"device_name"`
}
