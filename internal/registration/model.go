package registration

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attendance values
const (
	AttendancePresent   = "present"
	AttendanceAbsent    = "absent"
	AttendanceNotMarked = "not_marked"
)

// Source of a registration
const (
	SourceFree    = "free"
	SourcePayment = "payment"
)

// Registration is one seat held by a user for an event. The composite unique
// index keeps a user to at most one registration per event.
type Registration struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_registration_user_event" json:"userId"`
	EventID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_registration_user_event;index" json:"eventId"`
	Source     string    `gorm:"size:20;not null" json:"source"`
	OrderID    *string   `gorm:"size:100;uniqueIndex" json:"orderId,omitempty"`
	PaymentID  *string   `gorm:"size:100" json:"paymentId,omitempty"`
	AmountPaid int64     `gorm:"not null;default:0" json:"amountPaid"` // minor units
	Attendance string    `gorm:"size:20;not null;default:not_marked" json:"attendance"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *Registration) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Attendance == "" {
		r.Attendance = AttendanceNotMarked
	}
	return nil
}

// Attendee is a registration joined with the user's contact details.
type Attendee struct {
	RegistrationID string    `json:"registrationId"`
	UserID         string    `json:"userId"`
	FullName       string    `json:"fullName"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Source         string    `json:"source"`
	Attendance     string    `json:"attendance"`
	RegisteredAt   time.Time `json:"registeredAt"`
}

// FinalizeInput carries a verified payment into a seat.
type FinalizeInput struct {
	UserID     string
	EventID    string
	OrderID    string
	PaymentID  string
	AmountPaid int64
	IP         string
}

type AttendanceEntry struct {
	UserID string `json:"userId" binding:"required"`
	Status string `json:"status" binding:"required"`
}

type AttendanceRequest struct {
	Entries []AttendanceEntry `json:"entries" binding:"required,dive"`
}
