package event

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DateLayout is the calendar-date format used on the wire.
const DateLayout = "2006-01-02"

// Review status
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ============================
// GORM Event Model
type Event struct {
	ID                   string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name                 string    `gorm:"type:varchar(255);not null" json:"name"`
	Date                 time.Time `gorm:"type:date;not null;index" json:"date"`
	Venue                string    `gorm:"type:text" json:"venue"`
	ShortDesc            string    `gorm:"type:varchar(500)" json:"shortDesc"`
	About                string    `gorm:"type:text" json:"about"`
	LearningOutcomes     string    `gorm:"type:text" json:"learningOutcomes"`
	Strength             int       `gorm:"not null;check:strength > 0" json:"strength"`
	CurrentRegistrations int       `gorm:"not null;default:0" json:"currentRegistrations"`
	RegistrationFee      int64     `gorm:"not null;default:0;check:registration_fee >= 0" json:"registrationFee"`
	Status               string    `gorm:"size:20;not null;default:pending;index" json:"status"`
	CreatedBy            string    `gorm:"type:uuid;not null;index" json:"createdBy"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// IsFree reports whether the event needs no payment.
func (e Event) IsFree() bool { return e.RegistrationFee <= 0 }

// HasSeat reports whether the stored count is below strength.
func (e Event) HasSeat() bool { return e.CurrentRegistrations < e.Strength }

// ============================
// Wire shape
type EventResponse struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Date                 string `json:"date"`
	Venue                string `json:"venue"`
	ShortDesc            string `json:"shortDesc"`
	About                string `json:"about"`
	LearningOutcomes     string `json:"learningOutcomes"`
	Strength             int    `json:"strength"`
	CurrentRegistrations int    `json:"currentRegistrations"`
	RegistrationFee      int64  `json:"registrationFee"`
	Status               string `json:"status,omitempty"`
}

func ToResponse(e Event) EventResponse {
	return EventResponse{
		ID:                   e.ID,
		Name:                 e.Name,
		Date:                 e.Date.Format(DateLayout),
		Venue:                e.Venue,
		ShortDesc:            e.ShortDesc,
		About:                e.About,
		LearningOutcomes:     e.LearningOutcomes,
		Strength:             e.Strength,
		CurrentRegistrations: e.CurrentRegistrations,
		RegistrationFee:      e.RegistrationFee,
		Status:               e.Status,
	}
}

func ToResponses(events []Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, ToResponse(e))
	}
	return out
}

// EventList is the {events: [...]} body.
type EventList struct {
	Events []EventResponse `json:"events"`
}

// ============================
// Create / Update Event Request
type EventRequest struct {
	Name             string `json:"name" binding:"required"`
	Date             string `json:"date" binding:"required"` // "2006-01-02"
	Venue            string `json:"venue" binding:"required"`
	ShortDesc        string `json:"shortDesc"`
	About            string `json:"about"`
	LearningOutcomes string `json:"learningOutcomes"`
	Strength         int    `json:"strength" binding:"required"`
	RegistrationFee  int64  `json:"registrationFee"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}
