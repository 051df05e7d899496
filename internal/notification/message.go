package notification

import "time"

// RegistrationConfirmed is published once per new registration.
type RegistrationConfirmed struct {
	RegistrationID string    `json:"registrationId"`
	UserID         string    `json:"userId"`
	EventID        string    `json:"eventId"`
	EventName      string    `json:"eventName"`
	EventDate      string    `json:"eventDate"`
	Source         string    `json:"source"`
	AmountPaid     int64     `json:"amountPaid"`
	PaymentID      string    `json:"paymentId,omitempty"`
	ConfirmedAt    time.Time `json:"confirmedAt"`
}
