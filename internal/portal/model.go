package portal

import (
	"errors"
	"time"
)

// DateLayout is the wire format of Event.Date (calendar date, no time).
const DateLayout = "2006-01-02"

// Event is the event record as served by the portal backend.
type Event struct {
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
}

// IsFree reports whether the event can be joined without payment.
func (e Event) IsFree() bool { return e.RegistrationFee <= 0 }

// IsFull uses the advisory count; the backend has the final say.
func (e Event) IsFull() bool {
	return e.Strength > 0 && e.CurrentRegistrations >= e.Strength
}

// Day parses Date.
func (e Event) Day() (time.Time, error) {
	if e.Date == "" {
		return time.Time{}, errors.New("event date missing")
	}
	return time.Parse(DateLayout, e.Date)
}

// Status values carried in {status: ...} bodies.
const (
	StatusSuccess           = "Success"
	StatusAlreadyRegistered = "AlreadyRegistered"
	StatusFailure           = "Failure"
)

// Confirmation is the body returned by register-free and verify-payment.
type Confirmation struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// AlreadyRegistered reports the idempotent duplicate outcome.
func (c Confirmation) AlreadyRegistered() bool { return c.Status == StatusAlreadyRegistered }

type CreateOrderRequest struct {
	Amount  int64  `json:"amount"`
	EventID string `json:"eventId"`
}

type OrderPayload struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type CreateOrderResponse struct {
	Order OrderPayload `json:"order"`
	Key   string       `json:"key"`
}

type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	EventID           string `json:"eventId"`
	Amount            int64  `json:"amount"`
}

type EventList struct {
	Events []Event `json:"events"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse mirrors the auth login payload.
type LoginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         struct {
		ID       string `json:"id"`
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Role     string `json:"role"`
	} `json:"user"`
}

// failureBody is the error shape used by the registration endpoints;
// Error covers the {success,data,error} envelope of the rest of the API.
type failureBody struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}
