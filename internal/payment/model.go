package payment

import (
	"time"

	"gorm.io/datatypes"
)

// Payment status
const (
	StatusCreated = "created"
	StatusSuccess = "success"
	StatusFailed  = "failed"
	// StatusUnassigned: money captured but no seat could be given (event
	// filled, or the user already held a seat). Needs a refund.
	StatusUnassigned = "captured_unassigned"
)

// Payment is one gateway order for an event registration.
type Payment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	OrderID   string         `gorm:"size:100;not null;uniqueIndex" json:"orderId"`
	PaymentID *string        `gorm:"size:100;index" json:"paymentId,omitempty"`
	UserID    string         `gorm:"type:uuid;not null;index" json:"userId"`
	EventID   string         `gorm:"type:uuid;not null;index" json:"eventId"`
	Amount    int64          `gorm:"not null" json:"amount"` // minor units
	Currency  string         `gorm:"size:3;not null" json:"currency"`
	Method    string         `gorm:"size:30" json:"method"`
	Status    string         `gorm:"size:30;not null;index" json:"status"`
	Gateway   datatypes.JSON `gorm:"type:jsonb" json:"-"`
	PaidAt    *time.Time     `json:"paidAt,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ==============================
// DTOs
// ==============================

// CreateOrderRequest carries the client's amount as a hint only.
type CreateOrderRequest struct {
	Amount  int64  `json:"amount"`
	EventID string `json:"eventId" binding:"required"`
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
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
	EventID   string `json:"eventId" binding:"required"`
	Amount    int64  `json:"amount"`
}

// VerifyResult is what verification did for the caller.
type VerifyResult struct {
	// AlreadyRegistered is set when the user held a seat through another order.
	AlreadyRegistered bool
	PaymentID         string
}

// UpdatePaymentDetailsParams is applied once the gateway reports a payment.
type UpdatePaymentDetailsParams struct {
	Status    string
	PaymentID string
	Method    string
	Amount    int64
	Gateway   datatypes.JSON
	PaidAt    *time.Time
}

// Receipt is the data rendered into a receipt PDF.
type Receipt struct {
	ReceiptNumber string
	OrderID       string
	PaymentID     string
	EventName     string
	EventDate     string
	Venue         string
	AttendeeName  string
	AttendeeEmail string
	Amount        int64 // minor units
	Currency      string
	Method        string
	PaidAt        time.Time
}

// webhookPayload is the subset of a Razorpay webhook body used here.
type webhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity map[string]interface{} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}
