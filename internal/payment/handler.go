package payment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/campus-events-backend/internal/registration"
	"github.com/sharath018/campus-events-backend/middleware"
	"github.com/sharath018/campus-events-backend/pkg/response"
)

const (
	CodeInvalidSignature = "INVALID_SIGNATURE"
	CodeNotCaptured      = "PAYMENT_NOT_CAPTURED"
	CodeFreeEvent        = "FREE_EVENT"
	CodeGateway          = "GATEWAY_UNAVAILABLE"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func writeFailure(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidSignature):
		response.Failure(c, http.StatusBadRequest, CodeInvalidSignature, "payment verification failed")
	case errors.Is(err, ErrOrderNotFound):
		response.Failure(c, http.StatusNotFound, registration.CodeNotFound, err.Error())
	case errors.Is(err, ErrOrderMismatch):
		response.Failure(c, http.StatusBadRequest, "", err.Error())
	case errors.Is(err, ErrNotCaptured):
		response.Failure(c, http.StatusBadRequest, CodeNotCaptured, err.Error())
	case errors.Is(err, ErrFreeEvent):
		response.Failure(c, http.StatusBadRequest, CodeFreeEvent, err.Error())
	case errors.Is(err, ErrReceiptUnavailable):
		response.Failure(c, http.StatusBadRequest, "", err.Error())
	case errors.Is(err, ErrGateway):
		response.Failure(c, http.StatusBadGateway, CodeGateway, ErrGateway.Error())
	default:
		registration.WriteFailure(c, err)
	}
}

// ==============================
// POST /payment/create-order
// ==============================

func (h *Handler) CreateOrder(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "unauthenticated")
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Failure(c, http.StatusBadRequest, "", err.Error())
		return
	}

	resp, err := h.svc.CreateOrder(c.Request.Context(), user, req, middleware.GetIPFromContext(c))
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ==============================
// POST /payment/verify-payment
// ==============================

func (h *Handler) VerifyPayment(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "unauthenticated")
		return
	}

	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Failure(c, http.StatusBadRequest, "", err.Error())
		return
	}

	result, err := h.svc.VerifyPayment(c.Request.Context(), user, req, middleware.GetIPFromContext(c))
	if err != nil {
		writeFailure(c, err)
		return
	}
	if result.AlreadyRegistered {
		response.Done(c, response.StatusAlreadyRegistered, "already registered, a refund will be issued for payment "+result.PaymentID)
		return
	}
	response.Done(c, response.StatusSuccess, "payment verified")
}

// ==============================
// POST /payment/webhook
// ==============================

func (h *Handler) Webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	err = h.svc.HandleWebhook(c.Request.Context(), body, c.GetHeader("X-Razorpay-Signature"), middleware.GetIPFromContext(c))
	switch {
	case errors.Is(err, ErrInvalidWebhook):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		// Non-2xx makes the gateway redeliver.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook processing failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// ==============================
// GET /payment/:orderId/receipt
// ==============================

func (h *Handler) Receipt(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "unauthenticated")
		return
	}

	pdf, filename, err := h.svc.Receipt(c.Request.Context(), user, c.Param("orderId"))
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// GET /payment/mine
func (h *Handler) ListMine(c *gin.Context) {
	payments, err := h.svc.ListMine(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Internal(c, "failed to fetch payments")
		return
	}
	response.OK(c, payments)
}
