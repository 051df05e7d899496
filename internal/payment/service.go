package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/sharath018/campus-events-backend/internal/auditlog"
	"github.com/sharath018/campus-events-backend/internal/auth"
	"github.com/sharath018/campus-events-backend/internal/event"
	"github.com/sharath018/campus-events-backend/internal/registration"
)

var (
	ErrInvalidSignature   = errors.New("invalid payment signature")
	ErrInvalidWebhook     = errors.New("invalid webhook signature")
	ErrOrderNotFound      = errors.New("payment order not found")
	ErrOrderMismatch      = errors.New("payment does not match this order")
	ErrNotCaptured        = errors.New("payment not captured")
	ErrFreeEvent          = errors.New("this event is free, use free registration")
	ErrReceiptUnavailable = errors.New("receipt is only available for successful payments")
	ErrGateway            = errors.New("payment gateway unavailable")
)

// Registrar is the part of the registration flow payments depend on.
type Registrar interface {
	CheckOpen(ctx context.Context, userID, eventID string) (*event.Event, error)
	Finalize(ctx context.Context, in registration.FinalizeInput) (registration.FinalizeOutcome, error)
}

type Events interface {
	GetByID(ctx context.Context, id string) (*event.Event, error)
}

type Users interface {
	FindByID(ctx context.Context, userID string) (*auth.User, error)
}

type Service interface {
	CreateOrder(ctx context.Context, user auth.User, req CreateOrderRequest, ip string) (*CreateOrderResponse, error)
	VerifyPayment(ctx context.Context, user auth.User, req VerifyPaymentRequest, ip string) (*VerifyResult, error)
	HandleWebhook(ctx context.Context, body []byte, signature, ip string) error
	Receipt(ctx context.Context, actor auth.User, orderID string) ([]byte, string, error)
	ListMine(ctx context.Context, userID string) ([]Payment, error)
}

type Config struct {
	Key           string
	Secret        string
	WebhookSecret string
	Currency      string
	Now           func() time.Time
}

type service struct {
	repo      Repository
	gateway   Gateway
	registrar Registrar
	events    Events
	users     Users
	auditSvc  auditlog.Service
	logger    *zap.Logger
	cfg       Config
}

func NewService(repo Repository, gateway Gateway, registrar Registrar, events Events, users Users, auditSvc auditlog.Service, logger *zap.Logger, cfg Config) Service {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &service{
		repo:      repo,
		gateway:   gateway,
		registrar: registrar,
		events:    events,
		users:     users,
		auditSvc:  auditSvc,
		logger:    logger,
		cfg:       cfg,
	}
}

// ==============================
// Create order
// ==============================

// CreateOrder charges the event's registrationFee converted to minor units.
// The client amount is compared for logging only.
func (s *service) CreateOrder(ctx context.Context, user auth.User, req CreateOrderRequest, ip string) (*CreateOrderResponse, error) {
	e, err := s.registrar.CheckOpen(ctx, user.ID, req.EventID)
	if err != nil {
		s.audit(ctx, user.ID, req.EventID, "PAYMENT_ORDER_CREATED", map[string]interface{}{
			"error": err.Error(),
		}, ip, auditlog.StatusFailure)
		return nil, err
	}
	if e.IsFree() {
		return nil, ErrFreeEvent
	}

	amount := e.RegistrationFee * 100
	if req.Amount != e.RegistrationFee {
		s.logger.Warn("client amount hint differs from registration fee",
			zap.String("event_id", e.ID),
			zap.Int64("hint", req.Amount),
			zap.Int64("fee", e.RegistrationFee))
	}

	receipt := "reg_" + uuid.NewString()[:18]
	orderID, err := s.gateway.CreateOrder(amount, s.cfg.Currency, receipt, map[string]interface{}{
		"user_id":  user.ID,
		"event_id": e.ID,
	})
	if err != nil {
		s.audit(ctx, user.ID, e.ID, "PAYMENT_ORDER_CREATED", map[string]interface{}{
			"amount": amount,
			"error":  err.Error(),
		}, ip, auditlog.StatusFailure)
		s.logger.Error("create gateway order failed", zap.String("event_id", e.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	p := &Payment{
		OrderID:  orderID,
		UserID:   user.ID,
		EventID:  e.ID,
		Amount:   amount,
		Currency: s.cfg.Currency,
		Method:   "PENDING",
		Status:   StatusCreated,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		s.audit(ctx, user.ID, e.ID, "PAYMENT_ORDER_CREATED", map[string]interface{}{
			"order_id": orderID,
			"error":    err.Error(),
		}, ip, auditlog.StatusFailure)
		return nil, fmt.Errorf("failed to create payment record: %w", err)
	}

	s.audit(ctx, user.ID, e.ID, "PAYMENT_ORDER_CREATED", map[string]interface{}{
		"order_id": orderID,
		"amount":   amount,
		"currency": s.cfg.Currency,
	}, ip, auditlog.StatusSuccess)

	return &CreateOrderResponse{
		Order: OrderPayload{ID: orderID, Amount: amount, Currency: s.cfg.Currency},
		Key:   s.cfg.Key,
	}, nil
}

// ==============================
// Verify
// ==============================

// VerifyPayment checks the checkout signature, confirms capture with the
// gateway and finalizes the registration. Already settled orders return
// without touching the gateway.
func (s *service) VerifyPayment(ctx context.Context, user auth.User, req VerifyPaymentRequest, ip string) (*VerifyResult, error) {
	fail := func(reason string, err error) error {
		s.audit(ctx, user.ID, req.EventID, "PAYMENT_VERIFICATION_FAILED", map[string]interface{}{
			"order_id":   req.OrderID,
			"payment_id": req.PaymentID,
			"reason":     reason,
		}, ip, auditlog.StatusFailure)
		return err
	}

	if !VerifySignature(s.cfg.Secret, req.OrderID, req.PaymentID, req.Signature) {
		return nil, fail("invalid payment signature", ErrInvalidSignature)
	}

	p, err := s.repo.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, fail("payment record not found", err)
	}
	if p.UserID != user.ID {
		return nil, fail("order belongs to another user", ErrOrderNotFound)
	}
	if p.EventID != req.EventID {
		return nil, fail("event mismatch", ErrOrderMismatch)
	}
	if req.Amount*100 != p.Amount {
		s.logger.Warn("verify amount hint differs from order",
			zap.String("order_id", p.OrderID), zap.Int64("hint", req.Amount), zap.Int64("order_amount", p.Amount))
	}

	if p.Status == StatusSuccess {
		s.audit(ctx, user.ID, p.EventID, "PAYMENT_ALREADY_PROCESSED", map[string]interface{}{
			"order_id":   p.OrderID,
			"payment_id": req.PaymentID,
		}, ip, auditlog.StatusSuccess)
		return &VerifyResult{PaymentID: req.PaymentID}, nil
	}

	gp, err := s.gateway.FetchPayment(req.PaymentID)
	if err != nil {
		return nil, fail("gateway fetch failed", fmt.Errorf("%w: %v", ErrGateway, err))
	}
	if gp.OrderID != "" && gp.OrderID != p.OrderID {
		return nil, fail("gateway order mismatch", ErrOrderMismatch)
	}
	if gp.ID == "" {
		gp.ID = req.PaymentID
	}
	return s.settle(ctx, p, gp, ip)
}

// settle applies a fetched gateway payment to its order.
func (s *service) settle(ctx context.Context, p *Payment, gp *GatewayPayment, ip string) (*VerifyResult, error) {
	raw, _ := json.Marshal(gp.Raw)
	params := UpdatePaymentDetailsParams{
		PaymentID: gp.ID,
		Method:    gp.Method,
		Amount:    p.Amount,
		Gateway:   datatypes.JSON(raw),
	}
	result := &VerifyResult{PaymentID: gp.ID}

	if !gp.Captured() {
		params.Status = StatusCreated
		if gp.Status == "failed" {
			params.Status = StatusFailed
		}
		s.update(ctx, p.OrderID, params)
		s.audit(ctx, p.UserID, p.EventID, "PAYMENT_FAILED", map[string]interface{}{
			"order_id":        p.OrderID,
			"payment_id":      gp.ID,
			"razorpay_status": gp.Status,
		}, ip, auditlog.StatusFailure)
		return nil, ErrNotCaptured
	}
	if gp.Amount != p.Amount {
		s.logger.Warn("captured amount differs from order",
			zap.String("order_id", p.OrderID), zap.Int64("captured", gp.Amount), zap.Int64("order_amount", p.Amount))
	}

	outcome, err := s.registrar.Finalize(ctx, registration.FinalizeInput{
		UserID:     p.UserID,
		EventID:    p.EventID,
		OrderID:    p.OrderID,
		PaymentID:  gp.ID,
		AmountPaid: gp.Amount,
		IP:         ip,
	})
	if errors.Is(err, registration.ErrEventFull) {
		params.Status = StatusUnassigned
		s.update(ctx, p.OrderID, params)
		s.logger.Error("payment captured for a full event, refund required",
			zap.String("order_id", p.OrderID), zap.String("payment_id", gp.ID))
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	now := s.cfg.Now()
	params.PaidAt = &now
	params.Status = StatusSuccess
	if outcome == registration.HeldByOtherOrder {
		params.Status = StatusUnassigned
		result.AlreadyRegistered = true
		s.logger.Error("payment captured for an existing registration, refund required",
			zap.String("order_id", p.OrderID), zap.String("payment_id", gp.ID))
	}
	s.update(ctx, p.OrderID, params)

	s.audit(ctx, p.UserID, p.EventID, "PAYMENT_SUCCESS", map[string]interface{}{
		"order_id":   p.OrderID,
		"payment_id": gp.ID,
		"amount":     gp.Amount,
		"method":     gp.Method,
		"status":     params.Status,
	}, ip, auditlog.StatusSuccess)
	return result, nil
}

// update records payment details; the seat is already decided, so a write
// failure is logged and left for the webhook to repair.
func (s *service) update(ctx context.Context, orderID string, params UpdatePaymentDetailsParams) {
	if err := s.repo.UpdatePaymentDetails(ctx, orderID, params); err != nil {
		s.logger.Error("update payment details failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

// ==============================
// Webhook
// ==============================

// HandleWebhook finalizes orders whose client verification never arrived.
// Only payment.captured is acted on; unknown orders are acknowledged.
func (s *service) HandleWebhook(ctx context.Context, body []byte, signature, ip string) error {
	if !VerifyWebhookSignature(s.cfg.WebhookSecret, body, signature) {
		return ErrInvalidWebhook
	}

	var hook webhookPayload
	if err := json.Unmarshal(body, &hook); err != nil {
		return fmt.Errorf("decode webhook: %w", err)
	}
	if hook.Event != "payment.captured" {
		s.logger.Debug("webhook ignored", zap.String("event", hook.Event))
		return nil
	}

	gp, err := paymentFromEntity(hook.Payload.Payment.Entity)
	if err != nil {
		return fmt.Errorf("decode webhook payment: %w", err)
	}

	p, err := s.repo.GetByOrderID(ctx, gp.OrderID)
	if errors.Is(err, ErrOrderNotFound) {
		s.logger.Warn("webhook for unknown order", zap.String("order_id", gp.OrderID))
		return nil
	}
	if err != nil {
		return err
	}
	if p.Status == StatusSuccess || p.Status == StatusUnassigned {
		return nil
	}

	_, err = s.settle(ctx, p, gp, ip)
	if errors.Is(err, registration.ErrEventFull) {
		return nil
	}
	return err
}

// ==============================
// Receipt
// ==============================

func (s *service) Receipt(ctx context.Context, actor auth.User, orderID string) ([]byte, string, error) {
	p, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	if p.UserID != actor.ID && actor.Role != auth.RoleAdmin {
		return nil, "", ErrOrderNotFound
	}
	if p.Status != StatusSuccess {
		return nil, "", ErrReceiptUnavailable
	}

	e, err := s.events.GetByID(ctx, p.EventID)
	if err != nil {
		return nil, "", err
	}
	u, err := s.users.FindByID(ctx, p.UserID)
	if err != nil {
		return nil, "", err
	}

	r := Receipt{
		ReceiptNumber: "RCP-" + p.OrderID,
		OrderID:       p.OrderID,
		EventName:     e.Name,
		EventDate:     e.Date.Format(event.DateLayout),
		Venue:         e.Venue,
		AttendeeName:  u.FullName,
		AttendeeEmail: u.Email,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Method:        p.Method,
		PaidAt:        p.UpdatedAt,
	}
	if p.PaymentID != nil {
		r.PaymentID = *p.PaymentID
	}
	if p.PaidAt != nil {
		r.PaidAt = *p.PaidAt
	}

	pdf, err := RenderReceipt(r)
	if err != nil {
		return nil, "", err
	}
	return pdf, fmt.Sprintf("receipt_%s.pdf", p.OrderID), nil
}

func (s *service) ListMine(ctx context.Context, userID string) ([]Payment, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) audit(ctx context.Context, userID, eventID, action string, details map[string]interface{}, ip, status string) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.LogAction(ctx, auditlog.StrPtr(userID), auditlog.StrPtr(eventID), action, details, ip, status)
}
