package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sharath018/campus-events-backend/internal/portal"
)

const DefaultVerifyTimeout = 30 * time.Second

// API is the slice of the portal backend the bridge needs.
type API interface {
	CreateOrder(ctx context.Context, token string, req portal.CreateOrderRequest) (*portal.CreateOrderResponse, error)
	VerifyPayment(ctx context.Context, token string, req portal.VerifyPaymentRequest) (*portal.Confirmation, error)
}

// VerificationError is returned when a completed checkout could not be
// verified. Money may have moved, so it always names the payment.
type VerificationError struct {
	OrderID   string
	PaymentID string
	Timeout   bool
	Message   string
	Err       error
}

func (e *VerificationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("verification timed out, check payment status with support (payment id %s)", e.PaymentID)
	}
	msg := e.Message
	if msg == "" {
		msg = "payment verification failed"
	}
	return fmt.Sprintf("%s (payment id %s)", msg, e.PaymentID)
}

func (e *VerificationError) Unwrap() error { return e.Err }

var ErrNotCompleted = errors.New("checkout result is not completed")

// Bridge mediates between the registration flow and the hosted checkout.
type Bridge struct {
	api           API
	checkout      Checkout
	verifyTimeout time.Duration
	logger        *zap.Logger
}

type BridgeConfig struct {
	VerifyTimeout time.Duration
	Logger        *zap.Logger
}

func NewBridge(api API, checkout Checkout, cfg BridgeConfig) *Bridge {
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = DefaultVerifyTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Bridge{
		api:           api,
		checkout:      checkout,
		verifyTimeout: cfg.VerifyTimeout,
		logger:        cfg.Logger,
	}
}

// CreateOrder requests an order for eventID. amount is the fee the caller
// saw and is sent as a hint; the backend derives the charge itself.
func (b *Bridge) CreateOrder(ctx context.Context, token, eventID string, amount int64) (*Order, error) {
	resp, err := b.api.CreateOrder(ctx, token, portal.CreateOrderRequest{Amount: amount, EventID: eventID})
	if err != nil {
		return nil, err
	}
	order := &Order{
		ID:       resp.Order.ID,
		Amount:   resp.Order.Amount,
		Currency: resp.Order.Currency,
		Key:      resp.Key,
	}
	if err := order.validate(); err != nil {
		return nil, &portal.Error{Kind: portal.KindServer, Message: "invalid order from server", Err: err}
	}
	b.logger.Debug("order created",
		zap.String("event_id", eventID),
		zap.String("order_id", order.ID),
		zap.Int64("amount_minor", order.Amount),
	)
	return order, nil
}

// OpenCheckout shows the widget for order and waits for its single result.
func (b *Bridge) OpenCheckout(ctx context.Context, order *Order, prefill Prefill, description string) (Result, error) {
	if err := order.validate(); err != nil {
		return Result{}, err
	}
	session := NewSession()
	if err := b.checkout.Open(ctx, NewCheckoutOptions(order, prefill, description), session); err != nil {
		return Result{}, fmt.Errorf("open checkout: %w", err)
	}
	res, err := session.Wait(ctx)
	if err != nil {
		return Result{}, err
	}
	if res.Kind == Completed && res.OrderID == "" {
		res.OrderID = order.ID
	}
	return res, nil
}

// VerifyAndFinalize asks the backend to verify res and finalize the
// registration. The call is bounded by the verify timeout.
func (b *Bridge) VerifyAndFinalize(ctx context.Context, token, eventID string, amount int64, res Result) (*portal.Confirmation, error) {
	if res.Kind != Completed {
		return nil, ErrNotCompleted
	}

	vctx, cancel := context.WithTimeout(ctx, b.verifyTimeout)
	defer cancel()

	conf, err := b.api.VerifyPayment(vctx, token, portal.VerifyPaymentRequest{
		RazorpayOrderID:   res.OrderID,
		RazorpayPaymentID: res.PaymentID,
		RazorpaySignature: res.Signature,
		EventID:           eventID,
		Amount:            amount,
	})
	if err != nil {
		timedOut := portal.KindOf(err) == portal.KindTimeout || errors.Is(vctx.Err(), context.DeadlineExceeded)
		b.logger.Warn("payment verification failed",
			zap.String("event_id", eventID),
			zap.String("order_id", res.OrderID),
			zap.String("payment_id", res.PaymentID),
			zap.Bool("timeout", timedOut),
			zap.Error(err),
		)
		return nil, &VerificationError{
			OrderID:   res.OrderID,
			PaymentID: res.PaymentID,
			Timeout:   timedOut,
			Message:   portal.MessageOf(err),
			Err:       err,
		}
	}
	return conf, nil
}
