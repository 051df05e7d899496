package registrar

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sharath018/campus-events-backend/internal/gateway"
	"github.com/sharath018/campus-events-backend/internal/portal"
)

var (
	ErrInvalidEvent    = errors.New("event needs an id and a valid date")
	ErrAttemptBusy     = errors.New("registration attempt is not awaiting confirmation")
	ErrAttemptSettled  = errors.New("registration attempt already succeeded")
	ErrUnauthenticated = errors.New(MsgLoginAgain)
)

// Session is the signed-in user, injected instead of read from global storage.
type Session struct {
	Token  string
	UserID string
	Name   string
	Email  string
	Phone  string
}

// SessionSource yields the current session on every call so a re-login is picked up.
type SessionSource interface {
	Current() Session
}

// StaticSession is a SessionSource that never changes.
type StaticSession Session

func (s StaticSession) Current() Session { return Session(s) }

// Backend is the registration part of the portal API.
type Backend interface {
	RegisterFree(ctx context.Context, token, eventID string) (*portal.Confirmation, error)
	RegisteredEvents(ctx context.Context, token, userID string) ([]portal.Event, error)
	AttendedEvents(ctx context.Context, token, userID string) ([]portal.Event, error)
	Events(ctx context.Context, token string) ([]portal.Event, error)
}

// PaymentBridge is implemented by *gateway.Bridge.
type PaymentBridge interface {
	CreateOrder(ctx context.Context, token, eventID string, amount int64) (*gateway.Order, error)
	OpenCheckout(ctx context.Context, order *gateway.Order, prefill gateway.Prefill, description string) (gateway.Result, error)
	VerifyAndFinalize(ctx context.Context, token, eventID string, amount int64, res gateway.Result) (*portal.Confirmation, error)
}

// Controller drives registration attempts from confirmation to settlement
// and keeps the local registered, attended and catalog caches.
type Controller struct {
	backend    Backend
	payments   PaymentBridge
	sessions   SessionSource
	registered *RegisteredSet
	logger     *zap.Logger

	mu       sync.Mutex
	active   map[string]*Attempt
	catalog  map[string]portal.Event
	attended []portal.Event
}

func NewController(backend Backend, payments PaymentBridge, sessions SessionSource, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		backend:    backend,
		payments:   payments,
		sessions:   sessions,
		registered: NewRegisteredSet(),
		logger:     logger,
		active:     make(map[string]*Attempt),
		catalog:    make(map[string]portal.Event),
	}
}

func (c *Controller) Registered() *RegisteredSet { return c.registered }

// Attended returns the last fetched attended list.
func (c *Controller) Attended() []portal.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]portal.Event(nil), c.attended...)
}

// Event returns the cached catalog entry for id.
func (c *Controller) Event(id string) (portal.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.catalog[id]
	return e, ok
}

// Catalog returns the cached events as last fetched from the backend.
func (c *Controller) Catalog() []portal.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]portal.Event, 0, len(c.catalog))
	for _, e := range c.catalog {
		out = append(out, e)
	}
	return out
}

// ===========================
// Attempt lifecycle

// Begin opens an attempt in Confirming. No network call is made.
func (c *Controller) Begin(event portal.Event) (*Attempt, error) {
	if event.ID == "" {
		return nil, ErrInvalidEvent
	}
	if _, err := event.Day(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.active[event.ID]; ok {
		switch prev.Phase() {
		case PhaseConfirming:
			return prev, nil
		case PhaseProcessing, PhaseAwaitingGateway:
			return nil, ErrAttemptBusy
		}
	}
	a := &Attempt{Event: event, phase: PhaseConfirming}
	c.active[event.ID] = a
	return a, nil
}

// Cancel discards an attempt that was never confirmed.
func (c *Controller) Cancel(a *Attempt) error {
	if !a.reset(PhaseIdle, PhaseConfirming) {
		return ErrAttemptBusy
	}
	c.forget(a)
	return nil
}

// Close discards a settled attempt.
func (c *Controller) Close(a *Attempt) error {
	if !a.reset(PhaseIdle, PhaseSettled, PhaseConfirming) {
		return ErrAttemptBusy
	}
	c.forget(a)
	return nil
}

// Retry re-enters Confirming after a failed or cancelled attempt.
func (c *Controller) Retry(a *Attempt) error {
	if r, ok := a.Result(); ok && r.Registered() {
		return ErrAttemptSettled
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.active[a.Event.ID]; ok && prev != a && prev.Phase().inFlight() {
		return ErrAttemptBusy
	}
	if !a.reset(PhaseConfirming, PhaseIdle, PhaseSettled) {
		return ErrAttemptBusy
	}
	c.active[a.Event.ID] = a
	return nil
}

func (c *Controller) forget(a *Attempt) {
	c.mu.Lock()
	if c.active[a.Event.ID] == a {
		delete(c.active, a.Event.ID)
	}
	c.mu.Unlock()
}

// Confirm runs the attempt to settlement. It returns ErrAttemptBusy without
// touching the network unless the attempt is in Confirming.
func (c *Controller) Confirm(ctx context.Context, a *Attempt) (Result, error) {
	if !a.claim() {
		return Result{}, ErrAttemptBusy
	}

	sess := c.sessions.Current()
	ev := a.Event
	switch {
	case sess.Token == "":
		return c.settle(a, failure(ev.ID, FailurePrecondition, MsgLoginAgain)), nil
	case ev.IsFull():
		return c.settle(a, failure(ev.ID, FailurePrecondition, MsgEventFull)), nil
	case c.registered.Contains(ev.ID) && !c.registered.IsProvisional(ev.ID):
		return c.settle(a, Result{Outcome: OutcomeAlreadyRegistered, EventID: ev.ID, Message: MsgAlreadyRegistered}), nil
	}

	if ev.IsFree() {
		return c.confirmFree(ctx, a, sess), nil
	}
	return c.confirmPaid(ctx, a, sess), nil
}

func (c *Controller) confirmFree(ctx context.Context, a *Attempt, sess Session) Result {
	conf, err := c.backend.RegisterFree(ctx, sess.Token, a.Event.ID)
	if err != nil {
		if portal.KindOf(err) == portal.KindAlreadyRegistered {
			return c.succeed(a, true, "")
		}
		return c.settle(a, c.failureFrom(a.Event.ID, err, MsgGenericFailure))
	}
	return c.succeed(a, conf.AlreadyRegistered(), "")
}

func (c *Controller) confirmPaid(ctx context.Context, a *Attempt, sess Session) Result {
	ev := a.Event
	order, err := c.payments.CreateOrder(ctx, sess.Token, ev.ID, ev.RegistrationFee)
	if err != nil {
		if portal.KindOf(err) == portal.KindAlreadyRegistered {
			return c.succeed(a, true, "")
		}
		return c.settle(a, c.failureFrom(ev.ID, err, MsgPaymentStart))
	}
	a.awaitGateway(order)

	prefill := gateway.Prefill{Name: sess.Name, Email: sess.Email, Contact: sess.Phone}
	res, err := c.payments.OpenCheckout(ctx, order, prefill, ev.Name)
	if err != nil {
		if ctx.Err() != nil {
			return c.settle(a, cancelled(ev.ID))
		}
		c.logger.Warn("checkout failed to open", zap.String("event_id", ev.ID), zap.String("order_id", order.ID), zap.Error(err))
		return c.settle(a, failure(ev.ID, FailureTransient, MsgPaymentStart))
	}
	if res.Kind != gateway.Completed {
		return c.settle(a, cancelled(ev.ID))
	}

	// Verification runs to completion even if the caller goes away.
	a.resume()
	conf, err := c.payments.VerifyAndFinalize(context.WithoutCancel(ctx), sess.Token, ev.ID, ev.RegistrationFee, res)
	if err != nil {
		return c.settle(a, verificationFailure(ev.ID, res.PaymentID, err))
	}
	return c.succeed(a, conf.AlreadyRegistered(), res.PaymentID)
}

func (c *Controller) succeed(a *Attempt, duplicate bool, paymentID string) Result {
	added := c.registered.AddProvisional(a.Event)
	r := Result{
		Outcome:       OutcomeSuccess,
		EventID:       a.Event.ID,
		Message:       MsgRegistered,
		PaymentID:     paymentID,
		RefreshNeeded: true,
	}
	if duplicate || !added {
		r.Outcome = OutcomeAlreadyRegistered
		r.Message = MsgAlreadyRegistered
	}
	return c.settle(a, r)
}

func (c *Controller) settle(a *Attempt, r Result) Result {
	a.settle(r)
	fields := []zap.Field{
		zap.String("event_id", r.EventID),
		zap.String("outcome", r.Outcome.String()),
	}
	if r.Kind != FailureNone {
		fields = append(fields, zap.String("kind", r.Kind.String()), zap.String("reason", r.Message))
	}
	if r.PaymentID != "" {
		fields = append(fields, zap.String("payment_id", r.PaymentID))
	}
	c.logger.Info("registration settled", fields...)
	return r
}

func (c *Controller) failureFrom(eventID string, err error, fallback string) Result {
	msg := portal.MessageOf(err)
	switch portal.KindOf(err) {
	case portal.KindUnauthenticated:
		return failure(eventID, FailurePrecondition, MsgLoginAgain)
	case portal.KindEventFull:
		return failure(eventID, FailurePrecondition, orDefault(msg, MsgEventFull))
	case portal.KindTimeout:
		return failure(eventID, FailureTimeout, MsgRequestTimeout)
	default:
		return failure(eventID, FailureTransient, orDefault(msg, fallback))
	}
}

func verificationFailure(eventID, paymentID string, err error) Result {
	r := Result{Outcome: OutcomeFailure, Kind: FailureUnverified, EventID: eventID, PaymentID: paymentID}
	var verr *gateway.VerificationError
	if errors.As(err, &verr) {
		if verr.Timeout {
			r.Kind = FailureTimeout
		}
		r.Message = verr.Error()
		return r
	}
	r.Message = fmt.Sprintf("payment verification failed (payment id %s)", paymentID)
	return r
}

func failure(eventID string, kind FailureKind, msg string) Result {
	return Result{Outcome: OutcomeFailure, Kind: kind, EventID: eventID, Message: msg}
}

func cancelled(eventID string) Result {
	return Result{Outcome: OutcomeCancelled, Kind: FailureCancelled, EventID: eventID, Message: MsgPaymentCancelled}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// ===========================
// Refresh

// Refresh reloads the catalog and the registered and attended lists,
// overwriting provisional entries.
func (c *Controller) Refresh(ctx context.Context) error {
	sess := c.sessions.Current()
	if sess.Token == "" {
		return ErrUnauthenticated
	}

	registered, err := c.backend.RegisteredEvents(ctx, sess.Token, sess.UserID)
	if err != nil {
		return fmt.Errorf("fetch registered events: %w", err)
	}
	c.registered.Reconcile(registered)

	attended, err := c.backend.AttendedEvents(ctx, sess.Token, sess.UserID)
	if err != nil {
		return fmt.Errorf("fetch attended events: %w", err)
	}

	events, err := c.backend.Events(ctx, sess.Token)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}

	catalog := make(map[string]portal.Event, len(events))
	for _, e := range events {
		catalog[e.ID] = e
	}

	c.mu.Lock()
	c.attended = attended
	c.catalog = catalog
	c.mu.Unlock()
	return nil
}
