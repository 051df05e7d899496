package registration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sharath018/campus-events-backend/internal/auditlog"
	"github.com/sharath018/campus-events-backend/internal/auth"
	"github.com/sharath018/campus-events-backend/internal/event"
	"github.com/sharath018/campus-events-backend/internal/notification"
)

var (
	ErrAlreadyRegistered = errors.New("already registered for this event")
	ErrEventFull         = errors.New("event is full")
	ErrEventNotFound     = errors.New("event not found")
	ErrEventClosed       = errors.New("registration is closed for this event")
	ErrPaymentRequired   = errors.New("this event requires payment")
	ErrInFlight          = errors.New("a registration for this event is already in progress")
	ErrNotRegistered     = errors.New("user is not registered for this event")
	ErrInvalidAttendance = errors.New("attendance must be present, absent or not_marked")
	ErrForbidden         = errors.New("only the event organizer can do this")
)

// Publisher announces confirmed registrations.
type Publisher interface {
	PublishRegistrationConfirmed(ctx context.Context, msg notification.RegistrationConfirmed) error
}

// Events is the subset of the event repository used here.
type Events interface {
	GetByID(ctx context.Context, id string) (*event.Event, error)
}

type Service interface {
	RegisterFree(ctx context.Context, userID, eventID, ip string) (created bool, err error)
	Finalize(ctx context.Context, in FinalizeInput) (FinalizeOutcome, error)
	CheckOpen(ctx context.Context, userID, eventID string) (*event.Event, error)
	ListRegistered(ctx context.Context, userID string) ([]event.Event, error)
	ListAttended(ctx context.Context, userID string) ([]event.Event, error)
	ListByEvent(ctx context.Context, actor auth.User, eventID string) ([]Attendee, error)
	MarkAttendance(ctx context.Context, actor auth.User, eventID string, entries []AttendanceEntry, ip string) error
}

// FinalizeOutcome reports what a verified payment did to the seat table.
type FinalizeOutcome int

const (
	// Finalized took a new seat for this order.
	Finalized FinalizeOutcome = iota
	// AlreadyFinalized means this order already holds the seat.
	AlreadyFinalized
	// HeldByOtherOrder means the user was registered through another path;
	// the payment needs a refund.
	HeldByOtherOrder
)

type Config struct {
	LockTTL time.Duration
	// PublishTimeout bounds how long a confirmed registration waits on the broker.
	PublishTimeout time.Duration
	// Now is overridable in tests.
	Now func() time.Time
}

type service struct {
	repo      Repository
	events    Events
	locker    Locker
	publisher Publisher
	auditSvc  auditlog.Service
	logger    *zap.Logger
	cfg       Config
}

// NewService wires the registration flow. locker and publisher may be nil;
// the database transaction alone still enforces capacity and uniqueness.
func NewService(repo Repository, events Events, locker Locker, publisher Publisher, auditSvc auditlog.Service, logger *zap.Logger, cfg Config) Service {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 15 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &service{
		repo:      repo,
		events:    events,
		locker:    locker,
		publisher: publisher,
		auditSvc:  auditSvc,
		logger:    logger,
		cfg:       cfg,
	}
}

// CheckOpen loads an event that is approved, not in the past, and not yet
// joined by userID. A full event is reported with ErrEventFull.
func (s *service) CheckOpen(ctx context.Context, userID, eventID string) (*event.Event, error) {
	e, err := s.events.GetByID(ctx, eventID)
	if errors.Is(err, event.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	if e.Status != event.StatusApproved {
		return nil, ErrEventNotFound
	}

	now := s.cfg.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if e.Date.Before(today) {
		return nil, ErrEventClosed
	}

	exists, err := s.repo.Exists(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if exists {
		return e, ErrAlreadyRegistered
	}
	if !e.HasSeat() {
		return e, ErrEventFull
	}
	return e, nil
}

// =============================
// Free registration
// =============================

// RegisterFree returns created=false with a nil error when the user already
// holds a seat; the seat count is untouched in that case.
func (s *service) RegisterFree(ctx context.Context, userID, eventID, ip string) (bool, error) {
	e, err := s.CheckOpen(ctx, userID, eventID)
	if errors.Is(err, ErrAlreadyRegistered) {
		return false, nil
	}
	if err != nil {
		s.audit(ctx, userID, eventID, "REGISTRATION_FREE", map[string]interface{}{"error": err.Error()}, ip, auditlog.StatusFailure)
		return false, err
	}
	if !e.IsFree() {
		return false, ErrPaymentRequired
	}

	reg := &Registration{UserID: userID, EventID: eventID, Source: SourceFree}
	created, err := s.take(ctx, e, reg)
	if err != nil {
		s.audit(ctx, userID, eventID, "REGISTRATION_FREE", map[string]interface{}{"error": err.Error()}, ip, auditlog.StatusFailure)
		return false, err
	}
	if created {
		s.audit(ctx, userID, eventID, "REGISTRATION_FREE", map[string]interface{}{
			"registration_id": reg.ID,
		}, ip, auditlog.StatusSuccess)
	}
	return created, nil
}

// =============================
// Paid registration
// =============================

// Finalize turns a verified payment into a seat. It is idempotent per order:
// repeated client verification or webhook delivery reports AlreadyFinalized.
// It skips the in-flight lock so a concurrent verify and webhook for the same
// order both settle through the database guard.
func (s *service) Finalize(ctx context.Context, in FinalizeInput) (FinalizeOutcome, error) {
	e, err := s.events.GetByID(ctx, in.EventID)
	if errors.Is(err, event.ErrNotFound) {
		return 0, ErrEventNotFound
	}
	if err != nil {
		return 0, err
	}

	reg := &Registration{
		UserID:     in.UserID,
		EventID:    in.EventID,
		Source:     SourcePayment,
		OrderID:    strPtr(in.OrderID),
		PaymentID:  strPtr(in.PaymentID),
		AmountPaid: in.AmountPaid,
	}
	outcome, err := s.finalize(ctx, e, reg, in.OrderID)

	status := auditlog.StatusSuccess
	details := map[string]interface{}{
		"order_id":    in.OrderID,
		"payment_id":  in.PaymentID,
		"amount_paid": in.AmountPaid,
		"outcome":     int(outcome),
	}
	if err != nil {
		status = auditlog.StatusFailure
		details["error"] = err.Error()
	} else if outcome == HeldByOtherOrder {
		status = auditlog.StatusFailure
		details["error"] = "user already registered through another order"
	}
	s.audit(ctx, in.UserID, in.EventID, "REGISTRATION_PAID", details, in.IP, status)
	return outcome, err
}

func (s *service) finalize(ctx context.Context, e *event.Event, reg *Registration, orderID string) (FinalizeOutcome, error) {
	created, err := s.create(ctx, e, reg)
	if err != nil {
		return 0, err
	}
	if created {
		return Finalized, nil
	}
	held, err := s.repo.OrderIDFor(ctx, reg.UserID, reg.EventID)
	if err != nil {
		return 0, err
	}
	if held != "" && held == orderID {
		return AlreadyFinalized, nil
	}
	return HeldByOtherOrder, nil
}

// take holds the per-user lock while the seat transaction runs.
func (s *service) take(ctx context.Context, e *event.Event, reg *Registration) (bool, error) {
	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, lockKey(reg.UserID, reg.EventID), s.cfg.LockTTL)
		switch {
		case err != nil:
			s.logger.Warn("registration lock unavailable, relying on database guard",
				zap.String("event_id", reg.EventID), zap.Error(err))
		case !ok:
			return false, ErrInFlight
		default:
			defer release()
		}
	}
	return s.create(ctx, e, reg)
}

// create runs the seat transaction and announces new registrations.
func (s *service) create(ctx context.Context, e *event.Event, reg *Registration) (bool, error) {
	err := s.repo.CreateWithSeat(ctx, reg)
	if errors.Is(err, ErrAlreadyRegistered) {
		return false, nil
	}
	if err != nil {
		if !errors.Is(err, ErrEventFull) {
			err = fmt.Errorf("create registration: %w", err)
		}
		return false, err
	}

	s.logger.Info("registration confirmed",
		zap.String("registration_id", reg.ID),
		zap.String("event_id", reg.EventID),
		zap.String("user_id", reg.UserID),
		zap.String("source", reg.Source))
	s.publish(ctx, e, reg)
	return true, nil
}

func (s *service) publish(ctx context.Context, e *event.Event, reg *Registration) {
	if s.publisher == nil {
		return
	}
	msg := notification.RegistrationConfirmed{
		RegistrationID: reg.ID,
		UserID:         reg.UserID,
		EventID:        e.ID,
		EventName:      e.Name,
		EventDate:      e.Date.Format(event.DateLayout),
		Source:         reg.Source,
		AmountPaid:     reg.AmountPaid,
		ConfirmedAt:    s.cfg.Now().UTC(),
	}
	if reg.PaymentID != nil {
		msg.PaymentID = *reg.PaymentID
	}
	// Notification delivery never fails or stalls a registration.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PublishTimeout)
	defer cancel()
	if err := s.publisher.PublishRegistrationConfirmed(pctx, msg); err != nil {
		s.logger.Warn("publish registration.confirmed failed", zap.String("registration_id", reg.ID), zap.Error(err))
	}
}

// =============================
// Listings
// =============================

func (s *service) ListRegistered(ctx context.Context, userID string) ([]event.Event, error) {
	return s.repo.ListEventsForUser(ctx, userID)
}

func (s *service) ListAttended(ctx context.Context, userID string) ([]event.Event, error) {
	return s.repo.ListAttendedEvents(ctx, userID)
}

func (s *service) ListByEvent(ctx context.Context, actor auth.User, eventID string) ([]Attendee, error) {
	if err := s.authorizeOrganizer(ctx, actor, eventID); err != nil {
		return nil, err
	}
	return s.repo.ListByEvent(ctx, eventID)
}

// =============================
// Attendance
// =============================

func (s *service) MarkAttendance(ctx context.Context, actor auth.User, eventID string, entries []AttendanceEntry, ip string) error {
	if err := s.authorizeOrganizer(ctx, actor, eventID); err != nil {
		return err
	}
	for _, en := range entries {
		if !validAttendance(en.Status) {
			return ErrInvalidAttendance
		}
	}

	for _, en := range entries {
		if err := s.repo.MarkAttendance(ctx, eventID, en.UserID, en.Status); err != nil {
			s.audit(ctx, actor.ID, eventID, "ATTENDANCE_MARKED", map[string]interface{}{
				"user_id": en.UserID,
				"error":   err.Error(),
			}, ip, auditlog.StatusFailure)
			return err
		}
	}

	s.audit(ctx, actor.ID, eventID, "ATTENDANCE_MARKED", map[string]interface{}{
		"count": len(entries),
	}, ip, auditlog.StatusSuccess)
	return nil
}

func validAttendance(status string) bool {
	switch status {
	case AttendancePresent, AttendanceAbsent, AttendanceNotMarked:
		return true
	}
	return false
}

func (s *service) authorizeOrganizer(ctx context.Context, actor auth.User, eventID string) error {
	e, err := s.events.GetByID(ctx, eventID)
	if errors.Is(err, event.ErrNotFound) {
		return ErrEventNotFound
	}
	if err != nil {
		return err
	}
	if actor.Role != auth.RoleAdmin && e.CreatedBy != actor.ID {
		return ErrForbidden
	}
	return nil
}

func (s *service) audit(ctx context.Context, userID, eventID, action string, details map[string]interface{}, ip, status string) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.LogAction(ctx, auditlog.StrPtr(userID), auditlog.StrPtr(eventID), action, details, ip, status)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
