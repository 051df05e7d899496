package event

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sharath018/campus-events-backend/internal/auditlog"
	"github.com/sharath018/campus-events-backend/internal/auth"
)

var (
	ErrNotFound         = errors.New("event not found")
	ErrInvalidDate      = errors.New("invalid date format. Use YYYY-MM-DD")
	ErrInvalidFee       = errors.New("registrationFee must not be negative")
	ErrInvalidStrength  = errors.New("strength must be greater than zero")
	ErrBelowRegistered  = errors.New("strength cannot be lower than current registrations")
	ErrInvalidStatus    = errors.New("status must be approved or rejected")
	ErrForbidden        = errors.New("you can only modify your own events")
	ErrHasRegistrations = errors.New("event has registrations and cannot be deleted")
	ErrNotPending       = errors.New("only pending events can be rejected")
)

type Service interface {
	ListApproved(ctx context.Context) ([]Event, error)
	Get(ctx context.Context, id string) (*Event, error)
	ListMine(ctx context.Context, organizerID string) ([]Event, error)
	Create(ctx context.Context, actor auth.User, req EventRequest, ip string) (*Event, error)
	Update(ctx context.Context, actor auth.User, id string, req EventRequest, ip string) (*Event, error)
	SetStatus(ctx context.Context, actor auth.User, id, status, ip string) error
	ListPending(ctx context.Context) ([]Event, error)
	Delete(ctx context.Context, actor auth.User, id, ip string) error
	Reject(ctx context.Context, actor auth.User, id, ip string) error
}

type service struct {
	repo     Repository
	auditSvc auditlog.Service
	logger   *zap.Logger
}

func NewService(r Repository, auditSvc auditlog.Service, logger *zap.Logger) Service {
	return &service{repo: r, auditSvc: auditSvc, logger: logger}
}

func (s *service) ListApproved(ctx context.Context) ([]Event, error) {
	return s.repo.ListApproved(ctx)
}

func (s *service) Get(ctx context.Context, id string) (*Event, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListMine(ctx context.Context, organizerID string) ([]Event, error) {
	return s.repo.ListByOrganizer(ctx, organizerID)
}

// validate parses and checks a request into e.
func validate(req EventRequest, e *Event) error {
	date, err := time.Parse(DateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return ErrInvalidDate
	}
	if req.RegistrationFee < 0 {
		return ErrInvalidFee
	}
	if req.Strength <= 0 {
		return ErrInvalidStrength
	}

	e.Name = strings.TrimSpace(req.Name)
	e.Date = date
	e.Venue = req.Venue
	e.ShortDesc = req.ShortDesc
	e.About = req.About
	e.LearningOutcomes = req.LearningOutcomes
	e.Strength = req.Strength
	e.RegistrationFee = req.RegistrationFee
	return nil
}

// ===========================
// Create Event
// Organizer events start pending; admin-created events are approved directly.
func (s *service) Create(ctx context.Context, actor auth.User, req EventRequest, ip string) (*Event, error) {
	e := &Event{CreatedBy: actor.ID, Status: StatusPending}
	if actor.Role == auth.RoleAdmin {
		e.Status = StatusApproved
	}

	if err := validate(req, e); err != nil {
		s.audit(ctx, actor.ID, "", "EVENT_CREATED", map[string]interface{}{
			"name":  req.Name,
			"error": err.Error(),
		}, ip, auditlog.StatusFailure)
		return nil, err
	}

	if err := s.repo.Create(ctx, e); err != nil {
		s.audit(ctx, actor.ID, "", "EVENT_CREATED", map[string]interface{}{
			"name":  req.Name,
			"error": err.Error(),
		}, ip, auditlog.StatusFailure)
		return nil, err
	}

	s.audit(ctx, actor.ID, e.ID, "EVENT_CREATED", map[string]interface{}{
		"name":             e.Name,
		"date":             e.Date.Format(DateLayout),
		"strength":         e.Strength,
		"registration_fee": e.RegistrationFee,
	}, ip, auditlog.StatusSuccess)
	s.logger.Info("event created", zap.String("event_id", e.ID), zap.String("status", e.Status))
	return e, nil
}

// ===========================
// Update Event
func (s *service) Update(ctx context.Context, actor auth.User, id string, req EventRequest, ip string) (*Event, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != auth.RoleAdmin && existing.CreatedBy != actor.ID {
		s.audit(ctx, actor.ID, id, "EVENT_UPDATED", map[string]interface{}{
			"error": ErrForbidden.Error(),
		}, ip, auditlog.StatusFailure)
		return nil, ErrForbidden
	}

	updated := *existing
	if err := validate(req, &updated); err != nil {
		s.audit(ctx, actor.ID, id, "EVENT_UPDATED", map[string]interface{}{
			"error": err.Error(),
		}, ip, auditlog.StatusFailure)
		return nil, err
	}
	if updated.Strength < existing.CurrentRegistrations {
		return nil, ErrBelowRegistered
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, err
	}

	s.audit(ctx, actor.ID, id, "EVENT_UPDATED", map[string]interface{}{
		"name":             updated.Name,
		"strength":         updated.Strength,
		"registration_fee": updated.RegistrationFee,
	}, ip, auditlog.StatusSuccess)
	return &updated, nil
}

// ===========================
// Approve / Reject
func (s *service) SetStatus(ctx context.Context, actor auth.User, id, status, ip string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != StatusApproved && status != StatusRejected {
		return ErrInvalidStatus
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		s.audit(ctx, actor.ID, id, "EVENT_STATUS_CHANGED", map[string]interface{}{
			"status": status,
			"error":  err.Error(),
		}, ip, auditlog.StatusFailure)
		return err
	}

	s.audit(ctx, actor.ID, id, "EVENT_STATUS_CHANGED", map[string]interface{}{
		"status": status,
	}, ip, auditlog.StatusSuccess)
	return nil
}

func (s *service) ListPending(ctx context.Context) ([]Event, error) {
	return s.repo.ListPending(ctx)
}

// ===========================
// Delete Event
// Organizers delete their own events, admins any event. Events with
// registrations are kept so seat holders never lose their booking.
func (s *service) Delete(ctx context.Context, actor auth.User, id, ip string) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role != auth.RoleAdmin && existing.CreatedBy != actor.ID {
		s.audit(ctx, actor.ID, id, "EVENT_DELETED", map[string]interface{}{
			"error": ErrForbidden.Error(),
		}, ip, auditlog.StatusFailure)
		return ErrForbidden
	}
	if existing.CurrentRegistrations > 0 {
		return ErrHasRegistrations
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.audit(ctx, actor.ID, id, "EVENT_DELETED", map[string]interface{}{
			"error": err.Error(),
		}, ip, auditlog.StatusFailure)
		return err
	}

	s.audit(ctx, actor.ID, id, "EVENT_DELETED", map[string]interface{}{
		"name":   existing.Name,
		"status": existing.Status,
	}, ip, auditlog.StatusSuccess)
	s.logger.Info("event deleted", zap.String("event_id", id), zap.String("by", actor.ID))
	return nil
}

// ===========================
// Reject
// Rejecting a submission removes it from the review queue entirely.
func (s *service) Reject(ctx context.Context, actor auth.User, id, ip string) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status != StatusPending {
		return ErrNotPending
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.audit(ctx, actor.ID, id, "EVENT_REJECTED", map[string]interface{}{
			"error": err.Error(),
		}, ip, auditlog.StatusFailure)
		return err
	}

	s.audit(ctx, actor.ID, id, "EVENT_REJECTED", map[string]interface{}{
		"name":       existing.Name,
		"created_by": existing.CreatedBy,
	}, ip, auditlog.StatusSuccess)
	return nil
}

func (s *service) audit(ctx context.Context, userID, eventID, action string, details map[string]interface{}, ip, status string) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.LogAction(ctx, auditlog.StrPtr(userID), auditlog.StrPtr(eventID), action, details, ip, status)
}
