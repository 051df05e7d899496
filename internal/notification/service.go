package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	ErrNotFound          = errors.New("notification not found")
	ErrStreamUnavailable = errors.New("live notifications are unavailable")
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Service interface {
	// HandleRegistrationConfirmed stores the in-app notification and pushes it
	// to the user's devices.
	HandleRegistrationConfirmed(ctx context.Context, msg RegistrationConfirmed) error

	ListInApp(ctx context.Context, userID string, limit int) ([]InAppNotification, error)
	MarkInAppAsRead(ctx context.Context, id uint, userID string) error
	MarkAllInAppAsRead(ctx context.Context, userID string) (int64, error)
	Subscribe(ctx context.Context, userID string) (<-chan string, func(), error)

	RegisterDeviceToken(ctx context.Context, userID string, req DeviceRequest) error
	RemoveDeviceToken(ctx context.Context, userID, deviceToken string) error
}

type service struct {
	repo        Repository
	push        PushSender
	broadcaster Broadcaster
	logger      *zap.Logger
}

// NewService wires the notification service. push and broadcaster may be nil.
func NewService(repo Repository, push PushSender, broadcaster Broadcaster, logger *zap.Logger) Service {
	return &service{
		repo:        repo,
		push:        push,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func registrationText(msg RegistrationConfirmed) (string, string) {
	title := "Registration confirmed"
	body := fmt.Sprintf("You're registered for %s", msg.EventName)
	if msg.EventDate != "" {
		body += " on " + msg.EventDate
	}
	body += "."
	if msg.PaymentID != "" {
		body += fmt.Sprintf(" Payment %s received.", msg.PaymentID)
	}
	return title, body
}

func (s *service) HandleRegistrationConfirmed(ctx context.Context, msg RegistrationConfirmed) error {
	if msg.UserID == "" {
		return errors.New("registration message without user id")
	}

	title, body := registrationText(msg)
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification data: %w", err)
	}

	item := &InAppNotification{
		UserID:   msg.UserID,
		Title:    title,
		Message:  body,
		Category: CategoryRegistration,
		Data:     datatypes.JSON(data),
	}
	if err := s.repo.CreateInApp(ctx, item); err != nil {
		return fmt.Errorf("store in-app notification: %w", err)
	}

	s.broadcast(ctx, item)
	s.pushToDevices(ctx, msg, title, body)
	return nil
}

func (s *service) broadcast(ctx context.Context, item *InAppNotification) {
	if s.broadcaster == nil {
		return
	}
	payload, _ := json.Marshal(item)
	if err := s.broadcaster.Publish(ctx, item.UserID, payload); err != nil {
		s.logger.Warn("in-app broadcast failed", zap.String("user_id", item.UserID), zap.Error(err))
	}
}

// pushToDevices never fails the notification; the in-app row is the record.
func (s *service) pushToDevices(ctx context.Context, msg RegistrationConfirmed, title, body string) {
	if s.push == nil {
		return
	}
	tokens, err := s.repo.GetUserDeviceTokens(ctx, msg.UserID)
	if err != nil {
		s.logger.Warn("device token lookup failed", zap.String("user_id", msg.UserID), zap.Error(err))
		return
	}
	if len(tokens) == 0 {
		return
	}

	stale, err := s.push.Send(ctx, tokens, title, body, map[string]string{
		"type":           CategoryRegistration,
		"eventId":        msg.EventID,
		"registrationId": msg.RegistrationID,
	})
	switch {
	case errors.Is(err, ErrPushDisabled):
		s.logger.Debug("push disabled, skipping", zap.String("user_id", msg.UserID))
	case err != nil:
		s.logger.Warn("push delivery incomplete", zap.String("user_id", msg.UserID), zap.Error(err))
	}

	if len(stale) > 0 {
		if err := s.repo.DeactivateTokens(ctx, stale); err != nil {
			s.logger.Warn("deactivating stale tokens failed", zap.Error(err))
		}
	}
}

func (s *service) ListInApp(ctx context.Context, userID string, limit int) ([]InAppNotification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.ListInAppByUser(ctx, userID, limit)
}

func (s *service) MarkInAppAsRead(ctx context.Context, id uint, userID string) error {
	return s.repo.MarkInAppAsRead(ctx, id, userID)
}

func (s *service) MarkAllInAppAsRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllInAppAsRead(ctx, userID)
}

func (s *service) Subscribe(ctx context.Context, userID string) (<-chan string, func(), error) {
	if s.broadcaster == nil {
		return nil, nil, ErrStreamUnavailable
	}
	return s.broadcaster.Subscribe(ctx, userID)
}

func (s *service) RegisterDeviceToken(ctx context.Context, userID string, req DeviceRequest) error {
	return s.repo.SaveDeviceToken(ctx, &DeviceToken{
		UserID:      userID,
		DeviceToken: req.DeviceToken,
		DeviceType:  req.DeviceType,
		DeviceName:  req.DeviceName,
	})
}

func (s *service) RemoveDeviceToken(ctx context.Context, userID, deviceToken string) error {
	return s.repo.RemoveDeviceToken(ctx, userID, deviceToken)
}
