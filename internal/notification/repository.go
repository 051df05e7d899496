package notification

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	CreateInApp(ctx context.Context, n *InAppNotification) error
	ListInAppByUser(ctx context.Context, userID string, limit int) ([]InAppNotification, error)
	MarkInAppAsRead(ctx context.Context, id uint, userID string) error
	MarkAllInAppAsRead(ctx context.Context, userID string) (int64, error)

	SaveDeviceToken(ctx context.Context, token *DeviceToken) error
	GetUserDeviceTokens(ctx context.Context, userID string) ([]string, error)
	RemoveDeviceToken(ctx context.Context, userID, deviceToken string) error
	DeactivateTokens(ctx context.Context, tokens []string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ------------------------------
// In-app notifications
// ------------------------------

func (r *repository) CreateInApp(ctx context.Context, n *InAppNotification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *repository) ListInAppByUser(ctx context.Context, userID string, limit int) ([]InAppNotification, error) {
	var items []InAppNotification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// MarkInAppAsRead only touches the caller's own notification.
func (r *repository) MarkInAppAsRead(ctx context.Context, id uint, userID string) error {
	res := r.db.WithContext(ctx).
		Model(&InAppNotification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllInAppAsRead returns how many unread notifications were flipped.
func (r *repository) MarkAllInAppAsRead(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&InAppNotification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// ------------------------------
// FCM device tokens
// ------------------------------

// SaveDeviceToken creates the token or reassigns and reactivates an existing one.
func (r *repository) SaveDeviceToken(ctx context.Context, token *DeviceToken) error {
	var existing DeviceToken
	err := r.db.WithContext(ctx).
		Where("device_token = ?", token.DeviceToken).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		token.IsActive = true
		token.LastUsedAt = time.Now()
		return r.db.WithContext(ctx).Create(token).Error
	}
	if err != nil {
		return err
	}

	existing.UserID = token.UserID
	existing.IsActive = true
	existing.LastUsedAt = time.Now()
	existing.DeviceType = token.DeviceType
	existing.DeviceName = token.DeviceName
	return r.db.WithContext(ctx).Save(&existing).Error
}

func (r *repository) GetUserDeviceTokens(ctx context.Context, userID string) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).
		Model(&DeviceToken{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Pluck("device_token", &tokens).Error
	return tokens, err
}

func (r *repository) RemoveDeviceToken(ctx context.Context, userID, deviceToken string) error {
	return r.db.WithContext(ctx).
		Model(&DeviceToken{}).
		Where("user_id = ? AND device_token = ?", userID, deviceToken).
		Update("is_active", false).Error
}

// DeactivateTokens disables tokens FCM reported as unregistered.
func (r *repository) DeactivateTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&DeviceToken{}).
		Where("device_token IN ?", tokens).
		Update("is_active", false).Error
}
