package registration

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sharath018/campus-events-backend/internal/event"
)

type Repository interface {
	CreateWithSeat(ctx context.Context, reg *Registration) error
	Exists(ctx context.Context, userID, eventID string) (bool, error)
	OrderIDFor(ctx context.Context, userID, eventID string) (string, error)
	ListEventsForUser(ctx context.Context, userID string) ([]event.Event, error)
	ListAttendedEvents(ctx context.Context, userID string) ([]event.Event, error)
	ListByEvent(ctx context.Context, eventID string) ([]Attendee, error)
	MarkAttendance(ctx context.Context, eventID, userID, status string) error
}

type repository struct{ db *gorm.DB }

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

// CreateWithSeat inserts reg and takes one seat in a single transaction.
// The seat increment is guarded by current_registrations < strength, so a
// concurrent winner for the last seat leaves zero rows affected here.
func (r *repository) CreateWithSeat(ctx context.Context, reg *Registration) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&Registration{}).
			Where("user_id = ? AND event_id = ?", reg.UserID, reg.EventID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyRegistered
		}

		res := tx.Model(&event.Event{}).
			Where("id = ? AND current_registrations < strength", reg.EventID).
			UpdateColumn("current_registrations", gorm.Expr("current_registrations + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrEventFull
		}

		if err := tx.Create(reg).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyRegistered
			}
			return err
		}
		return nil
	})
}

func (r *repository) Exists(ctx context.Context, userID, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Registration{}).
		Where("user_id = ? AND event_id = ?", userID, eventID).
		Count(&count).Error
	return count > 0, err
}

// OrderIDFor returns the payment order that holds the user's seat, or "" for
// a free registration.
func (r *repository) OrderIDFor(ctx context.Context, userID, eventID string) (string, error) {
	var reg Registration
	err := r.db.WithContext(ctx).
		Select("order_id").
		Where("user_id = ? AND event_id = ?", userID, eventID).
		First(&reg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotRegistered
	}
	if err != nil {
		return "", err
	}
	if reg.OrderID == nil {
		return "", nil
	}
	return *reg.OrderID, nil
}

func (r *repository) ListEventsForUser(ctx context.Context, userID string) ([]event.Event, error) {
	var events []event.Event
	err := r.db.WithContext(ctx).
		Joins("JOIN registrations ON registrations.event_id = events.id").
		Where("registrations.user_id = ?", userID).
		Order("events.date ASC").
		Find(&events).Error
	return events, err
}

func (r *repository) ListAttendedEvents(ctx context.Context, userID string) ([]event.Event, error) {
	var events []event.Event
	err := r.db.WithContext(ctx).
		Joins("JOIN registrations ON registrations.event_id = events.id").
		Where("registrations.user_id = ? AND registrations.attendance = ?", userID, AttendancePresent).
		Order("events.date DESC").
		Find(&events).Error
	return events, err
}

func (r *repository) ListByEvent(ctx context.Context, eventID string) ([]Attendee, error) {
	var out []Attendee
	err := r.db.WithContext(ctx).
		Table("registrations r").
		Select(`r.id as registration_id, r.user_id, u.full_name, u.email, u.phone,
			r.source, r.attendance, r.created_at as registered_at`).
		Joins("JOIN users u ON u.id = r.user_id").
		Where("r.event_id = ?", eventID).
		Order("r.created_at ASC").
		Scan(&out).Error
	return out, err
}

func (r *repository) MarkAttendance(ctx context.Context, eventID, userID, status string) error {
	res := r.db.WithContext(ctx).Model(&Registration{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Update("attendance", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotRegistered
	}
	return nil
}
