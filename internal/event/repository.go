package event

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	ListApproved(ctx context.Context) ([]Event, error)
	ListPending(ctx context.Context) ([]Event, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]Event, error)
	Update(ctx context.Context, e *Event) error
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
}

type repository struct{ db *gorm.DB }

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

// ===========================
// Create Event
func (r *repository) Create(ctx context.Context, e *Event) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// ===========================
// Get Event By ID
func (r *repository) GetByID(ctx context.Context, id string) (*Event, error) {
	var e Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ===========================
// Approved events, soonest first
func (r *repository) ListApproved(ctx context.Context) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusApproved).
		Order("date ASC").
		Find(&events).Error
	return events, err
}

// ===========================
// Pending review queue, oldest submission first
func (r *repository) ListPending(ctx context.Context) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusPending).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}

func (r *repository) ListByOrganizer(ctx context.Context, organizerID string) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Where("created_by = ?", organizerID).
		Order("date ASC").
		Find(&events).Error
	return events, err
}

// ===========================
// Update Event
// current_registrations is owned by the registration flow and never written here.
func (r *repository) Update(ctx context.Context, e *Event) error {
	res := r.db.WithContext(ctx).Model(&Event{}).
		Where("id = ?", e.ID).
		Updates(map[string]interface{}{
			"name":              e.Name,
			"date":              e.Date,
			"venue":             e.Venue,
			"short_desc":        e.ShortDesc,
			"about":             e.About,
			"learning_outcomes": e.LearningOutcomes,
			"strength":          e.Strength,
			"registration_fee":  e.RegistrationFee,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id, status string) error {
	res := r.db.WithContext(ctx).Model(&Event{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ===========================
// Delete Event
// Only deletes while no seat is held; a row that exists but gained a
// registration reports ErrHasRegistrations.
func (r *repository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND current_registrations = ?", id, 0).
		Delete(&Event{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrHasRegistrations
	}
	return nil
}
