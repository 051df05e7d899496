package payment

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*Payment, error)
	UpdatePaymentDetails(ctx context.Context, orderID string, params UpdatePaymentDetailsParams) error
	ListByUser(ctx context.Context, userID string) ([]Payment, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, p *Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *repository) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	var p Payment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePaymentDetails never downgrades a successful payment.
func (r *repository) UpdatePaymentDetails(ctx context.Context, orderID string, params UpdatePaymentDetailsParams) error {
	updates := map[string]interface{}{
		"status":     params.Status,
		"payment_id": params.PaymentID,
		"method":     params.Method,
		"amount":     params.Amount,
	}
	if params.Gateway != nil {
		updates["gateway"] = params.Gateway
	}
	if params.PaidAt != nil {
		updates["paid_at"] = *params.PaidAt
	}

	res := r.db.WithContext(ctx).Model(&Payment{}).
		Where("order_id = ? AND status <> ?", orderID, StatusSuccess).
		Updates(updates)
	return res.Error
}

func (r *repository) ListByUser(ctx context.Context, userID string) ([]Payment, error) {
	var out []Payment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}
