package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/pix-deposit/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/pix-deposit/internal/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{
		db: db,
	}
}

var _ paymentpkg.RepositoryAPI = (*PaymentRepository)(nil)

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) GetByGatewayID(ctx context.Context, gatewayID string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).Where("gateway_id = ?", gatewayID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, paymentpkg.ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpdateStatus records the latest provider status. resolvedAt is only written
// when given. Without it the update only touches unresolved rows, so a late
// intermediate status never reopens a resolved payment.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, gatewayID, status string, resolvedAt *time.Time) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}

	query := r.db.WithContext(ctx).Model(&payment.Payment{}).Where("gateway_id = ?", gatewayID)
	if resolvedAt != nil {
		updates["resolved_at"] = resolvedAt.UTC()
	} else {
		query = query.Where("resolved_at IS NULL")
	}

	result := query.Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	if resolvedAt == nil {
		var count int64
		err := r.db.WithContext(ctx).Model(&payment.Payment{}).Where("gateway_id = ?", gatewayID).Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
	}
	return paymentpkg.ErrPaymentNotFound
}
