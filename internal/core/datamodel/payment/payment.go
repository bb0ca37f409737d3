package payment

import (
	"time"
)

const (
	StatusPending    = "PENDING"
	StatusApproved   = "APPROVED"
	StatusRejected   = "REJECTED"
	StatusRefunded   = "REFUNDED"
	StatusChargeback = "CHARGEBACK"
)

// Payment is the ledger copy of a PIX charge created at the provider.
type Payment struct {
	ID          int64      `gorm:"primaryKey" db:"id"`
	GatewayID   string     `gorm:"column:gateway_id;not null;uniqueIndex" db:"gateway_id"`
	CPF         string     `gorm:"column:cpf;not null" db:"cpf"`
	Name        string     `gorm:"column:name;not null" db:"name"`
	AmountMinor int64      `gorm:"column:amount_minor;not null" db:"amount_minor"`
	Status      string     `gorm:"column:status;default:PENDING" db:"status"`
	PixCode     string     `gorm:"column:pix_code" db:"pix_code"`
	PixQrCode   string     `gorm:"column:pix_qr_code" db:"pix_qr_code"`
	ResolvedAt  *time.Time `gorm:"column:resolved_at" db:"resolved_at"`
	CreatedAt   time.Time  `gorm:"column:created_at" db:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" db:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) IsResolved() bool {
	switch p.Status {
	case StatusApproved, StatusRejected, StatusRefunded, StatusChargeback:
		return true
	}
	return false
}
