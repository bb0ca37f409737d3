// Package payment is the details and status side of a submitted PIX payment:
// it reads back the PaymentInfo, shares one poller per payment between all
// watchers, and turns status snapshots into events and ledger updates.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/pix-deposit/internal/core/datamodel/payment"
	paymentgatewaytypes "github.com/frahmantamala/pix-deposit/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/pix-deposit/internal/poller"
	"github.com/frahmantamala/pix-deposit/internal/session"
)

var ErrPaymentNotFound = errors.New("payment not found")

// RepositoryAPI is the payment ledger.
type RepositoryAPI interface {
	Create(ctx context.Context, p *payment.Payment) error
	GetByGatewayID(ctx context.Context, gatewayID string) (*payment.Payment, error)
	UpdateStatus(ctx context.Context, gatewayID, status string, resolvedAt *time.Time) error
}

type ServiceAPI interface {
	Details(ctx context.Context, sessionKey string) (*session.PaymentInfo, error)
	DetailsFromReceipt(ctx context.Context, paymentID, token string) (*session.PaymentInfo, error)
	Status(ctx context.Context, paymentID string) (*paymentgatewaytypes.PaymentStatusResponse, error)
	Subscribe(ctx context.Context, paymentID string) (<-chan poller.Snapshot, func(), error)
	Watch(ctx context.Context, paymentID string, fn func(poller.Snapshot)) error
}

// ReceiptParser opens signed receipt tokens.
type ReceiptParser interface {
	Parse(token string) (*session.PaymentInfo, error)
}
