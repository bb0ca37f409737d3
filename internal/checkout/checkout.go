// Package checkout collects the payer's identity and amount and submits the
// PIX charge to the provider.
package checkout

import (
	"context"

	"github.com/frahmantamala/pix-deposit/internal/core/datamodel/payment"
	paymentgatewaytypes "github.com/frahmantamala/pix-deposit/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/pix-deposit/internal/session"
)

type IdentityLookup interface {
	LookupName(ctx context.Context, cpf string) (string, error)
}

type PaymentCreator interface {
	CreatePayment(ctx context.Context, req *paymentgatewaytypes.CreatePaymentRequest) (*paymentgatewaytypes.CreatePaymentResponse, error)
}

type LedgerWriter interface {
	Create(ctx context.Context, p *payment.Payment) error
}

type ServiceAPI interface {
	LookupName(ctx context.Context, cpf string) (string, error)
	ParseAmount(input, previous string) AmountView
	Submit(ctx context.Context, req SubmitRequest) (*session.PaymentInfo, error)
}

type Config struct {
	CustomerEmail string
	CustomerPhone string
	ItemTitle     string
	// MaxAmount is a canonical amount; empty means no upper bound.
	MaxAmount string
}
