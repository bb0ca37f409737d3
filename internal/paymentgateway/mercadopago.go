package paymentgateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/shopspring/decimal"

	paymentgatewaytypes "github.com/frahmantamala/pix-deposit/internal/core/datamodel/paymentgateway"
)

var ErrMissingMercadoPagoAccessToken = errors.New("missing mercado pago access token")

// mercadoPagoPayments is the subset of the SDK payment client used here.
type mercadoPagoPayments interface {
	Create(ctx context.Context, request payment.Request) (*payment.Response, error)
	Get(ctx context.Context, id int) (*payment.Response, error)
}

// MercadoPagoGateway implements Gateway on top of the Mercado Pago payments API.
type MercadoPagoGateway struct {
	client mercadoPagoPayments
	logger *slog.Logger
}

func NewMercadoPagoGateway(accessToken string, logger *slog.Logger) (*MercadoPagoGateway, error) {
	if accessToken == "" {
		return nil, ErrMissingMercadoPagoAccessToken
	}

	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed creating mercado pago config: %w", err)
	}
	logger.Info("mercado pago client initialized")

	return newMercadoPagoGateway(payment.NewClient(cfg), logger), nil
}

func newMercadoPagoGateway(client mercadoPagoPayments, logger *slog.Logger) *MercadoPagoGateway {
	return &MercadoPagoGateway{client: client, logger: logger}
}

func (g *MercadoPagoGateway) CreatePayment(ctx context.Context, req *paymentgatewaytypes.CreatePaymentRequest) (*paymentgatewaytypes.CreatePaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	description := ""
	if len(req.Items) > 0 {
		description = req.Items[0].Title
	}

	request := payment.Request{
		TransactionAmount: decimal.New(req.Amount, -2).InexactFloat64(),
		Description:       description,
		PaymentMethodID:   "pix",
		Payer: &payment.PayerRequest{
			Email:     req.Email,
			FirstName: req.Name,
			Identification: &payment.IdentificationRequest{
				Type:   "CPF",
				Number: req.CPF,
			},
		},
	}

	resp, err := g.client.Create(ctx, request)
	if err != nil {
		g.logger.Error("mercado pago create failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrProviderStatus, err)
	}

	g.logger.Info("mercado pago payment created",
		"payment_id", resp.ID,
		"provider_status", resp.Status)

	return &paymentgatewaytypes.CreatePaymentResponse{
		ID:        strconv.Itoa(resp.ID),
		PixCode:   resp.PointOfInteraction.TransactionData.QRCode,
		PixQrCode: qrImage(resp.PointOfInteraction.TransactionData.QRCodeBase64),
	}, nil
}

func (g *MercadoPagoGateway) GetPaymentStatus(ctx context.Context, paymentID string) (*paymentgatewaytypes.PaymentStatusResponse, error) {
	if paymentID == "" {
		return nil, ErrMissingPaymentID
	}
	id, err := strconv.Atoi(paymentID)
	if err != nil {
		return nil, fmt.Errorf("invalid mercado pago payment id %q: %w", paymentID, err)
	}

	resp, err := g.client.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderStatus, err)
	}

	status, ok := mapMercadoPagoStatus(resp.Status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrMalformedResponse, resp.Status)
	}

	return &paymentgatewaytypes.PaymentStatusResponse{
		ID:        paymentID,
		Status:    status,
		Amount:    decimal.NewFromFloat(resp.TransactionAmount).Shift(2).Round(0).IntPart(),
		PixCode:   resp.PointOfInteraction.TransactionData.QRCode,
		PixQrCode: qrImage(resp.PointOfInteraction.TransactionData.QRCodeBase64),
	}, nil
}

func mapMercadoPagoStatus(s string) (paymentgatewaytypes.PaymentStatus, bool) {
	switch strings.ToLower(s) {
	case "pending", "in_process", "authorized", "in_mediation":
		return paymentgatewaytypes.PaymentStatusPending, true
	case "approved":
		return paymentgatewaytypes.PaymentStatusApproved, true
	case "rejected", "cancelled":
		return paymentgatewaytypes.PaymentStatusRejected, true
	case "refunded":
		return paymentgatewaytypes.PaymentStatusRefunded, true
	case "charged_back":
		return paymentgatewaytypes.PaymentStatusChargeback, true
	}
	return "", false
}

func qrImage(base64PNG string) string {
	if base64PNG == "" || strings.HasPrefix(base64PNG, "data:") {
		return base64PNG
	}
	return "data:image/png;base64," + base64PNG
}
