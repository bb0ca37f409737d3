package paymentgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	paymentgatewaytypes "github.com/frahmantamala/pix-deposit/internal/core/datamodel/paymentgateway"
)

var (
	ErrProviderStatus    = errors.New("payment provider returned an error status")
	ErrMalformedResponse = errors.New("payment provider returned a malformed response")
	ErrMissingPaymentID  = errors.New("payment id is required")
)

// Gateway is the payment creation and status endpoint pair.
type Gateway interface {
	CreatePayment(ctx context.Context, req *paymentgatewaytypes.CreatePaymentRequest) (*paymentgatewaytypes.CreatePaymentResponse, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (*paymentgatewaytypes.PaymentStatusResponse, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	CreatePath string
	StatusPath string
	Timeout    time.Duration
}

// Client talks to a JSON PIX provider over HTTP.
type Client struct {
	http       *resty.Client
	createPath string
	statusPath string
	logger     *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	createPath := config.CreatePath
	if createPath == "" {
		createPath = "/transaction.purchase"
	}
	statusPath := config.StatusPath
	if statusPath == "" {
		statusPath = "/transaction.getPayment"
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if config.APIKey != "" {
		httpClient.SetHeader("Authorization", config.APIKey)
	}

	return &Client{
		http:       httpClient,
		createPath: createPath,
		statusPath: statusPath,
		logger:     logger,
	}
}

func (c *Client) CreatePayment(ctx context.Context, req *paymentgatewaytypes.CreatePaymentRequest) (*paymentgatewaytypes.CreatePaymentResponse, error) {
	if err := req.Validate(); err != nil {
		c.logger.Error("payment request validation failed", "error", err)
		return nil, fmt.Errorf("validation error: %w", err)
	}

	c.logger.Info("creating pix payment",
		"amount", req.Amount,
		"path", c.createPath)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(c.createPath)
	if err != nil {
		c.logger.Error("create payment request failed", "error", err)
		return nil, fmt.Errorf("create payment request failed: %w", err)
	}

	if !resp.IsSuccess() {
		c.logger.Error("payment provider rejected creation",
			"status_code", resp.StatusCode(),
			"response", resp.String())
		return nil, fmt.Errorf("%w: create returned %d", ErrProviderStatus, resp.StatusCode())
	}

	var out paymentgatewaytypes.CreatePaymentResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: missing payment id", ErrMalformedResponse)
	}

	c.logger.Info("pix payment created", "payment_id", out.ID)
	return &out, nil
}

type statusPayload struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Name      string `json:"name"`
	Amount    int64  `json:"amount"`
	PixCode   string `json:"pixCode"`
	PixQrCode string `json:"pixQrCode"`
}

func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string) (*paymentgatewaytypes.PaymentStatusResponse, error) {
	if paymentID == "" {
		return nil, ErrMissingPaymentID
	}

	c.logger.Debug("getting payment status", "payment_id", paymentID)

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("id", paymentID).
		Get(c.statusPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment status: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: status returned %d", ErrProviderStatus, resp.StatusCode())
	}

	var payload statusPayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	status, ok := paymentgatewaytypes.ParseStatus(payload.Status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrMalformedResponse, payload.Status)
	}

	id := payload.ID
	if id == "" {
		id = paymentID
	}

	return &paymentgatewaytypes.PaymentStatusResponse{
		ID:        id,
		Status:    status,
		Name:      payload.Name,
		Amount:    payload.Amount,
		PixCode:   payload.PixCode,
		PixQrCode: payload.PixQrCode,
	}, nil
}
