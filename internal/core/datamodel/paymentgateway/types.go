package paymentgateway

import (
	"errors"
	"strings"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusApproved   PaymentStatus = "APPROVED"
	PaymentStatusRejected   PaymentStatus = "REJECTED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
	PaymentStatusChargeback PaymentStatus = "CHARGEBACK"
)

const PaymentMethodPIX = "PIX"

var statusLabels = map[PaymentStatus]string{
	PaymentStatusApproved:   "Aprovado",
	PaymentStatusPending:    "Pendente",
	PaymentStatusRejected:   "Rejeitado",
	PaymentStatusRefunded:   "Reembolsado",
	PaymentStatusChargeback: "Estornado",
}

// LoadingLabel is shown while no status has been observed yet.
const LoadingLabel = "Carregando..."

// ParseStatus accepts the provider spelling in any case.
func ParseStatus(s string) (PaymentStatus, bool) {
	status := PaymentStatus(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := statusLabels[status]
	return status, ok
}

func (s PaymentStatus) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

// IsTerminal is true for every status except PENDING.
func (s PaymentStatus) IsTerminal() bool {
	return s.IsValid() && s != PaymentStatusPending
}

func (s PaymentStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return LoadingLabel
}

type Item struct {
	UnitPrice int64  `json:"unitPrice"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	Tangible  bool   `json:"tangible"`
}

// CreatePaymentRequest is sent once per submission and never retried automatically.
type CreatePaymentRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	CPF           string `json:"cpf"`
	Phone         string `json:"phone"`
	PaymentMethod string `json:"paymentMethod"`
	Amount        int64  `json:"amount"`
	Items         []Item `json:"items"`
}

func (r *CreatePaymentRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if len(r.CPF) != 11 {
		return errors.New("cpf must have 11 digits")
	}
	if r.Email == "" {
		return errors.New("email is required")
	}
	if r.PaymentMethod != PaymentMethodPIX {
		return errors.New("payment method must be PIX")
	}
	if r.Amount <= 0 {
		return errors.New("amount must be greater than 0")
	}
	if len(r.Items) == 0 {
		return errors.New("at least one item is required")
	}
	return nil
}

type CreatePaymentResponse struct {
	ID        string `json:"id"`
	PixCode   string `json:"pixCode"`
	PixQrCode string `json:"pixQrCode"`
}

// PaymentStatusResponse is the provider's view of a payment. Amount is in minor units.
type PaymentStatusResponse struct {
	ID        string        `json:"id"`
	Status    PaymentStatus `json:"status"`
	Name      string        `json:"name,omitempty"`
	Amount    int64         `json:"amount"`
	PixCode   string        `json:"pixCode,omitempty"`
	PixQrCode string        `json:"pixQrCode,omitempty"`
}
