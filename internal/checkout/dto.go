package checkout

import (
	"time"

	"github.com/frahmantamala/pix-deposit/internal/session"
)

type SubmitRequest struct {
	Name   string `json:"name"`
	CPF    string `json:"cpf"`
	Amount string `json:"amount"`
}

type ParseAmountRequest struct {
	Input    string `json:"input"`
	Previous string `json:"previous"`
}

type AmountView struct {
	Amount  string `json:"amount"`
	Display string `json:"display"`
}

type IdentityView struct {
	CPF  string `json:"cpf"`
	Name string `json:"name"`
}

type CheckoutResponse struct {
	Payment          session.PaymentInfo `json:"payment"`
	AmountDisplay    string              `json:"amount_display"`
	ReceiptToken     string              `json:"receipt_token"`
	ReceiptExpiresAt time.Time           `json:"receipt_expires_at"`
	DetailsURL       string              `json:"details_url"`
}
