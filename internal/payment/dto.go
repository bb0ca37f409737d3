package payment

import (
	"time"

	paymentgatewaytypes "github.com/frahmantamala/pix-deposit/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/pix-deposit/internal/currency"
	"github.com/frahmantamala/pix-deposit/internal/poller"
	"github.com/frahmantamala/pix-deposit/internal/session"
	"github.com/frahmantamala/pix-deposit/internal/taxid"
)

// PaymentDetailsView is the details page payload.
type PaymentDetailsView struct {
	session.PaymentInfo
	AmountDisplay string `json:"amount_display"`
	CPFMasked     string `json:"cpf_masked"`
	StatusURL     string `json:"status_url"`
	EventsURL     string `json:"events_url"`
}

func ToDetailsView(info *session.PaymentInfo) PaymentDetailsView {
	return PaymentDetailsView{
		PaymentInfo:   *info,
		AmountDisplay: currency.FormatForDisplay(info.Amount),
		CPFMasked:     taxid.Mask(info.CPF),
		StatusURL:     "/api/v1/payments/" + info.ID + "/status",
		EventsURL:     "/api/v1/payments/" + info.ID + "/events",
	}
}

type PaymentStatusView struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Label         string `json:"label"`
	Terminal      bool   `json:"terminal"`
	Name          string `json:"name,omitempty"`
	Amount        string `json:"amount"`
	AmountDisplay string `json:"amount_display"`
	PixCode       string `json:"pixCode,omitempty"`
	PixQrCode     string `json:"pixQrCode,omitempty"`
}

func ToStatusView(resp *paymentgatewaytypes.PaymentStatusResponse) PaymentStatusView {
	amount := currency.FromMinorUnits(resp.Amount)
	return PaymentStatusView{
		ID:            resp.ID,
		Status:        string(resp.Status),
		Label:         resp.Status.Label(),
		Terminal:      resp.Status.IsTerminal(),
		Name:          resp.Name,
		Amount:        amount,
		AmountDisplay: currency.FormatForDisplay(amount),
		PixCode:       resp.PixCode,
		PixQrCode:     resp.PixQrCode,
	}
}

// SnapshotView is one SSE message.
type SnapshotView struct {
	PaymentID         string             `json:"payment_id"`
	State             string             `json:"state"`
	Label             string             `json:"label"`
	Attempt           int                `json:"attempt"`
	ConsecutiveErrors int                `json:"consecutive_errors,omitempty"`
	Error             string             `json:"error,omitempty"`
	Resolved          bool               `json:"resolved"`
	PersistentFailure bool               `json:"persistent_failure,omitempty"`
	Payment           *PaymentStatusView `json:"payment,omitempty"`
	ObservedAt        time.Time          `json:"observed_at"`
}

func ToSnapshotView(s poller.Snapshot) SnapshotView {
	view := SnapshotView{
		PaymentID:         s.PaymentID,
		State:             string(s.State),
		Label:             s.Label,
		Attempt:           s.Attempt,
		ConsecutiveErrors: s.ConsecutiveErrors,
		Error:             s.Error,
		Resolved:          s.Resolved,
		PersistentFailure: s.PersistentFailure,
		ObservedAt:        s.ObservedAt,
	}
	if s.Payment != nil {
		p := ToStatusView(s.Payment)
		view.Payment = &p
	}
	return view
}
