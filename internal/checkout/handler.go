package checkout

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi"

	errors "github.com/frahmantamala/pix-deposit/internal"
	"github.com/frahmantamala/pix-deposit/internal/currency"
	"github.com/frahmantamala/pix-deposit/internal/session"
	"github.com/frahmantamala/pix-deposit/internal/taxid"
	"github.com/frahmantamala/pix-deposit/internal/transport"
)

type ReceiptIssuer interface {
	Issue(info session.PaymentInfo) (string, time.Time, error)
}

type Handler struct {
	*transport.BaseHandler
	service  ServiceAPI
	sessions session.Store
	cookies  *session.Manager
	receipts ReceiptIssuer
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, sessions session.Store, cookies *session.Manager, receipts ReceiptIssuer) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		service:     service,
		sessions:    sessions,
		cookies:     cookies,
		receipts:    receipts,
	}
}

// LookupIdentity handles GET /api/v1/identity/{cpf}
func (h *Handler) LookupIdentity(w http.ResponseWriter, r *http.Request) {
	cpf := chi.URLParam(r, "cpf")

	name, err := h.service.LookupName(r.Context(), cpf)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, IdentityView{CPF: taxid.Mask(cpf), Name: name})
}

// ParseAmount handles POST /api/v1/amount/parse
func (h *Handler) ParseAmount(w http.ResponseWriter, r *http.Request) {
	var req ParseAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}
	h.WriteJSON(w, http.StatusOK, h.service.ParseAmount(req.Input, req.Previous))
}

// Checkout handles POST /api/v1/checkout
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("Checkout: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	info, err := h.service.Submit(r.Context(), req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.remember(w, r, *info)

	token, expiresAt, err := h.receipts.Issue(*info)
	if err != nil {
		h.Logger.Error("Checkout: failed to issue receipt", "payment_id", info.ID, "error", err)
	}

	resp := CheckoutResponse{
		Payment:          *info,
		AmountDisplay:    currency.FormatForDisplay(info.Amount),
		ReceiptToken:     token,
		ReceiptExpiresAt: expiresAt,
		DetailsURL:       "/api/v1/payments/current",
	}
	if token != "" {
		resp.DetailsURL = "/api/v1/payments/" + url.PathEscape(info.ID) + "?token=" + url.QueryEscape(token)
	}

	h.WriteJSON(w, http.StatusCreated, resp)
}

// remember stores info for the details view. The payment already exists, so a
// failure here only costs the cookie path; the receipt link still works.
func (h *Handler) remember(w http.ResponseWriter, r *http.Request, info session.PaymentInfo) {
	key := session.NewKey()
	if err := h.sessions.Save(r.Context(), key, info); err != nil {
		h.Logger.Error("Checkout: failed to store payment info", "payment_id", info.ID, "error", err)
		return
	}
	if err := h.cookies.Bind(w, r, key); err != nil {
		h.Logger.Error("Checkout: failed to set session cookie", "payment_id", info.ID, "error", err)
	}
}
