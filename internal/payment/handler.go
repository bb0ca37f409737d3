package payment

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	errors "github.com/frahmantamala/pix-deposit/internal"
	"github.com/frahmantamala/pix-deposit/internal/transport"
)

const defaultKeepAlive = 15 * time.Second

type Handler struct {
	*transport.BaseHandler
	service   ServiceAPI
	keepAlive time.Duration
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		service:     service,
		keepAlive:   defaultKeepAlive,
	}
}

// Current handles GET /api/v1/payments/current
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Details(r.Context(), errors.SessionKeyFromContext(r.Context()))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToDetailsView(info))
}

// GetByID handles GET /api/v1/payments/{id}?token=
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "id")

	token := r.URL.Query().Get("token")
	if token == "" {
		// no receipt: fall back to the session, as long as it holds this payment
		info, err := h.service.Details(r.Context(), errors.SessionKeyFromContext(r.Context()))
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		if info.ID != paymentID {
			h.HandleError(w, errors.ErrPaymentInfoMissing)
			return
		}
		h.WriteJSON(w, http.StatusOK, ToDetailsView(info))
		return
	}

	info, err := h.service.DetailsFromReceipt(r.Context(), paymentID, token)
	if err != nil {
		h.Logger.Warn("GetByID: receipt rejected", "payment_id", paymentID, "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToDetailsView(info))
}

// Status handles GET /api/v1/payments/{id}/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToStatusView(resp))
}

// Events handles GET /api/v1/payments/{id}/events as a server-sent event
// stream. Every snapshot is sent as a "snapshot" event; the stream ends after
// the terminal one.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	snapshots, unsubscribe, err := h.service.Subscribe(r.Context(), paymentID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.Logger.Info("payment event stream opened", "payment_id", paymentID)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.Logger.Debug("payment event stream closed by client", "payment_id", paymentID)
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case snapshot, ok := <-snapshots:
			if !ok {
				return
			}
			if err := writeEvent(w, "snapshot", ToSnapshotView(snapshot)); err != nil {
				h.Logger.Error("failed to write payment event", "payment_id", paymentID, "error", err)
				return
			}
			flusher.Flush()
			if snapshot.State.IsTerminal() {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	return err
}
