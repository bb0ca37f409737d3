package paymentgateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi"
	"github.com/google/uuid"

	paymentgatewaytypes "github.com/frahmantamala/pix-deposit/internal/core/datamodel/paymentgateway"
)

type SandboxConfig struct {
	CreatePath string
	StatusPath string
	// ResolveAfter is the number of status polls answered with PENDING before the payment resolves.
	ResolveAfter int
	FinalStatus  paymentgatewaytypes.PaymentStatus
}

type sandboxPayment struct {
	request paymentgatewaytypes.CreatePaymentRequest
	created paymentgatewaytypes.CreatePaymentResponse
	polls   int
	forced  paymentgatewaytypes.PaymentStatus
}

// Sandbox emulates a PIX provider in memory for local runs and tests.
type Sandbox struct {
	config   SandboxConfig
	logger   *slog.Logger
	router   chi.Router
	mu       sync.Mutex
	payments map[string]*sandboxPayment
}

func NewSandbox(config SandboxConfig, logger *slog.Logger) *Sandbox {
	if config.CreatePath == "" {
		config.CreatePath = "/transaction.purchase"
	}
	if config.StatusPath == "" {
		config.StatusPath = "/transaction.getPayment"
	}
	if config.ResolveAfter < 0 {
		config.ResolveAfter = 0
	}
	if !config.FinalStatus.IsTerminal() {
		config.FinalStatus = paymentgatewaytypes.PaymentStatusApproved
	}

	s := &Sandbox{
		config:   config,
		logger:   logger,
		payments: make(map[string]*sandboxPayment),
	}

	r := chi.NewRouter()
	r.Post(config.CreatePath, s.create)
	r.Get(config.StatusPath, s.status)
	r.Post("/sandbox/payments/{id}/status/{status}", s.force)
	s.router = r

	return s
}

func (s *Sandbox) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Resolve forces the next status poll of id to report status.
func (s *Sandbox) Resolve(id string, status paymentgatewaytypes.PaymentStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return false
	}
	p.forced = status
	return true
}

// Polls returns how many status requests were answered for id.
func (s *Sandbox) Polls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payments[id]; ok {
		return p.polls
	}
	return 0
}

func (s *Sandbox) create(w http.ResponseWriter, r *http.Request) {
	var req paymentgatewaytypes.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSandboxJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	if err := req.Validate(); err != nil {
		writeSandboxJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": err.Error()})
		return
	}

	id := uuid.NewString()
	created := paymentgatewaytypes.CreatePaymentResponse{
		ID:        id,
		PixCode:   sandboxPixCode(id, req.Name, req.Amount),
		PixQrCode: "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=",
	}

	s.mu.Lock()
	s.payments[id] = &sandboxPayment{request: req, created: created}
	s.mu.Unlock()

	s.logger.Info("sandbox: payment created", "payment_id", id, "amount", req.Amount)
	writeSandboxJSON(w, http.StatusOK, created)
}

func (s *Sandbox) status(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")

	s.mu.Lock()
	p, ok := s.payments[id]
	if !ok {
		s.mu.Unlock()
		writeSandboxJSON(w, http.StatusNotFound, map[string]string{"message": "payment not found"})
		return
	}
	p.polls++
	status := paymentgatewaytypes.PaymentStatusPending
	switch {
	case p.forced != "":
		status = p.forced
	case p.polls > s.config.ResolveAfter:
		status = s.config.FinalStatus
	}
	resp := paymentgatewaytypes.PaymentStatusResponse{
		ID:        id,
		Status:    status,
		Name:      p.request.Name,
		Amount:    p.request.Amount,
		PixCode:   p.created.PixCode,
		PixQrCode: p.created.PixQrCode,
	}
	s.mu.Unlock()

	s.logger.Debug("sandbox: status polled", "payment_id", id, "status", status)
	writeSandboxJSON(w, http.StatusOK, resp)
}

func (s *Sandbox) force(w http.ResponseWriter, r *http.Request) {
	status, ok := paymentgatewaytypes.ParseStatus(chi.URLParam(r, "status"))
	if !ok {
		writeSandboxJSON(w, http.StatusBadRequest, map[string]string{"message": "unknown status"})
		return
	}
	if !s.Resolve(chi.URLParam(r, "id"), status) {
		writeSandboxJSON(w, http.StatusNotFound, map[string]string{"message": "payment not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sandboxPixCode(id, name string, amount int64) string {
	merchant := name
	if len(merchant) > 25 {
		merchant = merchant[:25]
	}
	value := fmt.Sprintf("%d.%02d", amount/100, amount%100)
	return fmt.Sprintf("00020126360014BR.GOV.BCB.PIX0114%s5204000053039865406%s5802BR59%02d%s6009SAO PAULO6304",
		id[:14], value, len(merchant), merchant)
}

func writeSandboxJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
