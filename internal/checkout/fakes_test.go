package checkout_test

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/frahmantamala/pix-deposit/internal/core/datamodel/payment"
	paymentgatewaytypes "github.com/frahmantamala/pix-deposit/internal/core/datamodel/paymentgateway"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeIdentity struct {
	name  string
	err   error
	calls []string
}

func (f *fakeIdentity) LookupName(_ context.Context, cpf string) (string, error) {
	f.calls = append(f.calls, cpf)
	if f.err != nil {
		return "", f.err
	}
	return f.name, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []*paymentgatewaytypes.CreatePaymentRequest
	response *paymentgatewaytypes.CreatePaymentResponse
	err      error
}

func (f *fakeGateway) CreatePayment(_ context.Context, req *paymentgatewaytypes.CreatePaymentRequest) (*paymentgatewaytypes.CreatePaymentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeGateway) Requests() []*paymentgatewaytypes.CreatePaymentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*paymentgatewaytypes.CreatePaymentRequest(nil), f.requests...)
}

type fakeLedger struct {
	mu   sync.Mutex
	rows []payment.Payment
	err  error
}

func (f *fakeLedger) Create(_ context.Context, p *payment.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, *p)
	return nil
}

func (f *fakeLedger) Rows() []payment.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]payment.Payment(nil), f.rows...)
}
