package checkout_test

import (
	"context"
	"errors"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/frahmantamala/pix-deposit/internal"
	"github.com/frahmantamala/pix-deposit/internal/checkout"
	"github.com/frahmantamala/pix-deposit/internal/core/datamodel/payment"
	paymentgatewaytypes "github.com/frahmantamala/pix-deposit/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/pix-deposit/internal/core/events"
	"github.com/frahmantamala/pix-deposit/internal/identity"
)

func fieldCodes(err error) []string {
	appErr, ok := apperrors.IsAppError(err)
	if !ok {
		return nil
	}
	details, ok := appErr.Details.(apperrors.ValidationErrors)
	if !ok {
		return nil
	}
	codes := make([]string, 0, len(details.Errors))
	for _, e := range details.Errors {
		codes = append(codes, e.Field+":"+e.Code)
	}
	return codes
}

var _ = Describe("Service", func() {
	var (
		lookup  *fakeIdentity
		gateway *fakeGateway
		ledger  *fakeLedger
		bus     *events.EventBus
		service *checkout.Service
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		lookup = &fakeIdentity{name: "MARIA SILVA"}
		gateway = &fakeGateway{response: &paymentgatewaytypes.CreatePaymentResponse{
			ID:        "abc123",
			PixCode:   "00020126pix",
			PixQrCode: "data:image/png;base64,AAAA",
		}}
		ledger = &fakeLedger{}
		bus = events.NewEventBus(testLogger)
		service = checkout.NewService(lookup, gateway, ledger, bus, checkout.Config{
			CustomerEmail: "pix@example.com",
			CustomerPhone: "11999999999",
			MaxAmount:     "100000.00",
		}, testLogger)
	})

	Describe("LookupName", func() {
		It("returns the holder name for a complete CPF", func() {
			// When
			name, err := service.LookupName(ctx, "123.456.789-09")

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("MARIA SILVA"))
			Expect(lookup.calls).To(Equal([]string{"12345678909"}))
		})

		It("rejects an incomplete CPF without calling the lookup service", func() {
			_, err := service.LookupName(ctx, "123.456")

			Expect(err).To(HaveOccurred())
			Expect(fieldCodes(err)).To(ConsistOf("cpf:INVALID_CPF"))
			Expect(lookup.calls).To(BeEmpty())
		})

		It("rejects a CPF with extra digits instead of truncating it", func() {
			_, err := service.LookupName(ctx, "123.456.789-091")

			Expect(fieldCodes(err)).To(ConsistOf("cpf:INVALID_CPF"))
			Expect(lookup.calls).To(BeEmpty())
		})

		It("maps an unknown CPF to ErrCPFNotFound", func() {
			lookup.err = identity.ErrNotFound

			_, err := service.LookupName(ctx, "12345678909")

			Expect(errors.Is(err, apperrors.ErrCPFNotFound)).To(BeTrue())
		})

		It("maps an invalid CPF to ErrCPFNotFound", func() {
			lookup.err = fmt.Errorf("lookup: %w", identity.ErrInvalidCPF)

			_, err := service.LookupName(ctx, "11111111111")

			Expect(errors.Is(err, apperrors.ErrCPFNotFound)).To(BeTrue())
		})

		It("reports other failures as an external error", func() {
			lookup.err = errors.New("connection refused")

			_, err := service.LookupName(ctx, "12345678909")

			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(apperrors.ErrorTypeExternal))
			Expect(appErr.Code).To(Equal(apperrors.ErrCodeLookupFailed))
		})
	})

	Describe("ParseAmount", func() {
		It("returns the canonical and display forms", func() {
			view := service.ParseAmount("1.234,5", "0.00")

			Expect(view.Amount).To(Equal("1234.50"))
			Expect(view.Display).To(Equal("R$ 1.234,50"))
		})

		It("keeps the previous value when a second separator is typed", func() {
			view := service.ParseAmount("12,34,", "12.34")

			Expect(view.Amount).To(Equal("12.34"))
		})
	})

	Describe("Submit", func() {
		var req checkout.SubmitRequest

		BeforeEach(func() {
			req = checkout.SubmitRequest{Name: "Maria Silva", CPF: "123.456.789-01", Amount: "50.00"}
		})

		It("creates the charge in minor units and returns the payment info", func() {
			// When
			info, err := service.Submit(ctx, req)

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(info.ID).To(Equal("abc123"))
			Expect(info.PixCode).To(Equal("00020126pix"))
			Expect(info.QrCode).To(Equal("data:image/png;base64,AAAA"))
			Expect(info.Amount).To(Equal("50.00"))
			Expect(info.Name).To(Equal("Maria Silva"))
			Expect(info.CPF).To(Equal("12345678901"))

			sent := gateway.Requests()
			Expect(sent).To(HaveLen(1))
			Expect(sent[0].Amount).To(Equal(int64(5000)))
			Expect(sent[0].CPF).To(Equal("12345678901"))
			Expect(sent[0].PaymentMethod).To(Equal(paymentgatewaytypes.PaymentMethodPIX))
			Expect(sent[0].Email).To(Equal("pix@example.com"))
			Expect(sent[0].Items).To(HaveLen(1))
			Expect(sent[0].Items[0].UnitPrice).To(Equal(int64(5000)))
			Expect(sent[0].Items[0].Title).To(Equal("Depósito PIX"))
			Expect(sent[0].Items[0].Quantity).To(Equal(1))
		})

		It("writes a pending ledger row and announces the submission", func() {
			var published []events.Event
			bus.Subscribe(events.EventTypePaymentSubmitted, func(_ context.Context, e events.Event) error {
				published = append(published, e)
				return nil
			})

			_, err := service.Submit(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(bus.Drain(ctx)).To(Succeed())

			rows := ledger.Rows()
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].GatewayID).To(Equal("abc123"))
			Expect(rows[0].AmountMinor).To(Equal(int64(5000)))
			Expect(rows[0].Status).To(Equal(payment.StatusPending))
			Expect(published).To(HaveLen(1))
			Expect(published[0].EventID()).NotTo(BeEmpty())
		})

		It("still succeeds when the ledger write fails", func() {
			ledger.err = errors.New("disk full")

			info, err := service.Submit(ctx, req)

			Expect(err).NotTo(HaveOccurred())
			Expect(info.ID).To(Equal("abc123"))
		})

		DescribeTable("rejects invalid submissions before calling the provider",
			func(mutate func(*checkout.SubmitRequest), expected string) {
				mutate(&req)

				_, err := service.Submit(ctx, req)

				Expect(err).To(HaveOccurred())
				Expect(fieldCodes(err)).To(ContainElement(expected))
				Expect(gateway.Requests()).To(BeEmpty())
			},
			Entry("missing name", func(r *checkout.SubmitRequest) { r.Name = "  " }, "name:VALIDATION_FAILED"),
			Entry("short cpf", func(r *checkout.SubmitRequest) { r.CPF = "1234567" }, "cpf:INVALID_CPF"),
			Entry("cpf with an extra digit", func(r *checkout.SubmitRequest) { r.CPF = "123456789012" }, "cpf:INVALID_CPF"),
			Entry("name over the length limit", func(r *checkout.SubmitRequest) { r.Name = strings.Repeat("a", 121) }, "name:VALIDATION_FAILED"),
			Entry("display amount", func(r *checkout.SubmitRequest) { r.Amount = "R$ 50,00" }, "amount:INVALID_AMOUNT"),
			Entry("zero amount", func(r *checkout.SubmitRequest) { r.Amount = "0.00" }, "amount:AMOUNT_TOO_LOW"),
			Entry("amount over the limit", func(r *checkout.SubmitRequest) { r.Amount = "100000.01" }, "amount:AMOUNT_TOO_HIGH"),
		)

		It("reports a provider failure as a retryable external error", func() {
			gateway.err = errors.New("provider returned 500")

			info, err := service.Submit(ctx, req)

			Expect(info).To(BeNil())
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(502))
			Expect(appErr.Code).To(Equal(apperrors.ErrCodePaymentCreationFailed))
			Expect(appErr.Message).To(Equal("Erro ao processar pagamento"))
			Expect(ledger.Rows()).To(BeEmpty())
		})

		It("does not retry a failed creation", func() {
			gateway.err = errors.New("timeout")

			_, _ = service.Submit(ctx, req)

			Expect(gateway.Requests()).To(HaveLen(1))
		})
	})
})
