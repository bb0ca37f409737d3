package paymentgateway_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	paymentgatewaytypes "github.com/frahmantamala/pix-deposit/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/pix-deposit/internal/paymentgateway"
)

func validRequest() *paymentgatewaytypes.CreatePaymentRequest {
	return &paymentgatewaytypes.CreatePaymentRequest{
		Name:          "Maria Silva",
		Email:         "pix@example.com",
		CPF:           "12345678901",
		Phone:         "11999999999",
		PaymentMethod: paymentgatewaytypes.PaymentMethodPIX,
		Amount:        5000,
		Items: []paymentgatewaytypes.Item{
			{UnitPrice: 5000, Title: "Depósito PIX", Quantity: 1, Tangible: false},
		},
	}
}

var _ = Describe("Client", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		client  *paymentgateway.Client
		logger  *slog.Logger
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		client = paymentgateway.NewClient(paymentgateway.Config{
			BaseURL: server.URL,
			APIKey:  "secret-key",
		}, logger)
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("CreatePayment", func() {
		Context("when the provider accepts the payment", func() {
			It("should send the request body and return the payment id", func() {
				// Given
				var received map[string]interface{}
				var authHeader, method, path string
				handler = func(w http.ResponseWriter, r *http.Request) {
					method, path = r.Method, r.URL.Path
					authHeader = r.Header.Get("Authorization")
					_ = json.NewDecoder(r.Body).Decode(&received)
					w.Header().Set("Content-Type", "application/json")
					_, _ = w.Write([]byte(`{"id":"abc123","pixCode":"000201...","pixQrCode":"data:image/png;base64,AAA"}`))
				}

				// When
				resp, err := client.CreatePayment(context.Background(), validRequest())

				// Then
				Expect(err).ToNot(HaveOccurred())
				Expect(resp.ID).To(Equal("abc123"))
				Expect(resp.PixCode).To(Equal("000201..."))
				Expect(method).To(Equal(http.MethodPost))
				Expect(path).To(Equal("/transaction.purchase"))
				Expect(authHeader).To(Equal("secret-key"))
				Expect(received["amount"]).To(BeNumerically("==", 5000))
				Expect(received["paymentMethod"]).To(Equal("PIX"))
				Expect(received["cpf"]).To(Equal("12345678901"))
				items := received["items"].([]interface{})
				Expect(items).To(HaveLen(1))
				Expect(items[0].(map[string]interface{})["unitPrice"]).To(BeNumerically("==", 5000))
			})
		})

		Context("when the provider fails", func() {
			It("should report a provider status error", func() {
				// Given
				handler = func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusInternalServerError)
				}

				// When
				resp, err := client.CreatePayment(context.Background(), validRequest())

				// Then
				Expect(err).To(MatchError(paymentgateway.ErrProviderStatus))
				Expect(resp).To(BeNil())
			})
		})

		Context("when the response has no id", func() {
			It("should report a malformed response", func() {
				handler = func(w http.ResponseWriter, r *http.Request) {
					_, _ = w.Write([]byte(`{"pixCode":"x"}`))
				}

				_, err := client.CreatePayment(context.Background(), validRequest())

				Expect(err).To(MatchError(paymentgateway.ErrMalformedResponse))
			})
		})

		Context("when the request is invalid", func() {
			It("should not call the provider", func() {
				// Given
				called := false
				handler = func(w http.ResponseWriter, r *http.Request) { called = true }
				req := validRequest()
				req.Amount = 0

				// When
				_, err := client.CreatePayment(context.Background(), req)

				// Then
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("validation error"))
				Expect(called).To(BeFalse())
			})
		})
	})

	Describe("GetPaymentStatus", func() {
		It("should query by id and parse the status", func() {
			// Given
			var path, queriedID string
			handler = func(w http.ResponseWriter, r *http.Request) {
				path, queriedID = r.URL.Path, r.URL.Query().Get("id")
				_, _ = w.Write([]byte(`{"status":"approved","name":"Maria Silva","amount":5000}`))
			}

			// When
			resp, err := client.GetPaymentStatus(context.Background(), "abc123")

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(path).To(Equal("/transaction.getPayment"))
			Expect(queriedID).To(Equal("abc123"))
			Expect(resp.ID).To(Equal("abc123"))
			Expect(resp.Status).To(Equal(paymentgatewaytypes.PaymentStatusApproved))
			Expect(resp.Amount).To(Equal(int64(5000)))
		})

		It("should reject unknown statuses", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"WAITING"}`))
			}

			_, err := client.GetPaymentStatus(context.Background(), "abc123")

			Expect(err).To(MatchError(paymentgateway.ErrMalformedResponse))
		})

		It("should reject an empty id", func() {
			_, err := client.GetPaymentStatus(context.Background(), "")
			Expect(err).To(MatchError(paymentgateway.ErrMissingPaymentID))
		})

		It("should surface non 2xx answers", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}

			_, err := client.GetPaymentStatus(context.Background(), "abc123")

			Expect(err).To(MatchError(paymentgateway.ErrProviderStatus))
		})
	})
})
